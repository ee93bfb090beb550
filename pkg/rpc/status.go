package rpc

import (
	"context"
	"fmt"
)

// EpochStatus reports the node's view of one epoch clock.
type EpochStatus struct {
	Epoch              uint64 `json:"epoch"`
	Slot               uint64 `json:"slot"`
	NextEpochTimestamp int64  `json:"nextEpochTimestamp"` // ms since Unix epoch
}

// NodeStatus is the response of sidechain_getStatus: both epoch clocks the
// chain runs on.
type NodeStatus struct {
	Sidechain EpochStatus `json:"sidechain"`
	Mainchain EpochStatus `json:"mainchain"`
}

// Status returns the current sidechain and mainchain epoch positions.
func (c *HTTPClient) Status(ctx context.Context) (*NodeStatus, error) {
	var status NodeStatus
	if err := c.call(ctx, "sidechain_getStatus", nil, &status); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return &status, nil
}

// Registration is one validator candidate entry from the registry pallet.
type Registration struct {
	SidechainPubKey string `json:"sidechainPubKey"`
	AuraPubKey      string `json:"auraPubKey"`
	MainchainPubKey string `json:"mainchainPubKey"`
	IsValid         bool   `json:"isValid"`
}

// Registrations returns the registered validator candidates known to the
// node. Invalid registrations are included; callers filter.
func (c *HTTPClient) Registrations(ctx context.Context) ([]Registration, error) {
	var regs []Registration
	if err := c.call(ctx, "sidechain_getRegistrations", nil, &regs); err != nil {
		return nil, fmt.Errorf("registrations: %w", err)
	}
	return regs, nil
}
