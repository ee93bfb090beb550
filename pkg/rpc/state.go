package rpc

import (
	"context"
	"fmt"
)

// sessionKeyLen is the width of an sr25519 session public key.
const sessionKeyLen = 32

// AuthoritiesAt returns the ordered block-production authority keys valid at
// the given block, by executing the runtime authorities call against that
// block's state. On a pruning node this fails with ErrStatePruned for heights
// older than the retention window.
func (c *HTTPClient) AuthoritiesAt(ctx context.Context, blockHash string) ([]string, error) {
	var encoded string
	if err := c.call(ctx, "state_call", []any{"AuraApi_authorities", "0x", blockHash}, &encoded); err != nil {
		return nil, fmt.Errorf("authorities at %s: %w", blockHash, err)
	}
	raw, err := DecodeHex(encoded)
	if err != nil {
		return nil, fmt.Errorf("authorities at %s: bad hex: %w", blockHash, err)
	}
	keys, err := DecodeAuthorityList(raw, sessionKeyLen)
	if err != nil {
		return nil, fmt.Errorf("authorities at %s: %w", blockHash, err)
	}
	return keys, nil
}
