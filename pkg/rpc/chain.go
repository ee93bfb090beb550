package rpc

import (
	"context"
	"fmt"
)

// Header is the decoded block header returned by the node. Hash is filled in
// by the client from the lookup key (chain_getHeader does not echo it).
type Header struct {
	Hash       string
	Number     uint64
	ParentHash string
	DigestLogs []string
}

type rawHeader struct {
	ParentHash string `json:"parentHash"`
	Number     string `json:"number"`
	Digest     struct {
		Logs []string `json:"logs"`
	} `json:"digest"`
}

// FinalizedHead returns the hash of the latest finalized block.
func (c *HTTPClient) FinalizedHead(ctx context.Context) (string, error) {
	var hash string
	if err := c.call(ctx, "chain_getFinalizedHead", nil, &hash); err != nil {
		return "", fmt.Errorf("finalized head: %w", err)
	}
	return hash, nil
}

// BlockHashAt returns the canonical block hash at the given height, or
// ErrUnknownBlock when the chain has no block there yet.
func (c *HTTPClient) BlockHashAt(ctx context.Context, height uint64) (string, error) {
	var hash string
	if err := c.call(ctx, "chain_getBlockHash", []any{height}, &hash); err != nil {
		return "", fmt.Errorf("block hash at %d: %w", height, err)
	}
	return hash, nil
}

// HeaderByHash fetches and decodes the header for the given block hash.
func (c *HTTPClient) HeaderByHash(ctx context.Context, hash string) (*Header, error) {
	var raw rawHeader
	if err := c.call(ctx, "chain_getHeader", []any{hash}, &raw); err != nil {
		return nil, fmt.Errorf("header %s: %w", hash, err)
	}
	number, err := ParseHexUint(raw.Number)
	if err != nil {
		return nil, fmt.Errorf("header %s: bad number %q: %w", hash, raw.Number, err)
	}
	return &Header{
		Hash:       hash,
		Number:     number,
		ParentHash: raw.ParentHash,
		DigestLogs: raw.Digest.Logs,
	}, nil
}

// HeaderAt resolves the canonical hash at height and fetches its header.
func (c *HTTPClient) HeaderAt(ctx context.Context, height uint64) (*Header, error) {
	hash, err := c.BlockHashAt(ctx, height)
	if err != nil {
		return nil, err
	}
	return c.HeaderByHash(ctx, hash)
}
