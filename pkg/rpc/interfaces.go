package rpc

import "context"

// Node captures the RPC calls the monitor makes against the chain node.
// Implementations return typed errors (ErrStatePruned, ErrUnknownBlock) for
// the two permanent outcomes; everything else is treated as transient by
// callers.
type Node interface {
	FinalizedHead(ctx context.Context) (string, error)
	BlockHashAt(ctx context.Context, height uint64) (string, error)
	HeaderByHash(ctx context.Context, hash string) (*Header, error)
	HeaderAt(ctx context.Context, height uint64) (*Header, error)
	AuthoritiesAt(ctx context.Context, blockHash string) ([]string, error)
	Status(ctx context.Context) (*NodeStatus, error)
	Registrations(ctx context.Context) ([]Registration, error)
}

var _ Node = (*HTTPClient)(nil)
