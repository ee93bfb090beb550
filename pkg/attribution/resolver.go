package attribution

import (
	"context"
	"errors"

	"github.com/parsec-labs/sidewatch/pkg/rpc"
)

// Resolver fetches the authority committee as of a given block. A non-nil
// error is transient and should be retried; permanent failures come back as
// an Unavailable outcome with a nil error.
type Resolver interface {
	CommitteeAt(ctx context.Context, blockHash string) (CommitteeOutcome, error)
}

// NodeResolver resolves committees through the runtime API of a chain node.
type NodeResolver struct {
	Node rpc.Node
}

func (r *NodeResolver) CommitteeAt(ctx context.Context, blockHash string) (CommitteeOutcome, error) {
	authorities, err := r.Node.AuthoritiesAt(ctx, blockHash)
	switch {
	case err == nil:
		return CommitteeOutcome{Authorities: authorities}, nil
	case errors.Is(err, rpc.ErrStatePruned):
		return CommitteeOutcome{Reason: ReasonStatePruned}, nil
	case errors.Is(err, rpc.ErrUnknownBlock):
		return CommitteeOutcome{Reason: ReasonUnknownBlock}, nil
	default:
		return CommitteeOutcome{}, err
	}
}
