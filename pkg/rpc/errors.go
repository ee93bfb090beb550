package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStatePruned means the node no longer holds the state trie for the
// requested block. This is a defined outcome for old heights on a pruning
// node, not a transient failure: retrying the same height can never succeed.
var ErrStatePruned = errors.New("state pruned for block")

// ErrUnknownBlock means the node does not know the requested block or height
// (ahead of the finalized tip, or a null RPC result).
var ErrUnknownBlock = errors.New("unknown block")

// RPCError is the error object of a JSON-RPC 2.0 response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Substrate client errors arrive as code 4003 with a free-form message; the
// message text is the only signal distinguishing pruned state from other
// refusals, so classification happens here at the boundary.
func classifyRPCError(method string, e *RPCError) error {
	msg := strings.ToLower(e.Message)
	switch {
	case strings.Contains(msg, "state already discarded"),
		strings.Contains(msg, "state discarded"):
		return fmt.Errorf("%s: %w: %s", method, ErrStatePruned, e.Message)
	case strings.Contains(msg, "unknownblock"),
		strings.Contains(msg, "unknown block"):
		return fmt.Errorf("%s: %w: %s", method, ErrUnknownBlock, e.Message)
	default:
		return fmt.Errorf("%s: %w", method, e)
	}
}
