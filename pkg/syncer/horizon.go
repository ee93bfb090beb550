package syncer

import (
	"context"
	"fmt"

	"github.com/parsec-labs/sidewatch/pkg/attribution"
	"github.com/parsec-labs/sidewatch/pkg/rpc"
)

// FindHorizon returns the oldest height in [from, to] whose committee is
// still resolvable on the connected node. Non-archive nodes prune historical
// state, so heights below the horizon will sync with a nil author; a single
// binary search up front tells the operator how deep the pruned range goes
// instead of surfacing it one block at a time.
//
// Prunedness is monotone over height on a single node, which is what makes
// the binary search valid. If even `to` is unresolvable the returned horizon
// is to+1.
func FindHorizon(ctx context.Context, node rpc.Node, from, to uint64) (uint64, error) {
	if from > to {
		return from, fmt.Errorf("horizon range [%d, %d] is empty", from, to)
	}

	resolvable := func(height uint64) (bool, error) {
		hash, err := node.BlockHashAt(ctx, height)
		if err != nil {
			if attribution.IsPermanentLookupErr(err) {
				return false, nil
			}
			return false, err
		}
		if _, err := node.AuthoritiesAt(ctx, hash); err != nil {
			if attribution.IsPermanentLookupErr(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	lo, hi := from, to
	horizon := to + 1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		ok, err := resolvable(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			horizon = mid
			if mid == from {
				break
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return horizon, nil
}
