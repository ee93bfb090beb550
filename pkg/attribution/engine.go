package attribution

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
	"github.com/parsec-labs/sidewatch/pkg/rpc"
	"github.com/parsec-labs/sidewatch/pkg/timing"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Engine turns a block header into an attributed block row. Attribution is
// best-effort: a transient resolver failure is returned to the caller for
// retry, every permanent failure degrades to a block row with a nil author so
// the height history stays gap-free.
type Engine struct {
	logger   *zap.Logger
	preset   timing.Preset
	resolver Resolver
	store    db.Store
	cache    *committeeCache

	// aura key -> sidechain key, swapped wholesale on every registry
	// refresh so concurrent attribution never observes a half-built map.
	validators atomic.Pointer[xsync.Map[string, string]]

	// sidechain epochs already logged as unavailable, so deep catch-up over
	// a pruned range emits one warning per epoch instead of one per block.
	warned *xsync.Map[uint64, struct{}]
}

func NewEngine(logger *zap.Logger, preset timing.Preset, resolver Resolver, store db.Store) *Engine {
	e := &Engine{
		logger:   logger.Named("attribution"),
		preset:   preset,
		resolver: resolver,
		store:    store,
		cache:    newCommitteeCache(DefaultCacheSize),
		warned:   xsync.NewMap[uint64, struct{}](),
	}
	e.validators.Store(xsync.NewMap[string, string]())
	return e
}

// SetValidators replaces the aura->sidechain key mapping used to translate
// committee slots into validator identities.
func (e *Engine) SetValidators(validators []models.Validator) {
	next := xsync.NewMap[string, string]()
	for _, v := range validators {
		if v.AuraKey != "" {
			next.Store(v.AuraKey, v.SidechainKey)
		}
	}
	e.validators.Store(next)
}

// Attribute builds the block row for the given header. A non-nil error is
// transient; permanent attribution failures return a row with a nil author.
func (e *Engine) Attribute(ctx context.Context, header *rpc.Header) (*models.Block, error) {
	block := &models.Block{
		Height:     header.Number,
		Hash:       header.Hash,
		ParentHash: header.ParentHash,
		SyncedAt:   time.Now().UTC(),
	}

	slot, err := SlotFromDigest(header.DigestLogs)
	if err != nil {
		e.logger.Warn("no decodable slot digest, leaving block unattributed",
			zap.Uint64("height", header.Number), zap.String("hash", header.Hash))
		return block, nil
	}
	block.Slot = slot

	epoch := e.preset.SidechainEpochForSlot(slot)
	committee, ok := e.cache.get(epoch)
	if !ok {
		outcome, err := e.resolver.CommitteeAt(ctx, header.Hash)
		if err != nil {
			return nil, err
		}
		if !outcome.Available() {
			e.warnOnce(epoch, outcome.Reason, header.Number)
			return block, nil
		}
		committee = outcome.Authorities
		// Persist before caching: a warm cache with a failed write would
		// make the retry skip the snapshot row forever.
		if err := e.store.SaveCommittee(ctx, &models.CommitteeSnapshot{
			SidechainEpoch: epoch,
			Authorities:    committee,
			CapturedAt:     time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		e.cache.put(epoch, committee)
	}

	if len(committee) == 0 {
		e.warnOnce(epoch, "empty_committee", header.Number)
		return block, nil
	}

	auraKey := committee[slot%uint64(len(committee))]
	if sidechainKey, ok := e.validators.Load().Load(auraKey); ok {
		block.AuthorKey = &sidechainKey
	} else {
		e.logger.Debug("committee slot holder has no registered identity",
			zap.Uint64("height", header.Number), zap.String("aura_key", auraKey))
	}
	return block, nil
}

func (e *Engine) warnOnce(epoch uint64, reason UnavailableReason, height uint64) {
	if _, loaded := e.warned.LoadOrStore(epoch, struct{}{}); loaded {
		return
	}
	e.logger.Warn("committee unavailable for sidechain epoch",
		zap.Uint64("sidechain_epoch", epoch),
		zap.String("reason", string(reason)),
		zap.Uint64("first_height", height))
}

// IsPermanentLookupErr reports whether the error marks a block whose
// committee can never be resolved from this node.
func IsPermanentLookupErr(err error) bool {
	return errors.Is(err, rpc.ErrStatePruned) || errors.Is(err, rpc.ErrUnknownBlock)
}
