package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/parsec-labs/sidewatch/pkg/attribution"
	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
	"github.com/parsec-labs/sidewatch/pkg/retry"
	"github.com/parsec-labs/sidewatch/pkg/rpc"
	"go.uber.org/zap"
)

// State is the daemon's lifecycle phase, exposed for the status endpoint.
type State uint32

const (
	StateIdle State = iota
	StateCatchingUp
	StateLivePolling
	StatePausedOnError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCatchingUp:
		return "catching_up"
	case StateLivePolling:
		return "live_polling"
	case StatePausedOnError:
		return "paused_on_error"
	default:
		return "unknown"
	}
}

// Config tunes the sync daemon.
type Config struct {
	// StartHeight is the first height to sync when no cursor exists yet.
	StartHeight uint64
	// BatchSize is how many headers are prefetched per catch-up round.
	BatchSize int
	// Workers bounds concurrent header fetches within a batch.
	Workers int
	// PollInterval is the cadence of head checks while live.
	PollInterval time.Duration
	// ErrorPause is how long the daemon pauses after an unrecoverable
	// round before trying again.
	ErrorPause time.Duration
	Retry      retry.Config
}

func DefaultConfig() Config {
	return Config{
		StartHeight:  1,
		BatchSize:    64,
		Workers:      8,
		PollInterval: 6 * time.Second,
		ErrorPause:   30 * time.Second,
		Retry:        retry.DefaultConfig(),
	}
}

type resyncRequest struct {
	from uint64
}

// Daemon maintains a gap-free, attributed block history. Heights are
// persisted strictly in order and the cursor only advances after the block
// row is durable, so a crash at any point resumes without gaps or repeated
// work beyond the height that was in flight.
type Daemon struct {
	logger *zap.Logger
	node   rpc.Node
	store  db.Store
	engine *attribution.Engine
	cfg    Config

	state  atomic.Uint32
	resync chan resyncRequest

	// heights at or below this value may overwrite an existing author;
	// set when an operator requests a re-sync over already-synced range.
	reattributeUntil atomic.Uint64
}

func New(logger *zap.Logger, node rpc.Node, store db.Store, engine *attribution.Engine, cfg Config) *Daemon {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = DefaultConfig().ErrorPause
	}
	if cfg.StartHeight == 0 {
		cfg.StartHeight = 1
	}
	return &Daemon{
		logger: logger.Named("syncer"),
		node:   node,
		store:  store,
		engine: engine,
		cfg:    cfg,
		resync: make(chan resyncRequest, 1),
	}
}

// State returns the daemon's current phase.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// RequestResync asks the daemon to rewind its cursor and re-sync from the
// given height, re-attributing already-persisted blocks along the way. It is
// non-blocking; a second request while one is pending is refused.
func (d *Daemon) RequestResync(from uint64) error {
	if from == 0 {
		from = 1
	}
	select {
	case d.resync <- resyncRequest{from: from}:
		return nil
	default:
		return errors.New("a re-sync request is already pending")
	}
}

// Run drives the sync loop until ctx is cancelled. The height in flight at
// cancellation time finishes persisting before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.state.Store(uint32(StateIdle))

	d.logHorizonOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.resync:
			if err := d.applyResync(ctx, req.from); err != nil {
				d.logger.Error("re-sync request failed", zap.Uint64("from", req.from), zap.Error(err))
			}
			continue
		default:
		}

		head, err := d.finalizedHeight(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.pauseOnError(ctx, "resolving finalized head", err)
			continue
		}

		next := d.nextHeight(ctx)
		if next == 0 {
			// Cursor read failed; nextHeight already logged it.
			d.pauseOnError(ctx, "reading sync cursor", errors.New("cursor unavailable"))
			continue
		}

		if next > head {
			d.state.Store(uint32(StateLivePolling))
			if !d.sleep(ctx, d.cfg.PollInterval) {
				return nil
			}
			continue
		}

		d.state.Store(uint32(StateCatchingUp))
		to := min(next+uint64(d.cfg.BatchSize)-1, head)
		if err := d.syncRange(ctx, next, to); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.pauseOnError(ctx, fmt.Sprintf("syncing [%d, %d]", next, to), err)
		}
	}
}

// nextHeight returns the first height that is not yet durable, or 0 when the
// cursor cannot be read.
func (d *Daemon) nextHeight(ctx context.Context) uint64 {
	cursor, ok, err := d.store.LastSynced(ctx)
	if err != nil {
		d.logger.Error("failed to read sync cursor", zap.Error(err))
		return 0
	}
	if !ok {
		return d.cfg.StartHeight
	}
	return cursor + 1
}

func (d *Daemon) finalizedHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := retry.WithBackoff(ctx, d.cfg.Retry, d.logger, "finalized_head", func() error {
		hash, err := d.node.FinalizedHead(ctx)
		if err != nil {
			return err
		}
		header, err := d.node.HeaderByHash(ctx, hash)
		if err != nil {
			return err
		}
		height = header.Number
		return nil
	})
	return height, err
}

// syncRange prefetches headers concurrently, then attributes and persists
// them strictly in height order.
func (d *Daemon) syncRange(ctx context.Context, from, to uint64) error {
	headers := make([]*rpc.Header, to-from+1)
	pool := pond.NewPool(d.cfg.Workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)

	for h := from; h <= to; h++ {
		h := h
		group.SubmitErr(func() error {
			var header *rpc.Header
			err := retry.WithBackoff(ctx, d.cfg.Retry, d.logger, "fetch_header", func() error {
				var err error
				header, err = d.node.HeaderAt(ctx, h)
				if err != nil && attribution.IsPermanentLookupErr(err) {
					// A finalized height the node claims not to know
					// will not appear on retry of the same call.
					return retry.Permanent(err)
				}
				return err
			})
			if err != nil {
				return fmt.Errorf("header at %d: %w", h, err)
			}
			headers[h-from] = header
			return nil
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	for h := from; h <= to; h++ {
		header := headers[h-from]
		if header == nil {
			return fmt.Errorf("header at %d missing after prefetch", h)
		}
		if err := d.processHeader(ctx, header); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// processHeader attributes one header and persists it. The persist and the
// cursor advance run on a context detached from cancellation so a shutdown
// mid-height leaves the cursor consistent with the durable rows.
func (d *Daemon) processHeader(ctx context.Context, header *rpc.Header) error {
	var block *models.Block
	err := retry.WithBackoff(ctx, d.cfg.Retry, d.logger, "attribute_block", func() error {
		b, err := d.engine.Attribute(ctx, header)
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("attribute %d: %w", header.Number, err)
	}

	persistCtx := context.WithoutCancel(ctx)
	if err := d.saveBlock(persistCtx, block); err != nil {
		return fmt.Errorf("persist %d: %w", block.Height, err)
	}
	if err := d.store.AdvanceCursor(persistCtx, block.Height); err != nil {
		return fmt.Errorf("advance cursor to %d: %w", block.Height, err)
	}
	return nil
}

func (d *Daemon) saveBlock(ctx context.Context, block *models.Block) error {
	err := d.store.SaveBlock(ctx, block)
	if errors.Is(err, db.ErrAuthorConflict) && block.Height <= d.reattributeUntil.Load() {
		// Operator-requested re-sync over already-attributed range.
		d.logger.Info("re-attributing block", zap.Uint64("height", block.Height))
		return d.store.ReattributeBlock(ctx, block.Height, block.AuthorKey)
	}
	return err
}

func (d *Daemon) applyResync(ctx context.Context, from uint64) error {
	cursor, ok, err := d.store.LastSynced(ctx)
	if err != nil {
		return err
	}
	if !ok || from > cursor {
		// Nothing synced at or past that height yet.
		return nil
	}
	d.reattributeUntil.Store(cursor)
	if err := d.store.ResetCursor(ctx, from-1); err != nil {
		return err
	}
	d.logger.Info("cursor rewound for re-sync",
		zap.Uint64("from", from), zap.Uint64("previous_cursor", cursor))
	return nil
}

// logHorizonOnce reports how much of the pending range is beyond the node's
// pruning horizon, once, at startup.
func (d *Daemon) logHorizonOnce(ctx context.Context) {
	next := d.nextHeight(ctx)
	if next == 0 {
		return
	}
	head, err := d.finalizedHeight(ctx)
	if err != nil || next > head {
		return
	}
	horizon, err := FindHorizon(ctx, d.node, next, head)
	if err != nil {
		d.logger.Warn("attribution horizon probe failed", zap.Error(err))
		return
	}
	if horizon > next {
		d.logger.Warn("node has pruned state below horizon; earlier blocks will sync without attribution",
			zap.Uint64("from", next),
			zap.Uint64("attribution_horizon", horizon))
	}
}

func (d *Daemon) pauseOnError(ctx context.Context, what string, err error) {
	d.state.Store(uint32(StatePausedOnError))
	d.logger.Error("sync paused", zap.String("while", what), zap.Duration("pause", d.cfg.ErrorPause), zap.Error(err))
	d.sleep(ctx, d.cfg.ErrorPause)
}

func (d *Daemon) sleep(ctx context.Context, dur time.Duration) bool {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case req := <-d.resync:
		if err := d.applyResync(ctx, req.from); err != nil {
			d.logger.Error("re-sync request failed", zap.Uint64("from", req.from), zap.Error(err))
		}
		return true
	case <-timer.C:
		return true
	}
}
