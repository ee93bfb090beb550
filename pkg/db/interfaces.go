package db

import (
	"context"
	"errors"

	"github.com/parsec-labs/sidewatch/pkg/db/models"
)

// ErrNotFound is returned by point lookups when no row exists.
var ErrNotFound = errors.New("not found")

// ErrAuthorConflict is returned by SaveBlock when a write would silently
// replace an existing non-null author with a different non-null author.
// Re-attribution must go through ReattributeBlock so drift cannot happen by
// accident.
var ErrAuthorConflict = errors.New("author conflict: differing non-null author already persisted")

// ErrCursorRegress is returned when AdvanceCursor is asked to move the sync
// cursor backwards. That is a programming defect in the caller, not a
// recoverable condition; ResetCursor exists for explicit re-syncs.
var ErrCursorRegress = errors.New("sync cursor may not move backwards")

// Store is the persistent surface the monitor writes and the dashboard
// collaborator reads.
type Store interface {
	// SaveBlock upserts the block row at its height. Re-saving the same
	// height is idempotent; replacing a differing non-null author fails with
	// ErrAuthorConflict. Saving over a nil author (backfill) is allowed.
	SaveBlock(ctx context.Context, block *models.Block) error
	GetBlock(ctx context.Context, height uint64) (*models.Block, error)
	QueryBlocks(ctx context.Context, from, to uint64, limit int) ([]models.Block, error)
	CountBlocks(ctx context.Context, from, to uint64) (uint64, error)

	// ReattributeBlock is the explicit backfill path: it overwrites the
	// author of an existing block row regardless of its current value.
	ReattributeBlock(ctx context.Context, height uint64, authorKey *string) error

	// SaveCommittee persists a committee snapshot keyed by sidechain epoch.
	// Snapshots are immutable: saving an epoch that already exists is a
	// no-op.
	SaveCommittee(ctx context.Context, snapshot *models.CommitteeSnapshot) error
	GetCommittee(ctx context.Context, sidechainEpoch uint64) (*models.CommitteeSnapshot, error)

	// UpsertValidators merges the given registry entries. The is_ours flag
	// merges monotonically: an incoming false never clears a persisted true.
	UpsertValidators(ctx context.Context, validators []models.Validator) error
	ListValidators(ctx context.Context) ([]models.Validator, error)

	// LastSynced returns the sync cursor; ok is false before the first
	// block has been persisted.
	LastSynced(ctx context.Context) (height uint64, ok bool, err error)
	// AdvanceCursor moves the cursor forward; moving it backwards is
	// ErrCursorRegress.
	AdvanceCursor(ctx context.Context, height uint64) error
	// ResetCursor rewinds the cursor for an explicit re-sync.
	ResetCursor(ctx context.Context, height uint64) error

	Close() error
}
