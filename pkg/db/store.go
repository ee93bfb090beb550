package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/parsec-labs/sidewatch/pkg/db/clickhouse"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
	"github.com/parsec-labs/sidewatch/pkg/utils"
	"go.uber.org/zap"
)

// CH is the ClickHouse-backed Store. All tables are keyed so that re-saving
// a row is an upsert (ReplacingMergeTree deduplicates on merge, FINAL reads
// see the latest version before that).
type CH struct {
	clickhouse.Client
}

// NewStore connects to ClickHouse and ensures all tables exist.
func NewStore(ctx context.Context, logger *zap.Logger, dbName string) (*CH, error) {
	client, err := clickhouse.New(ctx, logger, dbName)
	if err != nil {
		return nil, err
	}
	store := &CH{Client: client}
	if err := store.initTables(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

var _ Store = (*CH)(nil)

func (s *CH) initTables(ctx context.Context) error {
	tables := []struct {
		name    string
		columns []models.ColumnDef
		engine  string
		orderBy string
	}{
		{models.BlocksTableName, models.BlockColumns, clickhouse.Engine(clickhouse.ReplacingMergeTree, "synced_at"), "height"},
		{models.CommitteesTableName, models.CommitteeColumns, clickhouse.Engine(clickhouse.MergeTree, ""), "sidechain_epoch"},
		{models.ValidatorsTableName, models.ValidatorColumns, clickhouse.Engine(clickhouse.ReplacingMergeTree, "updated_at"), "sidechain_key"},
		{models.SyncProgressTableName, models.SyncProgressColumns, clickhouse.Engine(clickhouse.ReplacingMergeTree, "updated_at"), "id"},
	}
	for _, t := range tables {
		query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY (%s)
	`, s.Name, t.name, models.ColumnsToSchemaSQL(t.columns), t.engine, t.orderBy)
		if err := s.Db.Exec(ctx, query); err != nil {
			return fmt.Errorf("create %s: %w", t.name, err)
		}
	}
	return nil
}

// SaveBlock upserts the block row at its height, refusing to silently swap
// one non-null author for another.
func (s *CH) SaveBlock(ctx context.Context, block *models.Block) error {
	existing, err := s.GetBlock(ctx, block.Height)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil && existing.AuthorKey != nil {
		if block.AuthorKey == nil || *block.AuthorKey != *existing.AuthorKey {
			if block.AuthorKey != nil && *block.AuthorKey != *existing.AuthorKey {
				return fmt.Errorf("height %d: %w", block.Height, ErrAuthorConflict)
			}
			// Re-save with a nil author keeps the attributed value.
			block.AuthorKey = existing.AuthorKey
		}
	}
	return s.insertBlock(ctx, block)
}

func (s *CH) insertBlock(ctx context.Context, block *models.Block) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		height, hash, parent_hash, slot, author_key, synced_at
	) VALUES`, s.Name, models.BlocksTableName)
	batch, err := s.Db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	if err := batch.Append(
		block.Height,
		block.Hash,
		block.ParentHash,
		block.Slot,
		block.AuthorKey,
		block.SyncedAt,
	); err != nil {
		return err
	}
	return batch.Send()
}

// GetBlock returns the latest (deduped) row for the given height.
func (s *CH) GetBlock(ctx context.Context, height uint64) (*models.Block, error) {
	var b models.Block
	query := fmt.Sprintf(`
		SELECT height, hash, parent_hash, slot, author_key, synced_at
		FROM "%s"."%s" FINAL
		WHERE height = ?
		LIMIT 1
	`, s.Name, models.BlocksTableName)
	err := s.Db.QueryRow(ctx, query, height).Scan(
		&b.Height,
		&b.Hash,
		&b.ParentHash,
		&b.Slot,
		&b.AuthorKey,
		&b.SyncedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block %d: %w", height, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// QueryBlocks returns blocks in [from, to] in ascending height order.
func (s *CH) QueryBlocks(ctx context.Context, from, to uint64, limit int) ([]models.Block, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT height, hash, parent_hash, slot, author_key, synced_at
		FROM "%s"."%s" FINAL
		WHERE height >= ? AND height <= ?
		ORDER BY height
		LIMIT ?
	`, s.Name, models.BlocksTableName)
	rows, err := s.Db.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Block
	for rows.Next() {
		var b models.Block
		if err := rows.Scan(&b.Height, &b.Hash, &b.ParentHash, &b.Slot, &b.AuthorKey, &b.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountBlocks counts distinct synced heights in [from, to].
func (s *CH) CountBlocks(ctx context.Context, from, to uint64) (uint64, error) {
	var count uint64
	query := fmt.Sprintf(`
		SELECT uniqExact(height)
		FROM "%s"."%s"
		WHERE height >= ? AND height <= ?
	`, s.Name, models.BlocksTableName)
	if err := s.Db.QueryRow(ctx, query, from, to).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ReattributeBlock is the explicit backfill/re-sync path around the
// author-conflict guard.
func (s *CH) ReattributeBlock(ctx context.Context, height uint64, authorKey *string) error {
	existing, err := s.GetBlock(ctx, height)
	if err != nil {
		return err
	}
	existing.AuthorKey = authorKey
	existing.SyncedAt = time.Now().UTC()
	return s.insertBlock(ctx, existing)
}

// SaveCommittee persists a snapshot keyed by sidechain epoch; existing epochs
// are immutable and the write becomes a no-op.
func (s *CH) SaveCommittee(ctx context.Context, snapshot *models.CommitteeSnapshot) error {
	if _, err := s.GetCommittee(ctx, snapshot.SidechainEpoch); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		sidechain_epoch, authorities, captured_at
	) VALUES`, s.Name, models.CommitteesTableName)
	batch, err := s.Db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	if err := batch.Append(snapshot.SidechainEpoch, snapshot.Authorities, snapshot.CapturedAt); err != nil {
		return err
	}
	return batch.Send()
}

// GetCommittee returns the snapshot for one sidechain epoch.
func (s *CH) GetCommittee(ctx context.Context, sidechainEpoch uint64) (*models.CommitteeSnapshot, error) {
	var snap models.CommitteeSnapshot
	query := fmt.Sprintf(`
		SELECT sidechain_epoch, authorities, captured_at
		FROM "%s"."%s"
		WHERE sidechain_epoch = ?
		LIMIT 1
	`, s.Name, models.CommitteesTableName)
	err := s.Db.QueryRow(ctx, query, sidechainEpoch).Scan(&snap.SidechainEpoch, &snap.Authorities, &snap.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("committee for sidechain epoch %d: %w", sidechainEpoch, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// UpsertValidators merges registry entries, never lowering is_ours.
func (s *CH) UpsertValidators(ctx context.Context, validators []models.Validator) error {
	if len(validators) == 0 {
		return nil
	}

	existing, err := s.ListValidators(ctx)
	if err != nil {
		return err
	}
	ours := make(map[string]bool, len(existing))
	for _, v := range existing {
		if v.IsOurs {
			ours[v.SidechainKey] = true
		}
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		sidechain_key, aura_key, mainchain_key, name, is_ours, updated_at
	) VALUES`, s.Name, models.ValidatorsTableName)
	batch, err := s.Db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	now := time.Now().UTC()
	for _, v := range validators {
		isOurs := v.IsOurs || ours[v.SidechainKey]
		if err := batch.Append(v.SidechainKey, v.AuraKey, v.MainchainKey, v.Name, utils.BoolToUInt8(isOurs), now); err != nil {
			return err
		}
	}
	return batch.Send()
}

// ListValidators returns all known validators.
func (s *CH) ListValidators(ctx context.Context) ([]models.Validator, error) {
	query := fmt.Sprintf(`
		SELECT sidechain_key, aura_key, mainchain_key, name, is_ours, updated_at
		FROM "%s"."%s" FINAL
		ORDER BY sidechain_key
	`, s.Name, models.ValidatorsTableName)
	rows, err := s.Db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Validator
	for rows.Next() {
		var v models.Validator
		var isOurs uint8
		if err := rows.Scan(&v.SidechainKey, &v.AuraKey, &v.MainchainKey, &v.Name, &isOurs, &v.UpdatedAt); err != nil {
			return nil, err
		}
		v.IsOurs = isOurs != 0
		out = append(out, v)
	}
	return out, rows.Err()
}

// LastSynced returns the sync cursor.
func (s *CH) LastSynced(ctx context.Context) (uint64, bool, error) {
	var height uint64
	query := fmt.Sprintf(`
		SELECT last_synced_block
		FROM "%s"."%s" FINAL
		WHERE id = 1
		LIMIT 1
	`, s.Name, models.SyncProgressTableName)
	err := s.Db.QueryRow(ctx, query).Scan(&height)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return height, true, nil
}

// AdvanceCursor moves the cursor to height; regression is a caller defect.
func (s *CH) AdvanceCursor(ctx context.Context, height uint64) error {
	current, ok, err := s.LastSynced(ctx)
	if err != nil {
		return err
	}
	if ok && height < current {
		return fmt.Errorf("advance to %d behind %d: %w", height, current, ErrCursorRegress)
	}
	return s.writeCursor(ctx, height)
}

// ResetCursor rewinds the cursor for an explicit re-sync.
func (s *CH) ResetCursor(ctx context.Context, height uint64) error {
	return s.writeCursor(ctx, height)
}

func (s *CH) writeCursor(ctx context.Context, height uint64) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (id, last_synced_block, updated_at) VALUES`, s.Name, models.SyncProgressTableName)
	batch, err := s.Db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	if err := batch.Append(uint8(1), height, time.Now().UTC()); err != nil {
		return err
	}
	return batch.Send()
}

// Close terminates the underlying ClickHouse connection.
func (s *CH) Close() error {
	return s.Db.Close()
}
