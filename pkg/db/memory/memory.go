// Package memory is a mutex-guarded in-memory Store. It backs unit tests and
// STORE=memory runs where a ClickHouse instance is not worth standing up; it
// enforces the same invariants as the ClickHouse store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
)

type Store struct {
	mu         sync.RWMutex
	blocks     map[uint64]models.Block
	committees map[uint64]models.CommitteeSnapshot
	validators map[string]models.Validator
	cursor     uint64
	cursorSet  bool
}

func New() *Store {
	return &Store{
		blocks:     make(map[uint64]models.Block),
		committees: make(map[uint64]models.CommitteeSnapshot),
		validators: make(map[string]models.Validator),
	}
}

var _ db.Store = (*Store)(nil)

func (s *Store) SaveBlock(_ context.Context, block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *block
	if existing, ok := s.blocks[block.Height]; ok && existing.AuthorKey != nil {
		if saved.AuthorKey != nil && *saved.AuthorKey != *existing.AuthorKey {
			return fmt.Errorf("height %d: %w", block.Height, db.ErrAuthorConflict)
		}
		if saved.AuthorKey == nil {
			saved.AuthorKey = existing.AuthorKey
		}
	}
	s.blocks[saved.Height] = saved
	return nil
}

func (s *Store) GetBlock(_ context.Context, height uint64) (*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[height]
	if !ok {
		return nil, fmt.Errorf("block %d: %w", height, db.ErrNotFound)
	}
	out := b
	return &out, nil
}

func (s *Store) QueryBlocks(_ context.Context, from, to uint64, limit int) ([]models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	var out []models.Block
	for h, b := range s.blocks {
		if h >= from && h <= to {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountBlocks(_ context.Context, from, to uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count uint64
	for h := range s.blocks {
		if h >= from && h <= to {
			count++
		}
	}
	return count, nil
}

func (s *Store) ReattributeBlock(_ context.Context, height uint64, authorKey *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blocks[height]
	if !ok {
		return fmt.Errorf("block %d: %w", height, db.ErrNotFound)
	}
	b.AuthorKey = authorKey
	b.SyncedAt = time.Now().UTC()
	s.blocks[height] = b
	return nil
}

func (s *Store) SaveCommittee(_ context.Context, snapshot *models.CommitteeSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.committees[snapshot.SidechainEpoch]; ok {
		return nil
	}
	saved := *snapshot
	saved.Authorities = append([]string(nil), snapshot.Authorities...)
	s.committees[saved.SidechainEpoch] = saved
	return nil
}

func (s *Store) GetCommittee(_ context.Context, sidechainEpoch uint64) (*models.CommitteeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.committees[sidechainEpoch]
	if !ok {
		return nil, fmt.Errorf("committee for sidechain epoch %d: %w", sidechainEpoch, db.ErrNotFound)
	}
	out := snap
	out.Authorities = append([]string(nil), snap.Authorities...)
	return &out, nil
}

func (s *Store) UpsertValidators(_ context.Context, validators []models.Validator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, v := range validators {
		if existing, ok := s.validators[v.SidechainKey]; ok && existing.IsOurs {
			v.IsOurs = true
		}
		v.UpdatedAt = now
		s.validators[v.SidechainKey] = v
	}
	return nil
}

func (s *Store) ListValidators(_ context.Context) ([]models.Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Validator, 0, len(s.validators))
	for _, v := range s.validators {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SidechainKey < out[j].SidechainKey })
	return out, nil
}

func (s *Store) LastSynced(_ context.Context) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, s.cursorSet, nil
}

func (s *Store) AdvanceCursor(_ context.Context, height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursorSet && height < s.cursor {
		return fmt.Errorf("advance to %d behind %d: %w", height, s.cursor, db.ErrCursorRegress)
	}
	s.cursor = height
	s.cursorSet = true
	return nil
}

func (s *Store) ResetCursor(_ context.Context, height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor = height
	s.cursorSet = true
	return nil
}

func (s *Store) Close() error { return nil }
