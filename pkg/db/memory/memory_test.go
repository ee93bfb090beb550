package memory

import (
	"context"
	"testing"
	"time"

	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func block(height uint64, author *string) *models.Block {
	return &models.Block{
		Height:     height,
		Hash:       "0xhash",
		ParentHash: "0xparent",
		Slot:       height * 2,
		AuthorKey:  author,
		SyncedAt:   time.Now().UTC(),
	}
}

func TestSaveBlockAuthorConflict(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.SaveBlock(ctx, block(10, strPtr("0xaa"))))

	// Same author again is idempotent.
	require.NoError(t, store.SaveBlock(ctx, block(10, strPtr("0xaa"))))

	// A differing non-null author is refused.
	err := store.SaveBlock(ctx, block(10, strPtr("0xbb")))
	require.ErrorIs(t, err, db.ErrAuthorConflict)

	// A nil author never clears an attributed block.
	require.NoError(t, store.SaveBlock(ctx, block(10, nil)))
	got, err := store.GetBlock(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, got.AuthorKey)
	assert.Equal(t, "0xaa", *got.AuthorKey)
}

func TestReattributeBlock(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.SaveBlock(ctx, block(5, strPtr("0xaa"))))

	// The explicit path may replace any author.
	require.NoError(t, store.ReattributeBlock(ctx, 5, strPtr("0xbb")))
	got, err := store.GetBlock(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "0xbb", *got.AuthorKey)

	err = store.ReattributeBlock(ctx, 99, strPtr("0xcc"))
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestQueryAndCountBlocks(t *testing.T) {
	ctx := context.Background()
	store := New()

	for h := uint64(1); h <= 20; h++ {
		require.NoError(t, store.SaveBlock(ctx, block(h, nil)))
	}

	got, err := store.QueryBlocks(ctx, 5, 15, 100)
	require.NoError(t, err)
	require.Len(t, got, 11)
	assert.Equal(t, uint64(5), got[0].Height)
	assert.Equal(t, uint64(15), got[len(got)-1].Height)

	limited, err := store.QueryBlocks(ctx, 5, 15, 3)
	require.NoError(t, err)
	require.Len(t, limited, 3)
	assert.Equal(t, uint64(7), limited[2].Height)

	count, err := store.CountBlocks(ctx, 5, 15)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), count)
}

func TestCommitteeInsertOnce(t *testing.T) {
	ctx := context.Background()
	store := New()

	first := &models.CommitteeSnapshot{
		SidechainEpoch: 42,
		Authorities:    []string{"0xaa", "0xbb"},
		CapturedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.SaveCommittee(ctx, first))

	// A second save for the same epoch must not change the snapshot.
	second := &models.CommitteeSnapshot{
		SidechainEpoch: 42,
		Authorities:    []string{"0xcc"},
		CapturedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.SaveCommittee(ctx, second))

	got, err := store.GetCommittee(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xbb"}, got.Authorities)

	_, err = store.GetCommittee(ctx, 43)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestUpsertValidatorsMonotoneIsOurs(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.UpsertValidators(ctx, []models.Validator{
		{SidechainKey: "0x01", AuraKey: "0xa1", IsOurs: true},
		{SidechainKey: "0x02", AuraKey: "0xa2", IsOurs: false},
	}))

	// A refresh that no longer sees our key must not clear the flag.
	require.NoError(t, store.UpsertValidators(ctx, []models.Validator{
		{SidechainKey: "0x01", AuraKey: "0xa1", IsOurs: false},
		{SidechainKey: "0x02", AuraKey: "0xa2", IsOurs: true},
	}))

	got, err := store.ListValidators(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsOurs)
	assert.True(t, got[1].IsOurs)
}

func TestCursor(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, ok, err := store.LastSynced(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.AdvanceCursor(ctx, 100))
	require.NoError(t, store.AdvanceCursor(ctx, 101))
	require.NoError(t, store.AdvanceCursor(ctx, 101))

	err = store.AdvanceCursor(ctx, 50)
	require.ErrorIs(t, err, db.ErrCursorRegress)

	// Explicit rewinds go through ResetCursor.
	require.NoError(t, store.ResetCursor(ctx, 50))

	h, ok, err := store.LastSynced(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(50), h)
}
