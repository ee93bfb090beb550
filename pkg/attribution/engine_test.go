package attribution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/memory"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
	"github.com/parsec-labs/sidewatch/pkg/rpc"
	"github.com/parsec-labs/sidewatch/pkg/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// 60 slots per sidechain epoch keeps the arithmetic legible.
var testPreset = timing.Preset{
	Name:           "unit",
	MainchainEpoch: 12 * time.Minute,
	SidechainEpoch: time.Minute,
	BlockTime:      time.Second,
}

// fakeResolver serves committees by block hash and counts lookups.
type fakeResolver struct {
	outcomes map[string]CommitteeOutcome
	errs     map[string]error
	calls    int
}

func (f *fakeResolver) CommitteeAt(_ context.Context, blockHash string) (CommitteeOutcome, error) {
	f.calls++
	if err, ok := f.errs[blockHash]; ok {
		return CommitteeOutcome{}, err
	}
	if outcome, ok := f.outcomes[blockHash]; ok {
		return outcome, nil
	}
	return CommitteeOutcome{Reason: ReasonUnknownBlock}, nil
}

func header(height, slot uint64) *rpc.Header {
	return &rpc.Header{
		Hash:       fmt.Sprintf("0xblock%d", height),
		Number:     height,
		ParentHash: fmt.Sprintf("0xblock%d", height-1),
		DigestLogs: []string{auraSlotDigest(slot)},
	}
}

func registered(auraKey, sidechainKey string) models.Validator {
	return models.Validator{AuraKey: auraKey, SidechainKey: sidechainKey}
}

func TestAttributeRotation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	resolver := &fakeResolver{outcomes: map[string]CommitteeOutcome{
		"0xblock1": {Authorities: []string{"0xa0", "0xa1", "0xa2"}},
	}}
	engine := NewEngine(zap.NewNop(), testPreset, resolver, store)
	engine.SetValidators([]models.Validator{
		registered("0xa0", "0xsc0"),
		registered("0xa1", "0xsc1"),
		registered("0xa2", "0xsc2"),
	})

	// Consecutive slots in the same epoch walk the committee round-robin.
	for i, want := range []string{"0xsc0", "0xsc1", "0xsc2", "0xsc0"} {
		b, err := engine.Attribute(ctx, header(uint64(i+1), uint64(i)))
		require.NoError(t, err)
		require.NotNil(t, b.AuthorKey, "slot %d", i)
		assert.Equal(t, want, *b.AuthorKey, "slot %d", i)
	}

	// One resolver call served the whole epoch.
	assert.Equal(t, 1, resolver.calls)

	// The snapshot was persisted once, keyed by sidechain epoch 0.
	snap, err := store.GetCommittee(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa0", "0xa1", "0xa2"}, snap.Authorities)
}

// Two sidechain epochs inside the same mainchain epoch must resolve two
// different committees. A cache keyed any coarser than the sidechain epoch
// would serve the first committee for both and misattribute the second.
func TestAttributeCacheKeyedBySidechainEpoch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	resolver := &fakeResolver{outcomes: map[string]CommitteeOutcome{
		"0xblock1": {Authorities: []string{"0xa0"}},
		"0xblock2": {Authorities: []string{"0xa1"}},
	}}
	engine := NewEngine(zap.NewNop(), testPreset, resolver, store)
	engine.SetValidators([]models.Validator{
		registered("0xa0", "0xsc0"),
		registered("0xa1", "0xsc1"),
	})

	// Slot 59 is the last slot of sidechain epoch 0, slot 60 the first of
	// epoch 1; both sit in mainchain epoch 0.
	b1, err := engine.Attribute(ctx, header(1, 59))
	require.NoError(t, err)
	b2, err := engine.Attribute(ctx, header(2, 60))
	require.NoError(t, err)

	require.NotNil(t, b1.AuthorKey)
	require.NotNil(t, b2.AuthorKey)
	assert.Equal(t, "0xsc0", *b1.AuthorKey)
	assert.Equal(t, "0xsc1", *b2.AuthorKey)
	assert.Equal(t, 2, resolver.calls)
}

func TestAttributeUnavailableNotCached(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	resolver := &fakeResolver{outcomes: map[string]CommitteeOutcome{
		"0xblock1": {Reason: ReasonStatePruned},
		"0xblock2": {Authorities: []string{"0xa0"}},
	}}
	engine := NewEngine(zap.NewNop(), testPreset, resolver, store)
	engine.SetValidators([]models.Validator{registered("0xa0", "0xsc0")})

	// Pruned state yields a gap-free row with a nil author.
	b1, err := engine.Attribute(ctx, header(1, 0))
	require.NoError(t, err)
	assert.Nil(t, b1.AuthorKey)
	assert.Equal(t, uint64(0), b1.Slot)
	_, err = store.GetCommittee(ctx, 0)
	assert.ErrorIs(t, err, db.ErrNotFound)

	// The failure was not cached: the same epoch resolves on the next try.
	b2, err := engine.Attribute(ctx, header(2, 1))
	require.NoError(t, err)
	require.NotNil(t, b2.AuthorKey)
	assert.Equal(t, "0xsc0", *b2.AuthorKey)
	assert.Equal(t, 2, resolver.calls)
}

func TestAttributeTransientErrorBubbles(t *testing.T) {
	ctx := context.Background()
	resolver := &fakeResolver{errs: map[string]error{
		"0xblock1": fmt.Errorf("connection refused"),
	}}
	engine := NewEngine(zap.NewNop(), testPreset, resolver, memory.New())

	_, err := engine.Attribute(ctx, header(1, 0))
	require.Error(t, err)
}

func TestAttributeUnregisteredAuthority(t *testing.T) {
	ctx := context.Background()
	resolver := &fakeResolver{outcomes: map[string]CommitteeOutcome{
		"0xblock1": {Authorities: []string{"0xorphan"}},
	}}
	engine := NewEngine(zap.NewNop(), testPreset, resolver, memory.New())

	// The slot holder exists but has no registry entry: slot is recorded,
	// author stays nil.
	b, err := engine.Attribute(ctx, header(1, 7))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), b.Slot)
	assert.Nil(t, b.AuthorKey)
}

func TestAttributeUndecodableDigest(t *testing.T) {
	ctx := context.Background()
	resolver := &fakeResolver{}
	engine := NewEngine(zap.NewNop(), testPreset, resolver, memory.New())

	b, err := engine.Attribute(ctx, &rpc.Header{Hash: "0xblock1", Number: 1, DigestLogs: []string{"0x00"}})
	require.NoError(t, err)
	assert.Nil(t, b.AuthorKey)
	// No committee lookup happens without a slot.
	assert.Equal(t, 0, resolver.calls)
}

// failingStore fails a configured number of SaveCommittee calls before
// delegating to the in-memory store.
type failingStore struct {
	*memory.Store
	saveCommitteeFails int
}

func (f *failingStore) SaveCommittee(ctx context.Context, snapshot *models.CommitteeSnapshot) error {
	if f.saveCommitteeFails > 0 {
		f.saveCommitteeFails--
		return fmt.Errorf("connection reset")
	}
	return f.Store.SaveCommittee(ctx, snapshot)
}

// A transient snapshot write failure must not leave the committee cached, or
// the retry would serve the warm cache and the committees row would never be
// written.
func TestAttributeSnapshotWriteFailureNotCached(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New(), saveCommitteeFails: 1}
	resolver := &fakeResolver{outcomes: map[string]CommitteeOutcome{
		"0xblock1": {Authorities: []string{"0xa0"}},
		"0xblock2": {Authorities: []string{"0xa0"}},
	}}
	engine := NewEngine(zap.NewNop(), testPreset, resolver, store)
	engine.SetValidators([]models.Validator{registered("0xa0", "0xsc0")})

	_, err := engine.Attribute(ctx, header(1, 0))
	require.Error(t, err)

	// The retry resolves again and the snapshot lands.
	b, err := engine.Attribute(ctx, header(2, 1))
	require.NoError(t, err)
	require.NotNil(t, b.AuthorKey)

	snap, err := store.GetCommittee(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa0"}, snap.Authorities)
	assert.Equal(t, 2, resolver.calls)
}

// A deep pruned range logs one warning per sidechain epoch, not one per block.
func TestUnavailableWarnsOncePerEpoch(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	resolver := &fakeResolver{} // every lookup is ReasonUnknownBlock
	engine := NewEngine(zap.New(core), testPreset, resolver, memory.New())

	// Two full sidechain epochs of pruned blocks.
	for h := uint64(1); h <= 120; h++ {
		b, err := engine.Attribute(ctx, header(h, h-1))
		require.NoError(t, err)
		require.Nil(t, b.AuthorKey)
	}

	warned := logs.FilterMessage("committee unavailable for sidechain epoch")
	assert.Equal(t, 2, warned.Len())
}

// A registry refresh while attribution is running must never expose a
// half-built identity mapping.
func TestSetValidatorsSwapDuringAttribution(t *testing.T) {
	ctx := context.Background()
	resolver := &fakeResolver{outcomes: map[string]CommitteeOutcome{
		"0xblock1": {Authorities: []string{"0xa0"}},
	}}
	engine := NewEngine(zap.NewNop(), testPreset, resolver, memory.New())
	validators := []models.Validator{registered("0xa0", "0xsc0")}
	engine.SetValidators(validators)

	// Warm the committee cache so the loop below only exercises the lookup.
	_, err := engine.Attribute(ctx, header(1, 0))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			engine.SetValidators(validators)
		}
	}()

	for i := 0; i < 500; i++ {
		b, err := engine.Attribute(ctx, header(2, 1))
		require.NoError(t, err)
		require.NotNil(t, b.AuthorKey, "registered authority lost during refresh")
	}
	<-done
}

func TestCommitteeCacheEviction(t *testing.T) {
	cache := newCommitteeCache(3)
	for epoch := uint64(0); epoch < 5; epoch++ {
		cache.put(epoch, []string{fmt.Sprintf("0xa%d", epoch)})
	}

	// The lowest epochs were evicted first.
	_, ok := cache.get(0)
	assert.False(t, ok)
	_, ok = cache.get(1)
	assert.False(t, ok)
	for epoch := uint64(2); epoch < 5; epoch++ {
		_, ok := cache.get(epoch)
		assert.True(t, ok, "epoch %d", epoch)
	}
}
