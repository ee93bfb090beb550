package timing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testnet(t *testing.T) Preset {
	p, err := ByName("testnet")
	require.NoError(t, err)
	return p
}

func TestPresetRatios(t *testing.T) {
	p := testnet(t)
	assert.Equal(t, uint64(12), p.EpochRatio())
	assert.Equal(t, uint64(1200), p.SlotsPerSidechainEpoch())

	m, err := ByName("mainnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), m.EpochRatio())
}

func TestProgress(t *testing.T) {
	p := testnet(t)

	idx, prog := p.Progress(0.915)
	assert.Equal(t, uint64(10), idx)
	assert.InDelta(t, 0.98, prog, 1e-6)

	idx, prog = p.Progress(0)
	assert.Equal(t, uint64(0), idx)
	assert.Equal(t, 0.0, prog)

	// Just below the boundary stays inside the last sidechain epoch.
	idx, _ = p.Progress(math.Nextafter(1, 0))
	assert.Equal(t, uint64(11), idx)
}

func TestProgressRejectsOutOfRange(t *testing.T) {
	p := testnet(t)
	assert.Panics(t, func() { p.Progress(1.0) })
	assert.Panics(t, func() { p.Progress(-0.01) })
	assert.Panics(t, func() { p.Progress(math.NaN()) })
}

func TestSidechainEpochForSlot(t *testing.T) {
	p := testnet(t)
	assert.Equal(t, uint64(0), p.SidechainEpochForSlot(0))
	assert.Equal(t, uint64(0), p.SidechainEpochForSlot(1199))
	assert.Equal(t, uint64(1), p.SidechainEpochForSlot(1200))
	assert.Equal(t, uint64(10), p.SidechainEpochForSlot(12000))
}

func TestLiveProgress(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	dur := 2 * time.Hour

	// Half the epoch remains.
	next := now.Add(time.Hour).UnixMilli()
	assert.InDelta(t, 0.5, LiveProgress(next, now, dur), 1e-9)

	// Boundary in the past clamps below 1.
	past := now.Add(-time.Minute).UnixMilli()
	assert.Less(t, LiveProgress(past, now, dur), 1.0)

	// Boundary further away than one epoch clamps to 0.
	far := now.Add(3 * time.Hour).UnixMilli()
	assert.Equal(t, 0.0, LiveProgress(far, now, dur))
}

func TestRegister(t *testing.T) {
	Register(Preset{
		Name:           "devnet",
		MainchainEpoch: 2 * time.Hour,
		SidechainEpoch: 10 * time.Minute,
		BlockTime:      time.Second,
	})
	p, err := ByName("devnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), p.EpochRatio())

	_, err = ByName("no-such-network")
	assert.Error(t, err)
}
