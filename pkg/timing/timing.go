package timing

import (
	"fmt"
	"math"
	"time"
)

// Preset carries the epoch and block timing constants of one network. A
// mainchain epoch always contains a whole number of sidechain epochs; the
// ratio is configured per network, never discovered from the node.
type Preset struct {
	Name           string
	MainchainEpoch time.Duration
	SidechainEpoch time.Duration
	BlockTime      time.Duration
}

var presets = map[string]Preset{
	"testnet": {
		Name:           "testnet",
		MainchainEpoch: 24 * time.Hour,
		SidechainEpoch: 2 * time.Hour,
		BlockTime:      6 * time.Second,
	},
	"mainnet": {
		Name:           "mainnet",
		MainchainEpoch: 120 * time.Hour,
		SidechainEpoch: 10 * time.Hour,
		BlockTime:      6 * time.Second,
	},
}

// ByName returns the preset registered under name.
func ByName(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown network preset %q", name)
	}
	return p, nil
}

// Register adds or replaces a network preset. New networks are data-only;
// nothing outside this package changes when one is added.
func Register(p Preset) {
	presets[p.Name] = p
}

// EpochRatio returns how many sidechain epochs fit in one mainchain epoch.
func (p Preset) EpochRatio() uint64 {
	return uint64(p.MainchainEpoch / p.SidechainEpoch)
}

// SlotsPerSidechainEpoch returns the number of block production slots in one
// sidechain epoch.
func (p Preset) SlotsPerSidechainEpoch() uint64 {
	return uint64(p.SidechainEpoch / p.BlockTime)
}

// SidechainEpochForSlot maps an absolute slot number to its sidechain epoch.
func (p Preset) SidechainEpochForSlot(slot uint64) uint64 {
	return slot / p.SlotsPerSidechainEpoch()
}

// Progress converts mainchain epoch progress into the in-flight sidechain
// epoch index within that mainchain epoch and the progress through it.
// mainchainProgress outside [0,1) is a caller bug and panics.
func (p Preset) Progress(mainchainProgress float64) (uint64, float64) {
	if mainchainProgress < 0 || mainchainProgress >= 1 || math.IsNaN(mainchainProgress) {
		panic(fmt.Sprintf("mainchain progress %v outside [0,1)", mainchainProgress))
	}
	scaled := mainchainProgress * float64(p.EpochRatio())
	idx := math.Floor(scaled)
	return uint64(idx), scaled - idx
}

// LiveProgress derives epoch progress from the node-reported timestamp of the
// next epoch boundary (milliseconds since the Unix epoch):
//
//	progress = (duration - (nextEpoch - now)) / duration
//
// The result is clamped to [0,1) so clock skew around a boundary cannot feed
// an out-of-range value into Progress.
func LiveProgress(nextEpochMs int64, now time.Time, epochDuration time.Duration) float64 {
	remaining := time.Duration(nextEpochMs)*time.Millisecond - time.Duration(now.UnixMilli())*time.Millisecond
	progress := float64(epochDuration-remaining) / float64(epochDuration)
	if progress < 0 {
		return 0
	}
	if progress >= 1 {
		return math.Nextafter(1, 0)
	}
	return progress
}
