package attribution

import (
	"math"

	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultCacheSize bounds the committee cache. Committees rotate once per
// sidechain epoch, so even deep catch-up only touches a handful of distinct
// epochs at a time.
const DefaultCacheSize = 32

// committeeCache memoizes resolved committees keyed by SIDECHAIN epoch.
// The sidechain epoch is the rotation unit: keying by the enclosing
// mainchain epoch would serve one committee for twelve rotations and
// misattribute most blocks. When full, the lowest epoch is evicted — during
// ordered sync the lowest key is the one least likely to be needed again.
type committeeCache struct {
	entries *xsync.Map[uint64, []string]
	maxSize int
}

func newCommitteeCache(maxSize int) *committeeCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &committeeCache{
		entries: xsync.NewMap[uint64, []string](),
		maxSize: maxSize,
	}
}

func (c *committeeCache) get(sidechainEpoch uint64) ([]string, bool) {
	return c.entries.Load(sidechainEpoch)
}

func (c *committeeCache) put(sidechainEpoch uint64, authorities []string) {
	c.entries.Store(sidechainEpoch, authorities)
	for c.entries.Size() > c.maxSize {
		lowest := uint64(math.MaxUint64)
		c.entries.Range(func(epoch uint64, _ []string) bool {
			if epoch < lowest {
				lowest = epoch
			}
			return true
		})
		c.entries.Delete(lowest)
	}
}
