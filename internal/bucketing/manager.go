package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

// BucketingManager maps string keys onto a fixed number of buckets using
// murmur3. The same key always lands in the same bucket for a given count.
type BucketingManager struct {
	buckets    int
	hasherPool sync.Pool
}

func NewBucketingManager(buckets int) *BucketingManager {
	if buckets < 1 {
		buckets = 1
	}

	bm := &BucketingManager{buckets: buckets}

	// Create pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// Bucket returns the bucket for key in [0, Buckets()).
func (bm *BucketingManager) Bucket(key string) int {
	return int(bm.Hash(key) % uint64(bm.buckets))
}

// Hash returns the 64-bit murmur3 hash of key.
func (bm *BucketingManager) Hash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	_, _ = hasher.Write([]byte(key))
	return hasher.Sum64()
}

func (bm *BucketingManager) Buckets() int {
	return bm.buckets
}
