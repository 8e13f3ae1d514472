// Package pixpool provides a size-bucketed pool of *image.RGBA buffers.
//
// It backs the short-lived buffers of the tile streaming pipeline: staging
// buffers used while uploading a tile, CPU tile surfaces of the software
// canvas, and decoded animation frames.
package pixpool

import (
	"image"
	"sync"
)

// Pool is a thread-safe pool for reusing *image.RGBA buffers.
//
// Pool groups buffers by their dimensions, allowing efficient reuse of
// identically-sized buffers.
//
// Thread safety: All methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buckets map[poolKey][]*image.RGBA
	maxSize int // max buffers per bucket
}

// poolKey identifies a bucket of identically sized buffers.
type poolKey struct {
	width  int
	height int
}

// New creates a pool retaining at most maxPerBucket buffers per size.
// A maxPerBucket of 0 means unlimited.
func New(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[poolKey][]*image.RGBA),
		maxSize: maxPerBucket,
	}
}

// Get retrieves a buffer of the given size with origin (0, 0).
// Reused buffers are cleared to transparent black.
// Returns nil for non-positive dimensions.
func (p *Pool) Get(width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return nil
	}
	key := poolKey{width: width, height: height}

	p.mu.Lock()
	bucket := p.buckets[key]
	if n := len(bucket); n > 0 {
		img := bucket[n-1]
		bucket[n-1] = nil
		p.buckets[key] = bucket[:n-1]
		p.mu.Unlock()

		clear(img.Pix)
		return img
	}
	p.mu.Unlock()

	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// Put returns a buffer to the pool for reuse.
// Buffers not anchored at the origin are discarded, as are buffers arriving
// at a full bucket. Nil is a no-op.
func (p *Pool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	key := poolKey{width: img.Rect.Dx(), height: img.Rect.Dy()}

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[key]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[key] = append(bucket, img)
}

// Len returns the number of pooled buffers of the given size.
func (p *Pool) Len(width, height int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets[poolKey{width: width, height: height}])
}

// defaultPool is the package-level pool for convenient usage.
var defaultPool = New(16)

// Get retrieves a buffer from the default pool.
func Get(width, height int) *image.RGBA {
	return defaultPool.Get(width, height)
}

// Put returns a buffer to the default pool.
func Put(img *image.RGBA) {
	defaultPool.Put(img)
}
