package tiletex

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// ErrInvalidTileConfig is returned when a tile pool is configured with a
// non-positive content size or a negative border.
var ErrInvalidTileConfig = errors.New("tiletex: invalid tile configuration")

// TilePool is a free list of recycled tiles.
//
// Tiles keep their canvas surface while pooled, so reusing a tile reuses
// its GPU allocation instead of creating and destroying one per image.
//
// Thread safety: Get and Put are safe for concurrent use. The lock guards
// the free list only; tile content belongs to whichever texture owns the tile.
type TilePool struct {
	contentSize int
	borderSize  int

	mu   sync.Mutex
	head *Tile
	free int

	allocated atomic.Int64
}

// NewTilePool creates a pool of tiles with the given content size and
// border width. Tile surfaces are contentSize + 2*borderSize on each side.
func NewTilePool(contentSize, borderSize int) (*TilePool, error) {
	if contentSize <= 0 || borderSize < 0 {
		return nil, ErrInvalidTileConfig
	}
	return &TilePool{
		contentSize: contentSize,
		borderSize:  borderSize,
	}, nil
}

var (
	defaultPoolOnce sync.Once
	defaultPool     *TilePool
)

// DefaultTilePool returns the package-level pool using DefaultContentSize
// and DefaultBorderSize.
func DefaultTilePool() *TilePool {
	defaultPoolOnce.Do(func() {
		defaultPool = &TilePool{
			contentSize: DefaultContentSize,
			borderSize:  DefaultBorderSize,
		}
	})
	return defaultPool
}

// ContentSize returns the nominal content size of tiles from this pool.
func (p *TilePool) ContentSize() int { return p.contentSize }

// BorderSize returns the border width of tiles from this pool.
func (p *TilePool) BorderSize() int { return p.borderSize }

// TileSize returns the side length of the tile surface.
func (p *TilePool) TileSize() int { return p.contentSize + 2*p.borderSize }

// Descriptor describes the surface every tile of this pool uses.
func (p *TilePool) Descriptor() TileDescriptor {
	size := uint32(p.TileSize()) //nolint:gosec // validated positive in NewTilePool
	return TileDescriptor{
		Size:   gputypes.NewExtent2D(size, size),
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	}
}

// Get returns a tile from the free list, or a newly allocated one when the
// list is empty. The caller must set offsets, size and pixel source before
// use; no prior content is guaranteed.
func (p *TilePool) Get() *Tile {
	p.mu.Lock()
	t := p.head
	if t != nil {
		p.head = t.nextFree
		t.nextFree = nil
		t.pooled = false
		p.free--
	}
	p.mu.Unlock()

	if t == nil {
		t = &Tile{pool: p}
		p.allocated.Add(1)
	}
	return t
}

// Put invalidates the tile content, clears its pixel source and pushes it
// onto the free list. The former owner must not touch the tile afterwards.
//
// Putting a tile that is already pooled, or that belongs to another pool,
// is ignored.
func (p *TilePool) Put(t *Tile) {
	if t == nil {
		return
	}
	if t.pool != p {
		Logger().Warn("tiletex: tile returned to foreign pool")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t.pooled {
		Logger().Debug("tiletex: tile freed twice", "x", t.offsetX, "y", t.offsetY)
		return
	}
	t.invalidate()
	t.pooled = true
	t.nextFree = p.head
	p.head = t
	p.free++
}

// Len returns the number of tiles currently on the free list.
func (p *TilePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}

// Allocated returns the number of tiles this pool has ever allocated.
func (p *TilePool) Allocated() int {
	return int(p.allocated.Load())
}

// Drain empties the free list, handing every pooled tile to release (for
// example TileReleaser.ReleaseTile) so its surface can be destroyed. Drained
// tiles are dropped; later Get calls allocate fresh ones.
//
// Drain must be called on the render goroutine when release touches the canvas.
func (p *TilePool) Drain(release func(*Tile)) {
	p.mu.Lock()
	head := p.head
	p.head = nil
	p.free = 0
	p.mu.Unlock()

	for t := head; t != nil; {
		next := t.nextFree
		t.nextFree = nil
		if release != nil {
			release(t)
		}
		t.texture = nil
		t = next
	}
}
