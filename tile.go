package tiletex

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/tiletex/internal/pixpool"
)

// Default tile geometry. A 254-pixel content area plus a 1-pixel border on
// each side gives a 256×256 GPU surface.
const (
	DefaultContentSize = 254
	DefaultBorderSize  = 1
)

// Tile is one fixed-size GPU surface covering a region of a larger image
// plus a replicated border that keeps bilinear filtering from sampling
// outside the content.
//
// A Tile is either pooled (owned by a TilePool, content undefined) or owned
// by exactly one TiledTexture. Fields other than the pixel source are only
// touched under the owning texture's lock or on the render goroutine.
type Tile struct {
	pool *TilePool

	offsetX, offsetY            int
	contentWidth, contentHeight int

	// src is the image this tile copies from on its next upload. It is
	// taken (swapped to nil) exactly once per upload.
	src atomic.Pointer[pixelSource]

	// texture is the canvas-owned surface handle. It survives pooling so
	// that recycled tiles reuse their GPU allocation.
	texture any
	loaded  bool

	nextFree *Tile // guarded by pool.mu
	pooled   bool  // guarded by pool.mu
}

type pixelSource struct {
	img image.Image
}

// Offset returns the position of the tile content within the owning image.
func (t *Tile) Offset() image.Point {
	return image.Point{X: t.offsetX, Y: t.offsetY}
}

// ContentWidth returns the width of the content area, at most the pool's
// content size and smaller for tiles on the right edge.
func (t *Tile) ContentWidth() int { return t.contentWidth }

// ContentHeight returns the height of the content area.
func (t *Tile) ContentHeight() int { return t.contentHeight }

// ContentRect returns the content area in image coordinates.
func (t *Tile) ContentRect() Rect {
	return RectXYWH(float32(t.offsetX), float32(t.offsetY), float32(t.contentWidth), float32(t.contentHeight))
}

// Border returns the border width in pixels.
func (t *Tile) Border() int { return t.pool.borderSize }

// Size returns the side length of the tile surface (content + 2*border).
func (t *Tile) Size() int { return t.pool.TileSize() }

// Descriptor describes the GPU surface backing this tile.
func (t *Tile) Descriptor() TileDescriptor {
	return t.pool.Descriptor()
}

// Texture returns the canvas-owned surface, or nil if none was created yet.
func (t *Tile) Texture() any { return t.texture }

// SetTexture stores the canvas-owned surface. Called by Canvas
// implementations from UploadTile.
func (t *Tile) SetTexture(tex any) { t.texture = tex }

// Loaded reports whether the tile surface holds valid content.
func (t *Tile) Loaded() bool { return t.loaded }

// setSource installs img as the pixel source for the next upload.
func (t *Tile) setSource(img image.Image) {
	if img == nil {
		t.src.Store(nil)
		return
	}
	t.src.Store(&pixelSource{img: img})
}

// takeSource returns the pending pixel source and clears it, so a concurrent
// free cannot make an upload read the same data twice.
func (t *Tile) takeSource() image.Image {
	s := t.src.Swap(nil)
	if s == nil {
		return nil
	}
	return s.img
}

// hasSource reports whether an upload is pending.
func (t *Tile) hasSource() bool {
	return t.src.Load() != nil
}

// invalidate marks the surface content stale and drops the pixel source.
// The surface handle itself is kept for reuse.
func (t *Tile) invalidate() {
	t.loaded = false
	t.src.Store(nil)
}

// upload copies the pending pixel source into the tile surface through c.
// It returns false without touching c when the source was already taken,
// which happens when the owning texture was recycled concurrently.
func (t *Tile) upload(c Canvas) (bool, error) {
	src := t.takeSource()
	if src == nil {
		return false, nil
	}

	size := t.Size()
	stage := pixpool.Get(size, size)
	defer pixpool.Put(stage)

	t.fill(stage, src)

	if err := c.UploadTile(t, stage); err != nil {
		t.loaded = false
		return false, fmt.Errorf("tiletex: upload tile at (%d,%d): %w", t.offsetX, t.offsetY, err)
	}
	t.loaded = true
	return true, nil
}

// fill blits src into stage so that the content starts at (border, border),
// then replicates edge lines where the content ends inside the tile.
// Borders between two interior tiles already hold the neighbor's pixels
// from the blit and are left alone.
func (t *Tile) fill(stage *image.RGBA, src image.Image) {
	b := src.Bounds()
	border := t.pool.borderSize
	size := t.pool.TileSize()

	x := border - t.offsetX
	y := border - t.offsetY
	r := b.Dx() + x
	bottom := b.Dy() + y

	xdraw.Draw(stage, stage.Bounds(), src, image.Pt(b.Min.X-x, b.Min.Y-y), xdraw.Src)

	if x > 0 {
		copyColumn(stage, x, x-1)
	}
	if y > 0 {
		copyRow(stage, y, y-1)
	}
	if r < size {
		copyColumn(stage, r-1, r)
	}
	if bottom < size {
		copyRow(stage, bottom-1, bottom)
	}
}

func copyColumn(img *image.RGBA, from, to int) {
	w := img.Rect.Dx()
	if from < 0 || from >= w || to < 0 || to >= w {
		return
	}
	for py := 0; py < img.Rect.Dy(); py++ {
		row := img.Pix[py*img.Stride:]
		copy(row[to*4:to*4+4], row[from*4:from*4+4])
	}
}

func copyRow(img *image.RGBA, from, to int) {
	h := img.Rect.Dy()
	if from < 0 || from >= h || to < 0 || to >= h {
		return
	}
	n := img.Rect.Dx() * 4
	copy(img.Pix[to*img.Stride:to*img.Stride+n], img.Pix[from*img.Stride:from*img.Stride+n])
}

// TileDescriptor describes the GPU surface of a tile.
type TileDescriptor struct {
	Size   gputypes.Extent3D
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}
