package tiletex

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
)

// Texture errors.
var (
	// ErrInvalidSize is returned when an image has a non-positive dimension.
	ErrInvalidSize = errors.New("tiletex: invalid image size")

	// ErrSizeMismatch is returned when a replacement frame does not match
	// the texture dimensions.
	ErrSizeMismatch = errors.New("tiletex: frame size does not match texture")

	// ErrRecycled is returned by operations on a recycled texture.
	ErrRecycled = errors.New("tiletex: texture recycled")
)

// TextureOption configures a TiledTexture during creation.
type TextureOption func(*textureOptions)

type textureOptions struct {
	pool     *TilePool
	recycler func(image.Image)
}

func defaultTextureOptions() textureOptions {
	return textureOptions{pool: DefaultTilePool()}
}

// WithTilePool makes the texture take its tiles from p instead of the
// default pool.
func WithTilePool(p *TilePool) TextureOption {
	return func(o *textureOptions) {
		if p != nil {
			o.pool = p
		}
	}
}

// WithImageRecycler registers fn to receive each source image once the
// texture no longer references it: after the last tile was uploaded, after a
// frame replacement dropped it, or on Recycle.
//
// fn may be called from the render goroutine or the goroutine calling
// SetImage or Recycle.
func WithImageRecycler(fn func(image.Image)) TextureOption {
	return func(o *textureOptions) {
		o.recycler = fn
	}
}

// TiledTexture is a large image split into tiles that are uploaded one at a
// time, so that a big upload never stalls a frame.
//
// Tiles are stored row-major; that order is also the upload order.
//
// Thread safety: UploadNextTile and the Draw methods must run on the render
// goroutine. IsReady, SetImage and Recycle may be called from any goroutine.
// The tile slice is guarded by a per-texture lock so draws never observe a
// half-recycled or half-replaced texture.
type TiledTexture struct {
	width, height int
	pool          *TilePool
	recycler      func(image.Image)

	mu          sync.Mutex
	tiles       []*Tile
	uploadIndex int
	image       image.Image // nil once every tile consumed it
	recycled    bool
}

// NewTiledTexture partitions img into tiles taken from the tile pool. No
// pixels are copied until the tiles are uploaded.
func NewTiledTexture(img image.Image, opts ...TextureOption) (*TiledTexture, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidSize)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, b.Dx(), b.Dy())
	}

	o := defaultTextureOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t := &TiledTexture{
		width:    b.Dx(),
		height:   b.Dy(),
		pool:     o.pool,
		recycler: o.recycler,
		image:    img,
	}
	t.tiles = t.partition(img)
	return t, nil
}

// partition covers [0,width)×[0,height) with tiles of the pool's content
// size, truncating the last row and column.
func (t *TiledTexture) partition(img image.Image) []*Tile {
	c := t.pool.ContentSize()
	cols := (t.width + c - 1) / c
	rows := (t.height + c - 1) / c

	tiles := make([]*Tile, 0, cols*rows)
	for y := 0; y < t.height; y += c {
		for x := 0; x < t.width; x += c {
			tile := t.pool.Get()
			tile.offsetX = x
			tile.offsetY = y
			tile.contentWidth = min(c, t.width-x)
			tile.contentHeight = min(c, t.height-y)
			tile.setSource(img)
			tiles = append(tiles, tile)
		}
	}
	return tiles
}

// Width returns the logical image width.
func (t *TiledTexture) Width() int { return t.width }

// Height returns the logical image height.
func (t *TiledTexture) Height() int { return t.height }

// TileCount returns the number of tiles, zero after Recycle.
func (t *TiledTexture) TileCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tiles)
}

// UploadedTiles returns the upload cursor.
func (t *TiledTexture) UploadedTiles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uploadIndex
}

// IsReady reports whether every tile has been uploaded.
func (t *TiledTexture) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uploadIndex == len(t.tiles)
}

// UploadNextTile uploads the tile at the cursor and advances it. It returns
// true once the texture is fully uploaded; further calls are no-ops that
// return true.
//
// A tile whose pixel source was cleared by a concurrent Recycle is skipped.
// Upload errors are logged and the tile is left unloaded.
//
// Must be called on the render goroutine.
func (t *TiledTexture) UploadNextTile(c Canvas) bool {
	t.mu.Lock()
	if t.uploadIndex == len(t.tiles) {
		t.mu.Unlock()
		return true
	}

	tile := t.tiles[t.uploadIndex]
	t.uploadIndex++
	if _, err := tile.upload(c); err != nil {
		Logger().Warn("tiletex: tile upload failed", "err", err)
	}

	done := t.uploadIndex == len(t.tiles)
	var consumed image.Image
	if done {
		consumed = t.image
		t.image = nil
	}
	t.mu.Unlock()

	if consumed != nil {
		t.freeImage(consumed)
	}
	return done
}

// SetImage replaces the source image, reusing the existing tiles in place,
// and rewinds the upload cursor so the new pixels get uploaded. Tiles keep
// showing the previous content until they are re-uploaded.
//
// img must have the texture dimensions. SetImage may be called from any
// goroutine; it is how animated textures feed new frames.
func (t *TiledTexture) SetImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidSize)
	}
	b := img.Bounds()
	if b.Dx() != t.width || b.Dy() != t.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch, b.Dx(), b.Dy(), t.width, t.height)
	}

	t.mu.Lock()
	if t.recycled {
		t.mu.Unlock()
		return ErrRecycled
	}
	prev := t.image
	t.image = img
	for _, tile := range t.tiles {
		tile.setSource(img)
	}
	t.uploadIndex = 0
	t.mu.Unlock()

	if prev != nil && prev != img {
		t.freeImage(prev)
	}
	return nil
}

// Draw draws the whole texture onto dst.
func (t *TiledTexture) Draw(c Canvas, dst Rect) {
	t.DrawRegion(c, RectXYWH(0, 0, float32(t.width), float32(t.height)), dst)
}

// DrawRegion draws the src region of the texture onto dst, scaling
// independently along each axis. Only tiles intersecting src are drawn,
// each with one Canvas.DrawTile call.
func (t *TiledTexture) DrawRegion(c Canvas, src, dst Rect) {
	t.forEachTile(src, dst, func(tile *Tile, s, d Rect) {
		c.DrawTile(tile, s, d)
	})
}

// DrawMixed draws the whole texture onto dst mixed with col:
// out = texture*(1-ratio) + col*ratio.
func (t *TiledTexture) DrawMixed(c Canvas, col gputypes.Color, ratio float32, dst Rect) {
	t.DrawMixedRegion(c, col, ratio, RectXYWH(0, 0, float32(t.width), float32(t.height)), dst)
}

// DrawMixedRegion is DrawRegion with a color mix. Tiles outside src are not
// drawn, so the mix is applied only once and only inside dst.
func (t *TiledTexture) DrawMixedRegion(c Canvas, col gputypes.Color, ratio float32, src, dst Rect) {
	t.forEachTile(src, dst, func(tile *Tile, s, d Rect) {
		c.DrawMixed(tile, col, ratio, s, d)
	})
}

// forEachTile maps each tile intersecting src onto its part of dst. s is in
// tile surface coordinates (border included), d in canvas coordinates.
func (t *TiledTexture) forEachTile(src, dst Rect, fn func(tile *Tile, s, d Rect)) {
	if src.Empty() || dst.Empty() {
		return
	}
	m := newLinearMap(src, dst)
	border := float32(t.pool.BorderSize())

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tile := range t.tiles {
		r, ok := tile.ContentRect().Intersect(src)
		if !ok {
			continue
		}
		d := m.apply(r)
		s := r.Offset(border-float32(tile.offsetX), border-float32(tile.offsetY))
		fn(tile, s, d)
	}
}

// Recycle returns every tile to the pool and drops the source image.
// Calling Recycle more than once is a no-op.
func (t *TiledTexture) Recycle() {
	t.mu.Lock()
	for _, tile := range t.tiles {
		t.pool.Put(tile)
	}
	t.tiles = nil
	t.uploadIndex = 0
	t.recycled = true
	img := t.image
	t.image = nil
	t.mu.Unlock()

	if img != nil {
		t.freeImage(img)
	}
}

// Recycled reports whether Recycle has been called.
func (t *TiledTexture) Recycled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recycled
}

func (t *TiledTexture) freeImage(img image.Image) {
	if t.recycler != nil {
		t.recycler(img)
	}
}
