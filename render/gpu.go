// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/tiletex"
	"github.com/gogpu/tiletex/internal/pixpool"
)

// GPU canvas errors.
var (
	// ErrNilDrawer is returned when a nil TextureDrawer is passed.
	ErrNilDrawer = errors.New("render: nil TextureDrawer")

	// ErrNoTextureCreator is returned when the drawer cannot create textures.
	ErrNoTextureCreator = errors.New("render: drawer must provide a gpucontext.TextureCreator")

	// ErrNotTexture is returned when a tile holds a surface that is not a
	// gpucontext.Texture.
	ErrNotTexture = errors.New("render: tile surface is not a gpucontext.Texture")
)

// TextureRegionDrawer is implemented by hosts that can draw a sub-rectangle
// of a texture scaled into a destination rectangle. Without it, tiles are
// drawn unscaled with DrawTexture.
type TextureRegionDrawer interface {
	DrawTextureRegion(tex gpucontext.Texture, src, dst [4]float32) error
}

// TextureMixDrawer is implemented by hosts that can blend a flat color into
// a texture draw. Without it, DrawMixed falls back to a plain draw.
type TextureMixDrawer interface {
	DrawTextureMixed(tex gpucontext.Texture, c gputypes.Color, ratio float32, src, dst [4]float32) error
}

// RectFiller is implemented by hosts that can fill solid rectangles.
type RectFiller interface {
	FillRect(rect [4]float32, c gputypes.Color) error
}

// textureDestroyer matches the Destroy method of host textures.
type textureDestroyer interface {
	Destroy()
}

// GPUStats counts the work a GPUCanvas performed.
type GPUStats struct {
	Created  int // textures created
	Updated  int // full texture updates
	Regions  int // partial updates of edge tiles
	Draws    int
	Failures int // host calls that returned an error
	Inexact  int // scaled or partial draws the host could only draw whole
}

// GPUCanvas implements tiletex.Canvas on top of a host's
// gpucontext.TextureDrawer.
//
// Each tile owns one host texture, created with
// TextureCreator.NewTextureFromRGBA on its first upload and refreshed with
// TextureUpdater.UpdateData afterwards. Edge tiles whose content is smaller
// than the tile are refreshed with TextureRegionUpdater when available.
//
// GPUCanvas is NOT safe for concurrent use; it belongs to the render
// goroutine.
type GPUCanvas struct {
	dc      gpucontext.TextureDrawer
	creator gpucontext.TextureCreator
	stats   GPUStats
	logged  bool // the missing region drawer was reported
}

// NewGPUCanvas wraps dc, which usually comes from the host's draw callback.
func NewGPUCanvas(dc gpucontext.TextureDrawer) (*GPUCanvas, error) {
	if dc == nil {
		return nil, ErrNilDrawer
	}
	creator := dc.TextureCreator()
	if creator == nil {
		return nil, ErrNoTextureCreator
	}
	return &GPUCanvas{dc: dc, creator: creator}, nil
}

// Stats returns the work counters.
func (c *GPUCanvas) Stats() GPUStats { return c.stats }

// UploadTile writes pixels into the tile texture.
func (c *GPUCanvas) UploadTile(t *tiletex.Tile, pixels *image.RGBA) error {
	w, h := pixels.Rect.Dx(), pixels.Rect.Dy()

	if tex, ok := t.Texture().(gpucontext.Texture); ok && tex.Width() == w && tex.Height() == h {
		err := c.update(t, tex, pixels)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errors.ErrUnsupported) {
			c.stats.Failures++
			return fmt.Errorf("render: update tile texture: %w", err)
		}
	}

	// No usable texture: drop whatever the tile holds and create a new one.
	c.ReleaseTile(t)
	tex, err := c.creator.NewTextureFromRGBA(w, h, pixels.Pix)
	if err != nil {
		c.stats.Failures++
		return fmt.Errorf("render: NewTextureFromRGBA failed: %w", err)
	}
	// Tile pixels are premultiplied alpha.
	if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}
	t.SetTexture(tex)
	c.stats.Created++
	return nil
}

// update refreshes an existing texture, uploading only the used part of
// edge tiles when the host supports region updates.
func (c *GPUCanvas) update(t *tiletex.Tile, tex gpucontext.Texture, pixels *image.RGBA) error {
	b2 := 2 * t.Border()
	used := image.Rect(0, 0, min(t.ContentWidth()+b2, t.Size()), min(t.ContentHeight()+b2, t.Size()))

	if used != pixels.Rect {
		if ru, ok := tex.(gpucontext.TextureRegionUpdater); ok {
			packed := pixpool.Get(used.Dx(), used.Dy())
			defer pixpool.Put(packed)
			xdraw.Draw(packed, packed.Rect, pixels, image.Point{}, xdraw.Src)
			if err := ru.UpdateRegion(0, 0, used.Dx(), used.Dy(), packed.Pix); err != nil {
				return err
			}
			c.stats.Regions++
			return nil
		}
	}

	if u, ok := tex.(gpucontext.TextureUpdater); ok {
		if err := u.UpdateData(pixels.Pix); err != nil {
			return err
		}
		c.stats.Updated++
		return nil
	}
	return errors.ErrUnsupported
}

// DrawTile draws the src region of the tile texture onto dst.
func (c *GPUCanvas) DrawTile(t *tiletex.Tile, src, dst tiletex.Rect) {
	tex := c.texture(t)
	if tex == nil {
		return
	}

	var err error
	if rd, ok := c.dc.(TextureRegionDrawer); ok {
		err = rd.DrawTextureRegion(tex, quad(src), quad(dst))
	} else {
		// Unscaled fallback: place the surface so that src lands on dst.
		if inexact(t, src, dst) {
			c.reportInexact()
		}
		err = c.dc.DrawTexture(tex, dst.Left-src.Left, dst.Top-src.Top)
	}
	c.record(err)
}

// DrawMixed draws the tile blended toward col when the host supports it,
// and plainly otherwise.
func (c *GPUCanvas) DrawMixed(t *tiletex.Tile, col gputypes.Color, ratio float32, src, dst tiletex.Rect) {
	md, ok := c.dc.(TextureMixDrawer)
	if !ok {
		c.DrawTile(t, src, dst)
		return
	}
	tex := c.texture(t)
	if tex == nil {
		return
	}
	c.record(md.DrawTextureMixed(tex, col, ratio, quad(src), quad(dst)))
}

// FillRect fills r when the host supports solid fills.
func (c *GPUCanvas) FillRect(r tiletex.Rect, col gputypes.Color) {
	if f, ok := c.dc.(RectFiller); ok {
		c.record(f.FillRect(quad(r), col))
	}
}

// ReleaseTile destroys the tile texture.
func (c *GPUCanvas) ReleaseTile(t *tiletex.Tile) {
	if d, ok := t.Texture().(textureDestroyer); ok {
		d.Destroy()
	}
	t.SetTexture(nil)
}

func (c *GPUCanvas) texture(t *tiletex.Tile) gpucontext.Texture {
	if !t.Loaded() {
		return nil
	}
	tex, ok := t.Texture().(gpucontext.Texture)
	if !ok {
		c.record(ErrNotTexture)
		return nil
	}
	return tex
}

// inexact reports whether drawing the whole surface unscaled differs from
// drawing src onto dst.
func inexact(t *tiletex.Tile, src, dst tiletex.Rect) bool {
	return src.Width() != dst.Width() || src.Height() != dst.Height() ||
		src.Width() < float32(t.ContentWidth()) || src.Height() < float32(t.ContentHeight())
}

func (c *GPUCanvas) reportInexact() {
	c.stats.Inexact++
	if c.logged {
		return
	}
	c.logged = true
	tiletex.Logger().Debug("render: host lacks TextureRegionDrawer; scaled and partial tile draws are drawn whole and unscaled")
}

func (c *GPUCanvas) record(err error) {
	if err != nil {
		c.stats.Failures++
		tiletex.Logger().Warn("render: draw failed", "err", err)
		return
	}
	c.stats.Draws++
}

// quad converts r to {left, top, right, bottom}.
func quad(r tiletex.Rect) [4]float32 {
	return [4]float32{r.Left, r.Top, r.Right, r.Bottom}
}

var _ tiletex.Canvas = (*GPUCanvas)(nil)
var _ tiletex.TileReleaser = (*GPUCanvas)(nil)
