package tiletex

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
)

// recordingCanvas records every call the engine makes on the render side.
type recordingCanvas struct {
	mu        sync.Mutex
	uploads   []uploadCall
	draws     []drawCall
	mixed     []drawCall
	fills     int
	uploadErr error
}

type uploadCall struct {
	tile   *Tile
	pixels *image.RGBA // copy, the staging buffer is reused
}

type drawCall struct {
	tile     *Tile
	src, dst Rect
	color    gputypes.Color
	ratio    float32
}

func (c *recordingCanvas) UploadTile(t *Tile, pixels *image.RGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploadErr != nil {
		return c.uploadErr
	}
	cp := image.NewRGBA(pixels.Rect)
	copy(cp.Pix, pixels.Pix)
	c.uploads = append(c.uploads, uploadCall{tile: t, pixels: cp})
	return nil
}

func (c *recordingCanvas) DrawTile(t *Tile, src, dst Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draws = append(c.draws, drawCall{tile: t, src: src, dst: dst})
}

func (c *recordingCanvas) DrawMixed(t *Tile, col gputypes.Color, ratio float32, src, dst Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mixed = append(c.mixed, drawCall{tile: t, src: src, dst: dst, color: col, ratio: ratio})
}

func (c *recordingCanvas) FillRect(Rect, gputypes.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fills++
}

func (c *recordingCanvas) uploadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.uploads)
}

var errUpload = errors.New("upload failed")

// newTestPool returns a private pool so tests do not share tiles.
func newTestPool(t *testing.T, content, border int) *TilePool {
	t.Helper()
	p, err := NewTilePool(content, border)
	if err != nil {
		t.Fatalf("NewTilePool(%d, %d): %v", content, border, err)
	}
	return p
}

// gradientImage returns an image whose pixel (x, y) is (x, y, 7, 255).
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return img
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
