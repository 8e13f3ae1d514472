package gifdecode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/tiletex"
	"github.com/gogpu/tiletex/internal/pixpool"
)

var (
	// ErrNoFrames is returned for a GIF without images.
	ErrNoFrames = errors.New("gifdecode: no frames")

	// ErrInvalidSize is returned when the logical screen is empty.
	ErrInvalidSize = errors.New("gifdecode: invalid screen size")
)

const (
	// MinDelay is the shortest frame delay honored. Shorter delays, zero
	// included, are replaced by DefaultDelay, as browsers do.
	MinDelay = 20 * time.Millisecond

	// DefaultDelay is the delay of frames that declare none.
	DefaultDelay = 100 * time.Millisecond
)

// Decoder plays a decoded GIF frame by frame, compositing each image onto
// the logical screen according to the disposal method of the frame before.
//
// Decoder implements tiletex.FrameDecoder and tiletex.FrameRecycler. Frames
// handed out by NextFrame are pooled; return them with RecycleFrame.
//
// Decoder is not safe for concurrent use, except for RecycleFrame.
type Decoder struct {
	g      *gif.GIF
	width  int
	height int
	bg     color.Color

	screen *image.RGBA // composited state of the current frame
	saved  *image.RGBA // screen before a DisposalPrevious frame

	index    int // current frame, -1 before the first Advance
	restarts int
	done     bool
	released bool
}

// New creates a decoder over an already decoded GIF.
func New(g *gif.GIF) (*Decoder, error) {
	if g == nil || len(g.Image) == 0 {
		return nil, ErrNoFrames
	}
	width, height := g.Config.Width, g.Config.Height
	if width <= 0 || height <= 0 {
		b := g.Image[0].Bounds()
		width, height = b.Max.X, b.Max.Y
	}
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}

	return &Decoder{
		g:      g,
		width:  width,
		height: height,
		bg:     backgroundColor(g),
		screen: pixpool.Get(width, height),
		index:  -1,
	}, nil
}

// Decode reads a complete GIF from r.
func Decode(r io.Reader) (*Decoder, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("gifdecode: decode: %w", err)
	}
	return New(g)
}

// DecodeBytes reads a complete GIF from data.
func DecodeBytes(data []byte) (*Decoder, error) {
	return Decode(bytes.NewReader(data))
}

// Width returns the logical screen width.
func (d *Decoder) Width() int { return d.width }

// Height returns the logical screen height.
func (d *Decoder) Height() int { return d.height }

// FrameCount returns the number of images in the GIF.
func (d *Decoder) FrameCount() int {
	if d.g == nil {
		return 0
	}
	return len(d.g.Image)
}

// LoopCount returns the GIF loop count: 0 loops forever, -1 plays once and
// n plays n+1 times.
func (d *Decoder) LoopCount() int {
	if d.g == nil {
		return -1
	}
	return d.g.LoopCount
}

// Advance composites the next frame. After the last frame it restarts the
// animation while the loop count allows; otherwise the decoder is done and
// NextFrame returns nil.
func (d *Decoder) Advance() {
	if d.released || d.done {
		return
	}

	next := d.index + 1
	if next >= len(d.g.Image) {
		if !d.restart() {
			d.done = true
			tiletex.Logger().Debug("gifdecode: animation exhausted", "frames", len(d.g.Image), "restarts", d.restarts)
			return
		}
		next = 0
	}

	if next == 0 {
		clear(d.screen.Pix)
	} else {
		d.dispose(d.index)
	}
	d.compose(next)
	d.index = next
}

// restart reports whether the animation may play again and counts the
// restart.
func (d *Decoder) restart() bool {
	// A still image is shown once whatever its loop count says.
	if len(d.g.Image) < 2 {
		return false
	}
	if n := d.g.LoopCount; n < 0 || (n > 0 && d.restarts >= n) {
		return false
	}
	d.restarts++
	return true
}

// dispose applies the disposal method of frame i to the screen.
func (d *Decoder) dispose(i int) {
	switch d.disposal(i) {
	case gif.DisposalBackground:
		r := d.g.Image[i].Bounds()
		xdraw.Draw(d.screen, r, image.NewUniform(d.bg), image.Point{}, xdraw.Src)
	case gif.DisposalPrevious:
		if d.saved != nil {
			copy(d.screen.Pix, d.saved.Pix)
		}
	}
}

// compose draws frame i over the screen.
func (d *Decoder) compose(i int) {
	if d.disposal(i) == gif.DisposalPrevious {
		if d.saved == nil {
			d.saved = pixpool.Get(d.width, d.height)
		}
		copy(d.saved.Pix, d.screen.Pix)
	}
	frame := d.g.Image[i]
	r := frame.Bounds()
	xdraw.Draw(d.screen, r, frame, r.Min, xdraw.Over)
}

func (d *Decoder) disposal(i int) byte {
	if i < 0 || i >= len(d.g.Disposal) {
		return gif.DisposalNone
	}
	return d.g.Disposal[i]
}

// NextFrame returns a copy of the current frame, or nil before the first
// Advance and once the animation is exhausted.
func (d *Decoder) NextFrame() image.Image {
	if d.released || d.done || d.index < 0 {
		return nil
	}
	frame := pixpool.Get(d.width, d.height)
	copy(frame.Pix, d.screen.Pix)
	return frame
}

// NextDelay returns the display time of the current frame.
func (d *Decoder) NextDelay() time.Duration {
	if d.released || d.index < 0 || d.index >= len(d.g.Delay) {
		return DefaultDelay
	}
	return clampDelay(time.Duration(d.g.Delay[d.index]) * 10 * time.Millisecond)
}

func clampDelay(delay time.Duration) time.Duration {
	if delay < MinDelay {
		return DefaultDelay
	}
	return delay
}

// ResetFrameIndex rewinds to before the first frame and forgets finished
// loops.
func (d *Decoder) ResetFrameIndex() {
	if d.released {
		return
	}
	d.index = -1
	d.restarts = 0
	d.done = false
}

// Release returns the decoder's buffers to the pool and drops the GIF.
func (d *Decoder) Release() {
	if d.released {
		return
	}
	d.released = true
	pixpool.Put(d.screen)
	pixpool.Put(d.saved)
	d.screen, d.saved = nil, nil
	d.g = nil
}

// RecycleFrame returns a frame from NextFrame to the pool. Images of other
// types are ignored. It may be called from any goroutine, also after
// Release.
func (d *Decoder) RecycleFrame(img image.Image) {
	if rgba, ok := img.(*image.RGBA); ok {
		pixpool.Put(rgba)
	}
}

func backgroundColor(g *gif.GIF) color.Color {
	pal, ok := g.Config.ColorModel.(color.Palette)
	if !ok || len(pal) == 0 {
		return color.Transparent
	}
	idx := int(g.BackgroundIndex)
	if idx >= len(pal) {
		return color.Transparent
	}
	return pal[idx]
}

var (
	_ tiletex.FrameDecoder  = (*Decoder)(nil)
	_ tiletex.FrameRecycler = (*Decoder)(nil)
)
