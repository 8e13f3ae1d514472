package gifdecode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"io"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/tiletex"
)

// Builder decodes a GIF on demand. It implements tiletex.DecoderBuilder,
// so an AnimatedTexture can show a cheap first frame and parse the whole
// file on its decode goroutine.
type Builder struct {
	r      io.Reader
	closer io.Closer
	once   sync.Once
}

// NewBuilder creates a builder reading from rc. rc is closed by Close.
func NewBuilder(rc io.ReadCloser) *Builder {
	return &Builder{r: rc, closer: rc}
}

// NewBytesBuilder creates a builder over an in-memory GIF.
func NewBytesBuilder(data []byte) *Builder {
	return &Builder{r: bytes.NewReader(data)}
}

// Build decodes every frame of the GIF. Reading stops with ctx.Err() once
// ctx is done.
func (b *Builder) Build(ctx context.Context) (tiletex.FrameDecoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := gif.DecodeAll(&ctxReader{ctx: ctx, r: b.r})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("gifdecode: decode: %w", err)
	}
	return New(g)
}

// Close closes the underlying reader, if it has a Close method. Only the
// first call has an effect.
func (b *Builder) Close() error {
	var err error
	b.once.Do(func() {
		if b.closer != nil {
			err = b.closer.Close()
		}
	})
	return err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// DecodeFirst decodes only the first frame of a GIF and returns it on a
// canvas of the logical screen size.
func DecodeFirst(data []byte) (*image.RGBA, error) {
	cfg, err := gif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gifdecode: decode config: %w", err)
	}
	frame, err := gif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gifdecode: decode first frame: %w", err)
	}

	width, height := cfg.Width, cfg.Height
	if width <= 0 || height <= 0 {
		width, height = frame.Bounds().Max.X, frame.Bounds().Max.Y
	}
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}

	screen := image.NewRGBA(image.Rect(0, 0, width, height))
	r := frame.Bounds()
	xdraw.Draw(screen, r, frame, r.Min, xdraw.Over)
	return screen, nil
}

var _ tiletex.DecoderBuilder = (*Builder)(nil)
