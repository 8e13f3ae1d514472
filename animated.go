package tiletex

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrNoFrames is returned when a decoder yields no first frame.
var ErrNoFrames = errors.New("tiletex: animation has no frames")

const (
	// DefaultFrameThreshold is the shortest wait the decode goroutine sleeps
	// for. Shorter waits are skipped and the next frame is decoded at once.
	DefaultFrameThreshold = 5 * time.Millisecond

	// DefaultBuildConcurrency bounds how many decoders are built at once by
	// textures sharing the default limiter.
	DefaultBuildConcurrency = 3
)

var defaultBuildLimiter = semaphore.NewWeighted(DefaultBuildConcurrency)

// AnimatedOption configures an AnimatedTexture during creation.
type AnimatedOption func(*animatedOptions)

type animatedOptions struct {
	threshold time.Duration
	limiter   *semaphore.Weighted
	texture   []TextureOption
}

// WithFrameThreshold sets the shortest wait worth sleeping for between
// frames.
func WithFrameThreshold(d time.Duration) AnimatedOption {
	return func(o *animatedOptions) {
		if d >= 0 {
			o.threshold = d
		}
	}
}

// WithBuildLimiter bounds concurrent decoder builds with s instead of the
// package-wide limiter. Each build acquires a weight of one.
func WithBuildLimiter(s *semaphore.Weighted) AnimatedOption {
	return func(o *animatedOptions) {
		if s != nil {
			o.limiter = s
		}
	}
}

// WithTextureOptions passes options to the underlying TiledTexture.
//
// An image recycler given here receives every dropped frame. Without one,
// frames go back to the decoder when it implements FrameRecycler.
func WithTextureOptions(opts ...TextureOption) AnimatedOption {
	return func(o *animatedOptions) {
		o.texture = append(o.texture, opts...)
	}
}

// AnimatedTexture is a TiledTexture whose image is replaced, frame by frame,
// by a background decode goroutine.
//
// The decode goroutine never touches the canvas. It installs each frame
// with SetImage and hands the texture to the Queue, so the render goroutine
// uploads it during idle time like any other texture.
//
// Start, Stop and Recycle may be called from any goroutine.
type AnimatedTexture struct {
	*TiledTexture

	queue     Queue
	threshold time.Duration
	limiter   *semaphore.Weighted
	recycler  func(image.Image)
	first     image.Image // caller-owned, never handed to the decoder

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}

	// decMu is held by whoever is calling into the decoder.
	// Lock order: decMu, then mu.
	decMu sync.Mutex

	mu           sync.Mutex
	decoder      FrameDecoder
	builder      DecoderBuilder
	frames       FrameRecycler
	running      bool
	sleeping     bool
	alive        bool // a decode goroutine exists
	resetPending bool // Stop raced a frame; the goroutine rewinds
	clearOnWake  bool // Recycle raced a frame; the holder releases
	recycled     bool
}

// NewAnimatedTexture advances dec to its first frame and creates a texture
// showing it. The texture owns dec from now on, also when an error is
// returned.
//
// queue receives the texture after each new frame; it is usually the
// Uploader. The animation does not play until Start is called.
func NewAnimatedTexture(dec FrameDecoder, queue Queue, opts ...AnimatedOption) (*AnimatedTexture, error) {
	if dec == nil {
		return nil, ErrNoFrames
	}
	dec.Advance()
	first := dec.NextFrame()
	if first == nil {
		dec.Release()
		return nil, ErrNoFrames
	}

	a, err := newAnimatedTexture(first, queue, opts)
	if err != nil {
		dec.Release()
		return nil, err
	}
	a.setDecoderLocked(dec)
	return a, nil
}

// NewAnimatedTextureFromBuilder creates a texture showing first and builds
// the decoder in the background. Builds are bounded by the build limiter.
// Once built, the decoder is advanced past first, so playback continues
// with the second frame.
//
// first stays owned by the caller: it is never returned to the decoder's
// FrameRecycler. An image recycler set with WithTextureOptions still
// receives it once it is dropped.
func NewAnimatedTextureFromBuilder(first image.Image, b DecoderBuilder, queue Queue, opts ...AnimatedOption) (*AnimatedTexture, error) {
	a, err := newAnimatedTexture(first, queue, opts)
	if err != nil {
		if b != nil {
			_ = b.Close()
		}
		return nil, err
	}
	if b == nil {
		return a, nil
	}

	a.first = first
	a.builder = b
	a.alive = true
	go a.run()
	return a, nil
}

func newAnimatedTexture(first image.Image, queue Queue, opts []AnimatedOption) (*AnimatedTexture, error) {
	o := animatedOptions{
		threshold: DefaultFrameThreshold,
		limiter:   defaultBuildLimiter,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var to textureOptions
	for _, opt := range o.texture {
		opt(&to)
	}

	a := &AnimatedTexture{
		queue:     queue,
		threshold: o.threshold,
		limiter:   o.limiter,
		recycler:  to.recycler,
		wake:      make(chan struct{}, 1),
	}

	texOpts := make([]TextureOption, 0, len(o.texture)+1)
	texOpts = append(texOpts, o.texture...)
	texOpts = append(texOpts, WithImageRecycler(a.recycleFrame))

	base, err := NewTiledTexture(first, texOpts...)
	if err != nil {
		return nil, err
	}
	a.TiledTexture = base
	a.ctx, a.cancel = context.WithCancel(context.Background())
	return a, nil
}

// setDecoderLocked installs dec. Callers hold mu or own a not yet shared
// texture.
func (a *AnimatedTexture) setDecoderLocked(dec FrameDecoder) {
	a.decoder = dec
	if fr, ok := dec.(FrameRecycler); ok {
		a.frames = fr
	}
}

// Running reports whether the animation is playing.
func (a *AnimatedTexture) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Sleeping reports whether the decode goroutine is waiting between frames.
func (a *AnimatedTexture) Sleeping() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sleeping
}

// Start plays the animation, spawning the decode goroutine if none exists.
// Start on a recycled texture does nothing.
func (a *AnimatedTexture) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recycled || a.running {
		return
	}
	a.running = true
	a.resetPending = false
	// Drop a wake-up left by Stop, so the next frame keeps its delay.
	select {
	case <-a.wake:
	default:
	}
	if a.alive {
		return
	}

	a.alive = true
	go a.run()
	Logger().Info("tiletex: animation started", "width", a.Width(), "height", a.Height())
}

// Stop pauses the animation and rewinds it, so the texture shows the first
// frame again. When a frame is being decoded, the decode goroutine rewinds
// before it exits.
func (a *AnimatedTexture) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	owned := a.decMu.TryLock()
	if !owned {
		a.resetPending = true
	}
	a.mu.Unlock()
	a.signal()

	if owned {
		a.mu.Lock()
		dec := a.decoder
		a.mu.Unlock()
		if dec != nil {
			a.rewind(dec)
		}
		a.unlockDecoder()
	}
	Logger().Info("tiletex: animation stopped", "width", a.Width(), "height", a.Height())
}

// Recycle stops the animation, frees the decoder and recycles the tiles.
//
// If the decode goroutine is not using the decoder (sleeping, exited or
// never started), the decoder is released before Recycle returns.
// Otherwise the goroutine releases it as soon as the in-flight call
// returns. Recycle never waits for the decoder.
func (a *AnimatedTexture) Recycle() {
	a.mu.Lock()
	if a.recycled {
		a.mu.Unlock()
		return
	}
	a.recycled = true
	a.running = false
	a.resetPending = false

	var dec FrameDecoder
	if a.decMu.TryLock() {
		dec = a.decoder
		a.decoder = nil
		a.decMu.Unlock()
	} else if a.decoder != nil {
		a.clearOnWake = true
	}
	a.mu.Unlock()

	a.cancel()
	a.signal()
	if dec != nil {
		dec.Release()
		Logger().Debug("tiletex: decoder released")
	}
	a.TiledTexture.Recycle()
}

func (a *AnimatedTexture) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// lockDecoder acquires decMu and returns the decoder. It returns nil,
// without holding decMu, when the decoder is gone.
func (a *AnimatedTexture) lockDecoder() FrameDecoder {
	a.decMu.Lock()
	a.mu.Lock()
	dec := a.decoder
	a.mu.Unlock()
	if dec == nil {
		a.decMu.Unlock()
	}
	return dec
}

// unlockDecoder releases decMu, first taking over the decoder release that
// Recycle requested while the decoder was in use. decMu is released under
// mu so that Recycle either sees the lock free or leaves the request.
func (a *AnimatedTexture) unlockDecoder() {
	a.mu.Lock()
	var dec FrameDecoder
	if a.clearOnWake {
		a.clearOnWake = false
		dec = a.decoder
		a.decoder = nil
	}
	a.decMu.Unlock()
	a.mu.Unlock()

	if dec != nil {
		dec.Release()
		Logger().Debug("tiletex: decoder released after in-flight frame")
	}
}

// rewind shows the first frame again. Called with decMu held.
func (a *AnimatedTexture) rewind(dec FrameDecoder) {
	dec.ResetFrameIndex()
	dec.Advance()
	if frame := dec.NextFrame(); frame != nil {
		a.push(frame)
	}
}

// push installs frame and queues the texture for upload.
func (a *AnimatedTexture) push(frame image.Image) bool {
	if err := a.SetImage(frame); err != nil {
		a.recycleFrame(frame)
		if !errors.Is(err, ErrRecycled) {
			Logger().Warn("tiletex: dropping frame", "err", err)
		}
		return false
	}
	if a.queue != nil {
		a.queue.Add(a.TiledTexture)
	}
	return true
}

func (a *AnimatedTexture) recycleFrame(img image.Image) {
	if a.recycler != nil {
		a.recycler(img)
		return
	}
	if a.first != nil && img == a.first {
		return
	}
	a.mu.Lock()
	fr := a.frames
	a.mu.Unlock()
	if fr != nil {
		fr.RecycleFrame(img)
	}
}

// run is the decode goroutine.
func (a *AnimatedTexture) run() {
	if !a.ensureDecoder() {
		a.mu.Lock()
		a.running = false
		a.alive = false
		a.mu.Unlock()
		return
	}

	next := time.Now()
	for {
		a.mu.Lock()
		if !a.running {
			reset := a.resetPending && !a.recycled
			a.resetPending = false
			if !reset {
				a.alive = false
				a.mu.Unlock()
				return
			}
			a.mu.Unlock()
			if dec := a.lockDecoder(); dec != nil {
				a.rewind(dec)
				a.unlockDecoder()
			}
			continue
		}
		a.mu.Unlock()

		dec := a.lockDecoder()
		if dec == nil {
			a.mu.Lock()
			a.running = false
			a.mu.Unlock()
			continue
		}
		// Stop may have rewound the decoder while we waited for it.
		a.mu.Lock()
		stopped := !a.running
		a.mu.Unlock()
		if stopped {
			a.unlockDecoder()
			continue
		}
		dec.Advance()
		frame := dec.NextFrame()
		delay := dec.NextDelay()
		pushed := frame != nil && a.push(frame)
		a.unlockDecoder()

		if !pushed {
			if frame == nil {
				Logger().Debug("tiletex: animation ended")
			}
			a.mu.Lock()
			a.running = false
			a.mu.Unlock()
			continue
		}

		// Emissions follow a fixed timeline so decode and upload time do
		// not add up; far behind it, the timeline restarts from now.
		next = next.Add(delay)
		now := time.Now()
		if now.Sub(next) > delay {
			next = now
		}
		if wait := next.Sub(now); wait > a.threshold {
			a.sleep(wait)
		}
	}
}

// ensureDecoder builds the decoder if the texture was created from a
// builder. It reports whether a decoder is available.
func (a *AnimatedTexture) ensureDecoder() bool {
	a.mu.Lock()
	b := a.builder
	a.builder = nil
	ready := a.decoder != nil
	a.mu.Unlock()

	if b == nil {
		return ready
	}
	defer func() {
		if err := b.Close(); err != nil {
			Logger().Warn("tiletex: closing decoder builder", "err", err)
		}
	}()

	dec, err := a.build(b)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			Logger().Warn("tiletex: building decoder", "err", err)
		}
		return false
	}
	// The caller already shows the first frame.
	dec.Advance()

	a.mu.Lock()
	if a.recycled {
		a.mu.Unlock()
		dec.Release()
		return false
	}
	a.setDecoderLocked(dec)
	a.mu.Unlock()
	return true
}

func (a *AnimatedTexture) build(b DecoderBuilder) (FrameDecoder, error) {
	if err := a.limiter.Acquire(a.ctx, 1); err != nil {
		return nil, err
	}
	defer a.limiter.Release(1)

	dec, err := b.Build(a.ctx)
	if err != nil {
		return nil, err
	}
	if dec == nil {
		return nil, ErrNoFrames
	}
	return dec, nil
}

func (a *AnimatedTexture) sleep(d time.Duration) {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.sleeping = true
	a.mu.Unlock()

	timer := time.NewTimer(d)
	select {
	case <-timer.C:
	case <-a.wake:
	}
	timer.Stop()

	a.mu.Lock()
	a.sleeping = false
	a.mu.Unlock()
}
