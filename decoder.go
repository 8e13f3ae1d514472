package tiletex

import (
	"context"
	"image"
	"time"
)

// FrameDecoder produces the frames of an animation, one at a time.
//
// A decoder is used by one goroutine at a time. AnimatedTexture serializes
// every call, so implementations need no locking of their own.
type FrameDecoder interface {
	// Advance moves to the next frame, wrapping according to the
	// animation's loop count.
	Advance()

	// NextFrame returns the current frame, or nil when the animation is
	// exhausted or the frame could not be decoded. The returned image is
	// owned by the caller.
	NextFrame() image.Image

	// NextDelay returns how long the current frame should stay visible.
	NextDelay() time.Duration

	// ResetFrameIndex rewinds to before the first frame; the next Advance
	// selects frame zero.
	ResetFrameIndex()

	// Release frees the decoder's resources. No other method is called
	// afterwards.
	Release()
}

// DecoderBuilder creates a FrameDecoder lazily, typically by parsing an
// encoded file that is expensive to hold in decoded form.
type DecoderBuilder interface {
	// Build parses the source and returns a decoder positioned before the
	// first frame. It should return early when ctx is done.
	Build(ctx context.Context) (FrameDecoder, error)

	// Close releases the builder's input. It is called exactly once,
	// whether or not Build was called or succeeded.
	Close() error
}

// FrameRecycler is implemented by decoders that can reuse the frame images
// they hand out. RecycleFrame must stay safe to call after Release.
type FrameRecycler interface {
	RecycleFrame(img image.Image)
}

// Queue accepts textures whose pixels changed and need uploading.
// *Uploader implements Queue.
type Queue interface {
	Add(t *TiledTexture)
}
