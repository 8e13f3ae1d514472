package tiletex

import (
	"image"

	"github.com/gogpu/gputypes"
)

// Canvas is the render-thread graphics context that tiles are uploaded to
// and drawn with.
//
// All methods are called only from the goroutine that owns the canvas (the
// render goroutine). Implementations live in the render package:
// render.SoftwareCanvas for CPU targets and render.GPUCanvas for hosts that
// expose gpucontext texture interfaces.
type Canvas interface {
	// UploadTile copies pixels into the tile's GPU surface, creating the
	// surface on first use. pixels is exactly Tile.Size() on each side and is
	// only valid for the duration of the call.
	UploadTile(t *Tile, pixels *image.RGBA) error

	// DrawTile draws the src region of the tile surface (border included in
	// its coordinate space) onto dst.
	DrawTile(t *Tile, src, dst Rect)

	// DrawMixed draws like DrawTile but mixes the result with c:
	// out = tile*(1-ratio) + c*ratio.
	DrawMixed(t *Tile, c gputypes.Color, ratio float32, src, dst Rect)

	// FillRect fills r with a solid color.
	FillRect(r Rect, c gputypes.Color)
}

// TileReleaser is implemented by canvases that own per-tile GPU resources
// which must be destroyed explicitly. See TilePool.Drain.
type TileReleaser interface {
	ReleaseTile(t *Tile)
}

// IdleListener receives spare render-loop time.
//
// OnIdle is invoked on the render goroutine. renderRequested reports whether
// a redraw is already pending. The return value tells the loop whether to
// keep the listener registered for the next idle opportunity.
type IdleListener interface {
	OnIdle(c Canvas, renderRequested bool) bool
}

// RenderLoop is the part of the host render loop the upload scheduler needs.
type RenderLoop interface {
	// AddIdleListener queues l to run during the next idle opportunity.
	AddIdleListener(l IdleListener)

	// RequestRender schedules a redraw.
	RequestRender()
}
