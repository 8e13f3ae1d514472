// Package tiletex streams large images to the GPU as grids of small tiles.
//
// # Overview
//
// A TiledTexture splits an image into fixed-size tiles drawn from a shared
// TilePool. Tiles are uploaded one at a time, during the idle time of the
// render loop, so that a large image never stalls a frame. Each tile
// carries a border of replicated or neighboring pixels, which keeps
// filtered sampling seamless across tile edges.
//
// # Quick Start
//
//	tex, err := tiletex.NewTiledTexture(img)
//	if err != nil {
//	    return err
//	}
//	uploader := tiletex.NewUploader(loop) // loop implements RenderLoop
//	uploader.Add(tex)
//
//	// In the draw callback:
//	tex.Draw(canvas, tiletex.RectXYWH(0, 0, 800, 600))
//
// Tiles that are not uploaded yet are skipped when drawing. The uploader
// requests a redraw each time a texture becomes ready.
//
// # Animation
//
// AnimatedTexture replaces the image of a TiledTexture with frames from a
// FrameDecoder running on a background goroutine. Frames are paced by the
// decoder's delays and queued for upload like any other texture. Package
// gifdecode provides decoders for animated GIFs.
//
// # Collaborators
//
// The package issues no GPU work itself. It talks to:
//   - Canvas: uploads tile pixels and draws tiles (see package render)
//   - RenderLoop: provides idle time and redraws (see render.Loop)
//   - FrameDecoder and DecoderBuilder: produce animation frames
//
// # Coordinate System
//
// Rectangles use float32 pixel coordinates with the origin at the top-left,
// X increasing right and Y increasing down.
//
// # Thread Safety
//
// TiledTexture, Uploader and AnimatedTexture are safe for concurrent use.
// Canvas methods are only called from the goroutine running the render
// loop.
package tiletex

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
