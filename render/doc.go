// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render provides the render-side collaborators of the tiletex
// streaming engine.
//
// tiletex never issues GPU work itself. It uploads and draws tiles through
// the tiletex.Canvas interface and asks a tiletex.RenderLoop for idle time.
// This package implements both.
//
// # Canvases
//
//   - SoftwareCanvas: CPU canvas drawing into a PixmapTarget (*image.RGBA).
//     Tile surfaces are pooled *image.RGBA; scaled draws use x/image/draw.
//   - GPUCanvas: adapter over a host gpucontext.TextureDrawer. Tile surfaces
//     are host textures created with gpucontext.TextureCreator.
//
// # Render Loop
//
// Loop draws when a render was requested and gives the remaining frame time
// to idle listeners such as tiletex.Uploader.
//
//	target := render.NewPixmapTarget(800, 600)
//	canvas := render.NewSoftwareCanvas(target)
//	loop := render.NewLoop(canvas, render.WithDrawFunc(func(c tiletex.Canvas) {
//	    tex.Draw(c, tiletex.RectXYWH(0, 0, 800, 600))
//	}))
//	uploader := tiletex.NewUploader(loop)
//	uploader.Add(tex)
//	go loop.Run(ctx) // or call loop.Frame() from the host's frame callback
//
// # Architecture
//
//	 decode goroutine          render goroutine
//	        │                         │
//	        ▼                         ▼
//	AnimatedTexture ──Add──▶ Uploader ◀──OnIdle── Loop
//	                            │                  │
//	                            ▼                  ▼
//	                      TiledTexture ──────▶ Canvas
//	                                      (Software / GPU)
//
// # Thread Safety
//
// Canvases are NOT thread-safe; they belong to the render goroutine. Loop's
// AddIdleListener and RequestRender may be called from any goroutine.
package render
