// Command tiledemo streams images through the tiletex upload pipeline and
// renders them into a PNG.
//
// Still images are uploaded tile by tile within the per-frame budget.
// GIFs play on their own decode goroutine for -duration and are stopped
// before the final draw, which rewinds them to their first frame.
//
//	tiledemo -output grid.png -duration 2s photo.jpg anim.gif
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/tiletex"
	"github.com/gogpu/tiletex/gifdecode"
	"github.com/gogpu/tiletex/internal/imageio"
	"github.com/gogpu/tiletex/render"
)

type config struct {
	width, height int
	output        string
	budget        time.Duration
	interval      time.Duration
	duration      time.Duration
	tileSize      int
	filter        string
	lang          string
	verbose       bool
	inputs        []string
}

func main() {
	var cfg config
	flag.IntVar(&cfg.width, "width", 800, "output width")
	flag.IntVar(&cfg.height, "height", 600, "output height")
	flag.StringVar(&cfg.output, "output", "tiledemo.png", "output file")
	flag.DurationVar(&cfg.budget, "budget", tiletex.DefaultUploadBudget, "upload time per idle slice")
	flag.DurationVar(&cfg.interval, "interval", render.DefaultFrameInterval, "frame interval")
	flag.DurationVar(&cfg.duration, "duration", 2*time.Second, "how long animations play")
	flag.IntVar(&cfg.tileSize, "tile", 254, "tile content size in pixels")
	flag.StringVar(&cfg.filter, "filter", "bilinear", "scaling filter: nearest, bilinear or catmullrom")
	flag.StringVar(&cfg.lang, "lang", "en", "language tag for statistics")
	flag.BoolVar(&cfg.verbose, "v", false, "log pipeline events to stderr")
	flag.Parse()
	cfg.inputs = flag.Args()

	if cfg.verbose {
		tiletex.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("tiledemo: %v", err)
	}
}

// source is a loaded input: a still image, or a GIF with its encoded data.
type source struct {
	name  string
	img   image.Image
	data  []byte
	isGIF bool
}

func run(ctx context.Context, cfg config) error {
	filter, err := parseFilter(cfg.filter)
	if err != nil {
		return err
	}
	pool, err := tiletex.NewTilePool(cfg.tileSize, 1)
	if err != nil {
		return err
	}

	sources, err := loadSources(ctx, cfg.inputs)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		sources = []source{{name: "gradient", img: gradient(cfg.width/2, cfg.height/2)}}
	}

	target := render.NewPixmapTarget(cfg.width, cfg.height)
	canvas := render.NewSoftwareCanvas(target, render.WithFilter(filter))

	var textures []*tiletex.TiledTexture
	cells := layout(len(sources), cfg.width, cfg.height)
	loop := render.NewLoop(canvas,
		render.WithFrameInterval(cfg.interval),
		render.WithDrawFunc(func(c tiletex.Canvas) {
			target.Clear(color.RGBA{R: 24, G: 24, B: 32, A: 255})
			for i, tex := range textures {
				tex.Draw(c, fit(cells[i], tex.Width(), tex.Height()))
			}
		}))
	uploader := tiletex.NewUploader(loop, tiletex.WithUploadBudget(cfg.budget))

	var animations []*tiletex.AnimatedTexture
	defer func() {
		for _, a := range animations {
			a.Recycle()
		}
		for _, t := range textures {
			t.Recycle()
		}
		pool.Drain(canvas.ReleaseTile)
	}()

	for _, s := range sources {
		if s.isGIF {
			a, err := tiletex.NewAnimatedTextureFromBuilder(s.img, gifdecode.NewBytesBuilder(s.data), uploader,
				tiletex.WithTextureOptions(tiletex.WithTilePool(pool)))
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			animations = append(animations, a)
			textures = append(textures, a.TiledTexture)
			uploader.Add(a.TiledTexture)
			a.Start()
			continue
		}
		tex, err := tiletex.NewTiledTexture(s.img, tiletex.WithTilePool(pool))
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		textures = append(textures, tex)
		uploader.Add(tex)
	}

	start := time.Now()
	playUntil := start.Add(cfg.duration)
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	for {
		loop.Frame()
		if loop.Idle() && (len(animations) == 0 || time.Now().After(playUntil)) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	for _, a := range animations {
		a.Stop()
	}

	// Settle: upload whatever the last frames left behind, then draw once.
	for !loop.Idle() {
		loop.Frame()
	}
	loop.RequestRender()
	loop.Frame()

	if err := imageio.SavePNG(cfg.output, target.Image()); err != nil {
		return err
	}
	printStats(cfg, canvas.Stats(), loop.Frames(), len(sources), pool, time.Since(start))
	return nil
}

// loadSources reads and decodes inputs concurrently.
func loadSources(ctx context.Context, paths []string) ([]source, error) {
	sources := make([]source, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := imageio.ReadFile(path)
			if err != nil {
				return err
			}
			img, format, err := imageio.DecodeBytes(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			s := source{name: path, img: img}
			if format == imageio.FormatGIF {
				s.data, s.isGIF = data, true
			}
			sources[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

func parseFilter(name string) (xdraw.Interpolator, error) {
	switch name {
	case "nearest":
		return xdraw.NearestNeighbor, nil
	case "bilinear":
		return xdraw.ApproxBiLinear, nil
	case "catmullrom":
		return xdraw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown filter %q", name)
	}
}

// layout splits the output into a near-square grid of n cells.
func layout(n, width, height int) []tiletex.Rect {
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	cw, ch := float32(width)/float32(cols), float32(height)/float32(rows)

	cells := make([]tiletex.Rect, n)
	for i := range cells {
		cells[i] = tiletex.RectXYWH(float32(i%cols)*cw, float32(i/cols)*ch, cw, ch)
	}
	return cells
}

// fit centers a w x h image in cell, keeping its aspect ratio.
func fit(cell tiletex.Rect, w, h int) tiletex.Rect {
	scale := min(cell.Width()/float32(w), cell.Height()/float32(h))
	dw, dh := float32(w)*scale, float32(h)*scale
	return tiletex.RectXYWH(cell.Left+(cell.Width()-dw)/2, cell.Top+(cell.Height()-dh)/2, dw, dh)
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(255 * x / max(w-1, 1)),
				G: uint8(255 * y / max(h-1, 1)),
				B: 160,
				A: 255,
			})
		}
	}
	return img
}

func printStats(cfg config, s render.SoftwareStats, frames, images int, pool *tiletex.TilePool, elapsed time.Duration) {
	p := message.NewPrinter(language.Make(cfg.lang))
	p.Printf("wrote %s (%dx%d)\n", cfg.output, cfg.width, cfg.height)
	p.Printf("%d images, %d frames drawn in %v\n", images, frames, elapsed.Round(time.Millisecond))
	p.Printf("%d tile uploads, %d tile draws, %d skipped\n", s.Uploads, s.Draws, s.Skipped)
	p.Printf("%d tiles allocated (%d px content)\n", pool.Allocated(), pool.ContentSize())
}
