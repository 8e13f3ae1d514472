package tiletex

import (
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestNewTilePool(t *testing.T) {
	tests := []struct {
		name            string
		content, border int
		wantErr         bool
	}{
		{"default geometry", 254, 1, false},
		{"no border", 64, 0, false},
		{"zero content", 0, 1, true},
		{"negative border", 64, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewTilePool(tt.content, tt.border)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTileConfig) {
					t.Errorf("NewTilePool() error = %v, want ErrInvalidTileConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTilePool() error = %v", err)
			}
			if p.TileSize() != tt.content+2*tt.border {
				t.Errorf("TileSize() = %d, want %d", p.TileSize(), tt.content+2*tt.border)
			}
		})
	}
}

func TestDefaultTilePool(t *testing.T) {
	p := DefaultTilePool()
	if p != DefaultTilePool() {
		t.Error("DefaultTilePool() returned different pools")
	}
	if p.ContentSize() != DefaultContentSize || p.BorderSize() != DefaultBorderSize {
		t.Errorf("geometry = %d/%d, want %d/%d", p.ContentSize(), p.BorderSize(), DefaultContentSize, DefaultBorderSize)
	}
	if p.TileSize() != 256 {
		t.Errorf("TileSize() = %d, want 256", p.TileSize())
	}
}

func TestTilePool_Descriptor(t *testing.T) {
	d := DefaultTilePool().Descriptor()
	if d.Size.Width != 256 || d.Size.Height != 256 || d.Size.DepthOrArrayLayers != 1 {
		t.Errorf("Size = %+v, want 256x256x1", d.Size)
	}
	if d.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format = %v, want RGBA8Unorm", d.Format)
	}
	if d.Usage&gputypes.TextureUsageCopyDst == 0 || d.Usage&gputypes.TextureUsageTextureBinding == 0 {
		t.Errorf("Usage = %v, want CopyDst|TextureBinding", d.Usage)
	}
}

func TestTilePool_RoundTrip(t *testing.T) {
	p := newTestPool(t, 16, 1)
	const n = 8

	first := make(map[*Tile]bool, n)
	tiles := make([]*Tile, 0, n)
	for range n {
		tile := p.Get()
		first[tile] = true
		tiles = append(tiles, tile)
	}
	for _, tile := range tiles {
		p.Put(tile)
	}
	if p.Len() != n {
		t.Fatalf("Len() = %d, want %d", p.Len(), n)
	}

	for range n {
		tile := p.Get()
		if !first[tile] {
			t.Fatalf("Get() returned a new tile %p, want a reused one", tile)
		}
		delete(first, tile)
	}
	if p.Allocated() != n {
		t.Errorf("Allocated() = %d, want %d", p.Allocated(), n)
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
}

func TestTilePool_Put_Invalidates(t *testing.T) {
	p := newTestPool(t, 16, 1)
	tile := p.Get()
	tile.setSource(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	tile.loaded = true
	tile.SetTexture("surface")

	p.Put(tile)

	if tile.hasSource() {
		t.Error("pooled tile still holds a pixel source")
	}
	if tile.Loaded() {
		t.Error("pooled tile still loaded")
	}
	if tile.Texture() != "surface" {
		t.Error("pooled tile lost its surface")
	}
}

func TestTilePool_Put_Twice(t *testing.T) {
	p := newTestPool(t, 16, 1)
	tile := p.Get()
	p.Put(tile)
	p.Put(tile)

	if p.Len() != 1 {
		t.Fatalf("Len() = %d after double Put, want 1", p.Len())
	}
	if a, b := p.Get(), p.Get(); a == b {
		t.Error("double Put made Get hand out the same tile twice")
	}
}

func TestTilePool_Put_ForeignOrNil(t *testing.T) {
	a := newTestPool(t, 16, 1)
	b := newTestPool(t, 16, 1)

	b.Put(a.Get())
	b.Put(nil)
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestTilePool_Drain(t *testing.T) {
	p := newTestPool(t, 16, 1)
	tiles := []*Tile{p.Get(), p.Get(), p.Get()}
	for _, tile := range tiles {
		tile.SetTexture(1)
	}
	p.Put(tiles[0])
	p.Put(tiles[1])

	var released []*Tile
	p.Drain(func(tile *Tile) { released = append(released, tile) })

	if len(released) != 2 {
		t.Fatalf("released %d tiles, want 2", len(released))
	}
	for _, tile := range released {
		if tile.Texture() != nil {
			t.Error("drained tile kept its surface")
		}
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d after Drain, want 0", p.Len())
	}

	// Tiles still owned during Drain are pooled normally afterwards.
	p.Put(tiles[2])
	if p.Len() != 1 || tiles[2].Texture() != 1 {
		t.Errorf("Len() = %d, texture = %v after Put", p.Len(), tiles[2].Texture())
	}
}

func TestTilePool_Concurrent(t *testing.T) {
	p := newTestPool(t, 16, 1)
	const workers = 8
	const rounds = 200

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				a, b := p.Get(), p.Get()
				if a == b {
					t.Error("Get() returned the same tile twice")
					return
				}
				p.Put(a)
				p.Put(b)
			}
		}()
	}
	wg.Wait()

	if p.Len() != p.Allocated() {
		t.Errorf("Len() = %d, Allocated() = %d, want equal", p.Len(), p.Allocated())
	}
	if p.Allocated() > 2*workers {
		t.Errorf("Allocated() = %d, want at most %d", p.Allocated(), 2*workers)
	}
}
