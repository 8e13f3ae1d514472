package pixpool

import (
	"image"
	"image/color"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		maxPerBucket int
	}{
		{"zero means unlimited", 0},
		{"positive limit", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.maxPerBucket)
			if p == nil {
				t.Fatal("New returned nil")
			}
			if p.maxSize != tt.maxPerBucket {
				t.Errorf("maxSize = %d, want %d", p.maxSize, tt.maxPerBucket)
			}
		})
	}
}

func TestPool_GetPut_ReusesAndClears(t *testing.T) {
	p := New(4)

	img := p.Get(16, 8)
	if img == nil {
		t.Fatal("Get returned nil")
	}
	if img.Rect != image.Rect(0, 0, 16, 8) {
		t.Fatalf("Rect = %v, want (0,0)-(16,8)", img.Rect)
	}
	img.SetRGBA(3, 3, color.RGBA{R: 255, A: 255})
	p.Put(img)

	again := p.Get(16, 8)
	if again != img {
		t.Error("Get did not reuse the pooled buffer")
	}
	if got := again.RGBAAt(3, 3); got != (color.RGBA{}) {
		t.Errorf("reused buffer not cleared: %v", got)
	}
}

func TestPool_Get_InvalidSize(t *testing.T) {
	p := New(4)
	if img := p.Get(0, 10); img != nil {
		t.Error("Get(0, 10) should return nil")
	}
	if img := p.Get(10, -1); img != nil {
		t.Error("Get(10, -1) should return nil")
	}
}

func TestPool_Put_BucketLimit(t *testing.T) {
	p := New(2)
	for range 4 {
		p.Put(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	}
	if got := p.Len(4, 4); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
}

func TestPool_Put_RejectsOffsetImages(t *testing.T) {
	p := New(0)
	p.Put(image.NewRGBA(image.Rect(2, 2, 6, 6)))
	p.Put(nil)
	if got := p.Len(4, 4); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}

func TestPool_Concurrent(t *testing.T) {
	p := New(8)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				img := p.Get(32, 32)
				img.Pix[0] = 1
				p.Put(img)
			}
		}()
	}
	wg.Wait()
	if got := p.Len(32, 32); got > 8 {
		t.Errorf("Len = %d, exceeds bucket limit 8", got)
	}
}
