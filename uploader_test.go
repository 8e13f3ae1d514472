package tiletex

import (
	"sync"
	"testing"
	"time"
)

// fakeLoop records registrations and redraw requests.
type fakeLoop struct {
	mu        sync.Mutex
	listeners []IdleListener
	renders   int
}

func (l *fakeLoop) AddIdleListener(li IdleListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, li)
}

func (l *fakeLoop) RequestRender() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.renders++
}

func (l *fakeLoop) counts() (listeners, renders int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners), l.renders
}

// steppingClock advances by step on every reading.
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func newTestTexture(t *testing.T, pool *TilePool, w, h int) *TiledTexture {
	t.Helper()
	tex, err := NewTiledTexture(gradientImage(w, h), WithTilePool(pool))
	if err != nil {
		t.Fatal(err)
	}
	return tex
}

func TestUploader_Budget(t *testing.T) {
	pool := newTestPool(t, 2, 1)
	tex := newTestTexture(t, pool, 8, 8) // 16 tiles
	loop := &fakeLoop{}
	clock := &steppingClock{now: time.Unix(0, 0), step: time.Millisecond}
	u := NewUploader(loop, WithUploadBudget(4*time.Millisecond), WithClock(clock.Now))
	c := &recordingCanvas{}

	u.Add(tex)

	if !u.OnIdle(c, false) {
		t.Fatal("OnIdle() = false with work pending")
	}
	// One clock reading sets the deadline, one follows each tile.
	if got := c.uploadCount(); got != 4 {
		t.Errorf("uploads in one slice = %d, want 4", got)
	}

	for u.OnIdle(c, false) {
	}
	if !tex.IsReady() {
		t.Error("texture not ready after draining the queue")
	}
	if got := c.uploadCount(); got != 16 {
		t.Errorf("total uploads = %d, want 16", got)
	}
	if _, renders := loop.counts(); renders != 1 {
		t.Errorf("RequestRender calls = %d, want 1", renders)
	}
	if u.Len() != 0 {
		t.Errorf("Len() = %d, want 0", u.Len())
	}
}

func TestUploader_FIFO(t *testing.T) {
	pool := newTestPool(t, 2, 1)
	a := newTestTexture(t, pool, 4, 2) // 2 tiles
	b := newTestTexture(t, pool, 4, 2)
	loop := &fakeLoop{}
	u := NewUploader(loop, WithUploadBudget(time.Hour))
	c := &recordingCanvas{}

	u.Add(a)
	u.Add(b)
	if u.OnIdle(c, false) {
		t.Error("OnIdle() = true after draining everything")
	}

	want := []*Tile{a.tiles[0], a.tiles[1], b.tiles[0], b.tiles[1]}
	if len(c.uploads) != len(want) {
		t.Fatalf("uploads = %d, want %d", len(c.uploads), len(want))
	}
	for i, up := range c.uploads {
		if up.tile != want[i] {
			t.Errorf("upload %d out of order", i)
		}
	}
	if _, renders := loop.counts(); renders != 2 {
		t.Errorf("RequestRender calls = %d, want 2", renders)
	}
}

func TestUploader_Add(t *testing.T) {
	pool := newTestPool(t, 2, 1)
	loop := &fakeLoop{}
	u := NewUploader(loop, WithUploadBudget(time.Hour))
	c := &recordingCanvas{}

	tex := newTestTexture(t, pool, 4, 4)
	u.Add(tex)
	u.Add(tex)
	if u.Len() != 1 {
		t.Errorf("Len() = %d after duplicate Add, want 1", u.Len())
	}

	other := newTestTexture(t, pool, 4, 4)
	u.Add(other)
	if listeners, _ := loop.counts(); listeners != 1 {
		t.Errorf("AddIdleListener calls = %d, want 1", listeners)
	}

	u.OnIdle(c, false)

	// Ready textures are not queued.
	u.Add(tex)
	if u.Len() != 0 {
		t.Errorf("Len() = %d after adding a ready texture, want 0", u.Len())
	}

	// Once idle, the next Add registers again.
	if err := tex.SetImage(gradientImage(4, 4)); err != nil {
		t.Fatal(err)
	}
	u.Add(tex)
	if listeners, _ := loop.counts(); listeners != 2 {
		t.Errorf("AddIdleListener calls = %d, want 2", listeners)
	}
	u.Add(nil)
	if u.Len() != 1 {
		t.Errorf("Len() = %d, want 1", u.Len())
	}
}

func TestUploader_Clear(t *testing.T) {
	pool := newTestPool(t, 2, 1)
	loop := &fakeLoop{}
	u := NewUploader(loop)
	c := &recordingCanvas{}

	u.Add(newTestTexture(t, pool, 4, 4))
	u.Add(newTestTexture(t, pool, 4, 4))
	u.Clear()

	if u.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", u.Len())
	}
	if u.OnIdle(c, false) {
		t.Error("OnIdle() = true after Clear")
	}
	if c.uploadCount() != 0 {
		t.Errorf("uploads = %d after Clear, want 0", c.uploadCount())
	}
}

func TestUploader_RecycledTextureLeavesQueue(t *testing.T) {
	pool := newTestPool(t, 2, 1)
	loop := &fakeLoop{}
	u := NewUploader(loop, WithUploadBudget(time.Hour))
	c := &recordingCanvas{}

	tex := newTestTexture(t, pool, 4, 4)
	u.Add(tex)
	tex.Recycle()

	if u.OnIdle(c, false) {
		t.Error("OnIdle() = true with only a recycled texture queued")
	}
	if c.uploadCount() != 0 {
		t.Errorf("uploads = %d, want 0", c.uploadCount())
	}
}

func TestUploader_ConcurrentAdd(t *testing.T) {
	pool := newTestPool(t, 2, 1)
	loop := &fakeLoop{}
	u := NewUploader(loop, WithUploadBudget(time.Hour))

	const n = 16
	textures := make([]*TiledTexture, n)
	for i := range textures {
		textures[i] = newTestTexture(t, pool, 4, 4)
	}

	var wg sync.WaitGroup
	for _, tex := range textures {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.Add(tex)
			u.Add(tex)
		}()
	}
	wg.Wait()

	if u.Len() != n {
		t.Errorf("Len() = %d, want %d", u.Len(), n)
	}
	c := &recordingCanvas{}
	u.OnIdle(c, false)
	for i, tex := range textures {
		if !tex.IsReady() {
			t.Errorf("texture %d not ready", i)
		}
	}
}
