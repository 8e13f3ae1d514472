package tiletex

import (
	"sync"
	"time"
)

// DefaultUploadBudget is the time one idle slice may spend uploading tiles.
const DefaultUploadBudget = 4 * time.Millisecond

// UploaderOption configures an Uploader during creation.
type UploaderOption func(*Uploader)

// WithUploadBudget sets the per-idle-slice upload budget. Non-positive
// values keep the default.
func WithUploadBudget(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		if d > 0 {
			u.budget = d
		}
	}
}

// WithClock replaces time.Now. Tests use it to drive the budget check
// deterministically.
func WithClock(now func() time.Time) UploaderOption {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// Uploader streams queued textures to the canvas during render-loop idle
// time, a few tiles per slice, so that uploads never exceed the per-frame
// budget.
//
// Textures are serviced strictly in the order they were added. A texture
// leaves the queue the moment it becomes ready, and a redraw is requested
// so the new content shows up.
//
// Add may be called from any goroutine. OnIdle runs on the render goroutine.
type Uploader struct {
	loop   RenderLoop
	budget time.Duration
	now    func() time.Time

	mu         sync.Mutex
	queue      []*TiledTexture
	queued     map[*TiledTexture]struct{}
	registered bool
}

// NewUploader creates an Uploader that registers itself with loop whenever
// it has pending work.
func NewUploader(loop RenderLoop, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		loop:   loop,
		budget: DefaultUploadBudget,
		now:    time.Now,
		queued: make(map[*TiledTexture]struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Add queues t for upload. Ready textures and textures already queued are
// ignored.
func (u *Uploader) Add(t *TiledTexture) {
	if t == nil || t.IsReady() {
		return
	}

	u.mu.Lock()
	if _, ok := u.queued[t]; ok {
		u.mu.Unlock()
		return
	}
	u.queue = append(u.queue, t)
	u.queued[t] = struct{}{}

	register := !u.registered
	u.registered = true
	u.mu.Unlock()

	if register {
		u.loop.AddIdleListener(u)
	}
}

// OnIdle uploads tiles from the head of the queue until the queue is empty
// or the budget is spent. It reports whether work remains, which keeps the
// Uploader registered with the render loop.
//
// The budget is checked between tiles; a single tile upload is never split.
func (u *Uploader) OnIdle(c Canvas, _ bool) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	deadline := now.Add(u.budget)
	for now.Before(deadline) && len(u.queue) > 0 {
		t := u.queue[0]
		if t.UploadNextTile(c) {
			u.pop()
			u.loop.RequestRender()
		}
		now = u.now()
	}

	u.registered = len(u.queue) > 0
	return u.registered
}

func (u *Uploader) pop() {
	t := u.queue[0]
	u.queue[0] = nil
	u.queue = u.queue[1:]
	delete(u.queued, t)
}

// Clear drops every pending texture. Textures keep whatever tiles they
// already uploaded.
func (u *Uploader) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()

	clear(u.queue)
	u.queue = u.queue[:0]
	clear(u.queued)
}

// Len returns the number of queued textures.
func (u *Uploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queue)
}
