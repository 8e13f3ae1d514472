// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"context"
	"sync"
	"time"

	"github.com/gogpu/tiletex"
)

// DefaultFrameInterval is the frame period of a Loop, about 60 frames per
// second.
const DefaultFrameInterval = 16 * time.Millisecond

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithFrameInterval sets the frame period. Idle listeners run in the time
// left between the end of a draw and the next frame.
func WithFrameInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithDrawFunc sets the function that redraws the scene when a render was
// requested.
func WithDrawFunc(fn func(tiletex.Canvas)) LoopOption {
	return func(l *Loop) {
		l.draw = fn
	}
}

// WithLoopClock replaces time.Now for deadline checks.
func WithLoopClock(now func() time.Time) LoopOption {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// Loop is a minimal render loop implementing tiletex.RenderLoop.
//
// Each Frame draws if a render was requested, then hands the rest of the
// frame period to idle listeners in FIFO order, one listener per turn. A
// listener returning true goes to the back of the queue. Idle work stops
// for the frame once a render is requested, so freshly uploaded content
// shows up on the next frame.
//
// AddIdleListener and RequestRender are safe for concurrent use. Frame and
// Run must be called from the goroutine that owns the canvas.
type Loop struct {
	canvas   tiletex.Canvas
	interval time.Duration
	draw     func(tiletex.Canvas)
	now      func() time.Time

	mu              sync.Mutex
	idle            []tiletex.IdleListener
	renderRequested bool
	frames          int
}

// NewLoop creates a loop rendering to canvas.
func NewLoop(canvas tiletex.Canvas, opts ...LoopOption) *Loop {
	l := &Loop{
		canvas:   canvas,
		interval: DefaultFrameInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddIdleListener queues li for the next idle turn.
func (l *Loop) AddIdleListener(li tiletex.IdleListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.idle = append(l.idle, li)
}

// RequestRender schedules a redraw on the next Frame.
func (l *Loop) RequestRender() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.renderRequested = true
}

// Idle reports whether the loop has nothing to do: no render requested and
// no idle listeners queued.
func (l *Loop) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.renderRequested && len(l.idle) == 0
}

// Frames returns the number of frames drawn so far.
func (l *Loop) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Frame runs one frame and reports whether it drew.
func (l *Loop) Frame() bool {
	start := l.now()

	l.mu.Lock()
	drew := l.renderRequested
	l.renderRequested = false
	if drew {
		l.frames++
	}
	l.mu.Unlock()

	if drew && l.draw != nil {
		l.draw(l.canvas)
	}
	l.runIdle(start.Add(l.interval))
	return drew
}

// runIdle runs queued listeners until the deadline, the queue empties, or
// a render is requested. The first listener always gets a turn so idle
// work cannot starve under constant redraws.
func (l *Loop) runIdle(deadline time.Time) {
	for first := true; ; first = false {
		l.mu.Lock()
		if len(l.idle) == 0 || (!first && (l.renderRequested || !l.now().Before(deadline))) {
			l.mu.Unlock()
			return
		}
		li := l.idle[0]
		l.idle[0] = nil
		l.idle = l.idle[1:]
		requested := l.renderRequested
		l.mu.Unlock()

		// Listeners run without the lock; they call back into the loop.
		keep := li.OnIdle(l.canvas, requested)

		if keep {
			l.mu.Lock()
			l.idle = append(l.idle, li)
			l.mu.Unlock()
		}
	}
}

// Run calls Frame once per frame interval until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Frame()
		}
	}
}

var _ tiletex.RenderLoop = (*Loop)(nil)
