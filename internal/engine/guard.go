package engine

import (
	"context"
)

// Guard collects engine handles acquired during one logical operation and
// releases them together when the operation's control flow exits, on success
// and error paths alike. Handles that leak past an operation are only
// reclaimed by disposing the whole context.
//
// Usual shape:
//
//	g := engine.NewGuard(eng)
//	defer g.Close(ctx)
//	h, err := eng.NewString(ctx, "hi")
//	if err != nil {
//		return err
//	}
//	g.Track(h)
//
// A Guard is not safe for concurrent use, like the Engine it wraps.
type Guard struct {
	eng    Engine
	track  []Handle
	kept   map[Handle]struct{}
	closed bool
}

// NewGuard returns a guard releasing through eng.
func NewGuard(eng Engine) *Guard {
	return &Guard{eng: eng}
}

// Track registers h for release and returns it unchanged. Zero handles are
// ignored so failed acquisitions can be tracked without checking. Tracking
// the same handle twice would release it twice; each owned handle goes
// through Track once.
func (g *Guard) Track(h Handle) Handle {
	if h == 0 || g.closed {
		return h
	}
	g.track = append(g.track, h)
	return h
}

// Keep exempts h from release, typically the single result handle an
// operation returns to its caller.
func (g *Guard) Keep(h Handle) Handle {
	if h == 0 {
		return h
	}
	if g.kept == nil {
		g.kept = map[Handle]struct{}{}
	}
	g.kept[h] = struct{}{}
	return h
}

// Len returns how many handles are currently tracked.
func (g *Guard) Len() int {
	return len(g.track)
}

// Close releases every tracked handle that was not kept. Idempotent.
func (g *Guard) Close(ctx context.Context) {
	if g.closed {
		return
	}
	g.closed = true

	for _, h := range g.track {
		if _, ok := g.kept[h]; ok {
			continue
		}
		g.eng.Free(ctx, h)
	}
	g.track = nil
	g.kept = nil
}
