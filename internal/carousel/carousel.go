// Package carousel cycles through the recommended products one at a time.
package carousel

import (
	"context"
	"slices"
	"sync"
	"time"

	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
)

// Phase is the carousel state tag
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseDisplaying Phase = "displaying"
)

// State is a snapshot of the carousel after a transition
type State struct {
	Phase   Phase           `json:"phase"`
	Index   int             `json:"index"`
	Total   int             `json:"total"`
	Product *models.Product `json:"product,omitempty"`
}

// TickerFunc starts a periodic tick source and returns its stop function
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Option customizes a Carousel
type Option func(*Carousel)

// WithTicker replaces the wall-clock ticker, mainly for tests
func WithTicker(f TickerFunc) Option {
	return func(c *Carousel) { c.newTicker = f }
}

// Carousel is the two-state machine Empty / Displaying(index).
// Replacing the product list resets the index and the timer in one step.
type Carousel struct {
	mu        sync.Mutex
	products  []models.Product
	index     int
	gen       uint64
	interval  time.Duration
	observers map[int]func(State)
	nextObs   int

	restart   chan struct{}
	newTicker TickerFunc
}

// New creates an empty carousel advancing every interval
func New(interval time.Duration, opts ...Option) *Carousel {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	c := &Carousel{
		interval:  interval,
		observers: make(map[int]func(State)),
		restart:   make(chan struct{}, 1),
		newTicker: systemTicker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers an observer called after every transition.
// The returned function removes it.
func (c *Carousel) OnChange(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// SetProducts replaces the product list. A non-empty list shows its first
// product and restarts the timer; an empty list stops cycling. Handing in
// the list already shown is a no-op.
func (c *Carousel) SetProducts(list []models.Product) {
	c.mu.Lock()
	if sameSlice(c.products, list) {
		c.mu.Unlock()
		return
	}
	c.products = list
	c.index = 0
	c.gen++
	st, obs := c.stateLocked(), c.observersLocked()
	c.mu.Unlock()

	c.signalRestart()
	notify(obs, st)
}

// SetInterval changes the dwell time without touching the current index
func (c *Carousel) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	changed := c.interval != d
	c.interval = d
	c.mu.Unlock()
	if changed {
		c.signalRestart()
	}
}

// Advance moves to the next product, wrapping at the end.
// It does nothing while the carousel is empty.
func (c *Carousel) Advance() {
	c.mu.Lock()
	c.advanceLocked()
}

// advanceIf advances only when no list replacement happened since gen was read
func (c *Carousel) advanceIf(gen uint64) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.advanceLocked()
	return true
}

// advanceLocked releases c.mu
func (c *Carousel) advanceLocked() {
	n := len(c.products)
	if n == 0 {
		c.mu.Unlock()
		return
	}
	c.index = (c.index + 1) % n
	st, obs := c.stateLocked(), c.observersLocked()
	c.mu.Unlock()
	notify(obs, st)
}

// State returns the current snapshot
func (c *Carousel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Run drives the timer until ctx is done. No ticker runs while the
// carousel is empty.
func (c *Carousel) Run(ctx context.Context) {
	for {
		// the state read below already reflects any pending restart
		select {
		case <-c.restart:
		default:
		}
		c.mu.Lock()
		gen, n, interval := c.gen, len(c.products), c.interval
		c.mu.Unlock()

		var tick <-chan time.Time
		stop := func() {}
		if n > 0 {
			tick, stop = c.newTicker(interval)
		}

		if !c.cycle(ctx, gen, tick) {
			stop()
			return
		}
		stop()
	}
}

// cycle waits on one timer generation; it returns false when ctx is done
func (c *Carousel) cycle(ctx context.Context, gen uint64, tick <-chan time.Time) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.restart:
			return true
		case <-tick:
			if !c.advanceIf(gen) {
				logger.Log.Debugw("Dropped stale carousel tick", "generation", gen)
				return true
			}
		}
	}
}

func (c *Carousel) signalRestart() {
	select {
	case c.restart <- struct{}{}:
	default:
	}
}

func (c *Carousel) stateLocked() State {
	n := len(c.products)
	if n == 0 {
		return State{Phase: PhaseEmpty}
	}
	p := c.products[c.index]
	return State{Phase: PhaseDisplaying, Index: c.index, Total: n, Product: &p}
}

func (c *Carousel) observersLocked() []func(State) {
	if len(c.observers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(State), len(ids))
	for i, id := range ids {
		out[i] = c.observers[id]
	}
	return out
}

func notify(obs []func(State), st State) {
	for _, fn := range obs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Log.Errorw("Carousel observer panicked", "panic", r)
				}
			}()
			fn(st)
		}()
	}
}

// sameSlice reports whether a and b are the same list instance
func sameSlice(a, b []models.Product) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
