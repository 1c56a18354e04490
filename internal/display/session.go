// Package display runs one merchandising screen: a push-channel connection,
// the recommendation feed and the carousel showing its products.
package display

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"example/merch-display/internal/carousel"
	"example/merch-display/internal/feed"
	"example/merch-display/internal/layout"
	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
	"example/merch-display/internal/pushchannel"
	"example/merch-display/internal/repository"

	"go.uber.org/multierr"
)

// ErrStopped is returned when starting a session that was already stopped
var ErrStopped = errors.New("display session stopped")

// SettingsSource provides the current settings; *settings.Store satisfies it
type SettingsSource interface {
	Get() models.Settings
	OnChange(fn func(models.Settings))
}

// Connection is the indicator shown in the corner of the display
type Connection struct {
	Status    string `json:"status"`
	Label     string `json:"label"`
	Connected bool   `json:"connected"`
	LastError string `json:"lastError,omitempty"`
}

// Snapshot is everything a display page needs to draw itself
type Snapshot struct {
	Connection Connection     `json:"connection"`
	Slide      carousel.Slide `json:"slide"`
	Params     layout.Params  `json:"params"`
}

// Options tunes a session
type Options struct {
	// Interval is the dwell time used when the settings carry none
	Interval time.Duration
	// DB, when set, caches the last delivered product list
	DB *sql.DB
	// Restore seeds the carousel from the cached list on start
	Restore bool
	Ticker  carousel.TickerFunc
}

// Session owns exactly one push-channel client, one feed consumer and one
// carousel. After Stop, late events no longer change what is shown.
type Session struct {
	client   *pushchannel.Client
	consumer *feed.Consumer
	carousel *carousel.Carousel
	settings SettingsSource
	opts     Options

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
	subs      []*pushchannel.Subscription
	removeObs func()
	listeners map[int]func(Snapshot)
	nextID    int

	// cache writer: the latest list waits in pending
	pending    chan []models.Product
	writerDone chan struct{}
	cacheErr   error
}

// NewSession takes ownership of client
func NewSession(client *pushchannel.Client, src SettingsSource, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = layout.DefaultInterval
	}
	var copts []carousel.Option
	if opts.Ticker != nil {
		copts = append(copts, carousel.WithTicker(opts.Ticker))
	}
	s := &Session{
		client:    client,
		settings:  src,
		opts:      opts,
		carousel:  carousel.New(intervalFor(src.Get(), opts.Interval), copts...),
		listeners: make(map[int]func(Snapshot)),
	}
	s.consumer = feed.NewConsumer(s)
	return s
}

// Start wires the handlers, starts the carousel timer and connects.
// It returns at once; the connection is established in the background.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	if s.opts.DB != nil {
		s.pending = make(chan []models.Product, 1)
		s.writerDone = make(chan struct{})
		go s.writeCache()
	}
	s.mu.Unlock()

	if s.opts.Restore && s.opts.DB != nil {
		if cached, err := repository.LoadProducts(s.opts.DB); err != nil {
			logger.Log.Warnw("Failed to restore cached products", "error", err)
		} else if len(cached) > 0 {
			logger.Log.Infow("Restored cached products", "count", len(cached))
			s.carousel.SetProducts(cached)
		}
	}

	var subs []*pushchannel.Subscription
	for _, ev := range []string{pushchannel.EventConnect, pushchannel.EventDisconnect, pushchannel.EventConnectError, pushchannel.EventError} {
		subs = append(subs, s.client.On(ev, func(payload json.RawMessage) { s.onLifecycle(ev, payload) }))
	}
	removeObs := s.carousel.OnChange(func(carousel.State) { s.publish() })
	s.settings.OnChange(s.onSettings)

	s.mu.Lock()
	s.subs = subs
	s.removeObs = removeObs
	s.mu.Unlock()

	s.consumer.Start(s.client)
	go func() {
		defer close(s.done)
		s.carousel.Run(runCtx)
	}()
	s.client.Connect(runCtx)
	logger.Log.Infow("Display session started")
	return nil
}

// Stop closes the connection, drops the handlers and stops the carousel
// timer. It is safe to call more than once.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel, done, subs, removeObs := s.cancel, s.done, s.subs, s.removeObs
	s.subs, s.removeObs = nil, nil
	s.listeners = make(map[int]func(Snapshot))
	if s.pending != nil {
		close(s.pending)
	}
	writerDone := s.writerDone
	s.mu.Unlock()

	s.consumer.Stop()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if removeObs != nil {
		removeObs()
	}

	var err error
	err = multierr.Append(err, s.client.Close())
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if writerDone != nil {
		<-writerDone
		err = multierr.Append(err, s.cacheErr)
	}
	logger.Log.Infow("Display session stopped", "error", err)
	return err
}

// SetProducts receives lists from the feed consumer
func (s *Session) SetProducts(products []models.Product) {
	if s.isStopped() {
		return
	}
	s.carousel.SetProducts(products)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.pending == nil {
		return
	}
	// replace a list not yet written
	select {
	case <-s.pending:
	default:
	}
	s.pending <- products
}

// Snapshot returns the current connection indicator and slide
func (s *Session) Snapshot() Snapshot {
	params := layout.Resolve(s.settings.Get())
	return Snapshot{
		Connection: connectionOf(s.client.Status()),
		Slide:      carousel.Render(s.carousel.State(), params),
		Params:     params,
	}
}

// Subscribe calls fn with a fresh snapshot after every visible change.
// fn must not block. The returned function removes it.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) onLifecycle(event string, payload []byte) {
	switch event {
	case pushchannel.EventConnect:
		logger.Log.Infow("Display connected to recommendation stream")
	case pushchannel.EventDisconnect:
		// the product list is kept while reconnecting
		logger.Log.Warnw("Display disconnected", "info", string(payload))
	default:
		logger.Log.Errorw("Display connection error", "event", event, "info", string(payload))
	}
	s.publish()
}

func (s *Session) onSettings(v models.Settings) {
	if s.isStopped() {
		return
	}
	s.carousel.SetInterval(intervalFor(v, s.opts.Interval))
	s.publish()
}

func (s *Session) publish() {
	s.mu.Lock()
	if s.stopped || len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// writeCache persists delivered lists until pending is closed
func (s *Session) writeCache() {
	defer close(s.writerDone)
	for products := range s.pending {
		err := repository.SaveProducts(s.opts.DB, products)
		if err != nil {
			logger.Log.Warnw("Failed to cache products", "count", len(products), "error", err)
		}
		s.mu.Lock()
		s.cacheErr = err
		s.mu.Unlock()
	}
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func intervalFor(v models.Settings, fallback time.Duration) time.Duration {
	if v.Layout.Config.IntervalMs > 0 {
		return layout.Resolve(v).Interval
	}
	return fallback
}

func connectionOf(st pushchannel.ConnectionState) Connection {
	c := Connection{Status: st.Status(), Connected: st.Connected, LastError: st.LastError}
	switch c.Status {
	case "connected":
		c.Label = "Connected"
	case "error":
		c.Label = "Connection Error"
	default:
		c.Label = "Connecting..."
	}
	return c
}
