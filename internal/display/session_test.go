package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"example/merch-display/internal/carousel"
	"example/merch-display/internal/config"
	"example/merch-display/internal/layout"
	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
	"example/merch-display/internal/pushchannel"
	"example/merch-display/internal/pushchannel/pushchanneltest"
	"example/merch-display/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLoggerDev()
}

const (
	waitFor = 2 * time.Second
	tickGap = 10 * time.Millisecond
)

type staticSettings struct {
	mu   sync.Mutex
	v    models.Settings
	subs []func(models.Settings)
}

func (s *staticSettings) Get() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

func (s *staticSettings) OnChange(fn func(models.Settings)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *staticSettings) set(v models.Settings) {
	s.mu.Lock()
	s.v = v
	subs := append([]func(models.Settings){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

// ticks hands the carousel a channel the test drives
type ticks struct {
	mu       sync.Mutex
	ch       chan time.Time
	started  int
	interval time.Duration
}

func (tk *ticks) start(d time.Duration) (<-chan time.Time, func()) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.ch = make(chan time.Time)
	tk.started++
	tk.interval = d
	return tk.ch, func() {}
}

func (tk *ticks) fire(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		tk.mu.Lock()
		defer tk.mu.Unlock()
		return tk.ch != nil
	}, waitFor, tickGap)
	tk.mu.Lock()
	ch := tk.ch
	tk.mu.Unlock()
	select {
	case ch <- time.Now():
	case <-time.After(waitFor):
		t.Fatal("tick not consumed")
	}
}

func productList(ids ...string) []map[string]any {
	out := make([]map[string]any, len(ids))
	for i, id := range ids {
		out[i] = map[string]any{"id": id, "name": "Product " + id, "price": 100, "tags": []string{}}
	}
	return out
}

func newSession(t *testing.T, srv *pushchanneltest.Server, src SettingsSource, opts Options) (*Session, *ticks) {
	t.Helper()
	tk := &ticks{}
	if opts.Ticker == nil {
		opts.Ticker = tk.start
	}
	client := pushchannel.New(srv.URL(), pushchannel.Options{ReconnectionDelay: 20 * time.Millisecond})
	s := NewSession(client, src, opts)
	t.Cleanup(func() { _ = s.Stop() })
	return s, tk
}

func emitProducts(t *testing.T, srv *pushchanneltest.Server, ids ...string) {
	t.Helper()
	require.NoError(t, srv.Emit("product-recommendations", map[string]any{"type": "products", "products": productList(ids...)}))
}

func TestEmptyThenTwoProducts(t *testing.T) {
	srv := pushchanneltest.NewServer()
	defer srv.Close()
	s, tk := newSession(t, srv, &staticSettings{}, Options{})

	require.NoError(t, s.Start(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, carousel.PhaseEmpty, snap.Slide.Phase)

	require.Eventually(t, func() bool { return s.Snapshot().Connection.Connected }, waitFor, tickGap)
	assert.Equal(t, "Connected", s.Snapshot().Connection.Label)

	emitProducts(t, srv, "a", "b")
	require.Eventually(t, func() bool { return s.Snapshot().Slide.Phase == carousel.PhaseDisplaying }, waitFor, tickGap)
	assert.Equal(t, "a", s.Snapshot().Slide.Product.ID)
	assert.Equal(t, "1 / 2", s.Snapshot().Slide.Counter)

	tk.fire(t)
	require.Eventually(t, func() bool { return s.Snapshot().Slide.Index == 1 }, waitFor, tickGap)
	tk.fire(t)
	require.Eventually(t, func() bool { return s.Snapshot().Slide.Index == 0 }, waitFor, tickGap)
}

func TestDisconnectKeepsProductsAndReconnectResets(t *testing.T) {
	srv := pushchanneltest.NewServer()
	defer srv.Close()
	s, tk := newSession(t, srv, &staticSettings{}, Options{})
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return srv.Connections() == 1 }, waitFor, tickGap)

	emitProducts(t, srv, "a", "b", "c")
	require.Eventually(t, func() bool { return s.Snapshot().Slide.Total == 3 }, waitFor, tickGap)
	tk.fire(t)
	require.Eventually(t, func() bool { return s.Snapshot().Slide.Index == 1 }, waitFor, tickGap)

	srv.DropAll()
	require.Eventually(t, func() bool { return srv.Attempts() >= 2 }, waitFor, tickGap)
	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Slide.Total)
	assert.Equal(t, "b", snap.Slide.Product.ID)

	require.Eventually(t, func() bool { return s.Snapshot().Connection.Connected && srv.Connections() == 1 }, waitFor, tickGap)
	emitProducts(t, srv, "x", "y")
	require.Eventually(t, func() bool {
		sl := s.Snapshot().Slide
		return sl.Total == 2 && sl.Index == 0 && sl.Product.ID == "x"
	}, waitFor, tickGap)
}

func TestMalformedDeliveryKeepsList(t *testing.T) {
	srv := pushchanneltest.NewServer()
	defer srv.Close()
	s, _ := newSession(t, srv, &staticSettings{}, Options{})
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return srv.Connections() == 1 }, waitFor, tickGap)

	emitProducts(t, srv, "a")
	require.Eventually(t, func() bool { return s.Snapshot().Slide.Total == 1 }, waitFor, tickGap)

	require.NoError(t, srv.Emit("product-recommendations", map[string]any{"type": "products"}))
	require.NoError(t, srv.Emit("product-recommendations", map[string]any{"type": "products", "products": "nope"}))
	emitProducts(t, srv, "b", "c")
	require.Eventually(t, func() bool { return s.Snapshot().Slide.Total == 2 }, waitFor, tickGap)
}

func TestRejectedTokenShowsConnectionError(t *testing.T) {
	srv := pushchanneltest.NewServer()
	srv.Token = "secret"
	defer srv.Close()

	client := pushchannel.New(srv.URL(), pushchannel.Options{AuthToken: "wrong", ReconnectionDelay: 20 * time.Millisecond})
	s := NewSession(client, &staticSettings{}, Options{})
	defer s.Stop()
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.Snapshot().Connection.Status == "error" }, waitFor, tickGap)
	c := s.Snapshot().Connection
	assert.Equal(t, "Connection Error", c.Label)
	assert.Equal(t, "invalid token", c.LastError)
}

func TestStopIgnoresLateUpdates(t *testing.T) {
	srv := pushchanneltest.NewServer()
	defer srv.Close()
	s, _ := newSession(t, srv, &staticSettings{}, Options{})
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return srv.Connections() == 1 }, waitFor, tickGap)

	var mu sync.Mutex
	published := 0
	s.Subscribe(func(Snapshot) { mu.Lock(); published++; mu.Unlock() })

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	s.SetProducts([]models.Product{{ID: "late"}})
	assert.Equal(t, carousel.PhaseEmpty, s.Snapshot().Slide.Phase)
	assert.False(t, s.Snapshot().Connection.Connected)
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, published)
}

func TestSubscribersSeeChanges(t *testing.T) {
	srv := pushchanneltest.NewServer()
	defer srv.Close()
	s, _ := newSession(t, srv, &staticSettings{}, Options{})

	snaps := make(chan Snapshot, 16)
	remove := s.Subscribe(func(sn Snapshot) {
		select {
		case snaps <- sn:
		default:
		}
	})
	defer remove()
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return srv.Connections() == 1 }, waitFor, tickGap)
	emitProducts(t, srv, "a")

	deadline := time.After(waitFor)
	for {
		select {
		case sn := <-snaps:
			if sn.Slide.Phase == carousel.PhaseDisplaying {
				assert.Equal(t, "a", sn.Slide.Product.ID)
				return
			}
		case <-deadline:
			t.Fatal("no displaying snapshot published")
		}
	}
}

func TestSettingsChangeUpdatesIntervalAndParams(t *testing.T) {
	srv := pushchanneltest.NewServer()
	defer srv.Close()
	src := &staticSettings{}
	s, tk := newSession(t, srv, src, Options{Interval: 7 * time.Second})
	require.NoError(t, s.Start(context.Background()))

	s.SetProducts([]models.Product{{ID: "a"}, {ID: "b"}})
	require.Eventually(t, func() bool { tk.mu.Lock(); defer tk.mu.Unlock(); return tk.started >= 1 }, waitFor, tickGap)
	tk.mu.Lock()
	assert.Equal(t, 7*time.Second, tk.interval)
	tk.mu.Unlock()

	src.set(models.Settings{Layout: models.Layout{Style: "grid", Config: models.LayoutConfig{IntervalMs: 2000, ImageOrientation: "portrait"}}})
	require.Eventually(t, func() bool { tk.mu.Lock(); defer tk.mu.Unlock(); return tk.interval == 2*time.Second }, waitFor, tickGap)

	snap := s.Snapshot()
	assert.Equal(t, layout.StyleGrid, snap.Params.Style)
	assert.Equal(t, layout.Portrait, snap.Slide.Orientation)
}

func TestProductCacheRestoresOnNextStart(t *testing.T) {
	db, err := repository.Open(config.Config{DBDriver: "sqlite3", DBDSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	srv := pushchanneltest.NewServer()
	defer srv.Close()

	first, _ := newSession(t, srv, &staticSettings{}, Options{DB: db})
	require.NoError(t, first.Start(context.Background()))
	require.Eventually(t, func() bool { return srv.Connections() == 1 }, waitFor, tickGap)
	emitProducts(t, srv, "a", "b")
	require.Eventually(t, func() bool { return first.Snapshot().Slide.Total == 2 }, waitFor, tickGap)
	require.NoError(t, first.Stop())

	cached, err := repository.LoadProducts(db)
	require.NoError(t, err)
	require.Len(t, cached, 2)

	second, _ := newSession(t, srv, &staticSettings{}, Options{DB: db, Restore: true})
	require.NoError(t, second.Start(context.Background()))
	snap := second.Snapshot()
	assert.Equal(t, carousel.PhaseDisplaying, snap.Slide.Phase)
	assert.Equal(t, "a", snap.Slide.Product.ID)
}
