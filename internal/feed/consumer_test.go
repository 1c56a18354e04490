package feed

import (
	"encoding/json"
	"sync"
	"testing"

	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
	"example/merch-display/internal/pushchannel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLoggerDev()
}

// fakeSource captures the registered handler so tests can push events
type fakeSource struct {
	handlers map[string]pushchannel.Handler
}

func (f *fakeSource) On(event string, h pushchannel.Handler) *pushchannel.Subscription {
	if f.handlers == nil {
		f.handlers = make(map[string]pushchannel.Handler)
	}
	f.handlers[event] = h
	return &pushchannel.Subscription{}
}

func (f *fakeSource) push(t *testing.T, payload string) {
	t.Helper()
	h, ok := f.handlers[EventRecommendations]
	require.True(t, ok, "consumer did not subscribe")
	h(json.RawMessage(payload))
}

// recordingSink keeps every list it was handed
type recordingSink struct {
	mu    sync.Mutex
	lists [][]models.Product
}

func (s *recordingSink) SetProducts(p []models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = append(s.lists, p)
}

func (s *recordingSink) current() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lists) == 0 {
		return nil
	}
	return s.lists[len(s.lists)-1]
}

type panickySink struct{}

func (panickySink) SetProducts([]models.Product) { panic("render failed") }

func TestWellFormedPayloadReplacesList(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	c := NewConsumer(sink)
	c.Start(src)

	src.push(t, `{"type":"products","products":[{"id":"a","name":"A","price":1,"tags":[]},{"id":"b","name":"B","price":2,"tags":["x"]}]}`)
	require.Len(t, sink.current(), 2)
	assert.Equal(t, "a", sink.current()[0].ID)

	src.push(t, `{"type":"products","products":[{"id":"c","name":"C","price":3,"tags":[]}]}`)
	require.Len(t, sink.current(), 1)
	assert.Equal(t, "c", sink.current()[0].ID)
}

func TestEmptyListIsAccepted(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	NewConsumer(sink).Start(src)

	src.push(t, `{"type":"products","products":[]}`)
	require.Len(t, sink.lists, 1)
	assert.NotNil(t, sink.current())
	assert.Empty(t, sink.current())
}

func TestMalformedPayloadKeepsPreviousList(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	NewConsumer(sink).Start(src)
	src.push(t, `{"type":"products","products":[{"id":"a","name":"A","price":1,"tags":[]}]}`)

	for _, bad := range []string{
		`{"type":"products"}`,
		`{"type":"products","products":null}`,
		`{"type":"products","products":{"id":"a"}}`,
		`{"type":"offers","products":[]}`,
		`not json`,
		``,
	} {
		src.push(t, bad)
	}
	require.Len(t, sink.lists, 1)
	assert.Equal(t, "a", sink.current()[0].ID)
}

func TestPanickingSinkIsContained(t *testing.T) {
	src := &fakeSource{}
	NewConsumer(panickySink{}).Start(src)
	assert.NotPanics(t, func() {
		src.push(t, `{"type":"products","products":[]}`)
	})
}

func TestDecode(t *testing.T) {
	products, err := Decode(json.RawMessage(`{"type":"products","products":[{"id":"p","name":"P","price":9.5,"discount":10,"tags":["new"]}]}`))
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 9.5, products[0].Price)
	require.NotNil(t, products[0].Discount)
	assert.Equal(t, 10.0, *products[0].Discount)

	_, err = Decode(json.RawMessage(`{"type":"products","products":"nope"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeUntaggedPayload(t *testing.T) {
	products, err := Decode(json.RawMessage(`{"products":[{"id":"a","name":"A","price":1}]}`))
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "a", products[0].ID)

	products, err = Decode(json.RawMessage(`{"products":[]}`))
	require.NoError(t, err)
	assert.Empty(t, products)

	_, err = Decode(json.RawMessage(`{"type":"orders","products":[]}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Decode(json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestUntaggedPayloadReachesSink(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	NewConsumer(sink).Start(src)

	src.push(t, `{"products":[{"id":"x","name":"X","price":2}]}`)
	require.Len(t, sink.current(), 1)
	assert.Equal(t, "x", sink.current()[0].ID)
}

func TestStopUnsubscribes(t *testing.T) {
	client := pushchannel.New("http://127.0.0.1:1", pushchannel.Options{})
	c := NewConsumer(&recordingSink{})

	c.Start(client)
	assert.Equal(t, 1, client.Listeners(EventRecommendations))

	// restarting does not double-subscribe
	c.Start(client)
	assert.Equal(t, 1, client.Listeners(EventRecommendations))

	c.Stop()
	assert.Equal(t, 0, client.Listeners(EventRecommendations))
	c.Stop()
}
