// Package feed turns product-recommendations events into product lists.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
	"example/merch-display/internal/pushchannel"
)

// EventRecommendations is the push-channel event carrying product lists
const EventRecommendations = "product-recommendations"

// ErrInvalidPayload marks an event that cannot be turned into a product list
var ErrInvalidPayload = errors.New("invalid recommendation payload")

// Source is where events come from; *pushchannel.Client satisfies it
type Source interface {
	On(event string, h pushchannel.Handler) *pushchannel.Subscription
}

// Sink receives every accepted product list as a full replacement
type Sink interface {
	SetProducts(products []models.Product)
}

// Consumer feeds recommendation events into a Sink
type Consumer struct {
	sink Sink

	mu  sync.Mutex
	sub *pushchannel.Subscription
}

// NewConsumer creates a consumer delivering to sink
func NewConsumer(sink Sink) *Consumer {
	return &Consumer{sink: sink}
}

// Start subscribes to the recommendation event on src. Calling Start again
// replaces the previous subscription.
func (c *Consumer) Start(src Source) {
	sub := src.On(EventRecommendations, c.handle)
	c.mu.Lock()
	prev := c.sub
	c.sub = sub
	c.mu.Unlock()
	prev.Unsubscribe()
}

// Stop removes the subscription, whatever the connection state
func (c *Consumer) Stop() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	sub.Unsubscribe()
}

func (c *Consumer) handle(payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorw("Failed to apply product recommendations", "panic", r)
		}
	}()

	products, err := Decode(payload)
	if err != nil {
		logger.Log.Errorw("Error processing product recommendations", "error", err)
		return
	}
	logger.Log.Infow("Received product recommendations", "count", len(products))
	c.sink.SetProducts(products)
}

// Decode validates a recommendation payload and returns its product list.
// An empty list is valid; a missing or non-list products field is not.
// The type tag may be omitted, but any other tag than "products" is rejected.
func Decode(payload json.RawMessage) ([]models.Product, error) {
	var raw struct {
		Type     string          `json:"type"`
		Products json.RawMessage `json:"products"`
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if raw.Type != "" && raw.Type != models.EventProducts {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrInvalidPayload, raw.Type)
	}
	if len(raw.Products) == 0 || raw.Products[0] != '[' {
		return nil, fmt.Errorf("%w: products is not a list", ErrInvalidPayload)
	}
	products := []models.Product{}
	if err := json.Unmarshal(raw.Products, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return products, nil
}
