package analytics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/alakazam-audio/alakazam/pkg/kafka"
)

// Collector buffers analytics events and publishes them to Kafka off the
// request path. Events are dropped, not blocked on, when the buffer fills:
// analytics must never slow down or fail a query.
type Collector struct {
	producer *kafka.Producer
	events   chan Envelope
	done     chan struct{}
	logger   *slog.Logger
}

// NewCollector starts a Collector draining into the given producer.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	c := &Collector{
		producer: producer,
		events:   make(chan Envelope, bufferSize),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "analytics-collector"),
	}
	go c.run()
	return c
}

// RecordMatch enqueues a match event.
func (c *Collector) RecordMatch(ev MatchEvent) {
	c.enqueue(Envelope{Type: TypeMatch, Timestamp: time.Now().UTC(), Match: &ev})
}

// RecordIndex enqueues an index event.
func (c *Collector) RecordIndex(ev IndexEvent) {
	c.enqueue(Envelope{Type: TypeIndex, Timestamp: time.Now().UTC(), Index: &ev})
}

func (c *Collector) enqueue(env Envelope) {
	select {
	case c.events <- env:
	default:
		c.logger.Warn("analytics buffer full, dropping event", "type", env.Type)
	}
}

func (c *Collector) run() {
	defer close(c.done)
	for env := range c.events {
		key := env.Type
		if env.Index != nil {
			key = key + ":" + strconv.FormatInt(env.Index.SongID, 10)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.producer.Publish(ctx, kafka.Event{Key: key, Value: env}); err != nil {
			c.logger.Error("failed to publish analytics event", "type", env.Type, "error", err)
		}
		cancel()
	}
}

// Close drains buffered events and stops the publish loop.
func (c *Collector) Close() {
	close(c.events)
	select {
	case <-c.done:
	case <-time.After(10 * time.Second):
		c.logger.Warn("timed out draining analytics events")
	}
}
