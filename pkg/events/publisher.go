package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

// Publisher emits pipeline events to frame's queue and to local subscribers.
// A nil *Publisher discards everything; without a queue manager events only
// reach local subscribers.
type Publisher struct {
	queueMgr queue.Manager
	source   string
	queueRef string
	metadata map[string]string

	mu   sync.RWMutex
	subs map[string]*subscription
}

type subscription struct {
	ch    chan Envelope
	types []EventType
}

func (s *subscription) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithMetadata stamps every envelope with md.
func WithMetadata(md map[string]string) PublisherOption {
	return func(p *Publisher) { p.metadata = maps.Clone(md) }
}

// NewPublisher creates a publisher for queueRef. Events carry source as their origin.
func NewPublisher(queueMgr queue.Manager, source string, queueRef string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		queueMgr: queueMgr,
		source:   source,
		queueRef: queueRef,
		subs:     make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit publishes one event. An empty requestID is taken from ctx.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, requestID string, data any) error {
	if p == nil {
		return nil
	}
	if requestID == "" {
		requestID = RequestID(ctx)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	env := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    p.source,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Data:      raw,
		Metadata:  p.metadata,
	}

	p.fanOut(env)

	if p.queueMgr == nil || p.queueRef == "" {
		return nil
	}
	if err := p.queueMgr.Publish(ctx, p.queueRef, env); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// EmitAsync publishes without blocking the caller and outlives its
// cancellation. Failures are logged.
func (p *Publisher) EmitAsync(ctx context.Context, eventType EventType, requestID string, data any) {
	if p == nil {
		return
	}
	if requestID == "" {
		requestID = RequestID(ctx)
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := p.Emit(ctx, eventType, requestID, data); err != nil {
			slog.WarnContext(ctx, "events: publish failed",
				slog.String("event_type", string(eventType)), slog.String("error", err.Error()))
		}
	}()
}

// fanOut never blocks: a full subscriber loses the event.
func (p *Publisher) fanOut(env Envelope) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id, sub := range p.subs {
		if !sub.wants(env.Type) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			slog.Warn("events: subscriber buffer full, dropping",
				slog.String("subscriber", id), slog.String("event_type", string(env.Type)))
		}
	}
}

// Subscribe registers a local subscriber. With no types it receives every
// event. Call Unsubscribe with the same id to release it.
func (p *Publisher) Subscribe(id string, bufSize int, types ...EventType) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 64
	}
	sub := &subscription{ch: make(chan Envelope, bufSize), types: types}

	p.mu.Lock()
	if old, ok := p.subs[id]; ok {
		close(old.ch)
	}
	p.subs[id] = sub
	p.mu.Unlock()
	return sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sub, ok := p.subs[id]; ok {
		close(sub.ch)
		delete(p.subs, id)
	}
}
