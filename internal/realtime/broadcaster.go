package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/metrics"
)

// ErrTransportAlreadySet is returned by SetTransport after the first call.
var ErrTransportAlreadySet = errors.New("realtime: transport already set")

// Transport publishes an envelope to every connection subscribed to its
// channel, wherever that connection lives.
type Transport interface {
	Publish(ctx context.Context, env Envelope) error
	Name() string
}

// Broadcaster is the process-wide publisher used by the mutation
// coordinators. Delivery is at-most-once and fire-and-forget: Emit never
// returns an error and never blocks on slow connections.
type Broadcaster struct {
	registry *Registry
	logger   zerolog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	transport Transport
}

func NewBroadcaster(registry *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger.With().Str("component", "broadcaster").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetTransport binds the live transport. It may be called once.
func (b *Broadcaster) SetTransport(t Transport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport != nil {
		return ErrTransportAlreadySet
	}
	b.transport = t
	b.logger.Info().Str("transport", t.Name()).Msg("broadcast transport bound")
	return nil
}

func (b *Broadcaster) currentTransport() Transport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.transport
}

// Emit publishes event to the global channel and, when scopeID is positive,
// to that list's channel. The payload is marshalled once. Without a bound
// transport Emit does nothing.
func (b *Broadcaster) Emit(ctx context.Context, event string, payload any, scopeID int64) {
	t := b.currentTransport()
	if t == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error().Err(err).Str("event", event).Msg("marshal broadcast payload")
		return
	}

	sentAt := b.now()
	b.publish(ctx, t, Envelope{Channel: GlobalChannel, Event: event, Data: data, SentAt: sentAt}, "global")
	if scopeID > 0 {
		b.publish(ctx, t, Envelope{Channel: ScopeChannel(scopeID), Event: event, Data: data, SentAt: sentAt}, "scope")
	}
}

func (b *Broadcaster) publish(ctx context.Context, t Transport, env Envelope, kind string) {
	metrics.BroadcastsTotal.WithLabelValues(env.Event, kind).Inc()
	if err := t.Publish(ctx, env); err != nil {
		metrics.BroadcastErrors.WithLabelValues(t.Name()).Inc()
		b.logger.Warn().Err(err).
			Str("channel", env.Channel).
			Str("event", env.Event).
			Msg("broadcast publish failed")
	}
}

// Join subscribes a connection to a list's channel.
func (b *Broadcaster) Join(connID string, scopeID int64) error {
	if scopeID <= 0 {
		return errs.Validation("scopeId", "scopeId must be a positive integer")
	}
	return b.registry.Join(connID, ScopeChannel(scopeID))
}

// Leave unsubscribes a connection from a list's channel.
func (b *Broadcaster) Leave(connID string, scopeID int64) error {
	if scopeID <= 0 {
		return errs.Validation("scopeId", "scopeId must be a positive integer")
	}
	return b.registry.Leave(connID, ScopeChannel(scopeID))
}

func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// ConnectedCount returns the number of connections in this process.
func (b *Broadcaster) ConnectedCount() int {
	return b.registry.Count()
}
