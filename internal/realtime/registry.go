// Package realtime fans domain events out to live connections.
//
// Every connection is a member of the global channel from the moment it
// connects and may additionally join any number of scope channels, one per
// list. A Broadcaster publishes envelopes through a Transport; the
// LocalTransport delivers them to this process's Registry, and the redisrelay
// transport relays them through Redis so that several processes share
// channels.
package realtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/metrics"
)

const (
	GlobalChannel  = "global"
	ControlChannel = "control"

	scopePrefix = "list_"

	DefaultQueueSize = 64
)

// ScopeChannel returns the channel name for a list.
func ScopeChannel(scopeID int64) string {
	return scopePrefix + strconv.FormatInt(scopeID, 10)
}

// ParseScopeChannel is the inverse of ScopeChannel.
func ParseScopeChannel(channel string) (int64, bool) {
	rest, ok := strings.CutPrefix(channel, scopePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Envelope is the unit delivered to a connection. A connection that belongs
// to several channels receives one envelope per channel.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	SentAt  time.Time       `json:"sentAt"`
}

// Conn is one live connection as seen by the registry. Outbound envelopes are
// queued on a bounded channel drained by the connection's writer.
type Conn struct {
	id      string
	send    chan []byte
	dropped atomic.Int64

	// guarded by Registry.mu
	channels map[string]struct{}
	closed   bool
}

func (c *Conn) ID() string { return c.id }

// Send is closed when the connection is disconnected.
func (c *Conn) Send() <-chan []byte { return c.send }

// Dropped reports how many envelopes were discarded because the queue was full.
func (c *Conn) Dropped() int64 { return c.dropped.Load() }

// Registry tracks connections and their channel memberships.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]*Conn
	members   map[string]map[string]*Conn
	queueSize int
	logger    zerolog.Logger
}

func NewRegistry(queueSize int, logger zerolog.Logger) *Registry {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Registry{
		conns:     make(map[string]*Conn),
		members:   make(map[string]map[string]*Conn),
		queueSize: queueSize,
		logger:    logger.With().Str("component", "realtime").Logger(),
	}
}

// Connect registers a new connection subscribed to the global channel.
func (r *Registry) Connect() *Conn {
	c := &Conn{
		id:       ulid.Make().String(),
		send:     make(chan []byte, r.queueSize),
		channels: make(map[string]struct{}),
	}

	r.mu.Lock()
	r.conns[c.id] = c
	r.addMemberLocked(c, GlobalChannel)
	n := len(r.conns)
	r.mu.Unlock()

	metrics.RealtimeConnections.Set(float64(n))
	r.logger.Debug().Str("conn_id", c.id).Msg("connection registered")
	return c
}

// Join adds channel to the connection's memberships. Joining a channel the
// connection already belongs to is a no-op.
func (r *Registry) Join(connID, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupLocked(connID)
	if err != nil {
		return err
	}
	if _, ok := c.channels[channel]; ok {
		return nil
	}
	r.addMemberLocked(c, channel)
	metrics.RealtimeMemberships.WithLabelValues("join").Inc()
	return nil
}

// Leave removes channel from the connection's memberships. Leaving a channel
// that was never joined is a no-op; the global channel cannot be left.
func (r *Registry) Leave(connID, channel string) error {
	if channel == GlobalChannel {
		return errs.Validation("channel", "the global channel cannot be left")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupLocked(connID)
	if err != nil {
		return err
	}
	if _, ok := c.channels[channel]; !ok {
		return nil
	}
	r.removeMemberLocked(c, channel)
	metrics.RealtimeMemberships.WithLabelValues("leave").Inc()
	return nil
}

// Disconnect removes the connection and all of its memberships and closes its
// send queue. It is terminal: later calls for the same id are no-ops.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	for ch := range c.channels {
		r.removeMemberLocked(c, ch)
	}
	delete(r.conns, connID)
	c.closed = true
	close(c.send)
	n := len(r.conns)
	r.mu.Unlock()

	metrics.RealtimeConnections.Set(float64(n))
	r.logger.Debug().Str("conn_id", connID).Int64("dropped", c.Dropped()).Msg("connection closed")
}

// Channels returns the connection's memberships in sorted order.
func (r *Registry) Channels(connID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.lookupLocked(connID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out, nil
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Deliver queues env on every member of env.Channel and returns how many
// connections accepted it. A full queue drops the envelope for that
// connection only.
func (r *Registry) Deliver(env Envelope) int {
	data, err := json.Marshal(env)
	if err != nil {
		r.logger.Error().Err(err).Str("event", env.Event).Msg("marshal envelope")
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, c := range r.members[env.Channel] {
		if c.closed {
			continue
		}
		select {
		case c.send <- data:
			delivered++
		default:
			c.dropped.Add(1)
			metrics.BroadcastDropped.Inc()
			r.logger.Warn().
				Str("conn_id", c.id).
				Str("channel", env.Channel).
				Str("event", env.Event).
				Msg("send queue full, dropping envelope")
		}
	}
	metrics.BroadcastDeliveries.Add(float64(delivered))
	return delivered
}

// SendDirect queues env on a single connection regardless of membership.
// It is used for control replies.
func (r *Registry) SendDirect(connID string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.lookupLocked(connID)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
	default:
		c.dropped.Add(1)
		metrics.BroadcastDropped.Inc()
	}
	return nil
}

func (r *Registry) lookupLocked(connID string) (*Conn, error) {
	c, ok := r.conns[connID]
	if !ok {
		return nil, &errs.Error{Kind: errs.KindNotFound, Entity: "Connection", Message: "connection " + connID + " not found"}
	}
	return c, nil
}

func (r *Registry) addMemberLocked(c *Conn, channel string) {
	c.channels[channel] = struct{}{}
	m, ok := r.members[channel]
	if !ok {
		m = make(map[string]*Conn)
		r.members[channel] = m
	}
	m[c.id] = c
}

func (r *Registry) removeMemberLocked(c *Conn, channel string) {
	delete(c.channels, channel)
	if m, ok := r.members[channel]; ok {
		delete(m, c.id)
		if len(m) == 0 {
			delete(r.members, channel)
		}
	}
}
