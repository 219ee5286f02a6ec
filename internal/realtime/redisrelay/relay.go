// Package redisrelay relays broadcast envelopes through Redis pub/sub so
// that connections held by different server processes share channels.
package redisrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/listsync/internal/realtime"
)

const DefaultPrefix = "listsync:broadcast:"

// Transport publishes every envelope to Redis and delivers envelopes received
// from Redis to the local registry. Run must be started for delivery to
// happen, including delivery of this process's own publishes.
type Transport struct {
	client   *redis.Client
	registry *realtime.Registry
	prefix   string
	logger   zerolog.Logger
}

func New(client *redis.Client, registry *realtime.Registry, prefix string, logger zerolog.Logger) *Transport {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Transport{
		client:   client,
		registry: registry,
		prefix:   prefix,
		logger:   logger.With().Str("component", "redisrelay").Logger(),
	}
}

// NewClient parses a redis:// URL and returns a connected client.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (t *Transport) Name() string { return "redis" }

func (t *Transport) Publish(ctx context.Context, env realtime.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := t.client.Publish(ctx, t.prefix+env.Channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", env.Channel, err)
	}
	return nil
}

// Run subscribes to every relayed channel and delivers received envelopes
// until ctx is cancelled. ready, when non-nil, is closed once the
// subscription is active.
func (t *Transport) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := t.client.PSubscribe(ctx, t.prefix+"*")
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	t.logger.Info().Str("pattern", t.prefix+"*").Msg("redis relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			t.deliver(msg)
		}
	}
}

func (t *Transport) deliver(msg *redis.Message) {
	var env realtime.Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		t.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("discarding malformed envelope")
		return
	}
	if want := strings.TrimPrefix(msg.Channel, t.prefix); env.Channel != want {
		t.logger.Warn().Str("channel", msg.Channel).Str("envelope_channel", env.Channel).Msg("envelope channel mismatch")
		return
	}
	t.registry.Deliver(env)
}
