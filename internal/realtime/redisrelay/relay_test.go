package redisrelay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/listsync/internal/realtime"
)

func newRelay(t *testing.T, mr *miniredis.Miniredis) (*realtime.Broadcaster, *realtime.Registry) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := realtime.NewRegistry(16, zerolog.Nop())
	tr := New(client, reg, "test:", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan struct{})
	go func() { _ = tr.Run(ctx, ready) }()
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	b := realtime.NewBroadcaster(reg, zerolog.Nop())
	require.NoError(t, b.SetTransport(tr))
	return b, reg
}

func receive(t *testing.T, c *realtime.Conn) realtime.Envelope {
	t.Helper()
	select {
	case data := <-c.Send():
		var env realtime.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope relayed")
		return realtime.Envelope{}
	}
}

func TestRelayAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)

	publisher, _ := newRelay(t, mr)
	_, remoteReg := newRelay(t, mr)

	watcher := remoteReg.Connect()
	require.NoError(t, remoteReg.Join(watcher.ID(), realtime.ScopeChannel(4)))

	publisher.Emit(context.Background(), "item_created", map[string]any{"id": 1, "listId": 4}, 4)

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		env := receive(t, watcher)
		got[env.Channel] = env.Event
	}
	assert.Equal(t, map[string]string{"global": "item_created", "list_4": "item_created"}, got)
}

func TestRelayDeliversOwnPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	b, reg := newRelay(t, mr)
	c := reg.Connect()

	b.Emit(context.Background(), "list_created", map[string]int{"id": 2}, 0)

	env := receive(t, c)
	assert.Equal(t, realtime.GlobalChannel, env.Channel)
	assert.JSONEq(t, `{"id":2}`, string(env.Data))
}

func TestRelayDiscardsMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	b, reg := newRelay(t, mr)
	c := reg.Connect()

	mr.Publish("test:global", "{not json")
	b.Emit(context.Background(), "list_updated", map[string]int{"id": 2}, 0)

	env := receive(t, c)
	assert.Equal(t, "list_updated", env.Event)
}

func TestPublishFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	tr := New(client, realtime.NewRegistry(1, zerolog.Nop()), "", zerolog.Nop())
	mr.Close()

	err := tr.Publish(context.Background(), realtime.Envelope{Channel: realtime.GlobalChannel, Event: "x"})
	assert.Error(t, err)
}
