package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T) (*Broadcaster, *websocket.Conn) {
	t.Helper()

	reg := NewRegistry(16, zerolog.Nop())
	b := NewBroadcaster(reg, zerolog.Nop())
	require.NoError(t, b.SetTransport(NewLocalTransport(reg)))

	srv := httptest.NewServer(NewWSHandler(b, []string{"*"}, zerolog.Nop()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	require.Eventually(t, func() bool { return b.ConnectedCount() == 1 }, time.Second, 10*time.Millisecond)
	return b, ws
}

func readWS(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, ws.ReadJSON(&env))
	return env
}

func TestWSJoinReceivesScopedEvents(t *testing.T) {
	b, ws := newWSServer(t)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "scopeId": "12"}))
	reply := readWS(t, ws)
	assert.Equal(t, ControlChannel, reply.Channel)
	assert.Equal(t, "joined", reply.Event)
	assert.JSONEq(t, `{"scopeId":12}`, string(reply.Data))

	b.Emit(context.Background(), "item_toggled", map[string]any{"id": 1, "completed": true}, 12)

	first := readWS(t, ws)
	second := readWS(t, ws)
	assert.Equal(t, GlobalChannel, first.Channel)
	assert.Equal(t, "list_12", second.Channel)
	assert.Equal(t, "item_toggled", second.Event)
}

func TestWSLegacyCommandAndLeave(t *testing.T) {
	b, ws := newWSServer(t)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join_list", "listId": 3}))
	assert.Equal(t, "joined", readWS(t, ws).Event)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "leave", "scopeId": 3}))
	assert.Equal(t, "left", readWS(t, ws).Event)

	b.Emit(context.Background(), "list_updated", map[string]int{"id": 3}, 3)
	env := readWS(t, ws)
	assert.Equal(t, GlobalChannel, env.Channel)
}

func TestWSRejectsBadCommands(t *testing.T) {
	_, ws := newWSServer(t)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "error", readWS(t, ws).Event)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "scopeId": "abc"}))
	env := readWS(t, ws)
	assert.Equal(t, "error", env.Event)

	var body map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Contains(t, body["error"], "scopeId")

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "subscribe"}))
	assert.Equal(t, "error", readWS(t, ws).Event)
}

func TestWSDisconnectClearsRegistry(t *testing.T) {
	b, ws := newWSServer(t)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return b.ConnectedCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestParseScopeID(t *testing.T) {
	id, ok := parseScopeID(json.RawMessage(`"7"`))
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok = parseScopeID(json.RawMessage(`8`))
	assert.True(t, ok)
	assert.Equal(t, int64(8), id)

	_, ok = parseScopeID(json.RawMessage(`0`))
	assert.False(t, ok)
	_, ok = parseScopeID(nil)
	assert.False(t, ok)
}
