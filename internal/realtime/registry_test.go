package realtime

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

func TestConnectJoinsGlobal(t *testing.T) {
	reg := NewRegistry(4, zerolog.Nop())
	c := reg.Connect()

	chans, err := reg.Channels(c.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{GlobalChannel}, chans)
	assert.Equal(t, 1, reg.Count())
}

func TestJoinLeaveTransitions(t *testing.T) {
	reg := NewRegistry(4, zerolog.Nop())
	c := reg.Connect()

	require.NoError(t, reg.Join(c.ID(), ScopeChannel(7)))
	require.NoError(t, reg.Join(c.ID(), ScopeChannel(7)))
	chans, err := reg.Channels(c.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{GlobalChannel, "list_7"}, chans)

	require.NoError(t, reg.Leave(c.ID(), ScopeChannel(7)))
	require.NoError(t, reg.Leave(c.ID(), ScopeChannel(8)))
	chans, err = reg.Channels(c.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{GlobalChannel}, chans)

	err = reg.Leave(c.ID(), GlobalChannel)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestUnknownConnection(t *testing.T) {
	reg := NewRegistry(4, zerolog.Nop())

	err := reg.Join("nope", ScopeChannel(1))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = reg.Channels("nope")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestDisconnectIsTerminal(t *testing.T) {
	reg := NewRegistry(4, zerolog.Nop())
	c := reg.Connect()
	require.NoError(t, reg.Join(c.ID(), ScopeChannel(3)))

	reg.Disconnect(c.ID())
	reg.Disconnect(c.ID())

	_, open := <-c.Send()
	assert.False(t, open)
	assert.Zero(t, reg.Count())
	assert.Zero(t, reg.Deliver(Envelope{Channel: ScopeChannel(3), Event: "x"}))

	err := reg.Join(c.ID(), ScopeChannel(3))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestDeliverOnlyToMembers(t *testing.T) {
	reg := NewRegistry(4, zerolog.Nop())
	a := reg.Connect()
	b := reg.Connect()
	require.NoError(t, reg.Join(a.ID(), ScopeChannel(1)))

	assert.Equal(t, 1, reg.Deliver(Envelope{Channel: ScopeChannel(1), Event: "item_created"}))
	assert.Equal(t, 2, reg.Deliver(Envelope{Channel: GlobalChannel, Event: "item_created"}))

	assert.Len(t, a.Send(), 2)
	assert.Len(t, b.Send(), 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(<-b.Send(), &env))
	assert.Equal(t, GlobalChannel, env.Channel)
}

func TestDeliverDropsWhenQueueFull(t *testing.T) {
	reg := NewRegistry(2, zerolog.Nop())
	c := reg.Connect()

	for i := 0; i < 5; i++ {
		reg.Deliver(Envelope{Channel: GlobalChannel, Event: "e"})
	}

	assert.Len(t, c.Send(), 2)
	assert.Equal(t, int64(3), c.Dropped())
}

func TestScopeChannelRoundTrip(t *testing.T) {
	id, ok := ParseScopeChannel(ScopeChannel(42))
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = ParseScopeChannel(GlobalChannel)
	assert.False(t, ok)
	_, ok = ParseScopeChannel("list_abc")
	assert.False(t, ok)
}
