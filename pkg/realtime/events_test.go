package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeServerFramePresenceJoin(t *testing.T) {
	data := []byte(`{"event":"presence:join","payload":{"roomId":"dream-42","userId":"u2","userName":"Bob","userAvatar":"https://a/b.png"}}`)
	event, payload, err := DecodeServerFrame(data)
	require.NoError(t, err)
	require.Equal(t, EventPresenceJoin, event)
	require.Equal(t, PresenceJoinPayload{
		RoomID: "dream-42", UserID: "u2", UserName: "Bob", UserAvatar: "https://a/b.png",
	}, payload)
}

func TestDecodeServerFrameNotificationKeepsRawPayload(t *testing.T) {
	data := []byte(`{"event":"notification","payload":{"table":"dreams","action":"update","id":"d1","extra":"kept"}}`)
	event, payload, err := DecodeServerFrame(data)
	require.NoError(t, err)
	require.Equal(t, EventNotification, event)
	p, ok := payload.(NotificationPayload)
	require.True(t, ok)
	require.Equal(t, "dreams", p.Table)
	require.Equal(t, "update", p.Action)
	require.JSONEq(t, `{"table":"dreams","action":"update","id":"d1","extra":"kept"}`, string(p.Raw))
}

func TestDecodeServerFrameRejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"invalid json":       []byte(`{`),
		"missing event":      []byte(`{"payload":{}}`),
		"unknown event":      []byte(`{"event":"mystery:event","payload":{}}`),
		"missing room":       []byte(`{"event":"presence:join","payload":{"userId":"u2"}}`),
		"missing user":       []byte(`{"event":"presence:leave","payload":{"roomId":"dream-1"}}`),
		"notification table": []byte(`{"event":"notification","payload":{"action":"update"}}`),
		"client event":       []byte(`{"event":"dream:join","payload":{"roomId":"dream-1"}}`),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeServerFrame(data)
			require.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestDecodeClientFrame(t *testing.T) {
	data := []byte(`{"event":"cursor:update","payload":{"roomId":"dream-1","position":{"x":10,"y":4}}}`)
	event, payload, err := DecodeClientFrame(data)
	require.NoError(t, err)
	require.Equal(t, EventCursorUpdate, event)
	p, ok := payload.(CursorUpdatePayload)
	require.True(t, ok)
	require.Equal(t, "dream-1", p.RoomID)
	require.JSONEq(t, `{"x":10,"y":4}`, string(p.Position))

	_, _, err = DecodeClientFrame([]byte(`{"event":"presence:join","payload":{"roomId":"r","userId":"u"}}`))
	require.ErrorIs(t, err, ErrMalformedFrame, "server events are not valid client frames")
}

func TestEncodeFrameRoundtrip(t *testing.T) {
	data, err := EncodeFrame(EventDreamJoin, JoinPayload{RoomID: "dream-7"})
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, EventDreamJoin, env.Event)
	require.JSONEq(t, `{"roomId":"dream-7"}`, string(env.Payload))
}
