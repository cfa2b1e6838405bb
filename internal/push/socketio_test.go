package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:27972", "ws://localhost:27972/socket.io/?EIO=4&transport=websocket"},
		{"https://media.local", "wss://media.local/socket.io/?EIO=4&transport=websocket"},
		{"http://localhost:27972/base/", "ws://localhost:27972/base/socket.io/?EIO=4&transport=websocket"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, socketURL(tt.in))
		})
	}
}

func TestEventName(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{name: "Plain event", payload: `["media_update",{"title":"x"}]`, want: "media_update"},
		{name: "Event without args", payload: `["media_update"]`, want: "media_update"},
		{name: "With namespace", payload: `/media,["media_update"]`, want: "media_update"},
		{name: "With ack id", payload: `12["ping"]`, want: "ping"},
		{name: "Namespace and ack id", payload: `/media,7["media_update"]`, want: "media_update"},
		{name: "Namespace without payload", payload: `/media`, wantErr: true},
		{name: "Empty array", payload: `[]`, wantErr: true},
		{name: "Name not a string", payload: `[42]`, wantErr: true},
		{name: "Not JSON", payload: `media_update`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eventName([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeSocketIO speaks just enough Engine.IO v4 to push one media_update
type fakeSocketIO struct {
	joined atomic.Bool
	ponged atomic.Bool
}

func (f *fakeSocketIO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" {
		http.NotFound(w, r)
		return
	}
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	ctx := r.Context()
	write := func(s string) error { return c.Write(ctx, websocket.MessageText, []byte(s)) }

	if write(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`) != nil {
		return
	}
	_, msg, err := c.Read(ctx)
	if err != nil || string(msg) != "40" {
		return
	}
	f.joined.Store(true)

	if write(`40{"sid":"def"}`) != nil || write("2") != nil {
		return
	}
	_, msg, err = c.Read(ctx)
	if err != nil {
		return
	}
	f.ponged.Store(string(msg) == "3")

	_ = write(`42["other_event",{}]`)
	_ = write(`42["media_update",{"title":"Song"}]`)

	// Hold the connection until the client goes away
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

func TestSocketIOSubscribe_DeliversMediaUpdate(t *testing.T) {
	fake := &fakeSocketIO{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sub := NewSocketIO(zap.NewNop(), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var notified atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- sub.Subscribe(ctx, func() {
			notified.Add(1)
			cancel()
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("Subscribe did not return")
	}

	assert.Equal(t, int32(1), notified.Load())
	assert.True(t, fake.joined.Load(), "client joins the default namespace")
	assert.True(t, fake.ponged.Load(), "client answers ping with pong")
}

func TestSocketIOSubscribe_ReconnectsUntilCancelled(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "not yet", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sub := NewSocketIO(zap.NewNop(), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	err := sub.Subscribe(ctx, func() { t.Error("unexpected notification") })
	assert.NoError(t, err, "cancellation is a clean exit")
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
}
