package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/gateway/gatewaytest"
	"github.com/zappabad/optionboard/internal/gateway/sim"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func simBackend() gateway.Transport {
	cfg := sim.DefaultConfig()
	cfg.TickInterval = 20 * time.Millisecond
	cfg.Now = func() time.Time { return time.Date(2024, 9, 6, 15, 0, 0, 0, time.UTC) }
	return sim.New(cfg, zerolog.Nop())
}

func newTestClient(t *testing.T, url, codec string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Codec = codec
	cfg.RateLimit = 1000
	cfg.ReconnectMin = 10 * time.Millisecond
	cfg.ReconnectMax = 50 * time.Millisecond
	c, err := NewClient(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func await(t *testing.T, c *Client, match func(gateway.Event) bool) gateway.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "event channel closed")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

func TestClientServer_RoundTrip(t *testing.T) {
	for _, codec := range []string{"json", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			server := NewServer(simBackend, zerolog.Nop())
			srv := httptest.NewServer(server)
			defer srv.Close()

			c := newTestClient(t, wsURL(srv), codec)
			require.Eventually(t, c.Connected, 2*time.Second, 5*time.Millisecond)

			require.NoError(t, c.Send(gateway.Outbound{ID: 7, Command: gateway.ResolveContract{SecType: gateway.SecTypeStock, Symbol: "AAPL"}}))

			ev := await(t, c, func(ev gateway.Event) bool { return ev.RequestID() == 7 })
			cd, ok := ev.(gateway.ContractResolved)
			require.True(t, ok, "got %T", ev)
			assert.Equal(t, "AAPL", cd.Symbol)
			assert.Positive(t, cd.ContractID)

			await(t, c, func(ev gateway.Event) bool { return ev.RequestID() == 7 && ev.Kind() == gateway.EventContractEnd })
			assert.EqualValues(t, 1, server.Active())
		})
	}
}

func TestClient_ReconnectNotices(t *testing.T) {
	var conns atomic.Int64
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if conns.Add(1) == 1 {
			// Drop the first connection right after the hello.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := newTestClient(t, wsURL(srv), "json")

	lost := await(t, c, func(ev gateway.Event) bool { return ev.Kind() == gateway.EventError }).(gateway.ErrorNotice)
	assert.Equal(t, gateway.CodeConnectivityLost, lost.Code)
	assert.Zero(t, lost.RequestID())

	restored := await(t, c, func(ev gateway.Event) bool { return ev.Kind() == gateway.EventError }).(gateway.ErrorNotice)
	assert.Equal(t, gateway.CodeConnectivityRestored, restored.Code)
	assert.EqualValues(t, 1, c.Reconnects())
}

func TestClient_SilentPeerDetected(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Keep the socket open but never answer pings.
		conn.SetPingHandler(func(string) error { return nil })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = wsURL(srv)
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongWait = 100 * time.Millisecond
	cfg.ReconnectMin = time.Hour
	c, err := NewClient(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, c.Connected, 2*time.Second, 5*time.Millisecond)
	lost := await(t, c, func(ev gateway.Event) bool { return ev.Kind() == gateway.EventError }).(gateway.ErrorNotice)
	assert.Equal(t, gateway.CodeConnectivityLost, lost.Code)
	assert.False(t, c.Connected())
}

func TestClient_RequeuedFrameIsWritten(t *testing.T) {
	rec := make(chan *gatewaytest.Recorder, 1)
	server := NewServer(func() gateway.Transport {
		r := gatewaytest.NewRecorder(1)
		rec <- r
		return r
	}, zerolog.Nop())
	srv := httptest.NewServer(server)
	defer srv.Close()

	c := newTestClient(t, wsURL(srv), "json")

	var backend *gatewaytest.Recorder
	select {
	case backend = <-rec:
	case <-time.After(2 * time.Second):
		t.Fatal("no connection")
	}

	c.requeue(gateway.Outbound{ID: 42, Command: gateway.Positions{}})
	require.NoError(t, c.Send(gateway.Outbound{ID: 43, Command: gateway.OpenOrders{}}))

	require.Eventually(t, func() bool { return len(backend.Sent()) == 2 }, 3*time.Second, 5*time.Millisecond)
	ids := []gateway.RequestID{}
	for _, o := range backend.Sent() {
		ids = append(ids, o.ID)
	}
	assert.ElementsMatch(t, []gateway.RequestID{42, 43}, ids)
}

func TestClient_BackpressureAndClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "ws://127.0.0.1:1/gateway"
	cfg.OutboundBuffer = 1
	cfg.ReconnectMin = time.Hour
	c, err := NewClient(cfg, zerolog.Nop())
	require.NoError(t, err)

	out := gateway.Outbound{ID: 1, Command: gateway.Positions{}}
	require.NoError(t, c.Send(out))
	assert.ErrorIs(t, c.Send(out), gateway.ErrBackpressure)
	assert.False(t, c.Connected())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send(out), gateway.ErrClosed)
	_, open := <-c.Events()
	assert.False(t, open)
}

func TestClient_RateLimited(t *testing.T) {
	rec := make(chan *gatewaytest.Recorder, 1)
	server := NewServer(func() gateway.Transport {
		r := gatewaytest.NewRecorder(1)
		rec <- r
		return r
	}, zerolog.Nop())
	srv := httptest.NewServer(server)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = wsURL(srv)
	cfg.RateLimit = 20
	cfg.RateBurst = 1
	c, err := NewClient(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	var backend *gatewaytest.Recorder
	select {
	case backend = <-rec:
	case <-time.After(2 * time.Second):
		t.Fatal("no connection")
	}

	start := time.Now()
	for i := 1; i <= 5; i++ {
		require.NoError(t, c.Send(gateway.Outbound{ID: gateway.RequestID(i), Command: gateway.OpenOrders{}}))
	}
	require.Eventually(t, func() bool { return len(backend.Sent()) == 5 }, 3*time.Second, 5*time.Millisecond)
	// Four waits of 50ms after the first token.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

	ids := []gateway.RequestID{}
	for _, o := range backend.Sent() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []gateway.RequestID{1, 2, 3, 4, 5}, ids)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewClient(Config{URL: "ws://x", Codec: "xml"}, zerolog.Nop())
	assert.Error(t, err)
}
