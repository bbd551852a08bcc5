// Package ws carries gateway frames over a websocket. Client is the
// application side; Server fronts any gateway.Transport for remote clients.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/zappabad/optionboard/internal/gateway"
)

// Hello is the first frame a client writes after connecting.
type Hello struct {
	Session string `json:"session"`
	Client  string `json:"client"`
	Codec   string `json:"codec"`
}

const helloType = "hello"

// SessionHeader carries the client session id on the handshake request.
const SessionHeader = "X-Optionboard-Session"

// Client is a reconnecting websocket Transport. Commands are queued and
// written at a bounded rate; events are decoded onto a channel.
type Client struct {
	cfg     Config
	log     zerolog.Logger
	codec   gateway.Codec
	limiter *rate.Limiter
	session string

	outbound chan gateway.Outbound
	// resend holds the one command whose write failed; it goes out first
	// on the next connection.
	resend   chan gateway.Outbound
	events   chan gateway.Event

	connected  atomic.Bool
	everLost   atomic.Bool
	reconnects atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient starts connecting to cfg.URL in the background.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	def := DefaultConfig()
	if cfg.URL == "" {
		return nil, errors.New("ws: url required")
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = def.OutboundBuffer
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = def.InboundBuffer
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = def.ReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = 2 * cfg.PingInterval
	}

	codec, err := gateway.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:      cfg,
		codec:    codec,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		session:  uuid.NewString(),
		outbound: make(chan gateway.Outbound, cfg.OutboundBuffer),
		resend:   make(chan gateway.Outbound, 1),
		events:   make(chan gateway.Event, cfg.InboundBuffer),
		ctx:      ctx,
		cancel:   cancel,
		closed:   make(chan struct{}),
	}
	c.log = log.With().Str("component", "ws").Str("session", c.session).Logger()

	c.wg.Add(1)
	go c.run()

	return c, nil
}

// Send queues a command without blocking.
func (c *Client) Send(out gateway.Outbound) error {
	select {
	case <-c.closed:
		return gateway.ErrClosed
	default:
	}
	select {
	case c.outbound <- out:
		return nil
	default:
		return gateway.ErrBackpressure
	}
}

// Events returns the decoded event channel. It is closed after Close.
func (c *Client) Events() <-chan gateway.Event { return c.events }

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool { return c.connected.Load() }

// Session returns the id sent in the handshake.
func (c *Client) Session() string { return c.session }

// Reconnects returns how many times the link was re-established.
func (c *Client) Reconnects() int64 { return c.reconnects.Load() }

// Close stops the client and drops queued commands.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
	})
	c.wg.Wait()
	return nil
}

func (c *Client) run() {
	defer c.wg.Done()
	defer close(c.events)

	backoff := c.cfg.ReconnectMin
	for {
		up, err := c.runOnce()
		if c.ctx.Err() != nil {
			return
		}
		if up {
			backoff = c.cfg.ReconnectMin
			c.everLost.Store(true)
			c.deliver(gateway.ErrorNotice{
				Code:    gateway.CodeConnectivityLost,
				Message: fmt.Sprintf("Connectivity between client and gateway lost: %v", err),
			})
		}
		c.log.Warn().Err(err).Dur("backoff", backoff).Msg("gateway connection down")

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

// runOnce serves one connection. It reports whether the connection was
// established before it failed.
func (c *Client) runOnce() (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set(SessionHeader, c.session)

	conn, _, err := dialer.DialContext(c.ctx, c.cfg.URL, header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	hello, err := c.codec.Marshal(helloType, 0, Hello{Session: c.session, Client: "optionboard", Codec: c.codec.Name()})
	if err != nil {
		return false, err
	}
	if err := c.write(conn, hello); err != nil {
		return false, fmt.Errorf("hello: %w", err)
	}

	c.connected.Store(true)
	defer c.connected.Store(false)
	c.log.Info().Str("url", c.cfg.URL).Str("codec", c.codec.Name()).Msg("gateway connected")
	if c.everLost.Load() {
		c.reconnects.Add(1)
		c.deliver(gateway.ErrorNotice{
			Code:    gateway.CodeConnectivityRestored,
			Message: "Connectivity between client and gateway restored",
		})
	}

	var readers sync.WaitGroup
	errCh := make(chan error, 1)
	readers.Add(1)
	go func() {
		defer readers.Done()
		errCh <- c.readLoop(conn)
	}()
	defer func() {
		conn.Close()
		readers.Wait()
	}()

	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()

	for {
		// A frame lost on the previous connection goes out before new ones.
		select {
		case out := <-c.resend:
			if err := c.sendFrame(conn, out); err != nil {
				return true, err
			}
			continue
		default:
		}

		select {
		case <-c.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return true, c.ctx.Err()
		case err := <-errCh:
			return true, err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return true, err
			}
		case out := <-c.resend:
			if err := c.sendFrame(conn, out); err != nil {
				return true, err
			}
		case out := <-c.outbound:
			if err := c.sendFrame(conn, out); err != nil {
				return true, err
			}
		}
	}
}

// sendFrame paces, encodes and writes one command. A frame that fails to
// write is queued for the next connection.
func (c *Client) sendFrame(conn *websocket.Conn, out gateway.Outbound) error {
	if err := c.limiter.Wait(c.ctx); err != nil {
		return err
	}
	data, err := gateway.EncodeCommand(c.codec, out)
	if err != nil {
		c.log.Error().Err(err).Int64("req_id", int64(out.ID)).Msg("encode command")
		return nil
	}
	if err := c.write(conn, data); err != nil {
		c.requeue(out)
		return err
	}
	return nil
}

func (c *Client) requeue(out gateway.Outbound) {
	select {
	case c.resend <- out:
		c.log.Warn().Int64("req_id", int64(out.ID)).Str("command", out.Command.Kind().String()).
			Msg("command frame not written, resending after reconnect")
	default:
		c.log.Warn().Int64("req_id", int64(out.ID)).Str("command", out.Command.Kind().String()).
			Msg("dropping command frame")
	}
}

func (c *Client) write(conn *websocket.Conn, data []byte) error {
	typ := websocket.TextMessage
	if c.codec.Binary() {
		typ = websocket.BinaryMessage
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(typ, data)
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := gateway.DecodeEvent(c.codec, data)
		if err != nil {
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping undecodable frame")
			continue
		}
		if !c.deliver(ev) {
			return c.ctx.Err()
		}
	}
}

// deliver blocks until the event is queued or the client closes.
func (c *Client) deliver(ev gateway.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}
