package ws

import "time"

// Config holds configuration for the websocket gateway client.
type Config struct {
	// URL is the gateway endpoint, e.g. ws://127.0.0.1:4002/gateway.
	URL string
	// Codec names the wire encoding: "json" or "msgpack".
	Codec string
	// RateLimit is the outbound message rate per second.
	RateLimit float64
	// RateBurst is the number of messages that may be sent back to back.
	RateBurst int
	// OutboundBuffer is the number of commands queued while the writer waits.
	OutboundBuffer int
	// InboundBuffer is the size of the event channel.
	InboundBuffer int
	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
	// ReconnectMin and ReconnectMax bound the reconnect backoff.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// PingInterval is how often a ping is written to keep the link alive.
	PingInterval time.Duration
	// PongWait is how long the link may stay silent to pings before it is
	// treated as dead. It must exceed PingInterval.
	PongWait time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://127.0.0.1:4002/gateway",
		Codec:            "json",
		RateLimit:        45,
		RateBurst:        5,
		OutboundBuffer:   1024,
		InboundBuffer:    4096,
		HandshakeTimeout: 10 * time.Second,
		ReconnectMin:     time.Second,
		ReconnectMax:     30 * time.Second,
		PingInterval:     30 * time.Second,
		PongWait:         60 * time.Second,
	}
}

const (
	writeWait      = 2 * time.Second
	maxMessageSize = 1 << 20
)
