package gateway

import "errors"

var (
	// ErrClosed is returned by Send after the transport shut down.
	ErrClosed = errors.New("gateway: transport closed")
	// ErrBackpressure is returned when the outbound queue is full.
	ErrBackpressure = errors.New("gateway: outbound queue full")
)

// Synthetic error codes raised by transports for connection state.
const (
	CodeConnectivityLost     = 1100
	CodeConnectivityRestored = 1102
)

// Transport carries commands to the gateway and events back. Send never
// blocks; events are delivered on a channel the caller drains.
type Transport interface {
	Send(Outbound) error
	Events() <-chan Event
	Close() error
}
