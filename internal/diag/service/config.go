package service

// Config holds configuration for the diagnostics service.
type Config struct {
	// FeedSize is the capacity of the diagnostics ring buffer.
	FeedSize int
	// EventBuffer is the size of the internal event channel.
	EventBuffer int
	// ExternalEventBuffer is the size of the external events channel.
	ExternalEventBuffer int
	// DropExternalEvents determines whether external event channel drops on overflow.
	DropExternalEvents bool
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		FeedSize:            200,
		EventBuffer:         256,
		ExternalEventBuffer: 64,
		DropExternalEvents:  true,
	}
}
