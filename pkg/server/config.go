package server

import "time"

// Config holds the gateway server configuration.
type Config struct {
	// Addr is the listen address (host:port).
	Addr string

	// WebSocketPath is the path the upgrade endpoint is mounted on.
	WebSocketPath string

	// SendInterval is the pacing interval of the per-connection send loop.
	// At most one queued frame is written per interval.
	SendInterval time.Duration

	// CloseTimeout bounds how long a graceful close waits for the peer's
	// close acknowledgement before the socket is torn down.
	CloseTimeout time.Duration

	// TimestampInterval is how often the server time broadcast goes out.
	// The orphan reaper runs on the same tick.
	TimestampInterval time.Duration

	// ReadBufferSize and WriteBufferSize size the websocket I/O buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// MaxMessageSize caps inbound frame size in bytes. Zero means no cap.
	MaxMessageSize int64

	// ShutdownTimeout bounds the whole graceful shutdown sequence.
	ShutdownTimeout time.Duration

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// CheckOrigin, when false, accepts upgrade requests from any origin.
	CheckOrigin bool
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:              ":8080",
		WebSocketPath:     "/ws",
		SendInterval:      250 * time.Millisecond,
		CloseTimeout:      2500 * time.Millisecond,
		TimestampInterval: 15 * time.Second,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		MaxMessageSize:    1 << 20,
		ShutdownTimeout:   30 * time.Second,
		CheckOrigin:       false,
	}
}
