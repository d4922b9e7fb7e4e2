package server

import (
	"time"

	"github.com/agentstation/pubmap/pkg/constants"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// HTTP timeouts
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns a Config with the default timeouts and no address.
func DefaultConfig() Config {
	return Config{
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
		ShutdownTimeout:   constants.ShutdownTimeout,
	}
}
