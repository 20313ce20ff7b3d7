package ftp

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config configures one FTP listener.
//
// Default values (applied by New if zero):
//   - IdleTimeout: 5m
//   - ShutdownTimeout: 30s
type Config struct {
	// Name is used in logs; "FTP" or "FTPS".
	Name string

	// Port is the control connection port. 0 picks a free port (tests).
	Port int

	// PassivePorts is the passive data port range, "min-max". Empty lets the
	// OS choose.
	PassivePorts string

	// PublicHost is advertised in PASV replies; empty uses the control
	// connection's local address.
	PublicHost string

	// MaxConnections caps simultaneous control connections. 0 is unlimited.
	MaxConnections int

	// IdleTimeout closes connections idle for longer.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds the wait for active sessions on shutdown.
	ShutdownTimeout time.Duration

	// TLS enables FTPS. With Implicit the listener speaks TLS from the first
	// byte; otherwise clients upgrade with AUTH TLS.
	TLS      *tls.Config
	Implicit bool
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "FTP"
		if c.TLS != nil {
			c.Name = "FTPS"
		}
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max connections %d: must be >= 0", c.MaxConnections)
	}
	if c.Implicit && c.TLS == nil {
		return fmt.Errorf("implicit FTPS requires a TLS configuration")
	}
	if _, _, err := ParsePassivePorts(c.PassivePorts); err != nil {
		return err
	}
	return nil
}

// ParsePassivePorts parses "min-max" (or a single port). An empty string
// returns 0, 0.
func ParsePassivePorts(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}

	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	minPort, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid passive port range %q: %w", s, err)
	}
	maxPort, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid passive port range %q: %w", s, err)
	}
	if minPort < 1 || maxPort > 65535 || minPort > maxPort {
		return 0, 0, fmt.Errorf("invalid passive port range %q", s)
	}
	return minPort, maxPort, nil
}
