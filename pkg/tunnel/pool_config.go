package tunnel

import (
	"errors"
	"time"
)

// PoolConfig holds configuration for the connection pool.
//
// NewPool replaces every zero-valued numeric field with its value from
// DefaultPoolConfig, so passing 0 selects the default; it does not disable
// the setting or remove the limit.
type PoolConfig struct {
	// MinConns is the minimum number of connections to maintain.
	// Start opens this many connections, and the periodic health check
	// tops the pool (idle + in-use) back up to it.
	// Default: 1
	MinConns int

	// MaxConns is the maximum number of connections allowed.
	// Validate accepts 0, but NewPool replaces it with the default.
	// Default: 10
	MaxConns int

	// IdleTimeout closes idle connections after this duration.
	// NewPool replaces 0 with the default.
	// Default: 5 minutes
	IdleTimeout time.Duration

	// MaxLifetime is the maximum lifetime of a connection.
	// Connections older than this are closed when next checked while idle
	// (on Acquire or by a health check); in-use connections are not closed.
	// NewPool replaces 0 with the default.
	// Default: 30 minutes
	MaxLifetime time.Duration

	// HealthCheckInterval is the interval between health checks.
	// Health checks verify pooled connections are still valid.
	// NewPool replaces 0 with the default, so periodic checks always run;
	// on-acquire checks run in any case.
	// Default: 30 seconds
	HealthCheckInterval time.Duration

	// WaitTimeout is how long Acquire waits for a connection when pool is exhausted.
	// NewPool replaces 0 with the default; TryAcquire returns ErrPoolExhausted
	// immediately instead of waiting.
	// Default: 30 seconds
	WaitTimeout time.Duration

	// DialTimeout is the timeout for establishing new connections.
	// Default: 10 seconds
	DialTimeout time.Duration

	// TransportConfig is the configuration for new tunnel connections.
	TransportConfig TransportConfig

	// Observer receives pool lifecycle and statistics events.
	// Optional - if nil, events are not reported.
	Observer PoolObserver
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:            1,
		MaxConns:            10,
		IdleTimeout:         5 * time.Minute,
		MaxLifetime:         30 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
		WaitTimeout:         30 * time.Second,
		DialTimeout:         10 * time.Second,
		TransportConfig:     DefaultTransportConfig(),
	}
}

// Validate checks the configuration for errors.
func (c *PoolConfig) Validate() error {
	if c.MinConns < 0 {
		return errors.New("pool: MinConns cannot be negative")
	}
	if c.MaxConns < 0 {
		return errors.New("pool: MaxConns cannot be negative")
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return errors.New("pool: MinConns cannot exceed MaxConns")
	}
	if c.IdleTimeout < 0 {
		return errors.New("pool: IdleTimeout cannot be negative")
	}
	if c.MaxLifetime < 0 {
		return errors.New("pool: MaxLifetime cannot be negative")
	}
	if c.HealthCheckInterval < 0 {
		return errors.New("pool: HealthCheckInterval cannot be negative")
	}
	if c.WaitTimeout < 0 {
		return errors.New("pool: WaitTimeout cannot be negative")
	}
	if c.DialTimeout < 0 {
		return errors.New("pool: DialTimeout cannot be negative")
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *PoolConfig) applyDefaults() {
	defaults := DefaultPoolConfig()

	if c.MinConns == 0 {
		c.MinConns = defaults.MinConns
	}
	if c.MaxConns == 0 {
		c.MaxConns = defaults.MaxConns
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = defaults.MaxLifetime
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = defaults.WaitTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
}
