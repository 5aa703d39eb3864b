package player

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/playerclient/internal/logging"
	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/wire"
)

// Defaults
const (
	DefaultPort        = 6665
	DefaultMaxPayload  = 1 << 20
	DefaultDialTimeout = 10 * time.Second
	DefaultBannerWait  = 5 * time.Second
)

// Config controls one client connection. The zero value is usable: every
// unset field takes its default.
type Config struct {
	// Logger receives connection logs. Defaults to logging.GetLogger().
	Logger *zap.Logger

	// Catalog creates device handlers. Defaults to device.DefaultCatalog().
	Catalog device.Catalog

	// ResyncLimit is the number of stray bytes tolerated before a frame
	// marker. Negative means strict (zero tolerance); zero means
	// wire.DefaultResyncLimit.
	ResyncLimit int

	// MaxPayload rejects frames declaring a larger payload as a desync.
	MaxPayload int

	// DialTimeout bounds Dial. BannerTimeout bounds reading the version
	// banner. ReadTimeout, when positive, applies to every frame read once
	// connected; an expired read is fatal.
	DialTimeout   time.Duration
	BannerTimeout time.Duration
	ReadTimeout   time.Duration

	// RoundInterval pauses the streaming loop after each SYNCH.
	RoundInterval time.Duration

	// Registerer receives the connection's metrics. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	var c Config
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logging.GetLogger()
	}
	if c.Catalog == nil {
		c.Catalog = device.DefaultCatalog()
	}
	if c.MaxPayload <= 0 {
		c.MaxPayload = DefaultMaxPayload
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.BannerTimeout <= 0 {
		c.BannerTimeout = DefaultBannerWait
	}
}

// resyncLimit is the stray byte budget handed to the frame reader.
func (c *Config) resyncLimit() int {
	switch {
	case c.ResyncLimit == 0:
		return wire.DefaultResyncLimit
	case c.ResyncLimit < 0:
		return 0
	}
	return c.ResyncLimit
}
