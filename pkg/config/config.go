package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LR_"

// Config holds the settings shared by the host and client binaries.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// ListenAddr is the HTTP address serving /ws, /metrics and /lobby.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":7777"`
	// UDPAddr is the datagram transport address. Empty disables UDP.
	UDPAddr string `env:"UDP_ADDR" envDefault:":7778"`
	// ServerURL is dialed by clients, ws:// or udp:// scheme.
	ServerURL string `env:"SERVER_URL" envDefault:"ws://localhost:7777/ws"`
	// Compress enables zstd compression of outgoing frames.
	Compress bool `env:"COMPRESS" envDefault:"false"`

	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"16ms"`
	RetryInterval time.Duration `env:"RETRY_INTERVAL" envDefault:"250ms"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"8"`
	PingInterval  time.Duration `env:"PING_INTERVAL" envDefault:"1s"`
	PeerTimeout   time.Duration `env:"PEER_TIMEOUT" envDefault:"10s"`
	// ShutdownGrace bounds the disconnect handshake on SIGINT/SIGTERM.
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"2s"`

	BombFuse   time.Duration `env:"BOMB_FUSE" envDefault:"3s"`
	HoleRefill time.Duration `env:"HOLE_REFILL" envDefault:"5s"`

	LevelsDir string `env:"LEVELS_DIR" envDefault:"./levels"`
	StartMap  string `env:"START_MAP" envDefault:"level-1"`

	Seats      int  `env:"SEATS" envDefault:"4"`
	VoteQuorum int  `env:"VOTE_QUORUM" envDefault:"2"`
	Dedicated  bool `env:"DEDICATED" envDefault:"false"`

	// Profile keys the saved nick and colors in the preferences database.
	Profile     string   `env:"PROFILE" envDefault:"default"`
	Nick        string   `env:"NICK" envDefault:"runner"`
	Colors      []string `env:"COLORS" envDefault:"white,gold" envSeparator:","`
	DatabaseURL string   `env:"DATABASE_URL" envDefault:"sqlite://loderunner.db"`
}

// Load reads an optional .env file and parses the LR_* environment into a Config.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise break the protocol at runtime.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive, got %s", c.RetryInterval)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.BombFuse <= 0 || c.HoleRefill <= 0 {
		return fmt.Errorf("bomb fuse and hole refill must be positive, got %s and %s", c.BombFuse, c.HoleRefill)
	}
	if c.Seats < 2 {
		return fmt.Errorf("at least 2 seats are required, got %d", c.Seats)
	}
	if c.VoteQuorum < 1 {
		return fmt.Errorf("vote quorum must be at least 1, got %d", c.VoteQuorum)
	}
	return nil
}
