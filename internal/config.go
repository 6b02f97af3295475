package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	// BadgerFilepath empty runs the store in memory.
	BadgerFilepath string `env:"BADGER_FILEPATH"`
	JWTSecret      string `env:"JWT_SECRET,required=true"`
	JWTIssuer      string `env:"JWT_ISSUER,required=true"`
	// Timezone of booking dates, an IANA name.
	Timezone string `env:"TIMEZONE,default=UTC"`

	SendQueueSize     int           `env:"SEND_QUEUE_SIZE,default=64"`
	SendTimeout       time.Duration `env:"SEND_TIMEOUT,default=5s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT,default=2m"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL,default=30s"`
	ReminderLead      time.Duration `env:"REMINDER_LEAD,default=1h"`
	ReminderInterval  time.Duration `env:"REMINDER_INTERVAL,default=1m"`
	PollCloseInterval time.Duration `env:"POLL_CLOSE_INTERVAL,default=30s"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=15s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	InboundRate    float64 `env:"INBOUND_RATE,default=5"`
	InboundBurst   int     `env:"INBOUND_BURST,default=20"`
	AllowedOrigins string  `env:"ALLOWED_ORIGINS"`

	// NatsURL enables the multi-node backbone when set.
	NatsURL  string `env:"NATS_URL"`
	NodeName string `env:"NODE_NAME,default=society-live"`
}

// Validate checks what env tags can't express.
func (c Config) Validate() error {
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", c.SendQueueSize)
	}
	if c.InboundRate <= 0 || c.InboundBurst <= 0 {
		return fmt.Errorf("INBOUND_RATE and INBOUND_BURST must be positive")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	origins := strings.Split(c.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
