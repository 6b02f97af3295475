package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SERVER_ADDR is host:port of a running node. Suites skip when empty.
	ServerAddr string `envconfig:"SERVER_ADDR"`
	JWTSecret  string `envconfig:"JWT_SECRET"`
	JWTIssuer  string `envconfig:"JWT_ISSUER"`
	SocietyID  string `envconfig:"E2E_SOCIETY_ID" default:"e2e-society"`
	// E2E_DEBUG_JSON dumps every HTTP response body
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
