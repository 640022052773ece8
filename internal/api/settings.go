package api

import (
	"net"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/chainpkg/chainpkg/internal/branding"
	"github.com/chainpkg/chainpkg/internal/errs"
)

// Settings configure the server. They are read from CHAINPKG_API_*
// variables.
type Settings struct {
	Host            string        `envconfig:"HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"PORT" default:"3000"`
	RateLimit       float64       `envconfig:"RATE_LIMIT" default:"10"`
	RateBurst       int           `envconfig:"RATE_BURST" default:"20"`
	AllowOrigins    []string      `envconfig:"ALLOW_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5m"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process(branding.EnvVar("API"), &s); err != nil {
		return s, errs.Wrap(errs.KindConfig, err, "reading API settings")
	}
	return s, nil
}

// Addr is the listen address.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
