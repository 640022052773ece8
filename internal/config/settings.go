package config

import (
	"strings"

	"github.com/chainpkg/chainpkg/internal/branding"
	"github.com/spf13/viper"
)

// Setting keys shared by the CLI flags and the CHAINPKG_* environment.
const (
	KeyNetwork  = "network"
	KeyVerbose  = "verbose"
	KeyLogLevel = "log-level"
	KeyConfig   = "config"
)

// Settings are the process-level knobs that sit outside the document:
// command-line overrides and their environment equivalents.
type Settings struct {
	Network    string
	Verbose    bool
	LogLevel   string
	ConfigPath string
}

// NewViper returns a viper instance reading CHAINPKG_* environment variables.
// Flags are bound onto it by the CLI.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(KeyLogLevel, "warn")
	return v
}

// ReadSettings resolves Settings from v, filling the config path default.
func ReadSettings(v *viper.Viper) Settings {
	s := Settings{
		Network:    v.GetString(KeyNetwork),
		Verbose:    v.GetBool(KeyVerbose),
		LogLevel:   v.GetString(KeyLogLevel),
		ConfigPath: v.GetString(KeyConfig),
	}
	if s.ConfigPath == "" {
		s.ConfigPath = FilePath()
	}
	return s
}
