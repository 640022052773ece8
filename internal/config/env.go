package config

import (
	"github.com/kelseyhightower/envconfig"
)

// envCredentials mirrors the storage variables honored when the document
// leaves them blank. They are read on demand and never persisted.
type envCredentials struct {
	PinataAPIKey    string `envconfig:"PINATA_API_KEY"`
	PinataSecretKey string `envconfig:"PINATA_SECRET_API_KEY"`
	PinataJWT       string `envconfig:"PINATA_JWT"`
	GatewayURL      string `envconfig:"IPFS_GATEWAY_URL"`
}

func readEnvCredentials() (envCredentials, error) {
	var env envCredentials
	err := envconfig.Process("", &env)
	return env, err
}

// withEnv fills blank credentials of s from the environment. A gateway set in
// the environment always wins over the document.
func (s StorageConfig) withEnv(env envCredentials) StorageConfig {
	if s.PinataAPIKey == "" {
		s.PinataAPIKey = env.PinataAPIKey
	}
	if s.PinataSecret == "" {
		s.PinataSecret = env.PinataSecretKey
	}
	if s.PinataJWT == "" {
		s.PinataJWT = env.PinataJWT
	}
	if env.GatewayURL != "" {
		s.GatewayURL = env.GatewayURL
	}
	return s
}
