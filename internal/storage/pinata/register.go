package pinata

import (
	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/storage"
)

func init() {
	storage.RegisterOpener(Name, func(cfg config.StorageConfig, log *zap.Logger) (storage.Provider, error) {
		p, err := New(Config{
			APIURL:     cfg.APIURL,
			GatewayURL: cfg.GatewayURL,
			APIKey:     cfg.PinataAPIKey,
			Secret:     cfg.PinataSecret,
			JWT:        cfg.PinataJWT,
			Logger:     log,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
