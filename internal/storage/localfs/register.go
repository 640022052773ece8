package localfs

import (
	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/storage"
)

func init() {
	storage.RegisterOpener(Name, func(cfg config.StorageConfig, _ *zap.Logger) (storage.Provider, error) {
		root := cfg.LocalPath
		if root == "" {
			root = storage.DefaultLocalPath()
		}
		cas, err := New(root)
		if err != nil {
			return nil, err
		}
		return cas, nil
	})
}
