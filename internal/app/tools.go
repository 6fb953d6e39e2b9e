package app

import (
	"errors"

	"wablast/internal/config"
	"wablast/internal/storage"
	logx "wablast/pkg/logx"
)

// CheckConfig loads and validates the config at path without starting anything.
func CheckConfig(path string) (*config.Config, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, err
	}
	return cfg, validateConfig(cfg)
}

// OpenStore opens the configured job store for offline inspection.
func OpenStore(path string, log logx.Logger) (storage.Store, error) {
	cfg, err := CheckConfig(path)
	if err != nil {
		return nil, err
	}
	sc, _ := mapStorageConfig(cfg)
	st, err := storage.Open(sc, log)
	if errors.Is(err, storage.ErrDisabled) {
		return nil, errors.New("storage is disabled in this config")
	}
	return st, err
}
