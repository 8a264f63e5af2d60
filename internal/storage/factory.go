// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/roboscene/taskenv/internal/config"
	"github.com/roboscene/taskenv/internal/logging"
	"github.com/roboscene/taskenv/internal/storage/memory"
	sqlitestorage "github.com/roboscene/taskenv/internal/storage/sqlite"
	"github.com/roboscene/taskenv/internal/storage/websocket"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logManager *logging.SlogManager) (Backend, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, logManager)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite backend: %w", err)
		}
		return backend, nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
