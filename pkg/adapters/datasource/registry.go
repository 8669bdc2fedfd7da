package datasource

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/config"
)

// Factory builds a connected adapter from database settings.
type Factory func(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register is called by each adapter subpackage's init function.
// Thread-safe for concurrent init calls.
func Register(dbType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[dbType] = factory
}

// Registered returns the registered datasource type names.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

// Open connects to the datasource named by cfg.Type.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no datasource adapter registered for type %q", cfg.Type)
	}
	return factory(ctx, cfg, logger)
}
