package datastore

import (
	"context"
	"fmt"
	"os"
	"time"

	gcds "cloud.google.com/go/datastore"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/internal/config"
)

// NewClient creates a Datastore client. The SDK picks up
// DATASTORE_EMULATOR_HOST on its own; it is logged for visibility.
func NewClient(ctx context.Context, cfg config.DatastoreConfig, logger *zap.Logger) (*gcds.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emulator := os.Getenv("DATASTORE_EMULATOR_HOST"); emulator != "" {
		logger.Info("using datastore emulator", zap.String("host", emulator))
	}

	client, err := gcds.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create datastore client: %w", err)
	}

	logger.Info("connected to datastore", zap.String("project", cfg.ProjectID))
	return client, nil
}

// Pinger adapts a Datastore client to the monitor's health probe.
type Pinger struct {
	Client *gcds.Client
}

// Ping runs a keys-only query limited to one entity.
func (p Pinger) Ping(ctx context.Context) error {
	if p.Client == nil {
		return fmt.Errorf("datastore client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := p.Client.Count(ctx, gcds.NewQuery("User").KeysOnly().Limit(1))
	return err
}
