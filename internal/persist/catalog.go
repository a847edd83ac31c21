package persist

import (
	"context"
	"fmt"

	"github.com/infinigrid/server/internal/config"
	"github.com/infinigrid/server/internal/grid"
	"go.uber.org/zap"
)

// Catalog is an ordered content list store. Position in the returned slice
// is the content index the grid maps cells onto.
type Catalog interface {
	LoadAll(ctx context.Context) ([]grid.Item, error)
	ReplaceAll(ctx context.Context, items []grid.Item) error
	Close() error
}

// OpenCatalog opens the catalog named by cfg.Source ("postgres" or
// "sqlite"). PostgreSQL migrations are applied before returning.
func OpenCatalog(ctx context.Context, cfg config.ContentConfig, dbCfg config.DatabaseConfig, log *zap.Logger) (Catalog, error) {
	switch cfg.Source {
	case "postgres":
		db, err := NewDB(ctx, dbCfg, log)
		if err != nil {
			return nil, err
		}
		if _, err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return &ContentRepo{db: db, ownsDB: true}, nil
	case "sqlite":
		c, err := OpenSQLiteCatalog(cfg.Path)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("content source %q has no catalog store", cfg.Source)
}
