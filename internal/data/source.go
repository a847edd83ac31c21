package data

import (
	"context"
	"fmt"

	"github.com/infinigrid/server/internal/config"
	"github.com/infinigrid/server/internal/persist"
	"go.uber.org/zap"
)

// LoadConfiguredContent loads the content catalog from the configured
// source. Catalogs from a database go through the same normalization and
// key checks as the YAML file.
func LoadConfiguredContent(ctx context.Context, cfg *config.Config, log *zap.Logger) (*ContentList, error) {
	if cfg.Content.Source == "yaml" {
		return LoadContentList(cfg.Content.Path)
	}
	cat, err := persist.OpenCatalog(ctx, cfg.Content, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", cfg.Content.Source, err)
	}
	defer cat.Close()
	items, err := cat.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s catalog: %w", cfg.Content.Source, err)
	}
	return NewContentList(items)
}
