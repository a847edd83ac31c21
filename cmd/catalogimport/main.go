// Command catalogimport loads content_list.yaml into the PostgreSQL or
// SQLite catalog, replacing whatever the catalog held.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/infinigrid/server/internal/config"
	"github.com/infinigrid/server/internal/data"
	"github.com/infinigrid/server/internal/persist"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to server.toml")
	input := flag.String("in", "data/yaml/content_list.yaml", "content list YAML")
	target := flag.String("to", "", "postgres or sqlite (default: content.source from config)")
	sqlitePath := flag.String("sqlite", "", "sqlite file (default: content.path from config)")
	flag.Parse()

	if err := run(*configPath, *input, *target, *sqlitePath); err != nil {
		fmt.Fprintf(os.Stderr, "catalogimport: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, input, target, sqlitePath string) error {
	cfg, err := config.Load(config.Resolve(configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	content, err := data.LoadContentList(input)
	if err != nil {
		return err
	}

	dst := cfg.Content
	if target != "" {
		dst.Source = target
	}
	if sqlitePath != "" {
		dst.Path = sqlitePath
	}
	if dst.Source == "sqlite" && dst.Path == cfg.Content.Path && cfg.Content.Source != "sqlite" {
		return fmt.Errorf("-sqlite is required when the config does not name a sqlite catalog")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cat, err := persist.OpenCatalog(ctx, dst, cfg.Database, log)
	if err != nil {
		return err
	}
	defer cat.Close()

	if err := cat.ReplaceAll(ctx, content.Items()); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	log.Info("catalog imported",
		zap.String("from", input),
		zap.String("to", dst.Source),
		zap.Int("items", content.Count()),
	)
	return nil
}
