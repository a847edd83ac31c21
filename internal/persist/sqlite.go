package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/infinigrid/server/internal/grid"
	_ "modernc.org/sqlite"
)

// SQLiteCatalog stores the content catalog in a local SQLite file.
type SQLiteCatalog struct {
	db *sql.DB
}

// OpenSQLiteCatalog opens (creating if needed) the catalog at path.
func OpenSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS content_items (
			position INTEGER PRIMARY KEY,
			item_key TEXT NOT NULL UNIQUE,
			title    TEXT NOT NULL DEFAULT '',
			color    TEXT NOT NULL DEFAULT '',
			url      TEXT NOT NULL DEFAULT '',
			width    INTEGER NOT NULL DEFAULT 0,
			height   INTEGER NOT NULL DEFAULT 0
		);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite catalog: %w", err)
		}
	}
	return &SQLiteCatalog{db: db}, nil
}

// LoadAll returns every item ordered by position.
func (c *SQLiteCatalog) LoadAll(ctx context.Context) ([]grid.Item, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT item_key, title, color, url, width, height FROM content_items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()

	var items []grid.Item
	for rows.Next() {
		var it grid.Item
		if err := rows.Scan(&it.Key, &it.Title, &it.Color, &it.URL, &it.Width, &it.Height); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ReplaceAll atomically swaps the whole catalog.
func (c *SQLiteCatalog) ReplaceAll(ctx context.Context, items []grid.Item) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("content begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_items`); err != nil {
		return fmt.Errorf("content clear: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO content_items (position, item_key, title, color, url, width, height)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("content prepare: %w", err)
	}
	defer stmt.Close()
	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, i, it.Key, it.Title, it.Color, it.URL, it.Width, it.Height); err != nil {
			return fmt.Errorf("content insert %q: %w", it.Key, err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
