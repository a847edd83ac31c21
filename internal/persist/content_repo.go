package persist

import (
	"context"
	"fmt"

	"github.com/infinigrid/server/internal/grid"
)

// ContentRepo stores the content catalog in PostgreSQL.
type ContentRepo struct {
	db     *DB
	ownsDB bool
}

func NewContentRepo(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

// LoadAll returns every item ordered by position.
func (r *ContentRepo) LoadAll(ctx context.Context) ([]grid.Item, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT item_key, title, color, url, width, height
		 FROM content_items ORDER BY position`,
	)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content: %w", err)
	}
	return items, nil
}

// ReplaceAll atomically swaps the whole catalog in a single transaction.
func (r *ContentRepo) ReplaceAll(ctx context.Context, items []grid.Item) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("content begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM content_items`); err != nil {
		return fmt.Errorf("content clear: %w", err)
	}
	for i, it := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO content_items (position, item_key, title, color, url, width, height)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			i, it.Key, it.Title, it.Color, it.URL, it.Width, it.Height,
		); err != nil {
			return fmt.Errorf("content insert %q: %w", it.Key, err)
		}
	}

	return tx.Commit(ctx)
}

// Close releases the pool when the repo opened it itself (OpenCatalog).
func (r *ContentRepo) Close() error {
	if r.ownsDB {
		r.db.Close()
	}
	return nil
}
