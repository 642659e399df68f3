package ids

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps the table in the screen_ids relation (postgres or sqlite).
// Rows are never rewritten: an existing name keeps its identifier.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore returns a store over db. The schema is created by migrations.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type idRow struct {
	Name string `db:"name"`
	ID   int    `db:"id"`
}

// Load reads every persisted row.
func (s *SQLStore) Load(ctx context.Context) (map[string]int, error) {
	var rows []idRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT name, id FROM screen_ids`); err != nil {
		return map[string]int{}, fmt.Errorf("ids: select screen_ids: %w", err)
	}
	table := make(map[string]int, len(rows))
	for _, r := range rows {
		table[r.Name] = r.ID
	}
	return table, nil
}

// Save inserts the names that are not stored yet, in one transaction.
func (s *SQLStore) Save(ctx context.Context, table map[string]int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ids: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := tx.Rebind(`INSERT INTO screen_ids (name, id) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`)
	for name, id := range table {
		if _, err := tx.ExecContext(ctx, query, name, id); err != nil {
			return fmt.Errorf("ids: insert %s=%d: %w", name, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ids: commit: %w", err)
	}
	return nil
}
