package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS parameters (
    position INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    address TEXT NOT NULL,
    byte_width INTEGER NOT NULL,
    kind TEXT NOT NULL,
    min_value INTEGER NOT NULL DEFAULT 0,
    max_value INTEGER NOT NULL DEFAULT 0,
    default_value INTEGER NOT NULL DEFAULT 0,
    choices TEXT,
    max_time_value INTEGER NOT NULL DEFAULT 0
);`

const choiceSep = "|"

// LoadSQL reads the parameters table. The caller registers the driver
// (modernc.org/sqlite) and owns db.
func LoadSQL(ctx context.Context, db *sql.DB) (*Catalog, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, address, byte_width, kind,
		min_value, max_value, default_value, choices, max_time_value
		FROM parameters ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		var choices sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Address, &r.Width, &r.Kind,
			&r.Min, &r.Max, &r.Default, &choices, &r.MaxTime); err != nil {
			return nil, fmt.Errorf("failed to scan parameter row: %w", err)
		}
		if choices.Valid && choices.String != "" {
			r.Choices = strings.Split(choices.String, choiceSep)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}

	return FromRecords(records)
}

// SaveSQL creates the parameters table if needed and replaces its content
// with the catalog
func (c *Catalog) SaveSQL(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create parameters table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM parameters"); err != nil {
		return fmt.Errorf("failed to clear parameters table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO parameters(position, id, name, address,
		byte_width, kind, min_value, max_value, default_value, choices, max_time_value)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare SQL statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range c.defs {
		r := RecordOf(d)
		var choices sql.NullString
		if len(r.Choices) > 0 {
			choices = sql.NullString{String: strings.Join(r.Choices, choiceSep), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, d.Index, r.ID, r.Name, r.Address, r.Width, r.Kind,
			r.Min, r.Max, r.Default, choices, r.MaxTime); err != nil {
			return fmt.Errorf("failed to insert parameter %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}
