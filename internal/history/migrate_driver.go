package history

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4/database"
)

// migrateDriver adapts the audit database to golang-migrate's driver
// interface. The sqlite drivers bundled with migrate each register their
// own database/sql driver name, which collides with the ncruces driver
// this package uses, so schema versioning is handled here directly.
type migrateDriver struct {
	db *sql.DB
}

func newMigrateDriver(db *sql.DB) (*migrateDriver, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version BIGINT NOT NULL, dirty BOOLEAN NOT NULL)`)
	if err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}
	return &migrateDriver{db: db}, nil
}

func (d *migrateDriver) Open(string) (database.Driver, error) { return d, nil }

// Close is a no-op; the store owns the connection.
func (d *migrateDriver) Close() error { return nil }

// Lock and Unlock are no-ops. The database is process-local and the
// store applies migrations once, at open.
func (d *migrateDriver) Lock() error   { return nil }
func (d *migrateDriver) Unlock() error { return nil }

func (d *migrateDriver) Run(migration io.Reader) error {
	stmts, err := io.ReadAll(migration)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := d.db.Exec(string(stmts)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (d *migrateDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin version update: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM schema_migrations`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear schema version: %w", err)
	}
	if version >= 0 || dirty {
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, dirty); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version update: %w", err)
	}
	return nil
}

func (d *migrateDriver) Version() (int, bool, error) {
	var version int
	var dirty bool
	err := d.db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return database.NilVersion, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

func (d *migrateDriver) Drop() error {
	rows, err := d.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tables: %w", err)
	}

	for _, name := range tables {
		if _, err := d.db.Exec(`DROP TABLE ` + name); err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
	}
	return nil
}
