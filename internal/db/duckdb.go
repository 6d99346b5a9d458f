// Package db holds the in-process DuckDB engine that reads the backend's
// chat_sessions archive. Stored histories are JSON arrays on disk, so the
// engine runs in memory with the json extension and queries files in place
// through read_json; nothing is ever written.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	archiveDB   *sql.DB
	archiveErr  error
	archiveOnce sync.Once
)

// Archive returns the engine shared by every archive reader. It is opened
// on first use and lives for the rest of the process.
func Archive() (*sql.DB, error) {
	archiveOnce.Do(func() {
		archiveDB, archiveErr = openArchiveEngine()
	})
	return archiveDB, archiveErr
}

func openArchiveEngine() (*sql.DB, error) {
	engine, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to start archive engine: %w", err)
	}
	// One connection: archive queries are short and an in-memory
	// database is private to its connection.
	engine.SetMaxOpenConns(1)
	engine.SetMaxIdleConns(1)

	if err := requireExtension(engine, "json"); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

// requireExtension loads a bundled extension, installing it only when
// the build does not ship it
func requireExtension(engine *sql.DB, name string) error {
	if _, err := engine.Exec("LOAD " + name); err == nil {
		return nil
	}
	if _, err := engine.Exec("INSTALL " + name); err != nil {
		return fmt.Errorf("archive engine lacks the %s extension: %w", name, err)
	}
	if _, err := engine.Exec("LOAD " + name); err != nil {
		return fmt.Errorf("failed to load the %s extension: %w", name, err)
	}
	return nil
}

// Literal quotes s as a SQL string literal. read_json takes its path
// or glob as a literal, not a bind parameter.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
