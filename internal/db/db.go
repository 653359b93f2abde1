package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

const driverName = "sqlite"

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		board_state TEXT NOT NULL,
		winner TEXT NOT NULL,
		moves INTEGER NOT NULL,
		sequence TEXT,
		session_game TEXT,
		created_at DATETIME NOT NULL
	);`,
}

// addedColumns are columns introduced after a table was first released.
// Migrate adds them to databases created before.
var addedColumns = []struct{ table, column, decl string }{
	{table: "games", column: "session_game", decl: "TEXT"},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_games_user_created
		ON games (user_id, created_at DESC, id DESC);`,
	// one record per game played in a session, however often its save is retried
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_games_user_session_game
		ON games (user_id, session_game) WHERE session_game IS NOT NULL;`,
}

// Open opens the SQLite database at path. ":memory:" opens a private
// in-memory database limited to one connection, so every query sees it.
func Open(path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?" + pragmaQuery()
	}

	pool, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if path == ":memory:" {
		pool.SetMaxOpenConns(1)
		if _, err := pool.Exec("PRAGMA foreign_keys = ON"); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("Connected to database", "db.path", path)
	return pool, nil
}

func pragmaQuery() string {
	parts := make([]string, len(pragmas))
	for i, p := range pragmas {
		parts[i] = "_pragma=" + p
	}
	return strings.Join(parts, "&")
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range tables {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	for _, c := range addedColumns {
		if err := addColumn(ctx, db, c.table, c.column, c.decl); err != nil {
			return err
		}
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	slog.InfoContext(ctx, "Database schema verified")
	return nil
}

func addColumn(ctx context.Context, db *sqlx.DB, table, column, decl string) error {
	var n int
	if err := db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column); err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	slog.InfoContext(ctx, "Added column", "db.table", table, "db.column", column)
	return nil
}

// OpenAndMigrate is Open followed by Migrate.
func OpenAndMigrate(ctx context.Context, path string) (*sqlx.DB, error) {
	pool, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}
