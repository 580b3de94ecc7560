// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package db is the persisted Store behind the reconciliation core: Hosts,
// Users, PublicKeys, and Authorizations, plus the derived-state and audit
// queries the engine and wire client need. A single *bun.DB, opened against
// whichever backend the operator configured, serves all three dialects;
// only NewStoreFromDSN and the embedded migration set vary per backend.
package db // import "github.com/toeirei/ssm/internal/db"

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var embeddedMigrations embed.FS

// driverNameFor maps a dbType (also used to pick the bun dialect and the
// migrations subdirectory) to the database/sql driver name registered by
// its blank import. jackc/pgx/v5/stdlib registers itself as "pgx", not
// "postgres".
func driverNameFor(dbType string) string {
	if dbType == "postgres" {
		return "pgx"
	}
	return dbType
}

// NewStoreFromDSN opens a sql.DB for dbType/dsn, runs pending migrations,
// and returns a Store backed by a long-lived *bun.DB.
func NewStoreFromDSN(dbType, dsn string) (Store, error) {
	if dbType == "sqlite" {
		// modernc.org/sqlite leaves foreign key enforcement off by default.
		// A per-connection PRAGMA wouldn't reliably cover every pooled
		// connection, so it is set via the DSN itself, applied on every new
		// connection the pool opens; without it the cascades in
		// migrations/sqlite/0001_init.up.sql would be silently ignored.
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}

	sqlDB, err := sql.Open(driverNameFor(dbType), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := RunMigrations(sqlDB, dbType); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	var dialect bun.Dialect
	switch dbType {
	case "sqlite":
		dialect = sqlitedialect.New()
	case "postgres":
		dialect = pgdialect.New()
	case "mysql":
		dialect = mysqldialect.New()
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	return &bunStore{bun: bun.NewDB(sqlDB, dialect), dbType: dbType}, nil
}

// RunMigrations applies every embedded migrations/<dbType>/*.up.sql file not
// yet recorded in schema_migrations, each inside its own transaction.
func RunMigrations(sqlDB *sql.DB, dbType string) error {
	migrationsPath := path.Join("migrations", dbType)

	entries, err := fs.ReadDir(embeddedMigrations, migrationsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read embedded migrations (%s): %w", migrationsPath, err)
	}

	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	checkQuery := "SELECT 1 FROM schema_migrations WHERE version = ?"
	insertQuery := "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)"
	if dbType == "postgres" {
		checkQuery = "SELECT 1 FROM schema_migrations WHERE version = $1"
		insertQuery = "INSERT INTO schema_migrations(version, applied_at) VALUES($1, $2)"
	}

	for _, fname := range ups {
		version := strings.TrimSuffix(fname, ".up.sql")

		var exists int
		err := sqlDB.QueryRow(checkQuery, version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", version, err)
		}

		data, err := embeddedMigrations.ReadFile(path.Join(migrationsPath, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", version, err)
		}
		if _, err := tx.Exec(string(data)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.Exec(insertQuery, version, time.Now()); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}
	return nil
}
