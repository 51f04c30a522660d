package repository

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresStore opens a Postgres-backed store through the pgx database/sql driver.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialectPostgres.driverName(), normalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newSQLStore(db, dialectPostgres)
}

// normalizeDSN strips driver suffixes that other stacks put in the URL scheme.
func normalizeDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	dsn = strings.Replace(dsn, "postgresql+asyncpg://", "postgresql://", 1)
	dsn = strings.Replace(dsn, "postgres+asyncpg://", "postgres://", 1)
	dsn = strings.Replace(dsn, "postgresql+pgx://", "postgresql://", 1)
	dsn = strings.Replace(dsn, "postgres+pgx://", "postgres://", 1)
	return dsn
}
