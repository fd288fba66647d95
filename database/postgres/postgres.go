package postgres

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
	CREATE TABLE IF NOT EXISTS analyses (
		id                     VARCHAR(26) PRIMARY KEY,
		request_id             VARCHAR(64) NOT NULL,
		file_key               TEXT NOT NULL,
		original_name          TEXT NOT NULL,
		sha256                 CHAR(64) NOT NULL,
		width_a                INTEGER NOT NULL,
		width_b                INTEGER NOT NULL,
		classification         TEXT NOT NULL,
		insufficient_structure BOOLEAN NOT NULL DEFAULT FALSE,
		created_at             TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at DESC);
`

func DSNFromEnv() string {
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		os.Getenv("DB_HOST"),
		port,
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		sslMode,
	)
}

func New() (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", DSNFromEnv())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate analyses table: %w", err)
	}

	return db, nil
}
