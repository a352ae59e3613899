package database

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"chatapp/internal/config"
)

const createPresenceTableSQL = `
CREATE TABLE IF NOT EXISTS presence_events (
	id VARCHAR(36) PRIMARY KEY,
	connection_id VARCHAR(36) NOT NULL,
	name VARCHAR(255) NOT NULL,
	kind VARCHAR(16) NOT NULL,
	created_at DATETIME(3) NOT NULL,
	INDEX idx_presence_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

// DSN builds the MySQL connection string for cfg
func DSN(cfg config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)
}

// Init opens the database, checks connectivity and creates the presence table
func Init(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("✅ Database connection established")
	return db, nil
}

// Migrate creates the tables the server needs if they do not exist
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(createPresenceTableSQL); err != nil {
		return fmt.Errorf("failed to create presence_events table: %w", err)
	}
	return nil
}
