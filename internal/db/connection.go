package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/codepoint-impute/internal/config"
)

// Connection holds the database connection
type Connection struct {
	DB *sql.DB
}

// DSN builds the lib/pq connection string from PG* environment variables
func DSN() string {
	host := config.GetEnv("PGHOST", "localhost")
	port := config.GetEnv("PGPORT", "5432")
	user := config.GetEnv("PGUSER", "postgres")
	password := config.GetEnv("PGPASSWORD", "postgres")
	dbname := config.GetEnv("PGDATABASE", "codepoint")
	sslmode := config.GetEnv("PGSSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

// NewConnection opens and pings a PostGIS database
func NewConnection() (*Connection, error) {
	db, err := sql.Open("postgres", DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Loads run through a single COPY transaction
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &Connection{DB: db}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}
