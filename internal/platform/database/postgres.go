package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"tohomc/internal/platform/config"
	"tohomc/internal/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

//go:embed schema.sql
var schema string

var DB *sql.DB

func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		logger.Error.Fatalf("Error opening database: %v", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err = DB.Ping(); err != nil {
		logger.Error.Fatalf("Error connecting to database: %v", err)
	}

	logger.Info.Println("Successfully connected to PostgreSQL database!")
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info.Println("Database schema is up to date.")
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		logger.Info.Println("Database connection closed.")
	}
}
