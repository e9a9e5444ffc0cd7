package db

import (
	"database/sql"
	"fmt"
	"log"

	"MeetScope/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
func InitDB() error {
	if err := createMeetingsTable(); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createMeetingsTable() error {
	// Timestamps carry microsecond precision so that list ordering by
	// created_at stays stable across quick successive inserts.
	query := `
	CREATE TABLE IF NOT EXISTS meetings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		participants TEXT,
		audio_object VARCHAR(767) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'processing',
		duration FLOAT NOT NULL DEFAULT 0,
		transcript LONGTEXT,
		summary TEXT,
		key_outcomes TEXT,
		pain_points TEXT,
		objections TEXT,
		error_note TEXT,
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		INDEX idx_meetings_created_at (created_at)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create meetings table: %w", err)
	}
	log.Println("Meetings table initialized successfully (or already exists).")
	return nil
}
