package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Database connection established")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Create drivers table
		`CREATE TABLE IF NOT EXISTS drivers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			phone TEXT NOT NULL,
			license_number TEXT NOT NULL,
			vehicle_model TEXT NOT NULL,
			vehicle_color TEXT NOT NULL,
			vehicle_plate TEXT NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT TRUE,
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_rides INT NOT NULL DEFAULT 0,
			current_lat DOUBLE PRECISION,
			current_lng DOUBLE PRECISION,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create rides table
		`CREATE TABLE IF NOT EXISTS rides (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			pickup TEXT NOT NULL,
			destination TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('requested', 'accepted', 'declined', 'completed')),
			fare DOUBLE PRECISION,
			payment_method TEXT NOT NULL DEFAULT 'cash',
			driver_id TEXT REFERENCES drivers(id),
			request_time BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			pickup_time BIGINT,
			completion_time BIGINT
		)`,

		// Index for the open-rides listing (status filter + newest-first order)
		`CREATE INDEX IF NOT EXISTS idx_rides_status_request_time
			ON rides (status, request_time DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_rides_driver_id ON rides (driver_id)`,

		// Create FCM tokens table
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			driver_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (driver_id) REFERENCES drivers(id) ON DELETE CASCADE
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
