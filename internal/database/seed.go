package database

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SeedDemoRides inserts a handful of open ride requests so a fresh install
// has demand to show on the dashboard. Skipped when rides already exist.
func SeedDemoRides(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM rides"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Rides already present, skipping demo seed...")
		return nil
	}

	log.Println("🌱 Seeding demo ride requests...")

	fare := func(f float64) *float64 { return &f }
	now := time.Now().Unix()

	rides := []struct {
		UserID        string
		Pickup        string
		Destination   string
		Fare          *float64
		PaymentMethod string
		RequestTime   int64
	}{
		{"rider-demo-1", "325 S 1st St, San Jose", "SJC Terminal B", fare(23.50), "cash", now - 540},
		{"rider-demo-2", "200 E Santa Clara St, San Jose", "Santana Row", fare(17.25), "card", now - 300},
		{"rider-demo-3", "151 W Mission St, San Jose", "Diridon Station", fare(9.80), "cash", now - 120},
		{"rider-demo-4", "180 Park Ave, San Jose", "Valley Fair Mall", nil, "cash", now - 60},
	}

	for _, r := range rides {
		_, err := db.Exec(`
			INSERT INTO rides (id, user_id, pickup, destination, status, fare, payment_method, request_time)
			VALUES ($1, $2, $3, $4, 'requested', $5, $6, $7)
		`, uuid.New().String(), r.UserID, r.Pickup, r.Destination, r.Fare, r.PaymentMethod, r.RequestTime)
		if err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d demo rides", len(rides))
	return nil
}
