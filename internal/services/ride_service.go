package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"ridedash-backend/internal/models"
)

// Lifecycle errors surfaced to the transport layer. Handlers map these to
// HTTP statuses; everything else is a store failure and becomes a 500.
var (
	ErrRideNotFound    = errors.New("ride not found")
	ErrDriverNotFound  = errors.New("driver not found")
	ErrRideUnavailable = errors.New("ride is no longer available")
	ErrNotRideOwner    = errors.New("ride is assigned to another driver")
)

// RideService coordinates ride lifecycle transitions. Every transition is a
// single conditional UPDATE (status precondition in the WHERE clause), so
// concurrent callers racing for the same ride cannot both pass the check:
// whichever write lands first wins, the loser matches zero rows.
type RideService struct {
	db *sqlx.DB
}

func NewRideService(db *sqlx.DB) *RideService {
	return &RideService{db: db}
}

// OpenRides returns all rides still waiting for a driver, newest first.
func (s *RideService) OpenRides() ([]models.Ride, error) {
	rides := []models.Ride{}
	err := s.db.Select(&rides, `
		SELECT * FROM rides
		WHERE status = 'requested'
		ORDER BY request_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open rides: %w", err)
	}
	return rides, nil
}

// RidesForDriver returns every ride ever assigned to the driver, newest first.
func (s *RideService) RidesForDriver(driverID string) ([]models.Ride, error) {
	rides := []models.Ride{}
	err := s.db.Select(&rides, `
		SELECT * FROM rides
		WHERE driver_id = $1
		ORDER BY request_time DESC
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver rides: %w", err)
	}
	return rides, nil
}

func (s *RideService) GetRide(rideID string) (*models.Ride, error) {
	var ride models.Ride
	err := s.db.Get(&ride, "SELECT * FROM rides WHERE id = $1", rideID)
	if err == sql.ErrNoRows {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ride: %w", err)
	}
	return &ride, nil
}

// Accept claims an open ride for a driver. On success the ride is merged
// with the driver's name and vehicle for the rideAccepted broadcast, and the
// driver is flagged unavailable until the paired Complete.
func (s *RideService) Accept(rideID, driverID string) (*models.AcceptedRide, error) {
	var driver models.Driver
	err := s.db.Get(&driver, "SELECT * FROM drivers WHERE id = $1", driverID)
	if err == sql.ErrNoRows {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load driver: %w", err)
	}

	var ride models.Ride
	err = s.db.Get(&ride, `
		UPDATE rides
		SET status = 'accepted', driver_id = $1, pickup_time = $2
		WHERE id = $3 AND status = 'requested'
		RETURNING *
	`, driverID, time.Now().Unix(), rideID)
	if err == sql.ErrNoRows {
		return nil, s.missedTransition(rideID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to accept ride: %w", err)
	}

	if _, err := s.db.Exec("UPDATE drivers SET is_available = FALSE WHERE id = $1", driverID); err != nil {
		return nil, fmt.Errorf("failed to update driver availability: %w", err)
	}

	return &models.AcceptedRide{
		Ride:           ride,
		DriverName:     driver.Name,
		VehicleDetails: driver.Vehicle(),
	}, nil
}

// Decline turns down an open ride. Terminal: a declined ride never reopens.
// No driver side effect, the ride was never assigned.
func (s *RideService) Decline(rideID string) (*models.Ride, error) {
	var ride models.Ride
	err := s.db.Get(&ride, `
		UPDATE rides
		SET status = 'declined'
		WHERE id = $1 AND status = 'requested'
		RETURNING *
	`, rideID)
	if err == sql.ErrNoRows {
		return nil, s.missedTransition(rideID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decline ride: %w", err)
	}
	return &ride, nil
}

// Complete finishes an accepted ride. Only the assigned driver may complete;
// the driver comes back available and their completed-ride count goes up.
func (s *RideService) Complete(rideID, driverID string) (*models.Ride, error) {
	current, err := s.GetRide(rideID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.RideStatusAccepted {
		return nil, ErrRideUnavailable
	}
	if current.DriverID == nil || *current.DriverID != driverID {
		return nil, ErrNotRideOwner
	}

	var ride models.Ride
	err = s.db.Get(&ride, `
		UPDATE rides
		SET status = 'completed', completion_time = $1
		WHERE id = $2 AND status = 'accepted' AND driver_id = $3
		RETURNING *
	`, time.Now().Unix(), rideID, driverID)
	if err == sql.ErrNoRows {
		// Lost a race with a concurrent transition between the read above
		// and this write.
		return nil, ErrRideUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete ride: %w", err)
	}

	_, err = s.db.Exec(`
		UPDATE drivers
		SET is_available = TRUE, total_rides = total_rides + 1
		WHERE id = $1
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to update driver availability: %w", err)
	}

	return &ride, nil
}

// SetAvailability flips a driver's availability flag, used by the manual
// status endpoint and the updateDriverStatus socket event.
func (s *RideService) SetAvailability(driverID string, available bool) (*models.Driver, error) {
	var driver models.Driver
	err := s.db.Get(&driver, `
		UPDATE drivers
		SET is_available = $1
		WHERE id = $2
		RETURNING *
	`, available, driverID)
	if err == sql.ErrNoRows {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update driver availability: %w", err)
	}
	return &driver, nil
}

// missedTransition tells a vanished ride apart from one whose status moved on.
func (s *RideService) missedTransition(rideID string) error {
	var exists bool
	if err := s.db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)", rideID); err != nil {
		return fmt.Errorf("failed to check ride: %w", err)
	}
	if !exists {
		return ErrRideNotFound
	}
	return ErrRideUnavailable
}
