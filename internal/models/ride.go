package models

// RideStatus represents where a ride is in its lifecycle
type RideStatus string

const (
	RideStatusRequested RideStatus = "requested" // Waiting for a driver
	RideStatusAccepted  RideStatus = "accepted"  // Claimed by a driver
	RideStatusDeclined  RideStatus = "declined"  // Turned down, terminal
	RideStatusCompleted RideStatus = "completed" // Dropped off, terminal
)

// Ride is one trip request from a rider. driver_id is set exactly once,
// at the requested -> accepted transition.
type Ride struct {
	ID             string     `json:"id" db:"id"`
	UserID         string     `json:"user_id" db:"user_id"`
	Pickup         string     `json:"pickup" db:"pickup"`
	Destination    string     `json:"destination" db:"destination"`
	Status         RideStatus `json:"status" db:"status"`
	Fare           *float64   `json:"fare" db:"fare"`
	PaymentMethod  string     `json:"payment_method" db:"payment_method"`
	DriverID       *string    `json:"driver_id" db:"driver_id"`
	RequestTime    int64      `json:"request_time" db:"request_time"`
	PickupTime     *int64     `json:"pickup_time" db:"pickup_time"`
	CompletionTime *int64     `json:"completion_time" db:"completion_time"`
}

// AcceptedRide is a ride merged with the accepting driver's public details,
// the payload pushed to clients on a rideAccepted event.
type AcceptedRide struct {
	Ride
	DriverName     string         `json:"driver_name"`
	VehicleDetails VehicleDetails `json:"vehicle_details"`
}
