package models

// VehicleDetails describes the car a driver operates. Stored as flat columns
// on the drivers table, exposed as a nested object over the API.
type VehicleDetails struct {
	Model       string `json:"model"`
	Color       string `json:"color"`
	PlateNumber string `json:"plate_number"`
}

// Location is an optional lat/lng pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Driver struct {
	ID            string   `json:"id" db:"id"`
	Name          string   `json:"name" db:"name"`
	Email         string   `json:"email" db:"email"`
	Password      string   `json:"-" db:"password"` // Never return password hash in JSON
	Phone         string   `json:"phone" db:"phone"`
	LicenseNumber string   `json:"license_number" db:"license_number"`
	VehicleModel  string   `json:"-" db:"vehicle_model"`
	VehicleColor  string   `json:"-" db:"vehicle_color"`
	VehiclePlate  string   `json:"-" db:"vehicle_plate"`
	IsAvailable   bool     `json:"is_available" db:"is_available"`
	Rating        float64  `json:"rating" db:"rating"`
	TotalRides    int      `json:"total_rides" db:"total_rides"`
	CurrentLat    *float64 `json:"-" db:"current_lat"`
	CurrentLng    *float64 `json:"-" db:"current_lng"`
	CreatedAt     int64    `json:"created_at" db:"created_at"`
}

// DriverResponse is the API view of a driver: no credential hash, vehicle
// columns folded into one object, location folded into one pair.
type DriverResponse struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	LicenseNumber   string         `json:"license_number"`
	VehicleDetails  VehicleDetails `json:"vehicle_details"`
	IsAvailable     bool           `json:"is_available"`
	Rating          float64        `json:"rating"`
	TotalRides      int            `json:"total_rides"`
	CurrentLocation *Location      `json:"current_location"`
	CreatedAt       int64          `json:"created_at"`
}

func (d *Driver) Vehicle() VehicleDetails {
	return VehicleDetails{
		Model:       d.VehicleModel,
		Color:       d.VehicleColor,
		PlateNumber: d.VehiclePlate,
	}
}

func (d *Driver) ToDriverResponse() DriverResponse {
	resp := DriverResponse{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Phone:          d.Phone,
		LicenseNumber:  d.LicenseNumber,
		VehicleDetails: d.Vehicle(),
		IsAvailable:    d.IsAvailable,
		Rating:         d.Rating,
		TotalRides:     d.TotalRides,
		CreatedAt:      d.CreatedAt,
	}
	if d.CurrentLat != nil && d.CurrentLng != nil {
		resp.CurrentLocation = &Location{Lat: *d.CurrentLat, Lng: *d.CurrentLng}
	}
	return resp
}

// FCMToken represents a Firebase Cloud Messaging token registered by a
// driver's device for ride-request push notifications.
type FCMToken struct {
	ID         int    `json:"id" db:"id"`
	DriverID   string `json:"driver_id" db:"driver_id"`
	Token      string `json:"token" db:"token"`
	DeviceType string `json:"device_type" db:"device_type"` // "ios" or "android"
	CreatedAt  int64  `json:"created_at" db:"created_at"`
	UpdatedAt  int64  `json:"updated_at" db:"updated_at"`
}
