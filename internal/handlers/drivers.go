package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"ridedash-backend/internal/geo"
	"ridedash-backend/internal/middleware"
	"ridedash-backend/internal/models"
	"ridedash-backend/internal/services"
	"ridedash-backend/internal/websocket"
	"ridedash-backend/pkg/utils"
)

// GetMe returns the authenticated driver's profile
func GetMe(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)

		var driver models.Driver
		err := db.Get(&driver, "SELECT * FROM drivers WHERE id = $1", claims.DriverID)
		if err == sql.ErrNoRows {
			utils.Error(w, http.StatusNotFound, "Driver not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}

		utils.JSON(w, http.StatusOK, driver.ToDriverResponse())
	}
}

type UpdateStatusRequest struct {
	IsAvailable bool `json:"isAvailable"`
}

// UpdateStatus manually toggles availability outside the ride lifecycle
func UpdateStatus(svc *services.RideService, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		driver, err := svc.SetAvailability(claims.DriverID, req.IsAvailable)
		if err == services.ErrDriverNotFound {
			utils.Error(w, http.StatusNotFound, "Driver not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}

		hub.BroadcastAll("driverStatusUpdated", map[string]interface{}{
			"driverId":    driver.ID,
			"isAvailable": driver.IsAvailable,
		})

		utils.JSON(w, http.StatusOK, driver.ToDriverResponse())
	}
}

type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateLocation stores the driver's position and mirrors it into the Redis
// geo index when one is configured.
func UpdateLocation(db *sqlx.DB, locations *geo.LocationIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)

		var req UpdateLocationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var driver models.Driver
		err := db.Get(&driver, `
			UPDATE drivers
			SET current_lat = $1, current_lng = $2
			WHERE id = $3
			RETURNING *
		`, req.Lat, req.Lng, claims.DriverID)
		if err == sql.ErrNoRows {
			utils.Error(w, http.StatusNotFound, "Driver not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}

		if locations != nil {
			if err := locations.Upsert(r.Context(), driver.ID, req.Lat, req.Lng); err != nil {
				// Index is best effort, the row is already written
				log.Printf("⚠️ Geo index update failed for %s: %v", driver.ID, err)
			}
		}

		utils.JSON(w, http.StatusOK, driver.ToDriverResponse())
	}
}

type UpdateProfileRequest struct {
	Name           string                 `json:"name"`
	Phone          string                 `json:"phone"`
	VehicleDetails *models.VehicleDetails `json:"vehicleDetails"`
}

// UpdateProfile partially updates name, phone and vehicle details
func UpdateProfile(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)

		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		query := "UPDATE drivers SET id = id"
		args := []interface{}{}

		if name := strings.TrimSpace(req.Name); name != "" {
			args = append(args, name)
			query += fmt.Sprintf(", name = $%d", len(args))
		}
		if phone := strings.TrimSpace(req.Phone); phone != "" {
			args = append(args, phone)
			query += fmt.Sprintf(", phone = $%d", len(args))
		}
		if req.VehicleDetails != nil {
			args = append(args, req.VehicleDetails.Model, req.VehicleDetails.Color, req.VehicleDetails.PlateNumber)
			query += fmt.Sprintf(", vehicle_model = $%d, vehicle_color = $%d, vehicle_plate = $%d", len(args)-2, len(args)-1, len(args))
		}

		args = append(args, claims.DriverID)
		query += fmt.Sprintf(" WHERE id = $%d RETURNING *", len(args))

		var driver models.Driver
		err := db.Get(&driver, query, args...)
		if err == sql.ErrNoRows {
			utils.Error(w, http.StatusNotFound, "Driver not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}

		utils.JSON(w, http.StatusOK, driver.ToDriverResponse())
	}
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"deviceType"`
}

// RegisterFCMToken stores a device token for ride-request push notifications
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)

		var req RegisterFCMTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" || (req.DeviceType != "ios" && req.DeviceType != "android") {
			utils.Error(w, http.StatusBadRequest, "token and deviceType (ios|android) are required")
			return
		}

		now := time.Now().Unix()
		_, err := db.Exec(`
			INSERT INTO fcm_tokens (driver_id, token, device_type, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (token)
			DO UPDATE SET driver_id = EXCLUDED.driver_id, device_type = EXCLUDED.device_type, updated_at = EXCLUDED.updated_at
		`, claims.DriverID, req.Token, req.DeviceType, now)
		if err != nil {
			log.Printf("❌ Failed to register FCM token: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}

		utils.JSON(w, http.StatusOK, map[string]string{"status": "registered"})
	}
}
