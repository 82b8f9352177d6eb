package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"ridedash-backend/internal/models"
	"ridedash-backend/pkg/utils"
)

type RegisterRequest struct {
	Name           string                 `json:"name"`
	Email          string                 `json:"email"`
	Password       string                 `json:"password"`
	Phone          string                 `json:"phone"`
	LicenseNumber  string                 `json:"licenseNumber"`
	VehicleDetails *models.VehicleDetails `json:"vehicleDetails"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token  string                `json:"token"`
	Driver models.DriverResponse `json:"driver"`
}

// Register creates a driver account and issues a token. Missing contact and
// vehicle fields get placeholder defaults so a bare name/email/password
// signup still works.
func Register(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Name == "" || req.Password == "" {
			utils.Error(w, http.StatusBadRequest, "Name and password are required")
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			utils.Error(w, http.StatusBadRequest, "Please include a valid email")
			return
		}

		if req.Phone == "" {
			req.Phone = "123-456-7890"
		}
		if req.LicenseNumber == "" {
			req.LicenseNumber = "DL-123456"
		}
		if req.VehicleDetails == nil {
			req.VehicleDetails = &models.VehicleDetails{Model: "Default Car", Color: "Black", PlateNumber: "ABC-1234"}
		}

		var exists bool
		if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM drivers WHERE email = $1)", req.Email); err != nil {
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}
		if exists {
			utils.Error(w, http.StatusBadRequest, "Driver already exists")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}

		var driver models.Driver
		err = db.Get(&driver, `
			INSERT INTO drivers (id, name, email, password, phone, license_number,
				vehicle_model, vehicle_color, vehicle_plate, is_available, rating, total_rides, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, 0, 0, $10)
			RETURNING *
		`, uuid.New().String(), req.Name, req.Email, string(hash), req.Phone, req.LicenseNumber,
			req.VehicleDetails.Model, req.VehicleDetails.Color, req.VehicleDetails.PlateNumber,
			time.Now().Unix())
		if err != nil {
			log.Printf("❌ Failed to create driver: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}

		token, err := signToken(driver)
		if err != nil {
			log.Printf("❌ Failed to create token: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to create token")
			return
		}

		log.Printf("✅ Driver registered: %s (%s)", driver.Email, driver.ID)
		utils.JSON(w, http.StatusOK, AuthResponse{Token: token, Driver: driver.ToDriverResponse()})
	}
}

// Login authenticates a driver and issues a token
func Login(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var driver models.Driver
		err := db.Get(&driver, "SELECT * FROM drivers WHERE email = $1", strings.TrimSpace(strings.ToLower(req.Email)))
		if err == sql.ErrNoRows {
			utils.Error(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(driver.Password), []byte(req.Password)); err != nil {
			utils.Error(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		token, err := signToken(driver)
		if err != nil {
			log.Printf("❌ Failed to create token: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to create token")
			return
		}

		log.Printf("✅ Login successful: %s", driver.Email)
		utils.JSON(w, http.StatusOK, AuthResponse{Token: token, Driver: driver.ToDriverResponse()})
	}
}

func signToken(driver models.Driver) (string, error) {
	jwtSecret := os.Getenv("APP_JWT_SECRET")
	if jwtSecret == "" {
		return "", jwt.ErrInvalidKey
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"driver_id": driver.ID,
		"email":     driver.Email,
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(7 * 24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(jwtSecret))
}
