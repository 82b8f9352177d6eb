package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridedash-backend/internal/middleware"
	"ridedash-backend/internal/models"
	"ridedash-backend/internal/services"
	"ridedash-backend/internal/websocket"
)

var driverColumns = []string{
	"id", "name", "email", "password", "phone", "license_number",
	"vehicle_model", "vehicle_color", "vehicle_plate", "is_available",
	"rating", "total_rides", "current_lat", "current_lng", "created_at",
}

var rideColumns = []string{
	"id", "user_id", "pickup", "destination", "status", "fare",
	"payment_method", "driver_id", "request_time", "pickup_time", "completion_time",
}

func driverRow(id, email, passwordHash string) *sqlmock.Rows {
	return sqlmock.NewRows(driverColumns).AddRow(
		id, "Dana Driver", email, passwordHash, "555-0100", "DL-998877",
		"Toyota Prius", "Blue", "7ABC123", true,
		4.8, 12, nil, nil, time.Now().Unix(),
	)
}

func rideRow(id, status string, driverID interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(rideColumns).AddRow(
		id, "rider-1", "325 S 1st St", "SJC Terminal B", status, 23.5,
		"cash", driverID, time.Now().Unix(), nil, nil,
	)
}

// newRideRouter wires the ride endpoints the way the server does, backed by a
// mocked database and a live hub.
func newRideRouter(t *testing.T) (*chi.Mux, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := services.NewRideService(sqlx.NewDb(db, "sqlmock"))
	hub := websocket.NewHub()
	go hub.Run()

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth)
		r.Get("/api/rides", GetOpenRides(svc))
		r.Put("/api/rides/{id}/accept", AcceptRide(svc, hub, nil))
		r.Put("/api/rides/{id}/decline", DeclineRide(svc, hub, nil))
		r.Put("/api/rides/{id}/complete", CompleteRide(svc, hub, nil))
	})
	return r, mock
}

func authedRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	token, err := signToken(models.Driver{ID: "driver-1", Email: "dana@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAcceptRideEndpoint(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "test-secret")

	t.Run("Success", func(t *testing.T) {
		router, mock := newRideRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM drivers WHERE id`).
			WithArgs("driver-1").
			WillReturnRows(driverRow("driver-1", "dana@example.com", "$2a$10$hash"))
		mock.ExpectQuery(`UPDATE rides`).
			WithArgs("driver-1", sqlmock.AnyArg(), "ride-1").
			WillReturnRows(rideRow("ride-1", "accepted", "driver-1"))
		mock.ExpectExec(`UPDATE drivers SET is_available = FALSE`).
			WithArgs("driver-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodPut, "/api/rides/ride-1/accept"))

		require.Equal(t, http.StatusOK, rec.Code)

		var accepted models.AcceptedRide
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
		assert.Equal(t, models.RideStatusAccepted, accepted.Status)
		assert.Equal(t, "Dana Driver", accepted.DriverName)
		assert.Equal(t, "Toyota Prius", accepted.VehicleDetails.Model)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Claimed Returns Conflict", func(t *testing.T) {
		router, mock := newRideRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM drivers WHERE id`).
			WithArgs("driver-1").
			WillReturnRows(driverRow("driver-1", "dana@example.com", "$2a$10$hash"))
		mock.ExpectQuery(`UPDATE rides`).
			WithArgs("driver-1", sqlmock.AnyArg(), "ride-1").
			WillReturnRows(sqlmock.NewRows(rideColumns))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("ride-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodPut, "/api/rides/ride-1/accept"))

		require.Equal(t, http.StatusConflict, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Ride is no longer available", body["error"])

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Ride Returns Not Found", func(t *testing.T) {
		router, mock := newRideRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM drivers WHERE id`).
			WithArgs("driver-1").
			WillReturnRows(driverRow("driver-1", "dana@example.com", "$2a$10$hash"))
		mock.ExpectQuery(`UPDATE rides`).
			WithArgs("driver-1", sqlmock.AnyArg(), "ghost").
			WillReturnRows(sqlmock.NewRows(rideColumns))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodPut, "/api/rides/ghost/accept"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Requires Authentication", func(t *testing.T) {
		router, _ := newRideRouter(t)

		req := httptest.NewRequest(http.MethodPut, "/api/rides/ride-1/accept", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCompleteRideEndpoint(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "test-secret")

	t.Run("Not Owner Returns Unauthorized", func(t *testing.T) {
		router, mock := newRideRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM rides WHERE id`).
			WithArgs("ride-1").
			WillReturnRows(rideRow("ride-1", "accepted", "driver-2"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodPut, "/api/rides/ride-1/complete"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success", func(t *testing.T) {
		router, mock := newRideRouter(t)

		mock.ExpectQuery(`SELECT (.+) FROM rides WHERE id`).
			WithArgs("ride-1").
			WillReturnRows(rideRow("ride-1", "accepted", "driver-1"))
		mock.ExpectQuery(`UPDATE rides`).
			WithArgs(sqlmock.AnyArg(), "ride-1", "driver-1").
			WillReturnRows(rideRow("ride-1", "completed", "driver-1"))
		mock.ExpectExec(`UPDATE drivers`).
			WithArgs("driver-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodPut, "/api/rides/ride-1/complete"))

		require.Equal(t, http.StatusOK, rec.Code)

		var ride models.Ride
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ride))
		assert.Equal(t, models.RideStatusCompleted, ride.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetOpenRidesEndpoint(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "test-secret")

	router, mock := newRideRouter(t)

	now := time.Now().Unix()
	rows := sqlmock.NewRows(rideColumns).
		AddRow("ride-2", "rider-2", "B St", "Airport", "requested", nil, "cash", nil, now, nil, nil).
		AddRow("ride-1", "rider-1", "A St", "Downtown", "requested", 12.0, "card", nil, now-300, nil, nil)
	mock.ExpectQuery(`SELECT (.+) FROM rides`).WillReturnRows(rows)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/rides"))

	require.Equal(t, http.StatusOK, rec.Code)

	var rides []models.Ride
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rides))
	require.Len(t, rides, 2)
	assert.Equal(t, "ride-2", rides[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
