package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ridedash-backend/internal/events"
	"ridedash-backend/internal/middleware"
	"ridedash-backend/internal/models"
	"ridedash-backend/internal/observability"
	"ridedash-backend/internal/services"
	"ridedash-backend/internal/websocket"
	"ridedash-backend/pkg/utils"
)

// GetOpenRides lists every ride still waiting for a driver, newest first
func GetOpenRides(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rides, err := svc.OpenRides()
		if err != nil {
			log.Printf("❌ Failed to list open rides: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}
		utils.JSON(w, http.StatusOK, rides)
	}
}

// GetDriverRides lists the authenticated driver's rides, newest first
func GetDriverRides(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)

		rides, err := svc.RidesForDriver(claims.DriverID)
		if err != nil {
			log.Printf("❌ Failed to list driver rides: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Server error")
			return
		}
		utils.JSON(w, http.StatusOK, rides)
	}
}

// AcceptRide claims an open ride for the authenticated driver. First write
// wins: a concurrent accept on the same ride gets a 409.
func AcceptRide(svc *services.RideService, hub *websocket.Hub, producer *events.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)
		rideID := chi.URLParam(r, "id")
		if rideID == "" {
			utils.Error(w, http.StatusBadRequest, "Invalid ride ID")
			return
		}

		accepted, err := svc.Accept(rideID, claims.DriverID)
		if err != nil {
			respondLifecycleError(w, err)
			return
		}

		observability.RideTransitionsTotal.WithLabelValues("accepted").Inc()
		hub.BroadcastAll("rideAccepted", map[string]interface{}{
			"rideId":     accepted.ID,
			"driverId":   claims.DriverID,
			"driverName": accepted.DriverName,
			"ride":       accepted,
		})
		publishEvent(producer, "rideAccepted", &accepted.Ride, claims.DriverID)

		utils.JSON(w, http.StatusOK, accepted)
	}
}

// DeclineRide turns down an open ride
func DeclineRide(svc *services.RideService, hub *websocket.Hub, producer *events.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)
		rideID := chi.URLParam(r, "id")
		if rideID == "" {
			utils.Error(w, http.StatusBadRequest, "Invalid ride ID")
			return
		}

		ride, err := svc.Decline(rideID)
		if err != nil {
			respondLifecycleError(w, err)
			return
		}

		observability.RideTransitionsTotal.WithLabelValues("declined").Inc()
		hub.BroadcastAll("rideDeclined", map[string]interface{}{
			"rideId":   ride.ID,
			"driverId": claims.DriverID,
		})
		publishEvent(producer, "rideDeclined", ride, claims.DriverID)

		utils.JSON(w, http.StatusOK, ride)
	}
}

// CompleteRide finishes a ride held by the authenticated driver
func CompleteRide(svc *services.RideService, hub *websocket.Hub, producer *events.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetDriverFromContext(r)
		rideID := chi.URLParam(r, "id")
		if rideID == "" {
			utils.Error(w, http.StatusBadRequest, "Invalid ride ID")
			return
		}

		ride, err := svc.Complete(rideID, claims.DriverID)
		if err != nil {
			respondLifecycleError(w, err)
			return
		}

		observability.RideTransitionsTotal.WithLabelValues("completed").Inc()
		hub.BroadcastAll("rideCompleted", map[string]interface{}{
			"rideId":   ride.ID,
			"driverId": claims.DriverID,
			"ride":     ride,
		})
		publishEvent(producer, "rideCompleted", ride, claims.DriverID)

		utils.JSON(w, http.StatusOK, ride)
	}
}

// respondLifecycleError maps coordinator errors onto the HTTP taxonomy:
// missing entities 404, wrong owner 401, a ride whose status already moved
// on 409, anything else a generic 500.
func respondLifecycleError(w http.ResponseWriter, err error) {
	switch err {
	case services.ErrRideNotFound:
		utils.Error(w, http.StatusNotFound, "Ride not found")
	case services.ErrDriverNotFound:
		utils.Error(w, http.StatusNotFound, "Driver not found")
	case services.ErrNotRideOwner:
		utils.Error(w, http.StatusUnauthorized, "Not authorized")
	case services.ErrRideUnavailable:
		observability.RideTransitionConflicts.Inc()
		utils.Error(w, http.StatusConflict, "Ride is no longer available")
	default:
		log.Printf("❌ Ride lifecycle error: %v", err)
		utils.Error(w, http.StatusInternalServerError, "Server error")
	}
}

func publishEvent(producer *events.Producer, eventType string, ride *models.Ride, driverID string) {
	if producer == nil {
		return
	}
	if err := producer.Publish(eventType, ride, driverID); err != nil {
		log.Printf("❌ Failed to publish %s event: %v", eventType, err)
	}
}
