package websocket

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"

	"ridedash-backend/internal/events"
	"ridedash-backend/internal/middleware"
	"ridedash-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Restrict in production
		return true
	},
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket session.
// Browsers cannot set an Authorization header on the upgrade request, so the
// token rides in the query string.
func HandleWebSocket(hub *Hub, svc *services.RideService, producer *events.Producer, fcm *services.FCMService, db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")

		var claims middleware.DriverClaims
		if tokenString != "" {
			var err error
			claims, err = middleware.ParseToken(tokenString)
			if err != nil {
				log.Printf("❌ Invalid token on WebSocket upgrade: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		} else {
			// Fallback: claims set by the Auth middleware on a routed upgrade
			var ok bool
			claims, ok = middleware.GetDriverFromContext(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(claims.DriverID, conn, hub, svc, producer, fcm, db)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()

		log.Printf("✅ WebSocket session established for driver %s (%s)", claims.DriverID, claims.Email)
	}
}
