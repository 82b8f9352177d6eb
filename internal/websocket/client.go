package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"

	"ridedash-backend/internal/events"
	"ridedash-backend/internal/models"
	"ridedash-backend/internal/observability"
	"ridedash-backend/internal/services"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048
)

// Client represents one authenticated WebSocket session.
type Client struct {
	DriverID string
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte

	// Only the hub closes send; the read pump can still be mid-message
	// when it does, so its own writes go through enqueue.
	sendMu     sync.Mutex
	sendClosed bool

	svc      *services.RideService
	producer *events.Producer
	db       *sqlx.DB
	fcm      *services.FCMService
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func NewClient(driverID string, conn *websocket.Conn, hub *Hub, svc *services.RideService, producer *events.Producer, fcm *services.FCMService, db *sqlx.DB) *Client {
	return &Client{
		DriverID: driverID,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		svc:      svc,
		producer: producer,
		db:       db,
		fcm:      fcm,
	}
}

// ReadPump pumps messages from the WebSocket connection into the coordinator.
// Socket-submitted transitions go through the same RideService as the HTTP
// handlers; the socket is a notification channel, never a second write path
// with its own rules.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format from %s: %v", c.DriverID, err)
			continue
		}

		switch msg.Type {
		case "ping":
			pong, _ := json.Marshal(Event{Type: "pong", Data: time.Now().Unix()})
			c.enqueue(pong)

		case "driverConnected":
			// Session is already keyed by the authenticated driver id;
			// nothing to store, the event only confirms the handshake.
			log.Printf("👋 [WS] driverConnected from %s", c.DriverID)

		case "newRideRequest":
			c.handleNewRideRequest(msg.Data)

		case "acceptRide":
			c.handleAcceptRide(msg.Data)

		case "declineRide":
			c.handleDeclineRide(msg.Data)

		case "completeRide":
			c.handleCompleteRide(msg.Data)

		case "updateDriverStatus":
			c.handleUpdateDriverStatus(msg.Data)

		default:
			log.Printf("Unknown message type %q from %s", msg.Type, c.DriverID)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages into the same WebSocket frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleNewRideRequest verifies the ride exists before announcing it. The
// rider-facing client writes the ride row itself and only tells us the id.
func (c *Client) handleNewRideRequest(data map[string]interface{}) {
	rideID, ok := data["rideId"].(string)
	if !ok || rideID == "" {
		log.Printf("❌ newRideRequest without rideId from %s", c.DriverID)
		return
	}

	ride, err := c.svc.GetRide(rideID)
	if err != nil {
		log.Printf("❌ newRideRequest for unknown ride %s: %v", rideID, err)
		return
	}
	if ride.Status != models.RideStatusRequested {
		log.Printf("⚠️ newRideRequest for ride %s in status %s, ignoring", rideID, ride.Status)
		return
	}

	c.hub.BroadcastAll("rideRequest", ride)
	c.publishEvent("rideRequest", ride, "")

	if c.fcm != nil {
		tokens := []string{}
		if err := c.db.Select(&tokens, "SELECT token FROM fcm_tokens"); err != nil {
			log.Printf("❌ Failed to load FCM tokens: %v", err)
		} else if err := c.fcm.NotifyRideRequest(tokens, ride); err != nil {
			log.Printf("❌ Failed to push ride request: %v", err)
		}
	}
}

func (c *Client) handleAcceptRide(data map[string]interface{}) {
	rideID, ok := data["rideId"].(string)
	if !ok || rideID == "" {
		return
	}

	accepted, err := c.svc.Accept(rideID, c.DriverID)
	if err != nil {
		log.Printf("⚠️ acceptRide %s by %s rejected: %v", rideID, c.DriverID, err)
		if err == services.ErrRideUnavailable {
			observability.RideTransitionConflicts.Inc()
		}
		return
	}

	observability.RideTransitionsTotal.WithLabelValues("accepted").Inc()
	c.hub.BroadcastAll("rideAccepted", map[string]interface{}{
		"rideId":     accepted.ID,
		"driverId":   c.DriverID,
		"driverName": accepted.DriverName,
		"ride":       accepted,
	})
	c.publishEvent("rideAccepted", &accepted.Ride, c.DriverID)
}

func (c *Client) handleDeclineRide(data map[string]interface{}) {
	rideID, ok := data["rideId"].(string)
	if !ok || rideID == "" {
		return
	}

	ride, err := c.svc.Decline(rideID)
	if err != nil {
		log.Printf("⚠️ declineRide %s by %s rejected: %v", rideID, c.DriverID, err)
		return
	}

	observability.RideTransitionsTotal.WithLabelValues("declined").Inc()
	c.hub.BroadcastAll("rideDeclined", map[string]interface{}{
		"rideId":   ride.ID,
		"driverId": c.DriverID,
	})
	c.publishEvent("rideDeclined", ride, c.DriverID)
}

func (c *Client) handleCompleteRide(data map[string]interface{}) {
	rideID, ok := data["rideId"].(string)
	if !ok || rideID == "" {
		return
	}

	ride, err := c.svc.Complete(rideID, c.DriverID)
	if err != nil {
		log.Printf("⚠️ completeRide %s by %s rejected: %v", rideID, c.DriverID, err)
		return
	}

	observability.RideTransitionsTotal.WithLabelValues("completed").Inc()
	c.hub.BroadcastAll("rideCompleted", map[string]interface{}{
		"rideId":   ride.ID,
		"driverId": c.DriverID,
		"ride":     ride,
	})
	c.publishEvent("rideCompleted", ride, c.DriverID)
}

func (c *Client) handleUpdateDriverStatus(data map[string]interface{}) {
	isAvailable, ok := data["isAvailable"].(bool)
	if !ok {
		return
	}

	driver, err := c.svc.SetAvailability(c.DriverID, isAvailable)
	if err != nil {
		log.Printf("⚠️ updateDriverStatus by %s failed: %v", c.DriverID, err)
		return
	}

	c.hub.BroadcastAll("driverStatusUpdated", map[string]interface{}{
		"driverId":    driver.ID,
		"isAvailable": driver.IsAvailable,
	})
}

// enqueue hands a message to the write pump. A session the hub already tore
// down (second login, full buffer) drops the message instead of sending on a
// closed channel.
func (c *Client) enqueue(message []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

// closeSend shuts the outbound channel exactly once. Called by the hub only.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

func (c *Client) publishEvent(eventType string, ride *models.Ride, driverID string) {
	if c.producer == nil {
		return
	}
	if err := c.producer.Publish(eventType, ride, driverID); err != nil {
		log.Printf("❌ Failed to publish %s event: %v", eventType, err)
	}
}
