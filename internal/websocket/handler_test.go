package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridedash-backend/internal/observability"
)

func signSessionToken(t *testing.T, driverID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"driver_id": driverID,
		"email":     driverID + "@example.com",
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

// newUpgradeServer mounts the upgrade handler behind the metrics middleware,
// the same chain the server wires for /ws.
func newUpgradeServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(observability.Middleware(HandleWebSocket(hub, nil, nil, nil, nil)))
	t.Cleanup(srv.Close)
	return srv
}

func TestUpgradeThroughMetricsMiddleware(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "test-secret")

	hub := NewHub()
	go hub.Run()
	srv := newUpgradeServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + signSessionToken(t, "D1")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	waitForCount(t, hub, 1)
	assert.True(t, hub.IsDriverConnected("D1"))

	// Events flow end to end over the upgraded connection
	hub.BroadcastAll("rideRequest", map[string]interface{}{"rideId": "R1"})
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "rideRequest", event.Type)
}

func TestUpgradeRejectsInvalidToken(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "test-secret")

	hub := NewHub()
	go hub.Run()
	srv := newUpgradeServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestUpgradeRejectsMissingToken(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "test-secret")

	hub := NewHub()
	go hub.Run()
	srv := newUpgradeServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
