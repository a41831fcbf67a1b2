// internal/handler/events_handler_test.go
package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"terminal-service/internal/model"
)

func dialEvents(t *testing.T, h *EventsHandler) *websocket.Conn {
	t.Helper()
	router := gin.New()
	router.GET("/ws/events", h.HandleEvents)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) EventMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg EventMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestEventsStreamConnectivity(t *testing.T) {
	h := NewEventsHandler(zap.NewNop())
	conn := dialEvents(t, h)

	// registration races the broadcast without this
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	deviceID := "/dev/ttyUSB0"
	h.ConnectivityChanged(model.ConnectivityRecord{
		Slot:              model.SlotPrinter,
		ConnectedDeviceID: &deviceID,
		Status:            model.StatusConnected,
	})

	msg := readEvent(t, conn)
	assert.Equal(t, "connectivity_changed", msg.Type)

	data := msg.Data.(map[string]interface{})
	assert.Equal(t, "PRINTER", data["slot"])
	assert.Equal(t, "CONNECTED", data["status"])
}

func TestEventsStreamPaymentStatus(t *testing.T) {
	h := NewEventsHandler(zap.NewNop())
	conn := dialEvents(t, h)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	h.PaymentStatusChanged(model.StatusUpdate{
		Step:      model.StepProcessing,
		Message:   "Waiting for card",
		Timestamp: time.Now(),
	})

	msg := readEvent(t, conn)
	assert.Equal(t, "payment_status", msg.Type)

	data := msg.Data.(map[string]interface{})
	assert.Equal(t, "PROCESSING", data["step"])
	assert.Equal(t, "Waiting for card", data["message"])
}

func TestEventsClientDisconnectUnregisters(t *testing.T) {
	h := NewEventsHandler(zap.NewNop())
	conn := dialEvents(t, h)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}
