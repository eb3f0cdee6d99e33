package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clearance-monitor/internal/detection"
	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/notify"
	"clearance-monitor/internal/registry"
	"clearance-monitor/internal/stats"
	"clearance-monitor/internal/store"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *notify.Hub) {
	t.Helper()
	detectors := store.NewMemoryDetectorStore()
	violations := store.NewMemoryViolationStore()
	logger := zap.NewNop()

	hub := notify.NewHub(16, logger)
	notifier := notify.NewNotifier(hub, logger)
	reg := registry.New(detectors, violations, notifier, 5*time.Minute, 13.5, logger)
	det := detection.NewService(detectors, violations, notifier, logger)
	agg := stats.NewAggregator(reg, violations, notifier, logger)

	srv := httptest.NewServer(NewServer(reg, det, agg, hub, logger).Handler())
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_ReceivesChannelEvents(t *testing.T) {
	srv, hub := newWSTestServer(t)
	conn := dialWS(t, srv, "?channels=violations")

	// Give the server a moment to register the subscription.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(domain.ChannelViolations) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(domain.ChannelViolations, domain.Notification{
		Type:     domain.NotifyNewViolation,
		Message:  "New violation detected at Main Street Bridge - Height: 15.20 ft (Clearance: 13.50 ft)",
		DeviceID: "TEST_001",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var n domain.Notification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, domain.NotifyNewViolation, n.Type)
	assert.Equal(t, "TEST_001", n.DeviceID)
}

func TestWebSocket_ChannelFilter(t *testing.T) {
	srv, hub := newWSTestServer(t)
	conn := dialWS(t, srv, "?channels=stats")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(domain.ChannelStats) == 1
	}, time.Second, 10*time.Millisecond)

	// Not subscribed to violations, so only the stats event arrives.
	hub.Publish(domain.ChannelViolations, domain.Notification{Type: domain.NotifyNewViolation})
	hub.Publish(domain.ChannelStats, domain.Notification{Type: domain.NotifyStatsUpdate})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var n domain.Notification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, domain.NotifyStatsUpdate, n.Type)
}

func TestWebSocket_DefaultSubscribesAllChannels(t *testing.T) {
	srv, hub := newWSTestServer(t)
	dialWS(t, srv, "")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(domain.ChannelViolations) == 1 &&
			hub.SubscriberCount(domain.ChannelDetectors) == 1 &&
			hub.SubscriberCount(domain.ChannelStats) == 1 &&
			hub.SubscriberCount(domain.ChannelAlerts) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocket_DisconnectCleansUpSubscriptions(t *testing.T) {
	srv, hub := newWSTestServer(t)
	conn := dialWS(t, srv, "?channels=alerts")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(domain.ChannelAlerts) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(domain.ChannelAlerts) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
