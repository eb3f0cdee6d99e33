package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard frontend is served from a different origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var allChannels = []domain.Channel{
	domain.ChannelViolations,
	domain.ChannelDetectors,
	domain.ChannelStats,
	domain.ChannelAlerts,
}

// handleWebSocket upgrades the connection and streams notifications from
// the requested logical channels (?channels=violations,stats). With no
// channels parameter the client gets all four.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	channels := parseChannels(r.URL.Query().Get("channels"))
	if len(channels) == 0 {
		writeError(w, http.StatusBadRequest, "no valid channels requested")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:   conn,
		out:    make(chan domain.Notification, 64),
		done:   make(chan struct{}),
		logger: s.logger,
	}

	subs := make([]*notify.Subscriber, 0, len(channels))
	for _, ch := range channels {
		sub := s.hub.Subscribe(ch)
		subs = append(subs, sub)
		go client.forward(sub)
	}

	s.logger.Info("websocket client connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("channels", len(channels)),
	)

	go client.writePump()
	client.readPump()

	// readPump returned: the connection is gone.
	close(client.done)
	for _, sub := range subs {
		s.hub.Unsubscribe(sub)
	}
	conn.Close()
}

func parseChannels(raw string) []domain.Channel {
	if raw == "" {
		return allChannels
	}

	var out []domain.Channel
	for _, name := range strings.Split(raw, ",") {
		switch domain.Channel(strings.TrimSpace(name)) {
		case domain.ChannelViolations:
			out = append(out, domain.ChannelViolations)
		case domain.ChannelDetectors:
			out = append(out, domain.ChannelDetectors)
		case domain.ChannelStats:
			out = append(out, domain.ChannelStats)
		case domain.ChannelAlerts:
			out = append(out, domain.ChannelAlerts)
		}
	}
	return out
}

type wsClient struct {
	conn   *websocket.Conn
	out    chan domain.Notification
	done   chan struct{}
	logger *zap.Logger
}

// forward moves notifications from one hub subscription into the shared
// outbound queue. A full queue drops for this client only.
func (c *wsClient) forward(sub *notify.Subscriber) {
	for n := range sub.C {
		select {
		case c.out <- n:
		case <-c.done:
			return
		default:
			// Slow client: drop rather than stall the hub forwarder.
		}
	}
}

// writePump is the single writer for the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case n := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump drains client frames so pings/pongs and close frames are
// processed. Inbound data frames are ignored: the stream is one-way.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}
