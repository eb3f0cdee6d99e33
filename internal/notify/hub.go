package notify

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/metrics"
)

// Subscriber receives notifications for one channel. C is closed when the
// subscriber is removed from the hub.
type Subscriber struct {
	ID      string
	Channel domain.Channel
	C       <-chan domain.Notification

	ch chan domain.Notification
}

// Hub is the in-process fan-out: per-channel subscriber sets with buffered
// delivery. A full subscriber buffer drops the notification for that
// subscriber instead of blocking the publisher, and a subscriber joining
// after an event was sent never sees it.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[domain.Channel]map[string]*Subscriber
	bufferSize  int
	logger      *zap.Logger
}

func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Hub{
		subscribers: make(map[domain.Channel]map[string]*Subscriber),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

func (h *Hub) Subscribe(channel domain.Channel) *Subscriber {
	ch := make(chan domain.Notification, h.bufferSize)
	sub := &Subscriber{
		ID:      uuid.NewString(),
		Channel: channel,
		C:       ch,
		ch:      ch,
	}

	h.mu.Lock()
	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[string]*Subscriber)
	}
	h.subscribers[channel][sub.ID] = sub
	h.mu.Unlock()

	h.logger.Debug("subscriber joined",
		zap.String("channel", string(channel)),
		zap.String("subscriber_id", sub.ID),
	)
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	subs := h.subscribers[sub.Channel]
	if _, ok := subs[sub.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(subs, sub.ID)
	h.mu.Unlock()

	close(sub.ch)
	h.logger.Debug("subscriber left",
		zap.String("channel", string(sub.Channel)),
		zap.String("subscriber_id", sub.ID),
	)
}

func (h *Hub) Publish(channel domain.Channel, n domain.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	metrics.NotificationsPublished.WithLabelValues(string(channel)).Inc()

	for _, sub := range h.subscribers[channel] {
		select {
		case sub.ch <- n:
		default:
			metrics.NotificationsDropped.WithLabelValues(string(channel)).Inc()
			h.logger.Warn("subscriber buffer full, dropping notification",
				zap.String("channel", string(channel)),
				zap.String("subscriber_id", sub.ID),
				zap.String("notification_type", string(n.Type)),
			)
		}
	}
}

// SubscriberCount reports how many subscribers a channel currently has.
func (h *Hub) SubscriberCount(channel domain.Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}
