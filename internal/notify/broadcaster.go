package notify

import "clearance-monitor/internal/domain"

// Broadcaster delivers a notification to every current subscriber of a
// logical channel. Delivery is fire-and-forget: implementations must never
// block the caller on slow or absent subscribers.
type Broadcaster interface {
	Publish(channel domain.Channel, n domain.Notification)
}

// NopBroadcaster discards everything. Useful as a test double.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(domain.Channel, domain.Notification) {}

// Fanout publishes every notification to each wrapped broadcaster in order.
type Fanout []Broadcaster

func (f Fanout) Publish(channel domain.Channel, n domain.Notification) {
	for _, b := range f {
		b.Publish(channel, n)
	}
}
