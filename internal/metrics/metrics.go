package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "clearance_"

var (
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "messages_received_total",
		Help: "Total inbound device messages seen by the router",
	})

	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "messages_dropped_total",
		Help: "Messages dropped by the router, by reason",
	}, []string{"reason"})

	HeartbeatsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "heartbeats_processed_total",
		Help: "Heartbeat touches applied to the detector registry",
	})

	ViolationsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "violations_detected_total",
		Help: "Violations created, by severity",
	}, []string{"severity"})

	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "notifications_published_total",
		Help: "Notifications published to a channel",
	}, []string{"channel"})

	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "notifications_dropped_total",
		Help: "Notifications dropped because a subscriber buffer was full",
	}, []string{"channel"})
)

// Drop reasons used with MessagesDropped.
const (
	ReasonBadTopic        = "bad_topic"
	ReasonBadPayload      = "bad_payload"
	ReasonUnknownDetector = "unknown_detector"
	ReasonStoreError      = "store_error"
)
