// Package ingest interprets inbound device messages and feeds them to the
// detection pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"clearance-monitor/internal/detection"
	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/metrics"
	"clearance-monitor/internal/registry"
	"clearance-monitor/internal/store"
)

// MessageKind is the tagged variant a topic parses into. Dispatch switches
// on it exhaustively instead of re-inspecting topic strings.
type MessageKind int

const (
	KindHeight MessageKind = iota
	KindViolation
	KindHeartbeat
)

func (k MessageKind) String() string {
	switch k {
	case KindHeight:
		return "height"
	case KindViolation:
		return "violation"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Route is the result of parsing one topic string.
type Route struct {
	DeviceID string
	Kind     MessageKind
}

// ParseTopic parses a detector/{deviceId}/{kind} topic. Topics with fewer
// than three segments, an empty device segment, or an unknown kind are
// malformed.
func ParseTopic(topic string) (Route, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return Route{}, fmt.Errorf("malformed topic %q: expected detector/{deviceId}/{kind}", topic)
	}

	deviceID := parts[1]
	if deviceID == "" {
		return Route{}, fmt.Errorf("malformed topic %q: empty device segment", topic)
	}

	switch parts[2] {
	case "height":
		return Route{DeviceID: deviceID, Kind: KindHeight}, nil
	case "violation":
		return Route{DeviceID: deviceID, Kind: KindViolation}, nil
	case "heartbeat":
		return Route{DeviceID: deviceID, Kind: KindHeartbeat}, nil
	default:
		return Route{}, fmt.Errorf("malformed topic %q: unknown kind %q", topic, parts[2])
	}
}

// Router dispatches parsed messages to the liveness tracker and the
// detection path. No single message failure ever stops the router: bad
// input is logged, counted, and dropped.
type Router struct {
	registry  *registry.Registry
	detection *detection.Service
	logger    *zap.Logger
}

func NewRouter(reg *registry.Registry, det *detection.Service, logger *zap.Logger) *Router {
	return &Router{registry: reg, detection: det, logger: logger}
}

// Handle processes one inbound message. Each message is independent; there
// is no retry and no deduplication of repeated deliveries.
func (r *Router) Handle(ctx context.Context, topic string, payload []byte) {
	metrics.MessagesReceived.Inc()

	route, err := ParseTopic(topic)
	if err != nil {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonBadTopic).Inc()
		r.logger.Warn("dropping message with malformed topic", zap.String("topic", topic), zap.Error(err))
		return
	}

	var reading domain.HeightReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonBadPayload).Inc()
		r.logger.Warn("dropping undecodable payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	if reading.DeviceID == "" {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonBadPayload).Inc()
		r.logger.Warn("dropping payload without device_id", zap.String("topic", topic))
		return
	}

	switch route.Kind {
	case KindHeartbeat:
		r.heartbeat(ctx, &reading)
	case KindHeight, KindViolation:
		// A reading always refreshes liveness, whether or not it also
		// produces a violation.
		r.heartbeat(ctx, &reading)
		r.detect(ctx, &reading)
	}
}

func (r *Router) heartbeat(ctx context.Context, reading *domain.HeightReading) {
	if err := r.registry.UpdateHeartbeat(ctx, reading.DeviceID); err != nil {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonStoreError).Inc()
		r.logger.Error("heartbeat update failed",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)
	}
}

func (r *Router) detect(ctx context.Context, reading *domain.HeightReading) {
	_, err := r.detection.ProcessReading(ctx, reading)
	if errors.Is(err, store.ErrDetectorNotFound) {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonUnknownDetector).Inc()
		r.logger.Warn("reading from unknown detector",
			zap.String("device_id", reading.DeviceID),
		)
		return
	}
	if err != nil {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonStoreError).Inc()
		r.logger.Error("reading processing failed",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)
	}
}
