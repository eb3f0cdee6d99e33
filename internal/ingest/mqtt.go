package ingest

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig carries broker connection settings for the ingest subscriber.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Topic    string
}

// MQTTSubscriber connects to the broker and feeds every message on the
// detector topic tree into the router. Paho invokes handlers on its own
// goroutines, so message processing never blocks the network loop.
type MQTTSubscriber struct {
	client mqtt.Client
	cfg    MQTTConfig
	router *Router
	logger *zap.Logger
}

func NewMQTTSubscriber(cfg MQTTConfig, router *Router, logger *zap.Logger) (*MQTTSubscriber, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected to MQTT broker", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTSubscriber{client: client, cfg: cfg, router: router, logger: logger}, nil
}

// Start subscribes to the detector topic tree.
func (s *MQTTSubscriber) Start(ctx context.Context) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		s.router.Handle(ctx, msg.Topic(), msg.Payload())
	}

	if token := s.client.Subscribe(s.cfg.Topic, s.cfg.QoS, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", s.cfg.Topic, token.Error())
	}

	s.logger.Info("subscribed to detector topics",
		zap.String("topic", s.cfg.Topic),
		zap.Uint8("qos", s.cfg.QoS),
	)
	return nil
}

func (s *MQTTSubscriber) Stop() {
	if token := s.client.Unsubscribe(s.cfg.Topic); token.Wait() && token.Error() != nil {
		s.logger.Warn("MQTT unsubscribe failed", zap.Error(token.Error()))
	}
	s.client.Disconnect(250)
}
