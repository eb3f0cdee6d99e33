package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort string

	// MQTT broker
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTQoS      byte
	MQTTTopic    string

	// Store backend: "memory" or "postgres"
	StoreBackend string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBMaxConns   int32

	// Redis notification bridge (disabled when addr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Detection
	DefaultClearanceHeight float64
	HeartbeatTimeout       time.Duration
	LivenessSweepInterval  time.Duration

	// Fan-out
	SubscriberBufferSize int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		MQTTBroker:             getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:           getEnv("MQTT_CLIENT_ID", "clearance-monitor"),
		MQTTUsername:           getEnv("MQTT_USERNAME", ""),
		MQTTPassword:           getEnv("MQTT_PASSWORD", ""),
		MQTTQoS:                byte(getEnvInt("MQTT_QOS", 1)),
		MQTTTopic:              getEnv("MQTT_TOPIC", "detector/+/+"),
		StoreBackend:           getEnv("STORE_BACKEND", "memory"),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		DBUser:                 getEnv("DB_USER", "clearance_user"),
		DBPassword:             getEnv("DB_PASSWORD", "clearance_password"),
		DBName:                 getEnv("DB_NAME", "clearance_monitor"),
		DBMaxConns:             int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvInt("REDIS_DB", 0),
		DefaultClearanceHeight: getEnvFloat("DEFAULT_CLEARANCE_HEIGHT", 13.5),
		HeartbeatTimeout:       getEnvDuration("HEARTBEAT_TIMEOUT_SECONDS", 300),
		LivenessSweepInterval:  getEnvDuration("LIVENESS_SWEEP_SECONDS", 60),
		SubscriberBufferSize:   getEnvInt("SUBSCRIBER_BUFFER_SIZE", 64),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
	}
}

// DatabaseURL builds the Postgres connection string for the pgx pool.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBMaxConns,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}
