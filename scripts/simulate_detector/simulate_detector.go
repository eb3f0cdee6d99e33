package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
)

// Simulates one roadside height detector publishing over MQTT, so the
// pipeline can be exercised without hardware. Traffic mix: mostly legal
// heights, an occasional overheight vehicle, heartbeats in between.

const (
	deviceID        = "TEST_001"
	location        = "Main Street Bridge"
	clearanceHeight = 13.5
)

type reading struct {
	DeviceID     string  `json:"device_id"`
	Height       float64 `json:"height"`
	Timestamp    string  `json:"timestamp"`
	SensorStatus string  `json:"sensor_status"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	broker := simGetEnv("MQTT_BROKER", "tcp://localhost:1883")

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("detector-sim-" + deviceID).
		SetUsername(simGetEnv("MQTT_USERNAME", "")).
		SetPassword(simGetEnv("MQTT_PASSWORD", ""))

	fmt.Printf("Connecting to MQTT broker %s...\n", broker)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure the broker is running:\n  docker-compose up -d mosquitto", token.Error())
	}
	defer client.Disconnect(250)
	fmt.Println("✓ Connected")

	fmt.Printf("\nSimulating detector %s at %q (clearance %.1f ft)\n", deviceID, location, clearanceHeight)
	fmt.Println("Press Ctrl-C to stop")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()
	traffic := time.NewTicker(5 * time.Second)
	defer traffic.Stop()

	publishHeartbeat(client)

	for {
		select {
		case <-heartbeat.C:
			publishHeartbeat(client)
		case <-traffic.C:
			// Roughly 1 in 6 vehicles is overheight
			if rand.Intn(6) == 0 {
				publishVehicle(client, "violation", clearanceHeight+0.2+rand.Float64()*2.5)
			} else {
				publishVehicle(client, "height", 9.0+rand.Float64()*4.0)
			}
		}
	}
}

func publishVehicle(client mqtt.Client, kind string, height float64) {
	topic := fmt.Sprintf("detector/%s/%s", deviceID, kind)
	payload, _ := json.Marshal(reading{
		DeviceID:     deviceID,
		Height:       round2(height),
		Timestamp:    time.Now().Format(time.RFC3339),
		SensorStatus: "OK",
	})

	if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("publish failed: %v", token.Error())
		return
	}
	if kind == "violation" {
		fmt.Printf("  📤 violation: %.2f ft (excess %.2f ft)\n", height, height-clearanceHeight)
	} else {
		fmt.Printf("  📤 height: %.2f ft\n", height)
	}
}

func publishHeartbeat(client mqtt.Client) {
	topic := fmt.Sprintf("detector/%s/heartbeat", deviceID)
	payload, _ := json.Marshal(reading{
		DeviceID:     deviceID,
		Timestamp:    time.Now().Format(time.RFC3339),
		SensorStatus: "OK",
	})

	if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("heartbeat failed: %v", token.Error())
		return
	}
	fmt.Println("  ♥ heartbeat")
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func simGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
