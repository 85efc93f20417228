package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Local UI gateway
	Port        string
	Environment string

	// Backend API server
	APIBaseURL    string
	APITimeout    time.Duration
	ChatSocketURL string

	// Redis (durable client-side session store)
	RedisURL string

	// PubNub realtime channel
	PubNubSubscribeKey string
	PubNubUUID         string

	// Queue refresh
	PollInterval    time.Duration
	EWTTickInterval time.Duration

	// Turn notification
	ModalHoldSeconds int

	// Geofence
	ShopLatitude         float64
	ShopLongitude        float64
	GeofenceRadiusMeters float64
	GeofenceCooldown     time.Duration

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Gateway
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Backend
		APIBaseURL:    getEnv("API_BASE_URL", "http://localhost:5000"),
		APITimeout:    getEnvAsDuration("API_TIMEOUT", "10s"),
		ChatSocketURL: getEnv("CHAT_SOCKET_URL", "ws://localhost:5000/socket"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// PubNub
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubUUID:         getEnv("PUBNUB_UUID", ""),

		// Refresh cadence
		PollInterval:    getEnvAsDuration("POLL_INTERVAL", "15s"),
		EWTTickInterval: getEnvAsDuration("EWT_TICK_INTERVAL", "60s"),

		// Notification
		ModalHoldSeconds: getEnvAsInt("MODAL_HOLD_SECONDS", 5),

		// Geofence
		ShopLatitude:         getEnvAsFloat("SHOP_LATITUDE", 14.5995),
		ShopLongitude:        getEnvAsFloat("SHOP_LONGITUDE", 120.9842),
		GeofenceRadiusMeters: getEnvAsFloat("GEOFENCE_RADIUS_METERS", 200),
		GeofenceCooldown:     getEnvAsDuration("GEOFENCE_COOLDOWN", "5m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
