// Package config loads the ingestion daemon's settings from the
// environment.
package config

import (
	"log"
	"os"
)

// Config holds every setting the daemon reads from its environment.
type Config struct {
	FixServer    string
	FixPort      string
	SenderCompID string
	TargetCompID string
	Username     string
	Password     string

	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string

	RedisHost string
	RedisPort string
}

// Load reads the environment into a Config. Missing FIX credentials
// only log a warning: the process still starts and will fail at
// connect time, per the reconnect-loop error policy.
func Load() *Config {
	cfg := &Config{
		FixServer:    warnEnv("FIX_SERVER"),
		FixPort:      warnEnv("FIX_PORT"),
		SenderCompID: warnEnv("SENDER_COMP_ID"),
		TargetCompID: warnEnv("TARGET_COMP_ID"),
		Username:     warnEnv("USERNAME"),
		Password:     warnEnv("PASSWORD"),

		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGUser:     getEnv("PG_USER", ""),
		PGPassword: getEnv("PG_PASSWORD", ""),
		PGDatabase: getEnv("PG_DATABASE", ""),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),
	}
	return cfg
}

func warnEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Printf("[config] %s not set; session logon will fail until it is", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
