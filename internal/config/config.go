package config

import (
	"os"
	"strconv"
	"time"

	"github.com/officialjesprec/Health-Queue-sub000/internal/queue"
)

type Config struct {
	Port        string
	DatabaseURL string

	PerTicketMinutes   int
	ReminderInterval   time.Duration
	ReminderLead       int
	AlmostNextPosition int

	RateLimitPerMinute         int
	RateLimitBurst             int
	HospitalRateLimitPerMinute int
	HospitalRateLimitBurst     int

	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),

		PerTicketMinutes:   readInt("PER_TICKET_MINUTES", queue.DefaultPerTicketMinutes),
		ReminderInterval:   readDurationSeconds("REMINDER_INTERVAL_SECONDS", 15),
		ReminderLead:       readInt("REMINDER_LEAD_MINUTES", 10),
		AlmostNextPosition: readInt("ALMOST_NEXT_POSITIONS", 3),

		RateLimitPerMinute:         readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:             readInt("RATE_LIMIT_BURST", 30),
		HospitalRateLimitPerMinute: readInt("HOSPITAL_RATE_LIMIT_PER_MIN", 600),
		HospitalRateLimitBurst:     readInt("HOSPITAL_RATE_LIMIT_BURST", 120),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
