package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "PER_TICKET_MINUTES", "REMINDER_INTERVAL_SECONDS",
		"REMINDER_LEAD_MINUTES", "ALMOST_NEXT_POSITIONS",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("port = %s, want 8080", cfg.Port)
	}
	if cfg.PerTicketMinutes != 15 {
		t.Fatalf("per-ticket minutes = %d, want 15", cfg.PerTicketMinutes)
	}
	if cfg.ReminderInterval != 15*time.Second {
		t.Fatalf("reminder interval = %s, want 15s", cfg.ReminderInterval)
	}
	if cfg.ReminderLead != 10 || cfg.AlmostNextPosition != 3 {
		t.Fatalf("reminder tuning = (%d, %d), want (10, 3)", cfg.ReminderLead, cfg.AlmostNextPosition)
	}
	if cfg.OTLPEndpoint != "" || cfg.OTLPInsecure {
		t.Fatalf("tracing on by default: endpoint=%q insecure=%v", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PER_TICKET_MINUTES", "20")
	t.Setenv("REMINDER_INTERVAL_SECONDS", "30")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("port = %s, want 9090", cfg.Port)
	}
	if cfg.PerTicketMinutes != 20 {
		t.Fatalf("per-ticket minutes = %d, want 20", cfg.PerTicketMinutes)
	}
	if cfg.ReminderInterval != 30*time.Second {
		t.Fatalf("reminder interval = %s, want 30s", cfg.ReminderInterval)
	}
	if cfg.OTLPEndpoint != "collector:4317" || !cfg.OTLPInsecure {
		t.Fatalf("otlp = (%q, %v), want (collector:4317, true)", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	}
}

func TestReadIntIgnoresGarbage(t *testing.T) {
	t.Setenv("PER_TICKET_MINUTES", "soon")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "kinda")

	cfg := Load()
	if cfg.PerTicketMinutes != 15 {
		t.Fatalf("per-ticket minutes = %d, want fallback 15", cfg.PerTicketMinutes)
	}
	if cfg.OTLPInsecure {
		t.Fatal("unparseable bool did not fall back to false")
	}
}
