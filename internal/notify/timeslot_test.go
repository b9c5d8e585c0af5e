package notify

import (
	"testing"
	"time"
)

func TestIsWalkIn(t *testing.T) {
	cases := []struct {
		slot string
		want bool
	}{
		{"ASAP", true},
		{"asap", true},
		{"Now", true},
		{"now", true},
		{"09:00 AM", false},
		{"", false},
	}
	for _, tt := range cases {
		if got := IsWalkIn(tt.slot); got != tt.want {
			t.Fatalf("IsWalkIn(%q) = %v, want %v", tt.slot, got, tt.want)
		}
	}
}

func TestParseSlot(t *testing.T) {
	ref := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		slot    string
		want    string
		wantErr bool
	}{
		{"09:00 AM", "2025-06-02T09:00:00Z", false},
		{"9:30 AM", "2025-06-02T09:30:00Z", false},
		{"02:15 PM", "2025-06-02T14:15:00Z", false},
		{"15:04", "2025-06-02T15:04:00Z", false},
		{"ASAP", "", true},
		{"Now", "", true},
		{"", "", true},
		{"soonish", "", true},
		{"25:99", "", true},
	}
	for _, tt := range cases {
		got, err := ParseSlot(tt.slot, "2025-06-02", ref)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseSlot(%q) succeeded, want error", tt.slot)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSlot(%q): %v", tt.slot, err)
		}
		if got.Format(time.RFC3339) != tt.want {
			t.Fatalf("ParseSlot(%q) = %s, want %s", tt.slot, got.Format(time.RFC3339), tt.want)
		}
	}
}

func TestParseSlotBadDate(t *testing.T) {
	ref := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	if _, err := ParseSlot("09:00 AM", "junk", ref); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestMinutesUntil(t *testing.T) {
	slot := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2025, 6, 2, 8, 53, 0, 0, time.UTC), 7},
		{time.Date(2025, 6, 2, 8, 53, 30, 0, time.UTC), 7},
		{time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), 0},
		{time.Date(2025, 6, 2, 9, 5, 0, 0, time.UTC), -5},
	}
	for _, tt := range cases {
		if got := MinutesUntil(slot, tt.now); got != tt.want {
			t.Fatalf("MinutesUntil at %s = %d, want %d", tt.now.Format(time.RFC3339), got, tt.want)
		}
	}
}
