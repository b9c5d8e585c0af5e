package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
)

var slotLayouts = []string{"03:04 PM", "3:04 PM", "15:04"}

// IsWalkIn reports whether slot is one of the walk-in sentinels rather than
// a clock time.
func IsWalkIn(slot string) bool {
	return strings.EqualFold(slot, models.SlotASAP) || strings.EqualFold(slot, models.SlotNow)
}

// ParseSlot resolves a ticket's literal time slot on its visit date into an
// absolute time in ref's location. Walk-in sentinels and unparseable slots
// return an error; callers treat that as "rule does not apply".
func ParseSlot(slot, date string, ref time.Time) (time.Time, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" || IsWalkIn(slot) {
		return time.Time{}, fmt.Errorf("no literal time slot")
	}
	day, err := time.ParseInLocation(models.DateLayout, date, ref.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("bad visit date %q: %w", date, err)
	}
	for _, layout := range slotLayouts {
		clock, err := time.Parse(layout, strings.ToUpper(slot))
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, ref.Location()), nil
	}
	return time.Time{}, fmt.Errorf("bad time slot %q", slot)
}

// MinutesUntil returns whole minutes from now until the slot, rounding
// partial minutes up so a 9:00 appointment at 8:53:30 reads as 7 minutes.
func MinutesUntil(slotTime, now time.Time) int {
	diff := slotTime.Sub(now)
	minutes := int(diff / time.Minute)
	if diff%time.Minute > 0 {
		minutes++
	}
	return minutes
}
