// Package jobs holds the daily scheduler: future-dated accepted bookings
// roll from upcoming into the day's waiting queue shortly after midnight.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store"
)

// StartDailyScheduler registers the 00:05 rollover and starts the cron
// runner. The returned cron can be stopped on shutdown.
func StartDailyScheduler(ticketStore store.TicketStore) *cron.Cron {
	c := cron.New()

	c.AddFunc("5 0 * * *", func() {
		RunRollover(ticketStore)
	})

	c.Start()
	return c
}

// RunRollover promotes every upcoming ticket whose visit date has arrived.
func RunRollover(ticketStore store.TicketStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	today := time.Now().UTC().Format(models.DateLayout)
	count, err := ticketStore.PromoteUpcoming(ctx, today)
	if err != nil {
		log.Printf("upcoming rollover error: %v", err)
		return
	}
	if count > 0 {
		log.Printf("upcoming rollover promoted %d tickets", count)
	}
}
