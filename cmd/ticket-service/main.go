package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/officialjesprec/Health-Queue-sub000/internal/config"
	"github.com/officialjesprec/Health-Queue-sub000/internal/httpapi"
	"github.com/officialjesprec/Health-Queue-sub000/internal/hub"
	"github.com/officialjesprec/Health-Queue-sub000/internal/jobs"
	"github.com/officialjesprec/Health-Queue-sub000/internal/notify"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store/memory"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store/postgres"
	"github.com/officialjesprec/Health-Queue-sub000/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}
	cfg := config.Load()

	shutdownTelemetry := telemetry.Setup("ticket-service", telemetry.Config{
		Endpoint: cfg.OTLPEndpoint,
		Insecure: cfg.OTLPInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	var ticketStore store.TicketStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		ticketStore = postgres.NewStore(pool)
	} else {
		log.Println("DB_DSN empty, using in-memory store")
		ticketStore = memory.NewStore()
	}

	h := hub.New()
	engine := notify.NewEngine(ticketStore, h, notify.Config{
		PerTicketMinutes:   cfg.PerTicketMinutes,
		LeadMinutes:        cfg.ReminderLead,
		AlmostNextPosition: cfg.AlmostNextPosition,
	})
	handler := httpapi.NewHandler(ticketStore, httpapi.Options{
		PerTicketMinutes: cfg.PerTicketMinutes,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:       cfg.RateLimitPerMinute,
		IPBurst:           cfg.RateLimitBurst,
		HospitalPerMinute: cfg.HospitalRateLimitPerMinute,
		HospitalBurst:     cfg.HospitalRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())
	mux.Handle("/realtime/", newRealtimeHandler(h))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "ticket-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Printf("ticket-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	if cfg.ReminderInterval > 0 {
		go notify.Start(ctx, cfg.ReminderInterval, engine)
	}

	go relayOutbox(ctx, ticketStore, h)

	scheduler := jobs.StartDailyScheduler(ticketStore)
	defer scheduler.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func newRealtimeHandler(h *hub.Hub) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			h.UpdateSubscription(client, hub.Subscription{
				HospitalID: parsed.HospitalID,
				Department: parsed.Department,
				PatientID:  parsed.PatientID,
			})
		}
	})
}

// relayOutbox polls the store's change feed and fans it out to live
// viewers. Consumers refetch current state on any event for their
// partition. The cursor is the event sequence, so events sharing a
// timestamp are never skipped across poll boundaries.
func relayOutbox(ctx context.Context, ticketStore store.TicketStore, h *hub.Hub) {
	var afterSeq int64
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			events, err := ticketStore.ListOutboxEvents(pollCtx, afterSeq, 100)
			cancel()
			if err != nil {
				log.Printf("outbox poll error: %v", err)
				continue
			}
			for _, event := range events {
				afterSeq = event.Seq
				h.BroadcastEvent(event)
			}
		}
	}
}
