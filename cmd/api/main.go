package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/chat"
	"peopledesk.org/internal/httpapi"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/obs"
	"peopledesk.org/internal/realtime"
	"peopledesk.org/internal/store/pg"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("PEOPLEDESK_PG_DSN")
	if dsn == "" {
		log.Fatal("PEOPLEDESK_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer store.Close()

	resolver := &auth.Resolver{Directory: store}
	sessions := auth.NewSessions(store)
	hub := realtime.NewHub()

	notifications, err := notify.NewService(store, hub)
	if err != nil {
		log.Fatalf("notification service: %v", err)
	}
	policy, err := chat.NewPolicy(resolver)
	if err != nil {
		log.Fatalf("chat policy: %v", err)
	}
	chats, err := chat.NewService(store, policy, hub, notifications)
	if err != nil {
		log.Fatalf("chat service: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Version:       version,
		ReadyProbe:    httpapi.ReadyProbe{DB: store.DB()},
		Sessions:      sessions,
		Resolver:      resolver,
		Hub:           hub,
		Notifications: notifications,
		Chats:         chats,
		Commissions:   store,
	})

	addr := os.Getenv("PEOPLEDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go purgeSessions(rootCtx, store)

	go func() {
		obs.LogEntry(map[string]any{"msg": "listening", "addr": addr, "version": version})
		obs.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	obs.SetReady(false)
	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// purgeSessions deletes expired sessions roughly once an hour.
func purgeSessions(ctx context.Context, store *pg.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpiredSessions(ctx)
			if err != nil {
				obs.LogEntry(map[string]any{"msg": "session purge failed", "error": err.Error()})
				continue
			}
			if n > 0 {
				obs.LogEntry(map[string]any{"msg": "sessions purged", "count": n})
			}
		}
	}
}
