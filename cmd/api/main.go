package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"citypulse.org/internal/audit"
	"citypulse.org/internal/httpapi"
	"citypulse.org/internal/identity"
	"citypulse.org/internal/obs"
	"citypulse.org/internal/stream"
	"citypulse.org/internal/throttle"
	"citypulse.org/internal/tickets"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	env := os.Getenv("CITYPULSE_ENV")
	addr := os.Getenv("CITYPULSE_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	// Postgres when a DSN is configured; in-memory with demo data otherwise.
	var (
		db       *sql.DB
		store    tickets.Store
		recorder audit.Recorder
	)
	if dsn := os.Getenv("CITYPULSE_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = tickets.NewPGStore(db)
		recorder = audit.NewPGRecorder(db)
	} else {
		mem := tickets.NewMemoryStore()
		mem.SeedDemo()
		store = mem
		recorder = audit.NewMemoryRecorder()
		log.Printf("CITYPULSE_PG_DSN not set, using in-memory stores")
	}

	table := throttle.New()
	stopSweep := table.StartSweep(time.Minute)
	defer stopSweep()

	api := httpapi.New(httpapi.Config{
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
		Env:        env,
		Verifier:   identity.JWTVerifier{},
		Throttle:   table,
		Audit:      recorder,
		Store:      store,
		Stream:     stream.New(),
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: /v1/stream holds SSE connections open.
	}

	log.Printf("Starting citypulse-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
