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

	"github.com/joho/godotenv"

	"fieldtrace.org/internal/attendance"
	"fieldtrace.org/internal/audit"
	"fieldtrace.org/internal/httpapi"
	"fieldtrace.org/internal/obs"
	"fieldtrace.org/internal/roster"
	"fieldtrace.org/internal/session"
	"fieldtrace.org/internal/shift"
	"fieldtrace.org/internal/store/pg"
	"fieldtrace.org/internal/stream"
)

var version = "0.3.0"

func main() {
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("FIELDTRACE_COMMIT"))

	displayTZ := loadDisplayTZ()

	var (
		db           *sql.DB
		sessionStore session.Store
		siteCatalog  roster.SiteCatalog
		assignments  roster.AssignmentStore
		entryStore   attendance.Store
		auditStore   audit.Store
	)
	if dsn := os.Getenv("FIELDTRACE_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = pgStore.DB()
		sessionStore = pgStore
		rosterStore := roster.NewPostgres(db)
		siteCatalog = rosterStore
		assignments = rosterStore
		entryStore = attendance.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
	} else {
		log.Print("FIELDTRACE_PG_DSN not set, using in-memory stores")
		mem := roster.NewMemory()
		sessionStore = session.NewInMemory()
		siteCatalog = mem
		assignments = mem
		entryStore = attendance.NewMemory()
		auditStore = audit.NewMemoryStore()
	}

	trail := audit.NewTrail(auditStore)
	guard := attendance.NewGuard(entryStore, siteCatalog, shift.DefaultToleranceSeconds)

	api := httpapi.New(httpapi.Config{
		Ready:       httpapi.ReadyProbe{DB: db},
		Version:     version,
		Ledger:      session.NewLedger(siteCatalog, assignments, sessionStore),
		Attendance:  attendance.NewService(entryStore, guard, trail),
		Sites:       siteCatalog,
		Assignments: assignments,
		Stream:      stream.New(),
		DisplayTZ:   displayTZ,
	})

	addr := os.Getenv("FIELDTRACE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays unset so /v1/visits/stream connections survive.
		IdleTimeout: 60 * time.Second,
	}

	log.Printf("Starting fieldtrace-api %s on %s", version, srv.Addr)

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

func loadDisplayTZ() *time.Location {
	name := os.Getenv("FIELDTRACE_DISPLAY_TZ")
	if name == "" {
		name = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("unknown display timezone %q, falling back to UTC", name)
		return time.UTC
	}
	return loc
}
