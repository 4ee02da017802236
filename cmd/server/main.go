package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/owrk/linercost/internal/config"
	"github.com/owrk/linercost/internal/db"
	"github.com/owrk/linercost/internal/migrations"
	"github.com/owrk/linercost/internal/rates"
	"github.com/owrk/linercost/internal/seed"
)

type server struct {
	store *rates.Store
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
	}

	stats, err := seed.Run(database)
	if err != nil {
		log.Fatalf("failed to seed rate book: %v", err)
	}
	if stats.Inserts > 0 {
		log.Printf("seeded rate book: %d rows", stats.Inserts)
	}

	srv := &server{store: rates.New(database)}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealth)
	r.Post("/api/estimate", srv.handleEstimate)
	r.Post("/api/estimate/export", srv.handleEstimateExport)
	r.Get("/api/prices", srv.handleListPrices)
	r.Get("/api/rules", srv.handleListRules)
	r.Get("/api/surcharges", srv.handleListSurcharges)
	r.Get("/api/overheads", srv.handleListOverheads)
	r.Post("/api/ratebook/import", srv.handleImport)

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
