package main

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiserver "github.com/nichind/fastapi/internal/api/server"
	"github.com/nichind/fastapi/internal/blacklist"
	"github.com/nichind/fastapi/internal/config"
	database "github.com/nichind/fastapi/internal/db"
	"github.com/nichind/fastapi/internal/perf"
	"github.com/nichind/fastapi/internal/registry"
	"github.com/nichind/fastapi/internal/secret"
)

const version = "2026.8.1"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting API Server...")

	// 1. Setup Configuration
	cfg := config.Load()

	// 2. Initialize Infrastructure
	db := database.New(cfg)

	// 3. Run Database Migrations
	db.AutoMigrate()

	// 4. Build the entity stores with their shared policy collaborators
	meter := perf.New()
	reg := registry.New(registry.Deps{
		DB:        db,
		Codec:     secret.New(cfg.Crypt.Key),
		Blacklist: blacklist.New(cfg.Blacklist.Dir),
		Meter:     meter,
		Sensitive: cfg.SensitiveFields(),
	})

	ctx := context.Background()
	reg.SeedAdmin(ctx, cfg.Admin.Username, cfg.Auth.TokenLength)

	// 5. Background telemetry
	go meter.Run(ctx)
	go func() {
		http.Handle("/_metrics", promhttp.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️ Metrics server error: %v", err)
		}
	}()

	// 6. Start Server
	srv := apiserver.New(cfg, reg, meter, version)

	log.Printf("🚀 API Server starting on %s", cfg.Server.Port)
	if err := srv.Start(cfg.Server.Port); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}
