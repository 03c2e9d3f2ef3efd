package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/wingmav_link/internal/app"
	"github.com/relabs-tech/wingmav_link/internal/config"
	"github.com/relabs-tech/wingmav_link/internal/events"
)

func main() {
	configPath := flag.String("config", "wingmav_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting wingmav-link supervisor")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	events.SetupLog(cfg.Debug, cfg.LogFile)

	// Stop cleanly on SIGINT/SIGTERM: terminate the child and wait,
	// bounded by the configured grace period.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunSupervisor(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Println("supervisor stopped")
}
