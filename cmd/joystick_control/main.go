package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/wingmav_link/internal/app"
	"github.com/relabs-tech/wingmav_link/internal/config"
	"github.com/relabs-tech/wingmav_link/internal/events"
)

func main() {
	configPath := flag.String("config", "wingmav_config.txt", "path to configuration file")
	manualOnly := flag.Bool("manual-only", false, "never touch the flight mode (overrides config)")
	mockInput := flag.Bool("mock-joystick", false, "use the built-in mock joystick source")
	flag.Parse()

	log.Println("starting wingmav-link joystick control")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	if *manualOnly {
		cfg.ModeSwitchingEnabled = false
	}
	events.SetupLog(cfg.Debug, cfg.LogFile)

	if err := app.RunControl(*mockInput); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
