// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wingmav_link/internal/config"
	"github.com/relabs-tech/wingmav_link/internal/events"
	"github.com/relabs-tech/wingmav_link/internal/supervisor"
)

// RunSupervisor keeps the link process alive until the context is
// cancelled. Supervisor status is published retained so late
// subscribers (web, display, console) see the current state at once.
func RunSupervisor(ctx context.Context) error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSupervisor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("supervisor: connected to MQTT broker at %s", cfg.MQTTBroker)

	ev := events.NewPublisher(client, cfg.TopicEvents)

	supCfg := supervisor.Config{
		Spawner: supervisor.NewExecSpawner(),
		Backoff: supervisor.BackoffPolicy{
			Base: time.Duration(cfg.RestartDelay) * time.Millisecond,
			Max:  time.Duration(cfg.BackoffMax) * time.Millisecond,
		},
		DisableJoystickAfter:   cfg.DisableJoystickAfter,
		EnableDiagnosticsAfter: cfg.EnableDiagnosticsAfter,
		SuccessReset:           time.Duration(cfg.SuccessReset) * time.Millisecond,
		Grace:                  time.Duration(cfg.StopGrace) * time.Millisecond,
		ModuleFailureExit:      cfg.ModuleFailureExit,
		BuildArgs: func(joystickEnabled, diagnostics bool) []string {
			return buildLinkCommand(cfg, joystickEnabled, diagnostics)
		},
		Events: ev,
	}
	if cfg.PreflightSerial && strings.HasPrefix(cfg.LinkMaster, "/dev/") {
		supCfg.Preflight = supervisor.SerialPreflight(cfg.LinkMaster, uint(cfg.LinkBaud))
	}

	sup := supervisor.New(supCfg)

	// Status publisher, retained so the latest snapshot survives
	// subscriber restarts.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				payload, err := json.Marshal(sup.Status())
				if err != nil {
					log.Printf("supervisor: status marshal error: %v", err)
					continue
				}
				client.Publish(cfg.TopicStatusSupervisor, 0, true, payload)
			}
		}
	}()

	return sup.Run(ctx)
}

// buildLinkCommand constructs the link command line. With joystick
// integration enabled the runner is spawned so the WingMAV module
// side-loads; disabled, the bare relay runs with only the rc module so
// telemetry keeps flowing. Diagnostic args are appended once the
// diagnostics threshold has been crossed.
func buildLinkCommand(cfg *config.Config, joystickEnabled, diagnostics bool) []string {
	var command []string
	if joystickEnabled {
		command = []string{cfg.RunnerBin, "--master=" + cfg.LinkMaster}
		if cfg.LinkBaud > 0 {
			command = append(command, fmt.Sprintf("--baud=%d", cfg.LinkBaud))
		}
		for _, out := range cfg.LinkOuts {
			command = append(command, "--out="+out)
		}
		command = append(command, "--auto-load", "--forward-stdin", "--supervised-by=link_supervisor")
		if !cfg.ModeSwitchingEnabled {
			command = append(command, "--manual-only")
		}
	} else {
		command = []string{cfg.MAVProxyBin, "--master=" + cfg.LinkMaster}
		if cfg.LinkBaud > 0 {
			command = append(command, fmt.Sprintf("--baud=%d", cfg.LinkBaud))
		}
		for _, out := range cfg.LinkOuts {
			command = append(command, "--out="+out)
		}
		command = append(command, "--load-module=rc")
	}

	if diagnostics {
		command = append(command, cfg.DiagnosticArgs...)
	}
	return command
}
