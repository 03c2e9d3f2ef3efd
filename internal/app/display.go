// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/wingmav_link/internal/config"
	"github.com/relabs-tech/wingmav_link/internal/events"
	"github.com/relabs-tech/wingmav_link/internal/supervisor"
)

// statusData holds the latest data for the operator display.
type statusData struct {
	mu sync.RWMutex

	engagement string // last engagement event type
	mode       string // last reported vehicle mode

	link     supervisor.Status
	haveLink bool
}

// RunStatusDisplay renders engagement and link state on the SSD1306
// OLED so the operator can see at a glance whether the stick is live.
func RunStatusDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: SSD1306 initialized")

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &statusData{engagement: "disengaged"}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeStatus(client, data, cfg); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		engaged := data.engagement
		mode := data.mode
		link := data.link
		haveLink := data.haveLink
		data.mu.RUnlock()

		if err := updateStatusDisplay(dev, engaged, mode, link, haveLink); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func subscribeStatus(client mqtt.Client, data *statusData, cfg *config.Config) error {
	token := client.Subscribe(cfg.TopicEvents, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev events.Event
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("display: event unmarshal error: %v", err)
			return
		}
		if ev.Source != "engagement" {
			return
		}
		data.mu.Lock()
		data.engagement = ev.Type
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicEvents)

	token = client.Subscribe(cfg.TopicVehicleMode, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m struct {
			Mode string `json:"mode"`
		}
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("display: mode unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.mode = m.Mode
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicVehicleMode)

	token = client.Subscribe(cfg.TopicStatusSupervisor, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st supervisor.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("display: status unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.link = st
		data.haveLink = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicStatusSupervisor)

	return nil
}

func updateStatusDisplay(dev *ssd1306.Dev, engaged, mode string, link supervisor.Status, haveLink bool) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	stick := "STICK OFF"
	switch engaged {
	case "engaged":
		stick = "STICK LIVE"
	case "input_disconnected":
		stick = "STICK LOST"
	}
	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(stick))

	if mode != "" {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Mode: " + mode))
	}

	if !haveLink {
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Link: waiting"))
	} else {
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Link: " + link.State))
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("Fail: %d", link.Failures)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("WingMAV Link"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Starting..."))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
