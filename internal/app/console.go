package app

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wingmav_link/internal/config"
	"github.com/relabs-tech/wingmav_link/internal/events"
	"github.com/relabs-tech/wingmav_link/internal/supervisor"
)

// RunConsole subscribes to the event and status topics and prints
// formatted lines for an operator watching a terminal.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to events
	evToken := client.Subscribe(cfg.TopicEvents, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev events.Event
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: event unmarshal error: %v", err)
			return
		}

		line := fmt.Sprintf("[%-10s] %s", ev.Source, ev.Type)
		if ev.Mode != "" {
			line += " mode=" + ev.Mode
		}
		if ev.Interval != "" {
			line += " in=" + ev.Interval
		}
		if ev.Failures > 0 {
			line += fmt.Sprintf(" failures=%d", ev.Failures)
		}
		if ev.Message != "" {
			line += " " + ev.Message
		}
		fmt.Println(line)
	})
	evToken.Wait()
	if evToken.Error() != nil {
		return evToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicEvents)

	// Subscribe to supervisor status
	stToken := client.Subscribe(cfg.TopicStatusSupervisor, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st supervisor.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[LINK] STATE=%-9s FAILURES=%d JOYSTICK=%v DIAG=%v\n",
			st.State, st.Failures, st.JoystickEnabled, st.Diagnostics,
		)
	})
	stToken.Wait()
	if stToken.Error() != nil {
		return stToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatusSupervisor)

	select {} // block forever; MQTT callbacks do the work
}
