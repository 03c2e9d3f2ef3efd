// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package relay

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wingmav_link/internal/joystick"
	"github.com/relabs-tech/wingmav_link/internal/rcoverride"
)

// Topics names the MQTT topics shared with the link process.
type Topics struct {
	CmdOverride string // outbound override frames
	CmdMode     string // outbound mode requests
	CmdAction   string // outbound RTL/disarm actions
	VehicleMode string // inbound, retained current flight mode
	Joystick    string // inbound joystick state polls
}

type overrideMsg struct {
	Channels [rcoverride.FrameSize]int `json:"channels"`
	Forced   bool                      `json:"forced,omitempty"`
}

type modeMsg struct {
	Mode string `json:"mode"`
}

type actionMsg struct {
	Action string `json:"action"`
}

// Client is the command side of the link process, reached over MQTT.
// Commands are fire-and-forget: a nil return means the intent was
// handed to the broker, not that the vehicle accepted it.
type Client struct {
	client mqtt.Client
	topics Topics

	mu           sync.RWMutex
	currentMode  string
	lastJoystick joystick.State
	lastInput    time.Time
}

// Dial connects to the broker and subscribes to the inbound topics.
func Dial(broker, clientID string, topics Topics) (*Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	log.Printf("relay: connected to MQTT broker at %s", broker)

	c := &Client{client: client, topics: topics}

	if token := client.Subscribe(topics.VehicleMode, 0, c.onVehicleMode); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", topics.VehicleMode, token.Error())
	}
	if token := client.Subscribe(topics.Joystick, 0, c.onJoystick); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", topics.Joystick, token.Error())
	}
	log.Printf("relay: subscribed to %s and %s", topics.VehicleMode, topics.Joystick)

	return c, nil
}

func (c *Client) onVehicleMode(_ mqtt.Client, msg mqtt.Message) {
	var m modeMsg
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		log.Printf("relay: vehicle mode unmarshal error: %v", err)
		return
	}
	c.mu.Lock()
	c.currentMode = m.Mode
	c.mu.Unlock()
}

func (c *Client) onJoystick(_ mqtt.Client, msg mqtt.Message) {
	var st joystick.State
	if err := json.Unmarshal(msg.Payload(), &st); err != nil {
		log.Printf("relay: joystick state unmarshal error: %v", err)
		return
	}
	c.mu.Lock()
	c.lastJoystick = st
	c.lastInput = time.Now()
	c.mu.Unlock()
}

// CurrentMode returns the vehicle mode as last reported, empty when no
// report has arrived yet.
func (c *Client) CurrentMode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentMode
}

// Joystick returns the most recent input poll. The second result is
// false when no poll has arrived within maxAge, which the controller
// treats as an input-source disconnect.
func (c *Client) Joystick(maxAge time.Duration) (joystick.State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastInput.IsZero() || time.Since(c.lastInput) > maxAge {
		return joystick.State{}, false
	}
	return c.lastJoystick, true
}

// SetOverride publishes one override frame. Must be called every tick
// while engaged; the vehicle times out overrides that stop arriving.
func (c *Client) SetOverride(o rcoverride.Override, forced bool) error {
	return c.publish(c.topics.CmdOverride, overrideMsg{Channels: o, Forced: forced})
}

// ReleaseOverride publishes an explicit release of all channels.
func (c *Client) ReleaseOverride() error {
	return c.publish(c.topics.CmdOverride, overrideMsg{Channels: rcoverride.ReleaseAll(), Forced: true})
}

// RequestMode asks the vehicle to change flight mode. Best-effort: a
// nil error is not confirmation.
func (c *Client) RequestMode(mode string) error {
	return c.publish(c.topics.CmdMode, modeMsg{Mode: mode})
}

// SendRTL issues an unconditional Return-to-Launch.
func (c *Client) SendRTL() error {
	return c.publish(c.topics.CmdAction, actionMsg{Action: "rtl"})
}

// SendDisarm issues an unconditional disarm.
func (c *Client) SendDisarm() error {
	return c.publish(c.topics.CmdAction, actionMsg{Action: "disarm"})
}

func (c *Client) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", topic, err)
	}
	if token := c.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// MQTT exposes the underlying client so the caller can share the
// connection, e.g. for event publishing.
func (c *Client) MQTT() mqtt.Client {
	return c.client
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
}
