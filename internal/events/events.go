package events

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Event is one structured state-transition record: engage/disengage,
// input disconnect, restart attempts, degraded entry/exit. Published
// as JSON to the events topic and mirrored to the log.
type Event struct {
	Time     string `json:"time"`
	Source   string `json:"source"` // "engagement" or "supervisor"
	Type     string `json:"type"`
	Mode     string `json:"mode,omitempty"`
	Interval string `json:"interval,omitempty"`
	Failures int    `json:"failures,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Sink receives events. The MQTT publisher implements it; tests use a
// recording stub.
type Sink interface {
	Publish(ev Event)
}

// Publisher sends events to an MQTT topic, filling in the timestamp.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// NewPublisher wraps an already-connected MQTT client.
func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish stamps, marshals and publishes the event. Failures are
// logged and swallowed: event delivery is best-effort and must never
// stall the control or supervisor loops.
func (p *Publisher) Publish(ev Event) {
	if ev.Time == "" {
		ev.Time = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: marshal error: %v", err)
		return
	}
	log.Printf("events: %s", payload)
	if token := p.client.Publish(p.topic, 0, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("events: publish error: %v", token.Error())
	}
}

// SetupLog routes the standard logger to the console and, when a path
// is given and debug mode is on, to a rotating log file as well. The
// file is only written in debug mode.
func SetupLog(debug bool, path string) {
	if path == "" {
		return
	}
	if !debug {
		log.Printf("debug mode disabled; ignoring LOG_FILE and writing only to the console")
		return
	}
	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	log.Printf("logging to %s (rotating)", path)
}
