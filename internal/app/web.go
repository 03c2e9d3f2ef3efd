package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/wingmav_link/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webState caches the latest supervisor status and event for the JSON
// API, and fans events out to connected websocket clients.
type webState struct {
	mu         sync.RWMutex
	supervisor json.RawMessage
	lastEvent  json.RawMessage

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool
}

// RunWeb serves the operator status page: a JSON snapshot endpoint, a
// websocket pushing every event as it arrives, and static files.
func RunWeb() error {
	cfg := config.Get()
	state := &webState{clients: map[*websocket.Conn]bool{}}

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to supervisor status and events
	token := client.Subscribe(cfg.TopicStatusSupervisor, 0, func(_ mqtt.Client, msg mqtt.Message) {
		state.mu.Lock()
		state.supervisor = append(json.RawMessage(nil), msg.Payload()...)
		state.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(cfg.TopicEvents, 0, func(_ mqtt.Client, msg mqtt.Message) {
		payload := append(json.RawMessage(nil), msg.Payload()...)
		state.mu.Lock()
		state.lastEvent = payload
		state.mu.Unlock()
		state.broadcast(payload)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s and %s", cfg.TopicStatusSupervisor, cfg.TopicEvents)

	// 3) JSON API endpoint: latest status
	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if state.supervisor == nil && state.lastEvent == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		resp := struct {
			Supervisor json.RawMessage `json:"supervisor,omitempty"`
			LastEvent  json.RawMessage `json:"last_event,omitempty"`
		}{state.supervisor, state.lastEvent}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket: push events live
	http.HandleFunc("/ws", state.handleWS)

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}

func (s *webState) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
	}()

	// Drain reads until the client goes away; writes happen from the
	// MQTT callback via broadcast.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *webState) broadcast(payload []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("web: websocket write error: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}
