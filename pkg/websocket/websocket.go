// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package websocket runs the broadcast hub. Clients subscribe per environment
// and only receive events whose payload carries a matching environment_id.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/gorilla/websocket"
)

// Event is the wire envelope.
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// NewEvent builds an envelope.
func NewEvent(eventType string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{Type: eventType, Payload: payload}
}

// Listener is invoked when a client sends an event of the registered type.
type Listener func(event *Event, client *Client)

// Client is one connected websocket peer.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	mu            sync.Mutex
	environmentID map[int64]struct{}
	send          chan []byte
	closed        bool
}

// Subscribe forwards events whose payload carries the environment id.
func (c *Client) Subscribe(environmentID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.environmentID[environmentID] = struct{}{}
}

// Unsubscribe stops forwarding events for the environment.
func (c *Client) Unsubscribe(environmentID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.environmentID, environmentID)
}

// Notify sends the event if the client subscribed to its environment.
// Pong events bypass the matching.
func (c *Client) Notify(event *Event) {
	if event.Type != "websocket.pong" && !c.matches(event) {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("websocket: could not marshal event %s: %v", event.Type, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warnf("websocket: send buffer full, dropping event %s", event.Type)
	}
}

func (c *Client) matches(event *Event) bool {
	raw, ok := event.Payload["environment_id"]
	if !ok {
		return false
	}
	var envID int64
	switch v := raw.(type) {
	case int64:
		envID = v
	case int:
		envID = int64(v)
	case float64:
		envID = int64(v)
	case json.Number:
		envID, _ = v.Int64()
	default:
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, subscribed := c.environmentID[envID]
	return subscribed
}

// Hub owns every connected client and dispatches published events.
type Hub struct {
	port     int
	upgrader websocket.Upgrader

	mu        sync.Mutex
	clients   map[*Client]struct{}
	listeners map[string][]Listener
	server    *http.Server
	running   bool
}

// NewHub creates a hub listening on the given port once started.
func NewHub(port int) *Hub {
	return &Hub{
		port: port,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:   map[*Client]struct{}{},
		listeners: map[string][]Listener{},
	}
}

// Name identifies the worker for the supervisor.
func (h *Hub) Name() string {
	return "websocket-worker"
}

// Listen registers a callback for client-sent events of the given type.
func (h *Hub) Listen(eventType string, listener Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[eventType] = append(h.listeners[eventType], listener)
}

// Publish forwards the event to every connected client.
func (h *Hub) Publish(event *Event) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	for _, client := range clients {
		client.Notify(event)
	}
}

// Start serves websocket upgrades until Stop is called.
func (h *Hub) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleUpgrade)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", h.port),
		Handler: mux,
	}
	h.mu.Lock()
	h.server = server
	h.running = true
	h.mu.Unlock()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("websocket server stopped: %v", err)
	}
}

// Stop shuts the server down and closes every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	server := h.server
	h.running = false
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	for _, client := range clients {
		client.close()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	client := &Client{
		conn:          conn,
		hub:           h,
		environmentID: map[int64]struct{}{},
		send:          make(chan []byte, 64),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	go client.writeLoop()
	go client.readLoop()
}

func (c *Client) writeLoop() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.close()
			return
		}
	}
}

func (c *Client) readLoop() {
	defer c.close()
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType == websocket.BinaryMessage {
			log.Debugf("websocket: ignoring binary message")
			continue
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warnf("websocket: could not parse message: %v", err)
			continue
		}
		if event.Type == "" {
			log.Warnf("websocket: missing 'type' key in a received event, ignoring it")
			continue
		}
		c.hub.dispatch(&event, c)
	}
}

func (h *Hub) dispatch(event *Event, client *Client) {
	h.mu.Lock()
	listeners := append([]Listener(nil), h.listeners[event.Type]...)
	h.mu.Unlock()
	for _, listener := range listeners {
		l := listener
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("websocket: panic in an event listener callback: %v", r)
				}
			}()
			l(event, client)
		}()
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.conn.Close()
	c.hub.mu.Lock()
	delete(c.hub.clients, c)
	c.hub.mu.Unlock()
}
