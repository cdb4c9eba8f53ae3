package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	portalWriteWait  = 10 * time.Second
	portalPongWait   = 60 * time.Second
	portalPingPeriod = 50 * time.Second
	portalSendBuffer = 16
)

// PortalHub fans reminders out to connected patient portal clients over
// websockets. It implements Sender for the portal channel.
type PortalHub struct {
	log      *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*portalClient]struct{}
}

type portalClient struct {
	conn *websocket.Conn

	// mu serializes queueing with closeSend so a concurrent disconnect can
	// never close the channel mid-send.
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend queues the payload. Reports false when the client is closed or
// its buffer is full.
func (c *portalClient) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *portalClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// NewPortalHub creates a portal hub.
func NewPortalHub(logger *logrus.Logger) *PortalHub {
	return &PortalHub{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*portalClient]struct{}),
	}
}

// Channel returns the channel this sender serves.
func (h *PortalHub) Channel() Channel {
	return ChannelPortal
}

// ClientCount returns the number of connected portal clients.
func (h *PortalHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleUpgrade upgrades an HTTP request to a portal websocket connection
// and keeps it registered until it closes.
func (h *PortalHub) HandleUpgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrading portal connection: %w", err)
	}

	client := &portalClient{
		conn: conn,
		send: make(chan []byte, portalSendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.WithField("portal_clients", count).Info("Portal client connected")

	go h.writeLoop(client)
	go h.readLoop(client)

	return nil
}

// Send broadcasts the reminder to every connected portal client. Clients
// with full send buffers are dropped rather than blocking the dispatcher.
func (h *PortalHub) Send(ctx context.Context, receipt *DeliveryReceipt) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event_type":    "reminder",
		"patient_id":    receipt.PatientID,
		"reminder_type": receipt.Type,
		"priority":      receipt.Priority,
		"message":       receipt.Message,
		"fired_at":      receipt.FiredAt,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*portalClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.trySend(payload) {
			h.log.Warn("Dropping slow portal client")
			h.remove(client)
		}
	}

	return nil
}

// Close disconnects all portal clients.
func (h *PortalHub) Close() error {
	h.mu.Lock()
	clients := make([]*portalClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*portalClient]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.closeSend()
	}
	return nil
}

func (h *PortalHub) remove(client *portalClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	h.mu.Unlock()

	if ok {
		client.closeSend()
	}
}

func (h *PortalHub) writeLoop(client *portalClient) {
	ticker := time.NewTicker(portalPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(portalWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(portalWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *PortalHub) readLoop(client *portalClient) {
	defer func() {
		h.remove(client)
		client.conn.Close()
		h.log.Info("Portal client disconnected")
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(portalPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(portalPongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
