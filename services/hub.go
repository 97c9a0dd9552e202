package services

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Hub routes websocket traffic between connected players and their rooms.
// It implements Broadcaster; the game engine never touches sockets directly.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex

	registry *RoomRegistry
}

// Client is one websocket connection bound to one player in one room.
type Client struct {
	hub        *Hub
	id         string
	socket     *websocket.Conn
	send       chan []byte
	roomCode   string
	playerID   string
	playerName string
}

// Message is the wire envelope in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type textPayload struct {
	Text string `json:"text"`
}

func NewHub(registry *RoomRegistry) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		registry:   registry,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("[HUB] Client %s connected: room %s, player %s (%s) - total %d",
				client.id, client.roomCode, client.playerID, client.playerName, h.clientCount())

			// New connections get the current state straight away.
			if room, err := h.registry.Get(client.roomCode); err == nil {
				room.SendStateTo(client.playerID)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			if ok {
				log.Printf("[HUB] Client %s disconnected: room %s, player %s (%s) - total %d",
					client.id, client.roomCode, client.playerID, client.playerName, h.clientCount())
				// A dropped socket means the player left the game.
				h.registry.RemovePlayer(client.roomCode, client.playerID)
			}
		}
	}
}

func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func encode(event string, payload interface{}) ([]byte, bool) {
	data, err := json.Marshal(outMessage{Type: event, Payload: payload})
	if err != nil {
		log.Printf("[HUB] Error marshaling %s message: %v", event, err)
		return nil, false
	}
	return data, true
}

// BroadcastToRoom sends an event to every connection in a room.
func (h *Hub) BroadcastToRoom(roomCode, event string, payload interface{}) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if strings.EqualFold(client.roomCode, roomCode) {
			select {
			case client.send <- data:
			default:
				close(client.send)
				delete(h.clients, client)
			}
		}
	}
}

// SendToPlayer sends an event to every connection a player holds in a room.
func (h *Hub) SendToPlayer(roomCode, playerID, event string, payload interface{}) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if strings.EqualFold(client.roomCode, roomCode) && client.playerID == playerID {
			select {
			case client.send <- data:
			default:
				close(client.send)
				delete(h.clients, client)
			}
		}
	}
}

// IsPlayerConnected reports whether a player has at least one live socket.
func (h *Hub) IsPlayerConnected(roomCode, playerID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if strings.EqualFold(client.roomCode, roomCode) && client.playerID == playerID {
			return true
		}
	}
	return false
}

func (h *Hub) RegisterClient(conn *websocket.Conn, roomCode, playerID, playerName string) *Client {
	client := &Client{
		hub:        h,
		id:         uuid.NewString(),
		socket:     conn,
		send:       make(chan []byte, sendBufferSize),
		roomCode:   strings.ToUpper(roomCode),
		playerID:   playerID,
		playerName: playerName,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[HUB] WebSocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("[HUB] Error unmarshaling message from %s: %v", c.id, err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		w, err := c.socket.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

// sendError pushes an error event back to this connection only. Rejected
// actions never leak to the rest of the room.
func (c *Client) sendError(err error) {
	data, ok := encode("error", map[string]interface{}{"message": err.Error()})
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) text(msg Message) string {
	var p textPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("[HUB] Bad payload from %s: %v", c.id, err)
		}
	}
	return p.Text
}

func (c *Client) handleMessage(msg Message) {
	room, err := c.hub.registry.Get(c.roomCode)
	if err != nil {
		c.sendError(err)
		return
	}

	switch msg.Type {
	case "submit_clue":
		if err := room.SubmitClue(c.playerID, c.text(msg)); err != nil {
			c.sendError(err)
		}

	case "submit_guess":
		if err := room.SubmitGuess(c.playerID, c.text(msg)); err != nil {
			c.sendError(err)
		}

	case "submit_steal":
		if err := room.SubmitSteal(c.playerID, c.text(msg)); err != nil {
			c.sendError(err)
		}

	case "pass":
		if err := room.Pass(c.playerID); err != nil {
			c.sendError(err)
		}

	case "start_game":
		if err := room.Start(c.playerID); err != nil {
			c.sendError(err)
		}

	case "play_again":
		if err := room.PlayAgain(c.playerID); err != nil {
			c.sendError(err)
		}

	case "leave_room":
		c.hub.registry.RemovePlayer(c.roomCode, c.playerID)

	case "request_state":
		room.SendStateTo(c.playerID)

	case "ping":
		if data, ok := encode("pong", nil); ok {
			select {
			case c.send <- data:
			default:
			}
		}

	default:
		log.Printf("[HUB] Unknown message type %q from player %s in room %s",
			msg.Type, c.playerID, c.roomCode)
	}
}
