package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"vesper/internal/domain"
	"vesper/internal/metrics"
	"vesper/internal/service"
	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sendFailedMessage = "Failed to send message."

// ChatAppender persists chat messages.
type ChatAppender interface {
	Append(ctx context.Context, input service.AppendMessageInput) (*domain.MessageView, error)
}

// Hub owns every realtime connection and the room subscriptions between them.
type Hub struct {
	chat       ChatAppender
	presence   PresenceRegistry
	validate   *validator.Validate
	sendBuffer int
	log        logger.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func NewHub(chat ChatAppender, presence PresenceRegistry, sendBuffer int, log logger.Logger) *Hub {
	return &Hub{
		chat:       chat,
		presence:   presence,
		validate:   newValidator(),
		sendBuffer: sendBuffer,
		log:        log,
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
	}
}

// ServeConn runs the connection of an authenticated user until it closes.
// Events of one connection are handled one at a time, in arrival order.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn, userID int64) {
	client := newClient(uuid.NewString(), userID, conn, h.sendBuffer)
	h.register(client)
	go client.writePump()

	defer func() {
		h.unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("Realtime connection closed unexpectedly", "conn_id", client.ID, "error", err)
			}
			return
		}
		h.handleFrame(ctx, client, frame)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	h.log.Info("Realtime connected", "conn_id", c.ID, "user_id", c.UserID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for roomID := range c.rooms {
		if members := h.rooms[roomID]; members != nil {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	c.rooms = make(map[string]struct{})
	h.mu.Unlock()

	c.close()
	metrics.RealtimeConnections.Dec()

	if userID, ok := h.presence.MarkOffline(c.ID); ok {
		h.updateOnlineGauge()
		h.BroadcastAll(EventUserOnline, UserOnline{UserID: userID, Online: false})
	}

	h.log.Info("Realtime disconnected", "conn_id", c.ID, "user_id", c.UserID)
}

func (h *Hub) handleFrame(ctx context.Context, c *Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		metrics.RealtimeEventsTotal.WithLabelValues("unknown").Inc()
		h.sendError(c, errInvalidEvent.Error())
		return
	}

	switch env.Event {
	case EventJoin:
		metrics.RealtimeEventsTotal.WithLabelValues(EventJoin).Inc()
		h.handleJoin(c, env.Data)
	case EventMessage:
		metrics.RealtimeEventsTotal.WithLabelValues(EventMessage).Inc()
		h.handleMessage(ctx, c, env.Data)
	case EventTyping:
		metrics.RealtimeEventsTotal.WithLabelValues(EventTyping).Inc()
		h.handleTyping(c, env.Data)
	default:
		metrics.RealtimeEventsTotal.WithLabelValues("unknown").Inc()
		h.sendError(c, "unknown event: "+env.Event)
	}
}

func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var p JoinPayload
	if err := decodePayload(h.validate, data, &p); err != nil {
		h.sendError(c, err.Error())
		return
	}
	if p.UserID != c.UserID {
		h.sendError(c, "cannot join as another user")
		return
	}
	if _, err := domain.ChatPeer(p.RoomID, c.UserID); err != nil {
		h.sendError(c, "cannot join this chat")
		return
	}

	h.presence.MarkOnline(c.UserID, c.ID)
	h.updateOnlineGauge()
	h.subscribe(c, p.RoomID)
	h.BroadcastAll(EventUserOnline, UserOnline{UserID: c.UserID, Online: true})

	h.log.Debug("User joined chat", "user_id", c.UserID, "chat_id", p.RoomID, "conn_id", c.ID)
}

func (h *Hub) handleMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var p MessagePayload
	if err := decodePayload(h.validate, data, &p); err != nil {
		h.sendError(c, err.Error())
		return
	}
	if p.SenderID != c.UserID {
		h.sendError(c, "cannot send as another user")
		return
	}

	input := service.AppendMessageInput{
		SenderID:    p.SenderID,
		ReceiverID:  p.ReceiverID,
		ChatID:      p.RoomID,
		Content:     p.Content,
		MessageType: p.Kind,
	}

	stored, err := h.chat.Append(ctx, input)
	if err != nil {
		if apperrors.HTTPStatusFromError(err) == http.StatusInternalServerError {
			h.sendError(c, sendFailedMessage)
		} else {
			h.sendError(c, err.Error())
		}
		return
	}

	h.BroadcastMessage(stored)
}

func (h *Hub) handleTyping(c *Client, data json.RawMessage) {
	var p TypingPayload
	if err := decodePayload(h.validate, data, &p); err != nil {
		h.sendError(c, err.Error())
		return
	}
	if p.UserID != c.UserID {
		h.sendError(c, "cannot type as another user")
		return
	}
	if _, err := domain.ChatPeer(p.RoomID, c.UserID); err != nil {
		h.sendError(c, "cannot type in this chat")
		return
	}

	h.BroadcastToRoomExcept(p.RoomID, c.ID, EventUserTyping, UserTyping{UserID: p.UserID, IsTyping: p.IsTyping})
}

func (h *Hub) subscribe(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	members := h.rooms[roomID]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[c.ID] = c
	c.rooms[roomID] = struct{}{}
}

// BroadcastMessage delivers a stored message to everyone subscribed to its chat.
func (h *Hub) BroadcastMessage(message *domain.MessageView) {
	h.BroadcastToRoom(message.ChatID, EventNewMessage, message)
}

func (h *Hub) BroadcastToRoom(roomID, event string, data any) {
	h.BroadcastToRoomExcept(roomID, "", event, data)
}

// BroadcastToRoomExcept skips the connection exceptConnID.
func (h *Hub) BroadcastToRoomExcept(roomID, exceptConnID, event string, data any) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		h.log.Error("Failed to encode realtime event", "event", event, "error", err)
		return
	}
	h.deliver(h.snapshotRoom(roomID, exceptConnID), frame, event)
}

func (h *Hub) BroadcastAll(event string, data any) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		h.log.Error("Failed to encode realtime event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	h.deliver(clients, frame, event)
}

func (h *Hub) snapshotRoom(roomID, exceptConnID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	clients := make([]*Client, 0, len(members))
	for id, c := range members {
		if id != exceptConnID {
			clients = append(clients, c)
		}
	}
	return clients
}

func (h *Hub) deliver(clients []*Client, frame []byte, event string) {
	for _, c := range clients {
		if !c.enqueue(frame) {
			h.log.Warn("Dropped realtime event", "conn_id", c.ID, "event", event)
		}
	}
}

func (h *Hub) sendError(c *Client, message string) {
	frame, err := encodeEvent(EventError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (h *Hub) updateOnlineGauge() {
	metrics.OnlineUsers.Set(float64(len(h.presence.OnlineUsers())))
}

// ConnectionCount reports the open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown asks every connection to close. Their read loops then unregister them.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(writeWait)
	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		c.conn.Close()
	}
	h.log.Info("Realtime hub shut down", "connections", len(clients))
}
