package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
)

type ChatHandler struct {
	BaseHandler
	chat services.ChatService
}

func NewChatHandler(chat services.ChatService, logger utils.Logger) *ChatHandler {
	return &ChatHandler{
		BaseHandler: NewBaseHandler(logger),
		chat:        chat,
	}
}

// ListContacts returns the peers the caller's role may chat with
// @Summary Chat contacts
// @Tags chat
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} ErrorResponse
// @Router /chat/contacts [get]
func (h *ChatHandler) ListContacts(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}

	contacts, err := h.chat.Contacts(c.Request.Context(), sess)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// GetMessages returns the room snapshot shared with a peer
// @Summary Room messages
// @Tags chat
// @Produce json
// @Param peer_uid path string true "Peer user ID"
// @Success 200 {object} models.RoomSnapshot
// @Router /chat/peers/{peer_uid}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}

	snap, err := h.chat.History(c.Request.Context(), sess, c.Param("peer_uid"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SendMessage appends a message to the room shared with a peer
// @Summary Send message
// @Tags chat
// @Accept json
// @Produce json
// @Param peer_uid path string true "Peer user ID"
// @Param message body services.SendMessageRequest true "Message text"
// @Success 201 {object} models.Message
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /chat/peers/{peer_uid}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}

	var req services.SendMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), sess, c.Param("peer_uid"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// StreamRoom opens the room as the session's active room and streams full snapshots as
// server-sent events. Opening another room, or logging out, ends this stream with a
// "released" event.
// @Summary Live room
// @Tags chat
// @Produce text/event-stream
// @Param peer_uid path string true "Peer user ID"
// @Router /chat/peers/{peer_uid}/stream [get]
func (h *ChatHandler) StreamRoom(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stream, err := h.chat.OpenRoom(ctx, sess, c.Param("peer_uid"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	defer sess.Messenger().Release(stream)

	h.LogRequest(c, "Room stream opened", "room_id", stream.RoomID())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		snap, err := stream.Next(ctx)
		switch {
		case err == nil:
			c.SSEvent("snapshot", snap)
			return true
		case errors.Is(err, services.ErrRoomReleased):
			c.SSEvent("released", gin.H{"room_id": stream.RoomID()})
		case ctx.Err() != nil:
			// client went away
		default:
			h.LogError(c, err, "Room stream failed", "room_id", stream.RoomID())
			c.SSEvent("error", ErrorResponse{Message: "Live room unavailable", Details: err.Error()})
		}
		return false
	})
}
