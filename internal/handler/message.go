package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/candle-clicker/internal/service"
)

// SendResponse is returned after a message is stored.
type SendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// MessageHandler serves direct messages.
type MessageHandler struct {
	messages *service.MessageService
	logger   *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(messages *service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

// HandleSend stores a direct message. It disappears 24h later.
//
// HTTP: POST /messages/send
// REQUEST BODY: {"senderId", "recipientId", "senderUsername", "content"}
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var in service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBodyError(w, h.logger, err)
		return
	}

	msg, err := h.messages.Send(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, SendResponse{Message: "message sent", MessageID: msg.ID})
}

// HandleConversation lists the live messages between two accounts, oldest
// first, as a bare JSON array.
//
// HTTP: GET /messages/conversation?user1Id=...&user2Id=...
func (h *MessageHandler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	msgs, err := h.messages.Conversation(r.Context(), q.Get("user1Id"), q.Get("user2Id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}
