package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/candle-clicker/internal/apperror"
	"github.com/sakif/candle-clicker/internal/metrics"
	"github.com/sakif/candle-clicker/internal/model"
	"github.com/sakif/candle-clicker/internal/repository"
)

// MaxMessageLength is the longest message content accepted, in characters.
const MaxMessageLength = 200

// SendMessageInput is the body of POST /messages/send.
//
// Sender and recipient are not checked against the account store.
type SendMessageInput struct {
	SenderID       string `json:"senderId"       validate:"required"`
	RecipientID    string `json:"recipientId"    validate:"required"`
	SenderUsername string `json:"senderUsername" validate:"required"`
	Content        string `json:"content"        validate:"required,max=200"`
}

// MessageService sends and lists direct messages. Every message lives for
// model.MessageTTL after it is sent and is then gone for good.
type MessageService struct {
	repo    repository.MessageRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewMessageService creates a MessageService.
func NewMessageService(repo repository.MessageRepository, m *metrics.Metrics, logger *slog.Logger) *MessageService {
	return &MessageService{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Send stores a message stamped with the current time.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (*model.Message, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	msg := &model.Message{
		SenderID:       in.SenderID,
		RecipientID:    in.RecipientID,
		SenderUsername: in.SenderUsername,
		Content:        in.Content,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		s.logger.Error("failed to store message",
			slog.String("sender", in.SenderID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("sending message: %w", err)
	}

	s.metrics.MessageSent()
	s.logger.Info("message sent",
		slog.String("id", msg.ID),
		slog.String("sender", msg.SenderID),
		slog.String("recipient", msg.RecipientID),
	)
	return msg, nil
}

// Conversation returns the live messages between two accounts in either
// direction, oldest first. The result is never nil.
func (s *MessageService) Conversation(ctx context.Context, userA, userB string) ([]model.Message, error) {
	if userA == "" {
		return nil, apperror.ValidationFailed("user1Id", "user1Id is required")
	}
	if userB == "" {
		return nil, apperror.ValidationFailed("user2Id", "user2Id is required")
	}

	msgs, err := s.repo.Conversation(ctx, userA, userB, s.now())
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}
