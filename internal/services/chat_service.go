package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/SAP-F-2025/clinic-service/internal/events"
	"github.com/SAP-F-2025/clinic-service/internal/metrics"
	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/realtime"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

// contactRoles lists whom each role may chat with
var contactRoles = map[models.UserRole][]models.UserRole{
	models.RoleAdmin:      {models.RoleSupervisor, models.RoleClinic},
	models.RoleSupervisor: {models.RoleAdmin},
}

const maxContacts = 500

type chatService struct {
	repo      repositories.Repository
	feed      realtime.RoomFeed
	metrics   metrics.Recorder
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewChatService(repo repositories.Repository, feed realtime.RoomFeed, recorder metrics.Recorder, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ChatService {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &chatService{
		repo:      repo,
		feed:      feed,
		metrics:   recorder,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

func canChat(from, to models.UserRole) bool {
	return slices.Contains(contactRoles[from], to)
}

func (s *chatService) Contacts(ctx context.Context, session *Session) ([]*models.Contact, error) {
	self, err := session.Principal()
	if err != nil {
		return nil, err
	}
	roles := contactRoles[self.Role]
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: role %s has no chat", ErrForbidden, self.Role)
	}

	profiles, _, err := s.repo.User().List(ctx, repositories.UserFilters{Roles: roles, Limit: maxContacts})
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	contacts := make([]*models.Contact, 0, len(profiles))
	for _, p := range profiles {
		if p.UID == self.UID {
			continue
		}
		roomID, err := DeriveRoomID(self.UID, p.UID)
		if err != nil {
			s.logger.Warn("Skipping contact with unusable uid", "uid", p.UID, "error", err)
			continue
		}
		contacts = append(contacts, &models.Contact{
			UID:    p.UID,
			Name:   p.DisplayName(),
			Role:   p.Role,
			RoomID: roomID,
		})
	}
	return contacts, nil
}

// roomFor checks the chat policy and makes sure the room row exists
func (s *chatService) roomFor(ctx context.Context, self *models.UserProfile, peerUID string) (*models.ConversationRoom, error) {
	roomID, err := DeriveRoomID(self.UID, peerUID)
	if err != nil {
		return nil, err
	}

	peer, err := s.repo.User().GetByID(ctx, peerUID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get peer: %w", err)
	}
	if !canChat(self.Role, peer.Role) {
		return nil, fmt.Errorf("%w: %s cannot chat with %s", ErrForbidden, self.Role, peer.Role)
	}

	a, b := self.UID, peer.UID
	if b < a {
		a, b = b, a
	}
	room, err := s.repo.Chat().EnsureRoom(ctx, &models.ConversationRoom{
		ID:           roomID,
		ParticipantA: a,
		ParticipantB: b,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure room: %w", err)
	}
	return room, nil
}

func (s *chatService) OpenRoom(ctx context.Context, session *Session, peerUID string) (*RoomStream, error) {
	self, err := session.Principal()
	if err != nil {
		return nil, err
	}
	room, err := s.roomFor(ctx, self, peerUID)
	if err != nil {
		return nil, err
	}
	stream, err := session.Messenger().Open(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Room opened", "room_id", room.ID, "uid", self.UID)
	return stream, nil
}

func (s *chatService) History(ctx context.Context, session *Session, peerUID string) (*models.RoomSnapshot, error) {
	self, err := session.Principal()
	if err != nil {
		return nil, err
	}
	room, err := s.roomFor(ctx, self, peerUID)
	if err != nil {
		return nil, err
	}
	return s.LoadSnapshot(ctx, room.ID)
}

func (s *chatService) SendMessage(ctx context.Context, session *Session, peerUID string, req *SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	self, err := session.Principal()
	if err != nil {
		return nil, err
	}
	room, err := s.roomFor(ctx, self, peerUID)
	if err != nil {
		return nil, err
	}
	return s.SendToRoom(ctx, room.ID, self.DisplayName(), self.UID, req.Text)
}

// SendToRoom appends a message with a server timestamp and wakes the room's subscribers
func (s *chatService) SendToRoom(ctx context.Context, roomID, from, senderUID, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("text", "text is required", text)
	}
	if roomID == "" {
		return nil, NewValidationError("room_id", "room_id is required", roomID)
	}

	msg := &models.Message{
		RoomID:    roomID,
		From:      from,
		SenderUID: senderUID,
		Text:      text,
	}
	if err := s.repo.Chat().AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	if s.feed != nil {
		if err := s.feed.Notify(ctx, roomID); err != nil {
			s.logger.Error("Failed to notify room subscribers", "room_id", roomID, "error", err)
		}
	}
	s.metrics.RecordMessageSent()
	publishEvent(ctx, s.publisher, s.logger, events.EventMessageSent, map[string]interface{}{
		"room_id":    roomID,
		"message_id": msg.ID,
		"sender_uid": senderUID,
	})
	return msg, nil
}

func (s *chatService) LoadSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	return SnapshotLoader(s.repo)(ctx, roomID)
}

// SnapshotLoader reads full room snapshots from the Document Store for the realtime feed
func SnapshotLoader(repo repositories.Repository) realtime.SnapshotLoader {
	return func(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
		msgs, err := repo.Chat().ListMessages(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
		}
		if msgs == nil {
			msgs = []*models.Message{}
		}
		return &models.RoomSnapshot{RoomID: roomID, Messages: msgs}, nil
	}
}
