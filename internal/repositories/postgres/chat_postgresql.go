package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
)

type ChatPostgreSQL struct {
	db *gorm.DB
}

func NewChatPostgreSQL(db *gorm.DB) repositories.ChatRepository {
	return &ChatPostgreSQL{db: db}
}

func (r *ChatPostgreSQL) EnsureRoom(ctx context.Context, room *models.ConversationRoom) (*models.ConversationRoom, error) {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(room).Error; err != nil {
		return nil, handleDBError(err, "ensure room")
	}
	return r.GetRoom(ctx, room.ID)
}

func (r *ChatPostgreSQL) GetRoom(ctx context.Context, roomID string) (*models.ConversationRoom, error) {
	var room models.ConversationRoom
	if err := r.db.WithContext(ctx).Where("id = ?", roomID).First(&room).Error; err != nil {
		return nil, handleDBError(err, "get room")
	}
	return &room, nil
}

// AppendMessage leaves a zero Timestamp to the column default (Postgres
// clock_timestamp()) and reads it back through RETURNING.
func (r *ChatPostgreSQL) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return handleDBError(err, "append message")
	}
	return nil
}

func (r *ChatPostgreSQL) ListMessages(ctx context.Context, roomID string) ([]*models.Message, error) {
	var messages []*models.Message
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp ASC").Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, handleDBError(err, "list messages")
	}
	return messages, nil
}
