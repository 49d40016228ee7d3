package models

import "time"

type ConversationRoom struct {
	ID           string    `json:"id" gorm:"primaryKey;size:512"`
	ParticipantA string    `json:"participant_a" gorm:"not null;size:255"`
	ParticipantB string    `json:"participant_b" gorm:"not null;size:255"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ConversationRoom) TableName() string {
	return "rooms"
}

// Message ordering inside a room is (Timestamp, ID). Timestamp defaults to the
// database clock so messages from every instance share one time source.
type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RoomID    string    `json:"room_id" gorm:"not null;size:512;index:idx_room_ts,priority:1"`
	From      string    `json:"from" gorm:"not null;size:255"`
	SenderUID string    `json:"sender_uid" gorm:"size:255"`
	Text      string    `json:"text" gorm:"not null;type:text"`
	Timestamp time.Time `json:"ts" gorm:"not null;default:clock_timestamp();index:idx_room_ts,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

// RoomSnapshot is the full ordered message list delivered to a room subscriber
type RoomSnapshot struct {
	RoomID   string     `json:"room_id"`
	Messages []*Message `json:"messages"`
}

// Contact is a chat peer shown in a dashboard contact list
type Contact struct {
	UID    string   `json:"uid"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	RoomID string   `json:"room_id"`
}
