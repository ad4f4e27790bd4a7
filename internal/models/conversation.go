package models

import "time"

// Conversation is the single message thread between an organization and a
// contact. The summary fields (MessagesCount, LastMessageID,
// LastMessageAt, Unread) are denormalized from the messages table and
// recomputed inside the same transaction as every message insert.
type Conversation struct {
	ID             uint  `gorm:"primaryKey;autoIncrement"`
	ReceiverID     uint  `gorm:"not null;uniqueIndex"`
	OrganizationID uint  `gorm:"not null;index"`
	PhoneNumberID  *uint // sending number, assigned lazily on first send
	MessagesCount  int   `gorm:"default:0"`
	LastMessageID  *uint
	LastMessageAt  *time.Time
	Unread         bool `gorm:"default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Receiver    *User        `gorm:"foreignKey:ReceiverID"`
	PhoneNumber *PhoneNumber `gorm:"foreignKey:PhoneNumberID"`
	LastMessage *Message     `gorm:"foreignKey:LastMessageID"`
}
