package models

import "time"

// AutoMessage is a staff-authored template used to open a first-contact
// conversation with a new phone number. At most one message per
// (automessage, conversation) may reference it.
type AutoMessage struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Body           string `gorm:"type:text;not null"`
	SenderID       uint   `gorm:"not null"`
	OrganizationID uint   `gorm:"not null;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Sender *User `gorm:"foreignKey:SenderID"`
}
