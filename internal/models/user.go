package models

import (
	"strings"
	"time"
)

// User is a CRM contact or a staff member. A contact owns at most one
// conversation (the 1:1 is enforced by the unique index on
// Conversation.ReceiverID). The message counters are advisory running
// totals, not transactionally authoritative.
type User struct {
	ID                    uint    `gorm:"primaryKey;autoIncrement"`
	FirstName             *string `gorm:"size:255"`
	LastName              *string `gorm:"size:255"`
	PhoneNumber           *string `gorm:"size:32;uniqueIndex"`
	Email                 *string `gorm:"size:255;uniqueIndex"`
	Country               string  `gorm:"size:2"`
	ActiveCampaignID      *string `gorm:"size:255"`
	IsStaff               bool    `gorm:"default:false"`
	MessagesSentCount     int     `gorm:"default:0"`
	MessagesReceivedCount int     `gorm:"default:0"`
	ManagerID             *uint
	OrganizationID        *uint `gorm:"index"`
	CreatedAt             time.Time
	UpdatedAt             time.Time

	Manager *User `gorm:"foreignKey:ManagerID"`
}

// Name returns the user's display name, or the phone number when no name
// is known yet.
func (u *User) Name() string {
	var parts []string
	if u.FirstName != nil && *u.FirstName != "" {
		parts = append(parts, *u.FirstName)
	}
	if u.LastName != nil && *u.LastName != "" {
		parts = append(parts, *u.LastName)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if u.PhoneNumber != nil {
		return *u.PhoneNumber
	}
	return ""
}
