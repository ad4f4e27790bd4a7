package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is one entry in a conversation. It is immutable once created,
// except for ProviderIDs, which is stamped after a successful provider
// send. ProviderIDs holds the ordered provider-assigned delivery ids as
// a JSON array.
type Message struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	SenderID       uint   `gorm:"not null;index"`
	ConversationID uint   `gorm:"not null;index"`
	OrganizationID uint   `gorm:"not null;index"`
	AutoMessageID  *uint  `gorm:"index"`
	Body           string `gorm:"type:text;not null"`
	ProviderIDs    string `gorm:"type:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Sender       *User         `gorm:"foreignKey:SenderID"`
	Conversation *Conversation `gorm:"foreignKey:ConversationID"`
}

// ProviderIDList decodes the JSON-encoded delivery id list. An empty
// column means the message has not been sent (or send was skipped).
func (m *Message) ProviderIDList() []string {
	if m.ProviderIDs == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(m.ProviderIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// SetProviderIDList encodes ids into the ProviderIDs column.
func (m *Message) SetProviderIDList(ids []string) error {
	if len(ids) == 0 {
		m.ProviderIDs = ""
		return nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("models: marshal provider ids: %w", err)
	}
	m.ProviderIDs = string(data)
	return nil
}
