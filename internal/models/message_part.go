package models

import "time"

// MessagePart buffers one inbound fragment of a multi-part message until
// its group completes. The (organization, provider id) pair is unique, so
// duplicate webhook deliveries of the same fragment are no-ops. Once the
// group completes every row is stamped with the final message id; linked
// rows are kept for audit and excluded from future aggregation.
type MessagePart struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	OrganizationID uint   `gorm:"not null;uniqueIndex:idx_part_provider;index:idx_part_group"`
	SenderID       uint   `gorm:"not null"`
	ProviderID     string `gorm:"size:64;not null;uniqueIndex:idx_part_provider"`
	Body           string `gorm:"type:text"`
	PartIndex      int    `gorm:"not null"`
	PartRef        string `gorm:"size:64;not null;index:idx_part_group"`
	MessageID      *uint  `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
