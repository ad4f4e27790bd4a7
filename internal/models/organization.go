package models

import "time"

// Organization owns a pool of outbound phone numbers and all CRM records
// created on its behalf. The slug is globally unique and immutable after
// creation.
type Organization struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:255;not null"`
	Slug      string `gorm:"size:50;not null;uniqueIndex"`
	Country   string `gorm:"size:2"`
	OwnerID   uint   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Owner        *User         `gorm:"foreignKey:OwnerID"`
	PhoneNumbers []PhoneNumber `gorm:"foreignKey:OrganizationID"`
}

// PhoneNumber is an outbound sending number owned by an organization.
// Only active numbers take part in pool selection and inbound matching.
type PhoneNumber struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Number         string `gorm:"size:32;not null;uniqueIndex"`
	Country        string `gorm:"size:2;index"`
	Active         bool   `gorm:"default:true;index"`
	OrganizationID uint   `gorm:"not null;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
