package db

import (
	"fmt"

	"github.com/jbaxter/correspond/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Organization{},
		&models.PhoneNumber{},
		&models.Conversation{},
		&models.Message{},
		&models.MessagePart{},
		&models.AutoMessage{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
