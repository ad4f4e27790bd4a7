// Package automessage implements the automated first-contact flow: a
// staff-authored template message sent once to a phone number that may
// not be known yet.
package automessage

import (
	"errors"
	"fmt"

	"github.com/jbaxter/correspond/internal/conversation"
	"github.com/jbaxter/correspond/internal/models"
	"gorm.io/gorm"
)

// ErrAlreadySent means the conversation already contains a message
// referencing this automessage; nothing was created.
var ErrAlreadySent = errors.New("automessage: already sent in conversation")

// Defaults carries contact attributes used only when the user does not
// exist yet.
type Defaults struct {
	FirstName        *string
	LastName         *string
	Email            *string
	Country          string
	ActiveCampaignID *string
}

// Send resolves or creates the contact for phoneNumber (E.164) and
// appends the automessage body to their conversation. The existence
// check runs inside the same transaction as the create, so concurrent
// webhook retries for the same contact produce at most one message per
// (automessage, user) pair.
func Send(db *gorm.DB, am *models.AutoMessage, phoneNumber string, defaults Defaults) (*models.Message, error) {
	if am == nil {
		return nil, fmt.Errorf("automessage: automessage is required")
	}
	if phoneNumber == "" {
		return nil, fmt.Errorf("automessage: phone number is required")
	}

	var msg *models.Message
	err := db.Transaction(func(tx *gorm.DB) error {
		user, err := findOrCreateUser(tx, am, phoneNumber, defaults)
		if err != nil {
			return err
		}

		sent, err := alreadySent(tx, am, user)
		if err != nil {
			return err
		}
		if sent {
			return ErrAlreadySent
		}

		msg, err = conversation.Append(tx, conversation.AppendOpts{
			Receiver:      user,
			SenderID:      am.SenderID,
			Body:          am.Body,
			AutoMessageID: &am.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// findOrCreateUser resolves the contact by phone number within the
// automessage's organization, creating it from defaults when absent.
// New contacts are assigned to the automessage's sender as manager.
func findOrCreateUser(tx *gorm.DB, am *models.AutoMessage, phoneNumber string, defaults Defaults) (*models.User, error) {
	var user models.User
	err := tx.Where("organization_id = ? AND phone_number = ?", am.OrganizationID, phoneNumber).
		First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("automessage: find user by phone %s: %w", phoneNumber, err)
	}

	orgID := am.OrganizationID
	managerID := am.SenderID
	user = models.User{
		PhoneNumber:      &phoneNumber,
		FirstName:        defaults.FirstName,
		LastName:         defaults.LastName,
		Email:            defaults.Email,
		Country:          defaults.Country,
		ActiveCampaignID: defaults.ActiveCampaignID,
		ManagerID:        &managerID,
		OrganizationID:   &orgID,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("automessage: create user for %s: %w", phoneNumber, err)
	}
	return &user, nil
}

// alreadySent reports whether the user's conversation already contains a
// message referencing this automessage.
func alreadySent(tx *gorm.DB, am *models.AutoMessage, user *models.User) (bool, error) {
	var conv models.Conversation
	err := tx.Where("receiver_id = ?", user.ID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("automessage: find conversation for user %d: %w", user.ID, err)
	}

	var count int64
	err = tx.Model(&models.Message{}).
		Where("conversation_id = ? AND auto_message_id = ?", conv.ID, am.ID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("automessage: check existing send: %w", err)
	}
	return count > 0, nil
}
