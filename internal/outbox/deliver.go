package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jbaxter/correspond/internal/models"
	"github.com/jbaxter/correspond/internal/phonepool"
	"github.com/jbaxter/correspond/internal/provider"
	"gorm.io/gorm"
)

// Deliverer sends committed messages through the provider gateway.
type Deliverer struct {
	DB       *gorm.DB
	Provider provider.Provider
	Log      *slog.Logger
}

// Deliver handles one delivery task. Degraded outcomes (no destination
// number, empty phone pool, provider failure) are logged and absorbed:
// the message keeps an empty provider-id list and is never retried.
func (d *Deliverer) Deliver(ctx context.Context, task Task) error {
	var msg models.Message
	err := d.DB.Preload("Conversation").Preload("Conversation.Receiver").
		Preload("Conversation.PhoneNumber").First(&msg, task.MessageID).Error
	if err != nil {
		return fmt.Errorf("outbox: load message %d: %w", task.MessageID, err)
	}
	if msg.ProviderIDs != "" {
		// Redelivered task; the provider was already called once.
		return nil
	}

	conv := msg.Conversation
	receiver := conv.Receiver
	if receiver == nil || receiver.PhoneNumber == nil {
		d.Log.Warn("delivery skipped, receiver has no phone number",
			"task_id", task.ID, "message_id", msg.ID)
		return nil
	}

	from, err := d.sendingNumber(conv, receiver)
	if errors.Is(err, phonepool.ErrNoCapacity) {
		d.Log.Warn("delivery skipped, no active number for country",
			"task_id", task.ID, "message_id", msg.ID,
			"organization_id", conv.OrganizationID, "country", receiver.Country)
		return nil
	}
	if err != nil {
		return err
	}

	ids, err := d.Provider.Send(ctx, from.Number, *receiver.PhoneNumber, msg.Body)
	if err != nil {
		d.Log.Error("provider send failed", "task_id", task.ID,
			"message_id", msg.ID, "error", err)
		return nil
	}
	if len(ids) == 0 {
		return nil
	}

	if err := msg.SetProviderIDList(ids); err != nil {
		return err
	}
	if err := d.DB.Model(&models.Message{}).Where("id = ?", msg.ID).
		UpdateColumn("provider_ids", msg.ProviderIDs).Error; err != nil {
		return fmt.Errorf("outbox: stamp provider ids on message %d: %w", msg.ID, err)
	}
	d.Log.Info("message delivered", "task_id", task.ID,
		"message_id", msg.ID, "segments", len(ids))
	return nil
}

// sendingNumber returns the conversation's assigned number, replacing it
// when none is assigned or the assignment has since gone inactive. The
// active flag is checked at send time, not at assignment time.
func (d *Deliverer) sendingNumber(conv *models.Conversation, receiver *models.User) (*models.PhoneNumber, error) {
	if conv.PhoneNumber != nil && conv.PhoneNumber.Active {
		return conv.PhoneNumber, nil
	}

	num, err := phonepool.Select(d.DB, conv.OrganizationID, receiver.Country)
	if err != nil {
		return nil, err
	}
	if err := d.DB.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		UpdateColumn("phone_number_id", num.ID).Error; err != nil {
		return nil, fmt.Errorf("outbox: assign number to conversation %d: %w", conv.ID, err)
	}
	return num, nil
}
