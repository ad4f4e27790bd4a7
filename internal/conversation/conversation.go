// Package conversation owns the conversation/message aggregate: message
// inserts and the denormalized summary fields are updated together in
// one transaction.
package conversation

import (
	"errors"
	"fmt"

	"github.com/jbaxter/correspond/internal/models"
	"github.com/jbaxter/correspond/internal/phonepool"
	"gorm.io/gorm"
)

// Action marks a conversation read or unread.
type Action string

const (
	ActionRead   Action = "read"
	ActionUnread Action = "unread"
)

// GetOrCreate returns the receiver's conversation, creating it when
// absent. A sending number is assigned from the organization's pool for
// the receiver's country; an empty pool is not fatal, the conversation
// is created without a number and assignment retried at send time.
func GetOrCreate(db *gorm.DB, receiver *models.User) (*models.Conversation, bool, error) {
	var conv models.Conversation
	err := db.Where("receiver_id = ?", receiver.ID).First(&conv).Error
	if err == nil {
		return &conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("conversation: find for user %d: %w", receiver.ID, err)
	}
	if receiver.OrganizationID == nil {
		return nil, false, fmt.Errorf("conversation: user %d has no organization", receiver.ID)
	}

	conv = models.Conversation{
		ReceiverID:     receiver.ID,
		OrganizationID: *receiver.OrganizationID,
	}
	num, err := phonepool.Select(db, *receiver.OrganizationID, receiver.Country)
	switch {
	case err == nil:
		conv.PhoneNumberID = &num.ID
	case errors.Is(err, phonepool.ErrNoCapacity):
		// assignment is lazy, retried on first send
	default:
		return nil, false, err
	}

	if err := db.Create(&conv).Error; err != nil {
		// A concurrent caller may have created it first; the unique index
		// on receiver_id guarantees at most one conversation per user.
		var existing models.Conversation
		if ferr := db.Where("receiver_id = ?", receiver.ID).First(&existing).Error; ferr == nil {
			return &existing, false, nil
		}
		return nil, false, fmt.Errorf("conversation: create for user %d: %w", receiver.ID, err)
	}
	return &conv, true, nil
}

// AppendOpts describes one message append.
type AppendOpts struct {
	Receiver      *models.User // the contact owning the conversation
	SenderID      uint
	Body          string
	ProviderIDs   []string // delivery ids already known (inbound messages)
	AutoMessageID *uint
	Send          bool // enqueue outbound delivery after commit (Service only)
}

// Append inserts a message and recomputes the conversation summary in a
// single transaction. No delivery is attempted here: dispatch happens
// strictly after commit, through the outbox.
func Append(db *gorm.DB, opts AppendOpts) (*models.Message, error) {
	if opts.Receiver == nil {
		return nil, fmt.Errorf("conversation: receiver is required")
	}
	if opts.SenderID == 0 {
		return nil, fmt.Errorf("conversation: sender is required")
	}
	if opts.Body == "" {
		return nil, fmt.Errorf("conversation: body is required")
	}

	var msg models.Message
	err := db.Transaction(func(tx *gorm.DB) error {
		conv, _, err := GetOrCreate(tx, opts.Receiver)
		if err != nil {
			return err
		}

		msg = models.Message{
			SenderID:       opts.SenderID,
			ConversationID: conv.ID,
			OrganizationID: conv.OrganizationID,
			AutoMessageID:  opts.AutoMessageID,
			Body:           opts.Body,
		}
		if err := msg.SetProviderIDList(opts.ProviderIDs); err != nil {
			return err
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("conversation: create message: %w", err)
		}

		if err := recomputeSummary(tx, conv); err != nil {
			return err
		}

		return bumpCounters(tx, opts.SenderID, conv.ReceiverID)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// recomputeSummary refreshes the denormalized fields from the messages
// table. It re-queries the latest message instead of trusting the
// caller; concurrent appends to the same conversation settle
// last-writer-wins, which is accepted behavior.
func recomputeSummary(tx *gorm.DB, conv *models.Conversation) error {
	var last models.Message
	if err := tx.Where("conversation_id = ?", conv.ID).
		Order("created_at DESC, id DESC").First(&last).Error; err != nil {
		return fmt.Errorf("conversation: find last message for %d: %w", conv.ID, err)
	}
	var count int64
	if err := tx.Model(&models.Message{}).
		Where("conversation_id = ?", conv.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("conversation: count messages for %d: %w", conv.ID, err)
	}

	// Unread means the contact wrote in and nobody looked yet.
	unread := last.SenderID == conv.ReceiverID

	err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"messages_count":  count,
			"last_message_id": last.ID,
			"last_message_at": last.CreatedAt,
			"unread":          unread,
		}).Error
	if err != nil {
		return fmt.Errorf("conversation: update summary for %d: %w", conv.ID, err)
	}
	return nil
}

// bumpCounters increments the advisory per-user message counters.
func bumpCounters(tx *gorm.DB, senderID, receiverID uint) error {
	if err := tx.Model(&models.User{}).Where("id = ?", senderID).
		UpdateColumn("messages_sent_count", gorm.Expr("messages_sent_count + 1")).Error; err != nil {
		return fmt.Errorf("conversation: bump sent counter: %w", err)
	}
	if senderID == receiverID {
		return nil
	}
	if err := tx.Model(&models.User{}).Where("id = ?", receiverID).
		UpdateColumn("messages_received_count", gorm.Expr("messages_received_count + 1")).Error; err != nil {
		return fmt.Errorf("conversation: bump received counter: %w", err)
	}
	return nil
}

// MarkAs sets the unread flag. The operation is idempotent.
func MarkAs(db *gorm.DB, conversationID uint, action Action) (*models.Conversation, error) {
	var unread bool
	switch action {
	case ActionRead:
		unread = false
	case ActionUnread:
		unread = true
	default:
		return nil, fmt.Errorf("conversation: unknown action %q", action)
	}

	var conv models.Conversation
	if err := db.First(&conv, conversationID).Error; err != nil {
		return nil, fmt.Errorf("conversation: find %d: %w", conversationID, err)
	}
	if err := db.Model(&conv).UpdateColumn("unread", unread).Error; err != nil {
		return nil, fmt.Errorf("conversation: mark %d as %s: %w", conversationID, action, err)
	}
	conv.Unread = unread
	return &conv, nil
}
