// Package reconcile reassembles multi-part inbound messages. Fragments
// of one logical message arrive across separate webhook calls, in any
// order; they are buffered as MessagePart rows keyed by (organization,
// part group reference) until the provider-declared total is reached.
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jbaxter/correspond/internal/conversation"
	"github.com/jbaxter/correspond/internal/models"
	"gorm.io/gorm"
)

// ErrDuplicateIndex is returned when a completed group contains two
// fragments claiming the same part index. The group is left unlinked.
var ErrDuplicateIndex = errors.New("reconcile: duplicate part index in group")

// errAlreadyCompleted aborts the assembly transaction when a concurrent
// call linked the group first.
var errAlreadyCompleted = errors.New("reconcile: group already completed")

// Fragment is one inbound multi-part webhook delivery.
type Fragment struct {
	Organization *models.Organization
	Sender       *models.User
	ProviderID   string // provider-assigned id of this fragment
	Body         string
	PartIndex    int
	PartRef      string // group reference shared by all fragments
	PartTotal    int    // provider-declared total fragment count
}

// Ingest records one fragment and, when its group completes, assembles
// the parts into a single message. It returns (nil, nil) while the group
// is still collecting, and the assembled message exactly once per group:
// a concurrent duplicate completion is absorbed as (nil, nil).
func Ingest(db *gorm.DB, frag Fragment) (*models.Message, error) {
	if frag.Organization == nil || frag.Sender == nil {
		return nil, fmt.Errorf("reconcile: organization and sender are required")
	}
	if frag.PartRef == "" || frag.PartTotal <= 0 {
		return nil, fmt.Errorf("reconcile: part ref and total are required")
	}

	// Idempotent buffer write: the unique (organization, provider id)
	// key makes a redelivered fragment a plain lookup.
	part := models.MessagePart{
		OrganizationID: frag.Organization.ID,
		ProviderID:     frag.ProviderID,
	}
	err := db.Where("organization_id = ? AND provider_id = ?", frag.Organization.ID, frag.ProviderID).
		Attrs(models.MessagePart{
			SenderID:  frag.Sender.ID,
			Body:      frag.Body,
			PartIndex: frag.PartIndex,
			PartRef:   frag.PartRef,
		}).
		FirstOrCreate(&part).Error
	if err != nil {
		return nil, fmt.Errorf("reconcile: record part %s: %w", frag.ProviderID, err)
	}

	parts, err := unlinkedParts(db, frag.Organization.ID, frag.PartRef)
	if err != nil {
		return nil, err
	}
	if len(parts) != frag.PartTotal {
		return nil, nil
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].PartIndex < parts[j].PartIndex })
	for i := 1; i < len(parts); i++ {
		if parts[i].PartIndex == parts[i-1].PartIndex {
			return nil, ErrDuplicateIndex
		}
	}

	var bodies strings.Builder
	providerIDs := make([]string, 0, len(parts))
	for _, p := range parts {
		bodies.WriteString(p.Body)
		providerIDs = append(providerIDs, p.ProviderID)
	}

	var msg *models.Message
	err = db.Transaction(func(tx *gorm.DB) error {
		m, err := conversation.Append(tx, conversation.AppendOpts{
			Receiver:    frag.Sender,
			SenderID:    frag.Sender.ID,
			Body:        bodies.String(),
			ProviderIDs: providerIDs,
		})
		if err != nil {
			return err
		}

		// The same filter that produced the count guards the link: if a
		// concurrent completion got here first, zero rows match and this
		// transaction rolls the message back. At most one message per
		// group survives.
		res := tx.Model(&models.MessagePart{}).
			Where("organization_id = ? AND part_ref = ? AND message_id IS NULL",
				frag.Organization.ID, frag.PartRef).
			UpdateColumn("message_id", m.ID)
		if res.Error != nil {
			return fmt.Errorf("reconcile: link parts for ref %s: %w", frag.PartRef, res.Error)
		}
		if res.RowsAffected == 0 {
			return errAlreadyCompleted
		}
		msg = m
		return nil
	})
	if errors.Is(err, errAlreadyCompleted) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// unlinkedParts lists the still-unlinked fragments of a group.
func unlinkedParts(db *gorm.DB, orgID uint, partRef string) ([]models.MessagePart, error) {
	var parts []models.MessagePart
	err := db.Where("organization_id = ? AND part_ref = ? AND message_id IS NULL", orgID, partRef).
		Find(&parts).Error
	if err != nil {
		return nil, fmt.Errorf("reconcile: list parts for ref %s: %w", partRef, err)
	}
	return parts, nil
}
