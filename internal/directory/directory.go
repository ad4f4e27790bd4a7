// Package directory resolves organizations and contacts from routing
// identifiers: the phone number a message arrived on, an organization
// slug, or a contact's phone number.
package directory

import (
	"errors"
	"fmt"

	"github.com/jbaxter/correspond/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound means no record matched the identifier.
var ErrNotFound = errors.New("directory: not found")

// OrgByPhone returns the organization owning the active phone number.
func OrgByPhone(db *gorm.DB, number string) (*models.Organization, error) {
	var pn models.PhoneNumber
	err := db.Where("number = ? AND active = ?", number, true).First(&pn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: phone number %s: %w", number, err)
	}

	var org models.Organization
	if err := db.First(&org, pn.OrganizationID).Error; err != nil {
		return nil, fmt.Errorf("directory: organization %d: %w", pn.OrganizationID, err)
	}
	return &org, nil
}

// OrgBySlug returns the organization with the given slug.
func OrgBySlug(db *gorm.DB, slug string) (*models.Organization, error) {
	var org models.Organization
	err := db.Where("slug = ?", slug).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: organization slug %s: %w", slug, err)
	}
	return &org, nil
}

// UserByPhone returns the contact with the given phone number inside
// the organization.
func UserByPhone(db *gorm.DB, orgID uint, number string) (*models.User, error) {
	var user models.User
	err := db.Where("organization_id = ? AND phone_number = ?", orgID, number).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: user by phone %s: %w", number, err)
	}
	return &user, nil
}
