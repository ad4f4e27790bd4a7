// Package users creates and updates contacts with field-level
// validation: phone normalization, uniqueness checks on phone, email
// and campaign id, and the staff-only manager rule. Validation errors
// accumulate so the caller gets every failing field at once.
package users

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jbaxter/correspond/internal/models"
	"github.com/jbaxter/correspond/internal/phone"
	"gorm.io/gorm"
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// FieldErrors is the accumulated set of rejected fields.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Field + ": " + e.Message
	}
	return "users: " + strings.Join(parts, "; ")
}

// CreateInput carries the fields accepted when creating a contact.
type CreateInput struct {
	FirstName        *string
	LastName         *string
	PhoneNumber      *string
	Email            *string
	Country          string
	ActiveCampaignID *string
	IsStaff          bool
	ManagerID        *uint
}

// UpdateInput carries the fields accepted when updating a contact. Nil
// pointers leave the field unchanged.
type UpdateInput struct {
	FirstName        *string
	LastName         *string
	PhoneNumber      *string
	Email            *string
	Country          *string
	ActiveCampaignID *string
	IsStaff          *bool
	ManagerID        *uint
}

// Create validates the input and inserts a contact into the
// organization. A FieldErrors value is returned when any field is
// rejected.
func Create(db *gorm.DB, org *models.Organization, in CreateInput, defaultCountry string) (*models.User, error) {
	var fe FieldErrors

	country := in.Country
	if country == "" {
		country = org.Country
	}
	if country == "" {
		country = defaultCountry
	}

	normalized := normalizePhone(&fe, in.PhoneNumber, country)
	checkUnique(db, &fe, "phone_number", normalized, 0)
	checkUnique(db, &fe, "email", in.Email, 0)
	checkUnique(db, &fe, "active_campaign_id", in.ActiveCampaignID, 0)
	checkManager(db, &fe, in.ManagerID)

	if len(fe) > 0 {
		return nil, fe
	}

	orgID := org.ID
	user := models.User{
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		PhoneNumber:      normalized,
		Email:            in.Email,
		Country:          country,
		ActiveCampaignID: in.ActiveCampaignID,
		IsStaff:          in.IsStaff,
		ManagerID:        in.ManagerID,
		OrganizationID:   &orgID,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("users: create: %w", err)
	}
	return &user, nil
}

// Update validates the changed fields and applies them to the contact.
func Update(db *gorm.DB, user *models.User, in UpdateInput, defaultCountry string) (*models.User, error) {
	var fe FieldErrors

	country := user.Country
	if in.Country != nil {
		country = *in.Country
	}
	if country == "" {
		country = defaultCountry
	}

	if in.PhoneNumber != nil {
		normalized := normalizePhone(&fe, in.PhoneNumber, country)
		if normalized != nil {
			checkUnique(db, &fe, "phone_number", normalized, user.ID)
			user.PhoneNumber = normalized
		}
	}
	if in.Email != nil {
		checkUnique(db, &fe, "email", in.Email, user.ID)
		user.Email = in.Email
	}
	if in.ActiveCampaignID != nil {
		checkUnique(db, &fe, "active_campaign_id", in.ActiveCampaignID, user.ID)
		user.ActiveCampaignID = in.ActiveCampaignID
	}
	if in.ManagerID != nil {
		checkManager(db, &fe, in.ManagerID)
		user.ManagerID = in.ManagerID
	}
	if in.FirstName != nil {
		user.FirstName = in.FirstName
	}
	if in.LastName != nil {
		user.LastName = in.LastName
	}
	if in.IsStaff != nil {
		user.IsStaff = *in.IsStaff
	}
	user.Country = country

	if len(fe) > 0 {
		return nil, fe
	}

	if err := db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("users: update %d: %w", user.ID, err)
	}
	return user, nil
}

// normalizePhone parses and normalizes the number to E.164, appending a
// field error when it cannot be parsed. A nil input passes through.
func normalizePhone(fe *FieldErrors, raw *string, country string) *string {
	if raw == nil || *raw == "" {
		return nil
	}
	num, err := phone.Parse(*raw, country)
	if err != nil {
		*fe = append(*fe, FieldError{Field: "phone_number", Message: "invalid phone number", Value: *raw})
		return nil
	}
	normalized := phone.Normalize(num)
	return &normalized
}

// checkUnique appends a field error when another user already holds the
// value in column. excludeID skips the user being updated.
func checkUnique(db *gorm.DB, fe *FieldErrors, column string, value *string, excludeID uint) {
	if value == nil || *value == "" {
		return
	}
	var count int64
	q := db.Model(&models.User{}).Where(column+" = ?", *value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		*fe = append(*fe, FieldError{Field: column, Message: "lookup failed", Value: *value})
		return
	}
	if count > 0 {
		*fe = append(*fe, FieldError{Field: column, Message: "already taken", Value: *value})
	}
}

// checkManager appends a field error unless the manager exists and is
// staff.
func checkManager(db *gorm.DB, fe *FieldErrors, managerID *uint) {
	if managerID == nil {
		return
	}
	var manager models.User
	err := db.First(&manager, *managerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		*fe = append(*fe, FieldError{Field: "manager_id", Message: "manager not found"})
		return
	}
	if err != nil {
		*fe = append(*fe, FieldError{Field: "manager_id", Message: "lookup failed"})
		return
	}
	if !manager.IsStaff {
		*fe = append(*fe, FieldError{Field: "manager_id", Message: "manager must be staff"})
	}
}
