// Package phonepool selects outbound sending numbers from an
// organization's per-country pool.
package phonepool

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/jbaxter/correspond/internal/models"
	"gorm.io/gorm"
)

// ErrNoCapacity is returned when the organization has no active number
// for the requested country. Callers must treat this as "cannot send",
// not as a failure.
var ErrNoCapacity = errors.New("phonepool: no active number for country")

// Select picks an active outbound number for the organization and
// country, uniformly at random among the candidates.
func Select(db *gorm.DB, orgID uint, country string) (*models.PhoneNumber, error) {
	var numbers []models.PhoneNumber
	if err := db.Where("organization_id = ? AND country = ? AND active = ?", orgID, country, true).
		Find(&numbers).Error; err != nil {
		return nil, fmt.Errorf("phonepool: list numbers for org %d: %w", orgID, err)
	}
	if len(numbers) == 0 {
		return nil, ErrNoCapacity
	}
	n := numbers[rand.Intn(len(numbers))]
	return &n, nil
}

// SupportedCountries groups the organization's active numbers by country
// code.
func SupportedCountries(db *gorm.DB, orgID uint) (map[string][]models.PhoneNumber, error) {
	var numbers []models.PhoneNumber
	if err := db.Where("organization_id = ? AND active = ?", orgID, true).
		Order("country ASC").Find(&numbers).Error; err != nil {
		return nil, fmt.Errorf("phonepool: list numbers for org %d: %w", orgID, err)
	}
	byCountry := make(map[string][]models.PhoneNumber, len(numbers))
	for _, n := range numbers {
		byCountry[n.Country] = append(byCountry[n.Country], n)
	}
	return byCountry, nil
}
