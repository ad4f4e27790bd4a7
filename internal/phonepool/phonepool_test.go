package phonepool

import (
	"errors"
	"testing"

	"github.com/jbaxter/correspond/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Organization{}, &models.PhoneNumber{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func seedNumber(t *testing.T, db *gorm.DB, orgID uint, number, country string, active bool) models.PhoneNumber {
	t.Helper()
	n := models.PhoneNumber{
		Number:         number,
		Country:        country,
		Active:         active,
		OrganizationID: orgID,
	}
	if err := db.Create(&n).Error; err != nil {
		t.Fatalf("seed number %s: %v", number, err)
	}
	return n
}

func TestSelect_MatchingCountry(t *testing.T) {
	db := openTestDB(t)
	seedNumber(t, db, 1, "+33600000000", "FR", true)
	seedNumber(t, db, 1, "+4477000000", "GB", true)

	num, err := Select(db, 1, "FR")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if num.Country != "FR" {
		t.Errorf("Country = %q, want %q", num.Country, "FR")
	}
	if !num.Active {
		t.Error("selected number must be active")
	}
}

func TestSelect_NoCapacity(t *testing.T) {
	db := openTestDB(t)
	seedNumber(t, db, 1, "+33600000000", "FR", true)

	_, err := Select(db, 1, "DE")
	if !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("err = %v, want ErrNoCapacity", err)
	}
}

func TestSelect_SkipsInactive(t *testing.T) {
	db := openTestDB(t)
	seedNumber(t, db, 1, "+33600000000", "FR", false)

	_, err := Select(db, 1, "FR")
	if !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("err = %v, want ErrNoCapacity when only inactive numbers exist", err)
	}
}

func TestSelect_ScopedToOrganization(t *testing.T) {
	db := openTestDB(t)
	seedNumber(t, db, 2, "+33600000000", "FR", true)

	_, err := Select(db, 1, "FR")
	if !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("err = %v, want ErrNoCapacity for another org's pool", err)
	}
}

func TestSelect_AlwaysReturnsCandidate(t *testing.T) {
	db := openTestDB(t)
	seedNumber(t, db, 1, "+33600000001", "FR", true)
	seedNumber(t, db, 1, "+33600000002", "FR", true)
	seedNumber(t, db, 1, "+33600000003", "FR", false)

	// Random pick, so exercise it a few times; every result must be an
	// active FR number.
	for i := 0; i < 20; i++ {
		num, err := Select(db, 1, "FR")
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if num.Country != "FR" || !num.Active {
			t.Fatalf("got number %+v, want active FR", num)
		}
		if num.Number == "+33600000003" {
			t.Fatal("inactive number must never be selected")
		}
	}
}

func TestSupportedCountries(t *testing.T) {
	db := openTestDB(t)
	seedNumber(t, db, 1, "+33600000001", "FR", true)
	seedNumber(t, db, 1, "+33600000002", "FR", true)
	seedNumber(t, db, 1, "+4477000000", "GB", true)
	seedNumber(t, db, 1, "+491510000000", "DE", false)

	byCountry, err := SupportedCountries(db, 1)
	if err != nil {
		t.Fatalf("SupportedCountries: %v", err)
	}
	if len(byCountry) != 2 {
		t.Fatalf("len = %d, want 2 (inactive country excluded)", len(byCountry))
	}
	if len(byCountry["FR"]) != 2 {
		t.Errorf("FR numbers = %d, want 2", len(byCountry["FR"]))
	}
	if len(byCountry["GB"]) != 1 {
		t.Errorf("GB numbers = %d, want 1", len(byCountry["GB"]))
	}
}
