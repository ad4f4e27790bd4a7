// Package phone normalizes phone numbers to E.164 form.
package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// Parse parses raw, first without a region (covers +-prefixed
// international input), then against defaultCountry for national input.
func Parse(raw, defaultCountry string) (*phonenumbers.PhoneNumber, error) {
	var lastErr error
	for _, region := range []string{"", defaultCountry} {
		num, err := phonenumbers.Parse(raw, region)
		if err == nil {
			return num, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("phone: parse %q: %w", raw, lastErr)
}

// Normalize returns the +<country code><national number> form stored
// throughout the system.
func Normalize(num *phonenumbers.PhoneNumber) string {
	return fmt.Sprintf("+%d%d", num.GetCountryCode(), num.GetNationalNumber())
}

// Region returns the two-letter country code for a parsed number, used to
// pick a sending number from the organization's pool.
func Region(num *phonenumbers.PhoneNumber) string {
	return phonenumbers.GetRegionCodeForNumber(num)
}

// IsValid reports whether the parsed number is a valid, diallable number.
func IsValid(num *phonenumbers.PhoneNumber) bool {
	return phonenumbers.IsValidNumber(num)
}
