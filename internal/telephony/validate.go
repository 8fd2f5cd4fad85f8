package telephony

import (
	"errors"
	"regexp"
	"strings"
)

var (
	e164Pattern       = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	accountSIDPattern = regexp.MustCompile(`^AC[0-9a-fA-F]{32}$`)
)

var (
	ErrInvalidAccountSID  = errors.New("Invalid Account SID format")
	ErrInvalidPhoneNumber = errors.New("Invalid phone number format. Use E.164 format (e.g., +1234567890)")
	ErrMissingAuthToken   = errors.New("Auth token is required")
)

// Credentials is the account-level credential set for the Twilio REST API.
type Credentials struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

func (c Credentials) Complete() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.PhoneNumber != ""
}

// IsE164 reports whether s is a strict E.164 number: a plus sign and 2 to 15 digits, no leading zero.
func IsE164(s string) bool {
	return e164Pattern.MatchString(s)
}

// IsAccountSID reports whether s has the "AC" prefix followed by 32 hex characters.
func IsAccountSID(s string) bool {
	return accountSIDPattern.MatchString(s)
}

// ValidateCredentials checks shape only; it performs no network round trip.
func ValidateCredentials(c Credentials) error {
	if !IsAccountSID(strings.TrimSpace(c.AccountSID)) {
		return ErrInvalidAccountSID
	}
	if strings.TrimSpace(c.AuthToken) == "" {
		return ErrMissingAuthToken
	}
	if !IsE164(strings.TrimSpace(c.PhoneNumber)) {
		return ErrInvalidPhoneNumber
	}
	return nil
}
