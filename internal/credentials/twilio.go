package credentials

import "context"

const (
	CategoryTwilio = "twilio"

	KeyAccountSID  = "account_sid"
	KeyAuthToken   = "auth_token"
	KeyPhoneNumber = "phone_number"
)

// TwilioSettings is the telephony credential set.
// IsConfigured holds only when all three values are non-empty.
type TwilioSettings struct {
	AccountSID   string `json:"accountSid"`
	AuthToken    string `json:"authToken"`
	PhoneNumber  string `json:"phoneNumber"`
	IsConfigured bool   `json:"isConfigured"`
}

// TwilioSettingsUpdate is a partial write; nil fields are left untouched.
type TwilioSettingsUpdate struct {
	AccountSID  *string
	AuthToken   *string
	PhoneNumber *string
}

func (s *Store) GetTwilioSettings(ctx context.Context) (TwilioSettings, error) {
	var out TwilioSettings
	var err error
	if out.AccountSID, err = s.Get(ctx, CategoryTwilio, KeyAccountSID); err != nil {
		return TwilioSettings{}, err
	}
	if out.AuthToken, err = s.Get(ctx, CategoryTwilio, KeyAuthToken); err != nil {
		return TwilioSettings{}, err
	}
	if out.PhoneNumber, err = s.Get(ctx, CategoryTwilio, KeyPhoneNumber); err != nil {
		return TwilioSettings{}, err
	}
	out.IsConfigured = out.AccountSID != "" && out.AuthToken != "" && out.PhoneNumber != ""
	return out, nil
}

// SetTwilioSettings writes the provided fields. The auth token is always encrypted.
func (s *Store) SetTwilioSettings(ctx context.Context, u TwilioSettingsUpdate) error {
	// Checked up front so a missing key cannot leave a half-written update.
	if u.AuthToken != nil && !s.CanEncrypt() {
		return ErrEncryptionKeyMissing
	}
	if u.AccountSID != nil {
		if err := s.Set(ctx, CategoryTwilio, KeyAccountSID, *u.AccountSID, SetOptions{Description: "Twilio account SID"}); err != nil {
			return err
		}
	}
	if u.AuthToken != nil {
		if err := s.Set(ctx, CategoryTwilio, KeyAuthToken, *u.AuthToken, SetOptions{Encrypt: true, Description: "Twilio auth token"}); err != nil {
			return err
		}
	}
	if u.PhoneNumber != nil {
		if err := s.Set(ctx, CategoryTwilio, KeyPhoneNumber, *u.PhoneNumber, SetOptions{Description: "Twilio sender number"}); err != nil {
			return err
		}
	}
	return nil
}
