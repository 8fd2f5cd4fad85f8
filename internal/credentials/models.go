package credentials

import "time"

// Entry is one stored credential value addressed by (Category, Key).
//
// When IsEncrypted is set, Value holds the sealed form and is only ever
// returned to callers after decryption.
type Entry struct {
	Category    string    `json:"category" db:"category"`
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"-" db:"value"`
	IsEncrypted bool      `json:"is_encrypted" db:"is_encrypted"`
	Description string    `json:"description,omitempty" db:"description"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SetOptions controls how Set persists a value.
type SetOptions struct {
	Encrypt     bool
	Description string
}

func cacheKey(category, key string) string {
	return category + "." + key
}
