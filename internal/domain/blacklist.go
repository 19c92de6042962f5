package domain

import (
	"fmt"
	"strings"
	"time"
)

// BlacklistEntry denies access to a device, identified by device id or
// fingerprint. A nil ExpiresAt means the block is permanent.
type BlacklistEntry struct {
	DeviceID    string
	Fingerprint string
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   *time.Time
}

// Key returns the uniqueness key for the entry. Re-blocking the same key
// updates reason/expiry instead of duplicating.
func (e BlacklistEntry) Key() string {
	if e.DeviceID != "" {
		return e.DeviceID
	}
	return e.Fingerprint
}

// Active reports whether the entry currently blocks access. Expired
// entries read as absent; physical cleanup is left to a sweep.
func (e BlacklistEntry) Active(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// ValidateBlacklistEntry rejects blocks without a reason or identifier.
// A block nobody can explain is an audit hole, so the reason is mandatory.
func ValidateBlacklistEntry(e BlacklistEntry) error {
	if strings.TrimSpace(e.Reason) == "" {
		return fmt.Errorf("%w: block reason is required", ErrInvalidInput)
	}
	if e.DeviceID == "" && e.Fingerprint == "" {
		return fmt.Errorf("%w: device id or fingerprint is required", ErrInvalidInput)
	}
	return nil
}
