package domain

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Recovery statuses. The machine only moves forward:
// burned -> recovery_pending -> recovered. Recovered is terminal.
const (
	RecoveryStatusBurned    = "burned"
	RecoveryStatusPending   = "recovery_pending"
	RecoveryStatusRecovered = "recovered"
)

// Verification methods selectable for recovery.
const (
	VerificationFace        = "face"
	VerificationVoice       = "voice"
	VerificationFingerprint = "fingerprint"
	VerificationFaceVoice   = "face+voice"
)

// BurnTransaction is a deliberately disabled asset balance awaiting
// biometric recovery. Only the recovery key hash is retained; losing the
// plaintext key makes the burn unrecoverable.
type BurnTransaction struct {
	ID              uuid.UUID
	UserID          string
	TxHash          string
	BurnedAmount    int64
	AssetID         string
	LicenseID       string
	RecoveryStatus  string
	RecoveryKeyHash string
	BiometricHash   string
	Reason          string
	SecurityScore   int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	RecoveredAt     *time.Time
}

// CanAdvanceRecoveryStatus gates the one-way state machine.
func CanAdvanceRecoveryStatus(from, to string) bool {
	switch from {
	case RecoveryStatusBurned:
		return to == RecoveryStatusPending
	case RecoveryStatusPending:
		return to == RecoveryStatusRecovered
	default:
		return false
	}
}

// ValidateBurnRequest rejects burns with no reason or non-positive amount.
func ValidateBurnRequest(amount int64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: burn amount must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: burn reason is required", ErrInvalidInput)
	}
	return nil
}

// VerificationMethodForTrust selects the recovery verification method
// from the requesting session's trust score. Riskier sessions get
// stronger (combined) verification.
func VerificationMethodForTrust(trustScore int) string {
	switch {
	case trustScore >= 70:
		return VerificationFingerprint
	case trustScore >= 40:
		return VerificationFace
	default:
		return VerificationFaceVoice
	}
}

const recoveryKeyPrefix = "vlt-"

var recoveryKeyPattern = regexp.MustCompile(`^vlt-[0-9a-f]{32}$`)

// FormatRecoveryKey renders 16 random bytes as a presentable key.
func FormatRecoveryKey(raw [16]byte) string {
	return recoveryKeyPrefix + hex.EncodeToString(raw[:])
}

// ValidateRecoveryKeyFormat checks shape only; hash comparison decides
// whether the key actually matches a transaction.
func ValidateRecoveryKeyFormat(key string) error {
	if !recoveryKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: malformed key", ErrInvalidRecoveryKey)
	}
	return nil
}
