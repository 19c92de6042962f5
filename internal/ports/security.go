package ports

import (
	"time"

	"github.com/google/uuid"
)

// RecoveryKeyHasher hashes and compares recovery keys. Only the hash is
// ever persisted.
type RecoveryKeyHasher interface {
	Hash(key string) (string, error)
	Compare(hash, key string) error
}

// RecoveryClaims bind a recovery session token to one burn transaction
// and verification method.
type RecoveryClaims struct {
	SessionID uuid.UUID `json:"session_id"`
	BurnTxID  uuid.UUID `json:"burn_tx_id"`
	UserID    string    `json:"user_id"`
	Method    string    `json:"method"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	KeyID     string    `json:"kid"`
}

// RecoveryTokenSigner signs/parses recovery session tokens handed to the
// UI layer between the two recovery steps.
type RecoveryTokenSigner interface {
	Sign(claims RecoveryClaims) (string, error)
	ParseAndValidate(token string) (RecoveryClaims, error)
}
