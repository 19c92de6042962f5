package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecoverySession is the short-lived envelope between StartRecovery and
// CompleteVerification. It carries the selected method so the final step
// can refuse mismatched samples without re-running risk assessment.
type RecoverySession struct {
	SessionID uuid.UUID `json:"session_id"`
	BurnTxID  uuid.UUID `json:"burn_tx_id"`
	UserID    string    `json:"user_id"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RecoverySessionStore persists recovery sessions with a TTL.
type RecoverySessionStore interface {
	Put(ctx context.Context, sessionID uuid.UUID, session RecoverySession, ttl time.Duration) error
	Get(ctx context.Context, sessionID uuid.UUID) (*RecoverySession, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// ThrottleState is the current failure envelope for one throttle key.
type ThrottleState struct {
	FailedCount int
	LockedUntil *time.Time
}

// VerificationThrottle limits repeated failed biometric verifications
// per burn transaction. Cache-backed to avoid hot writes on every miss.
type VerificationThrottle interface {
	Get(ctx context.Context, key string) (ThrottleState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockWindow time.Duration) (ThrottleState, error)
	Clear(ctx context.Context, key string) error
}
