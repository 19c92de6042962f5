package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
)

// Config carries the engine's tunable policy. Thresholds live here, not
// as hard-coded constants, because the product values are policy choices.
type Config struct {
	// BlacklistTrustThreshold: devices scoring below it are eligible for
	// automatic blacklisting during countermeasures.
	BlacklistTrustThreshold int
	// VerificationThreshold: minimum biometric score accepted for recovery.
	VerificationThreshold int
	// BiometricTimeout bounds external verifier calls; a timeout is a
	// failed verification, not a service error.
	BiometricTimeout time.Duration

	RecoverySessionTTL        time.Duration
	VerificationFailThreshold int
	VerificationLockWindow    time.Duration

	// Backtrace strictness: required hop trust starts at the base and
	// rises by the step per hop walked toward the origin.
	BacktraceBaseTrust      int
	BacktraceStrictnessStep int

	LedgerAppendRetries int
	LedgerRetryBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BlacklistTrustThreshold <= 0 {
		c.BlacklistTrustThreshold = 30
	}
	if c.VerificationThreshold <= 0 {
		c.VerificationThreshold = 80
	}
	if c.BiometricTimeout <= 0 {
		c.BiometricTimeout = 10 * time.Second
	}
	if c.RecoverySessionTTL <= 0 {
		c.RecoverySessionTTL = 15 * time.Minute
	}
	if c.VerificationFailThreshold <= 0 {
		c.VerificationFailThreshold = 5
	}
	if c.VerificationLockWindow <= 0 {
		c.VerificationLockWindow = 30 * time.Minute
	}
	if c.BacktraceBaseTrust <= 0 {
		c.BacktraceBaseTrust = 10
	}
	if c.BacktraceStrictnessStep <= 0 {
		c.BacktraceStrictnessStep = 5
	}
	if c.LedgerAppendRetries <= 0 {
		c.LedgerAppendRetries = 3
	}
	if c.LedgerRetryBackoff <= 0 {
		c.LedgerRetryBackoff = 100 * time.Millisecond
	}
	return c
}

// BlockRequest asks the blacklist manager to deny a device.
type BlockRequest struct {
	DeviceID    string
	Fingerprint string
	Reason      string
	ExpiresAt   *time.Time
}

// BacktraceResult reports chain resolution back to an origin.
// TraceLog is observational only and never affects control flow.
type BacktraceResult struct {
	Success        bool
	OriginDevice   *domain.Device
	OriginIP       string
	OriginLocation string
	TraceLog       []string
}

// CountermeasureResult summarizes the best-effort response actions.
type CountermeasureResult struct {
	ActionsPerformed   []string
	DevicesBlacklisted int
	AttackerIPBlocked  bool
}

// SecurityCheckResult is the full outcome of one session scan.
// Chain, Backtrace and Countermeasures are nil when the session never
// crossed the corresponding policy gate.
type SecurityCheckResult struct {
	Snapshot        domain.DeviceSecuritySnapshot
	Chain           *domain.ConnectionChain
	Backtrace       *BacktraceResult
	Countermeasures *CountermeasureResult
}

// BurnRequest deliberately disables an asset balance.
type BurnRequest struct {
	UserID    string
	Amount    int64
	AssetID   string
	LicenseID string
	Reason    string
	// SessionTrustScore snapshots the requesting session's assessed
	// trust at burn time for the audit record.
	SessionTrustScore int
}

// BurnResult returns the recovery key exactly once; the engine keeps
// only its hash.
type BurnResult struct {
	BurnTxID    uuid.UUID
	TxHash      string
	RecoveryKey string
}

// StartRecoveryRequest opens the verification window for a burn.
type StartRecoveryRequest struct {
	BurnTxID    uuid.UUID
	RecoveryKey string
	// SessionTrustScore drives verification method selection: riskier
	// sessions get stronger verification.
	SessionTrustScore int
}

// StartRecoveryResult carries the session handle for the second step.
type StartRecoveryResult struct {
	SessionID                  uuid.UUID
	SessionToken               string
	RequiredVerificationMethod string
}

// CompleteVerificationRequest finishes (or retries) a recovery. The
// session token issued by StartRecovery must accompany the attempt and
// agree with the session and burn transaction it names.
type CompleteVerificationRequest struct {
	SessionID    uuid.UUID
	BurnTxID     uuid.UUID
	SessionToken string
	Sample       ports.BiometricSample
}

// VerificationResult reports the verifier's decision. Success false with
// nil error means the attempt failed and may be retried.
type VerificationResult struct {
	Success      bool
	Score        int
	RecoveryTxID uuid.UUID
}
