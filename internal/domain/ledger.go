package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger entry statuses. Status may advance after creation; everything
// else in an entry is immutable once written.
const (
	LedgerStatusPending   = "pending"
	LedgerStatusConfirmed = "confirmed"
	LedgerStatusCompleted = "completed"
	LedgerStatusFailed    = "failed"
	LedgerStatusAlert     = "alert"
)

// Known ledger actions. Consumers handle these exhaustively and ignore
// actions they do not know.
const (
	ActionDeviceSnapshot       = "device_snapshot"
	ActionRemoteConnectionScan = "remote_connection_scan"
	ActionChainBacktrace       = "chain_backtrace"
	ActionDeviceBlock          = "remote_device_block"
	ActionDeviceUnblock        = "remote_device_unblock"
	ActionBlacklistSweep       = "blacklist_sweep"
	ActionIPBlock              = "attacker_ip_block"
	ActionCountermeasure       = "countermeasure_response"
	ActionBurn                 = "burn_transaction"
	ActionRecoveryStart        = "recovery_start"
	ActionRecoveryComplete     = "token_recovery"
)

// LedgerEntry is the shared append-only audit record. TransactionID,
// Action and Timestamp never change after creation; no entry is ever
// physically deleted.
type LedgerEntry struct {
	TransactionID uuid.UUID
	Action        string
	Status        string
	AssetID       string
	LicenseID     string
	Metadata      json.RawMessage
	Timestamp     time.Time
}

// CanTransitionLedgerStatus gates the only mutation a ledger entry allows.
func CanTransitionLedgerStatus(from, to string) bool {
	switch from {
	case LedgerStatusPending:
		return to == LedgerStatusConfirmed || to == LedgerStatusCompleted || to == LedgerStatusFailed
	case LedgerStatusConfirmed:
		return to == LedgerStatusCompleted || to == LedgerStatusFailed
	default:
		return false
	}
}

// Typed metadata payloads, one per known action. Keeping them as tagged
// variants lets readers decode exhaustively instead of duck-typing blobs.

type DeviceSnapshotMetadata struct {
	DeviceID       string   `json:"device_id"`
	Fingerprint    string   `json:"fingerprint,omitempty"`
	TrustScore     int      `json:"trust_score"`
	IsRemoteAccess bool     `json:"is_remote_access"`
	Indicators     []string `json:"indicators,omitempty"`
}

type BlockMetadata struct {
	DeviceID    string     `json:"device_id,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Reason      string     `json:"reason"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type SweepMetadata struct {
	RemovedCount int      `json:"removed_count"`
	RemovedKeys  []string `json:"removed_keys,omitempty"`
}

type IPBlockMetadata struct {
	IPAddress string `json:"ip_address"`
	Reason    string `json:"reason"`
}

type ScanMetadata struct {
	SessionID  string `json:"session_id"`
	DeviceID   string `json:"device_id,omitempty"`
	ChainDepth int    `json:"chain_depth"`
	Suspicious bool   `json:"suspicious"`
}

type BacktraceMetadata struct {
	SessionID      string   `json:"session_id"`
	Success        bool     `json:"success"`
	OriginIP       string   `json:"origin_ip,omitempty"`
	OriginLocation string   `json:"origin_location,omitempty"`
	TraceLog       []string `json:"trace_log,omitempty"`
}

type CountermeasureMetadata struct {
	SessionID          string   `json:"session_id"`
	ActionsPerformed   []string `json:"actions_performed"`
	DevicesBlacklisted int      `json:"devices_blacklisted"`
	AttackerIPBlocked  bool     `json:"attacker_ip_blocked"`
}

type BurnMetadata struct {
	BurnTxID string `json:"burn_tx_id"`
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	TxHash   string `json:"tx_hash"`
	Reason   string `json:"reason"`
}

type RecoveryMetadata struct {
	BurnTxID           string `json:"burn_tx_id"`
	SessionID          string `json:"session_id,omitempty"`
	VerificationMethod string `json:"verification_method,omitempty"`
	Score              int    `json:"score,omitempty"`
	RecoveryTxID       string `json:"recovery_tx_id,omitempty"`
	RestoredAmount     int64  `json:"restored_amount,omitempty"`
}

// DecodeLedgerMetadata decodes a known action's payload into its variant.
// Unknown actions return (nil, nil) so readers can skip them safely.
func DecodeLedgerMetadata(action string, raw json.RawMessage) (any, error) {
	decode := func(v any) (any, error) {
		if len(raw) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("%w: decode %s metadata: %v", ErrInvalidInput, action, err)
		}
		return v, nil
	}
	switch action {
	case ActionDeviceSnapshot:
		return decode(&DeviceSnapshotMetadata{})
	case ActionDeviceBlock, ActionDeviceUnblock:
		return decode(&BlockMetadata{})
	case ActionBlacklistSweep:
		return decode(&SweepMetadata{})
	case ActionIPBlock:
		return decode(&IPBlockMetadata{})
	case ActionRemoteConnectionScan:
		return decode(&ScanMetadata{})
	case ActionChainBacktrace:
		return decode(&BacktraceMetadata{})
	case ActionCountermeasure:
		return decode(&CountermeasureMetadata{})
	case ActionBurn:
		return decode(&BurnMetadata{})
	case ActionRecoveryStart, ActionRecoveryComplete:
		return decode(&RecoveryMetadata{})
	default:
		return nil, nil
	}
}
