package postgres

import (
	"time"

	"github.com/google/uuid"
)

type deviceModel struct {
	DeviceID        string    `gorm:"column:device_id;primaryKey"`
	Fingerprint     string    `gorm:"column:fingerprint;uniqueIndex"`
	TrustScore      int       `gorm:"column:trust_score"`
	FirstSeen       time.Time `gorm:"column:first_seen"`
	LastSeen        time.Time `gorm:"column:last_seen"`
	LastIP          string    `gorm:"column:last_ip;index"`
	IsCurrentDevice bool      `gorm:"column:is_current_device"`
	OS              string    `gorm:"column:os"`
	Browser         string    `gorm:"column:browser"`
	DeviceType      string    `gorm:"column:device_type"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (deviceModel) TableName() string { return "devices" }

type blacklistEntryModel struct {
	EntryKey    string     `gorm:"column:entry_key;primaryKey"`
	DeviceID    string     `gorm:"column:device_id"`
	Fingerprint string     `gorm:"column:fingerprint"`
	Reason      string     `gorm:"column:reason"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
}

func (blacklistEntryModel) TableName() string { return "blacklist_entries" }

type blockedIPModel struct {
	IPAddress string    `gorm:"column:ip_address;primaryKey"`
	Reason    string    `gorm:"column:reason"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (blockedIPModel) TableName() string { return "blocked_ips" }

type ledgerEntryModel struct {
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;primaryKey"`
	Action        string    `gorm:"column:action;index"`
	Status        string    `gorm:"column:status;index"`
	AssetID       *string   `gorm:"column:asset_id"`
	LicenseID     *string   `gorm:"column:license_id"`
	Metadata      string    `gorm:"column:metadata;type:jsonb"`
	Timestamp     time.Time `gorm:"column:created_at;index"`
}

func (ledgerEntryModel) TableName() string { return "ledger_entries" }

type burnTransactionModel struct {
	ID              uuid.UUID  `gorm:"column:burn_tx_id;type:uuid;primaryKey"`
	UserID          string     `gorm:"column:user_id;index"`
	TxHash          string     `gorm:"column:tx_hash;uniqueIndex"`
	BurnedAmount    int64      `gorm:"column:burned_amount"`
	AssetID         string     `gorm:"column:asset_id"`
	LicenseID       string     `gorm:"column:license_id"`
	RecoveryStatus  string     `gorm:"column:recovery_status;index"`
	RecoveryKeyHash string     `gorm:"column:recovery_key_hash"`
	BiometricHash   string     `gorm:"column:biometric_hash"`
	Reason          string     `gorm:"column:reason"`
	SecurityScore   int        `gorm:"column:security_score"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
	RecoveredAt     *time.Time `gorm:"column:recovered_at"`
}

func (burnTransactionModel) TableName() string { return "burn_transactions" }

type assetBalanceModel struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	AssetID   string    `gorm:"column:asset_id;primaryKey"`
	Balance   int64     `gorm:"column:balance"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (assetBalanceModel) TableName() string { return "asset_balances" }

type ledgerOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (ledgerOutboxModel) TableName() string { return "ledger_outbox" }
