package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
)

// DeviceRepository persists the device registry. Devices are upserted on
// every evaluation and never deleted, so blacklisted hardware stays
// auditable.
type DeviceRepository interface {
	GetByID(ctx context.Context, deviceID string) (domain.Device, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (domain.Device, error)
	// GetByLastIP supports origin-device resolution during backtraces.
	GetByLastIP(ctx context.Context, ip string) (domain.Device, error)
	Upsert(ctx context.Context, device domain.Device) (domain.Device, error)
	List(ctx context.Context, limit, offset int) ([]domain.Device, error)
}

// BlacklistRepository stores deny entries keyed by device id or
// fingerprint. Upsert semantics keep one entry per key; expiry is read
// lazily rather than eagerly deleted.
type BlacklistRepository interface {
	Upsert(ctx context.Context, entry domain.BlacklistEntry) (domain.BlacklistEntry, error)
	Get(ctx context.Context, key string) (*domain.BlacklistEntry, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, activeOnly bool, now time.Time, limit, offset int) ([]domain.BlacklistEntry, error)
}

// BlockedIP is a network-level deny record produced by countermeasures.
type BlockedIP struct {
	IPAddress string
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BlockedIPRepository stores attacker IPs resolved by backtraces.
type BlockedIPRepository interface {
	Upsert(ctx context.Context, ip, reason string, now time.Time) error
	IsBlocked(ctx context.Context, ip string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]BlockedIP, error)
}

// LedgerFilter narrows ledger reads for the query surface.
type LedgerFilter struct {
	Action string
	Status string
	Limit  int
	Offset int
}

// LedgerRepository is the append-only audit store. Append never updates;
// UpdateStatus is the only permitted mutation and must respect
// domain.CanTransitionLedgerStatus. Appends from concurrent writers must
// be safe; per-writer timestamp order is preserved by writing entries in
// call order.
type LedgerRepository interface {
	Append(ctx context.Context, entry domain.LedgerEntry) error
	UpdateStatus(ctx context.Context, transactionID uuid.UUID, from, to string, at time.Time) error
	GetByID(ctx context.Context, transactionID uuid.UUID) (domain.LedgerEntry, error)
	List(ctx context.Context, filter LedgerFilter) ([]domain.LedgerEntry, error)
}

// BurnRepository persists burn transactions. AdvanceStatus is a
// compare-and-set on the current status so exactly one caller wins a
// transition under concurrency.
type BurnRepository interface {
	Create(ctx context.Context, tx domain.BurnTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.BurnTransaction, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) error
	SetBiometricHash(ctx context.Context, id uuid.UUID, hash string, at time.Time) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.BurnTransaction, error)
}

// BalanceRepository tracks per-user asset balances debited by burns and
// credited back exactly once on recovery.
type BalanceRepository interface {
	Get(ctx context.Context, userID, assetID string) (int64, error)
	Credit(ctx context.Context, userID, assetID string, amount int64, at time.Time) error
	// Debit fails with domain.ErrInsufficientFunds when the balance
	// cannot cover the amount.
	Debit(ctx context.Context, userID, assetID string, amount int64, at time.Time) error
}

// OutboxEvent is a ledger mirror event prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is the durable outbox row with retry/claim metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository buffers ledger entries destined for the external chain
// writer. Writes to the chain never block the primary operation; the
// worker claims, publishes and retries with a bounded budget.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
