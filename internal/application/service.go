package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
)

// Service is the device trust engine: device evaluation, blacklist
// lifecycle, chain analysis, countermeasures and burn/recovery, all
// writing to the shared append-only ledger.
type Service struct {
	cfg        Config
	logger     *slog.Logger
	devices    ports.DeviceRepository
	blacklist  ports.BlacklistRepository
	blockedIPs ports.BlockedIPRepository
	ledger     ports.LedgerRepository
	burns      ports.BurnRepository
	balances   ports.BalanceRepository
	outbox     ports.OutboxRepository
	sessions   ports.RecoverySessionStore
	throttle   ports.VerificationThrottle
	geo        ports.GeoResolver
	biometrics ports.BiometricVerifier
	hops       ports.HopProvider
	keyHasher  ports.RecoveryKeyHasher
	signer     ports.RecoveryTokenSigner
	keys       *keyMutex
	nowFn      func() time.Time
}

type Dependencies struct {
	Config     Config
	Logger     *slog.Logger
	Devices    ports.DeviceRepository
	Blacklist  ports.BlacklistRepository
	BlockedIPs ports.BlockedIPRepository
	Ledger     ports.LedgerRepository
	Burns      ports.BurnRepository
	Balances   ports.BalanceRepository
	Outbox     ports.OutboxRepository
	Sessions   ports.RecoverySessionStore
	Throttle   ports.VerificationThrottle
	Geo        ports.GeoResolver
	Biometrics ports.BiometricVerifier
	Hops       ports.HopProvider
	KeyHasher  ports.RecoveryKeyHasher
	Signer     ports.RecoveryTokenSigner
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        deps.Config.withDefaults(),
		logger:     logger,
		devices:    deps.Devices,
		blacklist:  deps.Blacklist,
		blockedIPs: deps.BlockedIPs,
		ledger:     deps.Ledger,
		burns:      deps.Burns,
		balances:   deps.Balances,
		outbox:     deps.Outbox,
		sessions:   deps.Sessions,
		throttle:   deps.Throttle,
		geo:        deps.Geo,
		biometrics: deps.Biometrics,
		hops:       deps.Hops,
		keyHasher:  deps.KeyHasher,
		signer:     deps.Signer,
		keys:       newKeyMutex(),
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// keyMutex serializes mutations per resource identifier so two concurrent
// sessions evaluating the same device cannot lose updates. Locks are
// held only for in-memory/persistence transitions, never across external
// calls.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[string]*keyLock)}
}

func (k *keyMutex) lock(key string) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()
	l.mu.Lock()
}

func (k *keyMutex) unlock(key string) {
	k.mu.Lock()
	l := k.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
	l.mu.Unlock()
}

// appendLedger writes one audit entry locally and mirrors it to the
// chain-writer outbox. Local appends are retried with backoff because
// audit completeness matters; the external write is always deferred to
// the outbox worker so it can never block the primary operation.
func (s *Service) appendLedger(ctx context.Context, action, status, assetID, licenseID, partitionKey string, metadata any) (uuid.UUID, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return uuid.Nil, err
	}
	entry := domain.LedgerEntry{
		TransactionID: uuid.New(),
		Action:        action,
		Status:        status,
		AssetID:       assetID,
		LicenseID:     licenseID,
		Metadata:      raw,
		Timestamp:     s.nowFn(),
	}

	var appendErr error
	backoff := s.cfg.LedgerRetryBackoff
	for attempt := 0; attempt < s.cfg.LedgerAppendRetries; attempt++ {
		if appendErr = s.ledger.Append(ctx, entry); appendErr == nil {
			break
		}
		if attempt+1 == s.cfg.LedgerAppendRetries {
			break
		}
		select {
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if appendErr != nil {
		s.logger.ErrorContext(ctx, "ledger append failed",
			"module", "application",
			"layer", "service",
			"operation", "ledger_append",
			"outcome", "failure",
			"action", action,
			"error", appendErr,
		)
		return uuid.Nil, appendErr
	}

	payload, _ := json.Marshal(map[string]any{
		"transaction_id": entry.TransactionID,
		"action":         entry.Action,
		"status":         entry.Status,
		"metadata":       json.RawMessage(raw),
		"timestamp":      entry.Timestamp,
	})
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "ledger." + action,
		PartitionKey: partitionKey,
		Payload:      payload,
		OccurredAt:   entry.Timestamp,
	}); err != nil {
		// The local entry is durable; mirroring will catch up on the
		// next append for this key or surface in worker metrics.
		s.logger.WarnContext(ctx, "ledger outbox enqueue failed",
			"module", "application",
			"layer", "service",
			"operation", "ledger_enqueue",
			"outcome", "failure",
			"action", action,
			"error", err,
		)
	}
	return entry.TransactionID, nil
}

// mustLedger appends an audit entry for a state change that already
// happened. Failures are logged, not propagated: a completed action is
// not rolled back because its audit write needed more retries.
func (s *Service) mustLedger(ctx context.Context, action, status, assetID, licenseID, partitionKey string, metadata any) uuid.UUID {
	id, err := s.appendLedger(ctx, action, status, assetID, licenseID, partitionKey, metadata)
	if err != nil {
		return uuid.Nil
	}
	return id
}
