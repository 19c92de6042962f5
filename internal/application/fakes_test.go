package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
)

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]domain.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[string]domain.Device)}
}

func (r *fakeDeviceRepo) GetByID(_ context.Context, deviceID string) (domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[deviceID]
	if !ok {
		return domain.Device{}, fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	return device, nil
}

func (r *fakeDeviceRepo) GetByFingerprint(_ context.Context, fingerprint string) (domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, device := range r.devices {
		if device.Fingerprint == fingerprint {
			return device, nil
		}
	}
	return domain.Device{}, fmt.Errorf("%w: fingerprint %s", domain.ErrNotFound, fingerprint)
}

func (r *fakeDeviceRepo) GetByLastIP(_ context.Context, ip string) (domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, device := range r.devices {
		if device.LastIP == ip {
			return device, nil
		}
	}
	return domain.Device{}, fmt.Errorf("%w: last ip %s", domain.ErrNotFound, ip)
}

func (r *fakeDeviceRepo) Upsert(_ context.Context, device domain.Device) (domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[device.DeviceID] = device
	return device, nil
}

func (r *fakeDeviceRepo) List(_ context.Context, _, _ int) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Device, 0, len(r.devices))
	for _, device := range r.devices {
		out = append(out, device)
	}
	return out, nil
}

type fakeBlacklistRepo struct {
	mu      sync.Mutex
	entries map[string]domain.BlacklistEntry
}

func newFakeBlacklistRepo() *fakeBlacklistRepo {
	return &fakeBlacklistRepo{entries: make(map[string]domain.BlacklistEntry)}
}

func (r *fakeBlacklistRepo) Upsert(_ context.Context, entry domain.BlacklistEntry) (domain.BlacklistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entry.Key()
	if existing, ok := r.entries[key]; ok {
		entry.CreatedAt = existing.CreatedAt
	}
	r.entries[key] = entry
	return entry, nil
}

func (r *fakeBlacklistRepo) Get(_ context.Context, key string) (*domain.BlacklistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	copied := entry
	return &copied, nil
}

func (r *fakeBlacklistRepo) Delete(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		return false, nil
	}
	delete(r.entries, key)
	return true, nil
}

func (r *fakeBlacklistRepo) List(_ context.Context, activeOnly bool, now time.Time, _, _ int) ([]domain.BlacklistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BlacklistEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if activeOnly && !entry.Active(now) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *fakeBlacklistRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type fakeBlockedIPRepo struct {
	mu  sync.Mutex
	ips map[string]ports.BlockedIP
}

func newFakeBlockedIPRepo() *fakeBlockedIPRepo {
	return &fakeBlockedIPRepo{ips: make(map[string]ports.BlockedIP)}
}

func (r *fakeBlockedIPRepo) Upsert(_ context.Context, ip, reason string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ips[ip] = ports.BlockedIP{IPAddress: ip, Reason: reason, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (r *fakeBlockedIPRepo) IsBlocked(_ context.Context, ip string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ips[ip]
	return ok, nil
}

func (r *fakeBlockedIPRepo) List(_ context.Context, _, _ int) ([]ports.BlockedIP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.BlockedIP, 0, len(r.ips))
	for _, rec := range r.ips {
		out = append(out, rec)
	}
	return out, nil
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
	failN   int
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{}
}

func (r *fakeLedgerRepo) Append(_ context.Context, entry domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failN > 0 {
		r.failN--
		return fmt.Errorf("ledger unavailable")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLedgerRepo) UpdateStatus(_ context.Context, transactionID uuid.UUID, from, to string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !domain.CanTransitionLedgerStatus(from, to) {
		return fmt.Errorf("%w: ledger status %s -> %s", domain.ErrPolicyBlocked, from, to)
	}
	for i, entry := range r.entries {
		if entry.TransactionID == transactionID && entry.Status == from {
			r.entries[i].Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: ledger entry %s in status %s", domain.ErrNotFound, transactionID, from)
}

func (r *fakeLedgerRepo) GetByID(_ context.Context, transactionID uuid.UUID) (domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.TransactionID == transactionID {
			return entry, nil
		}
	}
	return domain.LedgerEntry{}, fmt.Errorf("%w: ledger entry %s", domain.ErrNotFound, transactionID)
}

func (r *fakeLedgerRepo) List(_ context.Context, filter ports.LedgerFilter) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LedgerEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *fakeLedgerRepo) snapshot() []domain.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LedgerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *fakeLedgerRepo) countByAction(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entry := range r.entries {
		if entry.Action == action {
			n++
		}
	}
	return n
}

type fakeBurnRepo struct {
	mu    sync.Mutex
	burns map[uuid.UUID]domain.BurnTransaction
}

func newFakeBurnRepo() *fakeBurnRepo {
	return &fakeBurnRepo{burns: make(map[uuid.UUID]domain.BurnTransaction)}
}

func (r *fakeBurnRepo) Create(_ context.Context, tx domain.BurnTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.burns[tx.ID] = tx
	return nil
}

func (r *fakeBurnRepo) GetByID(_ context.Context, id uuid.UUID) (domain.BurnTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.burns[id]
	if !ok {
		return domain.BurnTransaction{}, fmt.Errorf("%w: burn %s", domain.ErrNotFound, id)
	}
	return tx, nil
}

func (r *fakeBurnRepo) AdvanceStatus(_ context.Context, id uuid.UUID, from, to string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !domain.CanAdvanceRecoveryStatus(from, to) {
		return fmt.Errorf("%w: recovery status %s -> %s", domain.ErrPolicyBlocked, from, to)
	}
	tx, ok := r.burns[id]
	if !ok {
		return fmt.Errorf("%w: burn %s", domain.ErrNotFound, id)
	}
	if tx.RecoveryStatus != from {
		return fmt.Errorf("%w: burn %s not in status %s", domain.ErrPolicyBlocked, id, from)
	}
	tx.RecoveryStatus = to
	tx.UpdatedAt = at
	if to == domain.RecoveryStatusRecovered {
		recoveredAt := at
		tx.RecoveredAt = &recoveredAt
	}
	r.burns[id] = tx
	return nil
}

func (r *fakeBurnRepo) SetBiometricHash(_ context.Context, id uuid.UUID, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.burns[id]
	if !ok {
		return fmt.Errorf("%w: burn %s", domain.ErrNotFound, id)
	}
	tx.BiometricHash = hash
	tx.UpdatedAt = at
	r.burns[id] = tx
	return nil
}

func (r *fakeBurnRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]domain.BurnTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BurnTransaction, 0)
	for _, tx := range r.burns {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

type fakeBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newFakeBalanceRepo() *fakeBalanceRepo {
	return &fakeBalanceRepo{balances: make(map[string]int64)}
}

func balanceKey(userID, assetID string) string { return userID + "|" + assetID }

func (r *fakeBalanceRepo) seed(userID, assetID string, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[balanceKey(userID, assetID)] = amount
}

func (r *fakeBalanceRepo) Get(_ context.Context, userID, assetID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[balanceKey(userID, assetID)], nil
}

func (r *fakeBalanceRepo) Credit(_ context.Context, userID, assetID string, amount int64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[balanceKey(userID, assetID)] += amount
	return nil
}

func (r *fakeBalanceRepo) Debit(_ context.Context, userID, assetID string, amount int64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := balanceKey(userID, assetID)
	if r.balances[key] < amount {
		return fmt.Errorf("%w: balance %d below %d", domain.ErrInsufficientFunds, r.balances[key], amount)
	}
	r.balances[key] -= amount
	return nil
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{}
}

func (r *fakeOutboxRepo) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) ClaimUnpublished(_ context.Context, _ int, _ string, _ time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) MarkPublished(_ context.Context, _ uuid.UUID, _ string, _ time.Time) error {
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(_ context.Context, _ uuid.UUID, _, _ string, _ time.Time) error {
	return nil
}

func (r *fakeOutboxRepo) MarkDeadLettered(_ context.Context, _ uuid.UUID, _, _ string, _ time.Time) error {
	return nil
}

func (r *fakeOutboxRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]ports.RecoverySession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]ports.RecoverySession)}
}

func (s *fakeSessionStore) Put(_ context.Context, sessionID uuid.UUID, session ports.RecoverySession, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
	return nil
}

func (s *fakeSessionStore) Get(_ context.Context, sessionID uuid.UUID) (*ports.RecoverySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := session
	return &copied, nil
}

func (s *fakeSessionStore) Delete(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

type fakeThrottle struct {
	mu     sync.Mutex
	states map[string]ports.ThrottleState
}

func newFakeThrottle() *fakeThrottle {
	return &fakeThrottle{states: make(map[string]ports.ThrottleState)}
}

func (t *fakeThrottle) Get(_ context.Context, key string) (ports.ThrottleState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[key], nil
}

func (t *fakeThrottle) RecordFailure(_ context.Context, key string, now time.Time, threshold int, lockWindow time.Duration) (ports.ThrottleState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := t.states[key]
	state.FailedCount++
	if state.FailedCount >= threshold {
		lockedUntil := now.Add(lockWindow)
		state.LockedUntil = &lockedUntil
	}
	t.states[key] = state
	return state, nil
}

func (t *fakeThrottle) Clear(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, key)
	return nil
}

type fakeGeoResolver struct {
	info ports.GeoInfo
	err  error
}

func (g *fakeGeoResolver) Resolve(_ context.Context, _ string) (ports.GeoInfo, error) {
	if g.err != nil {
		return ports.GeoInfo{}, g.err
	}
	return g.info, nil
}

type fakeVerifier struct {
	verifyFn func(ctx context.Context, sample ports.BiometricSample) (int, error)
}

func (v *fakeVerifier) Verify(ctx context.Context, sample ports.BiometricSample) (int, error) {
	if v.verifyFn == nil {
		return 100, nil
	}
	return v.verifyFn(ctx, sample)
}

type fakeHopProvider struct {
	hops []ports.RawHop
	err  error
}

func (p *fakeHopProvider) Hops(_ context.Context, _ domain.SessionContext) ([]ports.RawHop, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.hops, nil
}

type fakeKeyHasher struct{}

func (fakeKeyHasher) Hash(key string) (string, error) { return "h!" + key, nil }

func (fakeKeyHasher) Compare(hash, key string) error {
	if hash != "h!"+key {
		return fmt.Errorf("%w: key mismatch", domain.ErrInvalidRecoveryKey)
	}
	return nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(claims ports.RecoveryClaims) (string, error) {
	return "token|" + claims.SessionID.String() + "|" + claims.BurnTxID.String(), nil
}

func (fakeSigner) ParseAndValidate(token string) (ports.RecoveryClaims, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 3 || parts[0] != "token" {
		return ports.RecoveryClaims{}, fmt.Errorf("malformed token")
	}
	sessionID, err := uuid.Parse(parts[1])
	if err != nil {
		return ports.RecoveryClaims{}, fmt.Errorf("token session id: %w", err)
	}
	burnTxID, err := uuid.Parse(parts[2])
	if err != nil {
		return ports.RecoveryClaims{}, fmt.Errorf("token burn tx id: %w", err)
	}
	return ports.RecoveryClaims{SessionID: sessionID, BurnTxID: burnTxID}, nil
}

// fixture bundles the service under test with every fake it was wired to.
type fixture struct {
	svc        *Service
	devices    *fakeDeviceRepo
	blacklist  *fakeBlacklistRepo
	blockedIPs *fakeBlockedIPRepo
	ledger     *fakeLedgerRepo
	burns      *fakeBurnRepo
	balances   *fakeBalanceRepo
	outbox     *fakeOutboxRepo
	sessions   *fakeSessionStore
	throttle   *fakeThrottle
	verifier   *fakeVerifier
	hops       *fakeHopProvider
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		devices:    newFakeDeviceRepo(),
		blacklist:  newFakeBlacklistRepo(),
		blockedIPs: newFakeBlockedIPRepo(),
		ledger:     newFakeLedgerRepo(),
		burns:      newFakeBurnRepo(),
		balances:   newFakeBalanceRepo(),
		outbox:     newFakeOutboxRepo(),
		sessions:   newFakeSessionStore(),
		throttle:   newFakeThrottle(),
		verifier:   &fakeVerifier{},
		hops:       &fakeHopProvider{},
	}
	f.svc = NewService(Dependencies{
		Config:     cfg,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Devices:    f.devices,
		Blacklist:  f.blacklist,
		BlockedIPs: f.blockedIPs,
		Ledger:     f.ledger,
		Burns:      f.burns,
		Balances:   f.balances,
		Outbox:     f.outbox,
		Sessions:   f.sessions,
		Throttle:   f.throttle,
		Geo:        &fakeGeoResolver{info: ports.GeoInfo{Country: "Iceland", City: "Reykjavik", ISP: "TestNet"}},
		Biometrics: f.verifier,
		Hops:       f.hops,
		KeyHasher:  fakeKeyHasher{},
		Signer:     fakeSigner{},
	})
	return f
}
