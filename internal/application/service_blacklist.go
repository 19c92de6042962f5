package application

import (
	"context"
	"fmt"

	"github.com/vaultline/trustengine/internal/domain"
)

// Block upserts a blacklist entry for the device. Re-blocking an already
// blacklisted device updates reason/expiry; it never duplicates. The
// state transition happens under the per-key lock, the ledger write after
// release.
func (s *Service) Block(ctx context.Context, req BlockRequest) (domain.BlacklistEntry, error) {
	now := s.nowFn()
	entry := domain.BlacklistEntry{
		DeviceID:    req.DeviceID,
		Fingerprint: req.Fingerprint,
		Reason:      req.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := domain.ValidateBlacklistEntry(entry); err != nil {
		return domain.BlacklistEntry{}, err
	}

	key := entry.Key()
	s.keys.lock("blacklist:" + key)
	entry, err := s.blacklist.Upsert(ctx, entry)
	s.keys.unlock("blacklist:" + key)
	if err != nil {
		return domain.BlacklistEntry{}, fmt.Errorf("upsert blacklist entry: %w", err)
	}

	s.mustLedger(ctx, domain.ActionDeviceBlock, domain.LedgerStatusCompleted, "", "", key, domain.BlockMetadata{
		DeviceID:    entry.DeviceID,
		Fingerprint: entry.Fingerprint,
		Reason:      entry.Reason,
		ExpiresAt:   entry.ExpiresAt,
	})
	return entry, nil
}

// Unblock removes the entry if present. Absence is not an error; the
// call is idempotent and reports whether anything was removed.
func (s *Service) Unblock(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: device id or fingerprint is required", domain.ErrInvalidInput)
	}

	s.keys.lock("blacklist:" + key)
	removed, err := s.blacklist.Delete(ctx, key)
	s.keys.unlock("blacklist:" + key)
	if err != nil {
		return false, fmt.Errorf("delete blacklist entry: %w", err)
	}
	if removed {
		s.mustLedger(ctx, domain.ActionDeviceUnblock, domain.LedgerStatusCompleted, "", "", key, domain.BlockMetadata{
			DeviceID: key,
			Reason:   "unblocked",
		})
	}
	return removed, nil
}

// IsBlocked reports whether an active (non-expired) entry exists.
// Expired entries read as absent without being eagerly deleted.
func (s *Service) IsBlocked(ctx context.Context, key string) (bool, error) {
	entry, err := s.blacklist.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	return entry.Active(s.nowFn()), nil
}

// ListBlacklist pages blacklist entries for the UI query surface.
func (s *Service) ListBlacklist(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.BlacklistEntry, error) {
	return s.blacklist.List(ctx, activeOnly, s.nowFn(), limit, offset)
}

// SweepExpiredBlacklist removes entries expired before now. IsBlocked is
// already consistent without it; the sweep only reclaims storage. It
// checks cancellation between deletions so a cancelled sweep stops clean.
// A sweep that removed anything leaves one summary entry in the ledger so
// the removals stay auditable.
func (s *Service) SweepExpiredBlacklist(ctx context.Context) (int, error) {
	now := s.nowFn()
	entries, err := s.blacklist.List(ctx, false, now, 0, 0)
	if err != nil {
		return 0, err
	}
	var removedKeys []string
	for _, entry := range entries {
		if entry.Active(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return len(removedKeys), err
		}
		key := entry.Key()
		s.keys.lock("blacklist:" + key)
		ok, err := s.blacklist.Delete(ctx, key)
		s.keys.unlock("blacklist:" + key)
		if err != nil {
			return len(removedKeys), err
		}
		if ok {
			removedKeys = append(removedKeys, key)
		}
	}
	if len(removedKeys) > 0 {
		s.mustLedger(ctx, domain.ActionBlacklistSweep, domain.LedgerStatusCompleted, "", "", "blacklist", domain.SweepMetadata{
			RemovedCount: len(removedKeys),
			RemovedKeys:  removedKeys,
		})
	}
	return len(removedKeys), nil
}

func (s *Service) isBlockedEither(ctx context.Context, deviceID, fingerprint string) (bool, error) {
	now := s.nowFn()
	for _, key := range []string{deviceID, fingerprint} {
		if key == "" {
			continue
		}
		entry, err := s.blacklist.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if entry != nil && entry.Active(now) {
			return true, nil
		}
	}
	return false, nil
}
