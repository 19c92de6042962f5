package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
)

// Evaluate looks up or creates the session's device, recomputes its
// trust score from the injected signals and updates last-seen state.
// It is deterministic for identical signal inputs and never fails for a
// well-formed session: a missing fingerprint yields a fresh device with
// a neutral starting score.
func (s *Service) Evaluate(ctx context.Context, session domain.SessionContext) (domain.DeviceSecuritySnapshot, error) {
	now := s.nowFn()
	fingerprint := strings.TrimSpace(session.Fingerprint)

	signals := session.Signals
	blocked, err := s.isBlockedEither(ctx, session.DeviceID, fingerprint)
	if err != nil {
		s.logger.WarnContext(ctx, "blacklist lookup degraded during evaluation",
			"module", "application",
			"layer", "service",
			"operation", "evaluate",
			"outcome", "degraded",
			"error", err,
		)
	}
	signals.Blacklisted = signals.Blacklisted || blocked

	lockKey := "device:" + fingerprint
	if fingerprint == "" {
		lockKey = "device:session:" + session.SessionID
	}
	s.keys.lock(lockKey)

	device, err := s.lookupOrCreateDevice(ctx, session, fingerprint, now)
	if err != nil {
		s.keys.unlock(lockKey)
		return domain.DeviceSecuritySnapshot{}, err
	}

	device.TrustScore = domain.TrustScoreFromSignals(signals)
	device.LastSeen = now
	device.LastIP = session.IPAddress
	device.IsCurrentDevice = true
	if session.DeviceOS != "" {
		device.OS = session.DeviceOS
	}
	if session.DeviceType != "" {
		device.DeviceType = session.DeviceType
	}

	device, err = s.devices.Upsert(ctx, device)
	s.keys.unlock(lockKey)
	if err != nil {
		return domain.DeviceSecuritySnapshot{}, fmt.Errorf("upsert device: %w", err)
	}

	snapshot := domain.DeviceSecuritySnapshot{
		Device:            device,
		IsRemoteAccess:    signals.RemoteAccess(),
		Indicators:        signals.Indicators(),
		IsBlacklisted:     signals.Blacklisted,
		BlacklistEligible: domain.BlacklistEligible(device.TrustScore, s.cfg.BlacklistTrustThreshold),
		EvaluatedAt:       now,
	}

	s.mustLedger(ctx, domain.ActionDeviceSnapshot, domain.LedgerStatusCompleted, "", "", device.DeviceID, domain.DeviceSnapshotMetadata{
		DeviceID:       device.DeviceID,
		Fingerprint:    device.Fingerprint,
		TrustScore:     device.TrustScore,
		IsRemoteAccess: snapshot.IsRemoteAccess,
		Indicators:     snapshot.Indicators,
	})
	return snapshot, nil
}

func (s *Service) lookupOrCreateDevice(ctx context.Context, session domain.SessionContext, fingerprint string, now time.Time) (domain.Device, error) {
	if fingerprint != "" {
		device, err := s.devices.GetByFingerprint(ctx, fingerprint)
		if err == nil {
			return device, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Device{}, fmt.Errorf("lookup device: %w", err)
		}
	}

	deviceID := session.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	return domain.Device{
		DeviceID:    deviceID,
		Fingerprint: fingerprint,
		TrustScore:  domain.NeutralTrustScore,
		FirstSeen:   now,
		LastSeen:    now,
		LastIP:      session.IPAddress,
		OS:          session.DeviceOS,
		Browser:     session.UserAgent,
		DeviceType:  session.DeviceType,
	}, nil
}

// RunSecurityScan is the top-level check: evaluate the device, and if
// indirect access is suspected, capture and backtrace the connection
// chain; if policy thresholds are crossed, execute countermeasures.
// Every stage persists its own ledger entry, so a scan cancelled between
// stages leaves no half-recorded sub-action.
func (s *Service) RunSecurityScan(ctx context.Context, session domain.SessionContext) (SecurityCheckResult, error) {
	snapshot, err := s.Evaluate(ctx, session)
	if err != nil {
		return SecurityCheckResult{}, err
	}
	result := SecurityCheckResult{Snapshot: snapshot}
	if !snapshot.IsRemoteAccess {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	chain, err := s.CaptureChain(ctx, session)
	if err != nil {
		// Chain capture is an external capability; its failure degrades
		// the scan instead of failing the check.
		s.logger.WarnContext(ctx, "chain capture unavailable",
			"module", "application",
			"layer", "service",
			"operation", "run_security_scan",
			"outcome", "degraded",
			"session_id", session.SessionID,
			"error", err,
		)
		s.mustLedger(ctx, domain.ActionRemoteConnectionScan, domain.LedgerStatusFailed, "", "", session.SessionID, domain.ScanMetadata{
			SessionID:  session.SessionID,
			DeviceID:   snapshot.Device.DeviceID,
			Suspicious: true,
		})
		return result, nil
	}
	result.Chain = &chain

	s.mustLedger(ctx, domain.ActionRemoteConnectionScan, domain.LedgerStatusAlert, "", "", session.SessionID, domain.ScanMetadata{
		SessionID:  session.SessionID,
		DeviceID:   snapshot.Device.DeviceID,
		ChainDepth: len(chain.Nodes),
		Suspicious: true,
	})
	if err := ctx.Err(); err != nil {
		return result, err
	}

	backtrace, err := s.Backtrace(ctx, chain)
	if err != nil {
		return result, err
	}
	result.Backtrace = &backtrace
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if snapshot.BlacklistEligible || snapshot.IsBlacklisted {
		countermeasures, err := s.respond(ctx, session, snapshot, &chain, &backtrace)
		if err != nil {
			return result, err
		}
		result.Countermeasures = &countermeasures
	}
	return result, nil
}

// GetDevice returns one registry entry for the UI query surface.
func (s *Service) GetDevice(ctx context.Context, deviceID string) (domain.Device, error) {
	return s.devices.GetByID(ctx, deviceID)
}

// ListDevices pages through the registry for the UI query surface.
func (s *Service) ListDevices(ctx context.Context, limit, offset int) ([]domain.Device, error) {
	return s.devices.List(ctx, limit, offset)
}
