package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
)

// Burn deliberately disables an asset balance. The caller receives the
// recovery key exactly once and must store it out of band; the engine
// retains only its hash, so a lost key is unrecoverable by design.
func (s *Service) Burn(ctx context.Context, req BurnRequest) (BurnResult, error) {
	if err := domain.ValidateBurnRequest(req.Amount, req.Reason); err != nil {
		return BurnResult{}, err
	}
	if req.UserID == "" {
		return BurnResult{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	recoveryKey, err := generateRecoveryKey()
	if err != nil {
		return BurnResult{}, fmt.Errorf("generate recovery key: %w", err)
	}
	keyHash, err := s.keyHasher.Hash(recoveryKey)
	if err != nil {
		return BurnResult{}, fmt.Errorf("hash recovery key: %w", err)
	}

	now := s.nowFn()
	id := uuid.New()
	tx := domain.BurnTransaction{
		ID:              id,
		UserID:          req.UserID,
		TxHash:          burnTxHash(id, req.UserID, req.Amount, now),
		BurnedAmount:    req.Amount,
		AssetID:         req.AssetID,
		LicenseID:       req.LicenseID,
		RecoveryStatus:  domain.RecoveryStatusBurned,
		RecoveryKeyHash: keyHash,
		Reason:          req.Reason,
		SecurityScore:   req.SessionTrustScore,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	balanceKey := "balance:" + req.UserID + ":" + req.AssetID
	s.keys.lock(balanceKey)
	err = s.balances.Debit(ctx, req.UserID, req.AssetID, req.Amount, now)
	s.keys.unlock(balanceKey)
	if err != nil {
		return BurnResult{}, fmt.Errorf("debit burned amount: %w", err)
	}

	if err := s.burns.Create(ctx, tx); err != nil {
		// Undo the debit: the burn record is the source of truth and it
		// was never written.
		s.keys.lock(balanceKey)
		creditErr := s.balances.Credit(ctx, req.UserID, req.AssetID, req.Amount, s.nowFn())
		s.keys.unlock(balanceKey)
		if creditErr != nil {
			s.logger.ErrorContext(ctx, "burn rollback credit failed",
				"module", "application",
				"layer", "service",
				"operation", "burn",
				"outcome", "failure",
				"burn_tx_id", id,
				"error", creditErr,
			)
		}
		return BurnResult{}, fmt.Errorf("create burn transaction: %w", err)
	}

	s.mustLedger(ctx, domain.ActionBurn, domain.LedgerStatusCompleted, req.AssetID, req.LicenseID, req.UserID, domain.BurnMetadata{
		BurnTxID: id.String(),
		UserID:   req.UserID,
		Amount:   req.Amount,
		TxHash:   tx.TxHash,
		Reason:   req.Reason,
	})
	return BurnResult{BurnTxID: id, TxHash: tx.TxHash, RecoveryKey: recoveryKey}, nil
}

// StartRecovery opens the biometric verification window for a burn.
// The verification method is selected from the requesting session's
// risk, not randomly: riskier sessions must pass combined verification.
// Safe to retry; a transaction already in recovery_pending just gets a
// fresh session.
func (s *Service) StartRecovery(ctx context.Context, req StartRecoveryRequest) (StartRecoveryResult, error) {
	if err := domain.ValidateRecoveryKeyFormat(req.RecoveryKey); err != nil {
		return StartRecoveryResult{}, err
	}

	tx, err := s.burns.GetByID(ctx, req.BurnTxID)
	if err != nil {
		return StartRecoveryResult{}, err
	}
	if tx.RecoveryStatus == domain.RecoveryStatusRecovered {
		return StartRecoveryResult{}, domain.ErrAlreadyRecovered
	}
	if err := s.keyHasher.Compare(tx.RecoveryKeyHash, req.RecoveryKey); err != nil {
		return StartRecoveryResult{}, fmt.Errorf("%w: key mismatch", domain.ErrInvalidRecoveryKey)
	}

	now := s.nowFn()
	if tx.RecoveryStatus == domain.RecoveryStatusBurned {
		burnKey := "burn:" + tx.ID.String()
		s.keys.lock(burnKey)
		err = s.burns.AdvanceStatus(ctx, tx.ID, domain.RecoveryStatusBurned, domain.RecoveryStatusPending, now)
		s.keys.unlock(burnKey)
		if err != nil && !errors.Is(err, domain.ErrPolicyBlocked) {
			return StartRecoveryResult{}, fmt.Errorf("advance to recovery_pending: %w", err)
		}
	}

	method := domain.VerificationMethodForTrust(req.SessionTrustScore)
	sessionID := uuid.New()
	expiresAt := now.Add(s.cfg.RecoverySessionTTL)
	if err := s.sessions.Put(ctx, sessionID, ports.RecoverySession{
		SessionID: sessionID,
		BurnTxID:  tx.ID,
		UserID:    tx.UserID,
		Method:    method,
		ExpiresAt: expiresAt,
	}, s.cfg.RecoverySessionTTL); err != nil {
		return StartRecoveryResult{}, fmt.Errorf("%w: persist recovery session: %v", domain.ErrExternalService, err)
	}

	token, err := s.signer.Sign(ports.RecoveryClaims{
		SessionID: sessionID,
		BurnTxID:  tx.ID,
		UserID:    tx.UserID,
		Method:    method,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return StartRecoveryResult{}, fmt.Errorf("sign recovery session token: %w", err)
	}

	s.mustLedger(ctx, domain.ActionRecoveryStart, domain.LedgerStatusPending, tx.AssetID, tx.LicenseID, tx.UserID, domain.RecoveryMetadata{
		BurnTxID:           tx.ID.String(),
		SessionID:          sessionID.String(),
		VerificationMethod: method,
	})
	return StartRecoveryResult{
		SessionID:                  sessionID,
		SessionToken:               token,
		RequiredVerificationMethod: method,
	}, nil
}

// CompleteVerification scores the biometric sample against the
// acceptance threshold. Below threshold (or a verifier timeout) the
// transaction stays recovery_pending and the attempt may be retried; at
// or above it the transaction becomes recovered and the burned amount is
// restored exactly once. A transaction already recovered fails with
// ErrAlreadyRecovered and never re-credits.
func (s *Service) CompleteVerification(ctx context.Context, req CompleteVerificationRequest) (VerificationResult, error) {
	claims, err := s.signer.ParseAndValidate(req.SessionToken)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("%w: recovery session token: %v", domain.ErrInvalidInput, err)
	}
	if claims.SessionID != req.SessionID || claims.BurnTxID != req.BurnTxID {
		return VerificationResult{}, fmt.Errorf("%w: recovery session token does not match this recovery", domain.ErrInvalidInput)
	}

	tx, err := s.burns.GetByID(ctx, req.BurnTxID)
	if err != nil {
		return VerificationResult{}, err
	}
	switch tx.RecoveryStatus {
	case domain.RecoveryStatusRecovered:
		return VerificationResult{}, domain.ErrAlreadyRecovered
	case domain.RecoveryStatusPending:
	default:
		return VerificationResult{}, fmt.Errorf("%w: recovery has not been started", domain.ErrPolicyBlocked)
	}

	throttleKey := "verify:" + tx.ID.String()
	state, err := s.throttle.Get(ctx, throttleKey)
	if err == nil && state.LockedUntil != nil && state.LockedUntil.After(s.nowFn()) {
		return VerificationResult{}, fmt.Errorf("%w: verification attempts exhausted until %s", domain.ErrRateLimited, state.LockedUntil.Format(time.RFC3339))
	}

	session, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("%w: recovery session lookup: %v", domain.ErrExternalService, err)
	}
	if session == nil || session.BurnTxID != tx.ID {
		return VerificationResult{}, fmt.Errorf("%w: recovery session", domain.ErrNotFound)
	}
	if session.Method != req.Sample.Method {
		return VerificationResult{}, fmt.Errorf("%w: expected %s verification", domain.ErrInvalidInput, session.Method)
	}

	score, verifyErr := s.verifyWithTimeout(ctx, req.Sample)
	if verifyErr != nil || score < s.cfg.VerificationThreshold {
		// A timed-out or failed verification never advances the state
		// machine; it costs one throttled attempt.
		if _, err := s.throttle.RecordFailure(ctx, throttleKey, s.nowFn(), s.cfg.VerificationFailThreshold, s.cfg.VerificationLockWindow); err != nil {
			s.logger.WarnContext(ctx, "verification throttle update failed",
				"module", "application",
				"layer", "service",
				"operation", "complete_verification",
				"outcome", "degraded",
				"error", err,
			)
		}
		s.mustLedger(ctx, domain.ActionRecoveryComplete, domain.LedgerStatusFailed, tx.AssetID, tx.LicenseID, tx.UserID, domain.RecoveryMetadata{
			BurnTxID:           tx.ID.String(),
			SessionID:          req.SessionID.String(),
			VerificationMethod: req.Sample.Method,
			Score:              score,
		})
		return VerificationResult{Success: false, Score: score}, nil
	}

	now := s.nowFn()
	burnKey := "burn:" + tx.ID.String()
	s.keys.lock(burnKey)
	err = s.burns.AdvanceStatus(ctx, tx.ID, domain.RecoveryStatusPending, domain.RecoveryStatusRecovered, now)
	s.keys.unlock(burnKey)
	if err != nil {
		// Losing the compare-and-set means a concurrent verification
		// already recovered the transaction.
		if errors.Is(err, domain.ErrPolicyBlocked) {
			return VerificationResult{}, domain.ErrAlreadyRecovered
		}
		return VerificationResult{}, fmt.Errorf("advance to recovered: %w", err)
	}

	if err := s.burns.SetBiometricHash(ctx, tx.ID, sampleHash(req.Sample), now); err != nil {
		s.logger.WarnContext(ctx, "biometric hash persist failed",
			"module", "application",
			"layer", "service",
			"operation", "complete_verification",
			"outcome", "degraded",
			"burn_tx_id", tx.ID,
			"error", err,
		)
	}

	balanceKey := "balance:" + tx.UserID + ":" + tx.AssetID
	s.keys.lock(balanceKey)
	creditErr := s.balances.Credit(ctx, tx.UserID, tx.AssetID, tx.BurnedAmount, now)
	s.keys.unlock(balanceKey)
	if creditErr != nil {
		// The state already advanced; surface the credit failure loudly
		// instead of retrying into a double credit.
		s.logger.ErrorContext(ctx, "balance restore failed after recovery",
			"module", "application",
			"layer", "service",
			"operation", "complete_verification",
			"outcome", "failure",
			"burn_tx_id", tx.ID,
			"error", creditErr,
		)
		return VerificationResult{}, fmt.Errorf("restore balance: %w", creditErr)
	}

	_ = s.throttle.Clear(ctx, throttleKey)
	_ = s.sessions.Delete(ctx, req.SessionID)

	recoveryTxID := uuid.New()
	s.mustLedger(ctx, domain.ActionRecoveryComplete, domain.LedgerStatusCompleted, tx.AssetID, tx.LicenseID, tx.UserID, domain.RecoveryMetadata{
		BurnTxID:           tx.ID.String(),
		SessionID:          req.SessionID.String(),
		VerificationMethod: req.Sample.Method,
		Score:              score,
		RecoveryTxID:       recoveryTxID.String(),
		RestoredAmount:     tx.BurnedAmount,
	})
	return VerificationResult{Success: true, Score: score, RecoveryTxID: recoveryTxID}, nil
}

// GetBurnTransaction reads one burn record for the UI query surface.
func (s *Service) GetBurnTransaction(ctx context.Context, id uuid.UUID) (domain.BurnTransaction, error) {
	return s.burns.GetByID(ctx, id)
}

// ListBurnTransactions pages a user's burn history for the UI.
func (s *Service) ListBurnTransactions(ctx context.Context, userID string, limit, offset int) ([]domain.BurnTransaction, error) {
	return s.burns.ListByUser(ctx, userID, limit, offset)
}

// GetBalance reads a user's current asset balance.
func (s *Service) GetBalance(ctx context.Context, userID, assetID string) (int64, error) {
	return s.balances.Get(ctx, userID, assetID)
}

func (s *Service) verifyWithTimeout(ctx context.Context, sample ports.BiometricSample) (int, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, s.cfg.BiometricTimeout)
	defer cancel()
	score, err := s.biometrics.Verify(verifyCtx, sample)
	if err != nil {
		return 0, err
	}
	return domain.ClampTrustScore(score), nil
}

func generateRecoveryKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return domain.FormatRecoveryKey(raw), nil
}

func burnTxHash(id uuid.UUID, userID string, amount int64, at time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%d", id, userID, amount, at.UnixNano()))
	return hex.EncodeToString(sum[:])
}

func sampleHash(sample ports.BiometricSample) string {
	sum := sha256.Sum256(append([]byte(sample.Method+"|"), sample.Payload...))
	return hex.EncodeToString(sum[:])
}
