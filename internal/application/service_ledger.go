package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
)

// ListLedgerEntries pages the audit ledger for the UI, filterable by
// action and status. The ledger is read-only to callers.
func (s *Service) ListLedgerEntries(ctx context.Context, filter ports.LedgerFilter) ([]domain.LedgerEntry, error) {
	return s.ledger.List(ctx, filter)
}

// GetLedgerEntry reads one entry by transaction id.
func (s *Service) GetLedgerEntry(ctx context.Context, transactionID uuid.UUID) (domain.LedgerEntry, error) {
	return s.ledger.GetByID(ctx, transactionID)
}

// ConfirmLedgerEntry advances an entry's status, typically when the
// external chain writer acknowledges the mirrored record. Only the
// transitions allowed by domain.CanTransitionLedgerStatus succeed.
func (s *Service) ConfirmLedgerEntry(ctx context.Context, transactionID uuid.UUID, from, to string) error {
	return s.ledger.UpdateStatus(ctx, transactionID, from, to, s.nowFn())
}
