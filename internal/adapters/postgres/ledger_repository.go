package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

// Append inserts only; there is deliberately no update or delete path
// for ledger rows beyond the status transition below.
func (r *ledgerRepository) Append(ctx context.Context, entry domain.LedgerEntry) error {
	row := ledgerFromDomain(entry)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *ledgerRepository) UpdateStatus(ctx context.Context, transactionID uuid.UUID, from, to string, at time.Time) error {
	if !domain.CanTransitionLedgerStatus(from, to) {
		return fmt.Errorf("%w: ledger status %s -> %s", domain.ErrPolicyBlocked, from, to)
	}
	res := r.db.WithContext(ctx).Model(&ledgerEntryModel{}).
		Where("transaction_id = ?", transactionID).
		Where("status = ?", from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: ledger entry %s in status %s", domain.ErrNotFound, transactionID, from)
	}
	return nil
}

func (r *ledgerRepository) GetByID(ctx context.Context, transactionID uuid.UUID) (domain.LedgerEntry, error) {
	var row ledgerEntryModel
	err := r.db.WithContext(ctx).First(&row, "transaction_id = ?", transactionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.LedgerEntry{}, fmt.Errorf("%w: ledger entry %s", domain.ErrNotFound, transactionID)
	}
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return ledgerToDomain(row), nil
}

func (r *ledgerRepository) List(ctx context.Context, filter ports.LedgerFilter) ([]domain.LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Model(&ledgerEntryModel{}).
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset)
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var rows []ledgerEntryModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, ledgerToDomain(row))
	}
	return out, nil
}
