package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type burnRepository struct {
	db *gorm.DB
}

func (r *burnRepository) Create(ctx context.Context, tx domain.BurnTransaction) error {
	row := burnFromDomain(tx)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *burnRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.BurnTransaction, error) {
	var row burnTransactionModel
	err := r.db.WithContext(ctx).First(&row, "burn_tx_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.BurnTransaction{}, fmt.Errorf("%w: burn transaction %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.BurnTransaction{}, err
	}
	return burnToDomain(row), nil
}

// AdvanceStatus is a compare-and-set on recovery_status: exactly one
// caller wins a transition under concurrency, which is what makes the
// recovered state (and its balance credit) happen once.
func (r *burnRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) error {
	if !domain.CanAdvanceRecoveryStatus(from, to) {
		return fmt.Errorf("%w: recovery status %s -> %s", domain.ErrPolicyBlocked, from, to)
	}
	updates := map[string]any{
		"recovery_status": to,
		"updated_at":      at,
	}
	if to == domain.RecoveryStatusRecovered {
		updates["recovered_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&burnTransactionModel{}).
		Where("burn_tx_id = ?", id).
		Where("recovery_status = ?", from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: burn transaction not in status %s", domain.ErrPolicyBlocked, from)
	}
	return nil
}

func (r *burnRepository) SetBiometricHash(ctx context.Context, id uuid.UUID, hash string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&burnTransactionModel{}).
		Where("burn_tx_id = ?", id).
		Updates(map[string]any{
			"biometric_hash": hash,
			"updated_at":     at,
		}).Error
}

func (r *burnRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.BurnTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []burnTransactionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.BurnTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, burnToDomain(row))
	}
	return out, nil
}

type balanceRepository struct {
	db *gorm.DB
}

func (r *balanceRepository) Get(ctx context.Context, userID, assetID string) (int64, error) {
	var row assetBalanceModel
	err := r.db.WithContext(ctx).First(&row, "user_id = ? AND asset_id = ?", userID, assetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Balance, nil
}

func (r *balanceRepository) Credit(ctx context.Context, userID, assetID string, amount int64, at time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", domain.ErrInvalidInput)
	}
	row := assetBalanceModel{
		UserID:    userID,
		AssetID:   assetID,
		Balance:   amount,
		UpdatedAt: at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "asset_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("asset_balances.balance + ?", amount),
			"updated_at": at,
		}),
	}).Create(&row).Error
}

func (r *balanceRepository) Debit(ctx context.Context, userID, assetID string, amount int64, at time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount must be positive", domain.ErrInvalidInput)
	}
	res := r.db.WithContext(ctx).Model(&assetBalanceModel{}).
		Where("user_id = ? AND asset_id = ?", userID, assetID).
		Where("balance >= ?", amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d of asset %s for user %s", domain.ErrInsufficientFunds, amount, assetID, userID)
	}
	return nil
}
