package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type blacklistRepository struct {
	db *gorm.DB
}

func (r *blacklistRepository) Upsert(ctx context.Context, entry domain.BlacklistEntry) (domain.BlacklistEntry, error) {
	row := blacklistEntryModel{
		EntryKey:    entry.Key(),
		DeviceID:    entry.DeviceID,
		Fingerprint: entry.Fingerprint,
		Reason:      entry.Reason,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
		ExpiresAt:   entry.ExpiresAt,
	}
	// Re-blocking updates reason/expiry in place; created_at keeps the
	// original block time for audit.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return domain.BlacklistEntry{}, err
	}
	return blacklistToDomain(row), nil
}

func (r *blacklistRepository) Get(ctx context.Context, key string) (*domain.BlacklistEntry, error) {
	var row blacklistEntryModel
	err := r.db.WithContext(ctx).First(&row, "entry_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := blacklistToDomain(row)
	return &entry, nil
}

func (r *blacklistRepository) Delete(ctx context.Context, key string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&blacklistEntryModel{}, "entry_key = ?", key)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *blacklistRepository) List(ctx context.Context, activeOnly bool, now time.Time, limit, offset int) ([]domain.BlacklistEntry, error) {
	q := r.db.WithContext(ctx).Model(&blacklistEntryModel{}).Order("updated_at DESC")
	if activeOnly {
		q = q.Where("expires_at IS NULL OR expires_at > ?", now)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var rows []blacklistEntryModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BlacklistEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, blacklistToDomain(row))
	}
	return out, nil
}

type blockedIPRepository struct {
	db *gorm.DB
}

func (r *blockedIPRepository) Upsert(ctx context.Context, ip, reason string, now time.Time) error {
	row := blockedIPModel{
		IPAddress: ip,
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "updated_at"}),
	}).Create(&row).Error
}

func (r *blockedIPRepository) IsBlocked(ctx context.Context, ip string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&blockedIPModel{}).
		Where("ip_address = ?", ip).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *blockedIPRepository) List(ctx context.Context, limit, offset int) ([]ports.BlockedIP, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []blockedIPModel
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ports.BlockedIP, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.BlockedIP{
			IPAddress: row.IPAddress,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}
