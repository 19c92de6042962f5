package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaultline/trustengine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type deviceRepository struct {
	db *gorm.DB
}

func (r *deviceRepository) GetByID(ctx context.Context, deviceID string) (domain.Device, error) {
	var row deviceModel
	err := r.db.WithContext(ctx).First(&row, "device_id = ?", deviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Device{}, fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	if err != nil {
		return domain.Device{}, err
	}
	return deviceToDomain(row), nil
}

func (r *deviceRepository) GetByFingerprint(ctx context.Context, fingerprint string) (domain.Device, error) {
	var row deviceModel
	err := r.db.WithContext(ctx).First(&row, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Device{}, fmt.Errorf("%w: fingerprint", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Device{}, err
	}
	return deviceToDomain(row), nil
}

func (r *deviceRepository) GetByLastIP(ctx context.Context, ip string) (domain.Device, error) {
	var row deviceModel
	err := r.db.WithContext(ctx).
		Where("last_ip = ?", ip).
		Order("last_seen DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Device{}, fmt.Errorf("%w: device for ip", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Device{}, err
	}
	return deviceToDomain(row), nil
}

func (r *deviceRepository) Upsert(ctx context.Context, device domain.Device) (domain.Device, error) {
	row := deviceFromDomain(device)
	row.UpdatedAt = device.LastSeen
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trust_score", "last_seen", "last_ip", "is_current_device",
			"os", "browser", "device_type", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return domain.Device{}, err
	}
	return deviceToDomain(row), nil
}

func (r *deviceRepository) List(ctx context.Context, limit, offset int) ([]domain.Device, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []deviceModel
	err := r.db.WithContext(ctx).
		Order("last_seen DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Device, 0, len(rows))
	for _, row := range rows {
		out = append(out, deviceToDomain(row))
	}
	return out, nil
}
