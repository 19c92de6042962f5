package postgres

import (
	"encoding/json"

	"github.com/vaultline/trustengine/internal/domain"
)

func deviceToDomain(row deviceModel) domain.Device {
	return domain.Device{
		DeviceID:        row.DeviceID,
		Fingerprint:     row.Fingerprint,
		TrustScore:      row.TrustScore,
		FirstSeen:       row.FirstSeen,
		LastSeen:        row.LastSeen,
		LastIP:          row.LastIP,
		IsCurrentDevice: row.IsCurrentDevice,
		OS:              row.OS,
		Browser:         row.Browser,
		DeviceType:      row.DeviceType,
	}
}

func deviceFromDomain(device domain.Device) deviceModel {
	return deviceModel{
		DeviceID:        device.DeviceID,
		Fingerprint:     device.Fingerprint,
		TrustScore:      device.TrustScore,
		FirstSeen:       device.FirstSeen,
		LastSeen:        device.LastSeen,
		LastIP:          device.LastIP,
		IsCurrentDevice: device.IsCurrentDevice,
		OS:              device.OS,
		Browser:         device.Browser,
		DeviceType:      device.DeviceType,
	}
}

func blacklistToDomain(row blacklistEntryModel) domain.BlacklistEntry {
	return domain.BlacklistEntry{
		DeviceID:    row.DeviceID,
		Fingerprint: row.Fingerprint,
		Reason:      row.Reason,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		ExpiresAt:   row.ExpiresAt,
	}
}

func ledgerToDomain(row ledgerEntryModel) domain.LedgerEntry {
	entry := domain.LedgerEntry{
		TransactionID: row.TransactionID,
		Action:        row.Action,
		Status:        row.Status,
		Metadata:      json.RawMessage(row.Metadata),
		Timestamp:     row.Timestamp,
	}
	if row.AssetID != nil {
		entry.AssetID = *row.AssetID
	}
	if row.LicenseID != nil {
		entry.LicenseID = *row.LicenseID
	}
	return entry
}

func ledgerFromDomain(entry domain.LedgerEntry) ledgerEntryModel {
	row := ledgerEntryModel{
		TransactionID: entry.TransactionID,
		Action:        entry.Action,
		Status:        entry.Status,
		Metadata:      string(entry.Metadata),
		Timestamp:     entry.Timestamp,
	}
	if row.Metadata == "" {
		row.Metadata = "{}"
	}
	if entry.AssetID != "" {
		row.AssetID = &entry.AssetID
	}
	if entry.LicenseID != "" {
		row.LicenseID = &entry.LicenseID
	}
	return row
}

func burnToDomain(row burnTransactionModel) domain.BurnTransaction {
	return domain.BurnTransaction{
		ID:              row.ID,
		UserID:          row.UserID,
		TxHash:          row.TxHash,
		BurnedAmount:    row.BurnedAmount,
		AssetID:         row.AssetID,
		LicenseID:       row.LicenseID,
		RecoveryStatus:  row.RecoveryStatus,
		RecoveryKeyHash: row.RecoveryKeyHash,
		BiometricHash:   row.BiometricHash,
		Reason:          row.Reason,
		SecurityScore:   row.SecurityScore,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		RecoveredAt:     row.RecoveredAt,
	}
}

func burnFromDomain(tx domain.BurnTransaction) burnTransactionModel {
	return burnTransactionModel{
		ID:              tx.ID,
		UserID:          tx.UserID,
		TxHash:          tx.TxHash,
		BurnedAmount:    tx.BurnedAmount,
		AssetID:         tx.AssetID,
		LicenseID:       tx.LicenseID,
		RecoveryStatus:  tx.RecoveryStatus,
		RecoveryKeyHash: tx.RecoveryKeyHash,
		BiometricHash:   tx.BiometricHash,
		Reason:          tx.Reason,
		SecurityScore:   tx.SecurityScore,
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
		RecoveredAt:     tx.RecoveredAt,
	}
}
