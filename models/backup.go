package models

import (
	"context"

	"github.com/Evan-ql/shuadan/config"
	"gorm.io/gorm"
)

// BackupData is the JSON backup envelope. Ids are preserved so the
// transfer links survive a round trip.
type BackupData struct {
	Settlements         []Settlement         `json:"settlements"`
	TransferRecords     []TransferRecord     `json:"transferRecords"`
	TransferSettlements []TransferSettlement `json:"transferSettlements"`
}

type ImportStats struct {
	Settlements         int `json:"settlements"`
	TransferRecords     int `json:"transferRecords"`
	TransferSettlements int `json:"transferSettlements"`
}

func ExportAllData(ctx context.Context) (BackupData, error) {
	db := config.GetDB()

	data := BackupData{
		Settlements:         []Settlement{},
		TransferRecords:     []TransferRecord{},
		TransferSettlements: []TransferSettlement{},
	}
	if err := db.WithContext(ctx).Order("id ASC").Find(&data.Settlements).Error; err != nil {
		return data, err
	}
	if err := db.WithContext(ctx).Order("id ASC").Find(&data.TransferRecords).Error; err != nil {
		return data, err
	}
	if err := db.WithContext(ctx).Order("id ASC").Find(&data.TransferSettlements).Error; err != nil {
		return data, err
	}
	return data, nil
}

// ImportAllData replaces the whole dataset with the backup contents.
// Existing rows are wiped first inside the same transaction.
func ImportAllData(ctx context.Context, data BackupData) (ImportStats, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	stats := ImportStats{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&TransferSettlement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&TransferRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&Settlement{}).Error; err != nil {
			return err
		}

		if len(data.Settlements) > 0 {
			if err := tx.CreateInBatches(data.Settlements, 200).Error; err != nil {
				return err
			}
		}
		if len(data.TransferRecords) > 0 {
			if err := tx.CreateInBatches(data.TransferRecords, 50).Error; err != nil {
				return err
			}
		}
		if len(data.TransferSettlements) > 0 {
			if err := tx.CreateInBatches(data.TransferSettlements, 200).Error; err != nil {
				return err
			}
		}

		stats.Settlements = len(data.Settlements)
		stats.TransferRecords = len(data.TransferRecords)
		stats.TransferSettlements = len(data.TransferSettlements)
		return nil
	})
	if err != nil {
		config.LogError(logger, "models", "ImportAllData", "transaction", nil, err)
		return ImportStats{}, err
	}
	return stats, nil
}
