package models

import (
	"context"
	"errors"
	"time"

	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// TransferRecord is one transfer-out batch: a screenshot proof plus
// the set of settlements it paid for.
type TransferRecord struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ImageData string    `gorm:"type:longtext" json:"imageData"`
	Note      string    `gorm:"type:text" json:"note"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type TransferSettlement struct {
	ID               int `gorm:"primary_key" json:"id"`
	TransferRecordId int `gorm:"not null;uniqueIndex:uniq_transfer_settlement" json:"transferRecordId"`
	SettlementId     int `gorm:"index;not null;uniqueIndex:uniq_transfer_settlement" json:"settlementId"`
}

var ErrDuplicateTransferLink = errors.New("同一笔转账不能重复关联相同订单")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

type NewTransferRecord struct {
	SettlementIds []int  `json:"settlementIds" binding:"required,min=1"`
	ImageData     string `json:"imageData" binding:"required"`
	Note          string `json:"note"`
}

// CreateTransferRecord stores the screenshot, links the chosen
// settlements and flips them to 已转, all in one transaction.
func CreateTransferRecord(ctx context.Context, input NewTransferRecord) (TransferRecord, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	var record TransferRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record = TransferRecord{
			ImageData: input.ImageData,
			Note:      input.Note,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		links := make([]TransferSettlement, 0, len(input.SettlementIds))
		for _, settlementId := range input.SettlementIds {
			links = append(links, TransferSettlement{
				TransferRecordId: record.ID,
				SettlementId:     settlementId,
			})
		}
		if err := tx.Create(&links).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ErrDuplicateTransferLink
			}
			return err
		}

		return tx.Model(&Settlement{}).
			Where("id IN ?", input.SettlementIds).
			Update("transfer_status", TransferStatusTransferred).Error
	})
	if err != nil {
		config.LogError(logger, "models", "CreateTransferRecord", "create", input.SettlementIds, err)
		return TransferRecord{}, err
	}
	return record, nil
}

func GetTransferRecordsBySettlementId(ctx context.Context, settlementId int) ([]TransferRecord, error) {
	db := config.GetDB()

	var records []TransferRecord
	err := db.WithContext(ctx).
		Joins("JOIN transfer_settlements ON transfer_settlements.transfer_record_id = transfer_records.id").
		Where("transfer_settlements.settlement_id = ?", settlementId).
		Order("transfer_records.created_at DESC").
		Find(&records).Error
	return records, err
}

func GetUntransferredSettlements(ctx context.Context) ([]Settlement, error) {
	db := config.GetDB()

	var settlements []Settlement
	err := db.WithContext(ctx).
		Scopes(ScopeTransferUnset).
		Order("order_date DESC, id DESC").
		Find(&settlements).Error
	return settlements, err
}

// DeleteTransferRecord removes a transfer batch and rolls the linked
// settlements back to 未转 unless another surviving record still
// covers them.
func DeleteTransferRecord(ctx context.Context, id int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var links []TransferSettlement
		if err := tx.Where("transfer_record_id = ?", id).Find(&links).Error; err != nil {
			return err
		}

		result := tx.Delete(&TransferRecord{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
		if err := tx.Delete(&TransferSettlement{}, "transfer_record_id = ?", id).Error; err != nil {
			return err
		}

		for _, link := range links {
			var remaining int64
			err := tx.Model(&TransferSettlement{}).
				Where("settlement_id = ?", link.SettlementId).
				Count(&remaining).Error
			if err != nil {
				return err
			}
			if remaining == 0 {
				err = tx.Model(&Settlement{}).
					Where("id = ?", link.SettlementId).
					Update("transfer_status", TransferStatusPending).Error
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil && err != utils.ErrorRecordNotFound {
		config.LogError(logger, "models", "DeleteTransferRecord", "delete", id, err)
	}
	return err
}
