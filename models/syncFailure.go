package models

import (
	"context"
	"time"

	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/utils"
	"gorm.io/gorm"
)

// SyncFailure is one durable entry in the upload failure queue.
type SyncFailure struct {
	ID           int               `gorm:"primary_key" json:"id"`
	SettlementId int               `gorm:"index;not null" json:"settlementId"`
	FailReason   string            `gorm:"type:text" json:"failReason"`
	SyncType     SyncType          `gorm:"size:20" json:"syncType"`
	Status       SyncFailureStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

// CreateSyncFailure records an upload failure. At most one pending
// row may exist per settlement: when one is already pending, its
// reason and type are refreshed in place instead of inserting a
// duplicate. Returns the id of the row written either way.
func CreateSyncFailure(ctx context.Context, settlementId int, failReason string, syncType SyncType) (int, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	var id int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing SyncFailure
		err := tx.Where("settlement_id = ? AND status = ?", settlementId, SyncFailureStatusPending).
			First(&existing).Error
		if err == nil {
			id = existing.ID
			return tx.Model(&existing).Updates(map[string]interface{}{
				"fail_reason": failReason,
				"sync_type":   syncType,
			}).Error
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		failure := SyncFailure{
			SettlementId: settlementId,
			FailReason:   failReason,
			SyncType:     syncType,
			Status:       SyncFailureStatusPending,
		}
		if err := tx.Create(&failure).Error; err != nil {
			return err
		}
		id = failure.ID
		return nil
	})
	if err != nil {
		config.LogError(logger, "models", "CreateSyncFailure", "upsert", settlementId, err)
		return 0, err
	}
	return id, nil
}

func UpdateSyncFailureStatus(ctx context.Context, id int, status SyncFailureStatus) error {
	db := config.GetDB()

	result := db.WithContext(ctx).Model(&SyncFailure{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

type ListSyncFailuresInput struct {
	Page     int
	PageSize int
	Status   string
}

type SyncFailureItem struct {
	SyncFailure
	Settlement *Settlement `json:"settlement"`
}

type SyncFailurePage struct {
	Items    []SyncFailureItem `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// ListSyncFailures pages through the failure queue, newest first,
// joining each entry with its settlement when it still exists.
func ListSyncFailures(ctx context.Context, input ListSyncFailuresInput) (SyncFailurePage, error) {
	db := config.GetDB()

	if input.Page < 1 {
		input.Page = 1
	}
	if input.PageSize < 1 {
		input.PageSize = 20
	}
	if input.PageSize > 100 {
		input.PageSize = 100
	}

	query := db.WithContext(ctx).Model(&SyncFailure{})
	if input.Status != "" {
		query = query.Where("status = ?", input.Status)
	}

	page := SyncFailurePage{
		Items:    []SyncFailureItem{},
		Page:     input.Page,
		PageSize: input.PageSize,
	}
	if err := query.Count(&page.Total).Error; err != nil {
		return page, err
	}

	var failures []SyncFailure
	err := query.Order("created_at DESC, id DESC").
		Offset((input.Page - 1) * input.PageSize).
		Limit(input.PageSize).
		Find(&failures).Error
	if err != nil {
		return page, err
	}
	if len(failures) == 0 {
		return page, nil
	}

	ids := make([]int, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.SettlementId)
	}
	var settlements []Settlement
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&settlements).Error; err != nil {
		return page, err
	}
	byId := make(map[int]*Settlement, len(settlements))
	for i := range settlements {
		byId[settlements[i].ID] = &settlements[i]
	}

	for _, f := range failures {
		page.Items = append(page.Items, SyncFailureItem{
			SyncFailure: f,
			Settlement:  byId[f.SettlementId],
		})
	}
	return page, nil
}

func DeleteSyncFailure(ctx context.Context, id int) error {
	db := config.GetDB()

	result := db.WithContext(ctx).Delete(&SyncFailure{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
