package chuangzhi

import (
	"context"

	"github.com/Evan-ql/shuadan/models"
)

// DBStore backs the engine with the gorm-based models layer.
type DBStore struct{}

func NewDBStore() DBStore {
	return DBStore{}
}

func (DBStore) GetSetting(ctx context.Context, key string) (string, error) {
	return models.GetSetting(ctx, key)
}

func (DBStore) GetUnregisteredSettlements(ctx context.Context) ([]models.Settlement, error) {
	return models.GetUnregisteredSettlements(ctx)
}

func (DBStore) GetUnsettledSettlements(ctx context.Context) ([]models.Settlement, error) {
	return models.GetUnsettledSettlements(ctx)
}

func (DBStore) GetUnsyncedSettlements(ctx context.Context, isSpecial bool) ([]models.Settlement, error) {
	return models.GetUnsyncedSettlements(ctx, isSpecial)
}

func (DBStore) BatchUpdateRegistrationStatus(ctx context.Context, ids []int, status models.RegistrationStatus) error {
	return models.BatchUpdateRegistrationStatus(ctx, ids, status)
}

func (DBStore) BatchUpdateSettlementStatus(ctx context.Context, ids []int, status models.SettlementStatus) error {
	return models.BatchUpdateSettlementStatus(ctx, ids, status)
}

func (DBStore) CreateSyncFailure(ctx context.Context, settlementId int, failReason string, syncType models.SyncType) (int, error) {
	return models.CreateSyncFailure(ctx, settlementId, failReason, syncType)
}

func (DBStore) UpdateSyncFailureStatus(ctx context.Context, id int, status models.SyncFailureStatus) error {
	return models.UpdateSyncFailureStatus(ctx, id, status)
}
