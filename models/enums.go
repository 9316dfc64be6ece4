package models

import "gorm.io/gorm"

type TransferStatus string

const (
	TransferStatusUnset       TransferStatus = ""
	TransferStatusPending     TransferStatus = "未转"
	TransferStatusTransferred TransferStatus = "已转"
)

type RegistrationStatus string

const (
	RegistrationStatusUnset        RegistrationStatus = ""
	RegistrationStatusUnregistered RegistrationStatus = "未登记"
	RegistrationStatusRegistered   RegistrationStatus = "已登记"
	RegistrationStatusSyncFailed   RegistrationStatus = "同步失败"
)

type SettlementStatus string

const (
	SettlementStatusUnset     SettlementStatus = ""
	SettlementStatusUnsettled SettlementStatus = "未结算"
	SettlementStatusSettled   SettlementStatus = "已结算"
)

type SyncType string

const (
	SyncTypeNormal  SyncType = "normal"
	SyncTypeSpecial SyncType = "special"
)

type SyncFailureStatus string

const (
	SyncFailureStatusPending  SyncFailureStatus = "pending"
	SyncFailureStatusIgnored  SyncFailureStatus = "ignored"
	SyncFailureStatusResolved SyncFailureStatus = "resolved"
)

// Legacy rows use NULL, '' and the '未X' sentinel interchangeably for
// "not yet done". These predicates and scopes are the single place
// that three-way equivalence lives.

func (s RegistrationStatus) IsUnset() bool {
	return s == RegistrationStatusUnset || s == RegistrationStatusUnregistered
}

func (s SettlementStatus) IsUnset() bool {
	return s == SettlementStatusUnset || s == SettlementStatusUnsettled
}

func (s TransferStatus) IsUnset() bool {
	return s == TransferStatusUnset || s == TransferStatusPending
}

func ScopeRegistrationUnset(db *gorm.DB) *gorm.DB {
	return db.Where(
		"registration_status IS NULL OR registration_status = '' OR registration_status = ?",
		RegistrationStatusUnregistered,
	)
}

func ScopeSettlementUnset(db *gorm.DB) *gorm.DB {
	return db.Where(
		"settlement_status IS NULL OR settlement_status = '' OR settlement_status = ?",
		SettlementStatusUnsettled,
	)
}

func ScopeTransferUnset(db *gorm.DB) *gorm.DB {
	return db.Where(
		"transfer_status IS NULL OR transfer_status = '' OR transfer_status = ?",
		TransferStatusPending,
	)
}
