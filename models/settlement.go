package models

import (
	"context"
	"time"

	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settlement is one markup order. Money columns are stored as decimal
// strings; derived amounts (commission split) are never persisted and
// always recomputed from the three stored inputs.
type Settlement struct {
	ID                 int                `gorm:"primary_key" json:"id"`
	OrderDate          *int64             `json:"orderDate"`
	OrderNo            string             `gorm:"size:100;index" json:"orderNo"`
	GroupName          string             `gorm:"size:255" json:"groupName"`
	CustomerName       string             `gorm:"size:255" json:"customerName"`
	CustomerService    string             `gorm:"size:255" json:"customerService"`
	OriginalPrice      string             `gorm:"size:32;default:'0'" json:"originalPrice"`
	TotalPrice         string             `gorm:"size:32;default:'0'" json:"totalPrice"`
	ShouldTransfer     string             `gorm:"size:32;default:'0'" json:"shouldTransfer"`
	ActualTransfer     string             `gorm:"size:32;default:'0'" json:"actualTransfer"`
	TransferStatus     TransferStatus     `gorm:"size:20" json:"transferStatus"`
	RegistrationStatus RegistrationStatus `gorm:"size:20;index" json:"registrationStatus"`
	SettlementStatus   SettlementStatus   `gorm:"size:20;index" json:"settlementStatus"`
	IsSpecial          bool               `gorm:"default:false;index" json:"isSpecial"`
	Remark             string             `gorm:"type:text" json:"remark"`
	CreatedBy          *int               `json:"createdBy"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewSettlement struct {
	OrderDate       *int64 `json:"orderDate"`
	OrderNo         string `json:"orderNo"`
	GroupName       string `json:"groupName" binding:"required" validate:"required"`
	CustomerName    string `json:"customerName"`
	CustomerService string `json:"customerService"`
	OriginalPrice   string `json:"originalPrice"`
	TotalPrice      string `json:"totalPrice"`
	ShouldTransfer  string `json:"shouldTransfer"`
	ActualTransfer  string `json:"actualTransfer"`
	IsSpecial       bool   `json:"isSpecial"`
	Remark          string `json:"remark"`
}

// UpdateSettlementInput carries partial edits. Nil pointers mean
// "leave the column as it is".
type UpdateSettlementInput struct {
	OrderDate          *int64  `json:"orderDate"`
	OrderNo            *string `json:"orderNo"`
	GroupName          *string `json:"groupName"`
	CustomerName       *string `json:"customerName"`
	CustomerService    *string `json:"customerService"`
	OriginalPrice      *string `json:"originalPrice"`
	TotalPrice         *string `json:"totalPrice"`
	ShouldTransfer     *string `json:"shouldTransfer"`
	ActualTransfer     *string `json:"actualTransfer"`
	TransferStatus     *string `json:"transferStatus"`
	RegistrationStatus *string `json:"registrationStatus"`
	SettlementStatus   *string `json:"settlementStatus"`
	IsSpecial          *bool   `json:"isSpecial"`
	Remark             *string `json:"remark"`
}

func (input *NewSettlement) toModel(createdBy *int) Settlement {
	return Settlement{
		OrderDate:       input.OrderDate,
		OrderNo:         input.OrderNo,
		GroupName:       input.GroupName,
		CustomerName:    input.CustomerName,
		CustomerService: input.CustomerService,
		OriginalPrice:   amountOrZero(input.OriginalPrice),
		TotalPrice:      amountOrZero(input.TotalPrice),
		ShouldTransfer:  amountOrZero(input.ShouldTransfer),
		ActualTransfer:  amountOrZero(input.ActualTransfer),
		TransferStatus:  TransferStatusPending,
		IsSpecial:       input.IsSpecial,
		Remark:          input.Remark,
		CreatedBy:       createdBy,
	}
}

func amountOrZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func CreateSettlement(ctx context.Context, input NewSettlement, createdBy *int) (Settlement, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	// Batch import bypasses gin's binding, so validate here too.
	if err := utils.ValidateStruct(input); err != nil {
		return Settlement{}, err
	}

	settlement := input.toModel(createdBy)
	if err := db.WithContext(ctx).Create(&settlement).Error; err != nil {
		config.LogError(logger, "models", "CreateSettlement", "insert", input, err)
		return Settlement{}, err
	}
	return settlement, nil
}

func GetSettlementById(ctx context.Context, id int) (*Settlement, error) {
	db := config.GetDB()

	var settlement Settlement
	err := db.WithContext(ctx).First(&settlement, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &settlement, nil
}

func UpdateSettlement(ctx context.Context, id int, input UpdateSettlementInput) (*Settlement, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	updates := map[string]interface{}{}
	if input.OrderDate != nil {
		updates["order_date"] = *input.OrderDate
	}
	if input.OrderNo != nil {
		updates["order_no"] = *input.OrderNo
	}
	if input.GroupName != nil {
		updates["group_name"] = *input.GroupName
	}
	if input.CustomerName != nil {
		updates["customer_name"] = *input.CustomerName
	}
	if input.CustomerService != nil {
		updates["customer_service"] = *input.CustomerService
	}
	if input.OriginalPrice != nil {
		updates["original_price"] = amountOrZero(*input.OriginalPrice)
	}
	if input.TotalPrice != nil {
		updates["total_price"] = amountOrZero(*input.TotalPrice)
	}
	if input.ShouldTransfer != nil {
		updates["should_transfer"] = amountOrZero(*input.ShouldTransfer)
	}
	if input.ActualTransfer != nil {
		updates["actual_transfer"] = amountOrZero(*input.ActualTransfer)
	}
	if input.TransferStatus != nil {
		updates["transfer_status"] = *input.TransferStatus
	}
	if input.RegistrationStatus != nil {
		updates["registration_status"] = *input.RegistrationStatus
	}
	if input.SettlementStatus != nil {
		updates["settlement_status"] = *input.SettlementStatus
	}
	if input.IsSpecial != nil {
		updates["is_special"] = *input.IsSpecial
	}
	if input.Remark != nil {
		updates["remark"] = *input.Remark
	}

	if len(updates) > 0 {
		result := db.WithContext(ctx).Model(&Settlement{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			config.LogError(logger, "models", "UpdateSettlement", "update", id, result.Error)
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, utils.ErrorRecordNotFound
		}
	}
	return GetSettlementById(ctx, id)
}

func DeleteSettlement(ctx context.Context, id int) error {
	db := config.GetDB()

	result := db.WithContext(ctx).Delete(&Settlement{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func ToggleSpecial(ctx context.Context, id int, isSpecial bool) (*Settlement, error) {
	db := config.GetDB()

	result := db.WithContext(ctx).Model(&Settlement{}).Where("id = ?", id).
		Update("is_special", isSpecial)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetSettlementById(ctx, id)
}

type ListSettlementsInput struct {
	Page               int
	PageSize           int
	Search             string
	TransferStatus     string
	RegistrationStatus string
	SettlementStatus   string
	IsSpecial          *bool
}

type SettlementPage struct {
	Items    []Settlement `json:"items"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
}

func ListSettlements(ctx context.Context, input ListSettlementsInput) (SettlementPage, error) {
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

	query := db.WithContext(ctx).Model(&Settlement{})
	if input.Search != "" {
		like := "%" + input.Search + "%"
		query = query.Where(
			"group_name LIKE ? OR order_no LIKE ? OR customer_name LIKE ?",
			like, like, like,
		)
	}
	if input.TransferStatus != "" {
		query = query.Where("transfer_status = ?", input.TransferStatus)
	}
	if input.RegistrationStatus != "" {
		query = query.Where("registration_status = ?", input.RegistrationStatus)
	}
	if input.SettlementStatus != "" {
		query = query.Where("settlement_status = ?", input.SettlementStatus)
	}
	if input.IsSpecial != nil {
		query = query.Where("is_special = ?", *input.IsSpecial)
	}

	page := SettlementPage{
		Items:    []Settlement{},
		Page:     input.Page,
		PageSize: input.PageSize,
	}
	if err := query.Count(&page.Total).Error; err != nil {
		return page, err
	}
	err := query.Order("order_date DESC, id DESC").
		Offset((input.Page - 1) * input.PageSize).
		Limit(input.PageSize).
		Find(&page.Items).Error
	return page, err
}

type DistinctStatuses struct {
	TransferStatuses     []string `json:"transferStatuses"`
	RegistrationStatuses []string `json:"registrationStatuses"`
	SettlementStatuses   []string `json:"settlementStatuses"`
}

func GetDistinctStatuses(ctx context.Context) (DistinctStatuses, error) {
	db := config.GetDB()

	var statuses DistinctStatuses
	err := db.WithContext(ctx).Model(&Settlement{}).
		Where("transfer_status IS NOT NULL AND transfer_status <> ''").
		Distinct().Pluck("transfer_status", &statuses.TransferStatuses).Error
	if err != nil {
		return statuses, err
	}
	err = db.WithContext(ctx).Model(&Settlement{}).
		Where("registration_status IS NOT NULL AND registration_status <> ''").
		Distinct().Pluck("registration_status", &statuses.RegistrationStatuses).Error
	if err != nil {
		return statuses, err
	}
	err = db.WithContext(ctx).Model(&Settlement{}).
		Where("settlement_status IS NOT NULL AND settlement_status <> ''").
		Distinct().Pluck("settlement_status", &statuses.SettlementStatuses).Error
	return statuses, err
}

// GetUnregisteredSettlements returns records not yet marked 已登记
// on the remote platform.
func GetUnregisteredSettlements(ctx context.Context) ([]Settlement, error) {
	db := config.GetDB()

	var settlements []Settlement
	err := db.WithContext(ctx).Scopes(ScopeRegistrationUnset).Find(&settlements).Error
	return settlements, err
}

func GetUnsettledSettlements(ctx context.Context) ([]Settlement, error) {
	db := config.GetDB()

	var settlements []Settlement
	err := db.WithContext(ctx).Scopes(ScopeSettlementUnset).Find(&settlements).Error
	return settlements, err
}

// GetUnsyncedSettlements returns upload candidates for one sync mode:
// matching isSpecial, with both registration and settlement status
// still unset.
func GetUnsyncedSettlements(ctx context.Context, isSpecial bool) ([]Settlement, error) {
	db := config.GetDB()

	var settlements []Settlement
	err := db.WithContext(ctx).
		Where("is_special = ?", isSpecial).
		Scopes(ScopeRegistrationUnset, ScopeSettlementUnset).
		Order("id ASC").
		Find(&settlements).Error
	return settlements, err
}

func BatchUpdateRegistrationStatus(ctx context.Context, ids []int, status RegistrationStatus) error {
	if len(ids) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Settlement{}).
		Where("id IN ?", ids).
		Update("registration_status", status).Error
}

func BatchUpdateSettlementStatus(ctx context.Context, ids []int, status SettlementStatus) error {
	if len(ids) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Settlement{}).
		Where("id IN ?", ids).
		Update("settlement_status", status).Error
}

type SettlementStats struct {
	MonthOrders     int64  `json:"monthOrders"`
	EstimatedIncome string `json:"estimatedIncome"`
}

// GetSettlementStats reports the current calendar month: how many
// orders landed, and the estimated income recomputed per record.
func GetSettlementStats(ctx context.Context) (SettlementStats, error) {
	db := config.GetDB()

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var settlements []Settlement
	err := db.WithContext(ctx).
		Where("order_date >= ? AND order_date < ?", monthStart.UnixMilli(), monthEnd.UnixMilli()).
		Find(&settlements).Error
	if err != nil {
		return SettlementStats{}, err
	}

	income := decimal.Zero
	for _, s := range settlements {
		commission := CalculateCommission(s.OriginalPrice, s.TotalPrice, s.ActualTransfer)
		income = income.Add(commission.ActualIncome)
	}

	return SettlementStats{
		MonthOrders:     int64(len(settlements)),
		EstimatedIncome: utils.FormatAmount(income),
	}, nil
}

type SpecialStats struct {
	UntransferredAmount string `json:"untransferredAmount"`
	AdvancedAmount      string `json:"advancedAmount"`
	ExtraProfit         string `json:"extraProfit"`
}

// GetSpecialStats aggregates the special-order book: what still has
// to be transferred out, what was already advanced, and the markup
// profit left after those advances.
func GetSpecialStats(ctx context.Context) (SpecialStats, error) {
	db := config.GetDB()

	var settlements []Settlement
	err := db.WithContext(ctx).Where("is_special = ?", true).Find(&settlements).Error
	if err != nil {
		return SpecialStats{}, err
	}

	untransferred := decimal.Zero
	advanced := decimal.Zero
	profit := decimal.Zero
	for _, s := range settlements {
		if s.TransferStatus.IsUnset() {
			untransferred = untransferred.Add(utils.DecimalOrZero(s.ShouldTransfer))
		}
		advanced = advanced.Add(utils.DecimalOrZero(s.ActualTransfer))
		commission := CalculateCommission(s.OriginalPrice, s.TotalPrice, s.ActualTransfer)
		profit = profit.Add(commission.MarkupActual)
	}

	return SpecialStats{
		UntransferredAmount: utils.FormatAmount(untransferred),
		AdvancedAmount:      utils.FormatAmount(advanced),
		ExtraProfit:         utils.FormatAmount(profit),
	}, nil
}
