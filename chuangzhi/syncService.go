package chuangzhi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/models"
	"github.com/Evan-ql/shuadan/utils"
	"github.com/sirupsen/logrus"
)

// RecordStore is the engine's view of local persistence.
type RecordStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	GetUnregisteredSettlements(ctx context.Context) ([]models.Settlement, error)
	GetUnsettledSettlements(ctx context.Context) ([]models.Settlement, error)
	GetUnsyncedSettlements(ctx context.Context, isSpecial bool) ([]models.Settlement, error)
	BatchUpdateRegistrationStatus(ctx context.Context, ids []int, status models.RegistrationStatus) error
	BatchUpdateSettlementStatus(ctx context.Context, ids []int, status models.SettlementStatus) error
	CreateSyncFailure(ctx context.Context, settlementId int, failReason string, syncType models.SyncType) (int, error)
	UpdateSyncFailureStatus(ctx context.Context, id int, status models.SyncFailureStatus) error
}

// PlatformClient is the engine's view of the remote platform.
type PlatformClient interface {
	VerifyToken(ctx context.Context, token string) TokenCheck
	GetAllOrders(ctx context.Context, token string) ([]Order, error)
	SubmitOrder(ctx context.Context, token string, order SubmitRequest) (SubmitResponse, error)
}

type SyncService struct {
	store  RecordStore
	client PlatformClient
	logger *logrus.Logger
}

func NewSyncService(store RecordStore, client PlatformClient) *SyncService {
	return &SyncService{
		store:  store,
		client: client,
		logger: config.GetLogger(),
	}
}

// defaultPayMethodId selects 支付宝 on the remote platform.
const defaultPayMethodId = "3"

// formatTimestamp renders a millisecond timestamp as the remote
// platform's register time, "YYYY-MM-DD HH:mm:ss" in local time.
// The exact layout is a wire contract, not cosmetic.
func formatTimestamp(ms *int64) string {
	if ms == nil || *ms == 0 {
		return ""
	}
	return time.UnixMilli(*ms).Format("2006-01-02 15:04:05")
}

// validateSettlement decides whether a record is complete enough to
// upload. Returns the first failing reason, or "" when uploadable.
// Incomplete records are expected transient state and are skipped
// silently by callers, never queued as failures.
func validateSettlement(settlement models.Settlement, isSpecial bool) string {
	if strings.TrimSpace(settlement.OrderNo) == "" {
		return "订单编号为空"
	}
	if strings.TrimSpace(settlement.CustomerName) == "" {
		return "客户名称为空"
	}
	if settlement.OrderDate == nil || *settlement.OrderDate == 0 {
		return "接单日期为空"
	}

	amount := applyAmountFor(settlement, isSpecial)
	if !amount.IsPositive() {
		if isSpecial {
			return "加价后总价为空或为0"
		}
		return "原价为空或为0"
	}
	return ""
}

func applyAmountFor(settlement models.Settlement, isSpecial bool) decimalAmount {
	if isSpecial {
		return decimalAmount{utils.DecimalOrZero(settlement.TotalPrice)}
	}
	return decimalAmount{utils.DecimalOrZero(settlement.OriginalPrice)}
}

// ExecuteSyncFlow runs the five-step reconciliation against the
// remote platform. Steps 1-3 (credential, verify, fetch) abort the
// whole flow on failure; steps 4-6 record their own failure and let
// the remaining steps run. Nothing here is transactional: partial
// progress stays persisted.
func (s *SyncService) ExecuteSyncFlow(ctx context.Context, mode models.SyncType) SyncResult {
	isSpecial := mode == models.SyncTypeSpecial
	result := SyncResult{
		Steps:         []SyncStepResult{},
		FailedOrders:  []FailedOrderRef{},
		SuccessOrders: []SyncOrderRef{},
	}

	// Step 1: 验证Token
	token, err := s.store.GetSetting(ctx, models.SettingKeyChuangzhiToken)
	if err != nil {
		config.LogError(s.logger, "chuangzhi", "ExecuteSyncFlow", "getSetting", nil, err)
		token = ""
	}
	if token == "" {
		result.Message = "未配置创致平台Token，请先在设置中配置"
		result.Steps = append(result.Steps, SyncStepResult{
			Step:    "验证Token",
			Success: false,
			Message: "未配置Token",
		})
		return result
	}

	check := s.client.VerifyToken(ctx, token)
	result.Steps = append(result.Steps, SyncStepResult{
		Step:    "验证Token",
		Success: check.Valid,
		Message: check.Message,
	})
	if !check.Valid {
		result.Message = fmt.Sprintf("Token验证失败: %s", check.Message)
		return result
	}

	// Step 2: 获取创致平台所有订单
	remoteOrders, err := s.client.GetAllOrders(ctx, token)
	if err != nil {
		result.Steps = append(result.Steps, SyncStepResult{
			Step:    "获取创致订单",
			Success: false,
			Message: fmt.Sprintf("获取失败: %s", err.Error()),
		})
		result.Message = fmt.Sprintf("获取创致订单失败: %s", err.Error())
		return result
	}
	fetched := len(remoteOrders)
	result.Steps = append(result.Steps, SyncStepResult{
		Step:    "获取创致订单",
		Success: true,
		Message: fmt.Sprintf("获取到 %d 条创致订单", fetched),
		Count:   &fetched,
	})

	remoteOrderNos := make(map[string]struct{}, len(remoteOrders))
	remoteSettledOrderNos := make(map[string]struct{})
	for _, order := range remoteOrders {
		remoteOrderNos[order.OrderNo] = struct{}{}
		if order.FinanceStatus == 1 {
			remoteSettledOrderNos[order.OrderNo] = struct{}{}
		}
	}

	// Step 3: 同步登记状态
	if registered, err := s.syncRegistrationStatus(ctx, remoteOrderNos); err != nil {
		result.Steps = append(result.Steps, SyncStepResult{
			Step:    "同步登记状态",
			Success: false,
			Message: fmt.Sprintf("同步失败: %s", err.Error()),
		})
	} else {
		result.Summary.Registered = registered
		result.Steps = append(result.Steps, SyncStepResult{
			Step:    "同步登记状态",
			Success: true,
			Message: fmt.Sprintf("%d 条订单标记为已登记", registered),
			Count:   &registered,
		})
	}

	// Step 4: 同步结算状态
	if settled, err := s.syncSettlementStatus(ctx, remoteSettledOrderNos); err != nil {
		result.Steps = append(result.Steps, SyncStepResult{
			Step:    "同步结算状态",
			Success: false,
			Message: fmt.Sprintf("同步失败: %s", err.Error()),
		})
	} else {
		result.Summary.Settled = settled
		result.Steps = append(result.Steps, SyncStepResult{
			Step:    "同步结算状态",
			Success: true,
			Message: fmt.Sprintf("%d 条订单标记为已结算", settled),
			Count:   &settled,
		})
	}

	// Step 5: 上传新订单
	if uploadCount, skipCount, err := s.uploadNewOrders(ctx, mode, isSpecial, token, remoteOrderNos, &result); err != nil {
		result.Steps = append(result.Steps, SyncStepResult{
			Step:    "上传新订单",
			Success: false,
			Message: fmt.Sprintf("上传失败: %s", err.Error()),
		})
	} else {
		result.Steps = append(result.Steps, SyncStepResult{
			Step:    "上传新订单",
			Success: true,
			Message: fmt.Sprintf("上传 %d 条，跳过 %d 条，失败 %d 条", uploadCount, skipCount, result.Summary.Failed),
			Count:   &uploadCount,
		})
	}

	result.Success = result.Summary.Failed == 0
	result.Message = fmt.Sprintf("同步完成：上传 %d 条，登记 %d 条，结算 %d 条，跳过 %d 条，失败 %d 条",
		result.Summary.Uploaded,
		result.Summary.Registered,
		result.Summary.Settled,
		result.Summary.Skipped,
		result.Summary.Failed,
	)
	return result
}

func (s *SyncService) syncRegistrationStatus(ctx context.Context, remoteOrderNos map[string]struct{}) (int, error) {
	unregistered, err := s.store.GetUnregisteredSettlements(ctx)
	if err != nil {
		return 0, err
	}

	ids := []int{}
	for _, settlement := range unregistered {
		if settlement.OrderNo == "" {
			continue
		}
		if _, ok := remoteOrderNos[settlement.OrderNo]; ok {
			ids = append(ids, settlement.ID)
		}
	}
	if len(ids) > 0 {
		if err := s.store.BatchUpdateRegistrationStatus(ctx, ids, models.RegistrationStatusRegistered); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (s *SyncService) syncSettlementStatus(ctx context.Context, remoteSettledOrderNos map[string]struct{}) (int, error) {
	unsettled, err := s.store.GetUnsettledSettlements(ctx)
	if err != nil {
		return 0, err
	}

	ids := []int{}
	for _, settlement := range unsettled {
		if settlement.OrderNo == "" {
			continue
		}
		if _, ok := remoteSettledOrderNos[settlement.OrderNo]; ok {
			ids = append(ids, settlement.ID)
		}
	}
	if len(ids) > 0 {
		if err := s.store.BatchUpdateSettlementStatus(ctx, ids, models.SettlementStatusSettled); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (s *SyncService) uploadNewOrders(
	ctx context.Context,
	mode models.SyncType,
	isSpecial bool,
	token string,
	remoteOrderNos map[string]struct{},
	result *SyncResult,
) (int, int, error) {
	unsynced, err := s.store.GetUnsyncedSettlements(ctx, isSpecial)
	if err != nil {
		return 0, 0, err
	}

	uploadCount := 0
	skipCount := 0

	for _, settlement := range unsynced {
		// Already on the remote platform but missed by step 3
		// (stale join key or race): just mark it registered.
		if settlement.OrderNo != "" {
			if _, ok := remoteOrderNos[settlement.OrderNo]; ok {
				if err := s.store.BatchUpdateRegistrationStatus(ctx, []int{settlement.ID}, models.RegistrationStatusRegistered); err != nil {
					return uploadCount, skipCount, err
				}
				skipCount++
				result.Summary.Skipped++
				continue
			}
		}

		// 信息不全的订单静默跳过，不进失败队列
		if reason := validateSettlement(settlement, isSpecial); reason != "" {
			skipCount++
			result.Summary.Skipped++
			continue
		}

		amount := applyAmountFor(settlement, isSpecial)

		submitResult, err := s.client.SubmitOrder(ctx, token, SubmitRequest{
			OrderNo:         settlement.OrderNo,
			CustomerName:    settlement.CustomerName,
			ApplyAmount:     amount.Float64(),
			CustomerService: settlement.CustomerService,
			PayMethodId:     defaultPayMethodId,
			RegisterTime:    formatTimestamp(settlement.OrderDate),
			Remark:          "",
		})
		if err != nil {
			reason := fmt.Sprintf("网络错误: %s", err.Error())
			if err := s.recordUploadFailure(ctx, settlement, mode, reason, amount, result); err != nil {
				return uploadCount, skipCount, err
			}
			continue
		}

		if submitResult.Code == 200 {
			if err := s.store.BatchUpdateRegistrationStatus(ctx, []int{settlement.ID}, models.RegistrationStatusRegistered); err != nil {
				return uploadCount, skipCount, err
			}
			uploadCount++
			result.Summary.Uploaded++
			result.SuccessOrders = append(result.SuccessOrders, SyncOrderRef{
				OrderNo:      settlement.OrderNo,
				CustomerName: settlement.CustomerName,
				Amount:       amount.Fixed2(),
			})
		} else {
			reason := submitResult.Msg
			if reason == "" {
				reason = "未知错误"
			}
			if err := s.recordUploadFailure(ctx, settlement, mode, reason, amount, result); err != nil {
				return uploadCount, skipCount, err
			}
		}
	}

	return uploadCount, skipCount, nil
}

// recordUploadFailure is the shared path for remote rejection and
// network errors during submit: persist the failure, force the local
// registration status to 同步失败, and report it in failedOrders.
func (s *SyncService) recordUploadFailure(
	ctx context.Context,
	settlement models.Settlement,
	mode models.SyncType,
	reason string,
	amount decimalAmount,
	result *SyncResult,
) error {
	if _, err := s.store.CreateSyncFailure(ctx, settlement.ID, reason, mode); err != nil {
		return err
	}
	if err := s.store.BatchUpdateRegistrationStatus(ctx, []int{settlement.ID}, models.RegistrationStatusSyncFailed); err != nil {
		return err
	}

	orderNo := settlement.OrderNo
	if orderNo == "" {
		orderNo = "(空)"
	}
	result.FailedOrders = append(result.FailedOrders, FailedOrderRef{
		OrderNo:      orderNo,
		CustomerName: settlement.CustomerName,
		Amount:       amount.Fixed2(),
		Reason:       reason,
	})
	result.Summary.Failed++
	return nil
}

// VerifyStoredToken checks the currently configured credential.
func (s *SyncService) VerifyStoredToken(ctx context.Context) TokenCheck {
	token, err := s.store.GetSetting(ctx, models.SettingKeyChuangzhiToken)
	if err != nil {
		config.LogError(s.logger, "chuangzhi", "VerifyStoredToken", "getSetting", nil, err)
		token = ""
	}
	if token == "" {
		return TokenCheck{Valid: false, Message: "未配置Token"}
	}
	return s.client.VerifyToken(ctx, token)
}

// RetrySingleSync replays one failed upload using the settlement the
// caller fetched. Success flips the named failure row to resolved; a
// repeated application-level failure only refreshes the pending
// upsert entry and leaves the named row's status untouched; a network
// error persists nothing.
func (s *SyncService) RetrySingleSync(ctx context.Context, settlementId int, syncFailureId int, settlement models.Settlement) RetryResult {
	token, err := s.store.GetSetting(ctx, models.SettingKeyChuangzhiToken)
	if err != nil {
		config.LogError(s.logger, "chuangzhi", "RetrySingleSync", "getSetting", nil, err)
		token = ""
	}
	if token == "" {
		return RetryResult{Success: false, Message: "未配置创致平台Token"}
	}

	check := s.client.VerifyToken(ctx, token)
	if !check.Valid {
		return RetryResult{Success: false, Message: fmt.Sprintf("Token无效: %s", check.Message)}
	}

	isSpecial := settlement.IsSpecial
	if reason := validateSettlement(settlement, isSpecial); reason != "" {
		return RetryResult{Success: false, Message: reason}
	}
	amount := applyAmountFor(settlement, isSpecial)

	submitResult, err := s.client.SubmitOrder(ctx, token, SubmitRequest{
		OrderNo:         settlement.OrderNo,
		CustomerName:    settlement.CustomerName,
		ApplyAmount:     amount.Float64(),
		CustomerService: settlement.CustomerService,
		PayMethodId:     defaultPayMethodId,
		RegisterTime:    formatTimestamp(settlement.OrderDate),
		Remark:          "",
	})
	if err != nil {
		return RetryResult{Success: false, Message: fmt.Sprintf("网络错误: %s", err.Error())}
	}

	if submitResult.Code == 200 {
		if err := s.store.BatchUpdateRegistrationStatus(ctx, []int{settlementId}, models.RegistrationStatusRegistered); err != nil {
			return RetryResult{Success: false, Message: err.Error()}
		}
		if err := s.store.UpdateSyncFailureStatus(ctx, syncFailureId, models.SyncFailureStatusResolved); err != nil {
			return RetryResult{Success: false, Message: err.Error()}
		}
		return RetryResult{Success: true, Message: "同步成功"}
	}

	reason := submitResult.Msg
	if reason == "" {
		reason = "未知错误"
	}
	syncType := models.SyncTypeNormal
	if isSpecial {
		syncType = models.SyncTypeSpecial
	}
	if _, err := s.store.CreateSyncFailure(ctx, settlementId, reason, syncType); err != nil {
		return RetryResult{Success: false, Message: err.Error()}
	}
	return RetryResult{Success: false, Message: reason}
}
