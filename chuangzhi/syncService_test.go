package chuangzhi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Evan-ql/shuadan/models"
)

// The engine tests are DB-free: fakeStore reproduces the record
// store's query semantics in memory, including the pending-failure
// upsert, so flow behavior can be asserted without MySQL.

type fakeStore struct {
	settings    map[string]string
	settlements []models.Settlement
	failures    []models.SyncFailure

	nextFailureId int
	failOn        map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:      map[string]string{},
		nextFailureId: 1,
		failOn:        map[string]error{},
	}
}

func (s *fakeStore) GetSetting(ctx context.Context, key string) (string, error) {
	if err := s.failOn["GetSetting"]; err != nil {
		return "", err
	}
	return s.settings[key], nil
}

func (s *fakeStore) GetUnregisteredSettlements(ctx context.Context) ([]models.Settlement, error) {
	if err := s.failOn["GetUnregisteredSettlements"]; err != nil {
		return nil, err
	}
	var out []models.Settlement
	for _, settlement := range s.settlements {
		if settlement.RegistrationStatus.IsUnset() {
			out = append(out, settlement)
		}
	}
	return out, nil
}

func (s *fakeStore) GetUnsettledSettlements(ctx context.Context) ([]models.Settlement, error) {
	if err := s.failOn["GetUnsettledSettlements"]; err != nil {
		return nil, err
	}
	var out []models.Settlement
	for _, settlement := range s.settlements {
		if settlement.SettlementStatus.IsUnset() {
			out = append(out, settlement)
		}
	}
	return out, nil
}

func (s *fakeStore) GetUnsyncedSettlements(ctx context.Context, isSpecial bool) ([]models.Settlement, error) {
	if err := s.failOn["GetUnsyncedSettlements"]; err != nil {
		return nil, err
	}
	var out []models.Settlement
	for _, settlement := range s.settlements {
		if settlement.IsSpecial == isSpecial &&
			settlement.RegistrationStatus.IsUnset() &&
			settlement.SettlementStatus.IsUnset() {
			out = append(out, settlement)
		}
	}
	return out, nil
}

func (s *fakeStore) BatchUpdateRegistrationStatus(ctx context.Context, ids []int, status models.RegistrationStatus) error {
	if err := s.failOn["BatchUpdateRegistrationStatus"]; err != nil {
		return err
	}
	for _, id := range ids {
		for i := range s.settlements {
			if s.settlements[i].ID == id {
				s.settlements[i].RegistrationStatus = status
			}
		}
	}
	return nil
}

func (s *fakeStore) BatchUpdateSettlementStatus(ctx context.Context, ids []int, status models.SettlementStatus) error {
	if err := s.failOn["BatchUpdateSettlementStatus"]; err != nil {
		return err
	}
	for _, id := range ids {
		for i := range s.settlements {
			if s.settlements[i].ID == id {
				s.settlements[i].SettlementStatus = status
			}
		}
	}
	return nil
}

func (s *fakeStore) CreateSyncFailure(ctx context.Context, settlementId int, failReason string, syncType models.SyncType) (int, error) {
	if err := s.failOn["CreateSyncFailure"]; err != nil {
		return 0, err
	}
	for i := range s.failures {
		if s.failures[i].SettlementId == settlementId && s.failures[i].Status == models.SyncFailureStatusPending {
			s.failures[i].FailReason = failReason
			s.failures[i].SyncType = syncType
			return s.failures[i].ID, nil
		}
	}
	failure := models.SyncFailure{
		ID:           s.nextFailureId,
		SettlementId: settlementId,
		FailReason:   failReason,
		SyncType:     syncType,
		Status:       models.SyncFailureStatusPending,
	}
	s.nextFailureId++
	s.failures = append(s.failures, failure)
	return failure.ID, nil
}

func (s *fakeStore) UpdateSyncFailureStatus(ctx context.Context, id int, status models.SyncFailureStatus) error {
	if err := s.failOn["UpdateSyncFailureStatus"]; err != nil {
		return err
	}
	for i := range s.failures {
		if s.failures[i].ID == id {
			s.failures[i].Status = status
			return nil
		}
	}
	return errors.New("failure not found")
}

func (s *fakeStore) settlementById(t *testing.T, id int) models.Settlement {
	t.Helper()
	for _, settlement := range s.settlements {
		if settlement.ID == id {
			return settlement
		}
	}
	t.Fatalf("settlement %d not found", id)
	return models.Settlement{}
}

func (s *fakeStore) pendingFailuresFor(settlementId int) []models.SyncFailure {
	var out []models.SyncFailure
	for _, f := range s.failures {
		if f.SettlementId == settlementId && f.Status == models.SyncFailureStatusPending {
			out = append(out, f)
		}
	}
	return out
}

type fakeClient struct {
	check     TokenCheck
	orders    []Order
	ordersErr error

	submit      func(SubmitRequest) (SubmitResponse, error)
	submitCalls []SubmitRequest
}

func (c *fakeClient) VerifyToken(ctx context.Context, token string) TokenCheck {
	return c.check
}

func (c *fakeClient) GetAllOrders(ctx context.Context, token string) ([]Order, error) {
	if c.ordersErr != nil {
		return nil, c.ordersErr
	}
	return c.orders, nil
}

func (c *fakeClient) SubmitOrder(ctx context.Context, token string, order SubmitRequest) (SubmitResponse, error) {
	c.submitCalls = append(c.submitCalls, order)
	if c.submit != nil {
		return c.submit(order)
	}
	return SubmitResponse{Code: 200, Msg: "ok"}, nil
}

func msPtr(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

func validSettlement(id int, orderNo string) models.Settlement {
	return models.Settlement{
		ID:            id,
		OrderNo:       orderNo,
		CustomerName:  "客户" + orderNo,
		OrderDate:     msPtr(time.Date(2026, 8, 10, 9, 30, 0, 0, time.Local)),
		OriginalPrice: "150",
		TotalPrice:    "200",
	}
}

func TestExecuteSyncFlow_MissingToken(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Message != "未配置创致平台Token，请先在设置中配置" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(result.Steps))
	}
	step := result.Steps[0]
	if step.Step != "验证Token" || step.Success || step.Message != "未配置Token" {
		t.Fatalf("unexpected step %+v", step)
	}
}

func TestExecuteSyncFlow_InvalidTokenShortCircuits(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	client := &fakeClient{check: TokenCheck{Valid: false, Message: "认证失败"}}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Message != "Token验证失败: 认证失败" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected only the verify step, got %d", len(result.Steps))
	}
}

func TestExecuteSyncFlow_FetchErrorShortCircuits(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "X1")}
	client := &fakeClient{
		check:     TokenCheck{Valid: true, Message: "Token有效"},
		ordersErr: errors.New("connection reset"),
	}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Message != "获取创致订单失败: connection reset" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected verify+fetch steps, got %d", len(result.Steps))
	}
	if result.Steps[1].Message != "获取失败: connection reset" {
		t.Fatalf("unexpected fetch step %+v", result.Steps[1])
	}
	if settlement := store.settlementById(t, 1); !settlement.RegistrationStatus.IsUnset() {
		t.Fatalf("no local mutation expected, got %+v", settlement)
	}
}

func TestExecuteSyncFlow_EndToEndReconciliation(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "X1")}
	client := &fakeClient{
		check:  TokenCheck{Valid: true, Message: "Token有效"},
		orders: []Order{{OrderNo: "X1", FinanceStatus: 1}},
	}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	want := SyncSummary{Registered: 1, Settled: 1, Uploaded: 0, Skipped: 0, Failed: 0}
	if result.Summary != want {
		t.Fatalf("expected summary %+v, got %+v", want, result.Summary)
	}
	settlement := store.settlementById(t, 1)
	if settlement.RegistrationStatus != models.RegistrationStatusRegistered {
		t.Fatalf("expected 已登记, got %q", settlement.RegistrationStatus)
	}
	if settlement.SettlementStatus != models.SettlementStatusSettled {
		t.Fatalf("expected 已结算, got %q", settlement.SettlementStatus)
	}
	if len(client.submitCalls) != 0 {
		t.Fatalf("expected no uploads, got %d", len(client.submitCalls))
	}
	if result.Message != "同步完成：上传 0 条，登记 1 条，结算 1 条，跳过 0 条，失败 0 条" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestExecuteSyncFlow_RegistrationIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "X1")}
	client := &fakeClient{
		check:  TokenCheck{Valid: true, Message: "Token有效"},
		orders: []Order{{OrderNo: "X1", FinanceStatus: 0}},
	}
	service := NewSyncService(store, client)

	first := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)
	if first.Summary.Registered != 1 {
		t.Fatalf("first run expected registered=1, got %+v", first.Summary)
	}

	second := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)
	if second.Summary.Registered != 0 {
		t.Fatalf("second run expected registered=0, got %+v", second.Summary)
	}
}

func TestExecuteSyncFlow_ValidationSkipsSilently(t *testing.T) {
	noOrderNo := validSettlement(1, "")
	noCustomer := validSettlement(2, "B2")
	noCustomer.CustomerName = "  "
	noDate := validSettlement(3, "B3")
	noDate.OrderDate = nil
	zeroAmount := validSettlement(4, "B4")
	zeroAmount.OriginalPrice = "0"

	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{noOrderNo, noCustomer, noDate, zeroAmount}
	client := &fakeClient{check: TokenCheck{Valid: true, Message: "Token有效"}}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if len(client.submitCalls) != 0 {
		t.Fatalf("incomplete records must never reach submit, got %d calls", len(client.submitCalls))
	}
	if result.Summary.Skipped != 4 {
		t.Fatalf("expected skipped=4, got %+v", result.Summary)
	}
	if result.Summary.Failed != 0 {
		t.Fatalf("validation skips must not count as failures, got %+v", result.Summary)
	}
	if len(store.failures) != 0 {
		t.Fatalf("validation skips must not be persisted, got %d failures", len(store.failures))
	}
	if !result.Success {
		t.Fatal("skips alone must not fail the flow")
	}
}

func TestExecuteSyncFlow_UploadSuccess(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "N1")}
	client := &fakeClient{check: TokenCheck{Valid: true, Message: "Token有效"}}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if !result.Success || result.Summary.Uploaded != 1 {
		t.Fatalf("expected one upload, got %+v", result.Summary)
	}
	if len(client.submitCalls) != 1 {
		t.Fatalf("expected 1 submit call, got %d", len(client.submitCalls))
	}
	call := client.submitCalls[0]
	if call.PayMethodId != "3" {
		t.Fatalf("expected payMethodId 3, got %q", call.PayMethodId)
	}
	if call.ApplyAmount != 150 {
		t.Fatalf("normal mode uses originalPrice, got %v", call.ApplyAmount)
	}
	if call.RegisterTime != "2026-08-10 09:30:00" {
		t.Fatalf("unexpected registerTime %q", call.RegisterTime)
	}
	if call.Remark != "" {
		t.Fatalf("remark must be empty, got %q", call.Remark)
	}
	if settlement := store.settlementById(t, 1); settlement.RegistrationStatus != models.RegistrationStatusRegistered {
		t.Fatalf("expected 已登记, got %q", settlement.RegistrationStatus)
	}
	if len(result.SuccessOrders) != 1 || result.SuccessOrders[0].Amount != "150.00" {
		t.Fatalf("unexpected successOrders %+v", result.SuccessOrders)
	}
}

func TestExecuteSyncFlow_SpecialModeUsesTotalPrice(t *testing.T) {
	special := validSettlement(1, "S1")
	special.IsSpecial = true
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{special, validSettlement(2, "N1")}
	client := &fakeClient{check: TokenCheck{Valid: true, Message: "Token有效"}}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeSpecial)

	if result.Summary.Uploaded != 1 {
		t.Fatalf("special mode must only upload special records, got %+v", result.Summary)
	}
	if len(client.submitCalls) != 1 || client.submitCalls[0].OrderNo != "S1" {
		t.Fatalf("unexpected submit calls %+v", client.submitCalls)
	}
	if client.submitCalls[0].ApplyAmount != 200 {
		t.Fatalf("special mode uses totalPrice, got %v", client.submitCalls[0].ApplyAmount)
	}
}

func TestExecuteSyncFlow_RemoteRejectionPersistsFailure(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "N1")}
	client := &fakeClient{
		check: TokenCheck{Valid: true, Message: "Token有效"},
		submit: func(SubmitRequest) (SubmitResponse, error) {
			return SubmitResponse{Code: 500, Msg: "订单已存在"}, nil
		},
	}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if result.Success {
		t.Fatal("a failed upload must fail the flow")
	}
	if result.Summary.Failed != 1 {
		t.Fatalf("expected failed=1, got %+v", result.Summary)
	}
	if settlement := store.settlementById(t, 1); settlement.RegistrationStatus != models.RegistrationStatusSyncFailed {
		t.Fatalf("expected 同步失败, got %q", settlement.RegistrationStatus)
	}
	pending := store.pendingFailuresFor(1)
	if len(pending) != 1 || pending[0].FailReason != "订单已存在" {
		t.Fatalf("unexpected failures %+v", store.failures)
	}
	if len(result.FailedOrders) != 1 || result.FailedOrders[0].Reason != "订单已存在" {
		t.Fatalf("unexpected failedOrders %+v", result.FailedOrders)
	}
}

func TestExecuteSyncFlow_NetworkErrorPersistsFailure(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "N1")}
	client := &fakeClient{
		check: TokenCheck{Valid: true, Message: "Token有效"},
		submit: func(SubmitRequest) (SubmitResponse, error) {
			return SubmitResponse{}, errors.New("dial timeout")
		},
	}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if result.Summary.Failed != 1 {
		t.Fatalf("expected failed=1, got %+v", result.Summary)
	}
	pending := store.pendingFailuresFor(1)
	if len(pending) != 1 || pending[0].FailReason != "网络错误: dial timeout" {
		t.Fatalf("unexpected failures %+v", store.failures)
	}
	if settlement := store.settlementById(t, 1); settlement.RegistrationStatus != models.RegistrationStatusSyncFailed {
		t.Fatalf("expected 同步失败, got %q", settlement.RegistrationStatus)
	}
}

func TestExecuteSyncFlow_RepeatedFailureUpdatesPendingRow(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "N1")}
	reason := "第一次失败"
	client := &fakeClient{
		check: TokenCheck{Valid: true, Message: "Token有效"},
		submit: func(SubmitRequest) (SubmitResponse, error) {
			return SubmitResponse{Code: 500, Msg: reason}, nil
		},
	}
	service := NewSyncService(store, client)

	service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	// The operator fixes nothing and forces another attempt.
	reason = "第二次失败"
	_ = store.BatchUpdateRegistrationStatus(context.Background(), []int{1}, models.RegistrationStatusUnregistered)
	service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	pending := store.pendingFailuresFor(1)
	if len(pending) != 1 {
		t.Fatalf("expected exactly one pending row, got %d", len(pending))
	}
	if pending[0].FailReason != "第二次失败" {
		t.Fatalf("expected refreshed reason, got %q", pending[0].FailReason)
	}
}

func TestExecuteSyncFlow_ExistingRemoteOrderSkipped(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "X1")}
	// Step 3 cannot see the record, so the upload loop meets it while
	// it already exists remotely.
	store.failOn["GetUnregisteredSettlements"] = errors.New("db busy")
	client := &fakeClient{
		check:  TokenCheck{Valid: true, Message: "Token有效"},
		orders: []Order{{OrderNo: "X1", FinanceStatus: 0}},
	}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	if len(client.submitCalls) != 0 {
		t.Fatalf("existing remote orders must not be re-submitted, got %d calls", len(client.submitCalls))
	}
	if result.Summary.Skipped != 1 {
		t.Fatalf("expected skipped=1, got %+v", result.Summary)
	}
	if settlement := store.settlementById(t, 1); settlement.RegistrationStatus != models.RegistrationStatusRegistered {
		t.Fatalf("expected 已登记, got %q", settlement.RegistrationStatus)
	}
}

func TestExecuteSyncFlow_StepErrorsAreNonFatal(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	store.settlements = []models.Settlement{validSettlement(1, "N1")}
	store.failOn["GetUnregisteredSettlements"] = errors.New("reg query failed")
	store.failOn["GetUnsettledSettlements"] = errors.New("settle query failed")
	client := &fakeClient{check: TokenCheck{Valid: true, Message: "Token有效"}}
	service := NewSyncService(store, client)

	result := service.ExecuteSyncFlow(context.Background(), models.SyncTypeNormal)

	// Both middle steps failed but the upload still ran.
	if result.Summary.Uploaded != 1 {
		t.Fatalf("upload must run despite step failures, got %+v", result.Summary)
	}
	if !result.Success {
		t.Fatal("step-level failures alone must not fail the flow")
	}
	var failedSteps []string
	for _, step := range result.Steps {
		if !step.Success {
			failedSteps = append(failedSteps, fmt.Sprintf("%s: %s", step.Step, step.Message))
		}
	}
	if len(failedSteps) != 2 {
		t.Fatalf("expected 2 failed steps, got %v", failedSteps)
	}
	if !strings.HasPrefix(failedSteps[0], "同步登记状态: 同步失败: ") {
		t.Fatalf("unexpected step failure %q", failedSteps[0])
	}
}

func TestRetrySingleSync_Success(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	settlement := validSettlement(1, "N1")
	settlement.RegistrationStatus = models.RegistrationStatusSyncFailed
	store.settlements = []models.Settlement{settlement}
	failureId, _ := store.CreateSyncFailure(context.Background(), 1, "远端拒绝", models.SyncTypeNormal)
	client := &fakeClient{check: TokenCheck{Valid: true, Message: "Token有效"}}
	service := NewSyncService(store, client)

	result := service.RetrySingleSync(context.Background(), 1, failureId, settlement)

	if !result.Success || result.Message != "同步成功" {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := store.settlementById(t, 1); got.RegistrationStatus != models.RegistrationStatusRegistered {
		t.Fatalf("expected 已登记, got %q", got.RegistrationStatus)
	}
	if store.failures[0].Status != models.SyncFailureStatusResolved {
		t.Fatalf("expected resolved, got %q", store.failures[0].Status)
	}
}

func TestRetrySingleSync_MissingToken(t *testing.T) {
	store := newFakeStore()
	service := NewSyncService(store, &fakeClient{})

	result := service.RetrySingleSync(context.Background(), 1, 1, validSettlement(1, "N1"))
	if result.Success || result.Message != "未配置创致平台Token" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRetrySingleSync_InvalidToken(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	client := &fakeClient{check: TokenCheck{Valid: false, Message: "认证失败"}}
	service := NewSyncService(store, client)

	result := service.RetrySingleSync(context.Background(), 1, 1, validSettlement(1, "N1"))
	if result.Success || result.Message != "Token无效: 认证失败" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRetrySingleSync_ValidationFailure(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	client := &fakeClient{check: TokenCheck{Valid: true, Message: "Token有效"}}
	service := NewSyncService(store, client)

	settlement := validSettlement(1, "N1")
	settlement.OriginalPrice = "0"
	result := service.RetrySingleSync(context.Background(), 1, 1, settlement)
	if result.Success || result.Message != "原价为空或为0" {
		t.Fatalf("unexpected result %+v", result)
	}

	special := validSettlement(2, "S1")
	special.IsSpecial = true
	special.TotalPrice = ""
	result = service.RetrySingleSync(context.Background(), 2, 2, special)
	if result.Success || result.Message != "加价后总价为空或为0" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(client.submitCalls) != 0 {
		t.Fatalf("validation failures must not reach submit, got %d calls", len(client.submitCalls))
	}
}

func TestRetrySingleSync_RepeatedFailureLeavesOriginalRowAlone(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	settlement := validSettlement(1, "N1")
	store.settlements = []models.Settlement{settlement}
	originalId, _ := store.CreateSyncFailure(context.Background(), 1, "旧原因", models.SyncTypeNormal)
	// Operator already marked the original entry ignored.
	_ = store.UpdateSyncFailureStatus(context.Background(), originalId, models.SyncFailureStatusIgnored)

	client := &fakeClient{
		check: TokenCheck{Valid: true, Message: "Token有效"},
		submit: func(SubmitRequest) (SubmitResponse, error) {
			return SubmitResponse{Code: 500, Msg: "仍然被拒"}, nil
		},
	}
	service := NewSyncService(store, client)

	result := service.RetrySingleSync(context.Background(), 1, originalId, settlement)

	if result.Success || result.Message != "仍然被拒" {
		t.Fatalf("unexpected result %+v", result)
	}
	if store.failures[0].Status != models.SyncFailureStatusIgnored {
		t.Fatalf("retry failure must not touch the original row, got %q", store.failures[0].Status)
	}
	pending := store.pendingFailuresFor(1)
	if len(pending) != 1 || pending[0].FailReason != "仍然被拒" {
		t.Fatalf("expected a fresh pending entry, got %+v", store.failures)
	}
}

func TestRetrySingleSync_NetworkErrorPersistsNothing(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingKeyChuangzhiToken] = "tok-1"
	settlement := validSettlement(1, "N1")
	store.settlements = []models.Settlement{settlement}
	client := &fakeClient{
		check: TokenCheck{Valid: true, Message: "Token有效"},
		submit: func(SubmitRequest) (SubmitResponse, error) {
			return SubmitResponse{}, errors.New("dial timeout")
		},
	}
	service := NewSyncService(store, client)

	result := service.RetrySingleSync(context.Background(), 1, 1, settlement)

	if result.Success || result.Message != "网络错误: dial timeout" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(store.failures) != 0 {
		t.Fatalf("network retry errors must not be persisted, got %+v", store.failures)
	}
	if got := store.settlementById(t, 1); !got.RegistrationStatus.IsUnset() {
		t.Fatalf("no status change expected, got %q", got.RegistrationStatus)
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(nil); got != "" {
		t.Fatalf("nil timestamp expected empty string, got %q", got)
	}
	var zero int64
	if got := formatTimestamp(&zero); got != "" {
		t.Fatalf("zero timestamp expected empty string, got %q", got)
	}
	ms := time.Date(2026, 1, 5, 8, 7, 9, 0, time.Local).UnixMilli()
	if got := formatTimestamp(&ms); got != "2026-01-05 08:07:09" {
		t.Fatalf("expected zero-padded local format, got %q", got)
	}
}

func TestValidateSettlement_FirstFailingReasonWins(t *testing.T) {
	settlement := models.Settlement{}
	if got := validateSettlement(settlement, false); got != "订单编号为空" {
		t.Fatalf("expected 订单编号为空, got %q", got)
	}
	settlement.OrderNo = "N1"
	if got := validateSettlement(settlement, false); got != "客户名称为空" {
		t.Fatalf("expected 客户名称为空, got %q", got)
	}
	settlement.CustomerName = "张三"
	if got := validateSettlement(settlement, false); got != "接单日期为空" {
		t.Fatalf("expected 接单日期为空, got %q", got)
	}
	settlement.OrderDate = msPtr(time.Now())
	if got := validateSettlement(settlement, false); got != "原价为空或为0" {
		t.Fatalf("expected 原价为空或为0, got %q", got)
	}
	settlement.OriginalPrice = "-5"
	if got := validateSettlement(settlement, false); got != "原价为空或为0" {
		t.Fatalf("negative amount must fail validation, got %q", got)
	}
	settlement.OriginalPrice = "10"
	if got := validateSettlement(settlement, false); got != "" {
		t.Fatalf("expected valid, got %q", got)
	}
}
