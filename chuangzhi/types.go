package chuangzhi

// Order is one remote order snapshot. orderNo is the only join key
// back to local settlements; there is no shared surrogate id.
type Order struct {
	ID                  string   `json:"id"`
	DesignerId          string   `json:"designerId"`
	PayMethodId         string   `json:"payMethodId"`
	OrderNo             string   `json:"orderNo"`
	ApplyAmount         float64  `json:"applyAmount"`
	RegisterTime        string   `json:"registerTime"`
	CustomerName        string   `json:"customerName"`
	CustomerService     string   `json:"customerService"`
	FinanceStatus       int      `json:"financeStatus"` // 0=未结算, 1=已结算
	SettledAmount       *float64 `json:"settledAmount"`
	DesignerApplyStatus int      `json:"designerApplyStatus"`
	RejectReason        *string  `json:"rejectReason"`
	SettledTime         *string  `json:"settledTime"`
}

type ListResponse struct {
	Code  int     `json:"code,omitempty"`
	Total int     `json:"total"`
	Rows  []Order `json:"rows"`
	Msg   string  `json:"msg,omitempty"`
}

type SubmitRequest struct {
	OrderNo         string  `json:"orderNo"`
	CustomerName    string  `json:"customerName"`
	ApplyAmount     float64 `json:"applyAmount"`
	CustomerService string  `json:"customerService"`
	PayMethodId     string  `json:"payMethodId"`
	RegisterTime    string  `json:"registerTime"`
	Remark          string  `json:"remark"`
}

type SubmitResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type infoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
}

// TokenCheck deliberately folds "invalid token" and "connection
// failed" into one shape; only the message tells them apart.
type TokenCheck struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type SyncStepResult struct {
	Step    string `json:"step"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
}

type SyncSummary struct {
	Registered int `json:"registered"`
	Settled    int `json:"settled"`
	Uploaded   int `json:"uploaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type SyncOrderRef struct {
	OrderNo      string `json:"orderNo"`
	CustomerName string `json:"customerName"`
	Amount       string `json:"amount"`
}

type FailedOrderRef struct {
	OrderNo      string `json:"orderNo"`
	CustomerName string `json:"customerName"`
	Amount       string `json:"amount"`
	Reason       string `json:"reason"`
}

type SyncResult struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	Steps         []SyncStepResult `json:"steps"`
	Summary       SyncSummary      `json:"summary"`
	FailedOrders  []FailedOrderRef `json:"failedOrders"`
	SuccessOrders []SyncOrderRef   `json:"successOrders"`
}

type RetryResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
