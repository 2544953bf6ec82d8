package dto

// ── 欠款模块 DTO ──

// SettleDebtRequest 欠款结清请求
type SettleDebtRequest struct {
	Status string `json:"status" binding:"required,oneof=paid cleared"`
}

// DebtResponse 欠款信息
type DebtResponse struct {
	ID             string  `json:"id"`
	ExeatRequestID string  `json:"exeat_request_id"`
	DaysOverdue    int     `json:"days_overdue"`
	Amount         string  `json:"amount"` // 两位小数字符串，避免浮点误差
	PaymentStatus  string  `json:"payment_status"`
	SettledAt      *string `json:"settled_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}
