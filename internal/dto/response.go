package dto

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// ── 批量操作结果 ──

// BatchItemResult 批量操作单条结果
type BatchItemResult struct {
	ExeatRequestID string        `json:"exeat_request_id"`
	Success        bool          `json:"success"`
	Status         string        `json:"status,omitempty"`
	Debt           *DebtResponse `json:"debt,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// BatchSummary 批量操作汇总
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchResponse 批量操作响应
type BatchResponse struct {
	Results []BatchItemResult `json:"results"`
	Summary BatchSummary      `json:"summary"`
}
