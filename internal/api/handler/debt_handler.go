package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"exeat/backend/internal/dto"
	"exeat/backend/internal/service"
	"exeat/backend/pkg/response"
)

// DebtHandler 逾期欠款 HTTP 处理器
type DebtHandler struct {
	debtSvc service.DebtService
}

// NewDebtHandler 创建 DebtHandler
func NewDebtHandler(debtSvc service.DebtService) *DebtHandler {
	return &DebtHandler{debtSvc: debtSvc}
}

// ListMine 本人欠款
// GET /api/v1/debts/mine
func (h *DebtHandler) ListMine(c *gin.Context) {
	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	debts, err := h.debtSvc.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		handleDebtError(c, err)
		return
	}

	response.OK(c, gin.H{"list": debts})
}

// Settle 标记欠款已付/核销
// PUT /api/v1/debts/:id/settle
func (h *DebtHandler) Settle(c *gin.Context) {
	var req dto.SettleDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	debt, err := h.debtSvc.Settle(c.Request.Context(), c.Param("id"), actor, &req)
	if err != nil {
		handleDebtError(c, err)
		return
	}

	response.OK(c, debt)
}

func handleDebtError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDebtNotFound):
		response.NotFound(c, 23001, "欠款记录不存在")
	case errors.Is(err, service.ErrDebtAlreadyCleared):
		response.Conflict(c, 23002, "欠款已核销")
	case errors.Is(err, service.ErrInvalidDebtStatus):
		response.BadRequest(c, 23003, "欠款状态无效")
	default:
		handleExeatError(c, err)
	}
}
