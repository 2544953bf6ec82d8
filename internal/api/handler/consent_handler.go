package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"exeat/backend/internal/dto"
	"exeat/backend/internal/service"
	"exeat/backend/pkg/response"
)

// ConsentHandler 家长同意 HTTP 处理器
type ConsentHandler struct {
	consentSvc service.ConsentService
}

// NewConsentHandler 创建 ConsentHandler
func NewConsentHandler(consentSvc service.ConsentService) *ConsentHandler {
	return &ConsentHandler{consentSvc: consentSvc}
}

// Resolve 家长通过链接提交决定（公开接口）
// POST /api/v1/consent/:token
func (h *ConsentHandler) Resolve(c *gin.Context) {
	var req dto.ConsentDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.consentSvc.Resolve(c.Request.Context(), c.Param("token"), service.ConsentDecision(req.Decision))
	if err != nil {
		handleConsentError(c, err)
		return
	}

	response.OK(c, result)
}

// Delegate 员工代家长处理
// POST /api/v1/exeats/:id/consent/delegate
func (h *ConsentHandler) Delegate(c *gin.Context) {
	var req dto.DelegateConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.consentSvc.ResolveOnBehalf(c.Request.Context(), c.Param("id"), actor, &req)
	if err != nil {
		handleConsentError(c, err)
		return
	}

	response.OK(c, result)
}

func handleConsentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrConsentNotFound):
		response.NotFound(c, 22001, "同意链接无效")
	case errors.Is(err, service.ErrConsentExpired):
		response.Gone(c, 22002, "同意链接已过期")
	case errors.Is(err, service.ErrConsentConflict):
		response.Conflict(c, 22003, "该链接已处理为相反的决定")
	case errors.Is(err, service.ErrConsentSuperseded):
		response.Gone(c, 22004, "该链接已失效，请使用最新的链接")
	case errors.Is(err, service.ErrInvalidDecision):
		response.BadRequest(c, 22005, "决定无效")
	case errors.Is(err, service.ErrDelegationForbidden):
		response.Forbidden(c, 22006, "无权代家长处理")
	case errors.Is(err, service.ErrJustificationRequired):
		response.BadRequest(c, 22007, "代办必须填写理由")
	default:
		handleExeatError(c, err)
	}
}
