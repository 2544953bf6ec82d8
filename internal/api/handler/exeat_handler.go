package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"exeat/backend/internal/dto"
	"exeat/backend/internal/service"
	pkgerrors "exeat/backend/pkg/errors"
	"exeat/backend/pkg/response"
)

// ExeatHandler 离校申请与审批 HTTP 处理器
type ExeatHandler struct {
	exeatSvc    service.ExeatService
	workflowSvc service.WorkflowService
}

// NewExeatHandler 创建 ExeatHandler
func NewExeatHandler(exeatSvc service.ExeatService, workflowSvc service.WorkflowService) *ExeatHandler {
	return &ExeatHandler{exeatSvc: exeatSvc, workflowSvc: workflowSvc}
}

// Submit 学生提交离校申请
// POST /api/v1/exeats
func (h *ExeatHandler) Submit(c *gin.Context) {
	var req dto.SubmitExeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	exeat, err := h.exeatSvc.Submit(c.Request.Context(), studentID, &req)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.Created(c, exeat)
}

// ListMine 本人离校申请
// GET /api/v1/exeats/mine
func (h *ExeatHandler) ListMine(c *gin.Context) {
	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	exeats, err := h.exeatSvc.ListMine(c.Request.Context(), studentID)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.OK(c, gin.H{"list": exeats})
}

// ListByStage 按阶段列出待办
// GET /api/v1/exeats?stage=secretary_review&page=1&page_size=20
func (h *ExeatHandler) ListByStage(c *gin.Context) {
	var req dto.ListExeatRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	exeats, total, err := h.exeatSvc.ListByStage(c.Request.Context(), &req)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.OKPage(c, exeats, total, req.GetPage(), req.GetPageSize())
}

// Get 申请详情
// GET /api/v1/exeats/:id
func (h *ExeatHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	exeat, err := h.exeatSvc.GetByID(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.OK(c, exeat)
}

// Approve 当前阶段审批通过
// POST /api/v1/exeats/:id/approve
func (h *ExeatHandler) Approve(c *gin.Context) {
	h.transition(c, h.workflowSvc.Approve)
}

// Reject 当前阶段驳回
// POST /api/v1/exeats/:id/reject
func (h *ExeatHandler) Reject(c *gin.Context) {
	h.transition(c, h.workflowSvc.Reject)
}

type transitionFunc func(ctx context.Context, requestID string, actor service.Actor, req *dto.ActionRequest) (*dto.TransitionResponse, error)

func (h *ExeatHandler) transition(c *gin.Context, fn transitionFunc) {
	var req dto.ActionRequest
	// 允许空 body
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), c.Param("id"), actor, &req)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.OK(c, result)
}

// Appeal 学生对驳回提出申诉
// POST /api/v1/exeats/:id/appeal
func (h *ExeatHandler) Appeal(c *gin.Context) {
	var req dto.AppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	exeat, err := h.exeatSvc.Appeal(c.Request.Context(), c.Param("id"), studentID, &req)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.OK(c, exeat)
}

// BulkApply 批量审批/驳回，逐条返回结果
// POST /api/v1/exeats/bulk
func (h *ExeatHandler) BulkApply(c *gin.Context) {
	var req dto.BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.workflowSvc.BulkApply(c.Request.Context(), actor, &req)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.OK(c, result)
}

// Override 院长特批
// POST /api/v1/exeats/override
func (h *ExeatHandler) Override(c *gin.Context) {
	var req dto.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.workflowSvc.Override(c.Request.Context(), actor, &req)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.OK(c, result)
}

// ListAudit 审计记录（新到旧）
// GET /api/v1/exeats/:id/audit
func (h *ExeatHandler) ListAudit(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	entries, total, err := h.exeatSvc.ListAudit(c.Request.Context(), c.Param("id"), actor, &page)
	if err != nil {
		handleExeatError(c, err)
		return
	}

	response.OKPage(c, entries, total, page.GetPage(), page.GetPageSize())
}

func handleExeatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExeatNotFound):
		response.NotFound(c, 21001, "离校申请不存在")
	case errors.Is(err, service.ErrNotAuthorizedForStage):
		response.Forbidden(c, 21002, "当前阶段无权操作")
	case errors.Is(err, service.ErrAlreadyActed):
		response.Conflict(c, 21003, "已在该阶段操作过")
	case errors.Is(err, service.ErrRequestNotActive):
		response.Conflict(c, 21004, "申请已结束")
	case errors.Is(err, service.ErrStageMismatch):
		response.Conflict(c, 21005, "申请阶段已变化，请刷新后重试")
	case errors.Is(err, service.ErrActiveExeatExists):
		response.Conflict(c, 21006, "已有进行中的离校申请")
	case errors.Is(err, service.ErrInvalidCategory):
		response.BadRequest(c, 21007, "离校类别无效")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 21008, "离校日期无效")
	case errors.Is(err, service.ErrInvalidContactMethod):
		response.BadRequest(c, 21009, "家长联系方式无效")
	case errors.Is(err, service.ErrInvalidStage):
		response.BadRequest(c, 21010, "阶段无效")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 21011, "学生档案不存在")
	case errors.Is(err, service.ErrAppealForbidden):
		response.Forbidden(c, 21012, "只能对本人被驳回的申请提出申诉")
	case errors.Is(err, service.ErrAppealReasonRequired):
		response.BadRequest(c, 21013, "申诉必须填写理由")
	case errors.Is(err, service.ErrExeatAccessDenied):
		response.Forbidden(c, 21014, "无权查看该离校申请")
	case errors.Is(err, service.ErrOverrideForbidden):
		response.Forbidden(c, 21015, "仅院长可执行特批")
	case errors.Is(err, service.ErrOverrideReasonRequired):
		response.BadRequest(c, 21016, "特批必须填写理由")
	case errors.Is(err, service.ErrInvalidOutcome):
		response.BadRequest(c, 21017, "批量操作结果无效")
	case errors.Is(err, service.ErrEmptyBatch):
		response.BadRequest(c, 21018, "批量操作的申请列表不能为空")
	case errors.Is(err, pkgerrors.ErrLockNotAcquired), errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 21020, "申请正在被其他操作处理，请稍后重试")
	case errors.Is(err, service.ErrTransitionFailed):
		response.Error(c, http.StatusInternalServerError, 21019, "状态流转失败，操作未生效，请重试")
	default:
		response.InternalError(c)
	}
}
