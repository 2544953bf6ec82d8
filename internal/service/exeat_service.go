package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exeat/backend/internal/dto"
	"exeat/backend/internal/model"
	"exeat/backend/internal/repository"
)

// ── 离校申请模块业务错误 ──

var (
	ErrStudentNotFound      = errors.New("学生档案不存在")
	ErrActiveExeatExists    = errors.New("已有进行中的离校申请")
	ErrInvalidCategory      = errors.New("离校类别无效")
	ErrInvalidContactMethod = errors.New("家长联系方式无效")
	ErrInvalidDateRange     = errors.New("返校日期不能早于出发日期")
	ErrInvalidStage         = errors.New("阶段无效")
	ErrAppealForbidden      = errors.New("只能对本人被驳回的申请提出申诉")
	ErrAppealReasonRequired = errors.New("申诉必须填写理由")
	ErrExeatAccessDenied    = errors.New("无权查看该离校申请")
)

const dateLayout = "2006-01-02"

// ExeatService 离校申请业务接口
type ExeatService interface {
	Submit(ctx context.Context, studentID string, req *dto.SubmitExeatRequest) (*dto.ExeatResponse, error)
	GetByID(ctx context.Context, id string, actor Actor) (*dto.ExeatResponse, error)
	ListMine(ctx context.Context, studentID string) ([]dto.ExeatResponse, error)
	ListByStage(ctx context.Context, req *dto.ListExeatRequest) ([]dto.ExeatResponse, int64, error)
	Appeal(ctx context.Context, id string, studentID string, req *dto.AppealRequest) (*dto.ExeatResponse, error)
	ListAudit(ctx context.Context, id string, actor Actor, page *dto.PaginationRequest) ([]dto.AuditEntryResponse, int64, error)
}

type exeatService struct {
	engine *Engine
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExeatService 创建 ExeatService 实例
func NewExeatService(engine *Engine, logger *zap.Logger) ExeatService {
	return &exeatService{engine: engine, repo: engine.repo, logger: logger}
}

// ────────────────────── Submit ──────────────────────

func (s *exeatService) Submit(ctx context.Context, studentID string, req *dto.SubmitExeatRequest) (*dto.ExeatResponse, error) {
	category := model.Category(req.Category)
	if !category.Valid() {
		return nil, ErrInvalidCategory
	}
	method := model.ContactMethod(req.ContactMethod)
	if method == "" {
		method = model.ContactEmail
	}
	if !method.Valid() {
		return nil, ErrInvalidContactMethod
	}
	departure, err := time.Parse(dateLayout, req.DepartureDate)
	if err != nil {
		return nil, ErrInvalidDateRange
	}
	ret, err := time.Parse(dateLayout, req.ReturnDate)
	if err != nil {
		return nil, ErrInvalidDateRange
	}
	if ret.Before(departure) {
		return nil, ErrInvalidDateRange
	}

	exeat := &model.ExeatRequest{
		StudentID:     studentID,
		Category:      category,
		IsMedical:     req.IsMedical || category == model.CategoryMedicalDaily,
		Status:        model.StagePending,
		Reason:        strings.TrimSpace(req.Reason),
		Destination:   strings.TrimSpace(req.Destination),
		ContactMethod: method,
		DepartureDate: departure,
		ReturnDate:    ret,
	}
	exeat.Status = s.engine.graph.FirstStage(exeat)
	exeat.CreatedBy = &studentID
	exeat.UpdatedBy = &studentID

	var student *model.Student
	ev := &SubmittedEvent{Request: exeat}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		st, err := tx.Student.GetByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentNotFound
			}
			return err
		}
		student = st

		if _, err := tx.ExeatRequest.GetActiveByStudent(ctx, studentID); err == nil {
			return ErrActiveExeatExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.ExeatRequest.Create(ctx, exeat); err != nil {
			// 并发提交由部分唯一索引兜底
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrActiveExeatExists
			}
			return err
		}
		return tx.Audit.Create(ctx, auditFor(ev, s.engine.now()))
	})
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) || errors.Is(err, ErrActiveExeatExists) {
			return nil, err
		}
		s.logger.Error("提交离校申请失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	s.engine.afterCommit(ctx, ev, student)
	exeat.Student = student
	return toExeatResponse(exeat), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *exeatService) GetByID(ctx context.Context, id string, actor Actor) (*dto.ExeatResponse, error) {
	exeat, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return toExeatResponse(exeat), nil
}

// load 读取申请；仅持有 student 能力的操作者只能看本人申请
func (s *exeatService) load(ctx context.Context, id string, actor Actor) (*model.ExeatRequest, error) {
	exeat, err := s.repo.ExeatRequest.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExeatNotFound
		}
		s.logger.Error("查询离校申请失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if isStudentOnly(actor) && exeat.StudentID != actor.ID {
		return nil, ErrExeatAccessDenied
	}
	return exeat, nil
}

func isStudentOnly(actor Actor) bool {
	for _, r := range actor.Roles {
		if r != model.RoleStudent {
			return false
		}
	}
	return true
}

// ────────────────────── ListMine ──────────────────────

func (s *exeatService) ListMine(ctx context.Context, studentID string) ([]dto.ExeatResponse, error) {
	exeats, err := s.repo.ExeatRequest.ListByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("查询本人离校申请失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ExeatResponse, 0, len(exeats))
	for i := range exeats {
		result = append(result, *toExeatResponse(&exeats[i]))
	}
	return result, nil
}

// ────────────────────── ListByStage ──────────────────────

func (s *exeatService) ListByStage(ctx context.Context, req *dto.ListExeatRequest) ([]dto.ExeatResponse, int64, error) {
	stage := model.Stage(req.Stage)
	if !stage.Valid() {
		return nil, 0, ErrInvalidStage
	}

	exeats, total, err := s.repo.ExeatRequest.ListByStatus(ctx, stage, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("按阶段查询离校申请失败", zap.String("stage", req.Stage), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ExeatResponse, 0, len(exeats))
	for i := range exeats {
		result = append(result, *toExeatResponse(&exeats[i]))
	}
	return result, total, nil
}

// ────────────────────── Appeal ──────────────────────

// Appeal 仅记录申诉并通知院长，申请不会重新进入审批
func (s *exeatService) Appeal(ctx context.Context, id string, studentID string, req *dto.AppealRequest) (*dto.ExeatResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrAppealReasonRequired
	}

	result, _, err := s.engine.Apply(ctx, id, func(ctx context.Context, tx *repository.Repository, exeat *model.ExeatRequest) (TransitionEvent, error) {
		if exeat.StudentID != studentID || exeat.Status != model.StageRejected {
			return nil, ErrAppealForbidden
		}
		now := s.engine.now()
		exeat.Status = model.StageAppeal
		exeat.AppealReason = reason
		exeat.AppealedAt = &now
		if err := s.engine.save(ctx, tx, exeat, studentID); err != nil {
			return nil, err
		}
		return &AppealedEvent{Request: exeat, Reason: reason}, nil
	})
	if err != nil {
		return nil, err
	}
	return toExeatResponse(result), nil
}

// ────────────────────── ListAudit ──────────────────────

func (s *exeatService) ListAudit(ctx context.Context, id string, actor Actor, page *dto.PaginationRequest) ([]dto.AuditEntryResponse, int64, error) {
	if _, err := s.load(ctx, id, actor); err != nil {
		return nil, 0, err
	}

	entries, total, err := s.repo.Audit.ListByRequest(ctx, id, page.GetOffset(), page.GetPageSize())
	if err != nil {
		s.logger.Error("查询审计记录失败", zap.String("id", id), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		result = append(result, toAuditEntryResponse(&entries[i]))
	}
	return result, total, nil
}

// ── 转换 ──

func toExeatResponse(e *model.ExeatRequest) *dto.ExeatResponse {
	resp := &dto.ExeatResponse{
		ID:             e.ExeatRequestID,
		StudentID:      e.StudentID,
		Category:       string(e.Category),
		IsMedical:      e.IsMedical,
		Status:         string(e.Status),
		Reason:         e.Reason,
		Destination:    e.Destination,
		ContactMethod:  string(e.ContactMethod),
		DepartureDate:  e.DepartureDate.Format(dateLayout),
		ReturnDate:     e.ReturnDate.Format(dateLayout),
		DeanOverride:   e.DeanOverride,
		OverrideReason: e.OverrideReason,
		AppealReason:   e.AppealReason,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
	if e.ActualReturnTime != nil {
		t := e.ActualReturnTime.Format(time.RFC3339)
		resp.ActualReturnTime = &t
	}
	if e.Student != nil {
		resp.StudentName = e.Student.Name
	}
	return resp
}

func toAuditEntryResponse(a *model.AuditEntry) dto.AuditEntryResponse {
	resp := dto.AuditEntryResponse{
		ID:        a.AuditEntryID,
		ActorID:   a.ActorID,
		Action:    string(a.Action),
		Severity:  string(a.Severity),
		Details:   a.Details,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if len(a.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(a.Metadata, &meta); err == nil {
			resp.Metadata = meta
		}
	}
	return resp
}
