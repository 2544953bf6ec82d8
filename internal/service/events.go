package service

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"exeat/backend/internal/model"
)

// TransitionEvent 状态流转事件（封闭集合）
// 审计与通知都由事件推导，新增事件类型必须同时补齐 auditFor / noticesFor
type TransitionEvent interface {
	transitionEvent()
}

// SubmittedEvent 学生提交申请
type SubmittedEvent struct {
	Request *model.ExeatRequest
}

// ApprovedEvent 某阶段审批通过
type ApprovedEvent struct {
	Request *model.ExeatRequest
	ActorID string
	Role    model.Role
	From    model.Stage
	To      model.Stage
	Comment string
	Bulk    bool
	Debt    *model.StudentExeatDebt // 本次签入产生的欠款
	Consent *model.ParentConsent    // 进入 parent_consent 时新签发的令牌
}

// RejectedEvent 某阶段驳回
type RejectedEvent struct {
	Request *model.ExeatRequest
	ActorID string
	Role    model.Role
	From    model.Stage
	Comment string
	Bulk    bool
}

// ConsentResolvedEvent 家长（或代办人）处理同意请求
type ConsentResolvedEvent struct {
	Request       *model.ExeatRequest
	Consent       *model.ParentConsent
	From          model.Stage
	To            model.Stage
	DelegatedBy   string // 为空表示家长本人
	DelegateRole  model.Role
	Justification string
}

// OverriddenEvent 院长特批直达
type OverriddenEvent struct {
	Request     *model.ExeatRequest
	ActorID     string
	From        model.Stage
	To          model.Stage
	Reason      string
	Flags       BypassFlags
	Skipped     []model.Stage
	Synthesized []model.Stage // 补录了门岗记录的阶段
	Reentered   bool
	Debt        *model.StudentExeatDebt
}

// BulkAppliedEvent 批量操作汇总；逐条结果已各自产生事件，此事件只用于日志
type BulkAppliedEvent struct {
	ActorID   string
	Outcome   model.Outcome
	Total     int
	Succeeded int
	Failed    int
}

// AppealedEvent 学生对驳回提出申诉
type AppealedEvent struct {
	Request *model.ExeatRequest
	Reason  string
}

// DebtSettledEvent 欠款结清
type DebtSettledEvent struct {
	Debt    *model.StudentExeatDebt
	ActorID string
}

func (*SubmittedEvent) transitionEvent()       {}
func (*ApprovedEvent) transitionEvent()        {}
func (*RejectedEvent) transitionEvent()        {}
func (*ConsentResolvedEvent) transitionEvent() {}
func (*OverriddenEvent) transitionEvent()      {}
func (*BulkAppliedEvent) transitionEvent()     {}
func (*AppealedEvent) transitionEvent()        {}
func (*DebtSettledEvent) transitionEvent()     {}

// ── 审计 ──

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonMeta(v map[string]interface{}) datatypes.JSON {
	if len(v) == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func debtMeta(meta map[string]interface{}, debt *model.StudentExeatDebt) {
	if debt == nil {
		return
	}
	meta["debt_id"] = debt.DebtID
	meta["days_overdue"] = debt.DaysOverdue
	meta["debt_amount"] = debt.Amount.StringFixed(2)
}

// auditFor 由事件生成审计记录；BulkAppliedEvent 不落审计表
func auditFor(ev TransitionEvent, now time.Time) *model.AuditEntry {
	switch e := ev.(type) {
	case *SubmittedEvent:
		return &model.AuditEntry{
			ActorID:        strPtr(e.Request.StudentID),
			StudentID:      e.Request.StudentID,
			ExeatRequestID: e.Request.ExeatRequestID,
			Action:         model.AuditSubmitted,
			Severity:       model.SeverityInfo,
			Details:        fmt.Sprintf("提交 %s 类离校申请，进入 %s", e.Request.Category, e.Request.Status),
			Metadata: jsonMeta(map[string]interface{}{
				"category":   e.Request.Category,
				"is_medical": e.Request.IsMedical,
				"to":         e.Request.Status,
			}),
			CreatedAt: now,
		}

	case *ApprovedEvent:
		meta := map[string]interface{}{"from": e.From, "to": e.To, "role": e.Role, "bulk": e.Bulk}
		debtMeta(meta, e.Debt)
		details := fmt.Sprintf("%s 以 %s 身份通过 %s，进入 %s", e.ActorID, e.Role, e.From, e.To)
		if e.Comment != "" {
			details += "；备注：" + e.Comment
		}
		return &model.AuditEntry{
			ActorID:        strPtr(e.ActorID),
			StudentID:      e.Request.StudentID,
			ExeatRequestID: e.Request.ExeatRequestID,
			Action:         model.AuditApproved,
			Severity:       model.SeverityInfo,
			Details:        details,
			Metadata:       jsonMeta(meta),
			CreatedAt:      now,
		}

	case *RejectedEvent:
		details := fmt.Sprintf("%s 以 %s 身份在 %s 驳回", e.ActorID, e.Role, e.From)
		if e.Comment != "" {
			details += "；原因：" + e.Comment
		}
		return &model.AuditEntry{
			ActorID:        strPtr(e.ActorID),
			StudentID:      e.Request.StudentID,
			ExeatRequestID: e.Request.ExeatRequestID,
			Action:         model.AuditRejected,
			Severity:       model.SeverityWarning,
			Details:        details,
			Metadata:       jsonMeta(map[string]interface{}{"from": e.From, "role": e.Role, "bulk": e.Bulk}),
			CreatedAt:      now,
		}

	case *ConsentResolvedEvent:
		meta := map[string]interface{}{
			"from":           e.From,
			"to":             e.To,
			"consent_status": e.Consent.Status,
			"contact_method": e.Consent.ContactMethod,
		}
		entry := &model.AuditEntry{
			StudentID:      e.Request.StudentID,
			ExeatRequestID: e.Request.ExeatRequestID,
			Action:         model.AuditConsentResolved,
			Severity:       model.SeverityInfo,
			Details:        fmt.Sprintf("家长 %s，进入 %s", e.Consent.Status, e.To),
			CreatedAt:      now,
		}
		if e.DelegatedBy != "" {
			meta["delegated_by"] = e.DelegatedBy
			meta["delegate_role"] = e.DelegateRole
			meta["justification"] = e.Justification
			entry.ActorID = strPtr(e.DelegatedBy)
			entry.Action = model.AuditConsentDelegated
			entry.Severity = model.SeverityWarning
			entry.Details = fmt.Sprintf("%s 以 %s 身份代家长 %s：%s", e.DelegatedBy, e.DelegateRole, e.Consent.Status, e.Justification)
		}
		entry.Metadata = jsonMeta(meta)
		return entry

	case *OverriddenEvent:
		meta := map[string]interface{}{
			"from":           e.From,
			"to":             e.To,
			"skip_security":  e.Flags.SkipSecurity,
			"skip_hostel":    e.Flags.SkipHostel,
			"skipped_stages": e.Skipped,
			"synthesized":    e.Synthesized,
			"reentered":      e.Reentered,
		}
		debtMeta(meta, e.Debt)
		return &model.AuditEntry{
			ActorID:        strPtr(e.ActorID),
			StudentID:      e.Request.StudentID,
			ExeatRequestID: e.Request.ExeatRequestID,
			Action:         model.AuditOverridden,
			Severity:       model.SeverityCritical,
			Details:        fmt.Sprintf("特批：%s → %s；理由：%s", e.From, e.To, e.Reason),
			Metadata:       jsonMeta(meta),
			CreatedAt:      now,
		}

	case *AppealedEvent:
		return &model.AuditEntry{
			ActorID:        strPtr(e.Request.StudentID),
			StudentID:      e.Request.StudentID,
			ExeatRequestID: e.Request.ExeatRequestID,
			Action:         model.AuditAppealed,
			Severity:       model.SeverityWarning,
			Details:        "学生申诉：" + e.Reason,
			CreatedAt:      now,
		}

	case *DebtSettledEvent:
		return &model.AuditEntry{
			ActorID:        strPtr(e.ActorID),
			StudentID:      e.Debt.StudentID,
			ExeatRequestID: e.Debt.ExeatRequestID,
			Action:         model.AuditDebtSettled,
			Severity:       model.SeverityInfo,
			Details:        fmt.Sprintf("欠款 %s 标记为 %s", e.Debt.Amount.StringFixed(2), e.Debt.PaymentStatus),
			Metadata: jsonMeta(map[string]interface{}{
				"debt_id":        e.Debt.DebtID,
				"payment_status": e.Debt.PaymentStatus,
			}),
			CreatedAt: now,
		}

	case *BulkAppliedEvent:
		return nil
	}
	panic(fmt.Sprintf("未处理的流转事件类型 %T", ev))
}

// ── 通知 ──

// stageReviewers 进入 stage 后需要处理的岗位通知
func stageReviewers(requestID string, stage model.Stage, student *model.Student) []Notice {
	roles := stageRoles[stage]
	if len(roles) == 0 {
		return nil
	}
	name := ""
	if student != nil {
		name = student.Name
	}
	notices := make([]Notice, 0, len(roles))
	for _, r := range roles {
		notices = append(notices, Notice{
			RequestID: requestID,
			Role:      r,
			Type:      NoticeApprovalRequired,
			Title:     "待处理离校申请",
			Message:   fmt.Sprintf("%s 的离校申请已进入 %s，等待处理", name, stage),
			Priority:  model.PriorityMedium,
		})
	}
	return notices
}

func studentNotice(req *model.ExeatRequest, student *model.Student, typ NoticeType, title, msg string, p model.Priority) Notice {
	n := Notice{
		RequestID: req.ExeatRequestID,
		UserID:    req.StudentID,
		Type:      typ,
		Title:     title,
		Message:   msg,
		Priority:  p,
	}
	if student != nil {
		n.Email = student.Email
	}
	return n
}

// progressNotices 申请前进到 to 时的学生通知 + 下一岗位待办
func progressNotices(req *model.ExeatRequest, student *model.Student, to model.Stage) []Notice {
	if to == model.StageCompleted {
		return []Notice{studentNotice(req, student, NoticeCompleted, "离校流程已完成", "你的离校申请已全部完成", model.PriorityLow)}
	}
	notices := []Notice{studentNotice(req, student, NoticeStageChanged, "离校申请进度更新",
		fmt.Sprintf("你的离校申请已进入 %s", to), model.PriorityLow)}
	return append(notices, stageReviewers(req.ExeatRequestID, to, student)...)
}

func debtNotice(req *model.ExeatRequest, student *model.Student, debt *model.StudentExeatDebt) []Notice {
	if debt == nil {
		return nil
	}
	return []Notice{studentNotice(req, student, NoticeDebtCreated, "逾期返校欠款",
		fmt.Sprintf("逾期 %d 天，产生欠款 %s", debt.DaysOverdue, debt.Amount.StringFixed(2)), model.PriorityHigh)}
}

// noticesFor 由事件生成通知；student 可能为 nil（档案缺失时只投递站内通知）
func noticesFor(ev TransitionEvent, student *model.Student) []Notice {
	switch e := ev.(type) {
	case *SubmittedEvent:
		notices := []Notice{studentNotice(e.Request, student, NoticeSubmitted, "离校申请已提交",
			fmt.Sprintf("你的离校申请已提交，当前阶段 %s", e.Request.Status), model.PriorityLow)}
		return append(notices, stageReviewers(e.Request.ExeatRequestID, e.Request.Status, student)...)

	case *ApprovedEvent:
		// parent_consent 阶段的家长请求由 ConsentSender 单独投递
		return append(progressNotices(e.Request, student, e.To), debtNotice(e.Request, student, e.Debt)...)

	case *RejectedEvent:
		msg := fmt.Sprintf("你的离校申请在 %s 被驳回", e.From)
		if e.Comment != "" {
			msg += "：" + e.Comment
		}
		return []Notice{studentNotice(e.Request, student, NoticeRejected, "离校申请被驳回", msg, model.PriorityHigh)}

	case *ConsentResolvedEvent:
		if e.To == model.StageRejected {
			return []Notice{studentNotice(e.Request, student, NoticeRejected, "家长未同意离校", "家长未同意本次离校申请", model.PriorityHigh)}
		}
		return progressNotices(e.Request, student, e.To)

	case *OverriddenEvent:
		notices := []Notice{
			studentNotice(e.Request, student, NoticeOverride, "离校申请已特批",
				fmt.Sprintf("院长特批：申请直达 %s，理由：%s", e.To, e.Reason), model.PriorityHigh),
			{
				RequestID: e.Request.ExeatRequestID,
				Role:      model.RoleAdmin,
				Type:      NoticeOverride,
				Title:     "特批操作提醒",
				Message:   fmt.Sprintf("%s 特批申请 %s：%s → %s，理由：%s", e.ActorID, e.Request.ExeatRequestID, e.From, e.To, e.Reason),
				Priority:  model.PriorityHigh,
			},
		}
		notices = append(notices, stageReviewers(e.Request.ExeatRequestID, e.To, student)...)
		return append(notices, debtNotice(e.Request, student, e.Debt)...)

	case *AppealedEvent:
		return []Notice{{
			RequestID: e.Request.ExeatRequestID,
			Role:      model.RoleDean,
			Type:      NoticeAppeal,
			Title:     "驳回申诉",
			Message:   "学生对驳回提出申诉：" + e.Reason,
			Priority:  model.PriorityMedium,
		}}

	case *DebtSettledEvent:
		return []Notice{{
			RequestID: e.Debt.ExeatRequestID,
			UserID:    e.Debt.StudentID,
			Type:      NoticeDebtSettled,
			Title:     "欠款已处理",
			Message:   fmt.Sprintf("欠款 %s 已标记为 %s", e.Debt.Amount.StringFixed(2), e.Debt.PaymentStatus),
			Priority:  model.PriorityLow,
		}}

	case *BulkAppliedEvent:
		return nil
	}
	panic(fmt.Sprintf("未处理的流转事件类型 %T", ev))
}
