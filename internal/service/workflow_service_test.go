package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"exeat/backend/internal/dto"
	"exeat/backend/internal/model"
)

func submitDaily(t *testing.T, env *testEnv) string {
	t.Helper()
	resp, err := env.svc.Exeat.Submit(context.Background(), "stu-001", &dto.SubmitExeatRequest{
		Category:      "daily",
		Reason:        "回家取证件",
		Destination:   "市区",
		DepartureDate: "2024-01-08",
		ReturnDate:    "2024-01-10",
	})
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	return resp.ID
}

// ── 完整流程 ──

func TestWorkflow_DailyFullPipeline(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	id := submitDaily(t, env)

	resp := env.approve(t, id, actSecretary)
	if resp.Status != string(model.StageParentConsent) {
		t.Fatalf("期望进入 parent_consent，实际=%s", resp.Status)
	}

	sent := env.sender.wait(t)
	if sent.to != "parent@example.com" || sent.method != model.ContactEmail {
		t.Errorf("家长同意请求投递地址错误: %+v", sent)
	}
	if sent.msg.Link != "https://exeat.example.edu/consent/tok-001" {
		t.Errorf("同意链接错误: %s", sent.msg.Link)
	}

	consent, err := env.svc.Consent.Resolve(ctx, "tok-001", DecisionApprove)
	if err != nil {
		t.Fatalf("家长同意应成功: %v", err)
	}
	// 日间类别不经院长
	if consent.Status != string(model.StageHostelSignout) {
		t.Fatalf("期望进入 hostel_signout，实际=%s", consent.Status)
	}

	env.approve(t, id, actHostel)
	env.approve(t, id, actSecurity)

	env.clock.Set(time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC))
	resp = env.approve(t, id, actSecurity)
	if resp.Status != string(model.StageHostelSignin) {
		t.Fatalf("期望进入 hostel_signin，实际=%s", resp.Status)
	}
	if resp.Debt != nil {
		t.Errorf("按时返校不应产生欠款: %+v", resp.Debt)
	}

	resp = env.approve(t, id, actHostel)
	if resp.Status != string(model.StageCompleted) {
		t.Fatalf("期望 completed，实际=%s", resp.Status)
	}

	final := env.exeats.get(id)
	if final.ActualReturnTime == nil {
		t.Error("签入后应记录实际返校时间")
	}
	if len(env.gates.events) != 4 {
		t.Errorf("期望 4 条门岗记录，实际 %d", len(env.gates.events))
	}
	if len(env.approvals.approvals) != 5 {
		t.Errorf("期望 5 条审批记录，实际 %d", len(env.approvals.approvals))
	}

	want := []model.AuditAction{
		model.AuditSubmitted, model.AuditApproved, model.AuditConsentResolved,
		model.AuditApproved, model.AuditApproved, model.AuditApproved, model.AuditApproved,
	}
	got := env.audits.actions(id)
	if len(got) != len(want) {
		t.Fatalf("期望审计 %v，实际 %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("第 %d 条审计期望 %s，实际 %s", i, want[i], got[i])
		}
	}
	if env.notices.countType(NoticeCompleted) != 1 {
		t.Error("完成时应通知学生")
	}
}

func TestWorkflow_RegularGoesThroughDean(t *testing.T) {
	env := setupTestEnv(false)
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageParentConsent)
	env.consents.consents = append(env.consents.consents, model.ParentConsent{
		ParentConsentID: "consent-001",
		ExeatRequestID:  "exeat-001",
		Token:           "tok-x",
		ContactMethod:   model.ContactEmail,
		Status:          model.ConsentPending,
		ExpiresAt:       env.clock.Now().Add(time.Hour),
	})

	resp, err := env.svc.Consent.Resolve(context.Background(), "tok-x", DecisionApprove)
	if err != nil {
		t.Fatalf("Resolve 应成功: %v", err)
	}
	if resp.Status != string(model.StageDeanReview) {
		t.Fatalf("期望 dean_review，实际=%s", resp.Status)
	}

	out := env.approve(t, "exeat-001", actDean)
	if out.Status != string(model.StageSecuritySignout) {
		t.Errorf("宿舍阶段关闭时院长之后应为 security_signout，实际=%s", out.Status)
	}
}

func TestWorkflow_MedicalStartsAtCMD(t *testing.T) {
	env := setupTestEnv(true)
	resp, err := env.svc.Exeat.Submit(context.Background(), "stu-001", &dto.SubmitExeatRequest{
		Category:      "medical_daily",
		Reason:        "复诊",
		Destination:   "市医院",
		DepartureDate: "2024-01-08",
		ReturnDate:    "2024-01-08",
	})
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if resp.Status != string(model.StageCMDReview) || !resp.IsMedical {
		t.Fatalf("医疗申请应从 cmd_review 开始，实际=%s medical=%v", resp.Status, resp.IsMedical)
	}

	if _, err := env.svc.Workflow.Approve(context.Background(), resp.ID, actSecretary, nil); !errors.Is(err, ErrNotAuthorizedForStage) {
		t.Errorf("秘书不能审批 cmd_review，实际: %v", err)
	}
	out := env.approve(t, resp.ID, actCMD)
	if out.Status != string(model.StageSecretaryReview) {
		t.Errorf("期望 secretary_review，实际=%s", out.Status)
	}
}

// ── 幂等与授权 ──

func TestWorkflow_DoubleApproveIsAlreadyActed(t *testing.T) {
	env := setupTestEnv(true)
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecretaryReview)

	env.approve(t, "exeat-001", actSecretary)

	_, err := env.svc.Workflow.Approve(context.Background(), "exeat-001", actSecretary, nil)
	if !errors.Is(err, ErrAlreadyActed) {
		t.Fatalf("期望 ErrAlreadyActed，实际: %v", err)
	}
	if len(env.approvals.approvals) != 1 {
		t.Errorf("重复提交不应新增审批记录，实际 %d", len(env.approvals.approvals))
	}
	if got := env.exeats.get("exeat-001").Status; got != model.StageParentConsent {
		t.Errorf("阶段不应再次推进，实际=%s", got)
	}
}

// 同一能力拥有相邻两个阶段：签出后原样重复提交不应越过签入
func TestWorkflow_SecurityDoubleApproveIsAlreadyActed(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecuritySignout)

	if _, err := env.svc.Workflow.Approve(ctx, "exeat-001", actSecurity, &dto.ActionRequest{}); err != nil {
		t.Fatalf("首次签出应成功: %v", err)
	}
	_, err := env.svc.Workflow.Approve(ctx, "exeat-001", actSecurity, &dto.ActionRequest{})
	if !errors.Is(err, ErrAlreadyActed) {
		t.Fatalf("期望 ErrAlreadyActed，实际: %v", err)
	}

	req := env.exeats.get("exeat-001")
	if req.Status != model.StageSecuritySignin {
		t.Errorf("阶段只应推进一次，实际=%s", req.Status)
	}
	if req.ActualReturnTime != nil {
		t.Error("重复提交不应写入实际返校时间")
	}
	if len(env.gates.events) != 1 || len(env.approvals.approvals) != 1 {
		t.Errorf("期望 1 条门岗记录与 1 条审批记录，实际 %d / %d", len(env.gates.events), len(env.approvals.approvals))
	}
	if len(env.debts.debts) != 0 {
		t.Error("重复提交不应触发欠款计算")
	}

	// 携带当前阶段即为真正的签入
	resp, err := env.svc.Workflow.Approve(ctx, "exeat-001", actSecurity, &dto.ActionRequest{ExpectedStage: string(model.StageSecuritySignin)})
	if err != nil {
		t.Fatalf("携带 expected_stage 的签入应成功: %v", err)
	}
	if resp.Status != string(model.StageHostelSignin) {
		t.Errorf("期望 hostel_signin，实际=%s", resp.Status)
	}
}

func TestWorkflow_AdminDoubleApproveIsAlreadyActed(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageDeanReview)

	if _, err := env.svc.Workflow.Approve(ctx, "exeat-001", actAdmin, nil); err != nil {
		t.Fatalf("首次审批应成功: %v", err)
	}
	if _, err := env.svc.Workflow.Approve(ctx, "exeat-001", actAdmin, nil); !errors.Is(err, ErrAlreadyActed) {
		t.Fatalf("期望 ErrAlreadyActed，实际: %v", err)
	}
	if got := env.exeats.get("exeat-001").Status; got != model.StageHostelSignout {
		t.Errorf("阶段只应推进一次，实际=%s", got)
	}
	if len(env.approvals.approvals) != 1 {
		t.Errorf("期望 1 条审批记录，实际 %d", len(env.approvals.approvals))
	}
}

func TestWorkflow_ConcurrentApproveAdvancesOnce(t *testing.T) {
	env := setupTestEnv(true)
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecuritySignout)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Workflow.Approve(context.Background(), "exeat-001", actSecurity, &dto.ActionRequest{})
		}(i)
	}
	wg.Wait()

	succeeded, duplicated := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyActed):
			duplicated++
		default:
			t.Errorf("意外错误: %v", err)
		}
	}
	if succeeded != 1 || duplicated != 1 {
		t.Fatalf("期望 1 次成功 1 次重复，实际 %d / %d", succeeded, duplicated)
	}
	if len(env.approvals.approvals) != 1 {
		t.Errorf("期望 1 条审批记录，实际 %d", len(env.approvals.approvals))
	}
	if got := env.exeats.get("exeat-001").Status; got != model.StageSecuritySignin {
		t.Errorf("阶段只应推进一次，实际=%s", got)
	}
}

func TestWorkflow_StaleExpectedStage(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecretaryReview)
	env.approve(t, "exeat-001", actSecretary)

	stale := &dto.ActionRequest{ExpectedStage: string(model.StageSecretaryReview)}

	if _, err := env.svc.Workflow.Approve(ctx, "exeat-001", actSecretary, stale); !errors.Is(err, ErrAlreadyActed) {
		t.Errorf("已操作过的人提交旧页面应为 ErrAlreadyActed，实际: %v", err)
	}
	if _, err := env.svc.Workflow.Approve(ctx, "exeat-001", actDeputyDean, stale); !errors.Is(err, ErrStageMismatch) {
		t.Errorf("未操作过的人提交旧页面应为 ErrStageMismatch，实际: %v", err)
	}
}

func TestWorkflow_UnauthorizedRole(t *testing.T) {
	env := setupTestEnv(true)
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageDeanReview)

	_, err := env.svc.Workflow.Approve(context.Background(), "exeat-001", actSecretary, nil)
	if !errors.Is(err, ErrNotAuthorizedForStage) {
		t.Errorf("期望 ErrNotAuthorizedForStage，实际: %v", err)
	}
	if len(env.audits.entries) != 0 {
		t.Error("授权失败不应写审计")
	}
}

func TestWorkflow_AdminActsAsStageRole(t *testing.T) {
	env := setupTestEnv(true)
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageDeanReview)

	env.approve(t, "exeat-001", actAdmin)
	if got := env.approvals.approvals[0].Role; got != model.RoleDean {
		t.Errorf("管理员应以 dean 身份记账，实际=%s", got)
	}
}

func TestWorkflow_RejectIsTerminal(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecretaryReview)

	resp, err := env.svc.Workflow.Reject(ctx, "exeat-001", actSecretary, &dto.ActionRequest{Comment: "材料不全"})
	if err != nil {
		t.Fatalf("Reject 应成功: %v", err)
	}
	if resp.Status != string(model.StageRejected) || resp.PreviousStatus != string(model.StageSecretaryReview) {
		t.Fatalf("驳回结果错误: %+v", resp)
	}

	if _, err := env.svc.Workflow.Approve(ctx, "exeat-001", actDean, nil); !errors.Is(err, ErrRequestNotActive) {
		t.Errorf("终态申请期望 ErrRequestNotActive，实际: %v", err)
	}
	if _, err := env.svc.Workflow.Reject(ctx, "exeat-001", actSecretary, nil); !errors.Is(err, ErrAlreadyActed) {
		t.Errorf("驳回人重复提交期望 ErrAlreadyActed，实际: %v", err)
	}
	if env.notices.countType(NoticeRejected) != 1 {
		t.Error("驳回应通知学生一次")
	}
}

func TestWorkflow_RejectAtParentConsentAdminOnly(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageParentConsent)

	if _, err := env.svc.Workflow.Reject(ctx, "exeat-001", actDean, nil); !errors.Is(err, ErrNotAuthorizedForStage) {
		t.Errorf("院长不能在 parent_consent 驳回，实际: %v", err)
	}
	resp, err := env.svc.Workflow.Reject(ctx, "exeat-001", actAdmin, nil)
	if err != nil {
		t.Fatalf("管理员驳回应成功: %v", err)
	}
	if resp.Status != string(model.StageRejected) {
		t.Errorf("期望 rejected，实际=%s", resp.Status)
	}
}

// ── 逾期欠款 ──

func TestWorkflow_LateSigninCreatesDebt(t *testing.T) {
	env := setupTestEnv(true)
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecuritySignin)

	env.clock.Set(time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC))
	resp := env.approve(t, "exeat-001", actSecurity)

	if resp.Debt == nil {
		t.Fatal("逾期返校应产生欠款")
	}
	if resp.Debt.DaysOverdue != 2 || resp.Debt.Amount != "1000.00" {
		t.Errorf("期望逾期 2 天 1000.00，实际 %d 天 %s", resp.Debt.DaysOverdue, resp.Debt.Amount)
	}
	if env.notices.countType(NoticeDebtCreated) != 1 {
		t.Error("产生欠款应通知学生")
	}
}

// ── 批量 ──

func TestWorkflow_BulkApply_PartialFailure(t *testing.T) {
	env := setupTestEnv(true)
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecretaryReview)
	env.seed("exeat-002", "stu-002", model.CategoryRegular, model.StageSecretaryReview)

	resp, err := env.svc.Workflow.BulkApply(context.Background(), actSecretary, &dto.BulkActionRequest{
		ExeatRequestIDs: []string{"exeat-001", "missing", "exeat-002"},
		Outcome:         "approved",
	})
	if err != nil {
		t.Fatalf("BulkApply 应成功: %v", err)
	}
	if resp.Summary.Total != 3 || resp.Summary.Succeeded != 2 || resp.Summary.Failed != 1 {
		t.Fatalf("汇总错误: %+v", resp.Summary)
	}
	if resp.Results[1].Success || resp.Results[1].Error == "" {
		t.Errorf("不存在的申请应单独失败: %+v", resp.Results[1])
	}
	for _, id := range []string{"exeat-001", "exeat-002"} {
		if got := env.exeats.get(id).Status; got != model.StageParentConsent {
			t.Errorf("%s 期望 parent_consent，实际=%s", id, got)
		}
	}
}

func TestWorkflow_BulkApply_ExpectedStagePerItem(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecuritySignout)
	env.seed("exeat-002", "stu-002", model.CategoryRegular, model.StageSecuritySignin)

	bulk := &dto.BulkActionRequest{
		ExeatRequestIDs: []string{"exeat-001", "exeat-002"},
		Outcome:         "approved",
		ExpectedStage:   string(model.StageSecuritySignout),
	}
	resp, err := env.svc.Workflow.BulkApply(ctx, actSecurity, bulk)
	if err != nil {
		t.Fatalf("BulkApply 应成功: %v", err)
	}
	if !resp.Results[0].Success || resp.Results[1].Success {
		t.Fatalf("只有处于 security_signout 的申请应成功: %+v", resp.Results)
	}
	if got := env.exeats.get("exeat-002").Status; got != model.StageSecuritySignin {
		t.Errorf("阶段不符的申请不应推进，实际=%s", got)
	}

	// 重复提交同一批次
	resp, err = env.svc.Workflow.BulkApply(ctx, actSecurity, bulk)
	if err != nil {
		t.Fatalf("BulkApply 应成功: %v", err)
	}
	if resp.Summary.Succeeded != 0 {
		t.Errorf("重复批次不应有成功项: %+v", resp.Results)
	}
	if got := env.exeats.get("exeat-001").Status; got != model.StageSecuritySignin {
		t.Errorf("阶段只应推进一次，实际=%s", got)
	}
}

func TestWorkflow_BulkApply_Validation(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()

	if _, err := env.svc.Workflow.BulkApply(ctx, actSecretary, &dto.BulkActionRequest{ExeatRequestIDs: []string{"a"}, Outcome: "maybe"}); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("期望 ErrInvalidOutcome，实际: %v", err)
	}
	if _, err := env.svc.Workflow.BulkApply(ctx, actSecretary, &dto.BulkActionRequest{Outcome: "rejected"}); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("期望 ErrEmptyBatch，实际: %v", err)
	}
}

// ── 特批 ──

func TestWorkflow_Override_DefaultTarget(t *testing.T) {
	env := setupTestEnv(true)
	env.seed("exeat-001", "stu-001", model.CategoryDaily, model.StageParentConsent)
	env.consents.consents = append(env.consents.consents, model.ParentConsent{
		ParentConsentID: "consent-001", ExeatRequestID: "exeat-001", Token: "tok-x",
		Status: model.ConsentPending, ExpiresAt: env.clock.Now().Add(time.Hour),
	})

	resp, err := env.svc.Workflow.Override(context.Background(), actDean, &dto.OverrideRequest{
		ExeatRequestIDs: []string{"exeat-001"},
		Reason:          "家中急事",
	})
	if err != nil {
		t.Fatalf("Override 应成功: %v", err)
	}
	if resp.Summary.Succeeded != 1 || resp.Results[0].Status != string(model.StageSecuritySignout) {
		t.Fatalf("特批结果错误: %+v", resp)
	}

	req := env.exeats.get("exeat-001")
	if !req.DeanOverride || req.OverrideReason != "家中急事" || req.OverrideBy == nil {
		t.Errorf("特批字段未记录: %+v", req)
	}
	if !env.consents.consents[0].Superseded {
		t.Error("跳过 parent_consent 时应作废未决令牌")
	}
	if len(env.gates.events) != 1 || env.gates.events[0].Point != model.GateHostel || !env.gates.events[0].Synthetic {
		t.Errorf("应补录一条宿舍签出记录: %+v", env.gates.events)
	}

	entry := env.audits.entries[len(env.audits.entries)-1]
	if entry.Action != model.AuditOverridden || entry.Severity != model.SeverityCritical {
		t.Errorf("特批审计错误: %+v", entry)
	}
	if !strings.Contains(string(entry.Metadata), "hostel_signout") {
		t.Errorf("审计元数据应包含被跳过阶段: %s", entry.Metadata)
	}
	if env.notices.countType(NoticeOverride) != 2 {
		t.Errorf("特批应通知学生与管理员，实际 %d", env.notices.countType(NoticeOverride))
	}
	if content, ok := env.notices.contentFor("stu-001", NoticeOverride); !ok || !strings.Contains(content, "家中急事") {
		t.Errorf("学生特批通知应包含特批理由，实际 %q", content)
	}

	if _, err := env.svc.Consent.Resolve(context.Background(), "tok-x", DecisionApprove); !errors.Is(err, ErrConsentSuperseded) {
		t.Errorf("作废令牌期望 ErrConsentSuperseded，实际: %v", err)
	}
}

func TestWorkflow_Override_SkipAllSynthesizesSignin(t *testing.T) {
	env := setupTestEnv(true)
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageDeanReview)
	env.clock.Set(time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC))

	resp, err := env.svc.Workflow.Override(context.Background(), actAdmin, &dto.OverrideRequest{
		ExeatRequestIDs: []string{"exeat-001"},
		Reason:          "系统补录",
		SkipSecurity:    true,
		SkipHostel:      true,
	})
	if err != nil {
		t.Fatalf("Override 应成功: %v", err)
	}
	if resp.Results[0].Status != string(model.StageCompleted) {
		t.Fatalf("期望 completed，实际=%s", resp.Results[0].Status)
	}
	if len(env.gates.events) != 4 {
		t.Errorf("期望补录 4 条门岗记录，实际 %d", len(env.gates.events))
	}
	if resp.Results[0].Debt == nil || resp.Results[0].Debt.DaysOverdue != 1 {
		t.Errorf("补录签入应按逾期计费: %+v", resp.Results[0].Debt)
	}
	if env.exeats.get("exeat-001").ActualReturnTime == nil {
		t.Error("补录签入应记录实际返校时间")
	}
}

func TestWorkflow_Override_ReentryKeepsSingleDebt(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageSecuritySignin)

	env.clock.Set(time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC))
	env.approve(t, "exeat-001", actSecurity)
	if len(env.debts.debts) != 1 {
		t.Fatalf("签入后应有 1 笔欠款，实际 %d", len(env.debts.debts))
	}

	// 回退到 security_signin，开启新一轮
	if _, err := env.svc.Workflow.Override(ctx, actDean, &dto.OverrideRequest{
		ExeatRequestIDs: []string{"exeat-001"},
		Reason:          "签入时间登记错误",
		SkipHostel:      true,
	}); err != nil {
		t.Fatalf("Override 应成功: %v", err)
	}
	req := env.exeats.get("exeat-001")
	if req.Status != model.StageSecuritySignin || req.StageCycle != 1 {
		t.Fatalf("期望回到 security_signin 第 1 轮，实际 %s 第 %d 轮", req.Status, req.StageCycle)
	}

	env.clock.Advance(24 * time.Hour)
	resp := env.approve(t, "exeat-001", actSecurity)
	if resp.Debt != nil {
		t.Errorf("已有未结清欠款时不应重复计费: %+v", resp.Debt)
	}
	if len(env.debts.debts) != 1 {
		t.Errorf("期望仍为 1 笔欠款，实际 %d", len(env.debts.debts))
	}
}

func TestWorkflow_Override_Validation(t *testing.T) {
	env := setupTestEnv(true)
	ctx := context.Background()
	env.seed("exeat-001", "stu-001", model.CategoryRegular, model.StageRejected)

	if _, err := env.svc.Workflow.Override(ctx, actSecretary, &dto.OverrideRequest{ExeatRequestIDs: []string{"exeat-001"}, Reason: "x"}); !errors.Is(err, ErrOverrideForbidden) {
		t.Errorf("期望 ErrOverrideForbidden，实际: %v", err)
	}
	if _, err := env.svc.Workflow.Override(ctx, actDean, &dto.OverrideRequest{ExeatRequestIDs: []string{"exeat-001"}, Reason: "  "}); !errors.Is(err, ErrOverrideReasonRequired) {
		t.Errorf("期望 ErrOverrideReasonRequired，实际: %v", err)
	}

	resp, err := env.svc.Workflow.Override(ctx, actDean, &dto.OverrideRequest{ExeatRequestIDs: []string{"exeat-001"}, Reason: "补批"})
	if err != nil {
		t.Fatalf("逐条失败不应整体报错: %v", err)
	}
	if resp.Summary.Failed != 1 || resp.Results[0].Success {
		t.Errorf("终态申请特批应失败: %+v", resp)
	}
}
