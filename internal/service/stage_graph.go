package service

import (
	"fmt"

	"exeat/backend/internal/model"
)

// stageRoles 阶段 → 可操作能力（顺序即解析优先级）
// parent_consent 由家长令牌或代办接口处理，不走普通审批
var stageRoles = map[model.Stage][]model.Role{
	model.StageCMDReview:       {model.RoleCMD},
	model.StageSecretaryReview: {model.RoleSecretary, model.RoleDeputyDean},
	model.StageDeanReview:      {model.RoleDean},
	model.StageHostelSignout:   {model.RoleHostelAdmin},
	model.StageSecuritySignout: {model.RoleSecurity},
	model.StageSecuritySignin:  {model.RoleSecurity},
	model.StageHostelSignin:    {model.RoleHostelAdmin},
}

// StageRoles 返回阶段的授权能力列表
func StageRoles(stage model.Stage) []model.Role {
	return stageRoles[stage]
}

// ResolveActingRole 由 (操作者能力 ∩ 阶段授权能力) 确定本次记账使用的能力
// requested 非空时只考虑该能力（须为操作者持有）；admin 以阶段主能力身份操作
func ResolveActingRole(actor Actor, requested model.Role, stage model.Stage) (model.Role, bool) {
	allowed := stageRoles[stage]
	if len(allowed) == 0 {
		return "", false
	}

	if requested != "" {
		if !actor.Has(requested) {
			return "", false
		}
		for _, r := range allowed {
			if r == requested {
				return r, true
			}
		}
		if requested == model.RoleAdmin {
			return allowed[0], true
		}
		return "", false
	}

	for _, r := range allowed {
		if actor.Has(r) {
			return r, true
		}
	}
	if actor.Has(model.RoleAdmin) {
		return allowed[0], true
	}
	return "", false
}

// StageGraph 审批状态图，宿舍阶段开关在构造时注入
type StageGraph struct {
	hostelStagesEnabled bool
}

// NewStageGraph 创建状态图
func NewStageGraph(hostelStagesEnabled bool) StageGraph {
	return StageGraph{hostelStagesEnabled: hostelStagesEnabled}
}

// HostelStagesEnabled 是否启用宿舍签出/签入阶段
func (g StageGraph) HostelStagesEnabled() bool {
	return g.hostelStagesEnabled
}

// FirstStage 提交后的首个审批阶段：医疗申请先经医务主任
func (g StageGraph) FirstStage(req *model.ExeatRequest) model.Stage {
	if req.IsMedical {
		return model.StageCMDReview
	}
	return model.StageSecretaryReview
}

// usesHostel 该申请是否经过宿舍阶段（假期类别不经过）
func (g StageGraph) usesHostel(req *model.ExeatRequest) bool {
	return g.hostelStagesEnabled && req.Category != model.CategoryHoliday
}

// Next 计算在当前阶段审批通过后的下一阶段
func (g StageGraph) Next(req *model.ExeatRequest) (model.Stage, error) {
	switch req.Status {
	case model.StagePending:
		return g.FirstStage(req), nil
	case model.StageCMDReview:
		return model.StageSecretaryReview, nil
	case model.StageSecretaryReview:
		return model.StageParentConsent, nil
	case model.StageParentConsent:
		if !req.Category.IsDaily() {
			return model.StageDeanReview, nil
		}
		if g.usesHostel(req) {
			return model.StageHostelSignout, nil
		}
		return model.StageSecuritySignout, nil
	case model.StageDeanReview:
		if g.usesHostel(req) {
			return model.StageHostelSignout, nil
		}
		return model.StageSecuritySignout, nil
	case model.StageHostelSignout:
		return model.StageSecuritySignout, nil
	case model.StageSecuritySignout:
		return model.StageSecuritySignin, nil
	case model.StageSecuritySignin:
		if g.usesHostel(req) {
			return model.StageHostelSignin, nil
		}
		return model.StageCompleted, nil
	case model.StageHostelSignin:
		return model.StageCompleted, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoNextStage, req.Status)
}

// Pipeline 返回该申请从首个审批阶段到 completed 的完整路径
func (g StageGraph) Pipeline(req *model.ExeatRequest) []model.Stage {
	cur := *req
	cur.Status = g.FirstStage(req)

	stages := []model.Stage{cur.Status}
	for cur.Status != model.StageCompleted {
		next, err := g.Next(&cur)
		if err != nil {
			break
		}
		stages = append(stages, next)
		cur.Status = next
	}
	return stages
}

// Previous 路径上紧邻当前阶段之前的阶段；当前阶段为首个阶段或不在路径上时返回 false
func (g StageGraph) Previous(req *model.ExeatRequest) (model.Stage, bool) {
	pipeline := g.Pipeline(req)
	idx := stageIndex(pipeline, req.Status)
	if idx <= 0 {
		return "", false
	}
	return pipeline[idx-1], true
}

// BypassFlags 特批跳过选项
type BypassFlags struct {
	SkipSecurity bool
	SkipHostel   bool
}

// OverrideTarget 特批直达阶段
// 申请本身不经过宿舍阶段时，落在 hostel_signin 的结果顺延为 completed
func (g StageGraph) OverrideTarget(req *model.ExeatRequest, flags BypassFlags) model.Stage {
	var target model.Stage
	switch {
	case flags.SkipSecurity && flags.SkipHostel:
		target = model.StageCompleted
	case flags.SkipSecurity:
		target = model.StageHostelSignin
	case flags.SkipHostel:
		target = model.StageSecuritySignin
	default:
		target = model.StageSecuritySignout
	}

	if target == model.StageHostelSignin && !g.usesHostel(req) {
		return model.StageCompleted
	}
	return target
}

// stagesBetween 返回路径上 [from, to) 之间的阶段；to 不在 from 之后时返回 nil
// from 不在路径上（pending 等）时从路径起点计算
func stagesBetween(pipeline []model.Stage, from, to model.Stage) []model.Stage {
	fromIdx, toIdx := -1, -1
	for i, s := range pipeline {
		if s == from {
			fromIdx = i
		}
		if s == to {
			toIdx = i
		}
	}
	if fromIdx < 0 {
		fromIdx = 0
	}
	if toIdx <= fromIdx {
		return nil
	}
	return append([]model.Stage(nil), pipeline[fromIdx:toIdx]...)
}

// stageIndex 阶段在路径中的位置，不存在返回 -1
func stageIndex(pipeline []model.Stage, stage model.Stage) int {
	for i, s := range pipeline {
		if s == stage {
			return i
		}
	}
	return -1
}
