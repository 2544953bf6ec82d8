package service

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"exeat/backend/internal/model"
	pkgerrors "exeat/backend/pkg/errors"
)

// mock 仓储按值保存记录，读写都拷贝，模拟数据库行语义

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	students map[string]model.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]model.Student)}
}

func (m *mockStudentRepo) add(s model.Student) {
	m.students[s.StudentID] = s
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ExeatRequestRepository ──

type mockExeatRequestRepo struct {
	requests map[string]model.ExeatRequest
	order    []string
	students *mockStudentRepo
	seq      int
	// updateErr 非 nil 时 Update 返回该错误，用于验证回滚
	updateErr error
}

func newMockExeatRequestRepo(students *mockStudentRepo) *mockExeatRequestRepo {
	return &mockExeatRequestRepo{requests: make(map[string]model.ExeatRequest), students: students}
}

func (m *mockExeatRequestRepo) Create(_ context.Context, req *model.ExeatRequest) error {
	for _, r := range m.requests {
		if r.StudentID == req.StudentID && !r.Status.IsTerminal() {
			return gorm.ErrDuplicatedKey
		}
	}
	if req.ExeatRequestID == "" {
		m.seq++
		req.ExeatRequestID = fmt.Sprintf("exeat-%03d", m.seq)
	}
	if req.Version == 0 {
		req.Version = 1
	}
	stored := *req
	stored.Student = nil
	m.requests[req.ExeatRequestID] = stored
	m.order = append(m.order, req.ExeatRequestID)
	return nil
}

// put 直接写入指定状态的申请
func (m *mockExeatRequestRepo) put(req model.ExeatRequest) {
	if req.Version == 0 {
		req.Version = 1
	}
	if _, ok := m.requests[req.ExeatRequestID]; !ok {
		m.order = append(m.order, req.ExeatRequestID)
	}
	m.requests[req.ExeatRequestID] = req
}

func (m *mockExeatRequestRepo) get(id string) model.ExeatRequest {
	return m.requests[id]
}

func (m *mockExeatRequestRepo) GetByID(ctx context.Context, id string) (*model.ExeatRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if s, err := m.students.GetByID(ctx, r.StudentID); err == nil {
		r.Student = s
	}
	return &r, nil
}

func (m *mockExeatRequestRepo) GetByIDForUpdate(_ context.Context, id string) (*model.ExeatRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockExeatRequestRepo) GetActiveByStudent(_ context.Context, studentID string) (*model.ExeatRequest, error) {
	for _, id := range m.order {
		r := m.requests[id]
		if r.StudentID == studentID && !r.Status.IsTerminal() {
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockExeatRequestRepo) ListByStudent(_ context.Context, studentID string) ([]model.ExeatRequest, error) {
	var result []model.ExeatRequest
	for _, id := range m.order {
		if r := m.requests[id]; r.StudentID == studentID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockExeatRequestRepo) ListByStatus(_ context.Context, status model.Stage, offset, limit int) ([]model.ExeatRequest, int64, error) {
	var matched []model.ExeatRequest
	for _, id := range m.order {
		if r := m.requests[id]; r.Status == status {
			matched = append(matched, r)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockExeatRequestRepo) Update(_ context.Context, req *model.ExeatRequest) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	cur, ok := m.requests[req.ExeatRequestID]
	if !ok || cur.Version != req.Version {
		return pkgerrors.ErrOptimisticLock
	}
	req.Version++
	stored := *req
	stored.Student = nil
	m.requests[req.ExeatRequestID] = stored
	return nil
}

// ── Mock ApprovalRepository ──

type mockApprovalRepo struct {
	approvals []model.ExeatApproval
}

func newMockApprovalRepo() *mockApprovalRepo {
	return &mockApprovalRepo{}
}

func (m *mockApprovalRepo) Create(_ context.Context, a *model.ExeatApproval) error {
	for _, x := range m.approvals {
		if x.ExeatRequestID == a.ExeatRequestID && x.ActorID == a.ActorID && x.Role == a.Role &&
			x.Stage == a.Stage && x.StageCycle == a.StageCycle {
			return gorm.ErrDuplicatedKey
		}
	}
	a.ExeatApprovalID = fmt.Sprintf("appr-%03d", len(m.approvals)+1)
	m.approvals = append(m.approvals, *a)
	return nil
}

func (m *mockApprovalRepo) Exists(_ context.Context, requestID, actorID string, role model.Role, stage model.Stage, cycle int) (bool, error) {
	for _, x := range m.approvals {
		if x.ExeatRequestID == requestID && x.ActorID == actorID && x.Role == role &&
			x.Stage == stage && x.StageCycle == cycle {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockApprovalRepo) ListByActor(_ context.Context, requestID, actorID string, cycle int) ([]model.ExeatApproval, error) {
	var result []model.ExeatApproval
	for _, x := range m.approvals {
		if x.ExeatRequestID == requestID && x.ActorID == actorID && x.StageCycle == cycle {
			result = append(result, x)
		}
	}
	return result, nil
}

func (m *mockApprovalRepo) ListByRequest(_ context.Context, requestID string) ([]model.ExeatApproval, error) {
	var result []model.ExeatApproval
	for _, x := range m.approvals {
		if x.ExeatRequestID == requestID {
			result = append(result, x)
		}
	}
	return result, nil
}

// ── Mock ParentConsentRepository ──

type mockConsentRepo struct {
	consents []model.ParentConsent
}

func newMockConsentRepo() *mockConsentRepo {
	return &mockConsentRepo{}
}

func (m *mockConsentRepo) Create(_ context.Context, c *model.ParentConsent) error {
	for _, x := range m.consents {
		if x.Token == c.Token {
			return gorm.ErrDuplicatedKey
		}
	}
	if c.ParentConsentID == "" {
		c.ParentConsentID = fmt.Sprintf("consent-%03d", len(m.consents)+1)
	}
	m.consents = append(m.consents, *c)
	return nil
}

func (m *mockConsentRepo) GetByToken(_ context.Context, token string) (*model.ParentConsent, error) {
	for _, x := range m.consents {
		if x.Token == token {
			return &x, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockConsentRepo) GetByTokenForUpdate(ctx context.Context, token string) (*model.ParentConsent, error) {
	return m.GetByToken(ctx, token)
}

func (m *mockConsentRepo) GetCurrentByRequest(_ context.Context, requestID string) (*model.ParentConsent, error) {
	for i := len(m.consents) - 1; i >= 0; i-- {
		x := m.consents[i]
		if x.ExeatRequestID == requestID && !x.Superseded {
			return &x, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockConsentRepo) Update(_ context.Context, c *model.ParentConsent) error {
	for i := range m.consents {
		if m.consents[i].ParentConsentID == c.ParentConsentID {
			m.consents[i] = *c
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockConsentRepo) SupersedeByRequest(_ context.Context, requestID string) error {
	for i := range m.consents {
		if m.consents[i].ExeatRequestID == requestID {
			m.consents[i].Superseded = true
		}
	}
	return nil
}

// ── Mock GateEventRepository ──

type mockGateEventRepo struct {
	events []model.GateEvent
}

func newMockGateEventRepo() *mockGateEventRepo {
	return &mockGateEventRepo{}
}

func (m *mockGateEventRepo) Create(_ context.Context, ev *model.GateEvent) error {
	ev.GateEventID = fmt.Sprintf("gate-%03d", len(m.events)+1)
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockGateEventRepo) ListByRequest(_ context.Context, requestID string) ([]model.GateEvent, error) {
	var result []model.GateEvent
	for _, x := range m.events {
		if x.ExeatRequestID == requestID {
			result = append(result, x)
		}
	}
	return result, nil
}

// ── Mock DebtRepository ──

type mockDebtRepo struct {
	debts []model.StudentExeatDebt
}

func newMockDebtRepo() *mockDebtRepo {
	return &mockDebtRepo{}
}

func (m *mockDebtRepo) Create(_ context.Context, d *model.StudentExeatDebt) error {
	for _, x := range m.debts {
		if x.ExeatRequestID == d.ExeatRequestID && x.PaymentStatus != model.PaymentCleared {
			return gorm.ErrDuplicatedKey
		}
	}
	if d.DebtID == "" {
		d.DebtID = fmt.Sprintf("debt-%03d", len(m.debts)+1)
	}
	m.debts = append(m.debts, *d)
	return nil
}

func (m *mockDebtRepo) GetByID(_ context.Context, id string) (*model.StudentExeatDebt, error) {
	for _, x := range m.debts {
		if x.DebtID == id {
			return &x, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDebtRepo) GetOpenByRequest(_ context.Context, requestID string) (*model.StudentExeatDebt, error) {
	for _, x := range m.debts {
		if x.ExeatRequestID == requestID && x.PaymentStatus != model.PaymentCleared {
			return &x, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDebtRepo) ListByStudent(_ context.Context, studentID string) ([]model.StudentExeatDebt, error) {
	var result []model.StudentExeatDebt
	for _, x := range m.debts {
		if x.StudentID == studentID {
			result = append(result, x)
		}
	}
	return result, nil
}

func (m *mockDebtRepo) Update(_ context.Context, d *model.StudentExeatDebt) error {
	for i := range m.debts {
		if m.debts[i].DebtID == d.DebtID {
			m.debts[i] = *d
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock AuditRepository ──

type mockAuditRepo struct {
	entries []model.AuditEntry
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Create(_ context.Context, e *model.AuditEntry) error {
	e.AuditEntryID = fmt.Sprintf("audit-%03d", len(m.entries)+1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockAuditRepo) ListByRequest(_ context.Context, requestID string, offset, limit int) ([]model.AuditEntry, int64, error) {
	var matched []model.AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ExeatRequestID == requestID {
			matched = append(matched, m.entries[i])
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockAuditRepo) actions(requestID string) []model.AuditAction {
	var result []model.AuditAction
	for _, e := range m.entries {
		if e.ExeatRequestID == requestID {
			result = append(result, e.Action)
		}
	}
	return result
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	mu            sync.Mutex
	notifications []model.Notification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) BatchCreate(_ context.Context, rows []model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, rows...)
	return nil
}

func (m *mockNotificationRepo) countType(typ NoticeType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, x := range m.notifications {
		if x.Type == string(typ) {
			n++
		}
	}
	return n
}

// contentFor 返回投递给 userID 的第一条 typ 类型通知内容
func (m *mockNotificationRepo) contentFor(userID string, typ NoticeType) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.notifications {
		if x.Type == string(typ) && x.UserID != nil && *x.UserID == userID {
			return x.Content, true
		}
	}
	return "", false
}
