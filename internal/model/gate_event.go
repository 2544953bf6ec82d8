package model

import "time"

// GatePoint 门岗位置
type GatePoint string

const (
	GateHostel   GatePoint = "hostel"
	GateSecurity GatePoint = "security"
)

// GateDirection 出入方向
type GateDirection string

const (
	DirectionOut GateDirection = "out"
	DirectionIn  GateDirection = "in"
)

// GateEvent 门岗签出/签入记录表 — 对应 gate_events
type GateEvent struct {
	GateEventID    string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"gate_event_id"`
	ExeatRequestID string        `gorm:"type:uuid;not null;index"                       json:"exeat_request_id"`
	StudentID      string        `gorm:"type:uuid;not null"                             json:"student_id"`
	Point          GatePoint     `gorm:"type:varchar(20);not null"                      json:"point"`
	Direction      GateDirection `gorm:"type:varchar(10);not null"                      json:"direction"`
	StageCycle     int           `gorm:"not null;default:0"                             json:"stage_cycle"`
	RecordedBy     *string       `gorm:"type:uuid"                                      json:"recorded_by,omitempty"`
	Synthetic      bool          `gorm:"not null;default:false"                         json:"synthetic"` // 特批跳过阶段时补录
	RecordedAt     time.Time     `gorm:"not null"                                       json:"recorded_at"`
}

// TableName 指定表名
func (GateEvent) TableName() string { return "gate_events" }
