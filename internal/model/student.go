package model

// Student 学生档案表 — 对应 students（仅保留审批流需要的联系方式）
type Student struct {
	StudentID   string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	MatricNo    string `gorm:"type:varchar(50);not null;uniqueIndex"          json:"matric_no"`
	Name        string `gorm:"type:varchar(100);not null"                     json:"name"`
	Email       string `gorm:"type:varchar(200)"                              json:"email,omitempty"`
	Phone       string `gorm:"type:varchar(30)"                               json:"phone,omitempty"`
	ParentName  string `gorm:"type:varchar(100)"                              json:"parent_name,omitempty"`
	ParentEmail string `gorm:"type:varchar(200)"                              json:"parent_email,omitempty"`
	ParentPhone string `gorm:"type:varchar(30)"                               json:"parent_phone,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }
