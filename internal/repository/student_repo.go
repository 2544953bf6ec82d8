package repository

import (
	"context"

	"gorm.io/gorm"

	"exeat/backend/internal/model"
)

// StudentRepository 学生档案数据访问接口
type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Student, error)
}

type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Where("student_id = ?", id).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}
