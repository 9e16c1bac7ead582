package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-api/internal/models"
)

// DirectoryRepository resolves authenticated users into school roles.
type DirectoryRepository interface {
	StudentByUserID(ctx context.Context, userID uint) (models.Student, error)
	TeacherByUserID(ctx context.Context, userID uint) (models.Teacher, error)
}

type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository constructs the directory repository.
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) StudentByUserID(ctx context.Context, userID uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *directoryRepository) TeacherByUserID(ctx context.Context, userID uint) (models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&teacher).Error; err != nil {
		return models.Teacher{}, err
	}
	return teacher, nil
}
