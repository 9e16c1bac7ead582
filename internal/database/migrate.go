package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-api/internal/models"
)

// Migrate creates or updates the tables used by the exam service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Class{},
		&models.Teacher{},
		&models.Student{},
		&models.Subject{},
		&models.Exam{},
		&models.Question{},
		&models.ExamSubmission{},
		&models.ExamAnswer{},
		&models.ExamGradeHistory{},
		&models.ActivityLog{},
	)
}
