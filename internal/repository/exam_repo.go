package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-exam-api/internal/models"
)

// ExamRepository exposes exams and their question bank.
type ExamRepository interface {
	// Transaction runs fn with a repository bound to a single database transaction.
	Transaction(ctx context.Context, fn func(repo ExamRepository) error) error
	// LockExam takes a FOR UPDATE lock on the exam row. Attempt creation takes
	// a shared lock on the same row, so the two serialise.
	LockExam(ctx context.Context, id uint) error
	GetExam(ctx context.Context, id uint) (models.Exam, error)
	ListQuestions(ctx context.Context, examID uint) ([]models.Question, error)
	GetQuestion(ctx context.Context, examID, questionID uint) (models.Question, error)
	CreateQuestion(ctx context.Context, question *models.Question) error
	UpdateQuestion(ctx context.Context, question *models.Question) error
	DeleteQuestion(ctx context.Context, examID, questionID uint) error
	CountSubmissions(ctx context.Context, examID uint) (int64, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository constructs the exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) Transaction(ctx context.Context, fn func(repo ExamRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&examRepository{db: tx})
	})
}

func (r *examRepository) LockExam(ctx context.Context, id uint) error {
	var exam models.Exam
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&exam, id).Error
}

func (r *examRepository) GetExam(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).Preload("Subject").First(&exam, id).Error; err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (r *examRepository) ListQuestions(ctx context.Context, examID uint) ([]models.Question, error) {
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *examRepository) GetQuestion(ctx context.Context, examID, questionID uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		First(&question, questionID).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *examRepository) CreateQuestion(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *examRepository) UpdateQuestion(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r *examRepository) DeleteQuestion(ctx context.Context, examID, questionID uint) error {
	result := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.Question{}, questionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *examRepository) CountSubmissions(ctx context.Context, examID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
