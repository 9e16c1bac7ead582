package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-exam-api/internal/models"
)

// ErrConflict indicates a uniqueness constraint rejected the write.
var ErrConflict = errors.New("record already exists")

// ErrInvalidTransition indicates the lifecycle forbids moving between the
// two statuses.
var ErrInvalidTransition = errors.New("submission status transition not allowed")

// ErrStaleTransition indicates the submission left the expected status
// before the transition could be applied.
var ErrStaleTransition = errors.New("submission status changed concurrently")

const uniqueViolationCode = "23505"

// ExamSubmissionRepository persists exam attempts and their answers.
type ExamSubmissionRepository interface {
	// Transaction runs fn with a repository bound to a single database transaction.
	Transaction(ctx context.Context, fn func(repo ExamSubmissionRepository) error) error
	// ShareLockExam takes a shared lock on the exam row for the rest of the
	// transaction. Question edits need the exclusive lock on the same row.
	ShareLockExam(ctx context.Context, examID uint) error
	GetByExamAndStudent(ctx context.Context, examID, studentID uint) (*models.ExamSubmission, error)
	GetByID(ctx context.Context, id uint) (models.ExamSubmission, error)
	LockByID(ctx context.Context, id uint) (models.ExamSubmission, error)
	ListByExam(ctx context.Context, examID uint) ([]models.ExamSubmission, error)
	Create(ctx context.Context, submission *models.ExamSubmission) error
	ReplaceAnswers(ctx context.Context, submissionID uint, answers []models.ExamAnswer) error
	SetAnswerMarks(ctx context.Context, submissionID uint, marks map[uint]float64) error
	Transition(ctx context.Context, id uint, from, to models.SubmissionStatus, fields map[string]interface{}) error
	CreateHistory(ctx context.Context, history *models.ExamGradeHistory) error
}

type examSubmissionRepository struct {
	db *gorm.DB
}

// NewExamSubmissionRepository instantiates the submission store.
func NewExamSubmissionRepository(db *gorm.DB) ExamSubmissionRepository {
	return &examSubmissionRepository{db: db}
}

func (r *examSubmissionRepository) Transaction(ctx context.Context, fn func(repo ExamSubmissionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&examSubmissionRepository{db: tx})
	})
}

func (r *examSubmissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ExamSubmission{}).
		Preload("Exam").
		Preload("Exam.Subject").
		Preload("Student").
		Preload("Answers", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("question_id ASC")
		}).
		Preload("History", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("graded_at DESC")
		})
}

func (r *examSubmissionRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uint) (*models.ExamSubmission, error) {
	var submission models.ExamSubmission
	result := r.baseQuery(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Limit(1).
		Find(&submission)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &submission, nil
}

func (r *examSubmissionRepository) ShareLockExam(ctx context.Context, examID uint) error {
	var exam models.Exam
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Select("id").
		First(&exam, examID).Error
}

func (r *examSubmissionRepository) GetByID(ctx context.Context, id uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.ExamSubmission{}, err
	}
	return submission, nil
}

// LockByID reads the submission row with FOR UPDATE. SQLite ignores the
// locking clause and relies on its single-writer model instead.
func (r *examSubmissionRepository) LockByID(ctx context.Context, id uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&submission, id).Error; err != nil {
		return models.ExamSubmission{}, err
	}
	return submission, nil
}

func (r *examSubmissionRepository) ListByExam(ctx context.Context, examID uint) ([]models.ExamSubmission, error) {
	var submissions []models.ExamSubmission
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("exam_id = ?", examID).
		Order("started_at ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// Create inserts the submission. Exactly-once creation is enforced by the
// (exam_id, student_id) unique index; a violation is reported as ErrConflict.
func (r *examSubmissionRepository) Create(ctx context.Context, submission *models.ExamSubmission) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(submission).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// ReplaceAnswers deletes every answer of the submission and inserts the
// supplied set. Callers run it inside Transaction so readers never observe
// a partial set.
func (r *examSubmissionRepository) ReplaceAnswers(ctx context.Context, submissionID uint, answers []models.ExamAnswer) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("submission_id = ?", submissionID).Delete(&models.ExamAnswer{}).Error; err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}

	rows := make([]models.ExamAnswer, 0, len(answers))
	for _, answer := range answers {
		answer.ID = 0
		answer.SubmissionID = submissionID
		rows = append(rows, answer)
	}
	return db.CreateInBatches(&rows, 100).Error
}

func (r *examSubmissionRepository) SetAnswerMarks(ctx context.Context, submissionID uint, marks map[uint]float64) error {
	db := r.db.WithContext(ctx)
	for questionID, value := range marks {
		if err := db.Model(&models.ExamAnswer{}).
			Where("submission_id = ? AND question_id = ?", submissionID, questionID).
			Update("marks", value).Error; err != nil {
			return err
		}
	}
	return nil
}

// Transition moves the submission from one status to another, writing the
// extra fields in the same statement. Pairs the lifecycle forbids fail with
// ErrInvalidTransition; the update only applies while the row still holds
// the expected status.
func (r *examSubmissionRepository) Transition(ctx context.Context, id uint, from, to models.SubmissionStatus, fields map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	updates := make(map[string]interface{}, len(fields)+1)
	for key, value := range fields {
		updates[key] = value
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *examSubmissionRepository) CreateHistory(ctx context.Context, history *models.ExamGradeHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
