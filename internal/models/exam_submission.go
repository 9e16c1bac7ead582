package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus is the lifecycle state of an exam attempt.
type SubmissionStatus string

const (
	// SubmissionStatusInProgress is the initial state; answers may be autosaved.
	SubmissionStatusInProgress SubmissionStatus = "IN_PROGRESS"
	// SubmissionStatusSubmitted marks an attempt finalised by the student.
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	// SubmissionStatusGraded is terminal; scores have been written.
	SubmissionStatusGraded SubmissionStatus = "GRADED"
)

// Valid reports whether the status is a known lifecycle state.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusInProgress, SubmissionStatusSubmitted, SubmissionStatusGraded:
		return true
	}
	return false
}

// IsFinalized reports whether the attempt no longer accepts student changes.
func (s SubmissionStatus) IsFinalized() bool {
	switch s {
	case SubmissionStatusSubmitted, SubmissionStatusGraded:
		return true
	case SubmissionStatusInProgress:
		return false
	}
	return false
}

// CanTransitionTo reports whether moving to next is permitted. GRADED to
// GRADED is allowed so that an explicit regrade can overwrite scores.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	switch s {
	case SubmissionStatusInProgress:
		return next == SubmissionStatusSubmitted
	case SubmissionStatusSubmitted:
		return next == SubmissionStatusGraded
	case SubmissionStatusGraded:
		return next == SubmissionStatusGraded
	}
	return false
}

// ExamSubmission is one student's attempt at one exam. The pair
// (ExamID, StudentID) is unique.
type ExamSubmission struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	ExamID      uint               `gorm:"not null;uniqueIndex:idx_exam_submissions_exam_student,priority:1" json:"exam_id"`
	StudentID   uint               `gorm:"not null;uniqueIndex:idx_exam_submissions_exam_student,priority:2;index" json:"student_id"`
	Status      SubmissionStatus   `gorm:"size:16;not null;index" json:"status"`
	StartedAt   time.Time          `gorm:"not null" json:"started_at"`
	SubmittedAt *time.Time         `json:"submitted_at"`
	TotalMarks  *float64           `json:"total_marks"`
	GradedAt    *time.Time         `json:"graded_at"`
	GradedBy    *uint              `json:"graded_by"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Exam        Exam               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exam"`
	Student     Student            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Answers     []ExamAnswer       `gorm:"foreignKey:SubmissionID" json:"answers"`
	History     []ExamGradeHistory `gorm:"foreignKey:SubmissionID" json:"history"`
}

// ExamAnswer holds one answer of a submission. (SubmissionID, QuestionID)
// is unique; rows are replaced wholesale on every save.
type ExamAnswer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;uniqueIndex:idx_exam_answers_submission_question,priority:1" json:"submission_id"`
	QuestionID   uint      `gorm:"not null;uniqueIndex:idx_exam_answers_submission_question,priority:2" json:"question_id"`
	AnswerText   string    `gorm:"type:text" json:"answer_text"`
	Marks        *float64  `json:"marks"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExamGradeHistory records every grading pass, including regrades.
type ExamGradeHistory struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	SubmissionID uint              `gorm:"not null;index" json:"submission_id"`
	TotalMarks   float64           `gorm:"not null" json:"total_marks"`
	Scores       datatypes.JSONMap `gorm:"type:json" json:"scores"`
	Regrade      bool              `gorm:"not null;default:false" json:"regrade"`
	GradedBy     uint              `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time         `gorm:"not null" json:"graded_at"`
}
