package dto

import (
	"time"

	"github.com/noah-isme/gema-exam-api/internal/models"
)

// AnswerInput is a single answer in an autosave or submit payload.
type AnswerInput struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	Answer     string `json:"answer" validate:"max=20000"`
}

// AnswerSyncRequest carries the complete answer set of an attempt. The set
// replaces whatever was stored before.
type AnswerSyncRequest struct {
	Answers []AnswerInput `json:"answers" validate:"required,max=500,dive"`
}

// ScoreInput assigns marks to one question.
type ScoreInput struct {
	QuestionID uint     `json:"question_id" validate:"required,gt=0"`
	Score      *float64 `json:"score" validate:"required"`
}

// ExamGradeRequest grades a submitted attempt.
type ExamGradeRequest struct {
	Scores       []ScoreInput `json:"scores" validate:"required,dive"`
	ForceRegrade bool         `json:"force_regrade"`
}

// ExamAnswerResponse serializes a stored answer.
type ExamAnswerResponse struct {
	QuestionID uint     `json:"question_id"`
	Answer     string   `json:"answer"`
	Marks      *float64 `json:"marks"`
}

// ExamGradeHistoryResponse serializes a grading pass.
type ExamGradeHistoryResponse struct {
	TotalMarks float64                `json:"total_marks"`
	Scores     map[string]interface{} `json:"scores"`
	Regrade    bool                   `json:"regrade"`
	GradedBy   uint                   `json:"graded_by"`
	GradedAt   time.Time              `json:"graded_at"`
}

// ExamSubmissionResponse is returned for every lifecycle operation.
type ExamSubmissionResponse struct {
	ID          uint                       `json:"id"`
	ExamID      uint                       `json:"exam_id"`
	StudentID   uint                       `json:"student_id"`
	Status      string                     `json:"status"`
	StartedAt   time.Time                  `json:"started_at"`
	SubmittedAt *time.Time                 `json:"submitted_at"`
	TotalMarks  *float64                   `json:"total_marks"`
	GradedAt    *time.Time                 `json:"graded_at"`
	GradedBy    *uint                      `json:"graded_by"`
	Answers     []ExamAnswerResponse       `json:"answers"`
	History     []ExamGradeHistoryResponse `json:"history,omitempty"`
	Exam        ExamLite                   `json:"exam"`
	Student     StudentLite                `json:"student"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// BeginExamResponse is returned when a student begins or resumes an exam.
type BeginExamResponse struct {
	Submission ExamSubmissionResponse    `json:"submission"`
	Questions  []StudentQuestionResponse `json:"questions"`
	Resumed    bool                      `json:"resumed"`
}

// ExamSubmissionSummary lists attempts for the owning teacher.
type ExamSubmissionSummary struct {
	ID          uint        `json:"id"`
	Status      string      `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	SubmittedAt *time.Time  `json:"submitted_at"`
	TotalMarks  *float64    `json:"total_marks"`
	Student     StudentLite `json:"student"`
}

// ScoreSuggestionResponse proposes marks for one question.
type ScoreSuggestionResponse struct {
	QuestionID   uint     `json:"question_id"`
	QuestionType string   `json:"question_type"`
	MaxMarks     float64  `json:"max_marks"`
	Answer       string   `json:"answer"`
	Suggested    *float64 `json:"suggested"`
	NeedsManual  bool     `json:"needs_manual"`
}

// NewExamSubmissionResponse converts a submission model into a DTO.
func NewExamSubmissionResponse(model models.ExamSubmission) ExamSubmissionResponse {
	response := ExamSubmissionResponse{
		ID:          model.ID,
		ExamID:      model.ExamID,
		StudentID:   model.StudentID,
		Status:      string(model.Status),
		StartedAt:   model.StartedAt,
		SubmittedAt: model.SubmittedAt,
		TotalMarks:  model.TotalMarks,
		GradedAt:    model.GradedAt,
		GradedBy:    model.GradedBy,
		Answers:     make([]ExamAnswerResponse, 0, len(model.Answers)),
	}

	for _, answer := range model.Answers {
		response.Answers = append(response.Answers, ExamAnswerResponse{
			QuestionID: answer.QuestionID,
			Answer:     answer.AnswerText,
			Marks:      answer.Marks,
		})
	}

	if model.Exam.ID != 0 {
		response.Exam = NewExamLite(model.Exam)
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{ID: model.Student.ID, Name: model.Student.Name}
	}

	if len(model.History) > 0 {
		history := make([]ExamGradeHistoryResponse, 0, len(model.History))
		for _, entry := range model.History {
			history = append(history, ExamGradeHistoryResponse{
				TotalMarks: entry.TotalMarks,
				Scores:     map[string]interface{}(entry.Scores),
				Regrade:    entry.Regrade,
				GradedBy:   entry.GradedBy,
				GradedAt:   entry.GradedAt,
			})
		}
		response.History = history
	}

	return response
}

// NewExamSubmissionSummarySlice converts submissions into teacher list rows.
func NewExamSubmissionSummarySlice(submissions []models.ExamSubmission) []ExamSubmissionSummary {
	rows := make([]ExamSubmissionSummary, 0, len(submissions))
	for _, submission := range submissions {
		rows = append(rows, ExamSubmissionSummary{
			ID:          submission.ID,
			Status:      string(submission.Status),
			StartedAt:   submission.StartedAt,
			SubmittedAt: submission.SubmittedAt,
			TotalMarks:  submission.TotalMarks,
			Student:     StudentLite{ID: submission.Student.ID, Name: submission.Student.Name},
		})
	}
	return rows
}
