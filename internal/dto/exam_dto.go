package dto

import (
	"time"

	"github.com/noah-isme/gema-exam-api/internal/models"
)

// QuestionCreateRequest captures a new question for an exam's bank.
type QuestionCreateRequest struct {
	Text          string   `json:"text" validate:"required,min=1,max=10000"`
	Type          string   `json:"type" validate:"required,oneof=multiple_choice short_answer long_answer"`
	Options       []string `json:"options" validate:"omitempty,max=26,dive,required,max=1000"`
	CorrectAnswer string   `json:"correct_answer" validate:"omitempty,max=10000"`
	Marks         float64  `json:"marks" validate:"required,gte=1"`
}

// QuestionUpdateRequest patches an existing question.
type QuestionUpdateRequest struct {
	Text          *string  `json:"text" validate:"omitempty,min=1,max=10000"`
	Type          *string  `json:"type" validate:"omitempty,oneof=multiple_choice short_answer long_answer"`
	Options       []string `json:"options" validate:"omitempty,max=26,dive,required,max=1000"`
	CorrectAnswer *string  `json:"correct_answer" validate:"omitempty,max=10000"`
	Marks         *float64 `json:"marks" validate:"omitempty,gte=1"`
}

// QuestionResponse is the instructor view of a question, answer key included.
type QuestionResponse struct {
	ID            uint      `json:"id"`
	ExamID        uint      `json:"exam_id"`
	Text          string    `json:"text"`
	Type          string    `json:"type"`
	Options       []string  `json:"options,omitempty"`
	CorrectAnswer string    `json:"correct_answer"`
	Marks         float64   `json:"marks"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StudentQuestionResponse is the student view of a question; the answer key is never exposed.
type StudentQuestionResponse struct {
	ID      uint     `json:"id"`
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
	Marks   float64  `json:"marks"`
}

// ExamLite summarizes an exam inside submission payloads.
type ExamLite struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// NewQuestionResponse converts a question model into the instructor DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	return QuestionResponse{
		ID:            model.ID,
		ExamID:        model.ExamID,
		Text:          model.Text,
		Type:          string(model.Type),
		Options:       model.OptionList(),
		CorrectAnswer: model.CorrectAnswer,
		Marks:         model.Marks,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewQuestionResponseSlice converts question models into instructor DTOs.
func NewQuestionResponseSlice(questions []models.Question) []QuestionResponse {
	responses := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewQuestionResponse(question))
	}
	return responses
}

// NewStudentQuestionResponseSlice converts question models into student DTOs.
func NewStudentQuestionResponseSlice(questions []models.Question) []StudentQuestionResponse {
	responses := make([]StudentQuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, StudentQuestionResponse{
			ID:      question.ID,
			Text:    question.Text,
			Type:    string(question.Type),
			Options: question.OptionList(),
			Marks:   question.Marks,
		})
	}
	return responses
}

// NewExamLite summarizes an exam model.
func NewExamLite(exam models.Exam) ExamLite {
	return ExamLite{
		ID:        exam.ID,
		Title:     exam.Title,
		Type:      string(exam.Type),
		StartDate: exam.StartDate,
		EndDate:   exam.EndDate,
	}
}
