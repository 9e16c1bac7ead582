package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ExamType classifies an exam.
type ExamType string

const (
	ExamTypeRegular ExamType = "regular"
	ExamTypeQuiz    ExamType = "quiz"
	ExamTypeMidterm ExamType = "midterm"
	ExamTypeFinal   ExamType = "final"
)

// Exam is a timed assessment for a subject. Students may begin or submit
// attempts only while StartDate <= now <= EndDate.
type Exam struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SubjectID uint      `gorm:"not null;index" json:"subject_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Type      ExamType  `gorm:"size:16;not null;default:regular" json:"type"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Subject   Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject"`
	Questions []Question
}

// HasStarted reports whether the window has opened at the reference time.
func (e Exam) HasStarted(reference time.Time) bool {
	return !reference.Before(e.StartDate)
}

// HasEnded reports whether the window has closed at the reference time.
func (e Exam) HasEnded(reference time.Time) bool {
	return reference.After(e.EndDate)
}

// IsOpen reports whether the reference time lies inside the exam window.
func (e Exam) IsOpen(reference time.Time) bool {
	return e.HasStarted(reference) && !e.HasEnded(reference)
}

// QuestionType enumerates how a question is answered.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeLongAnswer     QuestionType = "long_answer"
)

// Question belongs to exactly one exam. Questions are ordered by ID, which
// follows creation order.
type Question struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ExamID        uint           `gorm:"not null;index" json:"exam_id"`
	Text          string         `gorm:"type:text;not null" json:"text"`
	Type          QuestionType   `gorm:"size:32;not null" json:"type"`
	Options       datatypes.JSON `json:"options"`
	CorrectAnswer string         `gorm:"type:text" json:"correct_answer"`
	Marks         float64        `gorm:"not null" json:"marks"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// OptionList decodes the stored options. Malformed JSON yields no options.
func (q Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var options []string
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil
	}
	return options
}

// EncodeOptions converts an option list into its stored representation.
func EncodeOptions(options []string) datatypes.JSON {
	if len(options) == 0 {
		return nil
	}
	payload, err := json.Marshal(options)
	if err != nil {
		return nil
	}
	return datatypes.JSON(payload)
}
