package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/gema-exam-api/internal/dto"
	"github.com/noah-isme/gema-exam-api/internal/models"
)

// answerSync turns an answer payload into the rows that replace a
// submission's stored answers.
type answerSync struct {
	sanitizer *bluemonday.Policy
}

func newAnswerSync() answerSync {
	return answerSync{sanitizer: bluemonday.UGCPolicy()}
}

// plainText strips unsafe markup and undoes the entity escaping the policy
// applies to text, so "x < y" is stored as typed.
func plainText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}

// prepare validates every answer against the exam's questions before any
// row is built. A payload is rejected whole.
func (a answerSync) prepare(submissionID uint, questions []models.Question, inputs []dto.AnswerInput) ([]models.ExamAnswer, error) {
	known := make(map[uint]struct{}, len(questions))
	for _, question := range questions {
		known[question.ID] = struct{}{}
	}

	seen := make(map[uint]struct{}, len(inputs))
	for _, input := range inputs {
		if _, ok := known[input.QuestionID]; !ok {
			return nil, fmt.Errorf("%w: question %d", ErrUnknownQuestion, input.QuestionID)
		}
		if _, dup := seen[input.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %d", ErrDuplicateAnswer, input.QuestionID)
		}
		seen[input.QuestionID] = struct{}{}
	}

	answers := make([]models.ExamAnswer, 0, len(inputs))
	for _, input := range inputs {
		answers = append(answers, models.ExamAnswer{
			SubmissionID: submissionID,
			QuestionID:   input.QuestionID,
			AnswerText:   plainText(a.sanitizer, input.Answer),
		})
	}
	return answers, nil
}
