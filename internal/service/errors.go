package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized indicates the caller has no usable identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller is authenticated but not allowed to act.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is wrapped by every missing-entity error.
	ErrNotFound = errors.New("not found")
	// ErrExamNotFound indicates the exam does not exist.
	ErrExamNotFound = fmt.Errorf("exam %w", ErrNotFound)
	// ErrSubmissionNotFound indicates the submission does not exist or belongs to another exam.
	ErrSubmissionNotFound = fmt.Errorf("submission %w", ErrNotFound)
	// ErrQuestionNotFound indicates the question does not exist on the exam.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrConflict indicates a concurrent write won and the state could not be resolved.
	ErrConflict = errors.New("conflicting update")
	// ErrOutOfWindow indicates the exam is not currently open.
	ErrOutOfWindow = errors.New("exam is not open")
	// ErrWindowClosed indicates the exam window has ended.
	ErrWindowClosed = errors.New("exam window has closed")
	// ErrAlreadyFinalized indicates the submission is no longer in progress.
	ErrAlreadyFinalized = errors.New("submission already finalized")
	// ErrUnknownQuestion indicates a payload referenced a question outside the exam.
	ErrUnknownQuestion = errors.New("question does not belong to exam")
	// ErrDuplicateAnswer indicates a question appears more than once in a payload.
	ErrDuplicateAnswer = errors.New("question answered more than once")
	// ErrInvalidScore indicates a score outside 0..marks.
	ErrInvalidScore = errors.New("score out of range")
	// ErrIncompleteGrading indicates a question was left without a score.
	ErrIncompleteGrading = errors.New("every question must be scored")
	// ErrNotSubmitted indicates grading was attempted on an attempt still in progress.
	ErrNotSubmitted = errors.New("submission has not been submitted")
	// ErrAlreadyGraded indicates a regrade was attempted without force_regrade.
	ErrAlreadyGraded = errors.New("submission already graded")
	// ErrQuestionLocked indicates the question bank is frozen because attempts exist.
	ErrQuestionLocked = errors.New("questions are locked once attempts exist")
	// ErrInvalidQuestion indicates an inconsistent question definition.
	ErrInvalidQuestion = errors.New("invalid question definition")
)

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOutOfWindow):
		return "out_of_window"
	case errors.Is(err, ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, ErrAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, ErrUnknownQuestion), errors.Is(err, ErrDuplicateAnswer):
		return "bad_answers"
	case errors.Is(err, ErrInvalidScore), errors.Is(err, ErrIncompleteGrading):
		return "bad_scores"
	case errors.Is(err, ErrNotSubmitted), errors.Is(err, ErrAlreadyGraded), errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
