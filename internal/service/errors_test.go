package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotFoundErrorsShareParent(t *testing.T) {
	for _, err := range []error{ErrExamNotFound, ErrSubmissionNotFound, ErrQuestionNotFound} {
		require.ErrorIs(t, err, ErrNotFound)
	}
	require.Equal(t, "exam not found", ErrExamNotFound.Error())
}

func TestRejectionReason(t *testing.T) {
	require.Equal(t, "not_found", rejectionReason(fmt.Errorf("wrapped: %w", ErrSubmissionNotFound)))
	require.Equal(t, "window_closed", rejectionReason(ErrWindowClosed))
	require.Equal(t, "bad_scores", rejectionReason(ErrIncompleteGrading))
	require.Equal(t, "error", rejectionReason(errors.New("boom")))
}
