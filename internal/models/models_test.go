package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmissionStatusTransitions(t *testing.T) {
	cases := []struct {
		from    SubmissionStatus
		to      SubmissionStatus
		allowed bool
	}{
		{SubmissionStatusInProgress, SubmissionStatusSubmitted, true},
		{SubmissionStatusInProgress, SubmissionStatusGraded, false},
		{SubmissionStatusSubmitted, SubmissionStatusGraded, true},
		{SubmissionStatusSubmitted, SubmissionStatusInProgress, false},
		{SubmissionStatusGraded, SubmissionStatusGraded, true},
		{SubmissionStatusGraded, SubmissionStatusSubmitted, false},
		{SubmissionStatusGraded, SubmissionStatusInProgress, false},
		{SubmissionStatus("UNKNOWN"), SubmissionStatusSubmitted, false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSubmissionStatusFinalized(t *testing.T) {
	require.False(t, SubmissionStatusInProgress.IsFinalized())
	require.True(t, SubmissionStatusSubmitted.IsFinalized())
	require.True(t, SubmissionStatusGraded.IsFinalized())
	require.False(t, SubmissionStatus("bogus").Valid())
}

func TestExamWindowIsInclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	exam := Exam{StartDate: start, EndDate: end}

	require.False(t, exam.IsOpen(start.Add(-time.Second)))
	require.True(t, exam.IsOpen(start))
	require.True(t, exam.IsOpen(end))
	require.False(t, exam.IsOpen(end.Add(time.Second)))
	require.True(t, exam.HasEnded(end.Add(time.Second)))
}

func TestQuestionOptionsRoundTrip(t *testing.T) {
	q := Question{Options: EncodeOptions([]string{"A", "B"})}
	require.Equal(t, []string{"A", "B"}, q.OptionList())
	require.Nil(t, Question{}.OptionList())
	require.Nil(t, EncodeOptions(nil))
}

func TestSubjectOwnershipAndEnrolment(t *testing.T) {
	subject := Subject{ClassID: 4, TeacherID: 9}
	require.True(t, subject.TaughtBy(9))
	require.False(t, subject.TaughtBy(0))
	require.True(t, subject.Enrolls(Student{ClassID: 4}))
	require.False(t, subject.Enrolls(Student{ClassID: 5}))
}
