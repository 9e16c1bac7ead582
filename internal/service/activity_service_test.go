package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActivityServiceRecordMasksSensitiveMetadata(t *testing.T) {
	fx := newExamFixture(t)
	ctx := context.Background()
	id := uint(5)

	entry, err := fx.activity.Record(ctx, ActivityEntry{
		Actor:      Actor{UserID: 1, Role: " Teacher ", CorrelationID: "abc"},
		Action:     "Submission.Graded",
		EntityType: EntityExamSubmission,
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"email":       "teacher@example.com",
			"reset_token": "xyz",
			"total_marks": 13,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "***", entry.Metadata["reset_token"])
	require.Equal(t, 13, entry.Metadata["total_marks"])
	require.Equal(t, "teacher", entry.ActorRole)
	require.Equal(t, "submission.graded", entry.Action)
	require.Equal(t, "abc", entry.CorrelationID)

	listed, err := fx.activity.ListForEntity(ctx, EntityExamSubmission, id)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	other, err := fx.activity.ListForEntity(ctx, EntityExamSubmission, id+1)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestActivityServiceRequiresAction(t *testing.T) {
	fx := newExamFixture(t)

	_, err := fx.activity.Record(context.Background(), ActivityEntry{EntityType: EntityQuestion})
	require.Error(t, err)

	_, err = fx.activity.Record(context.Background(), ActivityEntry{Action: "question.created"})
	require.Error(t, err)
}
