package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-api/internal/models"
)

func TestExamEventPublisherFansOutToRedis(t *testing.T) {
	fx := newExamFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubsub := fx.redis.Subscribe(ctx, "gema:exam-events")
	defer func() { _ = pubsub.Close() }()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewExamEventPublisher(fx.redis, nil, "gema", testLogger())
	total := 13.0
	publisher.Publish(ctx, ExamEvent{
		Type:         EventSubmissionGraded,
		SubmissionID: 7,
		ExamID:       fx.exam.ID,
		StudentID:    fx.student.ID,
		Status:       models.SubmissionStatusGraded,
		TotalMarks:   &total,
	})

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event ExamEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, EventSubmissionGraded, event.Type)
	require.Equal(t, uint(7), event.SubmissionID)
	require.NotEmpty(t, event.Source)
	require.False(t, event.OccurredAt.IsZero())
	require.InDelta(t, 13.0, *event.TotalMarks, 1e-9)
}

func TestExamEventPublisherWithoutBrokersIsNoop(t *testing.T) {
	publisher := NewExamEventPublisher(nil, nil, "", testLogger())
	require.NotPanics(t, func() {
		publisher.Publish(context.Background(), ExamEvent{Type: EventSubmissionStarted})
	})
}
