package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-api/internal/models"
	"github.com/noah-isme/gema-exam-api/internal/observability"
)

// Lifecycle event types.
const (
	EventSubmissionStarted   = "submission.started"
	EventSubmissionSubmitted = "submission.submitted"
	EventSubmissionGraded    = "submission.graded"
)

// ExamEvent is broadcast after a submission changes status.
type ExamEvent struct {
	Type         string                  `json:"type"`
	Source       string                  `json:"source"`
	SubmissionID uint                    `json:"submission_id"`
	ExamID       uint                    `json:"exam_id"`
	StudentID    uint                    `json:"student_id"`
	Status       models.SubmissionStatus `json:"status"`
	TotalMarks   *float64                `json:"total_marks,omitempty"`
	Regrade      bool                    `json:"regrade,omitempty"`
	OccurredAt   time.Time               `json:"occurred_at"`
}

// ExamEventPublisher fans lifecycle events out to the configured brokers.
// Publishing is best effort and never fails the calling operation.
type ExamEventPublisher interface {
	Publish(ctx context.Context, event ExamEvent)
}

type examEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
}

// NewExamEventPublisher constructs a publisher. Nil clients are skipped.
func NewExamEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ExamEventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":exam-events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".exam-events"
	}

	return &examEventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "exam_events").Logger(),
		nodeID:       uuid.NewString(),
	}
}

func (p *examEventPublisher) Publish(ctx context.Context, event ExamEvent) {
	event.Source = p.nodeID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to encode exam event")
		return
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Str("type", event.Type).Uint("submission_id", event.SubmissionID).Msg("failed to publish exam event to redis")
		} else {
			observability.ExamEventsPublished().WithLabelValues(event.Type, "redis").Inc()
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn().Err(err).Str("type", event.Type).Uint("submission_id", event.SubmissionID).Msg("failed to publish exam event to nats")
		} else {
			observability.ExamEventsPublished().WithLabelValues(event.Type, "nats").Inc()
		}
	}
}

type noopEventPublisher struct{}

func (noopEventPublisher) Publish(context.Context, ExamEvent) {}
