package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-api/internal/dto"
	"github.com/noah-isme/gema-exam-api/internal/models"
	"github.com/noah-isme/gema-exam-api/internal/observability"
	"github.com/noah-isme/gema-exam-api/internal/repository"
)

const scoreTolerance = 1e-9

// ExamGradingService lets the owning teacher grade submitted attempts.
type ExamGradingService interface {
	Grade(ctx context.Context, actor Actor, submissionID uint, payload dto.ExamGradeRequest) (dto.ExamSubmissionResponse, error)
	SuggestScores(ctx context.Context, actor Actor, submissionID uint) ([]dto.ScoreSuggestionResponse, error)
	Activity(ctx context.Context, actor Actor, submissionID uint) ([]dto.ActivityResponse, error)
}

type examGradingService struct {
	submissions repository.ExamSubmissionRepository
	questions   QuestionBankService
	identity    identityResolver
	validator   *validator.Validate
	activity    ActivityService
	events      ExamEventPublisher
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewExamGradingService constructs the grading service.
func NewExamGradingService(
	submissions repository.ExamSubmissionRepository,
	exams repository.ExamRepository,
	directory repository.DirectoryRepository,
	questions QuestionBankService,
	validate *validator.Validate,
	activity ActivityService,
	events ExamEventPublisher,
	logger zerolog.Logger,
) ExamGradingService {
	if events == nil {
		events = noopEventPublisher{}
	}
	return &examGradingService{
		submissions: submissions,
		questions:   questions,
		identity:    identityResolver{directory: directory, exams: exams},
		validator:   validate,
		activity:    activity,
		events:      events,
		logger:      logger.With().Str("component", "exam_grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-exam-api/internal/service/exam_grading"),
		now:         time.Now,
	}
}

func (s *examGradingService) Grade(ctx context.Context, actor Actor, submissionID uint, payload dto.ExamGradeRequest) (dto.ExamSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.UserID)),
		attribute.Bool("grading.force_regrade", payload.ForceRegrade),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ExamSubmissionResponse{}, err
	}

	submission, teacher, err := s.ownedSubmission(ctx, actor, submissionID)
	if err != nil {
		s.reject(span, err)
		return dto.ExamSubmissionResponse{}, err
	}

	questions, err := s.questions.Questions(ctx, submission.ExamID)
	if err != nil {
		s.reject(span, err)
		return dto.ExamSubmissionResponse{}, err
	}

	scores, total, err := tallyScores(questions, payload.Scores)
	if err != nil {
		s.reject(span, err)
		return dto.ExamSubmissionResponse{}, err
	}

	var regrade bool
	gradedAt := s.now()
	err = s.submissions.Transaction(ctx, func(tx repository.ExamSubmissionRepository) error {
		current, err := tx.LockByID(ctx, submission.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return err
		}

		from := current.Status
		switch current.Status {
		case models.SubmissionStatusInProgress:
			return ErrNotSubmitted
		case models.SubmissionStatusSubmitted:
		case models.SubmissionStatusGraded:
			if !payload.ForceRegrade {
				return ErrAlreadyGraded
			}
			regrade = true
		default:
			return fmt.Errorf("submission %d has unknown status %q", current.ID, current.Status)
		}

		if err := tx.SetAnswerMarks(ctx, current.ID, scores); err != nil {
			return err
		}

		err = tx.Transition(ctx, current.ID, from, models.SubmissionStatusGraded, map[string]interface{}{
			"total_marks": total,
			"graded_at":   gradedAt,
			"graded_by":   teacher.ID,
		})
		if errors.Is(err, repository.ErrStaleTransition) {
			return ErrAlreadyGraded
		}
		if err != nil {
			return err
		}

		return tx.CreateHistory(ctx, &models.ExamGradeHistory{
			SubmissionID: current.ID,
			TotalMarks:   total,
			Scores:       scoreSnapshot(scores),
			Regrade:      regrade,
			GradedBy:     teacher.ID,
			GradedAt:     gradedAt,
		})
	})
	if err != nil {
		s.reject(span, err)
		return dto.ExamSubmissionResponse{}, err
	}

	graded, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		span.RecordError(err)
		return dto.ExamSubmissionResponse{}, err
	}

	observability.SubmissionTransitions().WithLabelValues(string(models.SubmissionStatusGraded)).Inc()

	action := models.ActivitySubmissionGraded
	if regrade {
		action = models.ActivitySubmissionRegraded
	}
	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			Actor:      actor,
			Action:     action,
			EntityType: EntityExamSubmission,
			EntityID:   &graded.ID,
			Metadata: map[string]interface{}{
				"exam_id":     graded.ExamID,
				"student_id":  graded.StudentID,
				"total_marks": total,
				"teacher_id":  teacher.ID,
			},
		})
	}

	totalMarks := total
	s.events.Publish(ctx, ExamEvent{
		Type:         EventSubmissionGraded,
		SubmissionID: graded.ID,
		ExamID:       graded.ExamID,
		StudentID:    graded.StudentID,
		Status:       graded.Status,
		TotalMarks:   &totalMarks,
		Regrade:      regrade,
		OccurredAt:   gradedAt,
	})

	s.logger.Info().
		Str("correlation_id", actor.CorrelationID).
		Uint("submission_id", graded.ID).
		Float64("total_marks", total).
		Bool("regrade", regrade).
		Msg("exam attempt graded")

	span.SetAttributes(
		attribute.Float64("grading.total_marks", total),
		attribute.Bool("grading.regrade", regrade),
	)

	return dto.NewExamSubmissionResponse(graded), nil
}

func (s *examGradingService) SuggestScores(ctx context.Context, actor Actor, submissionID uint) ([]dto.ScoreSuggestionResponse, error) {
	submission, _, err := s.ownedSubmission(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.Questions(ctx, submission.ExamID)
	if err != nil {
		return nil, err
	}

	answers := make(map[uint]string, len(submission.Answers))
	for _, answer := range submission.Answers {
		answers[answer.QuestionID] = answer.AnswerText
	}

	suggestions := make([]dto.ScoreSuggestionResponse, 0, len(questions))
	for _, question := range questions {
		answer, answered := answers[question.ID]
		suggestion := dto.ScoreSuggestionResponse{
			QuestionID:   question.ID,
			QuestionType: string(question.Type),
			MaxMarks:     question.Marks,
			Answer:       answer,
		}

		switch {
		case !answered || normalizeAnswer(answer) == "":
			zero := 0.0
			suggestion.Suggested = &zero
		case question.Type == models.QuestionTypeLongAnswer || question.CorrectAnswer == "":
			suggestion.NeedsManual = true
		case normalizeAnswer(answer) == normalizeAnswer(question.CorrectAnswer):
			full := question.Marks
			suggestion.Suggested = &full
		case question.Type == models.QuestionTypeMultipleChoice:
			zero := 0.0
			suggestion.Suggested = &zero
		default:
			// Short answers that miss the key may still be acceptable phrasing.
			suggestion.NeedsManual = true
		}

		suggestions = append(suggestions, suggestion)
	}

	return suggestions, nil
}

func (s *examGradingService) Activity(ctx context.Context, actor Actor, submissionID uint) ([]dto.ActivityResponse, error) {
	submission, _, err := s.ownedSubmission(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}
	if s.activity == nil {
		return []dto.ActivityResponse{}, nil
	}
	return s.activity.ListForEntity(ctx, EntityExamSubmission, submission.ID)
}

func (s *examGradingService) ownedSubmission(ctx context.Context, actor Actor, submissionID uint) (models.ExamSubmission, models.Teacher, error) {
	teacher, err := s.identity.teacher(ctx, actor)
	if err != nil {
		return models.ExamSubmission{}, models.Teacher{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ExamSubmission{}, models.Teacher{}, ErrSubmissionNotFound
		}
		return models.ExamSubmission{}, models.Teacher{}, err
	}

	if !submission.Exam.Subject.TaughtBy(teacher.ID) {
		return models.ExamSubmission{}, models.Teacher{}, fmt.Errorf("%w: teacher %d does not own exam %d", ErrForbidden, teacher.ID, submission.ExamID)
	}
	return submission, teacher, nil
}

func (s *examGradingService) reject(span trace.Span, err error) {
	reason := rejectionReason(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	observability.LifecycleRejections().WithLabelValues("grade", reason).Inc()
}

// tallyScores checks that every question of the exam is scored exactly once
// within its marks and returns the per-question scores and their total.
func tallyScores(questions []models.Question, inputs []dto.ScoreInput) (map[uint]float64, float64, error) {
	marks := make(map[uint]float64, len(questions))
	for _, question := range questions {
		marks[question.ID] = question.Marks
	}

	scores := make(map[uint]float64, len(inputs))
	for _, input := range inputs {
		limit, ok := marks[input.QuestionID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: question %d", ErrUnknownQuestion, input.QuestionID)
		}
		if _, dup := scores[input.QuestionID]; dup {
			return nil, 0, fmt.Errorf("%w: question %d", ErrDuplicateAnswer, input.QuestionID)
		}
		if input.Score == nil {
			return nil, 0, fmt.Errorf("%w: question %d has no score", ErrInvalidScore, input.QuestionID)
		}
		score := *input.Score
		if score < 0 || score > limit+scoreTolerance {
			return nil, 0, fmt.Errorf("%w: question %d scored %g of %g", ErrInvalidScore, input.QuestionID, score, limit)
		}
		scores[input.QuestionID] = score
	}

	var total float64
	for _, question := range questions {
		score, ok := scores[question.ID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: question %d", ErrIncompleteGrading, question.ID)
		}
		total += score
	}

	return scores, total, nil
}

func scoreSnapshot(scores map[uint]float64) datatypes.JSONMap {
	snapshot := datatypes.JSONMap{}
	for questionID, score := range scores {
		snapshot[strconv.FormatUint(uint64(questionID), 10)] = score
	}
	return snapshot
}

// normalizeAnswer decodes HTML entities, casefolds, drops punctuation and
// collapses whitespace. Answers and keys go through it alike.
func normalizeAnswer(value string) string {
	value = html.UnescapeString(value)
	out := make([]rune, 0, len(value))
	space := false
	for _, r := range value {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}
