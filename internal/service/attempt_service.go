package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-api/internal/dto"
	"github.com/noah-isme/gema-exam-api/internal/models"
	"github.com/noah-isme/gema-exam-api/internal/observability"
	"github.com/noah-isme/gema-exam-api/internal/repository"
)

// AttemptService drives a student's attempt from begin to submit.
type AttemptService interface {
	Begin(ctx context.Context, actor Actor, examID uint) (dto.BeginExamResponse, error)
	Autosave(ctx context.Context, actor Actor, examID, submissionID uint, payload dto.AnswerSyncRequest) (dto.ExamSubmissionResponse, error)
	Submit(ctx context.Context, actor Actor, examID, submissionID uint, payload dto.AnswerSyncRequest) (dto.ExamSubmissionResponse, error)
	Get(ctx context.Context, actor Actor, submissionID uint) (dto.ExamSubmissionResponse, error)
	ListByExam(ctx context.Context, actor Actor, examID uint) ([]dto.ExamSubmissionSummary, error)
}

type attemptService struct {
	submissions repository.ExamSubmissionRepository
	questions   QuestionBankService
	identity    identityResolver
	answers     answerSync
	validator   *validator.Validate
	activity    ActivityRecorder
	events      ExamEventPublisher
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAttemptService constructs the attempt lifecycle service.
func NewAttemptService(
	submissions repository.ExamSubmissionRepository,
	exams repository.ExamRepository,
	directory repository.DirectoryRepository,
	questions QuestionBankService,
	validate *validator.Validate,
	activity ActivityRecorder,
	events ExamEventPublisher,
	logger zerolog.Logger,
) AttemptService {
	if events == nil {
		events = noopEventPublisher{}
	}
	return &attemptService{
		submissions: submissions,
		questions:   questions,
		identity:    identityResolver{directory: directory, exams: exams},
		answers:     newAnswerSync(),
		validator:   validate,
		activity:    activity,
		events:      events,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-exam-api/internal/service/attempt"),
		now:         time.Now,
	}
}

func (s *attemptService) Begin(ctx context.Context, actor Actor, examID uint) (dto.BeginExamResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.begin", trace.WithAttributes(
		attribute.Int64("attempt.exam_id", int64(examID)),
		attribute.Int64("attempt.user_id", int64(actor.UserID)),
	))
	defer span.End()

	response, err := s.begin(ctx, actor, examID)
	if err != nil {
		s.reject(span, "begin", err)
		return dto.BeginExamResponse{}, err
	}
	span.SetAttributes(
		attribute.Int64("attempt.submission_id", int64(response.Submission.ID)),
		attribute.Bool("attempt.resumed", response.Resumed),
	)
	return response, nil
}

func (s *attemptService) begin(ctx context.Context, actor Actor, examID uint) (dto.BeginExamResponse, error) {
	student, err := s.identity.student(ctx, actor)
	if err != nil {
		return dto.BeginExamResponse{}, err
	}

	exam, err := s.identity.exam(ctx, examID)
	if err != nil {
		return dto.BeginExamResponse{}, err
	}
	if !exam.Subject.Enrolls(student) {
		return dto.BeginExamResponse{}, fmt.Errorf("%w: student %d is not enrolled in subject %d", ErrForbidden, student.ID, exam.SubjectID)
	}

	now := s.now()
	if !exam.IsOpen(now) {
		return dto.BeginExamResponse{}, ErrOutOfWindow
	}

	existing, err := s.submissions.GetByExamAndStudent(ctx, exam.ID, student.ID)
	if err != nil {
		return dto.BeginExamResponse{}, err
	}
	if existing != nil {
		return s.resume(ctx, *existing)
	}

	submission := models.ExamSubmission{
		ExamID:    exam.ID,
		StudentID: student.ID,
		Status:    models.SubmissionStatusInProgress,
		StartedAt: now,
	}
	err = s.submissions.Transaction(ctx, func(tx repository.ExamSubmissionRepository) error {
		if err := tx.ShareLockExam(ctx, exam.ID); err != nil {
			return err
		}
		return tx.Create(ctx, &submission)
	})
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return dto.BeginExamResponse{}, err
		}
		// Lost the race against a concurrent begin; the winner's row is the attempt.
		existing, lookupErr := s.submissions.GetByExamAndStudent(ctx, exam.ID, student.ID)
		if lookupErr != nil {
			return dto.BeginExamResponse{}, lookupErr
		}
		if existing == nil {
			return dto.BeginExamResponse{}, ErrConflict
		}
		return s.resume(ctx, *existing)
	}

	// The attempt now locks the question set, so this read is final.
	questions, err := s.questions.Questions(ctx, exam.ID)
	if err != nil {
		return dto.BeginExamResponse{}, err
	}

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.BeginExamResponse{}, err
	}

	observability.SubmissionTransitions().WithLabelValues(string(models.SubmissionStatusInProgress)).Inc()
	s.record(ctx, actor, models.ActivitySubmissionStarted, created, nil)
	s.events.Publish(ctx, ExamEvent{
		Type:         EventSubmissionStarted,
		SubmissionID: created.ID,
		ExamID:       created.ExamID,
		StudentID:    created.StudentID,
		Status:       created.Status,
		OccurredAt:   now,
	})
	s.logger.Info().
		Str("correlation_id", actor.CorrelationID).
		Uint("submission_id", created.ID).
		Uint("exam_id", created.ExamID).
		Uint("student_id", created.StudentID).
		Msg("exam attempt started")

	return dto.BeginExamResponse{
		Submission: dto.NewExamSubmissionResponse(created),
		Questions:  dto.NewStudentQuestionResponseSlice(questions),
	}, nil
}

func (s *attemptService) resume(ctx context.Context, existing models.ExamSubmission) (dto.BeginExamResponse, error) {
	if existing.Status.IsFinalized() {
		return dto.BeginExamResponse{}, ErrAlreadyFinalized
	}
	questions, err := s.questions.Questions(ctx, existing.ExamID)
	if err != nil {
		return dto.BeginExamResponse{}, err
	}
	return dto.BeginExamResponse{
		Submission: dto.NewExamSubmissionResponse(existing),
		Questions:  dto.NewStudentQuestionResponseSlice(questions),
		Resumed:    true,
	}, nil
}

func (s *attemptService) Autosave(ctx context.Context, actor Actor, examID, submissionID uint, payload dto.AnswerSyncRequest) (dto.ExamSubmissionResponse, error) {
	return s.sync(ctx, actor, examID, submissionID, payload, false)
}

func (s *attemptService) Submit(ctx context.Context, actor Actor, examID, submissionID uint, payload dto.AnswerSyncRequest) (dto.ExamSubmissionResponse, error) {
	return s.sync(ctx, actor, examID, submissionID, payload, true)
}

// sync replaces the stored answers and, when finalize is set, moves the
// attempt to SUBMITTED in the same transaction.
func (s *attemptService) sync(ctx context.Context, actor Actor, examID, submissionID uint, payload dto.AnswerSyncRequest, finalize bool) (dto.ExamSubmissionResponse, error) {
	operation := "autosave"
	if finalize {
		operation = "submit"
	}

	ctx, span := s.tracer.Start(ctx, "attempt."+operation, trace.WithAttributes(
		attribute.Int64("attempt.exam_id", int64(examID)),
		attribute.Int64("attempt.submission_id", int64(submissionID)),
		attribute.Int("attempt.answer_count", len(payload.Answers)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ExamSubmissionResponse{}, err
	}

	student, err := s.identity.student(ctx, actor)
	if err != nil {
		s.reject(span, operation, err)
		return dto.ExamSubmissionResponse{}, err
	}

	exam, err := s.identity.exam(ctx, examID)
	if err != nil {
		s.reject(span, operation, err)
		return dto.ExamSubmissionResponse{}, err
	}

	questions, err := s.questions.Questions(ctx, exam.ID)
	if err != nil {
		s.reject(span, operation, err)
		return dto.ExamSubmissionResponse{}, err
	}

	var submittedAt time.Time
	err = s.submissions.Transaction(ctx, func(tx repository.ExamSubmissionRepository) error {
		current, err := tx.LockByID(ctx, submissionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return err
		}
		if current.ExamID != exam.ID {
			return ErrSubmissionNotFound
		}
		if current.StudentID != student.ID {
			return fmt.Errorf("%w: submission %d belongs to another student", ErrForbidden, current.ID)
		}
		switch current.Status {
		case models.SubmissionStatusInProgress:
		case models.SubmissionStatusSubmitted, models.SubmissionStatusGraded:
			return ErrAlreadyFinalized
		default:
			return fmt.Errorf("submission %d has unknown status %q", current.ID, current.Status)
		}

		now := s.now()
		if exam.HasEnded(now) {
			return ErrWindowClosed
		}
		if !exam.HasStarted(now) {
			return ErrOutOfWindow
		}

		answers, err := s.answers.prepare(current.ID, questions, payload.Answers)
		if err != nil {
			return err
		}
		if err := tx.ReplaceAnswers(ctx, current.ID, answers); err != nil {
			return err
		}

		if !finalize {
			return nil
		}
		err = tx.Transition(ctx, current.ID, models.SubmissionStatusInProgress, models.SubmissionStatusSubmitted, map[string]interface{}{
			"submitted_at": now,
		})
		if errors.Is(err, repository.ErrStaleTransition) {
			return ErrAlreadyFinalized
		}
		submittedAt = now
		return err
	})
	if err != nil {
		s.reject(span, operation, err)
		return dto.ExamSubmissionResponse{}, err
	}

	updated, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		return dto.ExamSubmissionResponse{}, err
	}

	if finalize {
		observability.SubmissionTransitions().WithLabelValues(string(models.SubmissionStatusSubmitted)).Inc()
		s.record(ctx, actor, models.ActivitySubmissionSubmitted, updated, map[string]interface{}{
			"answer_count": len(updated.Answers),
		})
		s.events.Publish(ctx, ExamEvent{
			Type:         EventSubmissionSubmitted,
			SubmissionID: updated.ID,
			ExamID:       updated.ExamID,
			StudentID:    updated.StudentID,
			Status:       updated.Status,
			OccurredAt:   submittedAt,
		})
		s.logger.Info().
			Str("correlation_id", actor.CorrelationID).
			Uint("submission_id", updated.ID).
			Int("answer_count", len(updated.Answers)).
			Msg("exam attempt submitted")
	}

	span.SetAttributes(attribute.String("attempt.status", string(updated.Status)))
	return dto.NewExamSubmissionResponse(updated), nil
}

func (s *attemptService) Get(ctx context.Context, actor Actor, submissionID uint) (dto.ExamSubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamSubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.ExamSubmissionResponse{}, err
	}

	switch {
	case actor.IsRole(RoleStudent):
		student, err := s.identity.student(ctx, actor)
		if err != nil {
			return dto.ExamSubmissionResponse{}, err
		}
		if submission.StudentID != student.ID {
			return dto.ExamSubmissionResponse{}, ErrForbidden
		}
		// Grading history stays with instructors.
		submission.History = nil
	case actor.IsRole(RoleTeacher):
		teacher, err := s.identity.teacher(ctx, actor)
		if err != nil {
			return dto.ExamSubmissionResponse{}, err
		}
		if !submission.Exam.Subject.TaughtBy(teacher.ID) {
			return dto.ExamSubmissionResponse{}, ErrForbidden
		}
	default:
		if actor.UserID == 0 {
			return dto.ExamSubmissionResponse{}, ErrUnauthorized
		}
		return dto.ExamSubmissionResponse{}, ErrForbidden
	}

	return dto.NewExamSubmissionResponse(submission), nil
}

func (s *attemptService) ListByExam(ctx context.Context, actor Actor, examID uint) ([]dto.ExamSubmissionSummary, error) {
	exam, _, err := s.identity.ownedExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewExamSubmissionSummarySlice(submissions), nil
}

func (s *attemptService) reject(span trace.Span, operation string, err error) {
	reason := rejectionReason(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	observability.LifecycleRejections().WithLabelValues(operation, reason).Inc()
}

func (s *attemptService) record(ctx context.Context, actor Actor, action string, submission models.ExamSubmission, extra map[string]interface{}) {
	if s.activity == nil {
		return
	}
	metadata := map[string]interface{}{
		"exam_id":    submission.ExamID,
		"student_id": submission.StudentID,
		"status":     string(submission.Status),
	}
	for key, value := range extra {
		metadata[key] = value
	}
	_, _ = s.activity.Record(ctx, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: EntityExamSubmission,
		EntityID:   &submission.ID,
		Metadata:   metadata,
	})
}
