package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-api/internal/dto"
	"github.com/noah-isme/gema-exam-api/internal/models"
	"github.com/noah-isme/gema-exam-api/internal/observability"
	"github.com/noah-isme/gema-exam-api/internal/repository"
)

// QuestionBankService manages exam questions for the owning teacher and
// serves the cached question set to the lifecycle services.
type QuestionBankService interface {
	Questions(ctx context.Context, examID uint) ([]models.Question, error)
	List(ctx context.Context, actor Actor, examID uint) ([]dto.QuestionResponse, error)
	Create(ctx context.Context, actor Actor, examID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	Update(ctx context.Context, actor Actor, examID, questionID uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error)
	Delete(ctx context.Context, actor Actor, examID, questionID uint) error
}

type questionBankService struct {
	exams     repository.ExamRepository
	identity  identityResolver
	validator *validator.Validate
	activity  ActivityRecorder
	cache     *redis.Client
	cacheTTL  time.Duration
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewQuestionBankService constructs the question bank service. The cache is optional.
func NewQuestionBankService(exams repository.ExamRepository, directory repository.DirectoryRepository, validate *validator.Validate, activity ActivityRecorder, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) QuestionBankService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &questionBankService{
		exams:     exams,
		identity:  identityResolver{directory: directory, exams: exams},
		validator: validate,
		activity:  activity,
		cache:     cache,
		cacheTTL:  ttl,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "question_bank_service").Logger(),
	}
}

// Cached question sets are keyed by a per-exam version that every mutation
// bumps after commit. A fill that raced with a mutation lands under the old
// version and is never read again.
func questionVersionKey(examID uint) string {
	return fmt.Sprintf("exam:%d:questions:version", examID)
}

func questionCacheKey(examID uint, version int64) string {
	return fmt.Sprintf("exam:%d:questions:v%d", examID, version)
}

func (s *questionBankService) cacheVersion(ctx context.Context, examID uint) (int64, bool) {
	version, err := s.cache.Get(ctx, questionVersionKey(examID)).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		s.logger.Warn().Err(err).Uint("exam_id", examID).Msg("failed to read question cache version")
		return 0, false
	}
	return version, true
}

func (s *questionBankService) Questions(ctx context.Context, examID uint) ([]models.Question, error) {
	cacheKey := ""
	if s.cache != nil {
		if version, ok := s.cacheVersion(ctx, examID); ok {
			cacheKey = questionCacheKey(examID, version)
		}
	}

	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var questions []models.Question
			if unmarshalErr := json.Unmarshal([]byte(cached), &questions); unmarshalErr == nil {
				observability.QuestionCacheLookups().WithLabelValues("hit").Inc()
				return questions, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Uint("exam_id", examID).Msg("failed to read question cache")
		}
		observability.QuestionCacheLookups().WithLabelValues("miss").Inc()
	}

	questions, err := s.exams.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		payload, err := json.Marshal(questions)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Uint("exam_id", examID).Msg("failed to store question cache")
			}
		}
	}

	return questions, nil
}

func (s *questionBankService) List(ctx context.Context, actor Actor, examID uint) ([]dto.QuestionResponse, error) {
	if _, _, err := s.identity.ownedExam(ctx, actor, examID); err != nil {
		return nil, err
	}

	questions, err := s.Questions(ctx, examID)
	if err != nil {
		return nil, err
	}
	return dto.NewQuestionResponseSlice(questions), nil
}

func (s *questionBankService) Create(ctx context.Context, actor Actor, examID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	exam, _, err := s.identity.ownedExam(ctx, actor, examID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.Question{
		ExamID:        exam.ID,
		Text:          plainText(s.sanitizer, payload.Text),
		Type:          models.QuestionType(payload.Type),
		Options:       models.EncodeOptions(s.cleanOptions(payload.Options)),
		CorrectAnswer: plainText(s.sanitizer, payload.CorrectAnswer),
		Marks:         payload.Marks,
	}
	if err := validateQuestion(question); err != nil {
		return dto.QuestionResponse{}, err
	}

	err = s.mutate(ctx, exam.ID, func(tx repository.ExamRepository) error {
		return tx.CreateQuestion(ctx, &question)
	})
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	s.invalidate(ctx, exam.ID)
	s.record(ctx, actor, models.ActivityQuestionCreated, question)

	return dto.NewQuestionResponse(question), nil
}

func (s *questionBankService) Update(ctx context.Context, actor Actor, examID, questionID uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	exam, _, err := s.identity.ownedExam(ctx, actor, examID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.exams.GetQuestion(ctx, exam.ID, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	if payload.Text != nil {
		question.Text = plainText(s.sanitizer, *payload.Text)
	}
	if payload.Type != nil {
		question.Type = models.QuestionType(*payload.Type)
	}
	if payload.Options != nil {
		question.Options = models.EncodeOptions(s.cleanOptions(payload.Options))
	}
	if payload.CorrectAnswer != nil {
		question.CorrectAnswer = plainText(s.sanitizer, *payload.CorrectAnswer)
	}
	if payload.Marks != nil {
		question.Marks = *payload.Marks
	}
	if err := validateQuestion(question); err != nil {
		return dto.QuestionResponse{}, err
	}

	err = s.mutate(ctx, exam.ID, func(tx repository.ExamRepository) error {
		return tx.UpdateQuestion(ctx, &question)
	})
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	s.invalidate(ctx, exam.ID)
	s.record(ctx, actor, models.ActivityQuestionUpdated, question)

	return dto.NewQuestionResponse(question), nil
}

func (s *questionBankService) Delete(ctx context.Context, actor Actor, examID, questionID uint) error {
	exam, _, err := s.identity.ownedExam(ctx, actor, examID)
	if err != nil {
		return err
	}

	question, err := s.exams.GetQuestion(ctx, exam.ID, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	err = s.mutate(ctx, exam.ID, func(tx repository.ExamRepository) error {
		return tx.DeleteQuestion(ctx, exam.ID, question.ID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	s.invalidate(ctx, exam.ID)
	s.record(ctx, actor, models.ActivityQuestionDeleted, question)
	return nil
}

// mutate applies fn while holding the exam row lock and only when no attempt
// exists yet. Attempt creation takes a shared lock on the same row, so the
// count cannot go stale before fn commits.
func (s *questionBankService) mutate(ctx context.Context, examID uint, fn func(tx repository.ExamRepository) error) error {
	return s.exams.Transaction(ctx, func(tx repository.ExamRepository) error {
		if err := tx.LockExam(ctx, examID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExamNotFound
			}
			return err
		}
		count, err := tx.CountSubmissions(ctx, examID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrQuestionLocked
		}
		return fn(tx)
	})
}

func (s *questionBankService) invalidate(ctx context.Context, examID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Incr(ctx, questionVersionKey(examID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("exam_id", examID).Msg("failed to invalidate question cache")
	}
}

func (s *questionBankService) record(ctx context.Context, actor Actor, action string, question models.Question) {
	if s.activity == nil {
		return
	}
	_, _ = s.activity.Record(ctx, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: EntityQuestion,
		EntityID:   &question.ID,
		Metadata: map[string]interface{}{
			"exam_id": question.ExamID,
			"type":    string(question.Type),
			"marks":   question.Marks,
		},
	})
}

func validateQuestion(question models.Question) error {
	if question.Text == "" {
		return fmt.Errorf("%w: text is empty after sanitization", ErrInvalidQuestion)
	}
	if question.Marks <= 0 {
		return fmt.Errorf("%w: marks must be positive", ErrInvalidQuestion)
	}

	options := question.OptionList()
	switch question.Type {
	case models.QuestionTypeMultipleChoice:
		if len(options) < 2 {
			return fmt.Errorf("%w: multiple choice needs at least two options", ErrInvalidQuestion)
		}
		if question.CorrectAnswer == "" {
			return fmt.Errorf("%w: multiple choice needs a correct answer", ErrInvalidQuestion)
		}
		for _, option := range options {
			if option == question.CorrectAnswer {
				return nil
			}
		}
		return fmt.Errorf("%w: correct answer must be one of the options", ErrInvalidQuestion)
	case models.QuestionTypeShortAnswer, models.QuestionTypeLongAnswer:
		if len(options) > 0 {
			return fmt.Errorf("%w: %s questions take no options", ErrInvalidQuestion, question.Type)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, question.Type)
	}
}

func (s *questionBankService) cleanOptions(options []string) []string {
	if options == nil {
		return nil
	}
	cleaned := make([]string, 0, len(options))
	for _, option := range options {
		cleaned = append(cleaned, plainText(s.sanitizer, option))
	}
	return cleaned
}
