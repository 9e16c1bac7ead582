package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-api/internal/models"
	"github.com/noah-isme/gema-exam-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type examFixture struct {
	db           *gorm.DB
	redis        *redis.Client
	mini         *miniredis.Miniredis
	exam         models.Exam
	teacher      models.Teacher
	otherTeacher models.Teacher
	student      models.Student
	outsider     models.Student
	peer         models.Student
	questions    []models.Question
	now          time.Time

	activity ActivityService
	bank     QuestionBankService
	attempts *attemptService
	grading  *examGradingService

	mu        sync.Mutex
	published []ExamEvent
}

type recordingPublisher struct {
	fx *examFixture
}

func (p recordingPublisher) Publish(_ context.Context, event ExamEvent) {
	p.fx.mu.Lock()
	defer p.fx.mu.Unlock()
	p.fx.published = append(p.fx.published, event)
}

func (fx *examFixture) events() []ExamEvent {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return append([]ExamEvent(nil), fx.published...)
}

func newExamFixture(t *testing.T) *examFixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Class{},
		&models.Teacher{},
		&models.Student{},
		&models.Subject{},
		&models.Exam{},
		&models.Question{},
		&models.ExamSubmission{},
		&models.ExamAnswer{},
		&models.ExamGradeHistory{},
		&models.ActivityLog{},
	))

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	fx := &examFixture{db: db, redis: redisClient, mini: mini, now: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)}

	class := models.Class{Name: "10A"}
	otherClass := models.Class{Name: "11B"}
	require.NoError(t, db.Create(&class).Error)
	require.NoError(t, db.Create(&otherClass).Error)

	fx.teacher = models.Teacher{UserID: 100, Name: "Ms. Rahma"}
	fx.otherTeacher = models.Teacher{UserID: 101, Name: "Mr. Budi"}
	require.NoError(t, db.Create(&fx.teacher).Error)
	require.NoError(t, db.Create(&fx.otherTeacher).Error)

	fx.student = models.Student{UserID: 200, ClassID: class.ID, Name: "Dimas"}
	fx.peer = models.Student{UserID: 201, ClassID: class.ID, Name: "Sari"}
	fx.outsider = models.Student{UserID: 300, ClassID: otherClass.ID, Name: "Yoga"}
	for _, student := range []*models.Student{&fx.student, &fx.peer, &fx.outsider} {
		require.NoError(t, db.Create(student).Error)
	}

	subject := models.Subject{Name: "Physics", ClassID: class.ID, TeacherID: fx.teacher.ID}
	require.NoError(t, db.Create(&subject).Error)

	fx.exam = models.Exam{
		SubjectID: subject.ID,
		Title:     "Kinematics",
		Type:      models.ExamTypeQuiz,
		StartDate: fx.now.Add(-30 * time.Minute),
		EndDate:   fx.now.Add(30 * time.Minute),
	}
	require.NoError(t, db.Create(&fx.exam).Error)

	fx.questions = []models.Question{
		{ExamID: fx.exam.ID, Text: "Unit of force?", Type: models.QuestionTypeMultipleChoice, Options: models.EncodeOptions([]string{"Newton", "Joule"}), CorrectAnswer: "Newton", Marks: 10},
		{ExamID: fx.exam.ID, Text: "Define velocity", Type: models.QuestionTypeLongAnswer, Marks: 5},
	}
	for i := range fx.questions {
		require.NoError(t, db.Create(&fx.questions[i]).Error)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	exams := repository.NewExamRepository(db)
	directory := repository.NewDirectoryRepository(db)
	submissions := repository.NewExamSubmissionRepository(db)
	publisher := recordingPublisher{fx: fx}

	fx.activity = NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	fx.bank = NewQuestionBankService(exams, directory, validate, fx.activity, redisClient, time.Minute, testLogger())
	fx.attempts = NewAttemptService(submissions, exams, directory, fx.bank, validate, fx.activity, publisher, testLogger()).(*attemptService)
	fx.grading = NewExamGradingService(submissions, exams, directory, fx.bank, validate, fx.activity, publisher, testLogger()).(*examGradingService)
	fx.setNow(fx.now)

	return fx
}

func (fx *examFixture) setNow(now time.Time) {
	fx.now = now
	clock := func() time.Time { return now }
	fx.attempts.now = clock
	fx.grading.now = clock
}

func (fx *examFixture) studentActor() Actor {
	return Actor{UserID: fx.student.UserID, Role: RoleStudent, CorrelationID: "corr-student"}
}

func (fx *examFixture) teacherActor() Actor {
	return Actor{UserID: fx.teacher.UserID, Role: RoleTeacher, CorrelationID: "corr-teacher"}
}

func scorePtr(v float64) *float64 {
	return &v
}
