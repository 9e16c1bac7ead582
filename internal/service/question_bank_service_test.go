package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-api/internal/dto"
	"github.com/noah-isme/gema-exam-api/internal/models"
)

func TestQuestionBankCachesAndInvalidates(t *testing.T) {
	fx := newExamFixture(t)
	ctx := context.Background()
	key := questionCacheKey(fx.exam.ID, 0)

	questions, err := fx.bank.Questions(ctx, fx.exam.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.True(t, fx.mini.Exists(key))

	// Served from cache even after the row changes underneath.
	require.NoError(t, fx.db.Model(&models.Question{}).Where("id = ?", fx.questions[0].ID).Update("text", "changed").Error)
	cached, err := fx.bank.Questions(ctx, fx.exam.ID)
	require.NoError(t, err)
	require.Equal(t, "Unit of force?", cached[0].Text)
	require.Equal(t, []string{"Newton", "Joule"}, cached[0].OptionList())

	created, err := fx.bank.Create(ctx, fx.teacherActor(), fx.exam.ID, dto.QuestionCreateRequest{
		Text:          "SI unit of time",
		Type:          string(models.QuestionTypeShortAnswer),
		CorrectAnswer: "second",
		Marks:         2,
	})
	require.NoError(t, err)
	version, err := fx.mini.Get(questionVersionKey(fx.exam.ID))
	require.NoError(t, err)
	require.Equal(t, "1", version)

	questions, err = fx.bank.Questions(ctx, fx.exam.ID)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	require.Equal(t, created.ID, questions[2].ID)
	require.Equal(t, "changed", questions[0].Text)
	require.True(t, fx.mini.Exists(questionCacheKey(fx.exam.ID, 1)))
}

func TestQuestionBankIgnoresFillThatRacedWithMutation(t *testing.T) {
	fx := newExamFixture(t)
	ctx := context.Background()

	_, err := fx.bank.Questions(ctx, fx.exam.ID)
	require.NoError(t, err)
	stale, err := fx.mini.Get(questionCacheKey(fx.exam.ID, 0))
	require.NoError(t, err)

	_, err = fx.bank.Create(ctx, fx.teacherActor(), fx.exam.ID, dto.QuestionCreateRequest{
		Text:  "Late addition",
		Type:  string(models.QuestionTypeLongAnswer),
		Marks: 3,
	})
	require.NoError(t, err)

	// A reader that loaded the old set before the commit writes it back late.
	require.NoError(t, fx.mini.Set(questionCacheKey(fx.exam.ID, 0), stale))

	questions, err := fx.bank.Questions(ctx, fx.exam.ID)
	require.NoError(t, err)
	require.Len(t, questions, 3)

	id := submitAttempt(t, fx, answers(fx.questions[0].ID, "Newton"))
	_, err = fx.grading.Grade(ctx, fx.teacherActor(), id, scores(fx.questions[0].ID, 10.0, fx.questions[1].ID, 5.0))
	require.ErrorIs(t, err, ErrIncompleteGrading)
}

func TestQuestionBankCreateValidatesDefinition(t *testing.T) {
	fx := newExamFixture(t)
	ctx := context.Background()

	_, err := fx.bank.Create(ctx, fx.teacherActor(), fx.exam.ID, dto.QuestionCreateRequest{
		Text:          "Pick the vector",
		Type:          string(models.QuestionTypeMultipleChoice),
		Options:       []string{"speed", "velocity"},
		CorrectAnswer: "acceleration",
		Marks:         3,
	})
	require.ErrorIs(t, err, ErrInvalidQuestion)

	_, err = fx.bank.Create(ctx, fx.teacherActor(), fx.exam.ID, dto.QuestionCreateRequest{
		Text:    "Explain inertia",
		Type:    string(models.QuestionTypeLongAnswer),
		Options: []string{"a", "b"},
		Marks:   3,
	})
	require.ErrorIs(t, err, ErrInvalidQuestion)

	_, err = fx.bank.Create(ctx, fx.teacherActor(), fx.exam.ID, dto.QuestionCreateRequest{
		Text:  "Essay",
		Type:  "essay",
		Marks: 3,
	})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	_, err = fx.bank.Create(ctx, fx.teacherActor(), fx.exam.ID, dto.QuestionCreateRequest{
		Text:  "<script>x()</script>",
		Type:  string(models.QuestionTypeLongAnswer),
		Marks: 3,
	})
	require.ErrorIs(t, err, ErrInvalidQuestion)
}

func TestQuestionBankRequiresOwner(t *testing.T) {
	fx := newExamFixture(t)
	ctx := context.Background()

	_, err := fx.bank.List(ctx, Actor{UserID: fx.otherTeacher.UserID, Role: RoleTeacher}, fx.exam.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = fx.bank.List(ctx, fx.studentActor(), fx.exam.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = fx.bank.List(ctx, fx.teacherActor(), fx.exam.ID+77)
	require.ErrorIs(t, err, ErrExamNotFound)

	listed, err := fx.bank.List(ctx, fx.teacherActor(), fx.exam.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "Newton", listed[0].CorrectAnswer)
}

func TestQuestionBankUpdateAndDelete(t *testing.T) {
	fx := newExamFixture(t)
	ctx := context.Background()
	marks := 7.5
	text := "Define average velocity"

	updated, err := fx.bank.Update(ctx, fx.teacherActor(), fx.exam.ID, fx.questions[1].ID, dto.QuestionUpdateRequest{Text: &text, Marks: &marks})
	require.NoError(t, err)
	require.Equal(t, text, updated.Text)
	require.InDelta(t, 7.5, updated.Marks, 1e-9)
	require.Equal(t, string(models.QuestionTypeLongAnswer), updated.Type)

	require.NoError(t, fx.bank.Delete(ctx, fx.teacherActor(), fx.exam.ID, fx.questions[1].ID))

	err = fx.bank.Delete(ctx, fx.teacherActor(), fx.exam.ID, fx.questions[1].ID)
	require.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = fx.bank.Update(ctx, fx.teacherActor(), fx.exam.ID, 9999, dto.QuestionUpdateRequest{Marks: &marks})
	require.ErrorIs(t, err, ErrQuestionNotFound)

	remaining, err := fx.bank.Questions(ctx, fx.exam.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestQuestionBankLocksOnceAttemptsExist(t *testing.T) {
	fx := newExamFixture(t)
	ctx := context.Background()

	_, err := fx.attempts.Begin(ctx, fx.studentActor(), fx.exam.ID)
	require.NoError(t, err)

	_, err = fx.bank.Create(ctx, fx.teacherActor(), fx.exam.ID, dto.QuestionCreateRequest{
		Text:  "Late addition",
		Type:  string(models.QuestionTypeLongAnswer),
		Marks: 1,
	})
	require.ErrorIs(t, err, ErrQuestionLocked)

	marks := 20.0
	_, err = fx.bank.Update(ctx, fx.teacherActor(), fx.exam.ID, fx.questions[0].ID, dto.QuestionUpdateRequest{Marks: &marks})
	require.ErrorIs(t, err, ErrQuestionLocked)

	err = fx.bank.Delete(ctx, fx.teacherActor(), fx.exam.ID, fx.questions[0].ID)
	require.ErrorIs(t, err, ErrQuestionLocked)
}
