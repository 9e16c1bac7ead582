package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-api/internal/models"
	"github.com/noah-isme/gema-exam-api/internal/repository"
)

// Roles recognised by the exam lifecycle.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID        uint
	Role          string
	CorrelationID string
}

// IsRole reports whether the actor carries the given role.
func (a Actor) IsRole(role string) bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), role)
}

type identityResolver struct {
	directory repository.DirectoryRepository
	exams     repository.ExamRepository
}

func (r identityResolver) student(ctx context.Context, actor Actor) (models.Student, error) {
	if actor.UserID == 0 {
		return models.Student{}, ErrUnauthorized
	}
	if !actor.IsRole(RoleStudent) {
		return models.Student{}, fmt.Errorf("%w: student role required", ErrForbidden)
	}

	student, err := r.directory.StudentByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, fmt.Errorf("%w: no student profile for user %d", ErrUnauthorized, actor.UserID)
		}
		return models.Student{}, err
	}
	return student, nil
}

func (r identityResolver) teacher(ctx context.Context, actor Actor) (models.Teacher, error) {
	if actor.UserID == 0 {
		return models.Teacher{}, ErrUnauthorized
	}
	if !actor.IsRole(RoleTeacher) {
		return models.Teacher{}, fmt.Errorf("%w: teacher role required", ErrForbidden)
	}

	teacher, err := r.directory.TeacherByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Teacher{}, fmt.Errorf("%w: no teacher profile for user %d", ErrUnauthorized, actor.UserID)
		}
		return models.Teacher{}, err
	}
	return teacher, nil
}

func (r identityResolver) exam(ctx context.Context, examID uint) (models.Exam, error) {
	exam, err := r.exams.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Exam{}, ErrExamNotFound
		}
		return models.Exam{}, err
	}
	return exam, nil
}

// ownedExam loads the exam and confirms the teacher teaches its subject.
func (r identityResolver) ownedExam(ctx context.Context, actor Actor, examID uint) (models.Exam, models.Teacher, error) {
	teacher, err := r.teacher(ctx, actor)
	if err != nil {
		return models.Exam{}, models.Teacher{}, err
	}

	exam, err := r.exam(ctx, examID)
	if err != nil {
		return models.Exam{}, models.Teacher{}, err
	}

	if !exam.Subject.TaughtBy(teacher.ID) {
		return models.Exam{}, models.Teacher{}, fmt.Errorf("%w: teacher %d does not own exam %d", ErrForbidden, teacher.ID, exam.ID)
	}
	return exam, teacher, nil
}
