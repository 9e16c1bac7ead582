package models

import "time"

// The registry models below are maintained by the school administration
// surfaces. The exam service only reads them to resolve identities and
// evaluate enrolment and ownership.

// Class groups students that share subjects.
type Class struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Teacher maps an authenticated user onto a teaching profile.
type Teacher struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Student maps an authenticated user onto a learner enrolled in a class.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	ClassID   uint      `gorm:"not null;index" json:"class_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject is taught by one teacher to one class.
type Subject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	ClassID   uint      `gorm:"not null;index" json:"class_id"`
	TeacherID uint      `gorm:"not null;index" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaughtBy reports whether the teacher owns the subject.
func (s Subject) TaughtBy(teacherID uint) bool {
	return teacherID != 0 && s.TeacherID == teacherID
}

// Enrolls reports whether the student attends the subject's class.
func (s Subject) Enrolls(student Student) bool {
	return student.ClassID != 0 && s.ClassID == student.ClassID
}
