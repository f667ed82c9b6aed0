package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core"
)

// Submission lifecycle statuses. Pending and Missing are never stored: they
// are derived at read time by comparing the due date against the clock, so
// they cannot drift as time passes.
type Status string

const (
	StatusPending   Status = "Pending" // derived: no row, due date not passed
	StatusMissing   Status = "Missing" // derived: no row, due date passed
	StatusSubmitted Status = "Submitted"
	StatusLate      Status = "Late"
	StatusGraded    Status = "Graded"
)

type Assignment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	TargetClass string    `json:"target_class"`
	Difficulty  string    `json:"difficulty"`
	FileURL     string    `json:"file_url"`
	DueDate     time.Time `json:"due_date"` // date only, midnight UTC
	IsPublished bool      `json:"is_published"`
	OwnerID     string    `json:"owner_id"` // teacher
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DueDatePassed reports whether the assignment's due date lies strictly
// before the (date of the) given instant.
func (a Assignment) DueDatePassed(now time.Time) bool {
	if a.DueDate.IsZero() {
		return false
	}
	return dateOf(now).After(a.DueDate)
}

type Submission struct {
	ID           string      `json:"id"`
	AssignmentID string      `json:"assignment_id"`
	StudentID    string      `json:"student_id"`
	FileURL      string      `json:"file_url"`
	Status       Status      `json:"status"`
	Grade        null.String `json:"grade"`    // e.g. "45/50"
	Feedback     null.String `json:"feedback"`
	SubmittedAt  time.Time   `json:"submitted_at"` // UTC
}

func (s Submission) IsGraded() bool {
	return s.Status == StatusGraded
}

// StudentAssignment is a student's view of an assignment: the assignment
// plus the derived or stored status of their own submission.
type StudentAssignment struct {
	Assignment
	Status    Status      `json:"status"`
	MyFileURL null.String `json:"my_file_url"`
	Grade     null.String `json:"grade"`
}

// DeriveStatus resolves a student's status for an assignment. sub is nil when
// the student has not submitted.
func DeriveStatus(a Assignment, sub *Submission, now time.Time) Status {
	if sub != nil {
		return sub.Status
	}
	if a.DueDatePassed(now) {
		return StatusMissing
	}
	return StatusPending
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Subject     string `json:"subject" validate:"required"`
	TargetClass string `json:"target_class" validate:"required"`
	Difficulty  string `json:"difficulty"`
	FileURL     string `json:"file_url" validate:"required,url"`
	DueDate     string `json:"due_date" validate:"required"` // "2006-01-02"
	Publish     bool   `json:"publish"`

	dueDate time.Time
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Subject = core.CleanString(na.Subject)
	na.TargetClass = core.CleanString(na.TargetClass)

	if err := validate.Struct(na); err != nil {
		return err
	}

	due, err := time.Parse("2006-01-02", na.DueDate)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "due_date", Error: "invalid date, expected YYYY-MM-DD"})
	}
	na.dueDate = due.UTC()
	return nil
}

// UpdateAssignment defines what may be modified on an existing Assignment.
// Zero-valued fields are left untouched.
type UpdateAssignment struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
	TargetClass string `json:"target_class"`
	Difficulty  string `json:"difficulty"`
	FileURL     string `json:"file_url" validate:"omitempty,url"`
	DueDate     string `json:"due_date"`
	Publish     *bool  `json:"publish"`

	dueDate time.Time
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Subject = core.CleanString(ua.Subject)
	ua.TargetClass = core.CleanString(ua.TargetClass)

	if err := validate.Struct(ua); err != nil {
		return err
	}
	if ua.DueDate != "" {
		due, err := time.Parse("2006-01-02", ua.DueDate)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "due_date", Error: "invalid date, expected YYYY-MM-DD"})
		}
		ua.dueDate = due.UTC()
	}
	return nil
}

func (ua *UpdateAssignment) apply(a Assignment) Assignment {
	if ua.Title != "" {
		a.Title = ua.Title
	}
	if ua.Description != "" {
		a.Description = ua.Description
	}
	if ua.Subject != "" {
		a.Subject = ua.Subject
	}
	if ua.TargetClass != "" {
		a.TargetClass = ua.TargetClass
	}
	if ua.Difficulty != "" {
		a.Difficulty = ua.Difficulty
	}
	if ua.FileURL != "" {
		a.FileURL = ua.FileURL
	}
	if !ua.dueDate.IsZero() {
		a.DueDate = ua.dueDate
	}
	if ua.Publish != nil {
		a.IsPublished = *ua.Publish
	}
	return a
}

// GradeSubmission carries a teacher's grade for a submission.
type GradeSubmission struct {
	Grade    string `json:"grade" validate:"required"`
	Feedback string `json:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Grade = core.CleanString(gs.Grade)
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
