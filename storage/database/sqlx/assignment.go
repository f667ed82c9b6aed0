package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/assignment"
)

const pqUniqueViolation = "23505"

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

type dbAssignment struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	Subject     null.String `db:"subject"`
	TargetClass null.String `db:"target_class"`
	Difficulty  null.String `db:"difficulty"`
	FileURL     null.String `db:"file_url"`
	DueDate     null.Time   `db:"due_date"`
	IsPublished bool        `db:"is_published"`
	OwnerID     null.String `db:"owner_id"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type dbSubmission struct {
	ID           string      `db:"id"`
	AssignmentID string      `db:"assignment_id"`
	StudentID    string      `db:"student_id"`
	FileURL      null.String `db:"file_url"`
	Status       string      `db:"status"`
	Grade        null.String `db:"grade"`
	Feedback     null.String `db:"feedback"`
	SubmittedAt  null.Time   `db:"submitted_at"`
}

func (repo *assignmentRepository) row(a assignment.Assignment) dbAssignment {
	return dbAssignment{
		ID:          a.ID,
		Title:       a.Title,
		Description: null.NewString(a.Description, a.Description != ""),
		Subject:     null.NewString(a.Subject, a.Subject != ""),
		TargetClass: null.NewString(a.TargetClass, a.TargetClass != ""),
		Difficulty:  null.NewString(a.Difficulty, a.Difficulty != ""),
		FileURL:     null.NewString(a.FileURL, a.FileURL != ""),
		DueDate:     null.NewTime(a.DueDate.UTC(), !a.DueDate.IsZero()),
		IsPublished: a.IsPublished,
		OwnerID:     null.NewString(a.OwnerID, a.OwnerID != ""),
		CreatedAt:   null.NewTime(a.CreatedAt.UTC(), !a.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(a.UpdatedAt.UTC(), !a.UpdatedAt.IsZero()),
	}
}

func (repo *assignmentRepository) unrow(a dbAssignment) assignment.Assignment {
	return assignment.Assignment{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description.String,
		Subject:     a.Subject.String,
		TargetClass: a.TargetClass.String,
		Difficulty:  a.Difficulty.String,
		FileURL:     a.FileURL.String,
		DueDate:     a.DueDate.Time,
		IsPublished: a.IsPublished,
		OwnerID:     a.OwnerID.String,
		CreatedAt:   a.CreatedAt.Time,
		UpdatedAt:   a.UpdatedAt.Time,
	}
}

func (repo *assignmentRepository) subRow(sub assignment.Submission) dbSubmission {
	return dbSubmission{
		ID:           sub.ID,
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		FileURL:      null.NewString(sub.FileURL, sub.FileURL != ""),
		Status:       string(sub.Status),
		Grade:        sub.Grade,
		Feedback:     sub.Feedback,
		SubmittedAt:  null.NewTime(sub.SubmittedAt.UTC(), !sub.SubmittedAt.IsZero()),
	}
}

func (repo *assignmentRepository) subUnrow(sub dbSubmission) assignment.Submission {
	return assignment.Submission{
		ID:           sub.ID,
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		FileURL:      sub.FileURL.String,
		Status:       assignment.Status(sub.Status),
		Grade:        sub.Grade,
		Feedback:     sub.Feedback,
		SubmittedAt:  sub.SubmittedAt.Time,
	}
}

func (repo *assignmentRepository) unrowSlice(rows []dbAssignment) []assignment.Assignment {
	asgs := make([]assignment.Assignment, 0, len(rows))
	for _, a := range rows {
		asgs = append(asgs, repo.unrow(a))
	}
	return asgs
}

func (repo *assignmentRepository) subUnrowSlice(rows []dbSubmission) []assignment.Submission {
	subs := make([]assignment.Submission, 0, len(rows))
	for _, sub := range rows {
		subs = append(subs, repo.subUnrow(sub))
	}
	return subs
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	a.ID = uuid.New().String()
	query := `
INSERT INTO assignment (id, title, description, subject, target_class, difficulty, file_url, due_date, is_published, owner_id, created_at, updated_at)
VALUES (:id, :title, :description, :subject, :target_class, :difficulty, :file_url, :due_date, :is_published, :owner_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, repo.row(a)); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	var a dbAssignment
	if err := repo.db.GetContext(ctx, &a, `SELECT * FROM assignment WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return repo.unrow(a), nil
}

func (repo *assignmentRepository) QueryAssignmentsByOwner(ctx context.Context, teacherID string) ([]assignment.Assignment, error) {
	var rows []dbAssignment
	query := `SELECT * FROM assignment WHERE owner_id = $1 ORDER BY created_at ASC`
	if err := repo.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying assignments by owner")
	}
	return repo.unrowSlice(rows), nil
}

func (repo *assignmentRepository) QueryPublishedAssignments(ctx context.Context) ([]assignment.Assignment, error) {
	var rows []dbAssignment
	query := `SELECT * FROM assignment WHERE is_published ORDER BY created_at ASC`
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying published assignments")
	}
	return repo.unrowSlice(rows), nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	query := `
UPDATE assignment
SET title = :title, description = :description, subject = :subject, target_class = :target_class,
    difficulty = :difficulty, file_url = :file_url, due_date = :due_date, is_published = :is_published,
    updated_at = :updated_at
WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, repo.row(a))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	// submissions go along via ON DELETE CASCADE
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM assignment WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	sub.ID = uuid.New().String()
	query := `
INSERT INTO submission (id, assignment_id, student_id, file_url, status, grade, feedback, submitted_at)
VALUES (:id, :assignment_id, :student_id, :file_url, :status, :grade, :feedback, :submitted_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, repo.subRow(sub)); err != nil {
		// the unique (assignment_id, student_id) index decides duplicates
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return assignment.Submission{}, assignment.ErrAlreadySubmitted
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo *assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	var sub dbSubmission
	if err := repo.db.GetContext(ctx, &sub, `SELECT * FROM submission WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "getting submission")
	}
	return repo.subUnrow(sub), nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	var sub dbSubmission
	query := `SELECT * FROM submission WHERE assignment_id = $1 AND student_id = $2`
	if err := repo.db.GetContext(ctx, &sub, query, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "getting submission")
	}
	return repo.subUnrow(sub), nil
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	var rows []dbSubmission
	query := `SELECT * FROM submission WHERE assignment_id = $1 ORDER BY submitted_at ASC`
	if err := repo.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return repo.subUnrowSlice(rows), nil
}

func (repo *assignmentRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]assignment.Submission, error) {
	var rows []dbSubmission
	query := `SELECT * FROM submission WHERE student_id = $1 ORDER BY submitted_at ASC`
	if err := repo.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return repo.subUnrowSlice(rows), nil
}

func (repo *assignmentRepository) QueryGradedSubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	var rows []dbSubmission
	query := `SELECT * FROM submission WHERE assignment_id = $1 AND status = $2 ORDER BY submitted_at ASC`
	if err := repo.db.SelectContext(ctx, &rows, query, assignmentID, assignment.StatusGraded); err != nil {
		return nil, errors.Wrap(err, "querying graded submissions")
	}
	return repo.subUnrowSlice(rows), nil
}

func (repo *assignmentRepository) QueryGradedSubmissionsByStudent(ctx context.Context, studentID string) ([]assignment.Submission, error) {
	var rows []dbSubmission
	query := `SELECT * FROM submission WHERE student_id = $1 AND status = $2 ORDER BY submitted_at ASC`
	if err := repo.db.SelectContext(ctx, &rows, query, studentID, assignment.StatusGraded); err != nil {
		return nil, errors.Wrap(err, "querying graded submissions")
	}
	return repo.subUnrowSlice(rows), nil
}

func (repo *assignmentRepository) GradeSubmission(ctx context.Context, sub assignment.Submission, fromStatus assignment.Status) (assignment.Submission, error) {
	var row dbSubmission
	query := `
UPDATE submission
SET grade = $1, feedback = $2, status = $3
WHERE id = $4 AND status = $5
RETURNING *`
	err := repo.db.GetContext(ctx, &row, query, sub.Grade, sub.Feedback, sub.Status, sub.ID, fromStatus)
	if err == sql.ErrNoRows {
		// the status guard failed: either the row is gone or it moved on
		return assignment.Submission{}, repo.staleOrMissing(ctx, sub.ID)
	}
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "grading submission")
	}
	return repo.subUnrow(row), nil
}

func (repo *assignmentRepository) DeleteSubmission(ctx context.Context, id string, fromStatus assignment.Status) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM submission WHERE id = $1 AND status = $2`, id, fromStatus)
	if err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.staleOrMissing(ctx, id)
	}
	return nil
}

func (repo *assignmentRepository) staleOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM submission WHERE id = $1)`, id); err != nil {
		return errors.Wrap(err, "checking submission")
	}
	if !exists {
		return assignment.ErrSubmissionNotFound
	}
	return core.NewStaleStateError("submission changed since it was read")
}
