package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core/doubt"
)

type doubtRepository struct {
	db *sqlx.DB
}

var _ doubt.Repository = (*doubtRepository)(nil) // interface compliance check

func NewDoubtRepository(db *sqlx.DB) doubt.Repository {
	return &doubtRepository{db: db}
}

type dbDoubt struct {
	ID           string      `db:"id"`
	StudentID    string      `db:"student_id"`
	TeacherID    null.String `db:"teacher_id"`
	ContextType  string      `db:"context_type"`
	ContextID    string      `db:"context_id"`
	ContextTitle null.String `db:"context_title"`
	Subject      null.String `db:"subject"`
	Question     string      `db:"question"`
	Answer       null.String `db:"answer"`
	CreatedAt    null.Time   `db:"created_at"`
	AnsweredAt   null.Time   `db:"answered_at"`
}

func (repo *doubtRepository) row(d doubt.Doubt) dbDoubt {
	return dbDoubt{
		ID:           d.ID,
		StudentID:    d.StudentID,
		TeacherID:    null.NewString(d.TeacherID, d.TeacherID != ""),
		ContextType:  d.ContextType,
		ContextID:    d.ContextID,
		ContextTitle: null.NewString(d.ContextTitle, d.ContextTitle != ""),
		Subject:      null.NewString(d.Subject, d.Subject != ""),
		Question:     d.Question,
		Answer:       d.Answer,
		CreatedAt:    null.NewTime(d.CreatedAt.UTC(), !d.CreatedAt.IsZero()),
		AnsweredAt:   d.AnsweredAt,
	}
}

func (repo *doubtRepository) unrow(d dbDoubt) doubt.Doubt {
	return doubt.Doubt{
		ID:           d.ID,
		StudentID:    d.StudentID,
		TeacherID:    d.TeacherID.String,
		ContextType:  d.ContextType,
		ContextID:    d.ContextID,
		ContextTitle: d.ContextTitle.String,
		Subject:      d.Subject.String,
		Question:     d.Question,
		Answer:       d.Answer,
		CreatedAt:    d.CreatedAt.Time,
		AnsweredAt:   d.AnsweredAt,
	}
}

func (repo *doubtRepository) unrowSlice(rows []dbDoubt) []doubt.Doubt {
	doubts := make([]doubt.Doubt, 0, len(rows))
	for _, d := range rows {
		doubts = append(doubts, repo.unrow(d))
	}
	return doubts
}

func (repo *doubtRepository) CreateDoubt(ctx context.Context, d doubt.Doubt) (doubt.Doubt, error) {
	d.ID = uuid.New().String()
	query := `
INSERT INTO doubt (id, student_id, teacher_id, context_type, context_id, context_title, subject, question, answer, created_at, answered_at)
VALUES (:id, :student_id, :teacher_id, :context_type, :context_id, :context_title, :subject, :question, :answer, :created_at, :answered_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, repo.row(d)); err != nil {
		return doubt.Doubt{}, errors.Wrap(err, "inserting doubt")
	}
	return d, nil
}

func (repo *doubtRepository) GetDoubtByID(ctx context.Context, id string) (doubt.Doubt, error) {
	var d dbDoubt
	if err := repo.db.GetContext(ctx, &d, `SELECT * FROM doubt WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return doubt.Doubt{}, doubt.ErrNotFound
		}
		return doubt.Doubt{}, errors.Wrap(err, "getting doubt")
	}
	return repo.unrow(d), nil
}

func (repo *doubtRepository) AnswerDoubt(ctx context.Context, id, answer string, answeredAt time.Time) (doubt.Doubt, error) {
	var d dbDoubt
	// answer IS NULL guards the write: exactly one reply ever lands
	query := `
UPDATE doubt
SET answer = $1, answered_at = $2
WHERE id = $3 AND answer IS NULL
RETURNING *`
	err := repo.db.GetContext(ctx, &d, query, answer, answeredAt.UTC(), id)
	if err == sql.ErrNoRows {
		var exists bool
		if err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM doubt WHERE id = $1)`, id); err != nil {
			return doubt.Doubt{}, errors.Wrap(err, "checking doubt")
		}
		if !exists {
			return doubt.Doubt{}, doubt.ErrNotFound
		}
		return doubt.Doubt{}, doubt.ErrAlreadyAnswered
	}
	if err != nil {
		return doubt.Doubt{}, errors.Wrap(err, "answering doubt")
	}
	return repo.unrow(d), nil
}

func (repo *doubtRepository) FilterDoubtsByStudent(ctx context.Context, studentID string, filter doubt.QueryFilter) ([]doubt.Doubt, error) {
	return repo.filter(ctx, "student_id", studentID, filter)
}

func (repo *doubtRepository) FilterDoubtsByTeacher(ctx context.Context, teacherID string, filter doubt.QueryFilter) ([]doubt.Doubt, error) {
	return repo.filter(ctx, "teacher_id", teacherID, filter)
}

func (repo *doubtRepository) filter(ctx context.Context, ownerCol, ownerID string, filter doubt.QueryFilter) ([]doubt.Doubt, error) {
	conds := []string{fmt.Sprintf("%s = $1", ownerCol)}
	args := []interface{}{ownerID}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ContextType != "" {
		conds = append(conds, "context_type = "+arg(filter.ContextType))
	}
	if filter.ContextID != "" {
		conds = append(conds, "context_id = "+arg(filter.ContextID))
	}
	switch filter.Status {
	case doubt.StatusPending:
		conds = append(conds, "answer IS NULL")
	case doubt.StatusResolved:
		conds = append(conds, "answer IS NOT NULL")
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(question ILIKE %[1]s OR context_title ILIKE %[1]s)", p))
	}

	query := `SELECT * FROM doubt WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`

	var rows []dbDoubt
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering doubts")
	}
	return repo.unrowSlice(rows), nil
}

func (repo *doubtRepository) DeleteDoubtsByContext(ctx context.Context, contextType, contextID string) error {
	query := `DELETE FROM doubt WHERE context_type = $1 AND context_id = $2`
	if _, err := repo.db.ExecContext(ctx, query, contextType, contextID); err != nil {
		return errors.Wrap(err, "deleting doubts by context")
	}
	return nil
}
