package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core/doubt"
)

type doubtRepository struct {
	db *doubtTable
}

var _ doubt.Repository = (*doubtRepository)(nil) // interface compliance check

func NewDoubtRepository(db *DB) doubt.Repository {
	return &doubtRepository{db: db.doubt}
}

func (repo *doubtRepository) query() []doubt.Doubt {
	doubts := make([]doubt.Doubt, 0, len(repo.db.table))
	for _, d := range repo.db.table {
		doubts = append(doubts, *d)
	}
	sort.Slice(doubts, func(i, j int) bool { return doubts[i].CreatedAt.After(doubts[j].CreatedAt) })
	return doubts
}

func (repo *doubtRepository) CreateDoubt(ctx context.Context, d doubt.Doubt) (doubt.Doubt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	d.ID = uuid.New().String()
	repo.db.table[d.ID] = &d
	return d, nil
}

func (repo *doubtRepository) GetDoubtByID(ctx context.Context, id string) (doubt.Doubt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.table[id]; ok {
		return *d, nil
	}
	return doubt.Doubt{}, doubt.ErrNotFound
}

func (repo *doubtRepository) AnswerDoubt(ctx context.Context, id, answer string, answeredAt time.Time) (doubt.Doubt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	d, ok := repo.db.table[id]
	if !ok {
		return doubt.Doubt{}, doubt.ErrNotFound
	}
	// set-if-null: the first writer wins
	if d.Answer.Valid {
		return doubt.Doubt{}, doubt.ErrAlreadyAnswered
	}

	d.Answer = null.StringFrom(answer)
	d.AnsweredAt = null.TimeFrom(answeredAt)
	return *d, nil
}

func (repo *doubtRepository) FilterDoubtsByStudent(ctx context.Context, studentID string, filter doubt.QueryFilter) ([]doubt.Doubt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var doubts []doubt.Doubt
	for _, d := range repo.query() {
		if d.StudentID == studentID && filter.Match(d) {
			doubts = append(doubts, d)
		}
	}
	return doubts, nil
}

func (repo *doubtRepository) FilterDoubtsByTeacher(ctx context.Context, teacherID string, filter doubt.QueryFilter) ([]doubt.Doubt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var doubts []doubt.Doubt
	for _, d := range repo.query() {
		if d.TeacherID == teacherID && filter.Match(d) {
			doubts = append(doubts, d)
		}
	}
	return doubts, nil
}

func (repo *doubtRepository) DeleteDoubtsByContext(ctx context.Context, contextType, contextID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, d := range repo.db.table {
		if d.ContextType == contextType && d.ContextID == contextID {
			delete(repo.db.table, id)
		}
	}
	return nil
}
