package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db.assignment}
}

func (repo *assignmentRepository) query() []assignment.Assignment {
	asgs := make([]assignment.Assignment, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		asgs = append(asgs, *a)
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.Before(asgs[j].CreatedAt) })
	return asgs
}

func (repo *assignmentRepository) querySubmissions() []assignment.Submission {
	subs := make([]assignment.Submission, 0, len(repo.db.submissions))
	for _, sub := range repo.db.submissions {
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = uuid.New().String()
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignmentsByOwner(ctx context.Context, teacherID string) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var asgs []assignment.Assignment
	for _, a := range repo.query() {
		if a.OwnerID == teacherID {
			asgs = append(asgs, a)
		}
	}
	return asgs, nil
}

func (repo *assignmentRepository) QueryPublishedAssignments(ctx context.Context) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var asgs []assignment.Assignment
	for _, a := range repo.query() {
		if a.IsPublished {
			asgs = append(asgs, a)
		}
	}
	return asgs, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[a.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	for subID, sub := range repo.db.submissions {
		if sub.AssignmentID == id {
			delete(repo.db.submissions, subID)
		}
	}
	return nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// one row per (assignment, student)
	for _, existing := range repo.db.submissions {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID {
			return assignment.Submission{}, assignment.ErrAlreadySubmitted
		}
	}

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return *sub, nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []assignment.Submission
	for _, sub := range repo.querySubmissions() {
		if sub.AssignmentID == assignmentID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (repo *assignmentRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []assignment.Submission
	for _, sub := range repo.querySubmissions() {
		if sub.StudentID == studentID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (repo *assignmentRepository) QueryGradedSubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []assignment.Submission
	for _, sub := range repo.querySubmissions() {
		if sub.AssignmentID == assignmentID && sub.Status == assignment.StatusGraded {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (repo *assignmentRepository) QueryGradedSubmissionsByStudent(ctx context.Context, studentID string) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []assignment.Submission
	for _, sub := range repo.querySubmissions() {
		if sub.StudentID == studentID && sub.Status == assignment.StatusGraded {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (repo *assignmentRepository) GradeSubmission(ctx context.Context, sub assignment.Submission, fromStatus assignment.Status) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.submissions[sub.ID]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	// compare-and-set on the status observed by the caller
	if orig.Status != fromStatus {
		return assignment.Submission{}, core.NewStaleStateError("submission changed since it was read")
	}

	orig.Grade = sub.Grade
	orig.Feedback = sub.Feedback
	orig.Status = sub.Status
	return *orig, nil
}

func (repo *assignmentRepository) DeleteSubmission(ctx context.Context, id string, fromStatus assignment.Status) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.submissions[id]
	if !ok {
		return assignment.ErrSubmissionNotFound
	}
	if orig.Status != fromStatus {
		return core.NewStaleStateError("submission changed since it was read")
	}

	delete(repo.db.submissions, id)
	return nil
}
