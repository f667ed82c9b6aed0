package performance

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/momentum-academy/portal/core/assignment"
	"github.com/momentum-academy/portal/core/user"
)

type (
	// Stats is a student's aggregate view over their graded submissions.
	Stats struct {
		AveragePercentage int `json:"average_percentage"`
		TotalTests        int `json:"total_tests"`
		BestRank          int `json:"best_rank"`   // 0 when the student never ranked
		Improvement       int `json:"improvement"` // recent-half average minus prior-half average
	}

	// Entry is one leaderboard row.
	Entry struct {
		Rank        int       `json:"rank"`
		StudentID   string    `json:"student_id"`
		StudentName string    `json:"student_name"`
		Grade       string    `json:"grade"`
		Percentage  int       `json:"percentage"`
		SubmittedAt time.Time `json:"submitted_at"`
	}

	// Result is one graded submission in a student's test history,
	// placed against the assignment's cohort.
	Result struct {
		AssignmentID    string    `json:"assignment_id"`
		AssignmentTitle string    `json:"assignment_title"`
		Subject         string    `json:"subject"`
		Grade           string    `json:"grade"`
		Percentage      int       `json:"percentage"`
		Rank            int       `json:"rank"` // 0 when the grade kept the student off the leaderboard
		CohortSize      int       `json:"cohort_size"`
		SubmittedAt     time.Time `json:"submitted_at"`
	}

	// SubmissionSource is the slice of the assignment store this
	// aggregator reads from.
	SubmissionSource interface {
		GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error)
		QueryGradedSubmissionsByStudent(ctx context.Context, studentID string) ([]assignment.Submission, error)
		QueryGradedSubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error)
	}

	// StudentDirectory resolves student display names for leaderboard rows.
	StudentDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		// Stats aggregates a student's graded submissions. Malformed grades
		// contribute a zero percentage but still count towards the totals.
		Stats(ctx context.Context, studentID string) (Stats, error)
		// Leaderboard ranks an assignment's graded submissions by descending
		// percentage. Submissions whose grade is not a strict "int/int" pair
		// are excluded. Ties break on earlier submission time, then student ID.
		Leaderboard(ctx context.Context, assignmentID string) ([]Entry, error)
		// Results lists a student's graded submissions newest first, each with
		// its leaderboard placement and cohort size.
		Results(ctx context.Context, studentID string) ([]Result, error)
	}

	service struct {
		subs     SubmissionSource
		students StudentDirectory
	}
)

var _ Service = (*service)(nil)

func NewService(subs SubmissionSource, students StudentDirectory) Service {
	return &service{subs: subs, students: students}
}

// Percentage converts a "scored/total" grade into an integer percentage,
// truncating towards zero. Unparsable grades and zero totals yield 0.
func Percentage(grade string) int {
	scored, total, ok := parseGrade(grade)
	if !ok || total == 0 {
		return 0
	}
	return 100 * scored / total
}

func parseGrade(grade string) (scored, total int, ok bool) {
	parts := strings.Split(grade, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	scored, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	total, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return scored, total, true
}

func (svc *service) Stats(ctx context.Context, studentID string) (Stats, error) {
	subs, err := svc.subs.QueryGradedSubmissionsByStudent(ctx, studentID)
	if err != nil {
		return Stats{}, err
	}
	if len(subs) == 0 {
		return Stats{}, nil
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })

	pcts := make([]int, len(subs))
	sum := 0
	for i, sub := range subs {
		pcts[i] = Percentage(sub.Grade.String)
		sum += pcts[i]
	}

	stats := Stats{
		AveragePercentage: sum / len(pcts),
		TotalTests:        len(subs),
		Improvement:       improvement(pcts),
	}

	best, err := svc.bestRank(ctx, studentID, subs)
	if err != nil {
		return Stats{}, err
	}
	stats.BestRank = best
	return stats, nil
}

// improvement compares the average of the chronologically recent half of
// percentages against the prior half. Odd middles belong to the recent half.
func improvement(pcts []int) int {
	if len(pcts) < 2 {
		return 0
	}
	mid := len(pcts) / 2
	return avg(pcts[mid:]) - avg(pcts[:mid])
}

func avg(pcts []int) int {
	sum := 0
	for _, p := range pcts {
		sum += p
	}
	return sum / len(pcts)
}

func (svc *service) bestRank(ctx context.Context, studentID string, subs []assignment.Submission) (int, error) {
	best := 0
	for _, sub := range subs {
		entries, err := svc.Leaderboard(ctx, sub.AssignmentID)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if e.StudentID == studentID && (best == 0 || e.Rank < best) {
				best = e.Rank
			}
		}
	}
	return best, nil
}

func (svc *service) Results(ctx context.Context, studentID string) ([]Result, error) {
	subs, err := svc.subs.QueryGradedSubmissionsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })

	results := make([]Result, 0, len(subs))
	for _, sub := range subs {
		asg, err := svc.subs.GetAssignmentByID(ctx, sub.AssignmentID)
		if err != nil {
			return nil, err
		}
		entries, err := svc.Leaderboard(ctx, sub.AssignmentID)
		if err != nil {
			return nil, err
		}

		res := Result{
			AssignmentID:    asg.ID,
			AssignmentTitle: asg.Title,
			Subject:         asg.Subject,
			Grade:           sub.Grade.String,
			Percentage:      Percentage(sub.Grade.String),
			CohortSize:      len(entries),
			SubmittedAt:     sub.SubmittedAt,
		}
		for _, e := range entries {
			if e.StudentID == studentID {
				res.Rank = e.Rank
				break
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func (svc *service) Leaderboard(ctx context.Context, assignmentID string) ([]Entry, error) {
	subs, err := svc.subs.QueryGradedSubmissionsByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(subs))
	for _, sub := range subs {
		scored, total, ok := parseGrade(sub.Grade.String)
		if !ok || total == 0 {
			continue
		}
		entries = append(entries, Entry{
			StudentID:   sub.StudentID,
			Grade:       sub.Grade.String,
			Percentage:  100 * scored / total,
			SubmittedAt: sub.SubmittedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		ei, ej := entries[i], entries[j]
		if ei.Percentage != ej.Percentage {
			return ei.Percentage > ej.Percentage
		}
		if !ei.SubmittedAt.Equal(ej.SubmittedAt) {
			return ei.SubmittedAt.Before(ej.SubmittedAt)
		}
		return ei.StudentID < ej.StudentID
	})

	for i := range entries {
		entries[i].Rank = i + 1
		if usr, err := svc.students.GetByID(ctx, entries[i].StudentID); err == nil {
			entries[i].StudentName = usr.Name
		}
	}
	return entries, nil
}
