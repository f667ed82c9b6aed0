package performance

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core/assignment"
	"github.com/momentum-academy/portal/core/user"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name  string
		grade string
		want  int
	}{
		{name: "empty", grade: "", want: 0},
		{name: "no slash", grade: "45", want: 0},
		{name: "too many parts", grade: "45/50/2", want: 0},
		{name: "non-numeric scored", grade: "abc/50", want: 0},
		{name: "non-numeric total", grade: "45/lol", want: 0},
		{name: "empty total", grade: "45/", want: 0},
		{name: "zero total", grade: "5/0", want: 0},
		{name: "zero scored", grade: "0/50", want: 0},
		{name: "regular", grade: "45/50", want: 90},
		{name: "full marks", grade: "50/50", want: 100},
		{name: "whitespace around parts", grade: " 45 / 50 ", want: 90},
		{name: "truncates", grade: "3/4", want: 75},
		{name: "truncates down", grade: "2/3", want: 66},
		{name: "single point", grade: "1/1", want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.grade); got != tt.want {
				t.Errorf("Percentage(%q) = %d, want %d", tt.grade, got, tt.want)
			}
		})
	}
}

// submissionSourceStub serves canned graded submissions keyed by student and
// by assignment.
type submissionSourceStub struct {
	assignments  map[string]assignment.Assignment
	byStudent    map[string][]assignment.Submission
	byAssignment map[string][]assignment.Submission
}

func (s *submissionSourceStub) GetAssignmentByID(_ context.Context, id string) (assignment.Assignment, error) {
	if a, ok := s.assignments[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (s *submissionSourceStub) QueryGradedSubmissionsByStudent(_ context.Context, studentID string) ([]assignment.Submission, error) {
	return s.byStudent[studentID], nil
}

func (s *submissionSourceStub) QueryGradedSubmissionsByAssignment(_ context.Context, assignmentID string) ([]assignment.Submission, error) {
	return s.byAssignment[assignmentID], nil
}

type studentDirectoryStub struct {
	users map[string]user.User
}

func (s *studentDirectoryStub) GetByID(_ context.Context, id string) (user.User, error) {
	if usr, ok := s.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func gradedSub(assignmentID, studentID, grade string, submittedAt time.Time) assignment.Submission {
	return assignment.Submission{
		ID:           assignmentID + ":" + studentID,
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Status:       assignment.StatusGraded,
		Grade:        null.StringFrom(grade),
		SubmittedAt:  submittedAt,
	}
}

func Test_service_Leaderboard(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	subs := &submissionSourceStub{
		byAssignment: map[string][]assignment.Submission{
			"asg1": {
				gradedSub("asg1", "amy", "45/50", t0.Add(2*time.Hour)),
				gradedSub("asg1", "bob", "50/50", t0),
				gradedSub("asg1", "cat", "45/50", t0.Add(1*time.Hour)),
				gradedSub("asg1", "dan", "45/50", t0.Add(1*time.Hour)), // ties with cat on time
				gradedSub("asg1", "eve", "lol", t0),                    // unparsable, excluded
				gradedSub("asg1", "fox", "3/0", t0),                    // zero total, excluded
			},
			"empty": {},
		},
	}
	students := &studentDirectoryStub{
		users: map[string]user.User{
			"amy": {ID: "amy", Name: "Amy"},
			"bob": {ID: "bob", Name: "Bob"},
			"cat": {ID: "cat", Name: "Cat"},
			// dan unresolvable; his row keeps an empty name
		},
	}
	svc := NewService(subs, students)

	entries, err := svc.Leaderboard(ctx, "asg1")
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}

	want := []struct {
		rank      int
		studentID string
		name      string
		pct       int
	}{
		{1, "bob", "Bob", 100},
		{2, "cat", "Cat", 90}, // beats dan on student ID at equal time
		{3, "dan", "", 90},
		{4, "amy", "Amy", 90}, // same percentage, later submission
	}
	if len(entries) != len(want) {
		t.Fatalf("Leaderboard() returned %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		e := entries[i]
		if e.Rank != w.rank || e.StudentID != w.studentID || e.StudentName != w.name || e.Percentage != w.pct {
			t.Errorf("entry[%d] = {rank:%d id:%s name:%q pct:%d}, want {rank:%d id:%s name:%q pct:%d}",
				i, e.Rank, e.StudentID, e.StudentName, e.Percentage, w.rank, w.studentID, w.name, w.pct)
		}
	}

	entries, err = svc.Leaderboard(ctx, "empty")
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Leaderboard() on empty assignment returned %d entries, want 0", len(entries))
	}
}

func Test_service_Stats(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	subs := &submissionSourceStub{
		byStudent: map[string][]assignment.Submission{
			// returned out of order on purpose; Stats sorts chronologically
			"amy": {
				gradedSub("asg3", "amy", "50/50", t0.Add(48*time.Hour)),
				gradedSub("asg1", "amy", "20/50", t0),
				gradedSub("asg2", "amy", "40/50", t0.Add(24*time.Hour)),
				gradedSub("asg4", "amy", "45/50", t0.Add(72*time.Hour)),
			},
			"bob": {
				gradedSub("asg1", "bob", "garbage", t0), // counted, contributes 0
				gradedSub("asg2", "bob", "25/50", t0.Add(24*time.Hour)),
			},
			"solo": {
				gradedSub("asg9", "solo", "30/50", t0),
			},
		},
		byAssignment: map[string][]assignment.Submission{
			"asg1": {
				gradedSub("asg1", "amy", "20/50", t0),
				gradedSub("asg1", "zoe", "35/50", t0),
			},
			"asg2": {
				gradedSub("asg2", "amy", "40/50", t0.Add(24*time.Hour)),
				gradedSub("asg2", "zoe", "45/50", t0.Add(24*time.Hour)),
			},
			"asg3": {
				gradedSub("asg3", "amy", "50/50", t0.Add(48*time.Hour)),
				gradedSub("asg3", "zoe", "40/50", t0.Add(48*time.Hour)),
			},
			"asg4": {
				gradedSub("asg4", "amy", "45/50", t0.Add(72*time.Hour)),
			},
			"asg9": {
				gradedSub("asg9", "solo", "30/50", t0),
			},
		},
	}
	svc := NewService(subs, &studentDirectoryStub{users: map[string]user.User{}})

	tests := []struct {
		name      string
		studentID string
		want      Stats
	}{
		{
			// pcts in time order: 40, 80, 100, 90
			// improvement: avg(100, 90) - avg(40, 80) = 95 - 60 = 35
			// best rank: 1st on asg3 and asg4
			name:      "regular",
			studentID: "amy",
			want:      Stats{AveragePercentage: 77, TotalTests: 4, BestRank: 1, Improvement: 35},
		},
		{
			// malformed grade counts towards totals with a zero percentage
			name:      "malformed grade",
			studentID: "bob",
			want:      Stats{AveragePercentage: 25, TotalTests: 2, BestRank: 0, Improvement: 50},
		},
		{
			// fewer than two tests: no improvement signal
			name:      "single test",
			studentID: "solo",
			want:      Stats{AveragePercentage: 60, TotalTests: 1, BestRank: 1, Improvement: 0},
		},
		{
			name:      "no graded submissions",
			studentID: "ghost",
			want:      Stats{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Stats(ctx, tt.studentID)
			if err != nil {
				t.Fatalf("Stats() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Stats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func Test_improvement(t *testing.T) {
	tests := []struct {
		name string
		pcts []int
		want int
	}{
		{name: "empty", pcts: nil, want: 0},
		{name: "single", pcts: []int{80}, want: 0},
		{name: "pair up", pcts: []int{40, 80}, want: 40},
		{name: "pair down", pcts: []int{80, 40}, want: -40},
		{name: "odd middle counts as recent", pcts: []int{40, 60, 80}, want: 30}, // avg(60,80)-avg(40)
		{name: "flat", pcts: []int{70, 70, 70, 70}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := improvement(tt.pcts); got != tt.want {
				t.Errorf("improvement(%v) = %d, want %d", tt.pcts, got, tt.want)
			}
		})
	}
}

func Test_service_Results(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	subs := &submissionSourceStub{
		assignments: map[string]assignment.Assignment{
			"asg1": {ID: "asg1", Title: "Algebra I", Subject: "Maths"},
			"asg2": {ID: "asg2", Title: "Optics", Subject: "Physics"},
		},
		byStudent: map[string][]assignment.Submission{
			"amy": {
				gradedSub("asg1", "amy", "lol", t0), // unparsable, off the leaderboard
				gradedSub("asg2", "amy", "45/50", t0.Add(24*time.Hour)),
			},
		},
		byAssignment: map[string][]assignment.Submission{
			"asg1": {
				gradedSub("asg1", "amy", "lol", t0),
				gradedSub("asg1", "zoe", "35/50", t0),
			},
			"asg2": {
				gradedSub("asg2", "amy", "45/50", t0.Add(24*time.Hour)),
				gradedSub("asg2", "zoe", "40/50", t0.Add(24*time.Hour)),
			},
		},
	}
	svc := NewService(subs, &studentDirectoryStub{users: map[string]user.User{}})

	results, err := svc.Results(ctx, "amy")
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}

	want := []Result{
		{
			AssignmentID:    "asg2",
			AssignmentTitle: "Optics",
			Subject:         "Physics",
			Grade:           "45/50",
			Percentage:      90,
			Rank:            1,
			CohortSize:      2,
			SubmittedAt:     t0.Add(24 * time.Hour),
		},
		{
			AssignmentID:    "asg1",
			AssignmentTitle: "Algebra I",
			Subject:         "Maths",
			Grade:           "lol",
			Percentage:      0,
			Rank:            0, // unparsable grades keep no leaderboard spot
			CohortSize:      1,
			SubmittedAt:     t0,
		},
	}
	if len(results) != len(want) {
		t.Fatalf("Results() returned %d entries, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i] != w {
			t.Errorf("result[%d] = %+v, want %+v", i, results[i], w)
		}
	}

	results, err = svc.Results(ctx, "ghost")
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Results() for unknown student returned %d entries, want 0", len(results))
	}
}
