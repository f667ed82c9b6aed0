package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = core.NewConflictError("AlreadySubmitted", "assignment already submitted; revoke the previous submission first")
	ErrAlreadyGraded      = core.NewConflictError("AlreadyGraded", "cannot revoke a submission that has already been graded")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		QueryAssignmentsByOwner(ctx context.Context, teacherID string) ([]Assignment, error)
		QueryPublishedAssignments(ctx context.Context) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		// DeleteAssignment removes the assignment and all its submissions.
		DeleteAssignment(ctx context.Context, id string) error

		// CreateSubmission enforces the one-row-per-(assignment, student)
		// invariant; a duplicate pair yields ErrAlreadySubmitted.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
		QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]Submission, error)
		QueryGradedSubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
		QueryGradedSubmissionsByStudent(ctx context.Context, studentID string) ([]Submission, error)
		// GradeSubmission writes grade/feedback/status as a conditional update
		// keyed on fromStatus; a core.StaleStateError is returned when the row's
		// status no longer matches.
		GradeSubmission(ctx context.Context, sub Submission, fromStatus Status) (Submission, error)
		// DeleteSubmission removes the row only while its status still matches
		// fromStatus; a core.StaleStateError is returned otherwise.
		DeleteSubmission(ctx context.Context, id string, fromStatus Status) error
	}

	// Notifier is the slice of the notification broker this service needs.
	Notifier interface {
		Notify(ctx context.Context, recipientID, message, redirectURL string) error
	}

	// StudentDirectory resolves the students an assignment targets.
	StudentDirectory interface {
		QueryStudentsByClass(ctx context.Context, class string) ([]user.User, error)
	}

	// ThreadCascader removes doubt threads anchored to a deleted context.
	ThreadCascader interface {
		DeleteByContext(ctx context.Context, contextType, contextID string) error
	}

	Service interface {
		Create(ctx context.Context, owner user.User, na NewAssignment) (Assignment, error)
		Update(ctx context.Context, actor user.User, id string, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, actor user.User, id string) error
		GetByID(ctx context.Context, id string) (Assignment, error)
		QueryByOwner(ctx context.Context, teacherID string) ([]Assignment, error)
		// QueryForStudent returns published assignments targeting the student's
		// class, each with the derived or stored submission status.
		QueryForStudent(ctx context.Context, student user.User) ([]StudentAssignment, error)

		Submit(ctx context.Context, student user.User, assignmentID, fileURL string) (Submission, error)
		Revoke(ctx context.Context, student user.User, assignmentID string) error
		Grade(ctx context.Context, teacher user.User, submissionID string, gs GradeSubmission) (Submission, error)
		Submissions(ctx context.Context, teacher user.User, assignmentID string) ([]Submission, error)
	}

	service struct {
		repo     Repository
		notifier Notifier
		students StudentDirectory
		threads  ThreadCascader
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	notifier Notifier,
	students StudentDirectory,
	threads ThreadCascader,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		notifier: notifier,
		students: students,
		threads:  threads,
		validate: validate,
		logger:   logger,
	}
}

func (svc *service) Create(ctx context.Context, owner user.User, na NewAssignment) (Assignment, error) {
	if !(owner.IsTeacher() || owner.IsAdmin()) {
		return Assignment{}, core.NewAuthorizationError("only teachers can create assignments")
	}
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}

	now := NowFunc().UTC()
	a := Assignment{
		Title:       na.Title,
		Description: na.Description,
		Subject:     na.Subject,
		TargetClass: na.TargetClass,
		Difficulty:  na.Difficulty,
		FileURL:     na.FileURL,
		DueDate:     na.dueDate,
		IsPublished: na.Publish,
		OwnerID:     owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a, err := svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, pkgerrors.Wrap(err, "creating assignment")
	}

	if a.IsPublished {
		svc.notifyTargetClass(ctx, a)
	}
	return a, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.checkOwnership(actor, a); err != nil {
		return Assignment{}, err
	}
	if err = ua.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}

	wasPublished := a.IsPublished
	a = ua.apply(a)
	a.UpdatedAt = NowFunc().UTC()

	a, err = svc.repo.UpdateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, pkgerrors.Wrap(err, "updating assignment")
	}

	// first publish announces the assignment
	if a.IsPublished && !wasPublished {
		svc.notifyTargetClass(ctx, a)
	}
	return a, nil
}

// Delete removes the assignment along with its submissions and any doubt
// threads anchored to it.
func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	a, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.checkOwnership(actor, a); err != nil {
		return err
	}
	if err = svc.repo.DeleteAssignment(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting assignment")
	}
	if err = svc.threads.DeleteByContext(ctx, "ASSIGNMENT", id); err != nil {
		return pkgerrors.Wrap(err, "cascading doubt threads")
	}
	return nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *service) QueryByOwner(ctx context.Context, teacherID string) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByOwner(ctx, teacherID)
}

func (svc *service) QueryForStudent(ctx context.Context, student user.User) ([]StudentAssignment, error) {
	all, err := svc.repo.QueryPublishedAssignments(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying published assignments")
	}

	now := NowFunc().UTC()
	result := make([]StudentAssignment, 0, len(all))
	for _, a := range all {
		if a.TargetClass != student.Class {
			continue
		}

		sa := StudentAssignment{Assignment: a}
		sub, err := svc.repo.GetSubmission(ctx, a.ID, student.ID)
		switch {
		case err == nil:
			sa.Status = DeriveStatus(a, &sub, now)
			sa.MyFileURL = null.StringFrom(sub.FileURL)
			sa.Grade = sub.Grade
		case errors.Is(err, ErrSubmissionNotFound):
			sa.Status = DeriveStatus(a, nil, now)
		default:
			return nil, pkgerrors.Wrap(err, "querying submission")
		}
		result = append(result, sa)
	}
	return result, nil
}

func (svc *service) Submit(ctx context.Context, student user.User, assignmentID, fileURL string) (Submission, error) {
	fileURL = core.CleanString(fileURL)
	if fileURL == "" {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "file_url", Error: "this field is required"})
	}

	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if !a.IsPublished {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "assignment_id", Error: "assignment is not published"})
	}

	if _, err = svc.repo.GetSubmission(ctx, assignmentID, student.ID); err == nil {
		return Submission{}, ErrAlreadySubmitted
	} else if !errors.Is(err, ErrSubmissionNotFound) {
		return Submission{}, pkgerrors.Wrap(err, "checking existing submission")
	}

	now := NowFunc().UTC()
	status := StatusSubmitted
	if a.DueDatePassed(now) {
		status = StatusLate
	}

	sub := Submission{
		AssignmentID: assignmentID,
		StudentID:    student.ID,
		FileURL:      fileURL,
		Status:       status,
		SubmittedAt:  now,
	}
	// the unique (assignment, student) index is the authority on duplicates;
	// the read above only gives a friendlier fast path
	sub, err = svc.repo.CreateSubmission(ctx, sub)
	if err != nil {
		return Submission{}, err
	}

	svc.notify(ctx, a.OwnerID, "New Submission: "+a.Title, "/teacher/submissions")
	return sub, nil
}

func (svc *service) Revoke(ctx context.Context, student user.User, assignmentID string) error {
	sub, err := svc.repo.GetSubmission(ctx, assignmentID, student.ID)
	if err != nil {
		return err
	}
	if sub.IsGraded() {
		return ErrAlreadyGraded
	}
	// conditional delete: a grade landing between our read and this write
	// must win, surfacing as a stale-state error
	return svc.repo.DeleteSubmission(ctx, sub.ID, sub.Status)
}

func (svc *service) Grade(ctx context.Context, teacher user.User, submissionID string, gs GradeSubmission) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	a, err := svc.repo.GetAssignmentByID(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.checkOwnership(teacher, a); err != nil {
		return Submission{}, err
	}
	if err = gs.Validate(svc.validate); err != nil {
		return Submission{}, err
	}

	fromStatus := sub.Status
	sub.Grade = null.StringFrom(gs.Grade)
	sub.Feedback = null.NewString(gs.Feedback, gs.Feedback != "")
	sub.Status = StatusGraded

	sub, err = svc.repo.GradeSubmission(ctx, sub, fromStatus)
	if err != nil {
		return Submission{}, err
	}

	// re-grading notifies again: a changed grade is a user-visible event
	svc.notify(ctx, sub.StudentID, "Your assignment was graded: "+a.Title, "/student/assignments")
	return sub, nil
}

func (svc *service) Submissions(ctx context.Context, teacher user.User, assignmentID string) ([]Submission, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err = svc.checkOwnership(teacher, a); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissionsByAssignment(ctx, assignmentID)
}

func (svc *service) checkOwnership(actor user.User, a Assignment) error {
	if actor.IsAdmin() || a.OwnerID == actor.ID {
		return nil
	}
	return core.NewAuthorizationError("you do not own this assignment")
}

func (svc *service) notifyTargetClass(ctx context.Context, a Assignment) {
	students, err := svc.students.QueryStudentsByClass(ctx, a.TargetClass)
	if err != nil {
		svc.logger.Error("querying target class students", err)
		return
	}
	for _, s := range students {
		svc.notify(ctx, s.ID, "New Assignment: "+a.Title, "/student/assignments")
	}
}

// notify enqueues a notification; delivery failures are logged, never
// propagated to the caller's write.
func (svc *service) notify(ctx context.Context, recipientID, message, redirectURL string) {
	if err := svc.notifier.Notify(ctx, recipientID, message, redirectURL); err != nil {
		svc.logger.Error("enqueueing notification", err)
	}
}
