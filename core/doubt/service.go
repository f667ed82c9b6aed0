package doubt

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/assignment"
	"github.com/momentum-academy/portal/core/resource"
	"github.com/momentum-academy/portal/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound        = errors.New("doubt not found")
	ErrContextNotFound = errors.New("doubt context not found")
	ErrAlreadyAnswered = core.NewConflictError("AlreadyAnswered", "this doubt has already been answered")
)

type (
	Repository interface {
		CreateDoubt(ctx context.Context, d Doubt) (Doubt, error)
		GetDoubtByID(ctx context.Context, id string) (Doubt, error)
		// AnswerDoubt sets answer and answeredAt only while answer is still
		// null (set-if-null); concurrent replies resolve with exactly one
		// winner, the loser receiving ErrAlreadyAnswered.
		AnswerDoubt(ctx context.Context, id, answer string, answeredAt time.Time) (Doubt, error)
		FilterDoubtsByStudent(ctx context.Context, studentID string, filter QueryFilter) ([]Doubt, error)
		FilterDoubtsByTeacher(ctx context.Context, teacherID string, filter QueryFilter) ([]Doubt, error)
		DeleteDoubtsByContext(ctx context.Context, contextType, contextID string) error
	}

	// Context identifies the owner and display info of the assignment or
	// resource a thread is anchored to.
	Context struct {
		TeacherID string
		Title     string
		Subject   string
	}

	ContextResolver interface {
		ResolveContext(ctx context.Context, contextType, contextID string) (Context, error)
	}

	// Notifier is the slice of the notification broker this service needs.
	Notifier interface {
		Notify(ctx context.Context, recipientID, message, redirectURL string) error
	}

	Service interface {
		Ask(ctx context.Context, student user.User, nd NewDoubt) (Doubt, error)
		Reply(ctx context.Context, teacher user.User, doubtID string, rd ReplyDoubt) (Doubt, error)
		QueryByStudent(ctx context.Context, studentID string, filter QueryFilter) ([]Doubt, error)
		// QueryIncoming lists threads whose context is owned by the teacher.
		QueryIncoming(ctx context.Context, teacherID string, filter QueryFilter) ([]Doubt, error)
		DeleteByContext(ctx context.Context, contextType, contextID string) error
	}

	service struct {
		repo     Repository
		resolver ContextResolver
		notifier Notifier
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	resolver ContextResolver,
	notifier Notifier,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		resolver: resolver,
		notifier: notifier,
		validate: validate,
		logger:   logger,
	}
}

// Ask always opens a new thread; students may raise any number of doubts
// against the same context.
func (svc *service) Ask(ctx context.Context, student user.User, nd NewDoubt) (Doubt, error) {
	if err := nd.Validate(svc.validate); err != nil {
		return Doubt{}, err
	}

	dctx, err := svc.resolver.ResolveContext(ctx, nd.ContextType, nd.ContextID)
	if err != nil {
		return Doubt{}, err
	}

	d := Doubt{
		StudentID:    student.ID,
		TeacherID:    dctx.TeacherID,
		ContextType:  nd.ContextType,
		ContextID:    nd.ContextID,
		ContextTitle: dctx.Title,
		Subject:      dctx.Subject,
		Question:     nd.Question,
		CreatedAt:    NowFunc().UTC(),
	}
	d, err = svc.repo.CreateDoubt(ctx, d)
	if err != nil {
		return Doubt{}, pkgerrors.Wrap(err, "creating doubt")
	}

	svc.notify(ctx, d.TeacherID, "New Doubt in "+d.Subject, "/teacher/doubts")
	return d, nil
}

func (svc *service) Reply(ctx context.Context, teacher user.User, doubtID string, rd ReplyDoubt) (Doubt, error) {
	d, err := svc.repo.GetDoubtByID(ctx, doubtID)
	if err != nil {
		return Doubt{}, err
	}
	if !(teacher.IsAdmin() || d.TeacherID == teacher.ID) {
		return Doubt{}, core.NewAuthorizationError("this doubt is not addressed to you")
	}
	if err = rd.Validate(svc.validate); err != nil {
		return Doubt{}, err
	}
	if d.IsAnswered() {
		return Doubt{}, ErrAlreadyAnswered
	}

	// set-if-null in the repository is the authority; the check above only
	// short-circuits the common case
	d, err = svc.repo.AnswerDoubt(ctx, doubtID, rd.Answer, NowFunc().UTC())
	if err != nil {
		return Doubt{}, err
	}

	svc.notify(ctx, d.StudentID, "Your doubt was answered: "+d.ContextTitle, "/student/doubts")
	return d, nil
}

func (svc *service) QueryByStudent(ctx context.Context, studentID string, filter QueryFilter) ([]Doubt, error) {
	filter.Clean()
	return svc.repo.FilterDoubtsByStudent(ctx, studentID, filter)
}

func (svc *service) QueryIncoming(ctx context.Context, teacherID string, filter QueryFilter) ([]Doubt, error) {
	filter.Clean()
	return svc.repo.FilterDoubtsByTeacher(ctx, teacherID, filter)
}

func (svc *service) DeleteByContext(ctx context.Context, contextType, contextID string) error {
	return svc.repo.DeleteDoubtsByContext(ctx, contextType, contextID)
}

func (svc *service) notify(ctx context.Context, recipientID, message, redirectURL string) {
	if err := svc.notifier.Notify(ctx, recipientID, message, redirectURL); err != nil {
		svc.logger.Error("enqueueing notification", err)
	}
}

// contextResolver resolves thread contexts through the assignment and
// resource stores.
type (
	AssignmentLookup interface {
		GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error)
	}

	ResourceLookup interface {
		GetResourceByID(ctx context.Context, id string) (resource.Resource, error)
	}

	contextResolver struct {
		assignments AssignmentLookup
		resources   ResourceLookup
	}
)

var _ ContextResolver = (*contextResolver)(nil)

func NewContextResolver(assignments AssignmentLookup, resources ResourceLookup) ContextResolver {
	return &contextResolver{assignments: assignments, resources: resources}
}

func (r *contextResolver) ResolveContext(ctx context.Context, contextType, contextID string) (Context, error) {
	switch contextType {
	case ContextAssignment:
		a, err := r.assignments.GetAssignmentByID(ctx, contextID)
		if err != nil {
			if errors.Is(err, assignment.ErrNotFound) {
				return Context{}, ErrContextNotFound
			}
			return Context{}, err
		}
		return Context{TeacherID: a.OwnerID, Title: a.Title, Subject: a.Subject}, nil
	case ContextResource:
		res, err := r.resources.GetResourceByID(ctx, contextID)
		if err != nil {
			if errors.Is(err, resource.ErrNotFound) {
				return Context{}, ErrContextNotFound
			}
			return Context{}, err
		}
		return Context{TeacherID: res.UploaderID, Title: res.Title, Subject: res.Subject}, nil
	}
	return Context{}, ErrContextNotFound
}
