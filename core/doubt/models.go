package doubt

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core"
)

// Doubt thread contexts.
const (
	ContextAssignment = "ASSIGNMENT"
	ContextResource   = "RESOURCE"
)

// Thread states for query filters. A thread is pending until the one
// allowed reply lands; it is resolved forever after.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

// Doubt is a single question-and-optional-answer exchange between a student
// and the teacher owning the context it is anchored to.
type Doubt struct {
	ID           string      `json:"id"`
	StudentID    string      `json:"student_id"`
	TeacherID    string      `json:"teacher_id"`
	ContextType  string      `json:"context_type"` // ASSIGNMENT | RESOURCE
	ContextID    string      `json:"context_id"`
	ContextTitle string      `json:"context_title"` // denormalized for display
	Subject      string      `json:"subject"`
	Question     string      `json:"question"`
	Answer       null.String `json:"answer"`
	CreatedAt    time.Time   `json:"created_at"`  // UTC
	AnsweredAt   null.Time   `json:"answered_at"` // UTC
}

func (d Doubt) IsAnswered() bool {
	return d.Answer.Valid
}

// NewDoubt contains information needed to open a new thread.
type NewDoubt struct {
	ContextType string `json:"context_type" validate:"required,oneof=ASSIGNMENT RESOURCE"`
	ContextID   string `json:"context_id" validate:"required"`
	Question    string `json:"question" validate:"required"`
}

func (nd *NewDoubt) Validate(validate *validator.Validate) error {
	nd.ContextType = strings.ToUpper(core.CleanString(nd.ContextType))
	nd.Question = core.CleanString(nd.Question)
	return validate.Struct(nd)
}

// ReplyDoubt carries a teacher's answer.
type ReplyDoubt struct {
	Answer string `json:"answer" validate:"required"`
}

func (rd *ReplyDoubt) Validate(validate *validator.Validate) error {
	rd.Answer = core.CleanString(rd.Answer)
	return validate.Struct(rd)
}

// QueryFilter narrows a thread listing. All set fields apply (AND). These
// are pure predicates over the stored set, not additional state.
type QueryFilter struct {
	ContextType string `query:"context_type"`
	ContextID   string `query:"context_id"`
	Status      string `query:"status"` // pending | resolved
	Search      string `query:"search"` // matches question or context title
}

func (qf *QueryFilter) Clean() {
	qf.ContextType = strings.ToUpper(core.CleanString(qf.ContextType))
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

// Match reports whether the doubt satisfies the filter.
func (qf QueryFilter) Match(d Doubt) bool {
	if qf.ContextType != "" && d.ContextType != qf.ContextType {
		return false
	}
	if qf.ContextID != "" && d.ContextID != qf.ContextID {
		return false
	}
	switch qf.Status {
	case StatusPending:
		if d.IsAnswered() {
			return false
		}
	case StatusResolved:
		if !d.IsAnswered() {
			return false
		}
	}
	if qf.Search != "" {
		needle := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(d.Question), needle) &&
			!strings.Contains(strings.ToLower(d.ContextTitle), needle) {
			return false
		}
	}
	return true
}
