package ionmetric

import (
	"fmt"
	"net/http"

	"golang.org/x/text/language"
)

// ProblemDetail is a structured error description in the RFC 9457 shape.
type ProblemDetail struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ProblemConvertible is an error that can describe itself as a problem.
// The localizer and locale are those configured on the interceptor; a nil
// result is classified as a technical error with empty status and title.
type ProblemConvertible interface {
	error
	Problem(l Localizer, locale language.Tag) *ProblemDetail
}

// ProblemError is a ProblemConvertible carrying message keys that are
// resolved through the Localizer when the problem is built.
type ProblemError struct {
	Status    int
	TitleKey  string
	DetailKey string
	Args      []any
	Cause     error
}

// NewProblem returns a ProblemError for status. An empty titleKey uses the
// HTTP reason phrase as title.
func NewProblem(status int, titleKey string) *ProblemError {
	return &ProblemError{Status: status, TitleKey: titleKey}
}

// WithDetail sets the detail message key and its arguments.
func (e *ProblemError) WithDetail(key string, args ...any) *ProblemError {
	e.DetailKey = key
	e.Args = args
	return e
}

// WithCause attaches the underlying error.
func (e *ProblemError) WithCause(err error) *ProblemError {
	e.Cause = err
	return e
}

func (e *ProblemError) Error() string {
	title := e.TitleKey
	if title == "" {
		title = http.StatusText(e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, title, e.Cause)
	}
	return fmt.Sprintf("%d %s", e.Status, title)
}

func (e *ProblemError) Unwrap() error { return e.Cause }

// Problem resolves the title and detail keys for locale.
func (e *ProblemError) Problem(l Localizer, locale language.Tag) *ProblemDetail {
	p := &ProblemDetail{Type: "about:blank", Status: e.Status}

	switch {
	case e.TitleKey == "":
		p.Title = http.StatusText(e.Status)
	case l != nil:
		p.Title = l.Localize(locale, e.TitleKey)
	default:
		p.Title = e.TitleKey
	}

	switch {
	case e.DetailKey == "":
	case l != nil:
		p.Detail = l.Localize(locale, e.DetailKey, e.Args...)
	default:
		p.Detail = fmt.Sprintf(e.DetailKey, e.Args...)
	}
	return p
}

// PanicError wraps a recovered panic value that is not an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprint(e.Value) }

// panicError turns a recovered value into an error for classification.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}
