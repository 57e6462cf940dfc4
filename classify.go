package ionmetric

import (
	"errors"
	"reflect"
	"strconv"

	"golang.org/x/text/language"
)

// Error types reported in the type tag.
const (
	ErrorTypeBusiness  = "business_error"
	ErrorTypeTechnical = "technical_error"
)

// Classification describes the outcome of one invocation.
type Classification struct {
	Status string
	Title  string
	Detail string
	Type   string
}

// ErrorTagKeys names the tags a Classification is written under.
type ErrorTagKeys struct {
	Status string
	Title  string
	Detail string
	Type   string
}

// DefaultErrorTagKeys returns status, title, detail and type.
func DefaultErrorTagKeys() ErrorTagKeys {
	return ErrorTagKeys{Status: "status", Title: "title", Detail: "detail", Type: "type"}
}

// LegacyErrorTagKeys returns the keys used by dashboards built on the older
// instrumentation: errorStatus, errorTitle, errorDetail and erroType.
func LegacyErrorTagKeys() ErrorTagKeys {
	return ErrorTagKeys{Status: "errorStatus", Title: "errorTitle", Detail: "errorDetail", Type: "erroType"}
}

// Tags writes the classification into a new tag set.
func (c Classification) Tags(keys ErrorTagKeys) TagSet {
	return TagSet{
		keys.Status: c.Status,
		keys.Title:  c.Title,
		keys.Detail: c.Detail,
		keys.Type:   c.Type,
	}
}

// ProblemResolver adapts errors that do not implement ProblemConvertible,
// such as transport status errors.
type ProblemResolver func(err error) (ProblemConvertible, bool)

// Classifier turns the error of an invocation into a Classification.
type Classifier struct {
	localizer Localizer
	locale    language.Tag
	resolvers []ProblemResolver
}

// NewClassifier returns a classifier resolving problems with l in locale.
func NewClassifier(l Localizer, locale language.Tag, resolvers ...ProblemResolver) *Classifier {
	if l == nil {
		l = NewCatalogLocalizer(nil)
	}
	return &Classifier{localizer: l, locale: locale, resolvers: resolvers}
}

// Classify returns the classification for err.
//
// A nil error yields status "500" and type technical_error so that successful
// and failed calls share one tag schema; status alone does not mean a call
// failed. For problem errors the detail tag repeats the problem title.
func (c *Classifier) Classify(err error) Classification {
	if err == nil {
		return Classification{Status: "500", Type: ErrorTypeTechnical}
	}

	if pc, ok := c.problem(err); ok {
		p := pc.Problem(c.localizer, c.locale)
		if p == nil {
			return Classification{Type: ErrorTypeTechnical}
		}
		kind := ErrorTypeTechnical
		if p.Status >= 400 && p.Status <= 499 {
			kind = ErrorTypeBusiness
		}
		return Classification{
			Status: strconv.Itoa(p.Status),
			Title:  p.Title,
			Detail: p.Title,
			Type:   kind,
		}
	}

	msg, ok := errorMessage(err)
	if !ok {
		return Classification{Type: ErrorTypeTechnical}
	}
	return Classification{Status: msg, Title: msg, Type: ErrorTypeTechnical}
}

// errorMessage returns err.Error(), or false when Error panics, as it does
// for a nil pointer returned as error.
func errorMessage(err error) (msg string, ok bool) {
	defer func() {
		if recover() != nil {
			msg, ok = "", false
		}
	}()
	return err.Error(), true
}

func (c *Classifier) problem(err error) (ProblemConvertible, bool) {
	var pc ProblemConvertible
	if errors.As(err, &pc) && !isNilValue(reflect.ValueOf(pc)) {
		return pc, true
	}
	for _, resolve := range c.resolvers {
		if pc, ok := resolve(err); ok && pc != nil && !isNilValue(reflect.ValueOf(pc)) {
			return pc, true
		}
	}
	return nil, false
}
