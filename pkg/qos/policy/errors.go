package policy

import (
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// FieldError is a single validation failure, attributed to the policy, class, match group
// or interface it was found in
type FieldError struct {
	Type       Type
	Policy     string
	Class      string
	MatchGroup string
	Interface  string
	Field      string
	Message    string
}

func (e *FieldError) Error() string {
	var where []string
	if e.Policy != "" {
		where = append(where, fmt.Sprintf("%s policy %s", e.Type, e.Policy))
	}
	if e.Class != "" {
		where = append(where, "class "+e.Class)
	}
	if e.MatchGroup != "" {
		where = append(where, "traffic-match-group "+e.MatchGroup)
	}
	if e.Interface != "" {
		where = append(where, "interface "+e.Interface)
	}
	if e.Field != "" {
		where = append(where, e.Field)
	}
	if len(where) == 0 {
		return e.Message
	}
	return strings.Join(where, " ") + ": " + e.Message
}

// ValidationError aggregates all the failures found in a configuration
type ValidationError struct {
	Errors []*FieldError
}

func (e *ValidationError) Error() string {
	return utilerrors.NewAggregate(e.errs()).Error()
}

// Unwrap returns the individual failures
func (e *ValidationError) Unwrap() []error {
	return e.errs()
}

func (e *ValidationError) errs() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, fe := range e.Errors {
		errs = append(errs, fe)
	}
	return errs
}
