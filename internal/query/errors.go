package query

import "fmt"

// ValidationError reports a spec that references identifiers outside the
// schema registry or carries malformed parameters. It is always fatal and
// is raised before any network activity.
type ValidationError struct {
	Table string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Table == "" {
		return "invalid query: " + e.Msg
	}
	return fmt.Sprintf("invalid query against %s: %s", e.Table, e.Msg)
}

func validationErrf(table, format string, args ...any) *ValidationError {
	return &ValidationError{Table: table, Msg: fmt.Sprintf(format, args...)}
}
