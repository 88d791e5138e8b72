package resolve

import (
	"fmt"

	"github.com/themill/wiz/graph"
	"github.com/themill/wiz/requirement"
)

// DefinitionError reports a malformed or ambiguous definition lookup.
type DefinitionError struct{ Err error }

func (e *DefinitionError) Error() string { return e.Err.Error() }
func (e *DefinitionError) Unwrap() error { return e.Err }

// VersionError reports a malformed version string.
type VersionError struct{ Err error }

func (e *VersionError) Error() string { return e.Err.Error() }
func (e *VersionError) Unwrap() error { return e.Err }

// RequirementError reports a malformed requirement string.
type RequirementError struct{ Err error }

func (e *RequirementError) Error() string { return e.Err.Error() }
func (e *RequirementError) Unwrap() error { return e.Err }

// CurrentSystemError reports that a definition could not be evaluated
// against the resolution's system descriptor.
type CurrentSystemError struct{ Err error }

func (e *CurrentSystemError) Error() string { return e.Err.Error() }
func (e *CurrentSystemError) Unwrap() error { return e.Err }

// GraphConflictsError wraps an unresolved conflict left in a combination.
type GraphConflictsError struct{ Err *graph.ConflictsError }

func (e *GraphConflictsError) Error() string { return e.Err.Error() }
func (e *GraphConflictsError) Unwrap() error { return e.Err }

// GraphInvalidNodesError wraps a failed relink left in a combination.
type GraphInvalidNodesError struct{ Err *graph.InvalidNodesError }

func (e *GraphInvalidNodesError) Error() string { return e.Err.Error() }
func (e *GraphInvalidNodesError) Unwrap() error { return e.Err }

// GraphVariantsError reports that every generated variant combination
// failed to validate.
type GraphVariantsError struct{ Attempts int }

func (e *GraphVariantsError) Error() string {
	return fmt.Sprintf("no combination validated among %d combination(s)", e.Attempts)
}

// GraphResolutionError is returned when the driver exhausts its budgets
// without finding a validating combination. It is the parent of the three
// Graph*Error kinds and aggregates the final round's conflicts.
type GraphResolutionError struct {
	Attempts    int
	Combinations int
	Conflicts   []requirement.Conflict
	Cause       error
}

func (e *GraphResolutionError) Error() string {
	return fmt.Sprintf(
		"failed to resolve graph after %d attempt(s) and %d combination(s): %v",
		e.Attempts, e.Combinations, e.Cause,
	)
}

func (e *GraphResolutionError) Unwrap() error { return e.Cause }

func classify(err error) error {
	switch e := err.(type) {
	case *graph.ConflictsError:
		return &GraphConflictsError{Err: e}
	case *graph.InvalidNodesError:
		return &GraphInvalidNodesError{Err: e}
	default:
		return err
	}
}
