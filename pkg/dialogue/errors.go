package dialogue

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidState is returned when an operation is called in a status that does not accept it
var ErrInvalidState = errors.New("operation not valid in current dialogue state")

// ValidationError lists every problem found while loading a graph. A graph with problems is never built.
type ValidationError struct {
	Graph    string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph %q is invalid:\n  - %s", e.Graph, strings.Join(e.Problems, "\n  - "))
}

// GraphCycleError is returned when a condition/setter cascade does not reach a text node
// or the end of the conversation within the depth bound
type GraphCycleError struct {
	Depth int
	Path  []string
}

func (e *GraphCycleError) Error() string {
	tail := e.Path
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	return fmt.Sprintf("cascade exceeded depth %d (last nodes: %s)", e.Depth, strings.Join(tail, " -> "))
}

// InvalidSelectionError is returned when the selected option does not exist or its guard fails
type InvalidSelectionError struct {
	Index  int
	Reason string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid option %d: %s", e.Index, e.Reason)
}
