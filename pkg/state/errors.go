package state

import "fmt"

// ReferenceKind names the kind of game state entity a condition or effect points at
type ReferenceKind string

const (
	RefLoveMeter  ReferenceKind = "love_meter"
	RefBachelor   ReferenceKind = "bachelor"
	RefPreference ReferenceKind = "preference"
)

// MissingReferenceError reports a condition or effect that points at an entity the
// game state does not know about. It is a warning: callers log it and keep going.
type MissingReferenceError struct {
	Kind ReferenceKind
	Ref  string
}

func (e *MissingReferenceError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("no %s assigned", e.Kind)
	}
	return fmt.Sprintf("unknown %s: %s", e.Kind, e.Ref)
}
