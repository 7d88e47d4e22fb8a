package conditionals

import (
	"fmt"

	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// Evaluate checks the condition against the game state without modifying it.
// When the condition references a meter, bachelor, or preference the game state does not know,
// the result is false and a *state.MissingReferenceError is returned as a warning.
func Evaluate(c Condition, view state.GameStateView) (bool, error) {
	switch c.Op {
	case ValueEquals:
		// Case-sensitive string equality; comparison_type is not consulted
		return view.GetVariable(c.Variable) == c.Value, nil

	case BooleanEquals:
		return view.GetBoolean(c.Variable) == c.Bool, nil

	case LoveScoreAtLeast:
		if c.Meter == "" {
			return false, &state.MissingReferenceError{Kind: state.RefLoveMeter}
		}
		current, ok := view.GetLoveScore(c.Meter)
		if !ok {
			return false, &state.MissingReferenceError{Kind: state.RefLoveMeter, Ref: c.Meter}
		}
		return current >= c.Threshold, nil

	case PreferenceDiscovered:
		if c.Preference == nil || c.Preference.Bachelor == "" {
			return false, &state.MissingReferenceError{Kind: state.RefBachelor}
		}
		discovered, ok := view.IsPreferenceDiscovered(*c.Preference)
		if !ok {
			return false, &state.MissingReferenceError{
				Kind: state.RefPreference,
				Ref:  c.Preference.Bachelor + "/" + c.Preference.Description,
			}
		}
		return discovered, nil

	default:
		return false, fmt.Errorf("unknown condition operation: %s", c.Op)
	}
}
