package state

import "fmt"

// EffectOp identifies what a setter node does to the game state
type EffectOp string

const (
	EffectSetValue           EffectOp = "set_value"
	EffectUpdateLoveScore    EffectOp = "update_love_score"
	EffectUpdateBoolean      EffectOp = "update_boolean"
	EffectDiscoverPreference EffectOp = "discover_preference"
)

// Effect is the side effect carried by a setter node.
// Which operands are used depends on Op.
type Effect struct {
	Op EffectOp `json:"op" yaml:"op"`

	// set_value / update_boolean
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	Bool     bool   `json:"bool,omitempty" yaml:"bool,omitempty"`

	// update_love_score
	Meter           string `json:"meter,omitempty" yaml:"meter,omitempty"`
	LoveScoreAmount int    `json:"love_score_amount,omitempty" yaml:"love_score_amount,omitempty"`

	// discover_preference
	Preference *PreferenceRef `json:"preference,omitempty" yaml:"preference,omitempty"`
}

// Validate checks that the operation is known and its required operands are present.
// Entity references (meters, bachelors) are resolved at runtime, not here.
func (e Effect) Validate() error {
	switch e.Op {
	case EffectSetValue, EffectUpdateBoolean:
		if e.Variable == "" {
			return fmt.Errorf("%s effect requires a variable name", e.Op)
		}
	case EffectUpdateLoveScore:
		// an unassigned meter is a runtime warning, not an authoring error
	case EffectDiscoverPreference:
		if e.Preference == nil {
			return fmt.Errorf("%s effect requires a preference", e.Op)
		}
		if e.Preference.Description == "" {
			return fmt.Errorf("%s effect requires a preference description", e.Op)
		}
	case "":
		return fmt.Errorf("effect operation is required")
	default:
		return fmt.Errorf("unknown effect operation: %s", e.Op)
	}
	return nil
}

// String renders a short human readable form, used in logs and the validator
func (e Effect) String() string {
	switch e.Op {
	case EffectSetValue:
		return fmt.Sprintf("set %s = %q", e.Variable, e.Value)
	case EffectUpdateBoolean:
		return fmt.Sprintf("set %s = %t", e.Variable, e.Bool)
	case EffectUpdateLoveScore:
		return fmt.Sprintf("love %s %+d", e.Meter, e.LoveScoreAmount)
	case EffectDiscoverPreference:
		if e.Preference == nil {
			return "discover <nil>"
		}
		kind := "dislike"
		if e.Preference.IsLike {
			kind = "like"
		}
		return fmt.Sprintf("discover %s %s %q", e.Preference.Bachelor, kind, e.Preference.Description)
	default:
		return string(e.Op)
	}
}
