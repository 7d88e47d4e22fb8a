package conditionals

import (
	"fmt"

	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// Operation identifies the predicate a condition checks
type Operation string

const (
	ValueEquals          Operation = "value_equals"
	LoveScoreAtLeast     Operation = "love_score_at_least"
	BooleanEquals        Operation = "boolean_equals"
	PreferenceDiscovered Operation = "preference_discovered"
)

// Condition is a predicate over game state, used by condition nodes and option guards.
// Which operands are used depends on Op.
type Condition struct {
	Op Operation `json:"op" yaml:"op"`

	// value_equals / boolean_equals
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	Bool     bool   `json:"bool,omitempty" yaml:"bool,omitempty"`

	// love_score_at_least
	Meter     string `json:"meter,omitempty" yaml:"meter,omitempty"`
	Threshold int    `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	// preference_discovered
	Preference *state.PreferenceRef `json:"preference,omitempty" yaml:"preference,omitempty"`

	// Carried from authoring data but never evaluated; value_equals is string equality only.
	ComparisonType  string `json:"comparison_type,omitempty" yaml:"comparison_type,omitempty"`
	ComparisonValue string `json:"comparison_value,omitempty" yaml:"comparison_value,omitempty"`
}

// Validate checks that the operation is known and its required operands are present
func (c Condition) Validate() error {
	switch c.Op {
	case ValueEquals, BooleanEquals:
		if c.Variable == "" {
			return fmt.Errorf("%s condition requires a variable name", c.Op)
		}
	case LoveScoreAtLeast:
		// an unassigned meter evaluates to false at runtime
	case PreferenceDiscovered:
		if c.Preference == nil {
			return fmt.Errorf("%s condition requires a preference", c.Op)
		}
		if c.Preference.Description == "" {
			return fmt.Errorf("%s condition requires a preference description", c.Op)
		}
	case "":
		return fmt.Errorf("condition operation is required")
	default:
		return fmt.Errorf("unknown condition operation: %s", c.Op)
	}
	return nil
}

// HasUnusedComparison reports whether the authoring data set comparison fields that are ignored
func (c Condition) HasUnusedComparison() bool {
	return c.ComparisonType != "" || c.ComparisonValue != ""
}

// String renders a short human readable form, used in logs and the validator
func (c Condition) String() string {
	switch c.Op {
	case ValueEquals:
		return fmt.Sprintf("%s == %q", c.Variable, c.Value)
	case BooleanEquals:
		return fmt.Sprintf("%s == %t", c.Variable, c.Bool)
	case LoveScoreAtLeast:
		return fmt.Sprintf("love %s >= %d", c.Meter, c.Threshold)
	case PreferenceDiscovered:
		if c.Preference == nil {
			return "discovered <nil>"
		}
		kind := "dislike"
		if c.Preference.IsLike {
			kind = "like"
		}
		return fmt.Sprintf("discovered %s %s %q", c.Preference.Bachelor, kind, c.Preference.Description)
	default:
		return string(c.Op)
	}
}
