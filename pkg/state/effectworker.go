package state

import (
	"errors"
	"fmt"
	"log/slog"
)

// EffectWorker applies setter effects to a game store.
// Missing entities are logged and reported but never stop the caller.
type EffectWorker struct {
	gs     GameStore
	logger *slog.Logger
}

// NewEffectWorker creates a worker that applies effects to gs
func NewEffectWorker(gs GameStore, logger *slog.Logger) *EffectWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EffectWorker{
		gs:     gs,
		logger: logger,
	}
}

// Apply performs the effect. A *MissingReferenceError means the effect was a no-op;
// any other error means the effect itself is malformed.
func (ew *EffectWorker) Apply(e Effect) error {
	switch e.Op {
	case EffectSetValue:
		ew.gs.SetVariable(e.Variable, e.Value)
		ew.logger.Debug("Variable set", "variable", e.Variable, "value", e.Value)

	case EffectUpdateBoolean:
		ew.gs.SetBoolean(e.Variable, e.Bool)
		ew.logger.Debug("Boolean set", "variable", e.Variable, "value", e.Bool)

	case EffectUpdateLoveScore:
		if e.Meter == "" {
			return ew.missing(e, &MissingReferenceError{Kind: RefLoveMeter})
		}
		current, err := ew.gs.AddLoveScore(e.Meter, e.LoveScoreAmount)
		if err != nil {
			return ew.missing(e, err)
		}
		ew.logger.Debug("Love score updated",
			"meter", e.Meter,
			"delta", e.LoveScoreAmount,
			"current", current)

	case EffectDiscoverPreference:
		if e.Preference == nil || e.Preference.Bachelor == "" {
			return ew.missing(e, &MissingReferenceError{Kind: RefBachelor})
		}
		if err := ew.gs.DiscoverPreference(*e.Preference); err != nil {
			return ew.missing(e, err)
		}

	default:
		return fmt.Errorf("unknown effect operation: %s", e.Op)
	}

	return nil
}

// missing logs a missing reference and passes it on; other errors are wrapped
func (ew *EffectWorker) missing(e Effect, err error) error {
	var mre *MissingReferenceError
	if errors.As(err, &mre) {
		ew.logger.Warn("Effect skipped, missing reference",
			"effect", e.String(),
			"error", err)
		return mre
	}
	return fmt.Errorf("failed to apply effect %s: %w", e.Op, err)
}
