package state

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLoveScoreMin = 0
	DefaultLoveScoreMax = 10
)

// GameStateView is the read side of the game state that conditions evaluate against.
// Entity lookups return ok=false when the referenced entity does not exist.
type GameStateView interface {
	GetVariable(name string) string
	GetBoolean(name string) bool
	GetLoveScore(meter string) (int, bool)
	IsPreferenceDiscovered(ref PreferenceRef) (discovered bool, ok bool)
}

// GameStore is the full read/write contract used by setter effects.
// Writes to unknown entities return a *MissingReferenceError.
type GameStore interface {
	GameStateView
	SetVariable(name, value string)
	SetBoolean(name string, value bool)
	AddLoveScore(meter string, delta int) (int, error)
	DiscoverPreference(ref PreferenceRef) error
}

// PreferenceRef points at one like or dislike of a bachelor
type PreferenceRef struct {
	Bachelor    string `json:"bachelor" yaml:"bachelor"`
	IsLike      bool   `json:"is_like" yaml:"is_like"`
	Description string `json:"description" yaml:"description"`
}

// Preference is a like or dislike the player can discover during dialogue
type Preference struct {
	Description string `json:"description"`
	Discovered  bool   `json:"discovered"`
}

// Bachelor is a dateable character with discoverable preferences
type Bachelor struct {
	Name     string       `json:"name"`
	Likes    []Preference `json:"likes,omitempty"`
	Dislikes []Preference `json:"dislikes,omitempty"`
}

// find returns the preference matching the ref, or nil
func (b *Bachelor) find(isLike bool, description string) *Preference {
	list := b.Dislikes
	if isLike {
		list = b.Likes
	}
	for i := range list {
		if list[i].Description == description {
			return &list[i]
		}
	}
	return nil
}

// LoveMeter is a bounded affection score
type LoveMeter struct {
	Value int `json:"value"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

// clamp keeps v inside the meter bounds. Max <= Min means no upper bound.
func (m *LoveMeter) clamp(v int) int {
	if v < m.Min {
		return m.Min
	}
	if m.Max > m.Min && v > m.Max {
		return m.Max
	}
	return v
}

// addSaturating adds delta to v, pinning at the int range instead of wrapping
func addSaturating(v, delta int) int {
	switch {
	case delta > 0 && v > math.MaxInt-delta:
		return math.MaxInt
	case delta < 0 && v < math.MinInt-delta:
		return math.MinInt
	}
	return v + delta
}

// GameState is the persistent state a dialogue session reads and writes:
// string variables, boolean flags, love meters, and bachelor preferences.
// All methods are safe for concurrent use.
type GameState struct {
	mu     sync.RWMutex
	events *EventBus

	ID         uuid.UUID             `json:"id"`
	Vars       map[string]string     `json:"vars,omitempty"`
	Flags      map[string]bool       `json:"flags,omitempty"`
	LoveMeters map[string]*LoveMeter `json:"love_meters,omitempty"`
	Bachelors  map[string]*Bachelor  `json:"bachelors,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

var _ GameStore = (*GameState)(nil)

// NewGameState creates an empty game state with a fresh ID
func NewGameState() *GameState {
	now := time.Now()
	return &GameState{
		ID:         uuid.New(),
		Vars:       make(map[string]string),
		Flags:      make(map[string]bool),
		LoveMeters: make(map[string]*LoveMeter),
		Bachelors:  make(map[string]*Bachelor),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Events returns the bus that preference and love score notifications are published on
func (gs *GameState) Events() *EventBus {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.events == nil {
		gs.events = NewEventBus()
	}
	return gs.events
}

// AddLoveMeter registers a meter. The starting value is clamped to the bounds.
func (gs *GameState) AddLoveMeter(name string, value, lo, hi int) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.LoveMeters == nil {
		gs.LoveMeters = make(map[string]*LoveMeter)
	}
	m := &LoveMeter{Min: lo, Max: hi}
	m.Value = m.clamp(value)
	gs.LoveMeters[name] = m
}

// AddBachelor registers a bachelor with undiscovered likes and dislikes
func (gs *GameState) AddBachelor(id, name string, likes, dislikes []string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.Bachelors == nil {
		gs.Bachelors = make(map[string]*Bachelor)
	}
	b := &Bachelor{Name: name}
	for _, d := range likes {
		b.Likes = append(b.Likes, Preference{Description: d})
	}
	for _, d := range dislikes {
		b.Dislikes = append(b.Dislikes, Preference{Description: d})
	}
	gs.Bachelors[id] = b
}

func (gs *GameState) GetVariable(name string) string {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.Vars[name]
}

func (gs *GameState) SetVariable(name, value string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.Vars == nil {
		gs.Vars = make(map[string]string)
	}
	gs.Vars[name] = value
	gs.UpdatedAt = time.Now()
}

func (gs *GameState) GetBoolean(name string) bool {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.Flags[name]
}

func (gs *GameState) SetBoolean(name string, value bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.Flags == nil {
		gs.Flags = make(map[string]bool)
	}
	gs.Flags[name] = value
	gs.UpdatedAt = time.Now()
}

func (gs *GameState) GetLoveScore(meter string) (int, bool) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	m, ok := gs.LoveMeters[meter]
	if !ok {
		return 0, false
	}
	return m.Value, true
}

// AddLoveScore adds delta to the meter, clamped to the meter's bounds, and returns the new value.
// A love.changed event is published when the value actually changes.
func (gs *GameState) AddLoveScore(meter string, delta int) (int, error) {
	gs.mu.Lock()
	m, ok := gs.LoveMeters[meter]
	if !ok || meter == "" {
		gs.mu.Unlock()
		return 0, &MissingReferenceError{Kind: RefLoveMeter, Ref: meter}
	}
	previous := m.Value
	m.Value = m.clamp(addSaturating(m.Value, delta))
	current := m.Value
	gs.UpdatedAt = time.Now()
	bus := gs.events
	gs.mu.Unlock()

	if current != previous {
		bus.Publish(Event{
			Type:   EventLoveChanged,
			GameID: gs.ID.String(),
			Data: map[string]interface{}{
				"meter":    meter,
				"previous": previous,
				"current":  current,
				"delta":    delta,
			},
		})
	}
	return current, nil
}

func (gs *GameState) IsPreferenceDiscovered(ref PreferenceRef) (bool, bool) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	b, ok := gs.Bachelors[ref.Bachelor]
	if !ok {
		return false, false
	}
	p := b.find(ref.IsLike, ref.Description)
	if p == nil {
		return false, false
	}
	return p.Discovered, true
}

// DiscoverPreference marks the preference discovered. It is idempotent: the
// preference.discovered event fires only on the first discovery.
func (gs *GameState) DiscoverPreference(ref PreferenceRef) error {
	gs.mu.Lock()
	b, ok := gs.Bachelors[ref.Bachelor]
	if !ok || ref.Bachelor == "" {
		gs.mu.Unlock()
		return &MissingReferenceError{Kind: RefBachelor, Ref: ref.Bachelor}
	}
	p := b.find(ref.IsLike, ref.Description)
	if p == nil {
		gs.mu.Unlock()
		return &MissingReferenceError{Kind: RefPreference, Ref: ref.Bachelor + "/" + ref.Description}
	}
	if p.Discovered {
		gs.mu.Unlock()
		return nil
	}
	p.Discovered = true
	gs.UpdatedAt = time.Now()
	bus := gs.events
	gs.mu.Unlock()

	bus.Publish(Event{
		Type:   EventPreferenceDiscovered,
		GameID: gs.ID.String(),
		Data: map[string]interface{}{
			"bachelor":    ref.Bachelor,
			"is_like":     ref.IsLike,
			"description": ref.Description,
		},
	})
	return nil
}

// DiscoveredPreferences lists the discovered likes and dislikes of a bachelor, for notebook views
func (gs *GameState) DiscoveredPreferences(bachelor string) (likes, dislikes []string) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	b, ok := gs.Bachelors[bachelor]
	if !ok {
		return nil, nil
	}
	for _, p := range b.Likes {
		if p.Discovered {
			likes = append(likes, p.Description)
		}
	}
	for _, p := range b.Dislikes {
		if p.Discovered {
			dislikes = append(dislikes, p.Description)
		}
	}
	return likes, dislikes
}

// Touch sets UpdatedAt to now
func (gs *GameState) Touch() {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.UpdatedAt = time.Now()
}

// MarshalJSON holds the read lock so a snapshot is never torn by a concurrent write
func (gs *GameState) MarshalJSON() ([]byte, error) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	type alias GameState
	return json.Marshal((*alias)(gs))
}
