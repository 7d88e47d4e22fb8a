package state

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGameState() *GameState {
	gs := NewGameState()
	gs.AddLoveMeter("cole", 3, 0, 10)
	gs.AddBachelor("cole", "Cole", []string{"jazz", "rainy days"}, []string{"pineapple pizza"})
	return gs
}

func TestGameState_AddLoveScore(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		deltas   []int
		expected int
	}{
		{name: "positive delta", start: 3, deltas: []int{2}, expected: 5},
		{name: "clamped at floor", start: 3, deltas: []int{-10}, expected: 0},
		{name: "cumulative negatives never go below floor", start: 1, deltas: []int{-1, -1, -5, -100}, expected: 0},
		{name: "clamped at ceiling", start: 8, deltas: []int{5}, expected: 10},
		{name: "recovers after floor", start: 0, deltas: []int{-3, 2}, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs := NewGameState()
			gs.AddLoveMeter("m", tt.start, 0, 10)

			var got int
			var err error
			for _, d := range tt.deltas {
				got, err = gs.AddLoveScore("m", d)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, 0)
			}
			assert.Equal(t, tt.expected, got)

			score, ok := gs.GetLoveScore("m")
			assert.True(t, ok)
			assert.Equal(t, tt.expected, score)
		})
	}
}

func TestGameState_AddLoveScore_UnknownMeter(t *testing.T) {
	gs := NewGameState()

	_, err := gs.AddLoveScore("nobody", 3)

	var mre *MissingReferenceError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, RefLoveMeter, mre.Kind)
	assert.Equal(t, "nobody", mre.Ref)
}

func TestGameState_AddLoveMeter_NoUpperBound(t *testing.T) {
	gs := NewGameState()
	gs.AddLoveMeter("m", 0, 0, 0)

	got, err := gs.AddLoveScore("m", 250)
	require.NoError(t, err)
	assert.Equal(t, 250, got)
}

func TestGameState_AddLoveScore_Saturates(t *testing.T) {
	gs := NewGameState()
	gs.AddLoveMeter("m", 5, 0, 0)

	got, err := gs.AddLoveScore("m", math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, got)

	got, err = gs.AddLoveScore("m", 1)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, got, "stays pinned instead of wrapping")

	got, err = gs.AddLoveScore("m", math.MinInt)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestGameState_LoveChangedEvent(t *testing.T) {
	gs := newTestGameState()
	var events []Event
	gs.Events().Subscribe(func(e Event) { events = append(events, e) })

	_, err := gs.AddLoveScore("cole", -10)
	require.NoError(t, err)
	// Already at the floor, nothing changes and nothing is published
	_, err = gs.AddLoveScore("cole", -1)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventLoveChanged, events[0].Type)
	assert.Equal(t, 3, events[0].Data["previous"])
	assert.Equal(t, 0, events[0].Data["current"])
	assert.Equal(t, gs.ID.String(), events[0].GameID)
}

func TestGameState_DiscoverPreference_Idempotent(t *testing.T) {
	gs := newTestGameState()
	ref := PreferenceRef{Bachelor: "cole", IsLike: true, Description: "jazz"}

	var notified int
	gs.Events().Subscribe(func(e Event) {
		if e.Type == EventPreferenceDiscovered {
			notified++
		}
	})

	discovered, ok := gs.IsPreferenceDiscovered(ref)
	require.True(t, ok)
	assert.False(t, discovered)

	require.NoError(t, gs.DiscoverPreference(ref))
	require.NoError(t, gs.DiscoverPreference(ref))

	discovered, ok = gs.IsPreferenceDiscovered(ref)
	assert.True(t, ok)
	assert.True(t, discovered)
	assert.Equal(t, 1, notified, "second discovery must not notify again")
}

func TestGameState_DiscoverPreference_LikeAndDislikeAreDistinct(t *testing.T) {
	gs := newTestGameState()

	err := gs.DiscoverPreference(PreferenceRef{Bachelor: "cole", IsLike: true, Description: "pineapple pizza"})
	var mre *MissingReferenceError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, RefPreference, mre.Kind)

	require.NoError(t, gs.DiscoverPreference(PreferenceRef{Bachelor: "cole", IsLike: false, Description: "pineapple pizza"}))
	likes, dislikes := gs.DiscoveredPreferences("cole")
	assert.Empty(t, likes)
	assert.Equal(t, []string{"pineapple pizza"}, dislikes)
}

func TestGameState_DiscoverPreference_UnknownBachelor(t *testing.T) {
	gs := newTestGameState()

	err := gs.DiscoverPreference(PreferenceRef{Bachelor: "dmitri", IsLike: true, Description: "jazz"})

	var mre *MissingReferenceError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, RefBachelor, mre.Kind)

	_, ok := gs.IsPreferenceDiscovered(PreferenceRef{Bachelor: "dmitri", IsLike: true, Description: "jazz"})
	assert.False(t, ok)
}

func TestGameState_VariablesAndFlags(t *testing.T) {
	gs := NewGameState()

	assert.Equal(t, "", gs.GetVariable("mood"))
	assert.False(t, gs.GetBoolean("met_cole"))

	gs.SetVariable("mood", "Happy")
	gs.SetBoolean("met_cole", true)

	assert.Equal(t, "Happy", gs.GetVariable("mood"))
	assert.True(t, gs.GetBoolean("met_cole"))
}

func TestGameState_JSONRoundTrip(t *testing.T) {
	gs := newTestGameState()
	gs.SetVariable("mood", "happy")
	require.NoError(t, gs.DiscoverPreference(PreferenceRef{Bachelor: "cole", IsLike: true, Description: "jazz"}))

	data, err := json.Marshal(gs)
	require.NoError(t, err)

	var loaded GameState
	require.NoError(t, json.Unmarshal(data, &loaded))

	assert.Equal(t, gs.ID, loaded.ID)
	assert.Equal(t, "happy", loaded.GetVariable("mood"))
	score, ok := loaded.GetLoveScore("cole")
	assert.True(t, ok)
	assert.Equal(t, 3, score)
	discovered, ok := loaded.IsPreferenceDiscovered(PreferenceRef{Bachelor: "cole", IsLike: true, Description: "jazz"})
	assert.True(t, ok)
	assert.True(t, discovered)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	var a, b int
	unsubA := bus.Subscribe(func(Event) { a++ })
	bus.Subscribe(func(Event) { b++ })

	bus.Publish(Event{Type: EventWarning})
	unsubA()
	bus.Publish(Event{Type: EventWarning})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, bus.Len())
}

func TestEventBus_NilIsSafe(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() { bus.Publish(Event{Type: EventWarning}) })
}
