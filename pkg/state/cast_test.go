package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCast = `
[vars]
chapter = "1"

[flags]
tutorial_done = true

[meters.cole]
value = 3

[meters.dmitri]
value = 12
min = -5
max = 20

[bachelors.cole]
name = "Cole"
likes = ["jazz", "rainy days"]
dislikes = ["pineapple pizza"]

[bachelors.dmitri]
likes = ["chess"]
`

func TestParseCast(t *testing.T) {
	cast, err := ParseCast([]byte(testCast))
	require.NoError(t, err)

	gs := cast.NewGameState()

	assert.Equal(t, "1", gs.GetVariable("chapter"))
	assert.True(t, gs.GetBoolean("tutorial_done"))

	score, ok := gs.GetLoveScore("cole")
	require.True(t, ok)
	assert.Equal(t, 3, score)
	assert.Equal(t, DefaultLoveScoreMin, gs.LoveMeters["cole"].Min)
	assert.Equal(t, DefaultLoveScoreMax, gs.LoveMeters["cole"].Max)

	assert.Equal(t, -5, gs.LoveMeters["dmitri"].Min)
	assert.Equal(t, 20, gs.LoveMeters["dmitri"].Max)

	assert.Equal(t, "Cole", gs.Bachelors["cole"].Name)
	assert.Equal(t, "dmitri", gs.Bachelors["dmitri"].Name, "name falls back to the id")

	discovered, ok := gs.IsPreferenceDiscovered(PreferenceRef{Bachelor: "cole", IsLike: false, Description: "pineapple pizza"})
	assert.True(t, ok)
	assert.False(t, discovered)
}

func TestParseCast_StartingValueIsClamped(t *testing.T) {
	cast, err := ParseCast([]byte("[meters.cole]\nvalue = 50\n"))
	require.NoError(t, err)

	score, _ := cast.NewGameState().GetLoveScore("cole")
	assert.Equal(t, DefaultLoveScoreMax, score)
}

func TestParseCast_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid toml", data: "[meters.cole\nvalue = 1"},
		{name: "inverted bounds", data: "[meters.cole]\nvalue = 1\nmin = 5\nmax = 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCast([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestCast_NilBuildsEmptyState(t *testing.T) {
	var cast *Cast
	gs := cast.NewGameState()
	assert.NotNil(t, gs)
	assert.Empty(t, gs.LoveMeters)
}
