package state

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Cast is the authored starting point for a game state: who can be dated,
// what they like, and where their love meters start.
//
//	[meters.cole]
//	value = 3
//
//	[bachelors.cole]
//	name = "Cole"
//	likes = ["jazz", "rainy days"]
//	dislikes = ["pineapple pizza"]
type Cast struct {
	Vars      map[string]string       `toml:"vars"`
	Flags     map[string]bool         `toml:"flags"`
	Meters    map[string]MeterSpec    `toml:"meters"`
	Bachelors map[string]BachelorSpec `toml:"bachelors"`
}

// MeterSpec describes a love meter. Bounds default to DefaultLoveScoreMin and DefaultLoveScoreMax.
type MeterSpec struct {
	Value int  `toml:"value"`
	Min   *int `toml:"min"`
	Max   *int `toml:"max"`
}

// BachelorSpec describes a bachelor and their preferences
type BachelorSpec struct {
	Name     string   `toml:"name"`
	Likes    []string `toml:"likes"`
	Dislikes []string `toml:"dislikes"`
}

// ParseCast decodes a TOML cast definition
func ParseCast(data []byte) (*Cast, error) {
	var c Cast
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse cast TOML: %w", err)
	}
	for id, m := range c.Meters {
		if m.Min != nil && m.Max != nil && *m.Max < *m.Min {
			return nil, fmt.Errorf("meter %s: max %d is below min %d", id, *m.Max, *m.Min)
		}
	}
	return &c, nil
}

// LoadCast reads and decodes a TOML cast file
func LoadCast(path string) (*Cast, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cast file '%s': %w", path, err)
	}
	return ParseCast(data)
}

// NewGameState builds a fresh game state seeded from the cast
func (c *Cast) NewGameState() *GameState {
	gs := NewGameState()
	if c == nil {
		return gs
	}

	for k, v := range c.Vars {
		gs.Vars[k] = v
	}
	for k, v := range c.Flags {
		gs.Flags[k] = v
	}
	for id, m := range c.Meters {
		lo, hi := DefaultLoveScoreMin, DefaultLoveScoreMax
		if m.Min != nil {
			lo = *m.Min
		}
		if m.Max != nil {
			hi = *m.Max
		}
		gs.AddLoveMeter(id, m.Value, lo, hi)
	}
	for id, b := range c.Bachelors {
		name := b.Name
		if name == "" {
			name = id
		}
		gs.AddBachelor(id, name, b.Likes, b.Dislikes)
	}
	return gs
}
