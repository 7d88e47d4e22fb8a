package dialogue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/dialogue-engine/pkg/conditionals"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"gopkg.in/yaml.v3"
)

// GraphSpec is the authored form of a dialogue graph as stored in JSON or YAML files.
// It is turned into an immutable Graph by Load.
type GraphSpec struct {
	Name   string      `json:"name" yaml:"name"`
	Start  string      `json:"start,omitempty" yaml:"start,omitempty"`
	Groups []GroupSpec `json:"groups,omitempty" yaml:"groups,omitempty"`
	Nodes  []NodeSpec  `json:"nodes" yaml:"nodes"`
}

// GroupSpec names a set of nodes, the way the editor groups them on the canvas
type GroupSpec struct {
	Name  string   `json:"name" yaml:"name"`
	Nodes []string `json:"nodes" yaml:"nodes"`
}

// NodeSpec is one authored node. Fields that do not apply to Type must be left empty.
type NodeSpec struct {
	ID    string   `json:"id" yaml:"id"`
	Type  NodeKind `json:"type" yaml:"type"`
	Start bool     `json:"start,omitempty" yaml:"start,omitempty"`

	// text
	Speaker  string       `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Text     string       `json:"text,omitempty" yaml:"text,omitempty"`
	Terminal bool         `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Options  []OptionSpec `json:"options,omitempty" yaml:"options,omitempty"`
	Choices  []ChoiceSpec `json:"choices,omitempty" yaml:"choices,omitempty"` // legacy format

	// text and setter
	Next string `json:"next,omitempty" yaml:"next,omitempty"`

	// condition
	Condition *conditionals.Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	True      string                  `json:"true,omitempty" yaml:"true,omitempty"`
	False     string                  `json:"false,omitempty" yaml:"false,omitempty"`

	// setter
	Effect *state.Effect `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// OptionSpec is a player-facing choice with an optional guard and an optional preference reveal
type OptionSpec struct {
	Text      string                  `json:"text" yaml:"text"`
	Next      string                  `json:"next,omitempty" yaml:"next,omitempty"`
	Condition *conditionals.Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Reveal    *state.PreferenceRef    `json:"reveal,omitempty" yaml:"reveal,omitempty"`
}

// ChoiceSpec is the legacy choice format: text and a target, nothing else
type ChoiceSpec struct {
	Text string `json:"text" yaml:"text"`
	Next string `json:"next,omitempty" yaml:"next,omitempty"`
}

// Decode parses graph authoring data. ext selects the format (".json", ".yaml", ".yml").
// Unknown fields are rejected in both formats.
func Decode(data []byte, ext string) (*GraphSpec, error) {
	var spec GraphSpec

	switch strings.ToLower(ext) {
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&spec); err != nil {
			return nil, fmt.Errorf("failed to decode graph JSON: %w", err)
		}
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&spec); err != nil {
			return nil, fmt.Errorf("failed to decode graph YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported graph format: %q", ext)
	}

	return &spec, nil
}

// IsGraphFile reports whether the filename has a supported graph extension
func IsGraphFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads, decodes, and validates a graph file
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file %s: %w", path, err)
	}
	spec, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Load(*spec)
}
