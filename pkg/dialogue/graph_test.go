package dialogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/dialogue-engine/pkg/conditionals"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textNode(id, body, next string) NodeSpec {
	return NodeSpec{ID: id, Type: KindText, Speaker: "Cole", Text: body, Next: next}
}

func TestLoad_Valid(t *testing.T) {
	g, err := Load(GraphSpec{
		Name: "intro",
		Groups: []GroupSpec{
			{Name: "opening", Nodes: []string{"hello", "check"}},
		},
		Nodes: []NodeSpec{
			textNode("hello", "Hey there.", "check"),
			{
				ID:        "check",
				Type:      KindCondition,
				Condition: &conditionals.Condition{Op: conditionals.LoveScoreAtLeast, Meter: "cole", Threshold: 3},
				True:      "warm",
				False:     "cold",
			},
			textNode("warm", "Good to see you!", ""),
			textNode("cold", "Oh. It's you.", ""),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "intro", g.Name)
	assert.Equal(t, "hello", g.StartID, "first node in authoring order is the fallback start")
	assert.Equal(t, 4, g.Len())

	n, ok := g.FindNode("check")
	require.True(t, ok)
	assert.Equal(t, KindCondition, n.Kind)
	require.NotNil(t, n.Condition)
	assert.Equal(t, "warm", n.Condition.True)
	assert.Equal(t, "opening", n.Group)

	_, ok = g.FindNode("nope")
	assert.False(t, ok)

	ids, ok := g.Group("opening")
	require.True(t, ok)
	assert.Equal(t, []string{"hello", "check"}, ids)

	var order []string
	for _, n := range g.Nodes() {
		order = append(order, n.ID)
	}
	assert.Equal(t, []string{"hello", "check", "warm", "cold"}, order)
}

func TestLoad_StartPolicy(t *testing.T) {
	nodes := func(flagged ...string) []NodeSpec {
		out := []NodeSpec{textNode("a", "A", ""), textNode("b", "B", ""), textNode("c", "C", "")}
		for i := range out {
			for _, f := range flagged {
				if out[i].ID == f {
					out[i].Start = true
				}
			}
		}
		return out
	}

	tests := []struct {
		name      string
		spec      GraphSpec
		wantStart string
		wantErr   bool
	}{
		{name: "flagged node wins", spec: GraphSpec{Start: "c", Nodes: nodes("b")}, wantStart: "b"},
		{name: "graph start used when nothing flagged", spec: GraphSpec{Start: "c", Nodes: nodes()}, wantStart: "c"},
		{name: "first node as fallback", spec: GraphSpec{Nodes: nodes()}, wantStart: "a"},
		{name: "two flagged nodes rejected", spec: GraphSpec{Nodes: nodes("a", "c")}, wantErr: true},
		{name: "unknown graph start rejected", spec: GraphSpec{Start: "z", Nodes: nodes()}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Load(tt.spec)
			if tt.wantErr {
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, g.StartID)
			assert.Equal(t, tt.wantStart, g.Start().ID)
		})
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []NodeSpec
		groups  []GroupSpec
		problem string
	}{
		{
			name:    "empty graph",
			nodes:   nil,
			problem: "graph has no nodes",
		},
		{
			name:    "duplicate id",
			nodes:   []NodeSpec{textNode("a", "A", ""), textNode("a", "again", "")},
			problem: `duplicate node id "a"`,
		},
		{
			name:    "missing id",
			nodes:   []NodeSpec{{Type: KindText, Text: "who am I"}},
			problem: "node at index 0 has no id",
		},
		{
			name:    "dangling next",
			nodes:   []NodeSpec{textNode("a", "A", "ghost")},
			problem: `node "a": next references unknown node "ghost"`,
		},
		{
			name: "dangling option",
			nodes: []NodeSpec{{
				ID: "a", Type: KindText, Text: "A",
				Options: []OptionSpec{{Text: "go", Next: "ghost"}},
			}},
			problem: `node "a": option 0 references unknown node "ghost"`,
		},
		{
			name: "dangling legacy choice",
			nodes: []NodeSpec{{
				ID: "a", Type: KindText, Text: "A",
				Choices: []ChoiceSpec{{Text: "go", Next: "ghost"}},
			}},
			problem: `node "a": choice 0 references unknown node "ghost"`,
		},
		{
			name: "dangling false branch",
			nodes: []NodeSpec{
				{ID: "c", Type: KindCondition, Condition: &conditionals.Condition{Op: conditionals.BooleanEquals, Variable: "x"}, False: "ghost"},
			},
			problem: `node "c": false references unknown node "ghost"`,
		},
		{
			name:    "unknown type",
			nodes:   []NodeSpec{{ID: "a", Type: "choice"}},
			problem: `node "a" has unknown type "choice"`,
		},
		{
			name:    "condition without predicate",
			nodes:   []NodeSpec{{ID: "c", Type: KindCondition}},
			problem: `condition node "c" has no condition`,
		},
		{
			name:    "setter without effect",
			nodes:   []NodeSpec{{ID: "s", Type: KindSetter}},
			problem: `setter node "s" has no effect`,
		},
		{
			name:    "setter with unknown op",
			nodes:   []NodeSpec{{ID: "s", Type: KindSetter, Effect: &state.Effect{Op: "teleport"}}},
			problem: `setter node "s": unknown effect operation: teleport`,
		},
		{
			name:    "terminal with next",
			nodes:   []NodeSpec{{ID: "a", Type: KindText, Text: "A", Terminal: true, Next: "a"}},
			problem: `text node "a" is marked terminal but has outgoing edges`,
		},
		{
			name:    "text with effect",
			nodes:   []NodeSpec{{ID: "a", Type: KindText, Text: "A", Effect: &state.Effect{Op: state.EffectSetValue, Variable: "x"}}},
			problem: `text node "a" has condition or effect fields`,
		},
		{
			name:    "group with unknown node",
			nodes:   []NodeSpec{textNode("a", "A", "")},
			groups:  []GroupSpec{{Name: "g", Nodes: []string{"zzz"}}},
			problem: `group "g" references unknown node "zzz"`,
		},
		{
			name:    "node in two groups",
			nodes:   []NodeSpec{textNode("a", "A", "")},
			groups:  []GroupSpec{{Name: "g1", Nodes: []string{"a"}}, {Name: "g2", Nodes: []string{"a"}}},
			problem: `node "a" is in groups "g1" and "g2"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Load(GraphSpec{Name: "bad", Nodes: tt.nodes, Groups: tt.groups})
			assert.Nil(t, g)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Problems, tt.problem)
			assert.Equal(t, "bad", ve.Graph)
		})
	}
}

func TestLoad_CollectsAllProblems(t *testing.T) {
	_, err := Load(GraphSpec{Nodes: []NodeSpec{
		textNode("a", "A", "x"),
		textNode("b", "B", "y"),
	}})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 2)
}

func TestLoad_LegacyChoices(t *testing.T) {
	t.Run("choices become options", func(t *testing.T) {
		g, err := Load(GraphSpec{Nodes: []NodeSpec{
			{ID: "a", Type: KindText, Text: "A", Choices: []ChoiceSpec{{Text: "to b", Next: "b"}, {Text: "leave"}}},
			textNode("b", "B", ""),
		}})
		require.NoError(t, err)

		n, _ := g.FindNode("a")
		require.Len(t, n.Text.Options, 2)
		assert.Equal(t, Option{Text: "to b", Target: "b"}, n.Text.Options[0])
		assert.Equal(t, "", n.Text.Options[1].Target)
		assert.Empty(t, g.Notices())
	})

	t.Run("options win over choices", func(t *testing.T) {
		g, err := Load(GraphSpec{Nodes: []NodeSpec{
			{
				ID: "a", Type: KindText, Text: "A",
				Options: []OptionSpec{{Text: "new", Next: "b"}},
				Choices: []ChoiceSpec{{Text: "old", Next: "c"}, {Text: "older", Next: "c"}},
			},
			textNode("b", "B", ""),
			textNode("c", "C", ""),
		}})
		require.NoError(t, err)

		n, _ := g.FindNode("a")
		require.Len(t, n.Text.Options, 1)
		assert.Equal(t, "new", n.Text.Options[0].Text)
		require.Len(t, g.Notices(), 1)
		assert.Contains(t, g.Notices()[0], "2 choices ignored")
	})
}

func TestTextNode_IsTerminal(t *testing.T) {
	assert.True(t, (&TextNode{Body: "bye"}).IsTerminal())
	assert.False(t, (&TextNode{Body: "hi", Next: "x"}).IsTerminal())
	assert.False(t, (&TextNode{Body: "hi", Options: []Option{{Text: "ok"}}}).IsTerminal())
}

func TestDecode(t *testing.T) {
	jsonData := []byte(`{
		"name": "intro",
		"nodes": [
			{"id": "a", "type": "text", "speaker": "Cole", "text": "Hi", "options": [
				{"text": "Jazz?", "next": "b", "reveal": {"bachelor": "cole", "is_like": true, "description": "jazz"}}
			]},
			{"id": "b", "type": "setter", "effect": {"op": "update_love_score", "meter": "cole", "love_score_amount": 2}}
		]
	}`)
	yamlData := []byte(`
name: intro
nodes:
  - id: a
    type: text
    speaker: Cole
    text: Hi
    options:
      - text: Jazz?
        next: b
        reveal: {bachelor: cole, is_like: true, description: jazz}
  - id: b
    type: setter
    effect: {op: update_love_score, meter: cole, love_score_amount: 2}
`)

	for _, tc := range []struct {
		ext  string
		data []byte
	}{{".json", jsonData}, {".yaml", yamlData}, {".YML", yamlData}} {
		t.Run(tc.ext, func(t *testing.T) {
			spec, err := Decode(tc.data, tc.ext)
			require.NoError(t, err)

			g, err := Load(*spec)
			require.NoError(t, err)

			a, _ := g.FindNode("a")
			require.Len(t, a.Text.Options, 1)
			require.NotNil(t, a.Text.Options[0].Reveal)
			assert.Equal(t, "jazz", a.Text.Options[0].Reveal.Description)

			b, _ := g.FindNode("b")
			assert.Equal(t, 2, b.Setter.Effect.LoveScoreAmount)
		})
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte(`{"nodes": [{"id": "a", "type": "text", "colour": "red"}]}`), ".json")
	assert.Error(t, err)

	_, err = Decode([]byte("nodes:\n  - id: a\n    type: text\n    colour: red\n"), ".yaml")
	assert.Error(t, err)

	_, err = Decode([]byte(`{}`), ".xml")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "first_date.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - id: a\n    type: text\n    text: Hi\n"), 0o644))

	g, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first_date", g.Name, "name defaults to the file name")

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestIsGraphFile(t *testing.T) {
	assert.True(t, IsGraphFile("a.json"))
	assert.True(t, IsGraphFile("a.yaml"))
	assert.True(t, IsGraphFile("a.YML"))
	assert.False(t, IsGraphFile("cast.toml"))
	assert.False(t, IsGraphFile("README"))
}
