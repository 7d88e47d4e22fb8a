package dialogue

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/dialogue-engine/pkg/conditionals"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// NodeKind tags the variant a Node holds
type NodeKind string

const (
	KindText      NodeKind = "text"
	KindCondition NodeKind = "condition"
	KindSetter    NodeKind = "setter"
)

// Node is one unit of a dialogue graph. Exactly one of Text, Condition, Setter is set, matching Kind.
type Node struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Group string   `json:"group,omitempty"`

	Text      *TextNode      `json:"text,omitempty"`
	Condition *ConditionNode `json:"condition,omitempty"`
	Setter    *SetterNode    `json:"setter,omitempty"`
}

// TextNode is a line the player sees, followed by options, a linear continuation, or the end
type TextNode struct {
	Speaker string   `json:"speaker,omitempty"`
	Body    string   `json:"body"`
	Options []Option `json:"options,omitempty"`
	Next    string   `json:"next,omitempty"`
}

// IsTerminal reports whether the conversation ends after this line
func (t *TextNode) IsTerminal() bool {
	return len(t.Options) == 0 && t.Next == ""
}

// ConditionNode branches on a predicate. Either branch may be empty.
type ConditionNode struct {
	Condition conditionals.Condition `json:"condition"`
	True      string                 `json:"true,omitempty"`
	False     string                 `json:"false,omitempty"`
}

// SetterNode applies an effect and continues to Next
type SetterNode struct {
	Effect state.Effect `json:"effect"`
	Next   string       `json:"next,omitempty"`
}

// Option is a player-facing edge out of a text node
type Option struct {
	Text   string                  `json:"text"`
	Target string                  `json:"target,omitempty"`
	Guard  *conditionals.Condition `json:"guard,omitempty"`
	Reveal *state.PreferenceRef    `json:"reveal,omitempty"`
}

// Graph is a validated, immutable dialogue graph. It is safe to share between sessions.
type Graph struct {
	Name    string
	StartID string

	nodes   map[string]*Node
	order   []string
	groups  map[string][]string
	notices []string
}

// FindNode looks up a node by ID
func (g *Graph) FindNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Start returns the entry node
func (g *Graph) Start() *Node {
	return g.nodes[g.StartID]
}

// Nodes returns the nodes in authoring order
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.order)
}

// Group returns the node IDs in the named group
func (g *Graph) Group(name string) ([]string, bool) {
	ids, ok := g.groups[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), ids...), true
}

// Notices are non-fatal observations made while loading, such as legacy choices being dropped
func (g *Graph) Notices() []string {
	return append([]string(nil), g.notices...)
}

// MarshalJSON renders the graph with nodes in authoring order
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string              `json:"name"`
		StartID string              `json:"start"`
		Nodes   []*Node             `json:"nodes"`
		Groups  map[string][]string `json:"groups,omitempty"`
	}{
		Name:    g.Name,
		StartID: g.StartID,
		Nodes:   g.Nodes(),
		Groups:  g.groups,
	})
}

// Load validates the authored graph and builds the runtime graph.
//
// The start node is the single node flagged start; failing that, spec.Start;
// failing that, the first node in authoring order.
// Legacy choices are converted to options only when a node has no options.
func Load(spec GraphSpec) (*Graph, error) {
	v := &graphValidator{}
	g := &Graph{
		Name:   spec.Name,
		nodes:  make(map[string]*Node, len(spec.Nodes)),
		groups: make(map[string][]string, len(spec.Groups)),
	}

	if len(spec.Nodes) == 0 {
		v.addf("graph has no nodes")
		return nil, v.err(spec.Name)
	}

	// First pass: identity
	for i, ns := range spec.Nodes {
		if ns.ID == "" {
			v.addf("node at index %d has no id", i)
			continue
		}
		if _, dup := g.nodes[ns.ID]; dup {
			v.addf("duplicate node id %q", ns.ID)
			continue
		}
		g.nodes[ns.ID] = &Node{ID: ns.ID, Kind: ns.Type}
		g.order = append(g.order, ns.ID)
	}

	// Second pass: payloads and edges, now that every ID is known
	var flagged []string
	for _, ns := range spec.Nodes {
		n, ok := g.nodes[ns.ID]
		if !ok || n.Text != nil || n.Condition != nil || n.Setter != nil {
			continue // skipped above, or the losing half of a duplicate
		}
		if ns.Start {
			flagged = append(flagged, ns.ID)
		}
		switch ns.Type {
		case KindText:
			n.Text = v.buildText(g, ns)
		case KindCondition:
			n.Condition = v.buildCondition(g, ns)
		case KindSetter:
			n.Setter = v.buildSetter(g, ns)
		case "":
			v.addf("node %q has no type", ns.ID)
		default:
			v.addf("node %q has unknown type %q", ns.ID, ns.Type)
		}
	}

	for _, gs := range spec.Groups {
		if gs.Name == "" {
			v.addf("group with no name")
			continue
		}
		if _, dup := g.groups[gs.Name]; dup {
			v.addf("duplicate group %q", gs.Name)
			continue
		}
		for _, id := range gs.Nodes {
			n, ok := g.nodes[id]
			if !ok {
				v.addf("group %q references unknown node %q", gs.Name, id)
				continue
			}
			if n.Group != "" {
				v.addf("node %q is in groups %q and %q", id, n.Group, gs.Name)
				continue
			}
			n.Group = gs.Name
		}
		g.groups[gs.Name] = append([]string(nil), gs.Nodes...)
	}

	switch {
	case len(flagged) > 1:
		v.addf("multiple start nodes: %v", flagged)
	case len(flagged) == 1:
		g.StartID = flagged[0]
	case spec.Start != "":
		if _, ok := g.nodes[spec.Start]; !ok {
			v.addf("start references unknown node %q", spec.Start)
		}
		g.StartID = spec.Start
	case len(g.order) > 0:
		g.StartID = g.order[0]
	}

	if len(v.problems) > 0 {
		return nil, v.err(spec.Name)
	}
	g.notices = v.notices
	return g, nil
}

type graphValidator struct {
	problems []string
	notices  []string
}

func (v *graphValidator) addf(format string, args ...interface{}) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *graphValidator) err(name string) error {
	return &ValidationError{Graph: name, Problems: v.problems}
}

// target checks that a non-empty edge target resolves
func (v *graphValidator) target(g *Graph, from, label, to string) {
	if to == "" {
		return
	}
	if _, ok := g.nodes[to]; !ok {
		v.addf("node %q: %s references unknown node %q", from, label, to)
	}
}

func (v *graphValidator) buildText(g *Graph, ns NodeSpec) *TextNode {
	if ns.Condition != nil || ns.True != "" || ns.False != "" || ns.Effect != nil {
		v.addf("text node %q has condition or effect fields", ns.ID)
	}
	if ns.Terminal && (ns.Next != "" || len(ns.Options) > 0 || len(ns.Choices) > 0) {
		v.addf("text node %q is marked terminal but has outgoing edges", ns.ID)
	}

	t := &TextNode{
		Speaker: ns.Speaker,
		Body:    ns.Text,
		Next:    ns.Next,
	}
	v.target(g, ns.ID, "next", ns.Next)

	if len(ns.Options) > 0 {
		if len(ns.Choices) > 0 {
			v.notices = append(v.notices,
				fmt.Sprintf("node %q has both options and legacy choices; %d choices ignored", ns.ID, len(ns.Choices)))
		}
		for i, o := range ns.Options {
			label := fmt.Sprintf("option %d", i)
			v.target(g, ns.ID, label, o.Next)
			if o.Condition != nil {
				if err := o.Condition.Validate(); err != nil {
					v.addf("node %q: %s guard: %v", ns.ID, label, err)
				}
			}
			if o.Reveal != nil && o.Reveal.Description == "" {
				v.addf("node %q: %s reveal has no description", ns.ID, label)
			}
			opt := Option{Text: o.Text, Target: o.Next}
			if o.Condition != nil {
				guard := *o.Condition
				opt.Guard = &guard
			}
			if o.Reveal != nil {
				reveal := *o.Reveal
				opt.Reveal = &reveal
			}
			t.Options = append(t.Options, opt)
		}
		return t
	}

	for i, cs := range ns.Choices {
		v.target(g, ns.ID, fmt.Sprintf("choice %d", i), cs.Next)
		t.Options = append(t.Options, Option{Text: cs.Text, Target: cs.Next})
	}
	return t
}

func (v *graphValidator) buildCondition(g *Graph, ns NodeSpec) *ConditionNode {
	if ns.Text != "" || ns.Speaker != "" || ns.Next != "" || len(ns.Options) > 0 || len(ns.Choices) > 0 || ns.Effect != nil {
		v.addf("condition node %q has text, next, options, or effect fields", ns.ID)
	}
	if ns.Condition == nil {
		v.addf("condition node %q has no condition", ns.ID)
		return &ConditionNode{True: ns.True, False: ns.False}
	}
	if err := ns.Condition.Validate(); err != nil {
		v.addf("condition node %q: %v", ns.ID, err)
	}
	v.target(g, ns.ID, "true", ns.True)
	v.target(g, ns.ID, "false", ns.False)
	return &ConditionNode{
		Condition: *ns.Condition,
		True:      ns.True,
		False:     ns.False,
	}
}

func (v *graphValidator) buildSetter(g *Graph, ns NodeSpec) *SetterNode {
	if ns.Text != "" || ns.Speaker != "" || len(ns.Options) > 0 || len(ns.Choices) > 0 ||
		ns.Condition != nil || ns.True != "" || ns.False != "" {
		v.addf("setter node %q has text, options, or condition fields", ns.ID)
	}
	if ns.Effect == nil {
		v.addf("setter node %q has no effect", ns.ID)
		return &SetterNode{Next: ns.Next}
	}
	if err := ns.Effect.Validate(); err != nil {
		v.addf("setter node %q: %v", ns.ID, err)
	}
	v.target(g, ns.ID, "next", ns.Next)
	return &SetterNode{
		Effect: *ns.Effect,
		Next:   ns.Next,
	}
}
