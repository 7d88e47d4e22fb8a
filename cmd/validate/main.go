package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/dialogue-engine/pkg/conditionals"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <graph.json|graph.yaml|cast.toml|dir>...\n", os.Args[0])
		os.Exit(1)
	}

	validator := &GraphValidator{}
	failed := 0
	for _, arg := range os.Args[1:] {
		files, err := expand(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		for _, f := range files {
			if err := validator.validateFile(f); err != nil {
				fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
				failed++
			}
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
	fmt.Println("All files are valid!")
}

// expand turns a directory argument into the graph and cast files beneath it
func expand(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	var files []string
	err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (dialogue.IsGraphFile(path) || isCastFile(path)) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

type GraphValidator struct {
	errors []string
}

func (v *GraphValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)
	v.errors = nil

	baseName := filepath.Base(filename)
	ext := filepath.Ext(baseName)
	if !isValidFilename(strings.TrimSuffix(baseName, ext)) {
		return fmt.Errorf("filename '%s' must be lowercase snake_case (e.g., first_date.yaml, not First-Date.yaml)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	if isCastFile(filename) {
		return v.validateCast(filename, data)
	}
	if !dialogue.IsGraphFile(filename) {
		return fmt.Errorf("unsupported file type: %s", baseName)
	}

	spec, err := dialogue.Decode(data, ext)
	if err != nil {
		return fmt.Errorf("file %s failed strict decoding: %w", filename, err)
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(baseName, ext)
	}

	graph, err := dialogue.Load(*spec)
	if err != nil {
		var verr *dialogue.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				v.addError(p)
			}
		} else {
			v.addError(err.Error())
		}
	}

	v.validateIDs(spec)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	for _, n := range graph.Notices() {
		fmt.Printf("  notice: %s\n", n)
	}
	for _, n := range unusedComparisons(spec) {
		fmt.Printf("  notice: %s\n", n)
	}
	fmt.Printf("  %d nodes, start %q\n", graph.Len(), graph.StartID)
	return nil
}

func (v *GraphValidator) validateCast(filename string, data []byte) error {
	cast, err := state.ParseCast(data)
	if err != nil {
		return fmt.Errorf("file %s: %w", filename, err)
	}

	for id := range cast.Vars {
		v.validateIDFormat("variable", id)
	}
	for id := range cast.Flags {
		v.validateIDFormat("flag", id)
	}
	gs := cast.NewGameState()
	for id, m := range cast.Meters {
		v.validateIDFormat("meter", id)
		if _, ok := cast.Bachelors[id]; !ok {
			v.addError(fmt.Sprintf("meter '%s' has no matching bachelor", id))
		}
		if got, _ := gs.GetLoveScore(id); got != m.Value {
			v.addError(fmt.Sprintf("meter '%s' start value %d is outside its bounds", id, m.Value))
		}
	}
	for id := range cast.Bachelors {
		v.validateIDFormat("bachelor", id)
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	fmt.Printf("  %d bachelors, %d meters\n", len(cast.Bachelors), len(cast.Meters))
	return nil
}

// validateIDs checks naming conventions that the loader does not enforce
func (v *GraphValidator) validateIDs(spec *dialogue.GraphSpec) {
	for _, g := range spec.Groups {
		v.validateIDFormat("group", g.Name)
	}
	for _, n := range spec.Nodes {
		v.validateIDFormat("node ID", n.ID)
		if n.Condition != nil {
			v.validateConditionNames(n.ID, *n.Condition)
		}
		for _, o := range n.Options {
			if o.Condition != nil {
				v.validateConditionNames(n.ID, *o.Condition)
			}
		}
		if n.Effect != nil && n.Effect.Variable != "" {
			v.validateIDFormat(fmt.Sprintf("node %s effect variable", n.ID), n.Effect.Variable)
		}
	}
}

func (v *GraphValidator) validateConditionNames(nodeID string, c conditionals.Condition) {
	if c.Variable != "" {
		v.validateIDFormat(fmt.Sprintf("node %s condition variable", nodeID), c.Variable)
	}
	if c.Meter != "" {
		v.validateIDFormat(fmt.Sprintf("node %s condition meter", nodeID), c.Meter)
	}
}

func (v *GraphValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}
	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *GraphValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

// unusedComparisons lists conditions that carry comparison fields, which the engine ignores
func unusedComparisons(spec *dialogue.GraphSpec) []string {
	var out []string
	for _, n := range spec.Nodes {
		if n.Condition != nil && n.Condition.HasUnusedComparison() {
			out = append(out, fmt.Sprintf("node %q: comparison fields on %s are ignored", n.ID, n.Condition))
		}
		for i, o := range n.Options {
			if o.Condition != nil && o.Condition.HasUnusedComparison() {
				out = append(out, fmt.Sprintf("node %q option %d: comparison fields on %s are ignored", n.ID, i, o.Condition))
			}
		}
	}
	return out
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidFilename(name string) bool {
	// Allow 'x.' prefix for experimental graphs
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}

func isCastFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".toml")
}
