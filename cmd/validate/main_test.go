package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile_SampleData(t *testing.T) {
	files, err := expand(filepath.Join("..", "..", "data"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	v := &GraphValidator{}
	for _, f := range files {
		assert.NoError(t, v.validateFile(f), f)
	}
}

func TestValidateFile_Problems(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "bad filename",
			file:    "First-Date.json",
			content: `{"nodes":[{"id":"a","type":"text"}]}`,
			wantErr: "lowercase snake_case",
		},
		{
			name:    "unknown field",
			file:    "strict.json",
			content: `{"nodes":[{"id":"a","type":"text","colour":"red"}]}`,
			wantErr: "failed strict decoding",
		},
		{
			name:    "dangling edge",
			file:    "dangling.yaml",
			content: "nodes:\n  - id: a\n    type: text\n    next: ghost\n",
			wantErr: `next references unknown node "ghost"`,
		},
		{
			name:    "node id style",
			file:    "style.json",
			content: `{"nodes":[{"id":"BadId","type":"text"}]}`,
			wantErr: "node ID 'BadId' should be lowercase snake_case",
		},
		{
			name:    "cast meter without bachelor",
			file:    "cast.toml",
			content: "[meters.ghost]\nvalue = 1\n",
			wantErr: "meter 'ghost' has no matching bachelor",
		},
		{
			name:    "cast meter out of bounds",
			file:    "bounds.toml",
			content: "[meters.cole]\nvalue = 20\n[bachelors.cole]\nname = \"Cole\"\n",
			wantErr: "outside its bounds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			err := (&GraphValidator{}).validateFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUnusedComparisons(t *testing.T) {
	spec, err := dialogue.Decode([]byte(`{
		"nodes": [
			{"id": "c", "type": "condition", "true": "t",
			 "condition": {"op": "value_equals", "variable": "mood", "value": "happy", "comparison_type": "greater_than"}},
			{"id": "t", "type": "text", "text": "hi", "options": [
				{"text": "a", "condition": {"op": "love_score_at_least", "meter": "cole", "threshold": 2, "comparison_value": "3"}},
				{"text": "b"}
			]}
		]
	}`), ".json")
	require.NoError(t, err)

	notices := unusedComparisons(spec)
	require.Len(t, notices, 2)
	assert.Contains(t, notices[0], `node "c"`)
	assert.Contains(t, notices[1], `node "t" option 0`)
}
