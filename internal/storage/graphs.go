package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	pkgstorage "github.com/jwebster45206/dialogue-engine/pkg/storage"
)

// Graph operations (filesystem-backed)

// ListGraphs maps each loadable graph's name to its file name.
// Files that fail to load are logged and skipped.
func (r *RedisStorage) ListGraphs(ctx context.Context) (map[string]string, error) {
	graphsDir := filepath.Join(r.dataDir, "graphs")
	graphs := make(map[string]string)

	err := filepath.WalkDir(graphsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == graphsDir {
				return fs.SkipAll
			}
			return nil
		}
		if d.IsDir() || !dialogue.IsGraphFile(path) {
			return nil
		}

		g, err := dialogue.LoadFile(path)
		if err != nil {
			r.logger.Warn("Failed to load graph file", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(graphsDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		graphs[g.Name] = filepath.ToSlash(rel)
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to walk graphs directory", "error", err)
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	return graphs, nil
}

// GetGraph loads and validates a graph file from the graphs directory.
// A missing file wraps ErrNotFound; an invalid graph returns *dialogue.ValidationError.
func (r *RedisStorage) GetGraph(ctx context.Context, filename string) (*dialogue.Graph, error) {
	if !filepath.IsLocal(filename) || !dialogue.IsGraphFile(filename) {
		return nil, fmt.Errorf("graph %s: %w", filename, pkgstorage.ErrNotFound)
	}
	path := filepath.Join(r.dataDir, "graphs", filename)
	r.logger.Debug("Loading graph", "filename", filename, "full_path", path)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("graph %s: %w", filename, pkgstorage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat graph file: %w", err)
	}

	g, err := dialogue.LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, notice := range g.Notices() {
		r.logger.Info("Graph load notice", "graph", g.Name, "notice", notice)
	}
	return g, nil
}
