package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jwebster45206/dialogue-engine/pkg/state"
	pkgstorage "github.com/jwebster45206/dialogue-engine/pkg/storage"
)

// GetCast loads the cast file new gamestates are seeded from
func (r *RedisStorage) GetCast(ctx context.Context) (*state.Cast, error) {
	path := r.castFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dataDir, path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("cast file %s: %w", path, pkgstorage.ErrNotFound)
	}

	c, err := state.LoadCast(path)
	if err != nil {
		r.logger.Error("Failed to load cast", "path", path, "error", err)
		return nil, err
	}
	return c, nil
}
