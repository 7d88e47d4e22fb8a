package main

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

type ConsoleConfig struct {
	DataDir   string
	CastFile  string
	TypeSpeed time.Duration // delay per revealed rune; 0 shows text at once
	MaxDepth  int
	LogFile   string
}

func main() {
	cfg := &ConsoleConfig{
		DataDir:  getEnv("DATA_DIR", "./data"),
		CastFile: getEnv("CAST_FILE", "cast.toml"),
		LogFile:  os.Getenv("CONSOLE_LOG"),
	}
	speed, err := time.ParseDuration(getEnv("TYPE_SPEED", "20ms"))
	if err != nil || speed < 0 {
		fmt.Fprintf(os.Stderr, "Invalid TYPE_SPEED: %q\n", os.Getenv("TYPE_SPEED"))
		os.Exit(1)
	}
	cfg.TypeSpeed = speed
	if cfg.MaxDepth, err = strconv.Atoi(getEnv("MAX_CASCADE_DEPTH", "64")); err != nil || cfg.MaxDepth < 1 {
		fmt.Fprintf(os.Stderr, "Invalid MAX_CASCADE_DEPTH: %q\n", os.Getenv("MAX_CASCADE_DEPTH"))
		os.Exit(1)
	}

	log, closeLog, err := consoleLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	cast, err := loadCast(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load cast: %v\n", err)
		os.Exit(1)
	}

	var graphs []*dialogue.Graph
	if len(os.Args) > 1 {
		g, err := dialogue.LoadFile(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load graph: %v\n", err)
			os.Exit(1)
		}
		graphs = append(graphs, g)
	} else {
		graphs, err = listGraphs(filepath.Join(cfg.DataDir, "graphs"), log)
		if err != nil || len(graphs) == 0 {
			fmt.Fprintf(os.Stderr, "No graphs found in %s: %v\n", filepath.Join(cfg.DataDir, "graphs"), err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(NewConsoleUI(cfg, log, cast, graphs),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// consoleLogger writes to path, or nowhere when path is empty, so logs never draw over the UI
func consoleLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	log := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return log, func() { _ = f.Close() }, nil
}

// loadCast reads the cast file. A missing cast is allowed; the game state then starts empty.
func loadCast(cfg *ConsoleConfig) (*state.Cast, error) {
	path := cfg.CastFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.DataDir, path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return state.LoadCast(path)
}

func listGraphs(dir string, log *slog.Logger) ([]*dialogue.Graph, error) {
	var graphs []*dialogue.Graph
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !dialogue.IsGraphFile(path) {
			return nil
		}
		g, err := dialogue.LoadFile(path)
		if err != nil {
			log.Warn("Skipping invalid graph", "file", path, "error", err)
			return nil
		}
		graphs = append(graphs, g)
		return nil
	})
	sort.Slice(graphs, func(i, j int) bool { return graphs[i].Name < graphs[j].Name })
	return graphs, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
