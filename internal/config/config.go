package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Host           string
	Port           int
	Title          string
	WindowWidth    int
	WindowHeight   int
	GridCols       int
	GridRows       int
	DBPath         string
	RenderDrain    time.Duration
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8744,
		Title:          "meshview",
		WindowWidth:    1280,
		WindowHeight:   800,
		GridCols:       1,
		GridRows:       1,
		DBPath:         defaultDBPath(),
		RenderDrain:    500 * time.Millisecond,
		ConnectTimeout: 3 * time.Second,
		CommandTimeout: 5 * time.Second,
	}
}

// DefaultFilePath is where Load looks when no --config flag is given. A missing
// file there is not an error; a missing explicitly named file is.
func DefaultFilePath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "meshview", "config.hcl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "meshview", "config.hcl")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "meshview.db"
	}
	return filepath.Join(home, ".local", "state", "meshview", "scenes.db")
}
