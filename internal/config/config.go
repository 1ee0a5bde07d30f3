package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Brownie44l1/sketch-classifier/internal/canvas"
)

type Config struct {
	Port string

	// ModelBaseURL is where <name>/model.json lives.
	ModelBaseURL string
	// ModelDir, if set, is served at /web_model/.
	ModelDir     string
	DefaultModel string

	Engines        []string
	ORTLibraryPath string

	CanvasSize   int
	FetchTimeout time.Duration
}

// FromEnv reads the configuration from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:           envOr("PORT", "8080"),
		ModelDir:       os.Getenv("MODEL_DIR"),
		ModelBaseURL:   os.Getenv("MODEL_BASE_URL"),
		DefaultModel:   envOr("DEFAULT_MODEL", "cnn"),
		Engines:        splitList(envOr("ENGINE", "born")),
		ORTLibraryPath: os.Getenv("ORT_LIBRARY_PATH"),
		CanvasSize:     envOrInt("CANVAS_SIZE", canvas.DefaultSize),
		FetchTimeout:   time.Duration(envOrInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	if cfg.ModelBaseURL == "" {
		if cfg.ModelDir == "" {
			return cfg, fmt.Errorf("either MODEL_BASE_URL or MODEL_DIR must be set")
		}
		cfg.ModelBaseURL = "http://localhost:" + cfg.Port + "/web_model"
	}
	if cfg.CanvasSize <= 0 {
		return cfg, fmt.Errorf("CANVAS_SIZE must be positive, got %d", cfg.CanvasSize)
	}
	return cfg, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envOrInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
