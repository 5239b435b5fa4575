package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformconfig "github.com/example/comment-radar/internal/platform/config"
)

type Config struct {
	platformconfig.AppConfig

	// Prediction script, invoked as Command Args... <comment>.
	Command       string
	Args          []string
	ScriptDir     string
	ScriptTimeout time.Duration

	DatabaseURL  string
	SinkTimeout  time.Duration
	RateLimitRPS float64
	RateBurst    int
}

func Load() (Config, error) {
	app, err := platformconfig.Load("predictor", ":5000")
	if err != nil {
		return Config{}, err
	}
	command := strings.TrimSpace(os.Getenv("PREDICTOR_COMMAND"))
	if command == "" {
		command = "python"
	}
	script := strings.TrimSpace(os.Getenv("PREDICTOR_SCRIPT"))
	if script == "" {
		script = "predict.py"
	}

	return Config{
		AppConfig:     app,
		Command:       command,
		Args:          []string{script},
		ScriptDir:     strings.TrimSpace(os.Getenv("PREDICTOR_SCRIPT_DIR")),
		ScriptTimeout: envDuration("SCRIPT_TIMEOUT", 30*time.Second),

		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SinkTimeout:  envDuration("SINK_TIMEOUT", 5*time.Second),
		RateLimitRPS: envFloat("RATE_LIMIT_RPS", 20),
		RateBurst:    envInt("RATE_LIMIT_BURST", 40),
	}, nil
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
