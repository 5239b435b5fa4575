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

	// Browser
	ChromeURL     string
	Headless      bool
	PageURL       string
	AttachMatch   string
	ActionTimeout time.Duration
	DialogPoll    time.Duration

	// Predictor client, with retry and circuit-breaker settings.
	PredictorURL       string
	PredictorTimeout   time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32

	// Scan
	ScanThrottle   time.Duration
	ScanInterval   time.Duration
	ScanStartDelay time.Duration
	StableFallback bool

	// Report queue
	MenuTimeout  time.Duration
	AdvanceDelay time.Duration

	// Storage
	RedisURL     string
	LogsKey      string
	StoreRetries int

	// Messaging
	NATSURL       string
	CommandPrefix string

	JWTSecret string
}

func Load() (Config, error) {
	app, err := platformconfig.Load("radar", ":8090")
	if err != nil {
		return Config{}, err
	}
	predictorURL := strings.TrimSpace(os.Getenv("PREDICTOR_URL"))
	if predictorURL == "" {
		predictorURL = "http://127.0.0.1:5000"
	}
	logsKey := strings.TrimSpace(os.Getenv("RADAR_LOGS_KEY"))
	if logsKey == "" {
		logsKey = "logs"
	}
	attach := strings.TrimSpace(os.Getenv("RADAR_ATTACH_MATCH"))
	if attach == "" {
		attach = "youtube.com/watch"
	}
	prefix := strings.TrimSpace(os.Getenv("RADAR_COMMAND_PREFIX"))
	if prefix == "" {
		prefix = "radar.cmd."
	}

	return Config{
		AppConfig:     app,
		ChromeURL:     strings.TrimSpace(os.Getenv("CHROME_URL")),
		Headless:      envBool("CHROME_HEADLESS", false),
		PageURL:       strings.TrimSpace(os.Getenv("RADAR_PAGE_URL")),
		AttachMatch:   attach,
		ActionTimeout: envDuration("RADAR_ACTION_TIMEOUT", 3*time.Second),
		DialogPoll:    envDuration("RADAR_DIALOG_POLL", 500*time.Millisecond),

		PredictorURL:       predictorURL,
		PredictorTimeout:   envDuration("PREDICTOR_TIMEOUT", 10*time.Second),
		MaxRetries:         envInt("PREDICTOR_MAX_RETRIES", 1),
		RetryBaseDelay:     envDuration("PREDICTOR_RETRY_BASE_DELAY", 200*time.Millisecond),
		CBTimeout:          envDuration("CB_TIMEOUT", 30*time.Second),
		CBFailureThreshold: uint32(envInt("CB_FAILURE_THRESHOLD", 5)),

		ScanThrottle:   envDuration("SCAN_THROTTLE", 100*time.Millisecond),
		ScanInterval:   envDuration("SCAN_INTERVAL", 15*time.Second),
		ScanStartDelay: envDuration("SCAN_START_DELAY", 3*time.Second),
		StableFallback: envBool("FINGERPRINT_STABLE_FALLBACK", false),

		MenuTimeout:  envDuration("REPORT_MENU_TIMEOUT", 0),
		AdvanceDelay: envDuration("REPORT_ADVANCE_DELAY", time.Second),

		RedisURL:     strings.TrimSpace(os.Getenv("REDIS_URL")),
		LogsKey:      logsKey,
		StoreRetries: envInt("STORE_RETRIES", 5),

		NATSURL:       strings.TrimSpace(os.Getenv("NATS_URL")),
		CommandPrefix: prefix,

		JWTSecret: strings.TrimSpace(os.Getenv("RADAR_JWT_SECRET")),
	}, nil
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
