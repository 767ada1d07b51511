package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/schedview/internal/layout"
	"github.com/alfredjeanlab/schedview/internal/poller"
)

type Config struct {
	BackendURL   string // SCHEDVIEW_BACKEND_URL (default "http://localhost:8080")
	BackendToken string // SCHEDVIEW_BACKEND_TOKEN (optional bearer token for the backend)
	HTTPAddr     string // SCHEDVIEW_HTTP_ADDR (default ":8090")
	AuthToken    string // SCHEDVIEW_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL      string // SCHEDVIEW_NATS_URL (optional, empty = no NATS events)
	DatabaseURL  string // SCHEDVIEW_DATABASE_URL (optional, empty = no render journal)

	// View settings
	PollInterval    time.Duration      // SCHEDVIEW_POLL_INTERVAL (default 2s; bare numbers are milliseconds)
	JobListInterval time.Duration      // SCHEDVIEW_JOB_LIST_INTERVAL (default 5s)
	RefreshMode     poller.RefreshMode // SCHEDVIEW_REFRESH_MODE (default "always")
	ViewMode        layout.ViewMode    // SCHEDVIEW_VIEW_MODE (default "line")
	Zoom            float64            // SCHEDVIEW_ZOOM (default 4)
	Stability       int                // SCHEDVIEW_STABILITY (default 2)
	Location        *time.Location     // SCHEDVIEW_TIMEZONE (default local time)

	// Export settings
	ExportInterval   time.Duration // SCHEDVIEW_EXPORT_INTERVAL (default 1m; 0 = disabled)
	ExportS3Bucket   string        // SCHEDVIEW_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // SCHEDVIEW_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // SCHEDVIEW_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // SCHEDVIEW_EXPORT_S3_KEY (default "schedview/{job}.jsonl")
	ExportGitRepo    string        // SCHEDVIEW_EXPORT_GIT_REPO (enables git when set; path to clone)
	ExportGitFile    string        // SCHEDVIEW_EXPORT_GIT_FILE (default "schedule.jsonl")
	ExportGitBranch  string        // SCHEDVIEW_EXPORT_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		BackendURL:       strings.TrimRight(envOrDefault("SCHEDVIEW_BACKEND_URL", "http://localhost:8080"), "/"),
		BackendToken:     os.Getenv("SCHEDVIEW_BACKEND_TOKEN"),
		HTTPAddr:         envOrDefault("SCHEDVIEW_HTTP_ADDR", ":8090"),
		AuthToken:        os.Getenv("SCHEDVIEW_AUTH_TOKEN"),
		NATSURL:          os.Getenv("SCHEDVIEW_NATS_URL"),
		DatabaseURL:      os.Getenv("SCHEDVIEW_DATABASE_URL"),
		ExportS3Bucket:   os.Getenv("SCHEDVIEW_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("SCHEDVIEW_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("SCHEDVIEW_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("SCHEDVIEW_EXPORT_S3_KEY", "schedview/{job}.jsonl"),
		ExportGitRepo:    os.Getenv("SCHEDVIEW_EXPORT_GIT_REPO"),
		ExportGitFile:    envOrDefault("SCHEDVIEW_EXPORT_GIT_FILE", "schedule.jsonl"),
		ExportGitBranch:  envOrDefault("SCHEDVIEW_EXPORT_GIT_BRANCH", "main"),
	}

	var err error
	if c.PollInterval, err = ParseInterval(envOrDefault("SCHEDVIEW_POLL_INTERVAL", "2s")); err != nil {
		return nil, fmt.Errorf("SCHEDVIEW_POLL_INTERVAL: %w", err)
	}
	if c.PollInterval <= 0 {
		return nil, fmt.Errorf("SCHEDVIEW_POLL_INTERVAL: must be positive")
	}
	if c.JobListInterval, err = ParseInterval(envOrDefault("SCHEDVIEW_JOB_LIST_INTERVAL", "5s")); err != nil {
		return nil, fmt.Errorf("SCHEDVIEW_JOB_LIST_INTERVAL: %w", err)
	}
	if c.ExportInterval, err = time.ParseDuration(envOrDefault("SCHEDVIEW_EXPORT_INTERVAL", "1m")); err != nil {
		return nil, fmt.Errorf("SCHEDVIEW_EXPORT_INTERVAL: %w", err)
	}
	if c.RefreshMode, err = poller.ParseRefreshMode(envOrDefault("SCHEDVIEW_REFRESH_MODE", "always")); err != nil {
		return nil, fmt.Errorf("SCHEDVIEW_REFRESH_MODE: %w", err)
	}
	if c.ViewMode, err = layout.ParseViewMode(envOrDefault("SCHEDVIEW_VIEW_MODE", "line")); err != nil {
		return nil, fmt.Errorf("SCHEDVIEW_VIEW_MODE: %w", err)
	}

	zoom, err := strconv.ParseFloat(envOrDefault("SCHEDVIEW_ZOOM", "4"), 64)
	if err != nil {
		return nil, fmt.Errorf("SCHEDVIEW_ZOOM: %w", err)
	}
	c.Zoom = layout.ClampZoom(zoom)

	if c.Stability, err = strconv.Atoi(envOrDefault("SCHEDVIEW_STABILITY", "2")); err != nil {
		return nil, fmt.Errorf("SCHEDVIEW_STABILITY: %w", err)
	}
	if c.Stability < 1 {
		return nil, fmt.Errorf("SCHEDVIEW_STABILITY: must be at least 1")
	}

	c.Location = time.Local
	if tz := os.Getenv("SCHEDVIEW_TIMEZONE"); tz != "" {
		if c.Location, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("SCHEDVIEW_TIMEZONE: %w", err)
		}
	}

	return c, nil
}

// ExportEnabled reports whether a periodic export destination is configured.
func (c *Config) ExportEnabled() bool {
	return c.ExportInterval > 0 && (c.ExportS3Bucket != "" || c.ExportGitRepo != "")
}

// ParseInterval parses a Go duration ("1500ms", "2s") or a bare number of
// milliseconds ("2000").
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
