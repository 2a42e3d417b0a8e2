package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/opsforge/scannerctl/internal/domain"
)

// Build-time variables injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Config holds the full run configuration. It is constructed once at startup
// and never mutated afterwards; every stage receives it explicitly.
type Config struct {
	// ConsoleHost and ConsolePort locate the management console the scanner
	// registers against.
	ConsoleHost string
	ConsolePort int

	// Image is the scanner container image reference.
	Image string

	// ContainerName is the fixed name the lifecycle manager operates on.
	ContainerName string

	// DataDir is the host path bind-mounted into the container.
	DataDir string

	// MountPath is the container-internal data directory.
	MountPath string

	// HostPort and ContainerPort form the published port mapping.
	HostPort      int
	ContainerPort int

	// ScannerBinPath is the registration binary's path inside the container.
	ScannerBinPath string

	// OSReleasePath is the OS descriptor consumed by detection.
	OSReleasePath string

	// LogDir is the directory for log files.
	LogDir string

	// DialTimeout bounds the console reachability probe.
	DialTimeout time.Duration

	// Debug enables verbose logging.
	Debug bool

	// AssumeYes answers every continue/abort confirmation with yes,
	// for unattended runs.
	AssumeYes bool
}

// DefaultConfig returns a Config populated with the canonical defaults.
func DefaultConfig() *Config {
	return &Config{
		ConsoleHost:    "scan-console.internal",
		ConsolePort:    8443,
		Image:          "registry.scanhub.io/scanner/engine:latest",
		ContainerName:  "scanner-engine",
		DataDir:        "/var/lib/scanner",
		MountPath:      "/var/opt/scanner/data",
		HostPort:       18443,
		ContainerPort:  8443,
		ScannerBinPath: "/opt/scanner/nsc.sh",
		OSReleasePath:  "/etc/os-release",
		LogDir:         "/var/log/scannerctl",
		DialTimeout:    5 * time.Second,
	}
}

// Load reads configuration from environment variables, applying defaults for
// anything not explicitly set.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SCANNERCTL_CONSOLE_HOST"); v != "" {
		cfg.ConsoleHost = v
	}

	if v := os.Getenv("SCANNERCTL_CONSOLE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("SCANNERCTL_CONSOLE_PORT: invalid port %q", v)
		}
		cfg.ConsolePort = port
	}

	if v := os.Getenv("SCANNERCTL_IMAGE"); v != "" {
		cfg.Image = v
	}

	if v := os.Getenv("SCANNERCTL_CONTAINER"); v != "" {
		cfg.ContainerName = v
	}

	if v := os.Getenv("SCANNERCTL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("SCANNERCTL_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}

	if v := os.Getenv("SCANNERCTL_SCANNER_BIN"); v != "" {
		cfg.ScannerBinPath = v
	}

	cfg.Debug = os.Getenv("SCANNERCTL_DEBUG") == "true"

	return cfg, nil
}

// ContainerSpec derives the fixed container configuration.
func (c *Config) ContainerSpec() domain.ContainerSpec {
	return domain.ContainerSpec{
		Image:         c.Image,
		Name:          c.ContainerName,
		RestartPolicy: "unless-stopped",
		Port: domain.PortMapping{
			HostPort:      c.HostPort,
			ContainerPort: c.ContainerPort,
		},
		DataDir:   c.DataDir,
		MountPath: c.MountPath,
	}
}

// NewLogger creates a structured logger appending to <LogDir>/<name>.log.
// The terminal stays reserved for prompts and banners; diagnostics go to
// the file.
func NewLogger(cfg *Config, name string) (*slog.Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := filepath.Join(cfg.LogDir, name+".log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
