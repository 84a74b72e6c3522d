package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the hotfolder daemon.
type Config struct {
	APIURL              string        // Base URL of the compression service API
	InputDir            string        // Directory watched for incoming files
	OutputDir           string        // Directory receiving compressed outputs
	MaxConcurrentJobs   int           // Upper bound on in-flight jobs (1..64)
	PollInterval        time.Duration // Scan loop cadence
	ReadyMinAge         time.Duration // Minimum mtime age before a stable file is ready
	RequestTimeout      time.Duration // Whole-call timeout for upload/compress requests
	StreamReadTimeout   time.Duration // Idle read timeout on the event stream
	DownloadReadTimeout time.Duration // Idle read timeout on the download stream
	UploadTargetSizeMB  float64       // Target size parameter passed to the service
	DownloadWait        time.Duration // Wait hint passed to the download endpoint
	FailureBackoff      time.Duration // Per-file cooldown after a failed job
	SecureDelete        bool          // Overwrite-then-unlink inputs after success
	LogLevel            string        // One of "debug", "info", "warn", "error"
	UI                  bool          // Render the live status dashboard
}

// Parse builds the daemon configuration. Precedence, lowest to highest:
// defaults, YAML config file, environment variables, flags.
func Parse() (Config, error) {
	return parseWithFlagSet(flag.CommandLine, os.Args[1:], os.Getenv)
}

// parseWithFlagSet is an internal helper for testing with isolated flag sets
// and environments.
func parseWithFlagSet(fs *flag.FlagSet, args []string, getenv func(string) string) (Config, error) {
	cfg := Config{
		APIURL:              "http://localhost:8001/api",
		InputDir:            "hotfolder/input",
		OutputDir:           "hotfolder/output",
		MaxConcurrentJobs:   5,
		PollInterval:        5 * time.Second,
		ReadyMinAge:         4 * time.Second,
		RequestTimeout:      60 * time.Second,
		StreamReadTimeout:   600 * time.Second,
		DownloadReadTimeout: 300 * time.Second,
		UploadTargetSizeMB:  50,
		DownloadWait:        2 * time.Second,
		FailureBackoff:      30 * time.Second,
		SecureDelete:        false,
		LogLevel:            "info",
	}

	// Config file first, so env and flags can override its values.
	filePath := configFileArg(args)
	if filePath == "" {
		filePath = getenv("SHRINKRAY_CONFIG")
	}
	if filePath != "" {
		if err := applyFile(&cfg, filePath); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	// Flags override environment.
	var configFlag string
	fs.StringVar(&configFlag, "config", filePath, "path to YAML config file")
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "compression service base URL")
	fs.StringVar(&cfg.InputDir, "input-dir", cfg.InputDir, "watched input directory")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "output directory")
	fs.IntVar(&cfg.MaxConcurrentJobs, "max-jobs", cfg.MaxConcurrentJobs, "max concurrent jobs (1..64)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "directory scan interval")
	fs.DurationVar(&cfg.ReadyMinAge, "ready-min-age", cfg.ReadyMinAge, "minimum file age before upload")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "upload/compress request timeout")
	fs.DurationVar(&cfg.StreamReadTimeout, "stream-read-timeout", cfg.StreamReadTimeout, "event stream idle read timeout")
	fs.DurationVar(&cfg.DownloadReadTimeout, "download-read-timeout", cfg.DownloadReadTimeout, "download idle read timeout")
	fs.Float64Var(&cfg.UploadTargetSizeMB, "target-size-mb", cfg.UploadTargetSizeMB, "target size in MB passed to the service")
	fs.DurationVar(&cfg.DownloadWait, "download-wait", cfg.DownloadWait, "download wait hint")
	fs.DurationVar(&cfg.FailureBackoff, "failure-backoff", cfg.FailureBackoff, "per-file cooldown after a failed job")
	fs.BoolVar(&cfg.SecureDelete, "secure-delete", cfg.SecureDelete, "overwrite inputs before unlinking")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.UI, "ui", cfg.UI, "render live status dashboard on a TTY")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.MaxConcurrentJobs > 64 {
		cfg.MaxConcurrentJobs = 64
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.ReadyMinAge < 0 {
		return Config{}, fmt.Errorf("ready min age must not be negative, got %s", cfg.ReadyMinAge)
	}

	return cfg, nil
}

// configFileArg scans args for a -config value without consuming the flag set,
// so the file can be loaded before the remaining flags are registered.
func configFileArg(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if name != "-config" && name != "--config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// fileConfig mirrors Config with optional fields so absent YAML keys keep
// their defaults. Durations are Go duration strings ("30s", "5m").
type fileConfig struct {
	APIURL              *string  `yaml:"api_url"`
	InputDir            *string  `yaml:"input_dir"`
	OutputDir           *string  `yaml:"output_dir"`
	MaxConcurrentJobs   *int     `yaml:"max_concurrent_jobs"`
	PollInterval        *string  `yaml:"poll_interval"`
	ReadyMinAge         *string  `yaml:"ready_min_age"`
	RequestTimeout      *string  `yaml:"request_timeout"`
	StreamReadTimeout   *string  `yaml:"stream_read_timeout"`
	DownloadReadTimeout *string  `yaml:"download_read_timeout"`
	UploadTargetSizeMB  *float64 `yaml:"upload_target_size_mb"`
	DownloadWait        *string  `yaml:"download_wait"`
	FailureBackoff      *string  `yaml:"failure_backoff"`
	SecureDelete        *bool    `yaml:"secure_delete"`
	LogLevel            *string  `yaml:"log_level"`
	UI                  *bool    `yaml:"ui"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.APIURL != nil {
		cfg.APIURL = *fc.APIURL
	}
	if fc.InputDir != nil {
		cfg.InputDir = *fc.InputDir
	}
	if fc.OutputDir != nil {
		cfg.OutputDir = *fc.OutputDir
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.MaxConcurrentJobs != nil {
		cfg.MaxConcurrentJobs = *fc.MaxConcurrentJobs
	}
	if fc.UploadTargetSizeMB != nil {
		cfg.UploadTargetSizeMB = *fc.UploadTargetSizeMB
	}
	if fc.SecureDelete != nil {
		cfg.SecureDelete = *fc.SecureDelete
	}
	if fc.UI != nil {
		cfg.UI = *fc.UI
	}

	durations := []struct {
		dst *time.Duration
		src *string
		key string
	}{
		{&cfg.PollInterval, fc.PollInterval, "poll_interval"},
		{&cfg.ReadyMinAge, fc.ReadyMinAge, "ready_min_age"},
		{&cfg.RequestTimeout, fc.RequestTimeout, "request_timeout"},
		{&cfg.StreamReadTimeout, fc.StreamReadTimeout, "stream_read_timeout"},
		{&cfg.DownloadReadTimeout, fc.DownloadReadTimeout, "download_read_timeout"},
		{&cfg.DownloadWait, fc.DownloadWait, "download_wait"},
		{&cfg.FailureBackoff, fc.FailureBackoff, "failure_backoff"},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", path, d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("SHRINKRAY_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := getenv("SHRINKRAY_INPUT_DIR"); v != "" {
		cfg.InputDir = v
	}
	if v := getenv("SHRINKRAY_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := getenv("SHRINKRAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("SHRINKRAY_MAX_CONCURRENT_JOBS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHRINKRAY_MAX_CONCURRENT_JOBS: %w", err)
		}
		cfg.MaxConcurrentJobs = parsed
	}
	if v := getenv("SHRINKRAY_UPLOAD_TARGET_SIZE_MB"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SHRINKRAY_UPLOAD_TARGET_SIZE_MB: %w", err)
		}
		cfg.UploadTargetSizeMB = parsed
	}
	if v := getenv("SHRINKRAY_SECURE_DELETE"); v != "" {
		cfg.SecureDelete = envBool(v)
	}
	if v := getenv("SHRINKRAY_UI"); v != "" {
		cfg.UI = envBool(v)
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.PollInterval, "SHRINKRAY_POLL_INTERVAL"},
		{&cfg.ReadyMinAge, "SHRINKRAY_READY_MIN_AGE"},
		{&cfg.RequestTimeout, "SHRINKRAY_REQUEST_TIMEOUT"},
		{&cfg.StreamReadTimeout, "SHRINKRAY_STREAM_READ_TIMEOUT"},
		{&cfg.DownloadReadTimeout, "SHRINKRAY_DOWNLOAD_READ_TIMEOUT"},
		{&cfg.DownloadWait, "SHRINKRAY_DOWNLOAD_WAIT"},
		{&cfg.FailureBackoff, "SHRINKRAY_FAILURE_BACKOFF"},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// envBool accepts the usual truthy spellings: 1, true, yes, y, on.
func envBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
