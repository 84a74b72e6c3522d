package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func noEnv(string) string { return "" }

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestParse_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseWithFlagSet(fs, nil, noEnv)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.APIURL != "http://localhost:8001/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.MaxConcurrentJobs != 5 {
		t.Errorf("MaxConcurrentJobs = %d, want 5", cfg.MaxConcurrentJobs)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s", cfg.PollInterval)
	}
	if cfg.ReadyMinAge != 4*time.Second {
		t.Errorf("ReadyMinAge = %s, want 4s", cfg.ReadyMinAge)
	}
	if cfg.FailureBackoff != 30*time.Second {
		t.Errorf("FailureBackoff = %s, want 30s", cfg.FailureBackoff)
	}
	if cfg.SecureDelete {
		t.Error("SecureDelete should default to false")
	}
}

func TestParse_EnvOverridesDefaults(t *testing.T) {
	env := envFrom(map[string]string{
		"SHRINKRAY_API_URL":             "http://compress:9000/api/",
		"SHRINKRAY_MAX_CONCURRENT_JOBS": "3",
		"SHRINKRAY_POLL_INTERVAL":       "2s",
		"SHRINKRAY_SECURE_DELETE":       "yes",
	})

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseWithFlagSet(fs, nil, env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// Trailing slash is stripped so URL joins stay predictable.
	if cfg.APIURL != "http://compress:9000/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.MaxConcurrentJobs != 3 {
		t.Errorf("MaxConcurrentJobs = %d, want 3", cfg.MaxConcurrentJobs)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %s, want 2s", cfg.PollInterval)
	}
	if !cfg.SecureDelete {
		t.Error("SecureDelete should be true")
	}
}

func TestParse_FlagsOverrideEnv(t *testing.T) {
	env := envFrom(map[string]string{
		"SHRINKRAY_MAX_CONCURRENT_JOBS": "3",
		"SHRINKRAY_LOG_LEVEL":           "warn",
	})

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseWithFlagSet(fs, []string{"-max-jobs", "7", "-log-level", "debug"}, env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.MaxConcurrentJobs != 7 {
		t.Errorf("MaxConcurrentJobs = %d, want 7", cfg.MaxConcurrentJobs)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestParse_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shrinkray.yaml")
	data := []byte(`api_url: http://yaml:8001/api
max_concurrent_jobs: 2
poll_interval: 10s
failure_backoff: 1m
secure_delete: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseWithFlagSet(fs, []string{"-config", path}, noEnv)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.APIURL != "http://yaml:8001/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.MaxConcurrentJobs != 2 {
		t.Errorf("MaxConcurrentJobs = %d, want 2", cfg.MaxConcurrentJobs)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %s, want 10s", cfg.PollInterval)
	}
	if cfg.FailureBackoff != time.Minute {
		t.Errorf("FailureBackoff = %s, want 1m", cfg.FailureBackoff)
	}
	if !cfg.SecureDelete {
		t.Error("SecureDelete should be true")
	}

	// Unset keys keep their defaults.
	if cfg.ReadyMinAge != 4*time.Second {
		t.Errorf("ReadyMinAge = %s, want default 4s", cfg.ReadyMinAge)
	}
}

func TestParse_EnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shrinkray.yaml")
	if err := os.WriteFile(path, []byte("max_concurrent_jobs: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env := envFrom(map[string]string{
		"SHRINKRAY_CONFIG":              path,
		"SHRINKRAY_MAX_CONCURRENT_JOBS": "9",
	})

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseWithFlagSet(fs, nil, env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MaxConcurrentJobs != 9 {
		t.Errorf("MaxConcurrentJobs = %d, want 9 (env over file)", cfg.MaxConcurrentJobs)
	}
}

func TestParse_ClampsJobCount(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseWithFlagSet(fs, []string{"-max-jobs", "0"}, noEnv)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MaxConcurrentJobs != 1 {
		t.Errorf("MaxConcurrentJobs = %d, want clamp to 1", cfg.MaxConcurrentJobs)
	}

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err = parseWithFlagSet(fs, []string{"-max-jobs", "500"}, noEnv)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MaxConcurrentJobs != 64 {
		t.Errorf("MaxConcurrentJobs = %d, want clamp to 64", cfg.MaxConcurrentJobs)
	}
}

func TestParse_RejectsBadDurations(t *testing.T) {
	env := envFrom(map[string]string{"SHRINKRAY_POLL_INTERVAL": "fast"})
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := parseWithFlagSet(fs, nil, env); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestEnvBool(t *testing.T) {
	truthy := []string{"1", "true", "TRUE", "yes", "Y", "on", " on "}
	for _, v := range truthy {
		if !envBool(v) {
			t.Errorf("envBool(%q) = false, want true", v)
		}
	}
	falsy := []string{"0", "false", "no", "off", "", "maybe"}
	for _, v := range falsy {
		if envBool(v) {
			t.Errorf("envBool(%q) = true, want false", v)
		}
	}
}
