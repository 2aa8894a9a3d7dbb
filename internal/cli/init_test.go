package cli

import (
	"bytes"
	"strings"
	"testing"

	applog "boekhouding/internal/log"
)

func TestSetupLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	logger := SetupLogger(applog.ComponentCLI, &buf)
	logger.Debug("hello")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) || !strings.Contains(out, `"component":"cli"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSetupLoggerBadLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("LOG_FORMAT", "")

	var buf bytes.Buffer
	logger := SetupLogger(applog.ComponentApp, &buf)
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "Ignoring LOG_LEVEL") {
		t.Errorf("expected a warning, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug output should be filtered at info level")
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Output: &buf})

	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("PORT", "8081")
	cfg, err := LoadAndValidateConfig(logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataBackend != "memory" {
		t.Errorf("backend = %q", cfg.DataBackend)
	}

	t.Setenv("DATA_BACKEND", "excel")
	if _, err := LoadAndValidateConfig(logger); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(buf.String(), "configuration_error") {
		t.Errorf("error type not logged: %q", buf.String())
	}
}
