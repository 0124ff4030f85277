package setup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/njoerd114/clinicsync/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvClinicAPIURL, config.EnvHolidayAPIURL, config.EnvCountryCode,
		config.EnvDBPath, config.EnvListenAddr, config.EnvWorkers} {
		t.Setenv(k, "")
	}
}

func lines(ls ...string) io.Reader {
	return strings.NewReader(strings.Join(ls, "\n") + "\n")
}

func TestWizard_WritesConfigAndSeedsDatabase(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "data", "clinic.db")

	in := lines(
		"ftp://clinic.example.com", // rejected
		"http://localhost:3000/api",
		"",   // holiday API default
		"2",  // Mexico
		dbPath,
		"",   // listen default
		"99", // rejected
		"8",
		"10s",
	)
	var out bytes.Buffer
	wiz := NewWizard(in, &out, cfgPath, testLogger)
	var pinged string
	wiz.Ping = func(_ context.Context, url string) error {
		pinged = url
		return errors.New("connection refused")
	}

	if err := wiz.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v\n%s", err, out.String())
	}

	if pinged != "http://localhost:3000/api/" {
		t.Errorf("pinged %q, want the URL with a trailing slash", pinged)
	}
	if !strings.Contains(out.String(), "unreachable") {
		t.Error("output does not mention the unreachable API")
	}
	if !strings.Contains(out.String(), "sample patients") {
		t.Error("output does not mention the seeded database")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("loading written config: %v", err)
	}
	if cfg.ClinicAPIURL != "http://localhost:3000/api/" {
		t.Errorf("ClinicAPIURL = %q", cfg.ClinicAPIURL)
	}
	if cfg.HolidayAPIURL != config.DefaultHolidayAPIURL {
		t.Errorf("HolidayAPIURL = %q, want default", cfg.HolidayAPIURL)
	}
	if cfg.CountryCode != "MX" {
		t.Errorf("CountryCode = %q, want MX", cfg.CountryCode)
	}
	if cfg.DBPath != dbPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, dbPath)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestWizard_KeepsExistingConfig(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	original := config.Default()
	original.CountryCode = "CL"
	if err := original.Write(cfgPath); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var out bytes.Buffer
	wiz := NewWizard(lines("n"), &out, cfgPath, testLogger)
	wiz.Ping = func(context.Context, string) error {
		t.Error("Ping called although the config was kept")
		return nil
	}
	if err := wiz.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CountryCode != "CL" {
		t.Errorf("CountryCode = %q, want the untouched CL", cfg.CountryCode)
	}
}

func TestWizard_OtherCountry(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	in := lines(
		"",  // clinic API default
		"",  // holiday API default
		"8", // Other
		"ecu",
		"ec",
		filepath.Join(dir, "clinic.db"),
		"", "", "",
	)
	wiz := NewWizard(in, io.Discard, cfgPath, testLogger)
	wiz.Ping = func(context.Context, string) error { return nil }

	if err := wiz.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CountryCode != "EC" {
		t.Errorf("CountryCode = %q, want EC", cfg.CountryCode)
	}
	if cfg.Workers != config.DefaultWorkers || cfg.RequestTimeout != config.DefaultRequestTimeout {
		t.Errorf("Workers/RequestTimeout = %d/%v, want defaults", cfg.Workers, cfg.RequestTimeout)
	}
}

func TestPrompter_ValidatedStopsAtEOF(t *testing.T) {
	p := NewPrompter(lines("bad"), io.Discard)
	got := p.Validated("value", "fallback", func(s string) error {
		if s != "good" {
			return errors.New("not good")
		}
		return nil
	})
	if got != "fallback" {
		t.Errorf("Validated = %q, want fallback at end of input", got)
	}
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"y", false, true},
		{"YES", false, true},
		{"n", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, false},
	}
	for _, tt := range tests {
		p := NewPrompter(lines(tt.input), io.Discard)
		if got := p.Confirm("ok?", tt.defaultYes); got != tt.want {
			t.Errorf("Confirm(%q, default %v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
		}
	}
}

func TestPrompter_SelectRetries(t *testing.T) {
	p := NewPrompter(lines("0", "x", "2"), io.Discard)
	idx, err := p.Select("pick", []string{"a", "b"})
	if err != nil || idx != 1 {
		t.Errorf("Select = (%d, %v), want (1, nil)", idx, err)
	}
	if _, err := NewPrompter(strings.NewReader(""), io.Discard).Select("pick", []string{"a"}); err == nil {
		t.Error("Select on empty input succeeded")
	}
}
