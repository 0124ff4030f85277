package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/njoerd114/clinicsync/internal/config"
	"github.com/njoerd114/clinicsync/internal/remote"
	"github.com/njoerd114/clinicsync/internal/store"
)

// countries offered by the holiday step. Any other ISO code can be typed.
var countries = []struct{ code, name string }{
	{"PE", "Peru"},
	{"MX", "Mexico"},
	{"CO", "Colombia"},
	{"CL", "Chile"},
	{"AR", "Argentina"},
	{"ES", "Spain"},
	{"US", "United States"},
}

// PingFunc checks whether the clinical API at baseURL answers.
type PingFunc func(ctx context.Context, baseURL string) error

// Wizard guides the user through first-run configuration.
type Wizard struct {
	prompt  *Prompter
	logger  *slog.Logger
	w       io.Writer
	cfgPath string

	// Ping probes the clinical API. It defaults to a [remote.ClinicClient]
	// ping with retries.
	Ping PingFunc
}

// NewWizard creates a Wizard that writes its result to cfgPath.
func NewWizard(r io.Reader, w io.Writer, cfgPath string, logger *slog.Logger) *Wizard {
	wiz := &Wizard{
		prompt:  NewPrompter(r, w),
		logger:  logger,
		w:       w,
		cfgPath: cfgPath,
	}
	wiz.Ping = wiz.pingClinic
	return wiz
}

// Run executes the interactive wizard. It asks for the clinical API, the
// holiday settings, the local database and the facade address, writes the
// config file, and creates the local database if it does not exist yet.
func (wiz *Wizard) Run(ctx context.Context) error {
	fmt.Fprintf(wiz.w, "\nWelcome to clinicsync setup!\n")
	fmt.Fprintf(wiz.w, "This wizard writes %s and prepares the local database.\n\n", wiz.cfgPath)

	cfg := config.Default()
	if _, statErr := os.Stat(wiz.cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", wiz.cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil
		}
		// Start from the current values so Enter keeps them.
		if existing, err := config.Load(wiz.cfgPath); err == nil {
			cfg = existing
		} else {
			wiz.logger.Warn("existing config is invalid, starting from defaults", "error", err)
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	// Step 1: clinical API.
	fmt.Fprintf(wiz.w, "Step 1/4: Clinical API\n")
	cfg.ClinicAPIURL = wiz.prompt.Validated("Clinical API base URL", cfg.ClinicAPIURL, func(s string) error {
		return config.ValidateURL("clinic_api_url", s)
	})
	if !strings.HasSuffix(cfg.ClinicAPIURL, "/") {
		cfg.ClinicAPIURL += "/"
	}

	fmt.Fprintf(wiz.w, "  Contacting the clinical API...")
	if err := wiz.Ping(ctx, cfg.ClinicAPIURL); err != nil {
		wiz.logger.Debug("clinical API ping failed", "url", cfg.ClinicAPIURL, "error", err)
		fmt.Fprintf(wiz.w, " unreachable\n")
		fmt.Fprintf(wiz.w, "  clinicsync will keep working with local data until the server is back.\n\n")
	} else {
		fmt.Fprintf(wiz.w, " ok\n\n")
	}

	// Step 2: holidays.
	fmt.Fprintf(wiz.w, "Step 2/4: Public Holidays\n")
	cfg.HolidayAPIURL = wiz.prompt.Validated("Holiday API base URL", cfg.HolidayAPIURL, func(s string) error {
		return config.ValidateURL("holiday_api_url", s)
	})
	cc, err := wiz.chooseCountry(cfg.CountryCode)
	if err != nil {
		return err
	}
	cfg.CountryCode = cc
	fmt.Fprintf(wiz.w, "\n")

	// Step 3: local database.
	fmt.Fprintf(wiz.w, "Step 3/4: Local Database\n")
	defaultDB := cfg.DBPath
	if defaultDB == "" {
		if defaultDB, err = store.DefaultDBPath(); err != nil {
			return fmt.Errorf("resolving database path: %w", err)
		}
	}
	dbPath := wiz.prompt.String("Database file", defaultDB)
	if p, derr := store.DefaultDBPath(); derr == nil && dbPath == p {
		cfg.DBPath = ""
	} else {
		cfg.DBPath = dbPath
	}
	if err := wiz.prepareStore(dbPath); err != nil {
		return err
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 4: facade and save.
	fmt.Fprintf(wiz.w, "Step 4/4: Local API Server\n")
	cfg.ListenAddr = wiz.prompt.String("Listen address for 'clinicsync serve'", cfg.ListenAddr)
	cfg.Workers = wiz.prompt.Int("Background workers (1-64)", cfg.Workers, 1, 64)
	timeout := wiz.prompt.Validated("Remote request timeout (1s-2m)", cfg.RequestTimeout.String(), func(s string) error {
		d, err := time.ParseDuration(s)
		if err != nil || d < time.Second || d > 2*time.Minute {
			return fmt.Errorf("enter a duration between 1s and 2m, e.g. 30s")
		}
		return nil
	})
	if d, err := time.ParseDuration(timeout); err == nil {
		cfg.RequestTimeout = d
	}
	fmt.Fprintf(wiz.w, "\n")

	if err := cfg.Write(wiz.cfgPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  Config written to %s\n\n", wiz.cfgPath)

	fmt.Fprintf(wiz.w, "Setup complete!\n")
	fmt.Fprintf(wiz.w, "  Check:   clinicsync status\n")
	fmt.Fprintf(wiz.w, "  Browse:  clinicsync patients list\n")
	fmt.Fprintf(wiz.w, "  Serve:   clinicsync serve\n\n")
	return nil
}

func (wiz *Wizard) chooseCountry(current string) (string, error) {
	options := make([]string, 0, len(countries)+1)
	for _, c := range countries {
		label := fmt.Sprintf("%s (%s)", c.name, c.code)
		if c.code == current {
			label += " [current]"
		}
		options = append(options, label)
	}
	options = append(options, "Other (type an ISO code)")

	idx, err := wiz.prompt.Select("Country for holiday checks", options)
	if err != nil {
		return "", fmt.Errorf("selecting country: %w", err)
	}
	if idx < len(countries) {
		return countries[idx].code, nil
	}
	cc := wiz.prompt.Validated("ISO 3166-1 alpha-2 code", current, func(s string) error {
		return config.ValidateCountryCode(strings.ToUpper(s))
	})
	return strings.ToUpper(cc), nil
}

// prepareStore opens (and thereby creates and migrates) the database.
func (wiz *Wizard) prepareStore(path string) error {
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("preparing database %q: %w", path, err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			wiz.logger.Error("closing database", "error", cerr)
		}
	}()

	if st.Created() {
		fmt.Fprintf(wiz.w, "  Created %s with sample patients, doctors and appointments\n", path)
	} else {
		fmt.Fprintf(wiz.w, "  Using existing database %s (schema v%d)\n", path, st.SchemaVersion())
	}
	return nil
}

func (wiz *Wizard) pingClinic(ctx context.Context, baseURL string) error {
	client, err := remote.NewClinicClient(baseURL, remote.NewTransport(10*time.Second, wiz.logger))
	if err != nil {
		return err
	}
	return remote.Retry(ctx, remote.DefaultProbeAttempts, client.Ping)
}
