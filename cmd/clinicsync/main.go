// clinicsync keeps a clinic's patients, doctors and appointments available
// whether or not the clinical REST API is reachable. Reads come from the
// server and fall back to a local SQLite copy; writes go to both.
//
// Usage:
//
//	clinicsync init                                  # interactive first-run wizard
//	clinicsync serve [--config <path>] [--verbose]   # local JSON API for a front end
//	clinicsync status [--config <path>]              # config, database and API reachability
//	clinicsync patients list|search|add|update|delete [flags] [args]
//	clinicsync doctors  list|search|add|update|delete [flags] [args]
//	clinicsync appointments list|search|add|update|delete [flags] [args]
//	clinicsync report                                # clinic statistics
//	clinicsync holidays check <dd/MM/yyyy> | next    # public holidays
//	clinicsync version                               # print version
//
// Flags go before positional arguments, e.g. `clinicsync patients search
// --verbose garcía`.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"golang.org/x/sync/errgroup"

	"github.com/njoerd114/clinicsync/internal/config"
	"github.com/njoerd114/clinicsync/internal/dispatch"
	"github.com/njoerd114/clinicsync/internal/httpapi"
	"github.com/njoerd114/clinicsync/internal/remote"
	"github.com/njoerd114/clinicsync/internal/setup"
	"github.com/njoerd114/clinicsync/internal/store"
	syncp "github.com/njoerd114/clinicsync/internal/sync"
	"github.com/njoerd114/clinicsync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// errUsage makes run print the usage text and exit non-zero.
var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if errors.Is(err, errUsage) {
			printUsage()
			os.Exit(2)
		}
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the subcommand named by args[0].
func run(args []string) error {
	if len(args) < 1 {
		return errUsage
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return runInit(rest)
	case "serve":
		return runServe(rest)
	case "status":
		return runStatus(rest)
	case "patients":
		return runPatients(rest)
	case "doctors":
		return runDoctors(rest)
	case "appointments":
		return runAppointments(rest)
	case "report":
		return runReport(rest)
	case "holidays":
		return runHolidays(rest)
	case "version":
		fmt.Println("clinicsync", version)
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	}
	return fmt.Errorf("unknown command %q, run 'clinicsync help' for usage", cmd)
}

func printUsage() {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "clinicsync: clinic records with an offline fallback")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  clinicsync init                           Interactive first-run wizard")
	fmt.Fprintln(os.Stderr, "  clinicsync serve                          Run the local JSON API")
	fmt.Fprintln(os.Stderr, "  clinicsync status                         Show config, database and API state")
	fmt.Fprintln(os.Stderr, "  clinicsync patients <action> [...]        list | search <q> | add | update <code> | delete <code>")
	fmt.Fprintln(os.Stderr, "  clinicsync doctors <action> [...]         list | search <q> | add | update <code> | delete <code>")
	fmt.Fprintln(os.Stderr, "  clinicsync appointments <action> [...]    list | search <patient> | add | update <code> | delete <code>")
	fmt.Fprintln(os.Stderr, "  clinicsync report                         Clinic statistics")
	fmt.Fprintln(os.Stderr, "  clinicsync holidays check <dd/MM/yyyy>    Is the date a public holiday?")
	fmt.Fprintln(os.Stderr, "  clinicsync holidays next                  Upcoming public holidays")
	fmt.Fprintln(os.Stderr, "  clinicsync version                        Print version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Every command accepts --config <path> and --verbose before its arguments.")

	if cfgErr != nil {
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "No config file found; defaults are used. Run 'clinicsync init' to create one.")
	}
}

// --- Common flags & wiring ---------------------------------------------------

type commonFlags struct {
	cfgPath string
	verbose bool
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &commonFlags{}
	defaultCfg, _ := config.DefaultPath()
	fs.StringVar(&c.cfgPath, "config", defaultCfg, "path to config.yaml")
	fs.BoolVar(&c.verbose, "verbose", false, "enable debug logging")
	return fs, c
}

// newLogger logs at level, or at debug with --verbose.
func newLogger(verbose bool, level slog.Level) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app is everything a record command or the server needs.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *store.Store
	clinic  *remote.ClinicClient
	holiday *remote.HolidayClient
	mgr     *syncp.Manager
	disp    *dispatch.Dispatcher

	closers []func()
}

// Close releases everything openApp acquired, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openApp loads the configuration and wires the store, the remote clients,
// the sync manager and the dispatcher. The dispatcher is not started.
func openApp(c *commonFlags, level slog.Level) (*app, error) {
	logger := newLogger(c.verbose, level)

	cfg, err := config.LoadOrDefault(c.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", c.cfgPath, err)
	}
	a := &app{cfg: cfg}

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		shutdownTel, err := telemetry.Setup(context.Background(), telemetry.Config{
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Headers:        cfg.Telemetry.Headers,
		})
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger = slog.New(telemetry.NewLogHandler(logger.Handler(), "github.com/njoerd114/clinicsync",
				otelslog.WithVersion(version)))
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			a.closers = append(a.closers, func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			})
		}
	}
	slog.SetDefault(logger)
	a.log = logger

	// --- Local store ---------------------------------------------------------

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening database at %q: %w", dbPath, err)
	}
	a.store = st
	a.closers = append(a.closers, func() {
		if err := st.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	})
	logger.Debug("database opened", "path", dbPath, "schema_version", st.SchemaVersion(), "created", st.Created())

	// --- Remote clients ------------------------------------------------------

	tr := remote.NewTransport(cfg.RequestTimeout, logger)
	tr.UserAgent = "clinicsync/" + version
	if a.clinic, err = remote.NewClinicClient(cfg.ClinicAPIURL, tr); err != nil {
		a.Close()
		return nil, err
	}
	if a.holiday, err = remote.NewHolidayClient(cfg.HolidayAPIURL, tr); err != nil {
		a.Close()
		return nil, err
	}

	a.mgr = syncp.NewManager(a.clinic, a.holiday, st, syncp.Options{CountryCode: cfg.CountryCode}, logger)
	a.disp = dispatch.New(cfg.Workers, 0, logger)
	return a, nil
}

func resolveDBPath(cfg *config.Config) (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	p, err := store.DefaultDBPath()
	if err != nil {
		return "", fmt.Errorf("resolving database path: %w", err)
	}
	return p, nil
}

// withDispatcher runs fn while the app's dispatcher is running, then stops
// the dispatcher. SIGINT and SIGTERM cancel fn's context.
func (a *app) withDispatcher(fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	dctx, cancelDisp := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.disp.Run(dctx) }()

	err := fn(ctx)

	cancelDisp()
	if derr := <-done; derr != nil && err == nil {
		err = fmt.Errorf("dispatcher: %w", derr)
	}
	return err
}

// --- Subcommands -------------------------------------------------------------

func runInit(args []string) error {
	fs, c := newFlagSet("init")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(c.verbose, slog.LevelWarn)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return setup.NewWizard(os.Stdin, os.Stdout, c.cfgPath, logger).Run(ctx)
}

func runServe(args []string) error {
	fs, c := newFlagSet("serve")
	addr := fs.String("listen", "", "listen address (overrides listen_addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(c, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer a.Close()
	if *addr != "" {
		a.cfg.ListenAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           httpapi.NewServer(a.mgr, a.disp, a.log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.disp.Run(gctx) })
	g.Go(func() error {
		a.log.Info("serving", "addr", a.cfg.ListenAddr, "clinic_api", a.cfg.ClinicAPIURL, "country", a.cfg.CountryCode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	a.log.Info("shutdown complete")
	return err
}

func runStatus(args []string) error {
	fs, c := newFlagSet("status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(c.verbose, slog.LevelWarn)
	slog.SetDefault(logger)

	fmt.Println("clinicsync status")
	fmt.Println("─────────────────")

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	cfg, err := config.LoadOrDefault(c.cfgPath)
	switch {
	case err != nil:
		fmt.Fprintf(tw, "  Config:\t%s (invalid: %v)\n", c.cfgPath, err)
		return nil
	case fileExists(c.cfgPath):
		fmt.Fprintf(tw, "  Config:\t%s\n", c.cfgPath)
	default:
		fmt.Fprintf(tw, "  Config:\tnot found (%s), using defaults\n", c.cfgPath)
	}
	fmt.Fprintf(tw, "  Country:\t%s\n", cfg.CountryCode)

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(dbPath); statErr == nil {
		fmt.Fprintf(tw, "  Database:\t%s (%s)\n", dbPath, humanSize(info.Size()))
	} else {
		fmt.Fprintf(tw, "  Database:\tnot created yet (%s)\n", dbPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tr := remote.NewTransport(cfg.RequestTimeout, logger)
	tr.UserAgent = "clinicsync/" + version

	clinic, err := remote.NewClinicClient(cfg.ClinicAPIURL, tr)
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "  Clinical API:\t%s (%s)\n", cfg.ClinicAPIURL,
		reachability(remote.Retry(ctx, remote.DefaultProbeAttempts, clinic.Ping)))

	holidays, err := remote.NewHolidayClient(cfg.HolidayAPIURL, tr)
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "  Holiday API:\t%s (%s)\n", cfg.HolidayAPIURL,
		reachability(remote.Retry(ctx, remote.DefaultProbeAttempts, func(ctx context.Context) error {
			_, err := holidays.NextPublicHolidays(ctx, cfg.CountryCode)
			return err
		})))

	fmt.Fprintf(tw, "  Listen:\t%s\n", cfg.ListenAddr)
	if cfg.Telemetry != nil {
		fmt.Fprintf(tw, "  Telemetry:\t%s\n", cfg.Telemetry.OTLPEndpoint)
	} else {
		fmt.Fprintf(tw, "  Telemetry:\tdisabled\n")
	}
	return nil
}

func reachability(err error) string {
	if err != nil {
		return "unreachable: " + err.Error()
	}
	return "reachable"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
