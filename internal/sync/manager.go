package sync

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	otelScope            = "clinicsync/sync"
	metricReads          = "clinicsync.sync.reads"
	metricWrites         = "clinicsync.sync.writes"
	metricRemoteFailures = "clinicsync.sync.remote_failures"

	// DefaultCountryCode is used for holiday lookups when Options leaves it
	// empty.
	DefaultCountryCode = "PE"
)

// Options tunes a [Manager].
type Options struct {
	// CountryCode is the ISO 3166-1 alpha-2 country used for holidays.
	CountryCode string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Manager routes each operation to the clinical API and the local store and
// reconciles the results. Create one with [NewManager]. A Manager is safe for
// concurrent use if its collaborators are.
type Manager struct {
	clinic   ClinicAPI
	holidays HolidayAPI
	store    LocalStore
	country  string
	now      func() time.Time
	log      *slog.Logger

	// OTel instruments, always non-nil (no-op when telemetry is disabled).
	tracer            trace.Tracer
	cntReads          metric.Int64Counter
	cntWrites         metric.Int64Counter
	cntRemoteFailures metric.Int64Counter
}

// NewManager creates a Manager over the given backends.
func NewManager(clinic ClinicAPI, holidays HolidayAPI, store LocalStore, opts Options, logger *slog.Logger) *Manager {
	if opts.CountryCode == "" {
		opts.CountryCode = DefaultCountryCode
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter(otelScope)
	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Manager{
		clinic:   clinic,
		holidays: holidays,
		store:    store,
		country:  opts.CountryCode,
		now:      opts.Now,
		log:      logger,

		tracer:            otel.Tracer(otelScope),
		cntReads:          mustCounter(metricReads, "Reads served, by source"),
		cntWrites:         mustCounter(metricWrites, "Writes resolved, by outcome status"),
		cntRemoteFailures: mustCounter(metricRemoteFailures, "Failed calls to a remote backend, by operation"),
	}
}

// CountryCode returns the country used for holiday lookups.
func (m *Manager) CountryCode() string {
	return m.country
}

// startSpan opens the span for one Manager operation.
func (m *Manager) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "sync."+op, trace.WithAttributes(attribute.String("sync.op", op)))
}

// remoteFailed records a failed remote call on the span and the failure
// counter.
func (m *Manager) remoteFailed(ctx context.Context, span trace.Span, op string, err error) {
	span.RecordError(err)
	m.cntRemoteFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// fail marks span as failed with err.
func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
