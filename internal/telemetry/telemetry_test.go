package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_RequiresEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error without an endpoint")
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil on error")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown returned %v", err)
	}
}

func TestShutdowns_ReverseOrderJoinedErrors(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	s := shutdowns{
		func(context.Context) error { order = append(order, "conn"); return nil },
		func(context.Context) error { order = append(order, "trace"); return boom },
		func(context.Context) error { order = append(order, "log"); return nil },
	}
	err := s.run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if got := strings.Join(order, ","); got != "log,trace,conn" {
		t.Errorf("order = %s, want log,trace,conn", got)
	}
}

// memExporter keeps exported OTel log records in memory.
type memExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memExporter) Export(_ context.Context, rs []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rs {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memExporter) Shutdown(context.Context) error   { return nil }
func (e *memExporter) ForceFlush(context.Context) error { return nil }

func (e *memExporter) all() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sdklog.Record(nil), e.records...)
}

func newTestLogger(t *testing.T, buf *bytes.Buffer) (*slog.Logger, *memExporter) {
	t.Helper()
	exp := &memExporter{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	base := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(NewLogHandler(base, "clinicsync-test", otelslog.WithLoggerProvider(lp))), exp
}

func TestLogHandler_WritesBothSinks(t *testing.T) {
	var buf bytes.Buffer
	logger, exp := newTestLogger(t, &buf)

	logger.With("component", "sync").WithGroup("req").Info("write resolved", "status", "local_only", "code", 4)

	out := buf.String()
	for _, want := range []string{"write resolved", "component=sync", "req.status=local_only", "req.code=4"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output %q lacks %q", out, want)
		}
	}

	recs := exp.all()
	if len(recs) != 1 {
		t.Fatalf("exported %d OTel records, want 1", len(recs))
	}
	r := recs[0]
	if r.Body().AsString() != "write resolved" {
		t.Errorf("OTel body = %q", r.Body().AsString())
	}
	if r.Severity() != otellog.SeverityInfo {
		t.Errorf("OTel severity = %v, want Info", r.Severity())
	}
	var component string
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Key == "component" {
			component = kv.Value.AsString()
		}
		return true
	})
	if component != "sync" {
		t.Errorf("OTel attribute component = %q, want sync", component)
	}
	if got := r.InstrumentationScope().Name; got != "clinicsync-test" {
		t.Errorf("scope = %q", got)
	}
}

func TestLogHandler_NextDecidesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, exp := newTestLogger(t, &buf)

	logger.Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("debug record reached the text handler: %q", buf.String())
	}
	if n := len(exp.all()); n != 0 {
		t.Errorf("debug record exported to OTel (%d records)", n)
	}
}

func TestLogHandler_LargeUnsignedKeepsValue(t *testing.T) {
	var buf bytes.Buffer
	logger, exp := newTestLogger(t, &buf)

	logger.Info("bytes", "n", uint64(1<<63+5))

	recs := exp.all()
	if len(recs) != 1 {
		t.Fatalf("exported %d records, want 1", len(recs))
	}
	recs[0].WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Key == "n" && kv.Value.Kind() == otellog.KindInt64 && kv.Value.AsInt64() < 0 {
			t.Errorf("uint64 exported as negative int64 %d", kv.Value.AsInt64())
		}
		return true
	})
}
