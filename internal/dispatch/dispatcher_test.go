package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// startDispatcher runs a dispatcher until the test ends.
func startDispatcher(t *testing.T, workers int) *Dispatcher {
	t.Helper()
	d := New(workers, 16, testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("dispatcher did not stop")
		}
	})
	return d
}

func TestSubmit_DeliversResult(t *testing.T) {
	d := startDispatcher(t, 2)
	done := make(chan struct{})
	var got int
	var gotErr error

	_, err := Submit(context.Background(), d, nil, "answer",
		func(context.Context) (int, error) { return 42, nil },
		func(v int, err error) {
			got, gotErr = v, err
			close(done)
		},
	)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("result not delivered")
	}
	if got != 42 || gotErr != nil {
		t.Errorf("delivered (%d, %v), want (42, nil)", got, gotErr)
	}
}

func TestSubmit_DeliversOnSingleGoroutine(t *testing.T) {
	d := startDispatcher(t, 4)
	const n = 50

	var inDeliver atomic.Int32
	var overlaps atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		_, err := Submit(context.Background(), d, nil, "op",
			func(context.Context) (int, error) { return i, nil },
			func(int, error) {
				if inDeliver.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(time.Millisecond)
				inDeliver.Add(-1)
				wg.Done()
			},
		)
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	wg.Wait()
	if overlaps.Load() != 0 {
		t.Errorf("%d deliveries overlapped; want strictly sequential delivery", overlaps.Load())
	}
}

func TestTicketCancel_DropsResult(t *testing.T) {
	d := startDispatcher(t, 1)
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	var delivered atomic.Bool

	ticket, err := Submit(context.Background(), d, nil, "slow",
		func(context.Context) (string, error) {
			close(started)
			<-release
			defer close(finished)
			return "late", nil
		},
		func(string, error) { delivered.Store(true) },
	)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	ticket.Cancel()
	close(release)
	<-finished

	// A follow-up job on the same single worker proves the coordinator has
	// moved past the cancelled result.
	if _, err := Call(context.Background(), d, "sync", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if delivered.Load() {
		t.Error("result of cancelled ticket was delivered")
	}
	if !ticket.Cancelled() {
		t.Error("Cancelled() = false after Cancel")
	}
}

func TestScopeClose_DropsAllResults(t *testing.T) {
	d := startDispatcher(t, 2)
	scope := NewScope()
	release := make(chan struct{})
	var delivered atomic.Int32

	for range 3 {
		_, err := Submit(context.Background(), d, scope, "screen",
			func(context.Context) (int, error) {
				<-release
				return 0, nil
			},
			func(int, error) { delivered.Add(1) },
		)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	scope.Close()
	close(release)

	// Jobs not yet started are skipped; give the running ones time to finish.
	time.Sleep(100 * time.Millisecond)
	if _, err := Call(context.Background(), d, "sync", func(context.Context) (int, error) { return 0, nil }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if delivered.Load() != 0 {
		t.Errorf("%d results delivered after scope closed", delivered.Load())
	}
}

func TestSubmit_AfterStop(t *testing.T) {
	d := New(1, 1, testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	cancel()
	<-errCh

	called := false
	_, err := Submit(context.Background(), d, nil, "late",
		func(context.Context) (int, error) { return 0, nil },
		func(int, error) { called = true },
	)
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after stop err = %v, want ErrStopped", err)
	}
	if called {
		t.Error("deliver called after stop")
	}
	if _, err := Call(context.Background(), d, "late", func(context.Context) (int, error) { return 0, nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Call after stop err = %v, want ErrStopped", err)
	}
}

func TestRun_OnlyOnce(t *testing.T) {
	d := startDispatcher(t, 1)
	// Let the first Run claim the dispatcher.
	if _, err := Call(context.Background(), d, "warmup", func(context.Context) (int, error) { return 0, nil }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if err := d.Run(context.Background()); err == nil {
		t.Error("second Run succeeded")
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	d := startDispatcher(t, 1)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Call(ctx, d, "blocked", func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call err = %v, want DeadlineExceeded", err)
	}
}

func TestCall_PanicBecomesError(t *testing.T) {
	d := startDispatcher(t, 1)
	_, err := Call(context.Background(), d, "boom", func(context.Context) (int, error) {
		panic("kaboom")
	})
	if err == nil {
		t.Fatal("expected error from panicking op")
	}
}

func TestSubmit_OpContextNotCancelled(t *testing.T) {
	d := startDispatcher(t, 1)
	type key struct{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "req-1"))

	gotVal := make(chan any, 1)
	gotErr := make(chan error, 1)
	_, err := Submit(ctx, d, nil, "detached",
		func(opCtx context.Context) (int, error) {
			cancel()
			gotVal <- opCtx.Value(key{})
			gotErr <- opCtx.Err()
			return 0, nil
		},
		func(int, error) {},
	)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v := <-gotVal; v != "req-1" {
		t.Errorf("op context value = %v, want req-1", v)
	}
	if err := <-gotErr; err != nil {
		t.Errorf("op context err = %v, want nil", err)
	}
}
