package scheduler

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/proxycatalog/catalog/internal/catalog"
	"github.com/proxycatalog/catalog/internal/source"
	"github.com/proxycatalog/catalog/internal/validator"
)

type fakeSource struct {
	name    string
	records []catalog.Record
	calls   int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) ([]catalog.Record, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.records, nil
}

func newTestScheduler(interval int) *Scheduler {
	src := &fakeSource{name: "fake", records: []catalog.Record{
		{IP: "203.0.113.1", Port: 1, Protocol: catalog.ProtocolHTTP},
	}}
	return New(Config{
		Sources:           []source.Source{src},
		IntervalSeconds:   interval,
		ValidationThreads: 2,
		Params: validator.Params{
			Timeout:        50 * time.Millisecond,
			TestURL:        "http://127.0.0.1:1",
			CheckAnonymity: false,
		},
	})
}

func TestStartIsIdempotent(t *testing.T) {
	s := newTestScheduler(3600)
	defer s.Stop()

	s.Start()
	time.Sleep(20 * time.Millisecond)
	snap := s.Start()
	if snap.Status != StatusRunning {
		t.Errorf("expected running after idempotent Start, got %v", snap.Status)
	}
}

func TestStopOnStoppedIsNoOp(t *testing.T) {
	s := newTestScheduler(3600)
	snap := s.Stop()
	if snap.Status != StatusStopped {
		t.Errorf("expected stopped, got %v", snap.Status)
	}
}

func TestStopClearsNextRunTime(t *testing.T) {
	s := newTestScheduler(3600)
	s.Start()
	time.Sleep(30 * time.Millisecond)
	snap := s.Stop()
	if snap.NextRunTime != nil {
		t.Error("expected next_run_time to be cleared after stop")
	}
	if snap.Status != StatusStopped {
		t.Errorf("expected stopped, got %v", snap.Status)
	}
}

func TestPauseThenResume(t *testing.T) {
	s := newTestScheduler(3600)
	s.Start()
	time.Sleep(30 * time.Millisecond)

	s.Pause()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.GetStatus().Status == StatusPaused {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := s.GetStatus().Status; got != StatusPaused {
		t.Fatalf("expected paused, got %v", got)
	}

	s.Resume()
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.GetStatus().Status == StatusRunning {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := s.GetStatus().Status; got != StatusRunning {
		t.Fatalf("expected running after resume, got %v", got)
	}
	s.Stop()
}

func TestRefreshNowDedupsConcurrentCalls(t *testing.T) {
	// A listener that accepts but never answers, so the probe's dial
	// succeeds immediately while the HTTP round trip hangs until the
	// client's overall timeout fires, keeping validation in progress
	// long enough for the concurrent refresh_now calls below to race it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn // never read or write; let the client time out
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	src := &fakeSource{name: "fake", records: []catalog.Record{
		{IP: host, Port: port, Protocol: catalog.ProtocolHTTP},
	}}
	s := New(Config{
		Sources:           []source.Source{src},
		IntervalSeconds:   3600,
		ValidationThreads: 1,
		Params: validator.Params{
			Timeout:        300 * time.Millisecond,
			TestURL:        "http://example.invalid/",
			CheckAnonymity: false,
		},
	})
	s.Start()
	defer s.Stop()
	time.Sleep(20 * time.Millisecond)

	var wg sync.WaitGroup
	messages := make([]string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, _ := s.RefreshNow(true)
			messages[i] = msg
		}(i)
	}
	wg.Wait()

	already := 0
	for _, m := range messages {
		if m == "Validation already in progress." {
			already++
		}
	}
	if already == 0 {
		t.Error("expected at least one concurrent refresh_now call to observe validation already in progress")
	}
}

func TestGetStatusConsistency(t *testing.T) {
	s := newTestScheduler(3600)
	snap := s.GetStatus()
	if snap.Status == StatusStopped && snap.NextRunTime != nil {
		t.Error("stopped scheduler must not report a next_run_time")
	}
	if snap.Status == StatusValidating && !snap.ValidationInProgress {
		t.Error("validating status must imply validation_in_progress")
	}
}

func TestSetIntervalRejectsNonPositive(t *testing.T) {
	s := newTestScheduler(3600)
	if _, err := s.SetInterval(0); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := s.SetInterval(-5); err == nil {
		t.Error("expected error for negative interval")
	}
	if _, err := s.SetInterval(60); err != nil {
		t.Errorf("expected no error for valid interval, got %v", err)
	}
}

func TestSetValidationThreadsRejectsNonPositive(t *testing.T) {
	s := newTestScheduler(3600)
	if _, err := s.SetValidationThreads(0); err == nil {
		t.Error("expected error for zero threads")
	}
	if _, err := s.SetValidationThreads(10); err != nil {
		t.Errorf("expected no error for valid thread count, got %v", err)
	}
}

func TestGetProxiesFiltersInvalid(t *testing.T) {
	s := newTestScheduler(3600)
	s.mu.Lock()
	s.catalog = []catalog.Record{
		{IP: "1.1.1.1", Port: 1, Protocol: catalog.ProtocolHTTP, IsValid: true},
		{IP: "2.2.2.2", Port: 2, Protocol: catalog.ProtocolHTTP, IsValid: false},
	}
	s.mu.Unlock()

	all := s.GetProxies(false)
	if len(all) != 2 {
		t.Fatalf("expected 2 records unfiltered, got %d", len(all))
	}
	valid := s.GetProxies(true)
	if len(valid) != 1 || !valid[0].IsValid {
		t.Fatalf("expected 1 valid record, got %+v", valid)
	}
}

func TestRefreshNowNoOpsWhenStopped(t *testing.T) {
	s := newTestScheduler(3600)
	msg, snap := s.RefreshNow(true)
	if msg != "Scheduler stopped." {
		t.Errorf("expected stopped message, got %q", msg)
	}
	if snap.Status != StatusStopped {
		t.Errorf("expected stopped snapshot, got %v", snap.Status)
	}
}
