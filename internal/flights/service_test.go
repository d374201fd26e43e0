package flights

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/yegors/flight-control/pkg/logger"
)

// scriptedFetcher returns queued results in order and repeats the last one
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

type fetchResult struct {
	snap *Snapshot
	err  error
}

func (f *scriptedFetcher) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	r := f.results[i]
	return r.snap, r.err
}

// blockingFetcher parks every call until release is closed
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
	snap    *Snapshot
}

func (f *blockingFetcher) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	f.entered <- struct{}{}
	<-f.release
	return f.snap, nil
}

func newTestService(fetcher Fetcher, sink *fakeSink, staleAfter int) *Service {
	popups := testPopups()
	rec := NewReconciler(NewRegistry(), sink, popups, logger.NewNop())
	return NewService(fetcher, rec, sink, popups, ServiceConfig{
		FetchInterval:      time.Hour,
		StaleAfterFailures: staleAfter,
	}, logger.NewNop())
}

var errBackendDown = &FetchError{Endpoint: "http://backend/api/flights", StatusCode: 503, Err: errors.New("unexpected status code: 503")}

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Flights: []Flight{
			flight("a", StatusFlying, nil),
			flight("b", StatusScheduled, ts("2025-01-01T10:00:00Z")),
		},
		Positions: []Position{position("a", 4.61, -74.08, 120)},
		FetchedAt: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestRunCycleAppliesSnapshot(t *testing.T) {
	sink := newFakeSink()
	svc := newTestService(&scriptedFetcher{results: []fetchResult{{snap: sampleSnapshot()}}}, sink, 3)

	res, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if res.Cycle != 1 || res.Flights != 2 || res.Positions != 1 || res.Active != 2 || res.Upcoming != 1 || res.Markers.Created != 1 {
		t.Errorf("result = %+v", res)
	}

	views := svc.Views()
	if got := entryIDs(views.Active); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("active = %v", got)
	}
	if views.Cycle != 1 || !views.GeneratedAt.Equal(sampleSnapshot().FetchedAt) {
		t.Errorf("views meta = %d %v", views.Cycle, views.GeneratedAt)
	}
	if len(sink.active) != 1 || len(sink.upcoming) != 1 {
		t.Error("lists not rendered")
	}
	if svc.MarkerCount() != 1 {
		t.Errorf("marker count = %d", svc.MarkerCount())
	}

	st := svc.Status()
	if st.Stale || st.ConsecutiveFailures != 0 || st.LastSuccess == nil || st.LastCycle != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestViewsReturnsCopy(t *testing.T) {
	svc := newTestService(&scriptedFetcher{results: []fetchResult{{snap: sampleSnapshot()}}}, newFakeSink(), 0)
	if _, err := svc.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	v := svc.Views()
	v.Active[0].PilotName = "changed"
	if svc.Views().Active[0].PilotName == "changed" {
		t.Error("Views() exposed internal state")
	}
}

func TestFetchFailureKeepsPreviousState(t *testing.T) {
	sink := newFakeSink()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snap: sampleSnapshot()},
		{err: errBackendDown},
	}}
	svc := newTestService(fetcher, sink, 3)

	if _, err := svc.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := svc.Views()
	markerOps := len(sink.created) + len(sink.updated) + len(sink.removed)

	_, err := svc.RunCycle(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}

	if !reflect.DeepEqual(before, svc.Views()) {
		t.Error("views changed after a failed fetch")
	}
	if got := len(sink.created) + len(sink.updated) + len(sink.removed); got != markerOps {
		t.Error("marker operations issued after a failed fetch")
	}
	if svc.MarkerCount() != 1 {
		t.Errorf("marker count = %d, want 1", svc.MarkerCount())
	}
	st := svc.Status()
	if st.ConsecutiveFailures != 1 || st.Stale || st.LastError == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestStaleAfterConsecutiveFailures(t *testing.T) {
	sink := newFakeSink()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: errBackendDown},
		{err: errBackendDown},
		{snap: sampleSnapshot()},
	}}
	svc := newTestService(fetcher, sink, 2)
	ctx := context.Background()

	svc.RunCycle(ctx)
	if svc.Status().Stale {
		t.Fatal("stale after a single failure")
	}
	svc.RunCycle(ctx)
	if !svc.Status().Stale {
		t.Fatal("not stale after reaching the threshold")
	}
	if last := sink.statuses[len(sink.statuses)-1]; !last.Stale || last.ConsecutiveFailures != 2 {
		t.Errorf("notified status = %+v", last)
	}

	if _, err := svc.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if st := svc.Status(); st.Stale || st.ConsecutiveFailures != 0 {
		t.Errorf("status after recovery = %+v", st)
	}
	if last := sink.statuses[len(sink.statuses)-1]; last.Stale {
		t.Error("recovery not pushed to the sink")
	}
}

func TestRunCycleRejectsOverlap(t *testing.T) {
	fetcher := &blockingFetcher{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		snap:    sampleSnapshot(),
	}
	svc := newTestService(fetcher, newFakeSink(), 0)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunCycle(context.Background())
		done <- err
	}()
	<-fetcher.entered

	if _, err := svc.RunCycle(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Fatalf("overlapping RunCycle() error = %v, want ErrCycleInProgress", err)
	}

	close(fetcher.release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle error = %v", err)
	}

	// guard released after the first cycle; the rejected call did not take a cycle number
	go func() { <-fetcher.entered }()
	res, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("follow-up cycle error = %v", err)
	}
	if res.Cycle != 2 || svc.Views().Cycle != 2 {
		t.Errorf("follow-up cycle = %d, views cycle = %d, want 2", res.Cycle, svc.Views().Cycle)
	}
}

func TestConcurrentRefreshesApplyInOrder(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snap: sampleSnapshot()}}}
	svc := newTestService(fetcher, newFakeSink(), 0)

	var (
		mu      sync.Mutex
		applied []uint64
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RunCycle(context.Background())
			if errors.Is(err, ErrCycleInProgress) {
				return
			}
			if err != nil {
				t.Errorf("RunCycle() error = %v", err)
				return
			}
			mu.Lock()
			applied = append(applied, res.Cycle)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(applied) == 0 {
		t.Fatal("no cycle applied")
	}
	var max uint64
	for _, c := range applied {
		if c > max {
			max = c
		}
	}
	if int(max) != len(applied) {
		t.Errorf("applied cycles %v are not a gapless sequence", applied)
	}
	if svc.Views().Cycle != max {
		t.Errorf("views cycle = %d, want %d", svc.Views().Cycle, max)
	}
}

func TestStopDiscardsInFlightCycle(t *testing.T) {
	fetcher := &blockingFetcher{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		snap:    sampleSnapshot(),
	}
	sink := newFakeSink()
	svc := newTestService(fetcher, sink, 0)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunCycle(context.Background())
		done <- err
	}()
	<-fetcher.entered

	svc.Stop()
	close(fetcher.release)

	if err := <-done; !errors.Is(err, ErrStopped) {
		t.Fatalf("in-flight cycle error = %v, want ErrStopped", err)
	}
	if sink.markerCount() != 0 || len(sink.active) != 0 {
		t.Error("state applied after stop")
	}
	if _, err := svc.RunCycle(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("RunCycle() after stop = %v, want ErrStopped", err)
	}
}

func TestStartRunsInitialCycle(t *testing.T) {
	sink := newFakeSink()
	fetcher := &scriptedFetcher{results: []fetchResult{{snap: sampleSnapshot()}}}
	svc := newTestService(fetcher, sink, 0)

	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop()

	if svc.MarkerCount() != 1 || len(svc.Views().Active) != 2 {
		t.Errorf("initial cycle not applied: markers=%d", svc.MarkerCount())
	}
}

func TestFetchLoopTicks(t *testing.T) {
	sink := newFakeSink()
	fetcher := &scriptedFetcher{results: []fetchResult{{snap: sampleSnapshot()}}}
	popups := testPopups()
	svc := NewService(fetcher, NewReconciler(NewRegistry(), sink, popups, logger.NewNop()), sink, popups,
		ServiceConfig{FetchInterval: 10 * time.Millisecond}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for svc.Status().LastCycle < 3 {
		select {
		case <-deadline:
			t.Fatalf("loop did not tick, last cycle %d", svc.Status().LastCycle)
		case <-time.After(5 * time.Millisecond):
		}
	}
	svc.Stop()

	// repeated identical snapshots never re-create the marker
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.created) != 1 {
		t.Errorf("created = %v", sink.created)
	}
}
