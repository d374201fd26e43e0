package flights

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/yegors/flight-control/pkg/logger"
)

// Fetcher yields one paired snapshot per call
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// ServiceConfig holds the cycle timing settings
type ServiceConfig struct {
	FetchInterval      time.Duration
	StaleAfterFailures int // 0 disables the stale indicator
}

// CycleResult summarizes one applied cycle
type CycleResult struct {
	Cycle     uint64          `json:"cycle"`
	Flights   int             `json:"flights"`
	Positions int             `json:"positions"`
	Active    int             `json:"active"`
	Upcoming  int             `json:"upcoming"`
	Markers   ReconcileResult `json:"markers"`
	Duration  time.Duration   `json:"duration_ns"`
}

// Service runs the fetch, merge, number, sort and reconcile cycle on a timer
type Service struct {
	fetcher    Fetcher
	reconciler *Reconciler
	sink       Sink
	popups     *PopupBuilder
	cfg        ServiceConfig
	logger     *logger.Logger
	now        func() time.Time

	running   atomic.Bool
	lastToken atomic.Uint64

	// applyMu serializes the apply step with Stop
	applyMu sync.Mutex
	stopped bool

	// mu guards the published state read by the HTTP and websocket surfaces
	mu     sync.RWMutex
	views  Views
	status DashboardStatus

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new flight service
func NewService(
	fetcher Fetcher,
	reconciler *Reconciler,
	sink Sink,
	popups *PopupBuilder,
	cfg ServiceConfig,
	log *logger.Logger,
) *Service {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = 5 * time.Second
	}
	return &Service{
		fetcher:    fetcher,
		reconciler: reconciler,
		sink:       sink,
		popups:     popups,
		cfg:        cfg,
		logger:     log.Named("flights"),
		now:        time.Now,
		views: Views{
			Active:   []ListEntry{},
			Upcoming: []ListEntry{},
		},
		stopCh: make(chan struct{}),
	}
}

// Start runs an initial cycle and then polls on the configured interval
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting flight service",
		logger.Duration("fetch_interval", s.cfg.FetchInterval),
		logger.Int("stale_after_failures", s.cfg.StaleAfterFailures),
	)

	// Initial fetch
	if _, err := s.RunCycle(ctx); err != nil {
		s.logger.Error("Failed to fetch initial snapshot", logger.Error(err))
	}

	// Start background fetching
	s.wg.Add(1)
	go s.fetchLoop(ctx)

	return nil
}

// Stop clears the timer and waits for the loop. A cycle still fetching finishes and is discarded.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping flight service")

		s.applyMu.Lock()
		s.stopped = true
		s.applyMu.Unlock()

		close(s.stopCh)
		s.wg.Wait()
		s.logger.Info("Flight service stopped")
	})
}

// fetchLoop periodically runs a refresh cycle
func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, err := s.RunCycle(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrCycleInProgress):
				s.logger.Debug("Skipping tick, previous cycle still running")
			case errors.Is(err, ErrStopped):
				return
			default:
				var fetchErr *FetchError
				if !errors.As(err, &fetchErr) {
					s.logger.Error("Refresh cycle failed", logger.Error(err))
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle performs one fetch and, if the service is still running, applies it to the
// views and the marker sink. Only one cycle runs at a time, so cycle numbers are applied
// in increasing order; overlapping calls are rejected with ErrCycleInProgress.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	if s.isStopped() {
		return CycleResult{}, ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		return CycleResult{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	token := s.lastToken.Add(1)
	started := s.now()

	snapshot, err := s.fetcher.FetchSnapshot(ctx)
	if err != nil {
		s.recordFailure(token, started, err)
		return CycleResult{Cycle: token}, err
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if s.stopped {
		s.logger.Debug("Discarding cycle finished after stop", logger.Uint64("cycle", token))
		return CycleResult{Cycle: token}, ErrStopped
	}
	result := s.apply(token, snapshot)
	result.Duration = s.now().Sub(started)

	s.recordSuccess(token, started)

	s.logger.Debug("Cycle applied",
		logger.Uint64("cycle", token),
		logger.Int("flights", result.Flights),
		logger.Int("positions", result.Positions),
		logger.Int("active", result.Active),
		logger.Int("upcoming", result.Upcoming),
		logger.Duration("duration", result.Duration),
	)
	return result, nil
}

// apply runs the sequential pipeline on one snapshot. Caller holds applyMu.
func (s *Service) apply(token uint64, snapshot *Snapshot) CycleResult {
	joined := Merge(snapshot)
	numbers := AssignNumbers(joined.Flights)

	views := BuildViews(joined, numbers, s.popups)
	views.Cycle = token
	views.GeneratedAt = snapshot.FetchedAt

	markers := s.reconciler.Reconcile(joined, numbers)

	if err := s.sink.RenderActive(views.Active); err != nil {
		markers.Failed++
		markers.Errors = append(markers.Errors, &SinkError{Op: "render_active", Err: err})
		s.logger.Warn("Failed to render active list", logger.Error(err))
	}
	if err := s.sink.RenderUpcoming(views.Upcoming); err != nil {
		markers.Failed++
		markers.Errors = append(markers.Errors, &SinkError{Op: "render_upcoming", Err: err})
		s.logger.Warn("Failed to render upcoming list", logger.Error(err))
	}

	s.mu.Lock()
	s.views = views
	s.mu.Unlock()

	return CycleResult{
		Cycle:     token,
		Flights:   len(joined.Flights),
		Positions: len(joined.Mapped()),
		Active:    len(views.Active),
		Upcoming:  len(views.Upcoming),
		Markers:   markers,
	}
}

// recordFailure counts a failed fetch and raises the stale flag once the threshold is reached.
// Derived views and markers are left untouched.
func (s *Service) recordFailure(token uint64, at time.Time, err error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if s.stopped {
		return
	}

	s.mu.Lock()
	s.status.ConsecutiveFailures++
	s.status.LastAttempt = &at
	s.status.LastError = err.Error()
	wasStale := s.status.Stale
	s.status.Stale = s.cfg.StaleAfterFailures > 0 && s.status.ConsecutiveFailures >= s.cfg.StaleAfterFailures
	status := s.status
	s.mu.Unlock()

	fields := []logger.Field{
		logger.Uint64("cycle", token),
		logger.Int("consecutive_failures", status.ConsecutiveFailures),
		logger.Error(err),
	}
	if status.Stale && !wasStale {
		s.logger.Error("Snapshot fetch keeps failing, marking dashboard data stale", fields...)
	} else {
		s.logger.Warn("Failed to fetch snapshot, keeping previous view", fields...)
	}

	s.notify(status)
}

func (s *Service) recordSuccess(token uint64, at time.Time) {
	s.mu.Lock()
	hadFailures := s.status.ConsecutiveFailures > 0 || s.status.LastSuccess == nil
	s.status = DashboardStatus{
		LastSuccess: &at,
		LastAttempt: &at,
		LastCycle:   token,
	}
	status := s.status
	s.mu.Unlock()

	if hadFailures {
		s.notify(status)
	}
}

func (s *Service) notify(status DashboardStatus) {
	n, ok := s.sink.(StatusNotifier)
	if !ok {
		return
	}
	if err := n.NotifyStatus(status); err != nil {
		s.logger.Warn("Failed to publish dashboard status", logger.Error(err))
	}
}

func (s *Service) isStopped() bool {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	return s.stopped
}

// Views returns a copy of the most recently applied lists
func (s *Service) Views() Views {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepcopy.Copy(s.views).(Views)
}

// Status returns the current fetch health
func (s *Service) Status() DashboardStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepcopy.Copy(s.status).(DashboardStatus)
}

// MarkerCount returns the number of markers currently on the map
func (s *Service) MarkerCount() int {
	return s.reconciler.Registry().Len()
}

