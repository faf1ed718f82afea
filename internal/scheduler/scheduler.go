package scheduler

import (
	"context"
	"sync"
	"time"

	"travel-platform/pkg/logger"
)

// Job is a periodic task guarded by a distributed lock. Run receives a
// context that is cancelled on scheduler shutdown.
type Job struct {
	Name     string
	LockName string
	Interval time.Duration
	LockTTL  time.Duration
	Run      func(ctx context.Context) error
}

// Health is a point-in-time snapshot of one job's execution history.
type Health struct {
	Name        string     `json:"name"`
	Runs        int        `json:"runs"`
	Skipped     int        `json:"skipped"`
	Failures    int        `json:"failures"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastElapsed string     `json:"lastElapsed,omitempty"`
}

// Scheduler runs jobs on fixed intervals, one goroutine per job. Each tick
// first takes the job's distributed lock; losing the lock means another
// instance is already on it and the tick is skipped, not queued.
type Scheduler struct {
	locker Locker

	mu     sync.Mutex
	jobs   []Job
	health map[string]*Health

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(locker Locker) *Scheduler {
	return &Scheduler{locker: locker, health: make(map[string]*Health)}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
	s.health[j.Name] = &Health{Name: j.Name}
}

// Start launches all registered jobs. Each runs once immediately and then
// on its interval until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	logger.From(ctx).Info("scheduler started", "jobs", len(jobs))
}

// Stop cancels all job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Snapshot returns the current health of every job.
func (s *Scheduler) Snapshot() []Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Health, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *s.health[j.Name])
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	defer s.wg.Done()

	s.runOnce(ctx, j)

	t := time.NewTicker(j.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j Job) {
	log := logger.From(ctx).With("job", j.Name)

	token, ok, err := s.locker.Acquire(ctx, j.LockName, j.LockTTL)
	if err != nil {
		log.Error("job lock acquire failed", "err", err)
		s.record(j.Name, func(h *Health) { h.Failures++; h.LastError = err.Error() })
		return
	}
	if !ok {
		log.Info("job lock held elsewhere, skipping run")
		s.record(j.Name, func(h *Health) { h.Skipped++ })
		return
	}
	defer func() {
		if err := s.locker.Release(ctx, j.LockName, token); err != nil {
			log.Warn("job lock release failed", "err", err)
		}
	}()

	start := time.Now()
	runErr := j.Run(ctx)
	elapsed := time.Since(start)

	s.record(j.Name, func(h *Health) {
		now := time.Now()
		h.Runs++
		h.LastRunAt = &now
		h.LastElapsed = elapsed.String()
		if runErr != nil {
			h.Failures++
			h.LastError = runErr.Error()
		} else {
			h.LastError = ""
		}
	})
	if runErr != nil {
		log.Error("job run failed", "err", runErr, "elapsed", elapsed)
		return
	}
	log.Info("job run complete", "elapsed", elapsed)
}

func (s *Scheduler) record(name string, fn func(*Health)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.health[name]; ok {
		fn(h)
	}
}
