package production

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"streetlab/internal/metrics"

	"gorm.io/gorm"
)

// sweepLockID is the postgres advisory lock key shared by every instance.
const sweepLockID int64 = 0x5754_4c41_4253 // "STLABS"

const sweepOwnerLimit = 500

// Task is extra periodic work run after batches are swept.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// SweepReport describes one sweep run.
type SweepReport struct {
	StartedAt       time.Time      `json:"started_at"`
	Duration        string         `json:"duration"`
	Skipped         bool           `json:"skipped"`
	Owners          int            `json:"owners"`
	Batches         int            `json:"batches"`
	SuccessfulUnits int            `json:"successful_units"`
	FailedUnits     int            `json:"failed_units"`
	Tasks           map[string]int `json:"tasks"`
	Errors          []string       `json:"errors,omitempty"`
}

type SweeperStatus struct {
	IsRunning       bool         `json:"is_running"`
	Interval        string       `json:"interval"`
	TotalRuns       int          `json:"total_runs"`
	TotalBatches    int          `json:"total_batches"`
	LastRun         *SweepReport `json:"last_run,omitempty"`
	NextRunApprox   *time.Time   `json:"next_run,omitempty"`
	DistributedLock bool         `json:"distributed_lock"`
}

// Sweeper resolves due batches in the background by calling
// CollectProductions for each owner, the same path a player's request takes.
type Sweeper struct {
	db       *gorm.DB
	service  *Service
	tasks    []Task
	interval time.Duration

	mu           sync.Mutex
	local        sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
	isRunning    bool
	totalRuns    int
	totalBatches int
	lastRun      *SweepReport
}

func NewSweeper(db *gorm.DB, service *Service, interval time.Duration, tasks ...Task) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{db: db, service: service, tasks: tasks, interval: interval}
}

// Start launches the ticker loop. An initial sweep runs right away.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		log.Printf("⚠️ [SWEEPER] already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	log.Printf("🕐 [SWEEPER] started (%s interval)", s.interval)
	go s.run(ctx, s.done)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.isRunning = false
	s.mu.Unlock()

	<-done
	log.Printf("🛑 [SWEEPER] stopped")
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// ForceSweep runs one sweep immediately, outside the ticker.
func (s *Sweeper) ForceSweep(ctx context.Context) SweepReport {
	log.Printf("🔧 [SWEEPER] forced sweep")
	return s.Sweep(ctx)
}

// Sweep runs once. Only one sweep runs at a time per process, and on postgres
// only one instance sweeps at a time.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	report := SweepReport{StartedAt: time.Now(), Tasks: map[string]int{}}

	if !s.local.TryLock() {
		report.Skipped = true
		return report
	}
	defer s.local.Unlock()

	err := s.withDistributedLock(ctx, func() {
		s.sweepBatches(ctx, &report)
		s.runTasks(ctx, &report)
	})
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	elapsed := time.Since(report.StartedAt)
	report.Duration = elapsed.Round(time.Millisecond).String()
	metrics.SweepDuration.Observe(elapsed.Seconds())
	switch {
	case report.Skipped:
		metrics.SweepRuns.WithLabelValues("skipped").Inc()
	case len(report.Errors) > 0:
		metrics.SweepRuns.WithLabelValues("error").Inc()
	default:
		metrics.SweepRuns.WithLabelValues("ok").Inc()
	}
	s.logReport(report)

	s.mu.Lock()
	s.totalRuns++
	s.totalBatches += report.Batches
	r := report
	s.lastRun = &r
	s.mu.Unlock()
	return report
}

func (s *Sweeper) sweepBatches(ctx context.Context, report *SweepReport) {
	owners, err := s.service.OwnersWithDueBatches(sweepOwnerLimit)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return
	}
	for _, owner := range owners {
		if ctx.Err() != nil {
			return
		}
		result, err := s.service.CollectProductions(owner)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("collect %s: %v", owner, err))
			continue
		}
		report.Owners++
		report.Batches += len(result.Outcomes)
		report.SuccessfulUnits += result.SuccessfulUnits
		report.FailedUnits += result.FailedUnits
	}
}

func (s *Sweeper) runTasks(ctx context.Context, report *SweepReport) {
	for _, task := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		n, err := task.Run(ctx)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", task.Name, err))
			continue
		}
		report.Tasks[task.Name] = n
	}
}

// withDistributedLock holds a session advisory lock on one pooled connection
// while fn runs. Other dialects only get the process-local guard.
func (s *Sweeper) withDistributedLock(ctx context.Context, fn func()) error {
	if s.db.Dialector.Name() != "postgres" {
		fn()
		return nil
	}

	return s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var acquired bool
		if err := conn.Raw("SELECT pg_try_advisory_lock(?)", sweepLockID).Scan(&acquired).Error; err != nil {
			return fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !acquired {
			log.Printf("⏭️ [SWEEPER] another instance holds the lock, skipping")
			return nil
		}
		defer func() {
			if err := conn.Exec("SELECT pg_advisory_unlock(?)", sweepLockID).Error; err != nil {
				log.Printf("❌ [SWEEPER] failed to release lock: %v", err)
			}
		}()
		fn()
		return nil
	})
}

func (s *Sweeper) logReport(r SweepReport) {
	if r.Skipped {
		log.Printf("⏭️ [SWEEPER] previous sweep still running, skipped")
		return
	}
	if r.Batches > 0 {
		log.Printf("🎯 [SWEEPER] resolved %d batches for %d owners (%d units ok, %d lost) in %s",
			r.Batches, r.Owners, r.SuccessfulUnits, r.FailedUnits, r.Duration)
	}
	for name, n := range r.Tasks {
		if n > 0 {
			log.Printf("🧹 [SWEEPER] %s: %d", name, n)
		}
	}
	for _, e := range r.Errors {
		log.Printf("❌ [SWEEPER] %s", e)
	}
}

func (s *Sweeper) Status() SweeperStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SweeperStatus{
		IsRunning:       s.isRunning,
		Interval:        s.interval.String(),
		TotalRuns:       s.totalRuns,
		TotalBatches:    s.totalBatches,
		LastRun:         s.lastRun,
		DistributedLock: s.db.Dialector.Name() == "postgres",
	}
	if s.isRunning && s.lastRun != nil {
		next := s.lastRun.StartedAt.Add(s.interval)
		status.NextRunApprox = &next
	}
	return status
}
