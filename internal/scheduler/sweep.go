package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a standard 5-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := scheduleParser.Parse(schedule)
	return err
}

// SweepEnqueuer hands a sweep to the task queue.
type SweepEnqueuer interface {
	EnqueueSweep(ctx context.Context) (string, error)
}

// SweepScheduler periodically enqueues an orphan payload sweep. The sweep
// itself runs on a task worker, not on the cron goroutine.
type SweepScheduler struct {
	enqueuer SweepEnqueuer
	schedule string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func NewSweepScheduler(enqueuer SweepEnqueuer, schedule string) *SweepScheduler {
	return &SweepScheduler{
		enqueuer: enqueuer,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(scheduleParser)),
	}
}

// Start schedules the sweep. It stops by itself when ctx is cancelled.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	var runCtx context.Context
	runCtx, s.cancelFunc = context.WithCancel(ctx)

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.enqueue(runCtx)
	})
	if err != nil {
		s.cancelFunc()
		return fmt.Errorf("failed to schedule sweep job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	log.Printf("Sweep scheduler: started with schedule '%s'. Next run: %v", s.schedule, s.nextRunLocked())

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for an in-flight enqueue to finish.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.isRunning = false

	log.Printf("Sweep scheduler: stopped")
}

// RunNow enqueues a sweep immediately.
func (s *SweepScheduler) RunNow(ctx context.Context) (string, error) {
	return s.enqueuer.EnqueueSweep(ctx)
}

func (s *SweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns nil when the scheduler is stopped.
func (s *SweepScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	t := s.nextRunLocked()
	return &t
}

func (s *SweepScheduler) nextRunLocked() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *SweepScheduler) enqueue(ctx context.Context) {
	id, err := s.enqueuer.EnqueueSweep(ctx)
	if err != nil {
		log.Printf("Sweep scheduler: failed to enqueue sweep: %v", err)
		return
	}
	log.Printf("Sweep scheduler: enqueued sweep task %s", id)
}
