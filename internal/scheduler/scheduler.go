package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Scheduler runs per-session recurring jobs on a single gocron scheduler
type Scheduler struct {
	logger *zap.Logger
	cron   *gocron.Scheduler
}

// New creates a stopped scheduler. Jobs added before Start run once it starts.
func New(logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	// First run happens one interval after scheduling
	s.WaitForScheduleAll()
	return &Scheduler{logger: logger, cron: s}
}

// Start begins executing jobs in the background
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Debug("Scheduler started")
}

// Stop halts job execution. Running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Debug("Scheduler stopped")
}

// Every runs fn each interval under tag. A run still in progress is never overlapped.
func (s *Scheduler) Every(tag string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s", interval)
	}
	if _, err := s.cron.Every(interval).Tag(tag).SingletonMode().Do(fn); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", tag, err)
	}
	return nil
}

// Cancel removes the job with the given tag
func (s *Scheduler) Cancel(tag string) {
	if err := s.cron.RemoveByTag(tag); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		s.logger.Warn("Failed to cancel job", zap.String("tag", tag), zap.Error(err))
	}
}

// Len returns the number of scheduled jobs
func (s *Scheduler) Len() int {
	return s.cron.Len()
}
