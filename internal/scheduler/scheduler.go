package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler wraps gocron for periodic maintenance jobs, currently the
// embedding backfill sweep.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleCron registers a job under a unique tag with a cron expression.
func (s *Scheduler) ScheduleCron(tag, cronExpr string, job func() error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(job)
	return err
}
