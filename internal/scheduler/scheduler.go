// Package scheduler runs periodic maintenance jobs, primarily the purge
// of expired conversation records from backends without native TTL
// support.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler provides cron-based background job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler using the standard
// 5-field format. Panicking jobs are recovered and logged.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task with the given cron expression.
func (s *Scheduler) AddJob(spec string, job func()) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("failed to schedule job with spec %q: %w", spec, err)
	}
	slog.Debug("Scheduler.AddJob: job scheduled", "spec", spec)
	return nil
}

// Stop halts the scheduler. Running jobs complete; no new jobs start.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
