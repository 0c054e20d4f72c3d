package scheduler

import "testing"

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("expected no error adding valid job, got %v", err)
	}
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("not a cron spec", func() {}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
