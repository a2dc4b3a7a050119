package sched

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"romi-fusion-core/utils"
)

// StartReporter logs the task profile every interval from a gocron job, outside the control
// tasks. extra, if set, runs after each report. Stop the returned scheduler when done.
func StartReporter(s *Scheduler, log *utils.Logger, interval time.Duration, extra func()) (*gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("report interval must be positive, got %v", interval)
	}

	cron := gocron.NewScheduler(time.UTC)
	_, err := cron.Every(interval).Do(func() {
		for _, p := range s.Profiles() {
			log.Info("%s", p)
		}
		if extra != nil {
			extra()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reporter: %w", err)
	}
	cron.StartAsync()
	return cron, nil
}
