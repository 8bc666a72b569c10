package digest

import (
	"context"
	"strings"
	"time"

	"github.com/apex/log"

	"issueboard/internal/config"
	"issueboard/internal/storage/sqlite"
)

// StartScheduler runs the digest on the configured 5-field cron schedule
// (minute hour day-of-month month day-of-week) until ctx is cancelled.
// Examples: "0 9 * * 1" (Mondays 9am), "0 9 * * 1-5" (weekdays 9am).
func StartScheduler(ctx context.Context, deps Deps) {
	cfg := deps.Config
	schedule := strings.TrimSpace(cfg.DigestSchedule)
	if schedule == "" {
		log.Info("Digest disabled (digest_schedule not set)")
		return
	}
	sched, err := config.ParseSchedule(schedule)
	if err != nil {
		log.Errorf("Invalid digest_schedule '%s': %v, digest disabled", schedule, err)
		return
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	log.Infof("Digest scheduled (cron: %s, lookback: %d days)", schedule, cfg.DigestLookbackDays)

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Infof("Next digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Info("Digest scheduler stopped")
				return
			case <-timer.C:
			}

			if _, err := Run(ctx, deps, time.Now().In(loc), sqlite.TriggerSchedule); err != nil {
				log.WithError(err).Error("Digest run failed")
			}
		}
	}()
}
