package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// StartJanitor schedules removal of finished jobs older than retention. The
// schedule is a standard 5-field cron expression. cleanup is called for each
// purged job so its artifacts can be removed. Stop the returned cron on
// shutdown.
func StartJanitor(q *JobQueue, schedule string, retention time.Duration, cleanup func(*Job)) (*cron.Cron, error) {
	schedule = strings.TrimSpace(schedule)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}

	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(schedule, func() { q.sweep(retention, cleanup) }); err != nil {
		return nil, err
	}
	c.Start()
	q.log.WithField("schedule", schedule).Infof("janitor scheduled, retention %s", retention)
	return c, nil
}

func (q *JobQueue) sweep(retention time.Duration, cleanup func(*Job)) int {
	jobs, err := q.Purge(time.Now().Add(-retention))
	if err != nil {
		q.log.WithError(err).Warn("janitor purge failed")
	}
	for _, j := range jobs {
		if cleanup != nil {
			cleanup(j)
		}
	}
	if len(jobs) > 0 {
		q.log.Infof("janitor removed %d finished jobs", len(jobs))
	}
	return len(jobs)
}
