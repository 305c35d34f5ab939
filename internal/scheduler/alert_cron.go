package scheduler

import (
	"context"

	"github.com/ejordan/importrack/internal/jobs"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartAlertCron schedules the periodic alert scan. Mutations trigger scans
// on their own; the cron entry catches milestones that cross into ALERT by
// the mere passage of time.
func StartAlertCron(dispatcher *jobs.AlertDispatcher, spec string) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		rep := dispatcher.Scan(context.Background())
		logrus.WithFields(logrus.Fields{
			"evaluated":        rep.Evaluated,
			"candidates":       rep.Candidates,
			"sent":             rep.Sent,
			"suppressed":       rep.Suppressed,
			"send_failures":    rep.SendFailures,
			"persist_failures": rep.PersistFailures,
		}).Info("Scheduled alert scan completed")
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
