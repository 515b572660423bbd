package jobs

import (
	"fmt"
	"time"

	"DebtRadar/internal/config"
	"DebtRadar/internal/logger"

	"github.com/robfig/cron/v3"
)

// ScheduleConfig holds the cron settings for the periodic full recompute.
type ScheduleConfig struct {
	Schedule string
	TimeZone string
}

func NewDefaultScheduleConfig() *ScheduleConfig {
	return &ScheduleConfig{
		Schedule: config.DefaultAggregationSchedule,
		TimeZone: config.DefaultTimeZone,
	}
}

// RunAggregationScheduler starts the cron job that triggers a full debt
// summary recompute on a schedule, so the derived store self-heals even
// when no uploads arrive.
func RunAggregationScheduler(cfg *ScheduleConfig, o *Orchestrator) (*cron.Cron, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultAggregationSchedule
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = config.DefaultTimeZone
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		jobID, err := o.Trigger("scheduled-recompute")
		if err != nil {
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogAudit(fmt.Sprintf("scheduled aggregation trigger failed: %v", err))
			}
			return
		}
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit("scheduled aggregation triggered, job " + jobID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule aggregation recompute: %v", err)
	}

	c.Start()
	return c, nil
}
