package tasks

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RegistryStats is the read side of the connection registry.
type RegistryStats interface {
	Rooms() int
	Connections() int
}

// StatsReporter periodically logs how many rooms and connections are live.
type StatsReporter struct {
	stats    RegistryStats
	schedule string
	log      *zap.Logger
	cron     *cron.Cron
}

func NewStatsReporter(stats RegistryStats, schedule string, log *zap.Logger) *StatsReporter {
	return &StatsReporter{
		stats:    stats,
		schedule: schedule,
		log:      log.Named("tasks"),
	}
}

// Start schedules the report. An empty schedule disables it.
func (s *StatsReporter) Start() error {
	if s.schedule == "" {
		s.log.Info("stats reporter disabled")
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.Report); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("stats reporter scheduled", zap.String("schedule", s.schedule))
	return nil
}

func (s *StatsReporter) Report() {
	s.log.Info("registry stats",
		zap.Int("rooms", s.stats.Rooms()),
		zap.Int("connections", s.stats.Connections()))
}

// Stop waits for a running report to finish.
func (s *StatsReporter) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
