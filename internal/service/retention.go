package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RetentionSweeper purges terminal jobs past the retention window on a
// cron schedule. The retention value is read through a function on
// every run so hot-reloaded configuration applies without a restart.
type RetentionSweeper struct {
	store         JobStore
	retentionDays func() int
	logger        *logrus.Logger
	cron          *cron.Cron
}

func NewRetentionSweeper(store JobStore, schedule string, retentionDays func() int, logger *logrus.Logger) (*RetentionSweeper, error) {
	s := &RetentionSweeper{
		store:         store,
		retentionDays: retentionDays,
		logger:        logger,
		cron:          cron.New(cron.WithLogger(cronLogAdapter{logger})),
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *RetentionSweeper) Start() {
	s.cron.Start()
	s.logger.Info("Retention sweeper started")
}

// Stop halts the schedule and waits for an in-flight sweep.
func (s *RetentionSweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *RetentionSweeper) sweep() {
	days := s.retentionDays()
	if days <= 0 {
		s.logger.Debug("Retention disabled, skipping sweep")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.store.CleanupTerminalJobs(ctx, days); err != nil {
		s.logger.WithError(err).Error("Retention sweep failed")
		return
	}
	s.logger.WithField("retentionDays", days).Info("Retention sweep completed")
}

// cronLogAdapter bridges cron's logger interface onto logrus.
type cronLogAdapter struct {
	log *logrus.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.WithField("detail", keysAndValues).Debug(msg)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.log.WithError(err).WithField("detail", keysAndValues).Error(msg)
}
