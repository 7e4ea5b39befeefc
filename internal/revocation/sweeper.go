package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"store-api/internal/observability"
)

type Sweeper struct {
	purger Purger
	logger *observability.Logger
	cron   *cron.Cron
}

func NewSweeper(purger Purger, logger *observability.Logger) *Sweeper {
	return &Sweeper{
		purger: purger,
		logger: logger,
		cron:   cron.New(cron.WithLocation(time.UTC)),
	}
}

func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule revocation sweep %q: %w", schedule, err)
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	deleted, err := s.purger.Purge(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("revocation_sweep_failed", map[string]any{"error": err.Error()})
		return 0
	}

	s.logger.Info("revocation_sweep_completed", map[string]any{"deleted": deleted})
	return deleted
}
