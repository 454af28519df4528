package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WarmupJob rebuilds every preset dashboard so that generated series,
// price index observations and news searches are cached before users ask.
type WarmupJob struct {
	service *Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewWarmupJob creates a warmup job bounded by timeout per run.
func NewWarmupJob(service *Service, timeout time.Duration, logger *zap.Logger) *WarmupJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarmupJob{service: service, timeout: timeout, logger: logger}
}

// Run builds each preset. A failing preset does not stop the others.
func (j *WarmupJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	var errs []error
	built := 0
	for _, preset := range j.service.Presets() {
		if _, err := j.service.Build(ctx, preset.Name); err != nil {
			errs = append(errs, fmt.Errorf("preset %s: %w", preset.Name, err))
			continue
		}
		built++
	}

	j.logger.Info("dashboards warmed",
		zap.String("op", "dashboard.WarmupJob.Run"),
		zap.Int("built", built),
		zap.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

// Name returns the job name for scheduling and logging.
func (j *WarmupJob) Name() string {
	return "dashboard_warmup"
}
