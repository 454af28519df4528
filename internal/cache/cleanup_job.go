package cache

import (
	"context"

	"go.uber.org/zap"
)

// CleanupJob removes expired entries from a Store.
type CleanupJob struct {
	store  Store
	logger *zap.Logger
}

// NewCleanupJob creates a cache cleanup job for store.
func NewCleanupJob(store Store, logger *zap.Logger) *CleanupJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupJob{store: store, logger: logger}
}

// Run deletes every expired entry.
func (j *CleanupJob) Run() error {
	deleted, err := j.store.DeleteExpired(context.Background())
	if err != nil {
		j.logger.Error("failed to delete expired cache entries",
			zap.String("op", "cache.CleanupJob.Run"),
			zap.Error(err),
		)
		return err
	}

	if deleted > 0 {
		j.logger.Info("cleaned up expired cache entries",
			zap.String("op", "cache.CleanupJob.Run"),
			zap.Int64("deleted", deleted),
		)
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
