package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/angelmondragon/rocketshoes-cart/pkg/metrics"
)

const (
	SnapshotRetentionJobName = "snapshot-retention"

	defaultSnapshotMaxAge = 30 * 24 * time.Hour
)

type snapshotPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotRetentionJobParams configure the snapshot cleanup.
type SnapshotRetentionJobParams struct {
	Logger  *logger.Logger
	Store   snapshotPruner
	Metrics *metrics.JobMetrics
	MaxAge  time.Duration
}

// NewSnapshotRetentionJob removes cart snapshots untouched for longer than MaxAge.
func NewSnapshotRetentionJob(params SnapshotRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultSnapshotMaxAge
	}
	return &snapshotRetentionJob{
		logg:    params.Logger,
		store:   params.Store,
		metrics: params.Metrics,
		maxAge:  maxAge,
		now:     time.Now,
	}, nil
}

type snapshotRetentionJob struct {
	logg    *logger.Logger
	store   snapshotPruner
	metrics *metrics.JobMetrics
	maxAge  time.Duration
	now     func() time.Time
}

func (j *snapshotRetentionJob) Name() string { return SnapshotRetentionJobName }

func (j *snapshotRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	deleted, err := j.store.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("snapshot retention: %w", err)
	}
	j.metrics.AddAffected(j.Name(), deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"max_age":      j.maxAge.String(),
		"rows_deleted": deleted,
	}), "snapshot retention complete")
	return nil
}
