package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/angelmondragon/rocketshoes-cart/pkg/metrics"
)

const (
	SessionEvictionJobName = "session-eviction"

	defaultSessionIdleTTL = 30 * time.Minute
)

// IdleEvicter drops in-memory session state not touched since cutoff.
type IdleEvicter interface {
	EvictIdle(cutoff time.Time) int
}

// SessionEvictionJobParams configure the in-memory session sweep.
type SessionEvictionJobParams struct {
	Logger  *logger.Logger
	Targets map[string]IdleEvicter
	Metrics *metrics.JobMetrics
	IdleTTL time.Duration
}

// NewSessionEvictionJob releases carts and notification queues of idle sessions.
func NewSessionEvictionJob(params SessionEvictionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	targets := make(map[string]IdleEvicter, len(params.Targets))
	for name, target := range params.Targets {
		if target != nil {
			targets[name] = target
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one eviction target required")
	}
	idleTTL := params.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultSessionIdleTTL
	}
	return &sessionEvictionJob{
		logg:    params.Logger,
		targets: targets,
		metrics: params.Metrics,
		idleTTL: idleTTL,
		now:     time.Now,
	}, nil
}

type sessionEvictionJob struct {
	logg    *logger.Logger
	targets map[string]IdleEvicter
	metrics *metrics.JobMetrics
	idleTTL time.Duration
	now     func() time.Time
}

func (j *sessionEvictionJob) Name() string { return SessionEvictionJobName }

func (j *sessionEvictionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.idleTTL)
	fields := map[string]any{"idle_ttl": j.idleTTL.String()}
	var total int64
	for name, target := range j.targets {
		n := target.EvictIdle(cutoff)
		fields[name+"_evicted"] = n
		total += int64(n)
	}
	j.metrics.AddAffected(j.Name(), total)
	j.logg.Debug(j.logg.WithFields(ctx, fields), "idle sessions evicted")
	return nil
}
