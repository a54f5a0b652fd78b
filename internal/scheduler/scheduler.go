package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/smallbiznis/creditgate/internal/campaign/domain"
	"github.com/smallbiznis/creditgate/internal/clock"
	obsmetrics "github.com/smallbiznis/creditgate/internal/observability/metrics"
	recurringdomain "github.com/smallbiznis/creditgate/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobRecurringCharges = "recurring_charges"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	CampaignSvc  campaigndomain.Service
	RecurringSvc recurringdomain.Service
	Config       Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	campaignSvc  campaigndomain.Service
	recurringSvc recurringdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.CampaignSvc == nil || p.RecurringSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		campaignSvc:  p.CampaignSvc,
		recurringSvc: p.RecurringSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx)
	billingMetrics := obsmetrics.Billing()
	billingMetrics.IncJobRun(name)

	err := fn(ctx)
	billingMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout: the next tick resumes where claims left off
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		billingMetrics.IncJobTimeout(name)
	}
	billingMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobRecurringCharges, s.isJobEnabled(JobRecurringCharges), func(ctx context.Context) error {
			return s.runJob(ctx, JobRecurringCharges, s.cfg.BatchSize, s.cfg.JobTimeout, s.RecurringChargesJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RecurringChargesJob charges the current period fee for every active
// campaign. A failure on one campaign does not stop the sweep.
func (s *Scheduler) RecurringChargesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobRecurringCharges, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	billingMetrics := obsmetrics.Billing()

	var (
		jobErr error
		after  string
	)
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}

		campaigns, err := s.campaignSvc.ListActive(ctx, after, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.campaign.list.failed", err)
			return errors.Join(jobErr, err)
		}
		if len(campaigns) == 0 {
			break
		}

		for _, campaign := range campaigns {
			result, err := s.recurringSvc.ChargeCurrentPeriod(ctx, campaign.ID, campaign.OwnerAccountID)
			if err != nil {
				if ctx.Err() != nil {
					return errors.Join(jobErr, ctx.Err())
				}
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.recurring.charge.failed", err,
					zap.String("campaign_id", campaign.ID),
					zap.String("account_id", campaign.OwnerAccountID),
				)
				continue
			}
			run.AddProcessed(1)
			billingMetrics.AddBatchProcessed(JobRecurringCharges, string(result.Outcome), 1)
		}

		after = campaigns[len(campaigns)-1].ID
		if len(campaigns) < s.cfg.BatchSize {
			break
		}
	}

	return jobErr
}
