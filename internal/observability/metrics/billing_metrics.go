package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonUnknown              = "unknown"
)

const (
	TopUpResultSucceeded  = "succeeded"
	TopUpResultFailed     = "failed"
	TopUpResultInProgress = "in_progress"
)

// Config supplies the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

// BillingMetrics captures credit metering and recurring charge signals.
type BillingMetrics struct {
	consumes         *prometheus.CounterVec
	consumedCredits  prometheus.Counter
	topUps           *prometheus.CounterVec
	toppedUpCredits  prometheus.Counter
	recurring        *prometheus.CounterVec
	claimTransitions *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobTimeouts      *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	batchProcessed   *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton billing metrics registry using config labels.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the singleton so tests can swap the registerer.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "creditgate"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	consumes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_credit_consume_total",
		Help:        "Credit consumption decisions by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	consumedCredits := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "creditgate_credit_consumed_credits_total",
		Help:        "Credits debited from account ledgers.",
		ConstLabels: constLabels,
	})
	topUps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_topup_total",
		Help:        "Automatic top-up attempts by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	toppedUpCredits := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "creditgate_topup_credits_total",
		Help:        "Credits granted by automatic top-ups.",
		ConstLabels: constLabels,
	})
	recurring := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_recurring_charge_total",
		Help:        "Recurring charge attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	claimTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_claim_transition_total",
		Help:        "Recurring charge claim state transitions.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditgate_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_scheduler_job_timeouts_total",
		Help:        "Scheduler job timeouts.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_scheduler_batch_processed_total",
		Help:        "Scheduler batch items processed.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})

	registerer.MustRegister(
		consumes,
		consumedCredits,
		topUps,
		toppedUpCredits,
		recurring,
		claimTransitions,
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		batchProcessed,
	)

	return &BillingMetrics{
		consumes:         consumes,
		consumedCredits:  consumedCredits,
		topUps:           topUps,
		toppedUpCredits:  toppedUpCredits,
		recurring:        recurring,
		claimTransitions: claimTransitions,
		jobRuns:          jobRuns,
		jobDuration:      jobDuration,
		jobTimeouts:      jobTimeouts,
		jobErrors:        jobErrors,
		batchProcessed:   batchProcessed,
	}
}

// ObserveConsume records a gate decision and, when debited, the amount.
func (m *BillingMetrics) ObserveConsume(reason string, debited int64) {
	if m == nil {
		return
	}
	m.consumes.WithLabelValues(reason).Inc()
	if debited > 0 {
		m.consumedCredits.Add(float64(debited))
	}
}

// ObserveTopUp records a replenishment attempt and the credits it granted.
func (m *BillingMetrics) ObserveTopUp(result string, credits int64) {
	if m == nil {
		return
	}
	m.topUps.WithLabelValues(result).Inc()
	if credits > 0 {
		m.toppedUpCredits.Add(float64(credits))
	}
}

func (m *BillingMetrics) IncRecurringOutcome(outcome string) {
	if m == nil {
		return
	}
	m.recurring.WithLabelValues(outcome).Inc()
}

// IncClaimTransition counts a claim status change. from is "NONE" for inserts.
func (m *BillingMetrics) IncClaimTransition(from, to string) {
	if m == nil {
		return
	}
	m.claimTransitions.WithLabelValues(from, to).Inc()
}

// IncJobRun increments the run counter for a scheduler job.
func (m *BillingMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *BillingMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *BillingMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *BillingMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

// AddBatchProcessed increments the batch processed counter for a resource by count.
func (m *BillingMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// ClassifyJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return JobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return JobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return JobReasonUniqueViolation
	}
	return JobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
