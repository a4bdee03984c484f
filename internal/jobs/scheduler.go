package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"orgstock/internal/logger"
	"orgstock/internal/metrics"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	JobLedgerReconcile = "ledger-reconcile"
	JobLowStockAlerts  = "low-stock-alerts"
)

// JobScheduler runs the periodic ledger checks
type JobScheduler struct {
	scheduler  gocron.Scheduler
	reconciler *LedgerReconciler
	alerts     *InventoryAlertService
	metrics    *metrics.Metrics
	jobs       map[string]gocron.Job
	mu         sync.RWMutex
}

// NewJobScheduler registers both ledger jobs to run every interval.
func NewJobScheduler(reconciler *LedgerReconciler, alerts *InventoryAlertService, m *metrics.Metrics, interval time.Duration) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler:  scheduler,
		reconciler: reconciler,
		alerts:     alerts,
		metrics:    m,
		jobs:       make(map[string]gocron.Job),
	}
	if err := js.registerJobs(interval); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) registerJobs(interval time.Duration) error {
	tasks := map[string]func() error{
		JobLedgerReconcile: js.reconcileLedger,
		JobLowStockAlerts:  js.checkLowStock,
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	for name, task := range tasks {
		job, err := js.scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(task),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(gocron.AfterJobRunsWithError(js.jobFailed)),
		)
		if err != nil {
			return fmt.Errorf("register %s job: %w", name, err)
		}
		js.jobs[name] = job
	}
	logger.L().Info("registered background jobs", zap.Int("count", len(js.jobs)), zap.Duration("interval", interval))
	return nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	logger.L().Info("starting background job scheduler")
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	logger.L().Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

func (js *JobScheduler) reconcileLedger() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err := js.reconciler.Reconcile(ctx)
	return err
}

func (js *JobScheduler) checkLowStock() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err := js.alerts.CheckLowStock(ctx)
	return err
}

func (js *JobScheduler) jobFailed(jobID uuid.UUID, jobName string, err error) {
	js.metrics.RecordJobFailure(jobName)
	logger.L().Error("background job failed",
		zap.String("job", jobName), zap.String("job_id", jobID.String()), zap.Error(err))
}
