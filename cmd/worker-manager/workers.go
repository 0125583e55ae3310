package main

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"credit-evaluation-workers/internal/common/aws"
	"credit-evaluation-workers/internal/common/camunda"
	"credit-evaluation-workers/internal/common/config"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/observability"
	"credit-evaluation-workers/internal/loan/store"
	"credit-evaluation-workers/pkg/registry"

	ana "credit-evaluation-workers/internal/workers/advisor/assign-next-advisor"
	evs "credit-evaluation-workers/internal/workers/loan/evaluate-solicitud"
	ffo "credit-evaluation-workers/internal/workers/loan/fetch-financing-offers"
	nr "credit-evaluation-workers/internal/workers/loan/notify-reassignment"
)

// workerSet opens job workers with settings from the workers config
// section and schemas from the activity registry.
type workerSet struct {
	client   zbc.Client
	cfg      *config.Config
	registry *registry.ActivityRegistry
	obs      *observability.Observability
	logger   *zap.Logger
	started  []*camunda.Worker
}

type workerDeps struct {
	evaluator evs.Evaluator
	filter    ffo.OfferFetcher
	banks     ffo.BankCatalog
	repo      *store.Repository
}

func (s *workerSet) enabled(taskType string) bool {
	if !config.IsWorkerEnabled(s.cfg, taskType) {
		s.logger.Info("worker disabled", zap.String("taskType", taskType))
		return false
	}
	return true
}

// timeout is the per-job handler deadline: the workers entry, then the
// registry timeout, then the handler's own default.
func (s *workerSet) timeout(taskType string, fallback time.Duration) time.Duration {
	if wc, ok := s.cfg.Workers[taskType]; ok && wc.Timeout > 0 {
		return config.GetDuration(wc.Timeout)
	}
	if activity, ok := s.registry.Lookup(taskType); ok {
		if d, err := activity.TimeoutDuration(); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func (s *workerSet) schema(taskType string) map[string]interface{} {
	schema := s.registry.InputSchema(taskType)
	if schema == nil {
		s.logger.Warn("no input schema registered", zap.String("taskType", taskType))
	}
	return schema
}

func (s *workerSet) start(taskType string, handler worker.JobHandler) {
	wc := config.GetWorkerConfig(s.cfg, taskType)
	opts := camunda.WorkerOptions{
		MaxJobsActive: wc.MaxJobsActive,
		// The broker lock outlives the handler deadline so a slow job can still report.
		Timeout: config.GetDuration(wc.Timeout) + 5*time.Second,
	}
	s.started = append(s.started, camunda.StartWorker(s.client, taskType, opts, s.record(taskType, handler), s.logger))
}

func (s *workerSet) record(taskType string, handler worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handler(client, job)
		ctx := context.Background()
		s.obs.RecordJobProcessed(ctx, taskType, "handled")
		s.obs.RecordJobDuration(ctx, taskType, time.Since(start), "handled")
	}
}

func (s *workerSet) stopAll() {
	for _, w := range s.started {
		w.Stop()
	}
}

func registerWorkers(ctx context.Context, s *workerSet, deps workerDeps, log logger.Logger) error {
	cfg := s.cfg

	if s.enabled(evs.TaskType) {
		wc := evs.LoadConfig()
		wc.Timeout = s.timeout(evs.TaskType, wc.Timeout)
		wc.InputSchema = s.schema(evs.TaskType)
		s.start(evs.TaskType, evs.NewHandler(wc, deps.evaluator, log).Handle)
	}

	if s.enabled(ffo.TaskType) {
		wc := ffo.LoadConfig()
		wc.Timeout = s.timeout(ffo.TaskType, wc.Timeout)
		wc.InputSchema = s.schema(ffo.TaskType)
		s.start(ffo.TaskType, ffo.NewHandler(wc, deps.filter, deps.banks, log).Handle)
	}

	if s.enabled(ana.TaskType) {
		wc := ana.LoadConfig()
		wc.Timeout = s.timeout(ana.TaskType, wc.Timeout)
		wc.InputSchema = s.schema(ana.TaskType)
		wc.FinvaRole = cfg.Advisors.FinvaRole
		wc.ReuseWindow = time.Duration(cfg.Advisors.ReuseWindowDays) * 24 * time.Hour
		wc.FallbackAdvisorID = cfg.Advisors.FallbackAdvisorID
		if len(cfg.Advisors.HoldingRoles) > 0 {
			wc.HoldingRoles = cfg.Advisors.HoldingRoles
		}
		s.start(ana.TaskType, ana.NewHandler(wc, deps.repo, log).Handle)
	}

	if s.enabled(nr.TaskType) {
		wc := nr.LoadConfig()
		wc.Timeout = s.timeout(nr.TaskType, wc.Timeout)
		wc.InputSchema = s.schema(nr.TaskType)
		wc.EmailEnabled = cfg.Notifications.Email.Enabled
		wc.SMSEnabled = cfg.Notifications.SMS.Enabled

		var email nr.EmailSender
		if wc.EmailEnabled {
			ses, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.Email.FromEmail)
			if err != nil {
				return fmt.Errorf("ses client: %w", err)
			}
			email = ses
		}
		var sms nr.SMSSender
		if wc.SMSEnabled {
			sns, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.SMS.SenderID)
			if err != nil {
				return fmt.Errorf("sns client: %w", err)
			}
			sms = sns
		}
		s.start(nr.TaskType, nr.NewHandler(wc, deps.repo, email, sms, log).Handle)
	}

	return nil
}
