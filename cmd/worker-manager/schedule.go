package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"credit-evaluation-workers/internal/common/config"
)

const refreshTimeout = 30 * time.Second

type policyReloader interface {
	Reload() error
}

type bankRefresher interface {
	Refresh(ctx context.Context) error
}

// startSchedules registers the policy reload and bank cache refresh jobs and
// starts the scheduler. The policy job only runs when a policy file is set.
func startSchedules(cfg config.EvaluationConfig, policies policyReloader, banks bankRefresher, log *zap.Logger) (*cron.Cron, error) {
	c, err := buildSchedules(cfg, policies, banks, log)
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func buildSchedules(cfg config.EvaluationConfig, policies policyReloader, banks bankRefresher, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	if cfg.PolicyPath != "" {
		if _, err := c.AddFunc(cfg.PolicyReloadSchedule, func() {
			if err := policies.Reload(); err != nil {
				log.Warn("policy reload failed", zap.String("path", cfg.PolicyPath), zap.Error(err))
			}
		}); err != nil {
			return nil, fmt.Errorf("policy reload schedule %q: %w", cfg.PolicyReloadSchedule, err)
		}
	}

	if _, err := c.AddFunc(cfg.BankCacheRefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := banks.Refresh(ctx); err != nil {
			log.Warn("bank catalog refresh failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("bank cache refresh schedule %q: %w", cfg.BankCacheRefreshSchedule, err)
	}

	return c, nil
}
