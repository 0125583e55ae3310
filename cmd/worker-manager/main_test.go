package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"credit-evaluation-workers/internal/common/config"
)

// ==========================
// Retry
// ==========================

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, zap.NewNop(), "postgres")

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(func() error {
			calls++
			return errors.New("connection refused")
		}, 3, time.Millisecond, zap.NewNop(), "redis")

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "redis failed after 3 attempts")
	})
}

// ==========================
// Health Router
// ==========================

func serve(t *testing.T, checks map[string]readinessCheck, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	newRouter(checks).ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := serve(t, nil, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestHealthRejectsPost(t *testing.T) {
	rec, _ := serve(t, nil, http.MethodPost, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	tests := []struct {
		name       string
		checks     map[string]readinessCheck
		wantStatus int
		wantFailed []string
	}{
		{
			name:       "all dependencies up",
			checks:     map[string]readinessCheck{"postgres": ok, "redis": ok},
			wantStatus: http.StatusOK,
		},
		{
			name:       "redis down",
			checks:     map[string]readinessCheck{"postgres": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"redis"},
		},
		{
			name:       "everything down",
			checks:     map[string]readinessCheck{"postgres": down, "zeebe": down},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"postgres", "zeebe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, tt.checks, http.MethodGet, "/ready")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantFailed == nil {
				assert.Equal(t, "ready", body["status"])
				return
			}
			assert.Equal(t, "not_ready", body["status"])
			failed, ok := body["failed"].(map[string]interface{})
			require.True(t, ok)
			assert.Len(t, failed, len(tt.wantFailed))
			for _, name := range tt.wantFailed {
				assert.Contains(t, failed, name)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ==========================
// Schedules
// ==========================

type countingReloader struct{ calls int32 }

func (r *countingReloader) Reload() error {
	atomic.AddInt32(&r.calls, 1)
	return nil
}

type countingRefresher struct{ calls int32 }

func (r *countingRefresher) Refresh(context.Context) error {
	atomic.AddInt32(&r.calls, 1)
	return nil
}

func TestBuildSchedules(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.EvaluationConfig
		wantEntries int
		wantErr     string
	}{
		{
			name: "policy file and bank cache",
			cfg: config.EvaluationConfig{
				PolicyPath:               "configs/underwriting_policy.json",
				PolicyReloadSchedule:     "@every 1m",
				BankCacheRefreshSchedule: "@every 5m",
			},
			wantEntries: 2,
		},
		{
			name:        "built-in policy skips reload",
			cfg:         config.EvaluationConfig{BankCacheRefreshSchedule: "@every 5m"},
			wantEntries: 1,
		},
		{
			name: "invalid policy schedule",
			cfg: config.EvaluationConfig{
				PolicyPath:               "configs/underwriting_policy.json",
				PolicyReloadSchedule:     "every minute",
				BankCacheRefreshSchedule: "@every 5m",
			},
			wantErr: "policy reload schedule",
		},
		{
			name:    "invalid bank schedule",
			cfg:     config.EvaluationConfig{BankCacheRefreshSchedule: "sometimes"},
			wantErr: "bank cache refresh schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := buildSchedules(tt.cfg, &countingReloader{}, &countingRefresher{}, zap.NewNop())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, c.Entries(), tt.wantEntries)
		})
	}
}

func TestScheduledJobsRun(t *testing.T) {
	policies := &countingReloader{}
	banks := &countingRefresher{}
	c, err := buildSchedules(config.EvaluationConfig{
		PolicyPath:               "configs/underwriting_policy.json",
		PolicyReloadSchedule:     "@every 1m",
		BankCacheRefreshSchedule: "@every 5m",
	}, policies, banks, zap.NewNop())
	require.NoError(t, err)

	for _, entry := range c.Entries() {
		entry.Job.Run()
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&policies.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&banks.calls))
}
