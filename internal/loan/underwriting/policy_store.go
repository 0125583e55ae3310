package underwriting

import (
	"fmt"
	"os"
	"sync/atomic"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
)

// PolicyStore holds the active policy and swaps it on reload. Readers never
// block; a failed reload keeps the previous policy.
type PolicyStore struct {
	path    string
	current atomic.Pointer[Policy]
	logger  logger.Logger
}

// NewPolicyStore starts from the built-in policy and, when path is set,
// replaces it with the file's contents.
func NewPolicyStore(path string, log logger.Logger) (*PolicyStore, error) {
	s := &PolicyStore{
		path:   path,
		logger: log.WithFields(map[string]interface{}{"component": "policy_store"}),
	}
	s.current.Store(DefaultPolicy())

	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PolicyStore) Current() *Policy {
	return s.current.Load()
}

// Reload re-reads the policy file. Without a file it is a no-op.
func (s *PolicyStore) Reload() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		metrics.PolicyReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("read policy %s: %w", s.path, err)
	}

	p, err := ParsePolicy(data)
	if err != nil {
		metrics.PolicyReloads.WithLabelValues("invalid").Inc()
		s.logger.Error("policy rejected, keeping previous version", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return apperrors.NewPolicyInvalidError(err.Error())
	}

	previous := s.current.Swap(p)
	metrics.PolicyReloads.WithLabelValues("ok").Inc()
	if previous == nil || previous.Version != p.Version {
		s.logger.Info("underwriting policy loaded", map[string]interface{}{
			"path":    s.path,
			"version": p.Version,
			"banks":   len(p.Banks),
		})
	}
	return nil
}
