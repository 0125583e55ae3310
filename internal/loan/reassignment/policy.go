package reassignment

import (
	"context"
	"fmt"
	"strings"

	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/loan/combiner"
	"credit-evaluation-workers/internal/models"
)

const (
	MessageNoTargets    = "No target banks found for evaluation"
	MessageNotEligible  = "Solicitud does not meet criteria for auto financing"
	MessageRecommended  = "Solicitud meets criteria for auto financing assignment due to bad credit score and history"
	messageNoRole       = "No %s role available"
	messageNoAdvisors   = "No %s advisors available"
	reasonAllDeniedTmpl = "All target banks (%s) have been denied due to bad credit score and history"
)

// AdvisorSource looks up the advisor that would be picked next, without
// claiming it.
type AdvisorSource interface {
	RoleByName(ctx context.Context, name string) (*models.Role, error)
	PeekNextAdvisor(ctx context.Context, roleID int64) (*models.Advisor, error)
}

// Decision is the reassignment recommendation. The engine never assigns, so
// Assigned is always false.
type Decision struct {
	Assigned            bool     `json:"assigned"`
	Message             string   `json:"message"`
	RecommendReassign   bool     `json:"recommend_reassign"`
	RecommendedUserID   *int64   `json:"recommended_user_id,omitempty"`
	RecommendedUserName string   `json:"recommended_user_name,omitempty"`
	Reason              string   `json:"reason,omitempty"`
	DeniedBanks         []string `json:"denied_banks,omitempty"`
}

type Policy struct {
	targets  map[int64]struct{}
	role     string
	advisors AdvisorSource
	logger   logger.Logger
}

func NewPolicy(targetBankIDs []int64, role string, advisors AdvisorSource, log logger.Logger) *Policy {
	targets := make(map[int64]struct{}, len(targetBankIDs))
	for _, id := range targetBankIDs {
		targets[id] = struct{}{}
	}
	return &Policy{
		targets:  targets,
		role:     role,
		advisors: advisors,
		logger:   log.WithFields(map[string]interface{}{"component": "reassignment_policy"}),
	}
}

// DeniedBanks returns the target banks present in banks and whether every one
// of them is denied. A bank is denied when its payment behavior or its
// write-off verdict is Rechazado.
func DeniedBanks(banks []combiner.BankEvaluation, targets map[int64]struct{}) (denied []combiner.BankEvaluation, present int, all bool) {
	for _, b := range banks {
		if _, ok := targets[b.BankID]; !ok {
			continue
		}
		present++
		if b.ComportamientoMOP1.IsRejected() || b.Quitas.IsRejected() {
			denied = append(denied, b)
		}
	}
	return denied, present, present > 0 && len(denied) == present
}

// Decide recommends moving the solicitud to the auto-financing channel when
// every target bank denied it.
func (p *Policy) Decide(ctx context.Context, solicitudID int64, banks []combiner.BankEvaluation) (*Decision, error) {
	log := p.logger.WithFields(map[string]interface{}{"solicitudId": solicitudID})

	denied, present, all := DeniedBanks(banks, p.targets)
	if present == 0 {
		log.Warn("no target banks in evaluation", nil)
		return &Decision{Message: MessageNoTargets}, nil
	}

	log.Info("target banks evaluated", map[string]interface{}{
		"targets": present,
		"denied":  len(denied),
	})
	if !all {
		return &Decision{Message: MessageNotEligible}, nil
	}

	role, err := p.advisors.RoleByName(ctx, p.role)
	if err != nil {
		return nil, fmt.Errorf("load role %s: %w", p.role, err)
	}
	if role == nil {
		log.Warn("reassignment role not found", map[string]interface{}{"role": p.role})
		return &Decision{Message: fmt.Sprintf(messageNoRole, p.role)}, nil
	}

	advisor, err := p.advisors.PeekNextAdvisor(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("load next advisor for role %s: %w", p.role, err)
	}
	if advisor == nil {
		log.Warn("no advisors for reassignment role", map[string]interface{}{"role": p.role})
		return &Decision{Message: fmt.Sprintf(messageNoAdvisors, p.role)}, nil
	}

	names := make([]string, 0, len(denied))
	for _, b := range denied {
		names = append(names, b.BankName)
	}

	metrics.ReassignmentRecommendations.Inc()
	log.Info("reassignment recommended", map[string]interface{}{
		"advisorId":   advisor.ID,
		"deniedBanks": names,
	})

	id := advisor.ID
	return &Decision{
		Message:             MessageRecommended,
		RecommendReassign:   true,
		RecommendedUserID:   &id,
		RecommendedUserName: advisor.FullName(),
		Reason:              fmt.Sprintf(reasonAllDeniedTmpl, strings.Join(names, ", ")),
		DeniedBanks:         names,
	}, nil
}
