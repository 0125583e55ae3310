package assignnextadvisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/common/validation"
	"credit-evaluation-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "assign-next-advisor"
)

// AdvisorStore is the rotation side of the loan store.
type AdvisorStore interface {
	RoleByName(ctx context.Context, name string) (*models.Role, error)
	RecentAdvisorForClient(ctx context.Context, clientID int64, since time.Time) (*models.Advisor, error)
	ClaimNextAdvisor(ctx context.Context, roleID int64, storeID *int64) (*models.Advisor, error)
	ClaimAdvisor(ctx context.Context, id int64) (*models.Advisor, error)
}

type Handler struct {
	config *Config
	store  AdvisorStore
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, store AdvisorStore, log logger.Logger) *Handler {
	if config.Now == nil {
		config.Now = time.Now
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  store,
		errors: apperrors.NewErrorHandler(scoped),
		logger: scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	result, err := validation.ValidateJSON(h.config.InputSchema, job.Variables)
	if err != nil || !result.Valid {
		details := fmt.Sprintf("%v", err)
		if result != nil {
			details = fmt.Sprintf("%v", result.Errors)
		}
		h.fail(ctx, client, job, apperrors.NewInvalidInputError(details))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	if input.Holding != "" {
		return h.byHolding(ctx, input.Holding)
	}

	if input.ClientID != nil && input.StoreID == nil {
		since := h.config.Now().Add(-h.config.ReuseWindow)
		advisor, err := h.store.RecentAdvisorForClient(ctx, *input.ClientID, since)
		if err != nil {
			return nil, err
		}
		if advisor != nil {
			h.logger.Info("reusing advisor from recent solicitud", map[string]interface{}{
				"clientId":  *input.ClientID,
				"advisorId": advisor.ID,
			})
			out := outputFor(advisor)
			out.Reused = true
			return out, nil
		}
	}

	roleName := input.Role
	if roleName == "" {
		roleName = h.config.FinvaRole
	}
	role, err := h.store.RoleByName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, apperrors.NewRoleNotFoundError(roleName)
	}

	advisor, err := h.store.ClaimNextAdvisor(ctx, role.ID, input.StoreID)
	if err != nil {
		return nil, err
	}
	if advisor != nil {
		return outputFor(advisor), nil
	}

	if input.StoreID == nil {
		return nil, apperrors.NewAdvisorUnavailableError(fmt.Sprintf("role: %s", roleName))
	}
	return h.fallback(ctx, roleName, *input.StoreID)
}

func (h *Handler) byHolding(ctx context.Context, holding string) (*Output, error) {
	roleID, ok := h.config.holdingRole(holding)
	if !ok {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unsupported holding: %s", holding))
	}

	advisor, err := h.store.ClaimNextAdvisor(ctx, roleID, nil)
	if err != nil {
		return nil, err
	}
	if advisor == nil {
		return nil, apperrors.NewAdvisorUnavailableError(fmt.Sprintf("holding: %s", holding))
	}
	return outputFor(advisor), nil
}

func (h *Handler) fallback(ctx context.Context, roleName string, storeID int64) (*Output, error) {
	if h.config.FallbackAdvisorID <= 0 {
		return nil, apperrors.NewAdvisorUnavailableError(fmt.Sprintf("role: %s, storeId: %d", roleName, storeID))
	}

	advisor, err := h.store.ClaimAdvisor(ctx, h.config.FallbackAdvisorID)
	if err != nil {
		return nil, err
	}
	if advisor == nil {
		return nil, apperrors.NewAdvisorUnavailableError(fmt.Sprintf(
			"role: %s, storeId: %d, fallback advisor %d not found", roleName, storeID, h.config.FallbackAdvisorID))
	}

	h.logger.Warn("no advisor linked to store, using fallback advisor", map[string]interface{}{
		"storeId":   storeID,
		"advisorId": advisor.ID,
	})
	out := outputFor(advisor)
	out.Fallback = true
	return out, nil
}

func outputFor(a *models.Advisor) *Output {
	return &Output{
		AdvisorID:    a.ID,
		AdvisorName:  a.FullName(),
		AdvisorEmail: a.Email,
		RoleID:       a.RoleID,
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
