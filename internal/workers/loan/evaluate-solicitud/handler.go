package evaluatesolicitud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/common/validation"
	"credit-evaluation-workers/internal/loan/evaluation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "evaluate-solicitud"
)

// Evaluator runs one solicitud evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, solicitudID int64) (*evaluation.Result, error)
}

type Handler struct {
	config    *Config
	evaluator Evaluator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, evaluator Evaluator, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		evaluator: evaluator,
		errors:    apperrors.NewErrorHandler(scoped),
		logger:    scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	result, err := validation.ValidateJSON(h.config.InputSchema, variables)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("%v", result.Errors))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	if input.SolicitudID <= 0 {
		return nil, apperrors.NewInvalidInputError("solicitudId must be a positive integer")
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	result, err := h.evaluator.Evaluate(ctx, input.SolicitudID)
	if err != nil {
		return nil, ToStandardError(input.SolicitudID, err)
	}

	output := &Output{
		Evaluation:    result,
		EvaluationID:  result.EvaluationID,
		PaymentStatus: result.PaymentStatus,
	}
	if d := result.AutoFinancing; d != nil {
		output.RecommendReassign = d.RecommendReassign
		output.RecommendedUserID = d.RecommendedUserID
		output.DeniedBanks = d.DeniedBanks
		output.ReassignReason = d.Reason
	}
	return output, nil
}

// ToStandardError maps a failed evaluation to the job error taxonomy. The
// status hint always travels in the error metadata.
func ToStandardError(solicitudID int64, err error) *apperrors.StandardError {
	hint := evaluation.StatusHintOf(err)

	var stdErr *apperrors.StandardError
	switch {
	case errors.Is(err, evaluation.ErrSolicitudNotFound):
		stdErr = apperrors.NewSolicitudNotFoundError(solicitudID)
	case errors.Is(err, evaluation.ErrClientNotFound):
		stdErr = apperrors.NewClientNotFoundError(solicitudID)
	case errors.Is(err, evaluation.ErrNoBureauReports):
		stdErr = apperrors.NewNoBureauReportsError(solicitudID)
	default:
		stdErr = apperrors.Normalize(err)
	}
	return stdErr.WithMetadata("statusHint", string(hint))
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

func (h *Handler) ParseInput(variables string) (*Input, error) {
	return h.parseInput(variables)
}
