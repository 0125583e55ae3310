package notifyreassignment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/common/validation"
	"credit-evaluation-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "notify-reassignment"
)

type AdvisorLookup interface {
	Advisor(ctx context.Context, id int64) (*models.Advisor, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Handler struct {
	config   *Config
	advisors AdvisorLookup
	email    EmailSender
	sms      SMSSender
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

// NewHandler builds the handler. A nil sender disables that channel.
func NewHandler(config *Config, advisors AdvisorLookup, email EmailSender, sms SMSSender, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		advisors: advisors,
		email:    email,
		sms:      sms,
		errors:   apperrors.NewErrorHandler(scoped),
		logger:   scoped,
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
	if err != nil {
		h.fail(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if !result.Valid {
		h.fail(ctx, client, job, apperrors.NewInvalidInputError(fmt.Sprintf("%v", result.Errors)))
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
	if input == nil || input.RecommendedUserID <= 0 {
		return nil, apperrors.NewInvalidInputError("recommendedUserId is required")
	}

	advisor, err := h.advisors.Advisor(ctx, input.RecommendedUserID)
	if err != nil {
		return nil, err
	}
	if advisor == nil {
		return nil, apperrors.NewAdvisorUnavailableError(fmt.Sprintf("advisorId: %d", input.RecommendedUserID))
	}

	output := &Output{MessageIDs: []string{}}

	if h.config.EmailEnabled && h.email != nil && advisor.Email != "" {
		id, err := h.email.SendEmail(ctx, advisor.Email, emailSubject(input), emailBody(advisor, input))
		if err != nil {
			return nil, apperrors.NewNotificationSendFailedError("email", err)
		}
		output.EmailSent = true
		output.MessageIDs = append(output.MessageIDs, id)
	}

	if h.config.SMSEnabled && h.sms != nil && advisor.Phone != "" {
		id, err := h.sms.SendSMS(ctx, advisor.Phone, smsBody(input))
		if err != nil {
			// The email already went out; a retry would resend it.
			h.logger.Warn("sms delivery failed", map[string]interface{}{
				"advisorId": advisor.ID,
				"error":     err.Error(),
			})
		} else {
			output.SMSSent = true
			output.MessageIDs = append(output.MessageIDs, id)
		}
	}

	h.logger.Info("reassignment notification sent", map[string]interface{}{
		"solicitudId": input.SolicitudID,
		"advisorId":   advisor.ID,
		"emailSent":   output.EmailSent,
		"smsSent":     output.SMSSent,
	})
	return output, nil
}

func emailSubject(input *Input) string {
	return fmt.Sprintf("Solicitud %d recomendada para reasignación", input.SolicitudID)
}

func emailBody(advisor *models.Advisor, input *Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", advisor.FullName())
	fmt.Fprintf(&b, "La solicitud %d fue recomendada para financiamiento automático.\n", input.SolicitudID)
	if len(input.DeniedBanks) > 0 {
		fmt.Fprintf(&b, "Bancos rechazados: %s\n", strings.Join(input.DeniedBanks, ", "))
	}
	if input.Reason != "" {
		fmt.Fprintf(&b, "Motivo: %s\n", input.Reason)
	}
	return b.String()
}

func smsBody(input *Input) string {
	return fmt.Sprintf("Solicitud %d asignada para financiamiento automático.", input.SolicitudID)
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
