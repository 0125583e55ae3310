package fetchfinancingoffers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/common/validation"
	"credit-evaluation-workers/internal/loan/offers"
	"credit-evaluation-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "fetch-financing-offers"
)

type OfferFetcher interface {
	FetchValid(ctx context.Context, p offers.Params) (*offers.FilterResult, error)
}

type BankCatalog interface {
	ActiveBanks(ctx context.Context) ([]models.Bank, error)
}

type Handler struct {
	config *Config
	offers OfferFetcher
	banks  BankCatalog
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, fetcher OfferFetcher, banks BankCatalog, log logger.Logger) *Handler {
	if config.Now == nil {
		config.Now = time.Now
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		offers: fetcher,
		banks:  banks,
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
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}
	if input.InvoiceValue <= 0 {
		return nil, apperrors.NewInvalidInputError("invoiceValue must be greater than zero")
	}
	if input.DownPayment < 0 || input.DownPayment >= 1 {
		return nil, apperrors.NewInvalidInputError("downPayment must be a fraction in [0, 1)")
	}
	if input.FinanceTermMonths <= 0 {
		return nil, apperrors.NewInvalidInputError("financeTermMonths must be greater than zero")
	}

	requestDate := h.config.Now()
	if input.RequestDate != "" {
		parsed, err := time.Parse("2006-01-02", input.RequestDate)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("requestDate: %v", err))
		}
		requestDate = parsed
	}

	bankIDs := input.BankIDs
	if len(bankIDs) == 0 {
		banks, err := h.banks.ActiveBanks(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range banks {
			bankIDs = append(bankIDs, b.ID)
		}
	}

	result, err := h.offers.FetchValid(ctx, offers.Params{
		InvoiceValue:         input.InvoiceValue,
		RequestDate:          requestDate,
		BankIDs:              bankIDs,
		LoanTermMonths:       input.FinanceTermMonths,
		DownPayment:          input.DownPayment,
		MotorcycleID:         input.MotorcycleID,
		BrandName:            input.BrandName,
		ValidationOffersOnly: input.ValidationOffersOnly,
		WithRestrictions:     input.WithRestrictions,
	})
	if err != nil {
		return nil, err
	}

	best, warnings := offers.SelectBest(result.ValidOffers, input.FinanceTermMonths)
	for _, w := range warnings {
		metrics.OfferIntegrityWarnings.WithLabelValues("interest_term").Inc()
		h.logger.Warn("interest term table ignored", map[string]interface{}{
			"error": w.Error(),
		})
	}

	output := &Output{
		ValidOffers:    result.ValidOffers,
		OptionalOffers: result.OptionalOffers,
		BestOffers:     best,
	}
	for _, s := range result.Skipped {
		output.SkippedOffers = append(output.SkippedOffers, s.OfferID)
	}

	h.logger.Info("offers fetched", map[string]interface{}{
		"valid":    len(output.ValidOffers),
		"optional": len(output.OptionalOffers),
		"banks":    len(output.BestOffers),
	})
	return output, nil
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
