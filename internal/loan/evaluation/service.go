package evaluation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/loan/combiner"
	"credit-evaluation-workers/internal/loan/creditdata"
	"credit-evaluation-workers/internal/loan/offers"
	"credit-evaluation-workers/internal/loan/reassignment"
	"credit-evaluation-workers/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "credit-evaluation-workers/evaluation"

// Store reads the applicant side of an evaluation. Missing rows are
// returned as nil without error.
type Store interface {
	Solicitud(ctx context.Context, id int64) (*models.Solicitud, error)
	Client(ctx context.Context, id int64) (*models.Client, error)
	BureauReports(ctx context.Context, clientID int64) ([]models.BureauReport, error)
}

type BankCatalog interface {
	ActiveBanks(ctx context.Context) ([]models.Bank, error)
}

type OfferFetcher interface {
	FetchValid(ctx context.Context, p offers.Params) (*offers.FilterResult, error)
}

type ProfileExtractor interface {
	Extract(ctx context.Context, reports []models.BureauReport) (*creditdata.CreditProfile, []models.AddressRow, error)
}

type BankCombiner interface {
	Combine(ctx context.Context, in combiner.Input) ([]combiner.BankEvaluation, error)
}

type Reassigner interface {
	Decide(ctx context.Context, solicitudID int64, banks []combiner.BankEvaluation) (*reassignment.Decision, error)
}

// AuditSink receives every successful result.
type AuditSink interface {
	IndexEvaluation(ctx context.Context, result *Result) error
}

type Deps struct {
	Store        Store
	Banks        BankCatalog
	Offers       OfferFetcher
	Extractor    ProfileExtractor
	Combiner     BankCombiner
	Reassignment Reassigner
	Audit        AuditSink
	Logger       logger.Logger
	Now          func() time.Time
}

// Service runs the evaluation of one solicitud. It only reads; persisting the
// result is up to the caller.
type Service struct {
	deps   Deps
	tracer trace.Tracer
	logger logger.Logger
}

func NewService(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		deps:   deps,
		tracer: otel.Tracer(tracerName),
		logger: deps.Logger.WithFields(map[string]interface{}{"component": "evaluation"}),
	}
}

// applicant is what the load states hand to the compute states.
type applicant struct {
	solicitud *models.Solicitud
	client    *models.Client
	banks     []models.Bank
}

type creditSide struct {
	reports   []models.BureauReport
	profile   *creditdata.CreditProfile
	addresses []models.AddressRow
	raw       *models.RawReport
}

// Evaluate runs the whole evaluation. Failures are returned as *Error.
func (s *Service) Evaluate(ctx context.Context, solicitudID int64) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "Evaluate", trace.WithAttributes(attribute.Int64("solicitud.id", solicitudID)))
	defer span.End()

	log := s.logger.WithFields(map[string]interface{}{"solicitudId": solicitudID})
	log.Info("starting evaluation", nil)

	result, err := s.evaluate(ctx, solicitudID, log)
	if err != nil {
		hint := StatusHintOf(err)
		metrics.EvaluationsTotal.WithLabelValues(string(hint)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(hint))
		log.Warn("evaluation failed", map[string]interface{}{
			"statusHint": string(hint),
			"error":      err.Error(),
		})
		return nil, err
	}

	metrics.EvaluationsTotal.WithLabelValues("success").Inc()
	log.Info("solicitud evaluated", map[string]interface{}{
		"evaluationId":      result.EvaluationID,
		"banks":             len(result.Banks),
		"recommendReassign": result.AutoFinancing != nil && result.AutoFinancing.RecommendReassign,
	})

	if s.deps.Audit != nil {
		if err := s.deps.Audit.IndexEvaluation(ctx, result); err != nil {
			log.Warn("failed to index evaluation", map[string]interface{}{"error": err.Error()})
		}
	}
	return result, nil
}

func (s *Service) evaluate(ctx context.Context, solicitudID int64, log logger.Logger) (*Result, error) {
	app, err := s.load(ctx, solicitudID)
	if err != nil {
		return nil, err
	}

	var (
		best   map[int64]offers.BestOffer
		credit *creditSide
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		best, err = s.fetchOffers(ctx, app, log)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		credit, err = s.extractProfile(ctx, app, log)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, serverError(err)
	}

	banks, err := traced(ctx, s.tracer, "CombineBanks", func(ctx context.Context) ([]combiner.BankEvaluation, error) {
		return s.deps.Combiner.Combine(ctx, combiner.Input{
			Banks:      app.banks,
			BestOffers: best,
			Profile:    credit.profile,
			Addresses:  credit.addresses,
			Raw:        credit.raw,
			HasReport:  len(credit.reports) > 0,
			Client:     app.client,
			Solicitud:  app.solicitud,
		})
	})
	if err != nil {
		return nil, serverError(fmt.Errorf("combine banks: %w", err))
	}

	decision, err := traced(ctx, s.tracer, "DecideReassignment", func(ctx context.Context) (*reassignment.Decision, error) {
		return s.deps.Reassignment.Decide(ctx, solicitudID, banks)
	})
	if err != nil {
		return nil, serverError(fmt.Errorf("decide reassignment: %w", err))
	}

	return s.envelope(app, credit, banks, decision), nil
}

// load covers LoadApplication and LoadClient plus the bank catalog.
func (s *Service) load(ctx context.Context, solicitudID int64) (*applicant, error) {
	solicitud, err := traced(ctx, s.tracer, "LoadApplication", func(ctx context.Context) (*models.Solicitud, error) {
		return s.deps.Store.Solicitud(ctx, solicitudID)
	})
	if err != nil {
		return nil, serverError(fmt.Errorf("load solicitud %d: %w", solicitudID, err))
	}
	if solicitud == nil {
		return nil, notFound(fmt.Errorf("%w: %d", ErrSolicitudNotFound, solicitudID))
	}
	if solicitud.ClienteID == nil {
		return nil, notFound(fmt.Errorf("%w: %d", ErrClientNotFound, solicitudID))
	}

	client, err := traced(ctx, s.tracer, "LoadClient", func(ctx context.Context) (*models.Client, error) {
		return s.deps.Store.Client(ctx, *solicitud.ClienteID)
	})
	if err != nil {
		return nil, serverError(fmt.Errorf("load client %d: %w", *solicitud.ClienteID, err))
	}
	if client == nil {
		return nil, notFound(fmt.Errorf("%w: %d", ErrClientNotFound, solicitudID))
	}

	banks, err := s.deps.Banks.ActiveBanks(ctx)
	if err != nil {
		return nil, serverError(fmt.Errorf("load bank catalog: %w", err))
	}
	return &applicant{solicitud: solicitud, client: client, banks: banks}, nil
}

// fetchOffers covers ComputeAmountToFinance, FetchOffers and SelectBestOffers.
// A missing term or invoice value skips the offer side entirely.
func (s *Service) fetchOffers(ctx context.Context, app *applicant, log logger.Logger) (map[int64]offers.BestOffer, error) {
	ctx, span := s.tracer.Start(ctx, "FetchOffers")
	defer span.End()

	sol := app.solicitud
	best := map[int64]offers.BestOffer{}

	term := ParseTermMonths(sol.FinanceTermMonths)
	if term == 0 {
		log.Warn("finance term missing or invalid, skipping offers", map[string]interface{}{
			"financeTermMonths": sol.FinanceTermMonths,
		})
		return best, nil
	}
	invoice := valueOf(sol.InvoiceValue)
	if invoice == 0 {
		log.Warn("invoice value is null or zero, skipping offers", nil)
		return best, nil
	}

	requestDate := sol.CreatedAt
	if requestDate.IsZero() {
		requestDate = s.deps.Now()
	}
	bankIDs := make([]int64, 0, len(app.banks))
	for _, b := range app.banks {
		bankIDs = append(bankIDs, b.ID)
	}

	filtered, err := s.deps.Offers.FetchValid(ctx, offers.Params{
		InvoiceValue:   invoice,
		RequestDate:    requestDate,
		BankIDs:        bankIDs,
		LoanTermMonths: term,
		DownPayment:    valueOf(sol.DownPaymentPercentage),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch offers: %w", err)
	}

	_, selectSpan := s.tracer.Start(ctx, "SelectBestOffers")
	best, warnings := offers.SelectBest(filtered.ValidOffers, term)
	selectSpan.End()
	for _, w := range warnings {
		metrics.OfferIntegrityWarnings.WithLabelValues("interest_term").Inc()
		log.Warn("interest term table unreadable, using average rate", map[string]interface{}{"error": w.Error()})
	}

	span.SetAttributes(attribute.Int("offers.valid", len(filtered.ValidOffers)), attribute.Int("offers.banks", len(best)))
	log.Info("best offers selected", map[string]interface{}{
		"validOffers":    len(filtered.ValidOffers),
		"banks":          len(best),
		"loanTermMonths": term,
	})
	return best, nil
}

// extractProfile covers ExtractCreditProfile. No reports at all is fatal;
// an incomplete profile is not.
func (s *Service) extractProfile(ctx context.Context, app *applicant, log logger.Logger) (*creditSide, error) {
	ctx, span := s.tracer.Start(ctx, "ExtractCreditProfile")
	defer span.End()

	clientID := app.client.ID
	reports, err := s.deps.Store.BureauReports(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load bureau reports for client %d: %w", clientID, err)
	}
	if len(reports) == 0 {
		return nil, badRequest(fmt.Errorf("%w: %d", ErrNoBureauReports, clientID))
	}
	reports = creditdata.NewestFirst(reports)

	side := &creditSide{reports: reports}

	raw, skipped := creditdata.FirstRawReport(reports)
	for _, e := range skipped {
		log.Warn("raw bureau report unreadable, trying older one", map[string]interface{}{"error": e.Error()})
	}
	if raw == nil {
		log.Warn("no raw query report among client reports", map[string]interface{}{"clientId": clientID})
	}
	side.raw = raw

	side.profile, side.addresses, err = s.deps.Extractor.Extract(ctx, reports)
	if err != nil {
		return nil, err
	}
	if side.profile == nil {
		log.Warn("credit report data incomplete or missing", map[string]interface{}{"clientId": clientID})
	}
	span.SetAttributes(attribute.Int("reports", len(reports)), attribute.Bool("profile", side.profile != nil))
	return side, nil
}

func (s *Service) envelope(app *applicant, credit *creditSide, banks []combiner.BankEvaluation, decision *reassignment.Decision) *Result {
	sol := app.solicitud
	r := &Result{
		EvaluationID:            uuid.New().String(),
		SolicitudID:             sol.ID,
		EvaluatedAt:             s.deps.Now().UTC(),
		Success:                 true,
		Banks:                   banks,
		IncomeEstimate:          notAvailable(),
		PaymentCapacityByBC:     notAvailable(),
		PaymentCapacityByClient: figureOf(nil),
		PaymentStatus:           creditdata.StatusNoAccounts,
		AutoFinancing:           decision,
	}

	if p := credit.profile; p != nil {
		if p.IncomeEstimate != nil {
			v := decimal.NewFromFloat(*p.IncomeEstimate)
			r.IncomeEstimate = figureOf(&v)
		} else {
			r.IncomeEstimate = figureOf(nil)
		}
		capacity := decimal.Zero
		if p.CapacityComputed {
			capacity = p.PaymentCapacity
		}
		r.PaymentCapacityByBC = figureOf(&capacity)
	}

	if credit.raw != nil && len(credit.raw.Response.Cuentas) > 0 {
		r.PaymentStatus = creditdata.PaymentStatus(credit.raw.Response.Cuentas).Status
	}

	if len(sol.IncomeProof) > 0 {
		proof := sol.IncomeProof[0]
		r.IncomeProof = &proof
	}

	if valueOf(sol.MonthlyIncome) != 0 && valueOf(sol.DebtPayFromIncome) != 0 {
		v := decimal.NewFromFloat(*sol.MonthlyIncome).Sub(decimal.NewFromFloat(*sol.DebtPayFromIncome))
		r.PaymentCapacityByClient = figureOf(&v)
	}
	return r
}

// traced runs one state of the evaluation inside its own span.
func traced[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

var digits = regexp.MustCompile(`\d+`)

// ParseTermMonths reads a free-text term such as "36" or "36 Meses (3 años)".
// Zero means no usable term.
func ParseTermMonths(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	match := digits.FindString(s)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

func valueOf(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
