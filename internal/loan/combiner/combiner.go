package combiner

import (
	"context"

	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/loan/creditdata"
	"credit-evaluation-workers/internal/loan/offers"
	"credit-evaluation-workers/internal/loan/underwriting"
	"credit-evaluation-workers/internal/models"

	"github.com/sourcegraph/conc/pool"
)

// ZoneEligibility decides whether a bank lends in the client's zone.
type ZoneEligibility interface {
	Eligibility(ctx context.Context, bank models.Bank, location models.Location) (underwriting.Verdict, error)
}

// NoZoneLimits answers N/A for every bank until zone limits are loaded.
type NoZoneLimits struct{}

func (NoZoneLimits) Eligibility(ctx context.Context, bank models.Bank, location models.Location) (underwriting.Verdict, error) {
	return underwriting.NA, nil
}

// Input is everything the combiner needs for one evaluation.
type Input struct {
	Banks      []models.Bank
	BestOffers map[int64]offers.BestOffer
	Profile    *creditdata.CreditProfile
	Addresses  []models.AddressRow
	Raw        *models.RawReport
	HasReport  bool
	Client     *models.Client
	Solicitud  *models.Solicitud
}

type Combiner struct {
	engine          *underwriting.Engine
	zones           ZoneEligibility
	zoneConcurrency int
	logger          logger.Logger
}

func New(engine *underwriting.Engine, zones ZoneEligibility, zoneConcurrency int, log logger.Logger) *Combiner {
	if zones == nil {
		zones = NoZoneLimits{}
	}
	if zoneConcurrency <= 0 {
		zoneConcurrency = 4
	}
	return &Combiner{
		engine:          engine,
		zones:           zones,
		zoneConcurrency: zoneConcurrency,
		logger:          log.WithFields(map[string]interface{}{"component": "bank_combiner"}),
	}
}

// Combine produces one record per catalog bank, whether or not the bank has
// an eligible offer. Only zone lookups perform I/O; rule evaluation is pure.
func (c *Combiner) Combine(ctx context.Context, in Input) ([]BankEvaluation, error) {
	zones, err := c.lookupZones(ctx, in)
	if err != nil {
		return nil, err
	}

	facts := BuildFacts(in)
	score := facts.ScoreBC

	out := make([]BankEvaluation, 0, len(in.Banks))
	for i, bank := range in.Banks {
		b := newRecord(bank).
			withAssessment(c.engine.Assess(bank.Code(), facts)).
			withScore(score).
			withZone(zones[i])
		if best, ok := in.BestOffers[bank.ID]; ok {
			offer := best
			b = b.withOffer(&offer)
		}

		rec := b.build()
		for category, v := range rec.Verdicts() {
			metrics.VerdictsTotal.WithLabelValues(category, v.Kind().String()).Inc()
		}
		out = append(out, rec)
	}

	c.logger.Debug("banks combined", map[string]interface{}{
		"banks":      len(out),
		"withOffers": len(in.BestOffers),
		"hasProfile": facts.HasProfile,
	})
	return out, nil
}

func (c *Combiner) lookupZones(ctx context.Context, in Input) ([]underwriting.Verdict, error) {
	var location models.Location
	if in.Client != nil {
		location = in.Client.Location()
	}

	results := make([]underwriting.Verdict, len(in.Banks))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(c.zoneConcurrency)
	for i, bank := range in.Banks {
		i, bank := i, bank
		p.Go(func(ctx context.Context) error {
			v, err := c.zones.Eligibility(ctx, bank, location)
			if err != nil {
				c.logger.Warn("zone eligibility lookup failed", map[string]interface{}{
					"bankId": bank.ID,
					"error":  err.Error(),
				})
				v = underwriting.NA
			}
			results[i] = v
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// BuildFacts flattens the applicant data into rule inputs.
func BuildFacts(in Input) underwriting.Facts {
	f := underwriting.Facts{
		HasReport:    in.HasReport,
		HasAddresses: len(in.Addresses) > 0,
	}
	if in.Client != nil {
		f.BirthDate = in.Client.BirthDate
	}
	if in.Solicitud != nil && len(in.Solicitud.IncomeSourceType) > 0 {
		f.IncomeType = in.Solicitud.IncomeSourceType[0]
	}

	var accounts []models.RawAccount
	var rawScores []models.RawScore
	if in.Raw != nil {
		accounts = in.Raw.Response.Cuentas
		rawScores = in.Raw.Response.ScoreBuroCredito
	}

	if p := in.Profile; p != nil {
		f.HasProfile = true
		f.Inquiries = p.Inquiries
		f.OldestAccountOpened = p.OldestAccountOpened
		f.Writeoffs = p.Writeoffs
		f.WorstPaymentCode = p.WorstPaymentCode()
		f.IncomeEstimate = p.IncomeEstimate
		f.SummedPayments = underwriting.SumPayments(accounts)
		f.Figures = underwriting.ComputeExtendedFigures(accounts)
		if p.ScoreBC != nil && *p.ScoreBC != 0 {
			f.ScoreBC = p.ScoreBC
		}
	}
	if f.ScoreBC == nil {
		f.ScoreBC = creditdata.BureauScore(rawScores)
	}
	return f
}
