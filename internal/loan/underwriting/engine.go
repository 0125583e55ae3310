package underwriting

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category names used for metrics labels and logging.
const (
	CategoryScore           = "score"
	CategoryInquiries       = "inquiries"
	CategoryHistoryAge      = "history_age"
	CategoryAge             = "age"
	CategoryPaymentBehavior = "payment_behavior"
	CategoryWriteoffs       = "writeoffs"
	CategoryResidential     = "residential"
	CategoryBureauGate      = "bureau_gate"
	CategoryIncomeRatio     = "income_ratio"
)

// PolicySource hands out the policy currently in force.
type PolicySource interface {
	Current() *Policy
}

// StaticPolicy is a PolicySource that never changes.
type StaticPolicy struct{ P *Policy }

func (s StaticPolicy) Current() *Policy { return s.P }

// Engine interprets the policy table. It performs no I/O and every method is
// total over nil facts.
type Engine struct {
	policies PolicySource
	now      func() time.Time
}

type Option func(*Engine)

// WithClock fixes the reference time used for age and history calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(policies PolicySource, opts ...Option) *Engine {
	e := &Engine{policies: policies, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capacity is either a computed monthly amount or a verdict explaining why
// there is none.
type Capacity struct {
	Amount  *decimal.Decimal
	Verdict Verdict
}

func (c Capacity) MarshalJSON() ([]byte, error) {
	if c.Amount != nil {
		return []byte(`"` + c.Amount.String() + `"`), nil
	}
	return c.Verdict.MarshalJSON()
}

// Assessment is every rule outcome for one bank.
type Assessment struct {
	Score           Verdict
	Inquiries       Verdict
	HistoryAge      Verdict
	Age             Verdict
	PaymentBehavior Verdict
	Writeoffs       Verdict
	Residential     *Verdict
	BureauGate      Verdict
	IncomeRatio     Verdict
	Capacity        *Capacity
	Figures         *ExtendedFigures
}

// Assess runs the whole rule set of bankCode against f.
func (e *Engine) Assess(bankCode string, f Facts) Assessment {
	rs := e.policies.Current().RuleSet(bankCode)

	a := Assessment{
		Score:           e.score(rs, f),
		Inquiries:       e.inquiries(rs, f),
		HistoryAge:      e.historyAge(rs, f),
		Age:             e.age(rs, f),
		PaymentBehavior: e.paymentBehavior(rs, f),
		Writeoffs:       e.writeoffs(rs, f),
		BureauGate:      e.bureauGate(rs, f),
		IncomeRatio:     rs.IncomeRatio.apply(nil, NA),
	}
	if f.HasAddresses {
		v := rs.Residential.apply(nil, NA)
		a.Residential = &v
	}
	if f.HasProfile {
		c := e.capacity(rs, f)
		a.Capacity = &c
		if rs.ExtendedFigures {
			figures := f.Figures
			a.Figures = &figures
		}
	}
	return a
}

// Score evaluates the bureau score rule. A missing or zero score never
// reaches the table.
func (e *Engine) Score(bankCode string, f Facts) Verdict {
	return e.score(e.policies.Current().RuleSet(bankCode), f)
}

func (e *Engine) score(rs RuleSet, f Facts) Verdict {
	if f.ScoreBC == nil || *f.ScoreBC == 0 {
		return Insufficient(ReasonNoScore)
	}
	return rs.Score.apply(f.ScoreBC, Insufficient(ReasonNoScore))
}

func (e *Engine) Inquiries(bankCode string, f Facts) Verdict {
	return e.inquiries(e.policies.Current().RuleSet(bankCode), f)
}

func (e *Engine) inquiries(rs RuleSet, f Facts) Verdict {
	return rs.Inquiries.apply(intPtr(f.Inquiries), NA)
}

func (e *Engine) HistoryAge(bankCode string, f Facts) Verdict {
	return e.historyAge(e.policies.Current().RuleSet(bankCode), f)
}

// historyAge counts whole calendar months since the oldest account opened.
// No date counts as zero months; an unreadable date is not applicable.
func (e *Engine) historyAge(rs RuleSet, f Facts) Verdict {
	months := 0.0
	if f.OldestAccountOpened != "" {
		opened, ok := parseDate(f.OldestAccountOpened)
		if !ok {
			return NA
		}
		now := e.now()
		months = float64((now.Year()-opened.Year())*12 + int(now.Month()) - int(opened.Month()))
	}
	return rs.HistoryAge.apply(&months, NA)
}

func (e *Engine) Age(bankCode string, f Facts) Verdict {
	return e.age(e.policies.Current().RuleSet(bankCode), f)
}

func (e *Engine) age(rs RuleSet, f Facts) Verdict {
	if f.BirthDate == nil {
		return NA
	}
	if rs.Age.Fixed != nil {
		return *rs.Age.Fixed
	}
	if rs.Age.RequireIncomeType && strings.TrimSpace(f.IncomeType) == "" {
		return NA
	}
	years := float64(YearsOld(*f.BirthDate, e.now()))
	return rs.Age.bandsFor(f.IncomeType).apply(&years, NA)
}

func (e *Engine) paymentBehavior(rs RuleSet, f Facts) Verdict {
	return rs.PaymentBehavior.apply(intPtr(f.WorstPaymentCode), NA)
}

// writeoffs treats a missing counter as no write-offs.
func (e *Engine) writeoffs(rs RuleSet, f Facts) Verdict {
	count := 0.0
	if f.Writeoffs != nil {
		count = float64(*f.Writeoffs)
	}
	return rs.Writeoffs.apply(&count, NA)
}

func (e *Engine) bureauGate(rs RuleSet, f Facts) Verdict {
	if !f.HasReport {
		return Insufficient(ReasonNoReport)
	}
	return rs.BureauGate.apply(nil, NA)
}

func (e *Engine) capacity(rs RuleSet, f Facts) Capacity {
	switch rs.Capacity {
	case CapacitySummedPayments:
		if f.IncomeEstimate == nil || *f.IncomeEstimate == 0 {
			return Capacity{Verdict: Insufficient(ReasonNoIncome)}
		}
		amount := f.SummedPayments
		return Capacity{Amount: &amount}
	case CapacityIncomeTypeRequired:
		if strings.TrimSpace(f.IncomeType) == "" {
			return Capacity{Verdict: Insufficient(ReasonNoIncomeType)}
		}
		return Capacity{Verdict: NA}
	default:
		return Capacity{Verdict: NA}
	}
}

// YearsOld is the age in completed years at now.
func YearsOld(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func intPtr(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
