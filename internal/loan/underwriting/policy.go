package underwriting

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"credit-evaluation-workers/internal/common/validation"
)

//go:embed default_policy.json
var defaultPolicyJSON []byte

//go:embed policy_schema.json
var policySchemaJSON []byte

// CapacityMode selects how capacidad_pago_mensual_bc is produced for a bank.
type CapacityMode string

const (
	CapacityNone               CapacityMode = ""
	CapacitySummedPayments     CapacityMode = "summed_payments"
	CapacityIncomeTypeRequired CapacityMode = "income_type_required"
)

// Band is an inclusive numeric range. A nil bound is open.
type Band struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Verdict Verdict  `json:"verdict"`
}

func (b Band) contains(v float64) bool {
	return (b.Min == nil || v >= *b.Min) && (b.Max == nil || v <= *b.Max)
}

// BandRule is the generic threshold rule. Fixed short-circuits the bands;
// otherwise the first matching band wins and Otherwise applies when none
// match. A rule with nothing set rejects.
type BandRule struct {
	Fixed     *Verdict `json:"fixed,omitempty"`
	Bands     []Band   `json:"bands,omitempty"`
	Otherwise *Verdict `json:"otherwise,omitempty"`
}

func (r BandRule) apply(value *float64, missing Verdict) Verdict {
	if r.Fixed != nil {
		return *r.Fixed
	}
	if value == nil {
		return missing
	}
	for _, band := range r.Bands {
		if band.contains(*value) {
			return band.Verdict
		}
	}
	if r.Otherwise != nil {
		return *r.Otherwise
	}
	return Rechazado
}

// IncomeTypeBands replaces the default age bands when the applicant's income
// type contains Contains (case-insensitive).
type IncomeTypeBands struct {
	Contains string `json:"contains"`
	Bands    []Band `json:"bands"`
}

type AgeRule struct {
	BandRule
	RequireIncomeType bool              `json:"require_income_type,omitempty"`
	IncomeTypeBands   []IncomeTypeBands `json:"income_type_bands,omitempty"`
}

func (r AgeRule) bandsFor(incomeType string) BandRule {
	upper := strings.ToUpper(incomeType)
	for _, itb := range r.IncomeTypeBands {
		if itb.Contains != "" && strings.Contains(upper, strings.ToUpper(itb.Contains)) {
			return BandRule{Fixed: r.Fixed, Bands: itb.Bands, Otherwise: r.Otherwise}
		}
	}
	return r.BandRule
}

// RuleSet is one bank's row of the policy table.
type RuleSet struct {
	Score           BandRule     `json:"score"`
	Inquiries       BandRule     `json:"inquiries"`
	HistoryAge      BandRule     `json:"history_age"`
	Age             AgeRule      `json:"age"`
	PaymentBehavior BandRule     `json:"payment_behavior"`
	Writeoffs       BandRule     `json:"writeoffs"`
	Residential     BandRule     `json:"residential"`
	BureauGate      BandRule     `json:"bureau_gate"`
	IncomeRatio     BandRule     `json:"income_ratio"`
	Capacity        CapacityMode `json:"capacity,omitempty"`
	ExtendedFigures bool         `json:"extended_figures,omitempty"`
}

// Policy maps upper-cased bank codes to rule sets. Banks missing from the
// table get Fallback.
type Policy struct {
	Version  string             `json:"version"`
	Banks    map[string]RuleSet `json:"banks"`
	Fallback RuleSet            `json:"fallback"`
}

func (p *Policy) RuleSet(bankCode string) RuleSet {
	if rs, ok := p.Banks[strings.ToUpper(strings.TrimSpace(bankCode))]; ok {
		return rs
	}
	return p.Fallback
}

// ParsePolicy validates a policy document against the policy schema and
// decodes it. Bank keys are normalized to upper case.
func ParsePolicy(data []byte) (*Policy, error) {
	result, err := validation.ValidateBytes(policySchemaJSON, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	}
	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	}

	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	}

	banks := make(map[string]RuleSet, len(p.Banks))
	for code, rs := range p.Banks {
		banks[strings.ToUpper(strings.TrimSpace(code))] = rs
	}
	p.Banks = banks
	return &p, nil
}

// DefaultPolicy returns the built-in policy table.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded default policy: %v", err))
	}
	return p
}
