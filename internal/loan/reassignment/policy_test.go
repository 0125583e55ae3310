package reassignment

import (
	"context"
	"errors"
	"testing"

	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/loan/combiner"
	"credit-evaluation-workers/internal/loan/underwriting"
	"credit-evaluation-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes & Helpers
// ==========================

type fakeAdvisors struct {
	role       *models.Role
	advisor    *models.Advisor
	roleErr    error
	advisorErr error
	peekedRole int64
}

func (f *fakeAdvisors) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	return f.role, f.roleErr
}

func (f *fakeAdvisors) PeekNextAdvisor(ctx context.Context, roleID int64) (*models.Advisor, error) {
	f.peekedRole = roleID
	return f.advisor, f.advisorErr
}

var targetIDs = []int64{1, 2, 3, 4, 8, 9}

var targetNames = map[int64]string{1: "Bbva", 2: "Santander", 3: "Hey", 4: "Banregio", 8: "Afirme", 9: "Creditogo"}

func allDenied() []combiner.BankEvaluation {
	var banks []combiner.BankEvaluation
	for _, id := range targetIDs {
		banks = append(banks, combiner.BankEvaluation{
			BankID:             id,
			BankName:           targetNames[id],
			ComportamientoMOP1: underwriting.NA,
			Quitas:             underwriting.Rechazado,
		})
	}
	banks = append(banks, combiner.BankEvaluation{BankID: 20, BankName: "Sfera", Quitas: underwriting.Aprobado})
	return banks
}

func readyAdvisors() *fakeAdvisors {
	return &fakeAdvisors{
		role:    &models.Role{ID: 14, Name: "finva_agent_zae"},
		advisor: &models.Advisor{ID: 301, Name: "Ana", FirstLastName: "Lopez"},
	}
}

func newTestPolicy(t *testing.T, advisors AdvisorSource) *Policy {
	return NewPolicy(targetIDs, "finva_agent_zae", advisors, logger.NewTestLogger(t))
}

// ==========================
// DeniedBanks
// ==========================

func TestDeniedBanks(t *testing.T) {
	targets := map[int64]struct{}{1: {}, 2: {}}

	tests := []struct {
		name        string
		banks       []combiner.BankEvaluation
		wantDenied  int
		wantPresent int
		wantAll     bool
	}{
		{"empty", nil, 0, 0, false},
		{"no targets present", []combiner.BankEvaluation{{BankID: 7, Quitas: underwriting.Rechazado}}, 0, 0, false},
		{
			"mop1 or quitas rejects",
			[]combiner.BankEvaluation{
				{BankID: 1, ComportamientoMOP1: underwriting.Rechazado},
				{BankID: 2, Quitas: underwriting.Rechazado},
			},
			2, 2, true,
		},
		{
			"one bank not denied",
			[]combiner.BankEvaluation{
				{BankID: 1, Quitas: underwriting.Rechazado},
				{BankID: 2, Quitas: underwriting.Aprobado, ComportamientoMOP1: underwriting.EnEstudio},
			},
			1, 2, false,
		},
		{
			"insufficient input is not a denial",
			[]combiner.BankEvaluation{
				{BankID: 1, ComportamientoMOP1: underwriting.Insufficient(underwriting.ReasonNoReport), Quitas: underwriting.Rechazado},
				{BankID: 2, ComportamientoMOP1: underwriting.Insufficient(underwriting.ReasonNoReport)},
			},
			1, 2, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			denied, present, all := DeniedBanks(tt.banks, targets)
			assert.Len(t, denied, tt.wantDenied)
			assert.Equal(t, tt.wantPresent, present)
			assert.Equal(t, tt.wantAll, all)
		})
	}
}

// ==========================
// Decide
// ==========================

func TestDecide_AllTargetsDenied(t *testing.T) {
	advisors := readyAdvisors()

	d, err := newTestPolicy(t, advisors).Decide(context.Background(), 42, allDenied())

	require.NoError(t, err)
	assert.True(t, d.RecommendReassign)
	assert.False(t, d.Assigned)
	assert.Equal(t, MessageRecommended, d.Message)
	require.NotNil(t, d.RecommendedUserID)
	assert.Equal(t, int64(301), *d.RecommendedUserID)
	assert.Equal(t, "Ana Lopez", d.RecommendedUserName)
	assert.Equal(t, []string{"Bbva", "Santander", "Hey", "Banregio", "Afirme", "Creditogo"}, d.DeniedBanks)
	assert.Contains(t, d.Reason, "Bbva, Santander, Hey, Banregio, Afirme, Creditogo")
	assert.Equal(t, int64(14), advisors.peekedRole)
}

func TestDecide_AnyTargetApprovedFlipsDecision(t *testing.T) {
	for idx := range targetIDs {
		banks := allDenied()
		banks[idx].Quitas = underwriting.Aprobado

		d, err := newTestPolicy(t, readyAdvisors()).Decide(context.Background(), 42, banks)

		require.NoError(t, err)
		assert.False(t, d.RecommendReassign, "bank %d", targetIDs[idx])
		assert.Equal(t, MessageNotEligible, d.Message)
	}
}

func TestDecide_EmptyBanks(t *testing.T) {
	d, err := newTestPolicy(t, readyAdvisors()).Decide(context.Background(), 42, nil)

	require.NoError(t, err)
	assert.False(t, d.RecommendReassign)
	assert.Equal(t, MessageNoTargets, d.Message)
}

func TestDecide_MissingRole(t *testing.T) {
	advisors := readyAdvisors()
	advisors.role = nil

	d, err := newTestPolicy(t, advisors).Decide(context.Background(), 42, allDenied())

	require.NoError(t, err)
	assert.False(t, d.RecommendReassign)
	assert.Equal(t, "No finva_agent_zae role available", d.Message)
}

func TestDecide_NoAdvisors(t *testing.T) {
	advisors := readyAdvisors()
	advisors.advisor = nil

	d, err := newTestPolicy(t, advisors).Decide(context.Background(), 42, allDenied())

	require.NoError(t, err)
	assert.False(t, d.RecommendReassign)
	assert.Equal(t, "No finva_agent_zae advisors available", d.Message)
	assert.Nil(t, d.RecommendedUserID)
}

func TestDecide_LookupErrors(t *testing.T) {
	advisors := readyAdvisors()
	advisors.roleErr = errors.New("db down")
	_, err := newTestPolicy(t, advisors).Decide(context.Background(), 42, allDenied())
	assert.ErrorContains(t, err, "load role finva_agent_zae")

	advisors = readyAdvisors()
	advisors.advisorErr = errors.New("db down")
	_, err = newTestPolicy(t, advisors).Decide(context.Background(), 42, allDenied())
	assert.ErrorContains(t, err, "load next advisor")
}
