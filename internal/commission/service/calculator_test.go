package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/commission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func tier(from, to, rate string) domain.Tier {
	t := domain.Tier{FromAmount: d(from), Rate: d(rate)}
	if to != "" {
		t.ToAmount = nd(to)
	}
	return t
}

func twoBandTiers() []domain.Tier {
	return []domain.Tier{
		tier("0", "1000", "0.02"),
		tier("1000", "", "0.05"),
	}
}

func TestProgressiveCommission(t *testing.T) {
	tests := []struct {
		name  string
		tiers []domain.Tier
		base  string
		want  string
	}{
		{"within first tier", twoBandTiers(), "800", "16"},
		{"at tier boundary", twoBandTiers(), "1000", "20"},
		{"spans two tiers", twoBandTiers(), "1500", "45"},
		{"zero base", twoBandTiers(), "0", "0"},
		{
			"three tiers",
			[]domain.Tier{
				tier("0", "1000", "0.02"),
				tier("1000", "5000", "0.05"),
				tier("5000", "", "0.08"),
			},
			"6000",
			// 1000*0.02 + 4000*0.05 + 1000*0.08
			"300",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := progressiveCommission(tc.tiers, d(tc.base))
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tc.want)), "got %s, want %s", got, tc.want)
		})
	}
}

func TestProgressiveCommissionBadTables(t *testing.T) {
	_, err := progressiveCommission(nil, d("100"))
	assert.ErrorIs(t, err, domain.ErrInvalidTierTable)

	gapped := []domain.Tier{
		tier("0", "1000", "0.02"),
		tier("1200", "", "0.05"),
	}
	_, err = progressiveCommission(gapped, d("1500"))
	assert.ErrorIs(t, err, domain.ErrTierTableGap)

	// A table whose last tier is bounded cannot cover a larger base.
	bounded := []domain.Tier{tier("0", "1000", "0.02")}
	_, err = progressiveCommission(bounded, d("1500"))
	assert.ErrorIs(t, err, domain.ErrTierTableGap)
}

func TestCommissionForBase(t *testing.T) {
	svc := &Service{}

	fixed := domain.Rule{RuleType: domain.RuleTypeFixed, FixedRate: nd("0.1")}
	commission, rate, err := svc.commissionForBase(fixed, d("200"))
	require.NoError(t, err)
	assert.True(t, commission.Equal(d("20")), "got %s", commission)
	assert.True(t, rate.Equal(d("0.1")))

	_, _, err = svc.commissionForBase(domain.Rule{RuleType: domain.RuleTypeFixed}, d("200"))
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	tiered := domain.Rule{RuleType: domain.RuleTypeTiered, Tiers: twoBandTiers()}
	commission, rate, err = svc.commissionForBase(tiered, d("1500"))
	require.NoError(t, err)
	assert.True(t, commission.Equal(d("45")), "got %s", commission)
	// Blended rate: 45 / 1500.
	assert.True(t, rate.Equal(d("0.03")), "got %s", rate)

	// Zero base earns nothing but still locks the first tier's rate.
	commission, rate, err = svc.commissionForBase(tiered, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, commission.IsZero())
	assert.True(t, rate.Equal(d("0.02")))

	_, _, err = svc.commissionForBase(domain.Rule{RuleType: "bonus"}, d("100"))
	assert.ErrorIs(t, err, domain.ErrInvalidRuleType)
}

func TestValidateTierTable(t *testing.T) {
	valid := []domain.TierInput{
		{FromAmount: d("0"), ToAmount: nd("1000"), Rate: d("0.02")},
		{FromAmount: d("1000"), Rate: d("0.05")},
	}
	assert.NoError(t, validateTierTable(valid))

	tests := []struct {
		name  string
		tiers []domain.TierInput
		want  error
	}{
		{"empty", nil, domain.ErrInvalidTierTable},
		{
			"first tier not at zero",
			[]domain.TierInput{{FromAmount: d("100"), Rate: d("0.02")}},
			domain.ErrInvalidTierTable,
		},
		{
			"gap between tiers",
			[]domain.TierInput{
				{FromAmount: d("0"), ToAmount: nd("1000"), Rate: d("0.02")},
				{FromAmount: d("1200"), Rate: d("0.05")},
			},
			domain.ErrInvalidTierTable,
		},
		{
			"empty band",
			[]domain.TierInput{
				{FromAmount: d("0"), ToAmount: nd("0"), Rate: d("0.02")},
				{FromAmount: d("0"), Rate: d("0.05")},
			},
			domain.ErrInvalidTierTable,
		},
		{
			"bounded last tier",
			[]domain.TierInput{{FromAmount: d("0"), ToAmount: nd("1000"), Rate: d("0.02")}},
			domain.ErrInvalidTierTable,
		},
		{
			"rate above one",
			[]domain.TierInput{{FromAmount: d("0"), Rate: d("1.5")}},
			domain.ErrInvalidRate,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, validateTierTable(tc.tiers), tc.want)
		})
	}
}
