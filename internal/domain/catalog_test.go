package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinorUnits(t *testing.T) {
	tests := []struct {
		raw      string
		expected int64
		wantErr  bool
	}{
		{"9.99", 999, false},
		{"79.9", 7990, false},
		{"0", 0, false},
		{"120", 12000, false},
		{"9.999", 0, true},
		{"-1.00", 0, true},
		{"ten", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMinorUnits(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "9.99", FormatMinorUnits(999))
	assert.Equal(t, "0.00", FormatMinorUnits(0))
	assert.Equal(t, "120.50", FormatMinorUnits(12050))
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog("0", "9.99", "79.99")
	require.NoError(t, err)

	price, err := c.Price(PlanTypeMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(999), price)

	price, err = c.Price(PlanTypeAnnual)
	require.NoError(t, err)
	assert.Equal(t, int64(7999), price)

	_, err = c.Price("weekly")
	assert.True(t, IsDomainError(err, ErrorCodeInvalidPlanType))

	_, err = NewCatalog("0", "nine", "79.99")
	assert.ErrorContains(t, err, "monthly")
}

func TestPlanFromInterval(t *testing.T) {
	tests := []struct {
		name     string
		isTrial  bool
		interval string
		expected PlanType
		wantErr  bool
	}{
		{"trial flag wins", true, "year", PlanTypeTrial, false},
		{"month", false, "month", PlanTypeMonthly, false},
		{"year", false, "YEAR", PlanTypeAnnual, false},
		{"missing interval defaults to monthly", false, "", PlanTypeMonthly, false},
		{"unknown interval", false, "week", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanFromInterval(tt.isTrial, tt.interval)
			if tt.wantErr {
				assert.True(t, IsDomainError(err, ErrorCodeInvalidPlanType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPlanFromMetadata(t *testing.T) {
	tests := []struct {
		name     string
		planType string
		interval string
		expected PlanType
		wantErr  bool
	}{
		{"type wins", "annual", "month", PlanTypeAnnual, false},
		{"interval only", "", "year", PlanTypeAnnual, false},
		{"trial type", "trial", "", PlanTypeTrial, false},
		{"nothing recorded", "", "", "", true},
		{"unknown type", "weekly", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanFromMetadata(tt.planType, tt.interval)
			if tt.wantErr {
				assert.True(t, IsDomainError(err, ErrorCodeInvalidPlanType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParsePlanType(t *testing.T) {
	p, err := ParsePlanType(" Annual ")
	require.NoError(t, err)
	assert.Equal(t, PlanTypeAnnual, p)
	assert.Equal(t, IntervalYear, p.Interval())
	assert.True(t, p.Renewable())
	assert.False(t, PlanTypeTrial.Renewable())

	_, err = ParsePlanType("lifetime")
	require.Error(t, err)
	assert.Equal(t, "lifetime", err.(*DomainError).Details["value"])
	assert.Empty(t, ErrInvalidPlanType.Details, "sentinel must not be mutated")
}

func TestRenewalPaymentID(t *testing.T) {
	assert.Equal(t, "renewal_2024-02-20T09:30:00.125Z", RenewalPaymentID(time.Date(2024, 2, 20, 9, 30, 0, 125*int(time.Millisecond), time.UTC)))
}

func TestIdempotencyKey(t *testing.T) {
	morning := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC)
	key := IdempotencyKey("u1", PlanTypeMonthly, morning)

	assert.Equal(t, key, IdempotencyKey("u1", PlanTypeMonthly, evening))
	assert.Equal(t, key, IdempotencyKey("u1", PlanTypeMonthly, morning.In(time.FixedZone("UTC+2", 2*3600))))
	assert.NotEqual(t, key, IdempotencyKey("u1", PlanTypeAnnual, morning))
	assert.NotEqual(t, key, IdempotencyKey("u2", PlanTypeMonthly, morning))
	assert.NotEqual(t, key, IdempotencyKey("u1", PlanTypeMonthly, morning.AddDate(0, 0, 1)))
}
