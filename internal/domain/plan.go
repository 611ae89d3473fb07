package domain

import "strings"

// PlanType is the product tier a user is entitled to
type PlanType string

const (
	PlanTypeTrial   PlanType = "trial"
	PlanTypeMonthly PlanType = "monthly"
	PlanTypeAnnual  PlanType = "annual"
)

// Billing interval names used by the payment intent API and gateway metadata
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// IsValid reports whether p is one of the known plan types
func (p PlanType) IsValid() bool {
	switch p {
	case PlanTypeTrial, PlanTypeMonthly, PlanTypeAnnual:
		return true
	}
	return false
}

// Renewable reports whether a lapsed plan of this type may be renewed.
// Trials never renew.
func (p PlanType) Renewable() bool {
	return p == PlanTypeMonthly || p == PlanTypeAnnual
}

// Interval returns the gateway interval name for the plan, empty for trials
func (p PlanType) Interval() string {
	switch p {
	case PlanTypeMonthly:
		return IntervalMonth
	case PlanTypeAnnual:
		return IntervalYear
	}
	return ""
}

func (p PlanType) String() string {
	return string(p)
}

// ParsePlanType parses a stored or wire plan name
func ParsePlanType(s string) (PlanType, error) {
	p := PlanType(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", ErrInvalidPlanType.withValue(s)
	}
	return p, nil
}

// PlanFromInterval resolves the plan selected at checkout. A trial flag wins
// over any interval.
func PlanFromInterval(isTrial bool, interval string) (PlanType, error) {
	if isTrial {
		return PlanTypeTrial, nil
	}
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case IntervalMonth, "":
		return PlanTypeMonthly, nil
	case IntervalYear:
		return PlanTypeAnnual, nil
	}
	return "", ErrInvalidPlanType.withValue(interval)
}

// PlanFromMetadata resolves the plan recorded on a gateway payment. An
// explicit type wins over the interval; neither is an error.
func PlanFromMetadata(planType, interval string) (PlanType, error) {
	if strings.TrimSpace(planType) != "" {
		return ParsePlanType(planType)
	}
	if strings.TrimSpace(interval) == "" {
		return "", ErrInvalidPlanType
	}
	return PlanFromInterval(false, interval)
}
