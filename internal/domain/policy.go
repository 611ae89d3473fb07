package domain

import "time"

// TrialDuration is how long a trial plan grants access
const TrialDuration = 2 * 24 * time.Hour

// StoredPrecision is the finest resolution every store keeps; BSON dates
// hold milliseconds
const StoredPrecision = time.Millisecond

// NormalizeTime returns t in UTC truncated to StoredPrecision, so a record
// reads back identically from any backend
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(StoredPrecision)
}

// ComputeEndDate returns the end of the billing period that starts at start.
// Month arithmetic clamps to the last day of a shorter target month, so
// Jan 31 + 1 month is Feb 28 (or 29), never Mar 3.
func ComputeEndDate(plan PlanType, start time.Time) (time.Time, error) {
	start = start.UTC()
	switch plan {
	case PlanTypeTrial:
		return start.Add(TrialDuration), nil
	case PlanTypeMonthly:
		return addMonthsClamped(start, 1), nil
	case PlanTypeAnnual:
		return addMonthsClamped(start, 12), nil
	}
	return time.Time{}, ErrInvalidPlanType.withValue(string(plan))
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// day 0 of the following month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// HasAccess reports whether record entitles its owner to use the app at now.
// An Active record past its end date still reports true; callers resolve that
// case (renew or expire) before trusting the answer.
func HasAccess(record *SubscriptionRecord, now time.Time) bool {
	if record == nil {
		return false
	}
	switch record.Status {
	case SubscriptionStatusActive:
		return true
	case SubscriptionStatusCancelled:
		return !now.After(record.EndDate)
	}
	return false
}

// IsLapsed reports whether the record's period has ended at now
func IsLapsed(record *SubscriptionRecord, now time.Time) bool {
	return record != nil && now.After(record.EndDate)
}
