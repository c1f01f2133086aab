package speechgate

import (
	"fmt"
	"time"
)

// Granularity is the length of an accounting period.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// Rollover decides what the ledger total becomes when a charge opens a new period.
type Rollover string

const (
	// RolloverZero resets the total to zero, then adds the triggering charge.
	RolloverZero Rollover = "zero"
	// RolloverCharge starts the new period at the triggering charge.
	RolloverCharge Rollover = "charge"
	// RolloverDiscard resets the total to zero and drops the triggering charge.
	RolloverDiscard Rollover = "discard"
)

// AnchorLayout is the durable format of a period anchor (DD/MM/YYYY).
const AnchorLayout = "02/01/2006"

// DefaultTimeZone is the reference zone for all period comparisons.
const DefaultTimeZone = "America/Los_Angeles"

// Period defines how processed time is bucketed.
// The zero value is a day period with RolloverZero in UTC.
type Period struct {
	Granularity Granularity
	Rollover    Rollover
	Location    *time.Location
}

// DefaultPeriod returns a day period with RolloverZero in DefaultTimeZone.
// If the zone database is unavailable, UTC is used.
func DefaultPeriod() Period {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		loc = time.UTC
	}
	return Period{Granularity: GranularityDay, Rollover: RolloverZero, Location: loc}
}

// Validate checks granularity and rollover values.
func (p Period) Validate() error {
	switch p.Granularity {
	case "", GranularityDay, GranularityMonth:
	default:
		return fmt.Errorf("speechgate: invalid period granularity %q", p.Granularity)
	}
	switch p.Rollover {
	case "", RolloverZero, RolloverCharge, RolloverDiscard:
	default:
		return fmt.Errorf("speechgate: invalid period rollover %q", p.Rollover)
	}
	return nil
}

func (p Period) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// In converts t to the reference zone.
func (p Period) In(t time.Time) time.Time {
	return t.In(p.location())
}

// Same reports whether a and b fall in the same accounting period.
func (p Period) Same(a, b time.Time) bool {
	a, b = p.In(a), p.In(b)
	if a.Year() != b.Year() || a.Month() != b.Month() {
		return false
	}
	if p.Granularity == GranularityMonth {
		return true
	}
	return a.Day() == b.Day()
}

// FormatAnchor renders t in AnchorLayout in the reference zone.
func (p Period) FormatAnchor(t time.Time) string {
	return p.In(t).Format(AnchorLayout)
}

// ParseAnchor parses a stored anchor as midnight in the reference zone.
func (p Period) ParseAnchor(s string) (time.Time, error) {
	return time.ParseInLocation(AnchorLayout, s, p.location())
}
