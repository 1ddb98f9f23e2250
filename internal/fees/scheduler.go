// Package fees computes membership fee accrual. A member owes one fee
// per completed interval starting at membership_start; a period counts
// only once its end boundary has passed, and the partial period at the
// end of a membership is never charged.
package fees

import (
	"errors"
	"fmt"
	"time"

	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
)

// ErrInvalidInterval is returned for members with a non-positive fee
// interval.
var ErrInvalidInterval = errors.New("invalid fee interval")

// IntervalUnit selects what one interval step means.
type IntervalUnit string

const (
	// UnitMonths advances period boundaries by calendar months.
	UnitMonths IntervalUnit = "months"
	// UnitDays advances period boundaries by days.
	UnitDays IntervalUnit = "days"
)

// Scheduler computes fee accrual under a fixed interval-unit policy.
type Scheduler struct {
	unit IntervalUnit
}

// NewScheduler creates a Scheduler. An empty unit defaults to months.
func NewScheduler(unit IntervalUnit) *Scheduler {
	if unit == "" {
		unit = UnitMonths
	}
	return &Scheduler{unit: unit}
}

// Fee is one accrued period fee.
type Fee struct {
	Amount money.Money
	Period time.Time // start of the period the fee pays for
	Unit   IntervalUnit
}

// Description returns a human label for audit output. Day-based
// periods include the day, so several periods within one month stay
// distinguishable.
func (f Fee) Description() string {
	format := "January 2006"
	if f.Unit == UnitDays {
		format = "2 January 2006"
	}
	return fmt.Sprintf("Membership fee for %s", f.Period.Format(format))
}

// AmountDueThrough returns the total fees a member owes through asOf.
// Zero before membership_start; monotone in asOf; capped by
// membership_end.
func (s *Scheduler) AmountDueThrough(member model.Member, asOf time.Time) (money.Money, error) {
	fees, err := s.Schedule(member, asOf)
	if err != nil {
		return money.Zero, err
	}
	total := money.Zero
	for _, f := range fees {
		total = total.Add(f.Amount)
	}
	return total, nil
}

// Schedule returns the individual period fees due through asOf, oldest
// first. A period is due once its end boundary is at or before the
// effective date, which is asOf capped by membership_end.
func (s *Scheduler) Schedule(member model.Member, asOf time.Time) ([]Fee, error) {
	if member.Interval <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInterval, member.Interval)
	}

	effective := asOf
	if !member.MembershipEnd.IsZero() && member.MembershipEnd.Before(effective) {
		effective = member.MembershipEnd
	}

	var fees []Fee
	start := member.MembershipStart
	for {
		end := s.advance(start, member.Interval)
		if end.After(effective) {
			return fees, nil
		}
		fees = append(fees, Fee{Amount: member.Fee, Period: start, Unit: s.unit})
		start = end
	}
}

func (s *Scheduler) advance(date time.Time, interval int) time.Time {
	if s.unit == UnitDays {
		return date.AddDate(0, 0, interval)
	}
	return date.AddDate(0, interval, 0)
}
