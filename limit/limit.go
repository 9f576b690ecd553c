/*
Package limit computes overdraft limits from salaries.

Account creation and limit recalculation use different thresholds and
rounding; both are existing business rules and are kept as two policies.
*/
package limit

import (
	"github.com/shopspring/decimal"
)

const scale = 2

var two = decimal.NewFromInt(2)

// Rounding selects how the half-salary is brought to two places.
type Rounding int

const (
	// RoundHalfUp rounds 0.005 up to 0.01.
	RoundHalfUp Rounding = iota
	// Truncate drops everything past the second place.
	Truncate
)

// Policy is a salary-based limit rule.
type Policy struct {
	Name      string
	Threshold decimal.Decimal
	Rounding  Rounding
}

var (
	// CreationPolicy applies when an account is opened.
	CreationPolicy = Policy{
		Name:      "creation",
		Threshold: decimal.RequireFromString("2000.00"),
		Rounding:  RoundHalfUp,
	}

	// UpdatePolicy applies when a client's salary changes.
	UpdatePolicy = Policy{
		Name:      "update",
		Threshold: decimal.RequireFromString("1000.00"),
		Rounding:  Truncate,
	}
)

// FromSalary returns half the salary when it reaches the threshold, zero otherwise.
func (p Policy) FromSalary(salary decimal.Decimal) decimal.Decimal {
	if salary.LessThan(p.Threshold) {
		return decimal.Zero.Round(scale)
	}

	half := salary.Div(two)

	switch p.Rounding {
	case Truncate:
		return half.Truncate(scale)
	default:
		return half.Round(scale)
	}
}

// Compute is FromSalary raised so it covers a negative balance.
func (p Policy) Compute(salary, balance decimal.Decimal) decimal.Decimal {
	return Floor(p.FromSalary(salary), balance)
}

// Floor raises limit to |balance| when balance is negative and limit would not cover it.
func Floor(limit, balance decimal.Decimal) decimal.Decimal {
	if !balance.IsNegative() {
		return limit
	}

	debt := balance.Abs()
	if limit.LessThan(debt) {
		return debt.Round(scale)
	}

	return limit
}
