// Package latefee calculates the penalty (mora) charged on overdue installments.
package latefee

import (
	"time"

	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/datetime"
	"github.com/strongo/decimal"
)

// Installment is the subset of a scheduled installment needed to assess a late fee.
type Installment struct {
	DueDate   time.Time
	Principal float64
	// LastPaymentDate is the date of the most recent partial payment, if any.
	LastPaymentDate time.Time
}

// Result holds the assessed fee, in cents, and the number of days overdue.
type Result struct {
	Fee         decimal.Decimal64p2
	DaysOverdue int
}

// Calculator applies a flat monthly rate to an installment's principal portion.
type Calculator struct {
	Rate float64
}

// NewCalculator returns a calculator using constants.LateFeeRate when rate is not positive.
func NewCalculator(rate float64) Calculator {
	if rate <= 0 {
		rate = constants.LateFeeRate
	}
	return Calculator{Rate: rate}
}

// Assess returns the late fee owed when paying installment on paymentDate.
// The fee is not cumulative: it does not grow with the days overdue. No fee
// applies when paying on or before the due date, or when a partial payment
// was already made within the due month.
func (c Calculator) Assess(installment Installment, paymentDate time.Time) Result {
	if installment.DueDate.IsZero() {
		return Result{}
	}

	days := datetime.DaysBetween(installment.DueDate, paymentDate)
	if days <= 0 {
		return Result{}
	}

	if !installment.LastPaymentDate.IsZero() && datetime.SameMonth(installment.LastPaymentDate, installment.DueDate) {
		return Result{}
	}

	return Result{
		Fee:         decimal.NewDecimal64p2FromFloat64(installment.Principal * c.Rate),
		DaysOverdue: days,
	}
}

// Outstanding returns what remains to be paid on an installment after a
// payment, including the late fee. Amounts are settled in cents; the result
// is never negative.
func Outstanding(installmentPayment float64, fee decimal.Decimal64p2, paid float64) decimal.Decimal64p2 {
	due := decimal.NewDecimal64p2FromFloat64(installmentPayment) + fee - decimal.NewDecimal64p2FromFloat64(paid)
	if due < 0 {
		return 0
	}
	return due
}
