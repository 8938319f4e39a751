// Package testutil provides common utility functions for testing.
package testutil

import (
	"math"
	"testing"

	"github.com/iwvelando/loan-schedule/pkg/amortization"
	"github.com/iwvelando/loan-schedule/pkg/datetime"
)

// FindInstallment finds an installment by its due date (YYYY-MM-DD).
// Returns a pointer to the installment if found, nil otherwise.
func FindInstallment(schedule *amortization.Schedule, dueDate string) *amortization.Installment {
	if schedule == nil {
		return nil
	}
	for i := range schedule.Installments {
		if datetime.FormatDate(schedule.Installments[i].DueDate) == dueDate {
			return &schedule.Installments[i]
		}
	}
	return nil
}

// SumPrincipal adds up the principal portion of every installment.
func SumPrincipal(schedule *amortization.Schedule) float64 {
	var total float64
	for _, installment := range schedule.Installments {
		total += installment.Principal
	}
	return total
}

// CheckScheduleInvariants fails the test when a schedule breaks the
// fixed-payment properties: constant payment, payment = principal + interest,
// strictly increasing due dates, a zero final balance and principal summing
// to the requested amount.
func CheckScheduleInvariants(t testing.TB, schedule *amortization.Schedule, tolerance float64) {
	t.Helper()

	if schedule == nil {
		t.Fatalf("schedule is nil")
	}
	if len(schedule.Installments) != schedule.Request.InstallmentCount {
		t.Errorf("expected %d installments, got %d", schedule.Request.InstallmentCount, len(schedule.Installments))
	}

	for i, installment := range schedule.Installments {
		if installment.Index != i+1 {
			t.Errorf("installment %d has index %d", i+1, installment.Index)
		}
		if math.Abs(installment.Payment-schedule.Payment) > tolerance {
			t.Errorf("installment %d payment %.6f differs from %.6f", installment.Index, installment.Payment, schedule.Payment)
		}
		if math.Abs(installment.Principal+installment.Interest-installment.Payment) > tolerance {
			t.Errorf("installment %d: principal %.6f + interest %.6f != payment %.6f",
				installment.Index, installment.Principal, installment.Interest, installment.Payment)
		}
		if installment.RemainingBalance < 0 {
			t.Errorf("installment %d has negative balance %.6f", installment.Index, installment.RemainingBalance)
		}
		if i > 0 && !installment.DueDate.After(schedule.Installments[i-1].DueDate) {
			t.Errorf("installment %d due date %s is not after %s", installment.Index,
				datetime.FormatDate(installment.DueDate), datetime.FormatDate(schedule.Installments[i-1].DueDate))
		}
	}

	if n := len(schedule.Installments); n > 0 && schedule.Installments[n-1].RemainingBalance != 0 {
		t.Errorf("final balance = %.8f, expected 0", schedule.Installments[n-1].RemainingBalance)
	}
	if sum := SumPrincipal(schedule); math.Abs(sum-schedule.Request.Principal) > tolerance {
		t.Errorf("principal portions sum to %.6f, expected %.6f", sum, schedule.Request.Principal)
	}
}
