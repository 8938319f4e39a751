package amortization

import "time"

// Summary aggregates a schedule for display.
type Summary struct {
	InstallmentCount int
	MonthlyPayment   float64
	TotalPaid        float64
	TotalPrincipal   float64
	TotalInterest    float64
	FirstDueDate     time.Time
	LastDueDate      time.Time
}

// Summary computes the totals of a schedule. TotalPaid is payment * n.
func (s *Schedule) Summary() Summary {
	summary := Summary{
		InstallmentCount: len(s.Installments),
		MonthlyPayment:   s.Payment,
		TotalPaid:        s.Payment * float64(len(s.Installments)),
	}
	for _, installment := range s.Installments {
		summary.TotalPrincipal += installment.Principal
		summary.TotalInterest += installment.Interest
	}
	if len(s.Installments) > 0 {
		summary.FirstDueDate = s.Installments[0].DueDate
		summary.LastDueDate = s.Installments[len(s.Installments)-1].DueDate
	}
	return summary
}

// Installment returns the installment with the given 1-based index.
func (s *Schedule) Installment(index int) (Installment, bool) {
	if index < 1 || index > len(s.Installments) {
		return Installment{}, false
	}
	return s.Installments[index-1], true
}
