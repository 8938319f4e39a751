package amortization

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/loan-schedule/pkg/constants"
)

// RateConvention selects how an annual rate is turned into a monthly rate.
type RateConvention string

const (
	// ConventionEffective treats the annual rate as a TEA and derives the
	// monthly rate by compounding: (1 + r)^(1/12) - 1. This is what the
	// origination backend stores, so it is the default.
	ConventionEffective RateConvention = constants.RateConventionEffective

	// ConventionNominal treats the annual rate as nominal: r / 12.
	ConventionNominal RateConvention = constants.RateConventionNominal
)

// ParseRateConvention maps a configuration or request value to a RateConvention.
// An empty value yields ConventionEffective.
func ParseRateConvention(value string) (RateConvention, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", constants.RateConventionEffective, "tea":
		return ConventionEffective, nil
	case constants.RateConventionNominal, "tna":
		return ConventionNominal, nil
	default:
		return "", invalidArgument("convention", value,
			fmt.Sprintf("expected %s or %s", constants.RateConventionEffective, constants.RateConventionNominal))
	}
}

// resolve returns the convention with the zero value mapped to the default.
func (c RateConvention) resolve() (RateConvention, error) {
	if c == "" {
		return ConventionEffective, nil
	}
	return ParseRateConvention(string(c))
}

// MonthlyRate converts an annual rate, given as a percentage, into a monthly
// rate expressed as a fraction.
func MonthlyRate(annualRatePercent float64, convention RateConvention) (float64, error) {
	convention, err := convention.resolve()
	if err != nil {
		return 0, err
	}

	annual := annualRatePercent / constants.PercentageMultiplier
	if convention == ConventionNominal {
		return annual / constants.MonthsPerYear, nil
	}
	return math.Expm1(math.Log1p(annual) / constants.MonthsPerYear), nil
}

// NormalizeRate accepts an annual rate either as a fraction in (0, 1] or as a
// percentage in (1, 100] and returns it as a percentage.
func NormalizeRate(rate float64) float64 {
	if rate > 0 && rate <= 1 {
		return rate * constants.PercentageMultiplier
	}
	return rate
}

// FixedPayment calculates the constant installment of a fixed-payment loan.
// A zero monthly rate degrades to an even split of the principal.
//
// The annuity factor is evaluated as 1 - (1+m)^-n through Log1p/Expm1, so
// long terms cannot overflow and rates too small to register in 1+m still
// produce a finite payment.
func FixedPayment(principal, monthlyRate float64, installments int) float64 {
	if monthlyRate == 0 {
		return principal / float64(installments)
	}

	discount := -math.Expm1(-float64(installments) * math.Log1p(monthlyRate))
	if discount == 0 {
		return principal / float64(installments)
	}
	return principal * monthlyRate / discount
}
