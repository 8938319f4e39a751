package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/mathutil"
)

var (
	identityNumberPattern = regexp.MustCompile(`^\d{8}$`)
	emailPattern          = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// InstallmentPolicy bounds the number of installments a loan may have.
type InstallmentPolicy struct {
	Min int
	Max int
}

// ValidateIdentityNumber checks a national identity number (DNI): exactly 8 digits.
func ValidateIdentityNumber(identityNumber string) error {
	trimmed := strings.TrimSpace(identityNumber)
	if trimmed == "" {
		return fmt.Errorf("identity number is required")
	}
	if len(trimmed) != constants.IdentityNumberLength {
		return fmt.Errorf("identity number must have %d digits, got %d", constants.IdentityNumberLength, len(trimmed))
	}
	if !identityNumberPattern.MatchString(trimmed) {
		return fmt.Errorf("identity number must contain only digits")
	}
	return nil
}

// ValidateEmail checks that an e-mail address is present and well formed.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return fmt.Errorf("email is required")
	}
	if !emailPattern.MatchString(trimmed) {
		return fmt.Errorf("email %q is not valid", trimmed)
	}
	return nil
}

// ValidatePrincipal checks that a principal is positive and does not exceed max.
// A non-positive max disables the upper bound.
func ValidatePrincipal(principal, max float64) error {
	if !mathutil.IsFinite(principal) || principal <= 0 {
		return fmt.Errorf("principal must be greater than 0")
	}
	if max > 0 && principal > max {
		return fmt.Errorf("principal may not exceed %.2f", max)
	}
	return nil
}

// ValidateAnnualRate checks that an annual rate percentage lies in (0, 100].
func ValidateAnnualRate(ratePercent float64) error {
	if !mathutil.IsFinite(ratePercent) || ratePercent <= 0 {
		return fmt.Errorf("annual rate must be greater than 0")
	}
	if ratePercent > constants.MaxAnnualRatePercent {
		return fmt.Errorf("annual rate may not exceed %.0f%%", constants.MaxAnnualRatePercent)
	}
	return nil
}

// Validate checks that the policy itself is coherent.
func (p InstallmentPolicy) Validate() error {
	if p.Min < 1 {
		return fmt.Errorf("minimum installments must be at least 1, got %d", p.Min)
	}
	if p.Max > 0 && p.Max < p.Min {
		return fmt.Errorf("maximum installments (%d) is below the minimum (%d)", p.Max, p.Min)
	}
	return nil
}

// Check verifies an installment count against the policy. A non-positive Max
// disables the upper bound.
func (p InstallmentPolicy) Check(count int) error {
	if count < p.Min {
		return fmt.Errorf("installment count must be at least %d, got %d", p.Min, count)
	}
	if p.Max > 0 && count > p.Max {
		return fmt.Errorf("installment count may not exceed %d, got %d", p.Max, count)
	}
	return nil
}

// PolicyWarnings returns non-fatal observations about a lending policy.
func PolicyWarnings(policy InstallmentPolicy, maxPrincipal, uit float64) []string {
	var warnings []string

	if policy.Min < 3 {
		warnings = append(warnings, fmt.Sprintf(
			"minimum installment count %d is below the usual floor of 3", policy.Min))
	}
	if policy.Max > constants.DefaultMaxInstallments {
		warnings = append(warnings, fmt.Sprintf(
			"maximum installment count %d exceeds the usual ceiling of %d", policy.Max, constants.DefaultMaxInstallments))
	}
	if maxPrincipal > 0 && uit > 0 && maxPrincipal < uit {
		warnings = append(warnings, fmt.Sprintf(
			"maximum principal %.2f is below 1 UIT (%.2f): declarations of origin of funds will never be required", maxPrincipal, uit))
	}

	return warnings
}
