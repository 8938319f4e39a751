// Package compliance holds the regulatory checks applied to a loan before it
// is registered: the UIT source-of-funds declaration and the PEP ceiling.
package compliance

import (
	"errors"
	"fmt"

	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/format"
	"github.com/strongo/decimal"
)

// ErrPEPLimitExceeded is returned when a politically exposed person requests
// more than one UIT.
var ErrPEPLimitExceeded = errors.New("PEP loan limit exceeded")

// DeclarationType identifies which sworn declaration a loan requires.
type DeclarationType string

const (
	// DeclarationNone means no declaration is required.
	DeclarationNone DeclarationType = "none"
	// DeclarationOwnUse is the declaration of origin of funds for loans above one UIT.
	DeclarationOwnUse DeclarationType = "own-use"
	// DeclarationPEP is required for politically exposed persons.
	DeclarationPEP DeclarationType = "pep"
	// DeclarationBoth combines the own-use and PEP declarations.
	DeclarationBoth DeclarationType = "both"
)

// Required reports whether the type demands a signed declaration.
func (d DeclarationType) Required() bool {
	return d != "" && d != DeclarationNone
}

// Applicant carries the client attributes relevant to compliance.
type Applicant struct {
	IdentityNumber string
	PEP            bool
}

// Assessment is the compliance outcome for a requested amount.
type Assessment struct {
	Declaration DeclarationType
	UIT         float64
	ExceedsUIT  bool
	PEP         bool
	PEPLimitHit bool
	Notices     []string
}

// Cents converts an amount to the fixed-point representation used for
// threshold comparisons.
func Cents(amount float64) decimal.Decimal64p2 {
	return decimal.NewDecimal64p2FromFloat64(amount)
}

// ExceedsUIT reports whether amount is strictly greater than the UIT.
func ExceedsUIT(amount, uit float64) bool {
	return Cents(amount) > Cents(uit)
}

// RequiredDeclaration determines which declaration a loan requires.
func RequiredDeclaration(amount, uit float64, isPEP bool) DeclarationType {
	exceeds := ExceedsUIT(amount, uit)
	switch {
	case exceeds && isPEP:
		return DeclarationBoth
	case exceeds:
		return DeclarationOwnUse
	case isPEP:
		return DeclarationPEP
	default:
		return DeclarationNone
	}
}

// CheckPEPLimit rejects amounts above one UIT for politically exposed persons.
func CheckPEPLimit(amount, uit float64, isPEP bool) error {
	if isPEP && ExceedsUIT(amount, uit) {
		return fmt.Errorf("%w: PEP clients may not request more than 1 UIT (%s), requested %s",
			ErrPEPLimitExceeded, format.Currency(Cents(uit).AsFloat64()), format.Currency(amount))
	}
	return nil
}

// Evaluate aggregates the compliance checks for an applicant and amount. A
// non-positive uit falls back to constants.DefaultUIT.
func Evaluate(applicant Applicant, amount, uit float64) Assessment {
	if uit <= 0 {
		uit = constants.DefaultUIT
	}

	assessment := Assessment{
		Declaration: RequiredDeclaration(amount, uit, applicant.PEP),
		UIT:         uit,
		ExceedsUIT:  ExceedsUIT(amount, uit),
		PEP:         applicant.PEP,
	}

	if err := CheckPEPLimit(amount, uit, applicant.PEP); err != nil {
		assessment.PEPLimitHit = true
		assessment.Notices = append(assessment.Notices, err.Error())
	}
	if assessment.ExceedsUIT {
		assessment.Notices = append(assessment.Notices,
			fmt.Sprintf("amount exceeds 1 UIT (%s): declaration of origin of funds required", format.Currency(uit)))
	}
	if applicant.PEP {
		assessment.Notices = append(assessment.Notices,
			"client is a politically exposed person: PEP declaration required")
	}

	return assessment
}
