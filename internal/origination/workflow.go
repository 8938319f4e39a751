// Package origination implements the loan application workflow: it
// validates an application against the lending policy, runs the compliance
// checks and builds the repayment schedule.
package origination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/loan-schedule/internal/config"
	"github.com/iwvelando/loan-schedule/pkg/amortization"
	"github.com/iwvelando/loan-schedule/pkg/compliance"
	"github.com/iwvelando/loan-schedule/pkg/latefee"
	"github.com/iwvelando/loan-schedule/pkg/validation"
	"github.com/strongo/decimal"
	"go.uber.org/zap"
)

// Application is a single loan request. It is passed explicitly through the
// workflow; nothing about the current client is kept between calls.
type Application struct {
	IdentityNumber    string
	Email             string
	Principal         float64
	AnnualRate        float64 // percentage; values <= 1 are read as fractions
	InstallmentCount  int
	DisbursementDate  time.Time
	PEP               bool
	DeclarationSigned bool
	// Convention overrides the configured rate convention when set.
	Convention string
}

// Assessment is the outcome of an accepted application.
type Assessment struct {
	Application Application
	Compliance  compliance.Assessment
	Schedule    *amortization.Schedule
	Summary     amortization.Summary
	Warnings    []string
}

// Workflow evaluates applications against a fixed configuration. It is safe
// for concurrent use.
type Workflow struct {
	logger     *zap.Logger
	calculator *amortization.Calculator
	policy     config.Policy
	convention amortization.RateConvention
	uit        float64
	lateFees   latefee.Calculator
}

// NewWorkflow validates the configuration and returns a workflow bound to it.
func NewWorkflow(logger *zap.Logger, conf *config.Configuration) (*Workflow, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conf == nil {
		conf = config.Defaults()
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	convention, err := conf.RateConvention()
	if err != nil {
		return nil, err
	}

	return &Workflow{
		logger:     logger,
		calculator: amortization.NewCalculator(logger),
		policy:     conf.Policy,
		convention: convention,
		uit:        conf.UIT(),
		lateFees:   latefee.NewCalculator(0),
	}, nil
}

// Convention returns the rate convention used when an application does not
// name one.
func (w *Workflow) Convention() amortization.RateConvention {
	return w.convention
}

// InstallmentPolicy returns the installment range applications must respect.
func (w *Workflow) InstallmentPolicy() validation.InstallmentPolicy {
	return validation.InstallmentPolicy{Min: w.policy.MinInstallments, Max: w.policy.MaxInstallments}
}

// Evaluate validates app, applies the compliance rules and builds its
// schedule. Rejections are returned as *ValidationError.
func (w *Workflow) Evaluate(ctx context.Context, app Application) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := w.request(app)
	if err != nil {
		w.logger.Info("application rejected",
			zap.String("op", "origination.Evaluate"),
			zap.Error(err),
		)
		return nil, err
	}

	check := compliance.Evaluate(compliance.Applicant{IdentityNumber: app.IdentityNumber, PEP: app.PEP}, req.Principal, w.uit)
	if check.PEPLimitHit {
		limitErr := compliance.CheckPEPLimit(req.Principal, w.uit, app.PEP)
		w.logger.Info("application rejected by PEP ceiling",
			zap.String("op", "origination.Evaluate"),
			zap.String("identityNumber", app.IdentityNumber),
			zap.Float64("principal", req.Principal),
		)
		return nil, &ValidationError{
			Fields: map[string]string{"principal": limitErr.Error()},
			Err:    limitErr,
		}
	}
	if check.Declaration.Required() && w.policy.RequireSignedDeclaration && !app.DeclarationSigned {
		return nil, &ValidationError{Fields: map[string]string{
			"declarationSigned": fmt.Sprintf("a signed %s declaration is required", check.Declaration),
		}}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schedule, err := w.calculator.Generate(req)
	if err != nil {
		var argErr *amortization.InvalidArgumentError
		if errors.As(err, &argErr) {
			return nil, &ValidationError{Fields: map[string]string{argErr.Field: argErr.Reason}, Err: err}
		}
		return nil, fmt.Errorf("failed to generate schedule: %w", err)
	}

	assessment := &Assessment{
		Application: app,
		Compliance:  check,
		Schedule:    schedule,
		Summary:     schedule.Summary(),
		Warnings:    append([]string(nil), schedule.Warnings...),
	}

	w.logger.Info("application accepted",
		zap.String("op", "origination.Evaluate"),
		zap.String("identityNumber", app.IdentityNumber),
		zap.String("declaration", string(check.Declaration)),
		zap.Int("installments", req.InstallmentCount),
	)
	return assessment, nil
}

// request converts an application into a calculator request, collecting
// every rejected field.
func (w *Workflow) request(app Application) (amortization.Request, error) {
	fields := fieldErrors{}

	fields.add("identityNumber", validation.ValidateIdentityNumber(app.IdentityNumber))
	if app.Email != "" {
		fields.add("email", validation.ValidateEmail(app.Email))
	}
	fields.add("principal", validation.ValidatePrincipal(app.Principal, w.policy.MaxPrincipal))

	rate := amortization.NormalizeRate(app.AnnualRate)
	fields.add("annualRate", validation.ValidateAnnualRate(rate))

	policy := validation.InstallmentPolicy{Min: w.policy.MinInstallments, Max: w.policy.MaxInstallments}
	fields.add("installmentCount", policy.Check(app.InstallmentCount))

	if app.DisbursementDate.IsZero() {
		fields.add("disbursementDate", fmt.Errorf("disbursement date is required"))
	}

	convention := w.convention
	if app.Convention != "" {
		parsed, err := amortization.ParseRateConvention(app.Convention)
		fields.add("convention", err)
		convention = parsed
	}

	if err := fields.err(); err != nil {
		return amortization.Request{}, err
	}

	return amortization.Request{
		Principal:        app.Principal,
		AnnualRate:       rate,
		InstallmentCount: app.InstallmentCount,
		StartDate:        app.DisbursementDate,
		Convention:       convention,
	}, nil
}

// LateFeeQuote is the amount due for one installment paid on a given date.
// Fee and Outstanding are settled in cents.
type LateFeeQuote struct {
	Installment amortization.Installment
	Fee         decimal.Decimal64p2
	DaysOverdue int
	Outstanding decimal.Decimal64p2
}

// QuoteLateFee computes the late fee for installment index of schedule when
// paid on paymentDate. lastPartialPayment is the date of a previous partial
// payment on that installment, or the zero time. alreadyPaid is what was
// paid toward it so far.
func (w *Workflow) QuoteLateFee(schedule *amortization.Schedule, index int, paymentDate, lastPartialPayment time.Time, alreadyPaid float64) (LateFeeQuote, error) {
	installment, ok := schedule.Installment(index)
	if !ok {
		return LateFeeQuote{}, &ValidationError{Fields: map[string]string{
			"installment": fmt.Sprintf("installment %d does not exist in a %d installment schedule", index, len(schedule.Installments)),
		}}
	}
	if paymentDate.IsZero() {
		return LateFeeQuote{}, &ValidationError{Fields: map[string]string{"paymentDate": "payment date is required"}}
	}

	result := w.lateFees.Assess(latefee.Installment{
		DueDate:         installment.DueDate,
		Principal:       installment.Principal,
		LastPaymentDate: lastPartialPayment,
	}, paymentDate)

	if result.Fee != 0 {
		w.logger.Debug("late fee assessed",
			zap.String("op", "origination.QuoteLateFee"),
			zap.Int("installment", index),
			zap.Int("daysOverdue", result.DaysOverdue),
			zap.Stringer("fee", result.Fee),
		)
	}

	return LateFeeQuote{
		Installment: installment,
		Fee:         result.Fee,
		DaysOverdue: result.DaysOverdue,
		Outstanding: latefee.Outstanding(installment.Payment, result.Fee, alreadyPaid),
	}, nil
}
