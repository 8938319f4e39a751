// Package amortization generates fixed-payment ("French" method) loan
// schedules.
package amortization

import (
	"fmt"
	"math"
	"time"

	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/datetime"
	"github.com/iwvelando/loan-schedule/pkg/mathutil"
	"go.uber.org/zap"
)

// Request holds the inputs of a schedule calculation.
type Request struct {
	Principal        float64
	AnnualRate       float64 // percentage, e.g. 10 for 10%
	InstallmentCount int
	StartDate        time.Time
	Convention       RateConvention
}

// Installment holds the values for a single scheduled payment.
type Installment struct {
	Index            int
	DueDate          time.Time
	Payment          float64
	Principal        float64
	Interest         float64
	RemainingBalance float64
}

// Schedule is the ordered result of a calculation.
type Schedule struct {
	Request      Request
	Convention   RateConvention
	MonthlyRate  float64
	Payment      float64
	Installments []Installment
	Warnings     []string
}

// Calculator produces amortization schedules. It holds no state besides its
// logger and is safe for concurrent use.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a new calculator instance.
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// Generate is a convenience wrapper that uses a calculator without logging.
func Generate(req Request) (*Schedule, error) {
	return NewCalculator(nil).Generate(req)
}

// Validate checks the calculator preconditions. Business limits such as
// minimum installment counts or regulatory thresholds belong to the caller.
func (req Request) Validate() error {
	if !mathutil.IsFinite(req.Principal) || req.Principal <= 0 {
		return invalidArgument("principal", req.Principal, "must be greater than 0")
	}
	if !mathutil.IsFinite(req.AnnualRate) || req.AnnualRate <= 0 {
		return invalidArgument("annualRate", req.AnnualRate, "must be greater than 0")
	}
	if err := validateInstallmentCount(req.InstallmentCount); err != nil {
		return err
	}
	if req.StartDate.IsZero() {
		return invalidArgument("startDate", "", "is required")
	}
	if _, err := req.Convention.resolve(); err != nil {
		return err
	}
	return nil
}

func validateInstallmentCount(n int) error {
	if n < 1 {
		return invalidArgument("installmentCount", n, "must be at least 1")
	}
	if n > constants.MaxScheduleInstallments {
		return invalidArgument("installmentCount", n,
			fmt.Sprintf("must not exceed %d", constants.MaxScheduleInstallments))
	}
	return nil
}

// Generate creates the complete schedule for a request.
func (c *Calculator) Generate(req Request) (*Schedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	convention, _ := req.Convention.resolve()
	monthlyRate, err := MonthlyRate(req.AnnualRate, convention)
	if err != nil {
		return nil, err
	}

	return c.build(req, convention, monthlyRate)
}

func (c *Calculator) build(req Request, convention RateConvention, monthlyRate float64) (*Schedule, error) {
	n := req.InstallmentCount
	payment := FixedPayment(req.Principal, monthlyRate, n)
	if !mathutil.IsFinite(payment) {
		return nil, invalidArgument("principal", req.Principal,
			fmt.Sprintf("yields a non-finite installment at monthly rate %g over %d installments", monthlyRate, n))
	}

	schedule := &Schedule{
		Request:      req,
		Convention:   convention,
		MonthlyRate:  monthlyRate,
		Payment:      payment,
		Installments: make([]Installment, 0, n),
	}

	balance := req.Principal
	for i := 1; i <= n; i++ {
		interest := balance * monthlyRate
		principal := payment - interest
		remaining := balance - principal

		if i == n {
			// Whatever is left is floating-point residue; check it, then drop it.
			if !mathutil.WithinTolerance(remaining, 0, constants.DriftTolerance*req.Principal) {
				warning := fmt.Sprintf("final balance drifted by %.8f before correction", remaining)
				schedule.Warnings = append(schedule.Warnings, warning)
				c.logger.Warn("amortization schedule drift exceeds tolerance",
					zap.String("op", "amortization.Generate"),
					zap.Float64("principal", req.Principal),
					zap.Float64("residual", remaining),
					zap.Int("installments", n),
				)
			}
			remaining = 0
		}

		schedule.Installments = append(schedule.Installments, Installment{
			Index:            i,
			DueDate:          datetime.AddMonths(req.StartDate, i),
			Payment:          payment,
			Principal:        principal,
			Interest:         interest,
			RemainingBalance: math.Max(0, remaining),
		})
		balance = math.Max(0, remaining)
	}

	c.logger.Debug(fmt.Sprintf("generated %d installments of %.2f", n, payment),
		zap.String("op", "amortization.Generate"),
		zap.String("convention", string(convention)),
		zap.Float64("monthlyRate", monthlyRate),
	)

	return schedule, nil
}

// GenerateWithMonthlyRate builds a schedule from an explicit monthly rate,
// bypassing the annual conversion. A zero rate yields an interest-free
// schedule. The request's AnnualRate and Convention are ignored.
func (c *Calculator) GenerateWithMonthlyRate(req Request, monthlyRate float64) (*Schedule, error) {
	if !mathutil.IsFinite(req.Principal) || req.Principal <= 0 {
		return nil, invalidArgument("principal", req.Principal, "must be greater than 0")
	}
	if err := validateInstallmentCount(req.InstallmentCount); err != nil {
		return nil, err
	}
	if req.StartDate.IsZero() {
		return nil, invalidArgument("startDate", "", "is required")
	}
	if !mathutil.IsFinite(monthlyRate) || monthlyRate < 0 {
		return nil, invalidArgument("monthlyRate", monthlyRate, "must not be negative")
	}
	return c.build(req, req.Convention, monthlyRate)
}
