package amortization

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/datetime"
	"github.com/iwvelando/loan-schedule/pkg/mathutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func mustGenerate(t *testing.T, req Request) *Schedule {
	t.Helper()
	schedule, err := NewCalculator(zap.NewNop()).Generate(req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return schedule
}

func TestMonthlyRate(t *testing.T) {
	tests := []struct {
		name       string
		annualRate float64
		convention RateConvention
		expected   float64
	}{
		{"Nominal 12%", 12, ConventionNominal, 0.01},
		{"Nominal 10%", 10, ConventionNominal, 0.1 / 12},
		{"Effective 10%", 10, ConventionEffective, 0.007974140428903764},
		{"Effective 12.68% is close to nominal 12%", 12.682503013196977, ConventionEffective, 0.01},
		{"Zero value defaults to effective", 10, "", 0.007974140428903764},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MonthlyRate(tt.annualRate, tt.convention)
			if err != nil {
				t.Fatalf("MonthlyRate() error = %v", err)
			}
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("MonthlyRate() = %.15f, expected %.15f", result, tt.expected)
			}
		})
	}
}

func TestMonthlyRateUnknownConvention(t *testing.T) {
	_, err := MonthlyRate(10, RateConvention("daily"))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestParseRateConvention(t *testing.T) {
	tests := []struct {
		input    string
		expected RateConvention
		wantErr  bool
	}{
		{"", ConventionEffective, false},
		{"effective", ConventionEffective, false},
		{" TEA ", ConventionEffective, false},
		{"Nominal", ConventionNominal, false},
		{"tna", ConventionNominal, false},
		{"compound", "", true},
	}

	for _, tt := range tests {
		result, err := ParseRateConvention(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRateConvention(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if result != tt.expected {
			t.Errorf("ParseRateConvention(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestNormalizeRate(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{0.1, 10},
		{1, 100},
		{0.35, 35},
		{10, 10},
		{100, 100},
		{0, 0},
		{-5, -5},
	}

	for _, tt := range tests {
		if got := NormalizeRate(tt.input); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("NormalizeRate(%v) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestFixedPayment(t *testing.T) {
	tests := []struct {
		name         string
		principal    float64
		monthlyRate  float64
		installments int
		expected     float64
	}{
		{"1000 at 1% monthly over 12", 1000, 0.01, 12, 88.84878867834168},
		{"UIT at 10% nominal over 3", 5350, 0.1 / 12, 3, 1813.1377742323123},
		{"Zero interest", 1200, 0, 12, 100},
		{"Single installment", 500, 0.02, 1, 510},
		{"Rate below the resolution of 1+m", 1200, 1e-18, 12, 100},
		{"Term long enough to overflow (1+m)^n", 1000, 0.01, 100000, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FixedPayment(tt.principal, tt.monthlyRate, tt.installments)
			if math.Abs(result-tt.expected) > 1e-8 {
				t.Errorf("FixedPayment() = %.10f, expected %.10f", result, tt.expected)
			}
		})
	}
}

func TestGenerateNominalTwelvePercent(t *testing.T) {
	schedule := mustGenerate(t, Request{
		Principal:        1000,
		AnnualRate:       12,
		InstallmentCount: 12,
		StartDate:        datetime.MustParseDate("2025-01-15"),
		Convention:       ConventionNominal,
	})

	if len(schedule.Installments) != 12 {
		t.Fatalf("expected 12 installments, got %d", len(schedule.Installments))
	}
	if math.Abs(schedule.Payment-88.85) > 0.005 {
		t.Errorf("payment = %.4f, expected ~88.85", schedule.Payment)
	}

	first := schedule.Installments[0]
	if math.Abs(first.Interest-10.00) > 0.005 {
		t.Errorf("first interest = %.4f, expected ~10.00", first.Interest)
	}
	if math.Abs(first.Principal-78.85) > 0.005 {
		t.Errorf("first principal = %.4f, expected ~78.85", first.Principal)
	}
	if got := datetime.FormatDate(first.DueDate); got != "2025-02-15" {
		t.Errorf("first due date = %s, expected 2025-02-15", got)
	}

	last := schedule.Installments[11]
	if last.RemainingBalance != 0 {
		t.Errorf("last remaining balance = %v, expected 0", last.RemainingBalance)
	}
	if got := datetime.FormatDate(last.DueDate); got != "2026-01-15" {
		t.Errorf("last due date = %s, expected 2026-01-15", got)
	}
}

func TestGenerateOneUITThreeInstallments(t *testing.T) {
	schedule := mustGenerate(t, Request{
		Principal:        5350,
		AnnualRate:       10,
		InstallmentCount: 3,
		StartDate:        datetime.MustParseDate("2025-03-01"),
		Convention:       ConventionNominal,
	})

	if len(schedule.Installments) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(schedule.Installments))
	}

	expectedBalances := []float64{3581.445559101021, 1798.153164527884, 0}
	previous := schedule.Request.Principal
	for i, installment := range schedule.Installments {
		if installment.RemainingBalance >= previous {
			t.Errorf("installment %d balance %.2f did not decrease from %.2f", installment.Index, installment.RemainingBalance, previous)
		}
		if math.Abs(installment.RemainingBalance-expectedBalances[i]) > 1e-6 {
			t.Errorf("installment %d balance = %.6f, expected %.6f", installment.Index, installment.RemainingBalance, expectedBalances[i])
		}
		previous = installment.RemainingBalance
	}
	if schedule.Installments[2].RemainingBalance != 0 {
		t.Errorf("final balance = %v, expected 0", schedule.Installments[2].RemainingBalance)
	}
}

func TestGenerateEffectiveRateMatchesBackend(t *testing.T) {
	// 12000 at 10% TEA over 12 months.
	schedule := mustGenerate(t, Request{
		Principal:        12000,
		AnnualRate:       10,
		InstallmentCount: 12,
		StartDate:        datetime.MustParseDate("2025-01-10"),
	})

	if schedule.Convention != ConventionEffective {
		t.Errorf("convention = %q, expected %q", schedule.Convention, ConventionEffective)
	}
	if math.Abs(schedule.Payment-1052.5865366152939) > 1e-8 {
		t.Errorf("payment = %.10f, expected 1052.5865366153", schedule.Payment)
	}
	summary := schedule.Summary()
	if math.Abs(summary.TotalPaid-12631.038439383527) > 1e-6 {
		t.Errorf("total paid = %.6f, expected 12631.038439", summary.TotalPaid)
	}
}

func TestGenerateInvariants(t *testing.T) {
	starts := []time.Time{
		datetime.MustParseDate("2025-01-31"),
		datetime.MustParseDate("2024-02-29"),
		datetime.MustParseDate("2025-07-15"),
	}
	principals := []float64{0.01, 300, 1000, 5350, 49999.99, 1e9}
	rates := []float64{1e-15, 0.5, 10, 35.5, 100}
	counts := []int{1, 2, 3, 12, 24, 36}
	conventions := []RateConvention{ConventionEffective, ConventionNominal}

	calc := NewCalculator(zap.NewNop())
	for _, start := range starts {
		for _, principal := range principals {
			for _, rate := range rates {
				for _, n := range counts {
					for _, convention := range conventions {
						schedule, err := calc.Generate(Request{
							Principal:        principal,
							AnnualRate:       rate,
							InstallmentCount: n,
							StartDate:        start,
							Convention:       convention,
						})
						if err != nil {
							t.Fatalf("Generate(%v, %v, %d, %s) error = %v", principal, rate, n, convention, err)
						}
						assertScheduleInvariants(t, schedule)
					}
				}
			}
		}
	}
}

func assertScheduleInvariants(t *testing.T, schedule *Schedule) {
	t.Helper()
	req := schedule.Request

	if len(schedule.Installments) != req.InstallmentCount {
		t.Fatalf("expected %d installments, got %d", req.InstallmentCount, len(schedule.Installments))
	}
	if len(schedule.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", schedule.Warnings)
	}

	sumPrincipal := 0.0
	previousBalance := req.Principal
	var previousDue time.Time
	for i, installment := range schedule.Installments {
		if installment.Index != i+1 {
			t.Errorf("installment index = %d, expected %d", installment.Index, i+1)
		}
		if installment.Payment != schedule.Payment {
			t.Errorf("installment %d payment %v differs from fixed payment %v", installment.Index, installment.Payment, schedule.Payment)
		}
		if math.Abs(installment.Principal+installment.Interest-installment.Payment) > 1e-9*math.Max(1, installment.Payment) {
			t.Errorf("installment %d principal + interest != payment", installment.Index)
		}
		if installment.RemainingBalance > previousBalance {
			t.Errorf("installment %d balance increased: %v > %v", installment.Index, installment.RemainingBalance, previousBalance)
		}
		if !installment.DueDate.After(previousDue) {
			t.Errorf("installment %d due date %s not after %s", installment.Index, installment.DueDate, previousDue)
		}
		if expected := datetime.AddMonths(req.StartDate, installment.Index); !installment.DueDate.Equal(expected) {
			t.Errorf("installment %d due date = %s, expected %s", installment.Index, installment.DueDate, expected)
		}
		sumPrincipal += installment.Principal
		previousBalance = installment.RemainingBalance
		previousDue = installment.DueDate
	}

	if math.Abs(sumPrincipal-req.Principal) > 1e-6*req.Principal {
		t.Errorf("sum of principal %.10f differs from principal %.10f", sumPrincipal, req.Principal)
	}
	if last := schedule.Installments[len(schedule.Installments)-1]; last.RemainingBalance != 0 {
		t.Errorf("final balance = %v, expected 0", last.RemainingBalance)
	}
}

func TestGenerateZeroInterest(t *testing.T) {
	calc := NewCalculator(zap.NewNop())
	schedule, err := calc.GenerateWithMonthlyRate(Request{
		Principal:        1000,
		InstallmentCount: 3,
		StartDate:        datetime.MustParseDate("2025-01-01"),
	}, 0)
	if err != nil {
		t.Fatalf("GenerateWithMonthlyRate() error = %v", err)
	}

	expected := 1000.0 / 3
	for _, installment := range schedule.Installments {
		if math.Abs(installment.Payment-expected) > 1e-9 {
			t.Errorf("installment %d payment = %v, expected %v", installment.Index, installment.Payment, expected)
		}
		if installment.Interest != 0 {
			t.Errorf("installment %d interest = %v, expected 0", installment.Index, installment.Interest)
		}
	}
	if last := schedule.Installments[2]; last.RemainingBalance != 0 {
		t.Errorf("final balance = %v, expected 0", last.RemainingBalance)
	}
}

func TestGenerateWithMonthlyRateRejectsNegativeRate(t *testing.T) {
	_, err := NewCalculator(nil).GenerateWithMonthlyRate(Request{
		Principal:        1000,
		InstallmentCount: 3,
		StartDate:        datetime.MustParseDate("2025-01-01"),
	}, -0.01)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGenerateEndOfMonthDueDates(t *testing.T) {
	schedule := mustGenerate(t, Request{
		Principal:        3000,
		AnnualRate:       20,
		InstallmentCount: 4,
		StartDate:        datetime.MustParseDate("2025-01-31"),
	})

	expected := []string{"2025-02-28", "2025-03-31", "2025-04-30", "2025-05-31"}
	for i, installment := range schedule.Installments {
		if got := datetime.FormatDate(installment.DueDate); got != expected[i] {
			t.Errorf("installment %d due date = %s, expected %s", installment.Index, got, expected[i])
		}
	}
}

func TestGenerateInvalidArguments(t *testing.T) {
	start := datetime.MustParseDate("2025-01-01")
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"Zero principal", Request{Principal: 0, AnnualRate: 10, InstallmentCount: 12, StartDate: start}, "principal"},
		{"Negative principal", Request{Principal: -100, AnnualRate: 10, InstallmentCount: 12, StartDate: start}, "principal"},
		{"NaN principal", Request{Principal: math.NaN(), AnnualRate: 10, InstallmentCount: 12, StartDate: start}, "principal"},
		{"Zero rate", Request{Principal: 1000, AnnualRate: 0, InstallmentCount: 12, StartDate: start}, "annualRate"},
		{"Negative rate", Request{Principal: 1000, AnnualRate: -1, InstallmentCount: 12, StartDate: start}, "annualRate"},
		{"Infinite rate", Request{Principal: 1000, AnnualRate: math.Inf(1), InstallmentCount: 12, StartDate: start}, "annualRate"},
		{"Zero installments", Request{Principal: 1000, AnnualRate: 10, InstallmentCount: 0, StartDate: start}, "installmentCount"},
		{"Negative installments", Request{Principal: 1000, AnnualRate: 10, InstallmentCount: -3, StartDate: start}, "installmentCount"},
		{"Installments above schedule ceiling", Request{Principal: 1000, AnnualRate: 10, InstallmentCount: 100000, StartDate: start}, "installmentCount"},
		{"Installment overflows", Request{Principal: math.MaxFloat64, AnnualRate: 100, InstallmentCount: 1, StartDate: start}, "principal"},
		{"Missing start date", Request{Principal: 1000, AnnualRate: 10, InstallmentCount: 12}, "startDate"},
		{"Unknown convention", Request{Principal: 1000, AnnualRate: 10, InstallmentCount: 12, StartDate: start, Convention: "weekly"}, "convention"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := Generate(tt.req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if schedule != nil {
				t.Errorf("expected no partial schedule, got %+v", schedule)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			var argErr *InvalidArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("expected *InvalidArgumentError, got %T", err)
			}
			if argErr.Field != tt.field {
				t.Errorf("field = %q, expected %q", argErr.Field, tt.field)
			}
		})
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	req := Request{
		Principal:        7800,
		AnnualRate:       35,
		InstallmentCount: 18,
		StartDate:        datetime.MustParseDate("2025-05-20"),
	}

	first := mustGenerate(t, req)
	second := mustGenerate(t, req)

	if len(first.Installments) != len(second.Installments) {
		t.Fatalf("installment counts differ: %d vs %d", len(first.Installments), len(second.Installments))
	}
	for i := range first.Installments {
		if first.Installments[i] != second.Installments[i] {
			t.Errorf("installment %d differs: %+v vs %+v", i+1, first.Installments[i], second.Installments[i])
		}
	}
}

func TestGenerateConcurrentUse(t *testing.T) {
	calc := NewCalculator(zap.NewNop())
	req := Request{
		Principal:        2500,
		AnnualRate:       25,
		InstallmentCount: 24,
		StartDate:        datetime.MustParseDate("2025-01-05"),
	}
	reference := mustGenerate(t, req)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	mismatches := make(chan int, 16)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			schedule, err := calc.Generate(req)
			if err != nil {
				errs <- err
				return
			}
			for i := range schedule.Installments {
				if schedule.Installments[i] != reference.Installments[i] {
					mismatches <- i + 1
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	close(mismatches)

	for err := range errs {
		t.Errorf("concurrent Generate() error = %v", err)
	}
	for index := range mismatches {
		t.Errorf("concurrent schedule differs at installment %d", index)
	}
}

func TestGenerateLogsWithoutWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	calc := NewCalculator(zap.New(core))

	if _, err := calc.Generate(Request{
		Principal:        5350,
		AnnualRate:       10,
		InstallmentCount: 3,
		StartDate:        datetime.MustParseDate("2025-03-01"),
	}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if warnings := logs.FilterLevelExact(zapcore.WarnLevel).Len(); warnings != 0 {
		t.Errorf("expected no drift warnings, got %d", warnings)
	}
	debug := logs.FilterField(zap.String("op", "amortization.Generate")).All()
	if len(debug) != 1 {
		t.Fatalf("expected 1 debug entry, got %d", len(debug))
	}
}

func TestGenerateReportsDriftAboveTolerance(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	calc := NewCalculator(zap.New(core))

	// At 100% a month over 1200 installments the payment equals the interest
	// in floating point, so the balance never moves before the final correction.
	schedule, err := calc.GenerateWithMonthlyRate(Request{
		Principal:        1000,
		InstallmentCount: 1200,
		StartDate:        datetime.MustParseDate("2025-01-01"),
	}, 1)
	if err != nil {
		t.Fatalf("GenerateWithMonthlyRate() error = %v", err)
	}

	if !mathutil.IsFinite(schedule.Payment) {
		t.Fatalf("payment = %v, expected a finite value", schedule.Payment)
	}
	if len(schedule.Warnings) != 1 {
		t.Fatalf("expected 1 schedule warning, got %v", schedule.Warnings)
	}
	if !strings.Contains(schedule.Warnings[0], "final balance drifted") {
		t.Errorf("unexpected warning %q", schedule.Warnings[0])
	}
	if last := schedule.Installments[len(schedule.Installments)-1]; last.RemainingBalance != 0 {
		t.Errorf("final balance = %v, expected 0 after correction", last.RemainingBalance)
	}

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 drift warning, got %d", len(warnings))
	}
	fields := warnings[0].ContextMap()
	if fields["op"] != "amortization.Generate" {
		t.Errorf("op = %v, expected amortization.Generate", fields["op"])
	}
	if residual, ok := fields["residual"].(float64); !ok || residual <= constants.DriftTolerance*1000 {
		t.Errorf("residual = %v, expected above tolerance", fields["residual"])
	}
}

func TestSummary(t *testing.T) {
	schedule := mustGenerate(t, Request{
		Principal:        1000,
		AnnualRate:       12,
		InstallmentCount: 12,
		StartDate:        datetime.MustParseDate("2025-01-15"),
		Convention:       ConventionNominal,
	})

	summary := schedule.Summary()
	if summary.InstallmentCount != 12 {
		t.Errorf("installment count = %d, expected 12", summary.InstallmentCount)
	}
	if math.Abs(summary.TotalPaid-schedule.Payment*12) > 1e-9 {
		t.Errorf("total paid = %v, expected %v", summary.TotalPaid, schedule.Payment*12)
	}
	if math.Abs(summary.TotalPrincipal-1000) > 1e-6 {
		t.Errorf("total principal = %v, expected 1000", summary.TotalPrincipal)
	}
	if math.Abs(summary.TotalPrincipal+summary.TotalInterest-summary.TotalPaid) > 1e-6 {
		t.Errorf("principal + interest = %v, expected %v", summary.TotalPrincipal+summary.TotalInterest, summary.TotalPaid)
	}
	if got := datetime.FormatDate(summary.FirstDueDate); got != "2025-02-15" {
		t.Errorf("first due date = %s", got)
	}
	if got := datetime.FormatDate(summary.LastDueDate); got != "2026-01-15" {
		t.Errorf("last due date = %s", got)
	}

	if _, ok := schedule.Installment(0); ok {
		t.Error("expected index 0 to be out of range")
	}
	if installment, ok := schedule.Installment(12); !ok || installment.Index != 12 {
		t.Errorf("Installment(12) = %+v, %v", installment, ok)
	}
}
