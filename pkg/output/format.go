// Package output provides utilities for formatting and displaying amortization schedules.
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/loan-schedule/pkg/amortization"
	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/datetime"
	"github.com/iwvelando/loan-schedule/pkg/format"
	"github.com/iwvelando/loan-schedule/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CSVHeader lists the columns written by CsvFormat.
var CSVHeader = []string{"index", "due_date", "payment", "principal", "interest", "remaining_balance"}

// PrettyFormat writes a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, schedule *amortization.Schedule) {
	p := message.NewPrinter(language.English)
	summary := schedule.Summary()
	sym := constants.CurrencySymbol

	_, _ = fmt.Fprintf(w, "--- Schedule for %s at %s (%s) ---\n",
		format.Currency(schedule.Request.Principal), format.Percent(schedule.Request.AnnualRate, 2), schedule.Convention)
	_, _ = fmt.Fprintf(w, "#   | Due date   | Payment      | Principal    | Interest     | Balance\n")
	_, _ = fmt.Fprintf(w, "___ | __________ | ____________ | ____________ | ____________ | ____________\n")
	for _, installment := range schedule.Installments {
		_, _ = fmt.Fprintf(w, "%-3d | %s | %12s | %12s | %12s | %12s\n",
			installment.Index,
			datetime.FormatDate(installment.DueDate),
			format.Currency(installment.Payment),
			format.Currency(installment.Principal),
			format.Currency(installment.Interest),
			format.Currency(installment.RemainingBalance),
		)
	}
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = p.Fprintf(w, "Monthly payment: %s %.2f\n", sym, mathutil.Round(summary.MonthlyPayment))
	_, _ = p.Fprintf(w, "Total interest:  %s %.2f\n", sym, mathutil.Round(summary.TotalInterest))
	_, _ = p.Fprintf(w, "Total paid:      %s %.2f\n", sym, mathutil.Round(summary.TotalPaid))
	for _, warning := range schedule.Warnings {
		_, _ = fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}

// CsvFormat writes the schedule in comma-separated value format, amounts
// rounded to cents.
func CsvFormat(w io.Writer, schedule *amortization.Schedule) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, installment := range schedule.Installments {
		record := []string{
			strconv.Itoa(installment.Index),
			datetime.FormatDate(installment.DueDate),
			formatAmount(installment.Payment),
			formatAmount(installment.Principal),
			formatAmount(installment.Interest),
			formatAmount(installment.RemainingBalance),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// CsvString renders the schedule as CSV into a string.
func CsvString(schedule *amortization.Schedule) string {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, schedule); err != nil {
		return ""
	}
	return buf.String()
}

func formatAmount(value float64) string {
	return strconv.FormatFloat(mathutil.Round(value), 'f', 2, 64)
}
