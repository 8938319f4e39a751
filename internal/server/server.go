package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/loan-schedule/internal/origination"
	"github.com/iwvelando/loan-schedule/pkg/amortization"
	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/datetime"
	"github.com/iwvelando/loan-schedule/pkg/mathutil"
	"github.com/iwvelando/loan-schedule/pkg/output"
	"github.com/strongo/decimal"
	"go.uber.org/zap"
)

type handler struct {
	logger      *zap.Logger
	workflow    *origination.Workflow
	calculator  *amortization.Calculator
	maxBodySize int64
	version     string
}

// NewHandler constructs the HTTP handler that serves the schedule and
// origination API. A nil workflow uses the default lending policy.
func NewHandler(logger *zap.Logger, workflow *origination.Workflow, maxBodySize int64, version string) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if workflow == nil {
		var err error
		workflow, err = origination.NewWorkflow(logger, nil)
		if err != nil {
			return nil, err
		}
	}

	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:      logger,
		workflow:    workflow,
		calculator:  amortization.NewCalculator(logger),
		maxBodySize: maxBodySize,
		version:     trimmedVersion,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/schedule", h.handleSchedule)
	mux.HandleFunc("/api/schedule/csv", h.handleScheduleCSV)
	mux.HandleFunc("/api/origination/evaluate", h.handleEvaluate)
	mux.HandleFunc("/api/origination/late-fee", h.handleLateFee)
	mux.HandleFunc("/api/version", h.handleVersion)

	return RequestIDMiddleware(logger, mux), nil
}

type scheduleRequest struct {
	Principal        float64 `json:"principal"`
	AnnualRate       float64 `json:"annualRate"`
	InstallmentCount int     `json:"installmentCount"`
	StartDate        string  `json:"startDate"`
	Convention       string  `json:"convention,omitempty"`
}

type installmentRow struct {
	Index            int     `json:"index"`
	DueDate          string  `json:"dueDate"`
	Payment          float64 `json:"payment"`
	Principal        float64 `json:"principal"`
	Interest         float64 `json:"interest"`
	RemainingBalance float64 `json:"remainingBalance"`
}

type summaryResponse struct {
	InstallmentCount int     `json:"installmentCount"`
	MonthlyPayment   float64 `json:"monthlyPayment"`
	TotalPaid        float64 `json:"totalPaid"`
	TotalPrincipal   float64 `json:"totalPrincipal"`
	TotalInterest    float64 `json:"totalInterest"`
	FirstDueDate     string  `json:"firstDueDate,omitempty"`
	LastDueDate      string  `json:"lastDueDate,omitempty"`
}

type scheduleResponse struct {
	Convention   string           `json:"convention"`
	MonthlyRate  float64          `json:"monthlyRate"`
	Payment      float64          `json:"payment"`
	Installments []installmentRow `json:"installments"`
	Summary      summaryResponse  `json:"summary"`
	Warnings     []string         `json:"warnings,omitempty"`
}

type applicationRequest struct {
	IdentityNumber    string  `json:"identityNumber"`
	Email             string  `json:"email,omitempty"`
	Principal         float64 `json:"principal"`
	AnnualRate        float64 `json:"annualRate"`
	InstallmentCount  int     `json:"installmentCount"`
	DisbursementDate  string  `json:"disbursementDate"`
	PEP               bool    `json:"pep"`
	DeclarationSigned bool    `json:"declarationSigned"`
	Convention        string  `json:"convention,omitempty"`
}

type assessmentResponse struct {
	Declaration string           `json:"declaration"`
	UIT         float64          `json:"uit"`
	ExceedsUIT  bool             `json:"exceedsUit"`
	PEP         bool             `json:"pep"`
	Notices     []string         `json:"notices,omitempty"`
	Schedule    scheduleResponse `json:"schedule"`
}

type lateFeeRequest struct {
	Schedule               scheduleRequest `json:"schedule"`
	Installment            int             `json:"installment"`
	PaymentDate            string          `json:"paymentDate"`
	LastPartialPaymentDate string          `json:"lastPartialPaymentDate,omitempty"`
	AlreadyPaid            float64         `json:"alreadyPaid,omitempty"`
}

type lateFeeResponse struct {
	Installment installmentRow      `json:"installment"`
	Fee         decimal.Decimal64p2 `json:"fee"`
	DaysOverdue int                 `json:"daysOverdue"`
	Outstanding decimal.Decimal64p2 `json:"outstanding"`
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSchedule"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	schedule, ok := h.generate(w, r, op)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, buildScheduleResponse(schedule))
}

func (h *handler) handleScheduleCSV(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleScheduleCSV"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	schedule, ok := h.generate(w, r, op)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := output.CsvFormat(w, schedule); err != nil {
		h.logger.Error("failed to write CSV response",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

// generate decodes a schedule request and runs the calculator, writing the
// error response itself when it fails.
func (h *handler) generate(w http.ResponseWriter, r *http.Request, op string) (*amortization.Schedule, bool) {
	var payload scheduleRequest
	if !h.decodeJSON(w, r, &payload, op) {
		return nil, false
	}

	req, err := h.scheduleRequest(payload)
	if err == nil {
		var schedule *amortization.Schedule
		schedule, err = h.calculator.Generate(req)
		if err == nil {
			return schedule, true
		}
	}

	if errors.Is(err, amortization.ErrInvalidArgument) {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
	} else {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to generate schedule: %v", err), op)
	}
	return nil, false
}

// scheduleRequest maps a payload onto a calculator request. The lending
// policy's minimum does not apply here, but its maximum does.
func (h *handler) scheduleRequest(payload scheduleRequest) (amortization.Request, error) {
	if limit := h.workflow.InstallmentPolicy().Max; limit > 0 && payload.InstallmentCount > limit {
		return amortization.Request{}, &amortization.InvalidArgumentError{
			Field:  "installmentCount",
			Value:  payload.InstallmentCount,
			Reason: fmt.Sprintf("must not exceed %d", limit),
		}
	}

	startDate, err := datetime.ParseDate(payload.StartDate)
	if err != nil {
		return amortization.Request{}, &amortization.InvalidArgumentError{
			Field: "startDate", Value: payload.StartDate, Reason: err.Error(),
		}
	}

	convention := h.workflow.Convention()
	if payload.Convention != "" {
		convention, err = amortization.ParseRateConvention(payload.Convention)
		if err != nil {
			return amortization.Request{}, err
		}
	}

	return amortization.Request{
		Principal:        payload.Principal,
		AnnualRate:       amortization.NormalizeRate(payload.AnnualRate),
		InstallmentCount: payload.InstallmentCount,
		StartDate:        startDate,
		Convention:       convention,
	}, nil
}

func (h *handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEvaluate"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var payload applicationRequest
	if !h.decodeJSON(w, r, &payload, op) {
		return
	}

	app := origination.Application{
		IdentityNumber:    payload.IdentityNumber,
		Email:             payload.Email,
		Principal:         payload.Principal,
		AnnualRate:        payload.AnnualRate,
		InstallmentCount:  payload.InstallmentCount,
		PEP:               payload.PEP,
		DeclarationSigned: payload.DeclarationSigned,
		Convention:        payload.Convention,
	}
	if strings.TrimSpace(payload.DisbursementDate) != "" {
		date, err := datetime.ParseDate(payload.DisbursementDate)
		if err != nil {
			h.respondValidation(w, &origination.ValidationError{
				Fields: map[string]string{"disbursementDate": err.Error()},
			}, op)
			return
		}
		app.DisbursementDate = date
	}

	assessment, err := h.workflow.Evaluate(r.Context(), app)
	if err != nil {
		h.respondWorkflowError(w, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, assessmentResponse{
		Declaration: string(assessment.Compliance.Declaration),
		UIT:         assessment.Compliance.UIT,
		ExceedsUIT:  assessment.Compliance.ExceedsUIT,
		PEP:         assessment.Compliance.PEP,
		Notices:     assessment.Compliance.Notices,
		Schedule:    buildScheduleResponse(assessment.Schedule),
	})
}

func (h *handler) handleLateFee(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLateFee"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var payload lateFeeRequest
	if !h.decodeJSON(w, r, &payload, op) {
		return
	}

	req, err := h.scheduleRequest(payload.Schedule)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	schedule, err := h.calculator.Generate(req)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	fields := map[string]string{}
	paymentDate, err := datetime.ParseDate(payload.PaymentDate)
	if err != nil {
		fields["paymentDate"] = err.Error()
	}
	var lastPartial time.Time
	if strings.TrimSpace(payload.LastPartialPaymentDate) != "" {
		lastPartial, err = datetime.ParseDate(payload.LastPartialPaymentDate)
		if err != nil {
			fields["lastPartialPaymentDate"] = err.Error()
		}
	}
	if len(fields) > 0 {
		h.respondValidation(w, &origination.ValidationError{Fields: fields}, op)
		return
	}

	quote, err := h.workflow.QuoteLateFee(schedule, payload.Installment, paymentDate, lastPartial, payload.AlreadyPaid)
	if err != nil {
		h.respondWorkflowError(w, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, lateFeeResponse{
		Installment: buildInstallmentRow(quote.Installment),
		Fee:         quote.Fee,
		DaysOverdue: quote.DaysOverdue,
		Outstanding: quote.Outstanding,
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize), op)
		case errors.Is(err, io.EOF):
			h.respondErrorWithOp(w, http.StatusBadRequest, "request body is empty", op)
		default:
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		}
		return false
	}
	return true
}

func (h *handler) respondWorkflowError(w http.ResponseWriter, err error, op string) {
	var validationErr *origination.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.respondValidation(w, validationErr, op)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, err.Error(), op)
	default:
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
	}
}

func (h *handler) respondValidation(w http.ResponseWriter, err *origination.ValidationError, op string) {
	h.logger.Info("application rejected",
		zap.String("op", op),
		zap.Int("status", http.StatusUnprocessableEntity),
		zap.String("error", err.Error()),
	)
	h.writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
		Error:  err.Error(),
		Fields: err.Fields,
	})
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("schedule request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Int("status", status),
			zap.Error(err),
		)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body = append(body, '\n')
	if _, err := w.Write(body); err != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}

func buildInstallmentRow(installment amortization.Installment) installmentRow {
	return installmentRow{
		Index:            installment.Index,
		DueDate:          datetime.FormatDate(installment.DueDate),
		Payment:          mathutil.Round(installment.Payment),
		Principal:        mathutil.Round(installment.Principal),
		Interest:         mathutil.Round(installment.Interest),
		RemainingBalance: mathutil.Round(installment.RemainingBalance),
	}
}

// buildScheduleResponse rounds every amount to cents. The monthly rate is
// left unrounded.
func buildScheduleResponse(schedule *amortization.Schedule) scheduleResponse {
	rows := make([]installmentRow, 0, len(schedule.Installments))
	for _, installment := range schedule.Installments {
		rows = append(rows, buildInstallmentRow(installment))
	}

	summary := schedule.Summary()
	resp := scheduleResponse{
		Convention:   string(schedule.Convention),
		MonthlyRate:  schedule.MonthlyRate,
		Payment:      mathutil.Round(schedule.Payment),
		Installments: rows,
		Summary: summaryResponse{
			InstallmentCount: summary.InstallmentCount,
			MonthlyPayment:   mathutil.Round(summary.MonthlyPayment),
			TotalPaid:        mathutil.Round(summary.TotalPaid),
			TotalPrincipal:   mathutil.Round(summary.TotalPrincipal),
			TotalInterest:    mathutil.Round(summary.TotalInterest),
		},
		Warnings: schedule.Warnings,
	}
	if !summary.FirstDueDate.IsZero() {
		resp.Summary.FirstDueDate = datetime.FormatDate(summary.FirstDueDate)
		resp.Summary.LastDueDate = datetime.FormatDate(summary.LastDueDate)
	}
	return resp
}
