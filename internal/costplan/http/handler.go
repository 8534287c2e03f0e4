package costplanhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/costplan/internal/costplan"
	"github.com/odyssey-erp/costplan/internal/costplan/export"
	"github.com/odyssey-erp/costplan/internal/platform/httpx"
)

// Service is the slice of costplan.Service the handler depends on.
type Service interface {
	Report(ctx context.Context, projectID uuid.UUID, period *costplan.Period) (costplan.Report, error)
	PaymentSchedule(ctx context.Context, projectID, costLineID uuid.UUID, period *costplan.Period) (costplan.PaymentSchedule, error)
	NextVariationNumber(ctx context.Context, projectID uuid.UUID, category costplan.VariationCategory) (string, error)
	CreateVariation(ctx context.Context, input costplan.CreateVariationInput) (costplan.Variation, error)
	TriggerSnapshot(ctx context.Context, req costplan.SnapshotRequest) (costplan.Snapshot, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (costplan.Snapshot, error)
}

// SnapshotEnqueuer hands pending snapshots to the background worker.
type SnapshotEnqueuer interface {
	EnqueueCostReportSnapshot(ctx context.Context, snapshotID uuid.UUID) (*asynq.TaskInfo, error)
}

// Handler wires the cost plan JSON API.
type Handler struct {
	logger    *slog.Logger
	service   Service
	jobs      SnapshotEnqueuer
	formatter *export.Formatter
}

// NewHandler constructs handler. jobs may be nil, leaving snapshots pending.
func NewHandler(logger *slog.Logger, service Service, jobs SnapshotEnqueuer, formatter *export.Formatter) *Handler {
	if formatter == nil {
		formatter = export.DefaultFormatter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, jobs: jobs, formatter: formatter}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Get("/cost-plan", h.showReport)
		r.Get("/cost-plan/export.csv", h.exportReport("csv"))
		r.Get("/cost-plan/export.xlsx", h.exportReport("xlsx"))
		r.Get("/cost-plan/export.pdf", h.exportReport("pdf"))
		r.Post("/cost-plan/snapshots", h.triggerSnapshot)
		r.Get("/cost-lines/{costLineID}/payment-schedule", h.showPaymentSchedule)
		r.Get("/variations/next-number", h.nextVariationNumber)
		r.Post("/variations", h.createVariation)
	})
	r.Get("/cost-plan/snapshots/{id}", h.showSnapshot)
}

func (h *Handler) showReport(w http.ResponseWriter, r *http.Request) {
	projectID, period, ok := h.projectAndPeriod(w, r)
	if !ok {
		return
	}
	report, err := h.service.Report(r.Context(), projectID, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) exportReport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, period, ok := h.projectAndPeriod(w, r)
		if !ok {
			return
		}
		report, err := h.service.Report(r.Context(), projectID, period)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		var (
			buf         bytes.Buffer
			contentType string
		)
		switch format {
		case "csv":
			contentType = "text/csv; charset=utf-8"
			err = export.WriteCSV(&buf, report)
		case "xlsx":
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			var raw []byte
			raw, err = export.BuildXLSX(report, h.formatter)
			buf.Write(raw)
		case "pdf":
			contentType = "application/pdf"
			var raw []byte
			raw, err = export.BuildPDF(report, h.formatter)
			buf.Write(raw)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(projectID, period, format)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func (h *Handler) showPaymentSchedule(w http.ResponseWriter, r *http.Request) {
	projectID, period, ok := h.projectAndPeriod(w, r)
	if !ok {
		return
	}
	costLineID, err := parseUUID(chi.URLParam(r, "costLineID"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: cost line id", httpx.ErrValidation))
		return
	}
	schedule, err := h.service.PaymentSchedule(r.Context(), projectID, costLineID, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, schedule)
}

func (h *Handler) nextVariationNumber(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUUID(chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: project id", httpx.ErrValidation))
		return
	}
	category, err := costplan.ParseVariationCategory(r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	number, err := h.service.NextVariationNumber(r.Context(), projectID, category)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"category": string(category), "number": number})
}

type createVariationRequest struct {
	CostLineID  uuid.UUID `json:"cost_line_id"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Forecast    string    `json:"forecast_amount"`
	Approved    string    `json:"approved_amount"`
}

func (h *Handler) createVariation(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUUID(chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: project id", httpx.ErrValidation))
		return
	}
	var req createVariationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	category, err := costplan.ParseVariationCategory(req.Category)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	forecast, err := optionalCents(req.Forecast)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: forecast_amount", err))
		return
	}
	approved, err := optionalCents(req.Approved)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: approved_amount", err))
		return
	}
	created, err := h.service.CreateVariation(r.Context(), costplan.CreateVariationInput{
		ProjectID:     projectID,
		CostLineID:    req.CostLineID,
		Category:      category,
		Status:        costplan.VariationStatus(strings.TrimSpace(req.Status)),
		Description:   strings.TrimSpace(req.Description),
		ForecastCents: forecast,
		ApprovedCents: approved,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type triggerSnapshotRequest struct {
	Period string `json:"period"`
}

func (h *Handler) triggerSnapshot(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUUID(chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: project id", httpx.ErrValidation))
		return
	}
	var body triggerSnapshotRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			h.fail(w, r, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
			return
		}
	}
	period, err := optionalPeriod(body.Period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snapshot, err := h.service.TriggerSnapshot(r.Context(), costplan.SnapshotRequest{ProjectID: projectID, Period: period})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.jobs != nil {
		if _, err := h.jobs.EnqueueCostReportSnapshot(r.Context(), snapshot.ID); err != nil {
			h.logger.Warn("enqueue cost report snapshot", slog.String("snapshot_id", snapshot.ID.String()), slog.Any("error", err))
		}
	}
	w.Header().Set("Location", "/cost-plan/snapshots/"+snapshot.ID.String())
	httpx.JSON(w, http.StatusAccepted, snapshot)
}

func (h *Handler) showSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: snapshot id", httpx.ErrValidation))
		return
	}
	snapshot, err := h.service.GetSnapshot(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) projectAndPeriod(w http.ResponseWriter, r *http.Request) (uuid.UUID, *costplan.Period, bool) {
	projectID, err := parseUUID(chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: project id", httpx.ErrValidation))
		return uuid.Nil, nil, false
	}
	period, err := optionalPeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, r, err)
		return uuid.Nil, nil, false
	}
	return projectID, period, true
}

// fail translates costplan errors to the httpx sentinels before responding.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	mapped := classify(err)
	if !errors.Is(mapped, httpx.ErrValidation) && !errors.Is(mapped, httpx.ErrNotFound) && !errors.Is(mapped, httpx.ErrConflict) {
		h.logger.Error("costplan request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, mapped)
}

func classify(err error) error {
	switch {
	case errors.Is(err, costplan.ErrInvalidPeriod),
		errors.Is(err, costplan.ErrUnknownCategory),
		errors.Is(err, costplan.ErrUnknownSection),
		errors.Is(err, costplan.ErrInvalidAmount),
		errors.Is(err, costplan.ErrInvalidInput):
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, costplan.ErrCostLineNotFound),
		errors.Is(err, costplan.ErrSnapshotNotFound):
		return fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, costplan.ErrNumberAllocation):
		return fmt.Errorf("%w: %v", httpx.ErrConflict, err)
	}
	return err
}

func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(raw))
}

func optionalPeriod(raw string) (*costplan.Period, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	p, err := costplan.ParsePeriod(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func optionalCents(raw string) (costplan.Cents, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return costplan.ParseCents(raw)
}

func exportFilename(projectID uuid.UUID, period *costplan.Period, format string) string {
	suffix := "all"
	if period != nil {
		suffix = period.String()
	}
	return fmt.Sprintf("cost_plan_%s_%s.%s", projectID, suffix, format)
}
