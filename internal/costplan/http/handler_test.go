package costplanhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/costplan/internal/costplan"
	_ "github.com/odyssey-erp/costplan/testing"
)

type stubCostPlanService struct {
	reportFn          func(ctx context.Context, projectID uuid.UUID, period *costplan.Period) (costplan.Report, error)
	scheduleFn        func(ctx context.Context, projectID, costLineID uuid.UUID, period *costplan.Period) (costplan.PaymentSchedule, error)
	nextNumberFn      func(ctx context.Context, projectID uuid.UUID, category costplan.VariationCategory) (string, error)
	createVariationFn func(ctx context.Context, input costplan.CreateVariationInput) (costplan.Variation, error)
	triggerFn         func(ctx context.Context, req costplan.SnapshotRequest) (costplan.Snapshot, error)
	getSnapshotFn     func(ctx context.Context, id uuid.UUID) (costplan.Snapshot, error)
}

func (s *stubCostPlanService) Report(ctx context.Context, projectID uuid.UUID, period *costplan.Period) (costplan.Report, error) {
	if s.reportFn == nil {
		return costplan.Report{ProjectID: projectID, Period: period}, nil
	}
	return s.reportFn(ctx, projectID, period)
}

func (s *stubCostPlanService) PaymentSchedule(ctx context.Context, projectID, costLineID uuid.UUID, period *costplan.Period) (costplan.PaymentSchedule, error) {
	return s.scheduleFn(ctx, projectID, costLineID, period)
}

func (s *stubCostPlanService) NextVariationNumber(ctx context.Context, projectID uuid.UUID, category costplan.VariationCategory) (string, error) {
	return s.nextNumberFn(ctx, projectID, category)
}

func (s *stubCostPlanService) CreateVariation(ctx context.Context, input costplan.CreateVariationInput) (costplan.Variation, error) {
	return s.createVariationFn(ctx, input)
}

func (s *stubCostPlanService) TriggerSnapshot(ctx context.Context, req costplan.SnapshotRequest) (costplan.Snapshot, error) {
	return s.triggerFn(ctx, req)
}

func (s *stubCostPlanService) GetSnapshot(ctx context.Context, id uuid.UUID) (costplan.Snapshot, error) {
	return s.getSnapshotFn(ctx, id)
}

type stubEnqueuer struct {
	ids []uuid.UUID
	err error
}

func (s *stubEnqueuer) EnqueueCostReportSnapshot(_ context.Context, id uuid.UUID) (*asynq.TaskInfo, error) {
	s.ids = append(s.ids, id)
	return &asynq.TaskInfo{ID: id.String()}, s.err
}

var testProjectID = uuid.MustParse("6f1c1d1e-0000-4000-8000-000000000001")

func newTestRouter(svc Service, jobs SnapshotEnqueuer) http.Handler {
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, jobs, nil).MountRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestShowReportPassesPeriod(t *testing.T) {
	var gotPeriod *costplan.Period
	svc := &stubCostPlanService{
		reportFn: func(ctx context.Context, id uuid.UUID, period *costplan.Period) (costplan.Report, error) {
			if id != testProjectID {
				t.Fatalf("unexpected project %s", id)
			}
			gotPeriod = period
			return costplan.Report{ProjectID: id, Period: period, Summary: costplan.SummaryStatistics{LineCount: 3}}, nil
		},
	}
	rr := do(t, newTestRouter(svc, nil), http.MethodGet, "/projects/"+testProjectID.String()+"/cost-plan?period=2024-03", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotPeriod == nil || gotPeriod.Year != 2024 || gotPeriod.Month != 3 {
		t.Fatalf("unexpected period %+v", gotPeriod)
	}
	var report costplan.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Summary.LineCount != 3 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
}

func TestShowReportWithoutPeriod(t *testing.T) {
	svc := &stubCostPlanService{
		reportFn: func(ctx context.Context, id uuid.UUID, period *costplan.Period) (costplan.Report, error) {
			if period != nil {
				t.Fatalf("expected nil period, got %+v", period)
			}
			return costplan.Report{ProjectID: id}, nil
		},
	}
	rr := do(t, newTestRouter(svc, nil), http.MethodGet, "/projects/"+testProjectID.String()+"/cost-plan", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestBadInputsReturnProblem(t *testing.T) {
	h := newTestRouter(&stubCostPlanService{}, nil)
	cases := []string{
		"/projects/not-a-uuid/cost-plan",
		"/projects/" + testProjectID.String() + "/cost-plan?period=2024-13",
		"/projects/" + testProjectID.String() + "/cost-plan?period=March",
		"/projects/" + testProjectID.String() + "/variations/next-number?category=OWNER",
		"/projects/" + testProjectID.String() + "/cost-lines/nope/payment-schedule",
		"/cost-plan/snapshots/nope",
	}
	for _, target := range cases {
		rr := do(t, h, http.MethodGet, target, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("%s: unexpected content type %s", target, ct)
		}
	}
}

func TestExportFormats(t *testing.T) {
	h := newTestRouter(&stubCostPlanService{}, nil)
	cases := map[string]string{
		"csv":  "text/csv; charset=utf-8",
		"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"pdf":  "application/pdf",
	}
	for format, contentType := range cases {
		rr := do(t, h, http.MethodGet, "/projects/"+testProjectID.String()+"/cost-plan/export."+format+"?period=2024-03", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", format, rr.Code)
		}
		if got := rr.Header().Get("Content-Type"); got != contentType {
			t.Fatalf("%s: unexpected content type %s", format, got)
		}
		want := "cost_plan_" + testProjectID.String() + "_2024-03." + format
		if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, want) {
			t.Fatalf("%s: unexpected disposition %s", format, got)
		}
		if rr.Body.Len() == 0 {
			t.Fatalf("%s: empty body", format)
		}
	}
}

func TestPaymentScheduleNotFound(t *testing.T) {
	lineID := uuid.New()
	svc := &stubCostPlanService{
		scheduleFn: func(ctx context.Context, pid, cid uuid.UUID, period *costplan.Period) (costplan.PaymentSchedule, error) {
			if cid != lineID {
				t.Fatalf("unexpected cost line %s", cid)
			}
			return costplan.PaymentSchedule{}, costplan.ErrCostLineNotFound
		},
	}
	rr := do(t, newTestRouter(svc, nil), http.MethodGet, "/projects/"+testProjectID.String()+"/cost-lines/"+lineID.String()+"/payment-schedule", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestNextVariationNumber(t *testing.T) {
	svc := &stubCostPlanService{
		nextNumberFn: func(ctx context.Context, pid uuid.UUID, category costplan.VariationCategory) (string, error) {
			if category != costplan.CategoryContractor {
				t.Fatalf("unexpected category %s", category)
			}
			return "CV-003", nil
		},
	}
	rr := do(t, newTestRouter(svc, nil), http.MethodGet, "/projects/"+testProjectID.String()+"/variations/next-number?category=contractor", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["number"] != "CV-003" || body["category"] != "CONTRACTOR" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCreateVariationParsesAmounts(t *testing.T) {
	lineID := uuid.New()
	var captured costplan.CreateVariationInput
	svc := &stubCostPlanService{
		createVariationFn: func(ctx context.Context, in costplan.CreateVariationInput) (costplan.Variation, error) {
			captured = in
			return costplan.Variation{ID: uuid.New(), Number: "PV-001", Category: in.Category, Status: in.Status}, nil
		},
	}
	body := `{"cost_line_id":"` + lineID.String() + `","category":"PRINCIPAL","status":"Forecast","description":" extra footings ","forecast_amount":"12,500.50"}`
	rr := do(t, newTestRouter(svc, nil), http.MethodPost, "/projects/"+testProjectID.String()+"/variations", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ProjectID != testProjectID || captured.CostLineID != lineID {
		t.Fatalf("unexpected ids %+v", captured)
	}
	if captured.ForecastCents != 1_250_050 || captured.ApprovedCents != 0 {
		t.Fatalf("unexpected amounts %+v", captured)
	}
	if captured.Description != "extra footings" || captured.Status != costplan.StatusForecast {
		t.Fatalf("unexpected input %+v", captured)
	}
}

func TestCreateVariationErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad amount", `{"category":"PRINCIPAL","status":"Forecast","forecast_amount":"12x"}`, nil, http.StatusBadRequest},
		{"unknown field", `{"category":"PRINCIPAL","colour":"red"}`, nil, http.StatusBadRequest},
		{"validation", `{"category":"PRINCIPAL","status":"Maybe"}`, costplan.ErrInvalidInput, http.StatusBadRequest},
		{"exhausted", `{"category":"PRINCIPAL","status":"Forecast"}`, costplan.ErrNumberAllocation, http.StatusConflict},
		{"storage", `{"category":"PRINCIPAL","status":"Forecast"}`, errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCostPlanService{
				createVariationFn: func(ctx context.Context, in costplan.CreateVariationInput) (costplan.Variation, error) {
					return costplan.Variation{}, tc.err
				},
			}
			rr := do(t, newTestRouter(svc, nil), http.MethodPost, "/projects/"+testProjectID.String()+"/variations", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestTriggerSnapshotEnqueues(t *testing.T) {
	snapID := uuid.New()
	var captured costplan.SnapshotRequest
	svc := &stubCostPlanService{
		triggerFn: func(ctx context.Context, req costplan.SnapshotRequest) (costplan.Snapshot, error) {
			captured = req
			return costplan.Snapshot{ID: snapID, ProjectID: req.ProjectID, Period: req.Period, Status: costplan.SnapshotPending}, nil
		},
	}
	jobs := &stubEnqueuer{}
	rr := do(t, newTestRouter(svc, jobs), http.MethodPost, "/projects/"+testProjectID.String()+"/cost-plan/snapshots", `{"period":"2024-02"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if captured.Period == nil || captured.Period.String() != "2024-02" {
		t.Fatalf("unexpected request %+v", captured)
	}
	if len(jobs.ids) != 1 || jobs.ids[0] != snapID {
		t.Fatalf("expected snapshot enqueued, got %v", jobs.ids)
	}
	if loc := rr.Header().Get("Location"); loc != "/cost-plan/snapshots/"+snapID.String() {
		t.Fatalf("unexpected location %s", loc)
	}
}

func TestTriggerSnapshotSurvivesQueueFailure(t *testing.T) {
	svc := &stubCostPlanService{
		triggerFn: func(ctx context.Context, req costplan.SnapshotRequest) (costplan.Snapshot, error) {
			if req.Period != nil {
				t.Fatalf("expected nil period")
			}
			return costplan.Snapshot{ID: uuid.New(), Status: costplan.SnapshotPending}, nil
		},
	}
	jobs := &stubEnqueuer{err: errors.New("redis down")}
	req := httptest.NewRequest(http.MethodPost, "/projects/"+testProjectID.String()+"/cost-plan/snapshots", bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	newTestRouter(svc, jobs).ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
}

func TestShowSnapshot(t *testing.T) {
	missing := uuid.New()
	svc := &stubCostPlanService{
		getSnapshotFn: func(ctx context.Context, id uuid.UUID) (costplan.Snapshot, error) {
			if id == missing {
				return costplan.Snapshot{}, costplan.ErrSnapshotNotFound
			}
			return costplan.Snapshot{ID: id, Status: costplan.SnapshotReady}, nil
		},
	}
	h := newTestRouter(svc, nil)
	if rr := do(t, h, http.MethodGet, "/cost-plan/snapshots/"+missing.String(), ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/cost-plan/snapshots/"+uuid.NewString(), "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"READY"`) {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
}
