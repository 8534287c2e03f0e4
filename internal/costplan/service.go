package costplan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	jobmetrics "github.com/odyssey-erp/costplan/internal/jobs"
)

const reportBuildTimeout = 30 * time.Second

// Store is the persistence port the service reads ledgers from.
type Store interface {
	ListCostLines(ctx context.Context, projectID uuid.UUID) ([]CostLine, error)
	GetCostLine(ctx context.Context, projectID, costLineID uuid.UUID) (CostLine, error)
	ListVariations(ctx context.Context, projectID uuid.UUID) ([]Variation, error)
	ListVariationNumbers(ctx context.Context, projectID uuid.UUID, category VariationCategory) ([]Variation, error)
	InsertVariation(ctx context.Context, v Variation) (Variation, error)
	ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error)
	ListActiveProjects(ctx context.Context) ([]uuid.UUID, error)

	InsertSnapshot(ctx context.Context, req SnapshotRequest) (Snapshot, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error)
	UpdateSnapshotStatus(ctx context.Context, id uuid.UUID, status SnapshotStatus) error
	FinishSnapshot(ctx context.Context, id uuid.UUID, status SnapshotStatus, report *Report, errMsg string) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	MaxNumberAttempts int
	Logger            *slog.Logger
	Metrics           *jobmetrics.Metrics
}

// Service loads ledgers and runs the cost plan calculations over them.
type Service struct {
	store       Store
	cache       *Cache
	validate    *validator.Validate
	group       singleflight.Group
	maxAttempts int
	logger      *slog.Logger
	metrics     *jobmetrics.Metrics
	now         func() time.Time
}

// NewService builds the service. cache may be nil.
func NewService(store Store, cache *Cache, cfg ServiceConfig) *Service {
	attempts := cfg.MaxNumberAttempts
	if attempts <= 0 {
		attempts = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		cache:       cache,
		validate:    validator.New(),
		maxAttempts: attempts,
		logger:      logger,
		metrics:     cfg.Metrics,
		now:         time.Now,
	}
}

type ledgers struct {
	lines      []CostLine
	variations []Variation
	invoices   []Invoice
}

func (s *Service) loadLedgers(ctx context.Context, projectID uuid.UUID) (ledgers, error) {
	var l ledgers
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		l.lines, err = s.store.ListCostLines(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		l.variations, err = s.store.ListVariations(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		l.invoices, err = s.store.ListInvoices(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ledgers{}, fmt.Errorf("costplan: load ledgers: %w", err)
	}
	return l, nil
}

func (s *Service) buildReport(ctx context.Context, projectID uuid.UUID, period *Period) (Report, error) {
	l, err := s.loadLedgers(ctx, projectID)
	if err != nil {
		return Report{}, err
	}
	report := BuildReport(projectID, l.lines, l.variations, l.invoices, period)
	report.GeneratedAt = s.now().UTC()
	return report, nil
}

// Report returns the cost plan report of a project, served from cache when
// the project's ledgers have not changed since it was built.
func (s *Service) Report(ctx context.Context, projectID uuid.UUID, period *Period) (Report, error) {
	if period != nil && !period.Valid() {
		return Report{}, ErrInvalidPeriod
	}
	key, err := s.cache.BuildKey(ctx, projectID, reportCacheKey(period))
	if err != nil {
		s.logger.Warn("costplan cache key", slog.Any("error", err))
		return s.buildReport(ctx, projectID, period)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter on key, so the first caller going away must
		// not cancel the build for the others.
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportBuildTimeout)
		defer cancel()
		var report Report
		err := s.cache.FetchJSON(shared, key, &report, func(ctx context.Context) (any, error) {
			return s.buildReport(ctx, projectID, period)
		})
		return report, err
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

// PaymentSchedule returns the contract and variation claim breakdown of a cost line.
func (s *Service) PaymentSchedule(ctx context.Context, projectID, costLineID uuid.UUID, period *Period) (PaymentSchedule, error) {
	if period != nil && !period.Valid() {
		return PaymentSchedule{}, ErrInvalidPeriod
	}
	line, err := s.store.GetCostLine(ctx, projectID, costLineID)
	if err != nil {
		return PaymentSchedule{}, err
	}
	if line.Deleted() {
		return PaymentSchedule{}, ErrCostLineNotFound
	}
	l, err := s.loadLedgers(ctx, projectID)
	if err != nil {
		return PaymentSchedule{}, err
	}
	return BuildPaymentSchedule(line, l.variations, l.invoices, period), nil
}

// NextVariationNumber previews the number the next variation of category would
// receive. The number is not reserved.
func (s *Service) NextVariationNumber(ctx context.Context, projectID uuid.UUID, category VariationCategory) (string, error) {
	if category.Prefix() == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	existing, err := s.store.ListVariationNumbers(ctx, projectID, category)
	if err != nil {
		return "", err
	}
	return NextVariationNumber(existing, category)
}

// CreateVariationInput captures variation creation input.
type CreateVariationInput struct {
	ProjectID     uuid.UUID         `json:"project_id" validate:"required"`
	CostLineID    uuid.UUID         `json:"cost_line_id" validate:"required"`
	Category      VariationCategory `json:"category" validate:"required,oneof=PRINCIPAL CONTRACTOR LESSOR_WORKS"`
	Status        VariationStatus   `json:"status" validate:"required,oneof=Forecast Approved Rejected Withdrawn"`
	Description   string            `json:"description" validate:"max=500"`
	ForecastCents Cents             `json:"forecast_cents"`
	ApprovedCents Cents             `json:"approved_cents"`
}

// CreateVariation numbers and stores a new variation. Numbering is read then
// write, so a concurrent insert can claim the same number; the unique index
// rejects the loser, which regenerates and retries.
func (s *Service) CreateVariation(ctx context.Context, input CreateVariationInput) (Variation, error) {
	if err := s.validate.Struct(input); err != nil {
		return Variation{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	line, err := s.store.GetCostLine(ctx, input.ProjectID, input.CostLineID)
	if err != nil {
		return Variation{}, err
	}
	if line.Deleted() {
		return Variation{}, ErrCostLineNotFound
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		number, err := s.NextVariationNumber(ctx, input.ProjectID, input.Category)
		if err != nil {
			return Variation{}, err
		}
		created, err := s.store.InsertVariation(ctx, Variation{
			ID:            uuid.New(),
			ProjectID:     input.ProjectID,
			CostLineID:    input.CostLineID,
			Number:        number,
			Category:      input.Category,
			Status:        input.Status,
			Description:   input.Description,
			ForecastCents: input.ForecastCents,
			ApprovedCents: input.ApprovedCents,
			CreatedAt:     s.now().UTC(),
		})
		if errors.Is(err, ErrDuplicateVariationNumber) {
			s.metrics.AddNumberConflict(string(input.Category))
			s.logger.Info("variation number taken, retrying",
				slog.String("number", number),
				slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return Variation{}, err
		}
		if err := s.cache.Bump(ctx, input.ProjectID); err != nil {
			s.logger.Warn("costplan cache bump", slog.Any("error", err))
		}
		return created, nil
	}
	return Variation{}, ErrNumberAllocation
}

// Invalidate drops cached reports of a project after ledger writes made
// outside this service.
func (s *Service) Invalidate(ctx context.Context, projectID uuid.UUID) error {
	return s.cache.Bump(ctx, projectID)
}

// TriggerSnapshot inserts a pending snapshot.
func (s *Service) TriggerSnapshot(ctx context.Context, req SnapshotRequest) (Snapshot, error) {
	if err := req.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.store.InsertSnapshot(ctx, req)
}

// GetSnapshot returns a snapshot with its payload when ready.
func (s *Service) GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.store.GetSnapshot(ctx, id)
}

// ProcessSnapshot computes a fresh report and persists it on the snapshot.
func (s *Service) ProcessSnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	snap, err := s.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return err
	}
	if snap.Status == SnapshotReady {
		return nil
	}
	if err := s.store.UpdateSnapshotStatus(ctx, snap.ID, SnapshotInProgress); err != nil {
		return err
	}
	report, err := s.buildReport(ctx, snap.ProjectID, snap.Period)
	if err != nil {
		if ferr := s.store.FinishSnapshot(ctx, snap.ID, SnapshotFailed, nil, err.Error()); ferr != nil {
			s.logger.Warn("costplan snapshot mark failed", slog.String("snapshot_id", snap.ID.String()), slog.Any("error", ferr))
		}
		return err
	}
	return s.store.FinishSnapshot(ctx, snap.ID, SnapshotReady, &report, "")
}

// SnapshotActiveProjects snapshots every project with live cost lines for period.
func (s *Service) SnapshotActiveProjects(ctx context.Context, period Period) (int, error) {
	projects, err := s.store.ListActiveProjects(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	var errs []error
	for _, projectID := range projects {
		p := period
		snap, err := s.TriggerSnapshot(ctx, SnapshotRequest{ProjectID: projectID, Period: &p})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.ProcessSnapshot(ctx, snap.ID); err != nil {
			s.logger.Error("costplan snapshot", slog.String("project_id", projectID.String()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
