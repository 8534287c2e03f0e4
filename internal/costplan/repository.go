package costplan

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/costplan/internal/platform/db"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for the cost plan ledgers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const costLineColumns = `id, project_id, section, stakeholder_id, reference, description, budget_cents, approved_contract_cents, sort_order, deleted_at`

func scanCostLine(row pgx.Row) (CostLine, error) {
	var (
		line     CostLine
		section  string
		budget   pgtype.Int8
		contract pgtype.Int8
	)
	if err := row.Scan(&line.ID, &line.ProjectID, &section, &line.StakeholderID, &line.Reference, &line.Description, &budget, &contract, &line.SortOrder, &line.DeletedAt); err != nil {
		return CostLine{}, err
	}
	line.Section = Section(section)
	line.BudgetCents = centsFromInt8(budget)
	line.ApprovedContractCents = centsFromInt8(contract)
	return line, nil
}

// ListCostLines returns the live cost lines of a project.
func (r *Repository) ListCostLines(ctx context.Context, projectID uuid.UUID) ([]CostLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+costLineColumns+` FROM cost_lines WHERE project_id = $1 AND deleted_at IS NULL ORDER BY section, sort_order, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []CostLine
	for rows.Next() {
		line, err := scanCostLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetCostLine loads one cost line of a project, deleted or not.
func (r *Repository) GetCostLine(ctx context.Context, projectID, costLineID uuid.UUID) (CostLine, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+costLineColumns+` FROM cost_lines WHERE project_id = $1 AND id = $2`, projectID, costLineID)
	line, err := scanCostLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostLine{}, ErrCostLineNotFound
		}
		return CostLine{}, err
	}
	return line, nil
}

const variationColumns = `id, project_id, cost_line_id, number, category, status, description, forecast_cents, approved_cents, created_at, deleted_at`

func scanVariation(row pgx.Row) (Variation, error) {
	var (
		v                  Variation
		category, status   string
		forecast, approved pgtype.Int8
	)
	if err := row.Scan(&v.ID, &v.ProjectID, &v.CostLineID, &v.Number, &category, &status, &v.Description, &forecast, &approved, &v.CreatedAt, &v.DeletedAt); err != nil {
		return Variation{}, err
	}
	v.Category = VariationCategory(category)
	v.Status = VariationStatus(status)
	v.ForecastCents = centsFromInt8(forecast)
	v.ApprovedCents = centsFromInt8(approved)
	return v, nil
}

func (r *Repository) queryVariations(ctx context.Context, sql string, args ...any) ([]Variation, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Variation
	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListVariations returns the live variations of a project.
func (r *Repository) ListVariations(ctx context.Context, projectID uuid.UUID) ([]Variation, error) {
	return r.queryVariations(ctx, `SELECT `+variationColumns+` FROM variations WHERE project_id = $1 AND deleted_at IS NULL ORDER BY number`, projectID)
}

// ListVariationNumbers returns every variation of a category including
// soft-deleted ones, whose numbers stay reserved by the unique index.
func (r *Repository) ListVariationNumbers(ctx context.Context, projectID uuid.UUID, category VariationCategory) ([]Variation, error) {
	return r.queryVariations(ctx, `SELECT `+variationColumns+` FROM variations WHERE project_id = $1 AND category = $2`, projectID, string(category))
}

// InsertVariation stores a numbered variation. A taken number yields
// ErrDuplicateVariationNumber.
func (r *Repository) InsertVariation(ctx context.Context, v Variation) (Variation, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO variations (id, project_id, cost_line_id, number, category, status, description, forecast_cents, approved_cents, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.ID, v.ProjectID, v.CostLineID, v.Number, string(v.Category), string(v.Status), v.Description, int64(v.ForecastCents), int64(v.ApprovedCents), v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Variation{}, ErrDuplicateVariationNumber
		}
		return Variation{}, err
	}
	return v, nil
}

// ListInvoices returns the live invoices of a project.
func (r *Repository) ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, project_id, cost_line_id, variation_id, number, amount_cents, gst_cents, period_year, period_month, deleted_at
FROM invoices WHERE project_id = $1 AND deleted_at IS NULL ORDER BY period_year, period_month, number`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var (
			inv         Invoice
			amount, gst pgtype.Int8
		)
		if err := rows.Scan(&inv.ID, &inv.ProjectID, &inv.CostLineID, &inv.VariationID, &inv.Number, &amount, &gst, &inv.Period.Year, &inv.Period.Month, &inv.DeletedAt); err != nil {
			return nil, err
		}
		inv.AmountCents = centsFromInt8(amount)
		inv.GSTCents = centsFromInt8(gst)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListActiveProjects returns projects that have at least one live cost line.
func (r *Repository) ListActiveProjects(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT project_id FROM cost_lines WHERE deleted_at IS NULL ORDER BY project_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertSnapshot enqueues a snapshot record.
func (r *Repository) InsertSnapshot(ctx context.Context, req SnapshotRequest) (Snapshot, error) {
	now := time.Now().UTC()
	snap := Snapshot{
		ID:        uuid.New(),
		ProjectID: req.ProjectID,
		Period:    req.Period,
		Status:    SnapshotPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	year, month := periodColumns(req.Period)
	_, err := r.pool.Exec(ctx, `INSERT INTO cost_report_snapshots (id, project_id, period_year, period_month, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`, snap.ID, snap.ProjectID, year, month, string(snap.Status), now)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// GetSnapshot loads by id.
func (r *Repository) GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	var (
		snap        Snapshot
		year, month pgtype.Int4
		status      string
		errMsg      pgtype.Text
		payload     []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, project_id, period_year, period_month, status, error_message, payload, generated_at, created_at, updated_at
FROM cost_report_snapshots WHERE id = $1`, id).Scan(&snap.ID, &snap.ProjectID, &year, &month, &status, &errMsg, &payload, &snap.GeneratedAt, &snap.CreatedAt, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, err
	}
	if year.Valid && month.Valid {
		snap.Period = &Period{Year: int(year.Int32), Month: int(month.Int32)}
	}
	snap.Status = SnapshotStatus(status)
	snap.Error = errMsg.String
	if len(payload) > 0 {
		var report Report
		if err := json.Unmarshal(payload, &report); err != nil {
			return Snapshot{}, err
		}
		snap.Report = &report
	}
	return snap, nil
}

// UpdateSnapshotStatus transitions snapshot state.
func (r *Repository) UpdateSnapshotStatus(ctx context.Context, id uuid.UUID, status SnapshotStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cost_report_snapshots SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// FinishSnapshot stores the outcome of a snapshot run. The row is locked so
// two workers racing on one snapshot cannot overwrite a READY payload.
func (r *Repository) FinishSnapshot(ctx context.Context, id uuid.UUID, status SnapshotStatus, report *Report, errMsg string) error {
	var payload []byte
	if report != nil {
		raw, err := json.Marshal(report)
		if err != nil {
			return err
		}
		payload = raw
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM cost_report_snapshots WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSnapshotNotFound
		}
		if err != nil {
			return err
		}
		if SnapshotStatus(current) == SnapshotReady {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE cost_report_snapshots
SET status = $2, payload = $3, error_message = $4,
    generated_at = CASE WHEN $3::jsonb IS NULL THEN generated_at ELSE NOW() END,
    updated_at = NOW()
WHERE id = $1`, id, string(status), payload, pgtype.Text{String: errMsg, Valid: errMsg != ""})
		return err
	})
}

func centsFromInt8(v pgtype.Int8) Cents {
	if !v.Valid {
		return 0
	}
	return Cents(v.Int64)
}

func periodColumns(p *Period) (pgtype.Int4, pgtype.Int4) {
	if p == nil {
		return pgtype.Int4{}, pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(p.Year), Valid: true}, pgtype.Int4{Int32: int32(p.Month), Valid: true}
}
