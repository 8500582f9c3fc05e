package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/optout"
)

// CustomerRepo implements recipient.CustomerSource against the booking
// application's customer table.
type CustomerRepo struct{ db *sql.DB }

// NewCustomerRepo creates a Postgres-backed customer source.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

func (r *CustomerRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, phone, last_booking_at
		FROM customers
		WHERE tenant_id = $1`+q+`
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.LastBookingAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CustomerRepo) AllCustomers(ctx context.Context, tenantID string) ([]domain.Customer, error) {
	return r.query(ctx, "", tenantID)
}

func (r *CustomerRepo) CustomersByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, ` AND id = ANY($2)`, tenantID, pq.Array(ids))
}

// CustomersBookedBetween returns customers whose last booking lies in the
// inclusive range. A nil bound leaves that side open.
func (r *CustomerRepo) CustomersBookedBetween(ctx context.Context, tenantID string, start, end *time.Time) ([]domain.Customer, error) {
	return r.query(ctx, `
		  AND last_booking_at IS NOT NULL
		  AND ($2::timestamptz IS NULL OR last_booking_at >= $2)
		  AND ($3::timestamptz IS NULL OR last_booking_at <= $3)`,
		tenantID, start, end)
}

// OptOutRepo implements optout.Repository against PostgreSQL.
type OptOutRepo struct{ db *sql.DB }

// NewOptOutRepo creates a Postgres-backed opt-out repository.
func NewOptOutRepo(db *sql.DB) *OptOutRepo { return &OptOutRepo{db: db} }

func (r *OptOutRepo) IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM opt_outs WHERE tenant_id = $1 AND phone = $2)`,
		tenantID, phone,
	).Scan(&exists)
	return exists, err
}

// Add inserts the opt-out; an existing entry for the phone is kept as is.
func (r *OptOutRepo) Add(ctx context.Context, o *domain.OptOut) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO opt_outs (id, tenant_id, phone, reason, source, campaign_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
		ON CONFLICT (tenant_id, phone) DO NOTHING
	`, o.ID, o.TenantID, o.Phone, o.Reason, o.Source, o.CampaignID)
	if err != nil {
		return fmt.Errorf("add opt-out: %w", err)
	}
	return nil
}

func (r *OptOutRepo) Remove(ctx context.Context, tenantID, phone string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM opt_outs WHERE tenant_id = $1 AND phone = $2`, tenantID, phone)
	if err != nil {
		return fmt.Errorf("remove opt-out: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return optout.ErrNotFound
	}
	return nil
}

func (r *OptOutRepo) List(ctx context.Context, tenantID string, f optout.ListFilter) ([]domain.OptOut, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if f.Reason != "" {
		where += ` AND reason = $2`
		args = append(args, f.Reason)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opt_outs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count opt-outs: %w", err)
	}

	q := `SELECT id, tenant_id, phone, reason, source, COALESCE(campaign_id, ''), created_at FROM opt_outs` +
		where + fmt.Sprintf(` ORDER BY created_at DESC, phone LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list opt-outs: %w", err)
	}
	defer rows.Close()

	var out []domain.OptOut
	for rows.Next() {
		var o domain.OptOut
		if err := rows.Scan(&o.ID, &o.TenantID, &o.Phone, &o.Reason, &o.Source, &o.CampaignID, &o.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan opt-out: %w", err)
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *OptOutRepo) AllPhones(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT phone FROM opt_outs WHERE tenant_id = $1 ORDER BY phone`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list opt-out phones: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan phone: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
