package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository and campaign.ServiceCatalog
// against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `
	id, tenant_id, name, template, status, targeting, recipient_ids,
	period_start, period_end, service_id, promo_price, delay_seconds,
	sent_count, delivered_count, failed_count, queued_count,
	last_dispatched_at, started_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(s rowScanner) (*domain.Campaign, error) {
	var (
		c         domain.Campaign
		serviceID sql.NullString
		price     decimal.NullDecimal
	)
	err := s.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Template, &c.Status, &c.Targeting, pq.Array(&c.RecipientIDs),
		&c.PeriodStart, &c.PeriodEnd, &serviceID, &price, &c.DelaySeconds,
		&c.SentCount, &c.DeliveredCount, &c.FailedCount, &c.QueuedCount,
		&c.LastDispatchedAt, &c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if serviceID.Valid {
		c.ServiceID = &serviceID.String
	}
	if price.Valid {
		c.PromoPrice = &price.Decimal
	}
	return &c, nil
}

// isCampaignID reports whether id can match the UUID primary key. Anything
// else would make Postgres reject the query instead of finding no row.
func isCampaignID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *CampaignRepo) Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	if !isCampaignID(id) {
		return nil, campaign.ErrNotFound
	}
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, tenantID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if f.Status != "" {
		where += ` AND status = $2`
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	var price decimal.NullDecimal
	if c.PromoPrice != nil {
		price = decimal.NullDecimal{Decimal: *c.PromoPrice, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, tenant_id, name, template, status, targeting, recipient_ids,
			 period_start, period_end, service_id, promo_price, delay_seconds,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`, c.ID, c.TenantID, c.Name, c.Template, c.Status, c.Targeting, pq.Array(c.RecipientIDs),
		c.PeriodStart, c.PeriodEnd, c.ServiceID, price, c.DelaySeconds, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// Delete removes the campaign if it is still in a deletable state; its
// messages go with it through the foreign key cascade.
func (r *CampaignRepo) Delete(ctx context.Context, tenantID, id string) error {
	if !isCampaignID(id) {
		return campaign.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns
		WHERE id = $1 AND tenant_id = $2 AND status IN ('draft', 'paused', 'completed')
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return r.explainMiss(ctx, tenantID, id, "delete")
}

// explainMiss tells apart a missing campaign from one in the wrong state
// after a conditional write matched no row.
func (r *CampaignRepo) explainMiss(ctx context.Context, tenantID, id, op string) error {
	var status domain.CampaignStatus
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM campaigns WHERE id = $1 AND tenant_id = $2`, id, tenantID).Scan(&status)
	if err == sql.ErrNoRows {
		return campaign.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s campaign: %w", op, err)
	}
	return fmt.Errorf("%w: cannot %s a %s campaign", campaign.ErrInvalidCampaignState, op, status)
}

// Transition moves the campaign from one status to another only if it is
// still in the expected status.
func (r *CampaignRepo) Transition(ctx context.Context, tenantID, id string, from, to domain.CampaignStatus, at time.Time) error {
	if !isCampaignID(id) {
		return campaign.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $3,
		    updated_at = $5,
		    started_at = CASE WHEN $3 = 'running' THEN COALESCE(started_at, $5) ELSE started_at END,
		    completed_at = CASE WHEN $3 = 'completed' THEN $5 ELSE completed_at END
		WHERE id = $1 AND tenant_id = $2 AND status = $4
	`, id, tenantID, to, from, at)
	if err != nil {
		return fmt.Errorf("transition campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return r.explainMiss(ctx, tenantID, id, "transition")
}

// Materialize inserts the campaign's messages and moves it from draft to
// running in one transaction.
func (r *CampaignRepo) Materialize(ctx context.Context, tenantID, id string, msgs []domain.Message, at time.Time) error {
	if !isCampaignID(id) {
		return campaign.ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'running', started_at = COALESCE(started_at, $3), updated_at = $3
		WHERE id = $1 AND tenant_id = $2 AND status = 'draft'
	`, id, tenantID, at)
	if err != nil {
		return fmt.Errorf("start campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return r.explainMiss(ctx, tenantID, id, "start")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campaign_messages
			(id, campaign_id, position, phone, recipient_name, content, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx, m.ID, id, m.Position, m.Phone, m.RecipientName, m.Content, at); err != nil {
			return fmt.Errorf("insert message %d: %w", m.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// messageColumns lists the message columns, each prefixed with p.
func messageColumns(p string) string {
	return fmt.Sprintf(`
	%[1]sid, %[1]scampaign_id, %[1]sposition, %[1]sphone, %[1]srecipient_name, %[1]scontent, %[1]sstatus,
	%[1]ssent_at, %[1]sdelivered_at, COALESCE(%[1]sprovider_message_id, ''), %[1]sprovider_response,
	COALESCE(%[1]serror, ''), %[1]sretry_count, COALESCE(%[1]sclaimed_by, ''), %[1]sclaimed_at, %[1]screated_at`, p)
}

func scanMessage(s rowScanner) (*domain.Message, error) {
	var (
		m       domain.Message
		payload []byte
	)
	err := s.Scan(
		&m.ID, &m.CampaignID, &m.Position, &m.Phone, &m.RecipientName, &m.Content, &m.Status,
		&m.SentAt, &m.DeliveredAt, &m.ProviderMessageID, &payload,
		&m.Error, &m.RetryCount, &m.ClaimedBy, &m.ClaimedAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		m.ProviderResponse = payload
	}
	return &m, nil
}

func (r *CampaignRepo) ListMessages(ctx context.Context, campaignID string, f campaign.MessageFilter) ([]domain.Message, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	where := ` WHERE campaign_id = $1`
	args := []interface{}{campaignID}
	if f.Status != "" {
		where += ` AND status = $2`
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaign_messages`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	q := `SELECT ` + messageColumns("") + ` FROM campaign_messages` + where +
		fmt.Sprintf(` ORDER BY position LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// MarkDelivered stamps delivered_at on the sent message with the given
// provider id. Repeated receipts keep the first timestamp.
func (r *CampaignRepo) MarkDelivered(ctx context.Context, providerMessageID string, at time.Time) (string, error) {
	var campaignID string
	err := r.db.QueryRowContext(ctx, `
		UPDATE campaign_messages
		SET delivered_at = COALESCE(delivered_at, $2)
		WHERE provider_message_id = $1 AND status = 'sent'
		RETURNING campaign_id
	`, providerMessageID, at).Scan(&campaignID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", campaign.ErrMessageNotFound
	}
	if err != nil {
		return "", fmt.Errorf("mark delivered: %w", err)
	}
	return campaignID, nil
}

func (r *CampaignRepo) GetService(ctx context.Context, tenantID, id string) (*domain.Service, error) {
	var svc domain.Service
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name FROM services WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&svc.ID, &svc.TenantID, &svc.Name)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &svc, nil
}
