package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/optout"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const campID = "5f0c6a1e-2b7d-4c1a-9a51-0d8e6f3b7c21"

var campaignCols = []string{
	"id", "tenant_id", "name", "template", "status", "targeting", "recipient_ids",
	"period_start", "period_end", "service_id", "promo_price", "delay_seconds",
	"sent_count", "delivered_count", "failed_count", "queued_count",
	"last_dispatched_at", "started_at", "completed_at", "created_at", "updated_at",
}

var messageCols = []string{
	"id", "campaign_id", "position", "phone", "recipient_name", "content", "status",
	"sent_at", "delivered_at", "provider_message_id", "provider_response",
	"error", "retry_count", "claimed_by", "claimed_at", "created_at",
}

// =============================================================================
// CAMPAIGN REPO TESTS
// =============================================================================

func TestCampaignRepo_Get(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id = \\$1 AND tenant_id = \\$2").
		WithArgs(campID, "t1").
		WillReturnRows(sqlmock.NewRows(campaignCols).AddRow(
			campID, "t1", "Promo", "Hi {{ name }}", "running", "individual", "{cust-1,cust-2}",
			nil, nil, "svc-1", "49.90", 30,
			1, 0, 0, 1,
			t0, t0, nil, t0, t0,
		))

	c, err := NewCampaignRepo(db).Get(context.Background(), "t1", campID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignRunning, c.Status)
	assert.Equal(t, []string{"cust-1", "cust-2"}, c.RecipientIDs)
	require.NotNil(t, c.ServiceID)
	assert.Equal(t, "svc-1", *c.ServiceID)
	require.NotNil(t, c.PromoPrice)
	assert.Equal(t, "49.9", c.PromoPrice.String())
	assert.Nil(t, c.PeriodStart)
	assert.Nil(t, c.CompletedAt)
	require.NotNil(t, c.LastDispatchedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_GetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM campaigns").WillReturnError(sql.ErrNoRows)

	_, err := NewCampaignRepo(db).Get(context.Background(), "t1", "5f0c6a1e-2b7d-4c1a-9a51-0d8e6f3b7c99")
	assert.True(t, errors.Is(err, campaign.ErrNotFound))
}

func TestCampaignRepo_MalformedIDIsNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCampaignRepo(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, "t1", "not-a-uuid")
	assert.True(t, errors.Is(err, campaign.ErrNotFound))
	err = repo.Delete(ctx, "t1", "not-a-uuid")
	assert.True(t, errors.Is(err, campaign.ErrNotFound))
	err = repo.Transition(ctx, "t1", "not-a-uuid", domain.CampaignRunning, domain.CampaignPaused, t0)
	assert.True(t, errors.Is(err, campaign.ErrNotFound))
	err = repo.Materialize(ctx, "t1", "not-a-uuid", []domain.Message{{ID: "m0"}}, t0)
	assert.True(t, errors.Is(err, campaign.ErrNotFound))

	// no query reaches the database
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_TransitionWrongState(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE campaigns").
		WithArgs(campID, "t1", domain.CampaignPaused, domain.CampaignRunning, t0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM campaigns").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

	err := NewCampaignRepo(db).Transition(context.Background(), "t1", campID, domain.CampaignRunning, domain.CampaignPaused, t0)
	assert.True(t, errors.Is(err, campaign.ErrInvalidCampaignState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_DeleteMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM campaigns").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM campaigns").WillReturnError(sql.ErrNoRows)

	err := NewCampaignRepo(db).Delete(context.Background(), "t1", campID)
	assert.True(t, errors.Is(err, campaign.ErrNotFound))
}

func TestCampaignRepo_Materialize(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	msgs := []domain.Message{
		{ID: "m0", Position: 0, Phone: "+16502530000", RecipientName: "Ana", Content: "Hi Ana"},
		{ID: "m1", Position: 1, Phone: "+16502530001", RecipientName: "Bo", Content: "Hi Bo"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE campaigns\\s+SET status = 'running'").
		WithArgs(campID, "t1", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare("INSERT INTO campaign_messages")
	prep.ExpectExec().WithArgs("m0", campID, 0, "+16502530000", "Ana", "Hi Ana", t0).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("m1", campID, 1, "+16502530001", "Bo", "Hi Bo", t0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewCampaignRepo(db).Materialize(context.Background(), "t1", campID, msgs, t0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_MaterializeNotDraft(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE campaigns").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectQuery("SELECT status FROM campaigns").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("running"))

	err := NewCampaignRepo(db).Materialize(context.Background(), "t1", campID, []domain.Message{{ID: "m0"}}, t0)
	assert.True(t, errors.Is(err, campaign.ErrInvalidCampaignState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_MarkDelivered(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("UPDATE campaign_messages\\s+SET delivered_at").
		WithArgs("wamid-1", t0).
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}).AddRow("c1"))
	mock.ExpectQuery("UPDATE campaign_messages\\s+SET delivered_at").
		WithArgs("wamid-2", t0).
		WillReturnError(sql.ErrNoRows)

	repo := NewCampaignRepo(db)
	id, err := repo.MarkDelivered(context.Background(), "wamid-1", t0)
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	_, err = repo.MarkDelivered(context.Background(), "wamid-2", t0)
	assert.True(t, errors.Is(err, campaign.ErrMessageNotFound))
}

func TestCampaignRepo_GetServiceNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, tenant_id, name FROM services").WillReturnError(sql.ErrNoRows)

	_, err := NewCampaignRepo(db).GetService(context.Background(), "t1", "svc-x")
	assert.True(t, errors.Is(err, campaign.ErrServiceNotFound))
}

// =============================================================================
// QUEUE REPO TESTS
// =============================================================================

func claimFor(at time.Time) worker.Claim {
	return worker.Claim{
		CampaignID:  "c1",
		WorkerID:    "w1",
		ClaimedAt:   at,
		StaleBefore: at.Add(-5 * time.Minute),
		PacedBefore: at.Add(-time.Minute),
	}
}

func TestQueueRepo_ClaimNext(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	cl := claimFor(t0)
	mock.ExpectQuery("WITH head AS .+ FOR UPDATE\\s+\\)\\s+UPDATE campaign_messages m").
		WithArgs("c1", "w1", t0, cl.StaleBefore, cl.PacedBefore).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(
			"m0", "c1", 0, "+16502530000", "Ana", "Hi Ana", "pending",
			nil, nil, "", nil,
			"", 1, "w1", t0, t0,
		))

	m, err := NewQueueRepo(db).ClaimNext(context.Background(), cl)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "m0", m.ID)
	assert.Equal(t, 1, m.RetryCount)
	assert.Equal(t, "w1", m.ClaimedBy)
	assert.Nil(t, m.ProviderResponse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepo_ClaimNextNothingClaimable(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("WITH head AS").WillReturnRows(sqlmock.NewRows(messageCols))

	m, err := NewQueueRepo(db).ClaimNext(context.Background(), claimFor(t0))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestQueueRepo_MarkSent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	sentAt := t0.Add(2 * time.Second)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT campaign_id, claimed_at FROM campaign_messages").
		WithArgs("m0", "w1").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "claimed_at"}).AddRow("c1", t0))
	mock.ExpectExec("UPDATE campaign_messages\\s+SET status = 'sent'").
		WithArgs("m0", sentAt, "wamid-1", `{"id":"wamid-1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns SET last_dispatched_at").
		WithArgs("c1", t0, sentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := NewQueueRepo(db).MarkSent(context.Background(), "m0", "w1", sentAt, "wamid-1", []byte(`{"id":"wamid-1"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepo_MarkSentLostClaim(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT campaign_id, claimed_at FROM campaign_messages").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "claimed_at"}))
	mock.ExpectRollback()

	ok, err := NewQueueRepo(db).MarkSent(context.Background(), "m0", "w1", t0, "wamid-1", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepo_ConditionalWrites(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE campaign_messages\\s+SET status = 'failed'").
		WithArgs("m0", "w1", "invalid number", 0, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaign_messages\\s+SET retry_count").
		WithArgs("m1", "w1", 2, "timeout").
		WillReturnResult(sqlmock.NewResult(0, 0))

	q := NewQueueRepo(db)
	ok, err := q.MarkFailed(context.Background(), "m0", "w1", "invalid number", 0, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Release(context.Background(), "m1", "w1", 2, "timeout")
	require.NoError(t, err)
	assert.False(t, ok, "release by a non-owner matches no row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepo_CompleteAndStale(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE campaigns\\s+SET status = 'completed'.+NOT EXISTS").
		WithArgs("c1", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaign_messages\\s+SET claimed_by = NULL").
		WithArgs(t0).
		WillReturnResult(sqlmock.NewResult(0, 3))

	q := NewQueueRepo(db)
	done, err := q.Complete(context.Background(), "c1", t0)
	require.NoError(t, err)
	assert.True(t, done)

	n, err := q.ReleaseStale(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepo_CountByStatus(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("COUNT\\(\\*\\) FILTER").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"sent", "delivered", "failed", "queued", "total"}).AddRow(3, 2, 1, 4, 8))
	mock.ExpectExec("UPDATE campaigns\\s+SET sent_count").
		WithArgs("c1", 3, 2, 1, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := NewQueueRepo(db)
	s, err := q.CountByStatus(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Sent: 3, Delivered: 2, Failed: 1, Queued: 4, Total: 8}, s)
	require.NoError(t, q.SaveStats(context.Background(), "c1", s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// ROSTER TESTS
// =============================================================================

func TestCustomerRepo_ByIDsEmpty(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := NewCustomerRepo(db).CustomersByIDs(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepo_BookedBetween(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	end := t0
	mock.ExpectQuery("FROM customers\\s+WHERE tenant_id = \\$1.+last_booking_at IS NOT NULL").
		WithArgs("t1", nil, end).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "phone", "last_booking_at"}).
			AddRow("cust-1", "t1", "Ana", "650-253-0000", t0.Add(-time.Hour)))

	got, err := NewCustomerRepo(db).CustomersBookedBetween(context.Background(), "t1", nil, &end)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].LastBookingAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptOutRepo_AddAndRemove(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO opt_outs .+ON CONFLICT \\(tenant_id, phone\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM opt_outs").
		WithArgs("t1", "+16502530000").
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewOptOutRepo(db)
	require.NoError(t, r.Add(context.Background(), &domain.OptOut{
		ID: "o1", TenantID: "t1", Phone: "+16502530000", Reason: domain.OptOutReplyStop, Source: domain.OptOutSourceWebhook,
	}))
	err := r.Remove(context.Background(), "t1", "+16502530000")
	assert.True(t, errors.Is(err, optout.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
