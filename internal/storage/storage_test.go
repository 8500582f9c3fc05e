package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

func sampleReport() *Report {
	return &Report{
		Campaign: domain.Campaign{ID: "camp-1", TenantID: "tenant-1", Name: "Promo", Status: domain.CampaignCompleted},
		Stats:    domain.Stats{Sent: 1, Failed: 1, Total: 2},
		Messages: []domain.Message{
			{ID: "m1", CampaignID: "camp-1", Phone: "+5511987654321", Status: domain.MessageSent, ProviderMessageID: "p1"},
			{ID: "m2", CampaignID: "camp-1", Phone: "+5511987654322", Status: domain.MessageFailed, Error: "blocked"},
		},
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReportKey(t *testing.T) {
	assert.Equal(t, "reports/tenant-1/camp-1.json", ReportKey("tenant-1", "camp-1"))
	assert.Equal(t, "reports/passwd/x.json", ReportKey("../../etc/passwd", "x"))
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), config.StorageConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = New(context.Background(), config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, a)

	_, err = New(context.Background(), config.StorageConfig{Type: "s3"})
	assert.Error(t, err, "bucket is required")

	_, err = New(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestLocal_RoundTrip(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.SaveReport(ctx, sampleReport()))

	got, err := l.LoadReport(ctx, "tenant-1", "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "Promo", got.Campaign.Name)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "blocked", got.Messages[1].Error)
	assert.Equal(t, 2, got.Stats.Total)
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestS3Archive_RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	a := NewS3ArchiveWithClient(fake, "reports-bucket")
	ctx := context.Background()

	require.NoError(t, a.SaveReport(ctx, sampleReport()))
	assert.Contains(t, fake.objects, "reports-bucket/reports/tenant-1/camp-1.json")

	got, err := a.LoadReport(ctx, "tenant-1", "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "camp-1", got.Campaign.ID)

	_, err = a.LoadReport(ctx, "tenant-1", "missing")
	assert.Error(t, err)
}

func TestS3Archive_PutError(t *testing.T) {
	a := NewS3ArchiveWithClient(&fakeS3{putErr: errors.New("AccessDenied")}, "b")
	err := a.SaveReport(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "AccessDenied")
}
