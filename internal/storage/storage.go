// Package storage archives completed campaign reports to local disk or S3.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Report is the archived record of a finished campaign.
type Report struct {
	Campaign    domain.Campaign  `json:"campaign"`
	Stats       domain.Stats     `json:"stats"`
	Messages    []domain.Message `json:"messages"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Archive persists campaign reports.
type Archive interface {
	SaveReport(ctx context.Context, r *Report) error
	LoadReport(ctx context.Context, tenantID, campaignID string) (*Report, error)
}

// ReportKey is the object key of a campaign report, relative to the
// archive root.
func ReportKey(tenantID, campaignID string) string {
	return path.Join("reports", filepath.Base(tenantID), filepath.Base(campaignID)+".json")
}

// New builds the archive selected by cfg.Type. It returns nil, nil when
// archiving is disabled.
func New(ctx context.Context, cfg config.StorageConfig) (Archive, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocal(cfg.LocalPath)
	case "s3", "aws":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage type %q requires s3_bucket", cfg.Type)
		}
		return NewS3Archive(ctx, cfg.S3Bucket, cfg.AWSRegion, cfg.GetAWSProfile())
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

// Local writes reports as indented JSON files below a root directory.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Local{root: root}, nil
}

// SaveReport writes the report to <root>/reports/<tenant>/<campaign>.json.
func (l *Local) SaveReport(_ context.Context, r *Report) error {
	p := filepath.Join(l.root, filepath.FromSlash(ReportKey(r.Campaign.TenantID, r.Campaign.ID)))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	tmp := p + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, p)
}

// LoadReport reads a previously saved report.
func (l *Local) LoadReport(_ context.Context, tenantID, campaignID string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(ReportKey(tenantID, campaignID))))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}
