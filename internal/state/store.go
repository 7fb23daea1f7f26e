package state

import (
	"context"

	"lending-regime-advisor/internal/report"
)

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// History keeps every published report.
type History interface {
	SaveReport(ctx context.Context, r report.Report) error
	LatestReport(ctx context.Context) (report.Report, bool, error)
	RecentReports(ctx context.Context, limit int) ([]report.Report, error)
}
