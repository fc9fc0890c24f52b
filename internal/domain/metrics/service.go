package metrics

import (
	"context"
	"time"

	"github.com/hospital/hospital-backend/internal/domain/patient"
	"github.com/hospital/hospital-backend/internal/platform/telemetry"
)

// RecordLister supplies the full record set for one aggregation.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]*patient.Record, error)
}

// Service computes admin aggregates over a single scan of the record store.
// It keeps no state between calls.
type Service struct {
	records RecordLister
	now     func() time.Time
}

func NewService(records RecordLister) *Service {
	return &Service{records: records, now: time.Now}
}

func (s *Service) snapshot(ctx context.Context, view string) ([]*patient.Record, time.Time, error) {
	start := time.Now()
	records, err := s.records.ListRecords(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	telemetry.ObserveScan(view, len(records), time.Since(start))
	return records, s.now(), nil
}

func (s *Service) Overview(ctx context.Context, bounds Bounds) (Overview, error) {
	records, asOf, err := s.snapshot(ctx, "overview")
	if err != nil {
		return Overview{}, err
	}
	return Aggregate(records, bounds, asOf), nil
}

func (s *Service) Diseases(ctx context.Context, bounds Bounds) (map[string]int, error) {
	records, asOf, err := s.snapshot(ctx, "diseases")
	if err != nil {
		return nil, err
	}
	return DiseaseCounts(records, bounds, asOf), nil
}

func (s *Service) Medications(ctx context.Context, bounds Bounds) (map[string]int, error) {
	records, asOf, err := s.snapshot(ctx, "medications")
	if err != nil {
		return nil, err
	}
	return MedicationCounts(records, bounds, asOf), nil
}

func (s *Service) Statuses(ctx context.Context, bounds Bounds) (StatusSummary, error) {
	records, asOf, err := s.snapshot(ctx, "status")
	if err != nil {
		return StatusSummary{}, err
	}
	return Statuses(records, bounds, asOf), nil
}

// Snapshot is every admin aggregate computed over one read of the store.
type Snapshot struct {
	AsOf     time.Time
	Overview Overview
	Status   StatusSummary
}

// Report scans the store once and computes the overview and the status
// summary from the same records, aging everyone as of asOf.
func (s *Service) Report(ctx context.Context, bounds Bounds, asOf time.Time) (Snapshot, error) {
	start := time.Now()
	records, err := s.records.ListRecords(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	telemetry.ObserveScan("report", len(records), time.Since(start))
	return Snapshot{
		AsOf:     asOf,
		Overview: Aggregate(records, bounds, asOf),
		Status:   Statuses(records, bounds, asOf),
	}, nil
}
