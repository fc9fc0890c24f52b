package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hospital/hospital-backend/internal/domain/patient"
	"github.com/hospital/hospital-backend/internal/platform/apperr"
)

// stubLister returns a fixed record set and counts calls.
type stubLister struct {
	records []*patient.Record
	err     error
	calls   int
}

func (s *stubLister) ListRecords(context.Context) ([]*patient.Record, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func newTestService(records []*patient.Record) (*Service, *stubLister) {
	lister := &stubLister{records: records}
	svc := NewService(lister)
	svc.now = func() time.Time { return asOf }
	return svc, lister
}

func TestService_OverviewScansOnce(t *testing.T) {
	svc, lister := newTestService(cohort())
	min := 30.0

	got, err := svc.Overview(context.Background(), Bounds{Min: &min})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalPatients != 3 || got.AvgAgeYears != 45.67 {
		t.Errorf("unexpected overview %+v", got)
	}
	if lister.calls != 1 {
		t.Errorf("expected exactly one scan, got %d", lister.calls)
	}
}

func TestService_Views(t *testing.T) {
	svc, _ := newTestService(cohort())
	ctx := context.Background()

	diseases, err := svc.Diseases(ctx, Bounds{})
	if err != nil {
		t.Fatalf("Diseases: %v", err)
	}
	if diseases["asthma"] != 2 || diseases["hypertension"] != 2 || diseases["diabetes"] != 2 {
		t.Errorf("unexpected disease counts %v", diseases)
	}

	meds, err := svc.Medications(ctx, Bounds{})
	if err != nil {
		t.Fatalf("Medications: %v", err)
	}
	if meds["metformin"] != 2 || meds["lisinopril"] != 1 {
		t.Errorf("unexpected medication counts %v", meds)
	}

	statuses, err := svc.Statuses(ctx, Bounds{})
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	if statuses.TotalPatients != 4 || statuses.ByStatus[UnknownStatus] != 1 {
		t.Errorf("unexpected status summary %+v", statuses)
	}
}

func TestService_PropagatesStorageFailure(t *testing.T) {
	svc, lister := newTestService(nil)
	lister.err = apperr.StorageUnavailable(errors.New("throttled"))

	if _, err := svc.Overview(context.Background(), Bounds{}); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Overview: expected storage error, got %v", err)
	}
	if _, err := svc.Diseases(context.Background(), Bounds{}); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Diseases: expected storage error, got %v", err)
	}
	if _, err := svc.Medications(context.Background(), Bounds{}); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Medications: expected storage error, got %v", err)
	}
	if _, err := svc.Statuses(context.Background(), Bounds{}); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Statuses: expected storage error, got %v", err)
	}
}

// growingLister returns one more record on every call.
type growingLister struct {
	records []*patient.Record
	calls   int
}

func (g *growingLister) ListRecords(context.Context) ([]*patient.Record, error) {
	g.calls++
	n := g.calls
	if n > len(g.records) {
		n = len(g.records)
	}
	return g.records[:n], nil
}

func TestService_ReportUsesOneScan(t *testing.T) {
	lister := &growingLister{records: cohort()}
	svc := NewService(lister)

	snap, err := svc.Report(context.Background(), Bounds{}, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lister.calls != 1 {
		t.Errorf("expected exactly one scan, got %d", lister.calls)
	}
	if snap.Overview.TotalPatients != 1 || snap.Status.TotalPatients != 1 {
		t.Errorf("expected both aggregates over the same single record, got overview=%d status=%d",
			snap.Overview.TotalPatients, snap.Status.TotalPatients)
	}
	if !snap.AsOf.Equal(asOf) {
		t.Errorf("expected AsOf %v, got %v", asOf, snap.AsOf)
	}
}

func TestService_ReportAgesAsOfGivenTime(t *testing.T) {
	svc, _ := newTestService(cohort())
	min := 30.0

	// Ten years on, the 27-year-old is inside the bound as well.
	later := time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC)
	snap, err := svc.Report(context.Background(), Bounds{Min: &min}, later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Overview.TotalPatients != 4 {
		t.Errorf("expected 4 patients aged 30 or over in 2035, got %d", snap.Overview.TotalPatients)
	}
}

func TestService_ReportPropagatesStorageFailure(t *testing.T) {
	svc, lister := newTestService(nil)
	lister.err = apperr.StorageUnavailable(errors.New("scan failed"))

	if _, err := svc.Report(context.Background(), Bounds{}, asOf); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("expected storage unavailable, got %v", err)
	}
}
