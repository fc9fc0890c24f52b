package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hospital/hospital-backend/internal/platform/apperr"
)

// DiagnosisUpdate is the body accepted by PUT /me/record.
type DiagnosisUpdate struct {
	Diagnosis *string `json:"diagnosis"`
	UpdatedAt string  `json:"updatedAt"`
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// GetRecord returns the record stored under key or an apperr NotFound.
func (s *Service) GetRecord(ctx context.Context, key string) (*Record, error) {
	rec, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("not_found")
		}
		return nil, apperr.StorageUnavailable(err)
	}
	return rec, nil
}

// FindRecord is GetRecord for callers that treat absence as a value: it
// returns nil, nil when no record exists.
func (s *Service) FindRecord(ctx context.Context, key string) (*Record, error) {
	rec, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.StorageUnavailable(err)
	}
	return rec, nil
}

// SetDiagnosis upserts the diagnosis of the record under key. A missing
// updatedAt defaults to the current UTC time.
func (s *Service) SetDiagnosis(ctx context.Context, key string, upd DiagnosisUpdate) error {
	if upd.Diagnosis == nil || strings.TrimSpace(*upd.Diagnosis) == "" {
		return apperr.Validation("diagnosis is required")
	}
	updatedAt := strings.TrimSpace(upd.UpdatedAt)
	if updatedAt == "" {
		updatedAt = s.now().UTC().Format(time.RFC3339)
	}
	if err := s.repo.SetDiagnosis(ctx, key, *upd.Diagnosis, updatedAt); err != nil {
		return apperr.StorageUnavailable(err)
	}
	return nil
}

// ListRecords returns every stored record.
func (s *Service) ListRecords(ctx context.Context) ([]*Record, error) {
	records, err := s.repo.Scan(ctx)
	if err != nil {
		return nil, apperr.StorageUnavailable(err)
	}
	return records, nil
}
