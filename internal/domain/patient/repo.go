package patient

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Repository when no record has the given key.
var ErrNotFound = errors.New("patient record not found")

// Repository defines the persistence interface for patient records.
type Repository interface {
	Get(ctx context.Context, key string) (*Record, error)
	// Scan returns every record, following store pagination to the end.
	Scan(ctx context.Context) ([]*Record, error)
	// SetDiagnosis creates or updates the diagnosis fields of one record.
	SetDiagnosis(ctx context.Context, key, diagnosis, updatedAt string) error
}
