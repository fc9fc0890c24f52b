package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/hospital/hospital-backend/internal/domain/metrics"
	"github.com/hospital/hospital-backend/internal/platform/blobstore"
)

// report is the document written by `report export`.
type report struct {
	GeneratedAt time.Time             `json:"generated_at"`
	MinAge      *float64              `json:"min_age,omitempty"`
	MaxAge      *float64              `json:"max_age,omitempty"`
	Overview    metrics.Overview      `json:"overview"`
	Status      metrics.StatusSummary `json:"status"`
}

// boundsFromFlags applies the same validation as the min_age and max_age
// query parameters.
func boundsFromFlags(minAge, maxAge string) (metrics.Bounds, error) {
	q := url.Values{}
	q.Set(metrics.ParamMinAge, minAge)
	q.Set(metrics.ParamMaxAge, maxAge)
	return metrics.ParseBounds(q)
}

func buildReport(ctx context.Context, svc *metrics.Service, bounds metrics.Bounds, now time.Time) (*report, error) {
	snap, err := svc.Report(ctx, bounds, now)
	if err != nil {
		return nil, fmt.Errorf("computing report: %w", err)
	}
	return &report{
		GeneratedAt: snap.AsOf,
		MinAge:      bounds.Min,
		MaxAge:      bounds.Max,
		Overview:    snap.Overview,
		Status:      snap.Status,
	}, nil
}

func reportKey(generatedAt time.Time) string {
	return "reports/overview-" + generatedAt.UTC().Format("20060102T150405Z") + ".json"
}

func writeReport(w io.Writer, r *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func uploadReport(ctx context.Context, store blobstore.BlobStore, r *report) (*blobstore.Object, error) {
	var buf bytes.Buffer
	if err := writeReport(&buf, r); err != nil {
		return nil, err
	}
	return store.Put(ctx, reportKey(r.GeneratedAt), "application/json", &buf)
}
