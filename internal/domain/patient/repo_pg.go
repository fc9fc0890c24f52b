package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// scanBatchSize bounds each keyset page read by PGRepository.Scan.
const scanBatchSize = 500

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGRepository stores each record as a JSONB document in patient_records,
// mirroring the schemaless DynamoDB item.
type PGRepository struct {
	db      queryable
	keyAttr string
}

func NewPGRepository(pool *pgxpool.Pool, keyAttr string) *PGRepository {
	if keyAttr == "" {
		keyAttr = DefaultKeyAttribute
	}
	return &PGRepository{db: pool, keyAttr: keyAttr}
}

func (r *PGRepository) Get(ctx context.Context, key string) (*Record, error) {
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT document FROM patient_records WHERE patient_id = $1`, key,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get patient record %s: %w", key, err)
	}
	return r.decode(key, raw)
}

func (r *PGRepository) Scan(ctx context.Context) ([]*Record, error) {
	var records []*Record
	after := ""
	for {
		rows, err := r.db.Query(ctx, `
			SELECT patient_id, document FROM patient_records
			WHERE patient_id > $1
			ORDER BY patient_id
			LIMIT $2`, after, scanBatchSize)
		if err != nil {
			return nil, fmt.Errorf("scan patient records: %w", err)
		}

		n := 0
		for rows.Next() {
			var id string
			var raw []byte
			if err := rows.Scan(&id, &raw); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan patient record row: %w", err)
			}
			rec, err := r.decode(id, raw)
			if err != nil {
				rows.Close()
				return nil, err
			}
			records = append(records, rec)
			after = id
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate patient records: %w", err)
		}
		if n < scanBatchSize {
			return records, nil
		}
	}
}

func (r *PGRepository) SetDiagnosis(ctx context.Context, key, diagnosis, updatedAt string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO patient_records (patient_id, document)
		VALUES ($1, jsonb_build_object('diagnosis', $2::text, 'updatedAt', $3::text))
		ON CONFLICT (patient_id) DO UPDATE
		SET document = patient_records.document || EXCLUDED.document,
		    updated_at = NOW()`,
		key, diagnosis, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("set diagnosis %s: %w", key, err)
	}
	return nil
}

// Ping checks that the patient_records table is reachable.
func (r *PGRepository) Ping(ctx context.Context) error {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT 1 FROM patient_records LIMIT 1`).Scan(&n); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("ping patient_records: %w", err)
	}
	return nil
}

func (r *PGRepository) decode(key string, raw []byte) (*Record, error) {
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("decode patient record %s: %w", key, err)
	}
	rec := FromDocument(doc, r.keyAttr)
	rec.PatientID = key
	return rec, nil
}

// decodeDocument reads a JSONB document keeping numbers as json.Number.
func decodeDocument(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
