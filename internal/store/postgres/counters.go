package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

const usageColumns = `account_id, period_key, events_created, storage_used_mb, photos_uploaded, updated_at`

// incrementQueries holds one upsert per counter column. The whole
// read-modify-write is a single statement, so concurrent increments on the
// same row serialize on its lock and each sees the previous result.
var incrementQueries = map[domain.UsageField]string{
	domain.UsageEventsCreated:  incrementQuery("events_created", "BIGINT"),
	domain.UsageStorageUsedMB:  incrementQuery("storage_used_mb", "DOUBLE PRECISION"),
	domain.UsagePhotosUploaded: incrementQuery("photos_uploaded", "BIGINT"),
}

func incrementQuery(column, sqlType string) string {
	return fmt.Sprintf(`
INSERT INTO usage_records (account_id, period_key, %[1]s, updated_at)
VALUES ($1, $2, GREATEST(0, $3::%[2]s), NOW())
ON CONFLICT (account_id, period_key)
DO UPDATE SET %[1]s = GREATEST(0, usage_records.%[1]s + $3::%[2]s),
              updated_at = NOW()
RETURNING `+usageColumns, column, sqlType)
}

// ReadCounter returns the record for (accountID, key) or ErrNoRecord.
func (s *Store) ReadCounter(ctx context.Context, accountID uuid.UUID, key domain.PeriodKey) (*domain.UsageRecord, error) {
	const q = `SELECT ` + usageColumns + `
	           FROM usage_records
	           WHERE account_id = $1 AND period_key = $2`

	rec, err := scanUsage(s.db.QueryRow(ctx, q, accountID, string(key)))
	if err != nil {
		return nil, noRecord(err)
	}
	return &rec, nil
}

// AtomicIncrement adds delta to field, creating the record if needed.
func (s *Store) AtomicIncrement(ctx context.Context, accountID uuid.UUID, key domain.PeriodKey, field domain.UsageField, delta float64) (domain.UsageRecord, error) {
	q, ok := incrementQueries[field]
	if !ok {
		return domain.UsageRecord{}, fmt.Errorf("postgres: unknown usage field %q", field)
	}

	// Integer columns must receive an integer parameter.
	var arg any = int64(delta)
	if field == domain.UsageStorageUsedMB {
		arg = delta
	}

	return scanUsage(s.db.QueryRow(ctx, q, accountID, string(key), arg))
}

// ListCounters returns the existing records among keys, in the order of keys.
func (s *Store) ListCounters(ctx context.Context, accountID uuid.UUID, keys []domain.PeriodKey) ([]domain.UsageRecord, error) {
	const q = `SELECT ` + usageColumns + `
	           FROM usage_records
	           WHERE account_id = $1 AND period_key = ANY($2)`

	wanted := make([]string, len(keys))
	for i, k := range keys {
		wanted[i] = string(k)
	}

	rows, err := s.db.Query(ctx, q, accountID, wanted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byKey := make(map[domain.PeriodKey]domain.UsageRecord, len(keys))
	for rows.Next() {
		rec, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		byKey[rec.PeriodKey] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []domain.UsageRecord
	for _, k := range keys {
		if rec, ok := byKey[k]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUsage(row scanner) (domain.UsageRecord, error) {
	var (
		rec domain.UsageRecord
		key string
	)
	if err := row.Scan(
		&rec.AccountID,
		&key,
		&rec.EventsCreated,
		&rec.StorageUsedMB,
		&rec.PhotosUploaded,
		&rec.UpdatedAt,
	); err != nil {
		return domain.UsageRecord{}, err
	}
	rec.PeriodKey = domain.PeriodKey(key)
	return rec, nil
}
