// Package redis implements domain.CounterStore on Redis.
//
// Each (account, period) pair is one hash holding the three counters. All
// writes go through a Lua script so an increment, its clamp at zero and
// the read-back happen as one atomic step on the server.
package redis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

// DefaultRetention keeps period hashes long enough for the largest
// statistics window plus the current period.
const DefaultRetention = 400 * 24 * time.Hour

const fieldUpdatedAt = "updated_at"

// KEYS[1]=hash; ARGV[1]=field; ARGV[2]=delta; ARGV[3]=nowMs; ARGV[4]=ttlMs
// Returns the hash after the update as a flat field/value list.
var luaIncrement = redis.NewScript(`
  local k = KEYS[1]
  local v = tonumber(redis.call('HINCRBYFLOAT', k, ARGV[1], ARGV[2]))
  if v < 0 then
    redis.call('HSET', k, ARGV[1], 0)
  end
  redis.call('HSET', k, 'updated_at', ARGV[3])
  redis.call('PEXPIRE', k, ARGV[4])
  return redis.call('HGETALL', k)
`)

// Config is used to connect to Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Connect creates a client and verifies the server is reachable.
func Connect(ctx context.Context, c Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", c.Addr, err)
	}
	return rdb, nil
}

// CounterStore keeps usage counters in Redis hashes.
type CounterStore struct {
	rdb       redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

// NewCounterStore returns a CounterStore. A zero retention uses DefaultRetention.
func NewCounterStore(rdb redis.UniversalClient, retention time.Duration) *CounterStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &CounterStore{
		rdb:       rdb,
		retention: retention,
		now:       time.Now,
	}
}

func counterKey(accountID uuid.UUID, key domain.PeriodKey) string {
	return "usage:" + accountID.String() + ":" + string(key)
}

// ReadCounter returns the record for (accountID, key) or ErrNoRecord.
func (s *CounterStore) ReadCounter(ctx context.Context, accountID uuid.UUID, key domain.PeriodKey) (*domain.UsageRecord, error) {
	h, err := s.rdb.HGetAll(ctx, counterKey(accountID, key)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, domain.ErrNoRecord
	}
	rec, err := parseRecord(accountID, key, h)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AtomicIncrement adds delta to field, creating the hash if needed.
func (s *CounterStore) AtomicIncrement(ctx context.Context, accountID uuid.UUID, key domain.PeriodKey, field domain.UsageField, delta float64) (domain.UsageRecord, error) {
	if !field.IsValid() {
		return domain.UsageRecord{}, fmt.Errorf("redis: unknown usage field %q", field)
	}

	res, err := luaIncrement.Run(ctx, s.rdb,
		[]string{counterKey(accountID, key)},
		string(field),
		strconv.FormatFloat(delta, 'f', -1, 64),
		s.now().UnixMilli(),
		s.retention.Milliseconds(),
	).Slice()
	if err != nil {
		return domain.UsageRecord{}, err
	}

	h := make(map[string]string, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		h[fmt.Sprint(res[i])] = fmt.Sprint(res[i+1])
	}
	return parseRecord(accountID, key, h)
}

// ListCounters returns the existing records among keys, in the order of keys.
func (s *CounterStore) ListCounters(ctx context.Context, accountID uuid.UUID, keys []domain.PeriodKey) ([]domain.UsageRecord, error) {
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, counterKey(accountID, k))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	var out []domain.UsageRecord
	for i, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		rec, err := parseRecord(accountID, keys[i], h)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRecord(accountID uuid.UUID, key domain.PeriodKey, h map[string]string) (domain.UsageRecord, error) {
	rec := domain.ZeroUsage(accountID, key)

	events, err := parseFloat(h, string(domain.UsageEventsCreated))
	if err != nil {
		return rec, err
	}
	storage, err := parseFloat(h, string(domain.UsageStorageUsedMB))
	if err != nil {
		return rec, err
	}
	photos, err := parseFloat(h, string(domain.UsagePhotosUploaded))
	if err != nil {
		return rec, err
	}
	updated, err := parseFloat(h, fieldUpdatedAt)
	if err != nil {
		return rec, err
	}

	rec.EventsCreated = int64(math.Round(events))
	rec.StorageUsedMB = storage
	rec.PhotosUploaded = int64(math.Round(photos))
	if updated > 0 {
		rec.UpdatedAt = time.UnixMilli(int64(updated)).UTC()
	}
	return rec, nil
}

func parseFloat(h map[string]string, field string) (float64, error) {
	v, ok := h[field]
	if !ok || v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: bad %s value %q: %w", field, v, err)
	}
	return f, nil
}
