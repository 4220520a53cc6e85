package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// DefaultRedisKey is the hash that holds the snapshot when no key is
// configured.
const DefaultRedisKey = "bus:reservations"

// RedisStore keeps the snapshot in one Redis hash: field = reservation
// id, value = JSON record.  Saves delete and rewrite the hash inside a
// MULTI/EXEC transaction so other clients never observe a half-written
// snapshot.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore returns a RedisStore using the given hash key.  An empty
// key falls back to DefaultRedisKey.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// Load reads the hash.  A field that does not decode makes the whole
// store malformed: an empty mapping is returned with model.ErrMalformed.
func (s *RedisStore) Load(ctx context.Context) (map[string]model.Reservation, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", s.key, err)
	}
	out := make(map[string]model.Reservation, len(fields))
	for id, raw := range fields {
		var rec ReservationRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return map[string]model.Reservation{}, malformed(fmt.Errorf("field %s: %w", id, err))
		}
		r, err := fromRecord(id, rec)
		if err != nil {
			return map[string]model.Reservation{}, malformed(err)
		}
		out[id] = r
	}
	return out, nil
}

// Save replaces the hash with the given snapshot.
func (s *RedisStore) Save(ctx context.Context, reservations map[string]model.Reservation) error {
	values := make([]interface{}, 0, len(reservations)*2)
	for id, r := range reservations {
		raw, err := json.Marshal(toRecord(r))
		if err != nil {
			return fmt.Errorf("encoding reservation %s: %w", id, err)
		}
		values = append(values, id, string(raw))
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis snapshot %s: %w", s.key, err)
	}
	return nil
}
