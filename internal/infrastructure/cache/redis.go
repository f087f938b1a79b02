package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
)

const (
	keyClasses   = "classes"
	keyStudents  = "students"
	keyPositions = "positions"
	keyRatings   = "ratings"
	keySavedAt   = "saved_at"
)

// RedisSnapshotStore keeps the fallback snapshot as one JSON value per
// collection under a common prefix.
type RedisSnapshotStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSnapshotStore(addr, password string, db int, prefix string) *RedisSnapshotStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return NewRedisSnapshotStoreWithClient(rdb, prefix)
}

func NewRedisSnapshotStoreWithClient(client redis.UniversalClient, prefix string) *RedisSnapshotStore {
	if prefix == "" {
		prefix = "roster:snapshot"
	}
	return &RedisSnapshotStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisSnapshotStore) key(collection string) string {
	return fmt.Sprintf("%s:%s", r.prefix, collection)
}

func (r *RedisSnapshotStore) keys() []string {
	keys := make([]string, len(snapshotFields))
	for i, name := range snapshotFields {
		keys[i] = r.key(name)
	}
	return keys
}

// snapshotFields is the key order used by both encodeSnapshot and
// decodeSnapshot. saved_at is last and marks a complete snapshot.
var snapshotFields = []string{keyClasses, keyStudents, keyPositions, keyRatings, keySavedAt}

// encodeSnapshot returns one value per entry of snapshotFields. A zero
// SavedAt is stamped with now.
func encodeSnapshot(snapshot *roster.Snapshot, now time.Time) ([]string, error) {
	collections := []any{snapshot.Classes, snapshot.Students, snapshot.Positions, snapshot.Ratings}

	values := make([]string, 0, len(snapshotFields))
	for i, v := range collections {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s snapshot: %w", snapshotFields[i], err)
		}
		values = append(values, string(data))
	}

	savedAt := snapshot.SavedAt
	if savedAt.IsZero() {
		savedAt = now
	}
	return append(values, savedAt.UTC().Format(time.RFC3339Nano)), nil
}

// decodeSnapshot turns the MGET reply for snapshotFields back into a
// snapshot. A missing saved_at means nothing was stored and yields nil.
func decodeSnapshot(vals []any) (*roster.Snapshot, error) {
	if len(vals) != len(snapshotFields) {
		return nil, fmt.Errorf("expected %d snapshot values, got %d", len(snapshotFields), len(vals))
	}
	last := len(vals) - 1
	if vals[last] == nil {
		return nil, nil
	}

	snapshot := &roster.Snapshot{}
	targets := []any{&snapshot.Classes, &snapshot.Students, &snapshot.Positions, &snapshot.Ratings}
	for i, target := range targets {
		raw, ok := vals[i].(string)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", snapshotFields[i], err)
		}
	}

	raw, _ := vals[last].(string)
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", keySavedAt, err)
	}
	snapshot.SavedAt = ts

	return snapshot, nil
}

// SaveSnapshot writes all collections in one MULTI/EXEC so a reader never
// sees collections from two different saves.
func (r *RedisSnapshotStore) SaveSnapshot(ctx context.Context, snapshot *roster.Snapshot) error {
	values, err := encodeSnapshot(snapshot, time.Now())
	if err != nil {
		return err
	}

	keys := r.keys()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, v := range values {
			pipe.Set(ctx, keys[i], v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

func (r *RedisSnapshotStore) LoadSnapshot(ctx context.Context) (*roster.Snapshot, error) {
	vals, err := r.client.MGet(ctx, r.keys()...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decodeSnapshot(vals)
}

// Clear removes every snapshot key.
func (r *RedisSnapshotStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.keys()...).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot keys: %w", err)
	}
	return nil
}

func (r *RedisSnapshotStore) Close() error {
	return r.client.Close()
}

func (r *RedisSnapshotStore) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ interfaces.SnapshotStore = (*RedisSnapshotStore)(nil)
