package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and stores each record as a JSON
// string under "<prefix>:run:<id>", indexed by finish time in the sorted
// set "<prefix>:runs".
func NewRedisStore(redisURL, prefix string, ttl time.Duration) (Store, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis runstore: redis_url is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisStore(client, prefix, ttl), nil
}

func newRedisStore(client *redis.Client, prefix string, ttl time.Duration) *redisStore {
	if prefix == "" {
		prefix = DefaultConfig().Prefix
	}
	return &redisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *redisStore) key(runID string) string {
	return fmt.Sprintf("%s:run:%s", s.prefix, runID)
}

func (s *redisStore) indexKey() string {
	return s.prefix + ":runs"
}

func (s *redisStore) Save(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(rec.RunID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(rec.FinishedAt.UnixNano()),
		Member: rec.RunID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, runID string) (Record, error) {
	if runID == "" {
		return Record{}, ErrEmptyID
	}

	data, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return Record{}, fmt.Errorf("failed to get run: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return rec, nil
}

// List walks the index newest first. Index entries whose record has expired
// are removed as they are found.
func (s *redisStore) List(ctx context.Context, graphName string, limit int) ([]Record, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var records []Record
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.client.ZRem(ctx, s.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if graphName != "" && rec.Graph != graphName {
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
