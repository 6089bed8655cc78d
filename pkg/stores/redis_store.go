package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/recman/recman/pkg/records"
)

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "recman"
}

// RedisStore is an upsert backend over Redis. Each record is a hash at
// "{prefix}:record:{id}"; insertion order is kept in the sorted set
// "{prefix}:index", scored by a counter at "{prefix}:seq".
type RedisStore struct {
	client *redis.Client
	prefix string
}

var (
	_ records.Backend      = (*RedisStore)(nil)
	_ records.RecordSyncer = (*RedisStore)(nil)
	_ records.BulkSaver    = (*RedisStore)(nil)
)

// NewRedisStore creates a store around an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "recman"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// OpenRedisStore connects to Redis and verifies the connection.
func OpenRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisStore(client, cfg.Prefix), nil
}

func (r *RedisStore) recordKey(id string) string {
	return fmt.Sprintf("%s:record:%s", r.prefix, id)
}

func (r *RedisStore) indexKey() string {
	return r.prefix + ":index"
}

func (r *RedisStore) seqKey() string {
	return r.prefix + ":seq"
}

// Name returns the backend name.
func (r *RedisStore) Name() string {
	return "redis"
}

// Load reads every record in insertion order.
func (r *RedisStore) Load(ctx context.Context) ([]records.Record, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, records.NewUnknownError("failed to read record index", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.recordKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, records.NewUnknownError("failed to read records", err)
	}

	recs := []records.Record{}
	var rowErrs []error
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Index entry without a hash
			continue
		}
		rec, err := decodeRecord(ids[i], fields)
		if err != nil {
			rowErrs = append(rowErrs, withRow(err, ids[i], i+1))
			continue
		}
		recs = append(recs, rec)
	}

	if len(rowErrs) > 0 {
		return recs, records.NewFormatError(
			fmt.Sprintf("%d malformed records skipped", len(rowErrs)),
			errors.Join(rowErrs...))
	}
	return recs, nil
}

func decodeRecord(id string, fields map[string]string) (records.Record, error) {
	rec := records.Record{
		ID:         id,
		Name:       fields["name"],
		Department: fields["department"],
	}

	age, err := records.ParseAge(fields["age"])
	if err != nil {
		return rec, err
	}
	rec.Age = age

	if s, ok := fields["salary"]; ok {
		salary, err := records.ParseSalary(s)
		if err != nil {
			return rec, err
		}
		rec.Salary = &salary
	}
	return rec, nil
}

func encodeRecord(rec records.Record) map[string]interface{} {
	fields := map[string]interface{}{
		"name":       rec.Name,
		"age":        strconv.Itoa(rec.Age),
		"department": rec.Department,
	}
	if rec.Salary != nil {
		fields["salary"] = records.FormatSalary(*rec.Salary)
	}
	return fields
}

// Upsert writes the record hash, keeping the record's original position when
// the id already exists.
func (r *RedisStore) Upsert(ctx context.Context, rec records.Record) error {
	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return records.NewUnknownError("failed to allocate sequence", err).WithRecord(rec.ID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := r.recordKey(rec.ID)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encodeRecord(rec))
		pipe.ZAddNX(ctx, r.indexKey(), redis.Z{Score: float64(seq), Member: rec.ID})
		return nil
	})
	if err != nil {
		return records.NewUnknownError("failed to upsert record", err).WithRecord(rec.ID)
	}
	return nil
}

// Remove deletes the record with the given id and returns how many were removed.
func (r *RedisStore) Remove(ctx context.Context, id string) (int64, error) {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.recordKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return 0, records.NewUnknownError("failed to delete record", err).WithRecord(id)
	}
	return del.Val(), nil
}

// Save replaces every stored record with recs in one transaction. Records
// sharing an id collapse into one entry holding the last of them.
func (r *RedisStore) Save(ctx context.Context, recs []records.Record) error {
	existing, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return records.NewUnknownError("failed to read record index", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range existing {
			pipe.Del(ctx, r.recordKey(id))
		}
		pipe.Del(ctx, r.indexKey())

		for i, rec := range recs {
			key := r.recordKey(rec.ID)
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, encodeRecord(rec))
			pipe.ZAddNX(ctx, r.indexKey(), redis.Z{Score: float64(i + 1), Member: rec.ID})
		}
		pipe.Set(ctx, r.seqKey(), len(recs), 0)
		return nil
	})
	if err != nil {
		return records.NewUnknownError("failed to save records", err)
	}
	return nil
}

// Count returns the number of indexed records.
func (r *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	return int(n), err
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
