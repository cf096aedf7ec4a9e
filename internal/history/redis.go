package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"latency-chart-service/internal/models"
)

const (
	// KeyPrefix префикс ключей истории, одно упорядоченное множество на цель
	KeyPrefix = "history:"
	// SeqKey счетчик, делающий элементы множества уникальными
	SeqKey = "history:seq"
)

// redisRecord элемент упорядоченного множества. Оценка - время в миллисекундах
type redisRecord struct {
	Seq       int64     `json:"seq"`
	URLID     int       `json:"url_id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs float64   `json:"latency_ms"`
}

// RedisStore хранит историю в Redis
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// Проверка реализации интерфейса при компиляции
var _ Store = (*RedisStore)(nil)

// NewRedisStore создает новое подключение к Redis
func NewRedisStore(ctx context.Context, addr, password string, db int, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		opts:   opts.withDefaults(),
	}, nil
}

func targetKey(target int) string {
	return KeyPrefix + strconv.Itoa(target)
}

// Add сохраняет одно измерение
func (r *RedisStore) Add(ctx context.Context, s models.RawSample) error {
	return r.AddBatch(ctx, []models.RawSample{s})
}

// AddBatch сохраняет пакет измерений одним конвейером и обрезает историю
// затронутых целей по возрасту и пределу числа измерений
func (r *RedisStore) AddBatch(ctx context.Context, samples []models.RawSample) error {
	if len(samples) == 0 {
		return nil
	}
	for _, s := range samples {
		if err := Validate(s); err != nil {
			return err
		}
	}

	last, err := r.client.IncrBy(ctx, SeqKey, int64(len(samples))).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}
	seq := last - int64(len(samples))

	members := make(map[int][]*redis.Z)
	for _, s := range samples {
		seq++
		data, err := json.Marshal(redisRecord{
			Seq:       seq,
			URLID:     s.URLID,
			Timestamp: s.Timestamp,
			LatencyMs: s.LatencyMs,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal sample: %w", err)
		}
		members[s.URLID] = append(members[s.URLID], &redis.Z{
			Score:  float64(s.Timestamp.UnixMilli()),
			Member: data,
		})
	}

	cutoff := r.opts.Now().Add(-r.opts.Retention).UnixMilli()

	pipe := r.client.Pipeline()
	for target, zs := range members {
		key := targetKey(target)
		pipe.ZAdd(ctx, key, zs...)
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		// Храним не более MaxSamples последних измерений цели
		pipe.ZRemRangeByRank(ctx, key, 0, -int64(r.opts.MaxSamples)-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store samples: %w", err)
	}
	return nil
}

// Range возвращает измерения цели начиная с since
func (r *RedisStore) Range(ctx context.Context, target int, since time.Time) ([]models.RawSample, error) {
	data, err := r.client.ZRangeByScore(ctx, targetKey(target), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	out := make([]models.RawSample, 0, len(data))
	for _, d := range data {
		var rec redisRecord
		if err := json.Unmarshal([]byte(d), &rec); err != nil {
			log.Printf("History: skipping undecodable member of %s: %v", targetKey(target), err)
			continue
		}
		if rec.Timestamp.Before(since) {
			continue
		}
		out = append(out, models.RawSample{
			URLID:     rec.URLID,
			Timestamp: rec.Timestamp,
			LatencyMs: rec.LatencyMs,
		})
	}
	return out, nil
}

// Fetch возвращает измерения цели за диапазон
func (r *RedisStore) Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error) {
	return r.Range(ctx, target, since(rangeID, r.opts.Now()))
}

// Delete удаляет историю цели
func (r *RedisStore) Delete(ctx context.Context, target int) error {
	if err := r.client.Del(ctx, targetKey(target)).Err(); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisStore) Close() error {
	return r.client.Close()
}
