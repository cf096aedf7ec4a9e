// Package history хранит сырые измерения задержки по целям и отдает их
// для построения графика за выбранный диапазон
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"latency-chart-service/internal/models"
	"latency-chart-service/internal/profile"
)

const (
	// DefaultMaxSamples предел числа хранимых измерений на все цели
	DefaultMaxSamples = 1000000
	// DefaultRetention глубина хранения истории
	DefaultRetention = 30 * 24 * time.Hour
)

// Ошибки хранилища
var (
	ErrInvalidSample = errors.New("invalid sample")
	ErrClosed        = errors.New("store closed")
)

// Store хранилище истории измерений
type Store interface {
	Add(ctx context.Context, s models.RawSample) error
	AddBatch(ctx context.Context, samples []models.RawSample) error
	// Range возвращает измерения цели с моментом не раньше since, по возрастанию времени
	Range(ctx context.Context, target int, since time.Time) ([]models.RawSample, error)
	Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error)
	Delete(ctx context.Context, target int) error
	Ping(ctx context.Context) error
	Close() error
}

// Options ограничения хранения
type Options struct {
	Retention  time.Duration
	MaxSamples int
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = DefaultMaxSamples
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Validate проверяет измерение перед записью
func Validate(s models.RawSample) error {
	if s.URLID <= 0 {
		return fmt.Errorf("%w: url_id must be positive", ErrInvalidSample)
	}
	if s.LatencyMs < 0 {
		return fmt.Errorf("%w: latency_ms must not be negative", ErrInvalidSample)
	}
	return nil
}

// since нижняя граница выборки для диапазона
func since(rangeID string, now time.Time) time.Time {
	return profile.Since(profile.Normalize(rangeID), now)
}
