package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"latency-chart-service/internal/models"
)

// MemoryStore хранит историю в памяти процесса. Используется без внешнего
// хранилища и в тестах
type MemoryStore struct {
	mu      sync.RWMutex
	opts    Options
	targets map[int][]models.RawSample
	total   int
	closed  bool
}

// Проверка реализации интерфейса при компиляции
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore создает пустое хранилище
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:    opts.withDefaults(),
		targets: make(map[int][]models.RawSample),
	}
}

// Add сохраняет одно измерение
func (m *MemoryStore) Add(ctx context.Context, s models.RawSample) error {
	return m.AddBatch(ctx, []models.RawSample{s})
}

// AddBatch сохраняет пакет измерений. Пакет с невалидным измерением отклоняется целиком
func (m *MemoryStore) AddBatch(_ context.Context, samples []models.RawSample) error {
	for _, s := range samples {
		if err := Validate(s); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for _, s := range samples {
		m.insert(s)
	}
	m.trim()
	return nil
}

// insert держит измерения цели отсортированными по времени
func (m *MemoryStore) insert(s models.RawSample) {
	list := m.targets[s.URLID]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Timestamp.After(s.Timestamp)
	})
	list = append(list, models.RawSample{})
	copy(list[i+1:], list[i:])
	list[i] = s
	m.targets[s.URLID] = list
	m.total++
}

// trim удаляет устаревшие измерения и самые старые сверх предела
func (m *MemoryStore) trim() {
	cutoff := m.opts.Now().Add(-m.opts.Retention)
	for id, list := range m.targets {
		n := sort.Search(len(list), func(i int) bool {
			return !list[i].Timestamp.Before(cutoff)
		})
		if n > 0 {
			m.total -= n
			list = list[n:]
		}
		if len(list) == 0 {
			delete(m.targets, id)
			continue
		}
		m.targets[id] = list
	}

	for m.total > m.opts.MaxSamples {
		oldest := -1
		for id, list := range m.targets {
			if oldest < 0 || list[0].Timestamp.Before(m.targets[oldest][0].Timestamp) {
				oldest = id
			}
		}
		list := m.targets[oldest][1:]
		m.total--
		if len(list) == 0 {
			delete(m.targets, oldest)
		} else {
			m.targets[oldest] = list
		}
	}
}

// Range возвращает копию измерений цели начиная с since
func (m *MemoryStore) Range(_ context.Context, target int, since time.Time) ([]models.RawSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	list := m.targets[target]
	i := sort.Search(len(list), func(i int) bool {
		return !list[i].Timestamp.Before(since)
	})
	out := make([]models.RawSample, len(list)-i)
	copy(out, list[i:])
	return out, nil
}

// Fetch возвращает измерения цели за диапазон
func (m *MemoryStore) Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error) {
	return m.Range(ctx, target, since(rangeID, m.opts.Now()))
}

// Delete удаляет историю цели
func (m *MemoryStore) Delete(_ context.Context, target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total -= len(m.targets[target])
	delete(m.targets, target)
	return nil
}

// Len возвращает общее число измерений
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// Ping всегда успешен для открытого хранилища
func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close освобождает память
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.targets = make(map[int][]models.RawSample)
	m.total = 0
	return nil
}
