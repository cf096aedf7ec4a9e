package session

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"latency-chart-service/internal/metrics"
	"latency-chart-service/internal/models"
)

// ErrNotFound возвращается для неизвестной или закрытой сессии
var ErrNotFound = errors.New("session not found")

// DefaultMaxSessions предел числа открытых сессий по умолчанию
const DefaultMaxSessions = 256

// Manager владеет сессиями. Для каждого слота (места отрисовки) открыта не более одной сессии
type Manager struct {
	mu       sync.Mutex
	sessions *lru.Cache
	slots    map[string]*Session
	source   DataSource
	epoch    uint64
}

// NewManager создает менеджер сессий. Вытесненная из LRU сессия закрывается
func NewManager(source DataSource, maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	m := &Manager{
		slots:  make(map[string]*Session),
		source: source,
	}
	m.sessions, _ = lru.NewWithEvict(maxSessions, m.evicted)
	return m
}

// evicted вызывается LRU под m.mu
func (m *Manager) evicted(_, val interface{}) {
	s := val.(*Session)
	s.Close()
	if m.slots[s.Slot] == s {
		delete(m.slots, s.Slot)
		metrics.SessionsEvicted.Inc()
	}
	metrics.ActiveSessions.Set(float64(len(m.slots)))
}

// Initialize закрывает прежнюю сессию слота, отрисовывает новую и запускает обновление.
// Без поверхности отрисовки ничего не делает и возвращает nil. Типизированный nil
// (например (*surface.Snapshot)(nil)) не распознается, поверхность сама должна
// допускать nil получатель
func (m *Manager) Initialize(slot string, surface Surface, raw []models.RawSample, target int, rangeID string) *Session {
	if surface == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.slots[slot]; ok {
		delete(m.slots, slot)
		m.sessions.Remove(prior.ID)
		prior.Close()
	}

	m.epoch++
	s := newSession(m.epoch, slot, surface, m.source, target, rangeID)
	s.render(raw)
	s.start()

	m.slots[slot] = s
	m.sessions.Add(s.ID, s)
	metrics.ActiveSessions.Set(float64(len(m.slots)))
	return s
}

// Get возвращает открытую сессию по идентификатору
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return val.(*Session), nil
}

// Teardown закрывает сессию по идентификатору
func (m *Manager) Teardown(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.sessions.Peek(id)
	if !ok {
		return ErrNotFound
	}
	s := val.(*Session)
	delete(m.slots, s.Slot)
	m.sessions.Remove(id)
	s.Close()
	metrics.ActiveSessions.Set(float64(len(m.slots)))
	return nil
}

// Len возвращает число открытых сессий
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// CloseAll закрывает все сессии
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for slot := range m.slots {
		delete(m.slots, slot)
	}
	m.sessions.Purge()
	metrics.ActiveSessions.Set(0)
}
