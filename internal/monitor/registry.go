package monitor

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"latency-chart-service/internal/models"
)

// Ограничения параллельных проверок одной цели
const (
	DefaultThreadCount = 1
	MaxThreadCount     = 32
)

var (
	ErrTargetNotFound = errors.New("target not found")
	ErrInvalidTarget  = errors.New("invalid target")
)

// Registry реестр отслеживаемых целей в памяти
type Registry struct {
	mu      sync.RWMutex
	targets map[int]*models.Target
	nextID  int
	now     func() time.Time
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[int]*models.Target),
		now:     time.Now,
	}
}

// Add проверяет запрос и регистрирует цель под новым ID
func (r *Registry) Add(req models.TargetRequest) (models.Target, error) {
	target, err := normalize(req)
	if err != nil {
		return models.Target{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	target.ID = r.nextID
	r.targets[target.ID] = &target
	return target, nil
}

// Delete удаляет цель
func (r *Registry) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.targets[id]; !ok {
		return ErrTargetNotFound
	}
	delete(r.targets, id)
	return nil
}

// Get возвращает копию цели
func (r *Registry) Get(id int) (models.Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.targets[id]
	if !ok {
		return models.Target{}, false
	}
	return *t, true
}

// List возвращает копии целей по возрастанию ID
func (r *Registry) List() []models.Target {
	r.mu.RLock()
	out := make([]models.Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, *t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len число целей
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

// Record применяет итог цикла проверки к сводке цели.
// Цель, удаленная во время проверки, дает ErrTargetNotFound
func (r *Registry) Record(id int, out models.CheckOutcome) (models.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[id]
	if !ok {
		return models.Target{}, ErrTargetNotFound
	}

	nowUp := out.StatusCode == http.StatusOK
	switch {
	case nowUp && !t.IsUp:
		at := out.CheckedAt
		t.FirstUpTime = &at
	case !nowUp && t.IsUp:
		t.FirstUpTime = nil
	}

	t.Status, t.Description = describe(out.StatusCode)
	t.IsUp = nowUp
	t.LastStatus = out.StatusCode
	t.LastLatencyMs = out.LatencyMs
	t.LastChecked = out.CheckedAt
	t.TotalChecks++
	t.LatencySumMs += out.LatencyMs
	return *t, nil
}

// Uptime время с момента перехода цели в состояние Up
func (r *Registry) Uptime(id int) time.Duration {
	t, ok := r.Get(id)
	if !ok || t.FirstUpTime == nil {
		return 0
	}
	return r.now().Sub(*t.FirstUpTime)
}

// describe переводит код ответа в статус и описание.
// Любой ответ сервера считается Up, отсутствие ответа - Down
func describe(status int) (string, string) {
	switch {
	case status == http.StatusOK:
		return "Up", "Succeed"
	case status == http.StatusTooManyRequests:
		return "Up", "Too Many Requests"
	case status > 0:
		return "Up", "Warning"
	default:
		return "Down", "Network Error"
	}
}

func normalize(req models.TargetRequest) (models.Target, error) {
	raw := strings.TrimSpace(req.URL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return models.Target{}, fmt.Errorf("%w: url %q must be absolute", ErrInvalidTarget, req.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return models.Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}

	mode := strings.ToLower(strings.TrimSpace(req.CheckMode))
	switch mode {
	case "":
		mode = models.CheckHTTP
	case models.CheckHTTP, models.CheckTCP, models.CheckICMP:
	default:
		return models.Target{}, fmt.Errorf("%w: unknown check mode %q", ErrInvalidTarget, req.CheckMode)
	}

	threads := req.ThreadCount
	if threads <= 0 {
		threads = DefaultThreadCount
	}
	if threads > MaxThreadCount {
		return models.Target{}, fmt.Errorf("%w: thread count %d exceeds %d", ErrInvalidTarget, threads, MaxThreadCount)
	}

	return models.Target{
		URL:         raw,
		CheckMode:   mode,
		ThreadCount: threads,
		Status:      "Pending",
	}, nil
}
