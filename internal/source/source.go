// Package source поставляет сырые измерения для циклов обновления графика
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"latency-chart-service/internal/models"
	"latency-chart-service/internal/session"
)

// NewLimiter создает ограничитель частоты запросов. perSecond <= 0 снимает ограничение
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Throttled пропускает запросы к источнику через общий ограничитель
type Throttled struct {
	next    session.DataSource
	limiter *rate.Limiter
	timeout time.Duration
}

// Проверка реализации интерфейса при компиляции
var _ session.DataSource = (*Throttled)(nil)

// NewThrottled оборачивает источник. timeout <= 0 не ограничивает время запроса
func NewThrottled(next session.DataSource, limiter *rate.Limiter, timeout time.Duration) *Throttled {
	return &Throttled{next: next, limiter: limiter, timeout: timeout}
}

// Fetch ждет разрешения ограничителя и запрашивает источник
func (t *Throttled) Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.next.Fetch(ctx, target, rangeID)
}

// HTTP запрашивает измерения у сервиса истории: GET {base}/api/chart?url_id=&range=
type HTTP struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

// Проверка реализации интерфейса при компиляции
var _ session.DataSource = (*HTTP)(nil)

// NewHTTP создает HTTP источник. limiter может быть nil
func NewHTTP(baseURL string, client *http.Client, limiter *rate.Limiter) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTP{
		base:    strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: limiter,
	}
}

// Fetch выполняет один запрос. Ответ не 2xx считается ошибкой
func (h *HTTP) Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	q := url.Values{}
	q.Set("url_id", strconv.Itoa(target))
	q.Set("range", rangeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/api/chart?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chart data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch chart data: unexpected status %d", resp.StatusCode)
	}

	var samples []models.RawSample
	if err := json.NewDecoder(resp.Body).Decode(&samples); err != nil {
		return nil, fmt.Errorf("decode chart data: %w", err)
	}
	return samples, nil
}

// Func адаптер функции к session.DataSource
type Func func(ctx context.Context, target int, rangeID string) ([]models.RawSample, error)

// Fetch вызывает функцию
func (f Func) Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error) {
	return f(ctx, target, rangeID)
}
