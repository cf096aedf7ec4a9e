// Package monitor измеряет задержку отслеживаемых эндпоинтов и по расписанию
// записывает результаты в историю
package monitor

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"latency-chart-service/internal/models"
)

// DefaultTimeout предел времени одной проверки
const DefaultTimeout = 5 * time.Second

// Result итог одной проверки. StatusCode 0 означает сетевую ошибку
type Result struct {
	StatusCode int
	Latency    time.Duration
	NetworkErr bool
}

// CheckFunc выполняет одну проверку цели
type CheckFunc func(ctx context.Context, t models.Target) Result

// Checker выполняет проверки по режиму цели
type Checker struct {
	client *http.Client
	dialer *net.Dialer
}

// NewChecker создает проверяющего. timeout <= 0 заменяется на DefaultTimeout
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		client: &http.Client{Timeout: timeout},
		dialer: &net.Dialer{Timeout: timeout},
	}
}

// Check выбирает проверку по режиму цели. Неизвестный режим - HTTP
func (c *Checker) Check(ctx context.Context, t models.Target) Result {
	switch t.CheckMode {
	case models.CheckTCP:
		return c.TCP(ctx, t.URL)
	case models.CheckICMP:
		return c.ICMP(ctx, t.URL)
	default:
		return c.HTTP(ctx, t.URL)
	}
}

// HTTP выполняет GET и измеряет время до получения ответа
func (c *Checker) HTTP(ctx context.Context, rawURL string) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{Latency: time.Since(start), NetworkErr: true}
	}

	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Result{Latency: latency, NetworkErr: true}
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	return Result{StatusCode: resp.StatusCode, Latency: latency}
}

// TCP открывает соединение с host:port цели. Успех отмечается статусом 200
func (c *Checker) TCP(ctx context.Context, rawURL string) Result {
	start := time.Now()

	conn, err := c.dialer.DialContext(ctx, "tcp", dialAddr(rawURL))
	latency := time.Since(start)
	if err != nil {
		return Result{Latency: latency, NetworkErr: true}
	}
	conn.Close()

	return Result{StatusCode: http.StatusOK, Latency: latency}
}

// ICMP без raw сокетов: доступность проверяется TCP соединением с портом цели
func (c *Checker) ICMP(ctx context.Context, rawURL string) Result {
	return c.TCP(ctx, rawURL)
}

// dialAddr извлекает host:port. Без порта берется порт схемы (443 для https, иначе 80)
func dialAddr(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if strings.EqualFold(u.Scheme, "https") {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
