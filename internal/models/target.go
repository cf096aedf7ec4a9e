package models

import "time"

// Режимы проверки цели
const (
	CheckHTTP = "http"
	CheckTCP  = "tcp"
	CheckICMP = "icmp"
)

// Target отслеживаемый эндпоинт и сводка по его проверкам
type Target struct {
	ID          int    `json:"id"`
	URL         string `json:"url"`
	CheckMode   string `json:"check_mode"`
	ThreadCount int    `json:"thread_count"`

	LastStatus    int        `json:"last_status"`
	LastLatencyMs float64    `json:"last_latency_ms"`
	LastChecked   time.Time  `json:"last_checked"`
	Status        string     `json:"status"`
	Description   string     `json:"description"`
	IsUp          bool       `json:"is_up"`
	FirstUpTime   *time.Time `json:"first_up_time,omitempty"`
	TotalChecks   int64      `json:"total_checks"`
	LatencySumMs  float64    `json:"latency_sum_ms"`
}

// AverageLatencyMs средняя задержка по всем проверкам
func (t Target) AverageLatencyMs() float64 {
	if t.TotalChecks == 0 {
		return 0
	}
	return t.LatencySumMs / float64(t.TotalChecks)
}

// TargetRequest запрос на добавление цели
type TargetRequest struct {
	URL         string `json:"url"`
	CheckMode   string `json:"check_mode"`
	ThreadCount int    `json:"thread_count"`
}

// CheckOutcome усредненный результат одного цикла проверки цели
type CheckOutcome struct {
	StatusCode int       `json:"status_code"`
	LatencyMs  float64   `json:"latency_ms"`
	Succeeded  int       `json:"succeeded"`
	Attempts   int       `json:"attempts"`
	CheckedAt  time.Time `json:"checked_at"`
}

// ScheduleRequest новое расписание проверок
type ScheduleRequest struct {
	Schedule string `json:"schedule"`
}

// ScheduleResponse текущее расписание проверок
type ScheduleResponse struct {
	Schedule    string `json:"schedule"`
	Concurrency int    `json:"concurrency"`
	Targets     int    `json:"targets"`
}
