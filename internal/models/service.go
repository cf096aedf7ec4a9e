package models

import "time"

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Store     string    `json:"store"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	ActiveSessions  int    `json:"active_sessions"`
	SamplesIngested int64  `json:"samples_ingested"`
	StoreBackend    string `json:"store_backend"`
}

// SessionRequest запрос на инициализацию графика в слоте
type SessionRequest struct {
	Slot  string `json:"slot"`
	URLID int    `json:"url_id"`
	Range string `json:"range"`
}

// SessionResponse состояние открытой сессии
type SessionResponse struct {
	ID       string        `json:"id"`
	Slot     string        `json:"slot"`
	Epoch    uint64        `json:"epoch"`
	URLID    int           `json:"url_id"`
	Range    string        `json:"range"`
	Applied  *bool         `json:"applied,omitempty"`
	Snapshot ChartSnapshot `json:"snapshot"`
}

// PanRequest сдвиг видимого окна
type PanRequest struct {
	DeltaMs int64 `json:"delta_ms"`
}

// WheelRequest прокрутка колеса
type WheelRequest struct {
	DeltaY   int   `json:"delta_y"`
	CenterMs int64 `json:"center_ms"`
}

// PinchRequest жест щипка
type PinchRequest struct {
	Scale    float64 `json:"scale"`
	CenterMs int64   `json:"center_ms"`
}

// RangeInfo параметры диапазона для клиентов
type RangeInfo struct {
	ID                string   `json:"id"`
	RefreshMs         int64    `json:"refresh_ms"`
	BucketMs          int64    `json:"bucket_ms"`
	DecimationSamples int      `json:"decimation_samples"`
	ZoomWheelSpeed    float64  `json:"zoom_wheel_speed"`
	Axis              TimeAxis `json:"axis"`
}
