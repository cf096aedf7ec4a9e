package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latency-chart-service/internal/models"
	"latency-chart-service/internal/series"
	"latency-chart-service/internal/zoom"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// recordingSurface keeps every call for assertions.
type recordingSurface struct {
	mu      sync.Mutex
	configs []models.ChartConfig
	updates []models.SeriesUpdate
	views   []models.ViewWindow
	radii   []int
	state   ZoomState
}

func (r *recordingSurface) Render(cfg models.ChartConfig, view models.ViewWindow, state ZoomState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
	r.views = append(r.views, view)
	r.state = state
	// surfaces may query zoom state at any time
	_ = state.IsZoomActive()
}

func (r *recordingSurface) Update(u models.SeriesUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recordingSurface) SetView(view models.ViewWindow, radius int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, view)
	r.radii = append(r.radii, radius)
}

func (r *recordingSurface) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recordingSurface) lastView() models.ViewWindow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

// stubSource returns canned samples, an error, or blocks until released.
type stubSource struct {
	mu      sync.Mutex
	samples []models.RawSample
	err     error
	gate    chan struct{}
	calls   int
}

func (s *stubSource) Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	samples, err := s.samples, s.err
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return samples, err
}

func samples(latencies ...float64) []models.RawSample {
	out := make([]models.RawSample, len(latencies))
	for i, l := range latencies {
		out[i] = models.RawSample{URLID: 1, Timestamp: base.Add(time.Duration(i) * 10 * time.Minute), LatencyMs: l}
	}
	return out
}

func TestManager_NilSurfaceIsNoop(t *testing.T) {
	m := NewManager(&stubSource{}, 4)

	assert.Nil(t, m.Initialize("main", nil, samples(1, 2), 1, "1h"))
	assert.Equal(t, 0, m.Len())
}

func TestManager_InitializeRendersFreshSession(t *testing.T) {
	m := NewManager(&stubSource{}, 4)
	surface := &recordingSurface{}

	s := m.Initialize("main", surface, samples(100, 200, 300), 0, "1h")
	require.NotNil(t, s)
	defer m.CloseAll()

	require.Len(t, surface.configs, 1)
	cfg := surface.configs[0]
	assert.Equal(t, "1h", cfg.Range)
	assert.Len(t, cfg.Dataset.Data, 3)
	assert.Equal(t, series.Improving, cfg.Dataset.Palette)
	assert.Equal(t, 0, cfg.Dataset.PointRadius)
	assert.False(t, s.IsZoomActive())
	assert.Same(t, s, surface.state)
	assert.Nil(t, s.cancel, "no target means no refresh loop")
}

func TestManager_UnknownRangeUsesDefault(t *testing.T) {
	m := NewManager(nil, 4)
	s := m.Initialize("main", &recordingSurface{}, nil, 0, "bogus")
	defer m.CloseAll()

	assert.Equal(t, "1d", s.Range)
	assert.Empty(t, s.Points())
}

func TestSession_RefreshReplacesSeries(t *testing.T) {
	source := &stubSource{samples: samples(300, 200, 100)}
	m := NewManager(source, 4)
	surface := &recordingSurface{}

	s := m.Initialize("main", surface, samples(100, 200), 0, "1h")
	defer m.CloseAll()

	s.refresh(context.Background(), 1)
	require.Equal(t, 1, surface.updateCount())

	u := surface.updates[0]
	assert.Len(t, u.Data, 3)
	assert.Equal(t, series.Degrading, u.Palette)
	assert.Equal(t, 240, u.DecimationSamples)
	assert.Equal(t, models.AxisPadding{Min: 70, Max: 330, Valid: true}, u.Padding)
	assert.Len(t, s.Points(), 3)
}

func TestSession_FailedOrEmptyFetchKeepsPriorState(t *testing.T) {
	source := &stubSource{err: errors.New("boom")}
	m := NewManager(source, 4)
	surface := &recordingSurface{}

	s := m.Initialize("main", surface, samples(100, 200), 0, "1h")
	defer m.CloseAll()
	before := s.Points()

	s.refresh(context.Background(), 1)
	assert.Equal(t, 0, surface.updateCount())
	assert.Equal(t, before, s.Points())

	source.mu.Lock()
	source.err = nil
	source.samples = nil
	source.mu.Unlock()

	s.refresh(context.Background(), 2)
	assert.Equal(t, 0, surface.updateCount())
	assert.Equal(t, before, s.Points())
}

func TestSession_LateResponseDiscarded(t *testing.T) {
	m := NewManager(nil, 4)
	surface := &recordingSurface{}
	s := m.Initialize("main", surface, samples(1), 0, "1h")
	defer m.CloseAll()

	newer := series.Compute(samples(5, 6), s.Profile)
	older := series.Compute(samples(7, 8, 9), s.Profile)

	assert.True(t, s.apply(2, newer))
	assert.False(t, s.apply(1, older), "cycle 1 finished after cycle 2 was applied")
	assert.Len(t, s.Points(), 2)
}

func TestSession_ZoomStateSurvivesRefresh(t *testing.T) {
	source := &stubSource{samples: samples(10, 20, 30, 40)}
	m := NewManager(source, 4)
	surface := &recordingSurface{}

	s := m.Initialize("main", surface, samples(10, 20, 30), 0, "1h")
	defer m.CloseAll()

	require.True(t, s.ToggleZoom())
	require.True(t, s.Pinch(4, base.Add(10*time.Minute).UnixMilli()))
	assert.True(t, surface.lastView().Clipped)

	s.refresh(context.Background(), 1)
	assert.True(t, s.IsZoomActive())
	require.Equal(t, 1, surface.updateCount())
	assert.True(t, surface.updates[0].View.Clipped, "clipped view is kept across refresh")
}

func TestSession_ToggleOffRestoresFullView(t *testing.T) {
	m := NewManager(nil, 4)
	surface := &recordingSurface{}
	s := m.Initialize("main", surface, samples(10, 20, 30, 40), 0, "1h")
	defer m.CloseAll()

	s.ToggleZoom()
	s.Wheel(-1, base.Add(15*time.Minute).UnixMilli())
	s.Pan(-60_000)
	require.True(t, surface.lastView().Clipped)

	assert.False(t, s.ToggleZoom())
	view := surface.lastView()
	assert.False(t, view.Clipped)
	assert.Equal(t, base.UnixMilli(), view.Min)
	assert.Equal(t, base.Add(30*time.Minute).UnixMilli(), view.Max)
	assert.Equal(t, 0, surface.radii[len(surface.radii)-1])
}

func TestSession_GesturePanicIsIsolated(t *testing.T) {
	m := NewManager(nil, 4)
	surface := &recordingSurface{}
	s := m.Initialize("main", surface, samples(10, 20, 30), 0, "1h")
	defer m.CloseAll()

	ok := s.Gesture("custom", func(c *zoom.Controller) bool {
		panic("handler bug")
	})
	assert.False(t, ok)

	// session is still usable
	assert.True(t, s.ToggleZoom())
	assert.True(t, s.Wheel(-1, base.Add(10*time.Minute).UnixMilli()))
}

func TestManager_ReinitializeDiscardsInFlightRefresh(t *testing.T) {
	gate := make(chan struct{})
	source := &stubSource{samples: samples(1, 2, 3), gate: gate}
	m := NewManager(source, 4)

	first := &recordingSurface{}
	old := m.Initialize("main", first, samples(5), 0, "1h")

	done := make(chan struct{})
	go func() {
		old.refresh(context.Background(), 1)
		close(done)
	}()

	second := &recordingSurface{}
	fresh := m.Initialize("main", second, samples(7), 2, "1d")
	defer m.CloseAll()

	assert.True(t, old.Closed())
	assert.NotEqual(t, old.Epoch, fresh.Epoch)

	close(gate)
	<-done

	assert.Equal(t, 0, first.updateCount(), "prior session result must not be applied")
	assert.Equal(t, 0, second.updateCount())
	assert.Equal(t, 1, m.Len())
}

func TestManager_RefreshLoopRunsAndStops(t *testing.T) {
	source := &stubSource{samples: []models.RawSample{{URLID: 1, Timestamp: base, LatencyMs: 42}}}
	m := NewManager(source, 4)
	surface := &recordingSurface{}

	s := m.Initialize("main", surface, nil, 1, "1s")
	require.NotNil(t, s.cancel)

	require.Eventually(t, func() bool {
		return surface.updateCount() > 0
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, m.Teardown(s.ID))
	assert.True(t, s.Closed())
	count := surface.updateCount()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, count, surface.updateCount(), "no updates after teardown")

	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Teardown(s.ID), ErrNotFound)
}

func TestManager_EvictionClosesSession(t *testing.T) {
	m := NewManager(nil, 1)

	a := m.Initialize("a", &recordingSurface{}, nil, 0, "1h")
	b := m.Initialize("b", &recordingSurface{}, nil, 0, "1h")
	defer m.CloseAll()

	assert.True(t, a.Closed())
	assert.False(t, b.Closed())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(b.ID)
	require.NoError(t, err)
	assert.Same(t, b, got)
}

func TestManager_CloseAll(t *testing.T) {
	m := NewManager(&stubSource{}, 4)
	a := m.Initialize("a", &recordingSurface{}, nil, 1, "1h")
	b := m.Initialize("b", &recordingSurface{}, nil, 1, "1h")

	m.CloseAll()
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, m.Len())
}
