package series

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latency-chart-service/internal/models"
	"latency-chart-service/internal/profile"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sample(offset time.Duration, latency float64) models.RawSample {
	return models.RawSample{URLID: 1, Timestamp: base.Add(offset), LatencyMs: latency}
}

func TestBuild_SortsAndKeepsLength(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		n := rng.Intn(50)
		raw := make([]models.RawSample, n)
		for i := range raw {
			raw[i] = sample(time.Duration(rng.Intn(3600))*time.Second, float64(rng.Intn(500)))
		}

		points := Build(raw)
		require.Len(t, points, n)
		for i := 1; i < len(points); i++ {
			assert.LessOrEqual(t, points[i-1].X, points[i].X)
		}
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	assert.Empty(t, Build(nil))
	assert.NotNil(t, Build(nil))
	assert.Empty(t, Build([]models.RawSample{}))
}

func TestBuild_DoesNotReorderInput(t *testing.T) {
	raw := []models.RawSample{sample(2*time.Second, 20), sample(time.Second, 10)}
	points := Build(raw)

	assert.Equal(t, base.Add(2*time.Second), raw[0].Timestamp)
	assert.Equal(t, []models.Point{
		{X: base.Add(time.Second).UnixMilli(), Y: 10},
		{X: base.Add(2 * time.Second).UnixMilli(), Y: 20},
	}, points)
}

func TestAggregateBuckets_DisjointWindowsAndCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	widths := []time.Duration{time.Second, 5 * time.Minute, 2 * time.Hour}

	for _, width := range widths {
		raw := make([]models.RawSample, 200)
		for i := range raw {
			raw[i] = sample(time.Duration(rng.Int63n(int64(6*time.Hour))), float64(rng.Intn(300)))
		}
		points := Build(raw)
		buckets := AggregateBuckets(points, width)
		w := width.Milliseconds()

		total := 0
		for i, b := range buckets {
			total += b.Count
			assert.Zero(t, b.Start%w, "bucket start must be aligned")
			assert.GreaterOrEqual(t, b.AnchorX, b.Start)
			assert.Less(t, b.AnchorX, b.Start+w)
			if i > 0 {
				assert.GreaterOrEqual(t, b.Start, buckets[i-1].Start+w, "windows must be disjoint and ordered")
			}
		}
		assert.Equal(t, len(points), total)
	}
}

func TestAggregateBuckets_MeanAndAnchor(t *testing.T) {
	points := Build([]models.RawSample{
		sample(0, 10),
		sample(200*time.Millisecond, 11),
		sample(400*time.Millisecond, 12),
		sample(3*time.Second, 100),
	})

	buckets := AggregateBuckets(points, time.Second)
	require.Len(t, buckets, 2, "gap second must not produce a bucket")

	assert.Equal(t, float64(11), buckets[0].Value)
	assert.Equal(t, 3, buckets[0].Count)
	assert.Equal(t, base.Add(400*time.Millisecond).UnixMilli(), buckets[0].AnchorX)
	assert.Equal(t, base.UnixMilli(), buckets[0].Start)

	assert.Equal(t, float64(100), buckets[1].Value)
	assert.Equal(t, base.Add(3*time.Second).UnixMilli(), buckets[1].AnchorX)
}

func TestAggregateBuckets_RoundsMean(t *testing.T) {
	points := []models.Point{{X: 0, Y: 1}, {X: 1, Y: 2}}
	buckets := AggregateBuckets(points, time.Second)

	require.Len(t, buckets, 1)
	assert.Equal(t, float64(2), buckets[0].Value, "1.5 rounds up")
}

func TestAggregate_NonPositiveWidthIsIdentity(t *testing.T) {
	points := Build([]models.RawSample{sample(0, 1), sample(time.Millisecond, 3)})

	assert.Equal(t, points, Aggregate(points, 0))
	assert.Equal(t, points, Aggregate(points, -time.Second))
}

func TestAggregateBuckets_NonPositiveWidthIsEmpty(t *testing.T) {
	points := Build([]models.RawSample{sample(0, 1), sample(time.Millisecond, 3)})

	for _, width := range []time.Duration{0, -time.Second, time.Microsecond} {
		buckets := AggregateBuckets(points, width)
		require.NotNil(t, buckets, "width %s", width)
		assert.Empty(t, buckets, "width %s", width)
	}
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, time.Second))
	assert.Empty(t, AggregateBuckets(nil, time.Second))
}

func TestPipeline_DayRangeSpanningThreeHours(t *testing.T) {
	raw := []models.RawSample{
		sample(0, 100),
		sample(40*time.Minute, 110),
		sample(90*time.Minute, 120),
		sample(130*time.Minute, 130),
		sample(3*time.Hour, 140),
	}

	p := profile.Resolve("1d")
	points := Aggregate(Build(raw), p.BucketWidth)
	assert.LessOrEqual(t, len(points), 2)
}

func TestPipeline_HourRangeSingleWindow(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
	latencies := []float64{101, 102, 104, 107, 111}
	raw := make([]models.RawSample, len(latencies))
	for i, l := range latencies {
		raw[len(raw)-1-i] = models.RawSample{Timestamp: start.Add(time.Duration(i) * 30 * time.Second), LatencyMs: l}
	}

	p := profile.Resolve("1h")
	points := Aggregate(Build(raw), p.BucketWidth)
	require.Len(t, points, 1)
	assert.Equal(t, float64(105), points[0].Y, "mean 105 of five latencies")
	assert.Equal(t, start.Add(2*time.Minute).UnixMilli(), points[0].X)
}

func BenchmarkAggregate(b *testing.B) {
	raw := make([]models.RawSample, 10000)
	for i := range raw {
		raw[i] = sample(time.Duration(i)*time.Second, float64(i%300))
	}
	points := Build(raw)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Aggregate(points, 5*time.Minute)
	}
}

func BenchmarkBuild(b *testing.B) {
	raw := make([]models.RawSample, 10000)
	for i := range raw {
		raw[len(raw)-1-i] = sample(time.Duration(i)*time.Second, float64(i%300))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Build(raw)
	}
}
