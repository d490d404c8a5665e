package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goatfit-monitor/internal/models"
)

func testProfile() models.ThresholdProfile {
	return models.ThresholdProfile{
		LowCritical:  40,
		LowWarning:   50,
		HighWarning:  140,
		HighCritical: 180,
	}
}

func TestEvaluate_SeverityLevels(t *testing.T) {
	profile := testProfile()

	cases := []struct {
		name      string
		value     float64
		severity  models.Severity
		threshold float64
		bound     models.Bound
	}{
		{"normal_resting", 72, models.SeverityNormal, 0, models.BoundNone},
		{"high_warning_boundary", 140, models.SeverityWarning, 140, models.BoundHigh},
		{"high_warning", 155, models.SeverityWarning, 140, models.BoundHigh},
		{"high_critical_boundary", 180, models.SeverityCritical, 180, models.BoundHigh},
		{"high_critical", 195, models.SeverityCritical, 180, models.BoundHigh},
		{"low_warning_boundary", 50, models.SeverityWarning, 50, models.BoundLow},
		{"low_warning", 45, models.SeverityWarning, 50, models.BoundLow},
		{"low_critical_boundary", 40, models.SeverityCritical, 40, models.BoundLow},
		{"low_critical", 32, models.SeverityCritical, 40, models.BoundLow},
		{"just_below_high_warning", 139.9, models.SeverityNormal, 0, models.BoundNone},
		{"just_above_low_warning", 50.1, models.SeverityNormal, 0, models.BoundNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Evaluate(tc.value, profile)
			assert.Equal(t, tc.severity, a.Severity)
			assert.Equal(t, tc.threshold, a.Threshold)
			assert.Equal(t, tc.bound, a.Bound)
			assert.Equal(t, tc.value, a.Value)
		})
	}
}

func TestEvaluate_ZeroIsNoDataSentinel(t *testing.T) {
	// 0 是无数据哨兵值，即使阈值配置覆盖 0 也必须返回 NORMAL
	profile := models.ThresholdProfile{
		LowCritical:  10,
		LowWarning:   20,
		HighWarning:  140,
		HighCritical: 180,
	}

	a := Evaluate(0, profile)
	assert.Equal(t, models.SeverityNormal, a.Severity)
	assert.Equal(t, models.BoundNone, a.Bound)
}

func TestEvaluate_Deterministic(t *testing.T) {
	// 相同输入多次评估结果一致，且级别必为三者之一
	profile := testProfile()
	values := []float64{0, 1, 39, 40, 41, 49, 50, 51, 100, 139, 140, 141, 179, 180, 181, 250}

	for _, v := range values {
		first := Evaluate(v, profile)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Evaluate(v, profile))
		}
		assert.Contains(t, []models.Severity{
			models.SeverityNormal,
			models.SeverityWarning,
			models.SeverityCritical,
		}, first.Severity)
	}
}

func TestThresholdProfile_Validate(t *testing.T) {
	require.NoError(t, testProfile().Validate())

	// 边界相等是允许的
	flat := models.ThresholdProfile{LowCritical: 60, LowWarning: 60, HighWarning: 60, HighCritical: 60}
	require.NoError(t, flat.Validate())

	bad := models.ThresholdProfile{LowCritical: 55, LowWarning: 50, HighWarning: 140, HighCritical: 180}
	assert.Error(t, bad.Validate())

	bad = models.ThresholdProfile{LowCritical: 40, LowWarning: 150, HighWarning: 140, HighCritical: 180}
	assert.Error(t, bad.Validate())

	bad = models.ThresholdProfile{LowCritical: 40, LowWarning: 50, HighWarning: 190, HighCritical: 180}
	assert.Error(t, bad.Validate())
}

func TestLatestReading(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	readings := []models.Reading{
		{Timestamp: base, Value: 70, VitalType: models.VitalHeartRate},
		{Timestamp: base.Add(2 * time.Minute), Value: 75, VitalType: models.VitalHeartRate},
		{Timestamp: base.Add(time.Minute), Value: 72, VitalType: models.VitalHeartRate},
	}

	latest := LatestReading(readings)
	require.NotNil(t, latest)
	assert.Equal(t, 75.0, latest.Value)

	// 时间戳并列时取后出现的
	tied := []models.Reading{
		{Timestamp: base, Value: 70},
		{Timestamp: base, Value: 80},
	}
	latest = LatestReading(tied)
	require.NotNil(t, latest)
	assert.Equal(t, 80.0, latest.Value)

	assert.Nil(t, LatestReading(nil))
}

func TestAnalyzeTrend(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mk := func(values ...float64) []models.Reading {
		readings := make([]models.Reading, 0, len(values))
		for i, v := range values {
			readings = append(readings, models.Reading{
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Value:     v,
				VitalType: models.VitalHeartRate,
			})
		}
		return readings
	}

	// 数据不足
	summary := AnalyzeTrend(mk(70, 72))
	assert.False(t, summary.Analyzed)

	// 上升趋势：近三条均值明显高于前三条
	summary = AnalyzeTrend(mk(70, 70, 70, 90, 95, 100))
	assert.True(t, summary.Analyzed)
	assert.Equal(t, TrendIncreasing, summary.Trend)
	assert.Equal(t, 95.0, summary.RecentAverage)
	assert.Equal(t, 70.0, summary.EarlierAverage)
	assert.Equal(t, 100.0, summary.Highest)
	assert.Equal(t, 70.0, summary.Lowest)
	assert.Equal(t, 30.0, summary.Variance)

	// 稳定趋势
	summary = AnalyzeTrend(mk(70, 71, 72, 70, 71, 72))
	assert.True(t, summary.Analyzed)
	assert.Equal(t, TrendStable, summary.Trend)

	// 下降趋势
	summary = AnalyzeTrend(mk(100, 100, 100, 80, 78, 76))
	assert.True(t, summary.Analyzed)
	assert.Equal(t, TrendDecreasing, summary.Trend)
}
