package evaluator

import (
	"math"

	"goatfit-monitor/internal/models"
)

// TrendDirection 趋势方向
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// 近期/早期平均差异超过此值才判定为趋势变化（BPM）
const trendDelta = 5.0

// TrendSummary 心率趋势摘要（附加到报警上下文，供外层展示）
type TrendSummary struct {
	Analyzed      bool           `json:"analyzed"` // false 表示数据不足
	Trend         TrendDirection `json:"trend,omitempty"`
	RecentAverage float64        `json:"recent_average,omitempty"`
	EarlierAverage float64       `json:"earlier_average,omitempty"`
	Highest       float64        `json:"highest,omitempty"`
	Lowest        float64        `json:"lowest,omitempty"`
	Variance      float64        `json:"variance,omitempty"`
}

// AnalyzeTrend 分析读数窗口内的心率趋势
// 少于 3 条读数时数据不足，不产生趋势
func AnalyzeTrend(readings []models.Reading) TrendSummary {
	if len(readings) < 3 {
		return TrendSummary{Analyzed: false}
	}

	recent := average(readings[len(readings)-3:])
	earlier := recent
	if len(readings) >= 6 {
		earlier = average(readings[len(readings)-6 : len(readings)-3])
	}

	trend := TrendStable
	if recent > earlier+trendDelta {
		trend = TrendIncreasing
	} else if recent < earlier-trendDelta {
		trend = TrendDecreasing
	}

	highest := readings[0].Value
	lowest := readings[0].Value
	for _, r := range readings[1:] {
		highest = math.Max(highest, r.Value)
		lowest = math.Min(lowest, r.Value)
	}

	return TrendSummary{
		Analyzed:       true,
		Trend:          trend,
		RecentAverage:  round1(recent),
		EarlierAverage: round1(earlier),
		Highest:        highest,
		Lowest:         lowest,
		Variance:       round1(highest - lowest),
	}
}

func average(readings []models.Reading) float64 {
	sum := 0.0
	for _, r := range readings {
		sum += r.Value
	}
	return sum / float64(len(readings))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
