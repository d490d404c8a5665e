package evaluator

import (
	"goatfit-monitor/internal/models"
)

// Assessment 单次阈值评估结果
type Assessment struct {
	Severity  models.Severity // 评估出的级别
	Threshold float64         // 被越过的阈值（NORMAL 时为 0）
	Bound     models.Bound    // 越过的方向（high / low）
	Value     float64         // 被评估的读数值
}

// Evaluate 根据阈值配置对单个读数值分级
// 按优先级顺序匹配，首个命中生效；值为 0 视为传感器无数据，始终返回 NORMAL
// 纯函数，无副作用
func Evaluate(value float64, profile models.ThresholdProfile) Assessment {
	a := Assessment{Severity: models.SeverityNormal, Value: value}

	// 0 是无数据哨兵值，不是真实测量
	if value == 0 {
		return a
	}

	switch {
	case value >= profile.HighCritical:
		a.Severity = models.SeverityCritical
		a.Threshold = profile.HighCritical
		a.Bound = models.BoundHigh
	case value >= profile.HighWarning:
		a.Severity = models.SeverityWarning
		a.Threshold = profile.HighWarning
		a.Bound = models.BoundHigh
	case value <= profile.LowCritical:
		a.Severity = models.SeverityCritical
		a.Threshold = profile.LowCritical
		a.Bound = models.BoundLow
	case value <= profile.LowWarning:
		a.Severity = models.SeverityWarning
		a.Threshold = profile.LowWarning
		a.Bound = models.BoundLow
	}

	return a
}

// LatestReading 从读数序列中选出最新的一条（按时间戳，相同时间取后出现的）
// 返回 nil 表示序列为空
func LatestReading(readings []models.Reading) *models.Reading {
	if len(readings) == 0 {
		return nil
	}

	latest := readings[0]
	for _, r := range readings[1:] {
		if !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	return &latest
}
