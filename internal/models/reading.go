package models

import (
	"fmt"
	"time"
)

// VitalType 生命体征类型
type VitalType string

const (
	VitalHeartRate VitalType = "heart_rate"
)

// Unit 返回该体征的计量单位
func (v VitalType) Unit() string {
	switch v {
	case VitalHeartRate:
		return "BPM"
	default:
		return ""
	}
}

// Reading 单条体征读数（来自健身数据平台）
// Value == 0 表示传感器无数据，不是真实测量值
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Source    string    `json:"source"`
	VitalType VitalType `json:"vital_type"`
}

// Severity 报警级别（有序：NORMAL < WARNING < CRITICAL）
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityWarning
	SeverityCritical
)

// String 返回级别的存储/展示名称
func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "NORMAL"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ParseSeverity 从存储名称解析级别
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "NORMAL":
		return SeverityNormal, nil
	case "WARNING":
		return SeverityWarning, nil
	case "CRITICAL":
		return SeverityCritical, nil
	default:
		return SeverityNormal, fmt.Errorf("unknown severity: %s", s)
	}
}

// Bound 标识被越过的阈值方向
type Bound string

const (
	BoundNone Bound = ""
	BoundLow  Bound = "low"
	BoundHigh Bound = "high"
)
