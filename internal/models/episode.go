package models

import (
	"time"
)

// EpisodeState 事件状态机的状态
type EpisodeState string

const (
	EpisodeClosed       EpisodeState = "closed"
	EpisodeOpenWarning  EpisodeState = "open_warning"
	EpisodeOpenCritical EpisodeState = "open_critical"
)

// IsOpen 判断事件是否处于打开状态
func (s EpisodeState) IsOpen() bool {
	return s == EpisodeOpenWarning || s == EpisodeOpenCritical
}

// Episode 报警事件（对应 episodes 表，按 (subject_id, vital_type) 唯一）
// 同一 (subject_id, vital_type) 最多一个打开的事件；
// 打开期间级别单调不降，只能通过迟滞条件关闭
type Episode struct {
	EpisodeID        string       `json:"episode_id" db:"episode_id"`
	SubjectID        string       `json:"subject_id" db:"subject_id"`
	VitalType        VitalType    `json:"vital_type" db:"vital_type"`
	State            EpisodeState `json:"state" db:"state"`
	OpenedAt         *time.Time   `json:"opened_at,omitempty" db:"opened_at"`
	CurrentSeverity  Severity     `json:"current_severity" db:"current_severity"`
	LastValue        float64      `json:"last_value" db:"last_value"`
	LastEvaluatedAt  time.Time    `json:"last_evaluated_at" db:"last_evaluated_at"`
	NotifiedSeverity Severity     `json:"notified_severity" db:"notified_severity"`
	NormalStreak     int          `json:"normal_streak" db:"normal_streak"`
	ClosedAt         *time.Time   `json:"closed_at,omitempty" db:"closed_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}
