package models

import (
	"time"
)

// DeliveryOutcome 单次投递尝试的结果
type DeliveryOutcome string

const (
	OutcomeDelivered        DeliveryOutcome = "delivered"
	OutcomeFailedTransient  DeliveryOutcome = "failed_transient"
	OutcomeFailedPermanent  DeliveryOutcome = "failed_permanent"
)

// DeliveryAttempt 投递尝试记录（对应 delivery_attempts 表，只追加）
type DeliveryAttempt struct {
	AttemptID   string          `json:"attempt_id" db:"attempt_id"`
	EpisodeID   string          `json:"episode_id" db:"episode_id"`
	ContactID   string          `json:"contact_id" db:"contact_id"`
	AttemptNo   int             `json:"attempt_no" db:"attempt_no"`
	Outcome     DeliveryOutcome `json:"outcome" db:"outcome"`
	ErrorReason string          `json:"error_reason,omitempty" db:"error_reason"`
	AttemptedAt time.Time       `json:"attempted_at" db:"attempted_at"`
}

// AlertRecord 报警记录（对应 alert_records 表，每次通知写入一条，写后不改）
type AlertRecord struct {
	AlertID          string    `json:"alert_id" db:"alert_id"`
	EpisodeID        string    `json:"episode_id" db:"episode_id"`
	SubjectID        string    `json:"subject_id" db:"subject_id"`
	VitalType        VitalType `json:"vital_type" db:"vital_type"`
	Severity         Severity  `json:"severity" db:"severity"`
	Value            float64   `json:"value" db:"value"`
	Threshold        float64   `json:"threshold" db:"threshold"`
	Message          string    `json:"message" db:"message"`
	ContactsNotified string    `json:"contacts_notified" db:"contacts_notified"` // JSONB
	SentCount        int       `json:"sent_count" db:"sent_count"`
	FailedCount      int       `json:"failed_count" db:"failed_count"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
