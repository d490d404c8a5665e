package models

import (
	"fmt"
	"time"
)

// Subject 被监护对象（对应 subjects 表）
type Subject struct {
	SubjectID         string             `json:"subject_id" db:"subject_id"`
	Name              string             `json:"name" db:"name"`
	Thresholds        ThresholdProfile   `json:"thresholds" db:"thresholds"`
	Credentials       ProviderCredential `json:"-" db:"provider_credentials"`
	MonitoringEnabled bool               `json:"monitoring_enabled" db:"monitoring_enabled"`
	LastCheckAt       *time.Time         `json:"last_check_at,omitempty" db:"last_check_at"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
}

// ProviderCredential 健身数据平台的访问凭证
// 凭证的获取和刷新由外部 OAuth 流程负责，监控核心只透传
type ProviderCredential struct {
	AccessToken    string `json:"access_token"`
	ProviderUserID string `json:"provider_user_id"`
}

// ThresholdProfile 心率阈值配置（对应 subjects.thresholds JSONB）
// 不变量：LowCritical <= LowWarning <= HighWarning <= HighCritical
type ThresholdProfile struct {
	LowCritical  float64 `json:"low_critical"`
	LowWarning   float64 `json:"low_warning"`
	HighWarning  float64 `json:"high_warning"`
	HighCritical float64 `json:"high_critical"`
}

// Validate 校验阈值顺序（配置写入时强制）
func (p ThresholdProfile) Validate() error {
	if p.LowCritical > p.LowWarning {
		return fmt.Errorf("invalid threshold profile: low_critical (%.1f) > low_warning (%.1f)", p.LowCritical, p.LowWarning)
	}
	if p.LowWarning > p.HighWarning {
		return fmt.Errorf("invalid threshold profile: low_warning (%.1f) > high_warning (%.1f)", p.LowWarning, p.HighWarning)
	}
	if p.HighWarning > p.HighCritical {
		return fmt.Errorf("invalid threshold profile: high_warning (%.1f) > high_critical (%.1f)", p.HighWarning, p.HighCritical)
	}
	return nil
}

// Contact 紧急联系人（对应 emergency_contacts 表）
type Contact struct {
	ContactID            string    `json:"contact_id" db:"contact_id"`
	SubjectID            string    `json:"subject_id" db:"subject_id"`
	Name                 string    `json:"name" db:"name"`
	Address              string    `json:"address" db:"address"`
	Relationship         string    `json:"relationship" db:"relationship"`
	NotificationsEnabled bool      `json:"notifications_enabled" db:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
