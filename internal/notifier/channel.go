package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goatfit-monitor/internal/evaluator"
	"goatfit-monitor/internal/models"
)

// AlertMessage 发送给联系人的报警内容
type AlertMessage struct {
	SubjectName string                 `json:"subject_name"`
	VitalType   models.VitalType       `json:"vital_type"`
	Severity    models.Severity        `json:"severity"`
	Value       float64                `json:"value"`
	Threshold   float64                `json:"threshold"`
	Bound       models.Bound           `json:"bound"`
	Timestamp   time.Time              `json:"timestamp"`
	Trend       *evaluator.TrendSummary `json:"trend,omitempty"`
}

// Channel 通知通道
// 瞬时失败（超时、通道临时故障）返回普通错误，按重试策略重试；
// 永久失败（无效地址）返回 *PermanentError，不重试
type Channel interface {
	Send(ctx context.Context, address string, msg AlertMessage) error
}

// PermanentError 不可重试的投递失败
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return e.Reason
}

// Permanent 构造永久失败错误
func Permanent(format string, args ...interface{}) error {
	return &PermanentError{Reason: fmt.Sprintf(format, args...)}
}

// IsPermanent 判断投递失败是否不可重试
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
