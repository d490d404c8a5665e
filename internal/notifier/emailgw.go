package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// emailAlertRequest 邮件网关请求体
type emailAlertRequest struct {
	To          string  `json:"to"`
	SubjectName string  `json:"subject_name"`
	VitalType   string  `json:"vital_type"`
	Severity    string  `json:"severity"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Timestamp   string  `json:"timestamp"`
}

// emailAlertResponse 邮件网关响应体
type emailAlertResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// EmailChannel 通过内部邮件网关投递报警
type EmailChannel struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewEmailChannel 创建邮件通道
func NewEmailChannel(gatewayURL string, sendTimeout time.Duration, logger *zap.Logger) *EmailChannel {
	client := resty.New().
		SetBaseURL(gatewayURL).
		SetTimeout(sendTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &EmailChannel{
		httpClient: client,
		logger:     logger,
	}
}

// Send 投递一条报警邮件
// 4xx（除 429）按永久失败处理；5xx、429 和网络错误按瞬时失败处理
func (c *EmailChannel) Send(ctx context.Context, address string, msg AlertMessage) error {
	if address == "" {
		return Permanent("empty contact address")
	}

	request := emailAlertRequest{
		To:          address,
		SubjectName: msg.SubjectName,
		VitalType:   string(msg.VitalType),
		Severity:    msg.Severity.String(),
		Value:       msg.Value,
		Threshold:   msg.Threshold,
		Timestamp:   msg.Timestamp.Format("2006-01-02 15:04:05"),
	}

	var response emailAlertResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		SetError(&response).
		Post("/api/v1/alerts")

	if err != nil {
		return fmt.Errorf("failed to call email gateway: %w", err)
	}

	if resp.IsError() {
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 && resp.StatusCode() != http.StatusTooManyRequests {
			return Permanent("email gateway rejected address %s: %s (status %d)", address, response.Msg, resp.StatusCode())
		}
		return fmt.Errorf("email gateway returned status %d: %s", resp.StatusCode(), response.Msg)
	}

	c.logger.Debug("Alert email accepted by gateway",
		zap.String("address", address),
		zap.String("severity", msg.Severity.String()),
	)

	return nil
}
