package provider

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"goatfit-monitor/internal/models"
)

// 健身平台的数据类型标识
const (
	dataTypeHeartRate = "com.google.heart_rate.bpm"

	// 聚合桶宽度：1 分钟
	bucketDurationMillis = 60000
)

// aggregateRequest 聚合数据集请求体
type aggregateRequest struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

// aggregateResponse 聚合数据集响应体
type aggregateResponse struct {
	Bucket []struct {
		Dataset []struct {
			DataSourceID string `json:"dataSourceId"`
			Point        []struct {
				StartTimeNanos string `json:"startTimeNanos"`
				Value          []struct {
					FpVal *float64 `json:"fpVal"`
				} `json:"value"`
			} `json:"point"`
		} `json:"dataset"`
	} `json:"bucket"`
}

// Client 健身数据平台 API 客户端
// 凭证由调用方透传，本客户端不负责刷新
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建平台客户端
func NewClient(baseURL string, fetchTimeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(fetchTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// FetchReadings 拉取窗口 [now-window, now] 内某体征的读数，按时间升序返回
// 没有读数返回空切片，不视为错误；格式异常的数据点丢弃并记日志
func (c *Client) FetchReadings(ctx context.Context, creds models.ProviderCredential, vitalType models.VitalType, window time.Duration) ([]models.Reading, error) {
	dataType, err := dataTypeFor(vitalType)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	start := end.Add(-window)

	request := aggregateRequest{
		AggregateBy:     []aggregateBy{{DataTypeName: dataType}},
		BucketByTime:    bucketByTime{DurationMillis: bucketDurationMillis},
		StartTimeMillis: start.UnixMilli(),
		EndTimeMillis:   end.UnixMilli(),
	}

	userID := creds.ProviderUserID
	if userID == "" {
		userID = "me"
	}

	var response aggregateResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(creds.AccessToken).
		SetBody(request).
		SetResult(&response).
		Post(fmt.Sprintf("/users/%s/dataset:aggregate", userID))

	if err != nil {
		return nil, fmt.Errorf("failed to call fitness API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fitness API returned status %d: %s", resp.StatusCode(), resp.String())
	}

	readings := c.parseReadings(&response, vitalType)

	c.logger.Debug("Fetched vital readings",
		zap.String("vital_type", string(vitalType)),
		zap.Int("reading_count", len(readings)),
		zap.Time("window_start", start),
		zap.Time("window_end", end),
	)

	return readings, nil
}

// parseReadings 展开桶结构，丢弃无法解析的数据点
func (c *Client) parseReadings(response *aggregateResponse, vitalType models.VitalType) []models.Reading {
	var readings []models.Reading

	for _, bucket := range response.Bucket {
		for _, dataset := range bucket.Dataset {
			for _, point := range dataset.Point {
				if len(point.Value) == 0 || point.Value[0].FpVal == nil {
					continue
				}

				nanos, err := strconv.ParseInt(point.StartTimeNanos, 10, 64)
				if err != nil {
					// 格式异常的读数丢弃，不让单个坏点拖垮整个窗口
					c.logger.Warn("Discarding malformed reading",
						zap.String("start_time_nanos", point.StartTimeNanos),
						zap.Error(err),
					)
					continue
				}

				readings = append(readings, models.Reading{
					Timestamp: time.Unix(0, nanos),
					Value:     *point.Value[0].FpVal,
					Source:    dataset.DataSourceID,
					VitalType: vitalType,
				})
			}
		}
	}

	sort.Slice(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})

	return readings
}

func dataTypeFor(vitalType models.VitalType) (string, error) {
	switch vitalType {
	case models.VitalHeartRate:
		return dataTypeHeartRate, nil
	default:
		return "", fmt.Errorf("unsupported vital type: %s", vitalType)
	}
}
