// Package client 以 HTTP 呼叫計畫服務，供命令列工具與任務驅動使用
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meal-plan-generator/internal/api/handlers"
	"meal-plan-generator/internal/core/ai/provider"
	"meal-plan-generator/internal/core/job"
	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/infrastructure/config"
	"meal-plan-generator/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "http://localhost:8080"
	// DefaultRequestTimeout 整週生成的單次請求上限
	DefaultRequestTimeout = 150 * time.Second
)

// Client 計畫服務的 HTTP 客戶端，實作 job.API
type Client struct {
	http *resty.Client
}

var _ job.API = (*Client)(nil)

// New 創建客戶端
func New(cfg config.ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")+"/api/v1").
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

// Start 建立任務
func (c *Client) Start(ctx context.Context, req job.StartRequest) (*plan.GenerationJob, error) {
	var out handlers.StartJobResponse
	if err := c.do(ctx, http.MethodPost, "/plan/jobs", req, &out); err != nil {
		return nil, err
	}
	return &plan.GenerationJob{
		ID:            out.JobID,
		Type:          req.Type,
		Status:        out.Status,
		ProgressTotal: out.ProgressTotal,
	}, nil
}

// Run 要求伺服器開始執行
func (c *Client) Run(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/plan/jobs/"+url.PathEscape(id)+"/run", nil, nil)
}

// Poll 讀取任務狀態
func (c *Client) Poll(ctx context.Context, id string) (*plan.GenerationJob, error) {
	var out plan.GenerationJob
	if err := c.do(ctx, http.MethodGet, "/plan/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Latest 某成員某類型最新的任務
func (c *Client) Latest(ctx context.Context, memberID string, jobType plan.JobType) (*plan.GenerationJob, error) {
	q := url.Values{"member_id": {memberID}, "type": {string(jobType)}}
	var out plan.GenerationJob
	if err := c.do(ctx, http.MethodGet, "/plan/jobs/latest?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Continue 從 fromIndex 續跑
func (c *Client) Continue(ctx context.Context, id string, fromIndex int) error {
	body := handlers.ContinueRequest{ContinueFromDayIndex: &fromIndex}
	return c.do(ctx, http.MethodPost, "/plan/jobs/"+url.PathEscape(id)+"/continue", body, nil)
}

// Cancel 取消任務
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/plan/jobs/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// Day 讀取某天的計畫
func (c *Client) Day(ctx context.Context, memberID, dayKey string) (*plan.DayPlan, error) {
	q := url.Values{"member_id": {memberID}}
	var out plan.DayPlan
	if err := c.do(ctx, http.MethodGet, "/plan/days/"+url.PathEscape(dayKey)+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Replace 替換一個餐位
func (c *Client) Replace(ctx context.Context, req handlers.ReplaceSlotRequest) (*handlers.ReplaceSlotResponse, error) {
	var out handlers.ReplaceSlotResponse
	if err := c.do(ctx, http.MethodPost, "/plan/slots/replace", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close 關閉閒置連線
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// do 送出請求；伺服器回傳的錯誤還原為同代碼的 CustomError
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var apiErr common.ErrorResponse
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		common.LogWarn("Plan service request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		if ctx.Err() == context.Canceled {
			return ctx.Err()
		}
		if provider.IsTimeout(err) {
			return common.ErrRemoteTimeout.Wrap(err)
		}
		return fmt.Errorf("failed to call plan service: %w", err)
	}

	if resp.IsError() {
		if apiErr.Code == "" {
			return common.NewError(common.ErrCodeInternalError,
				fmt.Sprintf("plan service returned status %d: %s", resp.StatusCode(), common.TruncateRunes(resp.String(), 300)),
				resp.StatusCode(), nil)
		}
		return common.NewError(apiErr.Code, apiErr.Message, resp.StatusCode(), nil)
	}
	return nil
}
