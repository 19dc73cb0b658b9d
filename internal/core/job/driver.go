package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/infrastructure/kv"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	// DefaultAutoContinue 時間用盡後自動續跑的次數上限
	DefaultAutoContinue = 5
	// DefaultContinueBackoff 每次自動續跑前的等待
	DefaultContinueBackoff = 2 * time.Second

	markerTTL = 24 * time.Hour
)

// API 任務的呼叫介面，伺服器內直接呼叫或經由 HTTP
type API interface {
	Start(ctx context.Context, req StartRequest) (*plan.GenerationJob, error)
	Run(ctx context.Context, id string) error
	Poll(ctx context.Context, id string) (*plan.GenerationJob, error)
	Continue(ctx context.Context, id string, fromIndex int) error
	Cancel(ctx context.Context, id string) error
}

// LocalAPI 讓 Manager 符合 API 介面
type LocalAPI struct {
	*Manager
}

// Cancel 取消任務
func (a LocalAPI) Cancel(ctx context.Context, id string) error {
	_, err := a.Manager.Cancel(ctx, id)
	return err
}

// DriverConfig 驅動設定
type DriverConfig struct {
	AutoContinueAttempts int
	ContinueBackoff      time.Duration
}

// Driver 客戶端驅動：啟動、輪詢、自動續跑，並以續跑標記支援重新啟動後接續
type Driver struct {
	api     API
	markers kv.Store
	cfg     DriverConfig

	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
	onProgress func(job *plan.GenerationJob)
}

// NewDriver 創建驅動
func NewDriver(api API, markers kv.Store, cfg DriverConfig) *Driver {
	if cfg.AutoContinueAttempts < 0 {
		cfg.AutoContinueAttempts = 0
	}
	return &Driver{
		api:     api,
		markers: markers,
		cfg:     cfg,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// WithSleep 替換等待函式（測試用）
func (d *Driver) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Driver {
	d.sleep = fn
	return d
}

// WithClock 替換時間來源（測試用）
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

// OnProgress 每次輪詢後呼叫
func (d *Driver) OnProgress(fn func(job *plan.GenerationJob)) *Driver {
	d.onProgress = fn
	return d
}

// MarkerKey 續跑標記的鍵
func MarkerKey(owner string, jobType plan.JobType) string {
	return "plan_job:" + owner + ":" + string(jobType)
}

// Generate 執行到任務結束；有未完成的同類任務時接續它而不是重新開始
func (d *Driver) Generate(ctx context.Context, req StartRequest) (*plan.GenerationJob, error) {
	owner, err := req.Owner()
	if err != nil {
		return nil, err
	}
	key := MarkerKey(owner, req.Type)

	job, err := d.resume(ctx, key)
	if err != nil {
		return nil, err
	}
	if job == nil {
		if job, err = d.api.Start(ctx, req); err != nil {
			return nil, err
		}
		if err := d.markers.Set(ctx, key, job.ID, markerTTL); err != nil {
			common.LogWarn("Failed to store resume marker", zap.String("job_id", job.ID), zap.Error(err))
		}
		if err := d.api.Run(ctx, job.ID); err != nil {
			return nil, err
		}
	}

	return d.follow(ctx, key, job)
}

// resume 依標記找回任務並要求伺服器繼續；沒有可接續的任務回傳 nil
func (d *Driver) resume(ctx context.Context, key string) (*plan.GenerationJob, error) {
	id, ok, err := d.markers.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}

	job, err := d.api.Poll(ctx, id)
	if errors.Is(err, common.ErrJobNotFound) {
		d.clear(ctx, key)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if job.Status != plan.StatusRunning && !job.Partial() {
		d.clear(ctx, key)
		return nil, nil
	}

	common.LogInfo("Resuming plan job", zap.String("job_id", job.ID), zap.Int("progress_done", job.ProgressDone))
	if err := d.api.Continue(ctx, job.ID, job.ProgressDone); err != nil {
		return nil, err
	}
	return job, nil
}

// follow 輪詢到結束；時間用盡時自動續跑
func (d *Driver) follow(ctx context.Context, key string, job *plan.GenerationJob) (*plan.GenerationJob, error) {
	continues := 0
	for {
		var err error
		if job, err = d.wait(ctx, job.ID, job.Type); err != nil {
			return nil, err
		}

		switch {
		case job.Partial() && continues < d.cfg.AutoContinueAttempts:
			continues++
			if err := d.sleep(ctx, d.cfg.ContinueBackoff); err != nil {
				return nil, err
			}
			common.LogInfo("Auto-continuing plan job",
				zap.String("job_id", job.ID),
				zap.Int("attempt", continues),
				zap.Int("from_index", job.ProgressDone),
			)
			if err := d.api.Continue(ctx, job.ID, job.ProgressDone); err != nil {
				return nil, err
			}
		case job.Partial():
			// 保留標記，下次 Generate 會接續
			return job, nil
		case job.Status == plan.StatusDone:
			d.clear(ctx, key)
			return job, nil
		case job.Status == plan.StatusCancelled:
			d.clear(ctx, key)
			return job, common.ErrJobNotRunning.WithMessage("job was cancelled")
		default:
			d.clear(ctx, key)
			return job, fmt.Errorf("job %s failed: %s", job.ID, job.ErrorText)
		}
	}
}

// wait 依 NextPollDelay 輪詢到終止狀態
func (d *Driver) wait(ctx context.Context, id string, jobType plan.JobType) (*plan.GenerationJob, error) {
	started := d.now()
	for {
		job, err := d.api.Poll(ctx, id)
		if err != nil {
			return nil, err
		}
		if d.onProgress != nil {
			d.onProgress(job)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		if err := d.sleep(ctx, NextPollDelay(d.now().Sub(started), jobType)); err != nil {
			return nil, err
		}
	}
}

// Cancel 取消目前的任務並清除標記，之後的 Generate 會重新開始
func (d *Driver) Cancel(ctx context.Context, owner string, jobType plan.JobType) error {
	key := MarkerKey(owner, jobType)
	id, ok, err := d.markers.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrJobNotFound.WithMessage("no job to cancel")
	}

	err = d.api.Cancel(ctx, id)
	if err != nil && !errors.Is(err, common.ErrJobNotRunning) && !errors.Is(err, common.ErrJobNotFound) {
		return err
	}
	d.clear(ctx, key)
	return err
}

func (d *Driver) clear(ctx context.Context, key string) {
	if err := d.markers.Delete(ctx, key); err != nil {
		common.LogWarn("Failed to clear resume marker", zap.String("key", key), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
