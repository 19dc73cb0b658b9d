// Package job 實作計畫生成任務的狀態機、分派隊列與客戶端輪詢驅動
package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/core/pool"
	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/infrastructure/metrics"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// DefaultTimeBudget 單次執行的時間上限，超過後以 partial:time_budget 結束
const DefaultTimeBudget = 110 * time.Second

// Filler 填入單一餐位
type Filler interface {
	Fill(ctx context.Context, req pool.Request) (*pool.Selection, error)
}

// Store 任務與計畫儲存
type Store interface {
	plan.JobStore
	plan.PlanStore
}

// StartRequest 建立任務的參數
type StartRequest struct {
	Profiles  []common.Profile  `json:"profiles"`
	Selected  string            `json:"selected,omitempty"`
	Tier      common.Tier       `json:"tier"`
	Type      plan.JobType      `json:"type"`
	StartDay  string            `json:"start_day,omitempty"`
	MealTypes []common.MealType `json:"meal_types,omitempty"`
}

// Owner 任務擁有者，與伺服器端的計算方式相同
func (r StartRequest) Owner() (string, error) {
	gctx, err := profile.Build(r.Profiles, r.Selected, r.Tier)
	if err != nil {
		return "", err
	}
	return plan.OwnerKey(gctx), nil
}

// Manager 任務狀態機
type Manager struct {
	store  Store
	filler Filler
	queue  *Queue
	budget time.Duration
	now    func() time.Time

	// mu 保護任務列的讀改寫與 active
	mu     sync.Mutex
	active map[string]uint64
	seq    uint64
}

// NewManager 創建任務管理器；queue 為 nil 時 Run 與 Continue 同步執行
func NewManager(store Store, filler Filler, queue *Queue, budget time.Duration) *Manager {
	if budget <= 0 {
		budget = DefaultTimeBudget
	}
	return &Manager{
		store:  store,
		filler: filler,
		queue:  queue,
		budget: budget,
		now:    time.Now,
		active: make(map[string]uint64),
	}
}

// WithClock 替換時間來源（測試用）
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Start 建立任務；同一成員同一類型仍在執行的任務會被取代
func (m *Manager) Start(ctx context.Context, req StartRequest) (*plan.GenerationJob, error) {
	if !req.Type.Valid() {
		return nil, common.ErrInvalidRequest.WithMessage("invalid job type: " + string(req.Type))
	}
	gctx, err := profile.Build(req.Profiles, req.Selected, req.Tier)
	if err != nil {
		return nil, err
	}

	startDay := req.StartDay
	if startDay == "" {
		startDay = common.DayKey(m.now())
	}
	days := 1
	if req.Type == plan.JobWeek {
		days = plan.WeekDays
	}
	dayKeys, err := common.RollingDayKeys(startDay, days)
	if err != nil {
		return nil, common.ErrInvalidRequest.WithMessage("invalid start day: " + startDay)
	}
	meals, err := mealTypesFor(req.Type, req.MealTypes)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	params := plan.JobParams{
		Profiles:  req.Profiles,
		Selected:  req.Selected,
		Tier:      req.Tier,
		DayKeys:   dayKeys,
		MealTypes: meals,
	}
	job := &plan.GenerationJob{
		ID:            common.GenerateUUID(),
		Type:          req.Type,
		MemberID:      plan.OwnerKey(gctx),
		Status:        plan.StatusRunning,
		ProgressTotal: params.SlotCount(),
		Params:        params,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.supersede(ctx, job.MemberID, job.Type, now); err != nil {
		return nil, err
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	metrics.RecordJobTransition(string(job.Type), string(job.Status))
	common.LogInfo("Plan job started",
		zap.String("job_id", job.ID),
		zap.String("member_id", job.MemberID),
		zap.String("type", string(job.Type)),
		zap.String("day_key", startDay),
		zap.Int("progress_total", job.ProgressTotal),
	)
	return job.Clone(), nil
}

// supersede 取消舊任務，呼叫端需持有 mu
func (m *Manager) supersede(ctx context.Context, owner string, jobType plan.JobType, now time.Time) error {
	running, err := m.store.RunningJobs(ctx, owner, jobType)
	if err != nil {
		return err
	}
	for _, old := range running {
		old.Status = plan.StatusCancelled
		old.ErrorText = plan.ErrorSuperseded
		old.UpdatedAt = now
		old.FinishedAt = &now
		if err := m.store.UpdateJob(ctx, old); err != nil {
			return err
		}
		metrics.RecordJobTransition(string(old.Type), string(old.Status))
		common.LogInfo("Plan job superseded", zap.String("job_id", old.ID), zap.String("member_id", owner))
	}
	return nil
}

// Run 開始執行；已在執行中時不重複分派
func (m *Manager) Run(ctx context.Context, id string) error {
	m.mu.Lock()
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if job.Status != plan.StatusRunning {
		m.mu.Unlock()
		return common.ErrJobNotRunning
	}
	token, ok := m.claim(id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.dispatch(ctx, id, token)
}

// Continue 從 progressDone 續跑；fromIndex 不可超過已完成數，較小時仍從已完成處開始，不會重寫已填入的餐位
func (m *Manager) Continue(ctx context.Context, id string, fromIndex int) error {
	m.mu.Lock()
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	_, executing := m.active[id]
	switch {
	case job.Status == plan.StatusRunning && executing:
		m.mu.Unlock()
		return nil
	case job.Status == plan.StatusRunning, job.Partial():
	default:
		m.mu.Unlock()
		return common.ErrJobNotResumable.WithMessage(fmt.Sprintf("job is %s", job.Status))
	}

	if fromIndex < 0 || fromIndex > job.ProgressDone {
		m.mu.Unlock()
		return common.ErrInvalidRequest.WithMessage(fmt.Sprintf("continue index %d is beyond progress %d", fromIndex, job.ProgressDone))
	}

	if job.Status != plan.StatusRunning {
		job.Status = plan.StatusRunning
		job.ErrorText = ""
		job.FinishedAt = nil
		job.UpdatedAt = m.now().UTC()
		if err := m.store.UpdateJob(ctx, job); err != nil {
			m.mu.Unlock()
			return err
		}
		metrics.RecordJobTransition(string(job.Type), string(job.Status))
	}

	token, _ := m.claim(id)
	m.mu.Unlock()

	common.LogInfo("Plan job continued",
		zap.String("job_id", id),
		zap.Int("from_index", job.ProgressDone),
	)
	return m.dispatch(ctx, id, token)
}

// Cancel 只允許取消執行中的任務；進行中的餐位會完成後才停止
func (m *Manager) Cancel(ctx context.Context, id string) (*plan.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != plan.StatusRunning {
		return nil, common.ErrJobNotRunning
	}

	now := m.now().UTC()
	job.Status = plan.StatusCancelled
	job.UpdatedAt = now
	job.FinishedAt = &now
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	metrics.RecordJobTransition(string(job.Type), string(job.Status))
	common.LogInfo("Plan job cancelled", zap.String("job_id", id), zap.Int("progress_done", job.ProgressDone))
	return job, nil
}

// Poll 讀取任務狀態
func (m *Manager) Poll(ctx context.Context, id string) (*plan.GenerationJob, error) {
	return m.store.GetJob(ctx, id)
}

// Latest 某成員某類型最新的任務，供重新啟動的客戶端找回
func (m *Manager) Latest(ctx context.Context, memberID string, jobType plan.JobType) (*plan.GenerationJob, error) {
	return m.store.LatestJob(ctx, memberID, jobType)
}

// claim 標記為執行中，呼叫端需持有 mu
func (m *Manager) claim(id string) (uint64, bool) {
	if _, ok := m.active[id]; ok {
		return 0, false
	}
	m.seq++
	m.active[id] = m.seq
	return m.seq, true
}

// release 呼叫端需持有 mu
func (m *Manager) release(id string, token uint64) {
	if m.active[id] == token {
		delete(m.active, id)
	}
}

func (m *Manager) dispatch(ctx context.Context, id string, token uint64) error {
	if m.queue == nil {
		m.execute(ctx, id, token)
		return nil
	}

	err := m.queue.Enqueue(&Task{JobID: id, Run: func(ctx context.Context) { m.execute(ctx, id, token) }})
	if err != nil {
		m.mu.Lock()
		m.release(id, token)
		m.mu.Unlock()
	}
	return err
}

// execute 依序填入餐位；每個餐位之間檢查取消與時間預算
func (m *Manager) execute(ctx context.Context, id string, token uint64) {
	defer func() {
		m.mu.Lock()
		m.release(id, token)
		m.mu.Unlock()
	}()

	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		common.LogError("Failed to load plan job", zap.String("job_id", id), zap.Error(err))
		return
	}
	if job.Status != plan.StatusRunning {
		return
	}

	gctx, err := profile.Build(job.Params.Profiles, job.Params.Selected, job.Params.Tier)
	if err != nil {
		m.fail(ctx, id, token, err)
		return
	}
	titles, err := m.usedTitles(ctx, job)
	if err != nil {
		m.fail(ctx, id, token, err)
		return
	}

	deadline := m.now().Add(m.budget)
	for i := job.ProgressDone; i < job.ProgressTotal; i++ {
		if ctx.Err() != nil {
			common.LogWarn("Plan job interrupted", zap.String("job_id", id), zap.Int("progress_done", i))
			return
		}
		cur, err := m.store.GetJob(ctx, id)
		if err != nil {
			m.fail(ctx, id, token, err)
			return
		}
		if cur.Status != plan.StatusRunning {
			common.LogInfo("Plan job stopped", zap.String("job_id", id), zap.String("status", string(cur.Status)))
			return
		}
		if !m.now().Before(deadline) {
			m.finish(ctx, id, token, plan.ErrorTimeBudget)
			return
		}

		dayKey, meal, _ := job.Params.SlotAt(i)
		sel, err := m.filler.Fill(ctx, pool.Request{
			Context:       gctx,
			Tier:          job.Params.Tier,
			DayKey:        dayKey,
			MealType:      meal,
			ExcludeTitles: titles,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.fail(ctx, id, token, err)
			return
		}

		if err := m.store.SetSlot(ctx, job.MemberID, dayKey, sel.Slot(meal, m.now().UTC())); err != nil {
			m.fail(ctx, id, token, err)
			return
		}
		titles = append(titles, sel.Recipe.Title)

		common.LogInfo("Plan slot filled",
			zap.String("job_id", id),
			zap.String("day_key", dayKey),
			zap.String("meal_type", string(meal)),
			zap.String("source", string(sel.Source)),
			zap.Int("progress_done", i+1),
		)

		stopped, err := m.advance(ctx, id, i+1, dayKey)
		if err != nil {
			m.fail(ctx, id, token, err)
			return
		}
		if stopped {
			return
		}
	}

	m.finish(ctx, id, token, "")
}

// usedTitles 已填入餐位的標題，作為後續餐位的排除清單
func (m *Manager) usedTitles(ctx context.Context, job *plan.GenerationJob) ([]string, error) {
	days := make(map[string]*plan.DayPlan)
	titles := make([]string, 0, job.ProgressTotal)
	for i := 0; i < job.ProgressDone; i++ {
		dayKey, meal, ok := job.Params.SlotAt(i)
		if !ok {
			break
		}
		d, cached := days[dayKey]
		if !cached {
			var err error
			if d, err = m.store.GetDay(ctx, job.MemberID, dayKey); err != nil {
				return nil, err
			}
			days[dayKey] = d
		}
		if slot, ok := d.Slot(meal); ok {
			titles = append(titles, slot.Title)
		}
	}
	return titles, nil
}

// advance 更新進度；任務已被取消時回傳 true
func (m *Manager) advance(ctx context.Context, id string, done int, dayKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.store.GetJob(ctx, id)
	if err != nil {
		return false, err
	}
	if done > cur.ProgressDone {
		cur.ProgressDone = done
	}
	if cur.ProgressDone > cur.ProgressTotal {
		cur.ProgressDone = cur.ProgressTotal
	}
	cur.LastDayKey = dayKey
	cur.UpdatedAt = m.now().UTC()
	if err := m.store.UpdateJob(ctx, cur); err != nil {
		return false, err
	}
	return cur.Status != plan.StatusRunning, nil
}

// finish 結束執行；errorText 為空表示全部完成
func (m *Manager) finish(ctx context.Context, id string, token uint64, errorText string) {
	m.terminate(ctx, id, token, plan.StatusDone, errorText)
}

func (m *Manager) fail(ctx context.Context, id string, token uint64, cause error) {
	common.LogError("Plan job failed", zap.String("job_id", id), zap.Error(cause))
	m.terminate(ctx, id, token, plan.StatusError, cause.Error())
}

func (m *Manager) terminate(ctx context.Context, id string, token uint64, status plan.JobStatus, errorText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.release(id, token)

	// 伺服器關閉時仍寫入最終狀態
	ctx = context.WithoutCancel(ctx)

	cur, err := m.store.GetJob(ctx, id)
	if err != nil {
		common.LogError("Failed to load plan job", zap.String("job_id", id), zap.Error(err))
		return
	}
	if cur.Status != plan.StatusRunning {
		return
	}

	now := m.now().UTC()
	cur.Status = status
	cur.ErrorText = errorText
	cur.UpdatedAt = now
	cur.FinishedAt = &now
	if err := m.store.UpdateJob(ctx, cur); err != nil {
		common.LogError("Failed to update plan job", zap.String("job_id", id), zap.Error(err))
		return
	}

	metrics.RecordJobTransition(string(cur.Type), string(cur.Status))
	common.LogInfo("Plan job finished",
		zap.String("job_id", id),
		zap.String("status", string(cur.Status)),
		zap.String("error_text", cur.ErrorText),
		zap.Int("progress_done", cur.ProgressDone),
		zap.Int("progress_total", cur.ProgressTotal),
	)
}

// mealTypesFor 週任務固定四餐；日任務可指定子集，依一天中的順序排列
func mealTypesFor(jobType plan.JobType, requested []common.MealType) ([]common.MealType, error) {
	if jobType == plan.JobWeek || len(requested) == 0 {
		return append([]common.MealType(nil), common.MealTypes...), nil
	}
	want := make(map[common.MealType]bool, len(requested))
	for _, mt := range requested {
		if !mt.Valid() {
			return nil, common.ErrInvalidRequest.WithMessage("invalid meal type: " + string(mt))
		}
		want[mt] = true
	}
	out := make([]common.MealType, 0, len(want))
	for _, mt := range common.MealTypes {
		if want[mt] {
			out = append(out, mt)
		}
	}
	return out, nil
}
