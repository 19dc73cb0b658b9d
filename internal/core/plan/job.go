package plan

import (
	"context"
	"time"

	"meal-plan-generator/internal/pkg/common"
)

// JobType 任務類型
type JobType string

const (
	JobDay  JobType = "day"
	JobWeek JobType = "week"
)

// Valid 檢查任務類型
func (t JobType) Valid() bool {
	return t == JobDay || t == JobWeek
}

// WeekDays 週任務的天數
const WeekDays = 7

// JobStatus 任務狀態
type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusDone      JobStatus = "done"
	StatusError     JobStatus = "error"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal 是否為終止狀態
func (s JobStatus) Terminal() bool {
	return s != StatusRunning
}

const (
	// ErrorTimeBudget 時間用盡的軟性停止，可續跑
	ErrorTimeBudget = "partial:time_budget"
	// ErrorSuperseded 同一成員同一類型有新任務取代
	ErrorSuperseded = "superseded"
)

// JobParams 任務建立時的參數，續跑時沿用
type JobParams struct {
	Profiles  []common.Profile  `json:"profiles"`
	Selected  string            `json:"selected,omitempty"`
	Tier      common.Tier       `json:"tier"`
	DayKeys   []string          `json:"day_keys"`
	MealTypes []common.MealType `json:"meal_types"`
}

// SlotCount 需要填入的餐數
func (p JobParams) SlotCount() int {
	return len(p.DayKeys) * len(p.MealTypes)
}

// SlotAt 第 i 個餐位對應的日期與餐別，依日期再依餐別排序
func (p JobParams) SlotAt(i int) (string, common.MealType, bool) {
	if len(p.MealTypes) == 0 || i < 0 || i >= p.SlotCount() {
		return "", "", false
	}
	return p.DayKeys[i/len(p.MealTypes)], p.MealTypes[i%len(p.MealTypes)], true
}

// GenerationJob 持久化的生成任務
type GenerationJob struct {
	ID            string     `json:"id"`
	Type          JobType    `json:"type"`
	MemberID      string     `json:"member_id"`
	Status        JobStatus  `json:"status"`
	ProgressDone  int        `json:"progress_done"`
	ProgressTotal int        `json:"progress_total"`
	LastDayKey    string     `json:"last_day_key,omitempty"`
	ErrorText     string     `json:"error_text,omitempty"`
	Params        JobParams  `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Partial 因時間用盡而停止，可續跑
func (j *GenerationJob) Partial() bool {
	return j.Status == StatusDone && j.ErrorText == ErrorTimeBudget
}

// Complete 全部餐位都已填入
func (j *GenerationJob) Complete() bool {
	return j.Status == StatusDone && j.ErrorText == "" && j.ProgressDone == j.ProgressTotal
}

// Clone 複製一份，避免呼叫端修改儲存層內的資料
func (j *GenerationJob) Clone() *GenerationJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// JobStore 任務儲存
type JobStore interface {
	CreateJob(ctx context.Context, job *GenerationJob) error
	// GetJob 找不到時回傳 ErrJobNotFound
	GetJob(ctx context.Context, id string) (*GenerationJob, error)
	UpdateJob(ctx context.Context, job *GenerationJob) error
	// LatestJob 某成員某類型最新建立的任務
	LatestJob(ctx context.Context, memberID string, jobType JobType) (*GenerationJob, error)
	// RunningJobs 某成員某類型仍在執行的任務
	RunningJobs(ctx context.Context, memberID string, jobType JobType) ([]*GenerationJob, error)
}

// PlanStore 每日計畫儲存
type PlanStore interface {
	// GetDay 沒有資料時回傳空計畫
	GetDay(ctx context.Context, memberID, dayKey string) (*DayPlan, error)
	SetSlot(ctx context.Context, memberID, dayKey string, slot SlotAssignment) error
}

// RecipeStore 食譜儲存
type RecipeStore interface {
	SaveRecipe(ctx context.Context, r *StoredRecipe) error
	// GetRecipe 找不到時回傳 ErrNotFound
	GetRecipe(ctx context.Context, id string) (*StoredRecipe, error)
	// ListCandidates 依建立時間由新到舊
	ListCandidates(ctx context.Context, q CandidateQuery) ([]*StoredRecipe, error)
}

// Store 完整的儲存層
type Store interface {
	JobStore
	PlanStore
	RecipeStore
	Close() error
}
