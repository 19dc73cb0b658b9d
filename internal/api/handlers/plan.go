package handlers

import (
	"context"
	"net/http"

	"meal-plan-generator/internal/core/job"
	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/core/pool"
	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// JobService 任務狀態機
type JobService interface {
	Start(ctx context.Context, req job.StartRequest) (*plan.GenerationJob, error)
	Run(ctx context.Context, id string) error
	Poll(ctx context.Context, id string) (*plan.GenerationJob, error)
	Latest(ctx context.Context, memberID string, jobType plan.JobType) (*plan.GenerationJob, error)
	Continue(ctx context.Context, id string, fromIndex int) error
	Cancel(ctx context.Context, id string) (*plan.GenerationJob, error)
}

// SlotReplacer 替換單一餐位
type SlotReplacer interface {
	Replace(ctx context.Context, req pool.ReplaceRequest) (*pool.Selection, error)
}

// StartJobResponse 建立任務的回應
type StartJobResponse struct {
	JobID         string         `json:"job_id"`
	Status        plan.JobStatus `json:"status"`
	ProgressTotal int            `json:"progress_total"`
}

// AckResponse 非同步操作的回應
type AckResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ContinueRequest 續跑位置；省略時從已完成處開始
type ContinueRequest struct {
	ContinueFromDayIndex *int `json:"continue_from_day_index"`
}

// ReplaceSlotRequest 替換餐位
type ReplaceSlotRequest struct {
	Profiles      []common.Profile `json:"profiles" binding:"required"`
	Selected      string           `json:"selected,omitempty"`
	Tier          common.Tier      `json:"tier"`
	DayKey        string           `json:"day_key" binding:"required"`
	MealType      common.MealType  `json:"meal_type" binding:"required"`
	ExcludeIDs    []string         `json:"exclude_ids,omitempty"`
	ExcludeTitles []string         `json:"exclude_titles,omitempty"`
	PreferAI      bool             `json:"prefer_ai,omitempty"`
}

// ReplaceSlotResponse 替換結果
type ReplaceSlotResponse struct {
	Source   plan.SlotSource `json:"source"`
	RecipeID string          `json:"recipe_id"`
	Title    string          `json:"title"`
}

// PlanHandler 計畫任務與餐位
type PlanHandler struct {
	jobs     JobService
	plans    plan.PlanStore
	replacer SlotReplacer
}

// NewPlanHandler 創建計畫處理器
func NewPlanHandler(jobs JobService, plans plan.PlanStore, replacer SlotReplacer) *PlanHandler {
	return &PlanHandler{jobs: jobs, plans: plans, replacer: replacer}
}

// StartJob POST /plan/jobs
func (h *PlanHandler) StartJob(c *gin.Context) {
	var req job.StartRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Tier == "" {
		req.Tier = common.TierFree
	}

	j, err := h.jobs.Start(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, StartJobResponse{JobID: j.ID, Status: j.Status, ProgressTotal: j.ProgressTotal})
}

// RunJob POST /plan/jobs/:id/run
func (h *PlanHandler) RunJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.jobs.Run(c.Request.Context(), id); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, AckResponse{JobID: id, Status: "accepted"})
}

// PollJob GET /plan/jobs/:id
func (h *PlanHandler) PollJob(c *gin.Context) {
	j, err := h.jobs.Poll(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// LatestJob GET /plan/jobs/latest?member_id=&type=
func (h *PlanHandler) LatestJob(c *gin.Context) {
	memberID := c.Query("member_id")
	jobType := plan.JobType(c.DefaultQuery("type", string(plan.JobWeek)))
	if memberID == "" || !jobType.Valid() {
		RespondError(c, common.ErrInvalidRequest.WithMessage("member_id and a valid type are required"))
		return
	}

	j, err := h.jobs.Latest(c.Request.Context(), memberID, jobType)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// ContinueJob POST /plan/jobs/:id/continue
func (h *PlanHandler) ContinueJob(c *gin.Context) {
	id := c.Param("id")
	var req ContinueRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	from := 0
	if req.ContinueFromDayIndex != nil {
		from = *req.ContinueFromDayIndex
	} else {
		j, err := h.jobs.Poll(c.Request.Context(), id)
		if err != nil {
			RespondError(c, err)
			return
		}
		from = j.ProgressDone
	}

	if err := h.jobs.Continue(c.Request.Context(), id, from); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, AckResponse{JobID: id, Status: "accepted"})
}

// CancelJob POST /plan/jobs/:id/cancel
func (h *PlanHandler) CancelJob(c *gin.Context) {
	j, err := h.jobs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AckResponse{JobID: j.ID, Status: string(j.Status)})
}

// GetDay GET /plan/days/:day?member_id=
func (h *PlanHandler) GetDay(c *gin.Context) {
	day := c.Param("day")
	if _, err := common.RollingDayKeys(day, 1); err != nil {
		RespondError(c, common.ErrInvalidRequest.WithMessage("invalid day: "+day))
		return
	}
	memberID := c.DefaultQuery("member_id", plan.FamilyOwner)

	d, err := h.plans.GetDay(c.Request.Context(), memberID, day)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ReplaceSlot POST /plan/slots/replace
func (h *PlanHandler) ReplaceSlot(c *gin.Context) {
	var req ReplaceSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := common.RollingDayKeys(req.DayKey, 1); err != nil {
		RespondError(c, common.ErrInvalidRequest.WithMessage("invalid day: "+req.DayKey))
		return
	}
	if req.Tier == "" {
		req.Tier = common.TierFree
	}

	gctx, err := profile.Build(req.Profiles, req.Selected, req.Tier)
	if err != nil {
		RespondError(c, err)
		return
	}

	sel, err := h.replacer.Replace(c.Request.Context(), pool.ReplaceRequest{
		Context:       gctx,
		Tier:          req.Tier,
		DayKey:        req.DayKey,
		MealType:      req.MealType,
		ExcludeIDs:    req.ExcludeIDs,
		ExcludeTitles: req.ExcludeTitles,
		PreferAI:      req.PreferAI,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReplaceSlotResponse{Source: sel.Source, RecipeID: sel.Recipe.ID, Title: sel.Recipe.Title})
}
