package pool

import (
	"context"
	"errors"
	"time"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/infrastructure/kv"
	"meal-plan-generator/internal/infrastructure/metrics"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

const limiterTTL = 48 * time.Hour

// FreeTierLimiter 免費方案每天只能替換一次，以鍵值存放記錄當天日期
type FreeTierLimiter struct {
	store kv.Store
	now   func() time.Time
}

// NewFreeTierLimiter 創建限制器
func NewFreeTierLimiter(store kv.Store) *FreeTierLimiter {
	return &FreeTierLimiter{store: store, now: time.Now}
}

// WithClock 替換時間來源（測試用）
func (l *FreeTierLimiter) WithClock(now func() time.Time) *FreeTierLimiter {
	l.now = now
	return l
}

func limiterKey(caller string) string {
	return "replace_free:" + caller
}

// Used 今天是否已替換過
func (l *FreeTierLimiter) Used(ctx context.Context, caller string) (bool, error) {
	v, ok, err := l.store.Get(ctx, limiterKey(caller))
	if err != nil || !ok {
		return false, err
	}
	return v == common.DayKey(l.now()), nil
}

// Mark 記錄今天已替換
func (l *FreeTierLimiter) Mark(ctx context.Context, caller string) error {
	return l.store.Set(ctx, limiterKey(caller), common.DayKey(l.now()), limiterTTL)
}

// ReplaceRequest 替換某一餐
type ReplaceRequest struct {
	Context       profile.Context
	Tier          common.Tier
	DayKey        string
	MealType      common.MealType
	ExcludeIDs    []string
	ExcludeTitles []string
	PreferAI      bool
}

// Replacer 替換餐位並寫回計畫
type Replacer struct {
	selector *Selector
	plans    plan.PlanStore
	limiter  *FreeTierLimiter
	now      func() time.Time
}

// NewReplacer 創建替換器；limiter 為 nil 時不限制
func NewReplacer(s *Selector, plans plan.PlanStore, limiter *FreeTierLimiter) *Replacer {
	return &Replacer{selector: s, plans: plans, limiter: limiter, now: time.Now}
}

// Replace 依方案規則替換：免費方案每天一次且只用食譜池；付費方案食譜池用盡時改用遠端生成
func (r *Replacer) Replace(ctx context.Context, req ReplaceRequest) (*Selection, error) {
	if !req.MealType.Valid() {
		return nil, common.ErrInvalidRequest.WithMessage("invalid meal type: " + string(req.MealType))
	}
	if req.PreferAI && !req.Tier.AllowsAI() {
		return nil, common.ErrAINotAllowed
	}

	owner := plan.OwnerKey(req.Context)
	free := !req.Tier.AllowsAI()
	if free && r.limiter != nil {
		used, err := r.limiter.Used(ctx, owner)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, common.ErrReplaceLimit
		}
	}

	day, err := r.plans.GetDay(ctx, owner, req.DayKey)
	if err != nil {
		return nil, err
	}

	sreq := Request{
		Context:       req.Context,
		Tier:          req.Tier,
		DayKey:        req.DayKey,
		MealType:      req.MealType,
		ExcludeIDs:    req.ExcludeIDs,
		ExcludeTitles: append([]string(nil), req.ExcludeTitles...),
	}
	if current, ok := day.Slot(req.MealType); ok {
		sreq.CurrentRecipeID = current.RecipeID
	}
	for _, meal := range common.MealTypes {
		if slot, ok := day.Slot(meal); ok {
			sreq.ExcludeTitles = append(sreq.ExcludeTitles, slot.Title)
		}
	}

	sel, err := r.pick(ctx, sreq, req.PreferAI, free)
	if err != nil {
		common.LogWarn("Slot replacement failed",
			zap.String("member_id", owner),
			zap.String("day_key", req.DayKey),
			zap.String("meal_type", string(req.MealType)),
			zap.Error(err),
		)
		return nil, err
	}

	if err := r.plans.SetSlot(ctx, owner, req.DayKey, sel.Slot(req.MealType, r.now().UTC())); err != nil {
		return nil, err
	}
	if free && r.limiter != nil {
		if err := r.limiter.Mark(ctx, owner); err != nil {
			common.LogWarn("Failed to record free-tier replacement", zap.Error(err))
		}
	}

	common.LogInfo("Slot replaced",
		zap.String("member_id", owner),
		zap.String("day_key", req.DayKey),
		zap.String("meal_type", string(req.MealType)),
		zap.String("source", string(sel.Source)),
		zap.String("recipe_id", sel.Recipe.ID),
	)
	return sel, nil
}

func (r *Replacer) pick(ctx context.Context, req Request, preferAI, free bool) (*Selection, error) {
	start := time.Now()

	if !preferAI {
		rec, err := r.selector.PickFromPool(ctx, req)
		if err == nil {
			metrics.RecordSlotFill(string(plan.SourcePool), string(req.MealType), time.Since(start))
			return &Selection{Source: plan.SourcePool, Recipe: rec}, nil
		}
		if !errors.Is(err, common.ErrPoolExhausted) || free || !r.selector.RemoteAvailable() {
			return nil, err
		}
	}

	rec, err := r.selector.Generate(ctx, req, false, plan.ProvenanceChatAI)
	if err != nil {
		return nil, err
	}
	metrics.RecordSlotFill(string(plan.SourceAI), string(req.MealType), time.Since(start))
	return &Selection{Source: plan.SourceAI, Recipe: rec}, nil
}
