// Package pool 實作先從既有安全食譜中挑選、必要時才呼叫遠端生成的餐位填入
package pool

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"meal-plan-generator/internal/core/generation"
	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/core/prompt"
	"meal-plan-generator/internal/core/recipe"
	"meal-plan-generator/internal/infrastructure/metrics"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// DefaultCandidateLimit 每次查詢最多讀取的候選數
const DefaultCandidateLimit = 200

// DefaultSources 可信任的食譜來源
var DefaultSources = []plan.Provenance{
	plan.ProvenanceSeed,
	plan.ProvenanceManual,
	plan.ProvenanceWeekAI,
	plan.ProvenanceChatAI,
}

// Config 食譜池設定
type Config struct {
	Sources        []plan.Provenance
	CandidateLimit int
}

// Request 單一餐位的填入條件
type Request struct {
	Context         profile.Context
	Tier            common.Tier
	DayKey          string
	MealType        common.MealType
	CurrentRecipeID string
	ExcludeIDs      []string
	ExcludeTitles   []string
}

// Selection 填入結果
type Selection struct {
	Source plan.SlotSource
	Recipe *plan.StoredRecipe
}

// Slot 轉為計畫中的餐位
func (s *Selection) Slot(meal common.MealType, at time.Time) plan.SlotAssignment {
	return plan.SlotAssignment{
		MealType: meal,
		RecipeID: s.Recipe.ID,
		Title:    s.Recipe.Title,
		Source:   s.Source,
		FilledAt: at,
	}
}

// Selector 食譜池優先的選擇器
type Selector struct {
	recipes   plan.RecipeStore
	validator *recipe.Validator
	rules     *recipe.MealRules
	remote    *generation.RemoteGenerator
	full      *generation.Orchestrator
	single    *generation.Orchestrator
	cfg       Config

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSelector 創建選擇器；orchestrator 用於任務填入，替換時只嘗試一次
func NewSelector(
	recipes plan.RecipeStore,
	v *recipe.Validator,
	rules *recipe.MealRules,
	remote *generation.RemoteGenerator,
	orchestrator *generation.Orchestrator,
	cfg Config,
) *Selector {
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	if orchestrator == nil {
		orchestrator = generation.NewOrchestrator(v, generation.DefaultPolicy())
	}
	return &Selector{
		recipes:   recipes,
		validator: v,
		rules:     rules,
		remote:    remote,
		full:      orchestrator,
		single:    generation.NewOrchestrator(v, generation.Policy{MaxAttempts: 1}),
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// WithRand 固定亂數來源（測試用）
func (s *Selector) WithRand(r *rand.Rand) *Selector {
	s.rng = r
	return s
}

// WithClock 替換時間來源（測試用）
func (s *Selector) WithClock(now func() time.Time) *Selector {
	s.now = now
	return s
}

// RemoteAvailable 是否可呼叫遠端生成
func (s *Selector) RemoteAvailable() bool {
	return s.remote.Available()
}

// PickFromPool 從食譜池挑選；沒有合適候選時回傳 ErrPoolExhausted
func (s *Selector) PickFromPool(ctx context.Context, req Request) (*plan.StoredRecipe, error) {
	candidates, err := s.recipes.ListCandidates(ctx, plan.CandidateQuery{
		MemberID: req.Context.MemberID(),
		Sources:  s.cfg.Sources,
		Limit:    s.cfg.CandidateLimit,
	})
	if err != nil {
		return nil, err
	}

	excludedIDs := toSet(req.ExcludeIDs, func(id string) string { return id })
	excludedTitles := toSet(req.ExcludeTitles, recipe.TitleKey)
	if req.CurrentRecipeID != "" {
		excludedIDs[req.CurrentRecipeID] = true
	}

	eligible := make([]*plan.StoredRecipe, 0, len(candidates))
	for _, c := range candidates {
		if excludedIDs[c.ID] || excludedTitles[recipe.TitleKey(c.Title)] {
			continue
		}
		if !s.eligible(c, req) {
			continue
		}
		eligible = append(eligible, c)
	}

	common.LogDebug("Pool candidates filtered",
		zap.String("meal_type", string(req.MealType)),
		zap.String("day_key", req.DayKey),
		zap.Int("candidates", len(candidates)),
		zap.Int("eligible", len(eligible)),
	)

	if len(eligible) == 0 {
		return nil, common.ErrPoolExhausted
	}

	s.mu.Lock()
	s.rng.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	s.mu.Unlock()

	return eligible[0], nil
}

// eligible 餐別、合理性與成員限制都需通過
func (s *Selector) eligible(c *plan.StoredRecipe, req Request) bool {
	meal, ok := s.rules.ResolveMealType(c.MealType, c.Tags)
	if !ok {
		meal = common.MealSnack
	}
	if meal != req.MealType {
		return false
	}
	if ok, _ := s.rules.CheckSanity(req.MealType, c.Title, c.Description); !ok {
		return false
	}
	return s.validator.CheckText(c.SearchText(), req.Context, true).OK
}

// Generate 以遠端生成填入餐位並存入食譜池；fullRetry 為 false 時只嘗試一次
func (s *Selector) Generate(ctx context.Context, req Request, fullRetry bool, source plan.Provenance) (*plan.StoredRecipe, error) {
	if !s.remote.Available() {
		return nil, common.ErrServiceUnavailable.WithMessage("remote generator is not configured")
	}

	o := s.single
	if fullRetry {
		o = s.full
	}

	opts := prompt.Options{
		MealType:      req.MealType,
		ExcludeTitles: req.ExcludeTitles,
		Tier:          req.Tier,
		DayKey:        req.DayKey,
	}
	res, err := o.Generate(ctx, req.Context, s.remote.Func(opts),
		generation.SanityCheck(s.rules, req.MealType),
		generation.ExcludeCheck(req.ExcludeTitles),
		generation.AgeCheck(s.validator, req.Context),
	)
	if err != nil {
		return nil, err
	}

	stored := plan.FromParsed(common.GenerateUUID(), req.Context.MemberID(), source, res.Recipe, s.now().UTC())
	if err := s.recipes.SaveRecipe(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Fill 任務使用：先找食譜池，沒有時以完整重試生成
func (s *Selector) Fill(ctx context.Context, req Request) (*Selection, error) {
	start := time.Now()

	r, err := s.PickFromPool(ctx, req)
	if err == nil {
		metrics.RecordSlotFill(string(plan.SourcePool), string(req.MealType), time.Since(start))
		return &Selection{Source: plan.SourcePool, Recipe: r}, nil
	}
	if !errors.Is(err, common.ErrPoolExhausted) {
		return nil, err
	}
	if !s.remote.Available() {
		return nil, err
	}

	r, err = s.Generate(ctx, req, true, plan.ProvenanceWeekAI)
	if err != nil {
		return nil, err
	}
	metrics.RecordSlotFill(string(plan.SourceAI), string(req.MealType), time.Since(start))
	return &Selection{Source: plan.SourceAI, Recipe: r}, nil
}

func toSet(items []string, key func(string) string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		if k := key(it); k != "" {
			out[k] = true
		}
	}
	return out
}
