// Package generation 以有限次數重試產生通過驗證的食譜
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/core/recipe"
	"meal-plan-generator/internal/infrastructure/metrics"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// Outcome 單次嘗試的結果
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeParseFailed      Outcome = "parse_failed"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeRemoteFailed     Outcome = "remote_failed"
)

// Attempt 一次嘗試的紀錄
type Attempt struct {
	Number  int      `json:"number"`
	Outcome Outcome  `json:"outcome"`
	Errors  []string `json:"errors,omitempty"`
}

// Policy 重試次數與間隔
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy 三次嘗試，不等待
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3}
}

// RemoteFunc 呼叫遠端並解析；(nil, nil) 代表沒有解析出食譜
type RemoteFunc func(ctx context.Context, gctx profile.Context) (*common.ParsedRecipe, error)

// Check 驗證之外的額外檢查（例如餐別合理性），回傳失敗原因
type Check func(r *common.ParsedRecipe) (bool, string)

// Result 成功結果與過程
type Result struct {
	Recipe   *common.ParsedRecipe `json:"recipe"`
	Attempts []Attempt            `json:"attempts"`
}

// GenerationError 所有嘗試都失敗
type GenerationError struct {
	Attempts []Attempt
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("%s after %d attempts", common.ErrGenerationFailed.Message, len(e.Attempts))
	if n := len(e.Attempts); n > 0 {
		last := e.Attempts[n-1]
		msg += fmt.Sprintf(" (last: %s", last.Outcome)
		if len(last.Errors) > 0 {
			msg += ": " + strings.Join(last.Errors, "; ")
		}
		msg += ")"
	}
	return msg
}

// Unwrap 讓 errors.Is(err, common.ErrGenerationFailed) 成立
func (e *GenerationError) Unwrap() error {
	return common.ErrGenerationFailed
}

// Orchestrator 生成、驗證、重試；無狀態，可併發使用
type Orchestrator struct {
	validator *recipe.Validator
	policy    Policy
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator 創建協調器
func NewOrchestrator(v *recipe.Validator, policy Policy) *Orchestrator {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	return &Orchestrator{validator: v, policy: policy, sleep: sleepContext}
}

// WithSleep 替換等待函式（測試用）
func (o *Orchestrator) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Orchestrator {
	o.sleep = fn
	return o
}

// Policy 目前的重試設定
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Generate 最多嘗試 MaxAttempts 次；遠端逾時直接回傳，不再重試
func (o *Orchestrator) Generate(ctx context.Context, gctx profile.Context, remote RemoteFunc, checks ...Check) (*Result, error) {
	attempts := make([]Attempt, 0, o.policy.MaxAttempts)

	for n := 1; n <= o.policy.MaxAttempts; n++ {
		if n > 1 && o.policy.Backoff > 0 {
			if err := o.sleep(ctx, o.policy.Backoff); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := remote(ctx, gctx)
		attempt := Attempt{Number: n}

		switch {
		case err != nil && errors.Is(err, common.ErrRemoteTimeout):
			attempt.Outcome = OutcomeRemoteFailed
			o.record(attempt, err)
			return nil, err
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && errors.Is(err, common.ErrParseFailed):
			attempt.Outcome = OutcomeParseFailed
			attempt.Errors = []string{err.Error()}
		case err != nil:
			attempt.Outcome = OutcomeRemoteFailed
			attempt.Errors = []string{err.Error()}
		case r == nil:
			attempt.Outcome = OutcomeParseFailed
			attempt.Errors = []string{"no recipe in response"}
		default:
			errs := o.validator.Validate(r, gctx).Errors
			for _, check := range checks {
				if ok, reason := check(r); !ok {
					errs = append(errs, reason)
				}
			}
			if len(errs) == 0 {
				attempt.Outcome = OutcomeOK
				attempts = append(attempts, attempt)
				o.record(attempt, nil)
				return &Result{Recipe: r, Attempts: attempts}, nil
			}
			attempt.Outcome = OutcomeValidationFailed
			attempt.Errors = errs
		}

		attempts = append(attempts, attempt)
		o.record(attempt, err)
	}

	return nil, &GenerationError{Attempts: attempts}
}

func (o *Orchestrator) record(a Attempt, err error) {
	metrics.RecordGenerationAttempt(string(a.Outcome))
	if a.Outcome == OutcomeOK {
		common.LogDebug("Generation attempt succeeded", zap.Int("attempt", a.Number))
		return
	}
	common.LogWarn("Generation attempt failed",
		zap.Int("attempt", a.Number),
		zap.String("outcome", string(a.Outcome)),
		zap.Strings("errors", a.Errors),
		zap.Error(err),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SanityCheck 餐別合理性檢查，例如早餐不可為湯品
func SanityCheck(rules *recipe.MealRules, meal common.MealType) Check {
	return func(r *common.ParsedRecipe) (bool, string) {
		if ok, reason := rules.CheckSanity(meal, r.Title, r.Description); !ok {
			return false, "Meal type violation: " + reason
		}
		return true, ""
	}
}

// ExcludeCheck 拒絕標題已在排除清單中的食譜
func ExcludeCheck(titles []string) Check {
	keys := make(map[string]bool, len(titles))
	for _, t := range titles {
		if k := recipe.TitleKey(t); k != "" {
			keys[k] = true
		}
	}
	return func(r *common.ParsedRecipe) (bool, string) {
		if keys[recipe.TitleKey(r.Title)] {
			return false, "Duplicate recipe: " + r.Title
		}
		return true, ""
	}
}

// AgeCheck 套用幼兒年齡限制，與食譜池篩選使用同一份清單
func AgeCheck(v *recipe.Validator, gctx profile.Context) Check {
	return func(r *common.ParsedRecipe) (bool, string) {
		res := v.CheckText(r.SearchText(), gctx, true)
		for _, vi := range res.Violations {
			if vi.Kind == recipe.ViolationAge {
				return false, vi.Message
			}
		}
		return true, ""
	}
}
