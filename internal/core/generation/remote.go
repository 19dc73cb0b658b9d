package generation

import (
	"context"
	"errors"
	"time"

	"meal-plan-generator/internal/core/ai/provider"
	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/core/prompt"
	"meal-plan-generator/internal/core/recipe"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// RemoteGenerator 提示詞 → 遠端模型 → 解析
type RemoteGenerator struct {
	provider provider.Provider
	builder  *prompt.Builder
	parser   *recipe.Parser
	timeout  time.Duration
}

// NewRemoteGenerator 創建遠端生成器；p 為 nil 時所有呼叫回傳 ErrServiceUnavailable
func NewRemoteGenerator(p provider.Provider, b *prompt.Builder, parser *recipe.Parser, timeout time.Duration) *RemoteGenerator {
	return &RemoteGenerator{provider: p, builder: b, parser: parser, timeout: timeout}
}

// Available 是否設定了遠端模型
func (g *RemoteGenerator) Available() bool {
	return g != nil && g.provider != nil
}

// Func 回傳綁定餐別與排除清單的 RemoteFunc
func (g *RemoteGenerator) Func(opts prompt.Options) RemoteFunc {
	return func(ctx context.Context, gctx profile.Context) (*common.ParsedRecipe, error) {
		r, _, err := g.GenerateOnce(ctx, gctx, opts)
		return r, err
	}
}

// GenerateOnce 呼叫一次遠端並解析，同時回傳給使用者的顯示文字
func (g *RemoteGenerator) GenerateOnce(ctx context.Context, gctx profile.Context, opts prompt.Options) (*common.ParsedRecipe, string, error) {
	if !g.Available() {
		return nil, "", common.ErrServiceUnavailable.WithMessage("remote generator is not configured")
	}

	req := g.builder.Build(gctx, opts)
	payload, err := common.ToJSON(req.Payload)
	if err != nil {
		return nil, "", err
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.provider.Generate(callCtx, &provider.Request{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: req.System},
			{Role: provider.RoleUser, Content: req.User + "\n\nStructured data: " + payload},
		},
		MaxTokens: req.MaxTokens,
		JSONMode:  true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		if provider.IsTimeout(err) && !errors.Is(err, common.ErrRemoteTimeout) {
			return nil, "", common.ErrRemoteTimeout.Wrap(err)
		}
		return nil, "", err
	}

	res := g.parser.Parse(resp.Content)
	if !res.Found() {
		common.LogDebug("Remote response has no recipe",
			zap.String("reason", res.Reason),
			zap.Int("length", len(resp.Content)),
		)
		return nil, res.DisplayText, common.ErrParseFailed.WithMessage("no recipe in remote response: " + res.Reason)
	}

	r := res.Recipe
	if opts.MealType != "" {
		r.MealType = opts.MealType
	}
	return r, res.DisplayText, nil
}
