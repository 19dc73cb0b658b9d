package handlers

import (
	"context"
	"net/http"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/core/pool"
	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/core/recipe"
	"meal-plan-generator/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// RecipeGenerator 以遠端生成一道食譜並存入食譜池
type RecipeGenerator interface {
	Generate(ctx context.Context, req pool.Request, fullRetry bool, source plan.Provenance) (*plan.StoredRecipe, error)
}

// GenerateRecipeRequest 生成單一食譜
type GenerateRecipeRequest struct {
	Profiles      []common.Profile `json:"profiles" binding:"required"`
	Selected      string           `json:"selected,omitempty"`
	Tier          common.Tier      `json:"tier"`
	MealType      common.MealType  `json:"meal_type,omitempty"`
	DayKey        string           `json:"day_key,omitempty"`
	ExcludeTitles []string         `json:"exclude_titles,omitempty"`
}

// ParseRecipeRequest 解析模型輸出；提供成員資料時一併驗證
type ParseRecipeRequest struct {
	Text     string           `json:"text" binding:"required"`
	Profiles []common.Profile `json:"profiles,omitempty"`
	Selected string           `json:"selected,omitempty"`
	Tier     common.Tier      `json:"tier,omitempty"`
}

// ParseRecipeResponse 解析結果
type ParseRecipeResponse struct {
	recipe.Result
	Validation *recipe.ValidationResult `json:"validation,omitempty"`
}

// RecipeHandler 食譜處理器
type RecipeHandler struct {
	parser    *recipe.Parser
	validator *recipe.Validator
	generator RecipeGenerator
}

// NewRecipeHandler 創建食譜處理器
func NewRecipeHandler(parser *recipe.Parser, validator *recipe.Validator, generator RecipeGenerator) *RecipeHandler {
	return &RecipeHandler{parser: parser, validator: validator, generator: generator}
}

// Generate POST /recipes/generate
func (h *RecipeHandler) Generate(c *gin.Context) {
	var req GenerateRecipeRequest
	if !bindJSON(c, &req) {
		return
	}
	if !req.Tier.AllowsAI() {
		RespondError(c, common.ErrAINotAllowed)
		return
	}
	if req.MealType != "" && !req.MealType.Valid() {
		RespondError(c, common.ErrInvalidRequest.WithMessage("invalid meal type: "+string(req.MealType)))
		return
	}

	gctx, err := profile.Build(req.Profiles, req.Selected, req.Tier)
	if err != nil {
		RespondError(c, err)
		return
	}

	stored, err := h.generator.Generate(c.Request.Context(), pool.Request{
		Context:       gctx,
		Tier:          req.Tier,
		DayKey:        req.DayKey,
		MealType:      req.MealType,
		ExcludeTitles: req.ExcludeTitles,
	}, true, plan.ProvenanceChatAI)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

// Parse POST /recipes/parse
func (h *RecipeHandler) Parse(c *gin.Context) {
	var req ParseRecipeRequest
	if !bindJSON(c, &req) {
		return
	}

	resp := ParseRecipeResponse{Result: h.parser.Parse(req.Text)}
	if resp.Found() && len(req.Profiles) > 0 {
		gctx, err := profile.Build(req.Profiles, req.Selected, req.Tier)
		if err != nil {
			RespondError(c, err)
			return
		}
		v := h.validator.Validate(resp.Recipe, gctx)
		resp.Validation = &v
	}
	c.JSON(http.StatusOK, resp)
}
