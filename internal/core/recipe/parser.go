package recipe

import (
	"regexp"
	"strings"

	"meal-plan-generator/internal/core/allergen"
	"meal-plan-generator/internal/pkg/common"
)

// Strategy 成功擷取食譜所使用的策略
type Strategy string

const (
	StrategyNone           Strategy = ""
	StrategyFencedJSON     Strategy = "fenced_json"
	StrategyKeyedJSON      Strategy = "keyed_json"
	StrategyFirstObject    Strategy = "first_object"
	StrategyLeadingObject  Strategy = "leading_object"
	StrategyAnyBrace       Strategy = "any_brace"
	StrategyLegacyMarkdown Strategy = "legacy_markdown"
	StrategyLineScan       Strategy = "line_scan"
)

// ReceivedPlaceholder 原文只有 JSON 時給使用者的顯示文字
const ReceivedPlaceholder = "Recipe received."

// Result 解析結果：Recipe 為 nil 表示沒有食譜
type Result struct {
	Recipe      *common.ParsedRecipe `json:"recipe,omitempty"`
	Strategy    Strategy             `json:"strategy,omitempty"`
	DisplayText string               `json:"display_text"`
	Reason      string               `json:"reason,omitempty"`
}

// Found 是否解析出食譜
func (r Result) Found() bool {
	return r.Recipe != nil
}

// Parser 將 AI 原始輸出轉成結構化食譜；無狀態，可併發使用
type Parser struct {
	meals      *MealRules
	verbs      allergen.TokenSet
	purposes   []string
	refusals   allergen.TokenSet
	prose      allergen.TokenSet
	ingHeaders allergen.TokenSet
	stepHdrs   allergen.TokenSet
	adviceHdrs allergen.TokenSet
}

// NewParser 創建解析器
func NewParser(m *allergen.Matcher) *Parser {
	t := m.Tables()
	purposes := make([]string, 0, len(t.PurposeClauses))
	for _, p := range t.PurposeClauses {
		if n := allergen.Normalize(p); n != "" {
			purposes = append(purposes, n)
		}
	}
	return &Parser{
		meals:      NewMealRules(m),
		verbs:      m.CompileTokens(t.CookingVerbs, "verb"),
		purposes:   purposes,
		refusals:   m.PhraseSet(t.RefusalTitles, 2),
		prose:      m.PhraseSet(t.ProseMarkers, 2),
		ingHeaders: m.PhraseSet(t.IngredientHeaders, 2),
		stepHdrs:   m.PhraseSet(t.StepHeaders, 2),
		adviceHdrs: m.PhraseSet(t.AdviceHeaders, 2),
	}
}

// MealRules 回傳解析器使用的餐別規則
func (p *Parser) MealRules() *MealRules {
	return p.meals
}

// Parse 依優先順序嘗試各種擷取策略，第一個成功者勝出
func (p *Parser) Parse(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{DisplayText: raw, Reason: "empty response"}
	}

	res, handled, text := p.parseJSON(raw)
	if handled {
		return res
	}

	if p.looksLikeProse(text) {
		return Result{DisplayText: raw, Reason: "prose"}
	}

	if r := p.parseLegacyMarkdown(text); r != nil {
		return Result{Recipe: r, Strategy: StrategyLegacyMarkdown, DisplayText: raw}
	}
	if r := p.parseLineScan(text); r != nil {
		return Result{Recipe: r, Strategy: StrategyLineScan, DisplayText: raw}
	}
	if res.Reason != "" {
		return res
	}
	return Result{DisplayText: raw, Reason: "no recipe-shaped content"}
}

const (
	maxTitleWords = 12
	minTitleRunes = 3
	maxTitleRunes = 80
)

var (
	markdownDecor  = regexp.MustCompile(`^[#>*_\s]+|[*_\s]+$`)
	titleSentence  = regexp.MustCompile(`[.:;]$`)
	blankLineBurst = regexp.MustCompile(`\n{3,}`)
)

// cleanTitle 去除 markdown 標記
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "**", "")
	s = markdownDecor.ReplaceAllString(s, "")
	return common.NormalizeSpace(s)
}

// acceptable 標題 3–80 字、不是拒絕或說明句，且至少有一個食材或步驟
func (p *Parser) acceptable(r *common.ParsedRecipe) (bool, string) {
	if r == nil {
		return false, "empty"
	}
	n := len([]rune(r.Title))
	if n < minTitleRunes || n > maxTitleRunes {
		return false, "title length"
	}
	if p.refusals.ContainsAnyToken(r.Title).Hit {
		return false, "refusal title"
	}
	if titleSentence.MatchString(r.Title) || len(strings.Fields(r.Title)) > maxTitleWords {
		return false, "instructional title"
	}
	if len(r.Ingredients) == 0 && len(r.Steps) == 0 {
		return false, "no ingredients or steps"
	}
	return true, ""
}

// finish 補上餐別並檢查是否可接受
func (p *Parser) finish(r *common.ParsedRecipe, declaredMeal string) *common.ParsedRecipe {
	if r == nil {
		return nil
	}
	r.Title = cleanTitle(r.Title)
	if mt, ok := p.meals.NormalizeMealType(declaredMeal); ok {
		r.MealType = mt
	} else if r.MealType == "" {
		r.MealType = p.meals.Classify(r.Title + " " + r.Description)
	}
	if ok, _ := p.acceptable(r); !ok {
		return nil
	}
	return r
}

// displayWithout 移除已消耗的區段；剩餘為空且原文只有 JSON 時回傳預設文字
func displayWithout(raw string, start, end int) string {
	rest := raw[:start] + raw[end:]
	rest = blankLineBurst.ReplaceAllString(strings.TrimSpace(rest), "\n\n")
	if rest != "" {
		return rest
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "```") {
		return ReceivedPlaceholder
	}
	return rest
}
