package recipe

import (
	"strings"

	"meal-plan-generator/internal/core/allergen"
	"meal-plan-generator/internal/pkg/common"
)

// sanityRule 已編譯的餐別規則
type sanityRule struct {
	reason string
	tokens allergen.TokenSet
}

// MealRules 餐別判斷與合理性檢查
type MealRules struct {
	aliases   map[string]common.MealType
	soup      allergen.TokenSet
	breakfast allergen.TokenSet
	snack     allergen.TokenSet
	sanity    map[common.MealType][]sanityRule
}

// NewMealRules 由關鍵字表建立餐別規則
func NewMealRules(m *allergen.Matcher) *MealRules {
	t := m.Tables()
	r := &MealRules{
		aliases:   make(map[string]common.MealType, len(t.MealAliases)),
		soup:      m.CompileTokens(t.SoupKeywords, "soup"),
		breakfast: m.CompileTokens(t.BreakfastMarkers, "breakfast"),
		snack:     m.CompileTokens(t.SnackMarkers, "snack"),
		sanity:    make(map[common.MealType][]sanityRule),
	}
	for alias, meal := range t.MealAliases {
		mt := common.MealType(meal)
		if mt.Valid() {
			r.aliases[allergen.Normalize(alias)] = mt
		}
	}
	for _, rule := range t.Sanity {
		r.sanity[rule.MealType] = append(r.sanity[rule.MealType], sanityRule{
			reason: rule.Reason,
			tokens: m.CompileTokens(rule.Keywords, rule.Reason),
		})
	}
	return r
}

// NormalizeMealType 正規化宣告的餐別，接受別名與 chat_<meal> 標籤格式
func (r *MealRules) NormalizeMealType(declared string) (common.MealType, bool) {
	n := allergen.Normalize(declared)
	if n == "" {
		return "", false
	}
	if mt, ok := r.aliases[n]; ok {
		return mt, true
	}
	mt := common.MealType(n)
	if mt.Valid() {
		return mt, true
	}
	// chat_breakfast、week_ai_dinner 之類的標籤取最後一段
	parts := strings.Fields(n)
	if mt, ok := r.aliases[parts[len(parts)-1]]; ok {
		return mt, true
	}
	return "", false
}

// ResolveMealType 依序使用宣告餐別與標籤
func (r *MealRules) ResolveMealType(declared string, tags []string) (common.MealType, bool) {
	if mt, ok := r.NormalizeMealType(declared); ok {
		return mt, true
	}
	for _, tag := range tags {
		if mt, ok := r.NormalizeMealType(strings.ReplaceAll(tag, "_", " ")); ok {
			return mt, true
		}
	}
	return "", false
}

// Classify 依內容判斷餐別：湯品為午餐，其次是早餐與點心標記；無法判斷回傳空值
func (r *MealRules) Classify(text string) common.MealType {
	words := allergen.Words(text)
	if len(words) == 0 {
		return ""
	}
	switch {
	case r.soup.ContainsAnyWord(words).Hit:
		return common.MealLunch
	case r.breakfast.ContainsAnyWord(words).Hit:
		return common.MealBreakfast
	case r.snack.ContainsAnyWord(words).Hit:
		return common.MealSnack
	}
	return ""
}

// CheckSanity 檢查標題與描述是否適合該餐別，回傳不適合的原因
func (r *MealRules) CheckSanity(meal common.MealType, title, description string) (bool, string) {
	rules := r.sanity[meal]
	if len(rules) == 0 {
		return true, ""
	}
	words := allergen.Words(title + " " + description)
	for _, rule := range rules {
		if hit := rule.tokens.ContainsAnyWord(words); hit.Hit {
			return false, rule.reason + ": " + hit.Token
		}
	}
	return true, ""
}

// TitleKey 標題比對鍵：正規化後的小寫字串，用於排除重複
func TitleKey(title string) string {
	return allergen.Normalize(title)
}
