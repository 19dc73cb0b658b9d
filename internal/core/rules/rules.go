// Package rules 保存所有以關鍵字為基礎的判斷表，讓比對邏輯與資料分離。
//
// 表格中的 token 以空白分隔單字；以 '*' 結尾的單字視為字首（詞幹），
// 以 '*' 開頭的單字允許前接其他字（blackberry、swordfish），兩端皆有則比對字中任意位置。
// 其他單字需完整相符（英文複數 s/es 自動接受）。StemExceptions 以同樣寫法為鍵，列出不算命中的字。
package rules

import (
	"fmt"
	"os"

	"meal-plan-generator/internal/pkg/common"

	"gopkg.in/yaml.v3"
)

// AllergenCategory 過敏原分類
type AllergenCategory struct {
	Canonical string   `yaml:"canonical" json:"canonical"`
	Aliases   []string `yaml:"aliases" json:"aliases"`
	Tokens    []string `yaml:"tokens" json:"tokens"`
}

// SanityRule 餐別的合理性規則，命中關鍵字即不適合該餐別
type SanityRule struct {
	MealType common.MealType `yaml:"meal_type" json:"meal_type"`
	Reason   string          `yaml:"reason" json:"reason"`
	Keywords []string        `yaml:"keywords" json:"keywords"`
}

// Tables 所有關鍵字表
type Tables struct {
	Allergens         []AllergenCategory  `yaml:"allergens"`
	StemExceptions    map[string][]string `yaml:"stem_exceptions"`
	VegetarianMarkers []string            `yaml:"vegetarian_markers"`
	BannedMeat        []string            `yaml:"banned_meat"`
	NegationMarkers   []string            `yaml:"negation_markers"`
	CookingVerbs      []string            `yaml:"cooking_verbs"`
	PurposeClauses    []string            `yaml:"purpose_clauses"`
	RefusalTitles     []string            `yaml:"refusal_titles"`
	ProseMarkers      []string            `yaml:"prose_markers"`
	IngredientHeaders []string            `yaml:"ingredient_headers"`
	StepHeaders       []string            `yaml:"step_headers"`
	AdviceHeaders     []string            `yaml:"advice_headers"`
	Sanity            []SanityRule        `yaml:"sanity"`
	SoupKeywords      []string            `yaml:"soup_keywords"`
	BreakfastMarkers  []string            `yaml:"breakfast_markers"`
	SnackMarkers      []string            `yaml:"snack_markers"`
	MealAliases       map[string]string   `yaml:"meal_aliases"`
	AgeRestricted     []string            `yaml:"age_restricted"`
	AgeRestrictedFrom int                 `yaml:"age_restricted_below_months"`
}

// Load 讀取 YAML（或 JSON）規則檔並覆蓋預設值；path 為空時回傳預設表
func Load(path string) (*Tables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("decode rules file: %w", err)
	}

	t.merge(&override)
	return t, nil
}

// merge 非空欄位覆蓋；過敏原分類以 canonical 為鍵合併
func (t *Tables) merge(o *Tables) {
	for _, cat := range o.Allergens {
		replaced := false
		for i := range t.Allergens {
			if t.Allergens[i].Canonical == cat.Canonical {
				t.Allergens[i].Aliases = appendUnique(t.Allergens[i].Aliases, cat.Aliases...)
				t.Allergens[i].Tokens = appendUnique(t.Allergens[i].Tokens, cat.Tokens...)
				replaced = true
				break
			}
		}
		if !replaced {
			t.Allergens = append(t.Allergens, cat)
		}
	}
	for k, v := range o.StemExceptions {
		t.StemExceptions[k] = appendUnique(t.StemExceptions[k], v...)
	}
	for k, v := range o.MealAliases {
		t.MealAliases[k] = v
	}

	t.VegetarianMarkers = appendUnique(t.VegetarianMarkers, o.VegetarianMarkers...)
	t.BannedMeat = appendUnique(t.BannedMeat, o.BannedMeat...)
	t.NegationMarkers = appendUnique(t.NegationMarkers, o.NegationMarkers...)
	t.CookingVerbs = appendUnique(t.CookingVerbs, o.CookingVerbs...)
	t.PurposeClauses = appendUnique(t.PurposeClauses, o.PurposeClauses...)
	t.RefusalTitles = appendUnique(t.RefusalTitles, o.RefusalTitles...)
	t.ProseMarkers = appendUnique(t.ProseMarkers, o.ProseMarkers...)
	t.IngredientHeaders = appendUnique(t.IngredientHeaders, o.IngredientHeaders...)
	t.StepHeaders = appendUnique(t.StepHeaders, o.StepHeaders...)
	t.AdviceHeaders = appendUnique(t.AdviceHeaders, o.AdviceHeaders...)
	t.SoupKeywords = appendUnique(t.SoupKeywords, o.SoupKeywords...)
	t.BreakfastMarkers = appendUnique(t.BreakfastMarkers, o.BreakfastMarkers...)
	t.SnackMarkers = appendUnique(t.SnackMarkers, o.SnackMarkers...)
	t.AgeRestricted = appendUnique(t.AgeRestricted, o.AgeRestricted...)

	for _, rule := range o.Sanity {
		merged := false
		for i := range t.Sanity {
			if t.Sanity[i].MealType == rule.MealType && t.Sanity[i].Reason == rule.Reason {
				t.Sanity[i].Keywords = appendUnique(t.Sanity[i].Keywords, rule.Keywords...)
				merged = true
				break
			}
		}
		if !merged {
			t.Sanity = append(t.Sanity, rule)
		}
	}
	if o.AgeRestrictedFrom > 0 {
		t.AgeRestrictedFrom = o.AgeRestrictedFrom
	}
}

// SanityFor 取得某餐別的規則
func (t *Tables) SanityFor(meal common.MealType) []SanityRule {
	var out []SanityRule
	for _, r := range t.Sanity {
		if r.MealType == meal {
			out = append(out, r)
		}
	}
	return out
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, d := range dst {
		seen[d] = true
	}
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		dst = append(dst, it)
	}
	return dst
}
