package recipe

import (
	"fmt"
	"sort"
	"strings"

	"meal-plan-generator/internal/core/allergen"
	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/pkg/common"
)

// ViolationKind 違規種類
type ViolationKind string

const (
	ViolationAllergy    ViolationKind = "allergy"
	ViolationDislike    ViolationKind = "dislike"
	ViolationPreference ViolationKind = "preference"
	ViolationFormat     ViolationKind = "format"
	ViolationAge        ViolationKind = "age"
)

// Violation 單一違規
type Violation struct {
	Kind      ViolationKind `json:"kind"`
	ProfileID string        `json:"profile_id,omitempty"`
	Token     string        `json:"token,omitempty"`
	Message   string        `json:"message"`
}

// ValidationResult 驗證結果
type ValidationResult struct {
	OK         bool        `json:"ok"`
	Errors     []string    `json:"errors"`
	Violations []Violation `json:"violations,omitempty"`
}

// Has 是否含有某種違規
func (r ValidationResult) Has(kind ViolationKind) bool {
	for _, v := range r.Violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

// Validator 以成員限制檢查食譜；無狀態，可併發使用
type Validator struct {
	matcher    *allergen.Matcher
	vegetarian allergen.TokenSet
	banned     allergen.TokenSet
	ageTokens  allergen.TokenSet
	ageLimit   int
	negations  []string
}

// NewValidator 創建驗證器
func NewValidator(m *allergen.Matcher) *Validator {
	t := m.Tables()
	negations := make([]string, 0, len(t.NegationMarkers))
	for _, n := range t.NegationMarkers {
		if nn := allergen.Normalize(n); nn != "" {
			negations = append(negations, nn)
		}
	}
	// 較長的標記優先，避免「не любит」被「не」截斷
	sort.SliceStable(negations, func(i, j int) bool {
		return len([]rune(negations[i])) > len([]rune(negations[j]))
	})

	return &Validator{
		matcher:    m,
		vegetarian: m.CompileTokens(t.VegetarianMarkers, "vegetarian"),
		banned:     m.CompileTokens(t.BannedMeat, "vegetarian"),
		ageTokens:  m.CompileTokens(t.AgeRestricted, "age"),
		ageLimit:   t.AgeRestrictedFrom,
		negations:  negations,
	}
}

// Validate 檢查所有目標成員的限制與結構完整性；全家模式需每位成員都通過
func (v *Validator) Validate(r *common.ParsedRecipe, ctx profile.Context) ValidationResult {
	var violations []Violation
	if r != nil {
		violations = v.checkConstraints(allergen.Words(r.SearchText()), ctx, false)
	}
	if !StructurallyValid(r) {
		violations = append(violations, Violation{Kind: ViolationFormat, Message: "Invalid recipe format"})
	}
	return newResult(violations)
}

// CheckText 對已存食譜的文字做限制檢查（不檢查結構），includeAge 時套用幼兒年齡限制
func (v *Validator) CheckText(text string, ctx profile.Context, includeAge bool) ValidationResult {
	return newResult(v.checkConstraints(allergen.Words(text), ctx, includeAge))
}

func newResult(violations []Violation) ValidationResult {
	res := ValidationResult{OK: len(violations) == 0, Errors: make([]string, 0, len(violations)), Violations: violations}
	for _, vi := range violations {
		res.Errors = append(res.Errors, vi.Message)
	}
	return res
}

// StructurallyValid 標題、食材、步驟皆不可為空
func StructurallyValid(r *common.ParsedRecipe) bool {
	if r == nil || strings.TrimSpace(r.Title) == "" {
		return false
	}
	hasIngredient := false
	for _, ing := range r.Ingredients {
		if strings.TrimSpace(ing.Name) != "" {
			hasIngredient = true
			break
		}
	}
	hasStep := false
	for _, s := range r.Steps {
		if strings.TrimSpace(s) != "" {
			hasStep = true
			break
		}
	}
	return hasIngredient && hasStep
}

func (v *Validator) checkConstraints(words []string, ctx profile.Context, includeAge bool) []Violation {
	var out []Violation
	for _, p := range ctx.Profiles() {
		if blocked := v.matcher.BuildTokenSet(p.Allergies); !blocked.Empty() {
			if hit := blocked.ContainsAnyWord(words); hit.Hit {
				out = append(out, Violation{
					Kind:      ViolationAllergy,
					ProfileID: p.ID,
					Token:     hit.Token,
					Message:   "Allergy violation: " + strings.Join(p.Allergies, ", "),
				})
			}
		}

		for _, d := range p.Dislikes {
			set := v.matcher.PhraseSet([]string{d}, 2)
			if hit := set.ContainsAnyWord(words); hit.Hit {
				out = append(out, Violation{
					Kind:      ViolationDislike,
					ProfileID: p.ID,
					Token:     hit.Token,
					Message:   "Dislike violation: " + strings.TrimSpace(d),
				})
			}
		}

		for _, pref := range p.Preferences {
			if hit := v.checkPreference(pref, words); hit.Hit {
				out = append(out, Violation{
					Kind:      ViolationPreference,
					ProfileID: p.ID,
					Token:     hit.Token,
					Message:   "Preference violation: " + strings.TrimSpace(pref),
				})
			}
		}

		if includeAge && p.AgeMonths != nil && *p.AgeMonths < v.ageLimit {
			if hit := v.ageTokens.ContainsAnyWord(words); hit.Hit {
				out = append(out, Violation{
					Kind:      ViolationAge,
					ProfileID: p.ID,
					Token:     hit.Token,
					Message:   fmt.Sprintf("Age violation: %s is not suitable under %d months", hit.Token, v.ageLimit),
				})
			}
		}
	}
	return out
}

// checkPreference 素食偏好檢查禁用肉類清單；否定句（no X / без X）檢查剩餘詞
func (v *Validator) checkPreference(pref string, words []string) allergen.Hit {
	n := allergen.Normalize(pref)
	if n == "" {
		return allergen.Hit{}
	}
	if v.vegetarian.ContainsAnyToken(n).Hit {
		if hit := v.banned.ContainsAnyWord(words); hit.Hit {
			return hit
		}
	}
	term := v.negatedTerm(n)
	if term == "" {
		return allergen.Hit{}
	}
	return v.termTokens(term).ContainsAnyWord(words)
}

// negatedTerm 去掉否定標記後的詞，非否定句回傳空值
func (v *Validator) negatedTerm(n string) string {
	for _, marker := range v.negations {
		if strings.HasPrefix(n, marker+" ") {
			return strings.TrimSpace(strings.TrimPrefix(n, marker))
		}
	}
	return ""
}

// termTokens 否定詞經字典展開；四個字以上的單字以詞幹比對，五個字以上去掉字尾一字以涵蓋詞形變化
func (v *Validator) termTokens(term string) allergen.TokenSet {
	set := v.matcher.BuildTokenSet([]string{term})
	var stems []string
	for _, w := range strings.Fields(term) {
		r := []rune(w)
		switch {
		case len(r) >= 5:
			stems = append(stems, string(r[:len(r)-1])+"*")
		case len(r) == 4:
			stems = append(stems, w+"*")
		}
	}
	return set.Merge(v.matcher.CompileTokens(stems, term))
}
