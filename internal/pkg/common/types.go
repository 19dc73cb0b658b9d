package common

import (
	"bytes"
	"encoding/json"
	"strings"
)

// MealType 餐別
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealSnack     MealType = "snack"
	MealDinner    MealType = "dinner"
)

// MealTypes 一天的四個餐別，依時間排序
var MealTypes = []MealType{MealBreakfast, MealLunch, MealSnack, MealDinner}

// Valid 檢查餐別是否合法
func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealSnack, MealDinner:
		return true
	}
	return false
}

// Role 成員角色
type Role string

const (
	RoleChild Role = "child"
	RoleAdult Role = "adult"
)

// Tier 訂閱方案
type Tier string

const (
	TierFree    Tier = "free"
	TierTrial   Tier = "trial"
	TierPremium Tier = "premium"
)

// AllowsFamily 是否允許多人生成
func (t Tier) AllowsFamily() bool {
	return t == TierPremium || t == TierTrial
}

// AllowsAI 是否允許直接使用 AI 替換
func (t Tier) AllowsAI() bool {
	return t == TierPremium || t == TierTrial
}

// Profile 家庭成員的飲食限制
type Profile struct {
	ID          string   `json:"id"`
	Role        Role     `json:"role"`
	Name        string   `json:"name"`
	AgeMonths   *int     `json:"age_months,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
	Likes       []string `json:"likes,omitempty"`
	Dislikes    []string `json:"dislikes,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
}

// Ingredient 食材，可以是純文字或帶有份量資訊的物件
type Ingredient struct {
	Name            string   `json:"name"`
	DisplayText     string   `json:"display_text,omitempty"`
	CanonicalAmount *float64 `json:"canonical_amount,omitempty"`
	CanonicalUnit   string   `json:"canonical_unit,omitempty"`
	Substitute      string   `json:"substitute,omitempty"`
}

// IsPlain 是否只有名稱
func (i Ingredient) IsPlain() bool {
	return i.DisplayText == "" && i.CanonicalAmount == nil && i.CanonicalUnit == "" && i.Substitute == ""
}

// Text 回傳給使用者看的文字
func (i Ingredient) Text() string {
	if i.DisplayText != "" {
		return i.DisplayText
	}
	return i.Name
}

// MarshalJSON 純文字食材輸出為字串
func (i Ingredient) MarshalJSON() ([]byte, error) {
	if i.IsPlain() {
		return json.Marshal(i.Name)
	}
	type detail Ingredient
	return json.Marshal(detail(i))
}

// UnmarshalJSON 接受字串或物件
func (i *Ingredient) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*i = Ingredient{Name: strings.TrimSpace(name)}
		return nil
	}
	type detail Ingredient
	var d detail
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*i = Ingredient(d)
	return nil
}

// ParsedRecipe 從 AI 輸出解析出的食譜
type ParsedRecipe struct {
	Title              string       `json:"title"`
	Description        string       `json:"description,omitempty"`
	Ingredients        []Ingredient `json:"ingredients"`
	Steps              []string     `json:"steps"`
	CookingTimeMinutes *int         `json:"cooking_time_minutes,omitempty"`
	MealType           MealType     `json:"meal_type,omitempty"`
	ChefAdvice         string       `json:"chef_advice,omitempty"`
	MiniAdvice         string       `json:"mini_advice,omitempty"`
}

// SearchText 將食譜所有文字欄位串接並轉為小寫，供限制比對使用
func (r *ParsedRecipe) SearchText() string {
	if r == nil {
		return ""
	}
	parts := []string{r.Title, r.Description}
	for _, ing := range r.Ingredients {
		parts = append(parts, ing.Name, ing.DisplayText, ing.Substitute)
	}
	parts = append(parts, r.Steps...)
	parts = append(parts, r.ChefAdvice, r.MiniAdvice)
	return strings.ToLower(strings.Join(parts, "\n"))
}
