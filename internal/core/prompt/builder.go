package prompt

import (
	"fmt"
	"strings"

	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/pkg/common"
)

// DefaultExcludeLimit 提示詞中最多列出的排除標題數
const DefaultExcludeLimit = 15

const (
	freeMaxTokens    = 1200
	premiumMaxTokens = 2500
)

// Options 單次生成的限制
type Options struct {
	MealType      common.MealType
	ExcludeTitles []string
	Tier          common.Tier
	DayKey        string
}

// Request 交給遠端生成器的內容：提示詞與結構化資料
type Request struct {
	System    string          `json:"system"`
	User      string          `json:"user"`
	Payload   profile.Payload `json:"payload"`
	MealType  common.MealType `json:"meal_type,omitempty"`
	Exclude   []string        `json:"exclude,omitempty"`
	MaxTokens int             `json:"max_tokens"`
}

// Builder 組合提示詞
type Builder struct {
	excludeLimit int
}

// NewBuilder 創建提示詞建構器；excludeLimit <= 0 時使用預設值
func NewBuilder(excludeLimit int) *Builder {
	if excludeLimit <= 0 {
		excludeLimit = DefaultExcludeLimit
	}
	return &Builder{excludeLimit: excludeLimit}
}

// Build 由成員內容與選項組出完整請求
func (b *Builder) Build(ctx profile.Context, opts Options) Request {
	exclude := LimitExclusions(opts.ExcludeTitles, b.excludeLimit)

	var sys strings.Builder
	sys.WriteString(systemIntro)
	sys.WriteString("\n")
	sys.WriteString(safetyRules)
	if rules := ageRulesFor(ctx); rules != "" {
		sys.WriteString("\n")
		sys.WriteString(rules)
	}
	sys.WriteString("\n")
	if opts.Tier.AllowsAI() {
		sys.WriteString(premiumAppendix)
	} else {
		sys.WriteString(freeAppendix)
	}
	if ctx.IsFamily() {
		sys.WriteString("\n")
		sys.WriteString(familyBalanceNote)
	}
	sys.WriteString("\n\n")
	sys.WriteString(recipeSchema)

	var user strings.Builder
	user.WriteString(ContextBlock(ctx))
	if opts.MealType != "" {
		fmt.Fprintf(&user, "\n\nMeal: %s. The dish must be appropriate for %s.", opts.MealType, opts.MealType)
	}
	if opts.DayKey != "" {
		fmt.Fprintf(&user, "\nDay: %s.", opts.DayKey)
	}
	if len(exclude) > 0 {
		user.WriteString("\nDo not repeat these dishes: ")
		user.WriteString(strings.Join(exclude, "; "))
		user.WriteString(".")
	}

	maxTokens := freeMaxTokens
	if opts.Tier.AllowsAI() {
		maxTokens = premiumMaxTokens
	}

	return Request{
		System:    sys.String(),
		User:      user.String(),
		Payload:   profile.DerivePayload(ctx),
		MealType:  opts.MealType,
		Exclude:   exclude,
		MaxTokens: maxTokens,
	}
}

// LimitExclusions 去除重複（不分大小寫）與空白，保留最近的 limit 筆
func LimitExclusions(titles []string, limit int) []string {
	seen := make(map[string]bool, len(titles))
	var out []string
	for i := len(titles) - 1; i >= 0; i-- {
		t := common.NormalizeSpace(titles[i])
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	// 還原原本的先後順序
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ContextBlock 將成員資料寫成提示詞區塊；沒有成員時回傳空字串
func ContextBlock(ctx profile.Context) string {
	switch {
	case ctx.Mode == profile.ModeSingle && ctx.Target != nil:
		return "Generation context (single):\n" + profileBlock(*ctx.Target)
	case ctx.IsFamily() && len(ctx.Targets) > 0:
		blocks := make([]string, 0, len(ctx.Targets))
		for _, p := range ctx.Targets {
			blocks = append(blocks, profileBlock(p))
		}
		return "Generation context (family):\nMembers:\n" + strings.Join(blocks, "\n") +
			"\n\nGenerate a recipe suitable for every member of the family, respecting all allergies and preferences."
	}
	return ""
}

func profileBlock(p common.Profile) string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "-"
	}
	lines := []string{
		"- name: " + name,
	}
	if age := profile.FormatAge(p.AgeMonths); age != "" {
		lines = append(lines, "  age: "+age)
	}
	lines = append(lines, "  allergies: ["+quoteList(p.Allergies)+"]")
	if prefs := quoteList(p.Preferences); prefs != "" {
		lines = append(lines, "  preferences: ["+prefs+"]")
	}
	if dislikes := quoteList(p.Dislikes); dislikes != "" {
		lines = append(lines, "  dislikes: ["+dislikes+"]")
	}
	if likes := quoteList(p.Likes); likes != "" {
		lines = append(lines, "  likes: ["+likes+"]")
	}
	if d := difficultyLabel(p.Difficulty); d != "" {
		lines = append(lines, "  difficulty: "+d)
	}
	return strings.Join(lines, "\n")
}

func quoteList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			quoted = append(quoted, fmt.Sprintf("%q", s))
		}
	}
	return strings.Join(quoted, ", ")
}

func difficultyLabel(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "":
		return ""
	case "easy":
		return "simple"
	case "medium":
		return "moderate"
	case "any":
		return "any"
	}
	return strings.TrimSpace(d)
}
