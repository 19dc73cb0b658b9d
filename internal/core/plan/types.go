// Package plan 定義餐點計畫、食譜池與生成任務的資料與儲存介面
package plan

import (
	"strings"
	"time"

	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/pkg/common"
)

// FamilyOwner 全家共用計畫與任務的擁有者鍵
const FamilyOwner = "family"

// OwnerKey 計畫與任務的擁有者：單人為成員 ID，全家為 "family"
func OwnerKey(ctx profile.Context) string {
	if id := ctx.MemberID(); id != "" {
		return id
	}
	return FamilyOwner
}

// SlotSource 餐點來源
type SlotSource string

const (
	SourcePool   SlotSource = "pool"
	SourceAI     SlotSource = "ai"
	SourceManual SlotSource = "manual"
)

// SlotAssignment 某一天某一餐的內容
type SlotAssignment struct {
	MealType common.MealType `json:"meal_type"`
	RecipeID string          `json:"recipe_id"`
	Title    string          `json:"title"`
	Source   SlotSource      `json:"source,omitempty"`
	FilledAt time.Time       `json:"filled_at"`
}

// DayPlan 某成員某一天的計畫，最多四餐
type DayPlan struct {
	MemberID  string                             `json:"member_id"`
	DayKey    string                             `json:"day_key"`
	Slots     map[common.MealType]SlotAssignment `json:"slots"`
	UpdatedAt time.Time                          `json:"updated_at"`
}

// NewDayPlan 建立空的計畫
func NewDayPlan(memberID, dayKey string) *DayPlan {
	return &DayPlan{MemberID: memberID, DayKey: dayKey, Slots: make(map[common.MealType]SlotAssignment)}
}

// Slot 取得某一餐
func (d *DayPlan) Slot(meal common.MealType) (SlotAssignment, bool) {
	if d == nil {
		return SlotAssignment{}, false
	}
	s, ok := d.Slots[meal]
	return s, ok && s.RecipeID != ""
}

// Provenance 食譜來源；只有受信任的來源會進入食譜池
type Provenance string

const (
	ProvenanceSeed   Provenance = "seed"
	ProvenanceManual Provenance = "manual"
	ProvenanceWeekAI Provenance = "week_ai"
	ProvenanceChatAI Provenance = "chat_ai"
)

// StoredRecipe 已儲存的食譜
type StoredRecipe struct {
	ID          string              `json:"id"`
	MemberID    string              `json:"member_id,omitempty"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	MealType    string              `json:"meal_type,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Source      Provenance          `json:"source"`
	Recipe      common.ParsedRecipe `json:"recipe"`
	CreatedAt   time.Time           `json:"created_at"`
}

// SearchText 用於限制檢查的全文
func (r *StoredRecipe) SearchText() string {
	parts := []string{r.Title, r.Description, r.Recipe.SearchText()}
	return strings.ToLower(strings.Join(parts, " "))
}

// FromParsed 將生成結果轉為待儲存的食譜
func FromParsed(id, memberID string, source Provenance, r *common.ParsedRecipe, now time.Time) *StoredRecipe {
	stored := &StoredRecipe{
		ID:          id,
		MemberID:    memberID,
		Title:       r.Title,
		Description: r.Description,
		MealType:    string(r.MealType),
		Source:      source,
		Recipe:      *r,
		CreatedAt:   now,
	}
	if r.MealType != "" {
		stored.Tags = []string{string(source) + "_" + string(r.MealType)}
	}
	return stored
}

// CandidateQuery 食譜池查詢條件
type CandidateQuery struct {
	// MemberID 成員本身與全家共用（空字串）的食譜都會回傳
	MemberID string
	Sources  []Provenance
	Limit    int
}
