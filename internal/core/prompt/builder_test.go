package prompt

import (
	"fmt"
	"testing"

	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestBuildSingle(t *testing.T) {
	kid := common.Profile{ID: "kid", Name: "Mia", AgeMonths: intPtr(10), Allergies: []string{"milk"}, Dislikes: []string{"onion"}, Difficulty: "easy"}
	ctx := profile.Context{Mode: profile.ModeSingle, Target: &kid, Targets: []common.Profile{kid}}

	req := NewBuilder(0).Build(ctx, Options{MealType: common.MealBreakfast, ExcludeTitles: []string{"Oat porridge"}, Tier: common.TierFree})

	assert.Contains(t, req.User, "Generation context (single):")
	assert.Contains(t, req.User, `allergies: ["milk"]`)
	assert.Contains(t, req.User, `dislikes: ["onion"]`)
	assert.Contains(t, req.User, "age: 10 mo")
	assert.Contains(t, req.User, "difficulty: simple")
	assert.Contains(t, req.User, "Meal: breakfast")
	assert.Contains(t, req.User, "Do not repeat these dishes: Oat porridge.")
	assert.Contains(t, req.System, "Infant")
	assert.Contains(t, req.System, freeAppendix)
	assert.Contains(t, req.System, `"canonicalUnit"`)
	assert.Equal(t, freeMaxTokens, req.MaxTokens)
	assert.False(t, req.Payload.TargetIsFamily)
}

func TestBuildFamily(t *testing.T) {
	a := common.Profile{ID: "a", Name: "Ann", AgeMonths: intPtr(40), Allergies: []string{"eggs"}}
	b := common.Profile{ID: "b", Name: "Bob", AgeMonths: intPtr(400), Preferences: []string{"vegetarian"}}
	ctx := profile.Context{Mode: profile.ModeFamily, Targets: []common.Profile{a, b}}

	req := NewBuilder(5).Build(ctx, Options{Tier: common.TierPremium})
	assert.Contains(t, req.User, "Generation context (family):")
	assert.Contains(t, req.User, "- name: Ann")
	assert.Contains(t, req.User, "- name: Bob")
	assert.Contains(t, req.User, `preferences: ["vegetarian"]`)
	assert.Contains(t, req.System, familyBalanceNote)
	assert.Contains(t, req.System, "Toddler")
	assert.Equal(t, premiumMaxTokens, req.MaxTokens)
	assert.True(t, req.Payload.TargetIsFamily)
	assert.NotContains(t, req.User, "Do not repeat")
}

func TestLimitExclusions(t *testing.T) {
	var titles []string
	for i := 0; i < 20; i++ {
		titles = append(titles, fmt.Sprintf("Dish %d", i))
	}
	titles = append(titles, "dish 19", "  ", "")

	out := LimitExclusions(titles, DefaultExcludeLimit)
	require.Len(t, out, DefaultExcludeLimit)
	assert.Equal(t, "Dish 5", out[0])
	assert.Equal(t, "dish 19", out[len(out)-1])
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, AgeInfant, CategoryFor(12))
	assert.Equal(t, AgeToddler, CategoryFor(13))
	assert.Equal(t, AgeSchool, CategoryFor(100))
	assert.Equal(t, AgeAdult, CategoryFor(300))
}

func TestContextBlockEmpty(t *testing.T) {
	assert.Equal(t, "", ContextBlock(profile.Context{}))
}
