package prompt

import (
	"strings"

	"meal-plan-generator/internal/core/profile"
)

const systemIntro = `You are a pediatric nutritionist and home cook. Produce exactly one recipe.`

const safetyRules = `### STRICT SAFETY RULES
- ALLERGIES: listed allergens are fully forbidden, including derived products. Suggest substitutes.
- AGE under 12 months: no salt, sugar, honey or whole milk.
- Never include an ingredient a member dislikes.
- STYLE: expert and concise.`

const freeAppendix = `Strict structure: title, 5-7 ingredients, 5-7 steps, one short tip. No long explanations.`

const premiumAppendix = `Warm tone, include a chef's tip. Respect every allergy of every member.`

const familyBalanceNote = `Balance the needs of all family members (different ages and allergies).`

const recipeSchema = `ANSWER WITH STRICT JSON ONLY:
{
  "title": "Dish name",
  "description": "One sentence",
  "mealType": "breakfast|lunch|snack|dinner",
  "cookingTimeMinutes": 20,
  "ingredients": [{"name": "Product", "displayText": "Product — 100 g", "canonicalAmount": 100, "canonicalUnit": "g", "substitute": ""}],
  "steps": ["Step text"],
  "chefAdvice": "Short tip"
}
canonicalUnit must be "g" or "ml"; use null canonicalAmount when the amount cannot be measured.`

// AgeCategory 年齡分類
type AgeCategory string

const (
	AgeInfant  AgeCategory = "infant"
	AgeToddler AgeCategory = "toddler"
	AgeSchool  AgeCategory = "school"
	AgeAdult   AgeCategory = "adult"
)

// CategoryFor 依月齡分類
func CategoryFor(months int) AgeCategory {
	switch {
	case months <= 12:
		return AgeInfant
	case months <= 60:
		return AgeToddler
	case months <= 216:
		return AgeSchool
	}
	return AgeAdult
}

var ageRules = map[AgeCategory]string{
	AgeInfant:  "Infant (up to 12 months): purees and complementary foods only, soft textures, no spices.",
	AgeToddler: "Toddler (1-5 years): soft food in small pieces, minimal salt, no deep frying or hot spices.",
	AgeSchool:  "School age (5-18 years): complete balanced menu, moderate spices.",
	AgeAdult:   "Adult: full adult menu, no texture or spice restrictions.",
}

// ageRulesFor 依最年幼成員決定年齡規則
func ageRulesFor(ctx profile.Context) string {
	youngest := -1
	for _, p := range ctx.Profiles() {
		if p.AgeMonths == nil {
			continue
		}
		if youngest < 0 || *p.AgeMonths < youngest {
			youngest = *p.AgeMonths
		}
	}
	if youngest < 0 {
		return ""
	}
	return strings.TrimSpace("AGE CATEGORY: " + ageRules[CategoryFor(youngest)])
}
