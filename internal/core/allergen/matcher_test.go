package allergen

import (
	"testing"

	"meal-plan-generator/internal/core/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cow s milk 200 г", Normalize("  Cow's MILK, 200 г!! "))
	assert.Equal(t, "мед", Normalize("Мёд"))
	assert.Equal(t, "", Normalize(" -- "))
}

func TestBuildTokenSetEmptyNeverBlocks(t *testing.T) {
	m := NewMatcher(nil)
	set := m.BuildTokenSet(nil)
	assert.True(t, set.Empty())
	assert.False(t, set.ContainsAnyToken("milk, eggs and peanuts").Hit)

	set = m.BuildTokenSet([]string{"", "   "})
	assert.True(t, set.Empty())
}

func TestDictionaryExpansion(t *testing.T) {
	m := NewMatcher(rules.Default())

	tests := []struct {
		name    string
		allergy string
		text    string
		hit     bool
	}{
		{"milk direct", "milk", "Pancakes with milk", true},
		{"milk synonym cheese", "milk", "grated cheddar cheese", true},
		{"dairy alias to cream", "dairy", "add sour cream", true},
		{"cmpa russian token", "CMPA", "творог 200 г", true},
		{"milk not in safe text", "milk", "apple and pear puree", false},
		{"butternut is not butter", "milk", "roasted butternut squash", false},
		{"peanut plural", "peanut", "Peanuts, crushed", true},
		{"nut does not match nutmeg", "nuts", "a pinch of nutmeg", false},
		{"tree nut stem", "nuts", "toasted almonds", true},
		{"multi word token", "nuts", "pine nuts salad", true},
		{"egg white alias contains egg", "egg white", "two eggs", true},
		{"honey inflected", "мёд", "ложка меда", true},
		{"honey exact russian", "мёд", "мед по вкусу", true},
		{"kuraga is not chicken", "курица", "компот из кураги", false},
		{"chicken stem", "курица", "куриное филе", true},
		{"fish stem", "fish", "fishcakes", true},
		{"unknown allergy falls back to words", "kiwi fruit", "sliced kiwi", true},
		{"unknown allergy phrase", "kiwi fruit", "banana", false},
		{"sulfites hyphen", "e-220", "contains E220", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := m.BuildTokenSet([]string{tt.allergy})
			hit := set.ContainsAnyToken(tt.text)
			assert.Equal(t, tt.hit, hit.Hit, "tokens=%v", set.Tokens())
			if tt.hit {
				assert.NotEmpty(t, hit.Token)
				assert.Equal(t, tt.allergy, hit.Source)
			}
		})
	}
}

func TestCompoundAndInflectedForms(t *testing.T) {
	m := NewMatcher(nil)

	tests := []struct {
		allergy string
		text    string
		hit     bool
	}{
		{"chicken", "Poultry stew with rice", true},
		{"курица", "Суп из мяса птицы", true},
		{"berries", "Blackcurrant compote", true},
		{"berries", "Currant jelly", true},
		{"berries", "Blackberry pie", true},
		{"berries", "Cranberry sauce", true},
		{"berries", "Gooseberries with sugar", true},
		{"berries", "Морс из клюквы", true},
		{"milk", "Простокваша с бананом", true},
		{"milk", "Cheesy omelet", true},
		{"milk", "Pasta with parmesan", true},
		{"milk", "Mozzarella sticks", true},
		{"milk", "Buttermilk pancakes", true},
		{"milk", "Салат с фетой", true},
		{"seafood", "Паста с мидиями", true},
		{"seafood", "Мидии в соусе", true},
		{"fish", "Grilled swordfish", true},
		{"fish", "Catfish nuggets", true},
		{"eggs", "Warm eggnog", true},
		{"eggs", "Roasted eggplant", false},
		{"gluten", "Wholewheat toast", true},
		{"gluten", "Shortbread cookies", true},
		{"gluten", "Buckwheat porridge", false},
		{"gluten", "Каша из овса", true},
		{"nuts", "Орешки к чаю", true},
		{"nuts", "Салат с грецкими", true},
	}

	for _, tt := range tests {
		t.Run(tt.allergy+"/"+tt.text, func(t *testing.T) {
			set := m.BuildTokenSet([]string{tt.allergy})
			assert.Equal(t, tt.hit, set.ContainsAnyToken(tt.text).Hit, "tokens=%v", set.Tokens())
		})
	}
}

func TestCompoundExceptionsFromRules(t *testing.T) {
	tables := rules.Default()
	tables.StemExceptions["*berr*"] = []string{"raspberryish"}
	m := NewMatcher(tables)

	set := m.CompileTokens([]string{"*berr*"}, "berries")
	assert.False(t, set.ContainsAnyToken("raspberryish flavour").Hit)
	assert.True(t, set.ContainsAnyToken("raspberry flavour").Hit)

	suffix := m.CompileTokens([]string{"*fish"}, "fish")
	assert.True(t, suffix.ContainsAnyToken("two swordfishes").Hit)
	assert.False(t, suffix.ContainsAnyToken("fishcake").Hit)

	hit := set.ContainsAnyToken("blackberry")
	assert.Equal(t, "berr", hit.Token)
}

func TestNormalizeAllergy(t *testing.T) {
	m := NewMatcher(nil)
	assert.Equal(t, "cow's milk protein", m.NormalizeAllergy("CMPA"))
	assert.Equal(t, "gluten", m.NormalizeAllergy("целиакия"))
	assert.Equal(t, "kiwi", m.NormalizeAllergy("  kiwi "))
}

func TestPhraseSetIsExact(t *testing.T) {
	m := NewMatcher(nil)
	set := m.PhraseSet([]string{"pea", "x", "green onion"}, 2)
	require.Equal(t, 2, set.Len())

	assert.False(t, set.ContainsAnyToken("peach jam").Hit)
	assert.True(t, set.ContainsAnyToken("peas and carrots").Hit)
	assert.True(t, set.ContainsAnyToken("Chopped green onions").Hit)
	assert.False(t, set.ContainsAnyToken("green tea with onion").Hit)
}

func TestCompileTokensAndMerge(t *testing.T) {
	m := NewMatcher(nil)
	a := m.CompileTokens([]string{"soup*", "stew"}, "heavy")
	b := m.CompileTokens([]string{"stew", "broth"}, "heavy")
	merged := a.Merge(b)
	assert.Equal(t, 3, merged.Len())

	hit := merged.ContainsAnyToken("Chicken Soup-puree")
	require.True(t, hit.Hit)
	assert.Equal(t, "soup", hit.Token)
	assert.Equal(t, "heavy", hit.Source)

	hits := merged.AllHits("stew in broth")
	assert.Len(t, hits, 2)
}
