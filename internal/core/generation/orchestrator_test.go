package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"meal-plan-generator/internal/core/allergen"
	"meal-plan-generator/internal/core/profile"
	"meal-plan-generator/internal/core/recipe"
	"meal-plan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(allergies ...string) profile.Context {
	p := common.Profile{ID: "kid", Name: "Mia", Allergies: allergies}
	return profile.Context{Mode: profile.ModeSingle, Target: &p, Targets: []common.Profile{p}}
}

func safeRecipe(title string) *common.ParsedRecipe {
	return &common.ParsedRecipe{
		Title:       title,
		Ingredients: []common.Ingredient{{Name: "apple"}},
		Steps:       []string{"peel", "bake"},
	}
}

func milkRecipe() *common.ParsedRecipe {
	r := safeRecipe("Milk pudding")
	r.Ingredients = append(r.Ingredients, common.Ingredient{Name: "milk"})
	return r
}

// sequence 依序回傳預先準備的結果
func sequence(results ...func() (*common.ParsedRecipe, error)) (RemoteFunc, *int) {
	calls := 0
	return func(ctx context.Context, gctx profile.Context) (*common.ParsedRecipe, error) {
		i := calls
		calls++
		if i >= len(results) {
			i = len(results) - 1
		}
		return results[i]()
	}, &calls
}

func ok(r *common.ParsedRecipe) func() (*common.ParsedRecipe, error) {
	return func() (*common.ParsedRecipe, error) { return r, nil }
}

func fail(err error) func() (*common.ParsedRecipe, error) {
	return func() (*common.ParsedRecipe, error) { return nil, err }
}

func newTestOrchestrator(policy Policy) (*Orchestrator, *[]time.Duration) {
	var slept []time.Duration
	o := NewOrchestrator(recipe.NewValidator(allergen.NewMatcher(nil)), policy).
		WithSleep(func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		})
	return o, &slept
}

func TestGenerateSucceedsFirstAttempt(t *testing.T) {
	o, _ := newTestOrchestrator(DefaultPolicy())
	remote, calls := sequence(ok(safeRecipe("Baked apple")))

	res, err := o.Generate(context.Background(), testContext("milk"), remote)
	require.NoError(t, err)
	assert.Equal(t, "Baked apple", res.Recipe.Title)
	assert.Equal(t, 1, *calls)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, OutcomeOK, res.Attempts[0].Outcome)
}

func TestGenerateSucceedsOnThirdAttempt(t *testing.T) {
	o, slept := newTestOrchestrator(Policy{MaxAttempts: 3, Backoff: time.Second})
	remote, calls := sequence(
		fail(nil),
		ok(milkRecipe()),
		ok(safeRecipe("Baked apple")),
	)

	res, err := o.Generate(context.Background(), testContext("milk"), remote)
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, OutcomeParseFailed, res.Attempts[0].Outcome)
	assert.Equal(t, OutcomeValidationFailed, res.Attempts[1].Outcome)
	assert.Contains(t, res.Attempts[1].Errors, "Allergy violation: milk")
	assert.Equal(t, OutcomeOK, res.Attempts[2].Outcome)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)
}

func TestGenerateAlwaysFails(t *testing.T) {
	o, _ := newTestOrchestrator(DefaultPolicy())
	remote, calls := sequence(ok(milkRecipe()))

	res, err := o.Generate(context.Background(), testContext("milk"), remote)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrGenerationFailed)
	assert.Equal(t, 3, *calls)
	assert.Contains(t, err.Error(), "failed to generate valid recipe")

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Len(t, genErr.Attempts, 3)
}

func TestGenerateRemoteErrorsAreRetried(t *testing.T) {
	o, _ := newTestOrchestrator(Policy{MaxAttempts: 2})
	remote, calls := sequence(
		fail(errors.New("connection reset")),
		fail(common.ErrParseFailed.WithMessage("prose")),
	)

	_, err := o.Generate(context.Background(), testContext(), remote)
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 2, *calls)
	assert.Equal(t, OutcomeRemoteFailed, genErr.Attempts[0].Outcome)
	assert.Equal(t, OutcomeParseFailed, genErr.Attempts[1].Outcome)
}

func TestGenerateTimeoutIsTerminal(t *testing.T) {
	o, _ := newTestOrchestrator(DefaultPolicy())
	remote, calls := sequence(fail(common.ErrRemoteTimeout.Wrap(context.DeadlineExceeded)))

	_, err := o.Generate(context.Background(), testContext(), remote)
	assert.ErrorIs(t, err, common.ErrRemoteTimeout)
	assert.Equal(t, 1, *calls)
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	o, _ := newTestOrchestrator(DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	remote, calls := sequence(ok(safeRecipe("Baked apple")))

	_, err := o.Generate(ctx, testContext(), remote)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, *calls)
}

func TestGenerateAppliesChecks(t *testing.T) {
	o, _ := newTestOrchestrator(DefaultPolicy())
	rules := recipe.NewMealRules(allergen.NewMatcher(nil))
	remote, _ := sequence(
		ok(safeRecipe("Chicken soup")),
		ok(safeRecipe("Oatmeal with apple")),
		ok(safeRecipe("Apple pancakes")),
	)

	res, err := o.Generate(context.Background(), testContext(), remote,
		SanityCheck(rules, common.MealBreakfast),
		ExcludeCheck([]string{"oatmeal WITH apple"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "Apple pancakes", res.Recipe.Title)
	require.Len(t, res.Attempts, 3)
	assert.Contains(t, res.Attempts[0].Errors[0], "Meal type violation")
	assert.Contains(t, res.Attempts[1].Errors[0], "Duplicate recipe")
}

func TestNewOrchestratorDefaultsAttempts(t *testing.T) {
	o := NewOrchestrator(recipe.NewValidator(allergen.NewMatcher(nil)), Policy{})
	assert.Equal(t, 3, o.Policy().MaxAttempts)
}
