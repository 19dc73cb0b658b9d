package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"meal-plan-generator/internal/core/ai/provider"
	"meal-plan-generator/internal/core/allergen"
	"meal-plan-generator/internal/core/prompt"
	"meal-plan-generator/internal/core/recipe"
	"meal-plan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemote(p provider.Provider, timeout time.Duration) *RemoteGenerator {
	return NewRemoteGenerator(p, prompt.NewBuilder(0), recipe.NewParser(allergen.NewMatcher(nil)), timeout)
}

func TestRemoteGeneratorParsesResponse(t *testing.T) {
	var seen *provider.Request
	p := provider.Func(func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
		seen = req
		return &provider.Response{Content: "```json\n{\"title\":\"Pumpkin porridge\",\"ingredients\":[\"pumpkin\",\"millet\"],\"steps\":[\"boil\",\"mash\"],\"mealType\":\"lunch\"}\n```\nEnjoy!"}, nil
	})
	g := newRemote(p, time.Second)

	r, display, err := g.GenerateOnce(context.Background(), testContext("milk"), prompt.Options{MealType: common.MealBreakfast, ExcludeTitles: []string{"Omelette"}})
	require.NoError(t, err)
	assert.Equal(t, "Pumpkin porridge", r.Title)
	assert.Equal(t, common.MealBreakfast, r.MealType, "slot meal type wins")
	assert.Equal(t, "Enjoy!", display)

	require.NotNil(t, seen)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, provider.RoleSystem, seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[1].Content, "Omelette")
	assert.Contains(t, seen.Messages[1].Content, `"memberData"`)
	assert.True(t, seen.JSONMode)
}

func TestRemoteGeneratorNoRecipe(t *testing.T) {
	p := provider.Func(func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
		return &provider.Response{Content: "I am not able to help with that."}, nil
	})
	_, _, err := newRemote(p, 0).GenerateOnce(context.Background(), testContext(), prompt.Options{})
	assert.ErrorIs(t, err, common.ErrParseFailed)
}

func TestRemoteGeneratorTimeout(t *testing.T) {
	p := provider.Func(func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, _, err := newRemote(p, 10*time.Millisecond).GenerateOnce(context.Background(), testContext(), prompt.Options{})
	assert.ErrorIs(t, err, common.ErrRemoteTimeout)
}

func TestRemoteGeneratorUnavailable(t *testing.T) {
	g := newRemote(nil, 0)
	assert.False(t, g.Available())
	_, err := g.Func(prompt.Options{})(context.Background(), testContext())
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)
}

func TestRemoteGeneratorWithOrchestrator(t *testing.T) {
	calls := 0
	p := provider.Func(func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("upstream 502")
		}
		return &provider.Response{Content: `{"title":"Apple crumble","ingredients":["apple","oats"],"steps":["slice","bake"]}`}, nil
	})
	o, _ := newTestOrchestrator(DefaultPolicy())

	res, err := o.Generate(context.Background(), testContext(), newRemote(p, time.Second).Func(prompt.Options{MealType: common.MealSnack}))
	require.NoError(t, err)
	assert.Equal(t, "Apple crumble", res.Recipe.Title)
	assert.Equal(t, 2, calls)
}
