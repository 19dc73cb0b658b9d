package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/infrastructure/config"
	"meal-plan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "plan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// eachStore 對兩種實作執行相同的測試
func eachStore(t *testing.T, fn func(t *testing.T, s plan.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLite(t)) })
}

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newJob(id string, created time.Time) *plan.GenerationJob {
	return &plan.GenerationJob{
		ID:            id,
		Type:          plan.JobWeek,
		MemberID:      "kid",
		Status:        plan.StatusRunning,
		ProgressTotal: 28,
		Params: plan.JobParams{
			Profiles:  []common.Profile{{ID: "kid", Name: "Mia", Allergies: []string{"milk"}}},
			Tier:      common.TierPremium,
			DayKeys:   []string{"2026-03-02"},
			MealTypes: common.MealTypes,
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestJobLifecycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s plan.Store) {
		ctx := context.Background()

		_, err := s.GetJob(ctx, "missing")
		assert.ErrorIs(t, err, common.ErrJobNotFound)

		job := newJob("j1", base)
		require.NoError(t, s.CreateJob(ctx, job))
		assert.ErrorIs(t, s.CreateJob(ctx, job), common.ErrConflict)

		job.ProgressDone = 12
		job.Status = plan.StatusDone
		job.ErrorText = plan.ErrorTimeBudget
		job.LastDayKey = "2026-03-04"
		finished := base.Add(time.Minute)
		job.FinishedAt = &finished
		job.UpdatedAt = finished
		require.NoError(t, s.UpdateJob(ctx, job))

		got, err := s.GetJob(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, 12, got.ProgressDone)
		assert.True(t, got.Partial())
		assert.Equal(t, "2026-03-04", got.LastDayKey)
		require.NotNil(t, got.FinishedAt)
		assert.True(t, finished.Equal(*got.FinishedAt))
		assert.Equal(t, []string{"milk"}, got.Params.Profiles[0].Allergies)
		assert.Equal(t, 4, len(got.Params.MealTypes))

		assert.ErrorIs(t, s.UpdateJob(ctx, newJob("nope", base)), common.ErrJobNotFound)
	})
}

func TestLatestAndRunningJobs(t *testing.T) {
	eachStore(t, func(t *testing.T, s plan.Store) {
		ctx := context.Background()

		_, err := s.LatestJob(ctx, "kid", plan.JobWeek)
		assert.ErrorIs(t, err, common.ErrJobNotFound)

		older := newJob("old", base)
		older.Status = plan.StatusCancelled
		require.NoError(t, s.CreateJob(ctx, older))
		require.NoError(t, s.CreateJob(ctx, newJob("new", base.Add(time.Second))))
		same := newJob("same-time", base.Add(time.Second))
		same.Type = plan.JobDay
		require.NoError(t, s.CreateJob(ctx, same))

		latest, err := s.LatestJob(ctx, "kid", plan.JobWeek)
		require.NoError(t, err)
		assert.Equal(t, "new", latest.ID)

		running, err := s.RunningJobs(ctx, "kid", plan.JobWeek)
		require.NoError(t, err)
		require.Len(t, running, 1)
		assert.Equal(t, "new", running[0].ID)

		running, err = s.RunningJobs(ctx, "other", plan.JobWeek)
		require.NoError(t, err)
		assert.Empty(t, running)
	})
}

func TestSlotsOverwrite(t *testing.T) {
	eachStore(t, func(t *testing.T, s plan.Store) {
		ctx := context.Background()

		day, err := s.GetDay(ctx, "kid", "2026-03-02")
		require.NoError(t, err)
		assert.Empty(t, day.Slots)

		require.NoError(t, s.SetSlot(ctx, "kid", "2026-03-02", plan.SlotAssignment{
			MealType: common.MealBreakfast, RecipeID: "r1", Title: "Oatmeal", Source: plan.SourcePool, FilledAt: base,
		}))
		require.NoError(t, s.SetSlot(ctx, "kid", "2026-03-02", plan.SlotAssignment{
			MealType: common.MealBreakfast, RecipeID: "r2", Title: "Pancakes", Source: plan.SourceAI, FilledAt: base.Add(time.Hour),
		}))
		require.NoError(t, s.SetSlot(ctx, "kid", "2026-03-02", plan.SlotAssignment{
			MealType: common.MealLunch, RecipeID: "r3", Title: "Soup", FilledAt: base,
		}))

		day, err = s.GetDay(ctx, "kid", "2026-03-02")
		require.NoError(t, err)
		assert.Len(t, day.Slots, 2)
		slot, ok := day.Slot(common.MealBreakfast)
		require.True(t, ok)
		assert.Equal(t, "r2", slot.RecipeID)
		assert.Equal(t, plan.SourceAI, slot.Source)
		assert.True(t, base.Add(time.Hour).Equal(day.UpdatedAt))

		other, err := s.GetDay(ctx, plan.FamilyOwner, "2026-03-02")
		require.NoError(t, err)
		assert.Empty(t, other.Slots)

		err = s.SetSlot(ctx, "kid", "2026-03-02", plan.SlotAssignment{MealType: "brunch", RecipeID: "x"})
		assert.ErrorIs(t, err, common.ErrInvalidRequest)
	})
}

func TestRecipesAndCandidates(t *testing.T) {
	eachStore(t, func(t *testing.T, s plan.Store) {
		ctx := context.Background()
		mins := 20

		save := func(id, member string, src plan.Provenance, at time.Time) {
			r := plan.FromParsed(id, member, src, &common.ParsedRecipe{
				Title:              "Recipe " + id,
				Ingredients:        []common.Ingredient{{Name: "apple"}, {Name: "oats", DisplayText: "oats — 40 g"}},
				Steps:              []string{"mix", "bake"},
				CookingTimeMinutes: &mins,
				MealType:           common.MealBreakfast,
			}, at)
			require.NoError(t, s.SaveRecipe(ctx, r))
		}
		save("a", "", plan.ProvenanceSeed, base)
		save("b", "kid", plan.ProvenanceWeekAI, base.Add(time.Minute))
		save("c", "other", plan.ProvenanceWeekAI, base.Add(2*time.Minute))
		save("d", "kid", plan.ProvenanceChatAI, base.Add(3*time.Minute))

		got, err := s.GetRecipe(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "Recipe b", got.Title)
		assert.Equal(t, []string{"week_ai_breakfast"}, got.Tags)
		require.Len(t, got.Recipe.Ingredients, 2)
		assert.Equal(t, "oats — 40 g", got.Recipe.Ingredients[1].DisplayText)
		require.NotNil(t, got.Recipe.CookingTimeMinutes)
		assert.Equal(t, 20, *got.Recipe.CookingTimeMinutes)

		_, err = s.GetRecipe(ctx, "zzz")
		assert.ErrorIs(t, err, common.ErrNotFound)

		list, err := s.ListCandidates(ctx, plan.CandidateQuery{
			MemberID: "kid",
			Sources:  []plan.Provenance{plan.ProvenanceSeed, plan.ProvenanceWeekAI},
		})
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, r := range list {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []string{"b", "a"}, ids)

		list, err = s.ListCandidates(ctx, plan.CandidateQuery{MemberID: "kid", Limit: 1})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "d", list[0].ID)
	})
}

func TestOpen(t *testing.T) {
	s, err := Open(config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.StorageConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x", "plan.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.StorageConfig{Driver: "postgres"})
	assert.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plan.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateJob(ctx, newJob("j1", base)))
	require.NoError(t, s.Close())

	// 第二次開啟時遷移已是最新版本
	require.NoError(t, RunMigrations(path))

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "kid", got.MemberID)
}
