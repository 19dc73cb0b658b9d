package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"meal-plan-generator/internal/api"
	"meal-plan-generator/internal/api/handlers"
	"meal-plan-generator/internal/core/job"
	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/core/pool"
	"meal-plan-generator/internal/infrastructure/config"
	"meal-plan-generator/internal/infrastructure/kv"
	"meal-plan-generator/internal/infrastructure/storage"
	"meal-plan-generator/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingFiller 每填一格時鐘前進 step
type tickingFiller struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (f *tickingFiller) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *tickingFiller) Fill(ctx context.Context, req pool.Request) (*pool.Selection, error) {
	f.mu.Lock()
	f.now = f.now.Add(f.step)
	f.mu.Unlock()
	title := fmt.Sprintf("%s %s", req.DayKey, req.MealType)
	return &pool.Selection{Source: plan.SourcePool, Recipe: &plan.StoredRecipe{ID: "r-" + title, Title: title}}, nil
}

type fixedReplacer struct{}

func (fixedReplacer) Replace(ctx context.Context, req pool.ReplaceRequest) (*pool.Selection, error) {
	if req.Tier == common.TierFree && req.PreferAI {
		return nil, common.ErrAINotAllowed
	}
	return &pool.Selection{Source: plan.SourceAI, Recipe: &plan.StoredRecipe{ID: "ai-1", Title: "Baked apples"}}, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	filler := &tickingFiller{now: time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC), step: 10 * time.Second}
	store := storage.NewMemoryStore()
	manager := job.NewManager(store, filler, nil, 120*time.Second).WithClock(filler.clock)

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	router, err := api.SetupRouter(cfg, &api.Services{Jobs: manager, Plans: store, Replacer: fixedReplacer{}})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

var family = []common.Profile{{ID: "kid", Name: "Mia", Allergies: []string{"egg"}}}

func TestDriverOverHTTP(t *testing.T) {
	srv := newServer(t)
	c := New(config.ClientConfig{BaseURL: srv.URL, RequestTimeout: 5 * time.Second})
	defer c.Close()

	var sleeps []time.Duration
	markers := kv.NewMemoryStore(config.CacheConfig{MaxSize: 10})
	d := job.NewDriver(c, markers, job.DriverConfig{AutoContinueAttempts: 5, ContinueBackoff: 2 * time.Second}).
		WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		})

	ctx := context.Background()
	got, err := d.Generate(ctx, job.StartRequest{
		Profiles: family,
		Selected: "kid",
		Tier:     common.TierPremium,
		Type:     plan.JobWeek,
		StartDay: "2026-03-02",
	})
	require.NoError(t, err)
	assert.True(t, got.Complete())
	assert.Equal(t, 28, got.ProgressDone)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps)

	latest, err := c.Latest(ctx, "kid", plan.JobWeek)
	require.NoError(t, err)
	assert.Equal(t, got.ID, latest.ID)

	day, err := c.Day(ctx, "kid", "2026-03-08")
	require.NoError(t, err)
	assert.Len(t, day.Slots, 4)
}

func TestErrorsKeepTheirCode(t *testing.T) {
	srv := newServer(t)
	c := New(config.ClientConfig{BaseURL: srv.URL})
	ctx := context.Background()

	_, err := c.Poll(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrJobNotFound)

	j, err := c.Start(ctx, job.StartRequest{Profiles: family, Type: plan.JobDay, StartDay: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, 4, j.ProgressTotal)
	require.NoError(t, c.Cancel(ctx, j.ID))
	assert.ErrorIs(t, c.Cancel(ctx, j.ID), common.ErrJobNotRunning)
	assert.ErrorIs(t, c.Continue(ctx, j.ID, 0), common.ErrJobNotResumable)
}

func TestReplace(t *testing.T) {
	srv := newServer(t)
	c := New(config.ClientConfig{BaseURL: srv.URL})
	ctx := context.Background()

	resp, err := c.Replace(ctx, handlers.ReplaceSlotRequest{
		Profiles: family, Tier: common.TierPremium, DayKey: "2026-03-02", MealType: common.MealLunch, PreferAI: true,
	})
	require.NoError(t, err)
	assert.Equal(t, plan.SourceAI, resp.Source)
	assert.Equal(t, "Baked apples", resp.Title)

	_, err = c.Replace(ctx, handlers.ReplaceSlotRequest{
		Profiles: family, Tier: common.TierFree, DayKey: "2026-03-02", MealType: common.MealLunch, PreferAI: true,
	})
	assert.ErrorIs(t, err, common.ErrAINotAllowed)
}

func TestTimeoutMapsToRemoteTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	c := New(config.ClientConfig{BaseURL: slow.URL, RequestTimeout: 50 * time.Millisecond})
	err := c.Run(context.Background(), "j1")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRemoteTimeout)
}

func TestUnstructuredErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(config.ClientConfig{BaseURL: srv.URL})
	_, err := c.Poll(context.Background(), "j1")
	require.Error(t, err)
	ce, ok := common.AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, ce.Status)
	assert.Contains(t, ce.Message, "bad gateway")
}
