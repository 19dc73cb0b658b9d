package job

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/core/pool"
	"meal-plan-generator/internal/infrastructure/storage"
	"meal-plan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const startDay = "2026-03-02"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeFiller 每次填入推進時鐘，標題為「日期 餐別」
type fakeFiller struct {
	mu      sync.Mutex
	clock   *fakeClock
	step    time.Duration
	calls   []pool.Request
	failAt  int
	failErr error
	onFill  func(i int)
}

func (f *fakeFiller) Fill(ctx context.Context, req pool.Request) (*pool.Selection, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.onFill != nil {
		f.onFill(i)
	}
	f.clock.advance(f.step)
	if f.failErr != nil && i == f.failAt {
		return nil, f.failErr
	}
	title := fmt.Sprintf("%s %s", req.DayKey, req.MealType)
	return &pool.Selection{Source: plan.SourcePool, Recipe: &plan.StoredRecipe{ID: "r-" + title, Title: title}}, nil
}

func (f *fakeFiller) requests() []pool.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pool.Request(nil), f.calls...)
}

func newTestManager(budget, step time.Duration) (*Manager, *storage.MemoryStore, *fakeFiller) {
	clock := newFakeClock()
	store := storage.NewMemoryStore()
	filler := &fakeFiller{clock: clock, step: step, failAt: -1}
	m := NewManager(store, filler, nil, budget).WithClock(clock.now)
	return m, store, filler
}

func weekRequest() StartRequest {
	return StartRequest{
		Profiles: []common.Profile{{ID: "kid", Name: "Mia", Allergies: []string{"milk"}}},
		Selected: "kid",
		Tier:     common.TierPremium,
		Type:     plan.JobWeek,
		StartDay: startDay,
	}
}

func TestWeekJobStopsOnTimeBudgetAndContinues(t *testing.T) {
	m, store, filler := newTestManager(120*time.Second, 10*time.Second)
	ctx := context.Background()

	job, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 28, job.ProgressTotal)
	assert.Equal(t, 0, job.ProgressDone)
	assert.Equal(t, plan.StatusRunning, job.Status)

	require.NoError(t, m.Run(ctx, job.ID))

	got, err := m.Poll(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusDone, got.Status)
	assert.Equal(t, plan.ErrorTimeBudget, got.ErrorText)
	assert.Equal(t, 12, got.ProgressDone)
	assert.True(t, got.Partial())
	assert.Equal(t, "2026-03-04", got.LastDayKey)
	require.Len(t, filler.requests(), 12)

	first, err := store.GetDay(ctx, "kid", startDay)
	require.NoError(t, err)
	firstBreakfast, _ := first.Slot(common.MealBreakfast)

	require.NoError(t, m.Continue(ctx, job.ID, got.ProgressDone))
	reqs := filler.requests()
	require.Len(t, reqs, 24)
	assert.Equal(t, "2026-03-05", reqs[12].DayKey)
	assert.Equal(t, common.MealBreakfast, reqs[12].MealType)
	assert.Len(t, reqs[12].ExcludeTitles, 12, "earlier slots are excluded after resuming")

	require.NoError(t, m.Continue(ctx, job.ID, 24))
	got, err = m.Poll(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.Complete())
	assert.Equal(t, 28, got.ProgressDone)
	assert.Empty(t, got.ErrorText)

	keys, _ := common.RollingDayKeys(startDay, 7)
	for _, k := range keys {
		d, err := store.GetDay(ctx, "kid", k)
		require.NoError(t, err)
		assert.Len(t, d.Slots, 4, k)
	}

	first, err = store.GetDay(ctx, "kid", startDay)
	require.NoError(t, err)
	again, _ := first.Slot(common.MealBreakfast)
	assert.Equal(t, firstBreakfast, again, "continuation never rewrites earlier slots")
}

func TestContinueFromEarlierIndexResumesAtProgress(t *testing.T) {
	m, _, filler := newTestManager(120*time.Second, 10*time.Second)
	ctx := context.Background()

	job, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, job.ID))

	require.NoError(t, m.Continue(ctx, job.ID, 5))
	reqs := filler.requests()
	require.Len(t, reqs, 24)
	assert.Equal(t, "2026-03-05", reqs[12].DayKey)
}

func TestContinueRejections(t *testing.T) {
	m, _, _ := newTestManager(120*time.Second, 10*time.Second)
	ctx := context.Background()

	job, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, job.ID))

	assert.ErrorIs(t, m.Continue(ctx, job.ID, 13), common.ErrInvalidRequest)
	assert.ErrorIs(t, m.Continue(ctx, "missing", 0), common.ErrJobNotFound)

	require.NoError(t, m.Continue(ctx, job.ID, 12))
	require.NoError(t, m.Continue(ctx, job.ID, 24))
	assert.ErrorIs(t, m.Continue(ctx, job.ID, 28), common.ErrJobNotResumable)
}

func TestCancel(t *testing.T) {
	m, _, _ := newTestManager(time.Minute, 0)
	ctx := context.Background()

	job, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)

	cancelled, err := m.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.FinishedAt)

	_, err = m.Cancel(ctx, job.ID)
	assert.ErrorIs(t, err, common.ErrJobNotRunning)
	assert.ErrorIs(t, m.Run(ctx, job.ID), common.ErrJobNotRunning)
	assert.ErrorIs(t, m.Continue(ctx, job.ID, 0), common.ErrJobNotResumable)
}

func TestCancelTakesEffectBetweenSlots(t *testing.T) {
	m, store, filler := newTestManager(time.Hour, time.Second)
	ctx := context.Background()

	job, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)
	filler.onFill = func(i int) {
		if i == 3 {
			_, err := m.Cancel(ctx, job.ID)
			require.NoError(t, err)
		}
	}
	require.NoError(t, m.Run(ctx, job.ID))

	got, err := m.Poll(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCancelled, got.Status)
	assert.Equal(t, 4, got.ProgressDone, "in-flight slot completes")
	assert.Len(t, filler.requests(), 4)

	d, err := store.GetDay(ctx, "kid", startDay)
	require.NoError(t, err)
	_, ok := d.Slot(common.MealDinner)
	assert.True(t, ok)
	next, err := store.GetDay(ctx, "kid", "2026-03-03")
	require.NoError(t, err)
	assert.Empty(t, next.Slots)
}

func TestStartSupersedesRunningJob(t *testing.T) {
	m, _, _ := newTestManager(time.Minute, 0)
	ctx := context.Background()

	old, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)
	day := weekRequest()
	day.Type = plan.JobDay
	dayJob, err := m.Start(ctx, day)
	require.NoError(t, err)

	fresh, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)

	got, err := m.Poll(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCancelled, got.Status)
	assert.Equal(t, plan.ErrorSuperseded, got.ErrorText)

	got, err = m.Poll(ctx, dayJob.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusRunning, got.Status, "other job types are untouched")

	latest, err := m.Latest(ctx, "kid", plan.JobWeek)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, latest.ID)
}

func TestHardErrorIsTerminal(t *testing.T) {
	m, _, filler := newTestManager(time.Hour, time.Second)
	filler.failAt = 2
	filler.failErr = common.ErrGenerationFailed
	ctx := context.Background()

	job, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, job.ID))

	got, err := m.Poll(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusError, got.Status)
	assert.Contains(t, got.ErrorText, "failed to generate valid recipe")
	assert.Equal(t, 2, got.ProgressDone)
	assert.ErrorIs(t, m.Continue(ctx, job.ID, 2), common.ErrJobNotResumable)
}

func TestProgressIsMonotonic(t *testing.T) {
	m, _, filler := newTestManager(time.Hour, time.Second)
	ctx := context.Background()

	job, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)

	var seen []int
	filler.onFill = func(i int) {
		got, err := m.Poll(ctx, job.ID)
		require.NoError(t, err)
		seen = append(seen, got.ProgressDone)
	}
	require.NoError(t, m.Run(ctx, job.ID))

	require.Len(t, seen, 28)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
		assert.LessOrEqual(t, seen[i], 28)
	}
}

func TestDayJobMealSubset(t *testing.T) {
	m, _, filler := newTestManager(time.Hour, 0)
	ctx := context.Background()

	req := weekRequest()
	req.Type = plan.JobDay
	req.MealTypes = []common.MealType{common.MealDinner, common.MealBreakfast, common.MealDinner}
	job, err := m.Start(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, job.ProgressTotal)

	require.NoError(t, m.Run(ctx, job.ID))
	reqs := filler.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, common.MealBreakfast, reqs[0].MealType)
	assert.Equal(t, common.MealDinner, reqs[1].MealType)
	assert.Equal(t, []string{startDay + " breakfast"}, reqs[1].ExcludeTitles)
}

func TestConciseLogKeepsJobLifecycle(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prevLogger, prevMode := common.Logger, common.LogMode
	common.SetLogger(zap.New(core))
	common.LogMode = "concise"
	t.Cleanup(func() { common.Logger, common.LogMode = prevLogger, prevMode })

	m, _, _ := newTestManager(time.Hour, 0)
	ctx := context.Background()
	req := weekRequest()
	req.Type = plan.JobDay
	job, err := m.Start(ctx, req)
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, job.ID))

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"Plan job started", "Plan job finished"}, msgs)
	finished := logs.FilterMessage("Plan job finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, string(plan.StatusDone), finished[0].ContextMap()["status"])
}

func TestStartValidation(t *testing.T) {
	m, _, _ := newTestManager(time.Hour, 0)
	ctx := context.Background()

	bad := weekRequest()
	bad.Type = "month"
	_, err := m.Start(ctx, bad)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	bad = weekRequest()
	bad.StartDay = "next tuesday"
	_, err = m.Start(ctx, bad)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	bad = weekRequest()
	bad.Type = plan.JobDay
	bad.MealTypes = []common.MealType{"brunch"}
	_, err = m.Start(ctx, bad)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	bad = weekRequest()
	bad.Profiles = nil
	_, err = m.Start(ctx, bad)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestFamilyJobOwner(t *testing.T) {
	m, _, _ := newTestManager(time.Hour, 0)
	req := weekRequest()
	req.Profiles = append(req.Profiles, common.Profile{ID: "dad", Name: "Tom"})
	req.Selected = "family"

	job, err := m.Start(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, plan.FamilyOwner, job.MemberID)

	owner, err := req.Owner()
	require.NoError(t, err)
	assert.Equal(t, plan.FamilyOwner, owner)
}

func TestRunThroughQueue(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemoryStore()
	q := NewQueue(2, 10)
	defer q.Close()
	m := NewManager(store, &fakeFiller{clock: clock, failAt: -1}, q, time.Hour).WithClock(clock.now)
	ctx := context.Background()

	job, err := m.Start(ctx, weekRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, job.ID))

	require.Eventually(t, func() bool {
		got, err := m.Poll(ctx, job.ID)
		return err == nil && got.Complete()
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return q.Status().ProcessedCount == 1 }, time.Second, 10*time.Millisecond)
}
