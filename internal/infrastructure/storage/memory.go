// Package storage 實作任務、每日計畫與食譜的儲存層
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/pkg/common"
)

// MemoryStore 記憶體儲存，單機開發與測試使用
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*plan.GenerationJob
	days    map[string]*plan.DayPlan
	recipes map[string]*plan.StoredRecipe
	seq     map[string]int64
	next    int64
}

// NewMemoryStore 創建記憶體儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*plan.GenerationJob),
		days:    make(map[string]*plan.DayPlan),
		recipes: make(map[string]*plan.StoredRecipe),
		seq:     make(map[string]int64),
	}
}

func dayKey(memberID, day string) string {
	return memberID + "|" + day
}

// order 記錄插入順序，建立時間相同時作為排序依據
func (s *MemoryStore) order(id string) {
	if _, ok := s.seq[id]; !ok {
		s.next++
		s.seq[id] = s.next
	}
}

// CreateJob 建立任務
func (s *MemoryStore) CreateJob(ctx context.Context, job *plan.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return common.ErrConflict.WithMessage("job already exists: " + job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	s.order("job:" + job.ID)
	return nil
}

// GetJob 讀取任務
func (s *MemoryStore) GetJob(ctx context.Context, id string) (*plan.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, common.ErrJobNotFound
	}
	return job.Clone(), nil
}

// UpdateJob 更新任務
func (s *MemoryStore) UpdateJob(ctx context.Context, job *plan.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return common.ErrJobNotFound
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// LatestJob 最新建立的任務
func (s *MemoryStore) LatestJob(ctx context.Context, memberID string, jobType plan.JobType) (*plan.GenerationJob, error) {
	jobs := s.matchingJobs(memberID, jobType, false)
	if len(jobs) == 0 {
		return nil, common.ErrJobNotFound
	}
	return jobs[0], nil
}

// RunningJobs 執行中的任務
func (s *MemoryStore) RunningJobs(ctx context.Context, memberID string, jobType plan.JobType) ([]*plan.GenerationJob, error) {
	return s.matchingJobs(memberID, jobType, true), nil
}

func (s *MemoryStore) matchingJobs(memberID string, jobType plan.JobType, runningOnly bool) []*plan.GenerationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*plan.GenerationJob
	for _, job := range s.jobs {
		if job.MemberID != memberID || job.Type != jobType {
			continue
		}
		if runningOnly && job.Status != plan.StatusRunning {
			continue
		}
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq["job:"+out[i].ID] > s.seq["job:"+out[j].ID]
	})
	return out
}

// GetDay 讀取每日計畫
func (s *MemoryStore) GetDay(ctx context.Context, memberID, day string) (*plan.DayPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[dayKey(memberID, day)]
	if !ok {
		return plan.NewDayPlan(memberID, day), nil
	}
	out := plan.NewDayPlan(memberID, day)
	out.UpdatedAt = d.UpdatedAt
	for k, v := range d.Slots {
		out.Slots[k] = v
	}
	return out, nil
}

// SetSlot 寫入某一餐，已有內容時覆寫
func (s *MemoryStore) SetSlot(ctx context.Context, memberID, day string, slot plan.SlotAssignment) error {
	if !slot.MealType.Valid() {
		return common.ErrInvalidRequest.WithMessage("invalid meal type: " + string(slot.MealType))
	}
	if slot.FilledAt.IsZero() {
		slot.FilledAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey(memberID, day)
	d, ok := s.days[key]
	if !ok {
		d = plan.NewDayPlan(memberID, day)
		s.days[key] = d
	}
	d.Slots[slot.MealType] = slot
	if slot.FilledAt.After(d.UpdatedAt) {
		d.UpdatedAt = slot.FilledAt
	}
	return nil
}

// SaveRecipe 儲存食譜
func (s *MemoryStore) SaveRecipe(ctx context.Context, r *plan.StoredRecipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	cp.Tags = append([]string(nil), r.Tags...)
	s.recipes[r.ID] = &cp
	s.order("recipe:" + r.ID)
	return nil
}

// GetRecipe 讀取食譜
func (s *MemoryStore) GetRecipe(ctx context.Context, id string) (*plan.StoredRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return nil, common.ErrNotFound.WithMessage("recipe not found: " + id)
	}
	cp := *r
	return &cp, nil
}

// ListCandidates 食譜池候選
func (s *MemoryStore) ListCandidates(ctx context.Context, q plan.CandidateQuery) ([]*plan.StoredRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make(map[plan.Provenance]bool, len(q.Sources))
	for _, src := range q.Sources {
		sources[src] = true
	}

	var out []*plan.StoredRecipe
	for _, r := range s.recipes {
		if r.MemberID != q.MemberID && r.MemberID != "" {
			continue
		}
		if len(sources) > 0 && !sources[r.Source] {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq["recipe:"+out[i].ID] > s.seq["recipe:"+out[j].ID]
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Close 無需釋放資源
func (s *MemoryStore) Close() error {
	return nil
}

var _ plan.Store = (*MemoryStore)(nil)
