package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/pkg/common"

	_ "modernc.org/sqlite"
)

// timeLayout 固定寬度，文字排序與時間排序一致
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore SQLite 儲存
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 開啟或建立資料庫並執行遷移
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// 多個任務並行寫入時由連線池排隊
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CreateJob 建立任務
func (s *SQLiteStore) CreateJob(ctx context.Context, job *plan.GenerationJob) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshal job params: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO generation_jobs (id, type, member_id, status, progress_done, progress_total,
			last_day_key, error_text, params, created_at, updated_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Type), job.MemberID, string(job.Status), job.ProgressDone, job.ProgressTotal,
		job.LastDayKey, job.ErrorText, string(params), formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
		nullableTime(job.FinishedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return common.ErrConflict.WithMessage("job already exists: " + job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

const jobColumns = `id, type, member_id, status, progress_done, progress_total,
	last_day_key, error_text, params, created_at, updated_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*plan.GenerationJob, error) {
	var (
		job                  plan.GenerationJob
		jobType, status      string
		params               string
		createdAt, updatedAt string
		finishedAt           sql.NullString
	)
	if err := row.Scan(&job.ID, &jobType, &job.MemberID, &status, &job.ProgressDone, &job.ProgressTotal,
		&job.LastDayKey, &job.ErrorText, &params, &createdAt, &updatedAt, &finishedAt); err != nil {
		return nil, err
	}
	job.Type = plan.JobType(jobType)
	job.Status = plan.JobStatus(status)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		job.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
		return nil, fmt.Errorf("unmarshal job params: %w", err)
	}
	return &job, nil
}

// GetJob 讀取任務
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*plan.GenerationJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob 更新任務的可變欄位
func (s *SQLiteStore) UpdateJob(ctx context.Context, job *plan.GenerationJob) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE generation_jobs
		SET status = ?, progress_done = ?, progress_total = ?, last_day_key = ?, error_text = ?,
			updated_at = ?, finished_at = ?
		WHERE id = ?`,
		string(job.Status), job.ProgressDone, job.ProgressTotal, job.LastDayKey, job.ErrorText,
		formatTime(job.UpdatedAt), nullableTime(job.FinishedAt), job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrJobNotFound
	}
	return nil
}

// LatestJob 最新建立的任務
func (s *SQLiteStore) LatestJob(ctx context.Context, memberID string, jobType plan.JobType) (*plan.GenerationJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM generation_jobs
		WHERE member_id = ? AND type = ?
		ORDER BY created_at DESC, seq DESC LIMIT 1`, memberID, string(jobType))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest job: %w", err)
	}
	return job, nil
}

// RunningJobs 執行中的任務
func (s *SQLiteStore) RunningJobs(ctx context.Context, memberID string, jobType plan.JobType) ([]*plan.GenerationJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM generation_jobs
		WHERE member_id = ? AND type = ? AND status = ?
		ORDER BY created_at DESC, seq DESC`, memberID, string(jobType), string(plan.StatusRunning))
	if err != nil {
		return nil, fmt.Errorf("running jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*plan.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetDay 讀取每日計畫
func (s *SQLiteStore) GetDay(ctx context.Context, memberID, day string) (*plan.DayPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT meal_type, recipe_id, title, source, filled_at FROM plan_slots
		WHERE member_id = ? AND day_key = ?`, memberID, day)
	if err != nil {
		return nil, fmt.Errorf("get day: %w", err)
	}
	defer rows.Close()

	d := plan.NewDayPlan(memberID, day)
	for rows.Next() {
		var slot plan.SlotAssignment
		var meal, source, filledAt string
		if err := rows.Scan(&meal, &slot.RecipeID, &slot.Title, &source, &filledAt); err != nil {
			return nil, err
		}
		slot.MealType = common.MealType(meal)
		slot.Source = plan.SlotSource(source)
		slot.FilledAt = parseTime(filledAt)
		d.Slots[slot.MealType] = slot
		if slot.FilledAt.After(d.UpdatedAt) {
			d.UpdatedAt = slot.FilledAt
		}
	}
	return d, rows.Err()
}

// SetSlot 寫入某一餐，已有內容時覆寫
func (s *SQLiteStore) SetSlot(ctx context.Context, memberID, day string, slot plan.SlotAssignment) error {
	if !slot.MealType.Valid() {
		return common.ErrInvalidRequest.WithMessage("invalid meal type: " + string(slot.MealType))
	}
	if slot.FilledAt.IsZero() {
		slot.FilledAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plan_slots (member_id, day_key, meal_type, recipe_id, title, source, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id, day_key, meal_type) DO UPDATE SET
			recipe_id = excluded.recipe_id,
			title = excluded.title,
			source = excluded.source,
			filled_at = excluded.filled_at`,
		memberID, day, string(slot.MealType), slot.RecipeID, slot.Title, string(slot.Source), formatTime(slot.FilledAt),
	)
	if err != nil {
		return fmt.Errorf("set slot: %w", err)
	}
	return nil
}

// SaveRecipe 儲存食譜
func (s *SQLiteStore) SaveRecipe(ctx context.Context, r *plan.StoredRecipe) error {
	tags, err := json.Marshal(r.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	body, err := json.Marshal(r.Recipe)
	if err != nil {
		return fmt.Errorf("marshal recipe: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recipes (id, member_id, title, description, meal_type, tags, source, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			member_id = excluded.member_id,
			title = excluded.title,
			description = excluded.description,
			meal_type = excluded.meal_type,
			tags = excluded.tags,
			source = excluded.source,
			body = excluded.body`,
		r.ID, r.MemberID, r.Title, r.Description, r.MealType, string(tags), string(r.Source), string(body), formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save recipe: %w", err)
	}
	return nil
}

const recipeColumns = `id, member_id, title, description, meal_type, tags, source, body, created_at`

func scanRecipe(row rowScanner) (*plan.StoredRecipe, error) {
	var (
		r                plan.StoredRecipe
		tags             sql.NullString
		source, body, at string
	)
	if err := row.Scan(&r.ID, &r.MemberID, &r.Title, &r.Description, &r.MealType, &tags, &source, &body, &at); err != nil {
		return nil, err
	}
	r.Source = plan.Provenance(source)
	r.CreatedAt = parseTime(at)
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &r.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(body), &r.Recipe); err != nil {
		return nil, fmt.Errorf("unmarshal recipe: %w", err)
	}
	return &r, nil
}

// GetRecipe 讀取食譜
func (s *SQLiteStore) GetRecipe(ctx context.Context, id string) (*plan.StoredRecipe, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound.WithMessage("recipe not found: " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return r, nil
}

// ListCandidates 食譜池候選
func (s *SQLiteStore) ListCandidates(ctx context.Context, q plan.CandidateQuery) ([]*plan.StoredRecipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE (member_id = ? OR member_id = '')`
	args := []interface{}{q.MemberID}

	if len(q.Sources) > 0 {
		placeholders := make([]string, len(q.Sources))
		for i, src := range q.Sources {
			placeholders[i] = "?"
			args = append(args, string(src))
		}
		query += ` AND source IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []*plan.StoredRecipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping 健康檢查
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 關閉資料庫
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ plan.Store = (*SQLiteStore)(nil)
