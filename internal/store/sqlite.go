package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aatumaykin/taskmind/internal/logger"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

type sqliteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// Open initializes the sqlite store, creating the database file and running
// migrations if needed.
func Open(cfg Config, log *logger.Logger) (Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite prefers a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	// Cascade deletes depend on this pragma.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) CreateJob(ctx context.Context, jobID, description string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, description, status, created_at) VALUES(?,?,?,?)`,
		jobID, nullStr(description), string(StatusPending), formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, description, status, start_time, end_time, created_at
		 FROM jobs WHERE job_id = ?`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadTasks(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *sqliteStore) JobStatus(ctx context.Context, jobID string) (Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE job_id = ?`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(status), nil
}

func (s *sqliteStore) CountJobsByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *sqliteStore) ListJobs(ctx context.Context, status Status) ([]*Job, error) {
	query := `SELECT id, job_id, description, status, start_time, end_time, created_at
	          FROM jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if err := s.loadTasks(ctx, job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (s *sqliteStore) AddTask(ctx context.Context, jobID, content string) (int64, error) {
	var rowID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM jobs WHERE job_id = ?`, jobID).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrJobNotFound
	}
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(job_id, content, status, created_at) VALUES(?,?,?,?)`,
		rowID, content, string(StatusPending), formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) TasksForJob(ctx context.Context, jobID string) ([]Task, error) {
	var rowID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM jobs WHERE job_id = ?`, jobID).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, content, think, status, start_time, end_time, created_at
		 FROM tasks WHERE job_id = ? ORDER BY id ASC`, rowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *sqliteStore) MarkJobRunning(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, start_time = COALESCE(start_time, ?) WHERE job_id = ?`,
		string(StatusRunning), formatTime(time.Now().UTC()), jobID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrJobNotFound)
}

func (s *sqliteStore) FinishJob(ctx context.Context, jobID string, status Status) error {
	// COALESCE keeps the first terminal transition's end_time.
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, end_time = COALESCE(end_time, ?) WHERE job_id = ?`,
		string(status), formatTime(time.Now().UTC()), jobID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrJobNotFound)
}

func (s *sqliteStore) MarkTaskRunning(ctx context.Context, taskID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, start_time = COALESCE(start_time, ?) WHERE id = ?`,
		string(StatusRunning), formatTime(time.Now().UTC()), taskID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrTaskNotFound)
}

func (s *sqliteStore) FinishTask(ctx context.Context, taskID int64, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, end_time = COALESCE(end_time, ?) WHERE id = ?`,
		string(status), formatTime(time.Now().UTC()), taskID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrTaskNotFound)
}

func (s *sqliteStore) CancelRunningJob(ctx context.Context, jobID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE job_id = ? AND status = ?`,
		jobID, string(StatusRunning)).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := formatTime(time.Now().UTC())
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, end_time = COALESCE(end_time, ?) WHERE id = ?`,
		string(StatusCancelled), now, rowID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, end_time = COALESCE(end_time, ?)
		 WHERE job_id = ? AND status = ?`,
		string(StatusCancelled), now, rowID, string(StatusRunning)); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (s *sqliteStore) CancelAllRunning(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now().UTC())
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, end_time = COALESCE(end_time, ?)
		 WHERE status = ? AND job_id IN (SELECT id FROM jobs WHERE status = ?)`,
		string(StatusCancelled), now, string(StatusRunning), string(StatusRunning)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, end_time = COALESCE(end_time, ?) WHERE status = ?`,
		string(StatusCancelled), now, string(StatusRunning)); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *sqliteStore) RecordToolUse(ctx context.Context, taskID int64, toolName string, args map[string]any, result *string) (int64, error) {
	var exists int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tasks WHERE id = ?`, taskID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTaskNotFound
	}
	if err != nil {
		return 0, err
	}

	var argsJSON any
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal tool args: %w", err)
		}
		argsJSON = string(b)
	}

	var res any
	if result != nil {
		res = *result
	}

	r, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_uses(task_id, tool_name, args, result, created_at) VALUES(?,?,?,?,?)`,
		taskID, toolName, argsJSON, res, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, err
	}
	return r.LastInsertId()
}

func (s *sqliteStore) UpdateToolResult(ctx context.Context, toolUseID int64, result string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tool_uses SET result = ? WHERE id = ?`, result, toolUseID)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrToolUseNotFound)
}

func (s *sqliteStore) PruneJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs
		 WHERE status IN (?,?,?) AND end_time IS NOT NULL AND end_time < ?`,
		string(StatusCompleted), string(StatusFailed), string(StatusCancelled),
		formatTime(cutoff.UTC()),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) loadTasks(ctx context.Context, job *Job) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, content, think, status, start_time, end_time, created_at
		 FROM tasks WHERE job_id = ? ORDER BY id ASC`, job.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	job.Tasks = []Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return err
		}
		job.Tasks = append(job.Tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range job.Tasks {
		if err := s.loadToolUses(ctx, &job.Tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) loadToolUses(ctx context.Context, task *Task) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, tool_name, args, result, created_at
		 FROM tool_uses WHERE task_id = ? ORDER BY id ASC`, task.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	task.ToolUses = []ToolUse{}
	for rows.Next() {
		var tu ToolUse
		var argsJSON, result sql.NullString
		var createdAt string
		if err := rows.Scan(&tu.ID, &tu.TaskID, &tu.ToolName, &argsJSON, &result, &createdAt); err != nil {
			return err
		}
		if argsJSON.Valid && argsJSON.String != "" {
			if err := json.Unmarshal([]byte(argsJSON.String), &tu.Args); err != nil {
				return fmt.Errorf("failed to unmarshal tool args: %w", err)
			}
		}
		if result.Valid {
			r := result.String
			tu.Result = &r
		}
		tu.CreatedAt = parseTime(createdAt)
		task.ToolUses = append(task.ToolUses, tu)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var description sql.NullString
	var status, createdAt string
	var startTime, endTime sql.NullString

	if err := row.Scan(&job.ID, &job.JobID, &description, &status, &startTime, &endTime, &createdAt); err != nil {
		return nil, err
	}

	job.Description = description.String
	job.Status = Status(status)
	job.StartTime = parseNullTime(startTime)
	job.EndTime = parseNullTime(endTime)
	job.CreatedAt = parseTime(createdAt)
	return &job, nil
}

func scanTask(row rowScanner) (*Task, error) {
	var task Task
	var think sql.NullString
	var status, createdAt string
	var startTime, endTime sql.NullString

	if err := row.Scan(&task.ID, &task.JobRowID, &task.Content, &think, &status, &startTime, &endTime, &createdAt); err != nil {
		return nil, err
	}

	task.Think = think.String
	task.Status = Status(status)
	task.StartTime = parseNullTime(startTime)
	task.EndTime = parseNullTime(endTime)
	task.CreatedAt = parseTime(createdAt)
	return &task, nil
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
