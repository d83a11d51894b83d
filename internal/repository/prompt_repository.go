package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/worksmarter/internal/models"
)

const promptRunColumns = `id, table_id, assignment_id, summary, created_at`

// PromptRepository stores prompt runs, their prompts and table responses.
// Runs are insert-only.
type PromptRepository struct {
	db *sqlx.DB
}

// NewPromptRepository constructs the repository.
func NewPromptRepository(db *sqlx.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// CreateRun inserts the run and its prompts atomically.
func (r *PromptRepository) CreateRun(ctx context.Context, run *models.PromptRun) (err error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prompt run: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const runQuery = `INSERT INTO prompt_runs (id, table_id, assignment_id, summary, created_at) VALUES (:id, :table_id, :assignment_id, :summary, :created_at)`
	if _, err = tx.NamedExecContext(ctx, runQuery, run); err != nil {
		return fmt.Errorf("insert prompt run: %w", err)
	}

	const promptQuery = `INSERT INTO prompts (id, run_id, order_index, prompt_type, text) VALUES (:id, :run_id, :order_index, :prompt_type, :text)`
	for i := range run.Prompts {
		p := &run.Prompts[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.RunID = run.ID
		p.OrderIndex = i
		if _, err = tx.NamedExecContext(ctx, promptQuery, p); err != nil {
			return fmt.Errorf("insert prompt %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit prompt run: %w", err)
	}
	return nil
}

// LatestRun returns the newest run for a table and assignment with prompts.
func (r *PromptRepository) LatestRun(ctx context.Context, tableID, assignmentID string) (*models.PromptRun, error) {
	query := `SELECT ` + promptRunColumns + ` FROM prompt_runs WHERE table_id = $1 AND assignment_id = $2 ORDER BY created_at DESC, id DESC LIMIT 1`
	var run models.PromptRun
	if err := r.db.GetContext(ctx, &run, query, tableID, assignmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find latest prompt run: %w", err)
	}
	prompts, err := r.listPrompts(ctx, []string{run.ID})
	if err != nil {
		return nil, err
	}
	run.Prompts = prompts[run.ID]
	return &run, nil
}

// ListRuns returns every run for a table, newest first. An empty
// assignmentID lists runs across assignments.
func (r *PromptRepository) ListRuns(ctx context.Context, tableID, assignmentID string) ([]models.PromptRun, error) {
	query := `SELECT ` + promptRunColumns + ` FROM prompt_runs WHERE table_id = $1`
	args := []interface{}{tableID}
	if assignmentID != "" {
		query += ` AND assignment_id = $2`
		args = append(args, assignmentID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	runs := []models.PromptRun{}
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list prompt runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}
	ids := make([]string, len(runs))
	for i := range runs {
		ids[i] = runs[i].ID
	}
	prompts, err := r.listPrompts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].Prompts = prompts[runs[i].ID]
	}
	return runs, nil
}

func (r *PromptRepository) listPrompts(ctx context.Context, runIDs []string) (map[string][]models.Prompt, error) {
	query, args, err := sqlx.In(`SELECT id, run_id, order_index, prompt_type, text FROM prompts WHERE run_id IN (?) ORDER BY run_id, order_index`, runIDs)
	if err != nil {
		return nil, fmt.Errorf("build prompt query: %w", err)
	}
	var prompts []models.Prompt
	if err := r.db.SelectContext(ctx, &prompts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	grouped := make(map[string][]models.Prompt, len(runIDs))
	for _, p := range prompts {
		grouped[p.RunID] = append(grouped[p.RunID], p)
	}
	return grouped, nil
}

// PromptTarget identifies the table a prompt was generated for.
type PromptTarget struct {
	PromptID     string `db:"prompt_id"`
	TableID      string `db:"table_id"`
	ClassroomID  string `db:"classroom_id"`
	AssignmentID string `db:"assignment_id"`
}

// FindPromptTarget resolves a prompt to its table and classroom.
func (r *PromptRepository) FindPromptTarget(ctx context.Context, promptID string) (*PromptTarget, error) {
	const query = `SELECT p.id AS prompt_id, pr.table_id, t.classroom_id, pr.assignment_id
FROM prompts p
JOIN prompt_runs pr ON pr.id = p.run_id
JOIN tables t ON t.id = pr.table_id
WHERE p.id = $1`
	var target PromptTarget
	if err := r.db.GetContext(ctx, &target, query, promptID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find prompt: %w", err)
	}
	return &target, nil
}

// SaveResponse stores the table's answer to a prompt, replacing an earlier one.
func (r *PromptRepository) SaveResponse(ctx context.Context, response *models.PromptResponse) error {
	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	if response.SavedAt.IsZero() {
		response.SavedAt = time.Now().UTC()
	}
	const query = `INSERT INTO prompt_responses (id, table_id, prompt_id, text, saved_by, saved_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (table_id, prompt_id) DO UPDATE
SET text = EXCLUDED.text, saved_by = EXCLUDED.saved_by, saved_at = EXCLUDED.saved_at
RETURNING id`
	if err := r.db.GetContext(ctx, &response.ID, query,
		response.ID, response.TableID, response.PromptID, response.Text, response.SavedBy, response.SavedAt); err != nil {
		return fmt.Errorf("save prompt response: %w", err)
	}
	return nil
}

// ListResponses returns the table's saved responses for the run's prompts.
func (r *PromptRepository) ListResponses(ctx context.Context, tableID, runID string) ([]models.PromptResponse, error) {
	const query = `SELECT r.id, r.table_id, r.prompt_id, r.text, r.saved_by, r.saved_at
FROM prompt_responses r
JOIN prompts p ON p.id = r.prompt_id
WHERE r.table_id = $1 AND p.run_id = $2
ORDER BY p.order_index`
	responses := []models.PromptResponse{}
	if err := r.db.SelectContext(ctx, &responses, query, tableID, runID); err != nil {
		return nil, fmt.Errorf("list prompt responses: %w", err)
	}
	return responses, nil
}
