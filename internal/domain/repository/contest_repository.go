package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
)

type ContestRepository interface {
	Create(ctx context.Context, tx *sql.Tx, c *model.Contest) error
	Update(ctx context.Context, tx *sql.Tx, c *model.Contest) error
	Delete(ctx context.Context, id string) error
	// FindByID loads the contest with its role sets and problems.
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error)
	// List returns every contest with role sets but without problems, newest start first.
	List(ctx context.Context) ([]model.Contest, error)
	// WithContestLock runs fn in a transaction holding the contest row lock.
	WithContestLock(ctx context.Context, id string, fn func(tx *sql.Tx) error) error
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

const contestColumns = `id, slug, title, description, start_time, end_time, problem_count,
	submission_limit, review, created_by, created_at, updated_at`

func scanContest(row interface{ Scan(...interface{}) error }) (*model.Contest, error) {
	c := &model.Contest{}
	err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.StartTime, &c.EndTime, &c.ProblemCount,
		&c.SubmissionLimit, &c.Review, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *pgContestRepository) Create(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	query := `INSERT INTO contests (id, slug, title, description, start_time, end_time, problem_count, submission_limit, review, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	q := conn(r.db, tx)
	if _, err := q.ExecContext(ctx, query, c.ID, c.Slug, c.Title, c.Description, c.StartTime, c.EndTime,
		c.ProblemCount, c.SubmissionLimit, c.Review, c.CreatedBy); err != nil {
		return fmt.Errorf("pgContestRepository.Create: %w", err)
	}
	return r.replaceRoles(ctx, q, c)
}

func (r *pgContestRepository) Update(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	query := `UPDATE contests SET
	            slug = $1, title = $2, description = $3, start_time = $4, end_time = $5,
	            problem_count = $6, submission_limit = $7, review = $8, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $9`
	q := conn(r.db, tx)
	res, err := q.ExecContext(ctx, query, c.Slug, c.Title, c.Description, c.StartTime, c.EndTime,
		c.ProblemCount, c.SubmissionLimit, c.Review, c.ID)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Update: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return r.replaceRoles(ctx, q, c)
}

func (r *pgContestRepository) replaceRoles(ctx context.Context, q querier, c *model.Contest) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM contest_roles WHERE contest_id = $1`, c.ID); err != nil {
		return fmt.Errorf("pgContestRepository.replaceRoles delete: %w", err)
	}
	for _, role := range []model.ContestRole{model.ContestRoleManager, model.ContestRoleWriter, model.ContestRoleTester} {
		for i, username := range c.RoleMembers(role) {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO contest_roles (contest_id, role, username, position) VALUES ($1, $2, $3, $4)`,
				c.ID, string(role), username, i); err != nil {
				return fmt.Errorf("pgContestRepository.replaceRoles insert: %w", err)
			}
		}
	}
	return nil
}

func (r *pgContestRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Delete: %w", err)
	}
	return requireAffected(res)
}

func (r *pgContestRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	q := conn(r.db, tx)
	c, err := scanContest(q.QueryRowContext(ctx, `SELECT `+contestColumns+` FROM contests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindByID: %w", err)
	}
	if err := r.loadRoles(ctx, q, map[string]*model.Contest{c.ID: c}); err != nil {
		return nil, err
	}
	problems, err := listProblems(ctx, q, c.ID)
	if err != nil {
		return nil, err
	}
	c.Problems = problems
	c.Normalize()
	return c, nil
}

func (r *pgContestRepository) List(ctx context.Context) ([]model.Contest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+contestColumns+` FROM contests ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.List: %w", err)
	}
	defer rows.Close()

	var list []*model.Contest
	byID := make(map[string]*model.Contest)
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.List scan: %w", err)
		}
		list = append(list, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.List rows: %w", err)
	}
	if err := r.loadRoles(ctx, r.db, byID); err != nil {
		return nil, err
	}

	contests := make([]model.Contest, 0, len(list))
	for _, c := range list {
		c.Normalize()
		contests = append(contests, *c)
	}
	return contests, nil
}

func (r *pgContestRepository) loadRoles(ctx context.Context, q querier, byID map[string]*model.Contest) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT contest_id, role, username FROM contest_roles WHERE contest_id = ANY($1) ORDER BY contest_id, role, position`, ids)
	if err != nil {
		return fmt.Errorf("pgContestRepository.loadRoles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var contestID, role, username string
		if err := rows.Scan(&contestID, &role, &username); err != nil {
			return fmt.Errorf("pgContestRepository.loadRoles scan: %w", err)
		}
		c := byID[contestID]
		switch model.ContestRole(role) {
		case model.ContestRoleManager:
			c.Managers = append(c.Managers, username)
		case model.ContestRoleWriter:
			c.Writers = append(c.Writers, username)
		case model.ContestRoleTester:
			c.Testers = append(c.Testers, username)
		}
	}
	return rows.Err()
}

func (r *pgContestRepository) WithContestLock(ctx context.Context, id string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM contests WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgContestRepository.WithContestLock: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
