package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
)

type ProblemRepository interface {
	ListByContest(ctx context.Context, tx *sql.Tx, contestID string) ([]model.Problem, error)
	FindByID(ctx context.Context, tx *sql.Tx, contestID, problemID string) (*model.Problem, error)
	// Upsert writes p at position (0 for "A").
	Upsert(ctx context.Context, tx *sql.Tx, p *model.Problem, position int) error
	// DeleteFrom removes problems whose position is at least position.
	DeleteFrom(ctx context.Context, tx *sql.Tx, contestID string, position int) error
	UpdateImage(ctx context.Context, tx *sql.Tx, contestID, problemID string, kind model.ImageKind, url, key string) error
	UpdateDifficulty(ctx context.Context, tx *sql.Tx, contestID, problemID string, difficulty int) error
	// ListArchive returns problems of contests that ended before now.
	ListArchive(ctx context.Context, now time.Time) ([]model.ArchivedProblem, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

const problemColumns = `p.contest_id, p.id, p.score, p.writer, p.content, p.correct_answer, p.image_url, p.image_key,
	p.explanation, p.explanation_image_url, p.explanation_image_key, p.difficulty`

func scanProblem(row interface{ Scan(...interface{}) error }, extra ...interface{}) (*model.Problem, error) {
	p := &model.Problem{}
	dest := []interface{}{&p.ContestID, &p.ID, &p.Score, &p.Writer, &p.Content, &p.CorrectAnswer, &p.Image, &p.ImageKey,
		&p.Explanation, &p.ExplanationImage, &p.ExplanationImageKey, &p.Difficulty}
	err := row.Scan(append(dest, extra...)...)
	return p, err
}

func listProblems(ctx context.Context, q querier, contestID string) ([]model.Problem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+problemColumns+` FROM problems p WHERE p.contest_id = $1 ORDER BY p.position`, contestID)
	if err != nil {
		return nil, fmt.Errorf("listProblems: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("listProblems scan: %w", err)
		}
		problems = append(problems, *p)
	}
	return problems, rows.Err()
}

func (r *pgProblemRepository) ListByContest(ctx context.Context, tx *sql.Tx, contestID string) ([]model.Problem, error) {
	return listProblems(ctx, conn(r.db, tx), contestID)
}

func (r *pgProblemRepository) FindByID(ctx context.Context, tx *sql.Tx, contestID, problemID string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems p WHERE p.contest_id = $1 AND p.id = $2`
	p, err := scanProblem(conn(r.db, tx).QueryRowContext(ctx, query, contestID, problemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindByID: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) Upsert(ctx context.Context, tx *sql.Tx, p *model.Problem, position int) error {
	query := `INSERT INTO problems (contest_id, id, position, score, writer, content, correct_answer,
	              image_url, image_key, explanation, explanation_image_url, explanation_image_key, difficulty)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          ON CONFLICT (contest_id, id) DO UPDATE SET
	              position = EXCLUDED.position, score = EXCLUDED.score, writer = EXCLUDED.writer,
	              content = EXCLUDED.content, correct_answer = EXCLUDED.correct_answer,
	              image_url = EXCLUDED.image_url, image_key = EXCLUDED.image_key,
	              explanation = EXCLUDED.explanation, explanation_image_url = EXCLUDED.explanation_image_url,
	              explanation_image_key = EXCLUDED.explanation_image_key, difficulty = EXCLUDED.difficulty`
	_, err := conn(r.db, tx).ExecContext(ctx, query, p.ContestID, p.ID, position, p.Score, p.Writer, p.Content,
		p.CorrectAnswer, p.Image, p.ImageKey, p.Explanation, p.ExplanationImage, p.ExplanationImageKey, p.Difficulty)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.Upsert: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) DeleteFrom(ctx context.Context, tx *sql.Tx, contestID string, position int) error {
	_, err := conn(r.db, tx).ExecContext(ctx, `DELETE FROM problems WHERE contest_id = $1 AND position >= $2`, contestID, position)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteFrom: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) UpdateImage(ctx context.Context, tx *sql.Tx, contestID, problemID string, kind model.ImageKind, url, key string) error {
	var query string
	switch kind {
	case model.ImageKindProblem:
		query = `UPDATE problems SET image_url = $1, image_key = $2 WHERE contest_id = $3 AND id = $4`
	case model.ImageKindExplanation:
		query = `UPDATE problems SET explanation_image_url = $1, explanation_image_key = $2 WHERE contest_id = $3 AND id = $4`
	default:
		return fmt.Errorf("unknown image kind %q: %w", kind, common.ErrBadRequest)
	}
	res, err := conn(r.db, tx).ExecContext(ctx, query, url, key, contestID, problemID)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpdateImage: %w", err)
	}
	return requireAffected(res)
}

func (r *pgProblemRepository) UpdateDifficulty(ctx context.Context, tx *sql.Tx, contestID, problemID string, difficulty int) error {
	_, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE problems SET difficulty = $1 WHERE contest_id = $2 AND id = $3`, difficulty, contestID, problemID)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpdateDifficulty: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) ListArchive(ctx context.Context, now time.Time) ([]model.ArchivedProblem, error) {
	query := `SELECT ` + problemColumns + `, c.title
	          FROM problems p JOIN contests c ON c.id = p.contest_id
	          WHERE c.end_time <= $1
	          ORDER BY c.end_time DESC, p.position`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListArchive: %w", err)
	}
	defer rows.Close()

	archive := []model.ArchivedProblem{}
	for rows.Next() {
		var title string
		p, err := scanProblem(rows, &title)
		if err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListArchive scan: %w", err)
		}
		archive = append(archive, model.ArchivedProblem{Problem: *p, ContestTitle: title})
	}
	return archive, rows.Err()
}
