package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tohomc/internal/domain/model"
)

type SubmissionRepository interface {
	// Create appends sub to the contest log.
	Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	// ListByContest returns the log in append order.
	ListByContest(ctx context.Context, tx *sql.Tx, contestID string) ([]model.Submission, error)
	// CountForUserProblem counts the user's submissions to the problem timestamped at or before end.
	CountForUserProblem(ctx context.Context, tx *sql.Tx, contestID, username, problemID string, end time.Time) (int, error)
	CountForProblems(ctx context.Context, tx *sql.Tx, contestID string, problemIDs []string) (int, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, contest_id, problem_id, username, result, answer, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := conn(r.db, tx).ExecContext(ctx, query, sub.ID, sub.ContestID, sub.ProblemID, sub.Username,
		string(sub.Result), sub.Answer, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) ListByContest(ctx context.Context, tx *sql.Tx, contestID string) ([]model.Submission, error) {
	query := `SELECT id, contest_id, problem_id, username, result, answer, submitted_at
	          FROM submissions WHERE contest_id = $1 ORDER BY seq`
	rows, err := conn(r.db, tx).QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListByContest: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		var result string
		if err := rows.Scan(&s.ID, &s.ContestID, &s.ProblemID, &s.Username, &result, &s.Answer, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListByContest scan: %w", err)
		}
		s.Result = model.SubmissionResult(result)
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *pgSubmissionRepository) CountForUserProblem(ctx context.Context, tx *sql.Tx, contestID, username, problemID string, end time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM submissions
	          WHERE contest_id = $1 AND username = $2 AND problem_id = $3 AND submitted_at <= $4`
	var n int
	if err := conn(r.db, tx).QueryRowContext(ctx, query, contestID, username, problemID, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountForUserProblem: %w", err)
	}
	return n, nil
}

func (r *pgSubmissionRepository) CountForProblems(ctx context.Context, tx *sql.Tx, contestID string, problemIDs []string) (int, error) {
	if len(problemIDs) == 0 {
		return 0, nil
	}
	var n int
	err := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE contest_id = $1 AND problem_id = ANY($2)`, contestID, problemIDs).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountForProblems: %w", err)
	}
	return n, nil
}
