package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tohomc/internal/domain/model"
)

type RatingRepository interface {
	HasHistory(ctx context.Context, tx *sql.Tx, username, contestID string) (bool, error)
	AddHistory(ctx context.Context, tx *sql.Tx, h *model.ContestHistory) error
	ListHistory(ctx context.Context, username string) ([]model.ContestHistory, error)
	// ResetAll sets every rating back to the default and clears histories and performances.
	ResetAll(ctx context.Context, tx *sql.Tx) error
	SavePerformances(ctx context.Context, tx *sql.Tx, contestID string, perfs []model.Performance) error
}

type pgRatingRepository struct {
	db *sql.DB
}

func NewPgRatingRepository(db *sql.DB) RatingRepository {
	return &pgRatingRepository{db: db}
}

func (r *pgRatingRepository) HasHistory(ctx context.Context, tx *sql.Tx, username, contestID string) (bool, error) {
	var exists bool
	err := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_contest_history WHERE username = $1 AND contest_id = $2)`,
		username, contestID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgRatingRepository.HasHistory: %w", err)
	}
	return exists, nil
}

func (r *pgRatingRepository) AddHistory(ctx context.Context, tx *sql.Tx, h *model.ContestHistory) error {
	query := `INSERT INTO user_contest_history
	              (username, contest_id, contest_title, rank, performance, rating_before, rating_after, end_time)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (username, contest_id) DO NOTHING`
	_, err := conn(r.db, tx).ExecContext(ctx, query, h.Username, h.ContestID, h.ContestTitle, h.Rank,
		h.Performance, h.RatingBefore, h.RatingAfter, h.EndTime)
	if err != nil {
		return fmt.Errorf("pgRatingRepository.AddHistory: %w", err)
	}
	return nil
}

func (r *pgRatingRepository) ListHistory(ctx context.Context, username string) ([]model.ContestHistory, error) {
	query := `SELECT username, contest_id, contest_title, rank, performance, rating_before, rating_after, end_time
	          FROM user_contest_history WHERE username = $1 ORDER BY end_time`
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("pgRatingRepository.ListHistory: %w", err)
	}
	defer rows.Close()

	history := []model.ContestHistory{}
	for rows.Next() {
		var h model.ContestHistory
		if err := rows.Scan(&h.Username, &h.ContestID, &h.ContestTitle, &h.Rank, &h.Performance,
			&h.RatingBefore, &h.RatingAfter, &h.EndTime); err != nil {
			return nil, fmt.Errorf("pgRatingRepository.ListHistory scan: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (r *pgRatingRepository) ResetAll(ctx context.Context, tx *sql.Tx) error {
	q := conn(r.db, tx)
	for _, stmt := range []string{
		`UPDATE users SET rating = 100, updated_at = CURRENT_TIMESTAMP`,
		`DELETE FROM user_contest_history`,
		`DELETE FROM contest_performances`,
		`UPDATE problems SET difficulty = 0`,
	} {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pgRatingRepository.ResetAll: %w", err)
		}
	}
	return nil
}

func (r *pgRatingRepository) SavePerformances(ctx context.Context, tx *sql.Tx, contestID string, perfs []model.Performance) error {
	q := conn(r.db, tx)
	for _, p := range perfs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO contest_performances (contest_id, username, performance) VALUES ($1, $2, $3)
			 ON CONFLICT (contest_id, username) DO UPDATE SET performance = EXCLUDED.performance`,
			contestID, p.Username, p.Performance)
		if err != nil {
			return fmt.Errorf("pgRatingRepository.SavePerformances: %w", err)
		}
	}
	return nil
}
