package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	// ListUsernames returns the subset of candidates that belong to existing users.
	ListUsernames(ctx context.Context, candidates []string) ([]string, error)
	Ratings(ctx context.Context, tx *sql.Tx) (map[string]int, error)
	UpdateRole(ctx context.Context, username, role string) error
	UpdateRating(ctx context.Context, tx *sql.Tx, username string, rating int) error
	Delete(ctx context.Context, username string) error
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, hashed_password, role, rating, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Username, &user.HashedPassword, &user.Role, &user.Rating, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, hashed_password, role, rating)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.HashedPassword, user.Role, user.Rating)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByUsername: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) List(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY rating DESC, username ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.List: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *pgUserRepository) ListUsernames(ctx context.Context, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return []string{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT username FROM users WHERE username = ANY($1)`, candidates)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListUsernames: %w", err)
	}
	defer rows.Close()

	existing := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("pgUserRepository.ListUsernames scan: %w", err)
		}
		existing = append(existing, name)
	}
	return existing, rows.Err()
}

func (r *pgUserRepository) Ratings(ctx context.Context, tx *sql.Tx) (map[string]int, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx, `SELECT username, rating FROM users`)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.Ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]int)
	for rows.Next() {
		var name string
		var rating int
		if err := rows.Scan(&name, &rating); err != nil {
			return nil, fmt.Errorf("pgUserRepository.Ratings scan: %w", err)
		}
		ratings[name] = rating
	}
	return ratings, rows.Err()
}

func (r *pgUserRepository) UpdateRole(ctx context.Context, username, role string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = $1, updated_at = CURRENT_TIMESTAMP WHERE username = $2`, role, username)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateRole: %w", err)
	}
	return requireAffected(res)
}

func (r *pgUserRepository) UpdateRating(ctx context.Context, tx *sql.Tx, username string, rating int) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `UPDATE users SET rating = $1, updated_at = CURRENT_TIMESTAMP WHERE username = $2`, rating, username)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateRating: %w", err)
	}
	return requireAffected(res)
}

func (r *pgUserRepository) Delete(ctx context.Context, username string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Delete begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Delete: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_contest_history WHERE username = $1`, username); err != nil {
		return fmt.Errorf("pgUserRepository.Delete history: %w", err)
	}
	return tx.Commit()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
