package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
)

// ImageStore persists problem images and hands back a public URL.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

type StandingsCache interface {
	Get(ctx context.Context, contestID string) (*model.Standings, bool, error)
	Set(ctx context.Context, contestID string, s *model.Standings) error
	Invalidate(ctx context.Context, contestID string) error
}

// StandingsPublisher pushes fresh standings to live subscribers.
type StandingsPublisher interface {
	PublishStandings(contestID string, standings interface{})
}

type RatingEnqueuer interface {
	EnqueueContest(ctx context.Context, contestID string) error
}

// Transactor runs fn inside one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Clock func() time.Time

// resolveUser loads the caller fresh from storage so role changes apply
// without waiting for token expiry.
func resolveUser(ctx context.Context, users repository.UserRepository, username string) (*model.User, error) {
	if username == "" {
		return nil, common.ErrUnauthorized
	}
	user, err := users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("account %q no longer exists: %w", username, common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
