// Package memrepo implements the repository interfaces in memory for tests
// and local experiments. Transactions are serialized but never rolled back.
package memrepo

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"sync"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
)

var (
	_ repository.UserRepository       = (*UserRepo)(nil)
	_ repository.ContestRepository    = (*ContestRepo)(nil)
	_ repository.ProblemRepository    = (*ProblemRepo)(nil)
	_ repository.SubmissionRepository = (*SubmissionRepo)(nil)
	_ repository.RatingRepository     = (*RatingRepo)(nil)
)

type Store struct {
	txMu sync.Mutex // Held for the duration of WithContestLock and InTx
	mu   sync.Mutex

	users       map[string]model.User
	contests    map[string]model.Contest
	problems    map[string][]model.Problem
	submissions []model.Submission
	history     []model.ContestHistory
	perfs       map[string][]model.Performance
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]model.User),
		contests: make(map[string]model.Contest),
		problems: make(map[string][]model.Problem),
		perfs:    make(map[string][]model.Performance),
	}
}

func (s *Store) Users() *UserRepo             { return &UserRepo{s} }
func (s *Store) Contests() *ContestRepo       { return &ContestRepo{s} }
func (s *Store) Problems() *ProblemRepo       { return &ProblemRepo{s} }
func (s *Store) Submissions() *SubmissionRepo { return &SubmissionRepo{s} }
func (s *Store) Ratings() *RatingRepo         { return &RatingRepo{s} }

func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(nil)
}

// Performances returns what SavePerformances stored for a contest.
func (s *Store) Performances(contestID string) []model.Performance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.perfs[contestID])
}

// AllSubmissions returns the whole log in append order.
func (s *Store) AllSubmissions() []model.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.submissions)
}

// PutSubmission appends directly to the log, bypassing admission.
func (s *Store) PutSubmission(sub model.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
}

func cloneContest(c model.Contest) model.Contest {
	c.Managers = slices.Clone(c.Managers)
	c.Writers = slices.Clone(c.Writers)
	c.Testers = slices.Clone(c.Testers)
	c.Problems = nil
	return c
}

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.Username]; ok {
		return common.ErrConflict
	}
	u := *user
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.Username] = u
	return nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Rating != users[j].Rating {
			return users[i].Rating > users[j].Rating
		}
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (r *UserRepo) ListUsernames(ctx context.Context, candidates []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []string{}
	for _, c := range candidates {
		if _, ok := r.s.users[c]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *UserRepo) Ratings(ctx context.Context, tx *sql.Tx) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ratings := make(map[string]int, len(r.s.users))
	for name, u := range r.s.users {
		ratings[name] = u.Rating
	}
	return ratings, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, username, role string) error {
	return r.update(username, func(u *model.User) { u.Role = role })
}

func (r *UserRepo) UpdateRating(ctx context.Context, tx *sql.Tx, username string, rating int) error {
	return r.update(username, func(u *model.User) { u.Rating = rating })
}

func (r *UserRepo) update(username string, fn func(u *model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[username]
	if !ok {
		return common.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	r.s.users[username] = u
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, username string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[username]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.users, username)
	r.s.history = slices.DeleteFunc(r.s.history, func(h model.ContestHistory) bool { return h.Username == username })
	return nil
}

type ContestRepo struct{ s *Store }

func (r *ContestRepo) Create(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contests[c.ID]; ok {
		return common.ErrConflict
	}
	r.s.contests[c.ID] = cloneContest(*c)
	return nil
}

func (r *ContestRepo) Update(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contests[c.ID]; !ok {
		return common.ErrNotFound
	}
	r.s.contests[c.ID] = cloneContest(*c)
	return nil
}

func (r *ContestRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contests[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.contests, id)
	delete(r.s.problems, id)
	delete(r.s.perfs, id)
	r.s.submissions = slices.DeleteFunc(r.s.submissions, func(sub model.Submission) bool { return sub.ContestID == id })
	return nil
}

func (r *ContestRepo) FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.contests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := cloneContest(stored)
	c.Problems = slices.Clone(r.s.problems[id])
	c.Normalize()
	return &c, nil
}

func (r *ContestRepo) List(ctx context.Context) ([]model.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Contest, 0, len(r.s.contests))
	for _, c := range r.s.contests {
		c = cloneContest(c)
		c.Normalize()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (r *ContestRepo) WithContestLock(ctx context.Context, id string, fn func(tx *sql.Tx) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	r.s.mu.Lock()
	_, ok := r.s.contests[id]
	r.s.mu.Unlock()
	if !ok {
		return common.ErrNotFound
	}
	return fn(nil)
}

type ProblemRepo struct{ s *Store }

func (r *ProblemRepo) ListByContest(ctx context.Context, tx *sql.Tx, contestID string) ([]model.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.problems[contestID]), nil
}

func (r *ProblemRepo) FindByID(ctx context.Context, tx *sql.Tx, contestID, problemID string) (*model.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.problems[contestID] {
		if p.ID == problemID {
			return &p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *ProblemRepo) Upsert(ctx context.Context, tx *sql.Tx, p *model.Problem, position int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.problems[p.ContestID]
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = *p
			return nil
		}
	}
	list = append(list, *p)
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	r.s.problems[p.ContestID] = list
	return nil
}

func (r *ProblemRepo) DeleteFrom(ctx context.Context, tx *sql.Tx, contestID string, position int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.problems[contestID]
	if position < len(list) {
		r.s.problems[contestID] = list[:position]
	}
	return nil
}

func (r *ProblemRepo) UpdateImage(ctx context.Context, tx *sql.Tx, contestID, problemID string, kind model.ImageKind, url, key string) error {
	return r.update(contestID, problemID, func(p *model.Problem) {
		if kind == model.ImageKindProblem {
			p.Image, p.ImageKey = url, key
		} else {
			p.ExplanationImage, p.ExplanationImageKey = url, key
		}
	})
}

func (r *ProblemRepo) UpdateDifficulty(ctx context.Context, tx *sql.Tx, contestID, problemID string, difficulty int) error {
	return r.update(contestID, problemID, func(p *model.Problem) { p.Difficulty = difficulty })
}

func (r *ProblemRepo) update(contestID, problemID string, fn func(p *model.Problem)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.problems[contestID]
	for i := range list {
		if list[i].ID == problemID {
			fn(&list[i])
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *ProblemRepo) ListArchive(ctx context.Context, now time.Time) ([]model.ArchivedProblem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ended []model.Contest
	for _, c := range r.s.contests {
		if !c.EndTime.After(now) {
			ended = append(ended, c)
		}
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].EndTime.After(ended[j].EndTime) })
	out := []model.ArchivedProblem{}
	for _, c := range ended {
		for _, p := range r.s.problems[c.ID] {
			out = append(out, model.ArchivedProblem{Problem: p, ContestTitle: c.Title})
		}
	}
	return out, nil
}

type SubmissionRepo struct{ s *Store }

func (r *SubmissionRepo) Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.submissions = append(r.s.submissions, *sub)
	return nil
}

func (r *SubmissionRepo) ListByContest(ctx context.Context, tx *sql.Tx, contestID string) ([]model.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Submission{}
	for _, sub := range r.s.submissions {
		if sub.ContestID == contestID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *SubmissionRepo) CountForUserProblem(ctx context.Context, tx *sql.Tx, contestID, username, problemID string, end time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sub := range r.s.submissions {
		if sub.ContestID == contestID && sub.Username == username && sub.ProblemID == problemID && !sub.SubmittedAt.After(end) {
			n++
		}
	}
	return n, nil
}

func (r *SubmissionRepo) CountForProblems(ctx context.Context, tx *sql.Tx, contestID string, problemIDs []string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sub := range r.s.submissions {
		if sub.ContestID == contestID && slices.Contains(problemIDs, sub.ProblemID) {
			n++
		}
	}
	return n, nil
}

type RatingRepo struct{ s *Store }

func (r *RatingRepo) HasHistory(ctx context.Context, tx *sql.Tx, username, contestID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.ContainsFunc(r.s.history, func(h model.ContestHistory) bool {
		return h.Username == username && h.ContestID == contestID
	}), nil
}

func (r *RatingRepo) AddHistory(ctx context.Context, tx *sql.Tx, h *model.ContestHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.history {
		if existing.Username == h.Username && existing.ContestID == h.ContestID {
			return nil
		}
	}
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r *RatingRepo) ListHistory(ctx context.Context, username string) ([]model.ContestHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.ContestHistory{}
	for _, h := range r.s.history {
		if h.Username == username {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (r *RatingRepo) ResetAll(ctx context.Context, tx *sql.Tx) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for name, u := range r.s.users {
		u.Rating = model.DefaultRating
		r.s.users[name] = u
	}
	r.s.history = nil
	r.s.perfs = make(map[string][]model.Performance)
	for id, list := range r.s.problems {
		for i := range list {
			list[i].Difficulty = 0
		}
		r.s.problems[id] = list
	}
	return nil
}

func (r *RatingRepo) SavePerformances(ctx context.Context, tx *sql.Tx, contestID string, perfs []model.Performance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.perfs[contestID] = slices.Clone(perfs)
	return nil
}
