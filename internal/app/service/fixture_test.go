package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"tohomc/internal/common/security"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository/memrepo"
	"tohomc/internal/domain/rules"
	"tohomc/internal/platform/config"

	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu            sync.Mutex
	entries       map[string]*model.Standings
	invalidations map[string]int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*model.Standings), invalidations: make(map[string]int)}
}

func (c *memCache) Get(ctx context.Context, contestID string) (*model.Standings, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[contestID]
	return s, ok, nil
}

func (c *memCache) Set(ctx context.Context, contestID string, s *model.Standings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[contestID] = s
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, contestID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, contestID)
	c.invalidations[contestID]++
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published map[string][]interface{}
}

func (p *recordingPublisher) PublishStandings(contestID string, standings interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.published == nil {
		p.published = make(map[string][]interface{})
	}
	p.published[contestID] = append(p.published[contestID], standings)
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	contests []string
}

func (e *recordingEnqueuer) EnqueueContest(ctx context.Context, contestID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contests = append(e.contests, contestID)
	return nil
}

type memImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemImages() *memImages {
	return &memImages{objects: make(map[string][]byte)}
}

func (m *memImages) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return "https://images.test/" + key, nil
}

func (m *memImages) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// fixture wires every service to one in-memory store and a movable clock.
type fixture struct {
	store  *memrepo.Store
	cache  *memCache
	pub    *recordingPublisher
	jobs   *recordingEnqueuer
	images *memImages

	start time.Time
	end   time.Time
	now   time.Time

	auth        *AuthService
	users       *UserService
	contests    *ContestService
	problems    *ProblemService
	submissions *SubmissionService
	standings   *StandingsService
	ratings     *RatingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	config.AppConfig = &config.Config{JWTKey: []byte("test-key"), JWTExp: time.Hour}
	security.InitJWT()

	start := time.Date(2026, 3, 1, 21, 0, 0, 0, rules.Zone)
	f := &fixture{
		store:  memrepo.NewStore(),
		cache:  newMemCache(),
		pub:    &recordingPublisher{},
		jobs:   &recordingEnqueuer{},
		images: newMemImages(),
		start:  start,
		end:    start.Add(100 * time.Minute),
		now:    start.Add(-time.Hour),
	}
	clock := func() time.Time { return f.now }

	users, contests := f.store.Users(), f.store.Contests()
	problems, submissions, ratings := f.store.Problems(), f.store.Submissions(), f.store.Ratings()

	f.auth = NewAuthService(users)
	f.users = NewUserService(users, ratings)
	f.standings = NewStandingsService(contests, submissions, f.cache, f.pub, f.jobs)
	f.standings.now = clock
	f.contests = NewContestService(contests, problems, submissions, users, f.store, f.standings, f.images, 0)
	f.contests.now = clock
	f.problems = NewProblemService(contests, problems, users, f.standings, f.images, 1024)
	f.problems.now = clock
	f.submissions = NewSubmissionService(contests, submissions, users, f.standings)
	f.submissions.now = clock
	f.ratings = NewRatingService(contests, problems, submissions, users, ratings, f.store)
	f.ratings.now = clock
	return f
}

func (f *fixture) addUser(t *testing.T, username, role string) {
	t.Helper()
	require.NoError(t, f.store.Users().Create(context.Background(), &model.User{
		ID:       username + "-id",
		Username: username,
		Role:     role,
		Rating:   model.DefaultRating,
	}))
}

func (f *fixture) createContest(t *testing.T, owner string, req CreateContestRequest) *ContestView {
	t.Helper()
	if req.Title == "" {
		req.Title = "Spring Round"
	}
	if req.StartTime == "" {
		req.StartTime = f.start.Format(time.RFC3339)
	}
	if req.EndTime == "" {
		req.EndTime = f.end.Format(time.RFC3339)
	}
	if req.ProblemCount == 0 {
		req.ProblemCount = 3
	}
	view, err := f.contests.Create(context.Background(), owner, req)
	require.NoError(t, err)
	return view
}

func (f *fixture) setAnswer(t *testing.T, owner, contestID, problemID, answer string) {
	t.Helper()
	_, err := f.problems.Update(context.Background(), owner, contestID, problemID, UpdateProblemRequest{
		Score:         100,
		Content:       "Statement " + problemID,
		CorrectAnswer: answer,
		Explanation:   "Explanation " + problemID,
	})
	require.NoError(t, err)
}
