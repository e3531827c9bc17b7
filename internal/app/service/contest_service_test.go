package service

import (
	"context"
	"testing"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContestCreate(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "owner", model.RoleUser)
	f.addUser(t, "bob", model.RoleUser)

	view := f.createContest(t, "owner", CreateContestRequest{
		Title:   "Spring Round 1",
		Writers: []string{"bob", "ghost", " bob "},
	})

	assert.Equal(t, "spring-round-1", view.Slug)
	assert.Equal(t, []string{"owner"}, view.Managers)
	assert.Equal(t, []string{"bob"}, view.Writers)
	assert.Equal(t, model.DefaultSubmissionLimit, view.SubmissionLimit)
	assert.True(t, view.CanManage)
	assert.Equal(t, rules.PhaseNotStarted, view.Gate.Phase)
	require.Len(t, view.Problems, 3)
	assert.Equal(t, "C", view.Problems[2].ID)
	assert.Equal(t, model.DefaultProblemScore, view.Problems[2].Score)

	stored, err := f.contests.Get(context.Background(), "owner", view.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Problems, 3)
	assert.Equal(t, rules.Zone, stored.StartTime.Location())
}

func TestContestCreateValidation(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "owner", model.RoleUser)
	ctx := context.Background()
	start, end := f.start.Format(time.RFC3339), f.end.Format(time.RFC3339)

	tests := []struct {
		name string
		req  CreateContestRequest
	}{
		{"missing title", CreateContestRequest{StartTime: start, EndTime: end, ProblemCount: 1}},
		{"too many problems", CreateContestRequest{Title: "x", StartTime: start, EndTime: end, ProblemCount: 27}},
		{"no problems", CreateContestRequest{Title: "x", StartTime: start, EndTime: end}},
		{"end before start", CreateContestRequest{Title: "x", StartTime: end, EndTime: start, ProblemCount: 1}},
		{"unparsable time", CreateContestRequest{Title: "x", StartTime: "soon", EndTime: end, ProblemCount: 1}},
		{"negative limit", CreateContestRequest{Title: "x", StartTime: start, EndTime: end, ProblemCount: 1, SubmissionLimit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.contests.Create(ctx, "owner", tt.req)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	_, err := f.contests.Create(ctx, "nobody", CreateContestRequest{Title: "x", StartTime: start, EndTime: end, ProblemCount: 1})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestContestVisibilityFollowsGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner", model.RoleUser)
	f.addUser(t, "alice", model.RoleUser)
	c := f.createContest(t, "owner", CreateContestRequest{})
	f.setAnswer(t, "owner", c.ID, "A", "42")

	before, err := f.contests.Get(ctx, "alice", c.ID)
	require.NoError(t, err)
	assert.False(t, before.CanManage)
	assert.Empty(t, before.Problems)

	managerView, err := f.contests.Get(ctx, "owner", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", managerView.Problems[0].CorrectAnswer)

	f.now = f.start.Add(time.Minute)
	during, err := f.contests.Get(ctx, "alice", c.ID)
	require.NoError(t, err)
	require.Len(t, during.Problems, 3)
	assert.Equal(t, "Statement A", during.Problems[0].Content)
	assert.Empty(t, during.Problems[0].CorrectAnswer)
	assert.Empty(t, during.Problems[0].Explanation)

	f.now = f.end
	after, err := f.contests.Get(ctx, "alice", c.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Problems[0].CorrectAnswer)
	assert.Equal(t, "Explanation A", after.Problems[0].Explanation)
	assert.Equal(t, rules.PhaseEnded, after.Gate.Phase)
}

func TestContestStatus(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "owner", model.RoleUser)
	c := f.createContest(t, "owner", CreateContestRequest{})

	f.now = f.start
	gate, err := f.contests.Status(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, gate.IsActive)

	_, err = f.contests.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestContestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner", model.RoleUser)
	f.addUser(t, "alice", model.RoleUser)
	c := f.createContest(t, "owner", CreateContestRequest{})

	title := "Renamed"
	_, err := f.contests.Update(ctx, "alice", c.ID, UpdateContestRequest{Title: &title})
	assert.ErrorIs(t, err, common.ErrForbidden)

	five := 5
	grown, err := f.contests.Update(ctx, "owner", c.ID, UpdateContestRequest{Title: &title, ProblemCount: &five})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", grown.Title)
	require.Len(t, grown.Problems, 5)
	assert.Equal(t, "E", grown.Problems[4].ID)
	assert.Equal(t, 1, f.cache.invalidations[c.ID])

	two := 2
	shrunk, err := f.contests.Update(ctx, "owner", c.ID, UpdateContestRequest{ProblemCount: &two})
	require.NoError(t, err)
	assert.Len(t, shrunk.Problems, 2)

	stored, err := f.store.Problems().ListByContest(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestContestUpdateManagersRequiresManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner", model.RoleUser)
	f.addUser(t, "w", model.RoleUser)
	f.addUser(t, "root", model.RoleAdmin)
	c := f.createContest(t, "owner", CreateContestRequest{Writers: []string{"w"}})

	takeover := []string{"w"}
	_, err := f.contests.Update(ctx, "w", c.ID, UpdateContestRequest{Managers: &takeover})
	assert.ErrorIs(t, err, common.ErrForbidden)

	stored, err := f.store.Contests().FindByID(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner"}, stored.Managers)

	// Writers may still edit everything else.
	testers := []string{"w"}
	_, err = f.contests.Update(ctx, "w", c.ID, UpdateContestRequest{Testers: &testers})
	require.NoError(t, err)

	both := []string{"owner", "w"}
	_, err = f.contests.Update(ctx, "owner", c.ID, UpdateContestRequest{Managers: &both})
	require.NoError(t, err)

	onlyRoot := []string{"root"}
	_, err = f.contests.Update(ctx, "root", c.ID, UpdateContestRequest{Managers: &onlyRoot})
	require.NoError(t, err)
	stored, err = f.store.Contests().FindByID(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, stored.Managers)
}

func TestContestShrinkRefusedWithSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner", model.RoleUser)
	c := f.createContest(t, "owner", CreateContestRequest{})
	f.store.PutSubmission(model.Submission{ID: "s1", ContestID: c.ID, ProblemID: "C", Username: "alice", Result: model.ResultWrongAnswer, SubmittedAt: f.start})

	one := 1
	_, err := f.contests.Update(ctx, "owner", c.ID, UpdateContestRequest{ProblemCount: &one})
	assert.ErrorIs(t, err, common.ErrConflict)

	stored, err := f.store.Problems().ListByContest(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestContestUpdateRejectsInvertedSchedule(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "owner", model.RoleUser)
	c := f.createContest(t, "owner", CreateContestRequest{})

	newEnd := f.start.Add(-time.Minute).Format(time.RFC3339)
	_, err := f.contests.Update(context.Background(), "owner", c.ID, UpdateContestRequest{EndTime: &newEnd})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAssignRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"owner", "writer", "bob", "carol"} {
		f.addUser(t, name, model.RoleUser)
	}
	c := f.createContest(t, "owner", CreateContestRequest{Writers: []string{"writer"}})

	_, err := f.contests.AssignRoles(ctx, "owner", c.ID, AssignRolesRequest{Role: "judge", Usernames: []string{"bob"}})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.contests.AssignRoles(ctx, "writer", c.ID, AssignRolesRequest{Role: model.ContestRoleManager, Usernames: []string{"bob"}})
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = f.contests.AssignRoles(ctx, "carol", c.ID, AssignRolesRequest{Role: model.ContestRoleTester, Usernames: []string{"carol"}})
	assert.ErrorIs(t, err, common.ErrForbidden)

	res, err := f.contests.AssignRoles(ctx, "writer", c.ID, AssignRolesRequest{Role: model.ContestRoleTester, Usernames: []string{"bob", "ghost"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, res.Members)
	assert.Equal(t, []string{"ghost"}, res.Ignored)

	res, err = f.contests.AssignRoles(ctx, "owner", c.ID, AssignRolesRequest{Role: model.ContestRoleTester, Usernames: []string{"carol", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, res.Members)
}

func TestContestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner", model.RoleUser)
	f.addUser(t, "root", model.RoleAdmin)
	c := f.createContest(t, "owner", CreateContestRequest{})
	_, err := f.problems.UploadImage(ctx, "owner", c.ID, "A", model.ImageKindProblem, "a.png", pngHeader)
	require.NoError(t, err)

	assert.ErrorIs(t, f.contests.Delete(ctx, "owner", c.ID), common.ErrForbidden)
	require.NoError(t, f.contests.Delete(ctx, "root", c.ID))

	_, err = f.contests.Get(ctx, "root", c.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, f.images.objects)
}

func TestContestReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner", model.RoleUser)
	f.addUser(t, "alice", model.RoleUser)
	c := f.createContest(t, "owner", CreateContestRequest{})

	require.NoError(t, f.contests.UpdateReview(ctx, "owner", c.ID, "Thanks for joining"))
	assert.ErrorIs(t, f.contests.UpdateReview(ctx, "alice", c.ID, "spam"), common.ErrForbidden)

	_, err := f.contests.Review(ctx, "alice", c.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	own, err := f.contests.Review(ctx, "owner", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thanks for joining", own.Review)

	f.now = f.end
	review, err := f.contests.Review(ctx, "alice", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thanks for joining", review.Review)
}

func TestContestList(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "owner", model.RoleUser)
	f.addUser(t, "alice", model.RoleUser)
	f.createContest(t, "owner", CreateContestRequest{Title: "First"})

	views, err := f.contests.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "First", views[0].Title)
	assert.False(t, views[0].CanManage)
}
