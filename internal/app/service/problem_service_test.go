package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func problemFixture(t *testing.T) (*fixture, *ContestView) {
	f := newFixture(t)
	f.addUser(t, "owner", model.RoleUser)
	f.addUser(t, "alice", model.RoleUser)
	c := f.createContest(t, "owner", CreateContestRequest{Title: "Image Round"})
	f.setAnswer(t, "owner", c.ID, "A", "42")
	return f, c
}

func TestProblemGet(t *testing.T) {
	f, c := problemFixture(t)
	ctx := context.Background()

	_, err := f.problems.Get(ctx, "alice", c.ID, "A")
	assert.ErrorIs(t, err, common.ErrForbidden)

	own, err := f.problems.Get(ctx, "owner", c.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, "42", own.CorrectAnswer)

	f.now = f.start
	p, err := f.problems.Get(ctx, "alice", c.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, "Statement A", p.Content)
	assert.Empty(t, p.CorrectAnswer)
	assert.Empty(t, p.Explanation)

	_, err = f.problems.Get(ctx, "alice", c.ID, "Z")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestProblemUpdate(t *testing.T) {
	f, c := problemFixture(t)
	ctx := context.Background()

	_, err := f.problems.Update(ctx, "owner", c.ID, "B", UpdateProblemRequest{CorrectAnswer: "12a"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.problems.Update(ctx, "alice", c.ID, "B", UpdateProblemRequest{CorrectAnswer: "1"})
	assert.ErrorIs(t, err, common.ErrForbidden)

	p, err := f.problems.Update(ctx, "owner", c.ID, "B", UpdateProblemRequest{Score: 0, Writer: " owner ", CorrectAnswer: " 7 "})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultProblemScore, p.Score)
	assert.Equal(t, "owner", p.Writer)
	assert.Equal(t, "7", p.CorrectAnswer)

	p, err = f.problems.Update(ctx, "owner", c.ID, "B", UpdateProblemRequest{Score: 500})
	require.NoError(t, err)
	assert.Equal(t, 500, p.Score)
	assert.Empty(t, p.CorrectAnswer)
}

func TestProblemExplanation(t *testing.T) {
	f, c := problemFixture(t)
	ctx := context.Background()

	f.now = f.start.Add(time.Minute)
	_, err := f.problems.Explanation(ctx, "alice", c.ID, "A")
	assert.ErrorIs(t, err, common.ErrForbidden)

	own, err := f.problems.Explanation(ctx, "owner", c.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, "Explanation A", own.Explanation)

	f.now = f.end
	exp, err := f.problems.Explanation(ctx, "alice", c.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, "A", exp.ProblemID)
	assert.Equal(t, "Explanation A", exp.Explanation)
}

func TestImageKey(t *testing.T) {
	key := ImageKey("spring-round", "C", model.ImageKindExplanation, 1700000000, "Figure.PNG")
	assert.Equal(t, "contests/spring-round/C_explanation_image_1700000000.png", key)
}

func TestUploadImageReplacesPrevious(t *testing.T) {
	f, c := problemFixture(t)
	ctx := context.Background()

	first, err := f.problems.UploadImage(ctx, "owner", c.ID, "A", model.ImageKindProblem, "a.png", pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Image, "https://images.test/contests/image-round/A_image_"))
	firstKey := first.ImageKey
	require.Contains(t, f.images.objects, firstKey)

	f.now = f.now.Add(time.Second)
	second, err := f.problems.UploadImage(ctx, "owner", c.ID, "A", model.ImageKindProblem, "b.png", pngHeader)
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, second.ImageKey)
	assert.NotContains(t, f.images.objects, firstKey)
	assert.Contains(t, f.images.objects, second.ImageKey)

	stored, err := f.store.Problems().FindByID(ctx, nil, c.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, second.Image, stored.Image)

	cleared, err := f.problems.RemoveImage(ctx, "owner", c.ID, "A", model.ImageKindProblem)
	require.NoError(t, err)
	assert.Empty(t, cleared.Image)
	assert.Empty(t, f.images.objects)
}

func TestUploadImageRejections(t *testing.T) {
	f, c := problemFixture(t)
	ctx := context.Background()

	_, err := f.problems.UploadImage(ctx, "owner", c.ID, "A", model.ImageKind("thumbnail"), "a.png", pngHeader)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.problems.UploadImage(ctx, "owner", c.ID, "A", model.ImageKindProblem, "a.txt", []byte("just text"))
	assert.ErrorIs(t, err, common.ErrValidation)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2048)...)
	_, err = f.problems.UploadImage(ctx, "owner", c.ID, "A", model.ImageKindProblem, "big.png", big)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.problems.UploadImage(ctx, "owner", c.ID, "A", model.ImageKindProblem, "a.png", nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.problems.UploadImage(ctx, "alice", c.ID, "A", model.ImageKindProblem, "a.png", pngHeader)
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = f.problems.UploadImage(ctx, "owner", c.ID, "Z", model.ImageKindProblem, "a.png", pngHeader)
	assert.ErrorIs(t, err, common.ErrNotFound)

	noStore := NewProblemService(f.store.Contests(), f.store.Problems(), f.store.Users(), f.standings, nil, 1024)
	_, err = noStore.UploadImage(ctx, "owner", c.ID, "A", model.ImageKindProblem, "a.png", pngHeader)
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)
}

func TestArchive(t *testing.T) {
	f, c := problemFixture(t)
	ctx := context.Background()

	archive, err := f.problems.Archive(ctx)
	require.NoError(t, err)
	assert.Empty(t, archive)

	f.now = f.end
	archive, err = f.problems.Archive(ctx)
	require.NoError(t, err)
	require.Len(t, archive, 3)
	assert.Equal(t, "Image Round", archive[0].ContestTitle)
	assert.Equal(t, c.ID, archive[0].ContestID)
	assert.Empty(t, archive[0].CorrectAnswer)
	assert.Equal(t, "Explanation A", archive[0].Explanation)
}
