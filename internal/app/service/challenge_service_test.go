package service

import (
	"context"
	"testing"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChallengeEnv(t *testing.T) (*ChallengeService, *fakeChallengeRepo) {
	t.Helper()
	challenges := newFakeChallengeRepo()
	return NewChallengeService(challenges, fakeTxManager{}), challenges
}

func TestCreateChallengeWithHints(t *testing.T) {
	svc, repo := newChallengeEnv(t)

	target := "<div></div>"
	challenge, err := svc.CreateChallenge(context.Background(), "admin1", CreateChallengeRequest{
		Title:       "Simply Square",
		Description: "Recreate the target.",
		Difficulty:  model.DifficultyEasy,
		TargetCode:  &target,
		TargetChars: 50,
		Hints:       []string{"Think borders", "One element is enough"},
	})
	require.NoError(t, err)

	assert.Equal(t, "simply-square", challenge.Slug)
	require.Len(t, challenge.Hints, 2)
	assert.Equal(t, 1, challenge.Hints[0].SortOrder)
	assert.Equal(t, 2, challenge.Hints[1].SortOrder)

	stored, err := repo.GetHintsByChallengeID(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestUpdateChallengeKeepsSlug(t *testing.T) {
	svc, repo := newChallengeEnv(t)
	repo.challenges["ch1"] = &model.Challenge{
		ID:         "ch1",
		Title:      "Simply Square",
		Slug:       "simply-square",
		Difficulty: model.DifficultyEasy,
	}

	updated, err := svc.UpdateChallenge(context.Background(), "ch1", UpdateChallengeRequest{
		Title:       "Simply Square Remastered",
		Description: "Now with rounded corners.",
		Difficulty:  model.DifficultyMedium,
		TargetChars: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, "Simply Square Remastered", updated.Title)
	assert.Equal(t, "simply-square", updated.Slug, "published links keep working")
	assert.Equal(t, 60, updated.TargetChars)

	_, err = svc.UpdateChallenge(context.Background(), "missing", UpdateChallengeRequest{
		Title:       "Ghost",
		Description: "x",
		Difficulty:  model.DifficultyEasy,
		TargetChars: 10,
	})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetChallengeBySlugHidesTargetCode(t *testing.T) {
	svc, repo := newChallengeEnv(t)
	target := "<div></div>"
	repo.challenges["ch1"] = &model.Challenge{ID: "ch1", Slug: "simply-square", TargetCode: &target}

	asUser, err := svc.GetChallengeBySlug(context.Background(), "simply-square", model.RoleUser)
	require.NoError(t, err)
	assert.Nil(t, asUser.TargetCode)

	repo.challenges["ch1"].TargetCode = &target
	asAdmin, err := svc.GetChallengeBySlug(context.Background(), "simply-square", model.RoleAdmin)
	require.NoError(t, err)
	require.NotNil(t, asAdmin.TargetCode)
}

func TestRevealHint(t *testing.T) {
	svc, repo := newChallengeEnv(t)
	repo.challenges["ch1"] = &model.Challenge{ID: "ch1"}
	repo.hints["ch1"] = []model.Hint{
		{ID: "h1", ChallengeID: "ch1", Text: "Think borders", SortOrder: 1},
		{ID: "h2", ChallengeID: "ch1", Text: "One element", SortOrder: 2},
	}

	hint, err := svc.RevealHint(context.Background(), "u1", "ch1", "h1")
	require.NoError(t, err)
	assert.Equal(t, "Think borders", hint.Text)

	// The usage is what the scoring penalty counts; rereading is free.
	_, err = svc.RevealHint(context.Background(), "u1", "ch1", "h1")
	require.NoError(t, err)
	count, err := repo.CountHintUsage(context.Background(), "u1", "ch1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = svc.RevealHint(context.Background(), "u1", "ch1", "h2")
	require.NoError(t, err)
	count, err = repo.CountHintUsage(context.Background(), "u1", "ch1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.RevealHint(context.Background(), "u1", "ch1", "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}
