package service

import (
	"context"
	"testing"
	"time"

	"code_clash/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(minute int) time.Time {
	return time.Date(2026, 1, 10, 12, minute, 0, 0, time.UTC)
}

func tsp(minute int) *time.Time {
	t := ts(minute)
	return &t
}

func sub(userID, challengeID string, score int, at time.Time) model.Submission {
	return model.Submission{
		ID:          userID + "-" + challengeID + "-" + at.Format("150405"),
		UserID:      userID,
		ChallengeID: challengeID,
		Score:       score,
		CreatedAt:   at,
	}
}

func TestBuildLeaderboardAggregates(t *testing.T) {
	subs := []model.Submission{
		sub("u1", "chA", 500, ts(1)),
		sub("u1", "chA", 300, ts(2)), // Lower best for the same pair: ignored
		sub("u1", "chB", 200, ts(3)),
		sub("u2", "chA", 650, ts(4)),
	}
	participants := []model.ContestParticipant{
		{ContestID: "c1", UserID: "u1"},
		{ContestID: "c1", UserID: "u2"},
		{ContestID: "c1", UserID: "u3"}, // Joined, never submitted
	}

	entries, bests := buildLeaderboard("c1", participants, subs)

	require.Len(t, entries, 3)

	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 700, entries[0].TotalScore)
	assert.Equal(t, 2, entries[0].ChallengesSolved)
	assert.Equal(t, tsp(3), entries[0].LastSubmissionAt)

	assert.Equal(t, "u2", entries[1].UserID)
	assert.Equal(t, 650, entries[1].TotalScore)
	assert.Equal(t, 1, entries[1].ChallengesSolved)

	assert.Equal(t, "u3", entries[2].UserID)
	assert.Equal(t, 0, entries[2].TotalScore)
	assert.Equal(t, 0, entries[2].ChallengesSolved)
	assert.Nil(t, entries[2].LastSubmissionAt)

	require.Len(t, bests, 3)
	assert.Equal(t, model.ContestBestSolution{
		ContestID: "c1", UserID: "u1", ChallengeID: "chA", Score: 500, CreatedAt: ts(1),
	}, bests[0])
}

func TestBuildLeaderboardZeroScoreNeverSolves(t *testing.T) {
	subs := []model.Submission{
		sub("u1", "chA", 0, ts(1)), // Forfeited or fully penalized
	}
	participants := []model.ContestParticipant{{ContestID: "c1", UserID: "u1"}}

	entries, bests := buildLeaderboard("c1", participants, subs)

	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].TotalScore)
	assert.Equal(t, 0, entries[0].ChallengesSolved)
	assert.Nil(t, entries[0].LastSubmissionAt)
	assert.Empty(t, bests)
}

func TestBuildLeaderboardIdempotent(t *testing.T) {
	subs := []model.Submission{
		sub("u1", "chA", 500, ts(1)),
		sub("u2", "chA", 300, ts(2)),
		sub("u1", "chB", 200, ts(3)),
	}
	participants := []model.ContestParticipant{
		{ContestID: "c1", UserID: "u1"},
		{ContestID: "c1", UserID: "u2"},
	}

	entries1, bests1 := buildLeaderboard("c1", participants, subs)
	entries2, bests2 := buildLeaderboard("c1", participants, subs)
	assert.Equal(t, entries1, entries2)
	assert.Equal(t, bests1, bests2)

	// Input order must not matter.
	reversed := []model.Submission{subs[2], subs[1], subs[0]}
	entries3, bests3 := buildLeaderboard("c1", participants, reversed)
	assert.Equal(t, entries1, entries3)
	assert.Equal(t, bests1, bests3)
}

func TestBuildLeaderboardTieBreakEarlierWins(t *testing.T) {
	subs := []model.Submission{
		sub("u2", "chA", 500, ts(5)),
		sub("u1", "chA", 500, ts(2)), // Same total, reached earlier
	}

	entries, _ := buildLeaderboard("c1", nil, subs)

	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, "u2", entries[1].UserID)
}

func TestBuildLeaderboardNoTimestampSortsLast(t *testing.T) {
	subs := []model.Submission{
		sub("u1", "chA", 0, ts(1)), // Zero best: no contributing timestamp
	}
	participants := []model.ContestParticipant{
		{ContestID: "c1", UserID: "u1"},
		{ContestID: "c1", UserID: "u2"},
	}

	entries, _ := buildLeaderboard("c1", participants, subs)

	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].UserID, "equal totals fall back to user id")
	assert.Equal(t, "u2", entries[1].UserID)
}

type leaderboardEnv struct {
	svc      *LeaderboardService
	subs     *fakeSubmissionRepo
	contests *fakeContestRepo
	boards   *fakeLeaderboardRepo
	clock    *fakeClock
}

func newLeaderboardEnv(t *testing.T) *leaderboardEnv {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	env := &leaderboardEnv{
		subs:     newFakeSubmissionRepo(clock.Now),
		contests: newFakeContestRepo(clock.Now),
		boards:   newFakeLeaderboardRepo(),
		clock:    clock,
	}
	env.svc = NewLeaderboardService(env.boards, env.subs, env.contests)

	env.contests.contests["c1"] = &model.Contest{
		ID:           "c1",
		Title:        "Winter Clash",
		StartTime:    ts(0),
		EndTime:      ts(0).Add(4 * time.Hour),
		IsActive:     true,
		ChallengeIDs: []string{"chA", "chB"},
	}
	return env
}

func (e *leaderboardEnv) seedSubmission(userID, challengeID string, score int, at time.Time) {
	e.subs.subs[pairKey(userID, challengeID)] = &model.Submission{
		ID:          userID + "-" + challengeID,
		UserID:      userID,
		ChallengeID: challengeID,
		Score:       score,
		CreatedAt:   at,
	}
}

func TestRebuildContestLeaderboard(t *testing.T) {
	env := newLeaderboardEnv(t)
	ctx := context.Background()

	require.NoError(t, env.contests.JoinContest(ctx, "c1", "u3"))
	env.seedSubmission("u1", "chA", 500, ts(1))
	env.seedSubmission("u1", "chB", 200, ts(3))
	env.seedSubmission("u2", "chA", 650, ts(4))
	env.seedSubmission("u2", "chC", 900, ts(5)) // Not a contest challenge

	require.NoError(t, env.svc.RebuildContestLeaderboard(ctx, "c1"))

	entries := env.boards.replaced["c1"]
	require.Len(t, entries, 3)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, 700, entries[0].TotalScore)
	assert.Equal(t, "u2", entries[1].UserID)
	assert.Equal(t, 650, entries[1].TotalScore, "chC must not leak into the contest board")
	assert.Equal(t, "u3", entries[2].UserID)
	assert.Equal(t, 0, entries[2].TotalScore)

	// Rebuilding over the same ledger replaces the board with identical rows.
	require.NoError(t, env.svc.RebuildContestLeaderboard(ctx, "c1"))
	assert.Equal(t, 2, env.boards.replaceCalls)
	assert.Equal(t, entries, env.boards.replaced["c1"])
}

func TestRebuildDropsOutOfWindowSubmissions(t *testing.T) {
	env := newLeaderboardEnv(t)
	ctx := context.Background()

	env.seedSubmission("u1", "chA", 500, ts(0).Add(-time.Minute))
	env.seedSubmission("u2", "chA", 300, ts(2))

	require.NoError(t, env.svc.RebuildContestLeaderboard(ctx, "c1"))

	entries := env.boards.replaced["c1"]
	require.Len(t, entries, 1)
	assert.Equal(t, "u2", entries[0].UserID)
}

func TestGetContestLeaderboardAssignsRanks(t *testing.T) {
	env := newLeaderboardEnv(t)
	ctx := context.Background()

	env.seedSubmission("u1", "chA", 500, ts(1))
	env.seedSubmission("u2", "chA", 300, ts(2))

	entries, err := env.svc.GetContestLeaderboard(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "u2", entries[1].UserID)
}

func TestGetGlobalLeaderboard(t *testing.T) {
	env := newLeaderboardEnv(t)
	ctx := context.Background()

	env.seedSubmission("u1", "chA", 500, ts(1))
	env.seedSubmission("u1", "chB", 200, ts(2))
	env.seedSubmission("u2", "chA", 650, ts(3))

	entries, err := env.svc.GetGlobalLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, 700, entries[0].TotalScore)
	assert.Equal(t, 2, entries[0].ChallengesSolved)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "u2", entries[1].UserID)
}
