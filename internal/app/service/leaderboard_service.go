package service

import (
	"context"
	"sort"
	"time"

	"code_clash/internal/app/metrics"
	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/domain/repository"
)

// LeaderboardService serves contest and global leaderboards. The contest
// board is rebuilt from the canonical submission ledger before every read;
// the incremental rows written on the submission path are only a fast-path
// cache that each rebuild supersedes.
type LeaderboardService struct {
	leaderboardRepo repository.LeaderboardRepository
	submissionRepo  repository.SubmissionRepository
	contestRepo     repository.ContestRepository
}

func NewLeaderboardService(
	leaderboardRepo repository.LeaderboardRepository,
	submissionRepo repository.SubmissionRepository,
	contestRepo repository.ContestRepository,
) *LeaderboardService {
	return &LeaderboardService{
		leaderboardRepo: leaderboardRepo,
		submissionRepo:  submissionRepo,
		contestRepo:     contestRepo,
	}
}

// RebuildContestLeaderboard recomputes every leaderboard row for the contest
// from the global submission ledger. Running it twice over the same rows
// produces identical output; the replace step is one transaction, so readers
// never see a half-written board.
func (s *LeaderboardService) RebuildContestLeaderboard(ctx context.Context, contestID string) error {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return common.Errorf("contest not found: %w", err)
	}

	participants, err := s.contestRepo.ListParticipants(ctx, contestID)
	if err != nil {
		return common.Errorf("failed to list participants: %w", err)
	}

	subs, err := s.submissionRepo.ListForChallengesInWindow(ctx, contest.ChallengeIDs, contest.StartTime, contest.EndTime)
	if err != nil {
		return common.Errorf("failed to load submissions: %w", err)
	}

	entries, bests := buildLeaderboard(contestID, participants, subs)

	if err := s.leaderboardRepo.ReplaceContest(ctx, contestID, entries, bests); err != nil {
		return common.Errorf("failed to replace leaderboard: %w", err)
	}

	metrics.LeaderboardRebuilds.Inc()
	return nil
}

func (s *LeaderboardService) GetContestLeaderboard(ctx context.Context, contestID string, limit int) ([]model.LeaderboardEntry, error) {
	if err := s.RebuildContestLeaderboard(ctx, contestID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.leaderboardRepo.ListEntries(ctx, contestID, limit)
	if err != nil {
		return nil, common.Errorf("failed to list leaderboard entries: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *LeaderboardService) GetGlobalLeaderboard(ctx context.Context, limit int) ([]model.GlobalLeaderboardEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.submissionRepo.GlobalTotals(ctx, limit)
	if err != nil {
		return nil, common.Errorf("failed to load global totals: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// buildLeaderboard derives the leaderboard rows for one contest from the raw
// submission rows inside its window. Pure: output depends only on input, so
// the rebuild stays idempotent.
//
// A score of exactly zero never counts as a solve; a participant with no
// positive best still gets a row with total 0. Ties on total score rank the
// user who reached it earlier higher; users without a contributing timestamp
// sort after those with one.
func buildLeaderboard(contestID string, participants []model.ContestParticipant, subs []model.Submission) ([]model.LeaderboardEntry, []model.ContestBestSolution) {
	type bestKey struct {
		userID      string
		challengeID string
	}
	type userAgg struct {
		totalScore       int
		challengesSolved int
		lastSubmission   time.Time
	}

	bestByPair := map[bestKey]model.Submission{}
	for _, sub := range subs {
		if sub.Score <= 0 {
			continue
		}
		key := bestKey{sub.UserID, sub.ChallengeID}
		if cur, ok := bestByPair[key]; !ok || sub.Score > cur.Score {
			bestByPair[key] = sub
		}
	}

	users := map[string]*userAgg{}
	for _, p := range participants {
		users[p.UserID] = &userAgg{}
	}
	for key, best := range bestByPair {
		agg, ok := users[key.userID]
		if !ok {
			agg = &userAgg{}
			users[key.userID] = agg
		}
		agg.totalScore += best.Score
		agg.challengesSolved++
		if best.CreatedAt.After(agg.lastSubmission) {
			agg.lastSubmission = best.CreatedAt
		}
	}

	entries := make([]model.LeaderboardEntry, 0, len(users))
	for userID, agg := range users {
		entry := model.LeaderboardEntry{
			ContestID:        contestID,
			UserID:           userID,
			TotalScore:       agg.totalScore,
			ChallengesSolved: agg.challengesSolved,
		}
		if !agg.lastSubmission.IsZero() {
			t := agg.lastSubmission
			entry.LastSubmissionAt = &t
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		switch {
		case a.LastSubmissionAt == nil && b.LastSubmissionAt == nil:
			return a.UserID < b.UserID
		case a.LastSubmissionAt == nil:
			return false
		case b.LastSubmissionAt == nil:
			return true
		case !a.LastSubmissionAt.Equal(*b.LastSubmissionAt):
			return a.LastSubmissionAt.Before(*b.LastSubmissionAt)
		default:
			return a.UserID < b.UserID
		}
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	bests := make([]model.ContestBestSolution, 0, len(bestByPair))
	for key, best := range bestByPair {
		bests = append(bests, model.ContestBestSolution{
			ContestID:   contestID,
			UserID:      key.userID,
			ChallengeID: key.challengeID,
			Score:       best.Score,
			CreatedAt:   best.CreatedAt,
		})
	}
	sort.Slice(bests, func(i, j int) bool {
		if bests[i].UserID != bests[j].UserID {
			return bests[i].UserID < bests[j].UserID
		}
		return bests[i].ChallengeID < bests[j].ChallengeID
	})

	return entries, bests
}
