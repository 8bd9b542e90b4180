package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
)

// In-memory fakes for the repository interfaces so service logic runs
// without Postgres. The submission fake mirrors the conditional-upsert
// semantics of the SQL statement it stands in for.

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func pairKey(userID, challengeID string) string {
	return userID + "|" + challengeID
}

type fakeSubmissionRepo struct {
	subs    map[string]*model.Submission
	unlocks map[string]bool
	now     func() time.Time
}

func newFakeSubmissionRepo(now func() time.Time) *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		subs:    make(map[string]*model.Submission),
		unlocks: make(map[string]bool),
		now:     now,
	}
}

func (r *fakeSubmissionRepo) UpsertBest(_ context.Context, _ *sql.Tx, sub *model.Submission, unlocked bool) (bool, error) {
	key := pairKey(sub.UserID, sub.ChallengeID)
	existing, ok := r.subs[key]
	if !ok {
		stored := *sub
		stored.CreatedAt = r.now()
		r.subs[key] = &stored
		sub.CreatedAt = stored.CreatedAt
		return true, nil
	}

	if sub.Score >= existing.Score || (unlocked && sub.Accuracy > existing.Accuracy) {
		stored := *sub
		stored.ID = existing.ID // Conflict keeps the original row id
		stored.CreatedAt = r.now()
		r.subs[key] = &stored
		sub.ID = stored.ID
		sub.CreatedAt = stored.CreatedAt
		return true, nil
	}
	return false, nil
}

func (r *fakeSubmissionRepo) GetByUserAndChallenge(_ context.Context, userID, challengeID string) (*model.Submission, error) {
	if sub, ok := r.subs[pairKey(userID, challengeID)]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (r *fakeSubmissionRepo) ListForChallengesInWindow(_ context.Context, challengeIDs []string, from, to time.Time) ([]model.Submission, error) {
	wanted := make(map[string]bool, len(challengeIDs))
	for _, id := range challengeIDs {
		wanted[id] = true
	}

	var out []model.Submission
	for _, sub := range r.subs {
		if wanted[sub.ChallengeID] && !sub.CreatedAt.Before(from) && !sub.CreatedAt.After(to) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) ListBestByChallenge(_ context.Context, challengeID string, limit int) ([]model.Submission, error) {
	var out []model.Submission
	for _, sub := range r.subs {
		if sub.ChallengeID == challengeID && sub.Score > 0 {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSubmissionRepo) SumBestScores(_ context.Context, _ *sql.Tx, userID string) (int, error) {
	total := 0
	for _, sub := range r.subs {
		if sub.UserID == userID {
			total += sub.Score
		}
	}
	return total, nil
}

func (r *fakeSubmissionRepo) GlobalTotals(_ context.Context, limit int) ([]model.GlobalLeaderboardEntry, error) {
	totals := map[string]*model.GlobalLeaderboardEntry{}
	for _, sub := range r.subs {
		e, ok := totals[sub.UserID]
		if !ok {
			e = &model.GlobalLeaderboardEntry{UserID: sub.UserID, Username: sub.UserID}
			totals[sub.UserID] = e
		}
		e.TotalScore += sub.Score
		if sub.Score > 0 {
			e.ChallengesSolved++
		}
	}

	out := make([]model.GlobalLeaderboardEntry, 0, len(totals))
	for _, e := range totals {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return strings.Compare(out[i].Username, out[j].Username) < 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSubmissionRepo) CreateUnlock(_ context.Context, _ *sql.Tx, userID, challengeID string) error {
	r.unlocks[pairKey(userID, challengeID)] = true
	return nil
}

func (r *fakeSubmissionRepo) IsUnlocked(_ context.Context, userID, challengeID string) (bool, error) {
	return r.unlocks[pairKey(userID, challengeID)], nil
}

func (r *fakeSubmissionRepo) PinForfeited(_ context.Context, _ *sql.Tx, userID, challengeID string) error {
	key := pairKey(userID, challengeID)
	if existing, ok := r.subs[key]; ok {
		existing.Accuracy = 100
		existing.Score = 0
		return nil
	}
	r.subs[key] = &model.Submission{
		ID:          "pinned-" + key,
		UserID:      userID,
		ChallengeID: challengeID,
		Accuracy:    100,
		Score:       0,
		CreatedAt:   r.now(),
	}
	return nil
}

type fakeChallengeRepo struct {
	challenges map[string]*model.Challenge
	hints      map[string][]model.Hint     // challengeID -> hints
	hintUsage  map[string]map[string]bool  // user|challenge -> hintID set
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{
		challenges: make(map[string]*model.Challenge),
		hints:      make(map[string][]model.Hint),
		hintUsage:  make(map[string]map[string]bool),
	}
}

func (r *fakeChallengeRepo) CreateChallenge(_ context.Context, _ *sql.Tx, ch *model.Challenge) error {
	r.challenges[ch.ID] = ch
	return nil
}

func (r *fakeChallengeRepo) UpdateChallenge(_ context.Context, _ *sql.Tx, ch *model.Challenge) error {
	r.challenges[ch.ID] = ch
	return nil
}

func (r *fakeChallengeRepo) DeleteChallenge(_ context.Context, id string) error {
	if _, ok := r.challenges[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.challenges, id)
	return nil
}

func (r *fakeChallengeRepo) FindChallengeByID(_ context.Context, id string) (*model.Challenge, error) {
	if ch, ok := r.challenges[id]; ok {
		return ch, nil
	}
	return nil, common.ErrNotFound
}

func (r *fakeChallengeRepo) FindChallengeBySlug(_ context.Context, slug string) (*model.Challenge, error) {
	for _, ch := range r.challenges {
		if ch.Slug == slug {
			return ch, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeChallengeRepo) ListChallenges(_ context.Context, _, _ int, _ model.ChallengeDifficulty) ([]model.Challenge, int, error) {
	out := make([]model.Challenge, 0, len(r.challenges))
	for _, ch := range r.challenges {
		out = append(out, *ch)
	}
	return out, len(out), nil
}

func (r *fakeChallengeRepo) AddHints(_ context.Context, _ *sql.Tx, challengeID string, hints []model.Hint) error {
	r.hints[challengeID] = append(r.hints[challengeID], hints...)
	return nil
}

func (r *fakeChallengeRepo) GetHintsByChallengeID(_ context.Context, challengeID string) ([]model.Hint, error) {
	return r.hints[challengeID], nil
}

func (r *fakeChallengeRepo) RecordHintUsage(_ context.Context, userID, challengeID, hintID string) error {
	key := pairKey(userID, challengeID)
	if r.hintUsage[key] == nil {
		r.hintUsage[key] = make(map[string]bool)
	}
	r.hintUsage[key][hintID] = true
	return nil
}

func (r *fakeChallengeRepo) CountHintUsage(_ context.Context, userID, challengeID string) (int, error) {
	return len(r.hintUsage[pairKey(userID, challengeID)]), nil
}

type fakeContestRepo struct {
	contests     map[string]*model.Contest
	participants map[string][]model.ContestParticipant
	history      []model.ContestSolutionHistory
	now          func() time.Time
}

func newFakeContestRepo(now func() time.Time) *fakeContestRepo {
	return &fakeContestRepo{
		contests:     make(map[string]*model.Contest),
		participants: make(map[string][]model.ContestParticipant),
		now:          now,
	}
}

func (r *fakeContestRepo) CreateContest(_ context.Context, _ *sql.Tx, c *model.Contest) error {
	r.contests[c.ID] = c
	return nil
}

func (r *fakeContestRepo) FindContestByID(_ context.Context, id string) (*model.Contest, error) {
	if c, ok := r.contests[id]; ok {
		return c, nil
	}
	return nil, common.ErrNotFound
}

func (r *fakeContestRepo) ListContests(_ context.Context, _, _ int) ([]model.Contest, int, error) {
	out := make([]model.Contest, 0, len(r.contests))
	for _, c := range r.contests {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *fakeContestRepo) JoinContest(_ context.Context, contestID, userID string) error {
	for _, p := range r.participants[contestID] {
		if p.UserID == userID {
			return nil
		}
	}
	r.participants[contestID] = append(r.participants[contestID], model.ContestParticipant{
		ContestID: contestID,
		UserID:    userID,
		JoinedAt:  r.now(),
	})
	return nil
}

func (r *fakeContestRepo) ListParticipants(_ context.Context, contestID string) ([]model.ContestParticipant, error) {
	return r.participants[contestID], nil
}

func (r *fakeContestRepo) FindRunningContestForChallenge(_ context.Context, challengeID string, now time.Time) (*model.Contest, error) {
	for _, c := range r.contests {
		if !c.Running(now) {
			continue
		}
		for _, id := range c.ChallengeIDs {
			if id == challengeID {
				return c, nil
			}
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeContestRepo) AppendSolutionHistory(_ context.Context, _ *sql.Tx, h *model.ContestSolutionHistory) error {
	h.CreatedAt = r.now()
	r.history = append(r.history, *h)
	return nil
}

func (r *fakeContestRepo) AggregateUserHistory(_ context.Context, _ *sql.Tx, contestID, userID string) (int, int, error) {
	maxPerChallenge := map[string]int{}
	for _, h := range r.history {
		if h.ContestID != contestID || h.UserID != userID {
			continue
		}
		if cur, ok := maxPerChallenge[h.ChallengeID]; !ok || h.Score > cur {
			maxPerChallenge[h.ChallengeID] = h.Score
		}
	}

	total, solved := 0, 0
	for _, max := range maxPerChallenge {
		total += max
		if max > 0 {
			solved++
		}
	}
	return total, solved, nil
}

type fakeLeaderboardRepo struct {
	entries       map[string]map[string]model.LeaderboardEntry // contestID -> userID -> entry
	replaced      map[string][]model.LeaderboardEntry          // last ReplaceContest input
	replacedBests map[string][]model.ContestBestSolution
	replaceCalls  int
}

func newFakeLeaderboardRepo() *fakeLeaderboardRepo {
	return &fakeLeaderboardRepo{
		entries:       make(map[string]map[string]model.LeaderboardEntry),
		replaced:      make(map[string][]model.LeaderboardEntry),
		replacedBests: make(map[string][]model.ContestBestSolution),
	}
}

func (r *fakeLeaderboardRepo) UpsertEntry(_ context.Context, _ *sql.Tx, e *model.LeaderboardEntry) error {
	if r.entries[e.ContestID] == nil {
		r.entries[e.ContestID] = make(map[string]model.LeaderboardEntry)
	}
	r.entries[e.ContestID][e.UserID] = *e
	return nil
}

func (r *fakeLeaderboardRepo) ReplaceContest(_ context.Context, contestID string, entries []model.LeaderboardEntry, bests []model.ContestBestSolution) error {
	r.replaceCalls++
	r.replaced[contestID] = append([]model.LeaderboardEntry(nil), entries...)
	r.replacedBests[contestID] = append([]model.ContestBestSolution(nil), bests...)

	r.entries[contestID] = make(map[string]model.LeaderboardEntry)
	for _, e := range entries {
		r.entries[contestID][e.UserID] = e
	}
	return nil
}

func (r *fakeLeaderboardRepo) ListEntries(_ context.Context, contestID string, limit int) ([]model.LeaderboardEntry, error) {
	out := make([]model.LeaderboardEntry, 0, len(r.entries[contestID]))
	for _, e := range r.entries[contestID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
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
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return common.ErrConflict
		}
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) UpdateRankTitle(_ context.Context, _ *sql.Tx, userID, rankTitle string) error {
	if u, ok := r.users[userID]; ok {
		u.RankTitle = rankTitle
		return nil
	}
	return common.ErrNotFound
}
