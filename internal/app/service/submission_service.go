package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"math"
	"time"
	"unicode/utf8"

	"code_clash/internal/app/metrics"
	"code_clash/internal/app/ratelimit"
	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/domain/repository"
	"code_clash/internal/domain/scoring"

	"github.com/google/uuid"
)

// SubmissionService owns the submission ledger: the monotonic best-record
// rule, forfeiture, the contest fast path and the lifetime rank recompute.
type SubmissionService struct {
	submissionRepo  repository.SubmissionRepository
	challengeRepo   repository.ChallengeRepository
	contestRepo     repository.ContestRepository
	leaderboardRepo repository.LeaderboardRepository
	userRepo        repository.UserRepository
	limiter         ratelimit.Limiter
	txm             repository.TxManager
	now             func() time.Time
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	challengeRepo repository.ChallengeRepository,
	contestRepo repository.ContestRepository,
	leaderboardRepo repository.LeaderboardRepository,
	userRepo repository.UserRepository,
	limiter ratelimit.Limiter,
	txm repository.TxManager,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo:  subRepo,
		challengeRepo:   challengeRepo,
		contestRepo:     contestRepo,
		leaderboardRepo: leaderboardRepo,
		userRepo:        userRepo,
		limiter:         limiter,
		txm:             txm,
		now:             time.Now,
	}
}

type RecordAttemptRequest struct {
	ChallengeID     string  `json:"challenge_id" validate:"required"`
	Code            string  `json:"code" validate:"required"`
	Accuracy        float64 `json:"accuracy" validate:"min=0,max=100"`
	DurationSeconds int     `json:"duration_seconds" validate:"min=0"`
}

type RecordAttemptResult struct {
	Accepted   bool              `json:"accepted"`
	Submission *model.Submission `json:"submission"`
}

// RecordAttempt scores an attempt and applies the ledger rules. The accuracy
// measurement is trusted as supplied; the score is recomputed here with the
// pure scoring function so the client cannot inflate it independently.
func (s *SubmissionService) RecordAttempt(ctx context.Context, userID string, req RecordAttemptRequest) (*RecordAttemptResult, error) {
	allowed, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		return nil, common.Errorf("rate limiter unavailable: %w", err)
	}
	if !allowed {
		metrics.SubmissionsRateLimited.Inc()
		return nil, common.ErrRateLimited
	}

	challenge, err := s.challengeRepo.FindChallengeByID(ctx, req.ChallengeID)
	if err != nil {
		return nil, common.Errorf("challenge not found: %w", err)
	}

	accuracy := math.Round(req.Accuracy*10) / 10 // One decimal, like the measurement
	charCount := utf8.RuneCountInString(req.Code)

	hintsUsed, err := s.challengeRepo.CountHintUsage(ctx, userID, challenge.ID)
	if err != nil {
		return nil, common.Errorf("failed to count hint usage: %w", err)
	}

	rawScore := scoring.Compute(accuracy, charCount, hintsUsed, challenge.TargetChars)

	unlocked, err := s.submissionRepo.IsUnlocked(ctx, userID, challenge.ID)
	if err != nil {
		return nil, common.Errorf("failed to check forfeiture: %w", err)
	}

	finalScore := rawScore
	if unlocked {
		// Forfeiture overrides the raw score unconditionally.
		finalScore = 0
	}

	sub := &model.Submission{
		ID:              uuid.NewString(),
		UserID:          userID,
		ChallengeID:     challenge.ID,
		Code:            req.Code,
		Accuracy:        accuracy,
		Score:           finalScore,
		DurationSeconds: req.DurationSeconds,
		CharCount:       charCount,
	}

	var accepted bool
	err = s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		accepted, err = s.submissionRepo.UpsertBest(ctx, tx, sub, unlocked)
		if err != nil {
			return common.Errorf("failed to upsert submission: %w", err)
		}
		if !accepted {
			return nil
		}
		if err := s.refreshRankTitle(ctx, tx, userID); err != nil {
			return err
		}
		return s.recordContestAttempt(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	if !accepted {
		// Worse attempt: nothing may change, not even a timestamp.
		metrics.SubmissionsRejected.Inc()
		existing, err := s.submissionRepo.GetByUserAndChallenge(ctx, userID, challenge.ID)
		if err != nil {
			return nil, common.Errorf("failed to load existing submission: %w", err)
		}
		return &RecordAttemptResult{Accepted: false, Submission: existing}, nil
	}

	metrics.SubmissionsAccepted.Inc()
	return &RecordAttemptResult{Accepted: true, Submission: sub}, nil
}

// refreshRankTitle recomputes the lifetime rank from the global best-score
// sum and persists it, inside the caller's transaction.
func (s *SubmissionService) refreshRankTitle(ctx context.Context, tx *sql.Tx, userID string) error {
	total, err := s.submissionRepo.SumBestScores(ctx, tx, userID)
	if err != nil {
		return common.Errorf("failed to sum best scores: %w", err)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return common.Errorf("failed to load user: %w", err)
	}
	title := model.RankTitleForUser(user.Role, total)
	if err := s.userRepo.UpdateRankTitle(ctx, tx, userID, title); err != nil {
		return common.Errorf("failed to persist rank title: %w", err)
	}
	return nil
}

// recordContestAttempt runs the contest fast path: append the attempt to the
// contest history and refresh the user's live leaderboard row. The next full
// rebuild supersedes whatever this writes.
func (s *SubmissionService) recordContestAttempt(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	now := s.now()
	contest, err := s.contestRepo.FindRunningContestForChallenge(ctx, sub.ChallengeID, now)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil // Challenge is not part of a running contest
		}
		return common.Errorf("failed to look up contest: %w", err)
	}

	history := &model.ContestSolutionHistory{
		ID:              uuid.NewString(),
		ContestID:       contest.ID,
		UserID:          sub.UserID,
		ChallengeID:     sub.ChallengeID,
		Code:            sub.Code,
		Accuracy:        sub.Accuracy,
		Score:           sub.Score,
		DurationSeconds: sub.DurationSeconds,
	}
	if err := s.contestRepo.AppendSolutionHistory(ctx, tx, history); err != nil {
		return common.Errorf("failed to append contest history: %w", err)
	}

	totalScore, challengesSolved, err := s.contestRepo.AggregateUserHistory(ctx, tx, contest.ID, sub.UserID)
	if err != nil {
		return common.Errorf("failed to aggregate contest history: %w", err)
	}

	entry := &model.LeaderboardEntry{
		ContestID:        contest.ID,
		UserID:           sub.UserID,
		TotalScore:       totalScore,
		ChallengesSolved: challengesSolved,
		LastSubmissionAt: &now,
	}
	if err := s.leaderboardRepo.UpsertEntry(ctx, tx, entry); err != nil {
		return common.Errorf("failed to upsert leaderboard entry: %w", err)
	}
	return nil
}

// Unlock permanently forfeits future points for a challenge in exchange for
// solution access. Idempotent; blocked once the challenge is solved.
func (s *SubmissionService) Unlock(ctx context.Context, userID, challengeID string) error {
	if _, err := s.challengeRepo.FindChallengeByID(ctx, challengeID); err != nil {
		return common.Errorf("challenge not found: %w", err)
	}

	unlocked, err := s.submissionRepo.IsUnlocked(ctx, userID, challengeID)
	if err != nil {
		return common.Errorf("failed to check forfeiture: %w", err)
	}
	if unlocked {
		return nil // Already forfeited; safe to call twice
	}

	existing, err := s.submissionRepo.GetByUserAndChallenge(ctx, userID, challengeID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return common.Errorf("failed to load submission: %w", err)
	}
	if existing != nil && existing.IsSolved() {
		return common.Errorf("challenge already solved, nothing to forfeit: %w", common.ErrForbidden)
	}

	err = s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.submissionRepo.CreateUnlock(ctx, tx, userID, challengeID); err != nil {
			return common.Errorf("failed to create unlock record: %w", err)
		}
		if err := s.submissionRepo.PinForfeited(ctx, tx, userID, challengeID); err != nil {
			return common.Errorf("failed to pin forfeited submission: %w", err)
		}
		return s.refreshRankTitle(ctx, tx, userID)
	})
	if err != nil {
		return err
	}

	log.Printf("User %s forfeited challenge %s", userID, challengeID)
	return nil
}

func (s *SubmissionService) GetUserChallengeStats(ctx context.Context, userID, challengeID string) (*model.UserChallengeStats, error) {
	best, err := s.submissionRepo.GetByUserAndChallenge(ctx, userID, challengeID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to load submission: %w", err)
	}

	unlocked, err := s.submissionRepo.IsUnlocked(ctx, userID, challengeID)
	if err != nil {
		return nil, common.Errorf("failed to check forfeiture: %w", err)
	}

	stats := &model.UserChallengeStats{
		Best:       best,
		IsUnlocked: unlocked,
		IsSolved:   best != nil && best.IsSolved(),
	}
	return stats, nil
}

// GetSolutions returns the pooled top solutions for a challenge. A user may
// view them once Solved or Forfeited; while the challenge's contest is
// running only the organizer and admins get through (fair-play window).
func (s *SubmissionService) GetSolutions(ctx context.Context, userID, role, challengeID string, limit int) ([]model.Submission, error) {
	stats, err := s.GetUserChallengeStats(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if role != model.RoleAdmin && !stats.IsSolved && !stats.IsUnlocked {
		return nil, common.Errorf("solve or unlock the challenge first: %w", common.ErrForbidden)
	}

	contest, err := s.contestRepo.FindRunningContestForChallenge(ctx, challengeID, s.now())
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to look up contest: %w", err)
	}
	if contest != nil {
		organizer := contest.CreatedByID != nil && *contest.CreatedByID == userID
		if role != model.RoleAdmin && !organizer {
			return nil, common.Errorf("solutions are hidden while the contest is running: %w", common.ErrForbidden)
		}
	}

	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.submissionRepo.ListBestByChallenge(ctx, challengeID, limit)
}
