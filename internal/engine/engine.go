// Package engine is the command surface of the progression system: one
// method per user-facing command, each returning a typed result for the
// chat adapter to render. The engine never formats user-facing text.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leetciv/leetciv-bot/internal/account"
	"github.com/leetciv/leetciv-bot/internal/battle"
	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/ephemeral"
	"github.com/leetciv/leetciv-bot/internal/lcapi"
	"github.com/leetciv/leetciv-bot/internal/linkverify"
	"github.com/leetciv/leetciv-bot/internal/obslog"
	"github.com/leetciv/leetciv-bot/internal/progression"
	"github.com/leetciv/leetciv-bot/internal/rankup"
)

var (
	ErrNotLinked           = errors.New("no linked account")
	ErrTargetUnlinked      = errors.New("target has no linked account")
	ErrDailyAlreadyClaimed = errors.New("daily tickets already claimed")
	ErrBadDifficulty       = errors.New("unknown difficulty")
)

type Engine struct {
	repo   account.Repository
	oracle lcapi.Oracle

	links   *linkverify.Manager
	rankups *rankup.Manager
	battles *battle.Manager

	recentLimit     int
	leaderboardSize int
}

type Option func(*Engine)

func WithRecentSubmissionLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.recentLimit = n
		}
	}
}

func WithLeaderboardSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.leaderboardSize = n
		}
	}
}

func New(store *ephemeral.Store, repo account.Repository, oracle lcapi.Oracle, opts ...Option) *Engine {
	e := &Engine{
		repo:            repo,
		oracle:          oracle,
		links:           linkverify.NewManager(store, repo, oracle),
		rankups:         rankup.NewManager(store, repo, oracle),
		battles:         battle.NewManager(store, repo, oracle),
		recentLimit:     15,
		leaderboardSize: 10,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// requireAccount is the guard in front of every command that needs a linked
// account. The returned copy is only valid for the current command.
func (e *Engine) requireAccount(ctx context.Context, userID string) (*domain.Account, error) {
	acct, err := e.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotLinked
	}
	return acct, nil
}

// Link starts the account-linking flow and returns the verification code.
func (e *Engine) Link(ctx context.Context, userID, handle string) (*linkverify.Pending, error) {
	return e.links.Start(ctx, userID, handle)
}

// ConfirmLink completes the linking flow and returns the fresh account.
func (e *Engine) ConfirmLink(ctx context.Context, userID string) (*domain.Account, error) {
	return e.links.Confirm(ctx, userID)
}

// Profile returns the stored account snapshot. Solved counts are as of the
// last sync, not realtime.
func (e *Engine) Profile(ctx context.Context, userID string) (*domain.Account, error) {
	return e.requireAccount(ctx, userID)
}

// SyncResult reports what a sync changed.
type SyncResult struct {
	Easies  int // newly solved since last sync, clamped at zero
	Mediums int
	Hards   int
	Tickets int
	Counts  domain.SolveCounts
}

// Sync refreshes the solved-count snapshot and pays tickets for the
// positive deltas.
func (e *Engine) Sync(ctx context.Context, userID string) (*SyncResult, error) {
	acct, err := e.requireAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := e.oracle.SolveCounts(ctx, acct.LeetcodeHandle)
	if err != nil {
		return nil, err
	}
	if err := e.repo.SetSolvedCounts(ctx, userID, counts); err != nil {
		return nil, err
	}

	res := &SyncResult{
		Easies:  max(0, counts.Easy-acct.Easies),
		Mediums: max(0, counts.Medium-acct.Mediums),
		Hards:   max(0, counts.Hard-acct.Hards),
		Counts:  counts,
	}
	res.Tickets = progression.TicketsForSolves(res.Easies, res.Mediums, res.Hards)
	if res.Tickets > 0 {
		if err := e.repo.SetTickets(ctx, userID, acct.Tickets+res.Tickets); err != nil {
			return nil, err
		}
	}
	obslog.L().Info("sync",
		zap.String("user_id", userID),
		zap.Int("tickets", res.Tickets),
	)
	return res, nil
}

// DailyResult reports a daily-ticket claim attempt. Claimed is false when
// the daily problem was not found in the user's recent accepted submissions
// within today's window.
type DailyResult struct {
	Claimed    bool
	Problem    domain.Problem
	Link       string
	Reward     int
	NewTickets int
}

// ClaimDaily pays the daily reward once per daily period. The whole recent
// submission window is scanned, but the submission must fall inside the
// daily's own UTC day.
func (e *Engine) ClaimDaily(ctx context.Context, userID string) (*DailyResult, error) {
	acct, err := e.requireAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	daily, err := e.oracle.DailyProblem(ctx)
	if err != nil {
		return nil, err
	}

	day, err := time.ParseInLocation("2006-01-02", daily.Date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse daily date %q: %w", daily.Date, err)
	}
	periodStart := day.Unix()

	claimed, err := e.repo.HasDailyClaim(ctx, userID, periodStart)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrDailyAlreadyClaimed
	}

	res := &DailyResult{
		Problem: daily.Problem,
		Link:    daily.Link,
		Reward:  progression.DailyReward(daily.Problem.Difficulty, daily.Problem.AcceptanceRate),
	}

	recent, err := e.oracle.RecentAccepted(ctx, acct.LeetcodeHandle, e.recentLimit)
	if err != nil {
		return nil, err
	}
	for _, sub := range recent {
		if sub.TitleSlug != daily.Problem.TitleSlug {
			continue
		}
		if sub.Timestamp < periodStart || sub.Timestamp > periodStart+86400 {
			continue
		}
		if err := e.repo.RecordDailyClaim(ctx, userID, periodStart); err != nil {
			return nil, err
		}
		res.Claimed = true
		res.NewTickets = acct.Tickets + res.Reward
		if err := e.repo.SetTickets(ctx, userID, res.NewTickets); err != nil {
			return nil, err
		}
		obslog.L().Info("daily_claim",
			zap.String("user_id", userID),
			zap.String("problem", daily.Problem.TitleSlug),
			zap.Int("reward", res.Reward),
		)
		return res, nil
	}
	return res, nil
}

// RankupPhase discriminates the outcomes of the start-or-verify command.
type RankupPhase int

const (
	// RankupStarted means a new challenge was issued.
	RankupStarted RankupPhase = iota
	// RankupAdvanced means verification succeeded below Champion.
	RankupAdvanced
	// RankupLPGained means verification succeeded at Champion.
	RankupLPGained
)

type RankupResult struct {
	Phase   RankupPhase
	Cost    int
	Pending *rankup.PendingChallenge
	Verify  *rankup.VerifyResult
}

// Rankup starts a challenge when none is pending, otherwise verifies the
// pending one. An expired challenge reads as "none pending" and starts a
// fresh attempt.
func (e *Engine) Rankup(ctx context.Context, userID string) (*RankupResult, error) {
	acct, err := e.requireAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending, err := e.rankups.Pending(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		verify, err := e.rankups.Verify(ctx, acct)
		if err != nil {
			return nil, err
		}
		res := &RankupResult{Phase: RankupAdvanced, Verify: verify}
		if !verify.RankedUp {
			res.Phase = RankupLPGained
		}
		return res, nil
	}

	started, err := e.rankups.Start(ctx, acct)
	if err != nil {
		return nil, err
	}
	return &RankupResult{Phase: RankupStarted, Cost: started.TicketCost, Pending: started}, nil
}

// BattleRequestResult is the opened request plus the bits the adapter needs
// to phrase it.
type BattleRequestResult struct {
	Request *battle.Request
	HasNoob bool
}

// RequestBattle opens a battle request against the target.
func (e *Engine) RequestBattle(ctx context.Context, challengerID, targetID, difficulty string) (*BattleRequestResult, error) {
	acct, err := e.requireAccount(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	d, ok := domain.ParseDifficulty(difficulty)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadDifficulty, difficulty)
	}
	if challengerID == targetID {
		return nil, battle.ErrSelfChallenge
	}
	target, err := e.repo.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrTargetUnlinked
	}

	req, err := e.battles.Request(ctx, challengerID, targetID, d)
	if err != nil {
		return nil, err
	}
	return &BattleRequestResult{
		Request: req,
		HasNoob: acct.Rank == domain.RankNoob || target.Rank == domain.RankNoob,
	}, nil
}

// AcceptBattle opens the battle for a previously requested pair. Ranks are
// re-read here, so the Noob exemption reflects accept-time state.
func (e *Engine) AcceptBattle(ctx context.Context, challengerID, targetID string) (*battle.Battle, error) {
	challenger, err := e.requireAccount(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	target, err := e.requireAccount(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return e.battles.Accept(ctx, challenger, target)
}

// DeclineBattle drops the pair's outstanding request.
func (e *Engine) DeclineBattle(ctx context.Context, challengerID, targetID string) error {
	return e.battles.Decline(ctx, challengerID, targetID)
}

// SubmitWin claims victory in the caller's active battle.
func (e *Engine) SubmitWin(ctx context.Context, userID string) (*battle.Outcome, error) {
	acct, err := e.requireAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.battles.SubmitWin(ctx, acct)
}

// ActiveBattle returns the caller's active battle, or nil.
func (e *Engine) ActiveBattle(ctx context.Context, userID string) (*battle.Battle, error) {
	return e.battles.ActiveFor(ctx, userID)
}

// RequestCancel asks the caller's opponent to call the battle off.
func (e *Engine) RequestCancel(ctx context.Context, userID string) (*battle.CancelRequest, error) {
	if _, err := e.requireAccount(ctx, userID); err != nil {
		return nil, err
	}
	return e.battles.RequestCancel(ctx, userID)
}

// ResolveCancel answers an outstanding cancel request.
func (e *Engine) ResolveCancel(ctx context.Context, requesterID, opponentID string, accept bool) error {
	return e.battles.ResolveCancel(ctx, requesterID, opponentID, accept)
}

// Leaderboard returns the top players plus the viewer's own position.
func (e *Engine) Leaderboard(ctx context.Context, viewerID string) (*account.Leaderboard, error) {
	return e.repo.Leaderboard(ctx, viewerID, e.leaderboardSize)
}
