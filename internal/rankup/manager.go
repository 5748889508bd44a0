// Package rankup drives the per-user rank-up challenge lifecycle: spend
// tickets, receive a problem, verify the solve before the clock runs out.
package rankup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leetciv/leetciv-bot/internal/account"
	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/ephemeral"
	"github.com/leetciv/leetciv-bot/internal/lcapi"
	"github.com/leetciv/leetciv-bot/internal/obslog"
	"github.com/leetciv/leetciv-bot/internal/progression"
)

var (
	ErrInsufficientTickets = errors.New("not enough tickets for rankup challenge")
	ErrChallengeActive     = errors.New("rankup challenge already active")
	ErrNoActiveChallenge   = errors.New("no active rankup challenge")
	ErrEmptyHistory        = errors.New("recent submission list is empty")
	ErrWrongSubmission     = errors.New("latest submission is not the challenge problem")
)

// InsufficientTicketsError carries the price the user could not pay.
type InsufficientTicketsError struct {
	Cost    int
	Tickets int
}

func (e *InsufficientTicketsError) Error() string {
	return fmt.Sprintf("need %d tickets, have %d", e.Cost, e.Tickets)
}

func (e *InsufficientTicketsError) Is(target error) bool { return target == ErrInsufficientTickets }

// WrongSubmissionError carries the assigned problem so callers can point
// the user back at it.
type WrongSubmissionError struct {
	Problem domain.Problem
}

func (e *WrongSubmissionError) Error() string {
	return fmt.Sprintf("latest submission is not %s", e.Problem.TitleSlug)
}

func (e *WrongSubmissionError) Is(target error) bool { return target == ErrWrongSubmission }

// ChallengeTTL is how long a started challenge stays verifiable. The ticket
// debit is not refunded when it elapses.
const ChallengeTTL = 20 * time.Minute

// PendingChallenge is the ephemeral per-user rank-up attempt.
type PendingChallenge struct {
	Problem    domain.Problem `json:"problem"`
	TicketCost int            `json:"ticket_cost"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// VerifyResult reports what a successful verification changed.
type VerifyResult struct {
	Problem domain.Problem

	// Non-Champion path
	RankedUp bool
	NewRank  domain.Rank

	// Champion path
	LPGain int
	NewLP  int
}

type Manager struct {
	store  *ephemeral.Store
	repo   account.Repository
	oracle lcapi.Oracle
}

func NewManager(store *ephemeral.Store, repo account.Repository, oracle lcapi.Oracle) *Manager {
	return &Manager{store: store, repo: repo, oracle: oracle}
}

func challengeKey(userID string) string { return "rankup:" + strings.TrimSpace(userID) }

// Pending returns the user's unexpired challenge, or nil. An expired entry
// is indistinguishable from one that never existed.
func (m *Manager) Pending(ctx context.Context, userID string) (*PendingChallenge, error) {
	var p PendingChallenge
	found, err := m.store.Get(ctx, challengeKey(userID), &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

// Start debits the rank-priced ticket cost and assigns a random problem at
// the rank's difficulty. The insert is atomic against a concurrent Start for
// the same user; exactly one challenge can be pending per user.
func (m *Manager) Start(ctx context.Context, acct *domain.Account) (*PendingChallenge, error) {
	cost := progression.TicketCost(acct.Rank)
	if acct.Tickets < cost {
		return nil, &InsufficientTicketsError{Cost: cost, Tickets: acct.Tickets}
	}

	difficulty := progression.RankupDifficulty(acct.Rank)
	problem, err := m.oracle.RandomProblem(ctx, difficulty)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p := &PendingChallenge{
		Problem:    *problem,
		TicketCost: cost,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ChallengeTTL),
	}
	ok, err := m.store.PutNX(ctx, challengeKey(acct.DiscordID), p, ChallengeTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrChallengeActive
	}
	if err := m.repo.SetTickets(ctx, acct.DiscordID, acct.Tickets-cost); err != nil {
		// keep tickets and challenge consistent: no debit, no challenge
		_ = m.store.Del(ctx, challengeKey(acct.DiscordID))
		return nil, fmt.Errorf("debit tickets: %w", err)
	}

	obslog.L().Info("rankup_start",
		zap.String("user_id", acct.DiscordID),
		zap.String("rank", string(acct.Rank)),
		zap.String("problem", problem.TitleSlug),
		zap.Int("cost", cost),
	)
	return p, nil
}

// Verify checks the user's single most recent accepted submission against
// the assigned problem. Older history does not count: solving the problem
// and then submitting something else afterwards forfeits credit. A mismatch
// leaves the challenge pending so the user can retry until the TTL elapses.
func (m *Manager) Verify(ctx context.Context, acct *domain.Account) (*VerifyResult, error) {
	p, err := m.Pending(ctx, acct.DiscordID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoActiveChallenge
	}

	recent, err := m.oracle.RecentAccepted(ctx, acct.LeetcodeHandle, 15)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, ErrEmptyHistory
	}
	if recent[0].TitleSlug != p.Problem.TitleSlug {
		return nil, &WrongSubmissionError{Problem: p.Problem}
	}

	res := &VerifyResult{Problem: p.Problem}
	if acct.Rank != domain.RankChampion {
		res.RankedUp = true
		res.NewRank = acct.Rank.Up()
		if err := m.repo.SetRank(ctx, acct.DiscordID, res.NewRank); err != nil {
			return nil, err
		}
	} else {
		res.LPGain = progression.ChampionLPGain(p.Problem.Difficulty, p.Problem.AcceptanceRate)
		res.NewLP = acct.ChampionLP + res.LPGain
		if err := m.repo.SetLP(ctx, acct.DiscordID, res.NewLP); err != nil {
			return nil, err
		}
	}

	if err := m.store.Del(ctx, challengeKey(acct.DiscordID)); err != nil {
		return nil, err
	}
	obslog.L().Info("rankup_verify",
		zap.String("user_id", acct.DiscordID),
		zap.String("problem", p.Problem.TitleSlug),
		zap.Bool("ranked_up", res.RankedUp),
		zap.Int("lp_gain", res.LPGain),
	)
	return res, nil
}
