// Package battle coordinates head-to-head problem-solving duels: pairwise
// requests, the active battle, first-to-submit wins, and cancel requests.
package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leetciv/leetciv-bot/internal/account"
	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/ephemeral"
	"github.com/leetciv/leetciv-bot/internal/lcapi"
	"github.com/leetciv/leetciv-bot/internal/obslog"
)

type Manager struct {
	store  *ephemeral.Store
	repo   account.Repository
	oracle lcapi.Oracle
}

func NewManager(store *ephemeral.Store, repo account.Repository, oracle lcapi.Oracle) *Manager {
	return &Manager{store: store, repo: repo, oracle: oracle}
}

// ActiveFor returns the user's active battle, or nil.
func (m *Manager) ActiveFor(ctx context.Context, userID string) (*Battle, error) {
	var id string
	found, err := m.store.Get(ctx, userIdxKey(userID), &id)
	if err != nil || !found {
		return nil, err
	}
	var b Battle
	found, err = m.store.Get(ctx, battleKey(id), &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// PendingRequest returns the outstanding request between the two users in
// either direction, or nil.
func (m *Manager) PendingRequest(ctx context.Context, a, b string) (*Request, error) {
	var req Request
	found, err := m.store.Get(ctx, requestKey(a, b), &req)
	if err != nil || !found {
		return nil, err
	}
	return &req, nil
}

// Request records a battle challenge against the target. At most one
// request may be outstanding per pair (checked in both orderings) and
// neither side may already be battling.
func (m *Manager) Request(ctx context.Context, challengerID, targetID string, difficulty domain.Difficulty) (*Request, error) {
	if challengerID == targetID {
		return nil, ErrSelfChallenge
	}
	for _, id := range []string{challengerID, targetID} {
		active, err := m.ActiveFor(ctx, id)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, ErrAlreadyBattling
		}
	}

	now := time.Now()
	req := &Request{
		ChallengerID: challengerID,
		TargetID:     targetID,
		Difficulty:   difficulty,
		CreatedAt:    now,
		ExpiresAt:    now.Add(RequestTTL),
	}
	ok, err := m.store.PutNX(ctx, requestKey(challengerID, targetID), req, RequestTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicateRequest
	}
	obslog.L().Info("battle_request",
		zap.String("challenger_id", challengerID),
		zap.String("target_id", targetID),
		zap.String("difficulty", string(difficulty)),
	)
	return req, nil
}

// Accept consumes the pair's request and opens the battle. Busy-ness can
// change between request and accept, so both sides are re-checked inside the
// same atomic section that writes the battle; the record and both index
// entries go in together.
func (m *Manager) Accept(ctx context.Context, challenger, target *domain.Account) (*Battle, error) {
	req, err := m.PendingRequest(ctx, challenger.DiscordID, target.DiscordID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNoRequest
	}
	if err := m.store.Del(ctx, requestKey(challenger.DiscordID, target.DiscordID)); err != nil {
		return nil, err
	}

	problem, err := m.oracle.RandomProblem(ctx, req.Difficulty)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	b := &Battle{
		ID:        uuid.NewString(),
		UserA:     challenger.DiscordID,
		UserB:     target.DiscordID,
		Problem:   *problem,
		HasExempt: challenger.Rank == domain.RankNoob || target.Rank == domain.RankNoob,
		CreatedAt: now,
		ExpiresAt: now.Add(BattleTTL),
	}

	idxA, idxB := userIdxKey(b.UserA), userIdxKey(b.UserB)
	err = m.store.Update(ctx, func(tx *ephemeral.Tx) error {
		var existing string
		for _, key := range []string{idxA, idxB} {
			found, err := tx.Get(key, &existing)
			if err != nil {
				return err
			}
			if found {
				return ErrAlreadyBattling
			}
		}
		if err := tx.Set(battleKey(b.ID), b, BattleTTL); err != nil {
			return err
		}
		if err := tx.Set(idxA, b.ID, BattleTTL); err != nil {
			return err
		}
		return tx.Set(idxB, b.ID, BattleTTL)
	}, idxA, idxB)
	if err != nil {
		return nil, err
	}

	obslog.L().Info("battle_accept",
		zap.String("battle_id", b.ID),
		zap.String("user_a", b.UserA),
		zap.String("user_b", b.UserB),
		zap.String("problem", problem.TitleSlug),
		zap.Bool("has_exempt", b.HasExempt),
	)
	return b, nil
}

// Decline consumes the pair's request with no other state change.
func (m *Manager) Decline(ctx context.Context, challengerID, targetID string) error {
	req, err := m.PendingRequest(ctx, challengerID, targetID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrNoRequest
	}
	return m.store.Del(ctx, requestKey(challengerID, targetID))
}

// SubmitWin verifies the caller's single most recent accepted submission
// against the battle problem and, on match, closes the battle and resolves
// the result. Exactly one side can claim the win: the close is an atomic
// check-then-delete on the battle record, so the loser of the race observes
// the battle as already gone.
func (m *Manager) SubmitWin(ctx context.Context, winner *domain.Account) (*Outcome, error) {
	b, err := m.ActiveFor(ctx, winner.DiscordID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotInBattle
	}

	recent, err := m.oracle.RecentAccepted(ctx, winner.LeetcodeHandle, 15)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, ErrEmptyHistory
	}
	if recent[0].TitleSlug != b.Problem.TitleSlug {
		// battle stays active; the opponent may still submit first
		return nil, &WrongSubmissionError{Problem: b.Problem}
	}

	loserID := b.Opponent(winner.DiscordID)
	gameK := battleKey(b.ID)
	err = m.store.Update(ctx, func(tx *ephemeral.Tx) error {
		var cur Battle
		found, err := tx.Get(gameK, &cur)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotInBattle
		}
		tx.Del(gameK, userIdxKey(b.UserA), userIdxKey(b.UserB))
		return nil
	}, gameK)
	if err != nil {
		return nil, err
	}

	obslog.L().Info("battle_win",
		zap.String("battle_id", b.ID),
		zap.String("winner_id", winner.DiscordID),
		zap.String("loser_id", loserID),
		zap.String("problem", b.Problem.TitleSlug),
		zap.Bool("has_exempt", b.HasExempt),
	)

	if b.HasExempt {
		return &Outcome{WinnerID: winner.DiscordID, LoserID: loserID, Problem: b.Problem, Exempt: true}, nil
	}

	loser, err := m.repo.Get(ctx, loserID)
	if err != nil {
		return nil, err
	}
	if loser == nil {
		return nil, fmt.Errorf("loser account %s missing at resolution", loserID)
	}
	return m.resolve(ctx, winner, loser, b.Problem)
}

// RequestCancel asks the opponent to call the battle off. At most one cancel
// request per ordered pair may be outstanding.
func (m *Manager) RequestCancel(ctx context.Context, requesterID string) (*CancelRequest, error) {
	b, err := m.ActiveFor(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotInBattle
	}

	now := time.Now()
	req := &CancelRequest{
		RequesterID: requesterID,
		OpponentID:  b.Opponent(requesterID),
		CreatedAt:   now,
		ExpiresAt:   now.Add(CancelTTL),
	}
	ok, err := m.store.PutNX(ctx, cancelKey(req.RequesterID, req.OpponentID), req, CancelTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicateCancelRequest
	}
	obslog.L().Info("battle_cancel_request",
		zap.String("requester_id", req.RequesterID),
		zap.String("opponent_id", req.OpponentID),
	)
	return req, nil
}

// ResolveCancel consumes the cancel request. Accepting tears down the battle
// with no rank, LP, or ticket effect; declining leaves it active.
func (m *Manager) ResolveCancel(ctx context.Context, requesterID, opponentID string, accept bool) error {
	var req CancelRequest
	found, err := m.store.Get(ctx, cancelKey(requesterID, opponentID), &req)
	if err != nil {
		return err
	}
	if !found {
		return ErrNoCancelRequest
	}
	if err := m.store.Del(ctx, cancelKey(requesterID, opponentID)); err != nil {
		return err
	}
	if !accept {
		return nil
	}

	b, err := m.ActiveFor(ctx, requesterID)
	if err != nil {
		return err
	}
	if b == nil {
		// battle expired in the meantime; nothing left to tear down
		return nil
	}
	if err := m.store.Del(ctx, battleKey(b.ID), userIdxKey(b.UserA), userIdxKey(b.UserB)); err != nil {
		return err
	}
	obslog.L().Info("battle_cancelled",
		zap.String("battle_id", b.ID),
		zap.String("requester_id", requesterID),
	)
	return nil
}
