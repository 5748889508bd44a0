package battle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/obslog"
	"github.com/leetciv/leetciv-bot/internal/progression"
)

// Outcome reports the field changes of a decided battle. An exempt outcome
// carries no changes at all.
type Outcome struct {
	WinnerID string
	LoserID  string
	Problem  domain.Problem
	Exempt   bool

	// loser side
	LoserLPLoss  int
	LoserNewLP   int
	LoserDemoted bool
	LoserNewRank domain.Rank

	// winner side
	WinnerLPGain   int
	WinnerNewLP    int
	WinnerPromoted bool
	WinnerNewRank  domain.Rank
	WinnerTickets  int
}

// resolve applies the battle result, loser side first. The two sides are
// written independently, without a transaction across them; a failure after
// the loser's writes committed is surfaced as ErrPartialResolution and must
// not be retried.
func (m *Manager) resolve(ctx context.Context, winner, loser *domain.Account, problem domain.Problem) (*Outcome, error) {
	out := &Outcome{WinnerID: winner.DiscordID, LoserID: loser.DiscordID, Problem: problem}
	d := problem.Difficulty

	// Loser: Champions bleed LP, clamped at zero; crossing below zero costs
	// the Champion rank. Everyone else falls one rank step.
	if loser.Rank == domain.RankChampion {
		out.LoserLPLoss = progression.BattleLPDelta(loser.ChampionLP, winner.ChampionLP, d)
		out.LoserNewLP = loser.ChampionLP - out.LoserLPLoss
		out.LoserNewRank = loser.Rank
		if out.LoserNewLP < 0 {
			out.LoserNewLP = 0
			out.LoserDemoted = true
			out.LoserNewRank = domain.RankMaster
			if err := m.repo.SetRank(ctx, loser.DiscordID, out.LoserNewRank); err != nil {
				return nil, fmt.Errorf("demote loser: %w", err)
			}
		}
		if err := m.repo.SetLP(ctx, loser.DiscordID, out.LoserNewLP); err != nil {
			return nil, fmt.Errorf("set loser lp: %w", err)
		}
	} else {
		out.LoserDemoted = true
		out.LoserNewRank = loser.Rank.Down()
		if err := m.repo.SetRank(ctx, loser.DiscordID, out.LoserNewRank); err != nil {
			return nil, fmt.Errorf("demote loser: %w", err)
		}
	}
	if err := m.repo.AddLoss(ctx, loser.DiscordID); err != nil {
		return nil, m.partial(out, fmt.Errorf("record loss: %w", err))
	}

	// Winner: Champion pairs trade LP with an independent draw. A lower
	// ranked winner is promoted; an equal-or-higher ranked one gets tickets.
	switch {
	case winner.Rank == domain.RankChampion && loser.Rank == domain.RankChampion:
		out.WinnerLPGain = progression.BattleLPDelta(winner.ChampionLP, loser.ChampionLP, d)
		out.WinnerNewLP = winner.ChampionLP + out.WinnerLPGain
		if err := m.repo.SetLP(ctx, winner.DiscordID, out.WinnerNewLP); err != nil {
			return nil, m.partial(out, fmt.Errorf("set winner lp: %w", err))
		}
	case winner.Rank.Value() < loser.Rank.Value():
		out.WinnerPromoted = true
		out.WinnerNewRank = winner.Rank.Up()
		if err := m.repo.SetRank(ctx, winner.DiscordID, out.WinnerNewRank); err != nil {
			return nil, m.partial(out, fmt.Errorf("promote winner: %w", err))
		}
	default:
		out.WinnerTickets = progression.RankGapTicketReward(d)
		if err := m.repo.SetTickets(ctx, winner.DiscordID, winner.Tickets+out.WinnerTickets); err != nil {
			return nil, m.partial(out, fmt.Errorf("award winner tickets: %w", err))
		}
	}
	if err := m.repo.AddWin(ctx, winner.DiscordID); err != nil {
		return nil, m.partial(out, fmt.Errorf("record win: %w", err))
	}

	obslog.L().Info("battle_result",
		zap.String("winner_id", out.WinnerID),
		zap.String("loser_id", out.LoserID),
		zap.String("difficulty", string(d)),
		zap.Bool("winner_promoted", out.WinnerPromoted),
		zap.Bool("loser_demoted", out.LoserDemoted),
		zap.Int("winner_lp_gain", out.WinnerLPGain),
		zap.Int("loser_lp_loss", out.LoserLPLoss),
		zap.Int("winner_tickets", out.WinnerTickets),
	)
	return out, nil
}

// partial wraps a winner-side failure after loser-side writes committed.
func (m *Manager) partial(out *Outcome, err error) error {
	obslog.L().Error("battle_result_partial",
		zap.String("winner_id", out.WinnerID),
		zap.String("loser_id", out.LoserID),
		zap.Error(err),
	)
	return fmt.Errorf("%w (winner=%s loser=%s): %v", ErrPartialResolution, out.WinnerID, out.LoserID, err)
}
