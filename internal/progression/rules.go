// Package progression holds the pure reward and rank math. Nothing here
// performs I/O or keeps mutable state; randomness is limited to the battle
// LP bonus roll and the Champion rank-up difficulty pick.
package progression

import (
	"math"
	"math/rand"

	"github.com/leetciv/leetciv-bot/internal/domain"
)

// Ticket weights per newly solved problem.
const (
	TicketsPerEasy   = 5
	TicketsPerMedium = 10
	TicketsPerHard   = 25
)

// UpsetLPBonusCap limits the extra LP granted against a higher-LP opponent.
const UpsetLPBonusCap = 10

// lpRoll returns the uniform [0,3] bonus added to every battle LP delta.
// Swappable in tests.
var lpRoll = func() int { return rand.Intn(4) }

// championCoin picks the Champion rank-up difficulty. Swappable in tests.
var championCoin = func() domain.Difficulty {
	if rand.Intn(2) == 0 {
		return domain.DifficultyMedium
	}
	return domain.DifficultyHard
}

// TicketsForSolves converts solve-count deltas into tickets. Negative deltas
// can show up when the upstream counter moves backwards; they count as zero.
func TicketsForSolves(easies, mediums, hards int) int {
	return max(0, easies)*TicketsPerEasy +
		max(0, mediums)*TicketsPerMedium +
		max(0, hards)*TicketsPerHard
}

func dailyBase(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyMedium:
		return 15
	case domain.DifficultyHard:
		return 30
	default:
		return 8
	}
}

// DailyReward is the ticket payout for the daily problem. Lower acceptance
// rates pay a larger bonus, at most half the base.
func DailyReward(d domain.Difficulty, acceptanceRate float64) int {
	base := dailyBase(d)
	bonus := math.Round(math.Max(0, 100-acceptanceRate) / 100 * float64(base) / 2)
	return base + int(bonus)
}

func lpGainBase(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyMedium:
		return 5
	case domain.DifficultyHard:
		return 10
	default:
		return 2
	}
}

// ChampionLPGain is the LP awarded to a Champion for clearing a rank-up
// challenge.
func ChampionLPGain(d domain.Difficulty, acceptanceRate float64) int {
	base := lpGainBase(d)
	return int(math.Round(float64(base) + (100-acceptanceRate)/100*float64(base)))
}

func battleLPBase(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyMedium:
		return 12
	case domain.DifficultyHard:
		return 20
	default:
		return 8
	}
}

// BattleLPDelta is the LP swing for one side of a Champion battle. It is
// drawn independently for the winner's gain and the loser's loss, so the two
// need not match. Beating an opponent with more LP pays an upset bonus of
// one LP per 10 LP of gap, capped.
func BattleLPDelta(ownLP, opponentLP int, d domain.Difficulty) int {
	delta := battleLPBase(d) + lpRoll()
	if opponentLP > ownLP {
		delta += min((opponentLP-ownLP)/10, UpsetLPBonusCap)
	}
	return delta
}

// RankGapTicketReward pays a battle winner who was already ranked equal to
// or above the loser. Superior players farm tickets, not promotions.
func RankGapTicketReward(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyMedium:
		return 20
	case domain.DifficultyHard:
		return 35
	default:
		return 10
	}
}

// TicketCost is the non-refundable price of starting a rank-up challenge.
func TicketCost(r domain.Rank) int {
	switch r {
	case domain.RankNoob:
		return 50
	case domain.RankPro:
		return 100
	default:
		return 150
	}
}

// RankupDifficulty is the challenge difficulty for a given rank. Champions
// have no next rank and get a coin flip between Medium and Hard.
func RankupDifficulty(r domain.Rank) domain.Difficulty {
	switch r {
	case domain.RankNoob:
		return domain.DifficultyEasy
	case domain.RankPro:
		return domain.DifficultyMedium
	case domain.RankMaster:
		return domain.DifficultyHard
	default:
		return championCoin()
	}
}
