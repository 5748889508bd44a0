package progression

import (
	"testing"

	"github.com/leetciv/leetciv-bot/internal/domain"
)

func TestTicketsForSolves(t *testing.T) {
	tests := []struct {
		e, m, h int
		want    int
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 5},
		{0, 1, 0, 10},
		{0, 0, 1, 25},
		{3, 2, 1, 60},
		{-4, 2, -1, 20}, // negative deltas clamp to zero
	}
	for _, tc := range tests {
		if got := TicketsForSolves(tc.e, tc.m, tc.h); got != tc.want {
			t.Fatalf("TicketsForSolves(%d,%d,%d)=%d want %d", tc.e, tc.m, tc.h, got, tc.want)
		}
	}
}

func TestDailyReward(t *testing.T) {
	tests := []struct {
		d    domain.Difficulty
		ac   float64
		want int
	}{
		{domain.DifficultyEasy, 100, 8},    // no bonus at full acceptance
		{domain.DifficultyEasy, 0, 12},     // bonus maxes at half the base
		{domain.DifficultyMedium, 50, 19},  // 15 + round(0.5*7.5)
		{domain.DifficultyHard, 25, 41},    // 30 + round(0.75*15)
		{domain.DifficultyHard, 120, 30},   // overshooting acceptance clamps
	}
	for _, tc := range tests {
		if got := DailyReward(tc.d, tc.ac); got != tc.want {
			t.Fatalf("DailyReward(%s, %.0f)=%d want %d", tc.d, tc.ac, got, tc.want)
		}
	}
}

func TestChampionLPGain(t *testing.T) {
	tests := []struct {
		d    domain.Difficulty
		ac   float64
		want int
	}{
		{domain.DifficultyEasy, 100, 2},
		{domain.DifficultyMedium, 40, 8},  // 5 + round(0.6*5)
		{domain.DifficultyHard, 30, 17},   // 10 + round(0.7*10)
	}
	for _, tc := range tests {
		if got := ChampionLPGain(tc.d, tc.ac); got != tc.want {
			t.Fatalf("ChampionLPGain(%s, %.0f)=%d want %d", tc.d, tc.ac, got, tc.want)
		}
	}
}

func TestBattleLPDeltaBounds(t *testing.T) {
	restore := lpRoll
	defer func() { lpRoll = restore }()

	for roll := 0; roll <= 3; roll++ {
		r := roll
		lpRoll = func() int { return r }

		if got, want := BattleLPDelta(50, 50, domain.DifficultyHard), 20+r; got != want {
			t.Fatalf("equal LP roll=%d: got %d want %d", r, got, want)
		}
		// 35 LP gap pays a +3 upset bonus
		if got, want := BattleLPDelta(10, 45, domain.DifficultyEasy), 8+r+3; got != want {
			t.Fatalf("upset roll=%d: got %d want %d", r, got, want)
		}
		// upset bonus is capped at +10
		if got, want := BattleLPDelta(0, 500, domain.DifficultyMedium), 12+r+10; got != want {
			t.Fatalf("capped upset roll=%d: got %d want %d", r, got, want)
		}
		// no bonus when the actor has more LP
		if got, want := BattleLPDelta(90, 10, domain.DifficultyMedium), 12+r; got != want {
			t.Fatalf("downset roll=%d: got %d want %d", r, got, want)
		}
	}
}

func TestRankLadder(t *testing.T) {
	r := domain.RankNoob
	steps := []domain.Rank{domain.RankPro, domain.RankMaster, domain.RankChampion, domain.RankChampion}
	for i, want := range steps {
		r = r.Up()
		if r != want {
			t.Fatalf("step %d: got %s want %s", i+1, r, want)
		}
	}

	r = domain.RankChampion
	downs := []domain.Rank{domain.RankMaster, domain.RankPro, domain.RankNoob, domain.RankNoob}
	for i, want := range downs {
		r = r.Down()
		if r != want {
			t.Fatalf("down step %d: got %s want %s", i+1, r, want)
		}
	}
}

func TestTicketCost(t *testing.T) {
	costs := map[domain.Rank]int{
		domain.RankNoob:     50,
		domain.RankPro:      100,
		domain.RankMaster:   150,
		domain.RankChampion: 150,
	}
	for r, want := range costs {
		if got := TicketCost(r); got != want {
			t.Fatalf("TicketCost(%s)=%d want %d", r, got, want)
		}
	}
}

func TestRankupDifficulty(t *testing.T) {
	if d := RankupDifficulty(domain.RankNoob); d != domain.DifficultyEasy {
		t.Fatalf("Noob difficulty: %s", d)
	}
	if d := RankupDifficulty(domain.RankPro); d != domain.DifficultyMedium {
		t.Fatalf("Pro difficulty: %s", d)
	}
	if d := RankupDifficulty(domain.RankMaster); d != domain.DifficultyHard {
		t.Fatalf("Master difficulty: %s", d)
	}
	for i := 0; i < 20; i++ {
		d := RankupDifficulty(domain.RankChampion)
		if d != domain.DifficultyMedium && d != domain.DifficultyHard {
			t.Fatalf("Champion difficulty out of range: %s", d)
		}
	}
}

func TestRankGapTicketReward(t *testing.T) {
	if got := RankGapTicketReward(domain.DifficultyEasy); got != 10 {
		t.Fatalf("easy reward %d", got)
	}
	if got := RankGapTicketReward(domain.DifficultyMedium); got != 20 {
		t.Fatalf("medium reward %d", got)
	}
	if got := RankGapTicketReward(domain.DifficultyHard); got != 35 {
		t.Fatalf("hard reward %d", got)
	}
}
