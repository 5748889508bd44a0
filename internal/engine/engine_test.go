package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/leetciv/leetciv-bot/internal/account"
	"github.com/leetciv/leetciv-bot/internal/battle"
	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/ephemeral"
)

type fakeOracle struct {
	daily   *domain.DailyProblem
	recent  map[string][]domain.Submission
	problem *domain.Problem
	summary string
	counts  domain.SolveCounts
}

func (f *fakeOracle) DailyProblem(ctx context.Context) (*domain.DailyProblem, error) {
	if f.daily == nil {
		return nil, errors.New("no daily configured")
	}
	return f.daily, nil
}

func (f *fakeOracle) RecentAccepted(ctx context.Context, handle string, limit int) ([]domain.Submission, error) {
	return f.recent[handle], nil
}

func (f *fakeOracle) RandomProblem(ctx context.Context, d domain.Difficulty) (*domain.Problem, error) {
	if f.problem == nil {
		return nil, errors.New("no problem configured")
	}
	p := *f.problem
	p.Difficulty = d
	return &p, nil
}

func (f *fakeOracle) ProfileSummary(ctx context.Context, handle string) (string, error) {
	return f.summary, nil
}

func (f *fakeOracle) SolveCounts(ctx context.Context, handle string) (domain.SolveCounts, error) {
	return f.counts, nil
}

func newTestEngine(t *testing.T, oracle *fakeOracle) (*Engine, account.Repository) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store := ephemeral.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	repo := account.NewMemoryRepository()
	return New(store, repo, oracle), repo
}

func linkUser(t *testing.T, eng *Engine, oracle *fakeOracle, userID, handle string) {
	t.Helper()
	ctx := context.Background()
	p, err := eng.Link(ctx, userID, handle)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	oracle.summary = p.Code
	if _, err := eng.ConfirmLink(ctx, userID); err != nil {
		t.Fatalf("ConfirmLink: %v", err)
	}
}

func TestCommandsRequireLinkedAccount(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeOracle{})
	ctx := context.Background()

	if _, err := eng.Profile(ctx, "u1"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Profile: expected ErrNotLinked, got %v", err)
	}
	if _, err := eng.Sync(ctx, "u1"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Sync: expected ErrNotLinked, got %v", err)
	}
	if _, err := eng.Rankup(ctx, "u1"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Rankup: expected ErrNotLinked, got %v", err)
	}
	if _, err := eng.SubmitWin(ctx, "u1"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("SubmitWin: expected ErrNotLinked, got %v", err)
	}
}

func TestRequestBattleValidation(t *testing.T) {
	oracle := &fakeOracle{counts: domain.SolveCounts{}}
	eng, _ := newTestEngine(t, oracle)
	ctx := context.Background()
	linkUser(t, eng, oracle, "u1", "alice")

	if _, err := eng.RequestBattle(ctx, "u1", "u1", "easy"); !errors.Is(err, battle.ErrSelfChallenge) {
		t.Fatalf("expected ErrSelfChallenge, got %v", err)
	}
	if _, err := eng.RequestBattle(ctx, "u1", "u2", "medium"); !errors.Is(err, ErrTargetUnlinked) {
		t.Fatalf("expected ErrTargetUnlinked, got %v", err)
	}
	if _, err := eng.RequestBattle(ctx, "u1", "u2", "insane"); !errors.Is(err, ErrBadDifficulty) {
		t.Fatalf("expected ErrBadDifficulty, got %v", err)
	}
}

func TestRequestBattleFlagsNoob(t *testing.T) {
	oracle := &fakeOracle{}
	eng, repo := newTestEngine(t, oracle)
	ctx := context.Background()
	linkUser(t, eng, oracle, "u1", "alice")
	linkUser(t, eng, oracle, "u2", "bob")
	if err := repo.SetRank(ctx, "u1", domain.RankMaster); err != nil {
		t.Fatalf("SetRank: %v", err)
	}

	res, err := eng.RequestBattle(ctx, "u1", "u2", "hard")
	if err != nil {
		t.Fatalf("RequestBattle: %v", err)
	}
	if !res.HasNoob {
		t.Fatalf("target is a Noob, HasNoob should be set")
	}
	if res.Request.Difficulty != domain.DifficultyHard {
		t.Fatalf("difficulty not carried: %+v", res.Request)
	}
}

func TestSyncPaysForNewSolves(t *testing.T) {
	oracle := &fakeOracle{counts: domain.SolveCounts{Easy: 2, Medium: 1, Hard: 0}}
	eng, repo := newTestEngine(t, oracle)
	ctx := context.Background()
	linkUser(t, eng, oracle, "u1", "alice")

	// two more easies, one more medium, one more hard since linking
	oracle.counts = domain.SolveCounts{Easy: 4, Medium: 2, Hard: 1}
	res, err := eng.Sync(ctx, "u1")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Easies != 2 || res.Mediums != 1 || res.Hards != 1 {
		t.Fatalf("wrong deltas: %+v", res)
	}
	if res.Tickets != 2*5+1*10+1*25 {
		t.Fatalf("wrong payout: %d", res.Tickets)
	}

	acct, _ := repo.Get(ctx, "u1")
	if acct.Tickets != res.Tickets {
		t.Fatalf("tickets not persisted: %+v", acct)
	}
	if acct.Easies != 4 || acct.Mediums != 2 || acct.Hards != 1 {
		t.Fatalf("snapshot not persisted: %+v", acct)
	}

	// a second sync with no new solves pays nothing
	res, err = eng.Sync(ctx, "u1")
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if res.Tickets != 0 {
		t.Fatalf("no-op sync paid %d tickets", res.Tickets)
	}
}

func TestSyncIgnoresBackwardCounts(t *testing.T) {
	oracle := &fakeOracle{counts: domain.SolveCounts{Easy: 10}}
	eng, repo := newTestEngine(t, oracle)
	ctx := context.Background()
	linkUser(t, eng, oracle, "u1", "alice")

	oracle.counts = domain.SolveCounts{Easy: 8, Medium: 1}
	res, err := eng.Sync(ctx, "u1")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Easies != 0 || res.Mediums != 1 {
		t.Fatalf("backward delta should clamp to zero: %+v", res)
	}
	if res.Tickets != 10 {
		t.Fatalf("payout should cover the medium only, got %d", res.Tickets)
	}
	acct, _ := repo.Get(ctx, "u1")
	if acct.Easies != 8 {
		t.Fatalf("snapshot should follow upstream even backwards: %+v", acct)
	}
}

func dailyFor(day time.Time) *domain.DailyProblem {
	return &domain.DailyProblem{
		Date: day.Format("2006-01-02"),
		Link: "/problems/two-sum/",
		Problem: domain.Problem{
			Title:          "Two Sum",
			TitleSlug:      "two-sum",
			Difficulty:     domain.DifficultyEasy,
			AcceptanceRate: 50,
		},
	}
}

func TestClaimDailyPaysOncePerPeriod(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	oracle := &fakeOracle{daily: dailyFor(day), recent: map[string][]domain.Submission{}}
	eng, repo := newTestEngine(t, oracle)
	ctx := context.Background()
	linkUser(t, eng, oracle, "u1", "alice")

	// solved mid-day, buried under a later unrelated submission
	oracle.recent["alice"] = []domain.Submission{
		{TitleSlug: "add-two-numbers", Timestamp: day.Unix() + 4000},
		{TitleSlug: "two-sum", Timestamp: day.Unix() + 3600},
	}

	res, err := eng.ClaimDaily(ctx, "u1")
	if err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	if !res.Claimed {
		t.Fatalf("daily in window should claim")
	}
	// Easy base 8 plus round(50/100*8/2) = 10
	if res.Reward != 10 {
		t.Fatalf("wrong reward: %d", res.Reward)
	}
	acct, _ := repo.Get(ctx, "u1")
	if acct.Tickets != res.Reward {
		t.Fatalf("reward not persisted: %+v", acct)
	}

	if _, err := eng.ClaimDaily(ctx, "u1"); !errors.Is(err, ErrDailyAlreadyClaimed) {
		t.Fatalf("expected ErrDailyAlreadyClaimed, got %v", err)
	}
}

func TestClaimDailyRejectsSubmissionOutsidePeriod(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	oracle := &fakeOracle{daily: dailyFor(day), recent: map[string][]domain.Submission{}}
	eng, repo := newTestEngine(t, oracle)
	ctx := context.Background()
	linkUser(t, eng, oracle, "u1", "alice")

	// solved yesterday, before the daily rotated
	oracle.recent["alice"] = []domain.Submission{
		{TitleSlug: "two-sum", Timestamp: day.Unix() - 3600},
	}

	res, err := eng.ClaimDaily(ctx, "u1")
	if err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	if res.Claimed {
		t.Fatalf("stale submission must not claim")
	}
	if res.Link != "/problems/two-sum/" {
		t.Fatalf("unclaimed result should carry the daily link: %+v", res)
	}
	acct, _ := repo.Get(ctx, "u1")
	if acct.Tickets != 0 {
		t.Fatalf("unclaimed daily paid tickets: %+v", acct)
	}

	// the failed attempt does not consume the period
	oracle.recent["alice"] = []domain.Submission{
		{TitleSlug: "two-sum", Timestamp: day.Unix() + 100},
	}
	res, err = eng.ClaimDaily(ctx, "u1")
	if err != nil || !res.Claimed {
		t.Fatalf("retry within period should claim: %+v %v", res, err)
	}
}

func TestRankupStartThenVerify(t *testing.T) {
	oracle := &fakeOracle{
		problem: &domain.Problem{Title: "Two Sum", TitleSlug: "two-sum"},
		recent:  map[string][]domain.Submission{},
	}
	eng, repo := newTestEngine(t, oracle)
	ctx := context.Background()
	linkUser(t, eng, oracle, "u1", "alice")
	if err := repo.SetTickets(ctx, "u1", 50); err != nil {
		t.Fatalf("SetTickets: %v", err)
	}

	res, err := eng.Rankup(ctx, "u1")
	if err != nil {
		t.Fatalf("Rankup start: %v", err)
	}
	if res.Phase != RankupStarted || res.Pending == nil || res.Cost != 50 {
		t.Fatalf("expected a started challenge, got %+v", res)
	}

	oracle.recent["alice"] = []domain.Submission{{TitleSlug: "two-sum"}}
	res, err = eng.Rankup(ctx, "u1")
	if err != nil {
		t.Fatalf("Rankup verify: %v", err)
	}
	if res.Phase != RankupAdvanced || res.Verify == nil || res.Verify.NewRank != domain.RankPro {
		t.Fatalf("expected advancement to Pro, got %+v", res)
	}
}

func TestLeaderboardOrdersByRankThenLP(t *testing.T) {
	oracle := &fakeOracle{}
	eng, repo := newTestEngine(t, oracle)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		linkUser(t, eng, oracle, id, "lc_"+id)
	}
	_ = repo.SetRank(ctx, "u2", domain.RankChampion)
	_ = repo.SetLP(ctx, "u2", 30)
	_ = repo.SetRank(ctx, "u3", domain.RankChampion)
	_ = repo.SetLP(ctx, "u3", 80)

	lb, err := eng.Leaderboard(ctx, "u1")
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(lb.Top) != 3 || lb.Total != 3 {
		t.Fatalf("wrong size: %+v", lb)
	}
	if lb.Top[0].DiscordID != "u3" || lb.Top[1].DiscordID != "u2" || lb.Top[2].DiscordID != "u1" {
		t.Fatalf("wrong order: %+v", lb.Top)
	}
	if lb.ViewerPosition != 3 {
		t.Fatalf("viewer position should be 3, got %d", lb.ViewerPosition)
	}
}
