package linkverify

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/leetciv/leetciv-bot/internal/account"
	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/ephemeral"
)

type fakeOracle struct {
	summary string
	counts  domain.SolveCounts
}

func (f *fakeOracle) DailyProblem(ctx context.Context) (*domain.DailyProblem, error) {
	return nil, errors.New("not used")
}

func (f *fakeOracle) RecentAccepted(ctx context.Context, handle string, limit int) ([]domain.Submission, error) {
	return nil, nil
}

func (f *fakeOracle) RandomProblem(ctx context.Context, d domain.Difficulty) (*domain.Problem, error) {
	return nil, errors.New("not used")
}

func (f *fakeOracle) ProfileSummary(ctx context.Context, handle string) (string, error) {
	return f.summary, nil
}

func (f *fakeOracle) SolveCounts(ctx context.Context, handle string) (domain.SolveCounts, error) {
	return f.counts, nil
}

func newTestManager(t *testing.T, oracle *fakeOracle) (*Manager, account.Repository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store := ephemeral.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	repo := account.NewMemoryRepository()
	return NewManager(store, repo, oracle), repo, mr
}

func TestStartIssuesSixDigitCode(t *testing.T) {
	oracle := &fakeOracle{}
	m, _, _ := newTestManager(t, oracle)

	p, err := m.Start(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(p.Code) != 6 {
		t.Fatalf("code should be 6 digits, got %q", p.Code)
	}
	for _, c := range p.Code {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit in code %q", p.Code)
		}
	}
	if p.Handle != "alice" {
		t.Fatalf("handle mismatch: %q", p.Handle)
	}
}

func TestStartReplacesEarlierAttempt(t *testing.T) {
	oracle := &fakeOracle{counts: domain.SolveCounts{Easy: 1}}
	m, repo, _ := newTestManager(t, oracle)
	ctx := context.Background()

	if _, err := m.Start(ctx, "u1", "alice"); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	p2, err := m.Start(ctx, "u1", "bob")
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}

	oracle.summary = "hello " + p2.Code
	acct, err := m.Confirm(ctx, "u1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if acct.LeetcodeHandle != "bob" {
		t.Fatalf("later attempt should win, got %q", acct.LeetcodeHandle)
	}
	if _, err := repo.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestConfirmWithoutStart(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeOracle{})
	_, err := m.Confirm(context.Background(), "u1")
	if !errors.Is(err, ErrNoPendingLink) {
		t.Fatalf("expected ErrNoPendingLink, got %v", err)
	}
}

func TestConfirmRejectsMissingCode(t *testing.T) {
	oracle := &fakeOracle{summary: "nothing relevant here"}
	m, repo, _ := newTestManager(t, oracle)
	ctx := context.Background()

	if _, err := m.Start(ctx, "u1", "alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Confirm(ctx, "u1"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
	// the pending attempt survives a failed confirm
	acct, err := repo.Get(ctx, "u1")
	if err != nil || acct != nil {
		t.Fatalf("no account should exist yet: %v %v", acct, err)
	}
}

func TestConfirmCreatesAccountAtNoob(t *testing.T) {
	oracle := &fakeOracle{counts: domain.SolveCounts{Easy: 10, Medium: 5, Hard: 1}}
	m, repo, _ := newTestManager(t, oracle)
	ctx := context.Background()

	p, err := m.Start(ctx, "u1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	oracle.summary = "my code: " + p.Code

	acct, err := m.Confirm(ctx, "u1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if acct.Rank != domain.RankNoob || acct.Tickets != 0 {
		t.Fatalf("fresh account must start at Noob with no tickets: %+v", acct)
	}
	if acct.Easies != 10 || acct.Mediums != 5 || acct.Hards != 1 {
		t.Fatalf("baseline counts not captured: %+v", acct)
	}

	// the pending entry was consumed
	if _, err := m.Confirm(ctx, "u1"); !errors.Is(err, ErrNoPendingLink) {
		t.Fatalf("expected ErrNoPendingLink after confirm, got %v", err)
	}
	stored, _ := repo.Get(ctx, "u1")
	if stored == nil || stored.LeetcodeHandle != "alice" {
		t.Fatalf("account not persisted: %+v", stored)
	}
}

func TestRelinkResetsProgress(t *testing.T) {
	oracle := &fakeOracle{counts: domain.SolveCounts{Easy: 3}}
	m, repo, _ := newTestManager(t, oracle)
	ctx := context.Background()

	p, _ := m.Start(ctx, "u1", "alice")
	oracle.summary = p.Code
	if _, err := m.Confirm(ctx, "u1"); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	if err := repo.SetRank(ctx, "u1", domain.RankMaster); err != nil {
		t.Fatalf("SetRank: %v", err)
	}
	if err := repo.SetTickets(ctx, "u1", 500); err != nil {
		t.Fatalf("SetTickets: %v", err)
	}

	p, _ = m.Start(ctx, "u1", "bob")
	oracle.summary = p.Code
	acct, err := m.Confirm(ctx, "u1")
	if err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if acct.Rank != domain.RankNoob || acct.Tickets != 0 || acct.LeetcodeHandle != "bob" {
		t.Fatalf("relink must reset progress: %+v", acct)
	}
}

func TestPendingLinkExpires(t *testing.T) {
	oracle := &fakeOracle{}
	m, _, mr := newTestManager(t, oracle)
	ctx := context.Background()

	p, err := m.Start(ctx, "u1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	oracle.summary = p.Code
	mr.FastForward(linkTTL + time.Second)

	if _, err := m.Confirm(ctx, "u1"); !errors.Is(err, ErrNoPendingLink) {
		t.Fatalf("expected ErrNoPendingLink after expiry, got %v", err)
	}
}
