package account

import (
	"context"
	"sort"
	"sync"

	"github.com/leetciv/leetciv-bot/internal/domain"
)

// memrepo is an in-memory Repository used in tests and when no DATABASE_URL
// is configured.
type memrepo struct {
	mu sync.RWMutex

	users  map[string]*domain.Account
	claims map[string]map[int64]bool // discordID -> periodStart set
}

func NewMemoryRepository() Repository {
	return &memrepo{
		users:  make(map[string]*domain.Account),
		claims: make(map[string]map[int64]bool),
	}
}

func (m *memrepo) Close() error { return nil }

func (m *memrepo) Get(ctx context.Context, discordID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.users[discordID]
	if !ok {
		return nil, nil
	}
	copy := *acct
	return &copy, nil
}

func (m *memrepo) CreateOrReset(ctx context.Context, discordID, handle string, counts domain.SolveCounts) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct := &domain.Account{
		DiscordID:      discordID,
		LeetcodeHandle: handle,
		Rank:           domain.RankNoob,
		Easies:         counts.Easy,
		Mediums:        counts.Medium,
		Hards:          counts.Hard,
	}
	m.users[discordID] = acct
	copy := *acct
	return &copy, nil
}

func (m *memrepo) mutate(discordID string, fn func(acct *domain.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct, ok := m.users[discordID]; ok {
		fn(acct)
	}
	return nil
}

func (m *memrepo) SetRank(ctx context.Context, discordID string, rank domain.Rank) error {
	return m.mutate(discordID, func(acct *domain.Account) { acct.Rank = rank })
}

func (m *memrepo) SetTickets(ctx context.Context, discordID string, tickets int) error {
	return m.mutate(discordID, func(acct *domain.Account) { acct.Tickets = tickets })
}

func (m *memrepo) SetLP(ctx context.Context, discordID string, lp int) error {
	return m.mutate(discordID, func(acct *domain.Account) { acct.ChampionLP = lp })
}

func (m *memrepo) SetSolvedCounts(ctx context.Context, discordID string, counts domain.SolveCounts) error {
	return m.mutate(discordID, func(acct *domain.Account) {
		acct.Easies = counts.Easy
		acct.Mediums = counts.Medium
		acct.Hards = counts.Hard
	})
}

func (m *memrepo) AddWin(ctx context.Context, discordID string) error {
	return m.mutate(discordID, func(acct *domain.Account) { acct.Wins++ })
}

func (m *memrepo) AddLoss(ctx context.Context, discordID string) error {
	return m.mutate(discordID, func(acct *domain.Account) { acct.Losses++ })
}

func (m *memrepo) HasDailyClaim(ctx context.Context, discordID string, periodStart int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claims[discordID][periodStart], nil
}

func (m *memrepo) RecordDailyClaim(ctx context.Context, discordID string, periodStart int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[discordID] == nil {
		m.claims[discordID] = make(map[int64]bool)
	}
	m.claims[discordID][periodStart] = true
	return nil
}

func (m *memrepo) Leaderboard(ctx context.Context, viewerID string, limit int) (*Leaderboard, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	rows := make([]LeaderboardRow, 0, len(m.users))
	for _, acct := range m.users {
		rows = append(rows, LeaderboardRow{
			DiscordID:  acct.DiscordID,
			Rank:       acct.Rank,
			ChampionLP: acct.ChampionLP,
			Tickets:    acct.Tickets,
		})
	}
	m.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Rank.Value() != b.Rank.Value() {
			return a.Rank.Value() > b.Rank.Value()
		}
		if a.ChampionLP != b.ChampionLP {
			return a.ChampionLP > b.ChampionLP
		}
		if a.Tickets != b.Tickets {
			return a.Tickets > b.Tickets
		}
		return a.DiscordID < b.DiscordID
	})

	lb := &Leaderboard{Total: len(rows)}
	for i := range rows {
		rows[i].Position = i + 1
		if i < limit {
			lb.Top = append(lb.Top, rows[i])
		}
		if rows[i].DiscordID == viewerID {
			lb.ViewerPosition = i + 1
		}
	}
	return lb, nil
}
