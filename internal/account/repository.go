// Package account owns the durable per-user progression record.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/leetciv/leetciv-bot/internal/domain"
)

var ErrUnknownRank = errors.New("unknown rank value in store")

// LeaderboardRow is one already-positioned leaderboard entry.
type LeaderboardRow struct {
	DiscordID  string
	Rank       domain.Rank
	ChampionLP int
	Tickets    int
	Position   int
}

// Leaderboard is the top slice plus the viewer's own position (0 when the
// viewer has no account row).
type Leaderboard struct {
	Top            []LeaderboardRow
	ViewerPosition int
	Total          int
}

// Repository is the narrow persistence surface the engine depends on. All
// writes are committed before returning; there is no cross-field or
// cross-user transaction.
type Repository interface {
	Get(ctx context.Context, discordID string) (*domain.Account, error)
	CreateOrReset(ctx context.Context, discordID, handle string, counts domain.SolveCounts) (*domain.Account, error)
	SetRank(ctx context.Context, discordID string, r domain.Rank) error
	SetTickets(ctx context.Context, discordID string, tickets int) error
	SetLP(ctx context.Context, discordID string, lp int) error
	SetSolvedCounts(ctx context.Context, discordID string, counts domain.SolveCounts) error
	AddWin(ctx context.Context, discordID string) error
	AddLoss(ctx context.Context, discordID string) error
	HasDailyClaim(ctx context.Context, discordID string, periodStart int64) (bool, error)
	RecordDailyClaim(ctx context.Context, discordID string, periodStart int64) error
	Leaderboard(ctx context.Context, viewerID string, limit int) (*Leaderboard, error)
	Close() error
}

type repository struct {
	db *sql.DB
}

// NewRepository opens the Postgres-backed store and verifies the connection.
func NewRepository(databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &repository{db: db}, nil
}

func (r *repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *repository) Get(ctx context.Context, discordID string) (*domain.Account, error) {
	const query = `
		SELECT discord_id, leetcode_handle, rank, tickets, easies, mediums, hards, champion_lp, wins, losses
		FROM users WHERE discord_id = $1`

	var (
		acct    domain.Account
		rawRank string
	)
	err := r.db.QueryRowContext(ctx, query, discordID).Scan(
		&acct.DiscordID, &acct.LeetcodeHandle, &rawRank,
		&acct.Tickets, &acct.Easies, &acct.Mediums, &acct.Hards,
		&acct.ChampionLP, &acct.Wins, &acct.Losses,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	rank, ok := domain.ParseRank(rawRank)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRank, rawRank)
	}
	acct.Rank = rank
	return &acct, nil
}

// CreateOrReset links a Discord user to a LeetCode handle. Re-linking is
// destructive: rank, tickets, LP, counters all reset.
func (r *repository) CreateOrReset(ctx context.Context, discordID, handle string, counts domain.SolveCounts) (*domain.Account, error) {
	const query = `
		INSERT INTO users (discord_id, leetcode_handle, rank, tickets, easies, mediums, hards, champion_lp, wins, losses)
		VALUES ($1, $2, 'Noob', 0, $3, $4, $5, 0, 0, 0)
		ON CONFLICT (discord_id) DO UPDATE SET
			leetcode_handle = EXCLUDED.leetcode_handle,
			rank = 'Noob',
			tickets = 0,
			easies = EXCLUDED.easies,
			mediums = EXCLUDED.mediums,
			hards = EXCLUDED.hards,
			champion_lp = 0,
			wins = 0,
			losses = 0`

	if _, err := r.db.ExecContext(ctx, query, discordID, handle, counts.Easy, counts.Medium, counts.Hard); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &domain.Account{
		DiscordID:      discordID,
		LeetcodeHandle: handle,
		Rank:           domain.RankNoob,
		Easies:         counts.Easy,
		Mediums:        counts.Medium,
		Hards:          counts.Hard,
	}, nil
}

func (r *repository) setField(ctx context.Context, discordID, column string, value any) error {
	query := fmt.Sprintf("UPDATE users SET %s = $1 WHERE discord_id = $2", column)
	if _, err := r.db.ExecContext(ctx, query, value, discordID); err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return nil
}

func (r *repository) SetRank(ctx context.Context, discordID string, rank domain.Rank) error {
	return r.setField(ctx, discordID, "rank", string(rank))
}

func (r *repository) SetTickets(ctx context.Context, discordID string, tickets int) error {
	return r.setField(ctx, discordID, "tickets", tickets)
}

func (r *repository) SetLP(ctx context.Context, discordID string, lp int) error {
	return r.setField(ctx, discordID, "champion_lp", lp)
}

func (r *repository) SetSolvedCounts(ctx context.Context, discordID string, counts domain.SolveCounts) error {
	const query = `UPDATE users SET easies = $1, mediums = $2, hards = $3 WHERE discord_id = $4`
	if _, err := r.db.ExecContext(ctx, query, counts.Easy, counts.Medium, counts.Hard, discordID); err != nil {
		return fmt.Errorf("update solved counts: %w", err)
	}
	return nil
}

func (r *repository) AddWin(ctx context.Context, discordID string) error {
	const query = `UPDATE users SET wins = wins + 1 WHERE discord_id = $1`
	if _, err := r.db.ExecContext(ctx, query, discordID); err != nil {
		return fmt.Errorf("update wins: %w", err)
	}
	return nil
}

func (r *repository) AddLoss(ctx context.Context, discordID string) error {
	const query = `UPDATE users SET losses = losses + 1 WHERE discord_id = $1`
	if _, err := r.db.ExecContext(ctx, query, discordID); err != nil {
		return fmt.Errorf("update losses: %w", err)
	}
	return nil
}

func (r *repository) HasDailyClaim(ctx context.Context, discordID string, periodStart int64) (bool, error) {
	const query = `SELECT 1 FROM daily_claims WHERE discord_id = $1 AND daily_start_time = $2 LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, query, discordID, periodStart).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select daily claim: %w", err)
	}
	return true, nil
}

func (r *repository) RecordDailyClaim(ctx context.Context, discordID string, periodStart int64) error {
	const query = `INSERT INTO daily_claims (discord_id, daily_start_time) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, discordID, periodStart); err != nil {
		return fmt.Errorf("insert daily claim: %w", err)
	}
	return nil
}

// Leaderboard orders all users by the stable key (rank, LP, tickets), all
// descending, and returns the top slice plus the viewer's own position.
func (r *repository) Leaderboard(ctx context.Context, viewerID string, limit int) (*Leaderboard, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT discord_id, rank, champion_lp, tickets
		FROM users
		ORDER BY
			CASE rank
				WHEN 'Champion' THEN 3
				WHEN 'Master' THEN 2
				WHEN 'Pro' THEN 1
				ELSE 0
			END DESC,
			champion_lp DESC,
			tickets DESC,
			discord_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	lb := &Leaderboard{}
	position := 0
	for rows.Next() {
		position++
		var (
			row     LeaderboardRow
			rawRank string
		)
		if err := rows.Scan(&row.DiscordID, &rawRank, &row.ChampionLP, &row.Tickets); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		rank, ok := domain.ParseRank(rawRank)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRank, rawRank)
		}
		row.Rank = rank
		row.Position = position
		if position <= limit {
			lb.Top = append(lb.Top, row)
		}
		if row.DiscordID == viewerID {
			lb.ViewerPosition = position
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	lb.Total = position
	return lb, nil
}
