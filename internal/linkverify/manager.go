// Package linkverify is the account-linking gate: every other command
// requires a linked, verified LeetCode account.
package linkverify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leetciv/leetciv-bot/internal/account"
	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/ephemeral"
	"github.com/leetciv/leetciv-bot/internal/lcapi"
	"github.com/leetciv/leetciv-bot/internal/obslog"
)

var (
	ErrNoPendingLink = errors.New("no pending link for user")
	ErrCodeNotFound  = errors.New("verification code not found in summary")
)

const linkTTL = 5 * time.Minute

// Pending is an unconfirmed link attempt.
type Pending struct {
	Code      string    `json:"code"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

type Manager struct {
	store  *ephemeral.Store
	repo   account.Repository
	oracle lcapi.Oracle
}

func NewManager(store *ephemeral.Store, repo account.Repository, oracle lcapi.Oracle) *Manager {
	return &Manager{store: store, repo: repo, oracle: oracle}
}

func linkKey(userID string) string { return "link:" + strings.TrimSpace(userID) }

// Start issues a fresh verification code for the handle. Calling it again
// replaces any earlier pending attempt.
func (m *Manager) Start(ctx context.Context, userID, handle string) (*Pending, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(handle) == "" {
		return nil, fmt.Errorf("invalid link arguments")
	}
	code, err := verificationCode()
	if err != nil {
		return nil, err
	}
	p := &Pending{Code: code, Handle: strings.TrimSpace(handle), CreatedAt: time.Now()}
	if err := m.store.Put(ctx, linkKey(userID), p, linkTTL); err != nil {
		return nil, err
	}
	obslog.L().Info("link_start", zap.String("user_id", userID), zap.String("handle", p.Handle))
	return p, nil
}

// Confirm checks the code is present in the profile's free-text summary and
// then creates the account. Re-linking resets rank, tickets, LP, and
// counters.
func (m *Manager) Confirm(ctx context.Context, userID string) (*domain.Account, error) {
	var p Pending
	found, err := m.store.Get(ctx, linkKey(userID), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoPendingLink
	}

	summary, err := m.oracle.ProfileSummary(ctx, p.Handle)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(summary, p.Code) {
		return nil, ErrCodeNotFound
	}

	counts, err := m.oracle.SolveCounts(ctx, p.Handle)
	if err != nil {
		return nil, err
	}
	acct, err := m.repo.CreateOrReset(ctx, userID, p.Handle, counts)
	if err != nil {
		return nil, err
	}
	_ = m.store.Del(ctx, linkKey(userID))
	obslog.L().Info("link_confirm", zap.String("user_id", userID), zap.String("handle", p.Handle))
	return acct, nil
}

// verificationCode returns a zero-padded 6-digit numeric code.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
