package battle

import (
	"errors"
	"strings"
	"time"

	"github.com/leetciv/leetciv-bot/internal/domain"
)

var (
	ErrSelfChallenge          = errors.New("cannot battle yourself")
	ErrDuplicateRequest       = errors.New("active battle request already exists for this pair")
	ErrAlreadyBattling        = errors.New("a participant is already in a battle")
	ErrNoRequest              = errors.New("no battle request for this pair")
	ErrNotInBattle            = errors.New("not in an active battle")
	ErrEmptyHistory           = errors.New("recent submission list is empty")
	ErrWrongSubmission        = errors.New("latest submission is not the battle problem")
	ErrDuplicateCancelRequest = errors.New("cancel request already pending")
	ErrNoCancelRequest        = errors.New("no cancel request for this pair")

	// ErrPartialResolution marks a result where the loser's mutation
	// committed but a winner-side write failed. Never retried: a retry
	// could double-apply the loser's demotion.
	ErrPartialResolution = errors.New("battle result partially applied")
)

// WrongSubmissionError carries the battle problem so callers can point the
// user back at it.
type WrongSubmissionError struct {
	Problem domain.Problem
}

func (e *WrongSubmissionError) Error() string {
	return "latest submission is not " + e.Problem.TitleSlug
}

func (e *WrongSubmissionError) Is(target error) bool { return target == ErrWrongSubmission }

const (
	RequestTTL = 120 * time.Second
	BattleTTL  = 40 * time.Minute
	CancelTTL  = 60 * time.Second
)

// Request is an outstanding battle challenge. It is keyed by the unordered
// pair, so at most one exists between two users regardless of direction;
// direction lives here in the payload.
type Request struct {
	ChallengerID string            `json:"challenger_id"`
	TargetID     string            `json:"target_id"`
	Difficulty   domain.Difficulty `json:"difficulty"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// Battle is the single record of an active battle. Each participant also
// carries an index entry pointing at it; the record and both index entries
// are always deleted together.
type Battle struct {
	ID        string         `json:"id"`
	UserA     string         `json:"user_a"`
	UserB     string         `json:"user_b"`
	Problem   domain.Problem `json:"problem"`
	HasExempt bool           `json:"has_exempt"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Opponent returns the other participant's id, or "" for a non-participant.
func (b *Battle) Opponent(userID string) string {
	switch userID {
	case b.UserA:
		return b.UserB
	case b.UserB:
		return b.UserA
	}
	return ""
}

// CancelRequest is an outstanding request to call off a battle, keyed by the
// ordered (requester, opponent) pair.
type CancelRequest struct {
	RequesterID string    `json:"requester_id"`
	OpponentID  string    `json:"opponent_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// pairKey folds the two ids into canonical (min,max) order so duplicate
// checks hold in both directions.
func pairKey(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func requestKey(a, b string) string { return "battle:req:" + pairKey(a, b) }

func battleKey(id string) string { return "battle:game:" + id }

func userIdxKey(userID string) string { return "battle:user:" + strings.TrimSpace(userID) }

func cancelKey(requesterID, opponentID string) string {
	return "battle:cancel:" + strings.TrimSpace(requesterID) + ":" + strings.TrimSpace(opponentID)
}
