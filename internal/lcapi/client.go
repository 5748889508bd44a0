// Package lcapi queries the LeetCode GraphQL API: daily challenge metadata,
// recent accepted submissions, random problems by difficulty, profile text,
// and solved-count snapshots.
package lcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/leetciv/leetciv-bot/internal/domain"
)

var (
	// ErrNoProblem means the catalog produced no usable (free) problem
	// within the bounded re-roll attempts.
	ErrNoProblem = errors.New("no problem available")
	// ErrUserNotFound means the handle does not exist on LeetCode.
	ErrUserNotFound = errors.New("leetcode user not found")
)

// Oracle is the problem-catalog surface the engine depends on.
type Oracle interface {
	DailyProblem(ctx context.Context) (*domain.DailyProblem, error)
	RecentAccepted(ctx context.Context, handle string, limit int) ([]domain.Submission, error)
	RandomProblem(ctx context.Context, d domain.Difficulty) (*domain.Problem, error)
	ProfileSummary(ctx context.Context, handle string) (string, error)
	SolveCounts(ctx context.Context, handle string) (domain.SolveCounts, error)
}

const (
	defaultEndpoint   = "https://leetcode.com/graphql/"
	randomMaxAttempts = 3
)

type Client struct {
	endpoint string
	http     *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = strings.TrimSpace(url) }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:       defaultEndpoint,
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const dailyQuery = `query questionOfToday {
  activeDailyCodingChallengeQuestion {
    date
    link
    question { title titleSlug difficulty acRate paidOnly }
  }
}`

func (c *Client) DailyProblem(ctx context.Context) (*domain.DailyProblem, error) {
	var resp dailyResponse
	if err := c.do(ctx, dailyQuery, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("daily query: %s", resp.Errors[0].Message)
	}
	q := resp.Data.ActiveDailyCodingChallengeQuestion
	problem, err := toProblem(&q.Question)
	if err != nil {
		return nil, err
	}
	return &domain.DailyProblem{Date: q.Date, Link: q.Link, Problem: *problem}, nil
}

const recentAcQuery = `query recentAcSubmissions($username: String!, $limit: Int!) {
  recentAcSubmissionList(username: $username, limit: $limit) {
    title
    titleSlug
    timestamp
  }
}`

// RecentAccepted returns the user's accepted submissions, most recent first.
func (c *Client) RecentAccepted(ctx context.Context, handle string, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 15
	}
	var resp recentAcResponse
	vars := map[string]any{"username": handle, "limit": limit}
	if err := c.do(ctx, recentAcQuery, vars, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("recent ac query: %s", resp.Errors[0].Message)
	}
	subs := make([]domain.Submission, 0, len(resp.Data.RecentAcSubmissionList))
	for _, raw := range resp.Data.RecentAcSubmissionList {
		ts, _ := strconv.ParseInt(raw.Timestamp, 10, 64)
		subs = append(subs, domain.Submission{Title: raw.Title, TitleSlug: raw.TitleSlug, Timestamp: ts})
	}
	return subs, nil
}

const randomQuery = `query randomQuestion($categorySlug: String, $filters: QuestionListFilterInput) {
  randomQuestion(categorySlug: $categorySlug, filters: $filters) {
    title
    titleSlug
    difficulty
    acRate
    paidOnly
  }
}`

// RandomProblem samples a free problem at the given difficulty. The catalog
// can hand back subscription-only questions; those are re-rolled a bounded
// number of times before giving up with ErrNoProblem.
func (c *Client) RandomProblem(ctx context.Context, d domain.Difficulty) (*domain.Problem, error) {
	vars := map[string]any{
		"categorySlug": "algorithms",
		"filters":      map[string]any{"difficulty": strings.ToUpper(string(d))},
	}
	for attempt := 0; attempt < randomMaxAttempts; attempt++ {
		var resp randomQuestionResponse
		if err := c.do(ctx, randomQuery, vars, &resp); err != nil {
			return nil, err
		}
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("random question query: %s", resp.Errors[0].Message)
		}
		q := resp.Data.RandomQuestion
		if q == nil {
			break
		}
		if q.PaidOnly {
			continue
		}
		return toProblem(q)
	}
	return nil, ErrNoProblem
}

const profileSummaryQuery = `query userPublicProfile($username: String!) {
  matchedUser(username: $username) {
    profile { aboutMe }
  }
}`

func (c *Client) ProfileSummary(ctx context.Context, handle string) (string, error) {
	var resp profileSummaryResponse
	if err := c.do(ctx, profileSummaryQuery, map[string]any{"username": handle}, &resp); err != nil {
		return "", err
	}
	if resp.Data.MatchedUser == nil {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, handle)
	}
	return resp.Data.MatchedUser.Profile.AboutMe, nil
}

const solveCountQuery = `query userProfileUserQuestionProgressV2($userSlug: String!) {
  userProfileUserQuestionProgressV2(userSlug: $userSlug) {
    numAcceptedQuestions { count difficulty }
  }
}`

func (c *Client) SolveCounts(ctx context.Context, handle string) (domain.SolveCounts, error) {
	var resp solveCountResponse
	if err := c.do(ctx, solveCountQuery, map[string]any{"userSlug": handle}, &resp); err != nil {
		return domain.SolveCounts{}, err
	}
	if len(resp.Errors) > 0 {
		return domain.SolveCounts{}, fmt.Errorf("%w: %s", ErrUserNotFound, handle)
	}
	var counts domain.SolveCounts
	for _, entry := range resp.Data.Progress.NumAcceptedQuestions {
		switch strings.ToUpper(entry.Difficulty) {
		case "EASY":
			counts.Easy = entry.Count
		case "MEDIUM":
			counts.Medium = entry.Count
		case "HARD":
			counts.Hard = entry.Count
		}
	}
	return counts, nil
}

func toProblem(q *questionNode) (*domain.Problem, error) {
	d, ok := domain.ParseDifficulty(q.Difficulty)
	if !ok {
		return nil, fmt.Errorf("unknown difficulty %q for %s", q.Difficulty, q.TitleSlug)
	}
	return &domain.Problem{
		Title:          q.Title,
		TitleSlug:      q.TitleSlug,
		Difficulty:     d,
		AcceptanceRate: q.AcRate,
		PaidOnly:       q.PaidOnly,
	}, nil
}

func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.endpoint)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err == nil && resp.StatusCode() < 500 {
			if resp.StatusCode() != fasthttp.StatusOK {
				return fmt.Errorf("leetcode api status %d", resp.StatusCode())
			}
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
		if err == nil {
			lastErr = fmt.Errorf("leetcode api status %d", resp.StatusCode())
		} else {
			lastErr = err
		}
		if attempt < attempts {
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return fmt.Errorf("request failed: %w", lastErr)
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.defaultTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func backoffDuration(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d > 3*time.Second {
		d = 3 * time.Second
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
