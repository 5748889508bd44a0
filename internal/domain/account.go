package domain

import "strings"

// Rank is the progression ladder: Noob < Pro < Master < Champion.
type Rank string

const (
	RankNoob     Rank = "Noob"
	RankPro      Rank = "Pro"
	RankMaster   Rank = "Master"
	RankChampion Rank = "Champion"
)

func ParseRank(s string) (Rank, bool) {
	switch strings.TrimSpace(s) {
	case string(RankNoob):
		return RankNoob, true
	case string(RankPro):
		return RankPro, true
	case string(RankMaster):
		return RankMaster, true
	case string(RankChampion):
		return RankChampion, true
	}
	return "", false
}

// Up moves one step toward Champion; Champion stays Champion.
func (r Rank) Up() Rank {
	switch r {
	case RankNoob:
		return RankPro
	case RankPro:
		return RankMaster
	case RankMaster:
		return RankChampion
	default:
		return RankChampion
	}
}

// Down moves one step toward Noob; Noob stays Noob.
func (r Rank) Down() Rank {
	switch r {
	case RankChampion:
		return RankMaster
	case RankMaster:
		return RankPro
	case RankPro:
		return RankNoob
	default:
		return RankNoob
	}
}

// Value is the leaderboard sort key component for the rank dimension.
func (r Rank) Value() int {
	switch r {
	case RankPro:
		return 1
	case RankMaster:
		return 2
	case RankChampion:
		return 3
	default:
		return 0
	}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy, true
	case "medium":
		return DifficultyMedium, true
	case "hard":
		return DifficultyHard, true
	}
	return "", false
}

// Account is the durable per-user record. The engine fetches a copy per
// command and never caches it across commands.
type Account struct {
	DiscordID      string
	LeetcodeHandle string
	Rank           Rank
	Tickets        int
	Easies         int
	Mediums        int
	Hards          int
	ChampionLP     int
	Wins           int
	Losses         int
}

// SolveCounts is a snapshot of accepted-question counts per difficulty.
type SolveCounts struct {
	Easy   int
	Medium int
	Hard   int
}

// Problem is catalog metadata for a single LeetCode question.
type Problem struct {
	Title          string     `json:"title"`
	TitleSlug      string     `json:"title_slug"`
	Difficulty     Difficulty `json:"difficulty"`
	AcceptanceRate float64    `json:"acceptance_rate"`
	PaidOnly       bool       `json:"paid_only"`
}

// DailyProblem is the catalog's daily challenge entry.
type DailyProblem struct {
	Date    string
	Link    string
	Problem Problem
}

// Submission is one entry of a user's recent accepted-submission history,
// most recent first.
type Submission struct {
	Title     string
	TitleSlug string
	Timestamp int64
}
