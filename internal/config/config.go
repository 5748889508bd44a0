package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	DiscordToken string `yaml:"discord_token"`
	GuildID      string `yaml:"guild_id"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	LeetcodeEndpoint string `yaml:"leetcode_endpoint"`

	RecentSubmissionLimit int `yaml:"recent_submission_limit"`
	LeaderboardSize       int `yaml:"leaderboard_size"`
}

// Load reads an optional YAML file named by CONFIG_FILE, then lets
// environment variables override it. DISCORD_TOKEN and REDIS_URL are
// required; DATABASE_URL is optional (the in-memory account store is used
// without it).
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		RecentSubmissionLimit: 15,
		LeaderboardSize:       10,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	setStr := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.DiscordToken, "DISCORD_TOKEN")
	setStr(&cfg.GuildID, "DISCORD_GUILD_ID")
	setStr(&cfg.RedisURL, "REDIS_URL")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.LeetcodeEndpoint, "LEETCODE_ENDPOINT")

	setInt := func(dst *int, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	setInt(&cfg.RecentSubmissionLimit, "RECENT_SUBMISSION_LIMIT")
	setInt(&cfg.LeaderboardSize, "LEADERBOARD_SIZE")

	if cfg.DiscordToken == "" {
		return nil, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}
