package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/leetciv/leetciv-bot/internal/account"
	"github.com/leetciv/leetciv-bot/internal/config"
	"github.com/leetciv/leetciv-bot/internal/discord"
	"github.com/leetciv/leetciv-bot/internal/engine"
	"github.com/leetciv/leetciv-bot/internal/ephemeral"
	"github.com/leetciv/leetciv-bot/internal/lcapi"
	"github.com/leetciv/leetciv-bot/internal/obslog"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := ephemeral.NewStoreFromURL(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		obslog.L().Fatal("redis init", zap.Error(err))
	}

	var repo account.Repository
	if cfg.DatabaseURL != "" {
		repo, err = account.NewRepository(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Fatal("database init", zap.Error(err))
		}
	} else {
		obslog.L().Warn("no DATABASE_URL configured, accounts are in-memory only")
		repo = account.NewMemoryRepository()
	}

	var oracleOpts []lcapi.Option
	if cfg.LeetcodeEndpoint != "" {
		oracleOpts = append(oracleOpts, lcapi.WithEndpoint(cfg.LeetcodeEndpoint))
	}
	oracle := lcapi.NewClient(oracleOpts...)

	eng := engine.New(store, repo, oracle,
		engine.WithRecentSubmissionLimit(cfg.RecentSubmissionLimit),
		engine.WithLeaderboardSize(cfg.LeaderboardSize),
	)

	bot, err := discord.New(cfg.DiscordToken, cfg.GuildID, eng)
	if err != nil {
		obslog.L().Fatal("discord init", zap.Error(err))
	}
	if err := bot.Start(); err != nil {
		obslog.L().Fatal("discord start", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = bot.Close()
	_ = repo.Close()
	_ = store.Close()
}
