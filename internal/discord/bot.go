// Package discord adapts the engine to Discord slash commands and buttons.
// All user-facing text lives here; the engine only returns data.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/leetciv/leetciv-bot/internal/engine"
	"github.com/leetciv/leetciv-bot/internal/obslog"
)

const commandTimeout = 30 * time.Second

type Bot struct {
	session *discordgo.Session
	eng     *engine.Engine
	guildID string

	registered []*discordgo.ApplicationCommand
}

func New(token, guildID string, eng *engine.Engine) (*Bot, error) {
	session, err := discordgo.New("Bot " + strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsNone
	return &Bot{session: session, eng: eng, guildID: guildID}, nil
}

// Start opens the gateway connection and registers the slash commands.
func (b *Bot) Start() error {
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		go b.dispatch(s, i)
	})
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}

	appID := b.session.State.User.ID
	for _, cmd := range commandDefinitions() {
		created, err := b.session.ApplicationCommandCreate(appID, b.guildID, cmd)
		if err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
		b.registered = append(b.registered, created)
	}
	obslog.L().Info("discord_ready",
		zap.String("bot_user", b.session.State.User.Username),
		zap.Int("commands", len(b.registered)),
	)
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, s, i)
	}
}

// interactionUserID covers both guild (Member) and DM (User) interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (b *Bot) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	userID := interactionUserID(i)

	switch name {
	case "ping":
		respondText(s, i, "Pong!", true)
	case "link":
		b.cmdLink(ctx, s, i, userID)
	case "verify":
		b.cmdVerify(ctx, s, i, userID)
	case "profile":
		b.cmdProfile(ctx, s, i, userID)
	case "sync":
		b.cmdSync(ctx, s, i, userID)
	case "daily":
		b.cmdDaily(ctx, s, i, userID)
	case "rankup":
		b.cmdRankup(ctx, s, i, userID)
	case "battle":
		b.cmdBattle(ctx, s, i, userID)
	case "submit":
		b.cmdSubmit(ctx, s, i, userID)
	case "cancel":
		b.cmdCancel(ctx, s, i, userID)
	case "leaderboard":
		b.cmdLeaderboard(ctx, s, i, userID)
	}
}

func (b *Bot) handleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	parts := strings.Split(customID, ":")
	if len(parts) != 3 {
		return
	}
	action, idA, idB := parts[0], parts[1], parts[2]

	switch action {
	case actionBattleAccept, actionBattleDecline:
		// only the challenged user may answer
		if interactionUserID(i) != idB {
			respondEmbed(s, i, "This battle request is not for you.", true)
			return
		}
		if action == actionBattleAccept {
			b.componentBattleAccept(ctx, s, i, idA, idB)
		} else {
			b.componentBattleDecline(ctx, s, i, idA, idB)
		}
	case actionCancelAccept, actionCancelDecline:
		// only the cancel requester's opponent may answer
		if interactionUserID(i) != idB {
			respondEmbed(s, i, "This cancel request is not for you.", true)
			return
		}
		b.componentCancelResolve(ctx, s, i, idA, idB, action == actionCancelAccept)
	}
}
