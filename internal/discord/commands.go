package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/engine"
)

const (
	actionBattleAccept  = "battle_accept"
	actionBattleDecline = "battle_decline"
	actionCancelAccept  = "cancel_accept"
	actionCancelDecline = "cancel_decline"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	difficultyChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Easy", Value: "easy"},
		{Name: "Medium", Value: "medium"},
		{Name: "Hard", Value: "hard"},
	}
	return []*discordgo.ApplicationCommand{
		{Name: "ping", Description: "Pong"},
		{
			Name:        "link",
			Description: "Link your Discord account to a Leetcode account.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "leetcode_username",
				Description: "The Leetcode username to link to.",
				Required:    true,
			}},
		},
		{Name: "verify", Description: "Verify your linked Leetcode account. Only use this after using /link."},
		{Name: "profile", Description: "Check your privilege."},
		{Name: "sync", Description: "Sync your Leetcode solved questions and earn tickets."},
		{Name: "daily", Description: "Claim your daily tickets if you've finished today's daily problem."},
		{Name: "rankup", Description: "Use tickets to attempt to rank up."},
		{
			Name:        "battle",
			Description: "Challenge another player to a Leetcode battle!",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to challenge to a Leetcode battle.",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "difficulty",
					Description: "The difficulty of the battle problem.",
					Required:    true,
					Choices:     difficultyChoices,
				},
			},
		},
		{Name: "submit", Description: "Submit your accepted submission in a Leetcode battle."},
		{Name: "cancel", Description: "Send your opponent a request to cancel the Leetcode battle."},
		{Name: "leaderboard", Description: "See the top Leetcode civilization players."},
	}
}

func commandOption(i *discordgo.InteractionCreate, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

func (b *Bot) cmdLink(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	opt := commandOption(i, "leetcode_username")
	if opt == nil {
		return
	}
	handle := strings.TrimSpace(opt.StringValue())

	pending, err := b.eng.Link(ctx, userID, handle)
	if err != nil {
		respondErr(s, i, err, false)
		return
	}
	respondEmbed(s, i, fmt.Sprintf(
		"To verify you own this Leetcode account (%s), add `%s` to your summary and use `/verify`.",
		pending.Handle, pending.Code,
	), true)
}

func (b *Bot) cmdVerify(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	deferThinking(s, i, true)
	acct, err := b.eng.ConfirmLink(ctx, userID)
	if err != nil {
		respondErr(s, i, err, true)
		return
	}
	embed := profileEmbed(acct, "Verified!")
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: "Note: If you link to another Leetcode account in the future, your rank and tickets will be reset!",
	}
	followupEmbeds(s, i, "", embed)
}

func (b *Bot) cmdProfile(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	acct, err := b.eng.Profile(ctx, userID)
	if err != nil {
		respondErr(s, i, err, false)
		return
	}
	title := ""
	if i.Member != nil && i.Member.User != nil {
		title = i.Member.User.Username
	}
	respondRaw(s, i, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{profileEmbed(acct, title)},
	})
}

func (b *Bot) cmdSync(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	deferThinking(s, i, false)
	res, err := b.eng.Sync(ctx, userID)
	if err != nil {
		respondErr(s, i, err, true)
		return
	}

	addMsg := "No change from before."
	if res.Easies+res.Mediums+res.Hards > 0 {
		addMsg = fmt.Sprintf(
			"You solved **%d** %s, **%d** %s, and **%d** %s, earning you a total of **%d** tickets.",
			res.Easies, plural(res.Easies, "Easy", "Easies"),
			res.Mediums, plural(res.Mediums, "Medium", "Mediums"),
			res.Hards, plural(res.Hards, "Hard", "Hards"),
			res.Tickets,
		)
	}
	followupEmbeds(s, i, "", newEmbed("Successfully synced solved questions!\n"+addMsg))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (b *Bot) cmdDaily(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	deferThinking(s, i, false)
	res, err := b.eng.ClaimDaily(ctx, userID)
	if err != nil {
		respondErr(s, i, err, true)
		return
	}
	if !res.Claimed {
		followupEmbeds(s, i, "", newEmbed(fmt.Sprintf(
			"You haven't done today's daily, or your submission is outside of your recent window. Please complete the daily [here](https://leetcode.com%s).",
			res.Link,
		)))
		return
	}
	followupEmbeds(s, i, "", newEmbed(fmt.Sprintf(
		"For completing today's daily (**%s**) with an acceptance rate of **~%.2f%%**, you earned **%d** tickets!",
		res.Problem.Difficulty, res.Problem.AcceptanceRate, res.Reward,
	)))
}

func (b *Bot) cmdRankup(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	deferThinking(s, i, false)
	res, err := b.eng.Rankup(ctx, userID)
	if err != nil {
		respondErr(s, i, err, true)
		return
	}

	switch res.Phase {
	case engine.RankupStarted:
		p := res.Pending
		followupEmbeds(s, i, "", newEmbed(fmt.Sprintf(
			"Used **%d** tickets to attempt the rankup challenge!\n\n"+
				"Your rankup challenge is **[%s](%s) (%s)**."+
				"\nYou must finish it <t:%d:R>.\nImmediately after you submit an accepted solution, use `/rankup` again.",
			res.Cost, p.Problem.Title, problemURL(p.Problem.TitleSlug), p.Problem.Difficulty, p.ExpiresAt.Unix(),
		)))
	case engine.RankupAdvanced:
		followupEmbeds(s, i, "", newEmbed(fmt.Sprintf(
			"Congrats on ranking up! You are now a Leetcode **%s**.", res.Verify.NewRank,
		)))
	case engine.RankupLPGained:
		followupEmbeds(s, i, "", newEmbed(fmt.Sprintf(
			"Congrats on ranking up! You gained **+%d** LP, and now have a total of **%d** LP.",
			res.Verify.LPGain, res.Verify.NewLP,
		)))
	}
}

func (b *Bot) cmdBattle(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	userOpt := commandOption(i, "user")
	diffOpt := commandOption(i, "difficulty")
	if userOpt == nil || diffOpt == nil {
		return
	}
	targetID := userOpt.UserValue(nil).ID

	res, err := b.eng.RequestBattle(ctx, userID, targetID, diffOpt.StringValue())
	if err != nil {
		respondErr(s, i, err, false)
		return
	}

	embed := titledEmbed("Battle Request", fmt.Sprintf(
		"<@%s> has challenged you to a Leetcode Battle! (**%s**)"+
			"\n\nIf you win, you rise a rank if your opponent is higher ranked.\nOtherwise, you gain tickets."+
			"\nIf you lose, you fall down a rank (or lose LP)."+
			"\nIf you are both Leetcode Champions, you gain or lose LP."+
			"\n\nThis request will expire <t:%d:R>.",
		userID, res.Request.Difficulty, res.Request.ExpiresAt.Unix(),
	))
	if res.HasNoob {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "Since you or the requester is a Leetcode Noob, this battle won't have rewards or penalties.",
		}
	}

	respondRaw(s, i, &discordgo.InteractionResponseData{
		Content: fmt.Sprintf("<@%s>", targetID),
		Embeds:  []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Accept",
					Style:    discordgo.SuccessButton,
					CustomID: fmt.Sprintf("%s:%s:%s", actionBattleAccept, userID, targetID),
				},
				discordgo.Button{
					Label:    "Decline",
					Style:    discordgo.DangerButton,
					CustomID: fmt.Sprintf("%s:%s:%s", actionBattleDecline, userID, targetID),
				},
			},
		}},
	})
}

func (b *Bot) cmdSubmit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	deferThinking(s, i, false)
	out, err := b.eng.SubmitWin(ctx, userID)
	if err != nil {
		respondErr(s, i, err, true)
		return
	}
	followupEmbeds(s, i,
		fmt.Sprintf("<@%s> <@%s>", out.WinnerID, out.LoserID),
		titledEmbed("Leetcode Battle", fmt.Sprintf(
			"<@%s> won the Leetcode battle against <@%s>!\n\n%s",
			out.WinnerID, out.LoserID, battleResultMessage(out),
		)),
	)
}

func (b *Bot) cmdCancel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	req, err := b.eng.RequestCancel(ctx, userID)
	if err != nil {
		respondErr(s, i, err, false)
		return
	}
	respondRaw(s, i, &discordgo.InteractionResponseData{
		Content: fmt.Sprintf("<@%s>", req.OpponentID),
		Embeds: []*discordgo.MessageEmbed{newEmbed(fmt.Sprintf(
			"<@%s> has requested to cancel the Leetcode battle.\nThis request expires <t:%d:R>.",
			req.RequesterID, req.ExpiresAt.Unix(),
		))},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Accept",
					Style:    discordgo.SuccessButton,
					CustomID: fmt.Sprintf("%s:%s:%s", actionCancelAccept, req.RequesterID, req.OpponentID),
				},
				discordgo.Button{
					Label:    "Decline",
					Style:    discordgo.DangerButton,
					CustomID: fmt.Sprintf("%s:%s:%s", actionCancelDecline, req.RequesterID, req.OpponentID),
				},
			},
		}},
	})
}

func (b *Bot) cmdLeaderboard(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	lb, err := b.eng.Leaderboard(ctx, userID)
	if err != nil {
		respondErr(s, i, err, false)
		return
	}
	var sb strings.Builder
	for _, row := range lb.Top {
		if row.Rank == domain.RankChampion {
			fmt.Fprintf(&sb, "**#%d** <@%s> — %s (%d LP)\n", row.Position, row.DiscordID, row.Rank, row.ChampionLP)
		} else {
			fmt.Fprintf(&sb, "**#%d** <@%s> — %s\n", row.Position, row.DiscordID, row.Rank)
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("Nobody has linked an account yet!")
	}
	embed := titledEmbed("Leaderboard", sb.String())
	if lb.ViewerPosition > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("You are #%d of %d players.", lb.ViewerPosition, lb.Total),
		}
	}
	respondRaw(s, i, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}})
}

// component handlers

func (b *Bot) componentBattleAccept(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, challengerID, targetID string) {
	deferThinking(s, i, false)
	battleState, err := b.eng.AcceptBattle(ctx, challengerID, targetID)
	if err != nil {
		respondErr(s, i, err, true)
		return
	}
	followupEmbeds(s, i,
		fmt.Sprintf("<@%s> <@%s>", challengerID, targetID),
		titledEmbed("Leetcode Battle", fmt.Sprintf(
			"The battle problem is **[%s](%s)**."+
				"\nThe first one to submit an accepted answer and uses `/submit` wins!\nThis battle expires <t:%d:R>.",
			battleState.Problem.Title, problemURL(battleState.Problem.TitleSlug), battleState.ExpiresAt.Unix(),
		)),
	)
}

func (b *Bot) componentBattleDecline(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, challengerID, targetID string) {
	if err := b.eng.DeclineBattle(ctx, challengerID, targetID); err != nil {
		respondErr(s, i, err, false)
		return
	}
	respondEmbed(s, i, fmt.Sprintf("<@%s> declined the battle request.", targetID), false)
}

func (b *Bot) componentCancelResolve(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, requesterID, opponentID string, accept bool) {
	if err := b.eng.ResolveCancel(ctx, requesterID, opponentID, accept); err != nil {
		respondErr(s, i, err, false)
		return
	}
	if accept {
		respondRaw(s, i, &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("<@%s> <@%s>", requesterID, opponentID),
			Embeds:  []*discordgo.MessageEmbed{newEmbed("Leetcode battle cancelled!")},
		})
		return
	}
	respondEmbed(s, i, fmt.Sprintf("<@%s> declined the cancel request.", opponentID), false)
}
