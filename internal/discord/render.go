package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/leetciv/leetciv-bot/internal/battle"
	"github.com/leetciv/leetciv-bot/internal/domain"
	"github.com/leetciv/leetciv-bot/internal/engine"
	"github.com/leetciv/leetciv-bot/internal/ephemeral"
	"github.com/leetciv/leetciv-bot/internal/lcapi"
	"github.com/leetciv/leetciv-bot/internal/linkverify"
	"github.com/leetciv/leetciv-bot/internal/obslog"
	"github.com/leetciv/leetciv-bot/internal/rankup"
)

const embedColor = 0xFFAE00

func problemURL(slug string) string { return "https://leetcode.com/problems/" + slug }

func newEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Color: embedColor, Description: message}
}

func titledEmbed(title, message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Color: embedColor, Title: title, Description: message}
}

// profileEmbed renders the stored account snapshot.
func profileEmbed(acct *domain.Account, title string) *discordgo.MessageEmbed {
	rank := string(acct.Rank)
	if acct.Rank == domain.RankChampion {
		rank = fmt.Sprintf("%s (%d LP)", acct.Rank, acct.ChampionLP)
	}
	return &discordgo.MessageEmbed{
		Color: embedColor,
		Title: title,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "LC User", Value: acct.LeetcodeHandle, Inline: true},
			{Name: "Rank", Value: rank, Inline: true},
			{Name: "Tickets", Value: fmt.Sprintf("%d", acct.Tickets), Inline: true},
			{Name: "Easies", Value: fmt.Sprintf("%d", acct.Easies), Inline: true},
			{Name: "Mediums", Value: fmt.Sprintf("%d", acct.Mediums), Inline: true},
			{Name: "Hards", Value: fmt.Sprintf("%d", acct.Hards), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Number of solved questions are not realtime - sync with /sync",
		},
	}
}

// errMessage maps engine failures to the user-facing message. The second
// return is false for unexpected errors, which get logged and a generic
// "try again" reply.
func errMessage(err error) (string, bool) {
	var rankupShort *rankup.InsufficientTicketsError
	var rankupWrong *rankup.WrongSubmissionError
	var battleWrong *battle.WrongSubmissionError

	switch {
	case errors.Is(err, engine.ErrNotLinked):
		return "You don't have an account linked!", true
	case errors.Is(err, engine.ErrTargetUnlinked):
		return "This user does not have a Leetcode account linked!", true
	case errors.Is(err, engine.ErrDailyAlreadyClaimed):
		return "You already claimed today's daily tickets!", true
	case errors.Is(err, linkverify.ErrNoPendingLink):
		return "You haven't called `/link`, or your verification code has expired. Please `/link` again!", true
	case errors.Is(err, linkverify.ErrCodeNotFound):
		return "Didn't find your verification code in your summary!", true
	case errors.As(err, &rankupShort):
		return fmt.Sprintf("You need at least **%d** tickets to attempt the rankup challenge.", rankupShort.Cost), true
	case errors.As(err, &rankupWrong):
		return fmt.Sprintf("Your latest submission is not the challenge problem.\nComplete the challenge problem [here](%s).",
			problemURL(rankupWrong.Problem.TitleSlug)), true
	case errors.Is(err, rankup.ErrEmptyHistory), errors.Is(err, battle.ErrEmptyHistory):
		return "Your recent submission list is empty.", true
	case errors.Is(err, battle.ErrSelfChallenge):
		return "You can't battle yourself!", true
	case errors.Is(err, battle.ErrDuplicateRequest):
		return "There is still an active battle request with this user!", true
	case errors.Is(err, battle.ErrAlreadyBattling):
		return "One or more users are already in a Leetcode battle.", true
	case errors.Is(err, battle.ErrNoRequest):
		return "This battle request is no longer active.", true
	case errors.Is(err, battle.ErrNotInBattle):
		return "You are not in an active Leetcode battle!", true
	case errors.As(err, &battleWrong):
		return fmt.Sprintf("Your latest submission is not the battle problem.\nComplete the battle problem [here](%s).",
			problemURL(battleWrong.Problem.TitleSlug)), true
	case errors.Is(err, battle.ErrDuplicateCancelRequest):
		return "You already sent a cancel request. Please wait until it's responded to, or expires.", true
	case errors.Is(err, battle.ErrNoCancelRequest):
		return "This cancel request is no longer active.", true
	case errors.Is(err, lcapi.ErrNoProblem):
		return "There was a problem getting a problem, try again!", true
	case errors.Is(err, lcapi.ErrUserNotFound):
		return "Couldn't find that Leetcode user!", true
	case errors.Is(err, ephemeral.ErrConflict):
		return "Simultaneous commands were detected and nothing was changed. Please try again.", true
	}
	return "", false
}

// battleResultMessage narrates a decided battle.
func battleResultMessage(out *battle.Outcome) string {
	if out.Exempt {
		return "Nothing happens because one of the users was a Leetcode **Noob**.\n"
	}
	msg := ""

	switch {
	case out.WinnerLPGain > 0:
		msg += fmt.Sprintf("<@%s> gained **+%d** LP and now has **%d** LP.\n", out.WinnerID, out.WinnerLPGain, out.WinnerNewLP)
	case out.WinnerPromoted:
		msg += fmt.Sprintf("<@%s> rose to Leetcode **%s**!\n", out.WinnerID, out.WinnerNewRank)
	default:
		msg += fmt.Sprintf("<@%s> earned **%d** tickets.\n", out.WinnerID, out.WinnerTickets)
	}

	if out.LoserLPLoss > 0 {
		msg += fmt.Sprintf("<@%s> lost **-%d** LP and now has **%d** LP.\n", out.LoserID, out.LoserLPLoss, out.LoserNewLP)
		if out.LoserDemoted {
			msg += fmt.Sprintf("<@%s> fell out of Leetcode **Champion** and is now a **%s**.\n", out.LoserID, out.LoserNewRank)
		}
	} else if out.LoserDemoted {
		msg += fmt.Sprintf("<@%s> fell to Leetcode **%s**.\n", out.LoserID, out.LoserNewRank)
	}
	return msg
}

// respond helpers

func respondText(s *discordgo.Session, i *discordgo.InteractionCreate, text string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: text}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	respondRaw(s, i, data)
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, message string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{newEmbed(message)}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	respondRaw(s, i, data)
}

func respondRaw(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		obslog.L().Warn("interaction_respond_failed", zap.Error(err))
	}
}

func deferThinking(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		obslog.L().Warn("interaction_defer_failed", zap.Error(err))
	}
}

func followupEmbeds(s *discordgo.Session, i *discordgo.InteractionCreate, content string, embeds ...*discordgo.MessageEmbed) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Embeds:  embeds,
	})
	if err != nil {
		obslog.L().Warn("interaction_followup_failed", zap.Error(err))
	}
}

// respondErr renders a mapped user error, or the generic fallback.
func respondErr(s *discordgo.Session, i *discordgo.InteractionCreate, err error, deferred bool) {
	msg, known := errMessage(err)
	if !known {
		name := ""
		if i.Type == discordgo.InteractionApplicationCommand {
			name = i.ApplicationCommandData().Name
		}
		obslog.L().Error("command_failed", zap.String("command", name), zap.Error(err))
		msg = "Something went wrong, please try again!"
	}
	if deferred {
		followupEmbeds(s, i, "", newEmbed(msg))
		return
	}
	respondEmbed(s, i, msg, true)
}
