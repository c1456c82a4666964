// Package bot is the chat command layer: slash commands and reaction votes.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	badgeService "anoa.com/challengebot/internal/modules/badge/service"
	challengeService "anoa.com/challengebot/internal/modules/challenge/service"
	pointsService "anoa.com/challengebot/internal/modules/points/service"
	settingsService "anoa.com/challengebot/internal/modules/settings/service"
	submissionService "anoa.com/challengebot/internal/modules/submission/service"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/logger"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const handlerTimeout = 15 * time.Second

type Services struct {
	Points      pointsService.PointsService
	Challenges  challengeService.ChallengeService
	Submissions submissionService.SubmissionService
	Settings    settingsService.SettingsService
	Badges      badgeService.BadgeService
}

type Bot struct {
	session *discordgo.Session
	appID   string
	// commandGuild scopes command registration; empty registers globally.
	commandGuild string

	platform    platform.Platform
	points      pointsService.PointsService
	challenges  challengeService.ChallengeService
	submissions submissionService.SubmissionService
	settings    settingsService.SettingsService
	badges      badgeService.BadgeService
	log         *zap.Logger

	mu     sync.RWMutex
	selfID string
}

func New(session *discordgo.Session, appID, commandGuild string, p platform.Platform, svc Services) *Bot {
	return &Bot{
		session:      session,
		appID:        appID,
		commandGuild: commandGuild,
		platform:     p,
		points:       svc.Points,
		challenges:   svc.Challenges,
		submissions:  svc.Submissions,
		settings:     svc.Settings,
		badges:       svc.Badges,
		log:          logger.WithComponent("bot"),
	}
}

// Attach registers the gateway handlers. Call before opening the session.
func (b *Bot) Attach() {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
		b.onReaction(r.MessageReaction, true)
	})
	b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
		b.onReaction(r.MessageReaction, false)
	})
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.mu.Lock()
	b.selfID = r.User.ID
	b.mu.Unlock()

	appID := b.appID
	if appID == "" {
		appID = r.User.ID
	}
	registered, err := s.ApplicationCommandBulkOverwrite(appID, b.commandGuild, Commands)
	if err != nil {
		b.log.Error("failed to register slash commands", zap.Error(err))
		return
	}
	b.log.Info("bot ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)),
		zap.Int("commands", len(registered)),
	)
}

func (b *Bot) isSelf(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selfID != "" && b.selfID == userID
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	in := parseInteraction(i)

	// Interactions expire after three seconds; defer before any storage work.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.log.Warn("interaction expired before it could be deferred",
			zap.String("command", in.Name),
			zap.String("guild_id", in.GuildID),
			zap.Error(err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	out, err := b.runCommand(ctx, in)
	if err != nil {
		out = reply{Content: b.userMessage(in, err)}
	}

	edit := &discordgo.WebhookEdit{Content: &out.Content}
	if out.Embed != nil {
		embeds := []*discordgo.MessageEmbed{platform.DiscordEmbed(*out.Embed)}
		edit.Embeds = &embeds
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		b.log.Warn("failed to send command reply", zap.String("command", in.Name), zap.Error(err))
	}
}

func parseInteraction(i *discordgo.InteractionCreate) commandInput {
	data := i.ApplicationCommandData()
	in := commandInput{
		Name:     data.Name,
		GuildID:  i.GuildID,
		Strings:  map[string]string{},
		Ints:     map[string]int64{},
		Users:    map[string]string{},
		Channels: map[string]string{},
		Roles:    map[string]string{},
	}
	if i.Member != nil && i.Member.User != nil {
		in.UserID = i.Member.User.ID
		in.Username = i.Member.User.Username
	} else if i.User != nil {
		in.UserID = i.User.ID
		in.Username = i.User.Username
	}

	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			in.Strings[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			in.Ints[opt.Name] = opt.IntValue()
		case discordgo.ApplicationCommandOptionUser:
			in.Users[opt.Name] = opt.UserValue(nil).ID
		case discordgo.ApplicationCommandOptionChannel:
			in.Channels[opt.Name], _ = opt.Value.(string)
		case discordgo.ApplicationCommandOptionRole:
			in.Roles[opt.Name], _ = opt.Value.(string)
		case discordgo.ApplicationCommandOptionAttachment:
			id, _ := opt.Value.(string)
			if data.Resolved != nil {
				in.Attachment = data.Resolved.Attachments[id]
			}
		}
	}
	return in
}

func (b *Bot) onReaction(r *discordgo.MessageReaction, want bool) {
	if r.GuildID == "" || b.isSelf(r.UserID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.handleReaction(ctx, r.GuildID, r.MessageID, r.UserID, r.Emoji.APIName(), want)
}

// handleReaction turns a vote-emoji reaction on a submission message into a vote.
func (b *Bot) handleReaction(ctx context.Context, guildID, messageID, userID, emoji string, want bool) {
	settings, err := b.settings.Get(ctx, guildID)
	if err != nil {
		b.log.Error("failed to load guild settings", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	if emoji != settings.VoteEmoji {
		return
	}

	res, err := b.submissions.SetVoteByMessage(ctx, guildID, messageID, userID, want)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		// not a submission message
	case errors.Is(err, apperror.ErrSelfVote):
		b.log.Debug("self vote rejected", zap.String("guild_id", guildID), zap.String("user_id", userID))
	case err != nil:
		b.log.Error("failed to record reaction vote",
			zap.String("guild_id", guildID),
			zap.String("message_id", messageID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	default:
		b.log.Debug("reaction vote",
			zap.Uint("submission_id", res.SubmissionID),
			zap.String("action", string(res.Action)),
			zap.Int("votes", res.Votes),
		)
	}
}
