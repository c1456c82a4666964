package service

import (
	"context"
	"fmt"

	"anoa.com/challengebot/internal/entity"
	challengeRepo "anoa.com/challengebot/internal/modules/challenge/repository"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/pkg/logger"
	"go.uber.org/zap"
)

const (
	colorBlurple = 0x5865F2
	colorGold    = 0xFFD700
	colorGrey    = 0x99AAB5
)

// Announcer posts challenge announcements and their companion threads. It is
// shared by direct creation and the scheduler.
type Announcer struct {
	repo     challengeRepo.ChallengeRepository
	platform platform.Platform
	log      *zap.Logger
}

func NewAnnouncer(repo challengeRepo.ChallengeRepository, p platform.Platform) *Announcer {
	return &Announcer{repo: repo, platform: p, log: logger.WithComponent("announcer")}
}

func ChallengeEmbed(c *entity.Challenge) platform.Embed {
	return platform.Embed{
		Title:       "🏁 New Challenge: " + c.Title,
		Description: c.Description,
		Color:       colorBlurple,
		Footer:      "Use /submit in this thread!",
		Fields: []platform.Field{
			{Name: "Challenge ID", Value: fmt.Sprintf("`%d`", c.ID), Inline: true},
			{Name: "Type", Value: c.Type, Inline: true},
		},
	}
}

// Announce posts the embed, opens the thread and links both to c. Failures are
// logged and leave c without locators.
func (a *Announcer) Announce(ctx context.Context, c *entity.Challenge) {
	log := a.log.With(zap.Uint("challenge_id", c.ID), zap.String("guild_id", c.GuildID))
	if c.ChannelID == nil || *c.ChannelID == "" {
		log.Warn("challenge has no announcement channel")
		return
	}

	msg, err := a.platform.SendEmbed(ctx, *c.ChannelID, ChallengeEmbed(c))
	if err != nil {
		log.Warn("failed to post challenge announcement", zap.Error(err))
		return
	}

	threadID, err := a.platform.StartThread(ctx, msg.ChannelID, msg.MessageID, fmt.Sprintf("Challenge #%d - %s", c.ID, c.Title))
	if err != nil {
		log.Warn("failed to start challenge thread", zap.Error(err))
	}

	if err := a.repo.AttachMessage(ctx, c.ID, msg.MessageID, threadID); err != nil {
		log.Error("failed to link announcement to challenge", zap.Error(err))
		return
	}
	c.MessageID = &msg.MessageID
	if threadID != "" {
		c.ThreadID = &threadID
	}
}

// SpawnInstance creates a concrete challenge from a template and announces it.
func (a *Announcer) SpawnInstance(ctx context.Context, tmpl entity.Challenge) (*entity.Challenge, error) {
	c := &entity.Challenge{
		GuildID:     tmpl.GuildID,
		Title:       tmpl.Title,
		Description: tmpl.Description,
		Type:        tmpl.Type,
		CreatedBy:   tmpl.CreatedBy,
		ChannelID:   tmpl.ChannelID,
		IsActive:    true,
	}
	if err := a.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create instance of template %d: %w", tmpl.ID, err)
	}
	a.Announce(ctx, c)
	return c, nil
}
