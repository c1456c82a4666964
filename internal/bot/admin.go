package bot

import (
	"context"
	"fmt"
	"strings"

	badgeDto "anoa.com/challengebot/internal/modules/badge/dto"
	challengeDto "anoa.com/challengebot/internal/modules/challenge/dto"
	settingsDto "anoa.com/challengebot/internal/modules/settings/dto"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/pkg/apperror"
)

func (b *Bot) requireAdmin(ctx context.Context, in commandInput) error {
	ok, err := b.platform.IsAdmin(ctx, in.GuildID, in.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrForbidden
	}
	return nil
}

// requireChallengeAdmin also checks that the challenge lives in the invoking guild.
func (b *Bot) requireChallengeAdmin(ctx context.Context, in commandInput, challengeID uint) error {
	if err := b.requireAdmin(ctx, in); err != nil {
		return err
	}
	detail, err := b.challenges.Get(ctx, challengeID)
	if err != nil {
		return err
	}
	if detail.GuildID != in.GuildID {
		return apperror.ErrNotFound
	}
	return nil
}

func (b *Bot) createChallenge(ctx context.Context, in commandInput) (reply, error) {
	if err := b.requireAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	req := challengeDto.CreateChallengeRequest{
		Title:       in.Strings["title"],
		Description: in.Strings["description"],
		Type:        in.Strings["type"],
		ChannelID:   in.Channels["post_in"],
	}
	if schedule := strings.TrimSpace(in.Strings["schedule"]); schedule != "" {
		req.CronSchedule = &schedule
	}

	c, err := b.challenges.Create(ctx, in.GuildID, in.UserID, req)
	if err != nil {
		return reply{}, err
	}
	if c.IsTemplate {
		return text("🔁 Recurring challenge template #%d %q scheduled with `%s`.", c.ID, c.Title, *c.CronSchedule), nil
	}
	return text("✅ Challenge #%d has been posted in <#%s>.", c.ID, req.ChannelID), nil
}

func (b *Bot) closeChallenge(ctx context.Context, in commandInput) (reply, error) {
	id := uint(in.Ints["challenge"])
	if err := b.requireChallengeAdmin(ctx, in, id); err != nil {
		return reply{}, err
	}
	c, err := b.challenges.Close(ctx, id)
	if err != nil {
		return reply{}, err
	}
	if c.IsTemplate {
		return text("🛑 Recurring challenge #%d will no longer be posted.", c.ID), nil
	}
	return text("🔒 Challenge #%d is closed.", c.ID), nil
}

func (b *Bot) pickWinner(ctx context.Context, in commandInput) (reply, error) {
	id := uint(in.Ints["challenge"])
	if err := b.requireChallengeAdmin(ctx, in, id); err != nil {
		return reply{}, err
	}
	res, err := b.challenges.PickWinner(ctx, id, in.UserID, challengeDto.PickWinnerRequest{
		UserID:       in.Users["user"],
		BonusPoints:  int(in.Ints["bonus"]),
		Announcement: in.Strings["note"],
	})
	if err != nil {
		return reply{}, err
	}
	return text("🏆 <@%s> won challenge #%d and now has %d points.", res.UserID, res.ChallengeID, res.Balance), nil
}

func (b *Bot) deleteSubmission(ctx context.Context, in commandInput) (reply, error) {
	if err := b.requireAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	id := uint(in.Ints["submission"])
	sub, err := b.submissions.Get(ctx, id)
	if err != nil {
		return reply{}, err
	}
	if sub.GuildID != in.GuildID {
		return reply{}, apperror.ErrNotFound
	}
	if err := b.submissions.Delete(ctx, id); err != nil {
		return reply{}, err
	}
	return text("🗑️ Deleted submission #%d by <@%s> and recalculated their points.", id, sub.UserID), nil
}

func (b *Bot) setPoints(ctx context.Context, in commandInput) (reply, error) {
	if err := b.requireAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	var req settingsDto.UpdateSettingsRequest
	if v, ok := in.Ints["submission_points"]; ok {
		n := int(v)
		req.PointsPerSubmission = &n
	}
	if v, ok := in.Ints["vote_points"]; ok {
		n := int(v)
		req.PointsPerVote = &n
	}

	if req.Empty() {
		current, err := b.settings.Get(ctx, in.GuildID)
		if err != nil {
			return reply{}, err
		}
		return text("Provide at least one value. Currently submissions earn **%d** and votes earn **%d** points.",
			current.PointsPerSubmission, current.PointsPerVote), nil
	}

	updated, err := b.settings.Update(ctx, in.GuildID, req)
	if err != nil {
		return reply{}, err
	}
	return reply{Embed: &platform.Embed{
		Title: "✅ Point values updated",
		Color: colorGreen,
		Fields: []platform.Field{
			{Name: "Per submission", Value: fmt.Sprint(updated.PointsPerSubmission), Inline: true},
			{Name: "Per vote", Value: fmt.Sprint(updated.PointsPerVote), Inline: true},
		},
	}}, nil
}

func (b *Bot) setVoteEmoji(ctx context.Context, in commandInput) (reply, error) {
	if err := b.requireAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	emoji := in.Strings["emoji"]
	updated, err := b.settings.Update(ctx, in.GuildID, settingsDto.UpdateSettingsRequest{VoteEmoji: &emoji})
	if err != nil {
		return reply{}, err
	}
	return text("✅ Members now vote by reacting with %s.", displayEmoji(updated.VoteEmoji)), nil
}

// displayEmoji renders a stored name:id custom emoji as a mention.
func displayEmoji(emoji string) string {
	if strings.Contains(emoji, ":") {
		return "<:" + emoji + ">"
	}
	return emoji
}

func (b *Bot) addBadgeRole(ctx context.Context, in commandInput) (reply, error) {
	if err := b.requireAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	badge, err := b.badges.Add(ctx, in.GuildID, badgeDto.CreateBadgeRequest{
		RoleID:         in.Roles["role"],
		PointsRequired: int(in.Ints["points"]),
	})
	if err != nil {
		return reply{}, err
	}
	return text("🎖️ Badge #%d: members reaching %d points get <@&%s>.", badge.ID, badge.PointsRequired, badge.RoleID), nil
}

func (b *Bot) listBadgeRoles(ctx context.Context, in commandInput) (reply, error) {
	if err := b.requireAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	badges, err := b.badges.List(ctx, in.GuildID)
	if err != nil {
		return reply{}, err
	}
	if len(badges) == 0 {
		return text("No badge roles configured. Add one with `/add-badge-role`."), nil
	}

	var sb strings.Builder
	for _, badge := range badges {
		fmt.Fprintf(&sb, "`#%d` <@&%s> at **%d** points\n", badge.ID, badge.RoleID, badge.PointsRequired)
	}
	return reply{Embed: &platform.Embed{
		Title:       "🎖️ Badge roles",
		Description: sb.String(),
		Color:       colorGold,
	}}, nil
}

func (b *Bot) removeBadgeRole(ctx context.Context, in commandInput) (reply, error) {
	if err := b.requireAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	id := uint(in.Ints["badge"])
	if err := b.badges.Remove(ctx, in.GuildID, id); err != nil {
		return reply{}, err
	}
	return text("Badge #%d removed. Members who already hold the role keep it.", id), nil
}
