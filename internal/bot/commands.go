package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"anoa.com/challengebot/internal/entity"
	pointsService "anoa.com/challengebot/internal/modules/points/service"
	submissionDto "anoa.com/challengebot/internal/modules/submission/dto"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/pkg/apperror"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorBlurple = 0x5865F2
	colorGold    = 0xF1C40F
	colorGreen   = 0x57F287

	leaderboardSize = 10
	snippetLength   = 50

	// embeds carry at most 25 fields
	maxEmbedFields = 25
)

var (
	minBonus  = 1.0
	minID     = 1.0
	minPoints = 0.0

	adminOnly = int64(discordgo.PermissionManageServer)
)

// Commands is the slash command set registered with the platform. Commands
// carrying DefaultMemberPermissions are admin commands; the permission is
// checked again on every invocation.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "help",
		Description: "List the commands you can use",
	},
	{
		Name:        "leaderboard",
		Description: "Show the top members",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "period",
			Description: "Time window",
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Weekly", Value: string(pointsService.PeriodWeekly)},
				{Name: "Monthly", Value: string(pointsService.PeriodMonthly)},
				{Name: "All time", Value: string(pointsService.PeriodAllTime)},
			},
		}},
	},
	{
		Name:        "profile",
		Description: "Show points, rank and recent submissions",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Member to look up (admin only, defaults to you)",
		}},
	},
	{
		Name:        "list-challenges",
		Description: "Show the active challenges in this server",
	},
	{
		Name:        "submit",
		Description: "Submit an entry to a challenge",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "challenge", Description: "Challenge ID", Required: true, MinValue: &minID},
			{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "Notes about your entry"},
			{Type: discordgo.ApplicationCommandOptionAttachment, Name: "attachment", Description: "File or image"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "link", Description: "Link to your work"},
		},
	},
	{
		Name:        "edit-submission",
		Description: "Edit one of your submissions",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "submission", Description: "Submission ID", Required: true, MinValue: &minID},
			{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "New notes"},
			{Type: discordgo.ApplicationCommandOptionAttachment, Name: "attachment", Description: "New file or image"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "link", Description: "New link"},
		},
	},
	{
		Name:                     "create-challenge",
		Description:              "Create a one-time or recurring challenge (admin)",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Challenge title", Required: true, MaxLength: 200},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "What to make", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "type", Description: "Category, e.g. Writing or Design", Required: true, MaxLength: 50},
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "post_in",
				Description:  "Channel the challenge is posted in",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
			{Type: discordgo.ApplicationCommandOptionString, Name: "schedule", Description: "Cron schedule for a recurring challenge, e.g. 0 10 * * 1"},
		},
	},
	{
		Name:                     "close-challenge",
		Description:              "Stop accepting submissions (admin)",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "challenge", Description: "Challenge ID", Required: true, MinValue: &minID},
		},
	},
	{
		Name:                     "pick-winner",
		Description:              "Award a winner bonus (admin)",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "challenge", Description: "Challenge ID", Required: true, MinValue: &minID},
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Winner", Required: true},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "bonus", Description: "Bonus points", Required: true, MinValue: &minBonus},
			{Type: discordgo.ApplicationCommandOptionString, Name: "note", Description: "Announcement text"},
		},
	},
	{
		Name:                     "delete-submission",
		Description:              "Delete a submission and recalculate its author's points (admin)",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "submission", Description: "Submission ID", Required: true, MinValue: &minID},
		},
	},
	{
		Name:                     "set-points",
		Description:              "Set the points awarded for submissions and votes (admin)",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "submission_points", Description: "Points per submission", MinValue: &minPoints},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "vote_points", Description: "Points per vote", MinValue: &minPoints},
		},
	},
	{
		Name:                     "set-vote-emoji",
		Description:              "Set the emoji members react with to vote (admin)",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "A unicode emoji or a custom server emoji", Required: true},
		},
	},
	{
		Name:                     "add-badge-role",
		Description:              "Grant a role automatically at a points threshold (admin)",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to grant", Required: true},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "points", Description: "Points required", Required: true, MinValue: &minPoints},
		},
	},
	{
		Name:                     "list-badge-roles",
		Description:              "Show the configured badge roles (admin)",
		DefaultMemberPermissions: &adminOnly,
	},
	{
		Name:                     "remove-badge-role",
		Description:              "Stop granting a badge role (admin)",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "badge", Description: "Badge ID from /list-badge-roles", Required: true, MinValue: &minID},
		},
	},
}

// commandInput is an interaction flattened to what the handlers read.
type commandInput struct {
	Name       string
	GuildID    string
	UserID     string
	Username   string
	Strings    map[string]string
	Ints       map[string]int64
	Users      map[string]string
	Channels   map[string]string
	Roles      map[string]string
	Attachment *discordgo.MessageAttachment
}

type reply struct {
	Content string
	Embed   *platform.Embed
}

func text(format string, args ...interface{}) reply {
	return reply{Content: fmt.Sprintf(format, args...)}
}

func (b *Bot) runCommand(ctx context.Context, in commandInput) (reply, error) {
	if in.GuildID == "" {
		return text("This command only works inside a server."), nil
	}
	switch in.Name {
	case "help":
		return b.help(ctx, in)
	case "leaderboard":
		return b.leaderboard(ctx, in)
	case "profile":
		return b.profile(ctx, in)
	case "list-challenges":
		return b.listChallenges(ctx, in)
	case "submit":
		return b.submit(ctx, in)
	case "edit-submission":
		return b.editSubmission(ctx, in)
	case "create-challenge":
		return b.createChallenge(ctx, in)
	case "close-challenge":
		return b.closeChallenge(ctx, in)
	case "pick-winner":
		return b.pickWinner(ctx, in)
	case "delete-submission":
		return b.deleteSubmission(ctx, in)
	case "set-points":
		return b.setPoints(ctx, in)
	case "set-vote-emoji":
		return b.setVoteEmoji(ctx, in)
	case "add-badge-role":
		return b.addBadgeRole(ctx, in)
	case "list-badge-roles":
		return b.listBadgeRoles(ctx, in)
	case "remove-badge-role":
		return b.removeBadgeRole(ctx, in)
	default:
		return reply{}, fmt.Errorf("unknown command %q: %w", in.Name, apperror.ErrInvalidInput)
	}
}

func (b *Bot) help(ctx context.Context, in commandInput) (reply, error) {
	admin, err := b.platform.IsAdmin(ctx, in.GuildID, in.UserID)
	if err != nil {
		return reply{}, err
	}

	var member, adminCmds []string
	for _, cmd := range Commands {
		if cmd.Name == "help" {
			continue
		}
		line := fmt.Sprintf("`/%s` %s", cmd.Name, cmd.Description)
		if cmd.DefaultMemberPermissions != nil {
			adminCmds = append(adminCmds, line)
		} else {
			member = append(member, line)
		}
	}

	embed := &platform.Embed{
		Title:       "🤖 Bot Commands",
		Description: "Here is a list of commands you can use.",
		Color:       colorBlurple,
		Fields:      []platform.Field{{Name: "👤 Member commands", Value: strings.Join(member, "\n")}},
	}
	if admin {
		embed.Fields = append(embed.Fields, platform.Field{Name: "👑 Admin commands", Value: strings.Join(adminCmds, "\n")})
	}
	return reply{Embed: embed}, nil
}

func (b *Bot) leaderboard(ctx context.Context, in commandInput) (reply, error) {
	period := pointsService.ParsePeriod(in.Strings["period"])
	entries, err := b.points.GetLeaderboard(ctx, in.GuildID, leaderboardSize, period)
	if err != nil {
		return reply{}, err
	}
	if len(entries) == 0 {
		return text("No points yet. Submit to a challenge to get started!"), nil
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "**%d.** <@%s> - %d pts\n", e.Position, e.UserID, e.Points)
	}
	return reply{Embed: &platform.Embed{
		Title:       fmt.Sprintf("🏆 Leaderboard (%s)", period),
		Description: sb.String(),
		Color:       colorGold,
	}}, nil
}

// profile shows the caller's own profile. Looking up another member needs admin.
func (b *Bot) profile(ctx context.Context, in commandInput) (reply, error) {
	target := in.UserID
	if u := in.Users["user"]; u != "" && u != in.UserID {
		if err := b.requireAdmin(ctx, in); err != nil {
			return reply{}, fmt.Errorf("viewing another member's profile: %w", err)
		}
		target = u
	}

	p, err := b.points.Profile(ctx, in.GuildID, target)
	if err != nil {
		return reply{}, err
	}

	title := "Challenge profile"
	var avatar string
	if who, err := b.platform.UserProfile(ctx, target); err == nil {
		title = who.DisplayName + "'s challenge profile"
		avatar = who.AvatarURL
	} else {
		b.log.Debug("profile lookup failed", zap.String("user_id", target), zap.Error(err))
	}

	rank := "Unranked"
	if p.Rank != nil {
		rank = fmt.Sprintf("#%d of %d", p.Rank.Rank, p.Rank.Total)
	}
	return reply{Embed: &platform.Embed{
		Title:       title,
		Description: fmt.Sprintf("<@%s>", target),
		Color:       colorBlurple,
		Thumbnail:   avatar,
		Fields: []platform.Field{
			{Name: "Points", Value: fmt.Sprint(p.Points), Inline: true},
			{Name: "Rank", Value: rank, Inline: true},
			{Name: "This week", Value: fmt.Sprint(p.WeeklyPoints), Inline: true},
			{Name: "Last 30 days", Value: fmt.Sprint(p.MonthlyPoints), Inline: true},
			{Name: "📝 Recent submissions", Value: submissionLinks(in.GuildID, p.RecentSubmissions)},
		},
	}}, nil
}

func submissionLinks(guildID string, subs []entity.Submission) string {
	if len(subs) == 0 {
		return "No submissions found."
	}
	lines := make([]string, 0, len(subs))
	for _, s := range subs {
		label := "Attachment/Link submission"
		if s.ContentText != nil && *s.ContentText != "" {
			label = snippet(*s.ContentText)
		}
		line := fmt.Sprintf("Challenge #%d: %s", s.ChallengeID, label)
		if s.ChannelID != nil && s.MessageID != nil {
			line = fmt.Sprintf("[%s](https://discord.com/channels/%s/%s/%s)", line, guildID, *s.ChannelID, *s.MessageID)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= snippetLength {
		return s
	}
	return string([]rune(s)[:snippetLength-3]) + "..."
}

func (b *Bot) listChallenges(ctx context.Context, in commandInput) (reply, error) {
	challenges, err := b.challenges.ListActive(ctx, in.GuildID)
	if err != nil {
		return reply{}, err
	}
	if len(challenges) == 0 {
		return text("🤔 There are no active challenges. An admin can create one with `/create-challenge`."), nil
	}

	embed := &platform.Embed{
		Title:       "🏆 Active Challenges",
		Description: "Use `/submit` to take part!",
		Color:       colorBlurple,
	}
	for _, c := range challenges {
		if len(embed.Fields) == maxEmbedFields {
			break
		}
		embed.Fields = append(embed.Fields, platform.Field{
			Name:  fmt.Sprintf("🏁 #%d: %s", c.ID, c.Title),
			Value: fmt.Sprintf("%s\n**Type:** %s\n**Submit with:** `/submit challenge:%d`", snippet(c.Description), c.Type, c.ID),
		})
	}
	return reply{Embed: embed}, nil
}

func (b *Bot) submit(ctx context.Context, in commandInput) (reply, error) {
	input := submissionDto.SubmitInput{
		GuildID:     in.GuildID,
		ChallengeID: uint(in.Ints["challenge"]),
		UserID:      in.UserID,
		Username:    in.Username,
		Text:        in.Strings["text"],
		LinkURL:     in.Strings["link"],
	}
	if a := in.Attachment; a != nil {
		input.AttachmentURL = a.URL
		input.ImageAttachment = strings.HasPrefix(a.ContentType, "image/")
	}

	sub, err := b.submissions.Submit(ctx, input)
	if err != nil {
		return reply{}, err
	}
	return text("✅ Submission #%d recorded for challenge #%d.", sub.ID, sub.ChallengeID), nil
}

func (b *Bot) editSubmission(ctx context.Context, in commandInput) (reply, error) {
	var req submissionDto.EditSubmissionRequest
	if v, ok := in.Strings["text"]; ok {
		req.ContentText = &v
	}
	if v, ok := in.Strings["link"]; ok {
		req.LinkURL = &v
	}
	if in.Attachment != nil {
		req.AttachmentURL = &in.Attachment.URL
	}
	if req.Empty() {
		return text("Provide at least one new value to edit."), nil
	}

	id := uint(in.Ints["submission"])
	sub, err := b.submissions.Edit(ctx, id, in.UserID, req)
	if errors.Is(err, apperror.ErrForbidden) {
		return text("You can only edit your own submissions."), nil
	}
	if err != nil {
		return reply{}, err
	}
	return text("✏️ Submission #%d updated.", sub.ID), nil
}

// userMessage turns a command error into what the invoking member sees.
func (b *Bot) userMessage(in commandInput, err error) string {
	switch {
	case errors.Is(err, apperror.ErrForbidden):
		return "You need the Manage Server permission for this."
	case errors.Is(err, apperror.ErrNotFound):
		return "Nothing with that ID exists in this server."
	case errors.Is(err, apperror.ErrChallengeClosed):
		return "That challenge is not accepting submissions."
	case errors.Is(err, apperror.ErrAlreadyClosed):
		return "That challenge is already closed."
	case errors.Is(err, apperror.ErrEmptySubmission):
		return "Add some text, an attachment or a link."
	case errors.Is(err, apperror.ErrDuplicateBadge):
		return "That role already has a badge threshold."
	case errors.Is(err, apperror.ErrInvalidInput), errors.Is(err, apperror.ErrConflict):
		return err.Error()
	}
	b.log.Error("command failed",
		zap.String("command", in.Name),
		zap.String("guild_id", in.GuildID),
		zap.String("user_id", in.UserID),
		zap.Error(err),
	)
	return "Something went wrong, please try again later."
}
