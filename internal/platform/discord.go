package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Platform over a discordgo session.
type Discord struct {
	session     *discordgo.Session
	timeout     time.Duration
	adminRoleID string
}

var _ Platform = (*Discord)(nil)

func NewDiscord(token string, timeout time.Duration, adminRoleID string) (*Discord, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildMembers

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Discord{session: s, timeout: timeout, adminRoleID: adminRoleID}, nil
}

func (d *Discord) Session() *discordgo.Session {
	return d.session
}

func (d *Discord) Open() error {
	return d.session.Open()
}

func (d *Discord) Close() error {
	return d.session.Close()
}

// call bounds every REST request so a slow platform never stalls a caller.
func (d *Discord) call(ctx context.Context) (discordgo.RequestOption, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	return discordgo.WithContext(ctx), cancel
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed Embed) (*Message, error) {
	opt, cancel := d.call(ctx)
	defer cancel()

	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{DiscordEmbed(embed)},
	}, opt)
	if err != nil {
		return nil, translate(err)
	}
	return &Message{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (d *Discord) EditEmbed(ctx context.Context, channelID, messageID string, embed Embed) error {
	opt, cancel := d.call(ctx)
	defer cancel()

	_, err := d.session.ChannelMessageEditEmbed(channelID, messageID, DiscordEmbed(embed), opt)
	return translate(err)
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	opt, cancel := d.call(ctx)
	defer cancel()

	return translate(d.session.ChannelMessageDelete(channelID, messageID, opt))
}

func (d *Discord) StartThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	opt, cancel := d.call(ctx)
	defer cancel()

	ch, err := d.session.MessageThreadStart(channelID, messageID, threadName(name), ThreadArchiveMinutes, opt)
	if err != nil {
		return "", translate(err)
	}
	return ch.ID, nil
}

// threadName cuts name to the platform's limit of 100 characters.
func threadName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxThreadName {
		return name
	}
	return string(runes[:maxThreadName])
}

func (d *Discord) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	opt, cancel := d.call(ctx)
	defer cancel()

	return translate(d.session.MessageReactionAdd(channelID, messageID, emoji, opt))
}

func (d *Discord) RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	opt, cancel := d.call(ctx)
	defer cancel()

	return translate(d.session.MessageReactionRemove(channelID, messageID, emoji, userID, opt))
}

func (d *Discord) SendDM(ctx context.Context, userID, content string) error {
	opt, cancel := d.call(ctx)
	defer cancel()

	ch, err := d.session.UserChannelCreate(userID, opt)
	if err != nil {
		return translate(err)
	}
	_, err = d.session.ChannelMessageSend(ch.ID, content, opt)
	return translate(err)
}

func (d *Discord) UserProfile(ctx context.Context, userID string) (*Profile, error) {
	opt, cancel := d.call(ctx)
	defer cancel()

	u, err := d.session.User(userID, opt)
	if err != nil {
		return nil, translate(err)
	}

	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return &Profile{UserID: u.ID, DisplayName: name, AvatarURL: u.AvatarURL("128")}, nil
}

func (d *Discord) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	opt, cancel := d.call(ctx)
	defer cancel()

	m, err := d.session.GuildMember(guildID, userID, opt)
	if err != nil {
		return nil, translate(err)
	}
	return m.Roles, nil
}

func (d *Discord) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	opt, cancel := d.call(ctx)
	defer cancel()

	return translate(d.session.GuildMemberRoleAdd(guildID, userID, roleID, opt))
}

// IsAdmin is true for the guild owner, holders of the configured admin role,
// and members with a role carrying Administrator or Manage Server.
func (d *Discord) IsAdmin(ctx context.Context, guildID, userID string) (bool, error) {
	opt, cancel := d.call(ctx)
	defer cancel()

	m, err := d.session.GuildMember(guildID, userID, opt)
	if err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return false, nil
		}
		return false, translate(err)
	}

	held := make(map[string]struct{}, len(m.Roles))
	for _, r := range m.Roles {
		if d.adminRoleID != "" && r == d.adminRoleID {
			return true, nil
		}
		held[r] = struct{}{}
	}

	g, err := d.session.Guild(guildID, opt)
	if err != nil {
		return false, translate(err)
	}
	if g.OwnerID == userID {
		return true, nil
	}

	return rolesGrantAdmin(g.Roles, held), nil
}

// rolesGrantAdmin reports whether any held role carries Administrator or Manage Server.
func rolesGrantAdmin(roles []*discordgo.Role, held map[string]struct{}) bool {
	const mask = discordgo.PermissionAdministrator | discordgo.PermissionManageServer
	for _, role := range roles {
		if _, ok := held[role.ID]; ok && role.Permissions&mask != 0 {
			return true
		}
	}
	return false
}

// DiscordEmbed converts an Embed to its discordgo form.
func DiscordEmbed(e Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if e.Thumbnail != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
