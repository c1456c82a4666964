package platform

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/challengebot/pkg/apperror"
)

// ErrNotFound means the entity is already gone on the chat platform.
var ErrNotFound = fmt.Errorf("platform entity not found: %w", apperror.ErrNotFound)

// ThreadArchiveMinutes is how long an idle companion thread stays open (one week).
const ThreadArchiveMinutes = 10080

const maxThreadName = 100

type Message struct {
	ChannelID string
	MessageID string
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Footer      string
	Thumbnail   string
	Fields      []Field
}

type Profile struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// Platform is the narrow set of chat operations the core needs.
type Platform interface {
	SendEmbed(ctx context.Context, channelID string, embed Embed) (*Message, error)
	EditEmbed(ctx context.Context, channelID, messageID string, embed Embed) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	StartThread(ctx context.Context, channelID, messageID, name string) (string, error)
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error
	SendDM(ctx context.Context, userID, content string) error
	UserProfile(ctx context.Context, userID string) (*Profile, error)
	MemberRoles(ctx context.Context, guildID, userID string) ([]string, error)
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	IsAdmin(ctx context.Context, guildID, userID string) (bool, error)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Nop is used when no bot token is configured. Reads return not-found, writes succeed silently.
type Nop struct{}

var _ Platform = Nop{}

func (Nop) SendEmbed(context.Context, string, Embed) (*Message, error) {
	return nil, ErrNotFound
}

func (Nop) EditEmbed(context.Context, string, string, Embed) error {
	return nil
}

func (Nop) DeleteMessage(context.Context, string, string) error {
	return nil
}

func (Nop) StartThread(context.Context, string, string, string) (string, error) {
	return "", ErrNotFound
}

func (Nop) AddReaction(context.Context, string, string, string) error {
	return nil
}

func (Nop) RemoveReaction(context.Context, string, string, string, string) error {
	return nil
}

func (Nop) SendDM(context.Context, string, string) error {
	return nil
}

func (Nop) UserProfile(context.Context, string) (*Profile, error) {
	return nil, ErrNotFound
}

func (Nop) MemberRoles(context.Context, string, string) ([]string, error) {
	return nil, ErrNotFound
}

func (Nop) GrantRole(context.Context, string, string, string) error {
	return nil
}

func (Nop) IsAdmin(context.Context, string, string) (bool, error) {
	return false, nil
}
