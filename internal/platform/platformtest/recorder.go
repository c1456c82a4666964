// Package platformtest provides an in-memory Platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"anoa.com/challengebot/internal/platform"
)

type Sent struct {
	ChannelID string
	MessageID string
	Embed     *platform.Embed
}

type Reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
	UserID    string
}

// Recorder records every call. Set Fail to make a named method return an error.
type Recorder struct {
	mu sync.Mutex

	Sent       []Sent
	Edited     []Sent
	Deleted    []string
	Threads    []string
	Added      []Reaction
	Removed    []Reaction
	DMs        map[string][]string
	Granted    []string
	Roles      map[string][]string
	Admins     map[string]bool
	Fail       map[string]error
	nextID     int
	nextThread int
}

var _ platform.Platform = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{
		DMs:    map[string][]string{},
		Roles:  map[string][]string{},
		Admins: map[string]bool{},
		Fail:   map[string]error{},
	}
}

func (r *Recorder) fail(method string) error {
	return r.Fail[method]
}

func (r *Recorder) SendEmbed(_ context.Context, channelID string, embed platform.Embed) (*platform.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("SendEmbed"); err != nil {
		return nil, err
	}
	r.nextID++
	msg := &platform.Message{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", r.nextID)}
	r.Sent = append(r.Sent, Sent{ChannelID: channelID, MessageID: msg.MessageID, Embed: &embed})
	return msg, nil
}

func (r *Recorder) EditEmbed(_ context.Context, channelID, messageID string, embed platform.Embed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("EditEmbed"); err != nil {
		return err
	}
	r.Edited = append(r.Edited, Sent{ChannelID: channelID, MessageID: messageID, Embed: &embed})
	return nil
}

func (r *Recorder) DeleteMessage(_ context.Context, channelID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("DeleteMessage"); err != nil {
		return err
	}
	r.Deleted = append(r.Deleted, channelID+"/"+messageID)
	return nil
}

func (r *Recorder) StartThread(_ context.Context, _, _, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("StartThread"); err != nil {
		return "", err
	}
	r.nextThread++
	r.Threads = append(r.Threads, name)
	return fmt.Sprintf("t%d", r.nextThread), nil
}

func (r *Recorder) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("AddReaction"); err != nil {
		return err
	}
	r.Added = append(r.Added, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (r *Recorder) RemoveReaction(_ context.Context, channelID, messageID, emoji, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("RemoveReaction"); err != nil {
		return err
	}
	r.Removed = append(r.Removed, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji, UserID: userID})
	return nil
}

func (r *Recorder) SendDM(_ context.Context, userID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("SendDM"); err != nil {
		return err
	}
	r.DMs[userID] = append(r.DMs[userID], content)
	return nil
}

func (r *Recorder) UserProfile(_ context.Context, userID string) (*platform.Profile, error) {
	if err := r.fail("UserProfile"); err != nil {
		return nil, err
	}
	return &platform.Profile{UserID: userID, DisplayName: "user-" + userID, AvatarURL: "https://cdn.test/avatars/" + userID + ".png"}, nil
}

func (r *Recorder) MemberRoles(_ context.Context, guildID, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("MemberRoles"); err != nil {
		return nil, err
	}
	return r.Roles[guildID+"/"+userID], nil
}

func (r *Recorder) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GrantRole"); err != nil {
		return err
	}
	key := guildID + "/" + userID
	r.Roles[key] = append(r.Roles[key], roleID)
	r.Granted = append(r.Granted, roleID)
	return nil
}

func (r *Recorder) IsAdmin(_ context.Context, guildID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("IsAdmin"); err != nil {
		return false, err
	}
	return r.Admins[guildID+"/"+userID], nil
}
