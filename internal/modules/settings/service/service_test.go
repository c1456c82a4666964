package service

import (
	"context"
	"errors"
	"testing"

	"anoa.com/challengebot/internal/entity"
	settingsDto "anoa.com/challengebot/internal/modules/settings/dto"
	"anoa.com/challengebot/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	stored  map[string]entity.GuildSettings
	columns []string
	err     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stored: map[string]entity.GuildSettings{}}
}

func (f *fakeRepo) FindByGuild(_ context.Context, guildID string) (*entity.GuildSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.stored[guildID]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return &s, nil
}

// Upsert mimics ON CONFLICT DO UPDATE of only the named columns.
func (f *fakeRepo) Upsert(_ context.Context, s *entity.GuildSettings, columns []string) error {
	f.columns = columns
	existing, ok := f.stored[s.GuildID]
	if !ok {
		f.stored[s.GuildID] = *s
		return nil
	}
	for _, c := range columns {
		switch c {
		case "points_per_submission":
			existing.PointsPerSubmission = s.PointsPerSubmission
		case "points_per_vote":
			existing.PointsPerVote = s.PointsPerVote
		case "vote_emoji":
			existing.VoteEmoji = s.VoteEmoji
		}
	}
	f.stored[s.GuildID] = existing
	return nil
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func TestGetDefaults(t *testing.T) {
	svc := NewSettingsService(newFakeRepo())

	s, err := svc.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.PointsPerSubmission)
	assert.Equal(t, 1, s.PointsPerVote)
	assert.Equal(t, "👍", s.VoteEmoji)
	assert.Equal(t, "g1", s.GuildID)
}

func TestGetPropagatesStorageError(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("connection reset")

	_, err := NewSettingsService(repo).Get(context.Background(), "g1")
	assert.EqualError(t, err, "connection reset")
}

func TestPartialUpdateKeepsOtherFields(t *testing.T) {
	repo := newFakeRepo()
	svc := NewSettingsService(repo)
	ctx := context.Background()

	_, err := svc.Update(ctx, "g1", settingsDto.UpdateSettingsRequest{PointsPerVote: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, []string{"points_per_vote"}, repo.columns)

	s, err := svc.Update(ctx, "g1", settingsDto.UpdateSettingsRequest{VoteEmoji: strPtr("⭐")})
	require.NoError(t, err)
	assert.Equal(t, []string{"vote_emoji"}, repo.columns)

	assert.Equal(t, 5, s.PointsPerVote)
	assert.Equal(t, 1, s.PointsPerSubmission)
	assert.Equal(t, "⭐", s.VoteEmoji)

	stored := repo.stored["g1"]
	assert.Equal(t, 5, stored.PointsPerVote)
	assert.Equal(t, "⭐", stored.VoteEmoji)
}

func TestUpdateZeroIsAllowed(t *testing.T) {
	svc := NewSettingsService(newFakeRepo())

	s, err := svc.Update(context.Background(), "g1", settingsDto.UpdateSettingsRequest{PointsPerSubmission: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, s.PointsPerSubmission)
}

func TestUpdateRejectsInvalid(t *testing.T) {
	repo := newFakeRepo()
	svc := NewSettingsService(repo)
	ctx := context.Background()

	_, err := svc.Update(ctx, "g1", settingsDto.UpdateSettingsRequest{PointsPerVote: intPtr(-1)})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.Update(ctx, "g1", settingsDto.UpdateSettingsRequest{VoteEmoji: strPtr("  ")})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	assert.Empty(t, repo.stored)
}

func TestEmptyUpdateIsNoop(t *testing.T) {
	repo := newFakeRepo()
	s, err := NewSettingsService(repo).Update(context.Background(), "g1", settingsDto.UpdateSettingsRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultSettings("g1"), s)
	assert.Nil(t, repo.columns)
}

func TestNormalizeEmoji(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "unicode", in: "🔥", want: "🔥"},
		{name: "unicode with variation selector", in: " ❤️ ", want: "❤️"},
		{name: "custom mention", in: "<:upvote:112233445566778899>", want: "upvote:112233445566778899"},
		{name: "animated mention", in: "<a:party_cat:112233445566778899>", want: "party_cat:112233445566778899"},
		{name: "already reaction form", in: "upvote:112233445566778899", want: "upvote:112233445566778899"},
		{name: "leading colon", in: ":upvote:112233445566778899", want: "upvote:112233445566778899"},
		{name: "shortcode cannot be resolved", in: ":thumbsup:", wantErr: true},
		{name: "mention without id", in: "<:upvote:>", wantErr: true},
		{name: "two emoji", in: "👍 👎", wantErr: true},
		{name: "blank", in: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEmoji(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateStoresCustomEmojiInReactionForm(t *testing.T) {
	repo := newFakeRepo()
	svc := NewSettingsService(repo)

	s, err := svc.Update(context.Background(), "g1", settingsDto.UpdateSettingsRequest{VoteEmoji: strPtr("<:upvote:112233445566778899>")})
	require.NoError(t, err)
	assert.Equal(t, "upvote:112233445566778899", s.VoteEmoji)
	assert.Equal(t, "upvote:112233445566778899", repo.stored["g1"].VoteEmoji)
}
