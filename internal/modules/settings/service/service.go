package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"anoa.com/challengebot/internal/entity"
	settingsDto "anoa.com/challengebot/internal/modules/settings/dto"
	settingsRepo "anoa.com/challengebot/internal/modules/settings/repository"
	"anoa.com/challengebot/pkg/apperror"
)

type SettingsService interface {
	Get(ctx context.Context, guildID string) (entity.GuildSettings, error)
	Update(ctx context.Context, guildID string, req settingsDto.UpdateSettingsRequest) (entity.GuildSettings, error)
}

type settingsService struct {
	repo settingsRepo.SettingsRepository
}

func NewSettingsService(repo settingsRepo.SettingsRepository) SettingsService {
	return &settingsService{repo: repo}
}

// Get returns stored settings, or the defaults when the guild has none.
func (s *settingsService) Get(ctx context.Context, guildID string) (entity.GuildSettings, error) {
	stored, err := s.repo.FindByGuild(ctx, guildID)
	if errors.Is(err, apperror.ErrNotFound) {
		return entity.DefaultSettings(guildID), nil
	}
	if err != nil {
		return entity.GuildSettings{}, err
	}
	if stored.VoteEmoji == "" {
		stored.VoteEmoji = entity.DefaultVoteEmoji
	}
	return *stored, nil
}

func (s *settingsService) Update(ctx context.Context, guildID string, req settingsDto.UpdateSettingsRequest) (entity.GuildSettings, error) {
	current, err := s.Get(ctx, guildID)
	if err != nil {
		return entity.GuildSettings{}, err
	}
	if req.Empty() {
		return current, nil
	}

	var columns []string
	if req.PointsPerSubmission != nil {
		if *req.PointsPerSubmission < 0 {
			return entity.GuildSettings{}, fmt.Errorf("points per submission must be >= 0: %w", apperror.ErrInvalidInput)
		}
		current.PointsPerSubmission = *req.PointsPerSubmission
		columns = append(columns, "points_per_submission")
	}
	if req.PointsPerVote != nil {
		if *req.PointsPerVote < 0 {
			return entity.GuildSettings{}, fmt.Errorf("points per vote must be >= 0: %w", apperror.ErrInvalidInput)
		}
		current.PointsPerVote = *req.PointsPerVote
		columns = append(columns, "points_per_vote")
	}
	if req.VoteEmoji != nil {
		emoji, err := NormalizeEmoji(*req.VoteEmoji)
		if err != nil {
			return entity.GuildSettings{}, err
		}
		current.VoteEmoji = emoji
		columns = append(columns, "vote_emoji")
	}

	if err := s.repo.Upsert(ctx, &current, columns); err != nil {
		return entity.GuildSettings{}, err
	}
	return current, nil
}

var (
	customEmojiMention = regexp.MustCompile(`^<a?:(\w{2,32}):(\d{15,21})>$`)
	customEmojiName    = regexp.MustCompile(`^:?(\w{2,32}):(\d{15,21})$`)
)

// NormalizeEmoji returns emoji in the form reaction events report it: the
// unicode character itself, or name:id for a custom emoji. Mentions such as
// <:name:id> and <a:name:id> are accepted and reduced to name:id.
func NormalizeEmoji(raw string) (string, error) {
	emoji := strings.TrimSpace(raw)
	if emoji == "" {
		return "", fmt.Errorf("vote emoji is required: %w", apperror.ErrInvalidInput)
	}
	if m := customEmojiMention.FindStringSubmatch(emoji); m != nil {
		return m[1] + ":" + m[2], nil
	}
	if m := customEmojiName.FindStringSubmatch(emoji); m != nil {
		return m[1] + ":" + m[2], nil
	}
	if strings.ContainsAny(emoji, "<>: \t") {
		return "", fmt.Errorf("%q is not a unicode emoji or a custom emoji: %w", emoji, apperror.ErrInvalidInput)
	}
	return emoji, nil
}
