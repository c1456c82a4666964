package service

import (
	"context"
	"fmt"

	"anoa.com/challengebot/internal/entity"
	badgeDto "anoa.com/challengebot/internal/modules/badge/dto"
	badgeRepo "anoa.com/challengebot/internal/modules/badge/repository"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/logger"
	"go.uber.org/zap"
)

type BadgeService interface {
	Add(ctx context.Context, guildID string, req badgeDto.CreateBadgeRequest) (*entity.BadgeRole, error)
	List(ctx context.Context, guildID string) ([]entity.BadgeRole, error)
	Remove(ctx context.Context, guildID string, id uint) error
	// Evaluate grants every threshold role the balance has reached. Roles are
	// never revoked. Failures are logged, never returned.
	Evaluate(ctx context.Context, guildID, userID string, balance int)
}

type badgeService struct {
	repo     badgeRepo.BadgeRepository
	platform platform.Platform
	log      *zap.Logger
}

func NewBadgeService(repo badgeRepo.BadgeRepository, p platform.Platform) BadgeService {
	return &badgeService{
		repo:     repo,
		platform: p,
		log:      logger.WithComponent("badges"),
	}
}

func (s *badgeService) Add(ctx context.Context, guildID string, req badgeDto.CreateBadgeRequest) (*entity.BadgeRole, error) {
	if req.PointsRequired < 0 {
		return nil, fmt.Errorf("points required must be >= 0: %w", apperror.ErrInvalidInput)
	}
	badge := &entity.BadgeRole{
		GuildID:        guildID,
		RoleID:         req.RoleID,
		PointsRequired: req.PointsRequired,
	}
	if err := s.repo.Create(ctx, badge); err != nil {
		return nil, err
	}
	return badge, nil
}

func (s *badgeService) List(ctx context.Context, guildID string) ([]entity.BadgeRole, error) {
	return s.repo.ListByGuild(ctx, guildID)
}

func (s *badgeService) Remove(ctx context.Context, guildID string, id uint) error {
	return s.repo.Delete(ctx, guildID, id)
}

func (s *badgeService) Evaluate(ctx context.Context, guildID, userID string, balance int) {
	log := s.log.With(zap.String("guild_id", guildID), zap.String("user_id", userID))

	badges, err := s.repo.ListByGuild(ctx, guildID)
	if err != nil {
		log.Error("failed to load badge thresholds", zap.Error(err))
		return
	}

	var earned []entity.BadgeRole
	for _, b := range badges {
		// ascending, so the first miss ends the scan
		if b.PointsRequired > balance {
			break
		}
		earned = append(earned, b)
	}
	if len(earned) == 0 {
		return
	}

	roles, err := s.platform.MemberRoles(ctx, guildID, userID)
	if err != nil {
		if platform.IsNotFound(err) {
			log.Debug("member no longer in guild, skipping badges")
			return
		}
		log.Warn("failed to fetch member roles", zap.Error(err))
		return
	}
	held := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		held[r] = struct{}{}
	}

	for _, b := range earned {
		if _, ok := held[b.RoleID]; ok {
			continue
		}
		if err := s.platform.GrantRole(ctx, guildID, userID, b.RoleID); err != nil {
			log.Warn("failed to grant badge role",
				zap.String("role_id", b.RoleID),
				zap.Int("points_required", b.PointsRequired),
				zap.Error(err),
			)
			continue
		}
		log.Info("badge granted", zap.String("role_id", b.RoleID), zap.Int("balance", balance))
	}
}
