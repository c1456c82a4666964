package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anoa.com/challengebot/internal/entity"
	challengeDto "anoa.com/challengebot/internal/modules/challenge/dto"
	challengeRepo "anoa.com/challengebot/internal/modules/challenge/repository"
	pointsService "anoa.com/challengebot/internal/modules/points/service"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/logger"
	"anoa.com/challengebot/pkg/validator"
	"go.uber.org/zap"
)

// TemplateScheduler owns the in-memory cron jobs for recurring templates.
type TemplateScheduler interface {
	Schedule(tmpl entity.Challenge) bool
	Cancel(templateID uint)
}

// SubmissionIndex drops a deleted challenge's submissions from search.
type SubmissionIndex interface {
	RemoveChallenge(ctx context.Context, challengeID uint)
}

type ChallengeService interface {
	Create(ctx context.Context, guildID, creatorID string, req challengeDto.CreateChallengeRequest) (*entity.Challenge, error)
	Get(ctx context.Context, id uint) (*challengeDto.ChallengeDetail, error)
	ListActive(ctx context.Context, guildID string) ([]entity.Challenge, error)
	ListTemplates(ctx context.Context, guildID string) ([]entity.Challenge, error)
	// Close ends submissions for a concrete challenge. On a template it stops the schedule.
	Close(ctx context.Context, id uint) (*entity.Challenge, error)
	CancelTemplate(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint, reversePoints bool) ([]challengeRepo.Reversal, error)
	PickWinner(ctx context.Context, id uint, operatorID string, req challengeDto.PickWinnerRequest) (*challengeDto.WinnerResponse, error)
}

type challengeService struct {
	repo      challengeRepo.ChallengeRepository
	points    pointsService.PointsService
	platform  platform.Platform
	announcer *Announcer
	scheduler TemplateScheduler
	index     SubmissionIndex
	log       *zap.Logger
}

func NewChallengeService(
	repo challengeRepo.ChallengeRepository,
	points pointsService.PointsService,
	p platform.Platform,
	announcer *Announcer,
	scheduler TemplateScheduler,
	index SubmissionIndex,
) ChallengeService {
	return &challengeService{
		repo:      repo,
		points:    points,
		platform:  p,
		announcer: announcer,
		scheduler: scheduler,
		index:     index,
		log:       logger.WithComponent("challenges"),
	}
}

func (s *challengeService) Create(ctx context.Context, guildID, creatorID string, req challengeDto.CreateChallengeRequest) (*entity.Challenge, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || strings.TrimSpace(req.Type) == "" {
		return nil, fmt.Errorf("title and type are required: %w", apperror.ErrInvalidInput)
	}
	channelID := req.ChannelID

	c := &entity.Challenge{
		GuildID:     guildID,
		Title:       title,
		Description: req.Description,
		Type:        strings.TrimSpace(req.Type),
		CreatedBy:   creatorID,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		ChannelID:   &channelID,
		IsActive:    true,
	}

	if req.CronSchedule != nil && strings.TrimSpace(*req.CronSchedule) != "" {
		expr := strings.TrimSpace(*req.CronSchedule)
		if !validator.IsValidCron(expr) {
			return nil, fmt.Errorf("%q: %w", expr, apperror.ErrInvalidCron)
		}
		c.IsTemplate = true
		c.CronSchedule = &expr

		if err := s.repo.Create(ctx, c); err != nil {
			return nil, err
		}
		if s.scheduler != nil {
			s.scheduler.Schedule(*c)
		}
		s.log.Info("recurring challenge created",
			zap.Uint("template_id", c.ID),
			zap.String("guild_id", guildID),
			zap.String("cron", expr),
		)
		return c, nil
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.announcer.Announce(ctx, c)
	return c, nil
}

func (s *challengeService) Get(ctx context.Context, id uint) (*challengeDto.ChallengeDetail, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.CountSubmissions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &challengeDto.ChallengeDetail{Challenge: *c, SubmissionCount: n}, nil
}

func (s *challengeService) ListActive(ctx context.Context, guildID string) ([]entity.Challenge, error) {
	return s.repo.ListActive(ctx, guildID)
}

func (s *challengeService) ListTemplates(ctx context.Context, guildID string) ([]entity.Challenge, error) {
	return s.repo.ListTemplates(ctx, guildID)
}

func (s *challengeService) Close(ctx context.Context, id uint) (*entity.Challenge, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsTemplate {
		if err := s.CancelTemplate(ctx, id); err != nil {
			return nil, err
		}
		c.IsActive = false
		return c, nil
	}
	if !c.IsActive {
		return nil, apperror.ErrAlreadyClosed
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return nil, err
	}
	c.IsActive = false

	if c.ChannelID != nil && c.MessageID != nil {
		embed := ChallengeEmbed(c)
		embed.Color = colorGrey
		embed.Fields = append(embed.Fields, platform.Field{Name: "Status", Value: "Closed"})
		if err := s.platform.EditEmbed(ctx, *c.ChannelID, *c.MessageID, embed); err != nil && !platform.IsNotFound(err) {
			s.log.Warn("failed to mark announcement closed", zap.Uint("challenge_id", id), zap.Error(err))
		}
	}

	s.log.Info("challenge closed", zap.Uint("challenge_id", id), zap.String("guild_id", c.GuildID))
	return c, nil
}

func (s *challengeService) CancelTemplate(ctx context.Context, id uint) error {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsTemplate {
		return fmt.Errorf("challenge %d is not a recurring template: %w", id, apperror.ErrInvalidInput)
	}

	// stop the timer first so no fire can slip in after the row is inactive
	if s.scheduler != nil {
		s.scheduler.Cancel(id)
	}
	if !c.IsActive {
		return apperror.ErrAlreadyClosed
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}

	s.log.Info("recurring challenge cancelled", zap.Uint("template_id", id), zap.String("guild_id", c.GuildID))
	return nil
}

func (s *challengeService) Delete(ctx context.Context, id uint, reversePoints bool) ([]challengeRepo.Reversal, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsTemplate && s.scheduler != nil {
		s.scheduler.Cancel(id)
	}

	reversals, err := s.repo.Delete(ctx, id, reversePoints)
	if err != nil {
		return nil, err
	}

	for _, r := range reversals {
		if r.Amount == 0 {
			continue
		}
		s.points.AfterCommit(ctx, pointsService.BalanceChange{
			GuildID: r.GuildID,
			UserID:  r.UserID,
			Amount:  -r.Amount,
			Balance: r.Balance,
		})
	}

	if c.ChannelID != nil && c.MessageID != nil {
		if err := s.platform.DeleteMessage(ctx, *c.ChannelID, *c.MessageID); err != nil && !platform.IsNotFound(err) {
			s.log.Warn("failed to delete challenge announcement", zap.Uint("challenge_id", id), zap.Error(err))
		}
	}
	if s.index != nil {
		s.index.RemoveChallenge(ctx, id)
	}

	s.log.Info("challenge deleted",
		zap.Uint("challenge_id", id),
		zap.String("guild_id", c.GuildID),
		zap.Bool("reverse_points", reversePoints),
		zap.Int("members_reversed", len(reversals)),
	)
	return reversals, nil
}

func (s *challengeService) PickWinner(ctx context.Context, id uint, operatorID string, req challengeDto.PickWinnerRequest) (*challengeDto.WinnerResponse, error) {
	if req.BonusPoints < 1 {
		return nil, fmt.Errorf("bonus points must be at least 1: %w", apperror.ErrInvalidInput)
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsTemplate {
		return nil, fmt.Errorf("recurring templates have no winners: %w", apperror.ErrInvalidInput)
	}

	balance, err := s.points.ApplyDelta(ctx, pointsService.DeltaInput{
		GuildID:    c.GuildID,
		UserID:     req.UserID,
		Amount:     req.BonusPoints,
		Reason:     entity.ReasonWinnerBonus,
		RelatedID:  entity.ChallengeRef(id),
		OperatorID: &operatorID,
	})
	if err != nil {
		return nil, err
	}

	s.announceWinner(ctx, c, req)

	if c.IsActive {
		if err := s.repo.Deactivate(ctx, id); err != nil && !errors.Is(err, apperror.ErrAlreadyClosed) {
			s.log.Warn("failed to close challenge after winner", zap.Uint("challenge_id", id), zap.Error(err))
		}
	}

	return &challengeDto.WinnerResponse{ChallengeID: id, UserID: req.UserID, Balance: balance}, nil
}

func (s *challengeService) announceWinner(ctx context.Context, c *entity.Challenge, req challengeDto.PickWinnerRequest) {
	log := s.log.With(zap.Uint("challenge_id", c.ID), zap.String("winner_id", req.UserID))
	mention := "<@" + req.UserID + ">"

	if c.ThreadID != nil {
		embed := platform.Embed{
			Title:       fmt.Sprintf("🏆 Winner Announced for Challenge #%d!", c.ID),
			Description: fmt.Sprintf("A huge congratulations to %s for winning the **%s** challenge!", mention, c.Title),
			Color:       colorGold,
			Fields: []platform.Field{
				{Name: "Bonus Points Awarded", Value: fmt.Sprintf("**%d** points", req.BonusPoints), Inline: true},
			},
		}
		if req.Announcement != "" {
			embed.Fields = append(embed.Fields, platform.Field{Name: "A special note from the admins", Value: req.Announcement})
		}
		if _, err := s.platform.SendEmbed(ctx, *c.ThreadID, embed); err != nil {
			log.Warn("failed to announce winner in thread", zap.Error(err))
		}
	}

	if c.ChannelID != nil && c.MessageID != nil {
		embed := ChallengeEmbed(c)
		embed.Color = colorGold
		embed.Fields = append(embed.Fields, platform.Field{Name: "🏆 Winner", Value: mention})
		if err := s.platform.EditEmbed(ctx, *c.ChannelID, *c.MessageID, embed); err != nil && !platform.IsNotFound(err) {
			log.Warn("failed to add winner to announcement", zap.Error(err))
		}
	}
}
