package service

import (
	"context"
	"fmt"
	"strings"

	"anoa.com/challengebot/internal/entity"
	challengeRepo "anoa.com/challengebot/internal/modules/challenge/repository"
	pointsService "anoa.com/challengebot/internal/modules/points/service"
	settingsService "anoa.com/challengebot/internal/modules/settings/service"
	submissionDto "anoa.com/challengebot/internal/modules/submission/dto"
	submissionRepo "anoa.com/challengebot/internal/modules/submission/repository"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/logger"
	"anoa.com/challengebot/pkg/sanitize"
	"go.uber.org/zap"
)

const colorGreen = 0x57F287

const selfVoteNotice = "You cannot vote for your own submission."

// Indexer mirrors submissions into search.
type Indexer interface {
	IndexSubmission(ctx context.Context, sub *entity.Submission)
	DeleteSubmission(ctx context.Context, id uint)
}

type SubmissionService interface {
	Submit(ctx context.Context, in submissionDto.SubmitInput) (*entity.Submission, error)
	Get(ctx context.Context, id uint) (*entity.Submission, error)
	ListByChallenge(ctx context.Context, challengeID uint) ([]entity.Submission, error)
	Edit(ctx context.Context, id uint, actorID string, req submissionDto.EditSubmissionRequest) (*entity.Submission, error)
	Delete(ctx context.Context, id uint) error
	// CastVote toggles voterID's vote on the submission.
	CastVote(ctx context.Context, submissionID uint, voterID string) (*submissionDto.VoteResult, error)
	// SetVoteByMessage converges a vote from a reaction event. Replayed events are no-ops.
	SetVoteByMessage(ctx context.Context, guildID, messageID, voterID string, want bool) (*submissionDto.VoteResult, error)
}

type submissionService struct {
	repo       submissionRepo.SubmissionRepository
	challenges challengeRepo.ChallengeRepository
	settings   settingsService.SettingsService
	points     pointsService.PointsService
	platform   platform.Platform
	index      Indexer
	log        *zap.Logger
}

func NewSubmissionService(
	repo submissionRepo.SubmissionRepository,
	challenges challengeRepo.ChallengeRepository,
	settings settingsService.SettingsService,
	points pointsService.PointsService,
	p platform.Platform,
	index Indexer,
) SubmissionService {
	return &submissionService{
		repo:       repo,
		challenges: challenges,
		settings:   settings,
		points:     points,
		platform:   p,
		index:      index,
		log:        logger.WithComponent("submissions"),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *submissionService) Submit(ctx context.Context, in submissionDto.SubmitInput) (*entity.Submission, error) {
	text := sanitize.Text(in.Text)
	link := strings.TrimSpace(in.LinkURL)
	attachment := strings.TrimSpace(in.AttachmentURL)
	if text == "" && link == "" && attachment == "" {
		return nil, apperror.ErrEmptySubmission
	}

	challenge, err := s.challenges.FindByID(ctx, in.ChallengeID)
	if err != nil {
		return nil, err
	}
	if challenge.GuildID != in.GuildID {
		return nil, apperror.ErrNotFound
	}
	if challenge.IsTemplate || !challenge.IsActive {
		return nil, apperror.ErrChallengeClosed
	}
	if challenge.ThreadID == nil {
		return nil, fmt.Errorf("challenge %d has no submission thread: %w", challenge.ID, apperror.ErrChallengeClosed)
	}

	settings, err := s.settings.Get(ctx, in.GuildID)
	if err != nil {
		return nil, err
	}

	sub := &entity.Submission{
		ChallengeID:   challenge.ID,
		GuildID:       in.GuildID,
		UserID:        in.UserID,
		Username:      in.Username,
		ChannelID:     challenge.ThreadID,
		ThreadID:      challenge.ThreadID,
		ContentText:   optional(text),
		AttachmentURL: optional(attachment),
		LinkURL:       optional(link),
	}

	msg, err := s.platform.SendEmbed(ctx, *challenge.ThreadID, submissionEmbed(challenge, sub, settings.VoteEmoji, in.ImageAttachment))
	if err != nil {
		return nil, fmt.Errorf("post submission: %w", err)
	}
	sub.MessageID = &msg.MessageID

	var award *entity.PointLog
	if settings.PointsPerSubmission != 0 {
		award = &entity.PointLog{
			GuildID:   in.GuildID,
			UserID:    in.UserID,
			Amount:    settings.PointsPerSubmission,
			Reason:    entity.ReasonSubmission,
			RelatedID: entity.ChallengeRef(challenge.ID),
		}
	}

	balance, err := s.repo.CreateWithAward(ctx, sub, award)
	if err != nil {
		if derr := s.platform.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); derr != nil {
			s.log.Warn("failed to remove orphaned submission message", zap.String("message_id", msg.MessageID), zap.Error(derr))
		}
		return nil, err
	}

	if err := s.platform.AddReaction(ctx, msg.ChannelID, msg.MessageID, settings.VoteEmoji); err != nil {
		s.log.Warn("failed to seed vote reaction", zap.Uint("submission_id", sub.ID), zap.Error(err))
	}
	s.index.IndexSubmission(ctx, sub)
	if award != nil {
		s.points.AfterCommit(ctx, pointsService.BalanceChange{
			GuildID: in.GuildID,
			UserID:  in.UserID,
			Amount:  award.Amount,
			Reason:  entity.ReasonSubmission,
			Balance: balance,
		})
	}

	s.log.Info("submission recorded",
		zap.Uint("submission_id", sub.ID),
		zap.Uint("challenge_id", challenge.ID),
		zap.String("user_id", in.UserID),
	)
	return sub, nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (*entity.Submission, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *submissionService) ListByChallenge(ctx context.Context, challengeID uint) ([]entity.Submission, error) {
	if _, err := s.challenges.FindByID(ctx, challengeID); err != nil {
		return nil, err
	}
	return s.repo.ListByChallenge(ctx, challengeID)
}

func (s *submissionService) Edit(ctx context.Context, id uint, actorID string, req submissionDto.EditSubmissionRequest) (*entity.Submission, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != actorID {
		return nil, fmt.Errorf("only the author can edit a submission: %w", apperror.ErrForbidden)
	}
	if req.Empty() {
		return sub, nil
	}

	fields := map[string]interface{}{}
	if req.ContentText != nil {
		sub.ContentText = optional(sanitize.Text(*req.ContentText))
		fields["content_text"] = sub.ContentText
	}
	if req.AttachmentURL != nil {
		sub.AttachmentURL = optional(strings.TrimSpace(*req.AttachmentURL))
		fields["attachment_url"] = sub.AttachmentURL
	}
	if req.LinkURL != nil {
		sub.LinkURL = optional(strings.TrimSpace(*req.LinkURL))
		fields["link_url"] = sub.LinkURL
	}
	if !sub.HasContent() {
		return nil, apperror.ErrEmptySubmission
	}

	if err := s.repo.UpdateContent(ctx, id, fields); err != nil {
		return nil, err
	}

	s.refreshMessage(ctx, sub)
	s.index.IndexSubmission(ctx, sub)
	return sub, nil
}

func (s *submissionService) refreshMessage(ctx context.Context, sub *entity.Submission) {
	if sub.ChannelID == nil || sub.MessageID == nil {
		return
	}
	challenge, err := s.challenges.FindByID(ctx, sub.ChallengeID)
	if err != nil {
		return
	}
	settings, err := s.settings.Get(ctx, sub.GuildID)
	if err != nil {
		return
	}
	embed := submissionEmbed(challenge, sub, settings.VoteEmoji, false)
	if err := s.platform.EditEmbed(ctx, *sub.ChannelID, *sub.MessageID, embed); err != nil && !platform.IsNotFound(err) {
		s.log.Warn("failed to update submission message", zap.Uint("submission_id", sub.ID), zap.Error(err))
	}
}

func (s *submissionService) Delete(ctx context.Context, id uint) error {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if sub.ChannelID != nil && sub.MessageID != nil {
		if err := s.platform.DeleteMessage(ctx, *sub.ChannelID, *sub.MessageID); err != nil && !platform.IsNotFound(err) {
			s.log.Warn("failed to delete submission message", zap.Uint("submission_id", id), zap.Error(err))
		}
	}
	s.index.DeleteSubmission(ctx, id)

	// the ledger keeps the old awards; the balance is rebuilt without this entry
	if _, err := s.points.Recalculate(ctx, sub.GuildID, sub.UserID); err != nil {
		s.log.Error("failed to recalculate balance after submission delete",
			zap.Uint("submission_id", id),
			zap.String("user_id", sub.UserID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *submissionService) CastVote(ctx context.Context, submissionID uint, voterID string) (*submissionDto.VoteResult, error) {
	sub, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID == voterID {
		return nil, apperror.ErrSelfVote
	}
	settings, err := s.settings.Get(ctx, sub.GuildID)
	if err != nil {
		return nil, err
	}

	out, err := s.repo.ToggleVote(ctx, sub, voterID, settings.PointsPerVote)
	if err != nil {
		return nil, err
	}
	return s.afterVote(ctx, sub, out), nil
}

func (s *submissionService) SetVoteByMessage(ctx context.Context, guildID, messageID, voterID string, want bool) (*submissionDto.VoteResult, error) {
	sub, err := s.repo.FindByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if sub.GuildID != guildID {
		return nil, apperror.ErrNotFound
	}
	settings, err := s.settings.Get(ctx, sub.GuildID)
	if err != nil {
		return nil, err
	}

	if sub.UserID == voterID {
		if !want {
			return &submissionDto.VoteResult{SubmissionID: sub.ID, Action: submissionDto.VoteNoop, Votes: sub.Votes}, nil
		}
		s.rejectSelfVote(ctx, sub, settings.VoteEmoji)
		return nil, apperror.ErrSelfVote
	}

	out, err := s.repo.SetVote(ctx, sub, voterID, settings.PointsPerVote, want)
	if err != nil {
		return nil, err
	}
	return s.afterVote(ctx, sub, out), nil
}

func (s *submissionService) rejectSelfVote(ctx context.Context, sub *entity.Submission, emoji string) {
	if sub.ChannelID != nil && sub.MessageID != nil {
		if err := s.platform.RemoveReaction(ctx, *sub.ChannelID, *sub.MessageID, emoji, sub.UserID); err != nil {
			s.log.Warn("failed to remove self vote reaction", zap.Uint("submission_id", sub.ID), zap.Error(err))
		}
	}
	if err := s.platform.SendDM(ctx, sub.UserID, selfVoteNotice); err != nil {
		s.log.Debug("failed to DM self voter", zap.String("user_id", sub.UserID), zap.Error(err))
	}
}

func (s *submissionService) afterVote(ctx context.Context, sub *entity.Submission, out submissionRepo.VoteOutcome) *submissionDto.VoteResult {
	res := &submissionDto.VoteResult{SubmissionID: sub.ID, Action: submissionDto.VoteNoop, Votes: sub.Votes}
	if !out.Changed {
		return res
	}

	res.Votes = out.Votes
	res.Action = submissionDto.VoteRemoved
	if out.Added {
		res.Action = submissionDto.VoteAdded
	}

	if out.Awarded != 0 {
		s.points.AfterCommit(ctx, pointsService.BalanceChange{
			GuildID: sub.GuildID,
			UserID:  sub.UserID,
			Amount:  out.Awarded,
			Reason:  entity.ReasonVoteReceived,
			Balance: out.Balance,
		})
	}

	sub.Votes = out.Votes
	s.index.IndexSubmission(ctx, sub)
	return res
}

func submissionEmbed(challenge *entity.Challenge, sub *entity.Submission, voteEmoji string, inlineImage bool) platform.Embed {
	embed := platform.Embed{
		Title:       fmt.Sprintf("Entry for: #%d - %s", challenge.ID, challenge.Title),
		Description: fmt.Sprintf("Submission from <@%s>", sub.UserID),
		Color:       colorGreen,
		Footer:      "Vote with " + voteEmoji,
	}
	if sub.ContentText != nil {
		embed.Fields = append(embed.Fields, platform.Field{Name: "📝 Notes", Value: *sub.ContentText})
	}
	if sub.LinkURL != nil {
		embed.Fields = append(embed.Fields, platform.Field{Name: "🔗 Link", Value: *sub.LinkURL})
	}
	if sub.AttachmentURL != nil {
		name := "📎 Attachment"
		if inlineImage {
			name = "🖼️ Image"
		}
		embed.Fields = append(embed.Fields, platform.Field{Name: name, Value: *sub.AttachmentURL})
	}
	return embed
}
