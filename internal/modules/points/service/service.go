package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"anoa.com/challengebot/internal/entity"
	pointsDto "anoa.com/challengebot/internal/modules/points/dto"
	pointsRepo "anoa.com/challengebot/internal/modules/points/repository"
	settingsService "anoa.com/challengebot/internal/modules/settings/service"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/cache"
	"anoa.com/challengebot/pkg/logger"
	"go.uber.org/zap"
)

type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all-time"

	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	HistoryLimit            = 50
	ProfileSubmissionLimit  = 5
)

// ParsePeriod maps anything unrecognised to all-time.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodWeekly, PeriodMonthly:
		return Period(s)
	default:
		return PeriodAllTime
	}
}

// Window returns the cutoff for a windowed period, false for all-time.
func (p Period) Window(now time.Time) (time.Time, bool) {
	switch p {
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), true
	case PeriodMonthly:
		return now.AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

type DeltaInput struct {
	GuildID    string
	UserID     string
	Amount     int
	Reason     entity.Reason
	RelatedID  *string
	OperatorID *string
}

// BalanceChange describes a committed mutation for the post-commit hooks.
type BalanceChange struct {
	GuildID string
	UserID  string
	Amount  int
	Reason  entity.Reason
	Balance int
}

// BadgeEvaluator grants threshold roles after a balance change. It must not return errors.
type BadgeEvaluator interface {
	Evaluate(ctx context.Context, guildID, userID string, balance int)
}

type PointsService interface {
	ApplyDelta(ctx context.Context, in DeltaInput) (int, error)
	// AfterCommit runs the best-effort side effects of a change another module
	// committed in its own transaction.
	AfterCommit(ctx context.Context, change BalanceChange)
	GetBalance(ctx context.Context, guildID, userID string) (int, error)
	Recalculate(ctx context.Context, guildID, userID string) (int, error)
	GetLeaderboard(ctx context.Context, guildID string, limit int, period Period) ([]pointsDto.LeaderboardEntry, error)
	GetRank(ctx context.Context, guildID, userID string) (*pointsDto.RankResult, error)
	AdminAdjust(ctx context.Context, guildID, userID, operatorID string, amount int) (int, error)
	History(ctx context.Context, guildID, userID string, limit int) ([]entity.PointLog, error)
	Profile(ctx context.Context, guildID, userID string) (*pointsDto.ProfileResponse, error)
}

type pointsService struct {
	repo     pointsRepo.PointsRepository
	settings settingsService.SettingsService
	badges   BadgeEvaluator
	cache    *cache.Cache
	cacheTTL time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewPointsService(repo pointsRepo.PointsRepository, settings settingsService.SettingsService, badges BadgeEvaluator, c *cache.Cache, cacheTTL time.Duration) PointsService {
	return &pointsService{
		repo:     repo,
		settings: settings,
		badges:   badges,
		cache:    c,
		cacheTTL: cacheTTL,
		log:      logger.WithComponent("points"),
		now:      time.Now,
	}
}

func (s *pointsService) ApplyDelta(ctx context.Context, in DeltaInput) (int, error) {
	if !in.Reason.Valid() {
		return 0, fmt.Errorf("%q: %w", in.Reason, apperror.ErrInvalidReason)
	}
	if in.GuildID == "" || in.UserID == "" {
		return 0, fmt.Errorf("guild and user are required: %w", apperror.ErrInvalidInput)
	}

	entry := &entity.PointLog{
		GuildID:    in.GuildID,
		UserID:     in.UserID,
		Amount:     in.Amount,
		Reason:     in.Reason,
		RelatedID:  in.RelatedID,
		OperatorID: in.OperatorID,
		CreatedAt:  s.now().UTC(),
	}
	balance, err := s.repo.ApplyDelta(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("apply delta: %w", err)
	}

	s.AfterCommit(ctx, BalanceChange{
		GuildID: in.GuildID,
		UserID:  in.UserID,
		Amount:  in.Amount,
		Reason:  in.Reason,
		Balance: balance,
	})
	return balance, nil
}

func (s *pointsService) AfterCommit(ctx context.Context, change BalanceChange) {
	s.invalidate(ctx, change.GuildID)
	s.publish(ctx, change)

	if s.badges != nil {
		s.badges.Evaluate(ctx, change.GuildID, change.UserID, change.Balance)
	}
}

func (s *pointsService) GetBalance(ctx context.Context, guildID, userID string) (int, error) {
	points, _, err := s.repo.GetBalance(ctx, guildID, userID)
	return points, err
}

// Recalculate rebuilds the cached balance from submissions and votes under the
// current settings. The ledger is left as is.
func (s *pointsService) Recalculate(ctx context.Context, guildID, userID string) (int, error) {
	settings, err := s.settings.Get(ctx, guildID)
	if err != nil {
		return 0, err
	}
	contrib, err := s.repo.Contribution(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	previous, _, err := s.repo.GetBalance(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}

	total := int(contrib.Submissions)*settings.PointsPerSubmission + int(contrib.Votes)*settings.PointsPerVote
	if err := s.repo.SetBalance(ctx, guildID, userID, total); err != nil {
		return 0, err
	}

	s.log.Info("balance recalculated",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Int("previous", previous),
		zap.Int("balance", total),
	)
	s.AfterCommit(ctx, BalanceChange{GuildID: guildID, UserID: userID, Amount: total - previous, Balance: total})
	return total, nil
}

func (s *pointsService) GetLeaderboard(ctx context.Context, guildID string, limit int, period Period) ([]pointsDto.LeaderboardEntry, error) {
	if limit < 1 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	period = ParsePeriod(string(period))

	key := s.leaderboardKey(ctx, guildID, period, limit)
	if key != "" {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached []pointsDto.LeaderboardEntry
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	var (
		standings []pointsRepo.Standing
		err       error
	)
	if since, windowed := period.Window(s.now()); windowed {
		standings, err = s.repo.TopSince(ctx, guildID, since, limit)
	} else {
		standings, err = s.repo.TopBalances(ctx, guildID, limit)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]pointsDto.LeaderboardEntry, 0, len(standings))
	for i, st := range standings {
		entries = append(entries, pointsDto.LeaderboardEntry{
			Position: i + 1,
			UserID:   st.UserID,
			Points:   st.Points,
		})
	}

	if key != "" {
		if raw, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
				s.log.Debug("leaderboard cache set failed", zap.Error(err))
			}
		}
	}
	return entries, nil
}

// GetRank returns nil when the member has no balance row.
func (s *pointsService) GetRank(ctx context.Context, guildID, userID string) (*pointsDto.RankResult, error) {
	rank, total, found, err := s.repo.Rank(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &pointsDto.RankResult{Rank: rank, Total: total}, nil
}

func (s *pointsService) AdminAdjust(ctx context.Context, guildID, userID, operatorID string, amount int) (int, error) {
	if amount == 0 {
		return 0, fmt.Errorf("amount must not be zero: %w", apperror.ErrInvalidInput)
	}
	reason := entity.ReasonAdminAdd
	if amount < 0 {
		reason = entity.ReasonAdminRemove
	}
	return s.ApplyDelta(ctx, DeltaInput{
		GuildID:    guildID,
		UserID:     userID,
		Amount:     amount,
		Reason:     reason,
		OperatorID: &operatorID,
	})
}

func (s *pointsService) History(ctx context.Context, guildID, userID string, limit int) ([]entity.PointLog, error) {
	if limit < 1 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	return s.repo.History(ctx, guildID, userID, limit)
}

func (s *pointsService) Profile(ctx context.Context, guildID, userID string) (*pointsDto.ProfileResponse, error) {
	points, err := s.GetBalance(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	rank, err := s.GetRank(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	weekStart, _ := PeriodWeekly.Window(now)
	monthStart, _ := PeriodMonthly.Window(now)
	weekly, err := s.repo.SumSince(ctx, guildID, userID, weekStart)
	if err != nil {
		return nil, err
	}
	monthly, err := s.repo.SumSince(ctx, guildID, userID, monthStart)
	if err != nil {
		return nil, err
	}
	subs, err := s.repo.RecentSubmissions(ctx, guildID, userID, ProfileSubmissionLimit)
	if err != nil {
		return nil, err
	}

	return &pointsDto.ProfileResponse{
		GuildID:           guildID,
		UserID:            userID,
		Points:            points,
		Rank:              rank,
		WeeklyPoints:      weekly,
		MonthlyPoints:     monthly,
		RecentSubmissions: subs,
	}, nil
}

func FeedChannel(guildID string) string {
	return "points_feed:" + guildID
}

func versionKey(guildID string) string {
	return "leaderboard_version:" + guildID
}

// leaderboardKey embeds the guild's current version so a single INCR retires
// every cached page for that guild. Empty when caching is off.
func (s *pointsService) leaderboardKey(ctx context.Context, guildID string, period Period, limit int) string {
	if !s.cache.Enabled() || s.cacheTTL <= 0 {
		return ""
	}
	version, err := s.cache.Get(ctx, versionKey(guildID))
	if err != nil && !cache.IsMiss(err) {
		return ""
	}
	if version == "" {
		version = "0"
	}
	return fmt.Sprintf("leaderboard:%s:v%s:%s:%d", guildID, version, period, limit)
}

func (s *pointsService) invalidate(ctx context.Context, guildID string) {
	if !s.cache.Enabled() {
		return
	}
	if _, err := s.cache.Incr(ctx, versionKey(guildID)); err != nil {
		s.log.Warn("leaderboard cache invalidation failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

func (s *pointsService) publish(ctx context.Context, change BalanceChange) {
	if !s.cache.Enabled() {
		return
	}
	payload, err := json.Marshal(pointsDto.FeedEvent{
		GuildID: change.GuildID,
		UserID:  change.UserID,
		Amount:  change.Amount,
		Reason:  change.Reason,
		Balance: change.Balance,
		At:      s.now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.cache.Publish(ctx, FeedChannel(change.GuildID), string(payload)); err != nil {
		s.log.Warn("points feed publish failed", zap.String("guild_id", change.GuildID), zap.Error(err))
	}
}
