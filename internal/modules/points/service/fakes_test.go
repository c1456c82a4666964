package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"anoa.com/challengebot/internal/entity"
	pointsRepo "anoa.com/challengebot/internal/modules/points/repository"
	settingsDto "anoa.com/challengebot/internal/modules/settings/dto"
)

type memberKey struct{ guild, user string }

// memRepo keeps the ledger and balances in memory. ApplyDelta holds the lock
// for both writes, like the single database transaction does.
type memRepo struct {
	mu            sync.Mutex
	ledger        []entity.PointLog
	balances      map[memberKey]int
	contributions map[memberKey]pointsRepo.Contribution
	failApply     error
	topCalls      int
}

func newMemRepo() *memRepo {
	return &memRepo{
		balances:      map[memberKey]int{},
		contributions: map[memberKey]pointsRepo.Contribution{},
	}
}

func (m *memRepo) ApplyDelta(_ context.Context, entry *entity.PointLog) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failApply != nil {
		return 0, m.failApply
	}
	entry.ID = uint(len(m.ledger) + 1)
	m.ledger = append(m.ledger, *entry)
	k := memberKey{entry.GuildID, entry.UserID}
	m.balances[k] += entry.Amount
	return m.balances[k], nil
}

func (m *memRepo) GetBalance(_ context.Context, guildID, userID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[memberKey{guildID, userID}]
	return b, ok, nil
}

func (m *memRepo) SetBalance(_ context.Context, guildID, userID string, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[memberKey{guildID, userID}] = points
	return nil
}

func (m *memRepo) Contribution(_ context.Context, guildID, userID string) (pointsRepo.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contributions[memberKey{guildID, userID}], nil
}

func sortStandings(out []pointsRepo.Standing, limit int) []pointsRepo.Standing {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memRepo) TopBalances(_ context.Context, guildID string, limit int) ([]pointsRepo.Standing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topCalls++
	var out []pointsRepo.Standing
	for k, v := range m.balances {
		if k.guild == guildID {
			out = append(out, pointsRepo.Standing{UserID: k.user, Points: v})
		}
	}
	return sortStandings(out, limit), nil
}

func (m *memRepo) TopSince(_ context.Context, guildID string, since time.Time, limit int) ([]pointsRepo.Standing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topCalls++
	sums := map[string]int{}
	for _, e := range m.ledger {
		if e.GuildID == guildID && !e.CreatedAt.Before(since) {
			sums[e.UserID] += e.Amount
		}
	}
	var out []pointsRepo.Standing
	for u, v := range sums {
		if v > 0 {
			out = append(out, pointsRepo.Standing{UserID: u, Points: v})
		}
	}
	return sortStandings(out, limit), nil
}

func (m *memRepo) SumSince(_ context.Context, guildID, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, e := range m.ledger {
		if e.GuildID == guildID && e.UserID == userID && !e.CreatedAt.Before(since) {
			total += e.Amount
		}
	}
	return total, nil
}

func (m *memRepo) Rank(ctx context.Context, guildID, userID string) (int, int, bool, error) {
	all, _ := m.TopBalances(ctx, guildID, 1<<30)
	for i, st := range all {
		if st.UserID == userID {
			return i + 1, len(all), true, nil
		}
	}
	return 0, 0, false, nil
}

func (m *memRepo) History(_ context.Context, guildID, userID string, limit int) ([]entity.PointLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.PointLog
	for i := len(m.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if e := m.ledger[i]; e.GuildID == guildID && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) RecentSubmissions(context.Context, string, string, int) ([]entity.Submission, error) {
	return nil, nil
}

func (m *memRepo) Drift(context.Context) ([]pointsRepo.Drift, error) {
	return nil, errors.New("not used")
}

type staticSettings struct {
	settings entity.GuildSettings
}

func (s *staticSettings) Get(_ context.Context, guildID string) (entity.GuildSettings, error) {
	out := s.settings
	out.GuildID = guildID
	return out, nil
}

func (s *staticSettings) Update(context.Context, string, settingsDto.UpdateSettingsRequest) (entity.GuildSettings, error) {
	return s.settings, nil
}

type badgeCall struct {
	guild, user string
	balance     int
}

type recordingBadges struct {
	mu    sync.Mutex
	calls []badgeCall
}

func (r *recordingBadges) Evaluate(_ context.Context, guildID, userID string, balance int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, badgeCall{guildID, userID, balance})
}
