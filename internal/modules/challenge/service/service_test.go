package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"anoa.com/challengebot/internal/entity"
	challengeDto "anoa.com/challengebot/internal/modules/challenge/dto"
	challengeRepo "anoa.com/challengebot/internal/modules/challenge/repository"
	pointsService "anoa.com/challengebot/internal/modules/points/service"
	"anoa.com/challengebot/internal/platform/platformtest"
	"anoa.com/challengebot/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memChallenges struct {
	mu        sync.Mutex
	rows      map[uint]*entity.Challenge
	nextID    uint
	reversals []challengeRepo.Reversal
	deleted   []uint
	reversed  bool
}

func newMemChallenges() *memChallenges {
	return &memChallenges{rows: map[uint]*entity.Challenge{}}
}

func (m *memChallenges) Create(_ context.Context, c *entity.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memChallenges) AttachMessage(_ context.Context, id uint, messageID, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return apperror.ErrNotFound
	}
	c.MessageID = &messageID
	if threadID != "" {
		c.ThreadID = &threadID
	}
	return nil
}

func (m *memChallenges) FindByID(_ context.Context, id uint) (*entity.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memChallenges) CountSubmissions(context.Context, uint) (int64, error) { return 2, nil }

func (m *memChallenges) ListActive(context.Context, string) ([]entity.Challenge, error) {
	return nil, nil
}

func (m *memChallenges) ListTemplates(context.Context, string) ([]entity.Challenge, error) {
	return nil, nil
}

func (m *memChallenges) ListActiveTemplates(context.Context) ([]entity.Challenge, error) {
	return nil, nil
}

func (m *memChallenges) Deactivate(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || !c.IsActive {
		return apperror.ErrAlreadyClosed
	}
	c.IsActive = false
	return nil
}

func (m *memChallenges) Delete(_ context.Context, id uint, reversePoints bool) ([]challengeRepo.Reversal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return nil, apperror.ErrNotFound
	}
	delete(m.rows, id)
	m.deleted = append(m.deleted, id)
	m.reversed = reversePoints
	if !reversePoints {
		return nil, nil
	}
	return m.reversals, nil
}

type fakeScheduler struct {
	scheduled []uint
	cancelled []uint
}

func (f *fakeScheduler) Schedule(tmpl entity.Challenge) bool {
	f.scheduled = append(f.scheduled, tmpl.ID)
	return true
}

func (f *fakeScheduler) Cancel(id uint) {
	f.cancelled = append(f.cancelled, id)
}

type fakePoints struct {
	pointsService.PointsService
	deltas  []pointsService.DeltaInput
	changes []pointsService.BalanceChange
}

func (f *fakePoints) ApplyDelta(_ context.Context, in pointsService.DeltaInput) (int, error) {
	f.deltas = append(f.deltas, in)
	return in.Amount, nil
}

func (f *fakePoints) AfterCommit(_ context.Context, change pointsService.BalanceChange) {
	f.changes = append(f.changes, change)
}

type fakeIndex struct{ removed []uint }

func (f *fakeIndex) RemoveChallenge(_ context.Context, id uint) { f.removed = append(f.removed, id) }

type fixture struct {
	repo      *memChallenges
	platform  *platformtest.Recorder
	scheduler *fakeScheduler
	points    *fakePoints
	index     *fakeIndex
	svc       ChallengeService
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMemChallenges(),
		platform:  platformtest.New(),
		scheduler: &fakeScheduler{},
		points:    &fakePoints{},
		index:     &fakeIndex{},
	}
	f.svc = NewChallengeService(f.repo, f.points, f.platform, NewAnnouncer(f.repo, f.platform), f.scheduler, f.index)
	return f
}

func strPtr(s string) *string { return &s }

func oneTime() challengeDto.CreateChallengeRequest {
	return challengeDto.CreateChallengeRequest{Title: "Sketch a cat", Type: "art", ChannelID: "100"}
}

func TestCreateOneTimeAnnounces(t *testing.T) {
	f := newFixture()

	c, err := f.svc.Create(context.Background(), "G", "admin", oneTime())
	require.NoError(t, err)
	assert.True(t, c.IsActive)
	assert.False(t, c.IsTemplate)
	require.NotNil(t, c.MessageID)
	require.NotNil(t, c.ThreadID)

	stored, _ := f.repo.FindByID(context.Background(), c.ID)
	assert.Equal(t, *c.ThreadID, *stored.ThreadID)
	require.Len(t, f.platform.Sent, 1)
	assert.Equal(t, "100", f.platform.Sent[0].ChannelID)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestCreateSurvivesAnnouncementFailure(t *testing.T) {
	f := newFixture()
	f.platform.Fail["SendEmbed"] = errors.New("missing access")

	c, err := f.svc.Create(context.Background(), "G", "admin", oneTime())
	require.NoError(t, err)
	assert.Nil(t, c.MessageID)
	assert.True(t, c.IsActive)
}

func TestCreateRecurringSchedules(t *testing.T) {
	f := newFixture()
	req := oneTime()
	req.CronSchedule = strPtr("0 9 * * 1")

	c, err := f.svc.Create(context.Background(), "G", "admin", req)
	require.NoError(t, err)
	assert.True(t, c.IsTemplate)
	assert.True(t, c.IsActive)
	assert.Equal(t, []uint{c.ID}, f.scheduler.scheduled)
	assert.Empty(t, f.platform.Sent, "templates are not announced")
}

func TestCreateRejectsInvalidCron(t *testing.T) {
	f := newFixture()
	req := oneTime()
	req.CronSchedule = strPtr("every monday")

	_, err := f.svc.Create(context.Background(), "G", "admin", req)
	assert.ErrorIs(t, err, apperror.ErrInvalidCron)
	assert.Empty(t, f.repo.rows)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestCloseTwiceIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "G", "admin", oneTime())
	require.NoError(t, err)

	closed, err := f.svc.Close(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	require.Len(t, f.platform.Edited, 1)

	_, err = f.svc.Close(ctx, c.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyClosed)
}

func TestCloseUnknown(t *testing.T) {
	_, err := newFixture().svc.Close(context.Background(), 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCloseTemplateCancelsSchedule(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := oneTime()
	req.CronSchedule = strPtr("@daily")
	tmpl, err := f.svc.Create(ctx, "G", "admin", req)
	require.NoError(t, err)

	_, err = f.svc.Close(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{tmpl.ID}, f.scheduler.cancelled)

	stored, _ := f.repo.FindByID(ctx, tmpl.ID)
	assert.False(t, stored.IsActive)

	assert.ErrorIs(t, f.svc.CancelTemplate(ctx, tmpl.ID), apperror.ErrAlreadyClosed)
}

func TestCancelTemplateRejectsConcreteChallenge(t *testing.T) {
	f := newFixture()
	c, err := f.svc.Create(context.Background(), "G", "admin", oneTime())
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.CancelTemplate(context.Background(), c.ID), apperror.ErrInvalidInput)
	assert.Empty(t, f.scheduler.cancelled)
}

func TestDeleteWithReversal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "G", "admin", oneTime())
	require.NoError(t, err)
	f.repo.reversals = []challengeRepo.Reversal{
		{GuildID: "G", UserID: "A", Amount: 6, Balance: 10},
		{GuildID: "G", UserID: "B", Amount: 0, Balance: 3},
	}

	reversals, err := f.svc.Delete(ctx, c.ID, true)
	require.NoError(t, err)
	assert.Len(t, reversals, 2)
	assert.True(t, f.repo.reversed)

	require.Len(t, f.points.changes, 1)
	assert.Equal(t, pointsService.BalanceChange{GuildID: "G", UserID: "A", Amount: -6, Balance: 10}, f.points.changes[0])
	assert.Equal(t, []uint{c.ID}, f.index.removed)
	assert.Len(t, f.platform.Deleted, 1)

	_, err = f.svc.Get(ctx, c.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteWithoutReversalLeavesLedger(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "G", "admin", oneTime())
	require.NoError(t, err)
	f.repo.reversals = []challengeRepo.Reversal{{GuildID: "G", UserID: "A", Amount: 6}}

	_, err = f.svc.Delete(ctx, c.ID, false)
	require.NoError(t, err)
	assert.False(t, f.repo.reversed)
	assert.Empty(t, f.points.changes)
}

func TestDeleteTemplateUnschedules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := oneTime()
	req.CronSchedule = strPtr("*/5 * * * *")
	tmpl, err := f.svc.Create(ctx, "G", "admin", req)
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, tmpl.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []uint{tmpl.ID}, f.scheduler.cancelled)
}

func TestPickWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "G", "admin", oneTime())
	require.NoError(t, err)

	res, err := f.svc.PickWinner(ctx, c.ID, "admin", challengeDto.PickWinnerRequest{UserID: "W", BonusPoints: 25, Announcement: "Great work"})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Balance)

	require.Len(t, f.points.deltas, 1)
	d := f.points.deltas[0]
	assert.Equal(t, entity.ReasonWinnerBonus, d.Reason)
	assert.Equal(t, "G", d.GuildID)
	require.NotNil(t, d.RelatedID)
	assert.Equal(t, *entity.ChallengeRef(c.ID), *d.RelatedID)

	// announcement + winner post in the thread
	require.Len(t, f.platform.Sent, 2)
	assert.Equal(t, *c.ThreadID, f.platform.Sent[1].ChannelID)

	stored, _ := f.repo.FindByID(ctx, c.ID)
	assert.False(t, stored.IsActive)
}

func TestPickWinnerValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := oneTime()
	req.CronSchedule = strPtr("@weekly")
	tmpl, err := f.svc.Create(ctx, "G", "admin", req)
	require.NoError(t, err)

	_, err = f.svc.PickWinner(ctx, tmpl.ID, "admin", challengeDto.PickWinnerRequest{UserID: "W", BonusPoints: 5})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.svc.PickWinner(ctx, tmpl.ID, "admin", challengeDto.PickWinnerRequest{UserID: "W", BonusPoints: 0})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	assert.Empty(t, f.points.deltas)
}

func TestSpawnInstanceCopiesTemplate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tmpl := entity.Challenge{ID: 9, GuildID: "G", Title: "Daily haiku", Description: "5-7-5", Type: "writing", CreatedBy: "admin", ChannelID: strPtr("200"), IsTemplate: true, IsActive: true}

	c, err := NewAnnouncer(f.repo, f.platform).SpawnInstance(ctx, tmpl)
	require.NoError(t, err)
	assert.NotEqual(t, tmpl.ID, c.ID)
	assert.False(t, c.IsTemplate)
	assert.True(t, c.IsActive)
	assert.Nil(t, c.CronSchedule)
	assert.Equal(t, "Daily haiku", c.Title)
	require.NotNil(t, c.ThreadID)
	assert.Equal(t, []string{"Challenge #1 - Daily haiku"}, f.platform.Threads)
}

func TestSpawnInstanceThreadFailureKeepsChallenge(t *testing.T) {
	f := newFixture()
	f.platform.Fail["StartThread"] = errors.New("thread limit reached")
	tmpl := entity.Challenge{ID: 9, GuildID: "G", Title: "x", Type: "y", ChannelID: strPtr("200"), IsTemplate: true}

	c, err := NewAnnouncer(f.repo, f.platform).SpawnInstance(context.Background(), tmpl)
	require.NoError(t, err)
	assert.NotNil(t, c.MessageID)
	assert.Nil(t, c.ThreadID)
}
