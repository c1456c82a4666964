// Package scheduler runs one cron job per active recurring template.
package scheduler

import (
	"context"
	"sync"
	"time"

	"anoa.com/challengebot/internal/entity"
	"anoa.com/challengebot/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const spawnTimeout = 30 * time.Second

// Spawner creates and announces a concrete challenge from a template.
type Spawner interface {
	SpawnInstance(ctx context.Context, tmpl entity.Challenge) (*entity.Challenge, error)
}

// TemplateStore lists the templates that should be running.
type TemplateStore interface {
	ListActiveTemplates(ctx context.Context) ([]entity.Challenge, error)
}

type Scheduler struct {
	cron      *cron.Cron
	spawner   Spawner
	templates TemplateStore
	log       *zap.Logger

	mu   sync.Mutex
	jobs map[uint]cron.EntryID
}

func New(spawner Spawner, templates TemplateStore) *Scheduler {
	log := logger.WithComponent("scheduler")
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		spawner:   spawner,
		templates: templates,
		log:       log,
		jobs:      make(map[uint]cron.EntryID),
	}
}

// Initialize schedules every persisted active template. Templates already
// scheduled are skipped, so calling it again never duplicates a job.
func (s *Scheduler) Initialize(ctx context.Context) (int, error) {
	templates, err := s.templates.ListActiveTemplates(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, tmpl := range templates {
		if s.Schedule(tmpl) {
			added++
		}
	}
	s.log.Info("recurring templates loaded", zap.Int("templates", len(templates)), zap.Int("scheduled", added))
	return added, nil
}

// Schedule registers a job for tmpl. It reports false when the template is
// not schedulable or already has a job.
func (s *Scheduler) Schedule(tmpl entity.Challenge) bool {
	if !tmpl.IsTemplate || !tmpl.IsActive || tmpl.CronSchedule == nil {
		return false
	}
	schedule, err := cron.ParseStandard(*tmpl.CronSchedule)
	if err != nil {
		s.log.Warn("template has an invalid cron schedule",
			zap.Uint("template_id", tmpl.ID),
			zap.String("cron", *tmpl.CronSchedule),
			zap.Error(err),
		)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[tmpl.ID]; ok {
		return false
	}
	s.jobs[tmpl.ID] = s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(tmpl) }))

	s.log.Info("template scheduled",
		zap.Uint("template_id", tmpl.ID),
		zap.String("guild_id", tmpl.GuildID),
		zap.String("cron", *tmpl.CronSchedule),
	)
	return true
}

// Cancel stops the template's job. A spawn already in flight finishes on its
// own; no spawn starts after Cancel returns.
func (s *Scheduler) Cancel(templateID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.jobs[templateID]
	if !ok {
		return
	}
	delete(s.jobs, templateID)
	s.cron.Remove(entryID)
	s.log.Info("template unscheduled", zap.Uint("template_id", templateID))
}

func (s *Scheduler) Scheduled(templateID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[templateID]
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", s.Len()))
}

// Stop halts the timers. The returned context is done once running spawns finish.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.log.Info("scheduler stopped")
	return ctx
}

func (s *Scheduler) fire(tmpl entity.Challenge) {
	if !s.Scheduled(tmpl.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), spawnTimeout)
	defer cancel()

	instance, err := s.spawner.SpawnInstance(ctx, tmpl)
	if err != nil {
		s.log.Error("failed to spawn challenge from template",
			zap.Uint("template_id", tmpl.ID),
			zap.String("guild_id", tmpl.GuildID),
			zap.Error(err),
		)
		return
	}
	s.log.Info("challenge spawned from template",
		zap.Uint("template_id", tmpl.ID),
		zap.Uint("challenge_id", instance.ID),
	)
}

// cronLogger routes robfig/cron's logging into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
