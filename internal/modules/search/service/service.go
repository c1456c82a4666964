package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"anoa.com/challengebot/internal/entity"
	searchDto "anoa.com/challengebot/internal/modules/search/dto"
	"anoa.com/challengebot/pkg/logger"
	"anoa.com/challengebot/pkg/sanitize"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	IndexName    = "submissions"
	DefaultLimit = 20
	MaxLimit     = 100
	primaryKey   = "id"
)

// SearchService keeps the submission index in step with the database. Index
// writes are best effort; a nil client disables search entirely.
type SearchService interface {
	Enabled() bool
	IndexSubmission(ctx context.Context, sub *entity.Submission)
	DeleteSubmission(ctx context.Context, id uint)
	RemoveChallenge(ctx context.Context, challengeID uint)
	Search(ctx context.Context, guildID, query string, limit int) (*searchDto.SearchResponse, error)
}

type searchService struct {
	client meilisearch.ServiceManager
	log    *zap.Logger
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &searchService{client: client, log: logger.WithComponent("search")}
	if client != nil {
		s.initIndex()
	}
	return s
}

func (s *searchService) Enabled() bool {
	return s.client != nil
}

func (s *searchService) initIndex() {
	filterable := []string{"guild_id", "challenge_id", "user_id"}
	filterableInterface := make([]any, len(filterable))
	for i, v := range filterable {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index(IndexName).UpdateFilterableAttributes(&filterableInterface); err != nil {
		s.log.Warn("failed to update filterable attributes", zap.Error(err))
	}

	sortable := []string{"created_at", "votes"}
	if _, err := s.client.Index(IndexName).UpdateSortableAttributes(&sortable); err != nil {
		s.log.Warn("failed to update sortable attributes", zap.Error(err))
	}
}

func toDocument(sub *entity.Submission) searchDto.SubmissionHit {
	var content []string
	if sub.ContentText != nil {
		content = append(content, *sub.ContentText)
	}
	doc := searchDto.SubmissionHit{
		ID:          sub.ID,
		ChallengeID: sub.ChallengeID,
		GuildID:     sub.GuildID,
		UserID:      sub.UserID,
		Username:    sub.Username,
		Content:     sanitize.Flatten(strings.Join(content, " ")),
		Votes:       sub.Votes,
		CreatedAt:   sub.CreatedAt.Unix(),
	}
	if sub.LinkURL != nil {
		doc.LinkURL = *sub.LinkURL
	}
	return doc
}

func (s *searchService) IndexSubmission(_ context.Context, sub *entity.Submission) {
	if !s.Enabled() {
		return
	}
	pk := primaryKey
	task, err := s.client.Index(IndexName).AddDocuments([]searchDto.SubmissionHit{toDocument(sub)}, &pk)
	if err != nil {
		s.log.Warn("failed to index submission", zap.Uint("submission_id", sub.ID), zap.Error(err))
		return
	}
	s.log.Debug("submission indexed", zap.Uint("submission_id", sub.ID), zap.Int64("task_uid", task.TaskUID))
}

func (s *searchService) DeleteSubmission(_ context.Context, id uint) {
	if !s.Enabled() {
		return
	}
	if _, err := s.client.Index(IndexName).DeleteDocument(strconv.FormatUint(uint64(id), 10)); err != nil {
		s.log.Warn("failed to remove submission from index", zap.Uint("submission_id", id), zap.Error(err))
	}
}

func (s *searchService) RemoveChallenge(_ context.Context, challengeID uint) {
	if !s.Enabled() {
		return
	}
	filter := fmt.Sprintf("challenge_id = %d", challengeID)
	if _, err := s.client.Index(IndexName).DeleteDocumentsByFilter(filter); err != nil {
		s.log.Warn("failed to remove challenge submissions from index", zap.Uint("challenge_id", challengeID), zap.Error(err))
	}
}

type rawSearchResult struct {
	Hits               []searchDto.SubmissionHit `json:"hits"`
	EstimatedTotalHits int64                     `json:"estimatedTotalHits"`
}

func (s *searchService) Search(_ context.Context, guildID, query string, limit int) (*searchDto.SearchResponse, error) {
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	out := &searchDto.SearchResponse{Query: query, Hits: []searchDto.SubmissionHit{}}
	if !s.Enabled() {
		return out, nil
	}

	raw, err := s.client.Index(IndexName).SearchRaw(query, &meilisearch.SearchRequest{
		Filter: fmt.Sprintf("guild_id = %s", strconv.Quote(guildID)),
		Limit:  int64(limit),
		Sort:   []string{"votes:desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("search submissions: %w", err)
	}

	var res rawSearchResult
	if err := json.Unmarshal(*raw, &res); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	if res.Hits != nil {
		out.Hits = res.Hits
	}
	out.Total = res.EstimatedTotalHits
	return out, nil
}
