package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"anoa.com/challengebot/internal/entity"
	searchDto "anoa.com/challengebot/internal/modules/search/dto"
	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMeili answers just enough of the Meilisearch HTTP API for these tests.
type fakeMeili struct {
	mu       sync.Mutex
	requests map[string]string
	hits     []searchDto.SubmissionHit
}

func (f *fakeMeili) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests[r.Method+" "+r.URL.Path] = string(body)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, "/search") {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits":               f.hits,
			"estimatedTotalHits": len(f.hits),
			"query":              "",
		})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"taskUid":    1,
		"indexUid":   IndexName,
		"status":     "enqueued",
		"type":       "documentAdditionOrUpdate",
		"enqueuedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func (f *fakeMeili) body(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.requests[key]
	return b, ok
}

func newTestSearch(t *testing.T) (*fakeMeili, SearchService) {
	fake := &fakeMeili{requests: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, NewSearchService(meilisearch.New(srv.URL, meilisearch.WithAPIKey("test")))
}

func TestIndexSubmissionSanitizes(t *testing.T) {
	fake, svc := newTestSearch(t)
	text := "<b>my</b> entry"
	link := "https://example.com/x"

	svc.IndexSubmission(context.Background(), &entity.Submission{
		ID: 3, ChallengeID: 7, GuildID: "G", UserID: "U", Username: "ana",
		ContentText: &text, LinkURL: &link, Votes: 2, CreatedAt: time.Unix(1700000000, 0),
	})

	body, ok := fake.body("POST /indexes/submissions/documents")
	require.True(t, ok)
	var docs []searchDto.SubmissionHit
	require.NoError(t, json.Unmarshal([]byte(body), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "my entry", docs[0].Content)
	assert.Equal(t, uint(7), docs[0].ChallengeID)
	assert.Equal(t, link, docs[0].LinkURL)
}

func TestSearchFiltersByGuild(t *testing.T) {
	fake, svc := newTestSearch(t)
	fake.hits = []searchDto.SubmissionHit{{ID: 3, GuildID: "G", Content: "cat sketch", Votes: 4}}

	res, err := svc.Search(context.Background(), "G", "cat", 500)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "cat sketch", res.Hits[0].Content)
	assert.Equal(t, int64(1), res.Total)

	body, ok := fake.body("POST /indexes/submissions/search")
	require.True(t, ok)
	var req map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, `guild_id = "G"`, req["filter"])
	assert.EqualValues(t, MaxLimit, req["limit"])
}

func TestDisabledSearch(t *testing.T) {
	svc := NewSearchService(nil)
	assert.False(t, svc.Enabled())

	res, err := svc.Search(context.Background(), "G", "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	assert.NotPanics(t, func() {
		svc.IndexSubmission(context.Background(), &entity.Submission{ID: 1})
		svc.DeleteSubmission(context.Background(), 1)
		svc.RemoveChallenge(context.Background(), 1)
	})
}
