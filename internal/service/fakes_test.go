package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"estatechat/internal/cache"
	"estatechat/internal/model"
)

var nopLogger = zerolog.Nop()

type fakeStore struct {
	rows         []model.ListingRow
	err          error
	calls        int
	lastHood     *string
	lastCriteria model.FilterCriteria
	// loose returns every row in stored order, ignoring the criteria.
	loose bool
}

// FindListings behaves like the SQL query: every bound applied, cheapest first
// with unknown prices last, then cut to criteria.Limit.
func (f *fakeStore) FindListings(_ context.Context, criteria model.FilterCriteria) ([]model.ListingRow, error) {
	f.calls++
	f.lastHood = criteria.Neighborhood
	f.lastCriteria = criteria
	if f.err != nil {
		return nil, f.err
	}
	if f.loose {
		return f.rows, nil
	}

	var out []model.ListingRow
	for _, r := range f.rows {
		if matches(r.Record(), criteria) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return priceLess(out[i].Record(), out[j].Record())
	})
	if criteria.Limit > 0 && len(out) > criteria.Limit {
		out = out[:criteria.Limit]
	}
	return out, nil
}

func (f *fakeStore) GetListing(_ context.Context, id string) (*model.ListingRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.ID == id {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListPage(_ context.Context, afterID string, pageSize int) ([]model.ListingRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var page []model.ListingRow
	for _, r := range f.rows {
		if r.ID > afterID {
			page = append(page, r)
			if len(page) == pageSize {
				break
			}
		}
	}
	return page, nil
}

type fakeEmbedder struct {
	mu      sync.Mutex
	vector  []float32
	err     error
	reject  map[string]bool // texts the service refuses; a batch holding one fails whole
	calls   int
	single  []string
	batches [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.single = append(f.single, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.reject[text] {
		return nil, errors.New("input rejected")
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.reject[text] {
			return nil, errors.New("input rejected")
		}
		out[i] = f.vector
	}
	return out, nil
}

type fakeIndex struct {
	hits       []model.VectorHit
	err        error
	calls      int
	lastK      int
	lastFilter model.MetadataFilter
}

func (f *fakeIndex) Similar(_ context.Context, _ []float32, k int, filter model.MetadataFilter) ([]model.VectorHit, error) {
	f.calls++
	f.lastK = k
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeWriter struct {
	entries []model.VectorEntry
	fail    map[string]bool
}

func (f *fakeWriter) Upsert(_ context.Context, entries []model.VectorEntry) (int, []string) {
	var errs []string
	n := 0
	for _, e := range entries {
		if f.fail[e.ID] {
			errs = append(errs, "id "+e.ID+": write failed")
			continue
		}
		f.entries = append(f.entries, e)
		n++
	}
	return n, errs
}

type completerStep struct {
	resp openai.ChatCompletionResponse
	err  error
}

// fakeCompleter replays steps in order and repeats the last one.
type fakeCompleter struct {
	mu       sync.Mutex
	steps    []completerStep
	requests []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	return f.steps[i].resp, f.steps[i].err
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func reply(content string) completerStep {
	return completerStep{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}}},
	}}
}

func httpFailure(status int) completerStep {
	return completerStep{err: &openai.APIError{HTTPStatusCode: status, Message: "upstream said no"}}
}

type fakeGenerator struct {
	reply   string
	prompts []string
	history [][]model.ConversationTurn
}

func (f *fakeGenerator) GenerateResponse(_ context.Context, prompt string, history []model.ConversationTurn, _ ...GenerateOption) string {
	f.prompts = append(f.prompts, prompt)
	f.history = append(f.history, history)
	return f.reply
}

type memoryCache struct {
	data   map[string][]byte
	getErr error
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memoryCache) Close() error { return nil }

func row(id, hood, price, sqft string) model.ListingRow {
	r := model.ListingRow{ID: id}
	if hood != "" {
		r.Neighborhood = &hood
	}
	if price != "" {
		r.SalePrice = &price
	}
	if sqft != "" {
		r.GrossSquareFeet = &sqft
	}
	addr := id + " Main St"
	r.Address = &addr
	return r
}

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }
