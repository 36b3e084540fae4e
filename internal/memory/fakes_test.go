package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/cache"
	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// --- Fakes ---

// fakeCacheStore is an in-memory cache.Store with injectable failures and a
// real per-user lease so lock discipline is exercised.
type fakeCacheStore struct {
	mu      sync.Mutex
	buffers map[string][]model.Turn
	leases  map[string]bool

	failGets    int // next N GetTurns calls fail with StoreUnavailable
	failAppends int // next N AppendTurns calls fail with StoreUnavailable
	getCalls    int
	appendCalls int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{
		buffers: make(map[string][]model.Turn),
		leases:  make(map[string]bool),
	}
}

func (f *fakeCacheStore) GetTurns(_ context.Context, userID string) ([]model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGets > 0 {
		f.failGets--
		return nil, model.NewStoreUnavailable("cache", fmt.Errorf("connection refused"))
	}
	out := make([]model.Turn, len(f.buffers[userID]))
	copy(out, f.buffers[userID])
	return out, nil
}

func (f *fakeCacheStore) AppendTurns(_ context.Context, userID string, turns []model.Turn, window int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.failAppends > 0 {
		f.failAppends--
		return model.NewStoreUnavailable("cache", fmt.Errorf("connection refused"))
	}
	buf := append(f.buffers[userID], turns...)
	if len(buf) > window {
		buf = buf[len(buf)-window:]
	}
	f.buffers[userID] = buf
	return nil
}

func (f *fakeCacheStore) AcquireLease(_ context.Context, userID string, _ time.Duration) (cache.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leases[userID] {
		return nil, model.ErrBufferLocked
	}
	f.leases[userID] = true
	return &fakeLease{store: f, userID: userID}, nil
}

type fakeLease struct {
	store  *fakeCacheStore
	userID string
}

func (l *fakeLease) Release(context.Context) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.leases[l.userID] = false
	return nil
}

// fakeIndex is an in-memory archive.Index that honors the per-user filter
// inside the query, ranks by Euclidean distance, and supports failure
// injection keyed by content.
type fakeIndex struct {
	mu      sync.Mutex
	records map[string]model.ArchivedTurn // keyed by object ID (TurnID)

	failInsertContent string // inserts of this content fail while budget > 0
	failInsertBudget  int
	failQueries       int

	// leakFrom, when set, makes queries include another user's records,
	// simulating a broken filter so scope enforcement can be tested.
	leakFrom string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]model.ArchivedTurn)}
}

func (f *fakeIndex) Insert(_ context.Context, rec model.ArchivedTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertBudget > 0 && rec.Content == f.failInsertContent {
		f.failInsertBudget--
		return fmt.Errorf("weaviate status 503")
	}
	if _, exists := f.records[rec.TurnID]; exists {
		return nil // idempotent re-insert
	}
	f.records[rec.TurnID] = rec
	return nil
}

func (f *fakeIndex) Query(_ context.Context, userID string, vec []float32, k int) ([]model.ArchiveHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failQueries > 0 {
		f.failQueries--
		return nil, fmt.Errorf("weaviate status 503")
	}
	var hits []model.ArchiveHit
	for _, rec := range f.records {
		if rec.UserID != userID && !(f.leakFrom != "" && rec.UserID == f.leakFrom) {
			continue
		}
		hits = append(hits, model.ArchiveHit{
			TurnID:       rec.TurnID,
			UserID:       rec.UserID,
			Role:         rec.Role,
			Content:      rec.Content,
			CreationTime: rec.CreationTime,
			Distance:     euclidean(vec, rec.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func euclidean(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// mapEmbedder returns preset vectors for known texts and a deterministic
// hash-derived vector otherwise.
type mapEmbedder struct {
	vectors map[string][]float32
	fail    int // next N calls fail
	mu      sync.Mutex
}

func (e *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail > 0 {
		e.fail--
		return nil, fmt.Errorf("embedding backend timeout")
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	x := h.Sum32()
	return []float32{
		float32(x%97) / 97,
		float32(x%89) / 89,
		float32(x%83) / 83,
	}, nil
}

// --- Shared helpers ---

func turnAt(userID string, role model.Role, content string, offset time.Duration) model.Turn {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return model.Turn{UserID: userID, Role: role, Content: content, Timestamp: base.Add(offset)}
}

func contents(turns []model.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Content
	}
	return out
}
