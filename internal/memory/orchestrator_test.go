package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

func newTestOrchestrator(t *testing.T, window, topK int) (*Orchestrator, *fakeCacheStore, *fakeIndex, *mapEmbedder) {
	t.Helper()
	store := newFakeCacheStore()
	idx := newFakeIndex()
	emb := &mapEmbedder{vectors: map[string][]float32{}}
	short := newShortTerm(store, window)
	long := newLongTerm(idx, emb)
	return NewOrchestrator(short, long, topK), store, idx, emb
}

func TestBuildContextOrdering(t *testing.T) {
	orch, store, _, emb := newTestOrchestrator(t, 10, 3)
	ctx := context.Background()

	// Three archived turns at staggered distances from the query vector.
	emb.vectors["where should I hike next?"] = []float32{1, 0, 0}
	emb.vectors["the Kamikochi trail was quiet"] = []float32{0.95, 0.05, 0}
	emb.vectors["I enjoyed the Takao night hike"] = []float32{0.8, 0.2, 0}
	emb.vectors["rental boots were size 42"] = []float32{0.6, 0.4, 0}
	if err := orch.PersistTurns(ctx, "alice", []model.Turn{
		turnAt("alice", model.RoleHuman, "rental boots were size 42", 0),
		turnAt("alice", model.RoleHuman, "the Kamikochi trail was quiet", time.Minute),
		turnAt("alice", model.RoleHuman, "I enjoyed the Takao night hike", 2*time.Minute),
	}); err != nil {
		t.Fatalf("persist archive seed: %v", err)
	}

	// Replace the buffer with two fresh turns so the short-term section is
	// distinguishable from the archived ones.
	store.buffers["alice"] = []model.Turn{
		turnAt("alice", model.RoleHuman, "good morning", 3*time.Minute),
		turnAt("alice", model.RoleAssistant, "morning! ready to plan?", 4*time.Minute),
	}

	composed, err := orch.BuildContext(ctx, "alice", "where should I hike next?")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	// Long-term hits by descending similarity, then the buffer in
	// chronological order, then the synthesized current turn.
	want := []string{
		"the Kamikochi trail was quiet",
		"I enjoyed the Takao night hike",
		"rental boots were size 42",
		"good morning",
		"morning! ready to plan?",
		"where should I hike next?",
	}
	got := contents(composed)
	if len(got) != len(want) {
		t.Fatalf("expected %d turns, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q want %q\nfull context: %v", i, got[i], want[i], got)
		}
	}

	last := composed[len(composed)-1]
	if last.Role != model.RoleHuman || last.UserID != "alice" {
		t.Fatalf("synthesized turn malformed: %+v", last)
	}
	if last.Timestamp.IsZero() {
		t.Fatal("synthesized turn missing timestamp")
	}
}

func TestBuildContextFirstConversation(t *testing.T) {
	orch, _, _, _ := newTestOrchestrator(t, 10, 5)

	composed, err := orch.BuildContext(context.Background(), "newcomer", "hi there")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if len(composed) != 1 {
		t.Fatalf("expected only the synthesized turn, got %d", len(composed))
	}
	if composed[0].Content != "hi there" || composed[0].Role != model.RoleHuman {
		t.Fatalf("unexpected synthesized turn: %+v", composed[0])
	}
}

func TestBuildContextAllOrNothing(t *testing.T) {
	orch, store, _, _ := newTestOrchestrator(t, 10, 5)
	store.failGets = 100

	composed, err := orch.BuildContext(context.Background(), "alice", "hello")
	if err == nil {
		t.Fatal("expected failure when the buffer store is down")
	}
	if composed != nil {
		t.Fatalf("expected no partial context, got %d turns", len(composed))
	}
}

func TestPersistTurnsUpdatesBothMemories(t *testing.T) {
	orch, store, idx, _ := newTestOrchestrator(t, 10, 5)
	ctx := context.Background()

	turns := []model.Turn{
		turnAt("alice", model.RoleHuman, "any onsen near Hakone?", 0),
		turnAt("alice", model.RoleAssistant, "Tenzan is a local favorite.", time.Minute),
	}
	if err := orch.PersistTurns(ctx, "alice", turns); err != nil {
		t.Fatalf("PersistTurns: %v", err)
	}

	if got := len(store.buffers["alice"]); got != 2 {
		t.Fatalf("expected 2 buffered turns, got %d", got)
	}
	if got := len(idx.records); got != 2 {
		t.Fatalf("expected 2 archived turns, got %d", got)
	}
}

func TestPersistTurnsReportsFailedStage(t *testing.T) {
	ctx := context.Background()
	turns := []model.Turn{turnAt("alice", model.RoleHuman, "hello", 0)}

	t.Run("short-term", func(t *testing.T) {
		orch, store, idx, _ := newTestOrchestrator(t, 10, 5)
		store.failAppends = 100

		err := orch.PersistTurns(ctx, "alice", turns)
		var perr model.PersistError
		if !errors.As(err, &perr) {
			t.Fatalf("expected PersistError, got %v", err)
		}
		if perr.Stage != "short-term" {
			t.Fatalf("expected short-term stage, got %q", perr.Stage)
		}
		// Archive must not be written when the buffer write fails.
		if len(idx.records) != 0 {
			t.Fatalf("archive written despite buffer failure: %d records", len(idx.records))
		}
	})

	t.Run("long-term", func(t *testing.T) {
		orch, store, idx, _ := newTestOrchestrator(t, 10, 5)
		idx.failInsertContent = "hello"
		idx.failInsertBudget = 100

		err := orch.PersistTurns(ctx, "alice", turns)
		var perr model.PersistError
		if !errors.As(err, &perr) {
			t.Fatalf("expected PersistError, got %v", err)
		}
		if perr.Stage != "long-term" {
			t.Fatalf("expected long-term stage, got %q", perr.Stage)
		}
		if len(store.buffers["alice"]) != 1 {
			t.Fatal("buffer write should have landed before the archive failure")
		}
	})
}

// TestRecallAfterBufferEviction walks the full subsystem through the case the
// hybrid design exists for: a fact mentioned long ago has been evicted from
// the bounded buffer but is still retrievable by similarity from the archive.
func TestRecallAfterBufferEviction(t *testing.T) {
	orch, store, _, emb := newTestOrchestrator(t, 4, 3)
	ctx := context.Background()

	emb.vectors["I climbed Mt. Hotaka and loved the ridge line"] = []float32{1, 0, 0}
	emb.vectors["remind me about that mountain I mentioned"] = []float32{0.98, 0.02, 0}

	// Week one: the user mentions the mountain.
	if err := orch.PersistTurns(ctx, "alice", []model.Turn{
		turnAt("alice", model.RoleHuman, "I climbed Mt. Hotaka and loved the ridge line", 0),
	}); err != nil {
		t.Fatalf("persist original mention: %v", err)
	}

	// Weeks of unrelated chatter push the mention out of the window.
	for i := 0; i < 8; i++ {
		content := fmt.Sprintf("unrelated topic %d", i)
		emb.vectors[content] = []float32{0, 1, float32(i) / 8}
		turn := turnAt("alice", model.RoleHuman, content, time.Duration(i+1)*time.Hour)
		if err := orch.PersistTurns(ctx, "alice", []model.Turn{turn}); err != nil {
			t.Fatalf("persist filler %d: %v", i, err)
		}
	}

	for _, turn := range store.buffers["alice"] {
		if turn.Content == "I climbed Mt. Hotaka and loved the ridge line" {
			t.Fatal("original mention should have been evicted from the buffer")
		}
	}

	composed, err := orch.BuildContext(ctx, "alice", "remind me about that mountain I mentioned")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	found := false
	for _, turn := range composed {
		if turn.Content == "I climbed Mt. Hotaka and loved the ridge line" {
			found = true
		}
	}
	if !found {
		t.Fatalf("archived mention absent from composed context: %v", contents(composed))
	}
	// The mountain turn must rank ahead of the filler in the long-term
	// section, which occupies the head of the context.
	if composed[0].Content != "I climbed Mt. Hotaka and loved the ridge line" {
		t.Fatalf("expected the mention ranked first, got %q", composed[0].Content)
	}
}

func TestOrchestratorRejectsEmptyUser(t *testing.T) {
	orch, _, _, _ := newTestOrchestrator(t, 10, 5)
	if _, err := orch.BuildContext(context.Background(), "", "hello"); err == nil {
		t.Fatal("BuildContext accepted empty userID")
	}
	if err := orch.PersistTurns(context.Background(), "", []model.Turn{turnAt("a", model.RoleHuman, "x", 0)}); err == nil {
		t.Fatal("PersistTurns accepted empty userID")
	}
}
