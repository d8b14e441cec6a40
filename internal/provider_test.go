package internal

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/iksnae/cursor-journal/testutil"
)

func seedThreeSessions(t *testing.T, path string) {
	t.Helper()
	// Three sessions with non-overlapping time ranges, 15 messages total.
	testutil.SeedSession(t, path, testutil.SessionFixture{
		ComposerID: "composer-early", Name: "early work",
		CreatedAt: 1000, LastUpdatedAt: 1900,
		Bubbles: []testutil.BubbleFixture{
			{BubbleID: "e1", Type: 1, Text: "early q1"},
			{BubbleID: "e2", Type: 2, Text: "early a1"},
			{BubbleID: "e3", Type: 1, Text: "early q2"},
			{BubbleID: "e4", Type: 2, Text: "early a2"},
			{BubbleID: "e5", Type: 1, Text: "early q3"},
		},
	})
	testutil.SeedSession(t, path, testutil.SessionFixture{
		ComposerID: "composer-mid", Name: "mid work",
		CreatedAt: 3000, LastUpdatedAt: 3900,
		Bubbles: []testutil.BubbleFixture{
			{BubbleID: "m1", Type: 1, Text: "mid q1"},
			{BubbleID: "m2", Type: 2, Text: "mid a1"},
			{BubbleID: "m3", Type: 1, Text: "mid q2"},
			{BubbleID: "m4", Type: 2, Text: "mid a2"},
			{BubbleID: "m5", Type: 1, Text: "mid q3"},
		},
	})
	testutil.SeedSession(t, path, testutil.SessionFixture{
		ComposerID: "composer-late", Name: "late work",
		CreatedAt: 5000, LastUpdatedAt: 5900,
		Bubbles: []testutil.BubbleFixture{
			{BubbleID: "l1", Type: 1, Text: "late q1"},
			{BubbleID: "l2", Type: 2, Text: "late a1"},
			{BubbleID: "l3", Type: 1, Text: "late q2"},
			{BubbleID: "l4", Type: 2, Text: "late a2"},
			{BubbleID: "l5", Type: 1, Text: "late q3"},
		},
	})
}

func TestGetMessagesWindowSelectsOneSession(t *testing.T) {
	root := t.TempDir()
	path := testutil.CreateStoreFixture(t, root, "state.vscdb")
	seedThreeSessions(t, path)

	provider := &SessionProvider{}
	window := newWindow(2500, 4500, StrategyCommitBased)

	got, err := provider.GetMessages(context.Background(), root, window)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d messages, want exactly the 5 from the mid session", len(got))
	}
	for _, msg := range got {
		if msg.ComposerID != "composer-mid" {
			t.Errorf("message from %q leaked into the window", msg.ComposerID)
		}
		if msg.Timestamp == nil || *msg.Timestamp < window.StartMs || *msg.Timestamp > window.EndMs {
			t.Errorf("message timestamp %v outside window", msg.Timestamp)
		}
	}
}

func TestGetMessagesDropsNonTextBubbles(t *testing.T) {
	root := t.TempDir()
	path := testutil.CreateStoreFixture(t, root, "state.vscdb")
	testutil.SeedSession(t, path, testutil.SessionFixture{
		ComposerID: "composer-a", Name: "mixed",
		CreatedAt: 1000, LastUpdatedAt: 2000,
		Bubbles: []testutil.BubbleFixture{
			{BubbleID: "b1", Type: 1, Text: "real question"},
			{BubbleID: "b2", Type: 2, Text: ""}, // thinking record, no surfaced text
			{BubbleID: "b3", Type: 2, Text: "real answer"},
		},
	})

	provider := &SessionProvider{}
	got, err := provider.GetMessages(context.Background(), root, newWindow(500, 2500, StrategyCommitBased))
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2 (thinking record excluded)", len(got))
	}
	for _, msg := range got {
		if msg.Content == "" {
			t.Error("empty content leaked into output")
		}
	}
}

func TestGetMessagesDeterministicTieBreak(t *testing.T) {
	root := t.TempDir()
	path := testutil.CreateStoreFixture(t, root, "state.vscdb")
	// Two sessions sharing an identical coarse timestamp.
	for _, id := range []string{"composer-zeta", "composer-alpha"} {
		testutil.SeedSession(t, path, testutil.SessionFixture{
			ComposerID: id, Name: id,
			CreatedAt: 4000, LastUpdatedAt: 4500,
			Bubbles: []testutil.BubbleFixture{
				{BubbleID: id + "-1", Type: 1, Text: "question from " + id},
				{BubbleID: id + "-2", Type: 2, Text: "answer from " + id},
			},
		})
	}

	provider := &SessionProvider{}
	window := newWindow(3500, 5000, StrategyCommitBased)

	first, err := provider.GetMessages(context.Background(), root, window)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	second, err := provider.GetMessages(context.Background(), root, window)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatal("two runs over identical data produced different orders")
	}
	// Equal timestamps break ties lexicographically by composerId.
	if len(first) != 4 {
		t.Fatalf("got %d messages, want 4", len(first))
	}
	if first[0].ComposerID != "composer-alpha" || first[3].ComposerID != "composer-zeta" {
		t.Errorf("tie-break order wrong: %q ... %q", first[0].ComposerID, first[3].ComposerID)
	}
}

func TestGetMessagesSkipsCorruptStore(t *testing.T) {
	root := t.TempDir()
	good := testutil.CreateStoreFixture(t, root, "state.vscdb")
	testutil.SeedSession(t, good, testutil.SessionFixture{
		ComposerID: "composer-good", Name: "good",
		CreatedAt: 1000, LastUpdatedAt: 2000,
		Bubbles: []testutil.BubbleFixture{{BubbleID: "g1", Type: 1, Text: "survives"}},
	})
	// A chunk with drifted schema alongside the good one.
	testutil.CreateEmptySchemaStore(t, root, "store.db")

	provider := &SessionProvider{}
	got, err := provider.GetMessages(context.Background(), root, newWindow(500, 2500, StrategyCommitBased))
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "survives" {
		t.Errorf("good store's data lost when sibling chunk was corrupt: %v", got)
	}
}

func TestGetMessagesAcrossMultipleChunks(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		sub := fmt.Sprintf("chunk-%d", i)
		path := testutil.CreateStoreFixture(t, testutil.MkSubdir(t, root, sub), "state.vscdb")
		testutil.SeedSession(t, path, testutil.SessionFixture{
			ComposerID: fmt.Sprintf("composer-%d", i), Name: sub,
			CreatedAt: int64(1000 * (i + 1)), LastUpdatedAt: int64(1000*(i+1) + 500),
			Bubbles: []testutil.BubbleFixture{
				{BubbleID: fmt.Sprintf("c%d-1", i), Type: 1, Text: fmt.Sprintf("from chunk %d", i)},
			},
		})
	}

	provider := &SessionProvider{Concurrency: 2}
	got, err := provider.GetMessages(context.Background(), root, newWindow(0, 10_000, StrategyCommitBased))
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages across chunks, want 3", len(got))
	}
	// Collected concurrently, sorted deterministically afterwards.
	for i := 1; i < len(got); i++ {
		if *got[i-1].Timestamp > *got[i].Timestamp {
			t.Error("merged output not sorted by timestamp")
		}
	}
}

func TestGetMessagesEmptyWorkspace(t *testing.T) {
	provider := &SessionProvider{}
	got, err := provider.GetMessages(context.Background(), t.TempDir(), newWindow(0, 1000, StrategyCommitBased))
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages from an empty workspace", len(got))
	}
}

func TestGetMessagesLegacyChunkFallsBackToFlatArrays(t *testing.T) {
	root := t.TempDir()
	path := testutil.CreateStoreFixture(t, root, "state.vscdb")
	testutil.SeedPrompts(t, path, "legacy question one", "legacy question two")
	testutil.SeedGenerations(t, path,
		testutil.Generation{UnixMs: 3000, Description: "legacy answer"},
	)

	provider := &SessionProvider{}
	got, err := provider.GetMessages(context.Background(), root, newWindow(2500, 4500, StrategyCommitBased))
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d messages, want 2 prompts + 1 generation", len(got))
	}
	users, assistants := 0, 0
	for _, msg := range got {
		switch msg.Role {
		case "user":
			users++
		case "assistant":
			assistants++
		}
	}
	if users != 2 || assistants != 1 {
		t.Errorf("roles = %d user / %d assistant, want 2/1", users, assistants)
	}
}

func TestGetMessagesLegacyChunkOutsideWindowExcluded(t *testing.T) {
	root := t.TempDir()
	path := testutil.CreateStoreFixture(t, root, "state.vscdb")
	testutil.SeedPrompts(t, path, "old question")
	testutil.SeedGenerations(t, path,
		testutil.Generation{UnixMs: 100, Description: "old answer"},
	)

	provider := &SessionProvider{}
	got, err := provider.GetMessages(context.Background(), root, newWindow(2500, 4500, StrategyCommitBased))
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages from a chunk entirely outside the window", len(got))
	}
}

func TestGetMessagesSessionChunkIgnoresVestigialArrays(t *testing.T) {
	root := t.TempDir()
	path := testutil.CreateStoreFixture(t, root, "state.vscdb")
	seedThreeSessions(t, path)
	testutil.SeedPrompts(t, path, "duplicate flat copy")

	provider := &SessionProvider{}
	got, err := provider.GetMessages(context.Background(), root, newWindow(2500, 4500, StrategyCommitBased))
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	for _, msg := range got {
		if msg.Content == "duplicate flat copy" {
			t.Error("flat array leaked into output from a chunk with composer sessions")
		}
	}
}

func TestMessagesFromStoresConcatenatesInStoreOrder(t *testing.T) {
	// One composer split across two chunks with identical coarse
	// timestamps: relative order must follow the store list, not worker
	// completion order.
	root := t.TempDir()
	first := testutil.CreateStoreFixture(t, testutil.MkSubdir(t, root, "a"), "state.vscdb")
	second := testutil.CreateStoreFixture(t, testutil.MkSubdir(t, root, "b"), "state.vscdb")

	testutil.SeedSession(t, first, testutil.SessionFixture{
		ComposerID: "split", Name: "split session",
		CreatedAt: 3000, LastUpdatedAt: 3000,
		Bubbles: []testutil.BubbleFixture{
			{BubbleID: "a1", Type: 1, Text: "first chunk q"},
			{BubbleID: "a2", Type: 2, Text: "first chunk a"},
		},
	})
	testutil.SeedSession(t, second, testutil.SessionFixture{
		ComposerID: "split", Name: "split session",
		CreatedAt: 3000, LastUpdatedAt: 3000,
		Bubbles: []testutil.BubbleFixture{
			{BubbleID: "b1", Type: 1, Text: "second chunk q"},
			{BubbleID: "b2", Type: 2, Text: "second chunk a"},
		},
	})

	provider := &SessionProvider{Concurrency: 2}
	stores := []string{first, second}
	window := newWindow(2500, 4500, StrategyCommitBased)

	want := []string{"a1", "a2", "b1", "b2"}
	for run := 0; run < 10; run++ {
		got, err := provider.MessagesFromStores(context.Background(), stores, window)
		if err != nil {
			t.Fatalf("MessagesFromStores() error = %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("run %d: got %d messages, want %d", run, len(got), len(want))
		}
		for i, bubbleID := range want {
			if got[i].BubbleID != bubbleID {
				t.Fatalf("run %d position %d = %q, want %q (order depends on worker timing)",
					run, i, got[i].BubbleID, bubbleID)
			}
		}
	}
}

func TestGetMessagesQueryTimeoutSkipsStuckStores(t *testing.T) {
	root := t.TempDir()
	path := testutil.CreateStoreFixture(t, root, "state.vscdb")
	seedThreeSessions(t, path)

	window := newWindow(2500, 4500, StrategyCommitBased)

	// An already-expired per-query deadline makes every query fail, which
	// degrades to skipping the store rather than hanging or erroring.
	expired := &SessionProvider{QueryTimeout: time.Nanosecond}
	got, err := expired.GetMessages(context.Background(), root, window)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages despite an expired query deadline", len(got))
	}

	generous := &SessionProvider{QueryTimeout: time.Minute}
	got, err = generous.GetMessages(context.Background(), root, window)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("got %d messages with a generous deadline, want 5", len(got))
	}
}
