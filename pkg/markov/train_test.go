package markov

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestIngestCharScenario(t *testing.T) {
	c := newCharChain(t, 1)
	c.Ingest("abc")

	if !c.Parsed() {
		t.Fatal("expected chain to be parsed after ingesting 'abc'")
	}
	if keys := c.Keys(); !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
	assertSuccessors(t, c, "a", []Successor{{Token: "b", Count: 1}})
	assertSuccessors(t, c, "b", []Successor{{Token: "c", Count: 1}})
	if starts := c.StartKeys(); !reflect.DeepEqual(starts, []string{"a"}) {
		t.Errorf("StartKeys() = %v, want [a]", starts)
	}
}

func TestIngestDuplicateTransitions(t *testing.T) {
	c := newCharChain(t, 1)
	c.Ingest("abacab")

	// First-seen order: b before c.
	assertSuccessors(t, c, "a", []Successor{{Token: "b", Count: 2}, {Token: "c", Count: 1}})
	assertSuccessors(t, c, "b", []Successor{{Token: "a", Count: 1}})
	assertSuccessors(t, c, "c", []Successor{{Token: "a", Count: 1}})
}

func TestIngestIdempotent(t *testing.T) {
	once := newTestChain(t, 2)
	twice := newTestChain(t, 2)

	sample := "the cat sat on the mat and the cat slept"
	once.Ingest(sample)
	twice.Ingest(sample)
	twice.Ingest(sample)

	if !reflect.DeepEqual(once.Keys(), twice.Keys()) {
		t.Fatalf("keys differ: %v vs %v", once.Keys(), twice.Keys())
	}
	for _, key := range once.Keys() {
		if !reflect.DeepEqual(once.Successors(key), twice.Successors(key)) {
			t.Errorf("successors of %q differ: %+v vs %+v", key, once.Successors(key), twice.Successors(key))
		}
	}
	if !reflect.DeepEqual(once.StartKeys(), twice.StartKeys()) {
		t.Errorf("start keys differ: %v vs %v", once.StartKeys(), twice.StartKeys())
	}
	if once.Stats() != twice.Stats() {
		t.Errorf("stats differ: %+v vs %+v", once.Stats(), twice.Stats())
	}
}

func TestIngestDistinctSamplesShareStarts(t *testing.T) {
	c := newTestChain(t, 1)
	c.Ingest("hello world")
	c.Ingest("hello there")

	want := []string{"hello", "hello"}
	if starts := c.StartKeys(); !reflect.DeepEqual(starts, want) {
		t.Errorf("StartKeys() = %v, want %v", starts, want)
	}
	assertSuccessors(t, c, "hello", []Successor{{Token: "world", Count: 1}, {Token: "there", Count: 1}})
}

func TestIngestExclusionMarker(t *testing.T) {
	testCases := []struct {
		name   string
		order  int
		sample string
	}{
		{name: "Leading mention", order: 1, sample: "@alice good morning friends"},
		{name: "Middle mention", order: 2, sample: "good morning @bob@example.social and friends"},
		{name: "Trailing mentions", order: 1, sample: "see you later @carol @dave"},
		{name: "Only mentions", order: 1, sample: "@erin @frank"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestChain(t, tc.order)
			c.Ingest(tc.sample)

			for _, key := range c.Keys() {
				if strings.Contains(key, "@") {
					t.Errorf("key %q contains an excluded token", key)
				}
				for _, s := range c.Successors(key) {
					if strings.HasPrefix(s.Token, "@") {
						t.Errorf("successor %q of key %q is an excluded token", s.Token, key)
					}
				}
			}
			for _, start := range c.StartKeys() {
				if strings.Contains(start, "@") {
					t.Errorf("start key %q contains an excluded token", start)
				}
			}
		})
	}
}

func TestIngestExclusionSkipsWindowPosition(t *testing.T) {
	c := newTestChain(t, 1)
	c.Ingest("good @someone morning")

	// The mention is removed from the stream, so "good" links straight to "morning".
	assertSuccessors(t, c, "good", []Successor{{Token: "morning", Count: 1}})
}

func TestIngestOnlyExcludedTokens(t *testing.T) {
	c := newTestChain(t, 1)
	c.Ingest("@a @b")

	if c.Parsed() {
		t.Error("a sample of only excluded tokens should not mark the chain parsed")
	}
	if s := c.Stats(); s.Samples != 1 || s.StartKeys != 0 {
		t.Errorf("stats = %+v, want 1 sample and 0 start keys", s)
	}
}

func TestIngestExclusionDisabled(t *testing.T) {
	c := newTestChain(t, 1, WithExclusionMarker(""))
	c.Ingest("hi @there")

	assertSuccessors(t, c, "hi", []Successor{{Token: "@there", Count: 1}})
}

func TestIngestCustomExclusionMarker(t *testing.T) {
	c := newTestChain(t, 1, WithExclusionMarker("#"))
	c.Ingest("loving #golang @today")

	assertSuccessors(t, c, "loving", []Successor{{Token: "@today", Count: 1}})
}

func TestIngestCountFidelity(t *testing.T) {
	for _, n := range []int{1, 2, 5, 25} {
		t.Run(fmt.Sprintf("Repeat%d", n), func(t *testing.T) {
			c := newTestChain(t, 2)
			c.Ingest(strings.TrimSpace(strings.Repeat("a b c ", n)))

			assertSuccessors(t, c, "a b", []Successor{{Token: "c", Count: n}})
		})
	}
}

func TestIngestShortSample(t *testing.T) {
	c := newTestChain(t, 3)
	c.Ingest("hi there")

	if len(c.Keys()) != 0 {
		t.Errorf("expected no keys from a short sample, got %v", c.Keys())
	}
	if !c.Parsed() {
		t.Error("a short non-empty sample should still mark the chain parsed")
	}
	if starts := c.StartKeys(); !reflect.DeepEqual(starts, []string{"hi there"}) {
		t.Errorf("StartKeys() = %v, want [\"hi there\"]", starts)
	}

	c.Ingest("hi there")
	if s := c.Stats(); s.Samples != 1 || s.StartKeys != 1 {
		t.Errorf("re-ingesting a short sample changed the model: %+v", s)
	}
}

func TestIngestEmptySample(t *testing.T) {
	c := newTestChain(t, 1)
	c.Ingest("")
	c.Ingest("   ")

	if c.Parsed() {
		t.Error("empty samples should not mark the chain parsed")
	}
	if s := c.Stats(); s.Samples != 2 || s.Keys != 0 || s.StartKeys != 0 {
		t.Errorf("stats = %+v, want 2 seen samples and nothing else", s)
	}
}

func TestIngestKeysHaveOrderTokens(t *testing.T) {
	c := newTestChain(t, 3)
	c.Ingest("one two three four five six seven")
	c.Ingest("two three four eight")

	for _, key := range c.Keys() {
		if n := len(strings.Fields(key)); n != 3 {
			t.Errorf("key %q has %d tokens, want 3", key, n)
		}
		if len(c.Successors(key)) == 0 {
			t.Errorf("key %q has no successors", key)
		}
	}
	assertSuccessors(t, c, "two three four", []Successor{{Token: "five", Count: 1}, {Token: "eight", Count: 1}})
}

func TestTrain(t *testing.T) {
	c := newTestChain(t, 2)
	data := "a b c\n\na b d\na b c\n"

	lines, err := c.Train(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	if lines != 3 {
		t.Errorf("expected 3 non-empty lines, got %d", lines)
	}
	// The third line duplicates the first and must be ignored.
	assertSuccessors(t, c, "a b", []Successor{{Token: "c", Count: 1}, {Token: "d", Count: 1}})
}

func TestTrainCancelled(t *testing.T) {
	c := newTestChain(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Train(ctx, strings.NewReader("a b\nc d\n")); err == nil {
		t.Error("expected an error from a cancelled context")
	}
}

func BenchmarkIngest(b *testing.B) {
	corpus := createBenchmarkCorpus()

	for _, order := range []int{1, 2, 3} {
		b.Run(fmt.Sprintf("Order%d", order), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				c, _ := New(order)
				for _, line := range corpus {
					c.Ingest(line)
				}
			}
		})
	}
}

func TestTrainWhileSwappingLogger(t *testing.T) {
	c := newTestChain(t, 2)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.SetLogger(logger)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if _, err := c.Train(context.Background(), strings.NewReader(fmt.Sprintf("sample %d here\n", i))); err != nil {
				t.Errorf("Train() error = %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if got := c.Stats().Samples; got != 100 {
		t.Errorf("Stats().Samples = %d, want 100", got)
	}
}
