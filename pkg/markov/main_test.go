package markov

import (
	"go/build"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// newTestChain creates a Chain with a fixed random source so that test output
// is reproducible.
func newTestChain(t *testing.T, order int, opts ...Option) *Chain {
	t.Helper()
	opts = append([]Option{WithRandSource(rand.NewPCG(1, 2))}, opts...)
	c, err := New(order, opts...)
	if err != nil {
		t.Fatalf("New(%d) error = %v", order, err)
	}
	return c
}

// newCharChain is a convenience helper for character-granularity chains.
func newCharChain(t *testing.T, order int) *Chain {
	t.Helper()
	return newTestChain(t, order, WithTokenizer(NewCharTokenizer()))
}

// assertSuccessors compares the successors of key against want, including order.
func assertSuccessors(t *testing.T, c *Chain, key string, want []Successor) {
	t.Helper()
	got := c.Successors(key)
	if len(got) != len(want) {
		t.Fatalf("Successors(%q) = %+v, want %+v", key, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Successors(%q)[%d] = %+v, want %+v", key, i, got[i], want[i])
		}
	}
}

var (
	benchmarkCorpus []string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus of lines for benchmarking.
func createBenchmarkCorpus() []string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				sb.Reset()
				sb.WriteString("this is a fallback corpus for benchmarking.\nit is not very long but will prevent a crash.\n")
				break
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		for _, line := range strings.Split(sb.String(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				benchmarkCorpus = append(benchmarkCorpus, line)
			}
		}
	})
	return benchmarkCorpus
}
