package markov

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
)

// DefaultExclusionMarker is the prefix of tokens that are never learned,
// such as @-mentions of other accounts.
const DefaultExclusionMarker = "@"

var (
	// ErrInvalidOrder is returned by New when the requested order is not positive.
	ErrInvalidOrder = errors.New("markov: order must be a positive integer")
	// ErrNoSuccessor is returned by PickSuccessor when a key has never been
	// observed. Generation treats it as the end of a run.
	ErrNoSuccessor = errors.New("markov: no successor for key")
)

// Successor is a token observed after a key, together with the number of
// times that transition has been seen.
type Successor struct {
	Token string
	Count int
}

// successorList keeps successors in first-seen order, with an index for
// constant time increments.
type successorList struct {
	entries []Successor
	index   map[string]int
	total   int
}

func (l *successorList) observe(token string) {
	if i, ok := l.index[token]; ok {
		l.entries[i].Count++
	} else {
		l.index[token] = len(l.entries)
		l.entries = append(l.entries, Successor{Token: token, Count: 1})
	}
	l.total++
}

// Chain is an in-memory Markov chain model of a fixed order. It learns from
// plain text samples through Ingest and produces new text through Generate.
//
// A Chain is safe for concurrent use: ingestion is serialized, and any number
// of generations may run in parallel with each other.
type Chain struct {
	mu        sync.RWMutex
	order     int
	tokenizer Tokenizer
	exclude   string
	table     map[string]*successorList
	starts    [][]string
	seen      map[string]struct{}
	parsed    bool

	rngMu  sync.Mutex
	rng    *rand.Rand
	logger *slog.Logger
}

// Option is a function that configures a Chain.
type Option func(*Chain)

// WithTokenizer sets the tokenizer, and with it the granularity of the model.
// Default: NewWordTokenizer()
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chain) {
		if t != nil {
			c.tokenizer = t
		}
	}
}

// WithExclusionMarker sets the prefix of tokens that are dropped before
// learning. An empty marker disables exclusion.
// Default: "@"
func WithExclusionMarker(marker string) Option {
	return func(c *Chain) {
		c.exclude = marker
	}
}

// WithRandSource makes the chain draw from src instead of the global
// generator. Useful for reproducible output.
func WithRandSource(src rand.Source) Option {
	return func(c *Chain) {
		if src != nil {
			c.rng = rand.New(src)
		}
	}
}

// New creates an empty, unparsed Chain of the given order. It returns
// ErrInvalidOrder if order is not positive.
func New(order int, opts ...Option) (*Chain, error) {
	if order <= 0 {
		return nil, ErrInvalidOrder
	}
	c := &Chain{
		order:     order,
		tokenizer: NewWordTokenizer(),
		exclude:   DefaultExclusionMarker,
		table:     make(map[string]*successorList),
		seen:      make(map[string]struct{}),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetLogger sets the logger for the Chain. By default, all logs are discarded.
func (c *Chain) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.mu.Lock()
		c.logger = logger
		c.mu.Unlock()
	}
}

// Order returns the number of tokens per key.
func (c *Chain) Order() int {
	return c.order
}

// Tokenizer returns the tokenizer the chain was built with.
func (c *Chain) Tokenizer() Tokenizer {
	return c.tokenizer
}

// Parsed reports whether the chain has learned at least one token.
func (c *Chain) Parsed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parsed
}

// key joins tokens into a table key.
func (c *Chain) key(tokens []string) string {
	return strings.Join(tokens, c.tokenizer.Separator())
}

// excluded reports whether a token must never be stored.
func (c *Chain) excluded(token string) bool {
	return c.exclude != "" && strings.HasPrefix(token, c.exclude)
}

// intN returns a uniform random int in [0, n).
func (c *Chain) intN(n int) int {
	if c.rng == nil {
		return rand.IntN(n)
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.IntN(n)
}

// float64 returns a uniform random float in [0, 1).
func (c *Chain) float64() float64 {
	if c.rng == nil {
		return rand.Float64()
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64()
}
