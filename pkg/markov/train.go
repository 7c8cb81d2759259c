package markov

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Ingest learns from a single sample. A sample that is byte-for-byte equal to
// one already ingested has no effect.
//
// Tokens beginning with the exclusion marker are dropped before windowing.
// The first Order() retained tokens (or fewer, for short samples) are
// registered as a start key. Samples shorter than Order() tokens contribute
// no transitions but are still remembered as seen.
func (c *Chain) Ingest(sample string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[sample]; ok {
		return
	}
	c.seen[sample] = struct{}{}

	raw := c.tokenizer.Split(sample)
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		if !c.excluded(token) {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return
	}
	c.parsed = true

	start := make([]string, min(c.order, len(tokens)))
	copy(start, tokens)
	c.starts = append(c.starts, start)

	window := make([]string, 0, c.order)
	window = append(window, start...)
	links := 0
	for _, next := range tokens[len(start):] {
		key := c.key(window)
		list, ok := c.table[key]
		if !ok {
			list = &successorList{index: make(map[string]int)}
			c.table[key] = list
		}
		list.observe(next)
		links++

		copy(window, window[1:])
		window[len(window)-1] = next
	}

	c.logger.Debug("Sample ingested",
		slog.Int("tokens", len(tokens)),
		slog.Int("excluded_tokens", len(raw)-len(tokens)),
		slog.Int("links_observed", links),
	)
}

// Train reads newline-separated samples from r and ingests each non-empty
// line. It returns the number of lines read. Reading stops early if ctx is
// cancelled.
func (c *Chain) Train(ctx context.Context, r io.Reader) (int, error) {
	// maxSampleLength prevents a single huge line from failing the whole read
	const maxSampleLength = 1 << 20

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSampleLength)

	var lines int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return lines, err
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		c.Ingest(line)
		lines++
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("could not read training data: %w", err)
	}

	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()
	logger.InfoContext(ctx, "Training completed",
		slog.Int("model_order", c.order),
		slog.Int("samples_read", lines),
	)
	return lines, nil
}
