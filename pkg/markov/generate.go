package markov

import (
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	temperature float64
	topK        int
}

func defaultGenerateOptions() *generateOptions {
	return &generateOptions{
		temperature: 1.0,
		topK:        0,
	}
}

// GenerateOption is a function that configures generation parameters. It's used
// as a variadic argument in Generate.
type GenerateOption func(*generateOptions)

// WithTemperature adjusts the randomness of the successor selection.
// A value of 1.0 is standard weighted random selection.
// Values > 1.0 increase randomness (making less frequent tokens more likely).
// Values < 1.0 decrease randomness (making more frequent tokens even more likely).
// A value of 0 or less results in deterministic selection (always choosing the most frequent token).
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts the selection pool to the top `k` most frequent successors
// at each step. A value of 0 disables Top-K sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

// PickSuccessor selects a successor of key with probability proportional to
// its observed count. It returns ErrNoSuccessor if key was never observed.
func (c *Chain) PickSuccessor(key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pick(key, defaultGenerateOptions())
}

func (c *Chain) pick(key string, options *generateOptions) (string, error) {
	list, ok := c.table[key]
	if !ok {
		return "", ErrNoSuccessor
	}
	return c.chooseNextToken(list.entries, list.total, options), nil
}

// Generate produces text of at least minLength units, where a unit is one
// token of the chain's tokenizer (a word, or a character).
//
// Output is built from independent runs. Each run starts from a random start
// key and follows weighted successors of its trailing Order() tokens until it
// reaches a key with no successors, or until the total output is long enough.
// Runs are joined with the tokenizer's separator.
//
// Generate returns "" if nothing has been learned yet or if minLength is not
// positive. It never fails.
func (c *Chain) Generate(minLength int, opts ...GenerateOption) string {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.parsed || len(c.starts) == 0 || minLength <= 0 {
		return ""
	}

	out := make([]string, 0, minLength)
	runs := 0
	for len(out) < minLength {
		out = c.walk(out, minLength, options)
		runs++
	}

	c.logger.Debug("Generation completed",
		slog.Int("model_order", c.order),
		slog.Int("min_length", minLength),
		slog.Int("generated_length", len(out)),
		slog.Int("runs", runs),
	)

	return strings.Join(out, c.tokenizer.Separator())
}

// walk appends one run to out and returns the extended slice. A run always
// emits its start key, so every call makes progress.
func (c *Chain) walk(out []string, minLength int, options *generateOptions) []string {
	start := c.starts[c.intN(len(c.starts))]
	runStart := len(out)
	out = append(out, start...)

	for len(out) < minLength {
		run := out[runStart:]
		if len(run) < c.order { // Start keys from short samples never match a full key
			break
		}
		next, err := c.pick(c.key(run[len(run)-c.order:]), options)
		if errors.Is(err, ErrNoSuccessor) { // Dead end in chain
			break
		}
		out = append(out, next)
	}
	return out
}

// chooseNextToken draws the token that follows the current key. Counts are
// the weights: topK keeps only the heaviest successors, and the temperature
// flattens (above 1) or sharpens (below 1) what is left. At or below zero
// the heaviest successor always wins. choices belongs to the chain's table
// and is only read.
func (c *Chain) chooseNextToken(choices []Successor, total int, options *generateOptions) string {
	if len(choices) == 1 {
		return choices[0].Token
	}
	if options.topK > 0 && options.topK < len(choices) {
		choices, total = heaviest(choices, options.topK)
	}

	switch t := options.temperature; {
	case t <= 0:
		return heaviestToken(choices)
	case t == 1:
		return c.drawByCount(choices, total)
	default:
		return c.drawTempered(choices, t)
	}
}

// heaviest returns the k successors with the highest counts, in descending
// order of count, and their summed count. Ties keep first-seen order.
func heaviest(choices []Successor, k int) ([]Successor, int) {
	sorted := make([]Successor, len(choices))
	copy(sorted, choices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	sorted = sorted[:k]

	total := 0
	for _, s := range sorted {
		total += s.Count
	}
	return sorted, total
}

// heaviestToken returns the earliest successor with the highest count.
func heaviestToken(choices []Successor) string {
	best := choices[0]
	for _, s := range choices[1:] {
		if s.Count > best.Count {
			best = s
		}
	}
	return best.Token
}

// drawByCount picks a successor with probability count/total.
func (c *Chain) drawByCount(choices []Successor, total int) string {
	n := c.intN(total)
	for _, s := range choices {
		if n -= s.Count; n < 0 {
			return s.Token
		}
	}
	return choices[len(choices)-1].Token
}

// drawTempered picks a successor with probability proportional to
// count^(1/t). Weights are scaled against the largest one in log space so
// that small temperatures cannot overflow.
func (c *Chain) drawTempered(choices []Successor, t float64) string {
	logWeights := make([]float64, len(choices))
	peak := math.Inf(-1)
	for i, s := range choices {
		logWeights[i] = math.Log(float64(s.Count)) / t
		peak = max(peak, logWeights[i])
	}

	weights := make([]float64, len(choices))
	var sum float64
	for i, lw := range logWeights {
		weights[i] = math.Exp(lw - peak)
		sum += weights[i]
	}

	x := c.float64() * sum
	for i, s := range choices {
		if x -= weights[i]; x < 0 {
			return s.Token
		}
	}
	return choices[len(choices)-1].Token
}
