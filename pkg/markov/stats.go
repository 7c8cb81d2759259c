package markov

import "sort"

// Stats holds aggregated statistics for a Chain.
type Stats struct {
	Order          int `json:"order"`
	Keys           int `json:"keys"`            // The number of distinct keys with at least one successor
	Links          int `json:"links"`           // The number of unique key->successor links
	TotalFrequency int `json:"total_frequency"` // The sum of all link counts; the total number of observed transitions
	StartKeys      int `json:"start_keys"`      // The number of registered start keys, duplicates included
	Samples        int `json:"samples"`         // The number of distinct samples ingested
}

// Stats returns a snapshot of statistics for the chain.
func (c *Chain) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		Order:     c.order,
		Keys:      len(c.table),
		StartKeys: len(c.starts),
		Samples:   len(c.seen),
	}
	for _, list := range c.table {
		stats.Links += len(list.entries)
		stats.TotalFrequency += list.total
	}
	return stats
}

// Successors returns a copy of the successors recorded for key, in the order
// they were first observed. It returns nil for unknown keys.
func (c *Chain) Successors(key string) []Successor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list, ok := c.table[key]
	if !ok {
		return nil
	}
	out := make([]Successor, len(list.entries))
	copy(out, list.entries)
	return out
}

// Keys returns every key in the chain table, sorted.
func (c *Chain) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.table))
	for key := range c.table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// StartKeys returns the registered start keys in registration order.
func (c *Chain) StartKeys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, len(c.starts))
	for i, start := range c.starts {
		keys[i] = c.key(start)
	}
	return keys
}
