// Package corpus stores the raw, already sanitized posts a bot learns from.
//
// The Markov model itself is never persisted; it is rebuilt from this corpus
// on every start.
package corpus
