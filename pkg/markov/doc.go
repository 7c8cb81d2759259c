/*
Package markov provides an in-memory Markov chain model for learning from
short text samples and generating new text from them.

A Chain has a fixed order and a tokenizer that decides whether it works on
words or characters. Samples are learned with Ingest; exact duplicates are
ignored, and tokens starting with an exclusion marker (by default "@") are
never stored. Generate performs frequency-weighted random walks over the
learned transitions until the requested length is reached.

The model holds no persistent state. Hosts rebuild it from their own corpus
on startup.
*/
package markov
