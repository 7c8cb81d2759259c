// Package bot ties a Markov chain to a post source, a post sink and a corpus
// store, and drives learning, posting and replying to mentions on a schedule.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/CTAG07/Echolalia/pkg/corpus"
	"github.com/CTAG07/Echolalia/pkg/markov"
	"github.com/CTAG07/Echolalia/pkg/sanitize"
)

// ImportSource is the corpus source used for samples submitted locally
// rather than fetched from the network.
const ImportSource = "import"

// Post is a post as seen by the bot, before sanitization.
type Post struct {
	ID             string
	Content        string // Raw content, possibly HTML
	CreatedAt      time.Time
	Reply          bool
	Boost          bool
	ContentWarning string
}

// Fetcher retrieves posts newer than sinceID, oldest first. An empty sinceID
// means "from the beginning".
type Fetcher interface {
	Fetch(ctx context.Context, sinceID string) ([]Post, error)
}

// Publisher publishes generated text.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

// Mention is a post that addressed the bot.
type Mention struct {
	ID         string // Position in the mention stream, used as the resume point
	StatusID   string // The post to reply to
	Acct       string // Author, without the leading @
	Visibility string
}

// MentionSource retrieves mentions newer than sinceID, oldest first. With an
// empty sinceID it returns the most recent mentions.
type MentionSource interface {
	Mentions(ctx context.Context, sinceID string) ([]Mention, error)
}

// Replier publishes text as a reply to a mention.
type Replier interface {
	Reply(ctx context.Context, to Mention, text string) error
}

// Store persists raw samples so the chain can be rebuilt on start, along
// with named cursors that record how far each remote stream has been read.
type Store interface {
	Add(ctx context.Context, post corpus.Post) (bool, error)
	LatestID(ctx context.Context, source string) (string, error)
	Each(ctx context.Context, fn func(corpus.Post) error) error
	Cursor(ctx context.Context, name string) (string, error)
	SetCursor(ctx context.Context, name, value string) error
}

// mentionCursor is the Store cursor holding the last handled mention.
const mentionCursor = "mentions"

// Config holds the bot's behavior settings.
type Config struct {
	Source        string        // Corpus source name for fetched posts
	MinLength     int           // Minimum generated length, in model units
	MaxLength     int           // Maximum post length in characters; 0 disables trimming
	FetchInterval time.Duration // 0 disables periodic fetching
	PostInterval  time.Duration // 0 disables periodic posting
	ReplyInterval time.Duration // 0 disables periodic mention checks
}

// Bot learns from fetched posts and publishes generated ones.
type Bot struct {
	cfg       Config
	chain     *markov.Chain
	store     Store
	fetcher   Fetcher
	publisher Publisher
	mentions  MentionSource
	replier   Replier
	sanitizer *sanitize.Sanitizer
	logger    *slog.Logger
}

// Option is a function that configures a Bot.
type Option func(*Bot)

// WithMentions lets the bot answer mentions read from src through r.
func WithMentions(src MentionSource, r Replier) Option {
	return func(b *Bot) {
		b.mentions = src
		b.replier = r
	}
}

// New creates a Bot. fetcher and publisher may be nil, in which case Refresh
// and PostOnce fail with ErrNoFetcher and ErrNoPublisher. Without
// WithMentions, ReplyMentions fails with ErrNoMentions.
func New(cfg Config, chain *markov.Chain, store Store, fetcher Fetcher, publisher Publisher, opts ...Option) *Bot {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 1
	}
	b := &Bot{
		cfg:       cfg,
		chain:     chain,
		store:     store,
		fetcher:   fetcher,
		publisher: publisher,
		sanitizer: sanitize.New(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	// ErrNoFetcher is returned by Refresh when the bot has no post source.
	ErrNoFetcher = errors.New("bot: no fetcher configured")
	// ErrNoPublisher is returned by PostOnce when the bot has no post sink.
	ErrNoPublisher = errors.New("bot: no publisher configured")
	// ErrNoMentions is returned by ReplyMentions when the bot cannot read or answer mentions.
	ErrNoMentions = errors.New("bot: no mention source configured")
)

// SetLogger sets the logger for the Bot. By default, all logs are discarded.
func (b *Bot) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Chain returns the model the bot learns into.
func (b *Bot) Chain() *markov.Chain {
	return b.chain
}

// Load ingests every stored sample into the chain and returns how many were read.
func (b *Bot) Load(ctx context.Context) (int, error) {
	var n int
	err := b.store.Each(ctx, func(p corpus.Post) error {
		b.chain.Ingest(p.Content)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("could not load corpus: %w", err)
	}

	stats := b.chain.Stats()
	b.logger.InfoContext(ctx, "Corpus loaded",
		slog.Int("samples_read", n),
		slog.Int("model_keys", stats.Keys),
		slog.Int("model_links", stats.Links),
		slog.Int("start_keys", stats.StartKeys),
	)
	return n, nil
}

// Refresh fetches posts newer than the last one read, keeps those that are
// not replies, boosts, or behind a content warning, and learns from them.
// It returns the number of new samples learned. Skipped posts still advance
// the read position, so they are not fetched again.
func (b *Bot) Refresh(ctx context.Context) (int, error) {
	if b.fetcher == nil {
		return 0, ErrNoFetcher
	}
	cursor := "fetch:" + b.cfg.Source
	sinceID, err := b.store.Cursor(ctx, cursor)
	if err != nil {
		return 0, err
	}
	if sinceID == "" {
		// Corpora written before cursors existed resume from their newest post.
		if sinceID, err = b.store.LatestID(ctx, b.cfg.Source); err != nil {
			return 0, err
		}
	}
	posts, err := b.fetcher.Fetch(ctx, sinceID)
	if err != nil {
		return 0, fmt.Errorf("could not fetch posts: %w", err)
	}

	learned, skipped := 0, 0
	for _, p := range posts {
		if p.Reply || p.Boost || p.ContentWarning != "" {
			skipped++
			continue
		}
		text := b.sanitizer.Text(p.Content)
		if text == "" {
			skipped++
			continue
		}
		added, err := b.store.Add(ctx, corpus.Post{ID: p.ID, Source: b.cfg.Source, Content: text, CreatedAt: p.CreatedAt})
		if err != nil {
			return learned, err
		}
		if !added {
			continue
		}
		b.chain.Ingest(text)
		learned++
	}
	if len(posts) > 0 {
		if err = b.store.SetCursor(ctx, cursor, posts[len(posts)-1].ID); err != nil {
			return learned, err
		}
	}

	b.logger.InfoContext(ctx, "Refresh completed",
		slog.String("since_id", sinceID),
		slog.Int("posts_fetched", len(posts)),
		slog.Int("posts_learned", learned),
		slog.Int("posts_skipped", skipped),
	)
	return learned, nil
}

// Learn stores and ingests a locally submitted sample. It reports whether
// the sample was new to the corpus.
func (b *Bot) Learn(ctx context.Context, text string) (bool, error) {
	text = b.sanitizer.Text(text)
	if text == "" {
		return false, nil
	}
	added, err := b.store.Add(ctx, corpus.Post{ID: uuid.NewString(), Source: ImportSource, Content: text})
	if err != nil {
		return false, err
	}
	b.chain.Ingest(text)
	return added, nil
}

// Compose generates a post. The result is "" when the chain has learned
// nothing yet. Output longer than MaxLength characters is cut, at a token
// boundary where possible.
func (b *Bot) Compose(opts ...markov.GenerateOption) string {
	return b.trim(b.chain.Generate(b.cfg.MinLength, opts...))
}

// trim cuts text to MaxLength runes, backing up to the last separator.
func (b *Bot) trim(text string) string {
	if b.cfg.MaxLength <= 0 || utf8.RuneCountInString(text) <= b.cfg.MaxLength {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:b.cfg.MaxLength])
	if sep := b.chain.Tokenizer().Separator(); sep != "" {
		if i := strings.LastIndex(cut, sep); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimSpace(cut)
}

// PostOnce composes and publishes a single post. It returns the published
// text, or "" if there was nothing to say.
func (b *Bot) PostOnce(ctx context.Context) (string, error) {
	if b.publisher == nil {
		return "", ErrNoPublisher
	}
	text := b.Compose()
	if text == "" {
		b.logger.WarnContext(ctx, "Nothing to post, the model is empty")
		return "", nil
	}
	if err := b.publisher.Publish(ctx, text); err != nil {
		return "", fmt.Errorf("could not publish post: %w", err)
	}
	b.logger.InfoContext(ctx, "Post published", slog.Int("length", utf8.RuneCountInString(text)))
	return text, nil
}

// ReplyMentions answers every mention received since the last call with a
// generated post addressed to its author, and returns how many replies were
// sent. The first call on a fresh store only records where the mention
// stream stands, so old mentions are not answered.
func (b *Bot) ReplyMentions(ctx context.Context) (int, error) {
	if b.mentions == nil || b.replier == nil {
		return 0, ErrNoMentions
	}
	sinceID, err := b.store.Cursor(ctx, mentionCursor)
	if err != nil {
		return 0, err
	}
	mentions, err := b.mentions.Mentions(ctx, sinceID)
	if err != nil {
		return 0, fmt.Errorf("could not fetch mentions: %w", err)
	}
	if len(mentions) == 0 {
		return 0, nil
	}

	if sinceID == "" {
		last := mentions[len(mentions)-1].ID
		b.logger.InfoContext(ctx, "Mention stream initialized", slog.String("mention_id", last))
		return 0, b.store.SetCursor(ctx, mentionCursor, last)
	}

	replied := 0
	for _, m := range mentions {
		if text := b.chain.Generate(b.cfg.MinLength); text != "" {
			if err = b.replier.Reply(ctx, m, b.trim("@"+m.Acct+" "+text)); err != nil {
				return replied, fmt.Errorf("could not reply to mention %s: %w", m.ID, err)
			}
			replied++
		}
		// Advance per mention so a failed reply never repeats earlier ones.
		if err = b.store.SetCursor(ctx, mentionCursor, m.ID); err != nil {
			return replied, err
		}
	}

	b.logger.InfoContext(ctx, "Mentions answered",
		slog.Int("mentions", len(mentions)),
		slog.Int("replies_sent", replied),
	)
	return replied, nil
}

// Run refreshes, posts and answers mentions on the configured intervals
// until ctx is done.
// Failures are logged and retried on the next tick.
func (b *Bot) Run(ctx context.Context) error {
	var fetchC, postC, replyC <-chan time.Time
	if b.cfg.FetchInterval > 0 && b.fetcher != nil {
		ticker := time.NewTicker(b.cfg.FetchInterval)
		defer ticker.Stop()
		fetchC = ticker.C
	}
	if b.cfg.PostInterval > 0 && b.publisher != nil {
		ticker := time.NewTicker(b.cfg.PostInterval)
		defer ticker.Stop()
		postC = ticker.C
	}
	if b.cfg.ReplyInterval > 0 && b.mentions != nil && b.replier != nil {
		ticker := time.NewTicker(b.cfg.ReplyInterval)
		defer ticker.Stop()
		replyC = ticker.C
	}

	b.logger.InfoContext(ctx, "Bot loop started",
		slog.Duration("fetch_interval", b.cfg.FetchInterval),
		slog.Duration("post_interval", b.cfg.PostInterval),
		slog.Duration("reply_interval", b.cfg.ReplyInterval),
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.InfoContext(ctx, "Bot loop stopped")
			return nil
		case <-fetchC:
			if _, err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
				b.logger.ErrorContext(ctx, "Refresh failed", "error", err)
			}
		case <-postC:
			if _, err := b.PostOnce(ctx); err != nil && ctx.Err() == nil {
				b.logger.ErrorContext(ctx, "Post failed", "error", err)
			}
		case <-replyC:
			if _, err := b.ReplyMentions(ctx); err != nil && ctx.Err() == nil {
				b.logger.ErrorContext(ctx, "Replying to mentions failed", "error", err)
			}
		}
	}
}
