package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CTAG07/Echolalia/pkg/bot"
	"github.com/CTAG07/Echolalia/pkg/corpus"
	"github.com/CTAG07/Echolalia/pkg/markov"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app bundles the pieces every command needs: the corpus database, the
// chain, and the bot that ties them together.
type app struct {
	db    *sql.DB
	store *corpus.Store
	chain *markov.Chain
	bot   *bot.Bot
}

func newLogger(config *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: config.Server.Level()}))
}

// newChain builds an empty chain from the model settings.
func newChain(mc *ModelConfig, logger *slog.Logger) (*markov.Chain, error) {
	tokenizer, ok := markov.TokenizerByName(mc.Granularity)
	if !ok {
		return nil, fmt.Errorf("unknown model granularity '%s'", mc.Granularity)
	}
	chain, err := markov.New(mc.Order,
		markov.WithTokenizer(tokenizer),
		markov.WithExclusionMarker(mc.ExclusionMarker),
	)
	if err != nil {
		return nil, err
	}
	chain.SetLogger(logger)
	return chain, nil
}

// openApp opens the corpus and builds an empty chain and bot around it. Any
// of the ports may be unset.
func openApp(config *Config, logger *slog.Logger, ports fediPorts) (*app, error) {
	dbPath := config.Server.CorpusDatabasePath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = corpus.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup corpus schema: %w", err)
	}

	store, err := corpus.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create corpus store: %w", err)
	}
	store.SetLogger(logger)

	chain, err := newChain(config.Model, logger)
	if err != nil {
		store.Close()
		_ = db.Close()
		return nil, err
	}

	var opts []bot.Option
	if ports.mentions != nil && ports.replier != nil {
		opts = append(opts, bot.WithMentions(ports.mentions, ports.replier))
	}
	b := bot.New(bot.Config{
		Source:        ports.source,
		MinLength:     config.Bot.MinLength,
		MaxLength:     config.Bot.MaxLength,
		FetchInterval: config.Bot.FetchInterval(),
		PostInterval:  config.Bot.PostInterval(),
		ReplyInterval: config.Bot.ReplyInterval(),
	}, chain, store, ports.fetcher, ports.publisher, opts...)
	b.SetLogger(logger)

	return &app{db: db, store: store, chain: chain, bot: b}, nil
}

// load rebuilds the chain from every stored sample.
func (a *app) load(ctx context.Context) error {
	_, err := a.bot.Load(ctx)
	return err
}

func (a *app) Close() error {
	a.store.Close()
	return a.db.Close()
}
