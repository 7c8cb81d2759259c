package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/CTAG07/Echolalia/pkg/bot"
	"github.com/CTAG07/Echolalia/pkg/fedi"
)

// statusSource reads an account's statuses for the bot to learn from.
type statusSource struct {
	client    *fedi.Client
	accountID string
	maxPages  int
}

func (s *statusSource) Fetch(ctx context.Context, sinceID string) ([]bot.Post, error) {
	statuses, err := s.client.StatusesSince(ctx, s.accountID, sinceID, s.maxPages)
	if err != nil {
		return nil, err
	}
	posts := make([]bot.Post, 0, len(statuses))
	for _, st := range statuses {
		posts = append(posts, bot.Post{
			ID:             st.ID,
			Content:        st.Content,
			CreatedAt:      st.CreatedAt,
			Reply:          st.IsReply(),
			Boost:          st.IsBoost(),
			ContentWarning: st.SpoilerText,
		})
	}
	return posts, nil
}

// statusSink publishes generated text as new statuses and replies.
type statusSink struct {
	client     *fedi.Client
	visibility string
}

func (s *statusSink) Publish(ctx context.Context, text string) error {
	_, err := s.client.PostStatus(ctx, fedi.StatusRequest{Status: text, Visibility: s.visibility})
	return err
}

// Reply answers a mention in its thread. Direct messages get direct replies.
func (s *statusSink) Reply(ctx context.Context, to bot.Mention, text string) error {
	visibility := s.visibility
	if to.Visibility == "direct" {
		visibility = "direct"
	}
	_, err := s.client.PostStatus(ctx, fedi.StatusRequest{Status: text, InReplyToID: to.StatusID, Visibility: visibility})
	return err
}

// mentionSource reads the mentions of the account the bot posts as.
type mentionSource struct {
	client *fedi.Client
}

func (s *mentionSource) Mentions(ctx context.Context, sinceID string) ([]bot.Mention, error) {
	notifications, err := s.client.Notifications(ctx, sinceID, "mention")
	if err != nil {
		return nil, err
	}
	mentions := make([]bot.Mention, 0, len(notifications))
	for _, n := range notifications {
		m := bot.Mention{ID: n.ID, Acct: n.Account.Acct}
		if n.Status != nil {
			m.StatusID = n.Status.ID
			m.Visibility = n.Status.Visibility
		}
		mentions = append(mentions, m)
	}
	return mentions, nil
}

// fediPorts are the bot's connections to an instance. The zero value has
// none, which leaves the bot learning and generating offline.
type fediPorts struct {
	fetcher   bot.Fetcher
	publisher bot.Publisher
	mentions  bot.MentionSource
	replier   bot.Replier
	source    string
}

// connectFedi builds the bot's ports from the config. When no instance is
// configured, it returns the zero fediPorts.
func connectFedi(ctx context.Context, config *Config, logger *slog.Logger) (fediPorts, error) {
	fc := config.Fedi
	if fc.InstanceURL == "" {
		logger.Warn("No instance configured, the bot will neither fetch nor post")
		return fediPorts{}, nil
	}

	limit := rate.Limit(fc.RequestsPerSecond)
	if fc.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	client, err := fedi.New(fc.InstanceURL, fc.AccessToken,
		fedi.WithRateLimit(limit, max(fc.Burst, 1)),
		fedi.WithUserAgent("echolalia/"+Version),
		fedi.WithLogger(logger),
	)
	if err != nil {
		return fediPorts{}, err
	}

	self, err := client.VerifyCredentials(ctx)
	if err != nil {
		return fediPorts{}, fmt.Errorf("could not verify credentials: %w", err)
	}

	learnFrom := self
	if fc.Account != "" {
		learnFrom, err = client.LookupAccount(ctx, fc.Account)
		if err != nil {
			return fediPorts{}, fmt.Errorf("could not look up account '%s': %w", fc.Account, err)
		}
	}

	logger.Info("Connected to instance",
		slog.String("instance_url", fc.InstanceURL),
		slog.String("posting_as", self.Acct),
		slog.String("learning_from", learnFrom.Acct),
	)

	sink := &statusSink{client: client, visibility: config.Bot.Visibility}
	return fediPorts{
		fetcher:   &statusSource{client: client, accountID: learnFrom.ID, maxPages: fc.MaxPages},
		publisher: sink,
		mentions:  &mentionSource{client: client},
		replier:   sink,
		source:    "fedi:" + learnFrom.ID,
	}, nil
}
