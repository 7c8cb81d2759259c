package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/CTAG07/Echolalia/pkg/bot"
	"github.com/CTAG07/Echolalia/pkg/corpus"
	"github.com/CTAG07/Echolalia/pkg/markov"
)

// maxLearnBody caps the size of a /api/learn request body.
const maxLearnBody = 1 << 20

// BotAPI holds the dependencies for the model and posting handlers.
type BotAPI struct {
	bot    *bot.Bot
	store  *corpus.Store
	logger *slog.Logger
}

// NewBotAPI creates a new instance of the BotAPI.
func NewBotAPI(b *bot.Bot, store *corpus.Store, logger *slog.Logger) *BotAPI {
	return &BotAPI{
		bot:    b,
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for the model and posting endpoints.
func (a *BotAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/generate", a.handleGenerate)
	mux.HandleFunc("/api/stats", a.handleStats)
	mux.HandleFunc("/api/learn", a.handleLearn)
	mux.HandleFunc("/api/post", a.handlePost)
}

// LearnRequest is the expected JSON body for /api/learn.
type LearnRequest struct {
	Text string `json:"text"`
}

// StatsResponse combines model and corpus statistics.
type StatsResponse struct {
	Model         markov.Stats `json:"model"`
	CorpusSamples int          `json:"corpus_samples"`
}

// handleGenerate returns one generated text. min_length overrides the configured minimum.
func (a *BotAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var text string
	if raw := r.URL.Query().Get("min_length"); raw != "" {
		minLength, err := strconv.Atoi(raw)
		if err != nil || minLength <= 0 {
			respondWithError(w, http.StatusBadRequest, "min_length must be a positive integer")
			return
		}
		text = a.bot.Chain().Generate(minLength)
	} else {
		text = a.bot.Compose()
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"text": text})
}

// handleStats reports the size of the model and the corpus.
func (a *BotAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	count, err := a.store.Count(r.Context())
	if err != nil {
		a.logger.Error("Failed to count corpus samples", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to count corpus: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, StatsResponse{Model: a.bot.Chain().Stats(), CorpusSamples: count})
}

// handleLearn stores and ingests a submitted sample.
func (a *BotAPI) handleLearn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req LearnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLearnBody)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	added, err := a.bot.Learn(r.Context(), req.Text)
	if err != nil {
		a.logger.Error("Failed to learn sample", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to learn sample: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"learned": added})
}

// handlePost composes and publishes a post immediately.
func (a *BotAPI) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	text, err := a.bot.PostOnce(r.Context())
	if err != nil {
		if errors.Is(err, bot.ErrNoPublisher) {
			respondWithError(w, http.StatusConflict, "No instance is configured to post to")
			return
		}
		a.logger.Error("Failed to publish post", "error", err)
		respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Failed to publish post: %v", err))
		return
	}
	if text == "" {
		respondWithError(w, http.StatusConflict, "Nothing to post, the model is empty")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"text": text})
}
