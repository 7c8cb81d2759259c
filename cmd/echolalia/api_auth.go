package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const authHeader = "echo-auth"

// AuthAPI guards the admin API with a single shared key.
type AuthAPI struct {
	keyHash [32]byte
	open    bool
	logger  *slog.Logger
}

// NewAuthAPI creates an AuthAPI for the given key. An empty key leaves the API open.
func NewAuthAPI(apiKey string, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{
		keyHash: sha256.Sum256([]byte(apiKey)),
		open:    apiKey == "",
		logger:  logger,
	}
}

// Authenticate checks for the configured key in the "echo-auth" header.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.open {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get(authHeader)
		if apiKey == "" {
			respondWithError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}

		given := sha256.Sum256([]byte(apiKey))
		if subtle.ConstantTimeCompare(given[:], a.keyHash[:]) != 1 {
			a.logger.Warn("Rejected API request with a bad key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			respondWithError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
