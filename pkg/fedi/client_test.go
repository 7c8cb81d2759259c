package fedi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// newTestClient starts an httptest server with the given handler and returns
// a client pointed at it with rate limiting effectively disabled.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "secret-token", WithRateLimit(rate.Inf, 1))
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", "")
	assert.Error(t, err)
	_, err = New("://nope", "")
	assert.Error(t, err)
}

func TestVerifyCredentials(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/verify_credentials", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Account{ID: "42", Username: "bot", Acct: "bot"})
	}))

	account, err := c.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", account.ID)
	assert.Equal(t, "bot", account.Username)
}

func TestLookupAccount(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/lookup", r.URL.Path)
		assert.Equal(t, "alice@example.social", r.URL.Query().Get("acct"))
		_ = json.NewEncoder(w).Encode(Account{ID: "7", Acct: "alice@example.social"})
	}))

	account, err := c.LookupAccount(context.Background(), "@alice@example.social")
	require.NoError(t, err)
	assert.Equal(t, "7", account.ID)
}

// timeline serves statuses 1..n the way Mastodon pages them: newest first
// within a page, windowed by max_id, since_id and min_id.
func timeline(n int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		lo, hi := 1, n
		if v := q.Get("max_id"); v != "" {
			id, _ := strconv.Atoi(v)
			hi = min(hi, id-1)
		}
		if v := q.Get("since_id"); v != "" {
			id, _ := strconv.Atoi(v)
			lo = max(lo, id+1)
		}
		page := []Status{}
		if v := q.Get("min_id"); v != "" {
			id, _ := strconv.Atoi(v)
			lo = max(lo, id+1)
			// The window right after min_id, still sent newest first.
			top := min(hi, lo+limit-1)
			for id := top; id >= lo; id-- {
				page = append(page, Status{ID: strconv.Itoa(id), Content: fmt.Sprintf("<p>post %d</p>", id)})
			}
		} else {
			for id := hi; id >= lo && len(page) < limit; id-- {
				page = append(page, Status{ID: strconv.Itoa(id), Content: fmt.Sprintf("<p>post %d</p>", id)})
			}
		}
		_ = json.NewEncoder(w).Encode(page)
	})
}

func TestStatusesSincePaginates(t *testing.T) {
	calls := 0
	c := newTestClient(t, timeline(95, &calls))

	statuses, err := c.StatusesSince(context.Background(), "99", "10", 0)
	require.NoError(t, err)
	require.Len(t, statuses, 85)
	for i, st := range statuses {
		assert.Equal(t, strconv.Itoa(11+i), st.ID, "oldest first, no gaps")
	}
	assert.Equal(t, 4, calls, "three full or partial pages and one empty page")
}

func TestStatusesSinceFromStart(t *testing.T) {
	calls := 0
	c := newTestClient(t, timeline(5, &calls))

	statuses, err := c.StatusesSince(context.Background(), "99", "", 0)
	require.NoError(t, err)
	require.Len(t, statuses, 5)
	assert.Equal(t, "1", statuses[0].ID)
}

func TestStatusesSinceResumesAfterPageCap(t *testing.T) {
	calls := 0
	c := newTestClient(t, timeline(120, &calls))

	// A backlog of three pages, read one page per round.
	seen := make(map[string]bool)
	var order []string
	latest := ""
	for round := 0; round < 4; round++ {
		statuses, err := c.StatusesSince(context.Background(), "99", latest, 1)
		require.NoError(t, err)
		for _, st := range statuses {
			seen[st.ID] = true
			order = append(order, st.ID)
		}
		if len(statuses) > 0 {
			latest = statuses[len(statuses)-1].ID
		}
	}

	assert.Len(t, seen, 120, "every status is read exactly once")
	assert.Len(t, order, 120)
	assert.Equal(t, "1", order[0])
	assert.Equal(t, "120", order[len(order)-1])
	assert.Equal(t, "120", latest)
}

func TestStatusesSinceMaxPages(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode([]Status{{ID: strconv.Itoa(calls)}})
	}))

	statuses, err := c.StatusesSince(context.Background(), "1", "", 3)
	require.NoError(t, err)
	assert.Len(t, statuses, 3)
	assert.Equal(t, 3, calls)
}

func TestNotifications(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, []string{"mention"}, q["types[]"])
		assert.Equal(t, "7", q.Get("min_id"))
		_ = json.NewEncoder(w).Encode([]Notification{
			{ID: "9", Type: "mention", Account: Account{Acct: "bob"}, Status: &Status{ID: "90"}},
			{ID: "8", Type: "mention", Account: Account{Acct: "alice@example.social"}, Status: &Status{ID: "80"}},
		})
	}))

	notifications, err := c.Notifications(context.Background(), "7", "mention")
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, "8", notifications[0].ID, "oldest first")
	assert.Equal(t, "80", notifications[0].Status.ID)
	assert.Equal(t, "bob", notifications[1].Account.Acct)
}

func TestPostStatus(t *testing.T) {
	var keys []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/statuses", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		keys = append(keys, r.Header.Get("Idempotency-Key"))

		var req StatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello fediverse", req.Status)
		assert.Equal(t, "unlisted", req.Visibility)
		_ = json.NewEncoder(w).Encode(Status{ID: "555", Visibility: req.Visibility, Content: "<p>" + req.Status + "</p>"})
	}))

	for i := 0; i < 2; i++ {
		status, err := c.PostStatus(context.Background(), StatusRequest{Status: "hello fediverse", Visibility: "unlisted"})
		require.NoError(t, err)
		assert.Equal(t, "555", status.ID)
	}
	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1], "every post gets its own idempotency key")
}

func TestPostStatusRejectsEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty status")
	}))
	_, err := c.PostStatus(context.Background(), StatusRequest{Status: "  "})
	assert.Error(t, err)
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"The access token is invalid"}`))
	}))

	_, err := c.VerifyCredentials(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "The access token is invalid", apiErr.Message)
	assert.Contains(t, err.Error(), "401")
}

func TestRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Account{ID: "1"})
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "", WithRateLimit(rate.Limit(0.001), 1))
	require.NoError(t, err)

	_, err = c.VerifyCredentials(context.Background())
	require.NoError(t, err, "the first request uses the burst")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.VerifyCredentials(ctx)
	assert.Error(t, err, "the second request must wait and see the cancelled context")
}

func TestStatusFlags(t *testing.T) {
	empty := ""
	parent := "12"
	assert.False(t, Status{}.IsReply())
	assert.False(t, Status{InReplyToID: &empty}.IsReply())
	assert.True(t, Status{InReplyToID: &parent}.IsReply())
	assert.True(t, Status{Reblog: &Status{ID: "1"}}.IsBoost())
	assert.False(t, Status{}.IsBoost())
}
