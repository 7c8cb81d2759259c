package fedi

import (
	"fmt"
	"time"
)

// Account is the subset of a Mastodon account the bot needs.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
}

// Status is the subset of a Mastodon status the bot needs. Content is HTML.
type Status struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	InReplyToID *string   `json:"in_reply_to_id"`
	Sensitive   bool      `json:"sensitive"`
	SpoilerText string    `json:"spoiler_text"`
	Visibility  string    `json:"visibility"`
	Content     string    `json:"content"`
	Reblog      *Status   `json:"reblog"`
	Account     Account   `json:"account"`
}

// IsReply reports whether the status answers another status.
func (s Status) IsReply() bool {
	return s.InReplyToID != nil && *s.InReplyToID != ""
}

// IsBoost reports whether the status is a reblog of someone else's status.
func (s Status) IsBoost() bool {
	return s.Reblog != nil
}

// Notification is the subset of a Mastodon notification the bot needs.
// Status is set for mentions.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Account   Account   `json:"account"`
	Status    *Status   `json:"status"`
}

// StatusRequest is the body of a new status.
type StatusRequest struct {
	Status      string `json:"status"`
	InReplyToID string `json:"in_reply_to_id,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	SpoilerText string `json:"spoiler_text,omitempty"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// APIError is returned for any response outside the 2xx range.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("fedi: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("fedi: server returned %d: %s", e.StatusCode, e.Message)
}
