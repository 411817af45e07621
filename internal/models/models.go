// Package models defines the core domain types for taskdeck.
package models

import (
	"strings"
	"time"
)

// AccessToken is the credential returned by a successful login or OTP verification.
// It is the only piece of state persisted between runs.
type AccessToken struct {
	AccountID string    `json:"account_id"`
	Token     string    `json:"token"`
	ExpiresAt Timestamp `json:"expires_at"`
}

// Timestamp is an instant as the API sends it. The text is kept verbatim so a
// stored token reads back byte for byte; Time parses it on demand.
type Timestamp string

// timestampLayouts are tried in order. The naive layouts cover ISO-8601 values
// without a zone offset, which are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// NewTimestamp formats t as RFC 3339.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.Format(time.RFC3339Nano))
}

// Time parses the timestamp. An empty timestamp is the zero time.
func (ts Timestamp) Time() (time.Time, error) {
	if ts == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, string(ts))
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// PhoneNumber is a phone number split into its country code and local part.
type PhoneNumber struct {
	CountryCode string `json:"country_code" validate:"required"`
	Number      string `json:"phone_number" validate:"required,numeric"`
}

// Account is the authenticated user's account as returned by the API.
type Account struct {
	ID          string       `json:"id"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	Username    string       `json:"username"`
	PhoneNumber *PhoneNumber `json:"phone_number,omitempty"`
}

// Task is a unit of work owned by an account.
type Task struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TaskInput is the body of create and update requests.
type TaskInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
}

// PaginationParams is the server-echoed description of a returned page.
type PaginationParams struct {
	Page   int `json:"page"`
	Size   int `json:"size"`
	Offset int `json:"offset"`
}

// TaskPage is one page of an account's tasks.
type TaskPage struct {
	Items            []Task           `json:"items"`
	PaginationParams PaginationParams `json:"pagination_params"`
	TotalCount       int              `json:"total_count"`
	TotalPages       int              `json:"total_pages"`
}

// Identity is the minimal projection of an account forwarded to telemetry.
type Identity struct {
	ID       string
	Name     string
	Username string
}

// DisplayName joins the first and last name of an account.
func DisplayName(a Account) string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// DisplayPhoneNumber formats a phone number as "<country code> <number>".
func DisplayPhoneNumber(p PhoneNumber) string {
	return p.CountryCode + " " + p.Number
}

// IdentityOf projects an account onto the fields telemetry is allowed to see.
func IdentityOf(a Account) Identity {
	return Identity{
		ID:       a.ID,
		Name:     DisplayName(a),
		Username: a.Username,
	}
}
