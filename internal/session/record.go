// Package session persists the locally signed-in user.
//
// The record is decorative: it personalizes the interface and gates a few
// affordances, but it is not an authorization boundary. Nothing here talks
// to a real identity service.
package session

import (
	"strings"
	"time"
)

// DefaultKey is the storage key holding the record.
const DefaultKey = "authUser"

// Provider names recorded on a session.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Record is the persisted signed-in user.
type Record struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Provider string `json:"provider"`
	// TS is the sign-in time in Unix milliseconds.
	TS int64 `json:"ts"`
}

// SignedInAt returns TS as a time.
func (r *Record) SignedInAt() time.Time {
	return time.UnixMilli(r.TS)
}

// DisplayName is the name shown in headers: an email-like name loses its
// @domain part.
func (r *Record) DisplayName() string {
	if i := strings.Index(r.Name, "@"); i > 0 {
		return r.Name[:i]
	}
	return r.Name
}

// Payload is the input to SignIn and SignUp.
type Payload struct {
	Name     string
	Email    string
	Avatar   string
	Provider string
}

// Profile is a partial update. Nil fields are left unchanged; a pointer to
// an empty string clears Email or Avatar and resets Name to "User".
type Profile struct {
	Name     *string
	Email    *string
	Avatar   *string
	Provider *string
}

// String returns a pointer to s, for building Profile values.
func String(s string) *string { return &s }
