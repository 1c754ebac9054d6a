// Package authsessions tracks the access tokens the backend has issued, so
// that logout-all can revoke every token of a user.
package authsessions

import (
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionData is one issued access token. Its ID is the token's jti.
type SessionData struct {
	ID        string    // jti of the access token
	UserID    string    // User the token was issued to
	UserEmail string    // Email at the time of issue
	Timestamp time.Time // When the token was issued
	ExpiresAt time.Time // When the token expires
	Rotated   bool      // Issued as a rotation of an older token rather than by login
}

// Repo stores issued token sessions. Expired sessions should be cleaned up regularly.
type Repo interface {
	// Upsert creates or updates a session
	Upsert(sessionID string, sessionData *SessionData) error

	// Delete removes a session by ID
	Delete(sessionID string) error

	// Get retrieves a session by ID
	Get(sessionID string) (*SessionData, error)

	// ListByUser returns every live session of a user
	ListByUser(userID string) ([]*SessionData, error)

	// DeleteByUser removes every session of a user and returns what was removed
	DeleteByUser(userID string) ([]*SessionData, error)

	// DeleteExpiredSessions removes sessions that expired before the specified time
	DeleteExpiredSessions(expiryTime time.Time) error
}
