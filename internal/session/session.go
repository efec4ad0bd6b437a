package session

import (
	"context"
	"errors"

	"github.com/goccy/go-json"

	"github.com/sangathan/sangathan/internal/autherr"
)

// Durable keys. Both are present or both are absent.
const (
	KeyUser  = "USER"
	KeyToken = "TOKEN"
)

// ErrInvalidSession is returned by Save for a session that could never be read back.
var ErrInvalidSession = errors.New("session requires a token and a JSON user profile")

// Session is the authenticated state persisted on the device.
type Session struct {
	UserProfile json.RawMessage `json:"userProfile"`
	AccessToken string          `json:"accessToken"`
}

// Store persists the session. Save and Clear touch both keys as one unit and
// Load never observes a mix of two sessions.
type Store interface {
	Save(ctx context.Context, s Session) error
	// Load returns false when nobody is logged in. The error is reserved for
	// failures of the underlying medium.
	Load(ctx context.Context) (Session, bool, error)
	// Clear is idempotent.
	Clear(ctx context.Context) error
}

func (s Session) validate() error {
	if s.AccessToken == "" || len(s.UserProfile) == 0 || !json.Valid(s.UserProfile) {
		return ErrInvalidSession
	}
	return nil
}

// fromPair assembles a session from the two raw values. A half-written pair
// reads as absent.
func fromPair(user, token string, userOK, tokenOK bool) (Session, bool) {
	if !userOK || !tokenOK || user == "" || token == "" {
		return Session{}, false
	}
	return Session{UserProfile: json.RawMessage(user), AccessToken: token}, true
}

func storageErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return autherr.Wrap(autherr.KindStorage, err, msg)
}
