package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service wraps repository operations with the login-session lifecycle.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Start creates a fresh session carrying the anti-forgery state for the
// authorization redirect and the path to return the browser to afterwards.
func (s *Service) Start(ctx context.Context, redirectPath string, ttl time.Duration) (*Session, error) {
	id, err := randomToken()
	if err != nil {
		return nil, err
	}
	state, err := randomToken()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:           id,
		State:        state,
		RedirectPath: redirectPath,
		ExpiresAt:    time.Now().UTC().Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Complete binds the session to the verified subject after the callback and
// clears the one-shot state.
func (s *Service) Complete(ctx context.Context, sess *Session, sub string) error {
	sess.Sub = sub
	sess.State = ""
	sess.RedirectPath = ""
	return s.repo.Update(ctx, sess)
}

// Validate returns the session when it exists and has not expired, nil
// otherwise. Expired sessions are cleaned up on the way out.
func (s *Service) Validate(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		_ = s.repo.Delete(ctx, id)
		return nil, nil
	}
	return sess, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
