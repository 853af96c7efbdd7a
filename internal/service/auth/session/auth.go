package session_auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/clock"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrTokenNotFound  = errors.New("session token not found")
	ErrInternal       = errors.New("internal error")
)

const DefaultTTL = 7 * 24 * time.Hour

// SessionStore keeps at most one token per (room, user). Put overwrites
// whatever was there, which is the only way an old token is revoked.
//
//go:generate mockery --name=SessionStore --output=./mocks --filename=session_store.go
type SessionStore interface {
	PutSessionToken(ctx context.Context, roomKey string, token model.SessionToken) error
	SessionToken(ctx context.Context, roomKey string, user string) (model.SessionToken, error)
}

type Service struct {
	store SessionStore
	ttl   time.Duration
	clock clock.Clock
}

func New(
	store SessionStore,
	ttl *time.Duration,
	clk clock.Clock,
) *Service {
	if ttl == nil || *ttl <= 0 {
		ttl = func() *time.Duration {
			d := DefaultTTL
			return &d
		}()
	}
	if clk == nil {
		clk = clock.Real()
	}

	return &Service{
		store: store,
		ttl:   *ttl,
		clock: clk,
	}
}

// Issue creates a fresh token for user, superseding any earlier one.
func (s *Service) Issue(ctx context.Context, roomKey string, user string) (string, error) {
	t := model.SessionToken{
		User:      user,
		Token:     s.genToken(),
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.PutSessionToken(ctx, roomKey, t); err != nil {
		return "", errors.Join(ErrInternal, err)
	}
	return t.Token, nil
}

// Validate fails closed: a missing, mismatched or expired token all yield
// ErrInvalidSession. Storage failures yield ErrInternal.
func (s *Service) Validate(ctx context.Context, roomKey string, user string, token string) error {
	if token == "" || user == "" {
		return ErrInvalidSession
	}

	stored, err := s.store.SessionToken(ctx, roomKey, user)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return ErrInvalidSession
		}
		return errors.Join(ErrInternal, err)
	}

	if stored.Expired(s.clock.Now(), s.ttl) {
		return ErrInvalidSession
	}
	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(token)) != 1 {
		return ErrInvalidSession
	}
	return nil
}

func (s *Service) genToken() string {
	return uuid.New().String()
}
