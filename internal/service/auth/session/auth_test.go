package session_auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/clock"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/auth/session/mocks"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type SessionAuthUnitSuite struct {
	suite.Suite
}

type resources struct {
	service *Service
	store   *mocks.SessionStore
	clock   *clock.FakeClock
	ctx     context.Context
}

func initResources(t provider.T) *resources {
	store := mocks.NewSessionStore(t)
	clk := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	ttl := time.Hour

	return &resources{
		service: New(store, &ttl, clk),
		store:   store,
		clock:   clk,
		ctx:     context.Background(),
	}
}

func (s *SessionAuthUnitSuite) TestIssue(t provider.T) {
	t.Parallel()

	t.Run("Should store a fresh token stamped with the clock", func(t provider.T) {
		r := initResources(t)
		r.store.On("PutSessionToken", r.ctx, "ROOM42", mock.MatchedBy(func(tok model.SessionToken) bool {
			return tok.User == "alice" && tok.Token != "" && tok.CreatedAt.Equal(r.clock.Now())
		})).Return(nil).Once()

		token, err := r.service.Issue(r.ctx, "ROOM42", "alice")

		assert.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("Should wrap storage failures as internal", func(t provider.T) {
		r := initResources(t)
		r.store.On("PutSessionToken", r.ctx, "ROOM42", mock.Anything).Return(errors.New("disk full")).Once()

		token, err := r.service.Issue(r.ctx, "ROOM42", "alice")

		assert.ErrorIs(t, err, ErrInternal)
		assert.Empty(t, token)
	})
}

func (s *SessionAuthUnitSuite) TestValidate(t provider.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		token         string
		advance       time.Duration
		setupMocks    func(r *resources)
		expectedError error
	}{
		{
			name:  "Should accept a matching live token",
			token: "tok-1",
			setupMocks: func(r *resources) {
				r.store.On("SessionToken", r.ctx, "ROOM42", "alice").
					Return(model.SessionToken{User: "alice", Token: "tok-1", CreatedAt: r.clock.Now()}, nil).Once()
			},
		},
		{
			name:  "Should reject a token that does not match",
			token: "tok-2",
			setupMocks: func(r *resources) {
				r.store.On("SessionToken", r.ctx, "ROOM42", "alice").
					Return(model.SessionToken{User: "alice", Token: "tok-1", CreatedAt: r.clock.Now()}, nil).Once()
			},
			expectedError: ErrInvalidSession,
		},
		{
			name:    "Should reject an expired token",
			token:   "tok-1",
			advance: 2 * time.Hour,
			setupMocks: func(r *resources) {
				r.store.On("SessionToken", r.ctx, "ROOM42", "alice").
					Return(model.SessionToken{User: "alice", Token: "tok-1", CreatedAt: r.clock.Now()}, nil).Once()
			},
			expectedError: ErrInvalidSession,
		},
		{
			name:  "Should reject when no token is stored",
			token: "tok-1",
			setupMocks: func(r *resources) {
				r.store.On("SessionToken", r.ctx, "ROOM42", "alice").
					Return(model.SessionToken{}, ErrTokenNotFound).Once()
			},
			expectedError: ErrInvalidSession,
		},
		{
			name:          "Should reject an empty token without touching storage",
			token:         "",
			setupMocks:    func(r *resources) {},
			expectedError: ErrInvalidSession,
		},
		{
			name:  "Should surface storage failures as internal",
			token: "tok-1",
			setupMocks: func(r *resources) {
				r.store.On("SessionToken", r.ctx, "ROOM42", "alice").
					Return(model.SessionToken{}, errors.New("connection reset")).Once()
			},
			expectedError: ErrInternal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t provider.T) {
			t.Parallel()
			r := initResources(t)
			tc.setupMocks(r)
			r.clock.Advance(tc.advance)

			err := r.service.Validate(r.ctx, "ROOM42", "alice", tc.token)

			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
			} else {
				assert.NoError(t, err)
			}
			r.store.AssertExpectations(t)
		})
	}
}

func TestSessionAuthUnitSuite(t *testing.T) {
	suite.RunSuite(t, new(SessionAuthUnitSuite))
}
