package http_room

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	http_common "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/common"
	http_init "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/init"
	http_auth_middleware "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/middleware/auth"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/testutil"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type RoomControllerSuite struct {
	suite.Suite
}

type resources struct {
	stack   *testutil.Stack
	handler http.Handler
}

func initResources(t provider.T) *resources {
	gin.SetMode(gin.TestMode)
	stack, err := testutil.NewStack()
	require.NoError(t, err)

	pool := http_init.NewControllerPool()
	pool.Add(New(stack.Usecase, http_auth_middleware.New(stack.Usecase)))
	pool.Register()

	return &resources{stack: stack, handler: pool.Handler()}
}

func (r *resources) do(method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.handler.ServeHTTP(w, req)
	return w
}

func session(name string, token string) map[string]string {
	return map[string]string{
		http_common.UserNameHeader:     name,
		http_common.SessionTokenHeader: token,
	}
}

func decode[T any](t provider.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// createRoom creates ROOM42 guarded by passcode "pw" and returns the
// moderator's token.
func (r *resources) createRoom(t provider.T) string {
	w := r.do(http.MethodPost, "/rooms", map[string]any{"name": "mod", "key": "ROOM42", "passcode": "pw"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[RoomResponseDTO](t, w)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, resp.Token, w.Header().Get(http_common.SessionTokenHeader))
	return resp.Token
}

func (s *RoomControllerSuite) TestCreate(t provider.T) {
	t.Parallel()

	t.Run("Should create a room with a generated key", func(t provider.T) {
		r := initResources(t)
		defer r.stack.Close()

		w := r.do(http.MethodPost, "/rooms", map[string]any{"name": "mod"}, nil)

		require.Equal(t, http.StatusCreated, w.Code)
		var resp struct {
			Room struct {
				Key       string   `json:"key"`
				Moderator string   `json:"moderator"`
				Users     []string `json:"users"`
			} `json:"room"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Room.Key, 6)
		assert.Equal(t, "mod", resp.Room.Moderator)
	})

	t.Run("Should reject a missing name", func(t provider.T) {
		r := initResources(t)
		defer r.stack.Close()

		w := r.do(http.MethodPost, "/rooms", map[string]any{}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should reject invalid settings", func(t provider.T) {
		r := initResources(t)
		defer r.stack.Close()

		w := r.do(http.MethodPost, "/rooms", map[string]any{"name": "mod", "settings": map[string]any{"estimateOptions": []string{}}}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, decode[http_common.ErrorResponse](t, w).Message)
	})

	t.Run("Should report a taken key", func(t provider.T) {
		r := initResources(t)
		defer r.stack.Close()
		r.createRoom(t)

		w := r.do(http.MethodPost, "/rooms", map[string]any{"name": "other", "key": "ROOM42"}, nil)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func (s *RoomControllerSuite) TestJoin(t provider.T) {
	t.Parallel()

	t.Run("Should check the passcode", func(t provider.T) {
		r := initResources(t)
		defer r.stack.Close()
		r.createRoom(t)

		w := r.do(http.MethodPost, "/rooms/ROOM42/join", map[string]any{"name": "alice", "passcode": "nope"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid passcode", decode[http_common.ErrorResponse](t, w).Message)

		w = r.do(http.MethodPost, "/rooms/ROOM42/join", map[string]any{"name": "alice", "passcode": "pw"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[RoomResponseDTO](t, w).Room.HasPasscode)
	})

	t.Run("Should let a returning member skip the passcode", func(t provider.T) {
		r := initResources(t)
		defer r.stack.Close()
		modToken := r.createRoom(t)

		w := r.do(http.MethodPost, "/rooms/ROOM42/join", map[string]any{"name": "MOD"},
			map[string]string{http_common.SessionTokenHeader: modToken})

		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEqual(t, modToken, decode[RoomResponseDTO](t, w).Token)
	})

	t.Run("Should report unknown rooms", func(t provider.T) {
		r := initResources(t)
		defer r.stack.Close()

		w := r.do(http.MethodPost, "/rooms/NOPE00/join", map[string]any{"name": "alice"}, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func (s *RoomControllerSuite) TestValidateSession(t provider.T) {
	t.Parallel()
	r := initResources(t)
	defer r.stack.Close()
	modToken := r.createRoom(t)

	w := r.do(http.MethodPost, "/rooms/ROOM42/session/validate", map[string]any{"name": "Mod", "token": modToken}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ValidateResponseDTO](t, w)
	assert.True(t, resp.Valid)
	assert.Equal(t, "mod", resp.Name)

	w = r.do(http.MethodPost, "/rooms/ROOM42/session/validate", map[string]any{"name": "mod", "token": "forged"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid session", decode[http_common.ErrorResponse](t, w).Message)
}

func (s *RoomControllerSuite) TestSnapshot(t provider.T) {
	t.Parallel()
	r := initResources(t)
	defer r.stack.Close()
	modToken := r.createRoom(t)

	w := r.do(http.MethodGet, "/rooms/ROOM42", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = r.do(http.MethodGet, "/rooms/ROOM42", nil, session("mod", modToken))
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		Key         string `json:"key"`
		HasPasscode bool   `json:"hasPasscode"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "ROOM42", snap.Key)
	assert.True(t, snap.HasPasscode)
	assert.NotContains(t, w.Body.String(), "passcodeHash")
}

func (s *RoomControllerSuite) TestSettings(t provider.T) {
	t.Parallel()
	r := initResources(t)
	defer r.stack.Close()
	modToken := r.createRoom(t)
	w := r.do(http.MethodPost, "/rooms/ROOM42/join", map[string]any{"name": "alice", "passcode": "pw"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	aliceToken := decode[RoomResponseDTO](t, w).Token

	w = r.do(http.MethodPut, "/rooms/ROOM42/settings", map[string]any{"anonymousVotes": true}, session("alice", aliceToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = r.do(http.MethodPut, "/rooms/ROOM42/settings", map[string]any{"estimateOptions": []string{}}, session("mod", modToken))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = r.do(http.MethodPut, "/rooms/ROOM42/settings", map[string]any{"anonymousVotes": true}, session("mod", modToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Settings](t, w).AnonymousVotes)

	w = r.do(http.MethodGet, "/rooms/ROOM42/settings", nil, session("alice", aliceToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Settings](t, w).AnonymousVotes)
}

func TestRoomControllerSuite(t *testing.T) {
	suite.RunSuite(t, new(RoomControllerSuite))
}
