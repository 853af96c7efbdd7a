package ws_room

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	http_init "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/init"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/testutil"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type RoomWSSuite struct {
	suite.Suite
}

type resources struct {
	stack      *testutil.Stack
	server     *httptest.Server
	modToken   string
	aliceToken string
}

func initResources(t provider.T) *resources {
	gin.SetMode(gin.TestMode)
	stack, err := testutil.NewStack()
	require.NoError(t, err)

	pool := http_init.NewControllerPool()
	pool.Add(New(stack.Usecase))
	pool.Register()

	ctx := context.Background()
	_, modToken, err := stack.Usecase.CreateRoom(ctx, usecase_room.CreateRoomParams{Key: "ROOM42", Moderator: "mod"})
	require.NoError(t, err)
	_, aliceToken, err := stack.Usecase.Join(ctx, "ROOM42", "alice", "", "")
	require.NoError(t, err)

	return &resources{
		stack:      stack,
		server:     httptest.NewServer(pool.Handler()),
		modToken:   modToken,
		aliceToken: aliceToken,
	}
}

func (r *resources) close() {
	r.server.Close()
	r.stack.Close()
}

func (r *resources) dial(name string, token string) (*websocket.Conn, *http.Response, error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if token != "" {
		q.Set("token", token)
	}
	u := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/api/v1/rooms/ROOM42/ws?" + q.Encode()
	return websocket.DefaultDialer.Dial(u, nil)
}

func readEvent(t provider.T, conn *websocket.Conn) map[string]any {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

// readUntil skips events until one of type typ arrives.
func readUntil(t provider.T, conn *websocket.Conn, typ string) map[string]any {
	for i := 0; i < 10; i++ {
		ev := readEvent(t, conn)
		if ev["type"] == typ {
			return ev
		}
	}
	require.FailNow(t, "no "+typ+" event")
	return nil
}

func (s *RoomWSSuite) TestHandshake(t provider.T) {
	t.Parallel()

	t.Run("Should reject missing parameters before upgrading", func(t provider.T) {
		r := initResources(t)
		defer r.close()

		_, resp, err := r.dial("mod", "")

		assert.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Should close invalid sessions with a dedicated code", func(t provider.T) {
		r := initResources(t)
		defer r.close()

		conn, _, err := r.dial("mod", "forged")
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, usecase_room.CloseInvalidSession))
	})

	t.Run("Should send the initial snapshot", func(t provider.T) {
		r := initResources(t)
		defer r.close()

		conn, _, err := r.dial("mod", r.modToken)
		require.NoError(t, err)
		defer conn.Close()

		ev := readEvent(t, conn)
		assert.Equal(t, usecase_room.EventInitialize, ev["type"])
		roomData := ev["roomData"].(map[string]any)
		assert.Equal(t, "ROOM42", roomData["key"])
	})
}

func (s *RoomWSSuite) TestVoting(t provider.T) {
	t.Parallel()
	r := initResources(t)
	defer r.close()

	mod, _, err := r.dial("mod", r.modToken)
	require.NoError(t, err)
	defer mod.Close()
	readUntil(t, mod, usecase_room.EventInitialize)

	alice, _, err := r.dial("alice", r.aliceToken)
	require.NoError(t, err)
	defer alice.Close()
	readUntil(t, alice, usecase_room.EventInitialize)
	readUntil(t, mod, usecase_room.EventUserConnectionStatus)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote","vote":"5"}`)))

	ev := readUntil(t, mod, usecase_room.EventVote)
	assert.Equal(t, "alice", ev["user"])
	readUntil(t, alice, usecase_room.EventVote)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote","vote":"nope"}`)))
	ev = readUntil(t, alice, usecase_room.EventError)
	assert.NotEmpty(t, ev["error"])
}

func (s *RoomWSSuite) TestSupersede(t provider.T) {
	t.Parallel()
	r := initResources(t)
	defer r.close()

	first, _, err := r.dial("alice", r.aliceToken)
	require.NoError(t, err)
	defer first.Close()
	readUntil(t, first, usecase_room.EventInitialize)

	second, _, err := r.dial("alice", r.aliceToken)
	require.NoError(t, err)
	defer second.Close()
	readUntil(t, second, usecase_room.EventInitialize)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err = first.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, usecase_room.CloseSuperseded))
}

func TestRoomWSSuite(t *testing.T) {
	suite.RunSuite(t, new(RoomWSSuite))
}
