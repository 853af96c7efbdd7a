package usecase_room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/clock"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/timer"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room/mocks"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryRooms struct {
	mu       sync.Mutex
	rooms    map[string][]byte
	hashes   map[string][]byte
	saveErrs []error
}

func newMemoryRooms() *memoryRooms {
	return &memoryRooms{rooms: map[string][]byte{}, hashes: map[string][]byte{}}
}

func (m *memoryRooms) CreateRoom(_ context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.Key]; ok {
		return ErrCodeConflict
	}
	return m.put(room)
}

func (m *memoryRooms) LoadRoom(_ context.Context, key string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.rooms[key]
	if !ok {
		return nil, ErrResourceNotFound
	}
	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	room.PasscodeHash = m.hashes[key]
	return &room, nil
}

func (m *memoryRooms) SaveRoom(_ context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saveErrs) > 0 {
		err := m.saveErrs[0]
		m.saveErrs = m.saveErrs[1:]
		return err
	}
	return m.put(room)
}

func (m *memoryRooms) put(room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	m.rooms[room.Key] = data
	m.hashes[room.Key] = room.PasscodeHash
	return nil
}

type memorySessions struct {
	mu     sync.Mutex
	seq    int
	tokens map[string]string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{tokens: map[string]string{}}
}

func (m *memorySessions) Issue(_ context.Context, roomKey string, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	token := fmt.Sprintf("tok-%s-%d", user, m.seq)
	m.tokens[roomKey+"/"+user] = token
	return token, nil
}

func (m *memorySessions) Validate(_ context.Context, roomKey string, user string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens[roomKey+"/"+user] != token {
		return ErrInvalidSession
	}
	return nil
}

func (m *memorySessions) expire(roomKey string, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, roomKey+"/"+user)
}

type memoryTickets struct {
	mu      sync.Mutex
	next    *model.Ticket
	outcome string
	logged  []model.TicketVote
}

func (m *memoryTickets) Current(context.Context, string) (*model.Ticket, error) { return nil, nil }

func (m *memoryTickets) Advance(_ context.Context, _ string, outcome string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcome = outcome
	return m.next, nil
}

func (m *memoryTickets) Select(_ context.Context, _ string, id string) (*model.Ticket, error) {
	return &model.Ticket{ID: id, Title: "selected", Status: model.TicketInProgress}, nil
}

func (m *memoryTickets) Complete(context.Context, string, string, string) error { return nil }

func (m *memoryTickets) LogVote(_ context.Context, _ string, v model.TicketVote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logged = append(m.logged, v)
	return nil
}

func (m *memoryTickets) Add(_ context.Context, roomKey string, title string, description string) (model.Ticket, error) {
	return model.Ticket{ID: "t-new", Title: title, Description: description, Status: model.TicketPending}, nil
}

func (m *memoryTickets) List(context.Context, string) ([]model.Ticket, error) {
	return []model.Ticket{{ID: "t-1", Title: "Login", Status: model.TicketCompleted}}, nil
}

func (m *memoryTickets) Votes(_ context.Context, ticketID string) ([]model.TicketVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TicketVote
	for _, v := range m.logged {
		if v.TicketID == ticketID {
			out = append(out, v)
		}
	}
	return out, nil
}

type noopNotifier struct{}

func (noopNotifier) PostRound(context.Context, model.RoundSnapshot) error { return nil }

type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	code   int
	broken bool
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.broken {
		return errors.New("connection closed")
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) Close(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.code = code
}

func (c *fakeConn) closeCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *fakeConn) events() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.msgs))
	for _, m := range c.msgs {
		var ev map[string]any
		if err := json.Unmarshal(m, &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) types() []string {
	var types []string
	for _, ev := range c.events() {
		types = append(types, ev["type"].(string))
	}
	return types
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

type UsecaseRoomSuite struct {
	suite.Suite
}

type resources struct {
	usecase  *Usecase
	rooms    *memoryRooms
	sessions *memorySessions
	tickets  *memoryTickets
	clock    *clock.FakeClock
	ctx      context.Context
}

func initResources(t provider.T, opts ...Option) *resources {
	r := &resources{
		rooms:    newMemoryRooms(),
		sessions: newMemorySessions(),
		tickets:  &memoryTickets{},
		clock:    clock.Fake(testNow),
		ctx:      context.Background(),
	}
	opts = append([]Option{WithClock(r.clock)}, opts...)
	r.usecase = New(r.rooms, r.sessions, r.tickets, noopNotifier{}, timer.New(), opts...)
	return r
}

// seedRoom creates ROOM42 with mod and alice and returns their tokens.
func (r *resources) seedRoom(t provider.T, patch *model.SettingsPatch) (string, string) {
	_, modToken, err := r.usecase.CreateRoom(r.ctx, CreateRoomParams{Key: "ROOM42", Moderator: "mod", Settings: patch})
	require.NoError(t, err)
	_, aliceToken, err := r.usecase.Join(r.ctx, "ROOM42", "alice", "", "")
	require.NoError(t, err)
	return modToken, aliceToken
}

func (s *UsecaseRoomSuite) TestCreateRoom(t provider.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		key           string
		setupMocks    func(repo *mocks.RoomRepository)
		expectedError error
	}{
		{
			name: "Should create a room with a generated key",
			setupMocks: func(repo *mocks.RoomRepository) {
				repo.On("CreateRoom", mock.Anything, mock.MatchedBy(func(r *model.Room) bool {
					return len(r.Key) == 6 && r.Moderator == "mod"
				})).Return(nil).Once()
			},
		},
		{
			name: "Should give up after repeated key conflicts",
			setupMocks: func(repo *mocks.RoomRepository) {
				repo.On("CreateRoom", mock.Anything, mock.Anything).Return(ErrCodeConflict).Times(3)
			},
			expectedError: ErrRoomsUnavailable,
		},
		{
			name: "Should not retry a caller supplied key",
			key:  "TAKEN1",
			setupMocks: func(repo *mocks.RoomRepository) {
				repo.On("CreateRoom", mock.Anything, mock.Anything).Return(ErrCodeConflict).Once()
			},
			expectedError: ErrCodeConflict,
		},
		{
			name: "Should wrap storage failures",
			setupMocks: func(repo *mocks.RoomRepository) {
				repo.On("CreateRoom", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
			},
			expectedError: ErrInternal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t provider.T) {
			t.Parallel()
			repo := mocks.NewRoomRepository(t)
			tc.setupMocks(repo)
			u := New(repo, newMemorySessions(), &memoryTickets{}, noopNotifier{}, timer.New())

			snap, token, err := u.CreateRoom(context.Background(), CreateRoomParams{Key: tc.key, Moderator: " mod "})

			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, "mod", snap.Moderator)
			assert.Equal(t, []string{"mod"}, snap.Users)
			assert.False(t, snap.HasPasscode)
		})
	}

	t.Run("Should reject invalid settings", func(t provider.T) {
		r := initResources(t)
		empty := []string{}

		_, _, err := r.usecase.CreateRoom(r.ctx, CreateRoomParams{
			Moderator: "mod",
			Settings:  &model.SettingsPatch{EstimateOptions: &empty},
		})

		assert.ErrorAs(t, err, new(*ValidationError))
	})
}

func (s *UsecaseRoomSuite) TestJoin(t provider.T) {
	t.Parallel()

	t.Run("Should resolve names case-insensitively", func(t provider.T) {
		r := initResources(t)
		r.seedRoom(t, nil)

		snap, token, err := r.usecase.Join(r.ctx, "ROOM42", "ALICE", "", "")

		require.NoError(t, err)
		assert.Equal(t, []string{"mod", "alice"}, snap.Users)
		user, err := r.usecase.ValidateSession(r.ctx, "ROOM42", "Alice", token)
		assert.NoError(t, err)
		assert.Equal(t, "alice", user)
	})

	t.Run("Should require the passcode", func(t provider.T) {
		r := initResources(t)
		_, modToken, err := r.usecase.CreateRoom(r.ctx, CreateRoomParams{Key: "ROOM42", Moderator: "mod", Passcode: "s3cret"})
		require.NoError(t, err)

		_, _, err = r.usecase.Join(r.ctx, "ROOM42", "bob", "wrong", "")
		assert.ErrorIs(t, err, ErrInvalidPasscode)

		snap, _, err := r.usecase.Join(r.ctx, "ROOM42", "bob", "s3cret", "")
		require.NoError(t, err)
		assert.True(t, snap.HasPasscode)

		_, _, err = r.usecase.Join(r.ctx, "ROOM42", "mod", "", modToken)
		assert.NoError(t, err)
	})

	t.Run("Should report unknown rooms", func(t provider.T) {
		r := initResources(t)

		_, _, err := r.usecase.Join(r.ctx, "NOPE00", "bob", "", "")

		assert.ErrorIs(t, err, ErrResourceNotFound)
	})

	t.Run("Should refuse new members once completed", func(t provider.T) {
		r := initResources(t)
		modToken, _ := r.seedRoom(t, nil)
		conn := &fakeConn{}
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "mod", modToken, conn))
		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", conn, []byte(`{"type":"completeSession"}`)))

		_, _, err := r.usecase.Join(r.ctx, "ROOM42", "carol", "", "")

		assert.ErrorIs(t, err, ErrTerminalState)
	})
}

func (s *UsecaseRoomSuite) TestConnect(t provider.T) {
	t.Parallel()

	t.Run("Should send initialize and announce presence", func(t provider.T) {
		r := initResources(t)
		modToken, aliceToken := r.seedRoom(t, nil)
		modConn, aliceConn := &fakeConn{}, &fakeConn{}

		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "mod", modToken, modConn))
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "alice", aliceToken, aliceConn))

		assert.Equal(t, []string{EventInitialize}, aliceConn.types())
		assert.Equal(t, []string{EventInitialize, EventUserConnectionStatus}, modConn.types())
		roomData := aliceConn.events()[0]["roomData"].(map[string]any)
		connected := roomData["connectedUsers"].(map[string]any)
		assert.Equal(t, true, connected["alice"])
		assert.Equal(t, true, connected["mod"])
	})

	t.Run("Should refuse a stale token without sending anything", func(t provider.T) {
		r := initResources(t)
		modToken, _ := r.seedRoom(t, nil)
		r.sessions.expire("ROOM42", "mod")
		conn := &fakeConn{}

		err := r.usecase.Connect(r.ctx, "ROOM42", "mod", modToken, conn)

		assert.ErrorIs(t, err, ErrInvalidSession)
		assert.Empty(t, conn.types())
	})

	t.Run("Should look the same for unknown rooms and members", func(t provider.T) {
		r := initResources(t)
		modToken, _ := r.seedRoom(t, nil)

		assert.ErrorIs(t, r.usecase.Connect(r.ctx, "NOPE00", "mod", modToken, &fakeConn{}), ErrInvalidSession)
		assert.ErrorIs(t, r.usecase.Connect(r.ctx, "ROOM42", "ghost", modToken, &fakeConn{}), ErrInvalidSession)
	})

	t.Run("Should supersede an older connection without a presence flicker", func(t provider.T) {
		r := initResources(t)
		modToken, aliceToken := r.seedRoom(t, nil)
		modConn, first, second := &fakeConn{}, &fakeConn{}, &fakeConn{}
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "mod", modToken, modConn))
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "alice", aliceToken, first))
		modConn.reset()

		_, freshToken, err := r.usecase.Join(r.ctx, "ROOM42", "alice", "", aliceToken)
		require.NoError(t, err)
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "alice", freshToken, second))
		r.usecase.Disconnect("ROOM42", first)

		assert.Equal(t, CloseSuperseded, first.closeCode())
		assert.Empty(t, modConn.types())
		snap, err := r.usecase.Snapshot(r.ctx, "ROOM42", "mod", modToken)
		require.NoError(t, err)
		assert.True(t, snap.ConnectedUsers["alice"])
	})

	t.Run("Should drop connections whose send fails", func(t provider.T) {
		r := initResources(t)
		modToken, aliceToken := r.seedRoom(t, nil)
		modConn, aliceConn := &fakeConn{}, &fakeConn{}
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "mod", modToken, modConn))
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "alice", aliceToken, aliceConn))
		aliceConn.broken = true
		modConn.reset()

		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", modConn, []byte(`{"type":"vote","vote":"2"}`)))

		assert.Equal(t, []string{EventVote, EventUserConnectionStatus}, modConn.types())
		snap, err := r.usecase.Snapshot(r.ctx, "ROOM42", "mod", modToken)
		require.NoError(t, err)
		assert.False(t, snap.ConnectedUsers["alice"])
	})
}

func (s *UsecaseRoomSuite) TestDispatch(t provider.T) {
	t.Parallel()

	connectBoth := func(t provider.T, r *resources) (*fakeConn, *fakeConn) {
		modToken, aliceToken := r.seedRoom(t, &model.SettingsPatch{EnableAutoReveal: ptr(true)})
		modConn, aliceConn := &fakeConn{}, &fakeConn{}
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "mod", modToken, modConn))
		require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "alice", aliceToken, aliceConn))
		modConn.reset()
		aliceConn.reset()
		return modConn, aliceConn
	}

	t.Run("Should broadcast votes and auto reveal", func(t provider.T) {
		r := initResources(t)
		modConn, aliceConn := connectBoth(t, r)

		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", modConn, []byte(`{"type":"vote","vote":1}`)))
		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", aliceConn, []byte(`{"type":"vote","vote":"2"}`)))

		expected := []string{EventVote, EventVote, EventShowVotes, EventJudgeScoreUpdated}
		assert.Equal(t, expected, modConn.types())
		assert.Equal(t, expected, aliceConn.types())
	})

	t.Run("Should stay silent on permission failures", func(t provider.T) {
		r := initResources(t)
		modConn, aliceConn := connectBoth(t, r)

		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", aliceConn, []byte(`{"type":"showVotes"}`)))

		assert.Empty(t, aliceConn.types())
		assert.Empty(t, modConn.types())
	})

	t.Run("Should answer only the sender on bad input", func(t provider.T) {
		r := initResources(t)
		modConn, aliceConn := connectBoth(t, r)

		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", aliceConn, []byte(`{"type":"dance"}`)))
		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", aliceConn, []byte(`{"type":"vote","vote":"99"}`)))

		assert.Equal(t, []string{EventError, EventError}, aliceConn.types())
		assert.Empty(t, modConn.types())
	})

	t.Run("Should keep the room consistent when a save fails", func(t provider.T) {
		r := initResources(t)
		modConn, aliceConn := connectBoth(t, r)
		r.rooms.mu.Lock()
		r.rooms.saveErrs = []error{errors.New("disk full")}
		r.rooms.mu.Unlock()

		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", aliceConn, []byte(`{"type":"vote","vote":"2"}`)))

		assert.Equal(t, []string{EventError}, aliceConn.types())
		assert.Equal(t, "internal error", aliceConn.events()[0]["error"])
		assert.Empty(t, modConn.types())
		stored, err := r.rooms.LoadRoom(r.ctx, "ROOM42")
		require.NoError(t, err)
		assert.Empty(t, stored.Votes)
	})

	t.Run("Should feed the next ticket back into the room", func(t provider.T) {
		r := initResources(t)
		r.tickets.next = &model.Ticket{ID: "t-2", Title: "Checkout", Status: model.TicketInProgress}
		modConn, _ := connectBoth(t, r)

		require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", modConn, []byte(`{"type":"nextTicket"}`)))

		assert.Eventually(t, func() bool {
			for _, typ := range modConn.types() {
				if typ == EventTicketUpdated {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond)
	})
}

func (s *UsecaseRoomSuite) TestNotifier(t provider.T) {
	t.Parallel()
	r := initResources(t)
	notifier := mocks.NewRoundNotifier(t)
	posted := make(chan model.RoundSnapshot, 1)
	notifier.On("PostRound", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { posted <- args.Get(1).(model.RoundSnapshot) }).
		Return(errors.New("webhook down")).Once()
	r.usecase.Notifier = notifier
	modToken, _ := r.seedRoom(t, nil)
	conn := &fakeConn{}
	require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "mod", modToken, conn))
	require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", conn, []byte(`{"type":"vote","vote":"3"}`)))
	conn.reset()

	require.NoError(t, r.usecase.Dispatch(r.ctx, "ROOM42", conn, []byte(`{"type":"resetVotes"}`)))

	select {
	case snap := <-posted:
		assert.Equal(t, "ROOM42", snap.RoomKey)
		assert.Equal(t, model.RoundReset, snap.Round.Type)
	case <-time.After(time.Second):
		assert.Fail(t, "round was not posted")
	}
	assert.Equal(t, []string{EventResetVotes}, conn.types())
}

func (s *UsecaseRoomSuite) TestSettingsOverHTTP(t provider.T) {
	t.Parallel()
	r := initResources(t)
	modToken, aliceToken := r.seedRoom(t, nil)

	_, err := r.usecase.UpdateSettings(r.ctx, "ROOM42", "alice", aliceToken, model.SettingsPatch{AnonymousVotes: ptr(true)})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	settings, err := r.usecase.UpdateSettings(r.ctx, "ROOM42", "mod", modToken, model.SettingsPatch{AnonymousVotes: ptr(true)})
	require.NoError(t, err)
	assert.True(t, settings.AnonymousVotes)

	read, err := r.usecase.GetSettings(r.ctx, "ROOM42", "alice", aliceToken)
	require.NoError(t, err)
	assert.True(t, read.AnonymousVotes)

	_, err = r.usecase.GetSettings(r.ctx, "ROOM42", "alice", "forged")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func (s *UsecaseRoomSuite) TestTickets(t provider.T) {
	t.Parallel()
	r := initResources(t)
	modToken, aliceToken := r.seedRoom(t, nil)
	r.tickets.logged = []model.TicketVote{{TicketID: "t-1", User: "alice", Vote: "5"}}

	_, err := r.usecase.AddTicket(r.ctx, "ROOM42", "alice", aliceToken, "Signup", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = r.usecase.AddTicket(r.ctx, "ROOM42", "mod", modToken, "  ", "")
	assert.ErrorAs(t, err, new(*ValidationError))

	added, err := r.usecase.AddTicket(r.ctx, "ROOM42", "mod", modToken, "Signup", " as a user ")
	require.NoError(t, err)
	assert.Equal(t, "as a user", added.Description)

	votes, err := r.usecase.TicketVotes(r.ctx, "ROOM42", "alice", aliceToken, "t-1")
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	_, err = r.usecase.TicketVotes(r.ctx, "ROOM42", "alice", aliceToken, "t-404")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func (s *UsecaseRoomSuite) TestIdleEviction(t provider.T) {
	t.Parallel()
	r := initResources(t, WithIdleTTL(20*time.Millisecond))
	modToken, _ := r.seedRoom(t, nil)

	assert.Eventually(t, func() bool {
		r.usecase.mu.Lock()
		defer r.usecase.mu.Unlock()
		return len(r.usecase.actors) == 0
	}, time.Second, 10*time.Millisecond)

	user, err := r.usecase.ValidateSession(r.ctx, "ROOM42", "mod", modToken)
	assert.NoError(t, err)
	assert.Equal(t, "mod", user)
}

func (s *UsecaseRoomSuite) TestUnknownRoomEviction(t provider.T) {
	t.Parallel()
	r := initResources(t)

	_, _, err := r.usecase.Join(r.ctx, "NOPE01", "alice", "", "")
	assert.ErrorIs(t, err, ErrResourceNotFound)
	_, err = r.usecase.ValidateSession(r.ctx, "NOPE02", "alice", "tok")
	assert.ErrorIs(t, err, ErrInvalidSession)
	err = r.usecase.Connect(r.ctx, "NOPE03", "alice", "tok", &fakeConn{})
	assert.ErrorIs(t, err, ErrInvalidSession)

	assert.Eventually(t, func() bool {
		r.usecase.mu.Lock()
		defer r.usecase.mu.Unlock()
		return len(r.usecase.actors) == 0
	}, time.Second, 10*time.Millisecond)

	// A room created later under the same key is served normally.
	_, _, err = r.usecase.CreateRoom(r.ctx, CreateRoomParams{Key: "NOPE01", Moderator: "mod"})
	require.NoError(t, err)
	_, _, err = r.usecase.Join(r.ctx, "NOPE01", "alice", "", "")
	assert.NoError(t, err)
}

func (s *UsecaseRoomSuite) TestConcurrentReadsAndWrites(t provider.T) {
	t.Parallel()
	r := initResources(t)
	modToken, aliceToken := r.seedRoom(t, &model.SettingsPatch{
		AllowVotingAfterReveal: ptr(true),
		EnableJudge:            ptr(true),
	})
	modConn, aliceConn := &fakeConn{}, &fakeConn{}
	require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "mod", modToken, modConn))
	require.NoError(t, r.usecase.Connect(r.ctx, "ROOM42", "alice", aliceToken, aliceConn))

	const rounds = 50
	var (
		wg   sync.WaitGroup
		errs = make(chan error, rounds*6)
	)
	run := func(fn func(i int) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if err := fn(i); err != nil {
					errs <- err
				}
			}
		}()
	}

	run(func(i int) error {
		msg := fmt.Sprintf(`{"type":"vote","vote":"%d"}`, i%3+1)
		return r.usecase.Dispatch(r.ctx, "ROOM42", aliceConn, []byte(msg))
	})
	run(func(i int) error {
		msg := `{"type":"vote","vote":"2"}`
		if i%5 == 0 {
			msg = `{"type":"resetVotes"}`
		}
		return r.usecase.Dispatch(r.ctx, "ROOM42", modConn, []byte(msg))
	})
	run(func(int) error {
		snap, err := r.usecase.Snapshot(r.ctx, "ROOM42", "alice", aliceToken)
		if err != nil {
			return err
		}
		_, err = json.Marshal(snap)
		return err
	})
	run(func(int) error {
		settings, err := r.usecase.GetSettings(r.ctx, "ROOM42", "mod", modToken)
		if err != nil {
			return err
		}
		_, err = json.Marshal(settings)
		return err
	})
	run(func(i int) error {
		snap, _, err := r.usecase.Join(r.ctx, "ROOM42", fmt.Sprintf("guest-%d", i%4), "", "")
		if err != nil {
			return err
		}
		_, err = json.Marshal(snap)
		return err
	})

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	snap, err := r.usecase.Snapshot(r.ctx, "ROOM42", "mod", modToken)
	require.NoError(t, err)
	for user, vote := range snap.Votes {
		assert.Contains(t, []string{"1", "2", "3"}, vote, user)
	}
	assert.Len(t, snap.Users, 6)
	stored, err := r.rooms.LoadRoom(r.ctx, "ROOM42")
	require.NoError(t, err)
	assert.Equal(t, len(stored.RoundHistory), len(snap.RoundHistory))
}

func ptr[T any](v T) *T {
	return &v
}

func TestUsecaseRoomSuite(t *testing.T) {
	suite.RunSuite(t, new(UsecaseRoomSuite))
}
