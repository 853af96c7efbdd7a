package usecase_room

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/clock"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	"golang.org/x/crypto/bcrypt"
)

//go:generate mockery --name=RoomRepository --output=./mocks --filename=repository.go
type RoomRepository interface {
	// CreateRoom fails with ErrCodeConflict when the key is taken.
	CreateRoom(ctx context.Context, room *model.Room) error
	// LoadRoom fails with ErrResourceNotFound for unknown keys.
	LoadRoom(ctx context.Context, key string) (*model.Room, error)
	// SaveRoom replaces the stored room in one transaction. Round history
	// is append-only.
	SaveRoom(ctx context.Context, room *model.Room) error
}

type Sessions interface {
	Issue(ctx context.Context, roomKey string, user string) (string, error)
	Validate(ctx context.Context, roomKey string, user string, token string) error
}

type TicketQueue interface {
	Current(ctx context.Context, roomKey string) (*model.Ticket, error)
	// Advance completes the in-progress ticket with outcome and starts the
	// next pending one. It returns nil when the queue is drained.
	Advance(ctx context.Context, roomKey string, outcome string) (*model.Ticket, error)
	Select(ctx context.Context, roomKey string, ticketID string) (*model.Ticket, error)
	Complete(ctx context.Context, roomKey string, ticketID string, outcome string) error
	LogVote(ctx context.Context, roomKey string, vote model.TicketVote) error
	Add(ctx context.Context, roomKey string, title string, description string) (model.Ticket, error)
	List(ctx context.Context, roomKey string) ([]model.Ticket, error)
	Votes(ctx context.Context, ticketID string) ([]model.TicketVote, error)
}

//go:generate mockery --name=RoundNotifier --output=./mocks --filename=round_notifier.go
type RoundNotifier interface {
	PostRound(ctx context.Context, round model.RoundSnapshot) error
}

type Timer interface {
	ElapsedSeconds(s *model.TimerState, now time.Time) int64
	ResetAnchor(s *model.TimerState, seconds int64, now time.Time) *model.TimerState
	Start(s *model.TimerState, now time.Time) *model.TimerState
	Pause(s *model.TimerState, now time.Time) *model.TimerState
}

const (
	defaultIdleTTL       = 10 * time.Minute
	defaultEffectTimeout = 15 * time.Second
	keyRetries           = 3
)

type Usecase struct {
	RoomRepository RoomRepository
	Sessions       Sessions
	Tickets        TicketQueue
	Notifier       RoundNotifier

	timer         Timer
	clock         clock.Clock
	defaults      model.Settings
	idleTTL       time.Duration
	effectTimeout time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	actors map[string]*roomActor
}

type Option func(*Usecase)

func WithClock(c clock.Clock) Option {
	return func(u *Usecase) { u.clock = c }
}

// WithDefaults sets the settings new rooms start from.
func WithDefaults(s model.Settings) Option {
	return func(u *Usecase) { u.defaults = s.Clone() }
}

// WithIdleTTL sets how long a room without live connections stays in memory.
func WithIdleTTL(d time.Duration) Option {
	return func(u *Usecase) {
		if d > 0 {
			u.idleTTL = d
		}
	}
}

func WithEffectTimeout(d time.Duration) Option {
	return func(u *Usecase) {
		if d > 0 {
			u.effectTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(u *Usecase) { u.logger = l }
}

func New(
	RoomRepository RoomRepository,
	Sessions Sessions,
	Tickets TicketQueue,
	Notifier RoundNotifier,
	timer Timer,
	opts ...Option,
) *Usecase {
	u := &Usecase{
		RoomRepository: RoomRepository,
		Sessions:       Sessions,
		Tickets:        Tickets,
		Notifier:       Notifier,
		timer:          timer,
		clock:          clock.Real(),
		defaults:       model.DefaultSettings(),
		idleTTL:        defaultIdleTTL,
		effectTimeout:  defaultEffectTimeout,
		logger:         slog.Default(),
		actors:         make(map[string]*roomActor),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type CreateRoomParams struct {
	// Key is generated when empty.
	Key       string
	Moderator string
	Passcode  string
	Settings  *model.SettingsPatch
}

// CreateRoom initializes a room and issues the moderator's session token.
func (u *Usecase) CreateRoom(ctx context.Context, p CreateRoomParams) (RoomSnapshot, string, error) {
	name := strings.TrimSpace(p.Moderator)
	if name == "" {
		return RoomSnapshot{}, "", validationf("name is required")
	}
	settings := u.defaults.Clone()
	if p.Settings != nil {
		settings = p.Settings.Apply(settings)
	}
	if err := settings.Validate(); err != nil {
		return RoomSnapshot{}, "", &ValidationError{Message: err.Error()}
	}

	var hash []byte
	if p.Passcode != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(p.Passcode), bcrypt.DefaultCost)
		if err != nil {
			return RoomSnapshot{}, "", errors.Join(ErrInternal, err)
		}
	}

	room, err := u.createRoom(ctx, strings.TrimSpace(p.Key), name, settings, hash)
	if err != nil {
		return RoomSnapshot{}, "", err
	}

	token, err := u.Sessions.Issue(ctx, room.Key, name)
	if err != nil {
		return RoomSnapshot{}, "", errors.Join(ErrInternal, err)
	}
	u.logger.Info("room created", "room", room.Key, "moderator", name)
	return buildSnapshot(room, u.env()), token, nil
}

// Assuming that generated keys can conflict.
// Retrying...
func (u *Usecase) createRoom(ctx context.Context, key string, moderator string, settings model.Settings, hash []byte) (*model.Room, error) {
	retries := keyRetries
	if key != "" {
		retries = 1
	}
	for retries > 0 {
		k := key
		if k == "" {
			k = u.buildRoomKey()
		}
		room := model.NewRoom(k, moderator, settings, u.clock.Now())
		room.PasscodeHash = hash
		err := u.RoomRepository.CreateRoom(ctx, room)
		switch {
		case err == nil:
			return room, nil
		case errors.Is(err, ErrCodeConflict):
			if key != "" {
				return nil, ErrCodeConflict
			}
			retries--
		default:
			return nil, errors.Join(ErrInternal, err)
		}
	}
	return nil, ErrRoomsUnavailable
}

func (u *Usecase) buildRoomKey() string {
	const (
		keyLen   = 6
		alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	)
	var builder strings.Builder
	builder.Grow(keyLen)

	for range keyLen {
		builder.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}

	return builder.String()
}

// Join adds name to the room, or resolves it to the stored member, and
// issues a fresh token. A valid token for an existing member skips the
// passcode check.
func (u *Usecase) Join(ctx context.Context, key string, name string, passcode string, token string) (RoomSnapshot, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoomSnapshot{}, "", validationf("name is required")
	}

	var (
		snap     RoomSnapshot
		newToken string
	)
	err := u.do(ctx, key, func(a *roomActor) error {
		room, err := a.load(ctx)
		if err != nil {
			return err
		}

		user, exists := room.CanonicalName(name)
		if !exists {
			user = name
		}
		authorized := exists && token != "" && u.Sessions.Validate(ctx, key, user, token) == nil
		if !authorized && len(room.PasscodeHash) > 0 {
			if bcrypt.CompareHashAndPassword(room.PasscodeHash, []byte(passcode)) != nil {
				return ErrInvalidPasscode
			}
		}

		if !exists {
			if _, err := a.exec(ctx, user, userJoined{}); err != nil {
				return err
			}
		}

		newToken, err = u.Sessions.Issue(ctx, key, user)
		if err != nil {
			return errors.Join(ErrInternal, err)
		}
		snap = buildSnapshot(a.room, u.env())
		return nil
	})
	if err != nil {
		return RoomSnapshot{}, "", err
	}
	return snap, newToken, nil
}

// ValidateSession returns the canonical member name for a valid token.
func (u *Usecase) ValidateSession(ctx context.Context, key string, name string, token string) (string, error) {
	var user string
	err := u.do(ctx, key, func(a *roomActor) error {
		var err error
		user, err = a.authenticate(ctx, name, token)
		return err
	})
	return user, err
}

func (u *Usecase) Snapshot(ctx context.Context, key string, name string, token string) (RoomSnapshot, error) {
	var snap RoomSnapshot
	err := u.do(ctx, key, func(a *roomActor) error {
		if _, err := a.authenticate(ctx, name, token); err != nil {
			return err
		}
		snap = buildSnapshot(a.room, u.env())
		return nil
	})
	return snap, err
}

func (u *Usecase) GetSettings(ctx context.Context, key string, name string, token string) (model.Settings, error) {
	var settings model.Settings
	err := u.do(ctx, key, func(a *roomActor) error {
		if _, err := a.authenticate(ctx, name, token); err != nil {
			return err
		}
		settings = a.room.Settings.Clone()
		return nil
	})
	return settings, err
}

// UpdateSettings runs the same transition as the live updateSettings
// message but reports a permission failure to the caller.
func (u *Usecase) UpdateSettings(ctx context.Context, key string, name string, token string, patch model.SettingsPatch) (model.Settings, error) {
	var settings model.Settings
	err := u.do(ctx, key, func(a *roomActor) error {
		user, err := a.authenticate(ctx, name, token)
		if err != nil {
			return err
		}
		if _, err := a.exec(ctx, user, UpdateSettings{Patch: patch}); err != nil {
			return err
		}
		settings = a.room.Settings.Clone()
		return nil
	})
	return settings, err
}

func (u *Usecase) AddTicket(ctx context.Context, key string, name string, token string, title string, description string) (model.Ticket, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Ticket{}, validationf("title is required")
	}
	err := u.do(ctx, key, func(a *roomActor) error {
		user, err := a.authenticate(ctx, name, token)
		if err != nil {
			return err
		}
		if a.room.IsCompleted() {
			return ErrTerminalState
		}
		if !canAct(a.room, user, a.room.Settings.AllowOthersToManageQueue) {
			return ErrPermissionDenied
		}
		return nil
	})
	if err != nil {
		return model.Ticket{}, err
	}

	t, err := u.Tickets.Add(ctx, key, title, strings.TrimSpace(description))
	if err != nil {
		return model.Ticket{}, errors.Join(ErrInternal, err)
	}
	return t, nil
}

// ListTickets returns the room's queue and the ticket currently in
// progress, if any.
func (u *Usecase) ListTickets(ctx context.Context, key string, name string, token string) ([]model.Ticket, *model.Ticket, error) {
	err := u.do(ctx, key, func(a *roomActor) error {
		_, err := a.authenticate(ctx, name, token)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	tickets, err := u.Tickets.List(ctx, key)
	if err != nil {
		return nil, nil, errors.Join(ErrInternal, err)
	}
	current, err := u.Tickets.Current(ctx, key)
	if err != nil {
		return nil, nil, errors.Join(ErrInternal, err)
	}
	return tickets, current, nil
}

// TicketVotes returns the votes logged against one of the room's tickets.
func (u *Usecase) TicketVotes(ctx context.Context, key string, name string, token string, ticketID string) ([]model.TicketVote, error) {
	tickets, _, err := u.ListTickets(ctx, key, name, token)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range tickets {
		if t.ID == ticketID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrResourceNotFound
	}

	votes, err := u.Tickets.Votes(ctx, ticketID)
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	return votes, nil
}

func (u *Usecase) env() env {
	return env{now: u.clock.Now(), timer: u.timer}
}
