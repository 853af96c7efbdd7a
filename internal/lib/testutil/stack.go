// Package testutil builds a fully wired room usecase on a throwaway
// sqlite database for delivery-level tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	infra_sqlite_init "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/sqlite/init"
	infra_sqlite_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/sqlite/room"
	infra_sqlite_ticket "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/sqlite/ticket"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/clock"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/sqlitepool"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	session_auth "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/auth/session"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/timer"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
)

type Stack struct {
	Usecase *usecase_room.Usecase
	Rooms   *infra_sqlite_room.Driver
	Tickets *infra_sqlite_ticket.Driver

	dir  string
	pool *sqlitepool.Pool
}

// Notifier discards rounds.
type Notifier struct{}

func (Notifier) PostRound(context.Context, model.RoundSnapshot) error { return nil }

// NewStack opens a fresh database in its own temp dir. Close removes it.
func NewStack(opts ...usecase_room.Option) (*Stack, error) {
	dir, err := os.MkdirTemp("", "sprintjam-test-*")
	if err != nil {
		return nil, err
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      filepath.Join(dir, "test.db"),
		PoolSize:  2,
		OnConnect: infra_sqlite_init.ApplySchema,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	clk := clock.Real()
	rooms := infra_sqlite_room.New(pool)
	tickets := infra_sqlite_ticket.New(pool, clk)
	ttl := time.Hour
	sessions := session_auth.New(rooms, &ttl, clk)

	return &Stack{
		Usecase: usecase_room.New(rooms, sessions, tickets, Notifier{}, timer.New(), opts...),
		Rooms:   rooms,
		Tickets: tickets,
		dir:     dir,
		pool:    pool,
	}, nil
}

func (s *Stack) Close() {
	s.pool.Close()
	os.RemoveAll(s.dir)
}
