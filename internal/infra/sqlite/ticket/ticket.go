package infra_sqlite_ticket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/clock"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/sqlitepool"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const ticketColumns = `id, title, description, status, outcome, ordinal, created_at`

// Driver keeps each room's ticket queue. At most one ticket per room is
// in progress at a time.
type Driver struct {
	pool  *sqlitepool.Pool
	clock clock.Clock
}

func New(
	pool *sqlitepool.Pool,
	clk clock.Clock,
) *Driver {
	if clk == nil {
		clk = clock.Real()
	}
	return &Driver{pool: pool, clock: clk}
}

func (d *Driver) Add(ctx context.Context, roomKey string, title string, description string) (t model.Ticket, err error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return model.Ticket{}, err
	}
	defer d.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return model.Ticket{}, err
	}
	defer endTransaction(&err)

	ordinal := 0
	err = sqlitex.Execute(conn, `SELECT COALESCE(MAX(ordinal), 0) FROM tickets WHERE room_key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{roomKey},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ordinal = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return model.Ticket{}, err
	}

	t = model.Ticket{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Status:      model.TicketPending,
		Ordinal:     ordinal + 1,
		CreatedAt:   d.clock.Now(),
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO tickets (id, room_key, title, description, status, outcome, ordinal, created_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{t.ID, roomKey, t.Title, t.Description, t.Status, t.Ordinal, t.CreatedAt.UnixNano()}})
	if err != nil {
		return model.Ticket{}, err
	}
	return t, nil
}

func (d *Driver) List(ctx context.Context, roomKey string) ([]model.Ticket, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.Put(conn)

	tickets := []model.Ticket{}
	err = sqlitex.Execute(conn, `SELECT `+ticketColumns+` FROM tickets WHERE room_key = ? ORDER BY ordinal`,
		&sqlitex.ExecOptions{
			Args: []any{roomKey},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tickets = append(tickets, scanTicket(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// Current returns nil when no ticket is in progress.
func (d *Driver) Current(ctx context.Context, roomKey string) (*model.Ticket, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.Put(conn)

	return current(conn, roomKey)
}

func (d *Driver) Advance(ctx context.Context, roomKey string, outcome string) (t *model.Ticket, err error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, err
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		UPDATE tickets SET status = ?, outcome = ?
		WHERE room_key = ? AND status = ?`,
		&sqlitex.ExecOptions{Args: []any{model.TicketCompleted, outcome, roomKey, model.TicketInProgress}})
	if err != nil {
		return nil, err
	}

	var next *model.Ticket
	err = sqlitex.Execute(conn, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE room_key = ? AND status = ? ORDER BY ordinal LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{roomKey, model.TicketPending},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t := scanTicket(stmt)
				next = &t
				return nil
			},
		})
	if err != nil || next == nil {
		return nil, err
	}

	if err = setStatus(conn, next.ID, model.TicketInProgress); err != nil {
		return nil, err
	}
	next.Status = model.TicketInProgress
	return next, nil
}

// Select puts ticketID in progress. A ticket that was in progress goes
// back to pending.
func (d *Driver) Select(ctx context.Context, roomKey string, ticketID string) (t *model.Ticket, err error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, err
	}
	defer endTransaction(&err)

	var selected *model.Ticket
	err = sqlitex.Execute(conn, `SELECT `+ticketColumns+` FROM tickets WHERE room_key = ? AND id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{roomKey, ticketID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t := scanTicket(stmt)
				selected = &t
				return nil
			},
		})
	if err != nil {
		return nil, err
	}
	if selected == nil {
		return nil, usecase_room.ErrResourceNotFound
	}

	err = sqlitex.Execute(conn, `
		UPDATE tickets SET status = ?
		WHERE room_key = ? AND status = ? AND id != ?`,
		&sqlitex.ExecOptions{Args: []any{model.TicketPending, roomKey, model.TicketInProgress, ticketID}})
	if err != nil {
		return nil, err
	}
	if err = setStatus(conn, ticketID, model.TicketInProgress); err != nil {
		return nil, err
	}
	selected.Status = model.TicketInProgress
	return selected, nil
}

func (d *Driver) Complete(ctx context.Context, roomKey string, ticketID string, outcome string) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer d.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		UPDATE tickets SET status = ?, outcome = ?
		WHERE room_key = ? AND id = ?`,
		&sqlitex.ExecOptions{Args: []any{model.TicketCompleted, outcome, roomKey, ticketID}})
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return usecase_room.ErrResourceNotFound
	}
	return nil
}

// LogVote records the final vote of a user on a ticket. A later vote for
// the same ticket replaces the earlier one.
func (d *Driver) LogVote(ctx context.Context, roomKey string, vote model.TicketVote) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer d.pool.Put(conn)

	return sqlitex.Execute(conn, `
		INSERT INTO ticket_votes (ticket_id, user_name, vote, voted_at)
		SELECT id, ?, ?, ? FROM tickets WHERE id = ? AND room_key = ?
		ON CONFLICT (ticket_id, user_name)
		DO UPDATE SET vote = excluded.vote, voted_at = excluded.voted_at`,
		&sqlitex.ExecOptions{Args: []any{vote.User, vote.Vote, vote.VotedAt.UnixNano(), vote.TicketID, roomKey}})
}

func (d *Driver) Votes(ctx context.Context, ticketID string) ([]model.TicketVote, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.Put(conn)

	votes := []model.TicketVote{}
	err = sqlitex.Execute(conn, `
		SELECT user_name, vote, voted_at FROM ticket_votes
		WHERE ticket_id = ? ORDER BY user_name`,
		&sqlitex.ExecOptions{
			Args: []any{ticketID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				votes = append(votes, model.TicketVote{
					TicketID: ticketID,
					User:     stmt.ColumnText(0),
					Vote:     stmt.ColumnText(1),
					VotedAt:  time.Unix(0, stmt.ColumnInt64(2)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func current(conn *sqlite.Conn, roomKey string) (*model.Ticket, error) {
	var t *model.Ticket
	err := sqlitex.Execute(conn, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE room_key = ? AND status = ? LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{roomKey, model.TicketInProgress},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ticket := scanTicket(stmt)
				t = &ticket
				return nil
			},
		})
	return t, err
}

func setStatus(conn *sqlite.Conn, id string, status model.TicketStatus) error {
	return sqlitex.Execute(conn, `UPDATE tickets SET status = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{status, id}})
}

func scanTicket(stmt *sqlite.Stmt) model.Ticket {
	return model.Ticket{
		ID:          stmt.ColumnText(0),
		Title:       stmt.ColumnText(1),
		Description: stmt.ColumnText(2),
		Status:      stmt.ColumnText(3),
		Outcome:     stmt.ColumnText(4),
		Ordinal:     stmt.ColumnInt(5),
		CreatedAt:   time.Unix(0, stmt.ColumnInt64(6)),
	}
}
