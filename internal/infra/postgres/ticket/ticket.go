package infra_postgres_ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/clock"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
)

type Driver struct {
	db    *sqlx.DB
	clock clock.Clock
}

func New(
	db *sqlx.DB,
	clk clock.Clock,
) *Driver {
	if clk == nil {
		clk = clock.Real()
	}
	return &Driver{db: db, clock: clk}
}

type ticketDTO struct {
	ID          uuid.UUID `db:"id"`
	RoomKey     string    `db:"room_key"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	Outcome     string    `db:"outcome"`
	Ordinal     int       `db:"ordinal"`
	CreatedAt   time.Time `db:"created_at"`
}

func (t ticketDTO) toModel() model.Ticket {
	return model.Ticket{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Outcome:     t.Outcome,
		Ordinal:     t.Ordinal,
		CreatedAt:   t.CreatedAt,
	}
}

const selectTicket = `
	SELECT id, room_key, title, description, status, outcome, ordinal, created_at
	FROM tickets
`

func (d *Driver) Add(ctx context.Context, roomKey string, title string, description string) (model.Ticket, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ordinal int
	if err := tx.GetContext(ctx, &ordinal, `SELECT COALESCE(MAX(ordinal), 0) FROM tickets WHERE room_key = $1`, roomKey); err != nil {
		return model.Ticket{}, err
	}

	dto := ticketDTO{
		ID:          uuid.New(),
		RoomKey:     roomKey,
		Title:       title,
		Description: description,
		Status:      model.TicketPending,
		Ordinal:     ordinal + 1,
		CreatedAt:   d.clock.Now(),
	}
	query := `
		INSERT INTO tickets (id, room_key, title, description, status, outcome, ordinal, created_at)
		VALUES (:id, :room_key, :title, :description, :status, :outcome, :ordinal, :created_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, dto); err != nil {
		return model.Ticket{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Ticket{}, err
	}
	return dto.toModel(), nil
}

func (d *Driver) List(ctx context.Context, roomKey string) ([]model.Ticket, error) {
	var dtos []ticketDTO
	if err := d.db.SelectContext(ctx, &dtos, selectTicket+` WHERE room_key = $1 ORDER BY ordinal`, roomKey); err != nil {
		return nil, err
	}

	tickets := make([]model.Ticket, 0, len(dtos))
	for _, dto := range dtos {
		tickets = append(tickets, dto.toModel())
	}
	return tickets, nil
}

func (d *Driver) Current(ctx context.Context, roomKey string) (*model.Ticket, error) {
	var dto ticketDTO
	err := d.db.GetContext(ctx, &dto, selectTicket+` WHERE room_key = $1 AND status = $2 LIMIT 1`, roomKey, model.TicketInProgress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t := dto.toModel()
	return &t, nil
}

func (d *Driver) Advance(ctx context.Context, roomKey string, outcome string) (*model.Ticket, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE tickets SET status = $1, outcome = $2
		WHERE room_key = $3 AND status = $4
	`, model.TicketCompleted, outcome, roomKey, model.TicketInProgress); err != nil {
		return nil, err
	}

	var dto ticketDTO
	err = tx.GetContext(ctx, &dto, selectTicket+`
		WHERE room_key = $1 AND status = $2
		ORDER BY ordinal
		LIMIT 1
		FOR UPDATE`, roomKey, model.TicketPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tx.Commit()
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET status = $1 WHERE id = $2`, model.TicketInProgress, dto.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	dto.Status = model.TicketInProgress
	t := dto.toModel()
	return &t, nil
}

func (d *Driver) Select(ctx context.Context, roomKey string, ticketID string) (*model.Ticket, error) {
	id, err := uuid.Parse(ticketID)
	if err != nil {
		return nil, usecase_room.ErrResourceNotFound
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dto ticketDTO
	if err := tx.GetContext(ctx, &dto, selectTicket+` WHERE room_key = $1 AND id = $2 FOR UPDATE`, roomKey, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, usecase_room.ErrResourceNotFound
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tickets SET status = $1
		WHERE room_key = $2 AND status = $3 AND id <> $4
	`, model.TicketPending, roomKey, model.TicketInProgress, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET status = $1 WHERE id = $2`, model.TicketInProgress, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	dto.Status = model.TicketInProgress
	t := dto.toModel()
	return &t, nil
}

func (d *Driver) Complete(ctx context.Context, roomKey string, ticketID string, outcome string) error {
	id, err := uuid.Parse(ticketID)
	if err != nil {
		return usecase_room.ErrResourceNotFound
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE tickets SET status = $1, outcome = $2
		WHERE room_key = $3 AND id = $4
	`, model.TicketCompleted, outcome, roomKey, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return usecase_room.ErrResourceNotFound
	}
	return nil
}

func (d *Driver) LogVote(ctx context.Context, roomKey string, vote model.TicketVote) error {
	id, err := uuid.Parse(vote.TicketID)
	if err != nil {
		return usecase_room.ErrResourceNotFound
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO ticket_votes (ticket_id, user_name, vote, voted_at)
		SELECT id, $1, $2, $3 FROM tickets WHERE id = $4 AND room_key = $5
		ON CONFLICT (ticket_id, user_name)
		DO UPDATE SET vote = EXCLUDED.vote, voted_at = EXCLUDED.voted_at
	`, vote.User, vote.Vote, vote.VotedAt, id, roomKey)
	return err
}

func (d *Driver) Votes(ctx context.Context, ticketID string) ([]model.TicketVote, error) {
	id, err := uuid.Parse(ticketID)
	if err != nil {
		return nil, usecase_room.ErrResourceNotFound
	}

	votes := []model.TicketVote{}
	err = d.db.SelectContext(ctx, &votes, `
		SELECT ticket_id, user_name, vote, voted_at
		FROM ticket_votes
		WHERE ticket_id = $1
		ORDER BY user_name
	`, id)
	if err != nil {
		return nil, err
	}
	return votes, nil
}
