package infra_postgres_room

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	session_auth "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/auth/session"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
)

type Driver struct {
	db *sqlx.DB
}

func New(
	db *sqlx.DB,
) *Driver {
	return &Driver{db: db}
}

type roomDTO struct {
	Key          string    `db:"key"`
	State        []byte    `db:"state"`
	PasscodeHash []byte    `db:"passcode_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type historyDTO struct {
	RoomKey string `db:"room_key"`
	Seq     int    `db:"seq"`
	ID      string `db:"id"`
	Entry   []byte `db:"entry"`
}

type tokenDTO struct {
	RoomKey   string    `db:"room_key"`
	User      string    `db:"user_name"`
	Token     string    `db:"token"`
	CreatedAt time.Time `db:"created_at"`
}

// toDTO keeps round history out of the state document; it lives in its
// own append-only table.
func toDTO(room *model.Room) (roomDTO, error) {
	state := *room
	state.RoundHistory = nil
	data, err := json.Marshal(state)
	if err != nil {
		return roomDTO{}, fmt.Errorf("failed to encode room: %w", err)
	}
	return roomDTO{
		Key:          room.Key,
		State:        data,
		PasscodeHash: room.PasscodeHash,
		CreatedAt:    room.CreatedAt,
	}, nil
}

func (d *Driver) CreateRoom(ctx context.Context, room *model.Room) error {
	dto, err := toDTO(room)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO rooms (key, state, passcode_hash, created_at)
		VALUES (:key, :state, :passcode_hash, :created_at)
	`

	if _, err := tx.NamedExecContext(ctx, query, dto); err != nil {
		if strings.Contains(err.Error(), "unique constraint") ||
			strings.Contains(err.Error(), "duplicate key") {
			return usecase_room.ErrCodeConflict
		}
		return err
	}

	if err := appendHistory(ctx, tx, room, 0); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Driver) LoadRoom(ctx context.Context, key string) (*model.Room, error) {
	var dto roomDTO

	query := `
		SELECT key, state, passcode_hash, created_at
		FROM rooms
		WHERE key = $1
	`

	if err := d.db.GetContext(ctx, &dto, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, usecase_room.ErrResourceNotFound
		}
		return nil, err
	}

	var room model.Room
	if err := json.Unmarshal(dto.State, &room); err != nil {
		return nil, fmt.Errorf("failed to decode room: %w", err)
	}
	room.Key = dto.Key
	room.PasscodeHash = dto.PasscodeHash
	room.CreatedAt = dto.CreatedAt

	var history []historyDTO
	query = `
		SELECT room_key, seq, id, entry
		FROM round_history
		WHERE room_key = $1
		ORDER BY seq
	`
	if err := d.db.SelectContext(ctx, &history, query, key); err != nil {
		return nil, err
	}
	room.RoundHistory = make([]model.RoundHistoryEntry, 0, len(history))
	for _, h := range history {
		var entry model.RoundHistoryEntry
		if err := json.Unmarshal(h.Entry, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode round %s: %w", h.ID, err)
		}
		room.RoundHistory = append(room.RoundHistory, entry)
	}

	room.EnsureMaps()
	return &room, nil
}

func (d *Driver) SaveRoom(ctx context.Context, room *model.Room) error {
	dto, err := toDTO(room)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE rooms
		SET state = $1, passcode_hash = $2
		WHERE key = $3
	`

	result, err := tx.ExecContext(ctx, query, dto.State, dto.PasscodeHash, dto.Key)
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

	var stored int
	if err := tx.GetContext(ctx, &stored, `SELECT COUNT(*) FROM round_history WHERE room_key = $1`, room.Key); err != nil {
		return err
	}
	if err := appendHistory(ctx, tx, room, stored); err != nil {
		return err
	}
	return tx.Commit()
}

func appendHistory(ctx context.Context, tx *sqlx.Tx, room *model.Room, stored int) error {
	if stored > len(room.RoundHistory) {
		return fmt.Errorf("room %s: round history shrank from %d to %d", room.Key, stored, len(room.RoundHistory))
	}

	query := `
		INSERT INTO round_history (room_key, seq, id, entry)
		VALUES (:room_key, :seq, :id, :entry)
	`
	for i := stored; i < len(room.RoundHistory); i++ {
		entry := room.RoundHistory[i]
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode round: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, query, historyDTO{
			RoomKey: room.Key,
			Seq:     i,
			ID:      entry.ID,
			Entry:   data,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) PutSessionToken(ctx context.Context, roomKey string, token model.SessionToken) error {
	query := `
		INSERT INTO session_tokens (room_key, user_name, token, created_at)
		VALUES (:room_key, :user_name, :token, :created_at)
		ON CONFLICT (room_key, user_name)
		DO UPDATE SET token = EXCLUDED.token, created_at = EXCLUDED.created_at
	`

	_, err := d.db.NamedExecContext(ctx, query, tokenDTO{
		RoomKey:   roomKey,
		User:      token.User,
		Token:     token.Token,
		CreatedAt: token.CreatedAt,
	})
	return err
}

func (d *Driver) SessionToken(ctx context.Context, roomKey string, user string) (model.SessionToken, error) {
	var dto tokenDTO

	query := `
		SELECT room_key, user_name, token, created_at
		FROM session_tokens
		WHERE room_key = $1 AND user_name = $2
	`

	if err := d.db.GetContext(ctx, &dto, query, roomKey, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SessionToken{}, session_auth.ErrTokenNotFound
		}
		return model.SessionToken{}, err
	}

	return model.SessionToken{
		User:      dto.User,
		Token:     dto.Token,
		CreatedAt: dto.CreatedAt,
	}, nil
}
