package infra_sqlite_room

import (
	"context"
	"fmt"
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/codec"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/sqlitepool"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	session_auth "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/auth/session"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Driver stores rooms and their session tokens in one sqlite database.
type Driver struct {
	pool *sqlitepool.Pool
}

func New(
	pool *sqlitepool.Pool,
) *Driver {
	return &Driver{pool: pool}
}

func (d *Driver) CreateRoom(ctx context.Context, room *model.Room) (err error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer d.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endTransaction(&err)

	args, err := roomArgs(room)
	if err != nil {
		return err
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO rooms (key, moderator, status, show_votes, settings, judge_score,
			judge_metadata, current_ticket, timer_state, passcode_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: append([]any{room.Key}, append(args, room.CreatedAt.UnixNano())...)})
	if err != nil {
		if isConstraint(err) {
			return usecase_room.ErrCodeConflict
		}
		return err
	}

	return writeMembers(conn, room, 0)
}

func (d *Driver) LoadRoom(ctx context.Context, key string) (*model.Room, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.Put(conn)

	var (
		room  *model.Room
		scanE error
	)
	err = sqlitex.Execute(conn, `
		SELECT moderator, status, show_votes, settings, judge_score, judge_metadata,
			current_ticket, timer_state, passcode_hash, created_at
		FROM rooms WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				room, scanE = scanRoom(key, stmt)
				return scanE
			},
		})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, usecase_room.ErrResourceNotFound
	}

	if err := loadMembers(conn, room); err != nil {
		return nil, err
	}
	if err := loadVotes(conn, room); err != nil {
		return nil, err
	}
	if err := loadHistory(conn, room); err != nil {
		return nil, err
	}
	return room, nil
}

// SaveRoom rewrites members and votes. History rows already stored are
// left alone; only the tail beyond them is inserted.
func (d *Driver) SaveRoom(ctx context.Context, room *model.Room) (err error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer d.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endTransaction(&err)

	args, err := roomArgs(room)
	if err != nil {
		return err
	}
	err = sqlitex.Execute(conn, `
		UPDATE rooms SET moderator = ?, status = ?, show_votes = ?, settings = ?,
			judge_score = ?, judge_metadata = ?, current_ticket = ?, timer_state = ?,
			passcode_hash = ?
		WHERE key = ?`,
		&sqlitex.ExecOptions{Args: append(args, room.Key)})
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return usecase_room.ErrResourceNotFound
	}

	for _, table := range []string{"room_members", "room_votes"} {
		if err = sqlitex.Execute(conn, "DELETE FROM "+table+" WHERE room_key = ?",
			&sqlitex.ExecOptions{Args: []any{room.Key}}); err != nil {
			return err
		}
	}

	stored := 0
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM round_history WHERE room_key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{room.Key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stored = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return err
	}

	return writeMembers(conn, room, stored)
}

func (d *Driver) PutSessionToken(ctx context.Context, roomKey string, token model.SessionToken) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer d.pool.Put(conn)

	return sqlitex.Execute(conn, `
		INSERT INTO session_tokens (room_key, user_name, token, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (room_key, user_name)
		DO UPDATE SET token = excluded.token, created_at = excluded.created_at`,
		&sqlitex.ExecOptions{Args: []any{roomKey, token.User, token.Token, token.CreatedAt.UnixNano()}})
}

func (d *Driver) SessionToken(ctx context.Context, roomKey string, user string) (model.SessionToken, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return model.SessionToken{}, err
	}
	defer d.pool.Put(conn)

	var (
		token model.SessionToken
		found bool
	)
	err = sqlitex.Execute(conn, `
		SELECT token, created_at FROM session_tokens
		WHERE room_key = ? AND user_name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{roomKey, user},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				token = model.SessionToken{
					User:      user,
					Token:     stmt.ColumnText(0),
					CreatedAt: time.Unix(0, stmt.ColumnInt64(1)),
				}
				return nil
			},
		})
	if err != nil {
		return model.SessionToken{}, err
	}
	if !found {
		return model.SessionToken{}, session_auth.ErrTokenNotFound
	}
	return token, nil
}

// roomArgs returns the mutable rooms columns in table order.
func roomArgs(room *model.Room) ([]any, error) {
	settings, err := codec.Marshal(room.Settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	metadata, err := encodeOptional(room.JudgeMetadata)
	if err != nil {
		return nil, fmt.Errorf("encode judge metadata: %w", err)
	}
	ticket, err := encodeOptional(room.CurrentTicket)
	if err != nil {
		return nil, fmt.Errorf("encode current ticket: %w", err)
	}
	timerState, err := encodeOptional(room.TimerState)
	if err != nil {
		return nil, fmt.Errorf("encode timer state: %w", err)
	}

	var score any
	if room.JudgeScore != nil {
		score = *room.JudgeScore
	}
	var hash any
	if len(room.PasscodeHash) > 0 {
		hash = room.PasscodeHash
	}

	return []any{
		room.Moderator,
		room.Status,
		boolInt(room.ShowVotes),
		settings,
		score,
		metadata,
		ticket,
		timerState,
		hash,
	}, nil
}

func encodeOptional[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	return codec.Marshal(v)
}

func writeMembers(conn *sqlite.Conn, room *model.Room, storedHistory int) error {
	position := 0
	insertMember := func(name string, spectator bool) error {
		position++
		return sqlitex.Execute(conn, `
			INSERT INTO room_members (room_key, name, position, spectator, connected)
			VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{room.Key, name, position, boolInt(spectator), boolInt(room.ConnectedUsers[name])}})
	}
	for _, u := range room.Users {
		if err := insertMember(u, false); err != nil {
			return err
		}
	}
	for _, s := range room.Spectators {
		if err := insertMember(s, true); err != nil {
			return err
		}
	}

	voters := make(map[string]struct{}, len(room.Votes)+len(room.StructuredVotes))
	for user := range room.Votes {
		voters[user] = struct{}{}
	}
	for user := range room.StructuredVotes {
		voters[user] = struct{}{}
	}
	for user := range voters {
		var vote, structured any
		if v, ok := room.Votes[user]; ok {
			vote = v
		}
		if sv, ok := room.StructuredVotes[user]; ok {
			data, err := codec.Marshal(sv)
			if err != nil {
				return fmt.Errorf("encode structured vote: %w", err)
			}
			structured = data
		}
		if err := sqlitex.Execute(conn, `
			INSERT INTO room_votes (room_key, user_name, vote, structured)
			VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{room.Key, user, vote, structured}}); err != nil {
			return err
		}
	}

	if storedHistory > len(room.RoundHistory) {
		return fmt.Errorf("room %s: round history shrank from %d to %d", room.Key, storedHistory, len(room.RoundHistory))
	}
	for i := storedHistory; i < len(room.RoundHistory); i++ {
		entry := room.RoundHistory[i]
		data, err := codec.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode round: %w", err)
		}
		if err := sqlitex.Execute(conn, `
			INSERT INTO round_history (room_key, seq, id, entry) VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{room.Key, i, entry.ID, data}}); err != nil {
			return err
		}
	}
	return nil
}

func scanRoom(key string, stmt *sqlite.Stmt) (*model.Room, error) {
	room := &model.Room{
		Key:       key,
		Moderator: stmt.ColumnText(0),
		Status:    stmt.ColumnText(1),
		ShowVotes: stmt.ColumnInt(2) != 0,
		CreatedAt: time.Unix(0, stmt.ColumnInt64(9)),
	}
	if err := codec.Unmarshal(columnBytes(stmt, 3), &room.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if stmt.ColumnType(4) != sqlite.TypeNull {
		score := stmt.ColumnFloat(4)
		room.JudgeScore = &score
	}
	var err error
	if room.JudgeMetadata, err = decodeOptional[model.JudgeMetadata](stmt, 5); err != nil {
		return nil, fmt.Errorf("decode judge metadata: %w", err)
	}
	if room.CurrentTicket, err = decodeOptional[model.Ticket](stmt, 6); err != nil {
		return nil, fmt.Errorf("decode current ticket: %w", err)
	}
	if room.TimerState, err = decodeOptional[model.TimerState](stmt, 7); err != nil {
		return nil, fmt.Errorf("decode timer state: %w", err)
	}
	room.PasscodeHash = columnBytes(stmt, 8)
	room.EnsureMaps()
	return room, nil
}

func decodeOptional[T any](stmt *sqlite.Stmt, col int) (*T, error) {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil, nil
	}
	var v T
	if err := codec.Unmarshal(columnBytes(stmt, col), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func loadMembers(conn *sqlite.Conn, room *model.Room) error {
	return sqlitex.Execute(conn, `
		SELECT name, spectator, connected FROM room_members
		WHERE room_key = ? ORDER BY position`,
		&sqlitex.ExecOptions{
			Args: []any{room.Key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				name := stmt.ColumnText(0)
				if stmt.ColumnInt(1) != 0 {
					room.Spectators = append(room.Spectators, name)
				} else {
					room.Users = append(room.Users, name)
				}
				room.ConnectedUsers[name] = stmt.ColumnInt(2) != 0
				return nil
			},
		})
}

func loadVotes(conn *sqlite.Conn, room *model.Room) error {
	return sqlitex.Execute(conn, `
		SELECT user_name, vote, structured FROM room_votes WHERE room_key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{room.Key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user := stmt.ColumnText(0)
				if stmt.ColumnType(1) != sqlite.TypeNull {
					room.Votes[user] = stmt.ColumnText(1)
				}
				sv, err := decodeOptional[model.StructuredVote](stmt, 2)
				if err != nil {
					return fmt.Errorf("decode structured vote: %w", err)
				}
				if sv != nil {
					room.StructuredVotes[user] = *sv
				}
				return nil
			},
		})
}

func loadHistory(conn *sqlite.Conn, room *model.Room) error {
	return sqlitex.Execute(conn, `
		SELECT entry FROM round_history WHERE room_key = ? ORDER BY seq`,
		&sqlitex.ExecOptions{
			Args: []any{room.Key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var entry model.RoundHistoryEntry
				if err := codec.Unmarshal(columnBytes(stmt, 0), &entry); err != nil {
					return fmt.Errorf("decode round: %w", err)
				}
				room.RoundHistory = append(room.RoundHistory, entry)
				return nil
			},
		})
}

func columnBytes(stmt *sqlite.Stmt, col int) []byte {
	n := stmt.ColumnLen(col)
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	stmt.ColumnBytes(col, buf)
	return buf
}

func isConstraint(err error) bool {
	return sqlite.ErrCode(err).ToPrimary() == sqlite.ResultConstraint
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
