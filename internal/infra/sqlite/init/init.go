package infra_sqlite_init

import (
	"log"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/config"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/sqlitepool"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	key            TEXT PRIMARY KEY,
	moderator      TEXT NOT NULL,
	status         TEXT NOT NULL,
	show_votes     INTEGER NOT NULL,
	settings       BLOB NOT NULL,
	judge_score    REAL,
	judge_metadata BLOB,
	current_ticket BLOB,
	timer_state    BLOB,
	passcode_hash  BLOB,
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS room_members (
	room_key  TEXT NOT NULL REFERENCES rooms(key) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	position  INTEGER NOT NULL,
	spectator INTEGER NOT NULL,
	connected INTEGER NOT NULL,
	PRIMARY KEY (room_key, name)
);

CREATE TABLE IF NOT EXISTS room_votes (
	room_key   TEXT NOT NULL REFERENCES rooms(key) ON DELETE CASCADE,
	user_name  TEXT NOT NULL,
	vote       TEXT,
	structured BLOB,
	PRIMARY KEY (room_key, user_name)
);

CREATE TABLE IF NOT EXISTS round_history (
	room_key TEXT NOT NULL REFERENCES rooms(key) ON DELETE CASCADE,
	seq      INTEGER NOT NULL,
	id       TEXT NOT NULL,
	entry    BLOB NOT NULL,
	PRIMARY KEY (room_key, seq)
);

CREATE TABLE IF NOT EXISTS session_tokens (
	room_key   TEXT NOT NULL,
	user_name  TEXT NOT NULL,
	token      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (room_key, user_name)
);

CREATE TABLE IF NOT EXISTS tickets (
	id          TEXT PRIMARY KEY,
	room_key    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	outcome     TEXT NOT NULL DEFAULT '',
	ordinal     INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_room ON tickets(room_key, ordinal);

CREATE TABLE IF NOT EXISTS ticket_votes (
	ticket_id TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	user_name TEXT NOT NULL,
	vote      TEXT NOT NULL,
	voted_at  INTEGER NOT NULL,
	PRIMARY KEY (ticket_id, user_name)
);
`

func ApplySchema(conn *sqlite.Conn) error {
	return sqlitex.ExecuteScript(conn, Schema, nil)
}

func MustEstablishConn(cfg config.SQLite) *sqlitepool.Pool {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      cfg.Path,
		PoolSize:  cfg.PoolSize,
		OnConnect: ApplySchema,
	})
	if err != nil {
		log.Fatal(err)
	}

	return pool
}
