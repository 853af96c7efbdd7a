package infra_pg_init

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/config"
)

const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	key           TEXT PRIMARY KEY,
	state         JSONB NOT NULL,
	passcode_hash BYTEA,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS round_history (
	room_key TEXT NOT NULL REFERENCES rooms(key) ON DELETE CASCADE,
	seq      INTEGER NOT NULL,
	id       UUID NOT NULL,
	entry    JSONB NOT NULL,
	PRIMARY KEY (room_key, seq)
);

CREATE TABLE IF NOT EXISTS session_tokens (
	room_key   TEXT NOT NULL,
	user_name  TEXT NOT NULL,
	token      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_key, user_name)
);

CREATE TABLE IF NOT EXISTS tickets (
	id          UUID PRIMARY KEY,
	room_key    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	outcome     TEXT NOT NULL DEFAULT '',
	ordinal     INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_room ON tickets(room_key, ordinal);

CREATE TABLE IF NOT EXISTS ticket_votes (
	ticket_id UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	user_name TEXT NOT NULL,
	vote      TEXT NOT NULL,
	voted_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (ticket_id, user_name)
);
`

func MustEstablishConn(cfg config.Postgres) *sqlx.DB {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := db.Exec(Schema); err != nil {
		log.Fatal(err)
	}

	return db
}
