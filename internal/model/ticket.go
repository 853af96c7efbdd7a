package model

import "time"

type TicketStatus = string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketCompleted  TicketStatus = "completed"
)

type Ticket struct {
	ID          string       `json:"id" cbor:"1,keyasint"`
	Title       string       `json:"title" cbor:"2,keyasint"`
	Description string       `json:"description,omitempty" cbor:"3,keyasint,omitempty"`
	Status      TicketStatus `json:"status" cbor:"4,keyasint"`
	Outcome     string       `json:"outcome,omitempty" cbor:"5,keyasint,omitempty"`
	Ordinal     int          `json:"ordinal" cbor:"6,keyasint"`
	CreatedAt   time.Time    `json:"createdAt" cbor:"7,keyasint"`
}

type TicketVote struct {
	TicketID string    `json:"ticketId" db:"ticket_id"`
	User     string    `json:"user" db:"user_name"`
	Vote     string    `json:"vote" db:"vote"`
	VotedAt  time.Time `json:"votedAt" db:"voted_at"`
}
