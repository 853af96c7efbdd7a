package model

import "time"

type SessionToken struct {
	User      string    `json:"user"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t SessionToken) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.CreatedAt) > ttl
}
