package infra_session_cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	session_auth "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/auth/session"
)

// Driver keeps one session token per room member. Entries expire with the
// session TTL so abandoned rooms do not pile up.
type Driver struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func New(
	client *redis.Client,
	key string,
	ttl time.Duration,
) *Driver {
	return &Driver{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

type tokenDTO struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

func (d *Driver) PutSessionToken(_ context.Context, roomKey string, token model.SessionToken) error {
	data, err := json.Marshal(tokenDTO{Token: token.Token, CreatedAt: token.CreatedAt})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	fullKey := d.getFullKey(roomKey, token.User)
	if err := d.client.Set(fullKey, data, d.ttl).Err(); err != nil {
		return err
	}

	return nil
}

func (d *Driver) SessionToken(_ context.Context, roomKey string, user string) (model.SessionToken, error) {
	fullKey := d.getFullKey(roomKey, user)

	val, err := d.client.Get(fullKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.SessionToken{}, session_auth.ErrTokenNotFound
		}
		return model.SessionToken{}, err
	}

	var dto tokenDTO
	if err := json.Unmarshal(val, &dto); err != nil {
		return model.SessionToken{}, fmt.Errorf("failed to decode token: %w", err)
	}

	return model.SessionToken{
		User:      user,
		Token:     dto.Token,
		CreatedAt: dto.CreatedAt,
	}, nil
}

func (d *Driver) getFullKey(roomKey string, user string) string {
	key := roomKey + ":" + user
	if d.key != "" {
		return d.key + ":" + key
	}
	return key
}
