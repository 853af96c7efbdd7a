package usecase_room

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

const effectQueueSize = 32

// roomActor owns one room. Every field is touched only from its run loop,
// except effects which is drained by a separate worker.
type roomActor struct {
	key     string
	u       *Usecase
	ops     chan func()
	done    chan struct{}
	effects chan []effect

	// room is the cached state. nil forces a reload from the store.
	room  *model.Room
	conns *connections

	// missing is set when the last load found no such room.
	missing bool
}

func (u *Usecase) actor(key string) *roomActor {
	u.mu.Lock()
	defer u.mu.Unlock()

	if a, ok := u.actors[key]; ok {
		return a
	}
	a := &roomActor{
		key:     key,
		u:       u,
		ops:     make(chan func()),
		done:    make(chan struct{}),
		effects: make(chan []effect, effectQueueSize),
		conns:   newConnections(),
	}
	u.actors[key] = a
	go a.run()
	go a.drainEffects()
	return a
}

// evict removes a from the registry unless it still has live connections.
func (u *Usecase) evict(a *roomActor) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if a.conns.len() > 0 {
		return false
	}
	if u.actors[a.key] == a {
		delete(u.actors, a.key)
	}
	close(a.done)
	close(a.effects)
	return true
}

// do runs fn on the room's actor and waits for it. An evicted actor is
// replaced transparently.
func (u *Usecase) do(ctx context.Context, key string, fn func(a *roomActor) error) error {
	for {
		a := u.actor(key)
		result := make(chan error, 1)
		select {
		case a.ops <- func() { result <- fn(a) }:
			return <-result
		case <-a.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *roomActor) run() {
	idle := time.NewTimer(a.u.idleTTL)
	defer idle.Stop()

	for {
		select {
		case op := <-a.ops:
			op()
			if a.missing && a.u.evict(a) {
				a.u.logger.Debug("unknown room actor evicted", "room", a.key)
				return
			}
			idle.Reset(a.u.idleTTL)
		case <-idle.C:
			if a.u.evict(a) {
				a.u.logger.Debug("room actor evicted", "room", a.key)
				return
			}
			idle.Reset(a.u.idleTTL)
		}
	}
}

func (a *roomActor) load(ctx context.Context) (*model.Room, error) {
	if a.room != nil {
		return a.room, nil
	}
	room, err := a.u.RoomRepository.LoadRoom(ctx, a.key)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			a.missing = true
			return nil, ErrResourceNotFound
		}
		return nil, errors.Join(ErrInternal, err)
	}
	a.missing = false
	room.EnsureMaps()
	// Presence is whatever this actor holds, not what was last stored.
	for user := range room.ConnectedUsers {
		room.ConnectedUsers[user] = a.conns.has(user)
	}
	a.room = room
	return room, nil
}

// authenticate fails closed: every failure other than a storage error
// reads as ErrInvalidSession.
func (a *roomActor) authenticate(ctx context.Context, name string, token string) (string, error) {
	if name == "" || token == "" {
		return "", ErrInvalidSession
	}
	room, err := a.load(ctx)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return "", ErrInvalidSession
		}
		return "", err
	}
	user, ok := room.CanonicalName(name)
	if !ok {
		return "", ErrInvalidSession
	}
	if err := a.u.Sessions.Validate(ctx, a.key, user, token); err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return "", ErrInvalidSession
		}
		return "", errors.Join(ErrInternal, err)
	}
	return user, nil
}

// exec applies cmd, commits, broadcasts and queues side effects, in that
// order.
func (a *roomActor) exec(ctx context.Context, user string, cmd Command) (*model.Room, error) {
	room, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	out, err := apply(room, user, cmd, a.u.env())
	if err != nil {
		return room, err
	}

	if out.dirty {
		if err := a.u.RoomRepository.SaveRoom(context.WithoutCancel(ctx), room); err != nil {
			a.room = nil
			a.u.logger.Error("failed to save room", "room", a.key, "command", cmd.commandName(), "error", err)
			return nil, errors.Join(ErrInternal, err)
		}
	}

	a.publish(ctx, out.events)
	a.queueEffects(out.effects)
	return room, nil
}

func (a *roomActor) publish(ctx context.Context, events []Event) {
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			a.u.logger.Error("failed to encode event", "room", a.key, "event", ev.EventType(), "error", err)
			continue
		}
		for _, conn := range a.conns.broadcast(data) {
			a.drop(ctx, conn)
		}
	}
}

// drop deregisters a connection whose send failed.
func (a *roomActor) drop(ctx context.Context, conn Connection) {
	user, ok := a.conns.deregister(conn)
	if !ok {
		return
	}
	conn.Close(closeGoingAway, "send failed")
	a.u.logger.Info("dropped slow connection", "room", a.key, "user", user)
	if _, err := a.exec(ctx, user, userDisconnected{}); err != nil {
		a.u.logger.Error("failed to record disconnect", "room", a.key, "user", user, "error", err)
	}
}

func (a *roomActor) send(conn Connection, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		a.u.logger.Error("failed to encode event", "room", a.key, "event", ev.EventType(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		a.u.logger.Debug("failed to send to connection", "room", a.key, "error", err)
	}
}

func (a *roomActor) queueEffects(effects []effect) {
	if len(effects) == 0 {
		return
	}
	select {
	case a.effects <- effects:
	default:
		a.u.logger.Warn("effect queue full, running detached", "room", a.key)
		go a.u.runEffects(a.key, effects)
	}
}

func (a *roomActor) drainEffects() {
	for effects := range a.effects {
		a.u.runEffects(a.key, effects)
	}
}

// runEffects calls collaborators outside the actor. Failures are logged and
// never touch the committed transition.
func (u *Usecase) runEffects(key string, effects []effect) {
	for _, e := range effects {
		ctx, cancel := context.WithTimeout(context.Background(), u.effectTimeout)
		u.runEffect(ctx, key, e)
		cancel()
	}
}

func (u *Usecase) runEffect(ctx context.Context, key string, e effect) {
	var err error
	switch e := e.(type) {
	case postRoundEffect:
		err = u.Notifier.PostRound(ctx, e.snapshot)
	case logVotesEffect:
		now := u.clock.Now()
		for _, v := range e.votes {
			if v.Vote == "" {
				continue
			}
			if err = u.Tickets.LogVote(ctx, key, model.TicketVote{
				TicketID: e.ticketID,
				User:     v.User,
				Vote:     v.Vote,
				VotedAt:  now,
			}); err != nil {
				break
			}
		}
	case completeTicketEffect:
		err = u.Tickets.Complete(ctx, key, e.ticketID, e.outcome)
	case advanceTicketEffect:
		var t *model.Ticket
		if t, err = u.Tickets.Advance(ctx, key, e.outcome); err == nil {
			err = u.feedTicket(ctx, key, t)
		}
	case selectTicketEffect:
		var t *model.Ticket
		if t, err = u.Tickets.Select(ctx, key, e.ticketID); err == nil {
			err = u.feedTicket(ctx, key, t)
		}
	}
	if err != nil {
		u.logger.Error("collaborator call failed", "room", key, "effect", e.effectName(), "error", err)
	}
}

func (u *Usecase) feedTicket(ctx context.Context, key string, t *model.Ticket) error {
	return u.do(ctx, key, func(a *roomActor) error {
		_, err := a.exec(ctx, "", ticketChanged{ticket: t})
		return err
	})
}
