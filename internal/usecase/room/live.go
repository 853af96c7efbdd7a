package usecase_room

import (
	"context"
	"errors"
)

// Connect authenticates a live connection and registers it. An older
// connection for the same member is closed with CloseSuperseded before the
// new one receives its initialize snapshot. On ErrInvalidSession nothing is
// sent and the caller closes conn with CloseInvalidSession.
func (u *Usecase) Connect(ctx context.Context, key string, name string, token string, conn Connection) error {
	return u.do(ctx, key, func(a *roomActor) error {
		user, err := a.authenticate(ctx, name, token)
		if err != nil {
			return err
		}

		if old := a.conns.byUser[user]; old != nil {
			a.conns.deregister(old)
			old.Close(CloseSuperseded, "superseded")
			u.logger.Info("connection superseded", "room", key, "user", user)
		}
		// Announce to the others before the newcomer joins the fan-out.
		if _, err := a.exec(ctx, user, userConnected{}); err != nil {
			return err
		}
		a.conns.register(conn, user)
		a.send(conn, InitializeEvent{
			header:   header{Type: EventInitialize},
			RoomData: buildSnapshot(a.room, u.env()),
		})
		u.logger.Info("client connected", "room", key, "user", user)
		return nil
	})
}

// Disconnect is called once the socket is gone. A superseded connection is
// already deregistered and does not flip the member's presence.
func (u *Usecase) Disconnect(key string, conn Connection) {
	ctx := context.Background()
	err := u.do(ctx, key, func(a *roomActor) error {
		user, ok := a.conns.deregister(conn)
		if !ok {
			return nil
		}
		u.logger.Info("client disconnected", "room", key, "user", user)
		_, err := a.exec(ctx, user, userDisconnected{})
		return err
	})
	if err != nil {
		u.logger.Error("failed to record disconnect", "room", key, "error", err)
	}
}

// Dispatch decodes and applies one live message. Permission failures are
// swallowed; every other rejection is answered with an error event to the
// sender only.
func (u *Usecase) Dispatch(ctx context.Context, key string, conn Connection, data []byte) error {
	cmd, decodeErr := DecodeCommand(data)
	return u.do(ctx, key, func(a *roomActor) error {
		user, ok := a.conns.user(conn)
		if !ok {
			return ErrInvalidSession
		}
		if decodeErr != nil {
			a.send(conn, newErrorEvent(decodeErr.Error()))
			return nil
		}

		_, err := a.exec(ctx, user, cmd)
		switch {
		case err == nil:
		case errors.Is(err, ErrPermissionDenied):
			u.logger.Debug("live message denied", "room", key, "user", user, "command", cmd.commandName())
		default:
			a.send(conn, newErrorEvent(publicMessage(err)))
		}
		return nil
	})
}

func publicMessage(err error) string {
	var v *ValidationError
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.Is(err, ErrTerminalState):
		return ErrTerminalState.Error()
	case errors.Is(err, ErrResourceNotFound):
		return ErrResourceNotFound.Error()
	}
	return ErrInternal.Error()
}
