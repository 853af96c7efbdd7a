package ws_room

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	http_common "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/common"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Controller struct {
	uc *usecase_room.Usecase

	logger *slog.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(uc *usecase_room.Usecase,
	opts ...ControllerOption) *Controller {
	c := &Controller{
		uc:     uc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	room := router.Group("/rooms/:room_key")
	room.GET("/ws", c.roomWS)
}

// roomWS upgrades first and authenticates second, so a browser client
// learns about a bad session from the close code rather than a failed
// handshake.
func (c *Controller) roomWS(ctx *gin.Context) {
	roomKey := ctx.Param("room_key")
	name := ctx.Query("name")
	token := ctx.Query("token")
	if name == "" || token == "" {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "name and token are required",
		})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.logger.Error("failed to upgrade to websocket",
			slog.String("error", err.Error()),
		)
		return
	}

	client := newClient(conn, c.logger)
	go client.writePump()

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.uc.Connect(connectCtx, roomKey, name, token, client); err != nil {
		if errors.Is(err, usecase_room.ErrInvalidSession) {
			client.Close(usecase_room.CloseInvalidSession, "invalid session")
			return
		}
		c.logger.Error("failed to connect client", "room", roomKey, "user", name, "error", err)
		client.Close(websocket.CloseInternalServerErr, "internal error")
		return
	}

	go c.readPump(roomKey, client)
}

func (c *Controller) readPump(roomKey string, client *Client) {
	defer func() {
		c.uc.Disconnect(roomKey, client)
		client.Close(websocket.CloseNormalClosure, "")
		c.logger.Debug("read pump stopped", "room", roomKey)
	}()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		if err := c.uc.Dispatch(context.Background(), roomKey, client, data); err != nil {
			if errors.Is(err, usecase_room.ErrInvalidSession) {
				client.Close(usecase_room.CloseInvalidSession, "invalid session")
			}
			return
		}
	}
}
