package http_room

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	http_common "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/common"
	http_auth_middleware "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/middleware/auth"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
)

type Controller struct {
	usecase *usecase_room.Usecase
	auth    *http_auth_middleware.Middleware
	logger  *slog.Logger
}

func New(
	usecase *usecase_room.Usecase,
	auth *http_auth_middleware.Middleware,
) *Controller {
	return &Controller{
		usecase: usecase,
		auth:    auth,
		logger:  slog.Default(),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	rooms := router.Group("/rooms")
	{
		rooms.POST("", c.create)
		rooms.POST("/:room_key/join", c.join)
		rooms.POST("/:room_key/session/validate", c.validateSession)
	}

	room := router.Group("/rooms/:room_key", c.auth.SessionRequired())
	{
		room.GET("", c.snapshot)
		room.GET("/settings", c.getSettings)
		room.PUT("/settings", c.updateSettings)
	}
}

type CreateRequestDTO struct {
	Key      string               `json:"key"`
	Name     string               `json:"name" binding:"required"`
	Passcode string               `json:"passcode"`
	Settings *model.SettingsPatch `json:"settings"`
}

type RoomResponseDTO struct {
	Room  usecase_room.RoomSnapshot `json:"room"`
	Token string                    `json:"token"`
}

func (c *Controller) create(ctx *gin.Context) {
	var req CreateRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "name is required",
		})
		return
	}

	snap, token, err := c.usecase.CreateRoom(ctx.Request.Context(), usecase_room.CreateRoomParams{
		Key:       req.Key,
		Moderator: req.Name,
		Passcode:  req.Passcode,
		Settings:  req.Settings,
	})
	if err != nil {
		c.fail(ctx, "failed to create room", err)
		return
	}

	ctx.Header(http_common.SessionTokenHeader, token)
	ctx.JSON(http.StatusCreated, RoomResponseDTO{
		Room:  snap,
		Token: token,
	})
}

type JoinRequestDTO struct {
	Name     string `json:"name" binding:"required"`
	Passcode string `json:"passcode"`
}

// join admits a new member or re-admits a known one. A session token in
// the header lets a returning member skip the passcode.
func (c *Controller) join(ctx *gin.Context) {
	var req JoinRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "name is required",
		})
		return
	}

	roomKey := ctx.Param("room_key")
	snap, token, err := c.usecase.Join(
		ctx.Request.Context(),
		roomKey,
		req.Name,
		req.Passcode,
		ctx.GetHeader(http_common.SessionTokenHeader),
	)
	if err != nil {
		c.fail(ctx, "failed to join room", err)
		return
	}

	ctx.Header(http_common.SessionTokenHeader, token)
	ctx.JSON(http.StatusOK, RoomResponseDTO{
		Room:  snap,
		Token: token,
	})
}

type ValidateRequestDTO struct {
	Name  string `json:"name" binding:"required"`
	Token string `json:"token" binding:"required"`
}

type ValidateResponseDTO struct {
	Valid bool   `json:"valid"`
	Name  string `json:"name"`
}

func (c *Controller) validateSession(ctx *gin.Context) {
	var req ValidateRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "name and token are required",
		})
		return
	}

	user, err := c.usecase.ValidateSession(ctx.Request.Context(), ctx.Param("room_key"), req.Name, req.Token)
	if err != nil {
		c.fail(ctx, "failed to validate session", err)
		return
	}

	ctx.JSON(http.StatusOK, ValidateResponseDTO{
		Valid: true,
		Name:  user,
	})
}

func (c *Controller) snapshot(ctx *gin.Context) {
	snap, err := c.usecase.Snapshot(ctx.Request.Context(), ctx.Param("room_key"), ctx.GetString(http_auth_middleware.UserKey), ctx.GetString(http_auth_middleware.TokenKey))
	if err != nil {
		c.fail(ctx, "failed to read room", err)
		return
	}

	ctx.JSON(http.StatusOK, snap)
}

func (c *Controller) getSettings(ctx *gin.Context) {
	settings, err := c.usecase.GetSettings(ctx.Request.Context(), ctx.Param("room_key"), ctx.GetString(http_auth_middleware.UserKey), ctx.GetString(http_auth_middleware.TokenKey))
	if err != nil {
		c.fail(ctx, "failed to read settings", err)
		return
	}

	ctx.JSON(http.StatusOK, settings)
}

func (c *Controller) updateSettings(ctx *gin.Context) {
	var patch model.SettingsPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "malformed settings",
		})
		return
	}

	settings, err := c.usecase.UpdateSettings(
		ctx.Request.Context(),
		ctx.Param("room_key"),
		ctx.GetString(http_auth_middleware.UserKey),
		ctx.GetString(http_auth_middleware.TokenKey),
		patch,
	)
	if err != nil {
		c.fail(ctx, "failed to update settings", err)
		return
	}

	ctx.JSON(http.StatusOK, settings)
}

func (c *Controller) fail(ctx *gin.Context, msg string, err error) {
	status, body := http_common.ErrorStatus(err)
	if status == http.StatusInternalServerError {
		c.logger.Error(msg, slog.String("room", ctx.Param("room_key")), slog.String("error", err.Error()))
	} else {
		c.logger.Debug(msg, slog.String("room", ctx.Param("room_key")), slog.String("error", err.Error()))
	}
	ctx.JSON(status, body)
}
