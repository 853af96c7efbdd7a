package http_ticket

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
	tickets := router.Group("/rooms/:room_key/tickets", c.auth.SessionRequired())
	{
		tickets.POST("", c.add)
		tickets.GET("", c.list)
		tickets.GET("/:ticket_id/votes", c.votes)
	}
}

type AddRequestDTO struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

func (c *Controller) add(ctx *gin.Context) {
	var req AddRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "title is required",
		})
		return
	}

	ticket, err := c.usecase.AddTicket(
		ctx.Request.Context(),
		ctx.Param("room_key"),
		ctx.GetString(http_auth_middleware.UserKey),
		ctx.GetString(http_auth_middleware.TokenKey),
		req.Title,
		req.Description,
	)
	if err != nil {
		c.fail(ctx, "failed to add ticket", err)
		return
	}

	ctx.JSON(http.StatusCreated, ticket)
}

type ListResponseDTO struct {
	Tickets []model.Ticket `json:"tickets"`
	Current *model.Ticket  `json:"current"`
}

func (c *Controller) list(ctx *gin.Context) {
	tickets, current, err := c.usecase.ListTickets(
		ctx.Request.Context(),
		ctx.Param("room_key"),
		ctx.GetString(http_auth_middleware.UserKey),
		ctx.GetString(http_auth_middleware.TokenKey),
	)
	if err != nil {
		c.fail(ctx, "failed to list tickets", err)
		return
	}

	ctx.JSON(http.StatusOK, ListResponseDTO{
		Tickets: tickets,
		Current: current,
	})
}

func (c *Controller) votes(ctx *gin.Context) {
	votes, err := c.usecase.TicketVotes(
		ctx.Request.Context(),
		ctx.Param("room_key"),
		ctx.GetString(http_auth_middleware.UserKey),
		ctx.GetString(http_auth_middleware.TokenKey),
		ctx.Param("ticket_id"),
	)
	if err != nil {
		c.fail(ctx, "failed to list ticket votes", err)
		return
	}

	ctx.JSON(http.StatusOK, votes)
}

func (c *Controller) fail(ctx *gin.Context, msg string, err error) {
	status, body := http_common.ErrorStatus(err)
	if status == http.StatusInternalServerError {
		c.logger.Error(msg, slog.String("room", ctx.Param("room_key")), slog.String("error", err.Error()))
	}
	ctx.JSON(status, body)
}
