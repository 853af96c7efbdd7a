package http_auth_middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	http_common "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/common"
)

// Context keys set by SessionRequired.
const (
	UserKey  = "session_user"
	TokenKey = "session_token"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, key string, name string, token string) (string, error)
}

type Middleware struct {
	validator SessionValidator
	logger    *slog.Logger
}

func New(
	validator SessionValidator,
) *Middleware {
	return &Middleware{
		validator: validator,
		logger:    slog.Default(),
	}
}

// SessionRequired checks the caller's session for the room in the
// room_key path parameter and stores the canonical member name.
func (m *Middleware) SessionRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := ctx.GetHeader(http_common.SessionTokenHeader)
		name := ctx.GetHeader(http_common.UserNameHeader)
		if token == "" || name == "" {
			m.logger.Debug("missing session headers", "path", ctx.FullPath())
			ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
				Message: fmt.Sprintf("%s and %s headers are required", http_common.UserNameHeader, http_common.SessionTokenHeader),
			})
			ctx.Abort()
			return
		}

		roomKey := ctx.Param("room_key")
		user, err := m.validator.ValidateSession(ctx.Request.Context(), roomKey, name, token)
		if err != nil {
			status, body := http_common.ErrorStatus(err)
			if status == http.StatusInternalServerError {
				m.logger.Error("failed to validate session", "room", roomKey, "error", err)
			}
			ctx.JSON(status, body)
			ctx.Abort()
			return
		}

		ctx.Set(UserKey, user)
		ctx.Set(TokenKey, token)
		ctx.Next()
	}
}
