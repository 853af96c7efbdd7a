package app

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/config"
	http_init "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/init"
	http_auth_middleware "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/middleware/auth"
	http_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/room"
	http_ticket "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/http/ticket"
	ws_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/delivery/ws/room"
	infra_pg_init "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/postgres/init"
	infra_postgres_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/postgres/room"
	infra_postgres_ticket "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/postgres/ticket"
	infra_redis_init "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/redis/init"
	infra_session_cache "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/redis/session"
	infra_sqlite_init "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/sqlite/init"
	infra_sqlite_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/sqlite/room"
	infra_sqlite_ticket "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/sqlite/ticket"
	infra_webhook "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/infra/webhook"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/lib/clock"
	session_auth "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/auth/session"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/timer"
	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
)

const shutdownTimeout = 10 * time.Second

// roomStore is what either durable backend provides for rooms and, when
// redis is off, for session tokens.
type roomStore interface {
	usecase_room.RoomRepository
	session_auth.SessionStore
}

type storage struct {
	rooms   roomStore
	tickets usecase_room.TicketQueue
	closer  io.Closer
}

func mustOpenStorage(cfg *config.Config, clk clock.Clock) storage {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pgConn := infra_pg_init.MustEstablishConn(cfg.Postgres)
		return storage{
			rooms:   infra_postgres_room.New(pgConn),
			tickets: infra_postgres_ticket.New(pgConn, clk),
			closer:  pgConn,
		}
	case config.DriverSQLite:
		pool := infra_sqlite_init.MustEstablishConn(cfg.SQLite)
		return storage{
			rooms:   infra_sqlite_room.New(pool),
			tickets: infra_sqlite_ticket.New(pool, clk),
			closer:  pool,
		}
	default:
		log.Fatalf("unknown storage driver %q", cfg.Storage.Driver)
		return storage{}
	}
}

func Go(cfg *config.Config) {
	logger := slog.Default()
	clk := clock.Real()

	store := mustOpenStorage(cfg, clk)
	defer store.closer.Close()

	var sessionStore session_auth.SessionStore = store.rooms
	if cfg.Redis.Enabled() {
		redisConn := infra_redis_init.MustEstablishConn(cfg.Redis)
		defer redisConn.Close()
		sessionStore = infra_session_cache.New(redisConn, "session_cache", cfg.Session.TTL)
	}
	sessions := session_auth.New(sessionStore, &cfg.Session.TTL, clk)

	roomUC := usecase_room.New(
		store.rooms,
		sessions,
		store.tickets,
		infra_webhook.New(cfg.Notifier),
		timer.New(),
		usecase_room.WithClock(clk),
		usecase_room.WithDefaults(cfg.Room.Defaults),
		usecase_room.WithIdleTTL(cfg.Room.IdleTTL),
		usecase_room.WithLogger(logger),
	)

	authMiddleware := http_auth_middleware.New(roomUC)

	controllerPool := http_init.NewControllerPool()
	controllerPool.Add(http_room.New(roomUC, authMiddleware))
	controllerPool.Add(http_ticket.New(roomUC, authMiddleware))
	controllerPool.Add(ws_room.New(roomUC, ws_room.WithLogger(logger)))
	controllerPool.Register()

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           controllerPool.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http server listening", "addr", server.Addr, "storage", cfg.Storage.Driver, "redis_sessions", cfg.Redis.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to run HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
}
