package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/infra/memory"
	redisstore "quiz-room-service/internal/infra/redis"
	transport "quiz-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Log.Level, cfg.Log.Pretty)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	dir, err := newRoomDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer dir.close()

	service := app.NewRoomService(dir.rooms,
		app.WithCodeLength(cfg.Room.CodeLength),
		app.WithCodeAttempts(cfg.Room.CodeAttempts),
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dir.keepAlive(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", finalPort).Msg("starting quiz room service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// roomDirectory bundles the selected repository with its lifecycle hooks.
type roomDirectory struct {
	rooms     app.RoomRepository
	keepAlive func(ctx context.Context)
	close     func()
}

// newRoomDirectory picks the Redis-backed directory when redis.addr is set.
func newRoomDirectory(ctx context.Context, cfg config.Config) (roomDirectory, error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("using in-memory room directory")
		return roomDirectory{
			rooms:     memory.NewRoomStore(),
			keepAlive: func(ctx context.Context) { <-ctx.Done() },
			close:     func() {},
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return roomDirectory{}, fmt.Errorf("ping redis: %w", err)
	}
	ttl := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
	log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", ttl).Msg("using redis room directory")
	store := redisstore.NewRoomStore(client, ttl)
	return roomDirectory{
		rooms:     store,
		keepAlive: store.KeepAlive,
		close:     func() { _ = client.Close() },
	}, nil
}
