package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/ryanhackme1207/Everspace/internal/adapters/http"
	"github.com/ryanhackme1207/Everspace/internal/bus"
	"github.com/ryanhackme1207/Everspace/internal/chat"
	"github.com/ryanhackme1207/Everspace/internal/config"
	"github.com/ryanhackme1207/Everspace/internal/presence"
	"github.com/ryanhackme1207/Everspace/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	var (
		presenceStore presence.Store
		broadcastBus  bus.Bus
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		presenceStore = presence.NewRedisStore(client, cfg.PresenceTTL)
		broadcastBus = bus.NewRedisBus(client)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis presence and broadcast")
	} else {
		presenceStore = presence.NewMemoryStore(cfg.PresenceTTL)
		broadcastBus = bus.NewHub()
		log.Info().Msg("using in-memory presence and broadcast")
	}

	rooms := store.NewGormRoomRepository(db)
	members := store.NewGormMembershipRepository(db)
	bans := store.NewGormBanRepository(db)
	messages := store.NewGormMessageRepository(db)
	users := store.NewGormUserRepository(db)

	deps := chat.Deps{
		Presence: presenceStore,
		Bus:      broadcastBus,
		Rooms:    rooms,
		Members:  members,
		Bans:     bans,
		Messages: messages,
		Users:    users,
		Settings: chat.Settings{
			HeartbeatInterval:  cfg.HeartbeatInterval,
			StalenessThreshold: cfg.StalenessThreshold,
			DisconnectGrace:    cfg.DisconnectGrace,
			JoinDebounce:       cfg.JoinDebounce,
			MaxMessageLen:      cfg.MaxMessageLen,
		},
	}

	api := &router.API{
		Cfg:      cfg,
		Users:    users,
		Rooms:    rooms,
		Members:  members,
		Bans:     bans,
		Messages: messages,
		Dispatcher: &chat.Dispatcher{
			Presence: presenceStore,
			Bus:      broadcastBus,
			Rooms:    rooms,
			Members:  members,
			Bans:     bans,
			Users:    users,
		},
	}
	ws := &router.ChatWSController{
		Deps:      deps,
		ReadLimit: cfg.ReadLimit,
		SendQueue: cfg.SendQueue,
	}

	r := router.SetupRouter(ctx, cfg, api, ws)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Everspace server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
