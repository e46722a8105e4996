package main

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Skotchmaster/taskhub_auth/internal/config"
	"github.com/Skotchmaster/taskhub_auth/internal/db"
	"github.com/Skotchmaster/taskhub_auth/internal/events"
	"github.com/Skotchmaster/taskhub_auth/internal/hash"
	"github.com/Skotchmaster/taskhub_auth/internal/repo"
	"github.com/Skotchmaster/taskhub_auth/internal/search"
	"github.com/Skotchmaster/taskhub_auth/internal/service"
	"github.com/Skotchmaster/taskhub_auth/internal/tokens"
)

type app struct {
	cfg     config.Config
	log     *slog.Logger
	db      *gorm.DB
	issuer  *tokens.Issuer
	store   *repo.RefreshStore
	svc     *service.AuthService
	closers []func() error
}

// newApp wires the core. Kafka and Elasticsearch are optional: without them
// events are dropped and user search falls back to the database.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	issuer, err := tokens.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	gdb, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: gdb, issuer: issuer}
	a.closers = append(a.closers, func() error { return db.Close(gdb) })

	a.store = repo.NewRefreshStore(gdb, cfg.RefreshTokenTTL)
	a.svc = service.New(&repo.UserRepo{DB: gdb}, a.store, issuer, hash.NewBcrypt(cfg.BcryptCost))

	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.svc.Events = producer
		a.closers = append(a.closers, producer.Close)
		log.Info("user events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.ESURL != "" {
		client, err := search.NewClient(ctx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Warn("user search index disabled", "error", err)
		} else {
			a.svc.Index = &search.UserIndex{Client: client, Index: cfg.ESIndex}
			log.Info("user search index enabled", "index", cfg.ESIndex)
		}
	}

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
}
