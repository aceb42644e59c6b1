package main

import (
	"context"

	"bidhaus/internal/auction/actor"
	"bidhaus/internal/auction/infra/httpapi"
	"bidhaus/internal/auction/infra/persistence"
	auctionpg "bidhaus/internal/auction/infra/repository/postgres"
	"bidhaus/internal/auction/infra/relay"
	auctionws "bidhaus/internal/auction/infra/websocket"
	"bidhaus/internal/shared/config"
	"bidhaus/internal/shared/db"
	"bidhaus/internal/shared/db/migrations"
	"bidhaus/internal/shared/httpserver"
	"bidhaus/internal/shared/logger"
	sharedws "bidhaus/internal/shared/websocket"
	userpg "bidhaus/internal/user/infra/repository/postgres"

	"go.uber.org/zap"
)

func main() {
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting bidhaus server...")
	cfg := config.Load()

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(); err != nil {
		log.Fatal("Database migration failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.GetPostgresDBPool(ctx)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	defer pool.Close()

	auctionRepo := auctionpg.NewAuctionRepository(pool)
	bidRepo := auctionpg.NewBidRepository(pool)
	userRepo := userpg.NewUserRepository(pool)

	sink := persistence.NewSink(auctionRepo, bidRepo, cfg.SinkQueueSize)
	go sink.Run(ctx)

	hub := sharedws.NewHub()
	go hub.Run(ctx)

	var eventRelay auctionws.Relay
	if cfg.AMQPURL != "" {
		amqpRelay, err := relay.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatal("Relay connection failed", zap.Error(err))
		}
		defer amqpRelay.Close()
		go func() {
			if err := amqpRelay.Run(ctx); err != nil {
				log.Error("Relay consumer stopped", zap.Error(err))
			}
		}()
		eventRelay = amqpRelay
	}

	gateway := auctionws.NewGateway(hub, userRepo, eventRelay)
	registry := actor.NewRegistry(auctionRepo, bidRepo, sink, gateway, cfg.PreventSelfOutbid)
	gateway.Bind(registry)
	defer registry.Shutdown()

	go gateway.ListenForMessages(ctx)
	go gateway.ListenForRelayEvents(ctx)

	server := httpserver.NewServer()
	httpapi.RegisterRoutes(ctx, server.App(), registry, auctionRepo, bidRepo, hub)

	if err := server.Start(cfg.HTTPAddr); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
}
