package httpapi

import (
	"context"
	"errors"

	"bidhaus/internal/auction/actor"
	"bidhaus/internal/auction/domain"
	"bidhaus/internal/shared/logger"
	sharedws "bidhaus/internal/shared/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// RegisterRoutes mounts the auction read endpoints and the websocket
// session endpoint on the shared fiber app.
func RegisterRoutes(ctx context.Context, app *fiber.App, registry *actor.Registry, auctions domain.AuctionRepository, bids domain.BidRepository, hub *sharedws.Hub) {
	app.Get("/auctions", func(c *fiber.Ctx) error {
		active, err := auctions.GetActive(c.Context())
		if err != nil {
			log.Error("failed to list active auctions", zap.Error(err))
			return fiber.ErrInternalServerError
		}
		snapshots := make([]domain.Snapshot, 0, len(active))
		for _, a := range active {
			snapshots = append(snapshots, a.Snapshot())
		}
		return c.JSON(snapshots)
	})

	app.Get("/auctions/:id", func(c *fiber.Ctx) error {
		auctionID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.ErrBadRequest
		}
		snapshot, err := registry.Peek(c.Context(), auctionID)
		if err != nil {
			if errors.Is(err, domain.ErrAuctionNotFound) {
				return fiber.ErrNotFound
			}
			log.Error("failed to read auction snapshot", zap.Error(err))
			return fiber.ErrInternalServerError
		}
		return c.JSON(snapshot)
	})

	// Durable bid history, in sequence order. Source of truth for
	// sessions that missed broadcasts.
	app.Get("/auctions/:id/bids", func(c *fiber.Ctx) error {
		auctionID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.ErrBadRequest
		}
		history, err := bids.ListByAuction(c.Context(), auctionID)
		if err != nil {
			log.Error("failed to list bids", zap.Error(err))
			return fiber.ErrInternalServerError
		}
		return c.JSON(history)
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		client := &sharedws.Client{
			Hub:       hub,
			Conn:      conn,
			Send:      make(chan []byte, 256),
			SessionID: uuid.NewString(),
		}
		hub.RegisterClient(client)
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}))
}
