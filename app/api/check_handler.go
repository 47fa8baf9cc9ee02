package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type CheckHandler struct {
	index Pinger
}

func NewCheckHandler(index Pinger) *CheckHandler {
	return &CheckHandler{index: index}
}

func (h *CheckHandler) HandleHealth(c *fiber.Ctx) error {
	if err := h.index.Ping(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
