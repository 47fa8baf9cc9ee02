package api

import (
	"context"

	"helprag/types"

	"github.com/gofiber/fiber/v2"
)

type Answerer interface {
	Answer(ctx context.Context, query string, topK int) (*types.ChatResponse, error)
}

type RequestHandler struct {
	agent Answerer
}

func NewRequestHandler(agent Answerer) *RequestHandler {
	return &RequestHandler{agent: agent}
}

// HandleAskQuestion serves POST /ask_question.
func (h *RequestHandler) HandleAskQuestion(c *fiber.Ctx) error {
	params := types.NewAskParams()
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	resp, err := h.agent.Answer(c.UserContext(), params.Query, params.TopK)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
