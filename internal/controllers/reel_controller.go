package controllers

import (
	"github.com/flowbaker/runreel/internal/middlewares"
	"github.com/flowbaker/runreel/pkg/domain/reel"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// ReelController serves run gif status and generation requests.
type ReelController struct {
	reelService reel.ReelService
}

type ReelControllerDependencies struct {
	ReelService reel.ReelService
}

func NewReelController(deps ReelControllerDependencies) *ReelController {
	return &ReelController{
		reelService: deps.ReelService,
	}
}

func gifParams(ctx fiber.Ctx, runID string) reel.GifParams {
	return reel.GifParams{
		FlowID:    ctx.Params("flowID"),
		RunID:     runID,
		AccountID: middlewares.AccountID(ctx),
	}
}

// GetGifStatus always answers 200; failures are reported in the body.
func (c *ReelController) GetGifStatus(ctx fiber.Ctx) error {
	params := gifParams(ctx, ctx.Query("runId"))

	result := c.reelService.GetGifStatus(ctx.RequestCtx(), params)

	return ctx.JSON(result)
}

func (c *ReelController) CreateGif(ctx fiber.Ctx) error {
	return c.createGif(ctx, gifParams(ctx, ctx.Query("runId")))
}

// RegenerateGif rebuilds the gif of a specific run.
func (c *ReelController) RegenerateGif(ctx fiber.Ctx) error {
	return c.createGif(ctx, gifParams(ctx, ctx.Params("runID")))
}

func (c *ReelController) createGif(ctx fiber.Ctx, params reel.GifParams) error {
	log.Info().
		Str("flow_id", params.FlowID).
		Str("run_id", params.RunID).
		Str("request_id", middlewares.RequestID(ctx)).
		Msg("Creating gif")

	result := c.reelService.CreateGif(ctx.RequestCtx(), params)

	if !result.Success {
		return ctx.Status(fiber.StatusInternalServerError).JSON(result)
	}

	return ctx.JSON(result)
}
