package httpapi

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meteomarkets/weather-oracle/internal/scheduler"
)

// RegisterRoutes wires the operator-facing handlers into the Fiber app.
// This surface is observability and manual remediation only; resolution
// control flow never reads from it.
func RegisterRoutes(app *fiber.App, sched *scheduler.Scheduler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":           "ok",
			"service":          "weather-oracle",
			"scheduledMarkets": sched.Count(),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/markets/scheduled", func(c *fiber.Ctx) error {
		ids := sched.ScheduledMarkets()
		return c.JSON(fiber.Map{
			"count":        len(ids),
			"conditionIds": ids,
		})
	})

	// Pull a pending market out of the schedule before it fires. Has no
	// effect on a resolution that is already running.
	v1.Delete("/markets/scheduled/:conditionId", func(c *fiber.Ctx) error {
		id := c.Params("conditionId")
		if !sched.CancelResolution(id) {
			return fiber.NewError(fiber.StatusNotFound, "no pending resolution for condition id")
		}
		return c.JSON(fiber.Map{
			"cancelled":   true,
			"conditionId": id,
		})
	})
}
